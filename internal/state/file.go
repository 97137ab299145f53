package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/HerbHall/netlogger/internal/fsutil"
	"github.com/HerbHall/netlogger/pkg/models"
)

const fileFormatVersion = 1

// fileEnvelope is the on-disk form of the state file. Checksum covers the
// canonical interface list so a partially written or hand-edited file is
// rejected instead of being read back as a different snapshot.
type fileEnvelope struct {
	Version    int                           `json:"version"`
	SavedAt    time.Time                     `json:"saved_at"`
	Checksum   string                        `json:"checksum"`
	Interfaces []models.InterfaceObservation `json:"interfaces"`
}

// Compile-time interface guard.
var _ Store = (*FileStore)(nil)

// FileStore keeps state in a single JSON file replaced atomically on Save.
type FileStore struct {
	path string
	now  clock
}

// NewFileStore returns a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Path returns the state file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(_ context.Context) (models.StoredState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.StoredState{}, nil
		}
		return models.StoredState{}, fmt.Errorf("read state file %q: %w", s.path, err)
	}

	var env fileEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return models.StoredState{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	if env.Version != fileFormatVersion {
		return models.StoredState{}, fmt.Errorf("%w: %s: unsupported version %d", ErrCorrupt, s.path, env.Version)
	}

	snap, err := models.NewSnapshot(env.Interfaces...)
	if err != nil {
		return models.StoredState{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	sum, err := checksum(snap.Canonical())
	if err != nil {
		return models.StoredState{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	if sum != env.Checksum {
		return models.StoredState{}, fmt.Errorf("%w: %s: checksum mismatch", ErrCorrupt, s.path)
	}

	savedAt := env.SavedAt
	if savedAt.IsZero() {
		if info, err := os.Stat(s.path); err == nil {
			savedAt = info.ModTime().UTC()
		}
	}
	return models.StoredState{Snapshot: snap, SavedAt: savedAt}, nil
}

func (s *FileStore) Save(_ context.Context, snap models.Snapshot) error {
	obs := snap.Canonical()
	sum, err := checksum(obs)
	if err != nil {
		return fmt.Errorf("checksum state: %w", err)
	}

	data, err := json.MarshalIndent(fileEnvelope{
		Version:    fileFormatVersion,
		SavedAt:    s.now().UTC(),
		Checksum:   sum,
		Interfaces: obs,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err := fsutil.WriteFileAtomic(s.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("save state %q: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
