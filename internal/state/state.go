// Package state persists the last recorded network snapshot so the agent
// can tell, across restarts, whether the network has changed.
package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/netlogger/pkg/models"
)

// ErrCorrupt is returned by Load when persisted state exists but cannot be
// trusted. The accompanying StoredState is always empty.
var ErrCorrupt = errors.New("state corrupt")

// Store persists the last recorded snapshot.
type Store interface {
	// Load returns the last persisted state. A missing state yields the
	// empty state and a nil error. Unreadable or corrupt state yields the
	// empty state and a non-nil error; callers treat that as non-fatal.
	Load(ctx context.Context) (models.StoredState, error)

	// Save durably replaces the persisted state with s.
	Save(ctx context.Context, s models.Snapshot) error

	// Close releases resources held by the store.
	Close() error
}

// Backend names accepted by Config.Backend.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config selects and locates the state backend.
type Config struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// DefaultConfig returns the default state configuration.
func DefaultConfig() Config {
	return Config{
		Backend: BackendFile,
		Path:    "state.json",
	}
}

// Validate checks the backend name and path.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("state.backend: unknown backend %q", c.Backend)
	}
	if c.Path == "" {
		return errors.New("state.path is required")
	}
	return nil
}

// Open returns the Store described by cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendSQLite:
		s, err := OpenSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return NewFileStore(cfg.Path), nil
	}
}

// checksum returns the hex SHA-256 of the canonical interface encoding.
func checksum(obs []models.InterfaceObservation) (string, error) {
	b, err := json.Marshal(obs)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

type clock func() time.Time
