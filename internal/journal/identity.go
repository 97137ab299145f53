package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/HerbHall/netlogger/internal/fsutil"
	"github.com/HerbHall/netlogger/pkg/models"
)

// unavailable fills primary-interface fields when nothing is active.
// Without a default-route interface the first canonical one stands in.
const unavailable = "Unavailable"

// identityDoc is the JSON layout of <hostname>_Network_ID.json.
type identityDoc struct {
	Timestamp   int64                         `json:"timestamp"`
	RecordID    string                        `json:"record_id"`
	Hostname    string                        `json:"hostname"`
	Description string                        `json:"description"`
	Interface   string                        `json:"interface"`
	IP          string                        `json:"ip"`
	MAC         string                        `json:"mac"`
	Interfaces  []models.InterfaceObservation `json:"interfaces"`
}

// Compile-time interface guard.
var _ Recorder = (*IdentityFile)(nil)

// IdentityFile overwrites a per-host JSON file with the latest record.
// Unlike TextLog it keeps no history; it exists so the published file
// always describes the current identity of the host.
type IdentityFile struct {
	dir string
}

// NewIdentityFile returns an IdentityFile writing into dir.
func NewIdentityFile(dir string) *IdentityFile {
	return &IdentityFile{dir: dir}
}

func (f *IdentityFile) Path(hostname string) string {
	return filepath.Join(f.dir, identityFileName(hostname))
}

func (f *IdentityFile) Record(_ context.Context, rec models.LogRecord) error {
	if rec.Hostname == "" {
		return ErrNoHostname
	}

	obs := rec.Snapshot.Canonical()
	doc := identityDoc{
		Timestamp:   rec.Timestamp.Unix(),
		RecordID:    rec.ID,
		Hostname:    rec.Hostname,
		Description: rec.Description,
		Interface:   unavailable,
		IP:          unavailable,
		MAC:         unavailable,
		Interfaces:  obs,
	}
	primary, ok := rec.Snapshot.Primary()
	if !ok && len(obs) > 0 {
		primary, ok = obs[0], true
	}
	if ok {
		doc.Interface = primary.Name
		doc.IP = primary.IPAddress
		doc.MAC = primary.MACAddress
	}

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}
	path := f.Path(rec.Hostname)
	if err := fsutil.WriteFileAtomic(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write identity %q: %w", path, err)
	}
	return nil
}

// identityFileName keeps hostnames from escaping the output directory.
func identityFileName(hostname string) string {
	r := strings.NewReplacer("/", "_", `\`, "_", "..", "_")
	return r.Replace(hostname) + "_Network_ID.json"
}
