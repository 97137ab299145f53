package netinfo

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/HerbHall/netlogger/pkg/models"
)

// DefaultDescription is used when the metadata file does not set one.
const DefaultDescription = "N/A"

// MetadataLoader reads host metadata from an optional YAML or JSON file
// and falls back to the OS hostname.
type MetadataLoader struct {
	path     string
	hostname func() (string, error)
}

// NewMetadataLoader returns a loader for path. An empty path uses
// defaults only.
func NewMetadataLoader(path string) *MetadataLoader {
	return &MetadataLoader{path: path, hostname: os.Hostname}
}

// Load returns the host metadata. The file is re-read on every call so
// edits apply on the next tick. On a parse error the defaults are still
// returned together with the error.
func (l *MetadataLoader) Load() (models.Metadata, error) {
	var md models.Metadata
	var loadErr error

	if l.path != "" {
		data, err := os.ReadFile(l.path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			loadErr = fmt.Errorf("read metadata %q: %w", l.path, err)
		default:
			// JSON is valid YAML, so one decoder covers both formats.
			if err := yaml.Unmarshal(data, &md); err != nil {
				md = models.Metadata{}
				loadErr = fmt.Errorf("parse metadata %q: %w", l.path, err)
			}
		}
	}

	if md.Hostname == "" {
		h, err := l.hostname()
		if err != nil {
			h = "unknown"
			loadErr = errors.Join(loadErr, fmt.Errorf("hostname: %w", err))
		}
		md.Hostname = h
	}
	if md.Description == "" {
		md.Description = DefaultDescription
	}
	return md, loadErr
}
