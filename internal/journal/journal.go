// Package journal writes recorded network snapshots to local files.
package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/HerbHall/netlogger/pkg/models"
)

// ErrNoHostname is returned when a record needs a hostname to name its
// output file and none is set.
var ErrNoHostname = errors.New("record has no hostname")

// Recorder durably writes a LogRecord.
type Recorder interface {
	// Record writes rec. A nil error means the record is on disk.
	Record(ctx context.Context, rec models.LogRecord) error

	// Path returns the file that records for hostname are written to.
	Path(hostname string) string
}

// Format names accepted by Config.Format.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config selects the record format and destination.
type Config struct {
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"` // text log file
	Dir    string `mapstructure:"dir"`  // directory for JSON identity files
}

// DefaultConfig returns the default journal configuration.
func DefaultConfig() Config {
	return Config{
		Format: FormatText,
		Path:   "network.log",
		Dir:    ".",
	}
}

// Validate checks the format and its destination.
func (c Config) Validate() error {
	switch c.Format {
	case FormatText:
		if c.Path == "" {
			return errors.New("journal.path is required for text format")
		}
	case FormatJSON:
		if c.Dir == "" {
			return errors.New("journal.dir is required for json format")
		}
	default:
		return fmt.Errorf("journal.format: unknown format %q", c.Format)
	}
	return nil
}

// New returns the Recorder described by cfg.
func New(cfg Config) (Recorder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Format == FormatJSON {
		return NewIdentityFile(cfg.Dir), nil
	}
	return NewTextLog(cfg.Path), nil
}
