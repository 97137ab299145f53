// Package publish uploads recorded files to remote storage, replacing any
// existing object of the same name.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Mode controls what happens when an object of the same name exists.
type Mode int

const (
	// Replace uploads the file and removes any previous object with the
	// same name. Publishing the same content twice is harmless.
	Replace Mode = iota
	// SkipExisting uploads only if no object with the same name exists.
	SkipExisting
)

func (m Mode) String() string {
	if m == SkipExisting {
		return "skip-existing"
	}
	return "replace"
}

// Publisher uploads a local file to remote storage by name.
type Publisher interface {
	// Name returns the backend identifier (e.g. "dir", "drive").
	Name() string

	// Publish uploads localPath. Failures are returned as *Error.
	Publish(ctx context.Context, localPath string, mode Mode) error
}

// Error reports a failed publish.
type Error struct {
	Backend string
	Path    string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("publish %s via %s: %v", e.Path, e.Backend, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrapErr(backend, path string, err error) error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return err
	}
	return &Error{Backend: backend, Path: path, Err: err}
}

// Backend names accepted by Config.Backend.
const (
	BackendNone  = "none"
	BackendDir   = "dir"
	BackendDrive = "drive"
	BackendMQTT  = "mqtt"
)

// Policy names accepted by Config.Policy.
const (
	PolicyChange = "change"
	PolicyAlways = "always"
)

// Config selects and configures the publish backend.
type Config struct {
	Backend    string        `mapstructure:"backend"`
	Policy     string        `mapstructure:"policy"`
	Timeout    time.Duration `mapstructure:"timeout"`
	ExtraFiles []string      `mapstructure:"extra_files"`
	Dir        string        `mapstructure:"dir"`
	Drive      DriveConfig   `mapstructure:"drive"`
	MQTT       MQTTConfig    `mapstructure:"mqtt"`
}

// DefaultConfig returns the default publish configuration.
func DefaultConfig() Config {
	return Config{
		Backend: BackendNone,
		Policy:  PolicyChange,
		Timeout: 60 * time.Second,
		MQTT: MQTTConfig{
			TopicPrefix: "netlogger",
			QoS:         1,
		},
	}
}

// Validate checks backend, policy and backend-specific settings.
func (c Config) Validate() error {
	switch c.Policy {
	case PolicyChange, PolicyAlways:
	default:
		return fmt.Errorf("publish.policy: unknown policy %q", c.Policy)
	}
	if c.Timeout <= 0 {
		return errors.New("publish.timeout must be positive")
	}
	switch c.Backend {
	case BackendNone:
	case BackendDir:
		if c.Dir == "" {
			return errors.New("publish.dir is required for dir backend")
		}
	case BackendDrive:
		return c.Drive.Validate()
	case BackendMQTT:
		return c.MQTT.Validate()
	default:
		return fmt.Errorf("publish.backend: unknown backend %q", c.Backend)
	}
	return nil
}

// New builds the Publisher described by cfg.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendDir:
		return NewDirPublisher(cfg.Dir, logger), nil
	case BackendDrive:
		p, err := NewDrivePublisher(ctx, cfg.Drive, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case BackendMQTT:
		return NewMQTTPublisher(cfg.MQTT, logger), nil
	default:
		return NewNoopPublisher(logger), nil
	}
}
