package agent

import (
	"errors"
	"fmt"
	"time"
)

// Trigger values for Config.Trigger.
const (
	TriggerChange = "change"
	TriggerAlways = "always"
)

// Acquisition error policies for Config.OnAcquireError.
const (
	// AcquireEmpty compares an empty snapshot, so losing every interface
	// and failing to read them are recorded the same way.
	AcquireEmpty = "empty"
	// AcquireSkip leaves the tick without comparison or side effects.
	AcquireSkip = "skip"
)

// Config holds the polling loop configuration.
type Config struct {
	StartupDelay   time.Duration `mapstructure:"startup_delay"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	Trigger        string        `mapstructure:"trigger"`
	OnAcquireError string        `mapstructure:"on_acquire_error"`
}

// DefaultConfig returns the default agent configuration.
func DefaultConfig() Config {
	return Config{
		StartupDelay:   2 * time.Minute,
		PollInterval:   30 * time.Minute,
		Trigger:        TriggerChange,
		OnAcquireError: AcquireEmpty,
	}
}

// Validate checks durations and policy names.
func (c Config) Validate() error {
	if c.StartupDelay < 0 {
		return errors.New("agent.startup_delay must not be negative")
	}
	if c.PollInterval <= 0 {
		return errors.New("agent.poll_interval must be positive")
	}
	switch c.Trigger {
	case TriggerChange, TriggerAlways:
	default:
		return fmt.Errorf("agent.trigger: unknown trigger %q", c.Trigger)
	}
	switch c.OnAcquireError {
	case AcquireEmpty, AcquireSkip:
	default:
		return fmt.Errorf("agent.on_acquire_error: unknown policy %q", c.OnAcquireError)
	}
	return nil
}
