// Package config wraps Viper and assembles the settings for every
// component of the logger.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/HerbHall/netlogger/internal/agent"
	"github.com/HerbHall/netlogger/internal/journal"
	"github.com/HerbHall/netlogger/internal/netinfo"
	"github.com/HerbHall/netlogger/internal/publish"
	"github.com/HerbHall/netlogger/internal/state"
)

// EnvPrefix is prepended to environment variable overrides, e.g.
// NETLOGGER_AGENT_POLL_INTERVAL.
const EnvPrefix = "NETLOGGER"

// Config is a nil-safe view over a Viper instance.
type Config struct {
	v *viper.Viper
}

// New wraps v. A nil v yields a Config that returns zero values.
func New(v *viper.Viper) *Config {
	return &Config{v: v}
}

// Unmarshal decodes the whole configuration into target.
func (c *Config) Unmarshal(target any) error {
	if c.v == nil {
		return nil
	}
	return c.v.Unmarshal(target)
}

// ConfigFile reports the file the settings were read from, if any.
func (c *Config) ConfigFile() string {
	if c.v == nil {
		return ""
	}
	return c.v.ConfigFileUsed()
}

// MetadataConfig locates the host metadata file.
type MetadataConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig controls the optional status server.
type ServerConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the server
}

// Settings is the fully decoded configuration.
type Settings struct {
	Agent    agent.Config   `mapstructure:"agent"`
	Source   netinfo.Config `mapstructure:"source"`
	Metadata MetadataConfig `mapstructure:"metadata"`
	State    state.Config   `mapstructure:"state"`
	Journal  journal.Config `mapstructure:"journal"`
	Publish  publish.Config `mapstructure:"publish"`
	Server   ServerConfig   `mapstructure:"server"`
}

// Validate checks every section and joins the failures.
func (s Settings) Validate() error {
	return errors.Join(
		s.Agent.Validate(),
		s.Source.Validate(),
		s.State.Validate(),
		s.Journal.Validate(),
		s.Publish.Validate(),
	)
}

// Load reads the YAML file at path (optional) and environment overrides
// on top of the built-in defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("netlogger")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return New(v), nil
}

// SetDefaults registers a default for every known key so that env
// overrides resolve and Unmarshal sees complete sections.
func SetDefaults(v *viper.Viper) {
	a := agent.DefaultConfig()
	v.SetDefault("agent.startup_delay", a.StartupDelay)
	v.SetDefault("agent.poll_interval", a.PollInterval)
	v.SetDefault("agent.trigger", a.Trigger)
	v.SetDefault("agent.on_acquire_error", a.OnAcquireError)

	src := netinfo.DefaultConfig()
	v.SetDefault("source.primary_only", src.PrimaryOnly)
	v.SetDefault("source.probe_addr", src.ProbeAddr)
	v.SetDefault("source.include", src.Include)
	v.SetDefault("source.exclude", src.Exclude)

	v.SetDefault("metadata.path", "metadata.yaml")

	st := state.DefaultConfig()
	v.SetDefault("state.backend", st.Backend)
	v.SetDefault("state.path", st.Path)

	j := journal.DefaultConfig()
	v.SetDefault("journal.format", j.Format)
	v.SetDefault("journal.path", j.Path)
	v.SetDefault("journal.dir", j.Dir)

	p := publish.DefaultConfig()
	v.SetDefault("publish.backend", p.Backend)
	v.SetDefault("publish.policy", p.Policy)
	v.SetDefault("publish.timeout", p.Timeout)
	v.SetDefault("publish.extra_files", p.ExtraFiles)
	v.SetDefault("publish.dir", p.Dir)
	v.SetDefault("publish.drive.folder_id", p.Drive.FolderID)
	v.SetDefault("publish.drive.credentials_file", p.Drive.CredentialsFile)
	v.SetDefault("publish.drive.client_secret_file", p.Drive.ClientSecretFile)
	v.SetDefault("publish.drive.token_file", p.Drive.TokenFile)
	v.SetDefault("publish.mqtt.broker", p.MQTT.Broker)
	v.SetDefault("publish.mqtt.client_id", p.MQTT.ClientID)
	v.SetDefault("publish.mqtt.username", p.MQTT.Username)
	v.SetDefault("publish.mqtt.password", p.MQTT.Password)
	v.SetDefault("publish.mqtt.topic_prefix", p.MQTT.TopicPrefix)
	v.SetDefault("publish.mqtt.qos", p.MQTT.QoS)

	v.SetDefault("server.addr", "")
}

// Settings decodes and validates the full configuration.
func (c *Config) Settings() (Settings, error) {
	s := Settings{
		Agent:   agent.DefaultConfig(),
		Source:  netinfo.DefaultConfig(),
		State:   state.DefaultConfig(),
		Journal: journal.DefaultConfig(),
		Publish: publish.DefaultConfig(),
	}
	if err := c.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid config: %w", err)
	}
	return s, nil
}
