package publish

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestError_WrapsAndUnwraps(t *testing.T) {
	base := errors.New("network unreachable")
	err := wrapErr(BackendDir, "/tmp/x.log", base)

	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, BackendDir, pe.Backend)
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "/tmp/x.log")

	// Already-typed errors are not double wrapped.
	assert.Same(t, err, wrapErr(BackendDrive, "other", err))
	assert.NoError(t, wrapErr(BackendDir, "x", nil))
}

func TestNoopPublisher(t *testing.T) {
	p := NewNoopPublisher(zap.NewNop())
	assert.Equal(t, BackendNone, p.Name())
	assert.NoError(t, p.Publish(context.Background(), "/does/not/matter", Replace))
}

func TestDirPublisher_ReplaceAndSkip(t *testing.T) {
	src := t.TempDir()
	remote := filepath.Join(t.TempDir(), "remote")
	p := NewDirPublisher(remote, zap.NewNop())
	ctx := context.Background()

	path := writeFile(t, src, "network.log", "v1")
	require.NoError(t, p.Publish(ctx, path, Replace))
	require.NoError(t, p.Publish(ctx, path, Replace)) // idempotent

	writeFile(t, src, "network.log", "v2")
	require.NoError(t, p.Publish(ctx, path, Replace))
	got, err := os.ReadFile(filepath.Join(remote, "network.log"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))

	writeFile(t, src, "network.log", "v3")
	require.NoError(t, p.Publish(ctx, path, SkipExisting))
	got, err = os.ReadFile(filepath.Join(remote, "network.log"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got), "SkipExisting must not overwrite")
}

func TestDirPublisher_MissingSource(t *testing.T) {
	p := NewDirPublisher(t.TempDir(), zap.NewNop())
	err := p.Publish(context.Background(), filepath.Join(t.TempDir(), "gone.log"), Replace)

	var pe *Error
	assert.True(t, errors.As(err, &pe))
}

func TestDirPublisher_CancelledContext(t *testing.T) {
	p := NewDirPublisher(t.TempDir(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Publish(ctx, writeFile(t, t.TempDir(), "a.log", "x"), Replace)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown backend", func(c *Config) { c.Backend = "s3" }, true},
		{"unknown policy", func(c *Config) { c.Policy = "sometimes" }, true},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, true},
		{"dir without path", func(c *Config) { c.Backend = BackendDir }, true},
		{"dir", func(c *Config) { c.Backend = BackendDir; c.Dir = "/mnt/share" }, false},
		{"drive without auth", func(c *Config) { c.Backend = BackendDrive }, true},
		{"drive service account", func(c *Config) {
			c.Backend = BackendDrive
			c.Drive.CredentialsFile = "sa.json"
		}, false},
		{"drive both auth", func(c *Config) {
			c.Backend = BackendDrive
			c.Drive.CredentialsFile = "sa.json"
			c.Drive.TokenFile = "token.json"
		}, true},
		{"mqtt without broker", func(c *Config) { c.Backend = BackendMQTT }, true},
		{"mqtt bad qos", func(c *Config) {
			c.Backend = BackendMQTT
			c.MQTT.Broker = "tcp://localhost:1883"
			c.MQTT.QoS = 3
		}, true},
		{"mqtt", func(c *Config) {
			c.Backend = BackendMQTT
			c.MQTT.Broker = "tcp://localhost:1883"
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_SelectsBackend(t *testing.T) {
	ctx := context.Background()

	p, err := New(ctx, DefaultConfig(), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, BackendNone, p.Name())

	cfg := DefaultConfig()
	cfg.Backend = BackendDir
	cfg.Dir = t.TempDir()
	p, err = New(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, BackendDir, p.Name())

	cfg = DefaultConfig()
	cfg.Backend = BackendMQTT
	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.Timeout = time.Second
	p, err = New(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, BackendMQTT, p.Name())
}
