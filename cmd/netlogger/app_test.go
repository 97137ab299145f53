package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/HerbHall/netlogger/internal/agent"
	"github.com/HerbHall/netlogger/internal/config"
	"github.com/HerbHall/netlogger/internal/journal"
	"github.com/HerbHall/netlogger/internal/netinfo"
	"github.com/HerbHall/netlogger/internal/publish"
	"github.com/HerbHall/netlogger/internal/state"
	"github.com/HerbHall/netlogger/internal/testutil"
	"github.com/HerbHall/netlogger/pkg/models"
)

type staticSource struct{ snap models.Snapshot }

func (s staticSource) Acquire(context.Context) (models.Snapshot, error) { return s.snap, nil }

func testSettings(t *testing.T) config.Settings {
	t.Helper()
	dir := t.TempDir()
	metaPath := filepath.Join(dir, "metadata.yaml")
	require.NoError(t, os.WriteFile(metaPath, []byte("hostname: kiosk-7\ndescription: front desk\n"), 0o644))

	s := config.Settings{
		Agent:    agent.DefaultConfig(),
		Source:   netinfo.DefaultConfig(),
		Metadata: config.MetadataConfig{Path: metaPath},
		State:    state.Config{Backend: state.BackendSQLite, Path: filepath.Join(dir, "state.db")},
		Journal:  journal.Config{Format: journal.FormatJSON, Path: filepath.Join(dir, "network.log"), Dir: dir},
		Publish:  publish.DefaultConfig(),
	}
	s.Publish.Backend = publish.BackendDir
	s.Publish.Dir = filepath.Join(dir, "remote")
	require.NoError(t, s.Validate())
	return s
}

func TestNewApp_TickRecordsAndPublishes(t *testing.T) {
	s := testSettings(t)
	s.Agent.Trigger = agent.TriggerAlways
	ctx := context.Background()

	a, err := newApp(ctx, s, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	assert.Nil(t, a.server, "server disabled without an address")

	res := a.agent.Tick(ctx)
	require.Equal(t, agent.OutcomeRecorded, res.Outcome, "record error: %v", res.RecordErr)
	require.Empty(t, res.PublishErrs)
	require.NoError(t, res.SaveErr)

	name := "kiosk-7_Network_ID.json"
	assert.FileExists(t, filepath.Join(s.Journal.Dir, name))
	assert.FileExists(t, filepath.Join(s.Publish.Dir, name))
}

func TestNewApp_ServerEnabled(t *testing.T) {
	s := testSettings(t)
	s.Server.Addr = "127.0.0.1:0"

	a, err := newApp(context.Background(), s, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	assert.NotNil(t, a.server)
}

func TestShow_ReportsDeltaWithoutWriting(t *testing.T) {
	s := testSettings(t)
	s.State = state.Config{Backend: state.BackendFile, Path: filepath.Join(t.TempDir(), "state.json")}
	snap := testutil.Snapshot(testutil.NewObservation())

	var buf bytes.Buffer
	require.NoError(t, show(context.Background(), &buf, s, staticSource{snap}))

	var out showOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "kiosk-7", out.Hostname)
	assert.Equal(t, "front desk", out.Description)
	assert.True(t, out.Changed)
	assert.Equal(t, []string{"eth0"}, out.Delta.Added)
	assert.Empty(t, out.Stored)
	assert.NoFileExists(t, s.State.Path)
}

func TestBackupFiles_IdentityJournalByHostname(t *testing.T) {
	s := testSettings(t)

	files, err := backupFiles(s, "/etc/netlogger.yaml", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, s.State.Path, files.State)
	assert.True(t, files.StateSQLite)
	assert.Equal(t, filepath.Join(s.Journal.Dir, "kiosk-7_Network_ID.json"), files.Journal)
	assert.Equal(t, "/etc/netlogger.yaml", files.Config)
}

func TestBackupFiles_LogsMetadataError(t *testing.T) {
	s := testSettings(t)
	require.NoError(t, os.WriteFile(s.Metadata.Path, []byte("hostname: [unterminated\n"), 0o644))

	core, logs := observer.New(zapcore.WarnLevel)
	files, err := backupFiles(s, "", zap.New(core))
	require.NoError(t, err)
	assert.NotEmpty(t, files.Journal, "falls back to the OS hostname")

	entries := logs.FilterMessage("metadata file unusable, using defaults").All()
	require.Len(t, entries, 1)
	assert.Equal(t, s.Metadata.Path, entries[0].ContextMap()["path"])
}
