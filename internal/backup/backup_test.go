package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/HerbHall/netlogger/internal/state"
	"github.com/HerbHall/netlogger/internal/testutil"
	"github.com/HerbHall/netlogger/pkg/models"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestBackupRestore_FileState(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()

	st := state.NewFileStore(filepath.Join(src, "state.json"))
	snap := testutil.Snapshot(testutil.NewObservation())
	if err := st.Save(ctx, snap); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	journalPath := filepath.Join(src, "network.log")
	writeFile(t, journalPath, "========== block ==========\n")
	configPath := filepath.Join(src, "netlogger.yaml")
	writeFile(t, configPath, "agent:\n  poll_interval: 5m\n")

	archive := filepath.Join(t.TempDir(), "backup.tar.gz")
	err := Backup(ctx, Files{State: st.Path(), Journal: journalPath, Config: configPath}, archive)
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	dst := t.TempDir()
	m, err := Restore(ctx, archive, dst, false)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if m.Version != "dev" {
		t.Errorf("manifest version = %q, want dev", m.Version)
	}
	want := map[string]string{"state.json": "state", "network.log": "journal", "netlogger.yaml": "config"}
	for name, role := range want {
		if m.Entries[name] != role {
			t.Errorf("manifest entry %q = %q, want %q", name, m.Entries[name], role)
		}
	}

	got, err := state.NewFileStore(filepath.Join(dst, "state.json")).Load(ctx)
	if err != nil {
		t.Fatalf("restored Load() error = %v", err)
	}
	if got.Snapshot.Len() != 1 || got.Snapshot.Canonical()[0] != snap.Canonical()[0] {
		t.Errorf("restored snapshot = %v, want %v", got.Snapshot.Canonical(), snap.Canonical())
	}
	data, err := os.ReadFile(filepath.Join(dst, "network.log"))
	if err != nil || string(data) != "========== block ==========\n" {
		t.Errorf("restored journal = %q, %v", data, err)
	}
}

func TestBackupRestore_SQLiteState(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "state.db")

	st, err := state.OpenSQLite(ctx, dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	snap := testutil.Snapshot(
		testutil.NewObservation(),
		testutil.NewObservation(testutil.WithName("wlan0"), testutil.WithIP("192.168.1.20")),
	)
	if err := st.Save(ctx, snap); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	archive := filepath.Join(t.TempDir(), "backup.tar.gz")
	if err := Backup(ctx, Files{State: dbPath, StateSQLite: true}, archive); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	dst := t.TempDir()
	if _, err := Restore(ctx, archive, dst, false); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	restored, err := state.OpenSQLite(ctx, filepath.Join(dst, "state.db"))
	if err != nil {
		t.Fatalf("open restored: %v", err)
	}
	defer restored.Close()
	got, err := restored.Load(ctx)
	if err != nil {
		t.Fatalf("restored Load() error = %v", err)
	}
	if got.Snapshot.Len() != 2 {
		t.Errorf("restored %d interfaces, want 2", got.Snapshot.Len())
	}
}

func TestBackup_MissingState(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "backup.tar.gz")
	err := Backup(context.Background(), Files{State: filepath.Join(t.TempDir(), "absent.json")}, archive)
	if err == nil {
		t.Fatal("Backup() should fail without a state file")
	}
	if _, statErr := os.Stat(archive); statErr == nil {
		t.Error("no archive should be left behind")
	}
}

func TestBackup_SkipsMissingOptionalFiles(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "state.json")
	if err := state.NewFileStore(statePath).Save(context.Background(), models.Snapshot{}); err != nil {
		t.Fatal(err)
	}

	archive := filepath.Join(t.TempDir(), "backup.tar.gz")
	err := Backup(context.Background(), Files{
		State:   statePath,
		Journal: filepath.Join(dir, "network.log"),
	}, archive)
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	m, err := Restore(context.Background(), archive, t.TempDir(), false)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if len(m.Entries) != 1 {
		t.Errorf("entries = %v, want state only", m.Entries)
	}
}

func TestRestore_RefusesOverwriteWithoutForce(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	statePath := filepath.Join(src, "state.json")
	if err := state.NewFileStore(statePath).Save(ctx, models.Snapshot{}); err != nil {
		t.Fatal(err)
	}
	archive := filepath.Join(t.TempDir(), "backup.tar.gz")
	if err := Backup(ctx, Files{State: statePath}, archive); err != nil {
		t.Fatal(err)
	}

	dst := t.TempDir()
	writeFile(t, filepath.Join(dst, "state.json"), "existing")

	_, err := Restore(ctx, archive, dst, false)
	if !errors.Is(err, ErrExists) {
		t.Fatalf("Restore() error = %v, want ErrExists", err)
	}
	if data, _ := os.ReadFile(filepath.Join(dst, "state.json")); string(data) != "existing" {
		t.Error("existing file must be untouched")
	}

	if _, err := Restore(ctx, archive, dst, true); err != nil {
		t.Fatalf("Restore(force) error = %v", err)
	}
	if _, err := state.NewFileStore(filepath.Join(dst, "state.json")).Load(ctx); err != nil {
		t.Errorf("forced restore left unreadable state: %v", err)
	}
}

// writeArchive builds a tar.gz holding the given name/content pairs in order.
func writeArchive(t *testing.T, entries ...[2]string) string {
	t.Helper()
	archive := filepath.Join(t.TempDir(), "crafted.tar.gz")
	f, err := os.Create(archive)
	if err != nil {
		t.Fatal(err)
	}
	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	for _, e := range entries {
		body := []byte(e[1])
		if err := tw.WriteHeader(&tar.Header{Name: e[0], Mode: 0o644, Size: int64(len(body))}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write(body); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return archive
}

func TestRestore_ConflictLeavesDataDirUntouched(t *testing.T) {
	archive := writeArchive(t,
		[2]string{"a_state.json", "NEW-STATE"},
		[2]string{"z_network.log", "NEW-LOG"},
	)
	dst := t.TempDir()
	writeFile(t, filepath.Join(dst, "z_network.log"), "OLD-LOG")

	_, err := Restore(context.Background(), archive, dst, false)
	if !errors.Is(err, ErrExists) {
		t.Fatalf("Restore() error = %v, want ErrExists", err)
	}

	if _, err := os.Stat(filepath.Join(dst, "a_state.json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("a_state.json must not be restored when another entry conflicts (stat err = %v)", err)
	}
	if data, _ := os.ReadFile(filepath.Join(dst, "z_network.log")); string(data) != "OLD-LOG" {
		t.Errorf("z_network.log = %q, want untouched", data)
	}
	left, err := os.ReadDir(dst)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 1 {
		t.Errorf("data dir holds %d entries, want only the existing journal (staging must be removed)", len(left))
	}
}

func TestRestore_RejectsPathTraversal(t *testing.T) {
	archive := writeArchive(t, [2]string{"../escape.txt", "pwned"})

	dst := filepath.Join(t.TempDir(), "data")
	if _, err := Restore(context.Background(), archive, dst, true); err == nil {
		t.Fatal("Restore() should reject entries outside the data dir")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dst), "escape.txt")); err == nil {
		t.Error("traversal entry was written")
	}
}
