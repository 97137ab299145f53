// Package backup provides tar.gz-based backup and restore for the
// logger's local files: stored state, the journal, and the config file.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/HerbHall/netlogger/internal/fsutil"
	"github.com/HerbHall/netlogger/internal/store"
	"github.com/HerbHall/netlogger/internal/version"
)

// ManifestName is the archive entry describing the backup.
const ManifestName = "manifest.json"

// maxEntrySize bounds a single restored file.
const maxEntrySize = 256 << 20

// ErrExists is returned by Restore when a target file exists and force is
// not set.
var ErrExists = errors.New("file already exists")

// Files names the local files to archive. Empty paths are skipped, as are
// optional files that do not exist.
type Files struct {
	State       string
	StateSQLite bool // checkpoint the WAL before copying State
	Journal     string
	Config      string
}

// Manifest is written as the first archive entry.
type Manifest struct {
	Version   string            `json:"version"`
	CreatedAt time.Time         `json:"created_at"`
	Entries   map[string]string `json:"entries"` // archive name -> role
}

// Backup writes a tar.gz archive of files to outputPath. The state file
// must exist; the journal and config are included when present.
func Backup(ctx context.Context, files Files, outputPath string) (err error) {
	if _, err := os.Stat(files.State); err != nil {
		return fmt.Errorf("state file not found: %w", err)
	}

	if files.StateSQLite {
		if err := checkpointWAL(ctx, files.State); err != nil {
			return fmt.Errorf("WAL checkpoint failed: %w", err)
		}
	}

	type entry struct{ path, role string }
	entries := []entry{{files.State, "state"}}
	for _, e := range []entry{{files.Journal, "journal"}, {files.Config, "config"}} {
		if e.path == "" || !fsutil.Exists(e.path) {
			continue
		}
		entries = append(entries, e)
	}

	manifest := Manifest{
		Version:   version.Short(),
		CreatedAt: time.Now().UTC(),
		Entries:   make(map[string]string, len(entries)),
	}
	for _, e := range entries {
		name := filepath.Base(e.path)
		if _, dup := manifest.Entries[name]; dup {
			return fmt.Errorf("two files share the archive name %q", name)
		}
		manifest.Entries[name] = e.role
	}

	outFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer func() {
		if cerr := outFile.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(outputPath)
		}
	}()

	gw := gzip.NewWriter(outFile)
	tw := tar.NewWriter(gw)

	if err := addManifest(tw, manifest); err != nil {
		return fmt.Errorf("adding manifest: %w", err)
	}
	for _, e := range entries {
		if err := addFileToTar(tw, e.path, filepath.Base(e.path)); err != nil {
			return fmt.Errorf("adding %s to archive: %w", e.role, err)
		}
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gw.Close()
}

// checkpointWAL flushes the SQLite WAL into the main database file so the
// copied file is self-contained.
func checkpointWAL(ctx context.Context, dbPath string) error {
	db, err := store.New(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Checkpoint(ctx)
}

func addManifest(tw *tar.Writer, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	hdr := &tar.Header{
		Name:    ManifestName,
		Mode:    0o644,
		Size:    int64(len(data)),
		ModTime: m.CreatedAt,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = tw.Write(data)
	return err
}

// addFileToTar adds a single file to the tar archive under the given name.
func addFileToTar(tw *tar.Writer, filePath, archiveName string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = archiveName

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}

	_, err = io.Copy(tw, f)
	return err
}

// Restore extracts the archive at inputPath into dataDir and returns the
// manifest. Entries are staged in a temporary directory first; nothing in
// dataDir changes unless every entry extracts cleanly and, without force,
// none of the targets exists.
func Restore(ctx context.Context, inputPath, dataDir string, force bool) (Manifest, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return Manifest{}, fmt.Errorf("creating data dir: %w", err)
	}
	staging, err := os.MkdirTemp(dataDir, ".restore-*")
	if err != nil {
		return Manifest{}, fmt.Errorf("creating staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	manifest, names, err := extract(ctx, inputPath, staging)
	if err != nil {
		return manifest, err
	}

	if !force {
		var conflicts []error
		for _, name := range names {
			dst := filepath.Join(dataDir, name)
			if fsutil.Exists(dst) {
				conflicts = append(conflicts, fmt.Errorf("%s: %w", dst, ErrExists))
			}
		}
		if len(conflicts) > 0 {
			return manifest, fmt.Errorf("%w (use -force to overwrite)", errors.Join(conflicts...))
		}
	}

	for _, name := range names {
		if err := os.Rename(filepath.Join(staging, name), filepath.Join(dataDir, name)); err != nil {
			return manifest, fmt.Errorf("restoring %s: %w", name, err)
		}
	}
	return manifest, fsutil.SyncDir(dataDir)
}

// extract unpacks every regular file of the archive into dir and returns
// the manifest and the restored file names.
func extract(ctx context.Context, inputPath, dir string) (Manifest, []string, error) {
	var manifest Manifest

	f, err := os.Open(inputPath)
	if err != nil {
		return manifest, nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return manifest, nil, fmt.Errorf("reading gzip: %w", err)
	}
	defer gr.Close()

	var names []string
	seen := make(map[string]bool)
	tr := tar.NewReader(gr)
	for {
		if err := ctx.Err(); err != nil {
			return manifest, nil, err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return manifest, nil, fmt.Errorf("reading archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name := filepath.Base(filepath.Clean(hdr.Name))
		if name != hdr.Name || name == "." || name == ".." {
			return manifest, nil, fmt.Errorf("unsafe archive entry %q", hdr.Name)
		}
		if hdr.Size > maxEntrySize {
			return manifest, nil, fmt.Errorf("archive entry %q too large (%d bytes)", name, hdr.Size)
		}

		if name == ManifestName {
			if err := json.NewDecoder(io.LimitReader(tr, hdr.Size)).Decode(&manifest); err != nil {
				return manifest, nil, fmt.Errorf("decoding manifest: %w", err)
			}
			continue
		}

		if err := fsutil.CopyReaderAtomic(io.LimitReader(tr, hdr.Size), filepath.Join(dir, name), hdr.FileInfo().Mode().Perm()); err != nil {
			return manifest, nil, fmt.Errorf("extracting %s: %w", name, err)
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return manifest, names, nil
}
