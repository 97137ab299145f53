package journal

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/HerbHall/netlogger/pkg/models"
)

const blockRule = "=========="

// Compile-time interface guard.
var _ Recorder = (*TextLog)(nil)

// TextLog appends one human-readable block per record to a log file.
// Existing content is never truncated or rewritten.
type TextLog struct {
	path string
}

// NewTextLog returns a TextLog appending to path.
func NewTextLog(path string) *TextLog {
	return &TextLog{path: path}
}

func (l *TextLog) Path(string) string { return l.path }

func (l *TextLog) Record(_ context.Context, rec models.LogRecord) error {
	block := FormatBlock(rec)

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
	}

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open log %q: %w", l.path, err)
	}
	// The whole block goes out in one write so a crash leaves at most one
	// partial trailing block.
	if _, err := f.Write(block); err != nil {
		f.Close()
		return fmt.Errorf("append log %q: %w", l.path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync log %q: %w", l.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close log %q: %w", l.path, err)
	}
	return nil
}

// FormatBlock renders rec as a self-contained, delimited text block.
func FormatBlock(rec models.LogRecord) []byte {
	var buf bytes.Buffer
	header := fmt.Sprintf("%s %s %s", blockRule, rec.Timestamp.UTC().Format(time.RFC3339), blockRule)
	fmt.Fprintln(&buf, header)

	tw := tabwriter.NewWriter(&buf, 0, 0, 1, ' ', 0)
	fmt.Fprintf(tw, "Record:\t%s\n", rec.ID)
	fmt.Fprintf(tw, "Hostname:\t%s\n", rec.Hostname)
	fmt.Fprintf(tw, "Description:\t%s\n", rec.Description)
	fmt.Fprintf(tw, "Interfaces:\t%d\n", rec.Snapshot.Len())
	tw.Flush()

	if rec.Snapshot.IsEmpty() {
		fmt.Fprintln(&buf, "  (no active interfaces)")
	} else {
		tw = tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		for _, o := range rec.Snapshot.Canonical() {
			fmt.Fprintf(tw, "  %s\tmac=%s\tip=%s\n", o.Name, o.MACAddress, o.IPAddress)
		}
		tw.Flush()
	}

	fmt.Fprintln(&buf, strings.Repeat("=", len(header)))
	return buf.Bytes()
}
