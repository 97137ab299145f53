package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/HerbHall/netlogger/internal/backup"
)

func runRestore(args []string) error {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	input := fs.String("input", "", "backup archive to restore (required)")
	dataDir := fs.String("data-dir", ".", "target directory for restored files")
	force := fs.Bool("force", false, "overwrite existing files")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *input == "" {
		fmt.Fprintln(os.Stderr, "error: -input is required")
		fs.Usage()
		return errors.New("missing -input")
	}

	m, err := backup.Restore(context.Background(), *input, *dataDir, *force)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(m.Entries))
	for name := range m.Entries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-8s %s\n", m.Entries[name], name)
	}
	fmt.Printf("Restore complete: files restored to %s\n", *dataDir)
	return nil
}
