package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/HerbHall/netlogger/internal/change"
	"github.com/HerbHall/netlogger/internal/config"
	"github.com/HerbHall/netlogger/internal/netinfo"
	"github.com/HerbHall/netlogger/internal/state"
	"github.com/HerbHall/netlogger/pkg/models"
)

// showOutput is what the show command prints.
type showOutput struct {
	Hostname    string                        `json:"hostname"`
	Description string                        `json:"description"`
	Interfaces  []models.InterfaceObservation `json:"interfaces"`
	Stored      []models.InterfaceObservation `json:"stored"`
	SavedAt     string                        `json:"saved_at,omitempty"`
	Changed     bool                          `json:"changed"`
	Delta       change.Delta                  `json:"delta"`
	Errors      []string                      `json:"errors,omitempty"`
}

func runShow(args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, err := newLogger(*debug)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	_, settings, err := loadSettings(*configPath)
	if err != nil {
		return err
	}

	src := netinfo.NewOSSource(settings.Source, logger.Named("netinfo"))
	return show(context.Background(), os.Stdout, settings, src)
}

// show compares the live snapshot against stored state without writing
// anything.
func show(ctx context.Context, w io.Writer, s config.Settings, src netinfo.Source) error {
	out := showOutput{}

	md, err := netinfo.NewMetadataLoader(s.Metadata.Path).Load()
	if err != nil {
		out.Errors = append(out.Errors, err.Error())
	}
	out.Hostname, out.Description = md.Hostname, md.Description

	snap, err := src.Acquire(ctx)
	if err != nil {
		out.Errors = append(out.Errors, err.Error())
	}
	out.Interfaces = snap.Canonical()

	st, err := state.Open(ctx, s.State)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer st.Close()

	stored, err := st.Load(ctx)
	if err != nil {
		out.Errors = append(out.Errors, err.Error())
	}
	out.Stored = stored.Snapshot.Canonical()
	if !stored.SavedAt.IsZero() {
		out.SavedAt = stored.SavedAt.UTC().Format(time.RFC3339)
	}
	out.Changed = change.Changed(snap, stored.Snapshot)
	out.Delta = change.Diff(snap, stored.Snapshot)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
