package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/netlogger/internal/backup"
	"github.com/HerbHall/netlogger/internal/config"
	"github.com/HerbHall/netlogger/internal/journal"
	"github.com/HerbHall/netlogger/internal/netinfo"
	"github.com/HerbHall/netlogger/internal/state"
)

func runBackup(args []string) error {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	output := fs.String("output", "", "output file path (default: netlogger-backup-{timestamp}.tar.gz)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, err := newLogger(*debug)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, settings, err := loadSettings(*configPath)
	if err != nil {
		return err
	}

	if *output == "" {
		*output = fmt.Sprintf("netlogger-backup-%s.tar.gz", time.Now().Format("20060102-150405"))
	}

	files, err := backupFiles(settings, cfg.ConfigFile(), logger)
	if err != nil {
		return err
	}
	if err := backup.Backup(context.Background(), files, *output); err != nil {
		return err
	}
	fmt.Printf("Backup created: %s\n", *output)
	return nil
}

// backupFiles resolves the local files to archive. The journal path can
// depend on the hostname (identity files).
func backupFiles(s config.Settings, configFile string, logger *zap.Logger) (backup.Files, error) {
	md, err := netinfo.NewMetadataLoader(s.Metadata.Path).Load()
	if err != nil {
		logger.Warn("metadata file unusable, using defaults",
			zap.String("path", s.Metadata.Path), zap.Error(err))
	}
	rec, err := journal.New(s.Journal)
	if err != nil {
		return backup.Files{}, err
	}
	return backup.Files{
		State:       s.State.Path,
		StateSQLite: s.State.Backend == state.BackendSQLite,
		Journal:     rec.Path(md.Hostname),
		Config:      configFile,
	}, nil
}
