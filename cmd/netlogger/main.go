// Command netlogger records changes to the host's network identity and
// publishes the record to remote storage.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/netlogger/internal/config"
	"github.com/HerbHall/netlogger/internal/fsutil"
	"github.com/HerbHall/netlogger/internal/version"
)

const usage = `usage: netlogger <command> [flags]

commands:
  run       poll and record network changes until interrupted (default)
  once      run a single polling tick and exit
  show      print the current network snapshot as JSON
  backup    archive state, journal and config
  restore   restore files from a backup archive
  version   print version information
`

func main() {
	cmd, args := "run", os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "run":
		err = runAgent(args, false)
	case "once":
		err = runAgent(args, true)
	case "show":
		err = runShow(args)
	case "backup":
		err = runBackup(args)
	case "restore":
		err = runRestore(args)
	case "version":
		fmt.Println(version.Info())
	case "help", "-h", "-help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", cmd, err)
		os.Exit(1)
	}
}

// commonFlags registers the flags every agent-facing command accepts.
func commonFlags(fs *flag.FlagSet) (configPath *string, debug *bool) {
	configPath = fs.String("config", "", "path to configuration file (default: ./netlogger.yaml if present)")
	debug = fs.Bool("debug", false, "enable development logging")
	return configPath, debug
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func loadSettings(path string) (*config.Config, config.Settings, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, config.Settings{}, err
	}
	s, err := cfg.Settings()
	if err != nil {
		return nil, config.Settings{}, err
	}
	return cfg, s, nil
}

func runAgent(args []string, once bool) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
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
		logger.Error("failed to load configuration", zap.Error(err))
		return err
	}
	if f := cfg.ConfigFile(); f != "" {
		logger.Info("configuration loaded", zap.String("file", f))
	}

	lock, err := fsutil.TryLock(settings.State.Path + ".lock")
	if err != nil {
		logger.Error("another netlogger instance owns this state", zap.Error(err))
		return err
	}
	defer func() { _ = lock.Unlock() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, settings, logger)
	if err != nil {
		logger.Error("failed to initialize", zap.Error(err))
		return err
	}
	defer app.Close()

	if once {
		res := app.agent.Tick(ctx)
		logger.Info("tick complete", zap.String("outcome", string(res.Outcome)))
		return errors.Join(res.PanicErr, res.RecordErr)
	}

	if app.server != nil {
		go func() {
			if err := app.server.Start(); err != nil {
				logger.Error("status server error", zap.Error(err))
			}
		}()
	}

	logger.Info("netlogger ready", zap.String("version", version.Short()))
	runErr := app.agent.Run(ctx)

	if app.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}

	logger.Info("netlogger stopped")
	return runErr
}
