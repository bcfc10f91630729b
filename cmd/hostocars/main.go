package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/example/hostocars/internal/config"
	"github.com/example/hostocars/internal/logging"
	"github.com/example/hostocars/internal/persistence/sqlite"
	"github.com/example/hostocars/internal/persistence/sqlite/migration"
	"github.com/example/hostocars/internal/persistence/sqlite/migrations"
	"github.com/example/hostocars/internal/telemetry"
)

const usage = `usage: hostocars [-config file] [run|status|version]

  run      bring the database to the project version and hold it open (default)
  status   print what run would do without changing anything
  version  print the project and schema versions
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("hostocars", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configFile := fs.String("config", "", "INI configuration file (overrides "+config.FileEnv+")")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	command := "run"
	switch fs.NArg() {
	case 0:
	case 1:
		command = fs.Arg(0)
	default:
		fs.Usage()
		return 2
	}

	if *configFile != "" {
		if err := os.Setenv(config.FileEnv, *configFile); err != nil {
			fmt.Fprintf(stderr, "set %s: %v\n", config.FileEnv, err)
			return 1
		}
	}

	cfg, err := config.Load()
	if err != nil {
		logging.New(stderr, slog.LevelInfo, "json").Error("failed to load configuration", "error", err)
		return 1
	}
	logger := logging.New(stderr, cfg.Level(), cfg.LogFormat)
	ctx = logging.ContextWithLogger(ctx, logger)

	switch command {
	case "run":
		err = serve(ctx, cfg)
	case "status":
		err = status(ctx, cfg, stdout)
	case "version":
		fmt.Fprintf(stdout, "hostocars %s (schema %s)\n", cfg.ProjectVersion, migrations.Latest)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", command)
		fs.Usage()
		return 2
	}
	if err != nil {
		logger.Error("hostocars failed", "command", command, "error", err)
		return 1
	}
	return 0
}

func storageOptions(cfg config.Config, logger *slog.Logger) sqlite.Options {
	return sqlite.Options{
		Database:     cfg.Migration(),
		BackupDir:    cfg.BackupDir,
		BackupRetain: cfg.BackupRetain,
		Logger:       logger,
	}
}

// serve opens the storage and holds it until ctx is done.
func serve(ctx context.Context, cfg config.Config) (err error) {
	logger := logging.FromContext(ctx)

	shutdown, err := telemetry.Setup(ctx, cfg.OTelEndpoint, cfg.ProjectVersion)
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := shutdown(flushCtx); serr != nil {
			logger.Warn("failed to flush traces", "error", serr)
		}
	}()

	// A started migration runs to completion; signals only end the hold below.
	storage, err := sqlite.Open(context.WithoutCancel(ctx), storageOptions(cfg, logger))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
			err = errors.Join(err, cerr)
		}
	}()

	logger.Info("hostocars database ready", "path", cfg.DBPath, "version", cfg.ProjectVersion)
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// status prints the migration plan.
func status(ctx context.Context, cfg config.Config, out io.Writer) error {
	engine, err := sqlite.NewEngine(storageOptions(cfg, logging.FromContext(ctx)))
	if err != nil {
		return err
	}
	defer engine.Close()

	plan, err := engine.Plan(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "database: %s\n", cfg.DBPath)
	if plan.Existed {
		fmt.Fprintf(out, "stored:   %s\n", plan.Stored)
	} else {
		fmt.Fprintln(out, "stored:   none")
	}
	fmt.Fprintf(out, "target:   %s\n", plan.Target)
	fmt.Fprintf(out, "state:    %s\n", plan.State)
	if len(plan.Pending) > 0 {
		pending := make([]string, len(plan.Pending))
		for i, v := range plan.Pending {
			pending[i] = v.String()
		}
		fmt.Fprintf(out, "pending:  %s\n", strings.Join(pending, ", "))
	}
	if plan.State == migration.StateAhead {
		fmt.Fprintln(out, "the database is newer than this application; restore a backup or upgrade the application")
	}
	return nil
}
