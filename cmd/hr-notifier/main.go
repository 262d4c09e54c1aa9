package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mikey/hr-notifier/internal/adapters/ledger"
	"github.com/mikey/hr-notifier/internal/config"
	"github.com/mikey/hr-notifier/internal/core"
	"github.com/mikey/hr-notifier/internal/di"
	"github.com/mikey/hr-notifier/internal/ports"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

const usage = `Usage: hr-notifier <command> [flags]

Commands:
  serve          Run the HTTP API (default)
  remind         Send today's evaluation reminders and exit
  separations    Send the vendor separation notice and exit
  migrate        Manage the Postgres ledger schema (up, down, version)
  prune          Delete ledger entries older than -days days
`

func main() {
	command := "serve"
	args := os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		command, args = args[0], args[1:]
	}

	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	switch command {
	case "serve":
		err = container.Invoke(serve)
	case "remind":
		err = runReminders(container.Invoke, args)
	case "separations":
		err = runSeparations(container.Invoke, args)
	case "migrate":
		err = container.Invoke(func(cfg *config.Config, logger *zap.Logger) error {
			return migrateCommand(cfg, logger, args)
		})
	case "prune":
		err = runPrune(container.Invoke, args)
	default:
		fmt.Print(usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

type invoker func(function any, opts ...dig.InvokeOption) error

// serve runs the HTTP API until SIGINT or SIGTERM
func serve(logger *zap.Logger, server ports.Service, repo core.LedgerRepository) error {
	defer logger.Sync()
	defer repo.Close()

	if err := server.Start(); err != nil {
		logger.Error("Failed to start HTTP server", zap.Error(err))
		return err
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Error("Failed to stop HTTP server", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}

func runReminders(invoke invoker, args []string) error {
	fs := flag.NewFlagSet("remind", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "Compute batches without sending or recording")
	_ = fs.Parse(args)

	return invoke(func(logger *zap.Logger, runner ports.ReminderRunner, repo core.LedgerRepository) error {
		defer logger.Sync()
		defer repo.Close()

		summary, err := runner.RunReminders(context.Background(), *dryRun)
		printSummary(summary)
		return err
	})
}

func runSeparations(invoke invoker, args []string) error {
	fs := flag.NewFlagSet("separations", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "Compute the notice without sending or recording")
	from := fs.String("from", "", "Range start (YYYY-MM-DD)")
	to := fs.String("to", "", "Range end (YYYY-MM-DD)")
	_ = fs.Parse(args)

	return invoke(func(logger *zap.Logger, runner ports.ReminderRunner, repo core.LedgerRepository) error {
		defer logger.Sync()
		defer repo.Close()

		rng, err := parseRange(runner.Today(), *from, *to)
		if err != nil {
			return err
		}

		summary, err := runner.NotifySeparations(context.Background(), rng, *dryRun)
		printSummary(summary)
		return err
	})
}

func runPrune(invoke invoker, args []string) error {
	fs := flag.NewFlagSet("prune", flag.ExitOnError)
	days := fs.Int("days", ledger.DefaultFileRetentionDays, "Retention in days")
	_ = fs.Parse(args)

	return invoke(func(logger *zap.Logger, runner ports.ReminderRunner, repo core.LedgerRepository) error {
		defer logger.Sync()
		defer repo.Close()

		removed, err := runner.PruneLedger(context.Background(), *days)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d ledger entries older than %d days\n", removed, *days)
		return nil
	})
}

func migrateCommand(cfg *config.Config, logger *zap.Logger, args []string) error {
	defer logger.Sync()

	ledgerCfg, err := cfg.GetLedger()
	if err != nil {
		return err
	}
	if ledgerCfg.Driver != "postgres" || ledgerCfg.DSN == "" {
		return fmt.Errorf("migrate requires ledger.driver=postgres and ledger.dsn")
	}

	action := "up"
	if len(args) > 0 {
		action = args[0]
	}

	switch action {
	case "up":
		if err := ledger.RunMigrations(ledgerCfg.DSN); err != nil {
			return err
		}
		logger.Info("Ledger schema is up to date")
	case "down":
		if err := ledger.RollbackMigrations(ledgerCfg.DSN); err != nil {
			return err
		}
		logger.Info("Ledger schema rolled back")
	case "version":
		version, dirty, err := ledger.MigrationVersion(ledgerCfg.DSN)
		if err != nil {
			return err
		}
		fmt.Printf("version=%d dirty=%t\n", version, dirty)
	default:
		return fmt.Errorf("unknown migrate action: %s", action)
	}
	return nil
}

// parseRange builds the separation range from optional flags. Empty flags mean the default range.
func parseRange(today time.Time, from, to string) (*core.DateRange, error) {
	if from == "" && to == "" {
		return nil, nil
	}

	start, end := today, today
	var err error
	if from != "" {
		if start, err = core.ParseDate(from); err != nil {
			return nil, err
		}
	}
	if to != "" {
		if end, err = core.ParseDate(to); err != nil {
			return nil, err
		}
	}

	rng, err := core.NewDateRange(start, end)
	if err != nil {
		return nil, err
	}
	return &rng, nil
}

func printSummary(summary *core.RunSummary) {
	if summary == nil {
		return
	}
	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return
	}
	fmt.Println(string(out))
}
