package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mikey/hr-notifier/internal/core"
	"github.com/mikey/hr-notifier/internal/di"
	"github.com/mikey/hr-notifier/internal/ports"
	"go.uber.org/zap"
)

func main() {
	// Parse command line flags
	flags := di.ParseFlags()

	// Build the dependency injection container
	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	err = container.Invoke(func(
		logger *zap.Logger,
		runner ports.ReminderRunner,
		repo core.LedgerRepository,
	) error {
		defer logger.Sync()
		defer repo.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		logger.Debug("Starting run",
			zap.String("mode", flags.Mode),
			zap.Bool("dry_run", flags.DryRun),
			zap.String("backend", string(runner.Backend())))

		switch flags.Mode {
		case "remind":
			summary, err := runner.RunReminders(ctx, flags.DryRun)
			printSummary("Reminders", summary)
			return err
		case "separations":
			rng, err := parseRange(runner.Today(), flags.From, flags.To)
			if err != nil {
				return err
			}
			summary, err := runner.NotifySeparations(ctx, rng, flags.DryRun)
			printSummary("Separations", summary)
			return err
		case "preview":
			rows, err := runner.Preview(ctx)
			if err != nil {
				return err
			}
			printPreview(runner.Today(), rows)
			return nil
		default:
			return fmt.Errorf("unknown mode: %s", flags.Mode)
		}
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

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

func printSummary(title string, summary *core.RunSummary) {
	if summary == nil {
		return
	}

	fmt.Printf("\n=== %s ===\n", title)
	fmt.Printf("Run ID: %s\n", summary.RunID)
	fmt.Printf("Date: %s\n", summary.Date)
	fmt.Printf("Ledger: %s\n", summary.Backend)
	if summary.DryRun {
		fmt.Println("Dry run: nothing was sent or recorded")
	}
	fmt.Printf("Sent: %d\n", summary.Sent)
	fmt.Printf("Skipped (already sent): %d\n", summary.SkippedDuplicate)
	fmt.Printf("Failed: %d\n", summary.Failed)
	fmt.Printf("Dropped: %d\n", summary.Dropped)

	if len(summary.SkipReasons) > 0 {
		fmt.Println("\n=== Skip Reasons ===")
		for reason, count := range summary.SkipReasons {
			fmt.Printf("%s: %d\n", reason, count)
		}
	}
}

func printPreview(today time.Time, rows []core.PreviewRow) {
	fmt.Printf("\n=== Preview for %s ===\n", today.Format(core.DateLayout))
	fmt.Printf("Employees: %d\n\n", len(rows))

	for _, row := range rows {
		fmt.Printf("%s (%s, leader %s)\n", row.Name, row.Status, row.LeaderName)
		if row.ProbationDaysUntil != nil {
			fmt.Printf("  probation ends %s (%d days)\n", row.ProbationEnd, *row.ProbationDaysUntil)
		}
		if row.ContractDaysUntil != nil {
			fmt.Printf("  contract renewal %s (%d days)\n", row.ContractRenewal, *row.ContractDaysUntil)
		}
		if row.SeparationDate != "" {
			fmt.Printf("  separated %s\n", row.SeparationDate)
		}
		if len(row.Eligible) > 0 {
			types := make([]string, len(row.Eligible))
			for i, t := range row.Eligible {
				types[i] = string(t)
			}
			fmt.Printf("  due: %s\n", strings.Join(types, ", "))
		}
		for _, issue := range row.Issues {
			fmt.Printf("  issue: %s %q\n", issue.Field, issue.Raw)
		}
	}
}
