package ports

import (
	"context"
	"time"

	"github.com/mikey/hr-notifier/internal/core"
)

// ReminderRunner defines the pipeline operations exposed to the HTTP and CLI surfaces
type ReminderRunner interface {
	// Records returns the current employee records
	Records(ctx context.Context) ([]core.EmployeeRecord, error)

	// RunReminders sends today's evaluation reminders
	RunReminders(ctx context.Context, dryRun bool) (*core.RunSummary, error)

	// NotifySeparations sends the vendor separation notice for r, or the default range when r is nil
	NotifySeparations(ctx context.Context, r *core.DateRange, dryRun bool) (*core.RunSummary, error)

	// SentSummary lists the ledger entries of one day
	SentSummary(ctx context.Context, day time.Time) (*core.SentSummary, error)

	// Preview interprets every record against today's window
	Preview(ctx context.Context) ([]core.PreviewRow, error)

	// PruneLedger removes ledger entries older than days
	PruneLedger(ctx context.Context, days int) (int64, error)

	// Today returns the current calendar date
	Today() time.Time

	// Backend returns the ledger backend tag
	Backend() core.BackendKind
}

var _ ReminderRunner = (*core.ReminderService)(nil)
