package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ServiceOptions holds the static settings of the reminder pipeline
type ServiceOptions struct {
	Window                 Window
	Location               *time.Location
	VendorEmail            string
	HREmail                string
	SeparationLookbackDays int
}

// ReminderService runs the notification pipelines end to end
type ReminderService struct {
	source   RecordSource
	guard    *DuplicateGuard
	notifier Notifier
	routes   CCRouter
	metrics  MetricsRecorder
	clock    Clock
	logger   *zap.Logger
	opts     ServiceOptions
}

// NewReminderService creates a new reminder service
func NewReminderService(
	source RecordSource,
	guard *DuplicateGuard,
	notifier Notifier,
	routes CCRouter,
	metrics MetricsRecorder,
	clock Clock,
	logger *zap.Logger,
	opts ServiceOptions,
) *ReminderService {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if clock == nil {
		clock = SystemClock()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Window == (Window{}) {
		opts.Window = DefaultWindow
	}
	return &ReminderService{
		source:   source,
		guard:    guard,
		notifier: notifier,
		routes:   routes,
		metrics:  metrics,
		clock:    clock,
		logger:   logger,
		opts:     opts,
	}
}

// Today returns the current calendar date in the configured timezone
func (s *ReminderService) Today() time.Time {
	return CivilDate(s.clock.Now(), s.opts.Location)
}

// Backend returns the ledger backend tag
func (s *ReminderService) Backend() BackendKind {
	return s.guard.Backend()
}

// Records returns the current employee records
func (s *ReminderService) Records(ctx context.Context) ([]EmployeeRecord, error) {
	records, err := s.source.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch employee records: %w", err)
	}
	return records, nil
}

// ReminderPlan is the grouped output of one run before the guard is consulted
type ReminderPlan struct {
	Today   time.Time
	Batches []EmailBatch
	Skipped []SkipDiagnostic
}

// PlanReminders computes the reminder batches for today
func (s *ReminderService) PlanReminders(ctx context.Context) (*ReminderPlan, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return nil, err
	}

	today := s.Today()
	due := ComputeDue(records, today, s.opts.Window)
	grouped := GroupDue(due.Due, s.routes)

	return &ReminderPlan{
		Today:   today,
		Batches: grouped.Batches,
		Skipped: append(due.Skipped, grouped.Skipped...),
	}, nil
}

// RunReminders sends today's evaluation reminders.
// Dispatch failures are counted per batch and do not stop the run. An unavailable
// ledger stops the run and is returned together with the partial summary.
func (s *ReminderService) RunReminders(ctx context.Context, dryRun bool) (*RunSummary, error) {
	plan, err := s.PlanReminders(ctx)
	if err != nil {
		return nil, err
	}

	summary := s.newSummary(plan.Today, dryRun)
	s.recordSkips(summary, plan.Skipped)

	logger := s.logger.With(zap.String("run_id", summary.RunID))
	logger.Info("Starting reminder run",
		zap.String("date", summary.Date),
		zap.Int("batches", len(plan.Batches)),
		zap.Bool("dry_run", dryRun))

	for i := range plan.Batches {
		batch := plan.Batches[i]

		pending, err := s.pendingEntries(ctx, plan.Today, &batch)
		if err != nil {
			logger.Error("Failed to consult ledger",
				zap.String("leader_email", batch.LeaderEmail),
				zap.String("type", string(batch.Type)),
				zap.Error(err))
			summary.Failed++
			s.metrics.RecordFailed(batch.Type)
			if errors.Is(err, ErrPersistenceUnavailable) {
				return summary, fmt.Errorf("ledger unavailable for %s: %w", batch.LeaderEmail, err)
			}
			continue
		}
		if len(pending) == 0 {
			logger.Info("Skipping batch already sent today",
				zap.String("leader_email", batch.LeaderEmail),
				zap.String("type", string(batch.Type)))
			summary.SkippedDuplicate++
			s.metrics.RecordSkippedDuplicate(batch.Type)
			continue
		}
		batch.Entries = pending

		if dryRun {
			logger.Info("Dry run: would send reminder",
				zap.Strings("to", batch.To),
				zap.Strings("cc", batch.CC),
				zap.String("type", string(batch.Type)),
				zap.Int("employees", len(batch.Entries)))
			summary.Sent++
			continue
		}

		if err := s.notifier.SendReminder(ctx, &batch); err != nil {
			logger.Error("Failed to send reminder",
				zap.String("leader_email", batch.LeaderEmail),
				zap.String("type", string(batch.Type)),
				zap.Error(err))
			summary.Failed++
			s.metrics.RecordFailed(batch.Type)
			continue
		}

		summary.Sent++
		s.metrics.RecordSent(batch.Type)
		logger.Info("Reminder sent",
			zap.Strings("to", batch.To),
			zap.String("type", string(batch.Type)),
			zap.Int("employees", len(batch.Entries)))

		for _, entry := range batch.Entries {
			key := NewSendKey(entry.Employee.Name, batch.LeaderEmail, batch.Type, plan.Today)
			if err := s.guard.RecordSent(ctx, key); err != nil {
				logger.Error("Failed to record sent reminder",
					zap.String("employee", entry.Employee.Name),
					zap.Error(err))
				return summary, fmt.Errorf("failed to record reminder for %s: %w", entry.Employee.Name, err)
			}
		}
	}

	logger.Info("Reminder run finished",
		zap.Int("sent", summary.Sent),
		zap.Int("skipped_duplicate", summary.SkippedDuplicate),
		zap.Int("failed", summary.Failed),
		zap.Int("dropped", summary.Dropped))

	return summary, nil
}

// DefaultSeparationRange returns the lookback range ending today
func (s *ReminderService) DefaultSeparationRange() DateRange {
	today := s.Today()
	return DateRange{From: today.AddDate(0, 0, -s.opts.SeparationLookbackDays), To: today}
}

// NotifySeparations emails the vendor about employees separated inside r.
// A nil range uses DefaultSeparationRange.
func (s *ReminderService) NotifySeparations(ctx context.Context, r *DateRange, dryRun bool) (*RunSummary, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return nil, err
	}

	rng := s.DefaultSeparationRange()
	if r != nil {
		rng = *r
	}

	today := s.Today()
	summary := s.newSummary(today, dryRun)
	separated := ComputeSeparated(records, rng)
	s.recordSkips(summary, separated.Skipped)

	logger := s.logger.With(zap.String("run_id", summary.RunID))

	if len(separated.Employees) == 0 {
		logger.Info("No separated employees in range",
			zap.String("from", rng.From.Format(DateLayout)),
			zap.String("to", rng.To.Format(DateLayout)))
		return summary, nil
	}
	if s.opts.VendorEmail == "" {
		return summary, fmt.Errorf("no vendor address configured: %w", ErrRouting)
	}

	var pending []EmployeeRecord
	for _, emp := range separated.Employees {
		ok, err := s.guard.ShouldSend(ctx, NewSendKey(emp.Name, s.opts.VendorEmail, NotificationSeparation, today))
		if err != nil {
			summary.Failed++
			s.metrics.RecordFailed(NotificationSeparation)
			logger.Error("Failed to consult ledger", zap.String("employee", emp.Name), zap.Error(err))
			if errors.Is(err, ErrPersistenceUnavailable) {
				return summary, fmt.Errorf("ledger unavailable for %s: %w", emp.Name, err)
			}
			return summary, nil
		}
		if ok {
			pending = append(pending, emp)
		}
	}

	if len(pending) == 0 {
		summary.SkippedDuplicate++
		s.metrics.RecordSkippedDuplicate(NotificationSeparation)
		logger.Info("Separation notice already sent today")
		return summary, nil
	}

	notice := &SeparationNotice{
		To:        s.opts.VendorEmail,
		CC:        dedupe([]string{s.opts.HREmail}),
		Employees: pending,
		Range:     rng,
	}

	if dryRun {
		logger.Info("Dry run: would send separation notice",
			zap.String("to", notice.To),
			zap.Int("employees", len(pending)))
		summary.Sent++
		return summary, nil
	}

	if err := s.notifier.SendSeparationNotice(ctx, notice); err != nil {
		logger.Error("Failed to send separation notice", zap.Error(err))
		summary.Failed++
		s.metrics.RecordFailed(NotificationSeparation)
		return summary, nil
	}
	summary.Sent++
	s.metrics.RecordSent(NotificationSeparation)

	for _, emp := range pending {
		if err := s.guard.RecordSent(ctx, NewSendKey(emp.Name, s.opts.VendorEmail, NotificationSeparation, today)); err != nil {
			return summary, fmt.Errorf("failed to record separation notice for %s: %w", emp.Name, err)
		}
	}

	logger.Info("Separation notice sent", zap.Int("employees", len(pending)))
	return summary, nil
}

// SentSummary returns the ledger entries of one day
func (s *ReminderService) SentSummary(ctx context.Context, day time.Time) (*SentSummary, error) {
	records, err := s.guard.SentOn(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to list sent emails: %w", err)
	}
	return &SentSummary{
		Date:    CivilDate(day, nil).Format(DateLayout),
		Total:   len(records),
		Entries: records,
	}, nil
}

// PruneLedger removes ledger entries older than days
func (s *ReminderService) PruneLedger(ctx context.Context, days int) (int64, error) {
	removed, err := s.guard.Prune(ctx, days)
	if err != nil {
		return 0, fmt.Errorf("failed to prune ledger: %w", err)
	}
	s.logger.Info("Pruned ledger", zap.Int64("removed", removed), zap.Int("retention_days", days))
	return removed, nil
}

func (s *ReminderService) pendingEntries(ctx context.Context, today time.Time, batch *EmailBatch) ([]EvaluationDue, error) {
	pending := make([]EvaluationDue, 0, len(batch.Entries))
	for _, entry := range batch.Entries {
		ok, err := s.guard.ShouldSend(ctx, NewSendKey(entry.Employee.Name, batch.LeaderEmail, batch.Type, today))
		if err != nil {
			return nil, err
		}
		if ok {
			pending = append(pending, entry)
		}
	}
	return pending, nil
}

func (s *ReminderService) newSummary(today time.Time, dryRun bool) *RunSummary {
	return &RunSummary{
		RunID:   uuid.NewString(),
		Date:    today.Format(DateLayout),
		DryRun:  dryRun,
		Backend: s.guard.Backend(),
	}
}

func (s *ReminderService) recordSkips(summary *RunSummary, skipped []SkipDiagnostic) {
	for _, diag := range skipped {
		if summary.SkipReasons == nil {
			summary.SkipReasons = make(map[string]int)
		}
		summary.SkipReasons[string(diag.Reason)]++
		if diag.Reason == SkipInactiveStatus {
			continue
		}
		summary.Dropped++
		s.metrics.RecordDropped(diag.Reason)
		fields := []zap.Field{
			zap.String("employee", diag.Employee),
			zap.String("reason", string(diag.Reason)),
		}
		if diag.Type != "" {
			fields = append(fields, zap.String("type", string(diag.Type)))
		}
		if diag.Err != nil {
			fields = append(fields, zap.Error(diag.Err))
		}
		s.logger.Warn("Skipped employee", fields...)
	}
}
