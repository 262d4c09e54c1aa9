package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DuplicateGuard ensures at most one recorded send per key per day.
// It exclusively owns the ledger; no other component reads or writes it.
type DuplicateGuard struct {
	ledger LedgerRepository
	clock  Clock
	loc    *time.Location
	logger *zap.Logger
}

// NewDuplicateGuard creates a guard over the ledger selected at startup.
// Retention cutoffs follow the calendar of loc, the same one send dates use.
func NewDuplicateGuard(ledger LedgerRepository, clock Clock, loc *time.Location, logger *zap.Logger) *DuplicateGuard {
	if clock == nil {
		clock = SystemClock()
	}
	if loc == nil {
		loc = time.Local
	}
	return &DuplicateGuard{
		ledger: ledger,
		clock:  clock,
		loc:    loc,
		logger: logger,
	}
}

// Backend returns the tag of the ledger backend in use
func (g *DuplicateGuard) Backend() BackendKind {
	return g.ledger.Kind()
}

// ShouldSend returns false iff a send with an identical key is already recorded
func (g *DuplicateGuard) ShouldSend(ctx context.Context, key SendKey) (bool, error) {
	exists, err := g.ledger.Exists(ctx, normalizeKey(key))
	if err != nil {
		return false, fmt.Errorf("failed to check ledger: %w", err)
	}
	return !exists, nil
}

// RecordSent persists a successful send. Duplicate keys are not errors.
// Any other failure is returned wrapped in ErrPersistenceUnavailable.
func (g *DuplicateGuard) RecordSent(ctx context.Context, key SendKey) error {
	key = normalizeKey(key)
	record := SentEmailRecord{
		EmployeeName:   key.EmployeeName,
		LeaderEmail:    key.LeaderEmail,
		EvaluationType: key.EvaluationType,
		SentDate:       key.SentDate,
		SentAt:         g.clock.Now().UTC(),
	}

	err := g.ledger.Insert(ctx, record)
	switch {
	case err == nil:
		g.logger.Debug("Recorded sent email",
			zap.String("employee", key.EmployeeName),
			zap.String("leader_email", key.LeaderEmail),
			zap.String("evaluation_type", string(key.EvaluationType)),
			zap.String("backend", string(g.ledger.Kind())))
		return nil
	case errors.Is(err, ErrDuplicateConflict):
		return nil
	case errors.Is(err, ErrPersistenceUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
}

// SentOn returns the records of one day
func (g *DuplicateGuard) SentOn(ctx context.Context, day time.Time) ([]SentEmailRecord, error) {
	return g.ledger.ListByDate(ctx, CivilDate(day, nil))
}

// Prune removes ledger entries sent more than days ago
func (g *DuplicateGuard) Prune(ctx context.Context, days int) (int64, error) {
	before := CivilDate(g.clock.Now(), g.loc).AddDate(0, 0, -days)
	return g.ledger.Prune(ctx, before)
}

func normalizeKey(key SendKey) SendKey {
	key.SentDate = CivilDate(key.SentDate, nil)
	return key
}
