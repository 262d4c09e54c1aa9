package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/mikey/hr-notifier/internal/core"
)

// UnavailableLedger is installed when no backend could be initialized.
// Every operation fails so no email is sent that could not be recorded.
type UnavailableLedger struct {
	cause error
}

// NewUnavailableLedger creates a ledger that reports cause on every call
func NewUnavailableLedger(cause error) *UnavailableLedger {
	return &UnavailableLedger{cause: cause}
}

func (l *UnavailableLedger) err() error {
	if l.cause == nil {
		return core.ErrPersistenceUnavailable
	}
	return fmt.Errorf("%w: %v", core.ErrPersistenceUnavailable, l.cause)
}

// Exists always fails
func (l *UnavailableLedger) Exists(ctx context.Context, key core.SendKey) (bool, error) {
	return false, l.err()
}

// Insert always fails
func (l *UnavailableLedger) Insert(ctx context.Context, record core.SentEmailRecord) error {
	return l.err()
}

// ListByDate always fails
func (l *UnavailableLedger) ListByDate(ctx context.Context, day time.Time) ([]core.SentEmailRecord, error) {
	return nil, l.err()
}

// Prune always fails
func (l *UnavailableLedger) Prune(ctx context.Context, before time.Time) (int64, error) {
	return 0, l.err()
}

// Kind returns the backend tag
func (l *UnavailableLedger) Kind() core.BackendKind {
	return core.BackendUnavailable
}

// Close is a no-op
func (l *UnavailableLedger) Close() error {
	return nil
}
