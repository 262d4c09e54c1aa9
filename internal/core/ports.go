package core

import (
	"context"
	"time"
)

// RecordSource provides canonical employee records
type RecordSource interface {
	// FetchAll returns every employee record known to the source
	FetchAll(ctx context.Context) ([]EmployeeRecord, error)
}

// LedgerRepository persists sent email records
type LedgerRepository interface {
	// Exists reports whether a record with the same key is stored
	Exists(ctx context.Context, key SendKey) (bool, error)

	// Insert stores a record. A uniqueness conflict is not an error.
	Insert(ctx context.Context, record SentEmailRecord) error

	// ListByDate returns the records sent on the given day, newest first
	ListByDate(ctx context.Context, day time.Time) ([]SentEmailRecord, error)

	// Prune removes records sent before the given day and returns how many were removed
	Prune(ctx context.Context, before time.Time) (int64, error)

	// Kind returns the backend tag
	Kind() BackendKind

	// Close releases the backend resources
	Close() error
}

// Notifier transmits emails
type Notifier interface {
	// SendReminder sends one evaluation reminder batch
	SendReminder(ctx context.Context, batch *EmailBatch) error

	// SendSeparationNotice sends the vendor notice
	SendSeparationNotice(ctx context.Context, notice *SeparationNotice) error
}

// CCRouter resolves the CC list for a department
type CCRouter interface {
	// CCFor returns the department CC addresses followed by the constant address
	CCFor(department string) []string
}

// MetricsRecorder receives pipeline counters
type MetricsRecorder interface {
	RecordSent(t EvaluationType)
	RecordSkippedDuplicate(t EvaluationType)
	RecordFailed(t EvaluationType)
	RecordDropped(reason SkipReason)
}

// Clock provides the current time
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// SystemClock returns a clock backed by time.Now
func SystemClock() Clock {
	return realClock{}
}

type noopMetrics struct{}

func (noopMetrics) RecordSent(EvaluationType)             {}
func (noopMetrics) RecordSkippedDuplicate(EvaluationType) {}
func (noopMetrics) RecordFailed(EvaluationType)           {}
func (noopMetrics) RecordDropped(SkipReason)              {}
