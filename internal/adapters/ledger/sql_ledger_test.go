package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"github.com/mikey/hr-notifier/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sentRecord(name string, d time.Time, at time.Duration) core.SentEmailRecord {
	return core.SentEmailRecord{
		EmployeeName:   name,
		LeaderEmail:    "lead@example.com",
		EvaluationType: core.EvaluationProbation,
		SentDate:       d,
		SentAt:         d.Add(at),
	}
}

func newSQLiteLedger(t *testing.T) *SQLLedger {
	t.Helper()
	l, err := NewSQLiteLedger(context.Background(), ":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestSQLiteLedger_InsertAndExists(t *testing.T) {
	l := newSQLiteLedger(t)
	ctx := context.Background()
	rec := sentRecord("Alice", day(2025, 3, 1), 9*time.Hour)

	exists, err := l.Exists(ctx, rec.Key())
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, l.Insert(ctx, rec))

	exists, err = l.Exists(ctx, rec.Key())
	require.NoError(t, err)
	assert.True(t, exists)

	other := rec.Key()
	other.SentDate = day(2025, 3, 2)
	exists, err = l.Exists(ctx, other)
	require.NoError(t, err)
	assert.False(t, exists)

	assert.Equal(t, core.BackendRelational, l.Kind())
}

func TestSQLiteLedger_DuplicateInsertIsBenign(t *testing.T) {
	l := newSQLiteLedger(t)
	ctx := context.Background()
	rec := sentRecord("Alice", day(2025, 3, 1), 9*time.Hour)

	require.NoError(t, l.Insert(ctx, rec))
	rec.SentAt = rec.SentAt.Add(time.Hour)
	require.NoError(t, l.Insert(ctx, rec))

	records, err := l.ListByDate(ctx, day(2025, 3, 1))
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSQLiteLedger_ConcurrentInsertSameKey(t *testing.T) {
	l := newSQLiteLedger(t)
	ctx := context.Background()
	rec := sentRecord("Alice", day(2025, 3, 1), 9*time.Hour)

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = l.Insert(ctx, rec)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	records, err := l.ListByDate(ctx, day(2025, 3, 1))
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSQLiteLedger_ListByDateNewestFirst(t *testing.T) {
	l := newSQLiteLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Insert(ctx, sentRecord("Early", day(2025, 3, 1), 8*time.Hour)))
	require.NoError(t, l.Insert(ctx, sentRecord("Late", day(2025, 3, 1), 15*time.Hour)))
	require.NoError(t, l.Insert(ctx, sentRecord("Other", day(2025, 3, 2), 8*time.Hour)))

	records, err := l.ListByDate(ctx, day(2025, 3, 1))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Late", records[0].EmployeeName)
	assert.Equal(t, "Early", records[1].EmployeeName)
	assert.Equal(t, day(2025, 3, 1), records[0].SentDate)
	assert.Equal(t, day(2025, 3, 1).Add(15*time.Hour), records[0].SentAt)
	assert.Equal(t, core.EvaluationProbation, records[0].EvaluationType)
}

func TestSQLiteLedger_Prune(t *testing.T) {
	l := newSQLiteLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Insert(ctx, sentRecord("Old", day(2025, 1, 1), 0)))
	require.NoError(t, l.Insert(ctx, sentRecord("Edge", day(2025, 1, 30), 0)))
	require.NoError(t, l.Insert(ctx, sentRecord("New", day(2025, 3, 1), 0)))

	removed, err := l.Prune(ctx, day(2025, 1, 30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	exists, err := l.Exists(ctx, sentRecord("Edge", day(2025, 1, 30), 0).Key())
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDialectUniqueViolation(t *testing.T) {
	assert.True(t, mysqlDialect.isUnique(fmt.Errorf("exec: %w", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})))
	assert.False(t, mysqlDialect.isUnique(&mysql.MySQLError{Number: 1045}))
	assert.False(t, mysqlDialect.isUnique(errors.New("boom")))

	assert.True(t, sqliteDialect.isUnique(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}))
	assert.False(t, sqliteDialect.isUnique(sqlite3.Error{Code: sqlite3.ErrBusy}))
}

func TestParseDBTime(t *testing.T) {
	want := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

	for _, v := range []any{
		want,
		[]byte("2025-03-01 09:30:00"),
		"2025-03-01T09:30:00Z",
	} {
		got, err := parseDBTime(v)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := parseDBTime([]byte("2025-03-01"))
	require.NoError(t, err)
	assert.Equal(t, day(2025, 3, 1), got)

	_, err = parseDBTime(42)
	assert.Error(t, err)
	_, err = parseDBTime("yesterday")
	assert.Error(t, err)
}
