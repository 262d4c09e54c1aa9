package ledger

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mikey/hr-notifier/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubClock struct {
	now time.Time
}

func (c *stubClock) Now() time.Time { return c.now }

func newFileLedger(t *testing.T, now time.Time) (*FileLedger, string, *stubClock) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "sent_emails.json")
	clock := &stubClock{now: now}
	l, err := NewFileLedger(path, 0, time.UTC, clock, zap.NewNop())
	require.NoError(t, err)
	return l, path, clock
}

func TestFileLedger_CreatesEmptyFile(t *testing.T) {
	_, path, _ := newFileLedger(t, day(2025, 3, 1))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestFileLedger_InsertPersistsAcrossReopen(t *testing.T) {
	l, path, clock := newFileLedger(t, day(2025, 3, 1))
	ctx := context.Background()
	rec := sentRecord("Alice", day(2025, 3, 1), 9*time.Hour)

	require.NoError(t, l.Insert(ctx, rec))
	require.NoError(t, l.Insert(ctx, rec))

	reopened, err := NewFileLedger(path, 0, time.UTC, clock, zap.NewNop())
	require.NoError(t, err)

	exists, err := reopened.Exists(ctx, rec.Key())
	require.NoError(t, err)
	assert.True(t, exists)

	var onDisk []map[string]any
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &onDisk))
	require.Len(t, onDisk, 1)
	assert.Equal(t, "2025-03-01", onDisk[0]["sent_date"])
	assert.Equal(t, "Probation", onDisk[0]["evaluation_type"])
}

func TestFileLedger_EvictsOldEntriesOnWrite(t *testing.T) {
	l, _, clock := newFileLedger(t, day(2025, 1, 1))
	ctx := context.Background()

	require.NoError(t, l.Insert(ctx, sentRecord("Old", day(2025, 1, 1), 0)))
	require.NoError(t, l.Insert(ctx, sentRecord("Recent", day(2025, 2, 20), 0)))

	clock.now = day(2025, 3, 1)
	require.NoError(t, l.Insert(ctx, sentRecord("Today", day(2025, 3, 1), 0)))

	exists, err := l.Exists(ctx, sentRecord("Old", day(2025, 1, 1), 0).Key())
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = l.Exists(ctx, sentRecord("Recent", day(2025, 2, 20), 0).Key())
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFileLedger_EvictsOldEntriesOnOpen(t *testing.T) {
	l, path, _ := newFileLedger(t, day(2025, 1, 1))
	ctx := context.Background()
	require.NoError(t, l.Insert(ctx, sentRecord("Old", day(2025, 1, 1), 0)))

	reopened, err := NewFileLedger(path, 0, time.UTC, &stubClock{now: day(2025, 3, 1)}, zap.NewNop())
	require.NoError(t, err)

	exists, err := reopened.Exists(ctx, sentRecord("Old", day(2025, 1, 1), 0).Key())
	require.NoError(t, err)
	assert.False(t, exists)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Old")
}

func TestFileLedger_RetentionUsesLocation(t *testing.T) {
	// 2025-03-01 20:00 UTC is already 2025-03-02 in Tokyo
	tokyo := time.FixedZone("JST", 9*60*60)
	path := filepath.Join(t.TempDir(), "sent_emails.json")
	clock := &stubClock{now: day(2025, 3, 1).Add(20 * time.Hour)}
	l, err := NewFileLedger(path, 30, tokyo, clock, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, l.Insert(ctx, sentRecord("Edge", day(2025, 1, 30), 0)))
	require.NoError(t, l.Insert(ctx, sentRecord("Kept", day(2025, 1, 31), 0)))
	require.NoError(t, l.Insert(ctx, sentRecord("Today", day(2025, 3, 2), 0)))

	exists, err := l.Exists(ctx, sentRecord("Edge", day(2025, 1, 30), 0).Key())
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = l.Exists(ctx, sentRecord("Kept", day(2025, 1, 31), 0).Key())
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFileLedger_ListByDateNewestFirst(t *testing.T) {
	l, _, _ := newFileLedger(t, day(2025, 3, 1))
	ctx := context.Background()

	require.NoError(t, l.Insert(ctx, sentRecord("Early", day(2025, 3, 1), 8*time.Hour)))
	require.NoError(t, l.Insert(ctx, sentRecord("Late", day(2025, 3, 1), 15*time.Hour)))

	records, err := l.ListByDate(ctx, day(2025, 3, 1))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Late", records[0].EmployeeName)
	assert.Equal(t, core.BackendFile, l.Kind())
}

func TestFileLedger_ConcurrentInsertSameKey(t *testing.T) {
	l, path, _ := newFileLedger(t, day(2025, 3, 1))
	rec := sentRecord("Alice", day(2025, 3, 1), 0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Insert(context.Background(), rec))
		}()
	}
	wg.Wait()

	var onDisk []fileEntry
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Len(t, onDisk, 1)
}

func TestFileLedger_Prune(t *testing.T) {
	l, _, _ := newFileLedger(t, day(2025, 3, 1))
	ctx := context.Background()

	require.NoError(t, l.Insert(ctx, sentRecord("A", day(2025, 2, 10), 0)))
	require.NoError(t, l.Insert(ctx, sentRecord("B", day(2025, 2, 28), 0)))

	removed, err := l.Prune(ctx, day(2025, 2, 20))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	removed, err = l.Prune(ctx, day(2025, 2, 20))
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestFileLedger_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sent_emails.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileLedger(path, 0, nil, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestFileLedger_UnwritableLocation(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := NewFileLedger(filepath.Join(blocker, "sent_emails.json"), 0, nil, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestUnavailableLedger(t *testing.T) {
	l := NewUnavailableLedger(os.ErrPermission)
	ctx := context.Background()
	key := core.NewSendKey("Alice", "lead@example.com", core.EvaluationProbation, day(2025, 3, 1))

	_, err := l.Exists(ctx, key)
	assert.ErrorIs(t, err, core.ErrPersistenceUnavailable)
	assert.ErrorIs(t, l.Insert(ctx, core.SentEmailRecord{}), core.ErrPersistenceUnavailable)
	_, err = l.ListByDate(ctx, day(2025, 3, 1))
	assert.ErrorIs(t, err, core.ErrPersistenceUnavailable)
	assert.Equal(t, core.BackendUnavailable, l.Kind())
}

type countingNotifier struct {
	calls int
}

func (n *countingNotifier) SendReminder(ctx context.Context, batch *core.EmailBatch) error {
	n.calls++
	return nil
}

func (n *countingNotifier) SendSeparationNotice(ctx context.Context, notice *core.SeparationNotice) error {
	n.calls++
	return nil
}

type fixedSource []core.EmployeeRecord

func (s fixedSource) FetchAll(ctx context.Context) ([]core.EmployeeRecord, error) {
	return core.CloneRecords(s), nil
}

type noRoutes struct{}

func (noRoutes) CCFor(string) []string { return nil }

func TestUnavailableLedger_StopsPipelines(t *testing.T) {
	today := day(2025, 3, 1)
	probationEnd := today.AddDate(0, 0, 20)
	source := fixedSource{
		{Name: "Jane", LeaderEmail: "lee@example.com", Status: core.StatusProbation, ProbationEndDate: &probationEnd},
		{Name: "Left", Status: core.StatusSeparated, SeparationDate: &today},
	}
	notifier := &countingNotifier{}
	clock := &stubClock{now: today.Add(9 * time.Hour)}
	guard := core.NewDuplicateGuard(NewUnavailableLedger(os.ErrPermission), clock, time.UTC, zap.NewNop())
	service := core.NewReminderService(source, guard, notifier, noRoutes{}, nil, clock, zap.NewNop(), core.ServiceOptions{
		Location:               time.UTC,
		VendorEmail:            "vendor@example.com",
		SeparationLookbackDays: 7,
	})
	ctx := context.Background()

	summary, err := service.RunReminders(ctx, false)
	assert.ErrorIs(t, err, core.ErrPersistenceUnavailable)
	require.NotNil(t, summary)
	assert.Equal(t, 0, summary.Sent)
	assert.Equal(t, core.BackendUnavailable, summary.Backend)

	summary, err = service.NotifySeparations(ctx, nil, false)
	assert.ErrorIs(t, err, core.ErrPersistenceUnavailable)
	require.NotNil(t, summary)
	assert.Equal(t, 0, summary.Sent)

	assert.Equal(t, 0, notifier.calls)
}
