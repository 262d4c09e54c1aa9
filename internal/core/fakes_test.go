package core

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(t time.Time) *time.Time { return &t }

type staticRouter map[string][]string

func (r staticRouter) CCFor(department string) []string {
	out := append([]string(nil), r[strings.ToUpper(department)]...)
	return append(out, "hr-team@example.com")
}

type staticSource struct {
	records []EmployeeRecord
	err     error
	calls   int
}

func (s *staticSource) FetchAll(ctx context.Context) ([]EmployeeRecord, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return CloneRecords(s.records), nil
}

// memoryLedger is an in-memory LedgerRepository used by the core tests
type memoryLedger struct {
	mu        sync.Mutex
	records   map[SendKey]SentEmailRecord
	existsErr error
	insertErr error
	inserts   int
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{records: make(map[SendKey]SentEmailRecord)}
}

func (l *memoryLedger) Exists(ctx context.Context, key SendKey) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.existsErr != nil {
		return false, l.existsErr
	}
	_, ok := l.records[key]
	return ok, nil
}

func (l *memoryLedger) Insert(ctx context.Context, record SentEmailRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inserts++
	if l.insertErr != nil {
		return l.insertErr
	}
	if _, ok := l.records[record.Key()]; ok {
		return nil
	}
	l.records[record.Key()] = record
	return nil
}

func (l *memoryLedger) ListByDate(ctx context.Context, day time.Time) ([]SentEmailRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []SentEmailRecord
	for _, r := range l.records {
		if r.SentDate.Equal(day) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeName < out[j].EmployeeName })
	return out, nil
}

func (l *memoryLedger) Prune(ctx context.Context, before time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for k, r := range l.records {
		if r.SentDate.Before(before) {
			delete(l.records, k)
			n++
		}
	}
	return n, nil
}

func (l *memoryLedger) Kind() BackendKind { return BackendFile }

func (l *memoryLedger) Close() error { return nil }

func (l *memoryLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

var errBoom = errors.New("boom")
