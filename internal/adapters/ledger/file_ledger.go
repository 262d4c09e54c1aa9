package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/mikey/hr-notifier/internal/core"
	"go.uber.org/zap"
)

// DefaultFileRetentionDays bounds the size of the file ledger
const DefaultFileRetentionDays = 30

type fileEntry struct {
	EmployeeName   string    `json:"employee_name"`
	LeaderEmail    string    `json:"leader_email"`
	EvaluationType string    `json:"evaluation_type"`
	SentDate       string    `json:"sent_date"`
	SentAt         time.Time `json:"sent_at"`
}

// FileLedger is a JSON file implementation of the LedgerRepository interface.
// Opening and every write rewrite the file and evict entries older than the retention window.
type FileLedger struct {
	path          string
	retentionDays int
	loc           *time.Location
	clock         core.Clock
	logger        *zap.Logger

	mu      sync.Mutex
	entries []fileEntry
}

// NewFileLedger opens or creates the ledger file and verifies it is writable.
// The retention cutoff is computed on the calendar of loc.
func NewFileLedger(path string, retentionDays int, loc *time.Location, clock core.Clock, logger *zap.Logger) (*FileLedger, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultFileRetentionDays
	}
	if loc == nil {
		loc = time.Local
	}
	if clock == nil {
		clock = core.SystemClock()
	}

	l := &FileLedger{
		path:          path,
		retentionDays: retentionDays,
		loc:           loc,
		clock:         clock,
		logger:        logger,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	if err := l.load(); err != nil {
		return nil, err
	}
	l.entries = l.evicted()
	// Rewriting the current content proves the location is writable
	if err := l.flush(); err != nil {
		return nil, err
	}

	logger.Info("Initialized file ledger",
		zap.String("path", path),
		zap.Int("entries", len(l.entries)),
		zap.Int("retention_days", retentionDays))

	return l, nil
}

// Exists checks whether a record with the same key is stored
func (l *FileLedger) Exists(ctx context.Context, key core.SendKey) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.indexOf(key) >= 0, nil
}

// Insert stores a ledger entry and rewrites the file
func (l *FileLedger) Insert(ctx context.Context, record core.SentEmailRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.indexOf(record.Key()) >= 0 {
		return nil
	}

	previous := l.entries
	l.entries = append(l.evicted(), fileEntry{
		EmployeeName:   record.EmployeeName,
		LeaderEmail:    record.LeaderEmail,
		EvaluationType: string(record.EvaluationType),
		SentDate:       record.SentDate.Format(core.DateLayout),
		SentAt:         record.SentAt.UTC(),
	})

	if err := l.flush(); err != nil {
		l.entries = previous
		return err
	}
	return nil
}

// ListByDate returns the entries of one day, newest first
func (l *FileLedger) ListByDate(ctx context.Context, day time.Time) ([]core.SentEmailRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	want := day.Format(core.DateLayout)
	var records []core.SentEmailRecord
	for _, e := range l.entries {
		if e.SentDate != want {
			continue
		}
		rec, err := e.record()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].SentAt.After(records[j].SentAt)
	})
	return records, nil
}

// Prune removes entries sent before the given day
func (l *FileLedger) Prune(ctx context.Context, before time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	previous := l.entries
	kept := l.entriesFrom(before)
	removed := int64(len(previous) - len(kept))
	if removed == 0 {
		return 0, nil
	}

	l.entries = kept
	if err := l.flush(); err != nil {
		l.entries = previous
		return 0, err
	}
	return removed, nil
}

// Kind returns the backend tag
func (l *FileLedger) Kind() core.BackendKind {
	return core.BackendFile
}

// Close is a no-op; every write is already on disk
func (l *FileLedger) Close() error {
	return nil
}

func (l *FileLedger) indexOf(key core.SendKey) int {
	date := key.SentDate.Format(core.DateLayout)
	for i, e := range l.entries {
		if e.EmployeeName == key.EmployeeName &&
			e.LeaderEmail == key.LeaderEmail &&
			e.EvaluationType == string(key.EvaluationType) &&
			e.SentDate == date {
			return i
		}
	}
	return -1
}

// evicted returns the entries inside the retention window
func (l *FileLedger) evicted() []fileEntry {
	cutoff := core.CivilDate(l.clock.Now(), l.loc).AddDate(0, 0, -l.retentionDays)
	kept := l.entriesFrom(cutoff)
	if n := len(l.entries) - len(kept); n > 0 {
		l.logger.Debug("Evicted old ledger entries", zap.Int("evicted", n))
	}
	return kept
}

func (l *FileLedger) entriesFrom(cutoff time.Time) []fileEntry {
	kept := make([]fileEntry, 0, len(l.entries)+1)
	for _, e := range l.entries {
		sent, err := core.ParseDate(e.SentDate)
		if err != nil || sent.Before(cutoff) {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

func (l *FileLedger) load() error {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		l.entries = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read ledger file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var entries []fileEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to decode ledger file %s: %w", l.path, err)
	}
	l.entries = entries
	return nil
}

// flush writes the entries to a temp file and renames it over the ledger
func (l *FileLedger) flush() error {
	entries := l.entries
	if entries == nil {
		entries = []fileEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create ledger temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close ledger temp file: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}
	return nil
}

func (e fileEntry) record() (core.SentEmailRecord, error) {
	sent, err := core.ParseDate(e.SentDate)
	if err != nil {
		return core.SentEmailRecord{}, err
	}
	return core.SentEmailRecord{
		EmployeeName:   e.EmployeeName,
		LeaderEmail:    e.LeaderEmail,
		EvaluationType: core.EvaluationType(e.EvaluationType),
		SentDate:       sent,
		SentAt:         e.SentAt,
	}, nil
}
