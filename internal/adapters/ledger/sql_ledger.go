package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"github.com/mikey/hr-notifier/internal/core"
	"go.uber.org/zap"
)

const mysqlDuplicateEntry = 1062

// dialect holds the statements that differ between database/sql drivers
type dialect struct {
	name      string
	driver    string
	schema    []string
	insert    string
	timeStamp func(time.Time) any
	isUnique  func(error) bool
}

var mysqlDialect = dialect{
	name:   "mysql",
	driver: "mysql",
	schema: []string{`
		CREATE TABLE IF NOT EXISTS sent_emails (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			employee_name VARCHAR(255) NOT NULL,
			leader_email VARCHAR(255) NOT NULL,
			evaluation_type VARCHAR(32) NOT NULL,
			sent_date DATE NOT NULL,
			sent_at DATETIME NOT NULL,
			UNIQUE KEY uniq_sent_email (employee_name, leader_email, evaluation_type, sent_date),
			INDEX idx_sent_date (sent_date)
		)
	`},
	insert: `
		INSERT INTO sent_emails (employee_name, leader_email, evaluation_type, sent_date, sent_at)
		VALUES (?, ?, ?, ?, ?)
	`,
	timeStamp: func(t time.Time) any { return t.UTC().Format("2006-01-02 15:04:05") },
	isUnique: func(err error) bool {
		var myErr *mysql.MySQLError
		return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
	},
}

var sqliteDialect = dialect{
	name:   "sqlite",
	driver: "sqlite3",
	schema: []string{`
		CREATE TABLE IF NOT EXISTS sent_emails (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			employee_name TEXT NOT NULL,
			leader_email TEXT NOT NULL,
			evaluation_type TEXT NOT NULL,
			sent_date TEXT NOT NULL,
			sent_at TEXT NOT NULL,
			UNIQUE (employee_name, leader_email, evaluation_type, sent_date)
		)
	`, `
		CREATE INDEX IF NOT EXISTS idx_sent_date ON sent_emails(sent_date)
	`},
	insert: `
		INSERT INTO sent_emails (employee_name, leader_email, evaluation_type, sent_date, sent_at)
		VALUES (?, ?, ?, ?, ?)
	`,
	timeStamp: func(t time.Time) any { return t.UTC().Format(time.RFC3339Nano) },
	isUnique: func(err error) bool {
		var liteErr sqlite3.Error
		if !errors.As(err, &liteErr) {
			return false
		}
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	},
}

// SQLLedger is a database/sql implementation of the LedgerRepository interface
type SQLLedger struct {
	db      *sql.DB
	dialect dialect
	logger  *zap.Logger
}

// NewMySQLLedger creates a new MySQL ledger
func NewMySQLLedger(ctx context.Context, dsn string, logger *zap.Logger) (*SQLLedger, error) {
	db, err := sql.Open(mysqlDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}
	return newSQLLedger(ctx, db, mysqlDialect, logger)
}

// NewSQLiteLedger creates a new SQLite ledger
func NewSQLiteLedger(ctx context.Context, dbPath string, logger *zap.Logger) (*SQLLedger, error) {
	db, err := sql.Open(sqliteDialect.driver, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// SQLite serializes writers; a single connection also keeps :memory: databases shared
	db.SetMaxOpenConns(1)
	return newSQLLedger(ctx, db, sqliteDialect, logger)
}

func newSQLLedger(ctx context.Context, db *sql.DB, d dialect, logger *zap.Logger) (*SQLLedger, error) {
	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", d.name, err)
	}

	// Create table if it doesn't exist
	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create %s schema: %w", d.name, err)
		}
	}

	logger.Info("Initialized SQL ledger", zap.String("dialect", d.name))

	return &SQLLedger{
		db:      db,
		dialect: d,
		logger:  logger,
	}, nil
}

// Exists checks whether a record with the same key is stored
func (l *SQLLedger) Exists(ctx context.Context, key core.SendKey) (bool, error) {
	var count int
	err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(1)
		FROM sent_emails
		WHERE employee_name = ? AND leader_email = ? AND evaluation_type = ? AND sent_date = ?
	`, key.EmployeeName, key.LeaderEmail, string(key.EvaluationType), key.SentDate.Format(core.DateLayout)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query sent_emails: %w", err)
	}
	return count > 0, nil
}

// Insert stores a ledger entry
func (l *SQLLedger) Insert(ctx context.Context, record core.SentEmailRecord) error {
	_, err := l.db.ExecContext(ctx, l.dialect.insert,
		record.EmployeeName,
		record.LeaderEmail,
		string(record.EvaluationType),
		record.SentDate.Format(core.DateLayout),
		l.dialect.timeStamp(record.SentAt))
	if err != nil {
		if l.dialect.isUnique(err) {
			l.logger.Debug("Ledger entry already recorded",
				zap.String("employee", record.EmployeeName),
				zap.String("evaluation_type", string(record.EvaluationType)))
			return nil
		}
		return fmt.Errorf("failed to insert sent email: %w", err)
	}
	return nil
}

// ListByDate returns the entries of one day, newest first
func (l *SQLLedger) ListByDate(ctx context.Context, day time.Time) ([]core.SentEmailRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT employee_name, leader_email, evaluation_type, sent_date, sent_at
		FROM sent_emails
		WHERE sent_date = ?
		ORDER BY sent_at DESC
	`, day.Format(core.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to list sent emails: %w", err)
	}
	defer rows.Close()

	var records []core.SentEmailRecord
	for rows.Next() {
		var rec core.SentEmailRecord
		var evalType string
		var sentDate, sentAt any
		if err := rows.Scan(&rec.EmployeeName, &rec.LeaderEmail, &evalType, &sentDate, &sentAt); err != nil {
			return nil, fmt.Errorf("failed to scan sent email: %w", err)
		}
		rec.EvaluationType = core.EvaluationType(evalType)
		if rec.SentDate, err = parseDBTime(sentDate); err != nil {
			return nil, fmt.Errorf("failed to parse sent_date: %w", err)
		}
		rec.SentDate = core.CivilDate(rec.SentDate, nil)
		if rec.SentAt, err = parseDBTime(sentAt); err != nil {
			return nil, fmt.Errorf("failed to parse sent_at: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sent emails: %w", err)
	}
	return records, nil
}

// Prune removes entries sent before the given day
func (l *SQLLedger) Prune(ctx context.Context, before time.Time) (int64, error) {
	result, err := l.db.ExecContext(ctx, `
		DELETE FROM sent_emails
		WHERE sent_date < ?
	`, before.Format(core.DateLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to prune sent emails: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		l.logger.Warn("Failed to get rows affected during prune", zap.Error(err))
		return 0, nil
	}
	l.logger.Debug("Pruned sent emails", zap.Int64("removed", rowsAffected))
	return rowsAffected, nil
}

// Kind returns the backend tag
func (l *SQLLedger) Kind() core.BackendKind {
	return core.BackendRelational
}

// Close closes the database connection
func (l *SQLLedger) Close() error {
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("failed to close %s database: %w", l.dialect.name, err)
	}
	return nil
}

var dbTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	core.DateLayout,
}

// parseDBTime accepts the representations drivers return for DATE, DATETIME and TEXT columns
func parseDBTime(v any) (time.Time, error) {
	var s string
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case []byte:
		s = string(t)
	case string:
		s = t
	default:
		return time.Time{}, fmt.Errorf("unsupported time value %T", v)
	}

	s = strings.TrimSpace(s)
	for _, layout := range dbTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time value %q", s)
}
