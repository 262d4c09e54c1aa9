package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mikey/hr-notifier/internal/core"
	"go.uber.org/zap"
)

const uniqueViolationCode = "23505"

// Queryer is satisfied by pgxpool.Pool, pgx.Tx and pgxmock pools
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresLedger is a PostgreSQL implementation of the LedgerRepository interface.
// The schema is owned by the embedded migrations.
type PostgresLedger struct {
	db     Queryer
	close  func()
	logger *zap.Logger
}

// NewPostgresLedger creates a ledger over an existing connection
func NewPostgresLedger(db Queryer, logger *zap.Logger) *PostgresLedger {
	return &PostgresLedger{db: db, logger: logger}
}

// OpenPostgresLedger connects a pool and verifies the sent_emails table is reachable
func OpenPostgresLedger(ctx context.Context, databaseURL string, logger *zap.Logger) (*PostgresLedger, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	l := NewPostgresLedger(pool, logger)
	l.close = pool.Close
	if _, err := l.db.Exec(ctx, `SELECT 1 FROM sent_emails LIMIT 1`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("sent_emails table unavailable: %w", err)
	}

	logger.Info("Initialized Postgres ledger")
	return l, nil
}

// Exists checks whether a record with the same key is stored
func (l *PostgresLedger) Exists(ctx context.Context, key core.SendKey) (bool, error) {
	var exists bool
	err := l.db.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM sent_emails
             WHERE employee_name = $1 AND leader_email = $2 AND evaluation_type = $3 AND sent_date = $4
        )
    `, key.EmployeeName, key.LeaderEmail, string(key.EvaluationType), key.SentDate).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query sent_emails: %w", err)
	}
	return exists, nil
}

// Insert stores a ledger entry; a conflicting key is left untouched
func (l *PostgresLedger) Insert(ctx context.Context, record core.SentEmailRecord) error {
	tag, err := l.db.Exec(ctx, `
        INSERT INTO sent_emails (employee_name, leader_email, evaluation_type, sent_date, sent_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (employee_name, leader_email, evaluation_type, sent_date) DO NOTHING
    `, record.EmployeeName, record.LeaderEmail, string(record.EvaluationType), record.SentDate, record.SentAt)
	if err != nil {
		if err = translatePgError(err); errors.Is(err, core.ErrDuplicateConflict) {
			return nil
		}
		return fmt.Errorf("failed to insert sent email: %w", err)
	}
	if tag.RowsAffected() == 0 {
		l.logger.Debug("Ledger entry already recorded",
			zap.String("employee", record.EmployeeName),
			zap.String("evaluation_type", string(record.EvaluationType)))
	}
	return nil
}

// ListByDate returns the entries of one day, newest first
func (l *PostgresLedger) ListByDate(ctx context.Context, day time.Time) ([]core.SentEmailRecord, error) {
	rows, err := l.db.Query(ctx, `
        SELECT employee_name, leader_email, evaluation_type, sent_date, sent_at
          FROM sent_emails
         WHERE sent_date = $1
         ORDER BY sent_at DESC
    `, day)
	if err != nil {
		return nil, fmt.Errorf("failed to list sent emails: %w", err)
	}
	defer rows.Close()

	var records []core.SentEmailRecord
	for rows.Next() {
		var rec core.SentEmailRecord
		var evalType string
		if err := rows.Scan(&rec.EmployeeName, &rec.LeaderEmail, &evalType, &rec.SentDate, &rec.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan sent email: %w", err)
		}
		rec.EvaluationType = core.EvaluationType(evalType)
		rec.SentDate = core.CivilDate(rec.SentDate, nil)
		rec.SentAt = rec.SentAt.UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sent emails: %w", err)
	}
	return records, nil
}

// Prune removes entries sent before the given day
func (l *PostgresLedger) Prune(ctx context.Context, before time.Time) (int64, error) {
	tag, err := l.db.Exec(ctx, `DELETE FROM sent_emails WHERE sent_date < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune sent emails: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Kind returns the backend tag
func (l *PostgresLedger) Kind() core.BackendKind {
	return core.BackendRelational
}

// Close releases the pool
func (l *PostgresLedger) Close() error {
	if l.close != nil {
		l.close()
	}
	return nil
}

func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, core.ErrDuplicateConflict)
	}
	return err
}
