package factory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mikey/hr-notifier/internal/adapters/ledger"
	"github.com/mikey/hr-notifier/internal/config"
	"github.com/mikey/hr-notifier/internal/core"
	"go.uber.org/zap"
)

// RelationalOpener opens a relational ledger backend
type RelationalOpener func(ctx context.Context, cfg config.LedgerConfig, logger *zap.Logger) (core.LedgerRepository, error)

// LedgerFactory probes the configured ledger backends once at startup
type LedgerFactory struct {
	cfg     config.LedgerConfig
	loc     *time.Location
	clock   core.Clock
	logger  *zap.Logger
	openers map[string]RelationalOpener
}

// NewLedgerFactory creates a new ledger factory
func NewLedgerFactory(cfg *config.Config, clock core.Clock, logger *zap.Logger) (*LedgerFactory, error) {
	ledgerCfg, err := cfg.GetLedger()
	if err != nil {
		return nil, err
	}
	reminderCfg, err := cfg.GetReminder()
	if err != nil {
		return nil, err
	}
	return &LedgerFactory{
		cfg:    ledgerCfg,
		loc:    reminderCfg.Location,
		clock:  clock,
		logger: logger,
		openers: map[string]RelationalOpener{
			"postgres": openPostgres,
			"mysql":    openMySQL,
			"sqlite":   openSQLite,
		},
	}, nil
}

// WithOpener replaces the opener used for a relational driver
func (f *LedgerFactory) WithOpener(driver string, opener RelationalOpener) *LedgerFactory {
	f.openers[driver] = opener
	return f
}

// CreateLedger returns the first usable backend in the order relational, file, unavailable.
// It never fails; the unavailable backend rejects every operation instead.
func (f *LedgerFactory) CreateLedger(ctx context.Context) core.LedgerRepository {
	if f.cfg.Driver != "file" {
		repo, err := f.openRelational(ctx)
		if err == nil {
			f.logger.Info("Using relational ledger", zap.String("driver", f.cfg.Driver))
			return repo
		}
		f.logger.Warn("Relational ledger unavailable, falling back to file ledger",
			zap.String("driver", f.cfg.Driver),
			zap.Error(err))
	}

	repo, err := ledger.NewFileLedger(f.cfg.FilePath, f.cfg.FileRetentionDays, f.loc, f.clock, f.logger)
	if err == nil {
		f.logger.Info("Using file ledger", zap.String("path", f.cfg.FilePath))
		return repo
	}

	f.logger.Error("File ledger unavailable, sends will be refused",
		zap.String("path", f.cfg.FilePath),
		zap.Error(err))
	return ledger.NewUnavailableLedger(err)
}

func (f *LedgerFactory) openRelational(ctx context.Context) (core.LedgerRepository, error) {
	opener, ok := f.openers[f.cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported ledger driver: %s", f.cfg.Driver)
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.ConnectTimeout)
	defer cancel()

	return opener(ctx, f.cfg, f.logger)
}

func openPostgres(ctx context.Context, cfg config.LedgerConfig, logger *zap.Logger) (core.LedgerRepository, error) {
	if cfg.DSN == "" {
		return nil, errors.New("ledger.dsn is not set")
	}
	if cfg.AutoMigrate {
		if err := ledger.RunMigrationsContext(ctx, cfg.DSN); err != nil {
			return nil, err
		}
	}
	return ledger.OpenPostgresLedger(ctx, cfg.DSN, logger)
}

func openMySQL(ctx context.Context, cfg config.LedgerConfig, logger *zap.Logger) (core.LedgerRepository, error) {
	if cfg.DSN == "" {
		return nil, errors.New("ledger.dsn is not set")
	}
	return ledger.NewMySQLLedger(ctx, cfg.DSN, logger)
}

func openSQLite(ctx context.Context, cfg config.LedgerConfig, logger *zap.Logger) (core.LedgerRepository, error) {
	if cfg.SQLitePath == "" {
		return nil, errors.New("ledger.sqlite_path is not set")
	}
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
	}
	return ledger.NewSQLiteLedger(ctx, cfg.SQLitePath, logger)
}
