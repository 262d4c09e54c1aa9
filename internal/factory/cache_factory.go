package factory

import (
	"github.com/mikey/hr-notifier/internal/adapters/cache"
	"github.com/mikey/hr-notifier/internal/config"
	"github.com/mikey/hr-notifier/internal/core"
	"go.uber.org/zap"
)

// CacheFactory wraps record sources in the snapshot cache
type CacheFactory struct {
	cfg      *config.Config
	clock    core.Clock
	recorder cache.Recorder
	logger   *zap.Logger
}

// NewCacheFactory creates a new cache factory
func NewCacheFactory(cfg *config.Config, clock core.Clock, recorder cache.Recorder, logger *zap.Logger) *CacheFactory {
	return &CacheFactory{
		cfg:      cfg,
		clock:    clock,
		recorder: recorder,
		logger:   logger,
	}
}

// CreateSnapshotCache wraps source with the configured TTL
func (f *CacheFactory) CreateSnapshotCache(source core.RecordSource) (*cache.SnapshotCache, error) {
	cacheCfg, err := f.cfg.GetCache()
	if err != nil {
		return nil, err
	}
	return cache.NewSnapshotCache(source, cacheCfg.TTL, f.clock, f.recorder, f.logger), nil
}
