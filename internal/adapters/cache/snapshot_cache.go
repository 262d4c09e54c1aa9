package cache

import (
	"context"
	"sync"
	"time"

	"github.com/mikey/hr-notifier/internal/core"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a fetched snapshot is served without refetching
const DefaultTTL = 120 * time.Second

// Recorder receives cache health counters
type Recorder interface {
	RecordSourceFailure()
	RecordStaleServe()
}

type snapshot struct {
	records   []core.EmployeeRecord
	fetchedAt time.Time
}

// SnapshotCache is a RecordSource that memoizes another RecordSource.
// A fresh snapshot is served as a copy; on fetch failure a previous snapshot is served stale.
type SnapshotCache struct {
	source   core.RecordSource
	ttl      time.Duration
	clock    core.Clock
	recorder Recorder
	logger   *zap.Logger

	mu      sync.RWMutex
	current *snapshot
	group   singleflight.Group
}

// NewSnapshotCache creates a new snapshot cache around source
func NewSnapshotCache(source core.RecordSource, ttl time.Duration, clock core.Clock, recorder Recorder, logger *zap.Logger) *SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = core.SystemClock()
	}
	return &SnapshotCache{
		source:   source,
		ttl:      ttl,
		clock:    clock,
		recorder: recorder,
		logger:   logger,
	}
}

// FetchAll returns the cached records, refreshing them when the snapshot has expired
func (c *SnapshotCache) FetchAll(ctx context.Context) ([]core.EmployeeRecord, error) {
	if snap := c.fresh(); snap != nil {
		return core.CloneRecords(snap.records), nil
	}

	v, err, shared := c.group.Do("snapshot", func() (interface{}, error) {
		// Another caller may have refreshed while we waited for the group
		if snap := c.fresh(); snap != nil {
			return snap, nil
		}
		return c.refresh(ctx)
	})
	if err != nil {
		return c.stale(err)
	}

	if shared {
		c.logger.Debug("Shared in-flight record fetch")
	}
	return core.CloneRecords(v.(*snapshot).records), nil
}

func (c *SnapshotCache) fresh() *snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return nil
	}
	if c.clock.Now().Sub(c.current.fetchedAt) >= c.ttl {
		return nil
	}
	return c.current
}

func (c *SnapshotCache) refresh(ctx context.Context) (*snapshot, error) {
	records, err := c.source.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	snap := &snapshot{
		records:   core.CloneRecords(records),
		fetchedAt: c.clock.Now(),
	}

	c.mu.Lock()
	c.current = snap
	c.mu.Unlock()

	c.logger.Debug("Refreshed record snapshot", zap.Int("records", len(records)))
	return snap, nil
}

func (c *SnapshotCache) stale(err error) ([]core.EmployeeRecord, error) {
	if c.recorder != nil {
		c.recorder.RecordSourceFailure()
	}

	c.mu.RLock()
	snap := c.current
	c.mu.RUnlock()

	if snap == nil {
		c.logger.Error("Failed to fetch records and no snapshot is available", zap.Error(err))
		return nil, err
	}

	if c.recorder != nil {
		c.recorder.RecordStaleServe()
	}
	c.logger.Warn("Serving stale record snapshot",
		zap.Error(err),
		zap.Duration("age", c.clock.Now().Sub(snap.fetchedAt)),
		zap.Int("records", len(snap.records)))
	return core.CloneRecords(snap.records), nil
}
