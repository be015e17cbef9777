package collector

import (
	"context"
	"sync"
	"time"

	"CVDMonitor/internal/cache"
	"CVDMonitor/internal/metrics"
	"CVDMonitor/internal/model"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL matches the dashboard refresh interval.
const DefaultTTL = 30 * time.Second

// StaticSource serves a fixed dataset, for development and testing.
type StaticSource struct {
	Label   string
	Dataset *model.Dataset
	Err     error

	mu    sync.Mutex
	calls int
}

func (s *StaticSource) Name() string {
	if s.Label == "" {
		return "static"
	}
	return s.Label
}

func (s *StaticSource) Load(_ context.Context) (*model.Dataset, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Dataset, nil
}

// Calls reports how many times Load ran.
func (s *StaticSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Collector serves dataset snapshots from a Source through a TTL cache.
// Concurrent misses share one load.
type Collector struct {
	Source  Source
	store   cache.Store
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
	group   singleflight.Group
}

// NewCollector creates a Collector. A nil store gets an in-memory one and a
// non-positive ttl falls back to DefaultTTL.
func NewCollector(src Source, store cache.Store, ttl time.Duration, m *metrics.Metrics, logger *zap.Logger) *Collector {
	if store == nil {
		store = cache.NewMemoryStore()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		Source:  src,
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  logger.Named("collector"),
	}
}

// Snapshot returns the cached dataset, loading it on a miss.
func (c *Collector) Snapshot(ctx context.Context) (*model.Dataset, error) {
	key := c.Source.Name()
	ds, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed, loading from source", zap.String("source", key), zap.Error(err))
	}
	if ok {
		c.metrics.CacheLookup(true)
		return ds, nil
	}
	c.metrics.CacheLookup(false)

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		return c.load(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Dataset), nil
}

// Refresh drops the cached snapshot and reloads it from the source.
func (c *Collector) Refresh(ctx context.Context) (*model.Dataset, error) {
	key := c.Source.Name()
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.Warn("cache delete failed", zap.String("source", key), zap.Error(err))
	}
	c.group.Forget(key)
	return c.load(ctx, key)
}

// Window returns the snapshot restricted to the last hours and to symbols.
func (c *Collector) Window(ctx context.Context, hours int, symbols []string) (*model.Dataset, error) {
	ds, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return FilterBySymbols(FilterByHours(ds, hours), symbols), nil
}

func (c *Collector) load(ctx context.Context, key string) (*model.Dataset, error) {
	start := time.Now()
	ds, err := c.Source.Load(ctx)
	if err != nil {
		c.logger.Error("load failed", zap.String("source", key), zap.Error(err))
		return nil, err
	}
	if ds == nil {
		ds = model.NewDataset(nil)
	}
	c.logger.Info("snapshot loaded",
		zap.String("source", key),
		zap.Int("rows", ds.Len()),
		zap.Duration("took", time.Since(start)),
	)
	if err := c.store.Set(ctx, key, ds, c.ttl); err != nil {
		c.logger.Warn("cache write failed", zap.String("source", key), zap.Error(err))
	}
	return ds, nil
}
