package main

import (
	"context"
	"io"

	"CVDMonitor/internal/cache"
	"CVDMonitor/internal/collector"
	"CVDMonitor/internal/config"
	"CVDMonitor/internal/metrics"
	"CVDMonitor/internal/model"
	"CVDMonitor/internal/monitor"
	"CVDMonitor/internal/strategy"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// app is the wired component graph shared by every subcommand.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	metrics   *metrics.Metrics
	collector *collector.Collector
	monitor   *monitor.Monitor
	closers   []io.Closer
}

func newLogger() (*zap.Logger, error) {
	if flagDebug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// loadApp reads the config, applies command-line overrides and wires the
// collector and monitor. override may adjust the config before validation.
func loadApp(override func(cfg *config.Config)) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if flagHours > 0 {
		cfg.Analysis.Hours = flagHours
	}
	if len(flagSymbols) > 0 {
		cfg.Analysis.Symbols = flagSymbols
	}
	if override != nil {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation")
	}

	logger, err := newLogger()
	if err != nil {
		return nil, errors.Wrap(err, "init logger")
	}
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}

	src, err := a.openSource()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.collector = collector.NewCollector(src, a.openStore(), cfg.Cache.TTL, a.metrics, logger)

	engine, err := strategy.New(cfg.Analysis.Config, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.monitor = monitor.New(engine, a.metrics, logger)
	logger.Debug("app ready",
		zap.String("source", src.Name()),
		zap.String("strategy", string(cfg.Analysis.Strategy)),
		zap.Int("hours", cfg.Analysis.Hours),
	)
	return a, nil
}

func (a *app) openSource() (collector.Source, error) {
	ds := a.cfg.DataSource
	switch {
	case ds.CSVPath != "":
		return collector.NewCSVSource(ds.CSVPath, ds.RoundCVD), nil
	case ds.SQLitePath != "":
		src, err := collector.NewSQLiteSource(ds.SQLitePath, ds.Table, ds.RoundCVD)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, src)
		return src, nil
	default:
		return collector.NewHTTPSource(ds.HTTPURL, ds.APIKey, a.cfg.Proxy, ds.RoundCVD), nil
	}
}

// openStore prefers Redis when configured and reachable.
func (a *app) openStore() cache.Store {
	c := a.cfg.Cache
	if c.RedisAddr == "" {
		return cache.NewMemoryStore()
	}
	store := cache.NewRedisStore(c.RedisAddr, c.RedisPassword, c.RedisDB)
	if err := store.Ping(context.Background()); err != nil {
		a.logger.Warn("redis unavailable, using in-memory cache", zap.String("addr", c.RedisAddr), zap.Error(err))
		store.Close()
		return cache.NewMemoryStore()
	}
	a.closers = append(a.closers, store)
	return store
}

// window loads the configured horizon and symbol filter.
func (a *app) window(ctx context.Context) (*model.Dataset, error) {
	return a.collector.Window(ctx, a.cfg.Analysis.Hours, a.cfg.Analysis.Symbols)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.logger.Sync()
}
