// Package monitor runs one full analysis pass over a dataset snapshot.
package monitor

import (
	"time"

	"CVDMonitor/internal/calculator"
	"CVDMonitor/internal/collector"
	"CVDMonitor/internal/metrics"
	"CVDMonitor/internal/model"
	"CVDMonitor/internal/ranking"
	"CVDMonitor/internal/strategy"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Report is everything one analysis pass produced.
type Report struct {
	RunID       string                     `json:"run_id"`
	GeneratedAt time.Time                  `json:"generated_at"`
	Strategy    strategy.DetectionStrategy `json:"strategy"`
	WindowSize  int                        `json:"window_size"`
	From        time.Time                  `json:"from"`
	To          time.Time                  `json:"to"`
	Rows        int                        `json:"rows"`
	Symbols     []string                   `json:"symbols"`

	ZScores  []model.ZScorePoint                `json:"zscores,omitempty"`
	Rankings map[model.Metric][]model.RankedRow `json:"rankings"`

	Divergent        []string                            `json:"divergent"`
	Periods          map[string][]model.DivergencePeriod `json:"periods"`
	Skipped          []string                            `json:"skipped,omitempty"`
	WindowsEvaluated int                                 `json:"windows_evaluated"`
}

// Top returns the first n rows of the ranking for metric.
func (r *Report) Top(metric model.Metric, n int) []model.RankedRow {
	return ranking.Top(r.Rankings[metric], n)
}

// PeriodCount is the number of divergence periods across symbols.
func (r *Report) PeriodCount() int {
	n := 0
	for _, p := range r.Periods {
		n += len(p)
	}
	return n
}

// Monitor ties the normalizer, rank engine and divergence engine together.
type Monitor struct {
	engine  *strategy.Engine
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a Monitor. m and logger may be nil.
func New(engine *strategy.Engine, m *metrics.Metrics, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{engine: engine, metrics: m, logger: logger.Named("monitor"), now: time.Now}
}

// Engine returns the divergence engine in use.
func (m *Monitor) Engine() *strategy.Engine { return m.engine }

// Analyze validates ds once and then produces z-scores, a ranking for every
// metric and the divergence scan. Nothing is returned alongside an error.
func (m *Monitor) Analyze(ds *model.Dataset) (*Report, error) {
	start := m.now()
	report, err := m.analyze(ds)
	if err != nil {
		m.metrics.RunFailed()
		m.logger.Error("analysis failed", zap.Error(err))
		return nil, err
	}
	report.GeneratedAt = start

	m.metrics.ObserveRun(metrics.ScanStats{
		Symbols:   len(report.Symbols),
		Divergent: len(report.Divergent),
		Skipped:   len(report.Skipped),
		Windows:   report.WindowsEvaluated,
		Periods:   report.PeriodCount(),
		Duration:  m.now().Sub(start),
	})
	m.logger.Info("analysis complete",
		zap.String("run_id", report.RunID),
		zap.Int("rows", report.Rows),
		zap.Int("symbols", len(report.Symbols)),
		zap.Strings("divergent", report.Divergent),
		zap.Int("skipped", len(report.Skipped)),
	)
	return report, nil
}

// analyze validates and partitions once; the calculator, ranking and strategy
// steps below take the validated series and skip their own checks.
func (m *Monitor) analyze(ds *model.Dataset) (*Report, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	series := ds.Partition()

	zs := calculator.ZScoresOf(ds.Len(), series)

	latest := ranking.Latest(ds)
	rankings := make(map[model.Metric][]model.RankedRow, len(model.Metrics))
	for _, metric := range model.Metrics {
		rankings[metric] = ranking.RankLatest(latest, metric)
	}

	scan := m.engine.ScanSeries(series)

	cfg := m.engine.Config()
	from, to := collector.TimeRange(ds)
	return &Report{
		RunID:            uuid.NewString(),
		Strategy:         cfg.Strategy,
		WindowSize:       cfg.WindowSize,
		From:             from,
		To:               to,
		Rows:             ds.Len(),
		Symbols:          collector.Symbols(ds),
		ZScores:          zs,
		Rankings:         rankings,
		Divergent:        scan.DivergentSymbols(),
		Periods:          scan.Periods,
		Skipped:          scan.Skipped,
		WindowsEvaluated: scan.WindowsEvaluated,
	}, nil
}

// SymbolZScores returns the z-scored series of one symbol in time order.
func SymbolZScores(ds *model.Dataset, symbol string) ([]model.ZScorePoint, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	for _, s := range ds.Partition() {
		if s.Symbol == symbol {
			return calculator.SeriesZScores(s), nil
		}
	}
	return nil, nil
}
