// Package strategy detects CVD/price divergence periods per symbol.
package strategy

import (
	"runtime"
	"sort"

	"CVDMonitor/internal/model"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// detector scans one symbol. Implementations must not retain or mutate the series.
type detector interface {
	detect(s model.Series) symbolScan
	minPoints() int
}

type symbolScan struct {
	periods []model.DivergencePeriod
	windows int
	skipped bool
}

// ScanResult is the outcome of one engine invocation.
type ScanResult struct {
	// Periods holds only symbols with at least one period.
	Periods          map[string][]model.DivergencePeriod
	Skipped          []string
	Symbols          int
	WindowsEvaluated int
}

// DivergentSymbols returns the symbols with at least one period, sorted.
func (r *ScanResult) DivergentSymbols() []string {
	out := make([]string, 0, len(r.Periods))
	for s := range r.Periods {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// PeriodCount is the total number of periods across symbols.
func (r *ScanResult) PeriodCount() int {
	n := 0
	for _, p := range r.Periods {
		n += len(p)
	}
	return n
}

// Engine runs the configured detection strategy over a dataset.
type Engine struct {
	cfg      Config
	detector detector
	logger   *zap.Logger
}

// New validates cfg and builds an engine.
func New(cfg Config, logger *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{cfg: cfg, logger: logger}
	switch cfg.Strategy {
	case SinglePoint:
		e.detector = singlePoint{cfg: cfg}
	default:
		e.detector = windowedTrend{cfg: cfg}
	}
	return e, nil
}

// Config returns the engine parameters.
func (e *Engine) Config() Config { return e.cfg }

// Scan validates the dataset and detects divergence periods for every symbol.
// Symbols are scanned in parallel; the result does not depend on scheduling.
func (e *Engine) Scan(ds *model.Dataset) (*ScanResult, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return e.ScanSeries(ds.Partition()), nil
}

// ScanSeries detects periods in series partitioned from a validated dataset.
func (e *Engine) ScanSeries(series []model.Series) *ScanResult {
	scans := make([]symbolScan, len(series))

	workers := e.cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i := range series {
		i := i
		g.Go(func() error {
			scans[i] = e.detector.detect(series[i])
			return nil
		})
	}
	_ = g.Wait()

	result := &ScanResult{
		Periods: make(map[string][]model.DivergencePeriod),
		Symbols: len(series),
	}
	for i, scan := range scans {
		symbol := series[i].Symbol
		result.WindowsEvaluated += scan.windows
		if scan.skipped {
			result.Skipped = append(result.Skipped, symbol)
			e.logger.Info("symbol skipped: not enough points",
				zap.String("symbol", symbol),
				zap.Int("points", series[i].Len()),
				zap.Int("required", e.detector.minPoints()),
			)
			continue
		}
		if len(scan.periods) > 0 {
			result.Periods[symbol] = scan.periods
		}
	}

	e.logger.Debug("divergence scan finished",
		zap.String("strategy", string(e.cfg.Strategy)),
		zap.Int("symbols", result.Symbols),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("divergent", len(result.Periods)),
		zap.Int("windows", result.WindowsEvaluated),
	)
	return result
}

// DetectDivergentSymbols returns the sorted set of symbols with at least one period.
func (e *Engine) DetectDivergentSymbols(ds *model.Dataset) ([]string, error) {
	result, err := e.Scan(ds)
	if err != nil {
		return nil, err
	}
	return result.DivergentSymbols(), nil
}

// DivergencePeriods maps each divergent symbol to its periods ordered by start index.
// Symbols without periods are absent.
func (e *Engine) DivergencePeriods(ds *model.Dataset) (map[string][]model.DivergencePeriod, error) {
	result, err := e.Scan(ds)
	if err != nil {
		return nil, err
	}
	return result.Periods, nil
}

func newPeriod(s model.Series, start, end int, cvdTrend, priceTrend, strength float64) model.DivergencePeriod {
	return model.DivergencePeriod{
		Symbol:     s.Symbol,
		StartIndex: start,
		EndIndex:   end,
		StartTime:  s.Points[start].Timestamp,
		EndTime:    s.Points[end-1].Timestamp,
		CVDTrend:   cvdTrend,
		PriceTrend: priceTrend,
		Strength:   strength,
		Duration:   end - start,
	}
}

// overlaps reports whether a candidate starting at start would intersect the last accepted period.
func overlaps(periods []model.DivergencePeriod, start int) bool {
	return len(periods) > 0 && start < periods[len(periods)-1].EndIndex
}
