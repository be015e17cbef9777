// Package metrics exposes Prometheus instrumentation for analysis runs.
//
// All methods are safe on a nil *Metrics so callers can run uninstrumented.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cvdmonitor"

// Metrics owns a private registry plus the collectors registered on it.
type Metrics struct {
	registry *prometheus.Registry

	runs             *prometheus.CounterVec
	runDuration      prometheus.Histogram
	symbolsAnalyzed  prometheus.Gauge
	divergentSymbols prometheus.Gauge
	symbolsSkipped   prometheus.Counter
	windowsEvaluated prometheus.Counter
	periodsDetected  prometheus.Counter
	cacheRequests    *prometheus.CounterVec
	notifications    *prometheus.CounterVec
}

// New builds and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_runs_total",
			Help:      "Analysis runs by result.",
		}, []string{"result"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of a full analysis run.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		symbolsAnalyzed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "symbols_analyzed",
			Help:      "Symbols present in the last analyzed dataset.",
		}),
		divergentSymbols: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "divergent_symbols",
			Help:      "Symbols with at least one divergence period in the last run.",
		}),
		symbolsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "symbols_skipped_total",
			Help:      "Symbols skipped for having too few observations.",
		}),
		windowsEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "windows_evaluated_total",
			Help:      "Candidate windows evaluated by the divergence engine.",
		}),
		periodsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "divergence_periods_total",
			Help:      "Divergence periods emitted.",
		}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Snapshot cache lookups by result.",
		}, []string{"result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Outbound notifications by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		m.runs, m.runDuration, m.symbolsAnalyzed, m.divergentSymbols,
		m.symbolsSkipped, m.windowsEvaluated, m.periodsDetected,
		m.cacheRequests, m.notifications,
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ScanStats is what one analysis run reports.
type ScanStats struct {
	Symbols   int
	Divergent int
	Skipped   int
	Windows   int
	Periods   int
	Duration  time.Duration
}

// ObserveRun records a successful run.
func (m *Metrics) ObserveRun(s ScanStats) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues("ok").Inc()
	m.runDuration.Observe(s.Duration.Seconds())
	m.symbolsAnalyzed.Set(float64(s.Symbols))
	m.divergentSymbols.Set(float64(s.Divergent))
	m.symbolsSkipped.Add(float64(s.Skipped))
	m.windowsEvaluated.Add(float64(s.Windows))
	m.periodsDetected.Add(float64(s.Periods))
}

// RunFailed counts a run that returned an error.
func (m *Metrics) RunFailed() {
	if m == nil {
		return
	}
	m.runs.WithLabelValues("error").Inc()
}

// CacheLookup counts a snapshot cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheRequests.WithLabelValues("hit").Inc()
		return
	}
	m.cacheRequests.WithLabelValues("miss").Inc()
}

// Notification counts an outbound message.
func (m *Metrics) Notification(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.notifications.WithLabelValues("error").Inc()
		return
	}
	m.notifications.WithLabelValues("ok").Inc()
}
