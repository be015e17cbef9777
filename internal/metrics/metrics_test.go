package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRun(t *testing.T) {
	m := New()
	m.ObserveRun(ScanStats{Symbols: 5, Divergent: 2, Skipped: 1, Windows: 40, Periods: 3, Duration: 20 * time.Millisecond})
	m.ObserveRun(ScanStats{Symbols: 4, Divergent: 1, Skipped: 0, Windows: 10, Periods: 1})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues("ok")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.symbolsAnalyzed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.divergentSymbols))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.symbolsSkipped))
	assert.Equal(t, 50.0, testutil.ToFloat64(m.windowsEvaluated))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.periodsDetected))
	assert.Equal(t, 1, testutil.CollectAndCount(m.runDuration))
}

func TestCountersByLabel(t *testing.T) {
	m := New()
	m.RunFailed()
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)
	m.Notification(nil)
	m.Notification(errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheRequests.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheRequests.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("error")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRun(ScanStats{Symbols: 1})
		m.RunFailed()
		m.CacheLookup(true)
		m.Notification(nil)
	})
	assert.Nil(t, m.Registry())
}

func TestHandler(t *testing.T) {
	m := New()
	m.CacheLookup(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `cvdmonitor_cache_requests_total{result="hit"} 1`), body)
}
