package model

import "time"

// Metric names a rankable column.
type Metric string

const (
	MetricPeriodVolume Metric = "period_volume"
	MetricTradeCount   Metric = "trade_count"
	MetricCVD          Metric = "cvd"
)

// Metrics is the allow-list of rankable metrics.
var Metrics = []Metric{MetricPeriodVolume, MetricTradeCount, MetricCVD}

// ParseMetric validates a metric name against the allow-list.
func ParseMetric(name string) (Metric, error) {
	for _, m := range Metrics {
		if string(m) == name {
			return m, nil
		}
	}
	return "", &InvalidMetricError{Metric: name, Valid: append([]Metric(nil), Metrics...)}
}

// Value reads the metric column from an observation.
func (m Metric) Value(o Observation) float64 {
	switch m {
	case MetricPeriodVolume:
		return o.PeriodVolume
	case MetricTradeCount:
		return float64(o.TradeCount)
	case MetricCVD:
		return o.CVD
	}
	return 0
}

// RankedRow is one line of a ranking table. Rank starts at 1.
type RankedRow struct {
	Symbol string  `json:"symbol"`
	Value  float64 `json:"value"`
	Rank   int     `json:"rank"`
}

// DivergencePeriod is an interval where the CVD trend and the price trend
// point in opposite directions. EndIndex is exclusive; Duration counts observations.
type DivergencePeriod struct {
	Symbol     string    `json:"symbol"`
	StartIndex int       `json:"start_index"`
	EndIndex   int       `json:"end_index"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	CVDTrend   float64   `json:"cvd_trend"`
	PriceTrend float64   `json:"price_trend"`
	Strength   float64   `json:"strength"`
	Duration   int       `json:"duration"`
}
