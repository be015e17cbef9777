// Package ranking orders symbols by a metric taken from their latest observation.
package ranking

import (
	"sort"

	"CVDMonitor/internal/model"
)

// Rank selects the latest observation of every symbol, sorts by the metric
// descending and assigns dense ranks 1..K. Equal values are ordered by symbol.
func Rank(ds *model.Dataset, metric model.Metric) ([]model.RankedRow, error) {
	if _, err := model.ParseMetric(string(metric)); err != nil {
		return nil, err
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}

	return RankLatest(Latest(ds), metric), nil
}

// RankLatest ranks one latest observation per symbol. The caller has already
// validated the dataset and the metric.
func RankLatest(latest []model.Observation, metric model.Metric) []model.RankedRow {
	rows := make([]model.RankedRow, len(latest))
	for i, o := range latest {
		rows[i] = model.RankedRow{Symbol: o.Symbol, Value: metric.Value(o)}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Value != rows[j].Value {
			return rows[i].Value > rows[j].Value
		}
		return rows[i].Symbol < rows[j].Symbol
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}

// RankByName parses the metric name before ranking.
func RankByName(ds *model.Dataset, name string) ([]model.RankedRow, error) {
	metric, err := model.ParseMetric(name)
	if err != nil {
		return nil, err
	}
	return Rank(ds, metric)
}

// Latest returns the observation with the maximum timestamp for each symbol,
// sorted by symbol.
func Latest(ds *model.Dataset) []model.Observation {
	if ds.Len() == 0 {
		return nil
	}
	latest := make(map[string]model.Observation)
	for _, o := range ds.Rows {
		cur, ok := latest[o.Symbol]
		if !ok || o.Timestamp.After(cur.Timestamp) {
			latest[o.Symbol] = o
		}
	}
	out := make([]model.Observation, 0, len(latest))
	for _, o := range latest {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Top truncates a ranking to at most n rows. n <= 0 keeps everything.
func Top(rows []model.RankedRow, n int) []model.RankedRow {
	if n <= 0 || n >= len(rows) {
		return rows
	}
	return rows[:n]
}
