package collector

import (
	"sort"
	"time"

	"CVDMonitor/internal/model"
)

// FilterByHours keeps rows no older than hours before the newest timestamp
// in ds. hours <= 0 returns ds unchanged.
func FilterByHours(ds *model.Dataset, hours int) *model.Dataset {
	if hours <= 0 || ds.Len() == 0 {
		return ds
	}
	return since(ds, latestTimestamp(ds).Add(-time.Duration(hours)*time.Hour))
}

// FilterByDays is FilterByHours in whole days.
func FilterByDays(ds *model.Dataset, days int) *model.Dataset {
	return FilterByHours(ds, days*24)
}

// FilterBySymbols keeps rows for the listed symbols. An empty list keeps all.
func FilterBySymbols(ds *model.Dataset, symbols []string) *model.Dataset {
	if len(symbols) == 0 || ds.Len() == 0 {
		return ds
	}
	want := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		want[s] = struct{}{}
	}
	out := make([]model.Observation, 0, len(ds.Rows))
	for _, r := range ds.Rows {
		if _, ok := want[r.Symbol]; ok {
			out = append(out, r)
		}
	}
	return model.NewDataset(out)
}

// Symbols returns the distinct symbols in ds, sorted.
func Symbols(ds *model.Dataset) []string {
	if ds.Len() == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	for _, r := range ds.Rows {
		seen[r.Symbol] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// TimeRange returns the oldest and newest timestamps in ds.
func TimeRange(ds *model.Dataset) (from, to time.Time) {
	if ds.Len() == 0 {
		return from, to
	}
	for i, r := range ds.Rows {
		if i == 0 || r.Timestamp.Before(from) {
			from = r.Timestamp
		}
		if i == 0 || r.Timestamp.After(to) {
			to = r.Timestamp
		}
	}
	return from, to
}

func latestTimestamp(ds *model.Dataset) time.Time {
	_, to := TimeRange(ds)
	return to
}

func since(ds *model.Dataset, cutoff time.Time) *model.Dataset {
	out := make([]model.Observation, 0, len(ds.Rows))
	for _, r := range ds.Rows {
		if !r.Timestamp.Before(cutoff) {
			out = append(out, r)
		}
	}
	return model.NewDataset(out)
}
