package collector

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"CVDMonitor/internal/model"

	"github.com/shopspring/decimal"
)

// Source loads the full observation table from an external store.
type Source interface {
	Load(ctx context.Context) (*model.Dataset, error)
	Name() string
}

// NoRounding disables CVD rounding on load.
const NoRounding int32 = -1

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// ParseTimestamp accepts RFC3339, the common SQL datetime layouts with or
// without an offset (read as UTC when absent) and integer unix seconds.
// Fractional seconds are accepted after any seconds field.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), true
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// roundCVD rounds half away from zero to the given number of decimals.
func roundCVD(v float64, places int32) float64 {
	if places < 0 {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// sortRows orders rows by (symbol, timestamp) in place.
func sortRows(rows []model.Observation) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Symbol != rows[j].Symbol {
			return rows[i].Symbol < rows[j].Symbol
		}
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})
}

// missingColumn returns the first required column absent from have.
func missingColumn(have map[string]int) (string, bool) {
	for _, col := range model.RequiredColumns {
		if _, ok := have[col]; !ok {
			return col, true
		}
	}
	return "", false
}
