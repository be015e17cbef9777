package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"CVDMonitor/internal/cache"
	"CVDMonitor/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func obs(symbol string, minute int, price, cvd float64) model.Observation {
	return model.Observation{
		Symbol:       symbol,
		Timestamp:    t0.Add(time.Duration(minute) * time.Minute),
		Price:        price,
		CVD:          cvd,
		PeriodVolume: 10,
		TradeCount:   3,
	}
}

const sampleCSV = `symbol,timestamp,price,cvd,period_volume,trade_count,exchange
ETHUSDT,2025-03-01 00:01:00,3100.5,-98.764,501.9,999,binance
BTCUSDT,2025-03-01T00:00:00Z,64000.5,1234.5678,88.1,420,binance
BTCUSDT,1740787260,64010,1240.001,90,12.0,binance
`

func TestParseCSV(t *testing.T) {
	ds, err := ParseCSV(strings.NewReader(sampleCSV), 2)
	require.NoError(t, err)
	require.Len(t, ds.Rows, 3)

	// Sorted by (symbol, timestamp) regardless of file order.
	assert.Equal(t, "BTCUSDT", ds.Rows[0].Symbol)
	assert.Equal(t, "BTCUSDT", ds.Rows[1].Symbol)
	assert.Equal(t, "ETHUSDT", ds.Rows[2].Symbol)

	assert.True(t, ds.Rows[0].Timestamp.Equal(t0))
	assert.True(t, ds.Rows[1].Timestamp.Equal(t0.Add(time.Minute)), ds.Rows[1].Timestamp)
	assert.True(t, ds.Rows[2].Timestamp.Equal(t0.Add(time.Minute)))

	assert.Equal(t, 1234.57, ds.Rows[0].CVD)
	assert.Equal(t, 1240.0, ds.Rows[1].CVD)
	assert.Equal(t, -98.76, ds.Rows[2].CVD)
	assert.Equal(t, int64(12), ds.Rows[1].TradeCount)
	assert.NoError(t, ds.Validate())
}

func TestParseCSV_NoRounding(t *testing.T) {
	ds, err := ParseCSV(strings.NewReader(sampleCSV), NoRounding)
	require.NoError(t, err)
	assert.Equal(t, 1234.5678, ds.Rows[0].CVD)
}

func TestParseCSV_SchemaErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		column string
		row    int
	}{
		{"empty", "", model.ColumnSymbol, -1},
		{"missing cvd", "symbol,timestamp,price,period_volume,trade_count\n", model.ColumnCVD, -1},
		{"bad timestamp", "symbol,timestamp,price,cvd,period_volume,trade_count\nBTC,yesterday,1,1,1,1\n", model.ColumnTimestamp, 0},
		{"bad price", "symbol,timestamp,price,cvd,period_volume,trade_count\nBTC,1740787200,1,1,1,1\nBTC,1740787260,abc,1,1,1\n", model.ColumnPrice, 1},
		{"fractional trade count", "symbol,timestamp,price,cvd,period_volume,trade_count\nBTC,1740787200,1,1,1,1.5\n", model.ColumnTradeCount, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.input), 2)
			var se *model.SchemaError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.column, se.Column)
			assert.Equal(t, tt.row, se.Row)
		})
	}
}

func TestCSVSource_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cvd.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	src := NewCSVSource(path, 2)
	ds, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, "csv:"+path, src.Name())

	_, err = NewCSVSource(filepath.Join(t.TempDir(), "nope.csv"), 2).Load(context.Background())
	assert.Error(t, err)
}

func TestParseTimestamp(t *testing.T) {
	for _, s := range []string{
		"2025-03-01T00:00:00Z",
		"2025-03-01T08:00:00+08:00",
		"2025-03-01 00:00:00",
		"2025-03-01T00:00:00",
		"2025-03-01 00:00",
		"2025-03-01 00:00:00+00:00",
		"2025-03-01 08:00:00+08:00",
		"2025-03-01 00:00:00.000000+00:00",
		"1740787200",
	} {
		ts, ok := ParseTimestamp(s)
		require.True(t, ok, s)
		assert.True(t, ts.Equal(t0), "%s parsed as %s", s, ts)
	}
	for s, want := range map[string]time.Time{
		"2025-03-01 00:00:00.500":        t0.Add(500 * time.Millisecond),
		"2025-03-01 00:00:00.25+00:00":   t0.Add(250 * time.Millisecond),
		"2025-03-01T00:00:00.123456789Z": t0.Add(123456789 * time.Nanosecond),
	} {
		ts, ok := ParseTimestamp(s)
		require.True(t, ok, s)
		assert.True(t, ts.Equal(want), "%s parsed as %s", s, ts)
	}

	_, ok := ParseTimestamp("")
	assert.False(t, ok)
	_, ok = ParseTimestamp("03/01/2025")
	assert.False(t, ok)
}

func newSQLiteSource(t *testing.T) *SQLiteSource {
	t.Helper()
	src, err := NewSQLiteSource(filepath.Join(t.TempDir(), "cvd.db"), "", 2)
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })
	return src
}

func TestSQLiteSource_ImportAndLoad(t *testing.T) {
	ctx := context.Background()
	src := newSQLiteSource(t)

	in := model.NewDataset([]model.Observation{
		obs("ETHUSDT", 0, 3100, -12.5),
		obs("BTCUSDT", 1, 64010, 101.25),
		obs("BTCUSDT", 0, 64000, 100.75),
	})
	n, err := src.Import(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Upsert on (symbol, timestamp).
	_, err = src.Import(ctx, model.NewDataset([]model.Observation{obs("BTCUSDT", 1, 64020, 102)}))
	require.NoError(t, err)

	ds, err := src.Load(ctx)
	require.NoError(t, err)
	require.Len(t, ds.Rows, 3)
	assert.Equal(t, obs("BTCUSDT", 0, 64000, 100.75), ds.Rows[0])
	assert.Equal(t, obs("BTCUSDT", 1, 64020, 102), ds.Rows[1])
	assert.Equal(t, obs("ETHUSDT", 0, 3100, -12.5), ds.Rows[2])
}

func TestSQLiteSource_UnixTimestamps(t *testing.T) {
	ctx := context.Background()
	src := newSQLiteSource(t)
	_, err := src.Import(ctx, model.NewDataset(nil))
	require.NoError(t, err)

	_, err = src.db.ExecContext(ctx, `INSERT INTO cvd_observations VALUES ('BTCUSDT', 1740787200, 1, 1.005, 1, 1)`)
	require.NoError(t, err)

	ds, err := src.Load(ctx)
	require.NoError(t, err)
	require.Len(t, ds.Rows, 1)
	assert.True(t, ds.Rows[0].Timestamp.Equal(t0))
}

func TestSQLiteSource_SchemaErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing column", func(t *testing.T) {
		src := newSQLiteSource(t)
		_, err := src.db.ExecContext(ctx, `CREATE TABLE cvd_observations (symbol TEXT, timestamp TEXT, price REAL)`)
		require.NoError(t, err)

		_, err = src.Load(ctx)
		var se *model.SchemaError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, model.ColumnCVD, se.Column)
	})

	t.Run("missing table", func(t *testing.T) {
		src := newSQLiteSource(t)
		_, err := src.Load(ctx)
		var se *model.SchemaError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, model.ColumnSymbol, se.Column)
	})

	t.Run("null cell", func(t *testing.T) {
		src := newSQLiteSource(t)
		_, err := src.db.ExecContext(ctx, `CREATE TABLE cvd_observations
			(symbol TEXT, timestamp TEXT, price REAL, cvd REAL, period_volume REAL, trade_count INTEGER)`)
		require.NoError(t, err)
		_, err = src.db.ExecContext(ctx, `INSERT INTO cvd_observations VALUES ('BTCUSDT', '2025-03-01 00:00:00', NULL, 1, 1, 1)`)
		require.NoError(t, err)

		_, err = src.Load(ctx)
		var se *model.SchemaError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, model.ColumnPrice, se.Column)
		assert.Equal(t, 0, se.Row)
	})

	t.Run("bad table name", func(t *testing.T) {
		_, err := NewSQLiteSource(filepath.Join(t.TempDir(), "x.db"), "cvd; DROP TABLE x", 2)
		assert.Error(t, err)
	})
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"symbol":"ETHUSDT","timestamp":1740787200,"price":3100,"cvd":-1.234,"period_volume":5,"trade_count":2},
			{"symbol":"BTCUSDT","timestamp":1740787200,"price":64000,"cvd":9.999,"period_volume":1,"trade_count":1}
		]`))
	}))
	defer srv.Close()

	ds, err := NewHTTPSource(srv.URL, "secret", "", 2).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, "BTCUSDT", ds.Rows[0].Symbol)
	assert.Equal(t, 10.0, ds.Rows[0].CVD)
	assert.Equal(t, -1.23, ds.Rows[1].CVD)
	assert.True(t, ds.Rows[1].Timestamp.Equal(t0))

	_, err = NewHTTPSource(srv.URL, "wrong", "", 2).Load(context.Background())
	assert.ErrorContains(t, err, "status 401")
}

func TestHTTPSource_MissingField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"symbol":"BTCUSDT","timestamp":1740787200,"price":1,"period_volume":1,"trade_count":1}]`))
	}))
	defer srv.Close()

	_, err := NewHTTPSource(srv.URL, "", "", 2).Load(context.Background())
	var se *model.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, model.ColumnCVD, se.Column)
}

func TestFilters(t *testing.T) {
	ds := model.NewDataset([]model.Observation{
		obs("BTCUSDT", 0, 1, 1),
		obs("BTCUSDT", 60, 1, 1),
		obs("ETHUSDT", 120, 1, 1),
		obs("SOLUSDT", 180, 1, 1),
	})

	t.Run("hours keeps the cutoff row", func(t *testing.T) {
		got := FilterByHours(ds, 2)
		require.Len(t, got.Rows, 3)
		assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}, Symbols(got))
	})

	t.Run("days", func(t *testing.T) {
		assert.Len(t, FilterByDays(ds, 1).Rows, 4)
	})

	t.Run("non-positive hours is a no-op", func(t *testing.T) {
		assert.Same(t, ds, FilterByHours(ds, 0))
	})

	t.Run("symbols", func(t *testing.T) {
		got := FilterBySymbols(ds, []string{"ETHUSDT", "XRPUSDT"})
		require.Len(t, got.Rows, 1)
		assert.Equal(t, "ETHUSDT", got.Rows[0].Symbol)
		assert.Same(t, ds, FilterBySymbols(ds, nil))
	})

	t.Run("time range", func(t *testing.T) {
		from, to := TimeRange(ds)
		assert.True(t, from.Equal(t0))
		assert.True(t, to.Equal(t0.Add(3*time.Hour)))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Nil(t, Symbols(nil))
		assert.Equal(t, 0, FilterByHours(model.NewDataset(nil), 24).Len())
		from, to := TimeRange(nil)
		assert.True(t, from.IsZero())
		assert.True(t, to.IsZero())
	})
}

func TestCollector_CachesUntilRefresh(t *testing.T) {
	ctx := context.Background()
	src := &StaticSource{Dataset: model.NewDataset([]model.Observation{obs("BTCUSDT", 0, 1, 1)})}
	c := NewCollector(src, cache.NewMemoryStore(), time.Minute, nil, nil)

	for i := 0; i < 3; i++ {
		ds, err := c.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, ds.Len())
	}
	assert.Equal(t, 1, src.Calls())

	_, err := c.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.Calls())

	_, err = c.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.Calls())
}

func TestCollector_ConcurrentMissesShareLoad(t *testing.T) {
	src := &StaticSource{Dataset: model.NewDataset([]model.Observation{obs("BTCUSDT", 0, 1, 1)})}
	c := NewCollector(src, nil, 0, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Snapshot(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, src.Calls(), 16)
	assert.GreaterOrEqual(t, src.Calls(), 1)
}

func TestCollector_LoadError(t *testing.T) {
	src := &StaticSource{Err: errors.New("disk gone")}
	c := NewCollector(src, nil, time.Minute, nil, nil)

	_, err := c.Snapshot(context.Background())
	assert.EqualError(t, err, "disk gone")

	_, err = c.Snapshot(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 2, src.Calls(), "failed loads must not be cached")
}

func TestCollector_Window(t *testing.T) {
	src := &StaticSource{Dataset: model.NewDataset([]model.Observation{
		obs("BTCUSDT", 0, 1, 1),
		obs("BTCUSDT", 180, 1, 1),
		obs("ETHUSDT", 180, 1, 1),
	})}
	c := NewCollector(src, nil, time.Minute, nil, nil)

	ds, err := c.Window(context.Background(), 1, []string{"BTCUSDT"})
	require.NoError(t, err)
	require.Len(t, ds.Rows, 1)
	assert.True(t, ds.Rows[0].Timestamp.Equal(t0.Add(3*time.Hour)))
}
