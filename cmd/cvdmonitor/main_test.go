package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"CVDMonitor/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFixture writes a CSV where BTCUSDT's CVD rises while price falls over
// points 30..60 and ETHUSDT is flat.
func writeFixture(t *testing.T, dir string) string {
	t.Helper()
	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	var b strings.Builder
	b.WriteString("symbol,timestamp,price,cvd,period_volume,trade_count\n")
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for k := 0; k < 90; k++ {
		cvd, price := -1.0, 100.0
		switch {
		case k > 60:
			cvd, price = 1, 90
		case k >= 30:
			cvd = -1 + 2*float64(k-30)/30
			price = 100 - 10*float64(k-30)/30
		}
		ts := t0.Add(time.Duration(k) * time.Minute).Format(time.RFC3339)
		fmt.Fprintf(&b, "BTCUSDT,%s,%s,%s,5,100\n", ts, f(price), f(cvd))
		fmt.Fprintf(&b, "ETHUSDT,%s,3,3,7,50\n", ts)
	}
	path := filepath.Join(dir, "cvd.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func writeYAML(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	flagHours, flagSymbols, flagJSON, flagDebug = 0, nil, false, false
	rankMetric, rankTop = "period_volume", 0
	divStrategy, divWindow = "", 0
	zscoreSymbol, zscoreLimit = "", 0
	importTable = "cvd_observations"

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestRankJSON(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	csv := writeFixture(t, dir)
	cfg := writeYAML(t, dir, "data_source:\n  csv_path: "+csv+"\n  round_cvd: -1\n")

	var rows []model.RankedRow
	require.NoError(t, json.Unmarshal([]byte(execute(t, "--config", cfg, "--json", "rank", "--metric", "trade_count")), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, model.RankedRow{Symbol: "BTCUSDT", Value: 100, Rank: 1}, rows[0])
	assert.Equal(t, model.RankedRow{Symbol: "ETHUSDT", Value: 50, Rank: 2}, rows[1])
}

func TestDivergenceJSON(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	csv := writeFixture(t, dir)
	cfg := writeYAML(t, dir, "data_source:\n  csv_path: "+csv+"\n  round_cvd: -1\n")

	var got struct {
		Divergent []string                            `json:"divergent"`
		Periods   map[string][]model.DivergencePeriod `json:"periods"`
	}
	require.NoError(t, json.Unmarshal([]byte(execute(t, "--config", cfg, "--json", "divergence", "--window", "30")), &got))
	assert.Equal(t, []string{"BTCUSDT"}, got.Divergent)
	require.Len(t, got.Periods["BTCUSDT"], 1)
	assert.Equal(t, 15, got.Periods["BTCUSDT"][0].StartIndex)
	assert.Equal(t, 75, got.Periods["BTCUSDT"][0].EndIndex)
}

func TestDivergenceTable(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	csv := writeFixture(t, dir)
	cfg := writeYAML(t, dir, "data_source:\n  csv_path: "+csv+"\n  round_cvd: -1\n")

	out := execute(t, "--config", cfg, "divergence")
	assert.Contains(t, out, "Divergence periods")
	assert.Contains(t, out, "2025-03-01 00:15:00")
	assert.Contains(t, out, "1 of 2 symbols divergent")
}

func TestImportThenSymbols(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	csv := writeFixture(t, dir)
	db := filepath.Join(dir, "cvd.db")

	out := execute(t, "import", "--csv", csv, "--sqlite", db)
	assert.Contains(t, out, "imported 180 rows (2 symbols)")

	cfg := writeYAML(t, dir, "data_source:\n  sqlite_path: "+db+"\n")
	var symbols []string
	require.NoError(t, json.Unmarshal([]byte(execute(t, "--config", cfg, "--json", "symbols")), &symbols))
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, symbols)
}

func TestInvalidMetric(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	csv := writeFixture(t, dir)
	cfg := writeYAML(t, dir, "data_source:\n  csv_path: "+csv+"\n")

	flagJSON = false
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"--config", cfg, "rank", "--metric", "volume"})
	err := rootCmd.Execute()
	var ime *model.InvalidMetricError
	require.ErrorAs(t, err, &ime)
	assert.Equal(t, "volume", ime.Metric)
}

// chdir mirrors testing.T.Chdir (Go 1.24+): it changes the working
// directory for the duration of the test and restores it on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
