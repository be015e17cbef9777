package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"CVDMonitor/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 72, cfg.Analysis.Hours)
	assert.Equal(t, strategy.DefaultConfig(), cfg.Analysis.Config)
	assert.Equal(t, 10, cfg.Ranking.TopN)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, int32(2), cfg.DataSource.RoundCVD)
	assert.Equal(t, "cvd_observations", cfg.DataSource.Table)
	assert.Equal(t, "0 * * * * *", cfg.Schedule.AnalysisCron)
	assert.Equal(t, ":9102", cfg.Metrics.ListenAddr)
}

func TestLoad_YAML(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeConfig(t, `
data_source:
  sqlite_path: data/cvd.db
  round_cvd: -1
analysis:
  hours: 24
  symbols: [BTCUSDT, ETHUSDT]
  strategy: single_point
  window_size: 20
  zscore_threshold: 1.5
ranking:
  top_n: 5
cache:
  ttl: 45s
  redis_addr: localhost:6379
telegram:
  bot_token: abc
  chat_id: "42"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "data/cvd.db", cfg.DataSource.SQLitePath)
	assert.Equal(t, int32(-1), cfg.DataSource.RoundCVD)
	assert.Equal(t, 24, cfg.Analysis.Hours)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Analysis.Symbols)
	assert.Equal(t, strategy.SinglePoint, cfg.Analysis.Strategy)
	assert.Equal(t, 20, cfg.Analysis.WindowSize)
	assert.Equal(t, 1.5, cfg.Analysis.ZScoreThreshold)
	// Untouched strategy fields keep their defaults.
	assert.Equal(t, 0.1, cfg.Analysis.TrendSignificanceThreshold)
	assert.Equal(t, 1e-10, cfg.Analysis.Epsilon)
	assert.Equal(t, 5, cfg.Ranking.TopN)
	assert.Equal(t, 45*time.Second, cfg.Cache.TTL)
	assert.True(t, cfg.TelegramEnabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeConfig(t, "analysis:\n  hours: 24\n")

	t.Setenv("CVD_CSV_PATH", "/data/cvd.csv")
	t.Setenv("ANALYSIS_HOURS", "12")
	t.Setenv("WINDOW_SIZE", "15")
	t.Setenv("ANALYSIS_STRATEGY", "single_point")
	t.Setenv("METRICS_ADDR", ":9999")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/cvd.csv", cfg.DataSource.CSVPath)
	assert.Equal(t, 12, cfg.Analysis.Hours)
	assert.Equal(t, 15, cfg.Analysis.WindowSize)
	assert.Equal(t, strategy.SinglePoint, cfg.Analysis.Strategy)
	assert.Equal(t, ":9999", cfg.Metrics.ListenAddr)
}

func TestLoad_BadEnvInt(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("WINDOW_SIZE", "thirty")
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "WINDOW_SIZE")
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CVD_HTTP_URL=http://collector:8080/cvd\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("CVD_HTTP_URL") })

	cfg, err := Load(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://collector:8080/cvd", cfg.DataSource.HTTPURL)
}

func TestLoad_BadYAML(t *testing.T) {
	chdir(t, t.TempDir())
	_, err := Load(writeConfig(t, "analysis: [oops"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := Default()
		c.DataSource.CSVPath = "cvd.csv"
		return c
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no source", func(c *Config) { c.DataSource.CSVPath = "" }},
		{"two sources", func(c *Config) { c.DataSource.SQLitePath = "cvd.db" }},
		{"zero hours", func(c *Config) { c.Analysis.Hours = 0 }},
		{"bad window", func(c *Config) { c.Analysis.WindowSize = 1 }},
		{"unknown strategy", func(c *Config) { c.Analysis.Strategy = "magic" }},
		{"zero top n", func(c *Config) { c.Ranking.TopN = 0 }},
		{"zero ttl", func(c *Config) { c.Cache.TTL = 0 }},
		{"token without chat", func(c *Config) { c.Telegram.BotToken = "abc" }},
		{"chat without token", func(c *Config) { c.Telegram.ChatID = "42" }},
		{"empty cron", func(c *Config) { c.Schedule.AnalysisCron = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
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
