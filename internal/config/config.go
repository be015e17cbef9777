package config

import (
	"os"
	"strconv"
	"time"

	"CVDMonitor/internal/strategy"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	DataSource struct {
		CSVPath    string `yaml:"csv_path"`
		SQLitePath string `yaml:"sqlite_path"`
		Table      string `yaml:"table"`
		HTTPURL    string `yaml:"http_url"`
		APIKey     string `yaml:"api_key"`
		// RoundCVD is the number of decimals kept on load; negative disables rounding.
		RoundCVD int32 `yaml:"round_cvd"`
	} `yaml:"data_source"`
	Analysis struct {
		Hours           int      `yaml:"hours"`
		Symbols         []string `yaml:"symbols"`
		strategy.Config `yaml:",inline"`
	} `yaml:"analysis"`
	Ranking struct {
		TopN int `yaml:"top_n"`
	} `yaml:"ranking"`
	Cache struct {
		TTL           time.Duration `yaml:"ttl"`
		RedisAddr     string        `yaml:"redis_addr"`
		RedisPassword string        `yaml:"redis_password"`
		RedisDB       int           `yaml:"redis_db"`
	} `yaml:"cache"`
	Schedule struct {
		AnalysisCron string `yaml:"analysis_cron"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Metrics struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"metrics"`
	Proxy string `yaml:"proxy"`
}

// Default returns a config with every default applied and no data source.
func Default() *Config {
	cfg := &Config{}
	cfg.DataSource.Table = "cvd_observations"
	cfg.DataSource.RoundCVD = 2
	cfg.Analysis.Hours = 72
	cfg.Analysis.Config = strategy.DefaultConfig()
	cfg.Ranking.TopN = 10
	cfg.Cache.TTL = 30 * time.Second
	cfg.Schedule.AnalysisCron = "0 * * * * *"
	cfg.Metrics.ListenAddr = ":9102"
	return cfg
}

// Load reads .env (if present), then the YAML file at path (a missing file is
// fine), then environment overrides. Fields absent from the file keep their
// defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "load .env")
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "read config")
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "parse config")
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"CVD_CSV_PATH":         &c.DataSource.CSVPath,
		"CVD_SQLITE_PATH":      &c.DataSource.SQLitePath,
		"CVD_HTTP_URL":         &c.DataSource.HTTPURL,
		"CVD_API_KEY":          &c.DataSource.APIKey,
		"REDIS_ADDR":           &c.Cache.RedisAddr,
		"TELEGRAM_BOT_TOKEN":   &c.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":     &c.Telegram.ChatID,
		"HTTPS_PROXY":          &c.Proxy,
		"RECORDER_SQLITE_PATH": &c.Database.SQLitePath,
		"CRON_ANALYSIS":        &c.Schedule.AnalysisCron,
		"METRICS_ADDR":         &c.Metrics.ListenAddr,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"ANALYSIS_HOURS": &c.Analysis.Hours,
		"WINDOW_SIZE":    &c.Analysis.WindowSize,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "parse %s", key)
		}
		*dst = n
	}

	if v := os.Getenv("ANALYSIS_STRATEGY"); v != "" {
		c.Analysis.Strategy = strategy.DetectionStrategy(v)
	}
	return nil
}

// SourceCount reports how many data sources are configured.
func (c *Config) SourceCount() int {
	n := 0
	for _, s := range []string{c.DataSource.CSVPath, c.DataSource.SQLitePath, c.DataSource.HTTPURL} {
		if s != "" {
			n++
		}
	}
	return n
}

// TelegramEnabled reports whether chat delivery is configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.SourceCount() {
	case 0:
		return errors.New("one of data_source.csv_path, data_source.sqlite_path or data_source.http_url is required")
	case 1:
	default:
		return errors.New("data_source: configure exactly one of csv_path, sqlite_path, http_url")
	}
	if c.Analysis.Hours <= 0 {
		return errors.Errorf("analysis.hours must be positive, got %d", c.Analysis.Hours)
	}
	if err := c.Analysis.Config.Validate(); err != nil {
		return errors.Wrap(err, "analysis")
	}
	if c.Ranking.TopN <= 0 {
		return errors.Errorf("ranking.top_n must be positive, got %d", c.Ranking.TopN)
	}
	if c.Cache.TTL <= 0 {
		return errors.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return errors.New("telegram.bot_token and telegram.chat_id must be set together")
	}
	if c.Schedule.AnalysisCron == "" {
		return errors.New("schedule.analysis_cron is required")
	}
	return nil
}
