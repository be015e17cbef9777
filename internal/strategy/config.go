package strategy

import (
	"github.com/pkg/errors"
)

// DetectionStrategy selects the divergence algorithm.
type DetectionStrategy string

const (
	// WindowedTrend compares normalized OLS trends of CVD z-score and price over a sliding window.
	WindowedTrend DetectionStrategy = "windowed_trend"
	// SinglePoint flags CVD z-score extremes whose short look-back disagrees with price.
	SinglePoint DetectionStrategy = "single_point"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid divergence config")

// Config holds the divergence engine parameters.
type Config struct {
	Strategy                   DetectionStrategy `yaml:"strategy"`
	WindowSize                 int               `yaml:"window_size"`
	TrendSignificanceThreshold float64           `yaml:"trend_significance_threshold"`
	TrendFadeThreshold         float64           `yaml:"trend_fade_threshold"`
	Epsilon                    float64           `yaml:"epsilon"`

	// Single point strategy only.
	ZScoreThreshold      float64 `yaml:"zscore_threshold"`
	PriceChangeThreshold float64 `yaml:"price_change_threshold"`

	// Workers bounds per-symbol parallelism. 0 means GOMAXPROCS.
	Workers int `yaml:"workers"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Strategy:                   WindowedTrend,
		WindowSize:                 30,
		TrendSignificanceThreshold: 0.1,
		TrendFadeThreshold:         0.05,
		Epsilon:                    1e-10,
		ZScoreThreshold:            1.0,
		PriceChangeThreshold:       0.05,
	}
}

// Validate reports the first invalid parameter.
func (c Config) Validate() error {
	switch c.Strategy {
	case WindowedTrend, SinglePoint:
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown strategy %q", c.Strategy)
	}
	if c.WindowSize < 2 {
		return errors.Wrapf(ErrInvalidConfig, "window_size must be >= 2, got %d", c.WindowSize)
	}
	if c.TrendSignificanceThreshold < 0 {
		return errors.Wrapf(ErrInvalidConfig, "trend_significance_threshold must be >= 0, got %v", c.TrendSignificanceThreshold)
	}
	if c.TrendFadeThreshold < 0 {
		return errors.Wrapf(ErrInvalidConfig, "trend_fade_threshold must be >= 0, got %v", c.TrendFadeThreshold)
	}
	if c.Epsilon <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "epsilon must be > 0, got %v", c.Epsilon)
	}
	if c.ZScoreThreshold < 0 || c.PriceChangeThreshold < 0 {
		return errors.Wrap(ErrInvalidConfig, "single point thresholds must be >= 0")
	}
	if c.Workers < 0 {
		return errors.Wrapf(ErrInvalidConfig, "workers must be >= 0, got %d", c.Workers)
	}
	return nil
}
