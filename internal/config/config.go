package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"wavescope/internal/chart"
	"wavescope/internal/wave"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Data    DataConfig    `yaml:"data"`
	Feed    FeedConfig    `yaml:"feed"`
	Chart   ChartConfig   `yaml:"chart"`
	Refresh RefreshConfig `yaml:"refresh"`
}

// ServerConfig holds the HTTP server settings
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DataConfig holds the on-disk state settings
type DataConfig struct {
	Dir     string `yaml:"dir"`
	Backend string `yaml:"backend"` // watchlist store: "file" or "sqlite"
}

// FeedConfig holds the candle feed settings
type FeedConfig struct {
	Providers   []string      `yaml:"providers"` // fallback order
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	HistoryDays int           `yaml:"history_days"` // span of one older-history page

	// Key-gated strategies; each joins the chain only when its key is set.
	Finnhub      APIKeyConfig `yaml:"finnhub"`
	AlphaVantage APIKeyConfig `yaml:"alphavantage"`
}

// APIKeyConfig holds one keyed provider's credentials
type APIKeyConfig struct {
	Key       string `yaml:"key"`
	RateLimit int    `yaml:"rate_limit"` // requests per minute
}

// ChartConfig holds the default chart session settings
type ChartConfig struct {
	Symbol     string  `yaml:"symbol"`
	MaxCandles int     `yaml:"max_candles"`
	MAWindow   int     `yaml:"ma_window"`
	VolWindow  int     `yaml:"vol_window"`
	Ratio      float64 `yaml:"ratio"` // wave-4 retracement: 0.382, 0.5 or 0.618
}

// RefreshConfig holds the watchlist refresh scheduler settings
type RefreshConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Spec        string `yaml:"spec"`         // cron expression with seconds field
	MarketHours bool   `yaml:"market_hours"` // skip runs outside the US regular session
}

// knownProviders are the feed strategy tokens accepted in FeedConfig.Providers.
var knownProviders = map[string]bool{
	"yahoo":        true,
	"yahoo-mirror": true,
	"stooq":        true,
	"synthetic":    true,
	"finnhub":      true,
	"alphavantage": true,
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8088,
		},
		Data: DataConfig{
			Dir:     "data",
			Backend: "file",
		},
		Feed: FeedConfig{
			Providers:   []string{"yahoo", "yahoo-mirror", "stooq", "synthetic"},
			CacheTTL:    5 * time.Minute,
			HistoryDays: 365,
			Finnhub: APIKeyConfig{
				Key:       os.Getenv("FINNHUB_API_KEY"),
				RateLimit: 60,
			},
			AlphaVantage: APIKeyConfig{
				Key:       os.Getenv("ALPHAVANTAGE_API_KEY"),
				RateLimit: 5,
			},
		},
		Chart: ChartConfig{
			Symbol:     "AAPL",
			MaxCandles: chart.DefaultMaxCandles,
			MAWindow:   chart.DefaultMAWindow,
			VolWindow:  chart.DefaultVolWindow,
			Ratio:      0.618,
		},
		Refresh: RefreshConfig{
			Enabled: true,
			Spec:    "0 */5 * * * *",
		},
	}
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults if file doesn't exist
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Override with environment variables if set
	if dir := os.Getenv("WAVESCOPE_DATA_DIR"); dir != "" {
		cfg.Data.Dir = dir
	}
	if sym := os.Getenv("WAVESCOPE_SYMBOL"); sym != "" {
		cfg.Chart.Symbol = sym
	}
	if key := os.Getenv("FINNHUB_API_KEY"); key != "" {
		cfg.Feed.Finnhub.Key = key
	}
	if key := os.Getenv("ALPHAVANTAGE_API_KEY"); key != "" {
		cfg.Feed.AlphaVantage.Key = key
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Data.Backend != "file" && c.Data.Backend != "sqlite" {
		return fmt.Errorf("data.backend must be \"file\" or \"sqlite\", got %q", c.Data.Backend)
	}
	if len(c.Feed.Providers) == 0 {
		return fmt.Errorf("feed.providers must list at least one strategy")
	}
	for _, name := range c.Feed.Providers {
		if !knownProviders[name] {
			return fmt.Errorf("unknown feed provider %q", name)
		}
	}
	if c.Feed.CacheTTL < 0 {
		return fmt.Errorf("feed.cache_ttl cannot be negative")
	}
	if c.Feed.HistoryDays < 1 {
		return fmt.Errorf("feed.history_days must be at least 1")
	}
	if c.Chart.Symbol == "" {
		return fmt.Errorf("chart.symbol is required")
	}
	if c.Chart.MaxCandles < chart.MaxZoom {
		return fmt.Errorf("chart.max_candles must be at least %d", chart.MaxZoom)
	}
	if c.Chart.MAWindow < chart.MinMAWindow || c.Chart.MAWindow > chart.MaxMAWindow {
		return fmt.Errorf("chart.ma_window must be between %d and %d", chart.MinMAWindow, chart.MaxMAWindow)
	}
	if c.Chart.VolWindow < chart.MinVolWindow || c.Chart.VolWindow > chart.MaxVolWindow {
		return fmt.Errorf("chart.vol_window must be between %d and %d", chart.MinVolWindow, chart.MaxVolWindow)
	}
	if _, err := wave.ParseRatio(c.Chart.Ratio); err != nil {
		return fmt.Errorf("chart.ratio: %w", err)
	}
	if c.Refresh.Enabled && c.Refresh.Spec == "" {
		return fmt.Errorf("refresh.spec is required when refresh is enabled")
	}
	return nil
}
