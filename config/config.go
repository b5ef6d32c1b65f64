package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"chartdesk/internal/model"
)

// Config holds all application configuration. Values come from an optional
// YAML file, then environment variable overrides, then defaults.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Server struct {
		HTTPAddr    string `yaml:"http_addr"`
		MetricsAddr string `yaml:"metrics_addr"`
	} `yaml:"server"`

	DataSource struct {
		// Provider is "finnhub" or "csv".
		Provider string        `yaml:"provider"`
		BaseURL  string        `yaml:"base_url"`
		APIKey   string        `yaml:"api_key"`
		CSVDir   string        `yaml:"csv_dir"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"data_source"`

	Cache struct {
		Enabled bool          `yaml:"enabled"`
		TTL     time.Duration `yaml:"ttl"`
	} `yaml:"cache"`

	Preferences struct {
		// Backend is "sqlite", "redis" or "memory".
		Backend    string `yaml:"backend"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"preferences"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Chart struct {
		Width            int           `yaml:"width"`
		Height           int           `yaml:"height"`
		PaneHeight       int           `yaml:"pane_height"`
		FullscreenWidth  int           `yaml:"fullscreen_width"`
		FullscreenHeight int           `yaml:"fullscreen_height"`
		LayoutRetryDelay time.Duration `yaml:"layout_retry_delay"`
		MaxDatasets      int           `yaml:"max_datasets"`
	} `yaml:"chart"`

	Defaults struct {
		ChartType string `yaml:"chart_type"`
		Timeframe string `yaml:"timeframe"`
		Periods   []int  `yaml:"periods"`
		RSI       bool   `yaml:"rsi"`
		MACD      bool   `yaml:"macd"`
		BB        bool   `yaml:"bb"`
		Volume    *bool  `yaml:"volume"`
	} `yaml:"defaults"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.MetricsAddr = getEnv("METRICS_ADDR", c.Server.MetricsAddr)

	c.DataSource.Provider = getEnv("DATA_PROVIDER", c.DataSource.Provider)
	c.DataSource.BaseURL = getEnv("FINNHUB_BASE_URL", c.DataSource.BaseURL)
	c.DataSource.APIKey = getEnv("FINNHUB_API_KEY", c.DataSource.APIKey)
	c.DataSource.CSVDir = getEnv("CSV_DIR", c.DataSource.CSVDir)
	c.DataSource.Timeout = getDuration("FETCH_TIMEOUT", c.DataSource.Timeout)

	if v := os.Getenv("CANDLE_CACHE"); v != "" {
		c.Cache.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	c.Cache.TTL = getDuration("CANDLE_CACHE_TTL", c.Cache.TTL)

	c.Preferences.Backend = getEnv("PREFS_BACKEND", c.Preferences.Backend)
	c.Preferences.SQLitePath = getEnv("SQLITE_PATH", c.Preferences.SQLitePath)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getInt("REDIS_DB", c.Redis.DB)

	c.Chart.LayoutRetryDelay = getDuration("LAYOUT_RETRY_DELAY", c.Chart.LayoutRetryDelay)
}

func (c *Config) applyDefaults() {
	setDefault(&c.LogLevel, "info")
	setDefault(&c.Server.HTTPAddr, ":8080")
	setDefault(&c.Server.MetricsAddr, ":9090")
	setDefault(&c.DataSource.Provider, "finnhub")
	setDefault(&c.DataSource.BaseURL, "https://finnhub.io/api/v1")
	setDefault(&c.DataSource.CSVDir, "data/candles")
	if c.DataSource.Timeout <= 0 {
		c.DataSource.Timeout = 10 * time.Second
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = 5 * time.Minute
	}
	setDefault(&c.Preferences.Backend, "sqlite")
	setDefault(&c.Preferences.SQLitePath, "data/chartdesk.db")
	setDefault(&c.Redis.Addr, "localhost:6379")

	if c.Chart.Width <= 0 {
		c.Chart.Width = 1024
	}
	if c.Chart.Height <= 0 {
		c.Chart.Height = 480
	}
	if c.Chart.PaneHeight <= 0 {
		c.Chart.PaneHeight = 160
	}
	if c.Chart.FullscreenWidth <= 0 {
		c.Chart.FullscreenWidth = 1920
	}
	if c.Chart.FullscreenHeight <= 0 {
		c.Chart.FullscreenHeight = 1080
	}
	if c.Chart.LayoutRetryDelay <= 0 {
		c.Chart.LayoutRetryDelay = 100 * time.Millisecond
	}
	if c.Chart.MaxDatasets <= 0 {
		c.Chart.MaxDatasets = 8
	}

	setDefault(&c.Defaults.ChartType, "candlestick")
	setDefault(&c.Defaults.Timeframe, string(model.TF1Y))
	if c.Defaults.Periods == nil {
		c.Defaults.Periods = []int{20, 50}
	}
	if c.Defaults.Volume == nil {
		on := true
		c.Defaults.Volume = &on
	}
}

// Validate checks that the selected backends have what they need.
func (c *Config) Validate() error {
	switch c.DataSource.Provider {
	case "finnhub":
		if c.DataSource.APIKey == "" {
			return fmt.Errorf("data_source.api_key is required for the finnhub provider")
		}
	case "csv":
	default:
		return fmt.Errorf("data_source.provider %q is not one of finnhub, csv", c.DataSource.Provider)
	}
	switch c.Preferences.Backend {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("preferences.backend %q is not one of sqlite, redis, memory", c.Preferences.Backend)
	}
	if _, err := model.ParseChartType(c.Defaults.ChartType); err != nil {
		return fmt.Errorf("defaults.chart_type: %w", err)
	}
	if _, err := model.ParseTimeframe(c.Defaults.Timeframe); err != nil {
		return fmt.Errorf("defaults.timeframe: %w", err)
	}
	return nil
}

// DefaultPreferences builds the global defaults for a symbol that has never
// been viewed. Invalid config values fall back to candlestick and 1Y.
func (c *Config) DefaultPreferences(symbol string) model.ChartPreferences {
	ct, err := model.ParseChartType(c.Defaults.ChartType)
	if err != nil {
		log.Printf("[config] %v; using candlestick", err)
	}
	tf, err := model.ParseTimeframe(c.Defaults.Timeframe)
	if err != nil {
		tf = model.TF1Y
	}
	p := model.ChartPreferences{
		Symbol:         symbol,
		ChartType:      ct,
		Timeframe:      tf,
		EnabledPeriods: append([]int(nil), c.Defaults.Periods...),
		RSIEnabled:     c.Defaults.RSI,
		MACDEnabled:    c.Defaults.MACD,
		BBEnabled:      c.Defaults.BB,
		VolumeEnabled:  c.Defaults.Volume == nil || *c.Defaults.Volume,
	}
	p.Normalize()
	return p
}

func setDefault(dst *string, fallback string) {
	if *dst == "" {
		*dst = fallback
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] skipping invalid %s value: %q", key, v)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] skipping invalid %s value: %q", key, v)
		return fallback
	}
	return d
}
