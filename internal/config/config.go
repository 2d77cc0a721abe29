package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"coinmarketcap-history/internal/logging"
	"coinmarketcap-history/internal/model"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Source   SourceConfig   `mapstructure:"source"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Dataset  DatasetConfig  `mapstructure:"dataset"`
	Loader   LoaderConfig   `mapstructure:"loader"`
	Database DatabaseConfig `mapstructure:"database"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// CacheConfig locates the on-disk cache.
type CacheConfig struct {
	Dir string `mapstructure:"dir"`
}

// SourceConfig captures website connectivity and pacing.
type SourceConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// FetchConfig governs the history fetch rounds.
type FetchConfig struct {
	Workers        int           `mapstructure:"workers"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	Multiplier     float64       `mapstructure:"backoff_multiplier"`
	MaxElapsed     time.Duration `mapstructure:"max_elapsed"`
	HistoryStart   string        `mapstructure:"history_start"`
}

// DatasetConfig locates the consolidated dataset file.
type DatasetConfig struct {
	Path string `mapstructure:"path"`
}

// LoaderConfig holds dataset filters.
type LoaderConfig struct {
	MinSamples       int     `mapstructure:"min_samples"`
	MinVolume        float64 `mapstructure:"min_volume"`
	MinMarketCap     float64 `mapstructure:"min_market_cap"`
	FillMissingDates bool    `mapstructure:"fill_missing_dates"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CMCSCRAPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "cmcscrape")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("cache.dir", "cache")

	v.SetDefault("source.base_url", "https://coinmarketcap.com")
	v.SetDefault("source.request_timeout", "0s")
	v.SetDefault("source.user_agent", "")
	v.SetDefault("source.requests_per_second", 0.0)
	v.SetDefault("source.burst", 20)

	v.SetDefault("fetch.workers", 20)
	v.SetDefault("fetch.max_attempts", 10)
	v.SetDefault("fetch.initial_backoff", "1s")
	v.SetDefault("fetch.max_backoff", "30s")
	v.SetDefault("fetch.backoff_multiplier", 2.0)
	v.SetDefault("fetch.max_elapsed", "0s")
	v.SetDefault("fetch.history_start", "20100101")

	v.SetDefault("dataset.path", "coinmarketcap.csv")

	v.SetDefault("loader.min_samples", 365)
	v.SetDefault("loader.min_volume", 1_000_000.0)
	v.SetDefault("loader.min_market_cap", 1_000_000.0)
	v.SetDefault("loader.fill_missing_dates", true)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.advisory_lock_key", int64(0x636d6373))

	v.SetDefault("export.max_data_points", 5000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir must be set")
	}
	if c.Dataset.Path == "" {
		return fmt.Errorf("dataset.path must be set")
	}
	if c.Fetch.Workers <= 0 {
		return fmt.Errorf("fetch.workers must be greater than zero")
	}
	if c.Fetch.MaxAttempts < 0 {
		return fmt.Errorf("fetch.max_attempts cannot be negative")
	}
	if _, err := c.HistoryStart(); err != nil {
		return fmt.Errorf("fetch.history_start: %w", err)
	}
	if c.Source.RequestsPerSecond < 0 {
		return fmt.Errorf("source.requests_per_second cannot be negative")
	}
	if c.Loader.MinSamples < 0 {
		return fmt.Errorf("loader.min_samples cannot be negative")
	}
	if c.Loader.MinVolume < 0 || c.Loader.MinMarketCap < 0 {
		return fmt.Errorf("loader.min_volume and loader.min_market_cap cannot be negative")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	return nil
}

// HistoryStart parses fetch.history_start.
func (c *Config) HistoryStart() (time.Time, error) {
	return model.ParseDate(c.Fetch.HistoryStart)
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
