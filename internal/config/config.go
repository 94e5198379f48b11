// Package config provides configuration management for the basket index.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"basket-index/internal/models"
)

// Config holds all application configuration.
type Config struct {
	Index       IndexConfig             `mapstructure:"index"`
	Baskets     map[string]BasketConfig `mapstructure:"baskets"`
	Provider    ProviderConfig          `mapstructure:"provider"`
	Cache       CacheConfig             `mapstructure:"cache"`
	Store       StoreConfig             `mapstructure:"store"`
	Server      ServerConfig            `mapstructure:"server"`
	Logging     LoggingConfig           `mapstructure:"logging"`
	Credentials Credentials             `mapstructure:"-"` // Loaded separately
}

// IndexConfig holds defaults applied when a request omits them.
type IndexConfig struct {
	DefaultStart     string `mapstructure:"default_start"`     // YYYY-MM-DD; empty means one year back
	DefaultBenchmark string `mapstructure:"default_benchmark"` // e.g. ^NSEI
}

// BasketConfig describes one index variant.
type BasketConfig struct {
	Title     string              `mapstructure:"title"`
	Benchmark string              `mapstructure:"benchmark"`
	Tickers   []string            `mapstructure:"tickers"`
	Meta      []models.TickerInfo `mapstructure:"meta"`
}

// Info returns the metadata table keyed by ticker.
func (b BasketConfig) Info() map[string]models.TickerInfo {
	out := make(map[string]models.TickerInfo, len(b.Meta))
	for _, m := range b.Meta {
		out[m.Ticker] = m
	}
	return out
}

// ProviderConfig selects and configures the upstream data providers.
type ProviderConfig struct {
	Prices       string        `mapstructure:"prices"`       // yahoo, kite
	Fundamentals string        `mapstructure:"fundamentals"` // live, static
	YahooBaseURL string        `mapstructure:"yahoo_base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RateLimit    float64       `mapstructure:"rate_limit"` // requests per second
	Concurrency  int           `mapstructure:"concurrency"`

	BreakerThreshold int           `mapstructure:"breaker_threshold"` // consecutive failures; 0 disables
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
}

// CacheConfig holds the fundamentals cache configuration.
type CacheConfig struct {
	Backend       string        `mapstructure:"backend"` // memory, redis, none
	TTL           time.Duration `mapstructure:"ttl"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
}

// StoreConfig holds the static fundamentals table location.
type StoreConfig struct {
	Path       string        `mapstructure:"path"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	RequestLimit time.Duration `mapstructure:"request_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  bool   `mapstructure:"file"`
}

// Credentials holds API credentials.
type Credentials struct {
	Kite KiteCredentials `mapstructure:"kite"`
}

// KiteCredentials holds Zerodha Kite Connect credentials.
type KiteCredentials struct {
	APIKey      string `mapstructure:"api_key"`
	AccessToken string `mapstructure:"access_token"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/basket-index"
	}
	return filepath.Join(home, ".config", "basket-index")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(configDir, "fundamentals.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("index.default_benchmark", "^NSEI")
	v.SetDefault("provider.prices", "yahoo")
	v.SetDefault("provider.fundamentals", "live")
	v.SetDefault("provider.yahoo_base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("provider.timeout", 20*time.Second)
	v.SetDefault("provider.rate_limit", 4.0)
	v.SetDefault("provider.concurrency", 4)
	v.SetDefault("provider.breaker_threshold", 5)
	v.SetDefault("provider.breaker_cooldown", 30*time.Second)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", 12*time.Hour)
	v.SetDefault("store.stale_after", 7*24*time.Hour)
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", true)
}

func loadConfigFile(configDir string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// Config file not found, create template and read it back
		if err := createTemplateConfig(configDir); err != nil {
			return err
		}
		if err := v.ReadInConfig(); err != nil {
			return err
		}
	}

	return v.Unmarshal(cfg)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KITE_API_KEY"); v != "" {
		cfg.Credentials.Kite.APIKey = v
	}
	if v := os.Getenv("KITE_ACCESS_TOKEN"); v != "" {
		cfg.Credentials.Kite.AccessToken = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("BASKET_INDEX_PRICES"); v != "" {
		cfg.Provider.Prices = v
	}
	if v := os.Getenv("BASKET_INDEX_CACHE"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("BASKET_INDEX_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Provider.Prices {
	case "yahoo", "kite":
	default:
		return fmt.Errorf("invalid price provider: %s (must be 'yahoo' or 'kite')", c.Provider.Prices)
	}

	switch c.Provider.Fundamentals {
	case "live", "static":
	default:
		return fmt.Errorf("invalid fundamentals provider: %s (must be 'live' or 'static')", c.Provider.Fundamentals)
	}

	switch c.Cache.Backend {
	case "memory", "none":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache backend redis requires redis_addr")
		}
	default:
		return fmt.Errorf("invalid cache backend: %s (must be 'memory', 'redis' or 'none')", c.Cache.Backend)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl must be non-negative")
	}
	if c.Provider.BreakerThreshold < 0 || c.Provider.BreakerCooldown < 0 {
		return fmt.Errorf("provider breaker settings must be non-negative")
	}

	if c.Provider.Prices == "kite" && c.Credentials.Kite.APIKey == "" {
		return fmt.Errorf("price provider kite requires kite.api_key in credentials.toml")
	}

	for name, basket := range c.Baskets {
		if len(basket.Tickers) == 0 {
			return fmt.Errorf("basket %s has no tickers", name)
		}
		seen := make(map[string]bool, len(basket.Tickers))
		for _, t := range basket.Tickers {
			key := strings.ToUpper(t)
			if seen[key] {
				return fmt.Errorf("basket %s lists %s more than once", name, t)
			}
			seen[key] = true
		}
	}

	if c.Index.DefaultStart != "" {
		if _, err := time.Parse(models.DateLayout, c.Index.DefaultStart); err != nil {
			return fmt.Errorf("index.default_start must be YYYY-MM-DD: %w", err)
		}
	}

	return nil
}

// Basket returns the named basket, matching case-insensitively.
func (c *Config) Basket(name string) (BasketConfig, bool) {
	if b, ok := c.Baskets[name]; ok {
		return b, true
	}
	for k, b := range c.Baskets {
		if strings.EqualFold(k, name) {
			return b, true
		}
	}
	return BasketConfig{}, false
}

// BenchmarkFor returns the benchmark ticker for a basket.
func (c *Config) BenchmarkFor(b BasketConfig) string {
	if b.Benchmark != "" {
		return b.Benchmark
	}
	return c.Index.DefaultBenchmark
}
