package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"basket-index/internal/config"
	"basket-index/internal/fundamentals"
	"basket-index/internal/index"
	"basket-index/internal/marketdata"
	"basket-index/internal/resilience"
	"basket-index/internal/store"
)

// App holds the application dependencies. Providers, the static table and
// the engine are built on first use so that commands such as version and
// config never touch the network or the database.
type App struct {
	Config    *config.Config
	ConfigDir string
	Logger    zerolog.Logger

	Prices       marketdata.PriceProvider
	Live         fundamentals.Source // nil when fundamentals come from the static table only
	Static       *store.SQLiteStore
	Cache        fundamentals.Cache
	Fundamentals *fundamentals.Store
	Engine       *index.Engine

	closers []io.Closer
}

// Close releases the static table and cache connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close resource")
		}
	}
	a.closers = nil
}

// ensureEngine wires providers, fundamentals store and engine from config.
func (a *App) ensureEngine() error {
	if a.Engine != nil {
		return nil
	}
	if a.Config == nil {
		return fmt.Errorf("configuration not loaded")
	}

	if a.Prices == nil {
		prices, live, err := newProviders(a.Config, a.Logger)
		if err != nil {
			return err
		}
		a.Prices = prices
		if a.Config.Provider.Fundamentals == "live" {
			a.Live = live
		}
	}

	if err := a.ensureStatic(); err != nil {
		// The static table is only a fallback; a live source can carry on.
		if a.Live == nil {
			return err
		}
		a.Logger.Warn().Err(err).Msg("Static fundamentals table unavailable")
	}

	if a.Cache == nil {
		cache, err := newCache(a.Config.Cache)
		if err != nil {
			a.Logger.Warn().Err(err).Str("backend", a.Config.Cache.Backend).Msg("Fundamentals cache unavailable, continuing without it")
			cache = fundamentals.NopCache{}
		}
		if c, ok := cache.(io.Closer); ok {
			a.closers = append(a.closers, c)
		}
		a.Cache = cache
	}

	cfg := fundamentals.Config{
		Live:        a.Live,
		Cache:       a.Cache,
		TTL:         a.Config.Cache.TTL,
		Concurrency: a.Config.Provider.Concurrency,
	}
	if a.Static != nil {
		cfg.Static = a.Static
	}
	a.Fundamentals = fundamentals.NewStore(cfg, a.Logger)
	a.Engine = index.NewEngine(index.NewLoader(a.Prices, a.Logger), a.Fundamentals, a.Logger)

	a.Logger.Debug().
		Str("prices", a.Prices.Name()).
		Str("fundamentals", a.Config.Provider.Fundamentals).
		Str("cache", a.Config.Cache.Backend).
		Msg("Engine initialized")
	return nil
}

// ensureStatic opens the SQLite static fundamentals table.
func (a *App) ensureStatic() error {
	if a.Static != nil {
		return nil
	}
	if a.Config == nil {
		return fmt.Errorf("configuration not loaded")
	}
	path := a.Config.Store.Path
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}
	s, err := store.NewSQLiteStore(path)
	if err != nil {
		return err
	}
	a.Static = s
	a.closers = append(a.closers, s)
	a.Logger.Debug().Str("path", path).Msg("SQLite store initialized")
	return nil
}

// ensureLive returns a live fundamentals source regardless of the
// configured mode, for refreshing the static table.
func (a *App) ensureLive() (fundamentals.Source, error) {
	if a.Live != nil {
		return a.Live, nil
	}
	_, live, err := newProviders(a.Config, a.Logger)
	if err != nil {
		return nil, err
	}
	return live, nil
}

// newProviders builds the configured price provider and the live
// fundamentals source, each behind a circuit breaker per upstream. Kite has
// no fundamentals endpoint, so share counts always come from Yahoo.
func newProviders(cfg *config.Config, logger zerolog.Logger) (marketdata.PriceProvider, fundamentals.Source, error) {
	breakerCfg := resilience.DefaultConfig()
	breakerCfg.FailureThreshold = cfg.Provider.BreakerThreshold
	if cfg.Provider.BreakerCooldown > 0 {
		breakerCfg.Cooldown = cfg.Provider.BreakerCooldown
	}

	yahoo := marketdata.NewYahooProvider(marketdata.YahooConfig{
		BaseURL:     cfg.Provider.YahooBaseURL,
		Timeout:     cfg.Provider.Timeout,
		RateLimit:   cfg.Provider.RateLimit,
		Concurrency: cfg.Provider.Concurrency,
	}, logger)
	guardedYahoo := marketdata.NewGuardedProvider(yahoo, yahoo, resilience.New("yahoo", breakerCfg))

	switch cfg.Provider.Prices {
	case "yahoo":
		return guardedYahoo, guardedYahoo, nil
	case "kite":
		if cfg.Credentials.Kite.AccessToken == "" {
			return nil, nil, fmt.Errorf("price provider kite requires kite.access_token in credentials.toml")
		}
		kite := marketdata.NewKiteProvider(marketdata.KiteConfig{
			APIKey:      cfg.Credentials.Kite.APIKey,
			AccessToken: cfg.Credentials.Kite.AccessToken,
		}, logger)
		return marketdata.NewGuardedProvider(kite, nil, resilience.New("kite", breakerCfg)), guardedYahoo, nil
	default:
		return nil, nil, fmt.Errorf("unknown price provider %q", cfg.Provider.Prices)
	}
}

func newCache(cfg config.CacheConfig) (fundamentals.Cache, error) {
	switch cfg.Backend {
	case "memory":
		return fundamentals.NewMemoryCache(), nil
	case "redis":
		return fundamentals.NewRedisCache(fundamentals.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	default:
		return fundamentals.NopCache{}, nil
	}
}

func basketNames(cfg *config.Config) []string {
	names := make([]string, 0, len(cfg.Baskets))
	for name := range cfg.Baskets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
