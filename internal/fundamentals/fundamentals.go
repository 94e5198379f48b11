// Package fundamentals resolves every basket ticker to a share count.
//
// Lookups go to a live source first and the static table second. Whatever
// is still missing afterwards is imputed with the basket median, so the
// index calculator always receives a numeric share count per ticker.
package fundamentals

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	apperrors "basket-index/internal/errors"
	"basket-index/internal/logging"
	"basket-index/internal/models"
)

// Source looks up fundamentals for a single ticker.
type Source interface {
	Name() string
	Fundamentals(ctx context.Context, ticker string) (models.FundamentalsRecord, error)
}

// Config holds the fundamentals store configuration.
type Config struct {
	Live        Source // optional
	Static      Source // optional
	Cache       Cache  // nil disables caching
	TTL         time.Duration
	Concurrency int
}

// Store resolves basket fundamentals.
type Store struct {
	live        Source
	static      Source
	cache       Cache
	ttl         time.Duration
	concurrency int
	logger      zerolog.Logger
}

// NewStore creates a fundamentals store.
func NewStore(cfg Config, logger zerolog.Logger) *Store {
	cache := cfg.Cache
	if cache == nil {
		cache = NopCache{}
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Store{
		live:        cfg.Live,
		static:      cfg.Static,
		cache:       cache,
		ttl:         cfg.TTL,
		concurrency: concurrency,
		logger:      logging.WithOperation(logger, "fundamentals"),
	}
}

// Get returns a complete ticker → record mapping for the basket. An
// identical ticker set served within the TTL comes from the cache.
func (s *Store) Get(ctx context.Context, tickers []string) (map[string]models.FundamentalsRecord, error) {
	if len(tickers) == 0 {
		return nil, apperrors.NewInputError("tickers", tickers, "basket is empty")
	}

	key := Fingerprint(tickers)
	cached, err := s.cache.Get(ctx, key)
	if err == nil && covers(cached, tickers) {
		s.logger.Debug().Str("key", key[:12]).Msg("Fundamentals cache hit")
		return cached, nil
	}
	if err != nil && !apperrors.Is(err, apperrors.ErrCacheMiss) {
		s.logger.Warn().Err(err).Msg("Fundamentals cache read failed")
	}

	batch, err := s.Fetch(ctx, tickers)
	if err != nil {
		return nil, err
	}

	records, median, err := Impute(batch)
	if err != nil {
		s.logger.Error().Err(err).Int("tickers", len(tickers)).Msg("Share counts unavailable for the whole basket")
		return nil, err
	}
	for _, r := range batch.Results {
		if records[r.Ticker].Imputed {
			logging.LogImputation(s.logger, r.Ticker, median, r.Err)
		}
	}

	if err := s.cache.Set(ctx, key, records, s.ttl); err != nil {
		s.logger.Warn().Err(err).Msg("Fundamentals cache write failed")
	}
	return records, nil
}

// Fetch looks up every ticker without imputing. One ticker failing never
// fails the batch; only context cancellation does.
func (s *Store) Fetch(ctx context.Context, tickers []string) (Batch, error) {
	began := time.Now()
	results := make([]Result, len(tickers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, ticker := range tickers {
		g.Go(func() error {
			results[i] = s.lookup(gctx, ticker)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return Batch{}, err
	}

	batch := Batch{Results: results}
	failed := batch.Failed()
	for _, r := range failed {
		logger := logging.WithTicker(s.logger, r.Ticker)
		logger.Warn().Err(r.Err).Msg("Fundamentals lookup failed")
	}
	s.logger.Debug().
		Int("tickers", len(tickers)).
		Int("failed", len(failed)).
		Dur("duration", time.Since(began)).
		Msg("Fundamentals fetched")

	return batch, nil
}

// lookup tries the live source, then fills gaps from the static table.
func (s *Store) lookup(ctx context.Context, ticker string) Result {
	var (
		rec     models.FundamentalsRecord
		liveErr error
	)
	if s.live != nil {
		rec, liveErr = s.live.Fundamentals(ctx, ticker)
	} else {
		liveErr = apperrors.ErrProviderNotCapable
	}
	if liveErr == nil && rec.HasShares() {
		rec.Ticker = ticker
		return Result{Ticker: ticker, Record: rec}
	}

	if s.static == nil {
		if liveErr != nil {
			return Result{Ticker: ticker, Record: models.FundamentalsRecord{Ticker: ticker}, Err: liveErr}
		}
		rec.Ticker = ticker
		return Result{Ticker: ticker, Record: rec}
	}

	fallback, staticErr := s.static.Fundamentals(ctx, ticker)
	switch {
	case staticErr != nil && liveErr != nil:
		err := apperrors.NewDataError("fundamentals", ticker, "live and static lookups failed", liveErr)
		return Result{Ticker: ticker, Record: models.FundamentalsRecord{Ticker: ticker}, Err: err}
	case staticErr != nil:
		rec.Ticker = ticker
		return Result{Ticker: ticker, Record: rec}
	case liveErr != nil:
		fallback.Ticker = ticker
		return Result{Ticker: ticker, Record: fallback}
	}

	rec.Ticker = ticker
	return Result{Ticker: ticker, Record: rec.Fill(fallback)}
}

// Invalidate drops the cached entry for a ticker set.
func (s *Store) Invalidate(ctx context.Context, tickers []string) error {
	return s.cache.Delete(ctx, Fingerprint(tickers))
}

// covers reports whether a cached mapping has a record for every ticker
// under the caller's spelling.
func covers(records map[string]models.FundamentalsRecord, tickers []string) bool {
	for _, t := range tickers {
		if _, ok := records[t]; !ok {
			return false
		}
	}
	return true
}
