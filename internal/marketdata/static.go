package marketdata

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	apperrors "basket-index/internal/errors"
	"basket-index/internal/models"
)

// StaticProvider serves prices and fundamentals held in memory. It backs
// offline runs and tests; it implements both provider interfaces.
type StaticProvider struct {
	name         string
	candles      map[string][]models.Candle
	fundamentals map[string]models.FundamentalsRecord
	failing      map[string]error
	withAdjusted bool
	calls        int
	mu           sync.RWMutex
}

// NewStaticProvider creates an empty static provider. When withAdjusted is
// false the frames carry only Close columns.
func NewStaticProvider(withAdjusted bool) *StaticProvider {
	return &StaticProvider{
		name:         "static",
		candles:      make(map[string][]models.Candle),
		fundamentals: make(map[string]models.FundamentalsRecord),
		failing:      make(map[string]error),
		withAdjusted: withAdjusted,
	}
}

// Name returns the provider name.
func (s *StaticProvider) Name() string {
	return s.name
}

// AddCandles appends daily bars for a ticker.
func (s *StaticProvider) AddCandles(ticker string, candles ...models.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candles[ticker] = append(s.candles[ticker], candles...)
}

// AddCloses adds one bar per date with the given close. A close of zero or
// below leaves that date without an observation.
func (s *StaticProvider) AddCloses(ticker string, dates []time.Time, closes []float64) {
	bars := make([]models.Candle, 0, len(dates))
	for i, d := range dates {
		if i >= len(closes) || closes[i] <= 0 {
			continue
		}
		bars = append(bars, models.Candle{Timestamp: d, Close: closes[i], AdjClose: closes[i]})
	}
	s.AddCandles(ticker, bars...)
}

// SetFundamentals stores a fundamentals record keyed by its ticker.
func (s *StaticProvider) SetFundamentals(rec models.FundamentalsRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fundamentals[strings.ToUpper(rec.Ticker)] = rec
}

// Fail makes every lookup for ticker return err.
func (s *StaticProvider) Fail(ticker string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[strings.ToUpper(ticker)] = err
}

// Calls returns how many requests the provider has served.
func (s *StaticProvider) Calls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls
}

// DailyPrices returns bars in [start, end) for each known ticker.
func (s *StaticProvider) DailyPrices(ctx context.Context, tickers []string, start, end time.Time) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	bars := make(map[string][]models.Candle, len(tickers))
	for _, t := range tickers {
		if _, bad := s.failing[strings.ToUpper(t)]; bad {
			continue
		}
		for _, c := range s.candles[t] {
			if c.Timestamp.Before(start) || !c.Timestamp.Before(end) {
				continue
			}
			bars[t] = append(bars[t], c)
		}
	}
	return BuildFrame(tickers, bars, s.withAdjusted), nil
}

// Fundamentals returns the stored record for ticker.
func (s *StaticProvider) Fundamentals(ctx context.Context, ticker string) (models.FundamentalsRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.FundamentalsRecord{}, err
	}

	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	key := strings.ToUpper(ticker)
	if err, bad := s.failing[key]; bad {
		return models.FundamentalsRecord{Ticker: ticker}, fmt.Errorf("static lookup %s: %w", ticker, err)
	}
	rec, ok := s.fundamentals[key]
	if !ok {
		return models.FundamentalsRecord{Ticker: ticker}, apperrors.NotFoundf("fundamentals for %s", ticker)
	}
	rec.Ticker = ticker
	return rec, nil
}
