package marketdata

import (
	"context"
	"time"

	apperrors "basket-index/internal/errors"
	"basket-index/internal/models"
	"basket-index/internal/resilience"
)

// GuardedProvider routes every upstream call through a circuit breaker.
type GuardedProvider struct {
	prices  PriceProvider
	funds   FundamentalsProvider
	breaker *resilience.Breaker
}

// NewGuardedProvider wraps a provider that serves prices and, optionally,
// fundamentals. funds may be nil.
func NewGuardedProvider(prices PriceProvider, funds FundamentalsProvider, breaker *resilience.Breaker) *GuardedProvider {
	return &GuardedProvider{prices: prices, funds: funds, breaker: breaker}
}

// Name returns the wrapped provider's name.
func (g *GuardedProvider) Name() string {
	return g.prices.Name()
}

// Breaker returns the breaker guarding the provider.
func (g *GuardedProvider) Breaker() *resilience.Breaker {
	return g.breaker
}

// DailyPrices implements PriceProvider.
func (g *GuardedProvider) DailyPrices(ctx context.Context, tickers []string, start, end time.Time) (*Frame, error) {
	return resilience.Do(ctx, g.breaker, func(ctx context.Context) (*Frame, error) {
		return g.prices.DailyPrices(ctx, tickers, start, end)
	})
}

// Fundamentals implements FundamentalsProvider.
func (g *GuardedProvider) Fundamentals(ctx context.Context, ticker string) (models.FundamentalsRecord, error) {
	if g.funds == nil {
		return models.FundamentalsRecord{Ticker: ticker}, apperrors.Wrapf(apperrors.ErrProviderNotCapable, "%s fundamentals", g.Name())
	}
	return resilience.Do(ctx, g.breaker, func(ctx context.Context) (models.FundamentalsRecord, error) {
		return g.funds.Fundamentals(ctx, ticker)
	})
}
