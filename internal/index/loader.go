package index

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	apperrors "basket-index/internal/errors"
	"basket-index/internal/logging"
	"basket-index/internal/marketdata"
	"basket-index/internal/models"
)

// Loader retrieves price grids from a provider.
type Loader struct {
	provider marketdata.PriceProvider
	logger   zerolog.Logger
}

// NewLoader creates a loader over provider.
func NewLoader(provider marketdata.PriceProvider, logger zerolog.Logger) *Loader {
	return &Loader{
		provider: provider,
		logger:   logging.WithOperation(logger, "load_prices"),
	}
}

// Load returns the unfilled price grid for tickers over [start, end], both
// calendar dates inclusive. The provider is asked for [start, end+1 day).
func (l *Loader) Load(ctx context.Context, tickers []string, start, end time.Time) (*PriceGrid, error) {
	if len(tickers) == 0 {
		return nil, apperrors.NewInputError("tickers", tickers, "basket is empty")
	}
	start, end = calendarDay(start), calendarDay(end)
	if start.After(end) {
		return nil, apperrors.NewInputError("start_date", start.Format(models.DateLayout), "start date is after end date")
	}

	began := time.Now()
	frame, err := l.provider.DailyPrices(ctx, tickers, start, end.AddDate(0, 0, 1))
	logging.LogFetch(l.logger, l.provider.Name(), "daily_prices", len(tickers), time.Since(began), err)
	if err != nil {
		return nil, apperrors.Wrapf(err, "loading prices from %s", l.provider.Name())
	}

	grid, err := Normalize(frame, tickers)
	if err != nil {
		return nil, err
	}

	grid = grid.Slice(start, end)
	if dropped := grid.DropEmpty(); len(dropped) > 0 {
		l.logger.Debug().Strs("tickers", dropped).Msg("Dropped tickers without prices in range")
	}
	if grid.Empty() {
		return nil, apperrors.NotFoundf("no prices between %s and %s",
			start.Format(models.DateLayout), end.Format(models.DateLayout))
	}
	return grid, nil
}
