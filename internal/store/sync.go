package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	apperrors "basket-index/internal/errors"
	"basket-index/internal/logging"
	"basket-index/internal/models"
)

// Fetcher looks up live fundamentals for one ticker.
type Fetcher interface {
	Name() string
	Fundamentals(ctx context.Context, ticker string) (models.FundamentalsRecord, error)
}

// DataFreshness represents the freshness of the static table.
type DataFreshness struct {
	DataType    string
	LastUpdated time.Time
	IsFresh     bool
	Age         time.Duration
}

// SyncResult summarizes one refresh of the static table.
type SyncResult struct {
	Requested int
	Saved     int
	Missing   []string // no share count live or stored
	Failed    map[string]error
	SyncedAt  time.Time
}

// FundamentalsSync refreshes the static table from a live source.
type FundamentalsSync struct {
	store      FundamentalsStore
	fetcher    Fetcher
	staleAfter time.Duration
	logger     zerolog.Logger
}

// NewFundamentalsSync creates a sync handler. Rows older than staleAfter
// are reported stale; zero means one week.
func NewFundamentalsSync(store FundamentalsStore, fetcher Fetcher, staleAfter time.Duration, logger zerolog.Logger) *FundamentalsSync {
	if staleAfter <= 0 {
		staleAfter = 7 * 24 * time.Hour
	}
	return &FundamentalsSync{
		store:      store,
		fetcher:    fetcher,
		staleAfter: staleAfter,
		logger:     logging.WithOperation(logger, "fundamentals_sync"),
	}
}

// Sync looks up every ticker and upserts the successful ones. A failed
// lookup keeps whatever row the table already had for that ticker, and a
// field the live source left empty keeps its stored value.
func (fs *FundamentalsSync) Sync(ctx context.Context, tickers []string) (*SyncResult, error) {
	result := &SyncResult{
		Requested: len(tickers),
		Failed:    make(map[string]error),
	}

	var records []models.FundamentalsRecord
	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := fs.fetcher.Fundamentals(ctx, ticker)
		if err != nil {
			logger := logging.WithTicker(fs.logger, ticker)
			logger.Warn().Err(err).Msg("Live lookup failed, keeping stored row")
			result.Failed[ticker] = err
			continue
		}
		stored, err := fs.store.GetFundamentals(ctx, ticker)
		switch {
		case err == nil:
			rec = rec.Fill(stored.Record)
		case !apperrors.Is(err, apperrors.ErrNotFound):
			return nil, fmt.Errorf("failed to read stored fundamentals for %s: %w", ticker, err)
		}
		if !rec.HasShares() {
			result.Missing = append(result.Missing, ticker)
		}
		rec.Imputed = false
		records = append(records, rec)
	}

	if err := fs.store.SaveFundamentals(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to save fundamentals: %w", err)
	}
	result.Saved = len(records)

	result.SyncedAt = time.Now()
	if err := fs.store.SetLastSync(SyncFundamentals, result.SyncedAt); err != nil {
		return nil, fmt.Errorf("failed to mark %s as synced: %w", SyncFundamentals, err)
	}

	fs.logger.Info().
		Str("source", fs.fetcher.Name()).
		Int("requested", result.Requested).
		Int("saved", result.Saved).
		Int("failed", len(result.Failed)).
		Msg("Fundamentals sync completed")

	return result, nil
}

// Freshness reports how old the last sync of dataType is.
func (fs *FundamentalsSync) Freshness(dataType string) *DataFreshness {
	return freshness(fs.store, dataType, fs.staleAfter)
}

func freshness(store FundamentalsStore, dataType string, staleAfter time.Duration) *DataFreshness {
	lastSync := store.GetLastSync(dataType)
	age := time.Since(lastSync)

	return &DataFreshness{
		DataType:    dataType,
		LastUpdated: lastSync,
		IsFresh:     !lastSync.IsZero() && age < staleAfter,
		Age:         age,
	}
}

// FormatFreshness returns a human-readable freshness string.
func FormatFreshness(freshness *DataFreshness) string {
	if freshness.LastUpdated.IsZero() {
		return "Never synced"
	}

	age := freshness.Age
	var ageStr string

	switch {
	case age < time.Minute:
		ageStr = "just now"
	case age < time.Hour:
		ageStr = fmt.Sprintf("%d minutes ago", int(age.Minutes()))
	case age < 24*time.Hour:
		ageStr = fmt.Sprintf("%d hours ago", int(age.Hours()))
	default:
		ageStr = fmt.Sprintf("%d days ago", int(age.Hours()/24))
	}

	if freshness.IsFresh {
		return fmt.Sprintf("Updated %s", ageStr)
	}
	return fmt.Sprintf("⚠️ Stale data - Updated %s", ageStr)
}
