package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	apperrors "basket-index/internal/errors"
	"basket-index/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "fundamentals.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Property: the last upsert for a ticker wins, and a missing share count
// stays missing instead of reading back as zero.
func TestProperty_FundamentalsUpsertLastWriteWins(t *testing.T) {
	store := newTestStore(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	symbols := []string{"SUZLON.NS", "TATAPOWER.NS", "SWIGGY.NS", "PWL.BO", "IXIGO.NS"}

	properties.Property("upsert then get returns the latest record", prop.ForAll(
		func(symbolIdx int, first, second float64, dropShares bool) bool {
			ctx := context.Background()
			ticker := fmt.Sprintf("%s_%d", symbols[symbolIdx%len(symbols)], time.Now().UnixNano()%100000)

			if err := store.SaveFundamentals(ctx, []models.FundamentalsRecord{
				{Ticker: ticker, SharesOutstanding: models.Float(first)},
			}); err != nil {
				t.Logf("first save failed: %v", err)
				return false
			}

			latest := models.FundamentalsRecord{Ticker: ticker, TrailingPE: models.Float(21.5), Name: "Latest"}
			if !dropShares {
				latest.SharesOutstanding = models.Float(second)
			}
			if err := store.SaveFundamentals(ctx, []models.FundamentalsRecord{latest}); err != nil {
				t.Logf("second save failed: %v", err)
				return false
			}

			got, err := store.GetFundamentals(ctx, ticker)
			if err != nil {
				t.Logf("get failed: %v", err)
				return false
			}
			if dropShares {
				return !got.Record.HasShares() && got.Record.Name == "Latest"
			}
			return got.Record.HasShares() && got.Record.Shares() == second && *got.Record.TrailingPE == 21.5
		},
		gen.IntRange(0, len(symbols)-1),
		gen.Float64Range(0, 1e11),
		gen.Float64Range(0, 1e11),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestFundamentalsLookupIsCaseInsensitive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveFundamentals(ctx, []models.FundamentalsRecord{
		{Ticker: "suzlon.ns", SharesOutstanding: models.Float(1.36e10), Sector: "Wind"},
	}); err != nil {
		t.Fatalf("SaveFundamentals() error = %v", err)
	}

	rec, err := store.Fundamentals(ctx, "SUZLON.NS")
	if err != nil {
		t.Fatalf("Fundamentals() error = %v", err)
	}
	if rec.Ticker != "SUZLON.NS" || rec.Sector != "Wind" {
		t.Errorf("unexpected record %+v", rec)
	}

	if _, err := store.Fundamentals(ctx, "UNKNOWN.NS"); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListAndDeleteFundamentals(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.SaveFundamentals(ctx, []models.FundamentalsRecord{
		{Ticker: "B.NS", SharesOutstanding: models.Float(10)},
		{Ticker: "A.NS", SharesOutstanding: models.Float(20)},
		{Ticker: "C.NS"},
	})
	if err != nil {
		t.Fatalf("SaveFundamentals() error = %v", err)
	}

	all, err := store.ListFundamentals(ctx, FundamentalsFilter{})
	if err != nil {
		t.Fatalf("ListFundamentals() error = %v", err)
	}
	if len(all) != 3 || all[0].Record.Ticker != "A.NS" {
		t.Errorf("expected 3 rows ordered by ticker, got %+v", all)
	}

	missing, _ := store.ListFundamentals(ctx, FundamentalsFilter{MissingOnly: true})
	if len(missing) != 1 || missing[0].Record.Ticker != "C.NS" {
		t.Errorf("missing-only filter = %+v", missing)
	}

	some, _ := store.ListFundamentals(ctx, FundamentalsFilter{Tickers: []string{"b.ns", "c.ns"}, Limit: 1})
	if len(some) != 1 || some[0].Record.Ticker != "B.NS" {
		t.Errorf("ticker filter with limit = %+v", some)
	}

	if err := store.DeleteFundamentals(ctx, "A.NS"); err != nil {
		t.Errorf("DeleteFundamentals() error = %v", err)
	}
	if err := store.DeleteFundamentals(ctx, "A.NS"); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("second delete should be ErrNotFound, got %v", err)
	}
}

func TestSaveFundamentalsRejectsEmptyTicker(t *testing.T) {
	store := newTestStore(t)
	err := store.SaveFundamentals(context.Background(), []models.FundamentalsRecord{{Ticker: " "}})
	if !apperrors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("expected input error, got %v", err)
	}
}

func TestLastSync(t *testing.T) {
	store := newTestStore(t)

	if !store.GetLastSync(SyncFundamentals).IsZero() {
		t.Errorf("expected zero time before any sync")
	}
	now := time.Now().UTC().Truncate(time.Second)
	if err := store.SetLastSync(SyncFundamentals, now); err != nil {
		t.Fatalf("SetLastSync() error = %v", err)
	}
	if got := store.GetLastSync(SyncFundamentals); !got.Equal(now) {
		t.Errorf("GetLastSync() = %v, want %v", got, now)
	}
}

const seedYAML = `fundamentals:
  - ticker: SUZLON.NS
    shares_outstanding: 13600000000
    trailing_pe: 62.4
    name: Suzlon Energy
    sector: Wind
  - ticker: OLAELEC.NS
    name: Ola Electric Mobility
`

func TestImportSeed(t *testing.T) {
	store := newTestStore(t)
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(seedYAML), 0644); err != nil {
		t.Fatal(err)
	}

	n, err := ImportSeed(context.Background(), store, path)
	if err != nil {
		t.Fatalf("ImportSeed() error = %v", err)
	}
	if n != 2 {
		t.Errorf("imported %d rows, want 2", n)
	}

	rec, err := store.Fundamentals(context.Background(), "OLAELEC.NS")
	if err != nil {
		t.Fatalf("Fundamentals() error = %v", err)
	}
	if rec.HasShares() {
		t.Errorf("seed row without shares should stay missing")
	}
	if store.GetLastSync(SyncSeed).IsZero() {
		t.Errorf("expected seed sync time to be recorded")
	}
}

func TestParseSeedValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty ticker", "fundamentals:\n  - ticker: \"\"\n"},
		{"duplicate", "fundamentals:\n  - ticker: A.NS\n  - ticker: a.ns\n"},
		{"negative shares", "fundamentals:\n  - ticker: A.NS\n    shares_outstanding: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSeed([]byte(tt.yaml)); !apperrors.Is(err, apperrors.ErrInvalidInput) {
				t.Errorf("expected input error, got %v", err)
			}
		})
	}
}

type stubFetcher struct {
	records map[string]models.FundamentalsRecord
}

func (s stubFetcher) Name() string { return "stub" }

func (s stubFetcher) Fundamentals(ctx context.Context, ticker string) (models.FundamentalsRecord, error) {
	rec, ok := s.records[ticker]
	if !ok {
		return models.FundamentalsRecord{Ticker: ticker}, errors.New("lookup failed")
	}
	return rec, nil
}

func TestFundamentalsSyncKeepsRowsOnFailure(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveFundamentals(ctx, []models.FundamentalsRecord{
		{Ticker: "B.NS", SharesOutstanding: models.Float(50)},
	}); err != nil {
		t.Fatal(err)
	}

	fetcher := stubFetcher{records: map[string]models.FundamentalsRecord{
		"A.NS": {Ticker: "A.NS", SharesOutstanding: models.Float(100)},
		"C.NS": {Ticker: "C.NS"},
	}}
	fs := NewFundamentalsSync(store, fetcher, time.Hour, zerolog.Nop())

	if fs.Freshness(SyncFundamentals).IsFresh {
		t.Errorf("never-synced table should not be fresh")
	}

	result, err := fs.Sync(ctx, []string{"A.NS", "B.NS", "C.NS"})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if result.Saved != 2 || len(result.Failed) != 1 || len(result.Missing) != 1 {
		t.Errorf("unexpected result %+v", result)
	}

	b, err := store.Fundamentals(ctx, "B.NS")
	if err != nil || b.Shares() != 50 {
		t.Errorf("failed lookup should keep stored row, got %+v, %v", b, err)
	}
	if !fs.Freshness(SyncFundamentals).IsFresh {
		t.Errorf("table should be fresh right after a sync")
	}
	if got := FormatFreshness(fs.Freshness(SyncFundamentals)); got != "Updated just now" {
		t.Errorf("FormatFreshness() = %q", got)
	}
}

func TestFundamentalsSyncKeepsStoredFieldsLiveLacks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveFundamentals(ctx, []models.FundamentalsRecord{
		{Ticker: "AMAGI.NS", SharesOutstanding: models.Float(2.1e8), Name: "Amagi Media Labs", Sector: "Technology"},
	}); err != nil {
		t.Fatal(err)
	}

	fetcher := stubFetcher{records: map[string]models.FundamentalsRecord{
		"AMAGI.NS": {Ticker: "AMAGI.NS", TrailingPE: models.Float(88.5)},
	}}
	result, err := NewFundamentalsSync(store, fetcher, time.Hour, zerolog.Nop()).Sync(ctx, []string{"AMAGI.NS"})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if len(result.Missing) != 0 {
		t.Errorf("stored share count should cover the ticker, missing = %v", result.Missing)
	}

	rec, err := store.Fundamentals(ctx, "AMAGI.NS")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Shares() != 2.1e8 {
		t.Errorf("shares = %v, want the seeded 2.1e8", rec.SharesOutstanding)
	}
	if rec.TrailingPE == nil || *rec.TrailingPE != 88.5 {
		t.Errorf("live P/E should be saved, got %v", rec.TrailingPE)
	}
	if rec.Name != "Amagi Media Labs" || rec.Sector != "Technology" {
		t.Errorf("metadata = %q / %q", rec.Name, rec.Sector)
	}
}
