package store

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "basket-index/internal/errors"
	"basket-index/internal/models"
)

// SeedFile is the bundled static fundamentals table.
//
//	fundamentals:
//	  - ticker: SUZLON.NS
//	    shares_outstanding: 13600000000
//	    trailing_pe: 62.4
//	    name: Suzlon Energy
//	    sector: Wind
type SeedFile struct {
	Fundamentals []models.FundamentalsRecord `yaml:"fundamentals"`
}

// LoadSeed reads and validates a seed file.
func LoadSeed(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes seed YAML. Tickers must be non-empty and unique and
// share counts non-negative.
func ParseSeed(data []byte) (*SeedFile, error) {
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}

	seen := make(map[string]bool, len(seed.Fundamentals))
	for i, rec := range seed.Fundamentals {
		ticker := strings.ToUpper(strings.TrimSpace(rec.Ticker))
		if ticker == "" {
			return nil, apperrors.NewInputError(fmt.Sprintf("fundamentals[%d].ticker", i), rec.Ticker, "ticker must not be empty")
		}
		if seen[ticker] {
			return nil, apperrors.NewInputError(fmt.Sprintf("fundamentals[%d].ticker", i), rec.Ticker, "duplicate ticker")
		}
		if rec.SharesOutstanding != nil && *rec.SharesOutstanding < 0 {
			return nil, apperrors.NewInputError(fmt.Sprintf("fundamentals[%d].shares_outstanding", i), *rec.SharesOutstanding, "must be >= 0")
		}
		seen[ticker] = true
	}

	return &seed, nil
}

// ImportSeed loads a seed file into the store and returns the row count.
func ImportSeed(ctx context.Context, s FundamentalsStore, path string) (int, error) {
	seed, err := LoadSeed(path)
	if err != nil {
		return 0, err
	}
	if err := s.SaveFundamentals(ctx, seed.Fundamentals); err != nil {
		return 0, err
	}
	if err := s.SetLastSync(SyncSeed, time.Now()); err != nil {
		return 0, err
	}
	return len(seed.Fundamentals), nil
}
