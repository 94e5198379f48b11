// Package models provides domain models for the basket index.
package models

import (
	"strings"
	"time"
)

// Exchange represents a stock exchange.
type Exchange string

const (
	NSE Exchange = "NSE"
	BSE Exchange = "BSE"
)

// Candle represents OHLCV data for one trading day.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	AdjClose  float64
	Volume    int64
}

// TickerInfo carries descriptive metadata for a basket constituent.
type TickerInfo struct {
	Ticker      string `mapstructure:"ticker" yaml:"ticker" json:"ticker"`
	DisplayName string `mapstructure:"name" yaml:"name" json:"display_name"`
	Sector      string `mapstructure:"sector" yaml:"sector" json:"sector"`
}

// Placeholders used when a ticker has no descriptive metadata.
const (
	UnknownName   = "Unknown"
	UnknownSector = "Unclassified"
)

// FundamentalsRecord holds the per-ticker inputs for weighting.
// Nil pointers mean the value is missing.
type FundamentalsRecord struct {
	Ticker            string   `json:"ticker" yaml:"ticker"`
	SharesOutstanding *float64 `json:"shares_outstanding" yaml:"shares_outstanding"`
	TrailingPE        *float64 `json:"trailing_pe,omitempty" yaml:"trailing_pe,omitempty"`
	TrailingEPS       *float64 `json:"trailing_eps,omitempty" yaml:"trailing_eps,omitempty"`
	Name              string   `json:"name,omitempty" yaml:"name,omitempty"`
	Sector            string   `json:"sector,omitempty" yaml:"sector,omitempty"`
	Imputed           bool     `json:"imputed,omitempty" yaml:"-"`
}

// HasShares reports whether a usable share count is present.
func (r FundamentalsRecord) HasShares() bool {
	return r.SharesOutstanding != nil
}

// Shares returns the share count, or zero when missing.
func (r FundamentalsRecord) Shares() float64 {
	if r.SharesOutstanding == nil {
		return 0
	}
	return *r.SharesOutstanding
}

// Fill copies every field r lacks from fallback.
func (r FundamentalsRecord) Fill(fallback FundamentalsRecord) FundamentalsRecord {
	if r.SharesOutstanding == nil {
		r.SharesOutstanding = fallback.SharesOutstanding
	}
	if r.TrailingPE == nil {
		r.TrailingPE = fallback.TrailingPE
	}
	if r.TrailingEPS == nil {
		r.TrailingEPS = fallback.TrailingEPS
	}
	if r.Name == "" {
		r.Name = fallback.Name
	}
	if r.Sector == "" {
		r.Sector = fallback.Sector
	}
	return r
}

// Float returns a pointer to v, for optional numeric fields.
func Float(v float64) *float64 {
	return &v
}

// ExchangeOf infers the listing exchange from a Yahoo-style suffix.
// Bare symbols are treated as NSE.
func ExchangeOf(ticker string) Exchange {
	if strings.HasSuffix(strings.ToUpper(ticker), ".BO") {
		return BSE
	}
	return NSE
}

// BaseSymbol strips an exchange suffix (".NS", ".BO") from a ticker.
func BaseSymbol(ticker string) string {
	upper := strings.ToUpper(ticker)
	for _, suffix := range []string{".NS", ".BO"} {
		if strings.HasSuffix(upper, suffix) {
			return ticker[:len(ticker)-len(suffix)]
		}
	}
	return ticker
}
