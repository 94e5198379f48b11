package models

import "time"

// DateLayout is the calendar-date format used at every external interface.
const DateLayout = "2006-01-02"

// IndexPoint is one dated value of an index series.
type IndexPoint struct {
	Date  time.Time
	Value float64
}

// IndexSeries is an ascending, base-normalized index time series.
type IndexSeries []IndexPoint

// Dates returns the series dates formatted as YYYY-MM-DD.
func (s IndexSeries) Dates() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = p.Date.Format(DateLayout)
	}
	return out
}

// Values returns the series values.
func (s IndexSeries) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Latest returns the last point of the series.
func (s IndexSeries) Latest() (IndexPoint, bool) {
	if len(s) == 0 {
		return IndexPoint{}, false
	}
	return s[len(s)-1], true
}

// CompositionRow is one constituent of a composition snapshot.
type CompositionRow struct {
	Ticker       string    `json:"ticker"`
	DisplayName  string    `json:"display_name"`
	Sector       string    `json:"sector"`
	Price        float64   `json:"price"`
	PriceDate    time.Time `json:"-"`
	MarketCap    float64   `json:"market_cap"`
	WeightPct    float64   `json:"weight_pct"`
	PE           *float64  `json:"pe"`
	EPS          *float64  `json:"eps"`
	High52W      *float64  `json:"high_52w"`
	Low52W       *float64  `json:"low_52w"`
	Change30DPct *float64  `json:"change_30d_pct"`
}

// RiskRecord summarizes the risk of an index series.
type RiskRecord struct {
	AnnualizedVolatilityPct float64 `json:"annualized_volatility_pct"`
	MaxDrawdownPct          float64 `json:"max_drawdown_pct"`
}
