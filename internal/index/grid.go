// Package index implements the basket index computation engine: price
// loading and normalization, gap filling, the market-cap-weighted index,
// composition snapshots, risk metrics and benchmark overlays.
package index

import (
	"math"
	"time"
)

// PriceGrid is a date × ticker table of close-like prices. Dates are
// ascending and unique; NaN marks a missing observation.
type PriceGrid struct {
	Dates   []time.Time
	Tickers []string
	columns map[string][]float64
}

// NewPriceGrid creates a grid with all-missing columns for tickers.
func NewPriceGrid(dates []time.Time, tickers []string) *PriceGrid {
	g := &PriceGrid{
		Dates:   append([]time.Time(nil), dates...),
		columns: make(map[string][]float64, len(tickers)),
	}
	for _, t := range tickers {
		g.AddColumn(t, nil)
	}
	return g
}

// AddColumn adds or replaces a ticker column. values shorter than the
// date axis are padded with NaN.
func (g *PriceGrid) AddColumn(ticker string, values []float64) {
	col := make([]float64, len(g.Dates))
	for i := range col {
		if i < len(values) {
			col[i] = values[i]
		} else {
			col[i] = math.NaN()
		}
	}
	if _, exists := g.columns[ticker]; !exists {
		g.Tickers = append(g.Tickers, ticker)
	}
	g.columns[ticker] = col
}

// Column returns the values for ticker. The slice is shared with the grid.
func (g *PriceGrid) Column(ticker string) ([]float64, bool) {
	col, ok := g.columns[ticker]
	return col, ok
}

// Has reports whether the grid has a column for ticker.
func (g *PriceGrid) Has(ticker string) bool {
	_, ok := g.columns[ticker]
	return ok
}

// Len returns the number of dates.
func (g *PriceGrid) Len() int {
	return len(g.Dates)
}

// Empty reports whether the grid has no dates or no columns.
func (g *PriceGrid) Empty() bool {
	return g == nil || len(g.Dates) == 0 || len(g.Tickers) == 0
}

// Clone returns a deep copy.
func (g *PriceGrid) Clone() *PriceGrid {
	out := &PriceGrid{
		Dates:   append([]time.Time(nil), g.Dates...),
		Tickers: append([]string(nil), g.Tickers...),
		columns: make(map[string][]float64, len(g.columns)),
	}
	for t, col := range g.columns {
		out.columns[t] = append([]float64(nil), col...)
	}
	return out
}

// Select returns a copy restricted to tickers in the given order. Tickers
// the grid lacks are skipped.
func (g *PriceGrid) Select(tickers []string) *PriceGrid {
	out := NewPriceGrid(g.Dates, nil)
	for _, t := range tickers {
		if col, ok := g.columns[t]; ok {
			out.AddColumn(t, col)
		}
	}
	return out
}

// DropEmpty removes columns without a single observation and returns the
// dropped tickers.
func (g *PriceGrid) DropEmpty() []string {
	var kept, dropped []string
	for _, t := range g.Tickers {
		if countValid(g.columns[t]) == 0 {
			delete(g.columns, t)
			dropped = append(dropped, t)
			continue
		}
		kept = append(kept, t)
	}
	g.Tickers = kept
	return dropped
}

// Slice returns the rows whose dates fall in [start, end], both inclusive.
func (g *PriceGrid) Slice(start, end time.Time) *PriceGrid {
	lo, hi := -1, -1
	for i, d := range g.Dates {
		if d.Before(start) || d.After(end) {
			continue
		}
		if lo < 0 {
			lo = i
		}
		hi = i
	}

	out := &PriceGrid{
		Tickers: append([]string(nil), g.Tickers...),
		columns: make(map[string][]float64, len(g.columns)),
	}
	if lo < 0 {
		for _, t := range g.Tickers {
			out.columns[t] = []float64{}
		}
		return out
	}
	out.Dates = append([]time.Time(nil), g.Dates[lo:hi+1]...)
	for _, t := range g.Tickers {
		out.columns[t] = append([]float64(nil), g.columns[t][lo:hi+1]...)
	}
	return out
}

// LastValid walks backward from the latest date to the most recent
// observation for ticker alone.
func (g *PriceGrid) LastValid(ticker string) (price float64, date time.Time, row int, ok bool) {
	col, exists := g.columns[ticker]
	if !exists {
		return 0, time.Time{}, -1, false
	}
	for i := len(col) - 1; i >= 0; i-- {
		if !math.IsNaN(col[i]) {
			return col[i], g.Dates[i], i, true
		}
	}
	return 0, time.Time{}, -1, false
}

func countValid(values []float64) int {
	n := 0
	for _, v := range values {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}
