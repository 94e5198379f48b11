// Package marketdata provides upstream price and fundamentals providers.
//
// Providers return prices in their own shape (a Frame of labeled or
// unlabeled columns); turning that into a uniform date × ticker grid is
// the index loader's job, not the provider's.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"basket-index/internal/models"
)

// Field labels used by providers for price columns.
const (
	FieldAdjClose = "Adj Close"
	FieldClose    = "Close"
)

// PriceProvider fetches daily prices.
type PriceProvider interface {
	Name() string
	// DailyPrices returns daily bars for tickers in [start, end).
	// The end bound is exclusive.
	DailyPrices(ctx context.Context, tickers []string, start, end time.Time) (*Frame, error)
}

// FundamentalsProvider looks up share counts and valuation data for one ticker.
type FundamentalsProvider interface {
	Name() string
	Fundamentals(ctx context.Context, ticker string) (models.FundamentalsRecord, error)
}

// Column is one provider column. Field is empty for unlabeled columns and
// Ticker is empty when the provider did not index the response by ticker.
type Column struct {
	Field  string
	Ticker string
	Values []float64 // NaN marks a missing observation; aligned with Frame.Dates
}

// Frame is a raw provider response.
type Frame struct {
	Dates   []time.Time
	Columns []Column
}

// Empty reports whether the frame carries no observations at all.
func (f *Frame) Empty() bool {
	return f == nil || len(f.Dates) == 0 || len(f.Columns) == 0
}

// HasField reports whether any column carries the given field label.
func (f *Frame) HasField(field string) bool {
	for _, c := range f.Columns {
		if c.Field == field {
			return true
		}
	}
	return false
}

// BuildFrame assembles a frame from per-ticker candles on the union of
// their dates. Multi-ticker frames are labeled by field and ticker; a
// single-ticker frame carries field labels only, the way most chart APIs
// answer a single-symbol request. Tickers without candles get all-NaN columns.
func BuildFrame(tickers []string, bars map[string][]models.Candle, withAdjusted bool) *Frame {
	dateSet := make(map[time.Time]bool)
	for _, t := range tickers {
		for _, c := range bars[t] {
			dateSet[dayOf(c.Timestamp)] = true
		}
	}
	if len(dateSet) == 0 {
		return &Frame{}
	}

	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	row := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		row[d] = i
	}

	fields := []string{FieldClose}
	if withAdjusted {
		fields = []string{FieldAdjClose, FieldClose}
	}

	labelTicker := len(tickers) > 1
	frame := &Frame{Dates: dates}
	for _, field := range fields {
		for _, t := range tickers {
			values := nanSlice(len(dates))
			for _, c := range bars[t] {
				v := c.Close
				if field == FieldAdjClose {
					v = c.AdjClose
				}
				if v > 0 {
					values[row[dayOf(c.Timestamp)]] = v
				}
			}
			col := Column{Field: field, Values: values}
			if labelTicker {
				col.Ticker = t
			}
			frame.Columns = append(frame.Columns, col)
		}
	}

	return frame
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// upstreamFailure reports a fan-out in which no ticker was served and at
// least one request failed upstream. Unknown tickers are not failures.
func upstreamFailure(provider string, served int, failures []error) error {
	if served > 0 || len(failures) == 0 {
		return nil
	}
	return fmt.Errorf("%s: all %d requests failed: %w", provider, len(failures), errors.Join(failures...))
}

// dayOf truncates a timestamp to its calendar date in UTC.
func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
