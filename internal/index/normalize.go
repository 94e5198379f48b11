package index

import (
	"math"
	"sort"
	"strings"
	"time"

	apperrors "basket-index/internal/errors"
	"basket-index/internal/marketdata"
)

// Normalize turns a provider frame into a date × ticker grid labeled with
// the requested tickers. It is the only place that looks at provider
// column labels:
//
//   - "Adj Close" columns are preferred, then "Close";
//   - with neither label, the first N columns are taken to be the N
//     requested tickers in request order;
//   - a single-ticker request answered without ticker labels becomes a
//     one-column grid labeled with that ticker.
//
// Rows are sorted ascending with duplicate dates collapsed (later rows
// win). Entirely empty columns are dropped; a frame with no data, or with
// every column dropped, is NotFound.
func Normalize(frame *marketdata.Frame, tickers []string) (*PriceGrid, error) {
	if frame.Empty() {
		return nil, apperrors.NotFoundf("provider returned no data for %d tickers", len(tickers))
	}

	cols := selectColumns(frame, tickers)

	order, dates := sortedRows(frame.Dates)
	grid := NewPriceGrid(dates, nil)
	for _, t := range tickers {
		raw, ok := cols[t]
		if !ok {
			continue
		}
		values := make([]float64, len(dates))
		for i := range values {
			values[i] = math.NaN()
		}
		for src, dst := range order {
			if src >= len(raw) {
				continue
			}
			if v := sanitize(raw[src]); !math.IsNaN(v) {
				values[dst] = v
			}
		}
		grid.AddColumn(t, values)
	}

	grid.DropEmpty()
	if grid.Empty() {
		return nil, apperrors.NotFoundf("no ticker in the basket has price data")
	}
	return grid, nil
}

// selectColumns maps requested tickers to raw value columns.
func selectColumns(frame *marketdata.Frame, tickers []string) map[string][]float64 {
	var candidates []marketdata.Column
	switch {
	case frame.HasField(marketdata.FieldAdjClose):
		candidates = columnsWithField(frame, marketdata.FieldAdjClose)
	case frame.HasField(marketdata.FieldClose):
		candidates = columnsWithField(frame, marketdata.FieldClose)
	default:
		return positional(frame.Columns, tickers)
	}

	if !tickerIndexed(candidates) {
		return positional(candidates, tickers)
	}

	byTicker := make(map[string][]float64, len(candidates))
	for _, c := range candidates {
		byTicker[strings.ToUpper(c.Ticker)] = c.Values
	}
	out := make(map[string][]float64, len(tickers))
	for _, t := range tickers {
		if values, ok := byTicker[strings.ToUpper(t)]; ok {
			out[t] = values
		}
	}
	return out
}

// positional assigns the first len(tickers) columns to tickers in request
// order. For a single ticker this is the synthesized one-column grid.
func positional(cols []marketdata.Column, tickers []string) map[string][]float64 {
	out := make(map[string][]float64, len(tickers))
	for i, t := range tickers {
		if i >= len(cols) {
			break
		}
		out[t] = cols[i].Values
	}
	return out
}

func columnsWithField(frame *marketdata.Frame, field string) []marketdata.Column {
	var out []marketdata.Column
	for _, c := range frame.Columns {
		if c.Field == field {
			out = append(out, c)
		}
	}
	return out
}

func tickerIndexed(cols []marketdata.Column) bool {
	for _, c := range cols {
		if c.Ticker != "" {
			return true
		}
	}
	return false
}

// sortedRows returns, for each source row, its destination row in the
// ascending unique date axis.
func sortedRows(dates []time.Time) ([]int, []time.Time) {
	unique := make(map[time.Time]bool, len(dates))
	for _, d := range dates {
		unique[calendarDay(d)] = true
	}
	axis := make([]time.Time, 0, len(unique))
	for d := range unique {
		axis = append(axis, d)
	}
	sort.Slice(axis, func(i, j int) bool { return axis[i].Before(axis[j]) })

	pos := make(map[time.Time]int, len(axis))
	for i, d := range axis {
		pos[d] = i
	}
	order := make([]int, len(dates))
	for i, d := range dates {
		order[i] = pos[calendarDay(d)]
	}
	return order, axis
}

// sanitize treats non-positive and infinite prices as missing.
func sanitize(v float64) float64 {
	if math.IsInf(v, 0) || v <= 0 {
		return math.NaN()
	}
	return v
}

func calendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
