package index

import (
	"math"
	"sort"

	apperrors "basket-index/internal/errors"
	"basket-index/internal/models"
)

// Lookback windows in trading rows, not calendar days.
const (
	YearWindow  = 252
	MonthWindow = 21
)

// ComputeComposition builds the snapshot at each ticker's latest observed
// price, ordered by weight descending with basket order breaking ties.
//
// prices must be the unfilled grid: a ticker whose latest row is missing
// walks back to its own most recent observation, and a ticker with no
// observation at all is left out of the snapshot. Tickers without a share
// count are left out too.
func ComputeComposition(tickers []string, fundamentals map[string]models.FundamentalsRecord, prices *PriceGrid, info map[string]models.TickerInfo) ([]models.CompositionRow, error) {
	rows := make([]models.CompositionRow, 0, len(tickers))
	total := 0.0

	for _, t := range tickers {
		rec, ok := fundamentals[t]
		if !ok || !rec.HasShares() {
			continue
		}
		price, date, row, ok := prices.LastValid(t)
		if !ok {
			continue
		}

		col, _ := prices.Column(t)
		r := models.CompositionRow{
			Ticker:    t,
			Price:     price,
			PriceDate: date,
			MarketCap: price * rec.Shares(),
			PE:        rec.TrailingPE,
			EPS:       rec.TrailingEPS,
		}
		r.DisplayName, r.Sector = describe(t, rec, info)
		r.High52W, r.Low52W = windowRange(col, row, YearWindow)
		r.Change30DPct = windowChange(col, row, MonthWindow)

		total += r.MarketCap
		rows = append(rows, r)
	}

	if len(rows) == 0 {
		return nil, apperrors.NewGuardError("no ticker has both a price and a share count")
	}
	if total == 0 {
		return nil, apperrors.NewGuardError("total market cap is zero")
	}

	for i := range rows {
		rows[i].WeightPct = rows[i].MarketCap / total * 100
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].WeightPct > rows[j].WeightPct
	})
	return rows, nil
}

// describe resolves display metadata: basket config first, then the
// fundamentals lookup, then placeholders.
func describe(ticker string, rec models.FundamentalsRecord, info map[string]models.TickerInfo) (name, sector string) {
	meta := info[ticker]
	name = firstNonEmpty(meta.DisplayName, rec.Name, models.UnknownName)
	sector = firstNonEmpty(meta.Sector, rec.Sector, models.UnknownSector)
	return name, sector
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// windowRange returns the high and low over the window rows ending at row.
func windowRange(col []float64, row, window int) (*float64, *float64) {
	lo := row - window + 1
	if lo < 0 {
		lo = 0
	}
	high, low := math.Inf(-1), math.Inf(1)
	for i := lo; i <= row; i++ {
		v := col[i]
		if math.IsNaN(v) {
			continue
		}
		high = math.Max(high, v)
		low = math.Min(low, v)
	}
	if math.IsInf(high, -1) {
		return nil, nil
	}
	return models.Float(high), models.Float(low)
}

// windowChange returns the percent change from the observation lag rows
// before row (or the nearest earlier one) to row. Nil when the history is
// shorter than lag.
func windowChange(col []float64, row, lag int) *float64 {
	for i := row - lag; i >= 0; i-- {
		if math.IsNaN(col[i]) {
			continue
		}
		if col[i] == 0 {
			return nil
		}
		return models.Float((col[row]/col[i] - 1) * 100)
	}
	return nil
}
