package index

import (
	"math"
	"sort"

	apperrors "basket-index/internal/errors"
	"basket-index/internal/models"
)

// BaseValue is the index level on the first date of a series.
const BaseValue = 100.0

// ComputeIndex sums price × shares per date over the tickers present in
// both grid and shares, and scales the totals so the first date is
// exactly BaseValue. Tickers present on only one side are ignored.
//
// The grid is expected to be filled; a remaining NaN contributes nothing.
func ComputeIndex(grid *PriceGrid, shares map[string]float64) (models.IndexSeries, error) {
	var included []string
	for _, t := range grid.Tickers {
		if _, ok := shares[t]; ok {
			included = append(included, t)
		}
	}
	if len(included) == 0 {
		return nil, apperrors.NewGuardError("no ticker has both prices and a share count")
	}
	if grid.Len() == 0 {
		return nil, apperrors.NewGuardError("price grid has no dates")
	}

	totals := MarketCaps(grid, shares, included)

	base := totals[0]
	if base == 0 || math.IsNaN(base) {
		return nil, apperrors.NewGuardError("total market cap on the base date is zero")
	}

	series := make(models.IndexSeries, len(totals))
	for i, total := range totals {
		series[i] = models.IndexPoint{Date: grid.Dates[i], Value: BaseValue * total / base}
	}
	series[0].Value = BaseValue
	return series, nil
}

// MarketCaps returns the total market cap per date over tickers. Tickers
// are summed in sorted order so the totals do not depend on basket order.
func MarketCaps(grid *PriceGrid, shares map[string]float64, tickers []string) []float64 {
	ordered := append([]string(nil), tickers...)
	sort.Strings(ordered)

	totals := make([]float64, grid.Len())
	for _, t := range ordered {
		col, ok := grid.Column(t)
		if !ok {
			continue
		}
		n := shares[t]
		for i, p := range col {
			if !math.IsNaN(p) {
				totals[i] += p * n
			}
		}
	}
	return totals
}

// SharesOf extracts the share counts from resolved fundamentals.
func SharesOf(records map[string]models.FundamentalsRecord) map[string]float64 {
	out := make(map[string]float64, len(records))
	for t, r := range records {
		if r.HasShares() {
			out[t] = r.Shares()
		}
	}
	return out
}
