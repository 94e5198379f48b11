package fundamentals

import (
	"sort"

	apperrors "basket-index/internal/errors"
	"basket-index/internal/models"
)

// Result is one ticker's lookup outcome. Err is set when every source
// failed; Record then carries only the ticker.
type Result struct {
	Ticker string
	Record models.FundamentalsRecord
	Err    error
}

// Batch is the ordered set of per-ticker results for one basket.
type Batch struct {
	Results []Result
}

// Failed returns the results whose lookup failed.
func (b Batch) Failed() []Result {
	var out []Result
	for _, r := range b.Results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Median returns the median of values; an even count averages the two
// middle values. ok is false for an empty input.
func Median(values []float64) (median float64, ok bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], true
	}
	return (sorted[mid-1] + sorted[mid]) / 2, true
}

// Impute resolves a batch into a complete mapping: every missing share
// count, whether from a failed lookup or an absent field, takes the median
// of the known counts. When no ticker has a share count the batch is an
// input error.
func Impute(b Batch) (map[string]models.FundamentalsRecord, float64, error) {
	var known []float64
	for _, r := range b.Results {
		if r.Err == nil && r.Record.HasShares() {
			known = append(known, r.Record.Shares())
		}
	}

	median, ok := Median(known)
	if !ok {
		return nil, 0, &apperrors.InputError{
			Field:   "shares_outstanding",
			Value:   len(b.Results),
			Message: "no ticker in the basket has a share count",
			Err:     apperrors.ErrSharesUnavailable,
		}
	}

	out := make(map[string]models.FundamentalsRecord, len(b.Results))
	for _, r := range b.Results {
		rec := r.Record
		rec.Ticker = r.Ticker
		if r.Err != nil || !rec.HasShares() {
			rec.SharesOutstanding = models.Float(median)
			rec.Imputed = true
		}
		out[r.Ticker] = rec
	}
	return out, median, nil
}
