package index

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"basket-index/internal/models"
)

func newParameters() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	return parameters
}

var propertyTickers = []string{"ACMESOLAR.NS", "SUZLON.NS", "TATAPOWER.NS", "SWIGGY.NS", "PWL.BO", "IXIGO.NS"}

func dateAxis(n int) []time.Time {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

// gridFrom builds a grid with len(propertyTickers) columns from a flat
// value slice; values <= 0 become missing when holes is true.
func gridFrom(values []float64, days int, holes bool) *PriceGrid {
	grid := NewPriceGrid(dateAxis(days), nil)
	for c, t := range propertyTickers {
		col := make([]float64, days)
		for i := range col {
			v := values[(c*days+i)%len(values)]
			if holes && v < 50 {
				v = math.NaN()
			}
			col[i] = v
		}
		grid.AddColumn(t, col)
	}
	return grid
}

func gridsEqual(a, b *PriceGrid) bool {
	if a.Len() != b.Len() || len(a.Tickers) != len(b.Tickers) {
		return false
	}
	for _, t := range a.Tickers {
		ca, _ := a.Column(t)
		cb, ok := b.Column(t)
		if !ok {
			return false
		}
		for i := range ca {
			if ca[i] != cb[i] && !(math.IsNaN(ca[i]) && math.IsNaN(cb[i])) {
				return false
			}
		}
	}
	return true
}

// Property: filling an already filled grid returns it unchanged, and a
// filled grid has no gaps in any column with at least one observation.
func TestProperty_FillIsIdempotent(t *testing.T) {
	properties := gopter.NewProperties(newParameters())

	properties.Property("fill(fill(g)) == fill(g)", prop.ForAll(
		func(values []float64, days int) bool {
			grid := gridFrom(values, days, true)
			once := Fill(grid)
			twice := Fill(once)
			if !gridsEqual(once, twice) {
				return false
			}
			for _, tk := range once.Tickers {
				orig, _ := grid.Column(tk)
				col, _ := once.Column(tk)
				if countValid(orig) > 0 && countValid(col) != len(col) {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(60, gen.Float64Range(1, 500)),
		gen.IntRange(1, 30),
	))

	properties.TestingRun(t)
}

// Property: the first index value is exactly 100, and the index does not
// depend on the order of the basket.
func TestProperty_IndexBaseAndOrderInvariance(t *testing.T) {
	properties := gopter.NewProperties(newParameters())

	properties.Property("index starts at exactly 100", prop.ForAll(
		func(values []float64, shares []float64, days int) bool {
			grid := Fill(gridFrom(values, days, false))
			series, err := ComputeIndex(grid, sharesFor(propertyTickers, shares))
			return err == nil && len(series) == days && series[0].Value == 100
		},
		gen.SliceOfN(60, gen.Float64Range(1, 500)),
		gen.SliceOfN(6, gen.Float64Range(1, 1e9)),
		gen.IntRange(1, 30),
	))

	properties.Property("index is invariant under basket reordering", prop.ForAll(
		func(values []float64, shares []float64, days int) bool {
			forward := Fill(gridFrom(values, days, false))

			reversed := NewPriceGrid(forward.Dates, nil)
			for i := len(forward.Tickers) - 1; i >= 0; i-- {
				tk := forward.Tickers[i]
				col, _ := forward.Column(tk)
				reversed.AddColumn(tk, col)
			}

			sh := sharesFor(propertyTickers, shares)
			a, errA := ComputeIndex(forward, sh)
			b, errB := ComputeIndex(reversed, sh)
			if errA != nil || errB != nil || len(a) != len(b) {
				return false
			}
			for i := range a {
				if a[i].Value != b[i].Value {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(60, gen.Float64Range(1, 500)),
		gen.SliceOfN(6, gen.Float64Range(1, 1e9)),
		gen.IntRange(1, 30),
	))

	properties.Property("tickers on only one side never contribute", prop.ForAll(
		func(values []float64, shares []float64, days int, extra float64) bool {
			grid := Fill(gridFrom(values, days, false))
			sh := sharesFor(propertyTickers[:3], shares)

			baseline, err := ComputeIndex(grid.Select(propertyTickers[:3]), sh)
			if err != nil {
				return false
			}

			sh["NOTPRICED.NS"] = extra
			withExtras, err := ComputeIndex(grid, sh)
			if err != nil || len(withExtras) != len(baseline) {
				return false
			}
			for i := range baseline {
				if baseline[i].Value != withExtras[i].Value {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(60, gen.Float64Range(1, 500)),
		gen.SliceOfN(6, gen.Float64Range(1, 1e9)),
		gen.IntRange(1, 30),
		gen.Float64Range(1, 1e9),
	))

	properties.TestingRun(t)
}

// Property: composition weights sum to 100 and are sorted descending.
func TestProperty_CompositionWeightsSumTo100(t *testing.T) {
	properties := gopter.NewProperties(newParameters())

	properties.Property("weights sum to 100", prop.ForAll(
		func(values []float64, shares []float64, days int) bool {
			grid := gridFrom(values, days, true)
			fundamentals := make(map[string]models.FundamentalsRecord)
			for i, tk := range propertyTickers {
				fundamentals[tk] = models.FundamentalsRecord{Ticker: tk, SharesOutstanding: models.Float(shares[i])}
			}

			rows, err := ComputeComposition(propertyTickers, fundamentals, grid, nil)
			if err != nil {
				// every column can be all holes
				for _, tk := range propertyTickers {
					if _, _, _, ok := grid.LastValid(tk); ok {
						return false
					}
				}
				return true
			}

			sum := 0.0
			for i, r := range rows {
				sum += r.WeightPct
				if i > 0 && rows[i-1].WeightPct < r.WeightPct {
					return false
				}
			}
			return math.Abs(sum-100) < 1e-6
		},
		gen.SliceOfN(60, gen.Float64Range(1, 500)),
		gen.SliceOfN(6, gen.Float64Range(1, 1e9)),
		gen.IntRange(1, 30),
	))

	properties.TestingRun(t)
}

// Property: a constant series has zero volatility and zero drawdown.
func TestProperty_FlatSeriesHasNoRisk(t *testing.T) {
	properties := gopter.NewProperties(newParameters())

	properties.Property("flat series risk is zero", prop.ForAll(
		func(level float64, days int) bool {
			series := make(models.IndexSeries, days)
			for i, d := range dateAxis(days) {
				series[i] = models.IndexPoint{Date: d, Value: level}
			}
			risk, err := ComputeRisk(series)
			return err == nil && risk.AnnualizedVolatilityPct == 0 && risk.MaxDrawdownPct == 0
		},
		gen.Float64Range(1, 1000),
		gen.IntRange(2, 300),
	))

	properties.Property("drawdown is never positive", prop.ForAll(
		func(values []float64) bool {
			series := make(models.IndexSeries, len(values))
			for i, d := range dateAxis(len(values)) {
				series[i] = models.IndexPoint{Date: d, Value: values[i]}
			}
			risk, err := ComputeRisk(series)
			return err == nil && risk.MaxDrawdownPct <= 0 && risk.MaxDrawdownPct >= -100
		},
		gen.SliceOfN(40, gen.Float64Range(1, 1000)),
	))

	properties.TestingRun(t)
}

func sharesFor(tickers []string, shares []float64) map[string]float64 {
	out := make(map[string]float64, len(tickers))
	for i, t := range tickers {
		out[t] = shares[i%len(shares)]
	}
	return out
}
