package index

import (
	"math"

	apperrors "basket-index/internal/errors"
	"basket-index/internal/models"
)

// TradingDaysPerYear annualizes daily volatility.
const TradingDaysPerYear = 252

// ComputeRisk derives annualized volatility and maximum drawdown from the
// daily returns of series. Fewer than two observations is
// ErrInsufficientData.
//
// Volatility is the sample standard deviation of daily returns; with a
// single return it is zero.
func ComputeRisk(series models.IndexSeries) (models.RiskRecord, error) {
	if len(series) < 2 {
		return models.RiskRecord{}, apperrors.Wrapf(apperrors.ErrInsufficientData,
			"risk needs at least 2 observations, got %d", len(series))
	}

	returns := DailyReturns(series)

	return models.RiskRecord{
		AnnualizedVolatilityPct: sampleStdDev(returns) * math.Sqrt(TradingDaysPerYear) * 100,
		MaxDrawdownPct:          maxDrawdown(returns) * 100,
	}, nil
}

// DailyReturns returns series[t]/series[t-1] - 1 for t >= 1.
func DailyReturns(series models.IndexSeries) []float64 {
	if len(series) < 2 {
		return nil
	}
	out := make([]float64, len(series)-1)
	for i := 1; i < len(series); i++ {
		out[i-1] = series[i].Value/series[i-1].Value - 1
	}
	return out
}

func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	ss := 0.0
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

// maxDrawdown compounds returns into a wealth curve and returns the most
// negative (wealth - running peak) / running peak. The result is <= 0.
func maxDrawdown(returns []float64) float64 {
	wealth, peak, worst := 1.0, math.Inf(-1), 0.0
	for _, r := range returns {
		wealth *= 1 + r
		peak = math.Max(peak, wealth)
		if dd := (wealth - peak) / peak; dd < worst {
			worst = dd
		}
	}
	return worst
}
