package api

import (
	"time"

	"basket-index/internal/config"
	"basket-index/internal/index"
	"basket-index/internal/models"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// BasketSummary describes a configured basket.
type BasketSummary struct {
	Name      string   `json:"name"`
	Title     string   `json:"title"`
	Benchmark string   `json:"benchmark"`
	Tickers   []string `json:"tickers"`
}

// RiskResponse carries risk metrics; both fields are null when the series
// is too short.
type RiskResponse struct {
	AnnualizedVolatilityPct *float64 `json:"annualized_volatility_pct"`
	MaxDrawdownPct          *float64 `json:"max_drawdown_pct"`
}

// ChartResponse is the index series with its benchmark overlay.
type ChartResponse struct {
	Basket          string       `json:"basket,omitempty"`
	Timeframe       string       `json:"timeframe"`
	Dates           []string     `json:"dates"`
	IndexValues     []float64    `json:"index_values"`
	BenchmarkValues []*float64   `json:"benchmark_values,omitempty"`
	Benchmark       string       `json:"benchmark,omitempty"`
	LatestValue     float64      `json:"latest_value"`
	Change          *float64     `json:"change"`
	ChangePct       *float64     `json:"change_pct"`
	Constituents    []string     `json:"constituents"`
	Risk            RiskResponse `json:"risk"`
	Warnings        []string     `json:"warnings,omitempty"`
}

// HeaderAsOf carries the date a composition snapshot was priced at.
const HeaderAsOf = "X-As-Of"

func summarize(name string, b config.BasketConfig, benchmark string) BasketSummary {
	return BasketSummary{
		Name:      name,
		Title:     b.Title,
		Benchmark: benchmark,
		Tickers:   b.Tickers,
	}
}

func NewRiskResponse(r *models.RiskRecord) RiskResponse {
	if r == nil {
		return RiskResponse{}
	}
	return RiskResponse{
		AnnualizedVolatilityPct: models.Float(r.AnnualizedVolatilityPct),
		MaxDrawdownPct:          models.Float(r.MaxDrawdownPct),
	}
}

// NewChartResponse rebases a computed chart to tf and shapes it for the wire.
func NewChartResponse(chart *index.Chart, tf index.Timeframe, asOf time.Time) ChartResponse {
	series, bench := index.Rebase(chart.Series, chart.Benchmark, tf, asOf)

	resp := ChartResponse{
		Timeframe:       string(tf),
		Dates:           series.Dates(),
		IndexValues:     series.Values(),
		BenchmarkValues: bench,
		Constituents:    chart.Constituents,
		Warnings:        chart.Warnings,
	}
	if latest, ok := series.Latest(); ok {
		resp.LatestValue = latest.Value
	}
	if change, pct, ok := index.PeriodChange(series); ok {
		resp.Change = models.Float(change)
		resp.ChangePct = models.Float(pct)
	}
	if risk, err := index.ComputeRisk(series); err == nil {
		resp.Risk = NewRiskResponse(&risk)
	}
	return resp
}
