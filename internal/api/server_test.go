package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basket-index/internal/config"
	apperrors "basket-index/internal/errors"
	"basket-index/internal/fundamentals"
	"basket-index/internal/index"
	"basket-index/internal/marketdata"
	"basket-index/internal/models"
	"basket-index/pkg/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func day(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func testConfig() *config.Config {
	return &config.Config{
		Index: config.IndexConfig{
			DefaultStart:     "2026-01-01",
			DefaultBenchmark: "^NSEI",
		},
		Baskets: map[string]config.BasketConfig{
			"startups": {
				Title:   "Startup Index",
				Tickers: []string{"SWIGGY.NS", "IXIGO.NS"},
				Meta: []models.TickerInfo{
					{Ticker: "SWIGGY.NS", DisplayName: "Swiggy", Sector: "Consumer Tech"},
				},
			},
		},
		Server: config.ServerConfig{Addr: "127.0.0.1:0", RequestLimit: 5 * time.Second},
	}
}

// newTestServer serves a two-ticker basket from static data over
// 2026-01-01..2026-01-05 with the clock fixed at the last date.
func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()

	axis := []time.Time{day("2026-01-01"), day("2026-01-02"), day("2026-01-05")}
	prices := marketdata.NewStaticProvider(true)
	prices.AddCloses("SWIGGY.NS", axis, []float64{400, 410, 420})
	prices.AddCloses("IXIGO.NS", axis, []float64{150, 140, 145})
	prices.AddCloses("^NSEI", axis, []float64{24000, 24240, 24120})

	funds := marketdata.NewStaticProvider(true)
	funds.SetFundamentals(models.FundamentalsRecord{Ticker: "SWIGGY.NS", SharesOutstanding: models.Float(2.2e9)})
	funds.SetFundamentals(models.FundamentalsRecord{Ticker: "IXIGO.NS", SharesOutstanding: models.Float(3.9e8), Name: "Le Travenues"})

	store := fundamentals.NewStore(fundamentals.Config{Live: funds, Cache: fundamentals.NewMemoryCache(), TTL: time.Hour}, zerolog.Nop())
	engine := index.NewEngine(index.NewLoader(prices, zerolog.Nop()), store, zerolog.Nop())

	clock := func() time.Time { return time.Date(2026, 1, 5, 16, 0, 0, 0, utils.IndiaLocation) }
	opts = append([]Option{WithClock(clock), WithInvalidator(store)}, opts...)
	return NewServer(testConfig(), engine, zerolog.Nop(), opts...)
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestListBaskets(t *testing.T) {
	s := newTestServer(t)

	w := get(t, s, "/api/baskets")
	require.Equal(t, http.StatusOK, w.Code)

	baskets := decode[[]BasketSummary](t, w)
	require.Len(t, baskets, 1)
	assert.Equal(t, "startups", baskets[0].Name)
	assert.Equal(t, "^NSEI", baskets[0].Benchmark)
	assert.Equal(t, []string{"SWIGGY.NS", "IXIGO.NS"}, baskets[0].Tickers)
}

func TestBasketChart(t *testing.T) {
	s := newTestServer(t)

	w := get(t, s, "/api/baskets/startups/chart")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	chart := decode[ChartResponse](t, w)
	assert.Equal(t, []string{"2026-01-01", "2026-01-02", "2026-01-05"}, chart.Dates)
	require.Len(t, chart.IndexValues, 3)
	assert.Equal(t, 100.0, chart.IndexValues[0])
	assert.Equal(t, chart.IndexValues[2], chart.LatestValue)
	assert.Equal(t, "ALL", chart.Timeframe)
	assert.Equal(t, "^NSEI", chart.Benchmark)

	require.Len(t, chart.BenchmarkValues, 3)
	require.NotNil(t, chart.BenchmarkValues[1])
	assert.InDelta(t, 101.0, *chart.BenchmarkValues[1], 1e-9)

	assert.NotNil(t, chart.Risk.AnnualizedVolatilityPct)
	assert.NotNil(t, chart.Risk.MaxDrawdownPct)
	assert.ElementsMatch(t, []string{"SWIGGY.NS", "IXIGO.NS"}, chart.Constituents)
}

func TestBasketChartTimeframeAndBenchmarkOverride(t *testing.T) {
	s := newTestServer(t)

	w := get(t, s, "/api/baskets/STARTUPS/chart?timeframe=1w&benchmark=none")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.NotContains(t, raw, "benchmark_values")

	chart := decode[ChartResponse](t, w)
	assert.Equal(t, "1W", chart.Timeframe)
	assert.Equal(t, 100.0, chart.IndexValues[0])
}

func TestErrorResponses(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"unknown basket", "/api/baskets/unknown/chart", http.StatusNotFound},
		{"inverted range", "/api/baskets/startups/chart?start=2026-01-05&end=2026-01-01", http.StatusBadRequest},
		{"malformed date", "/api/baskets/startups/chart?start=05-01-2026", http.StatusBadRequest},
		{"bad timeframe", "/api/baskets/startups/chart?timeframe=5Y", http.StatusBadRequest},
		{"no prices in range", "/api/baskets/startups/chart?start=2025-01-01&end=2025-01-31", http.StatusNotFound},
		{"empty ad-hoc basket", "/api/index/chart?tickers=", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, s, tt.path)
			assert.Equal(t, tt.status, w.Code, w.Body.String())

			body := decode[ErrorResponse](t, w)
			assert.True(t, body.Error)
			assert.NotEmpty(t, body.Message)
		})
	}
}

type stubEngine struct {
	err error
}

func (e stubEngine) Chart(ctx context.Context, req index.Request) (*index.Chart, error) {
	return nil, e.err
}

func (e stubEngine) Composition(ctx context.Context, req index.Request) ([]models.CompositionRow, error) {
	return nil, e.err
}

func (e stubEngine) Risk(ctx context.Context, req index.Request) (models.RiskRecord, error) {
	return models.RiskRecord{}, e.err
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{apperrors.NewGuardError("base market cap is zero"), http.StatusUnprocessableEntity},
		{apperrors.NotFoundf("nothing"), http.StatusNotFound},
		{errors.New("upstream exploded"), http.StatusInternalServerError},
		{apperrors.Wrap(context.DeadlineExceeded, "loading prices"), http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		s := NewServer(testConfig(), stubEngine{err: tt.err}, zerolog.Nop())
		w := get(t, s, "/api/baskets/startups/composition")
		assert.Equal(t, tt.status, w.Code, tt.err.Error())
		assert.True(t, decode[ErrorResponse](t, w).Error)
	}
}

func TestBasketComposition(t *testing.T) {
	s := newTestServer(t)

	w := get(t, s, "/api/baskets/startups/composition")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, "2026-01-05", w.Header().Get(HeaderAsOf))

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw), "body must be a bare array: %s", w.Body.String())
	require.Len(t, raw, 2)
	for _, key := range []string{"ticker", "display_name", "sector", "price", "market_cap", "weight_pct"} {
		assert.Contains(t, raw[0], key)
	}

	rows := decode[[]models.CompositionRow](t, w)
	require.Len(t, rows, 2)
	swiggy := rows[0]
	assert.Equal(t, "SWIGGY.NS", swiggy.Ticker)
	assert.Equal(t, "Swiggy", swiggy.DisplayName)
	assert.Equal(t, "Consumer Tech", swiggy.Sector)
	assert.Equal(t, "Le Travenues", rows[1].DisplayName)
	assert.Equal(t, models.UnknownSector, rows[1].Sector)
	assert.InDelta(t, 100.0, swiggy.WeightPct+rows[1].WeightPct, 1e-9)
}

func TestBasketRisk(t *testing.T) {
	s := newTestServer(t)

	w := get(t, s, "/api/baskets/startups/risk")
	require.Equal(t, http.StatusOK, w.Code)
	risk := decode[RiskResponse](t, w)
	require.NotNil(t, risk.MaxDrawdownPct)
	assert.LessOrEqual(t, *risk.MaxDrawdownPct, 0.0)

	w = get(t, s, "/api/baskets/startups/risk?start=2026-01-02&end=2026-01-02")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"annualized_volatility_pct": null, "max_drawdown_pct": null}`, w.Body.String())
}

func TestAdhocChart(t *testing.T) {
	s := newTestServer(t)

	w := get(t, s, "/api/index/chart?tickers=SWIGGY.NS&benchmark=none")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	chart := decode[ChartResponse](t, w)
	assert.Equal(t, []string{"SWIGGY.NS"}, chart.Constituents)
	assert.InDelta(t, 105.0, chart.LatestValue, 1e-9)
	require.NotNil(t, chart.ChangePct)
	assert.InDelta(t, 5.0, *chart.ChangePct, 1e-9)
}

func TestInvalidateFundamentals(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/baskets/startups/fundamentals", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	req = httptest.NewRequest(http.MethodDelete, "/api/baskets/nope/fundamentals", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthMetricsAndCORS(t *testing.T) {
	s := newTestServer(t)

	w := get(t, s, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	health := decode[map[string]any](t, w)
	assert.Equal(t, "ok", health["status"])

	get(t, s, "/api/baskets/startups/chart")
	w = get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "basketindex_http_requests_total")
	assert.Contains(t, w.Body.String(), `basketindex_computations_total{operation="chart",outcome="ok"} 1`)

	req := httptest.NewRequest(http.MethodOptions, "/api/baskets", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, HeaderAsOf, w.Header().Get("Access-Control-Expose-Headers"))
}

type failingCheck struct{}

func (failingCheck) HealthCheck(ctx context.Context) error {
	return errors.New("connection refused")
}

func TestHealthDegraded(t *testing.T) {
	s := newTestServer(t, WithHealthCheck("redis", failingCheck{}))

	w := get(t, s, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	health := decode[map[string]any](t, w)
	assert.Equal(t, "degraded", health["status"])
}
