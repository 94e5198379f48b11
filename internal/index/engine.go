package index

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	apperrors "basket-index/internal/errors"
	"basket-index/internal/logging"
	"basket-index/internal/models"
)

// FundamentalsResolver returns a complete ticker → record mapping.
type FundamentalsResolver interface {
	Get(ctx context.Context, tickers []string) (map[string]models.FundamentalsRecord, error)
}

// Request describes one basket computation.
type Request struct {
	Name      string // basket name, for logs only
	Tickers   []string
	Start     time.Time
	End       time.Time
	Benchmark string // optional reference ticker
	Info      map[string]models.TickerInfo
}

// Validate checks the request shape before any fetch.
func (r Request) Validate() error {
	if len(r.Tickers) == 0 {
		return apperrors.NewInputError("tickers", r.Tickers, "basket is empty")
	}
	seen := make(map[string]bool, len(r.Tickers))
	for _, t := range r.Tickers {
		key := strings.ToUpper(strings.TrimSpace(t))
		if key == "" {
			return apperrors.NewInputError("tickers", r.Tickers, "ticker must not be blank")
		}
		if seen[key] {
			return apperrors.NewInputError("tickers", t, "duplicate ticker in basket")
		}
		seen[key] = true
	}
	if r.Start.IsZero() || r.End.IsZero() {
		return apperrors.NewInputError("date_range", nil, "start and end dates are required")
	}
	if calendarDay(r.Start).After(calendarDay(r.End)) {
		return apperrors.NewInputError("start_date", r.Start.Format(models.DateLayout),
			fmt.Sprintf("start date is after end date %s", r.End.Format(models.DateLayout)))
	}
	return nil
}

// Chart is a computed index series with its overlays.
type Chart struct {
	Series       models.IndexSeries
	Benchmark    []*float64 // aligned to Series dates; nil without a benchmark
	Constituents []string
	Risk         *models.RiskRecord // nil with fewer than 2 observations
	Warnings     []string
}

// Engine runs the index pipeline: fundamentals and prices are fetched
// concurrently, prices are gap-filled, and the index, composition and risk
// are derived from them. Each call is independent of every other.
type Engine struct {
	loader       *Loader
	fundamentals FundamentalsResolver
	logger       zerolog.Logger
}

// NewEngine creates an engine.
func NewEngine(loader *Loader, fundamentals FundamentalsResolver, logger zerolog.Logger) *Engine {
	return &Engine{
		loader:       loader,
		fundamentals: fundamentals,
		logger:       logger,
	}
}

type inputs struct {
	prices       *PriceGrid // unfilled
	fundamentals map[string]models.FundamentalsRecord
	benchmark    *PriceGrid
	benchErr     error
}

func (e *Engine) gather(ctx context.Context, req Request, withBenchmark bool) (*inputs, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	in := &inputs{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		f, err := e.fundamentals.Get(gctx, req.Tickers)
		if err != nil {
			return err
		}
		in.fundamentals = f
		return nil
	})
	g.Go(func() error {
		p, err := e.loader.Load(gctx, req.Tickers, req.Start, req.End)
		if err != nil {
			return err
		}
		in.prices = p
		return nil
	})
	if withBenchmark && req.Benchmark != "" {
		g.Go(func() error {
			in.benchmark, in.benchErr = e.loader.Load(gctx, []string{req.Benchmark}, req.Start, req.End)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return in, nil
}

// Chart computes the base-100 index for the request, its risk metrics and
// the benchmark overlay. A failing benchmark only adds a warning.
func (e *Engine) Chart(ctx context.Context, req Request) (*Chart, error) {
	logger := e.requestLogger(req, "chart")

	in, err := e.gather(ctx, req, true)
	if err != nil {
		logger.Error().Err(err).Msg("Index inputs unavailable")
		return nil, err
	}

	filled := Fill(in.prices)
	shares := SharesOf(in.fundamentals)
	series, err := ComputeIndex(filled, shares)
	if err != nil {
		logger.Error().Err(err).Msg("Index computation failed")
		return nil, err
	}

	chart := &Chart{Series: series}
	for _, t := range filled.Tickers {
		if _, ok := shares[t]; ok {
			chart.Constituents = append(chart.Constituents, t)
		}
	}

	if risk, err := ComputeRisk(series); err == nil {
		chart.Risk = &risk
	}

	if req.Benchmark != "" {
		overlay, err := benchmarkOverlay(in, req.Benchmark, series)
		if err != nil {
			benchLogger := logging.WithTicker(logger, req.Benchmark)
			benchLogger.Warn().Err(err).Msg("Benchmark unavailable, overlay left empty")
			chart.Warnings = append(chart.Warnings, fmt.Sprintf("benchmark %s unavailable: %v", req.Benchmark, err))
		}
		chart.Benchmark = overlay
	}

	latest, _ := series.Latest()
	logging.LogIndex(logger, len(chart.Constituents), len(series), latest.Value)
	return chart, nil
}

// benchmarkOverlay bases the benchmark at its own first date and aligns it
// to the index dates. On failure every slot is nil.
func benchmarkOverlay(in *inputs, ticker string, series models.IndexSeries) ([]*float64, error) {
	axis := make([]time.Time, len(series))
	for i, p := range series {
		axis[i] = p.Date
	}
	if in.benchErr != nil {
		return make([]*float64, len(axis)), in.benchErr
	}
	normalized, err := NormalizeColumn(Fill(in.benchmark), ticker)
	if err != nil {
		return make([]*float64, len(axis)), err
	}
	return Align(normalized, axis), nil
}

// Composition returns the weight snapshot at each ticker's latest price
// within the request range.
func (e *Engine) Composition(ctx context.Context, req Request) ([]models.CompositionRow, error) {
	logger := e.requestLogger(req, "composition")

	in, err := e.gather(ctx, req, false)
	if err != nil {
		logger.Error().Err(err).Msg("Composition inputs unavailable")
		return nil, err
	}

	rows, err := ComputeComposition(req.Tickers, in.fundamentals, in.prices, req.Info)
	if err != nil {
		logger.Error().Err(err).Msg("Composition failed")
		return nil, err
	}
	logger.Debug().Int("constituents", len(rows)).Msg("Composition computed")
	return rows, nil
}

// Risk computes the index for the request and returns its risk metrics.
func (e *Engine) Risk(ctx context.Context, req Request) (models.RiskRecord, error) {
	req.Benchmark = ""
	chart, err := e.Chart(ctx, req)
	if err != nil {
		return models.RiskRecord{}, err
	}
	if chart.Risk == nil {
		return models.RiskRecord{}, apperrors.Wrapf(apperrors.ErrInsufficientData,
			"risk needs at least 2 observations, got %d", len(chart.Series))
	}
	return *chart.Risk, nil
}

func (e *Engine) requestLogger(req Request, operation string) zerolog.Logger {
	logger := logging.WithOperation(e.logger, operation)
	if req.Name != "" {
		logger = logging.WithBasket(logger, req.Name)
	}
	return logger
}
