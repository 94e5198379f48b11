package api

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "basket-index/internal/errors"
	"basket-index/internal/index"
	"basket-index/internal/models"
	"basket-index/pkg/utils"
)

const noBenchmark = "none"

func (s *Server) handleHome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Basket index API is running. Charts are served at /api/baskets/:name/chart",
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for name, hc := range s.checks {
		if err := hc.HealthCheck(ctx); err != nil {
			checks[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	c.JSON(code, gin.H{
		"status":  status,
		"baskets": len(s.cfg.Baskets),
		"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
		"checks":  checks,
	})
}

func (s *Server) handleTimeframes(c *gin.Context) {
	c.JSON(http.StatusOK, index.Timeframes)
}

func (s *Server) handleListBaskets(c *gin.Context) {
	names := make([]string, 0, len(s.cfg.Baskets))
	for name := range s.cfg.Baskets {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]BasketSummary, 0, len(names))
	for _, name := range names {
		b := s.cfg.Baskets[name]
		out = append(out, summarize(name, b, s.cfg.BenchmarkFor(b)))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetBasket(c *gin.Context) {
	name := c.Param("name")
	b, ok := s.cfg.Basket(name)
	if !ok {
		s.respondError(c, apperrors.Wrapf(apperrors.ErrUnknownBasket, "basket %q", name))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"basket": summarize(name, b, s.cfg.BenchmarkFor(b)),
		"meta":   b.Meta,
	})
}

func (s *Server) handleBasketChart(c *gin.Context) {
	req, err := s.basketRequest(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.serveChart(c, req)
}

func (s *Server) handleAdhocChart(c *gin.Context) {
	req, err := s.adhocRequest(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.serveChart(c, req)
}

func (s *Server) serveChart(c *gin.Context, req index.Request) {
	tf, err := index.ParseTimeframe(c.Query("timeframe"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	began := time.Now()
	chart, err := s.engine.Chart(c.Request.Context(), req)
	s.metrics.ObserveComputation("chart", began, err)
	if err != nil {
		s.respondError(c, err)
		return
	}

	resp := NewChartResponse(chart, tf, req.End)
	resp.Basket = req.Name
	resp.Benchmark = req.Benchmark
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleBasketComposition(c *gin.Context) {
	req, err := s.basketRequest(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.serveComposition(c, req)
}

func (s *Server) handleAdhocComposition(c *gin.Context) {
	req, err := s.adhocRequest(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.serveComposition(c, req)
}

func (s *Server) serveComposition(c *gin.Context, req index.Request) {
	began := time.Now()
	rows, err := s.engine.Composition(c.Request.Context(), req)
	s.metrics.ObserveComputation("composition", began, err)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if rows == nil {
		rows = []models.CompositionRow{}
	}
	c.Header(HeaderAsOf, req.End.Format(models.DateLayout))
	c.JSON(http.StatusOK, rows)
}

func (s *Server) handleBasketRisk(c *gin.Context) {
	req, err := s.basketRequest(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	began := time.Now()
	risk, err := s.engine.Risk(c.Request.Context(), req)
	s.metrics.ObserveComputation("risk", began, err)
	switch {
	case apperrors.Is(err, apperrors.ErrInsufficientData):
		c.JSON(http.StatusOK, RiskResponse{})
	case err != nil:
		s.respondError(c, err)
	default:
		c.JSON(http.StatusOK, NewRiskResponse(&risk))
	}
}

func (s *Server) handleInvalidate(c *gin.Context) {
	name := c.Param("name")
	b, ok := s.cfg.Basket(name)
	if !ok {
		s.respondError(c, apperrors.Wrapf(apperrors.ErrUnknownBasket, "basket %q", name))
		return
	}
	if err := s.invalidator.Invalidate(c.Request.Context(), b.Tickers); err != nil {
		s.respondError(c, err)
		return
	}
	s.logger.Info().Str("basket", name).Msg("Fundamentals cache invalidated")
	c.JSON(http.StatusOK, gin.H{"invalidated": name, "tickers": len(b.Tickers)})
}

// basketRequest builds a request for the configured basket named in the path.
func (s *Server) basketRequest(c *gin.Context) (index.Request, error) {
	name := c.Param("name")
	b, ok := s.cfg.Basket(name)
	if !ok {
		return index.Request{}, apperrors.Wrapf(apperrors.ErrUnknownBasket, "basket %q", name)
	}

	start, end, err := utils.DateRange(c.Query("start"), c.Query("end"), s.cfg.Index.DefaultStart, s.now())
	if err != nil {
		return index.Request{}, err
	}
	return index.Request{
		Name:      name,
		Tickers:   b.Tickers,
		Start:     start,
		End:       end,
		Benchmark: benchmarkParam(c, s.cfg.BenchmarkFor(b)),
		Info:      b.Info(),
	}, nil
}

// adhocRequest builds a request from a comma-separated tickers parameter.
func (s *Server) adhocRequest(c *gin.Context) (index.Request, error) {
	var tickers []string
	for _, t := range strings.Split(c.Query("tickers"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			tickers = append(tickers, t)
		}
	}

	start, end, err := utils.DateRange(c.Query("start"), c.Query("end"), s.cfg.Index.DefaultStart, s.now())
	if err != nil {
		return index.Request{}, err
	}
	return index.Request{
		Tickers:   tickers,
		Start:     start,
		End:       end,
		Benchmark: benchmarkParam(c, s.cfg.Index.DefaultBenchmark),
	}, nil
}

// benchmarkParam reads the benchmark override; "none" disables the overlay.
func benchmarkParam(c *gin.Context, fallback string) string {
	b := strings.TrimSpace(c.DefaultQuery("benchmark", fallback))
	if strings.EqualFold(b, noBenchmark) {
		return ""
	}
	return b
}
