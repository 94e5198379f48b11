package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	apperrors "basket-index/internal/errors"
	"basket-index/internal/logging"
	"basket-index/internal/models"
)

const yahooProviderName = "yahoo"

// YahooConfig holds configuration for the Yahoo Finance provider.
type YahooConfig struct {
	BaseURL     string
	Timeout     time.Duration
	RateLimit   float64 // requests per second, 0 disables limiting
	Concurrency int
	UserAgent   string
}

// YahooProvider implements PriceProvider and FundamentalsProvider on top of
// the public v8 chart and v10 quoteSummary endpoints.
type YahooProvider struct {
	baseURL     string
	client      *http.Client
	limiter     *rate.Limiter
	concurrency int
	userAgent   string
	logger      zerolog.Logger
}

// NewYahooProvider creates a new Yahoo Finance provider.
func NewYahooProvider(cfg YahooConfig, logger zerolog.Logger) *YahooProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), concurrency)
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "Mozilla/5.0 (X11; Linux x86_64) basket-index/0.1"
	}

	return &YahooProvider{
		baseURL:     baseURL,
		client:      &http.Client{Timeout: timeout},
		limiter:     limiter,
		concurrency: concurrency,
		userAgent:   ua,
		logger:      logger.With().Str("provider", yahooProviderName).Logger(),
	}
}

// Name returns the provider name.
func (y *YahooProvider) Name() string {
	return yahooProviderName
}

// DailyPrices fetches one chart per ticker and merges them into a frame.
// A ticker whose request fails contributes an all-missing column, unless
// every ticker failed upstream, which is reported as an error.
func (y *YahooProvider) DailyPrices(ctx context.Context, tickers []string, start, end time.Time) (*Frame, error) {
	began := time.Now()

	var mu sync.Mutex
	bars := make(map[string][]models.Candle, len(tickers))
	var failures []error

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(y.concurrency)
	for _, ticker := range tickers {
		g.Go(func() error {
			candles, err := y.chart(gctx, ticker, start, end)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				logger := logging.WithTicker(y.logger, ticker)
				logger.Warn().Err(err).Msg("Chart fetch failed, ticker will be empty")
				if !apperrors.Is(err, apperrors.ErrNotFound) {
					mu.Lock()
					failures = append(failures, err)
					mu.Unlock()
				}
				return nil
			}
			mu.Lock()
			bars[ticker] = candles
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logging.LogFetch(y.logger, yahooProviderName, "chart", len(tickers), time.Since(began), err)
		return nil, err
	}

	err := upstreamFailure(yahooProviderName, len(bars), failures)
	logging.LogFetch(y.logger, yahooProviderName, "chart", len(tickers), time.Since(began), err)
	if err != nil {
		return nil, err
	}
	return BuildFrame(tickers, bars, true), nil
}

func (y *YahooProvider) chart(ctx context.Context, ticker string, start, end time.Time) ([]models.Candle, error) {
	q := url.Values{}
	q.Set("period1", fmt.Sprintf("%d", start.Unix()))
	q.Set("period2", fmt.Sprintf("%d", end.Unix()))
	q.Set("interval", "1d")
	q.Set("events", "history")
	q.Set("includeAdjustedClose", "true")
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", y.baseURL, url.PathEscape(ticker), q.Encode())

	var resp yfChartResponse
	if err := y.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", ticker, err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart %s: %s", ticker, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, apperrors.NotFoundf("yahoo chart %s: empty result", ticker)
	}

	return parseChart(resp.Chart.Result[0]), nil
}

// parseChart converts a chart result into candles dated in exchange-local time.
// Bars with a null close are skipped.
func parseChart(r yfChartResult) []models.Candle {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	q := r.Indicators.Quote[0]
	var adj []*float64
	if len(r.Indicators.AdjClose) > 0 {
		adj = r.Indicators.AdjClose[0].AdjClose
	}

	candles := make([]models.Candle, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		closePx := at(q.Close, i)
		if closePx == nil {
			continue
		}
		c := models.Candle{
			Timestamp: time.Unix(ts+r.Meta.GMTOffset, 0).UTC(),
			Close:     *closePx,
			AdjClose:  *closePx,
		}
		if v := at(q.Open, i); v != nil {
			c.Open = *v
		}
		if v := at(q.High, i); v != nil {
			c.High = *v
		}
		if v := at(q.Low, i); v != nil {
			c.Low = *v
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			c.Volume = *q.Volume[i]
		}
		if v := at(adj, i); v != nil {
			c.AdjClose = *v
		}
		candles = append(candles, c)
	}
	return candles
}

func at(values []*float64, i int) *float64 {
	if i < len(values) {
		return values[i]
	}
	return nil
}

// Fundamentals fetches share count, trailing P/E and EPS, name and sector.
func (y *YahooProvider) Fundamentals(ctx context.Context, ticker string) (models.FundamentalsRecord, error) {
	began := time.Now()
	rec := models.FundamentalsRecord{Ticker: ticker}

	endpoint := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=%s",
		y.baseURL, url.PathEscape(ticker), url.QueryEscape("defaultKeyStatistics,summaryDetail,price,assetProfile"))

	var resp yfQuoteSummaryResponse
	err := y.getJSON(ctx, endpoint, &resp)
	logging.LogFetch(logging.WithTicker(y.logger, ticker), yahooProviderName, "quoteSummary", 1, time.Since(began), err)
	if err != nil {
		return rec, fmt.Errorf("yahoo quoteSummary %s: %w", ticker, err)
	}
	if resp.QuoteSummary.Error != nil {
		return rec, fmt.Errorf("yahoo quoteSummary %s: %s", ticker, resp.QuoteSummary.Error.Description)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return rec, apperrors.NotFoundf("yahoo quoteSummary %s: empty result", ticker)
	}

	r := resp.QuoteSummary.Result[0]
	if r.DefaultKeyStatistics != nil {
		rec.SharesOutstanding = r.DefaultKeyStatistics.SharesOutstanding.value()
		rec.TrailingEPS = r.DefaultKeyStatistics.TrailingEps.value()
	}
	if r.SummaryDetail != nil {
		rec.TrailingPE = r.SummaryDetail.TrailingPE.value()
	}
	if r.Price != nil {
		rec.Name = coalesce(r.Price.LongName, r.Price.ShortName)
	}
	if r.AssetProfile != nil {
		rec.Sector = r.AssetProfile.Sector
	}

	return rec, nil
}

func (y *YahooProvider) getJSON(ctx context.Context, endpoint string, dest any) error {
	if err := y.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", y.userAgent)

	resp, err := y.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return apperrors.NotFoundf("status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("parse JSON: %w", err)
	}
	return nil
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// --- Yahoo Finance response types ---

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type yfChartResponse struct {
	Chart struct {
		Result []yfChartResult `json:"result"`
		Error  *yfError        `json:"error"`
	} `json:"chart"`
}

type yfChartResult struct {
	Meta       yfChartMeta  `json:"meta"`
	Timestamp  []int64      `json:"timestamp"`
	Indicators yfIndicators `json:"indicators"`
}

type yfChartMeta struct {
	Symbol       string `json:"symbol"`
	Currency     string `json:"currency"`
	ExchangeName string `json:"exchangeName"`
	GMTOffset    int64  `json:"gmtoffset"`
}

type yfIndicators struct {
	Quote    []yfOHLCV    `json:"quote"`
	AdjClose []yfAdjClose `json:"adjclose"`
}

type yfOHLCV struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

type yfAdjClose struct {
	AdjClose []*float64 `json:"adjclose"`
}

type yfQuoteSummaryResponse struct {
	QuoteSummary struct {
		Result []yfQuoteSummaryResult `json:"result"`
		Error  *yfError               `json:"error"`
	} `json:"quoteSummary"`
}

type yfQuoteSummaryResult struct {
	DefaultKeyStatistics *struct {
		SharesOutstanding yfFinVal `json:"sharesOutstanding"`
		TrailingEps       yfFinVal `json:"trailingEps"`
	} `json:"defaultKeyStatistics"`
	SummaryDetail *struct {
		TrailingPE yfFinVal `json:"trailingPE"`
	} `json:"summaryDetail"`
	Price *struct {
		LongName  string `json:"longName"`
		ShortName string `json:"shortName"`
	} `json:"price"`
	AssetProfile *struct {
		Sector   string `json:"sector"`
		Industry string `json:"industry"`
	} `json:"assetProfile"`
}

// yfFinVal is Yahoo's {"raw": .., "fmt": ..} wrapper; missing values arrive as {}.
type yfFinVal struct {
	Raw *float64 `json:"raw"`
	Fmt string   `json:"fmt"`
}

func (v yfFinVal) value() *float64 {
	if v.Raw == nil {
		return nil
	}
	return models.Float(*v.Raw)
}
