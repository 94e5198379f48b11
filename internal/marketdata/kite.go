package marketdata

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"golang.org/x/time/rate"

	apperrors "basket-index/internal/errors"
	"basket-index/internal/logging"
	"basket-index/internal/models"
)

const kiteProviderName = "kite"

// kiteIndexSymbols maps Yahoo index tickers to Kite trading symbols.
var kiteIndexSymbols = map[string]string{
	"^NSEI":      "NSE:NIFTY 50",
	"^NSEBANK":   "NSE:NIFTY BANK",
	"^CNXIT":     "NSE:NIFTY IT",
	"^CNXENERGY": "NSE:NIFTY ENERGY",
	"^BSESN":     "BSE:SENSEX",
}

// kiteClient is the subset of the Kite Connect client used for prices.
type kiteClient interface {
	GetInstruments() (kiteconnect.Instruments, error)
	GetHistoricalData(instrumentToken int, interval string, fromDate time.Time, toDate time.Time, continuous bool, OI bool) ([]kiteconnect.HistoricalData, error)
}

// KiteConfig holds configuration for the Kite historical provider.
type KiteConfig struct {
	APIKey      string
	AccessToken string
	RateLimit   float64 // requests per second; Kite allows 3/s for historical data
}

// KiteProvider implements PriceProvider with Kite Connect historical candles.
// Kite carries no adjusted close, so frames only have Close columns.
type KiteProvider struct {
	client      kiteClient
	limiter     *rate.Limiter
	instruments map[string]int // "NSE:SYMBOL" -> instrument token
	loaded      bool
	mu          sync.RWMutex
	logger      zerolog.Logger
}

// NewKiteProvider creates a Kite provider using an existing access token.
func NewKiteProvider(cfg KiteConfig, logger zerolog.Logger) *KiteProvider {
	client := kiteconnect.New(cfg.APIKey)
	client.SetAccessToken(cfg.AccessToken)
	return newKiteProvider(client, cfg.RateLimit, logger)
}

func newKiteProvider(client kiteClient, rps float64, logger zerolog.Logger) *KiteProvider {
	if rps <= 0 {
		rps = 3
	}
	return &KiteProvider{
		client:      client,
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		instruments: make(map[string]int),
		logger:      logger.With().Str("provider", kiteProviderName).Logger(),
	}
}

// Name returns the provider name.
func (k *KiteProvider) Name() string {
	return kiteProviderName
}

// DailyPrices fetches day candles for each ticker. Kite treats the upper
// bound as inclusive, so the request stops one second before end.
func (k *KiteProvider) DailyPrices(ctx context.Context, tickers []string, start, end time.Time) (*Frame, error) {
	began := time.Now()
	bars := make(map[string][]models.Candle, len(tickers))
	var failures []error

	for _, ticker := range tickers {
		if err := k.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		candles, err := k.historical(ctx, ticker, start, end.Add(-time.Second))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logger := logging.WithTicker(k.logger, ticker)
			logger.Warn().Err(err).Msg("Historical fetch failed, ticker will be empty")
			if !apperrors.Is(err, apperrors.ErrNotFound) {
				failures = append(failures, err)
			}
			continue
		}
		bars[ticker] = candles
	}

	err := upstreamFailure(kiteProviderName, len(bars), failures)
	logging.LogFetch(k.logger, kiteProviderName, "historical", len(tickers), time.Since(began), err)
	if err != nil {
		return nil, err
	}
	return BuildFrame(tickers, bars, false), nil
}

func (k *KiteProvider) historical(ctx context.Context, ticker string, from, to time.Time) ([]models.Candle, error) {
	token, err := k.instrumentToken(ctx, ticker)
	if err != nil {
		return nil, err
	}

	data, err := k.client.GetHistoricalData(token, "day", from, to, false, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get historical data: %w", err)
	}

	candles := make([]models.Candle, len(data))
	for i, d := range data {
		candles[i] = models.Candle{
			Timestamp: d.Date.Time,
			Open:      d.Open,
			High:      d.High,
			Low:       d.Low,
			Close:     d.Close,
			AdjClose:  d.Close,
			Volume:    int64(d.Volume),
		}
	}
	return candles, nil
}

// KiteSymbol maps a Yahoo-style ticker to an "EXCHANGE:SYMBOL" key.
func KiteSymbol(ticker string) string {
	if s, ok := kiteIndexSymbols[strings.ToUpper(ticker)]; ok {
		return s
	}
	return fmt.Sprintf("%s:%s", models.ExchangeOf(ticker), strings.ToUpper(models.BaseSymbol(ticker)))
}

func (k *KiteProvider) instrumentToken(ctx context.Context, ticker string) (int, error) {
	key := KiteSymbol(ticker)

	k.mu.RLock()
	token, ok := k.instruments[key]
	loaded := k.loaded
	k.mu.RUnlock()
	if ok {
		return token, nil
	}
	if loaded {
		return 0, apperrors.NotFoundf("instrument %s", key)
	}

	if err := k.loadInstruments(ctx); err != nil {
		return 0, err
	}

	k.mu.RLock()
	token, ok = k.instruments[key]
	k.mu.RUnlock()
	if !ok {
		return 0, apperrors.NotFoundf("instrument %s", key)
	}
	return token, nil
}

func (k *KiteProvider) loadInstruments(ctx context.Context) error {
	if err := k.limiter.Wait(ctx); err != nil {
		return err
	}

	instruments, err := k.client.GetInstruments()
	if err != nil {
		return fmt.Errorf("failed to get instruments: %w", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	for _, inst := range instruments {
		if inst.Exchange != string(models.NSE) && inst.Exchange != string(models.BSE) {
			continue
		}
		k.instruments[inst.Exchange+":"+inst.Tradingsymbol] = inst.InstrumentToken
	}
	k.loaded = true
	return nil
}
