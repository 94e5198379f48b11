package marketdata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	kitemodels "github.com/zerodha/gokiteconnect/v4/models"

	apperrors "basket-index/internal/errors"
	"basket-index/internal/models"
	"basket-index/internal/resilience"
)

func day(s string) time.Time {
	t, _ := time.Parse(models.DateLayout, s)
	return t
}

func TestBuildFrameLabelsMultiTicker(t *testing.T) {
	bars := map[string][]models.Candle{
		"A.NS": {
			{Timestamp: day("2026-01-01"), Close: 10, AdjClose: 9.5},
			{Timestamp: day("2026-01-02"), Close: 11, AdjClose: 10.5},
		},
		"B.NS": {
			{Timestamp: day("2026-01-02"), Close: 19, AdjClose: 19},
		},
	}

	frame := BuildFrame([]string{"A.NS", "B.NS", "C.NS"}, bars, true)

	if len(frame.Dates) != 2 {
		t.Fatalf("dates = %d, want 2", len(frame.Dates))
	}
	if len(frame.Columns) != 6 {
		t.Fatalf("columns = %d, want 6 (2 fields x 3 tickers)", len(frame.Columns))
	}
	first := frame.Columns[0]
	if first.Field != FieldAdjClose || first.Ticker != "A.NS" || first.Values[0] != 9.5 {
		t.Errorf("unexpected first column %+v", first)
	}
	b := frame.Columns[1]
	if !math.IsNaN(b.Values[0]) || b.Values[1] != 19 {
		t.Errorf("B.NS values = %v, want [NaN 19]", b.Values)
	}
	c := frame.Columns[2]
	for _, v := range c.Values {
		if !math.IsNaN(v) {
			t.Errorf("C.NS should be all missing, got %v", c.Values)
		}
	}
}

func TestBuildFrameSingleTickerUnlabeled(t *testing.T) {
	bars := map[string][]models.Candle{
		"SWIGGY.NS": {{Timestamp: day("2026-01-05"), Close: 400}},
	}

	frame := BuildFrame([]string{"SWIGGY.NS"}, bars, false)

	if len(frame.Columns) != 1 {
		t.Fatalf("columns = %d, want 1", len(frame.Columns))
	}
	if frame.Columns[0].Ticker != "" || frame.Columns[0].Field != FieldClose {
		t.Errorf("single ticker column should carry only a field label, got %+v", frame.Columns[0])
	}
	if frame.HasField(FieldAdjClose) {
		t.Errorf("close-only frame should not report Adj Close")
	}
}

func TestBuildFrameNoBars(t *testing.T) {
	frame := BuildFrame([]string{"A.NS"}, nil, true)
	if !frame.Empty() {
		t.Errorf("expected empty frame")
	}
}

const chartFixture = `{"chart":{"result":[{"meta":{"symbol":"%s","currency":"INR","gmtoffset":19800},
"timestamp":[1767239100,1767325500,1767411900],
"indicators":{"quote":[{"open":[10,11,null],"high":[10.5,11.5,null],"low":[9.5,10.5,null],"close":[10,11,null],"volume":[100,200,null]}],
"adjclose":[{"adjclose":[9.8,10.9,null]}]}}],"error":null}}`

const summaryFixture = `{"quoteSummary":{"result":[{
"defaultKeyStatistics":{"sharesOutstanding":{"raw":1250000000,"fmt":"1.25B"},"trailingEps":{"raw":-3.1,"fmt":"-3.10"}},
"summaryDetail":{"trailingPE":{}},
"price":{"longName":"Swiggy Limited","shortName":"SWIGGY"},
"assetProfile":{"sector":"Consumer Cyclical"}}],"error":null}}`

func newYahooFixture(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/v8/finance/chart/MISSING"):
			http.NotFound(w, r)
		case strings.HasPrefix(r.URL.Path, "/v8/finance/chart/"):
			if r.URL.Query().Get("interval") != "1d" {
				http.Error(w, "bad interval", http.StatusBadRequest)
				return
			}
			symbol := strings.TrimPrefix(r.URL.Path, "/v8/finance/chart/")
			fmt.Fprintf(w, chartFixture, symbol)
		case strings.HasPrefix(r.URL.Path, "/v10/finance/quoteSummary/"):
			fmt.Fprint(w, summaryFixture)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestYahooDailyPrices(t *testing.T) {
	srv := newYahooFixture(t)
	defer srv.Close()

	y := NewYahooProvider(YahooConfig{BaseURL: srv.URL, Concurrency: 2}, zerolog.Nop())
	frame, err := y.DailyPrices(context.Background(), []string{"A.NS", "MISSING.NS"}, day("2026-01-01"), day("2026-01-04"))
	if err != nil {
		t.Fatalf("DailyPrices() error = %v", err)
	}

	if len(frame.Dates) != 2 {
		t.Fatalf("dates = %v, want 2 trading days (null close skipped)", frame.Dates)
	}
	if !frame.Dates[0].Equal(day("2026-01-01")) {
		t.Errorf("first date = %v, want exchange-local 2026-01-01", frame.Dates[0])
	}

	var adjA, adjMissing *Column
	for i := range frame.Columns {
		col := &frame.Columns[i]
		if col.Field != FieldAdjClose {
			continue
		}
		switch col.Ticker {
		case "A.NS":
			adjA = col
		case "MISSING.NS":
			adjMissing = col
		}
	}
	if adjA == nil || adjA.Values[0] != 9.8 || adjA.Values[1] != 10.9 {
		t.Errorf("A.NS adj close = %+v", adjA)
	}
	if adjMissing == nil {
		t.Fatalf("failed ticker should still have a column")
	}
	for _, v := range adjMissing.Values {
		if !math.IsNaN(v) {
			t.Errorf("failed ticker column should be all missing, got %v", adjMissing.Values)
		}
	}
}

func TestYahooFundamentals(t *testing.T) {
	srv := newYahooFixture(t)
	defer srv.Close()

	y := NewYahooProvider(YahooConfig{BaseURL: srv.URL}, zerolog.Nop())
	rec, err := y.Fundamentals(context.Background(), "SWIGGY.NS")
	if err != nil {
		t.Fatalf("Fundamentals() error = %v", err)
	}

	if rec.Shares() != 1.25e9 {
		t.Errorf("shares = %v, want 1.25e9", rec.Shares())
	}
	if rec.TrailingPE != nil {
		t.Errorf("empty trailingPE should be missing, got %v", *rec.TrailingPE)
	}
	if rec.TrailingEPS == nil || *rec.TrailingEPS != -3.1 {
		t.Errorf("eps = %v, want -3.1", rec.TrailingEPS)
	}
	if rec.Name != "Swiggy Limited" || rec.Sector != "Consumer Cyclical" {
		t.Errorf("metadata = %q / %q", rec.Name, rec.Sector)
	}
}

func TestYahooNotFound(t *testing.T) {
	srv := newYahooFixture(t)
	defer srv.Close()

	y := NewYahooProvider(YahooConfig{BaseURL: srv.URL}, zerolog.Nop())
	_, err := y.chart(context.Background(), "MISSING.NS", day("2026-01-01"), day("2026-01-02"))
	if !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

type fakeKite struct {
	instruments kiteconnect.Instruments
	history     map[int][]kiteconnect.HistoricalData
	lastTo      time.Time
	loads       int
	fail        error
}

func (f *fakeKite) GetInstruments() (kiteconnect.Instruments, error) {
	f.loads++
	return f.instruments, nil
}

func (f *fakeKite) GetHistoricalData(token int, interval string, from, to time.Time, continuous, oi bool) ([]kiteconnect.HistoricalData, error) {
	if interval != "day" {
		return nil, errors.New("unexpected interval " + interval)
	}
	f.lastTo = to
	if f.fail != nil {
		return nil, f.fail
	}
	return f.history[token], nil
}

func TestKiteDailyPrices(t *testing.T) {
	fake := &fakeKite{
		instruments: kiteconnect.Instruments{
			{InstrumentToken: 101, Tradingsymbol: "SUZLON", Exchange: "NSE"},
			{InstrumentToken: 256265, Tradingsymbol: "NIFTY 50", Exchange: "NSE"},
			{InstrumentToken: 999, Tradingsymbol: "SUZLON24JANFUT", Exchange: "NFO"},
		},
		history: map[int][]kiteconnect.HistoricalData{
			101: {
				{Date: kitemodels.Time{Time: day("2026-01-01")}, Close: 60},
				{Date: kitemodels.Time{Time: day("2026-01-02")}, Close: 61},
			},
			256265: {
				{Date: kitemodels.Time{Time: day("2026-01-01")}, Close: 24000},
			},
		},
	}
	k := newKiteProvider(fake, 1000, zerolog.Nop())

	end := day("2026-01-03")
	frame, err := k.DailyPrices(context.Background(), []string{"SUZLON.NS", "^NSEI", "UNLISTED.NS"}, day("2026-01-01"), end)
	if err != nil {
		t.Fatalf("DailyPrices() error = %v", err)
	}

	if !fake.lastTo.Before(end) {
		t.Errorf("kite upper bound %v should be before exclusive end %v", fake.lastTo, end)
	}
	if fake.loads != 1 {
		t.Errorf("instrument list loaded %d times, want 1", fake.loads)
	}
	if frame.HasField(FieldAdjClose) {
		t.Errorf("kite frames carry no adjusted close")
	}
	if len(frame.Columns) != 3 {
		t.Fatalf("columns = %d, want 3", len(frame.Columns))
	}
	if frame.Columns[0].Values[1] != 61 {
		t.Errorf("SUZLON close = %v", frame.Columns[0].Values)
	}
	if frame.Columns[1].Ticker != "^NSEI" || frame.Columns[1].Values[0] != 24000 {
		t.Errorf("index column = %+v", frame.Columns[1])
	}
}

func TestKiteSymbol(t *testing.T) {
	tests := map[string]string{
		"SUZLON.NS": "NSE:SUZLON",
		"pwl.bo":    "BSE:PWL",
		"^NSEI":     "NSE:NIFTY 50",
		"^bsesn":    "BSE:SENSEX",
		"TCS":       "NSE:TCS",
	}
	for in, want := range tests {
		if got := KiteSymbol(in); got != want {
			t.Errorf("KiteSymbol(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStaticProvider(t *testing.T) {
	s := NewStaticProvider(true)
	dates := []time.Time{day("2026-01-01"), day("2026-01-02"), day("2026-01-03")}
	s.AddCloses("A.NS", dates, []float64{10, 0, 12})
	s.SetFundamentals(models.FundamentalsRecord{Ticker: "A.NS", SharesOutstanding: models.Float(100)})
	s.Fail("B.NS", errors.New("boom"))

	frame, err := s.DailyPrices(context.Background(), []string{"A.NS"}, day("2026-01-01"), day("2026-01-03"))
	if err != nil {
		t.Fatalf("DailyPrices() error = %v", err)
	}
	if len(frame.Dates) != 1 {
		t.Errorf("end bound should be exclusive and zero closes skipped, dates = %v", frame.Dates)
	}

	rec, err := s.Fundamentals(context.Background(), "a.ns")
	if err != nil || rec.Shares() != 100 {
		t.Errorf("Fundamentals() = %+v, %v", rec, err)
	}
	if _, err := s.Fundamentals(context.Background(), "B.NS"); err == nil {
		t.Errorf("expected failure for B.NS")
	}
	if _, err := s.Fundamentals(context.Background(), "C.NS"); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound for C.NS, got %v", err)
	}
	if s.Calls() != 4 {
		t.Errorf("calls = %d, want 4", s.Calls())
	}
}

func TestYahooOutageIsAnError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	y := NewYahooProvider(YahooConfig{BaseURL: srv.URL, Concurrency: 1}, zerolog.Nop())
	_, err := y.DailyPrices(context.Background(), []string{"A.NS", "B.NS"}, day("2026-01-01"), day("2026-01-04"))
	if err == nil {
		t.Fatal("expected an error when every chart request fails")
	}
	if apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("outage reported as not found: %v", err)
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("error should carry the upstream status, got %v", err)
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("upstream hits = %d, want 2", n)
	}
}

func TestYahooUnknownTickersAreNotAnOutage(t *testing.T) {
	srv := newYahooFixture(t)
	defer srv.Close()

	y := NewYahooProvider(YahooConfig{BaseURL: srv.URL}, zerolog.Nop())
	frame, err := y.DailyPrices(context.Background(), []string{"MISSING.NS"}, day("2026-01-01"), day("2026-01-04"))
	if err != nil {
		t.Fatalf("DailyPrices() error = %v", err)
	}
	if !frame.Empty() {
		t.Errorf("expected an empty frame, got %+v", frame)
	}
}

func TestKiteOutageIsAnError(t *testing.T) {
	fake := &fakeKite{
		instruments: kiteconnect.Instruments{{InstrumentToken: 101, Tradingsymbol: "SUZLON", Exchange: "NSE"}},
		fail:        errors.New("Too many requests"),
	}
	k := newKiteProvider(fake, 1000, zerolog.Nop())

	_, err := k.DailyPrices(context.Background(), []string{"SUZLON.NS", "UNLISTED.NS"}, day("2026-01-01"), day("2026-01-03"))
	if err == nil || !strings.Contains(err.Error(), "Too many requests") {
		t.Fatalf("expected the upstream failure, got %v", err)
	}
}

func TestGuardedProviderOpensOnPriceOutage(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	y := NewYahooProvider(YahooConfig{BaseURL: srv.URL, Concurrency: 1}, zerolog.Nop())
	g := NewGuardedProvider(y, y, resilience.New("yahoo", resilience.Config{FailureThreshold: 2, Cooldown: time.Minute}))

	for i := 0; i < 5; i++ {
		_, err := g.DailyPrices(context.Background(), []string{"A.NS", "B.NS"}, day("2026-01-01"), day("2026-01-04"))
		if err == nil {
			t.Fatalf("call %d: expected an error", i)
		}
	}
	if g.Breaker().State() != resilience.StateOpen {
		t.Errorf("breaker state = %s, want OPEN", g.Breaker().State())
	}
	if n := hits.Load(); n != 4 {
		t.Errorf("upstream hits = %d, want 4 (two calls before the circuit opened)", n)
	}
}
