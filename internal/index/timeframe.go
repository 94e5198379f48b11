package index

import (
	"fmt"
	"strings"
	"time"

	apperrors "basket-index/internal/errors"
	"basket-index/internal/models"
)

// Timeframe is a trailing display window over a computed series.
type Timeframe string

const (
	Timeframe1W  Timeframe = "1W"
	Timeframe1M  Timeframe = "1M"
	Timeframe3M  Timeframe = "3M"
	TimeframeYTD Timeframe = "YTD"
	Timeframe1Y  Timeframe = "1Y"
	TimeframeAll Timeframe = "ALL"
)

// Timeframes lists the supported windows in display order.
var Timeframes = []Timeframe{Timeframe1W, Timeframe1M, Timeframe3M, TimeframeYTD, Timeframe1Y, TimeframeAll}

// ParseTimeframe parses a timeframe name case-insensitively. Empty is ALL.
func ParseTimeframe(s string) (Timeframe, error) {
	if strings.TrimSpace(s) == "" {
		return TimeframeAll, nil
	}
	tf := Timeframe(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Timeframes {
		if tf == known {
			return tf, nil
		}
	}
	return "", apperrors.NewInputError("timeframe", s, fmt.Sprintf("must be one of %v", Timeframes))
}

// Start returns the first calendar date of the window ending at asOf.
// ALL has no start.
func (tf Timeframe) Start(asOf time.Time) (time.Time, bool) {
	asOf = calendarDay(asOf)
	switch tf {
	case Timeframe1W:
		return asOf.AddDate(0, 0, -7), true
	case Timeframe1M:
		return asOf.AddDate(0, -1, 0), true
	case Timeframe3M:
		return asOf.AddDate(0, -3, 0), true
	case TimeframeYTD:
		return time.Date(asOf.Year(), time.January, 1, 0, 0, 0, 0, time.UTC), true
	case Timeframe1Y:
		return asOf.AddDate(-1, 0, 0), true
	default:
		return time.Time{}, false
	}
}

// Rebase slices series and its aligned benchmark from the first date on or
// after the window start and re-bases both to BaseValue. When no date
// falls in the window the whole series is kept.
func Rebase(series models.IndexSeries, benchmark []*float64, tf Timeframe, asOf time.Time) (models.IndexSeries, []*float64) {
	from := 0
	if start, ok := tf.Start(asOf); ok {
		for i, p := range series {
			if !calendarDay(p.Date).Before(start) {
				from = i
				break
			}
		}
	}
	if len(series) == 0 {
		return series, benchmark
	}

	sliced := series[from:]
	base := sliced[0].Value
	out := make(models.IndexSeries, len(sliced))
	for i, p := range sliced {
		out[i] = models.IndexPoint{Date: p.Date, Value: BaseValue * p.Value / base}
	}
	out[0].Value = BaseValue

	var bench []*float64
	if benchmark != nil && from < len(benchmark) {
		bench = rebasePointers(benchmark[from:])
	}
	return out, bench
}

// rebasePointers re-bases on the first non-nil value; nil stays nil.
func rebasePointers(values []*float64) []*float64 {
	out := make([]*float64, len(values))
	var base *float64
	for i, v := range values {
		if v == nil {
			continue
		}
		if base == nil {
			base = v
		}
		if *base == 0 {
			continue
		}
		out[i] = models.Float(BaseValue * *v / *base)
	}
	return out
}

// PeriodChange returns the absolute and percent change from the first to
// the last point of series.
func PeriodChange(series models.IndexSeries) (change, pct float64, ok bool) {
	if len(series) == 0 || series[0].Value == 0 {
		return 0, 0, false
	}
	first, last := series[0].Value, series[len(series)-1].Value
	change = last - first
	return change, change / first * 100, true
}
