package index

import (
	"math"
	"time"

	apperrors "basket-index/internal/errors"
	"basket-index/internal/models"
)

// NormalizeColumn scales a filled price column so its first value is
// BaseValue, the same way the basket index is based.
func NormalizeColumn(grid *PriceGrid, ticker string) (models.IndexSeries, error) {
	col, ok := grid.Column(ticker)
	if !ok || len(col) == 0 {
		return nil, apperrors.NotFoundf("no prices for %s", ticker)
	}
	base := col[0]
	if base == 0 || math.IsNaN(base) {
		return nil, apperrors.NewGuardError("first value of " + ticker + " is not usable as a base")
	}

	series := make(models.IndexSeries, 0, len(col))
	for i, v := range col {
		if math.IsNaN(v) {
			continue
		}
		series = append(series, models.IndexPoint{Date: grid.Dates[i], Value: BaseValue * v / base})
	}
	series[0].Value = BaseValue
	return series, nil
}

// Align maps a series onto dates. Dates the series lacks are nil.
func Align(series models.IndexSeries, dates []time.Time) []*float64 {
	byDate := make(map[time.Time]float64, len(series))
	for _, p := range series {
		byDate[calendarDay(p.Date)] = p.Value
	}

	out := make([]*float64, len(dates))
	for i, d := range dates {
		if v, ok := byDate[calendarDay(d)]; ok {
			out[i] = models.Float(v)
		}
	}
	return out
}
