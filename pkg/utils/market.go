package utils

import (
	"fmt"
	"strings"
	"time"

	apperrors "basket-index/internal/errors"
	"basket-index/internal/models"
)

// IndiaLocation is the timezone for Indian markets.
var IndiaLocation *time.Location

func init() {
	var err error
	IndiaLocation, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// Fallback to UTC+5:30
		IndiaLocation = time.FixedZone("IST", 5*60*60+30*60)
	}
}

// Today returns the current Indian calendar date as midnight UTC, the form
// every date in the index pipeline takes.
func Today() time.Time {
	return CalendarDate(time.Now().In(IndiaLocation))
}

// CalendarDate drops the clock and zone from t, keeping its calendar date.
func CalendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date. field names the input in the error.
func ParseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(models.DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, apperrors.NewInputError(field, value, fmt.Sprintf("must be a date in %s format", models.DateLayout))
	}
	return t, nil
}

// DateRange resolves optional start and end inputs. A missing end is asOf;
// a missing start is defaultStart, or one year before the end when that is
// empty too.
func DateRange(start, end, defaultStart string, asOf time.Time) (time.Time, time.Time, error) {
	to := CalendarDate(asOf.In(IndiaLocation))
	if end != "" {
		t, err := ParseDate("end", end)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = t
	}

	if start == "" {
		start = defaultStart
	}
	if start == "" {
		return to.AddDate(-1, 0, 0), to, nil
	}
	from, err := ParseDate("start", start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}
