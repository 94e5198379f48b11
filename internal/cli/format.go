package cli

import (
	"fmt"
	"strings"
	"time"

	"basket-index/pkg/utils"
)

// FormatIndexValue formats an index level.
func FormatIndexValue(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// FormatPrice formats a price in rupees with Indian digit grouping.
func FormatPrice(price float64) string {
	return utils.FormatIndianCurrency(price)
}

// FormatMarketCap formats a market capitalization in crores or lakhs.
func FormatMarketCap(mcap float64) string {
	return utils.FormatMarketCap(mcap)
}

// FormatShares formats a share count.
func FormatShares(shares float64) string {
	return utils.FormatShareCount(shares)
}

// FormatRatio formats a valuation ratio such as P/E.
func FormatRatio(v float64) string {
	return fmt.Sprintf("%.1f", v)
}

// FormatPlainPercent formats a percentage without forcing a sign.
func FormatPlainPercent(v float64) string {
	return utils.FormatWeight(v)
}

// FormatChange formats an index point change.
func FormatChange(change, changePct float64) string {
	sign := ""
	if change > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f (%s%.2f%%)", sign, change, sign, changePct)
}

// FormatOptional formats v with f, or "-" when v is absent.
func FormatOptional(v *float64, f func(float64) string) string {
	if v == nil {
		return "-"
	}
	return f(*v)
}

// FormatDate formats a calendar date.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02-Jan-2006")
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	} else if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}

// TruncateString truncates a string to max length with ellipsis.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return strings.TrimSpace(string(r[:maxLen-3])) + "..."
}
