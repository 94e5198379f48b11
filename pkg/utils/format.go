// Package utils provides number formatting and calendar helpers for NSE and
// BSE listed equities.
package utils

import (
	"fmt"
	"math"
	"strings"
)

// Indian numbering units.
const (
	Lakh  = 1e5
	Crore = 1e7
)

// GroupIndian inserts Indian digit separators into a run of digits: the
// last three digits form one group, every two digits before that another.
func GroupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]

	var b strings.Builder
	if len(head)%2 == 1 {
		b.WriteString(head[:1])
		b.WriteByte(',')
		head = head[1:]
	}
	for i := 0; i < len(head); i += 2 {
		b.WriteString(head[i : i+2])
		b.WriteByte(',')
	}
	b.WriteString(tail)
	return b.String()
}

// FormatIndianCurrency formats rupees with two decimals, e.g. ₹1,23,456.79.
func FormatIndianCurrency(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	intPart, decPart, _ := strings.Cut(fmt.Sprintf("%.2f", amount), ".")
	return sign + "₹" + GroupIndian(intPart) + "." + decPart
}

// FormatMarketCap quotes a market capitalization the way Indian exchanges
// do: whole crores above one crore (₹92,400 Cr), lakhs below (₹35.00 L).
func FormatMarketCap(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	switch {
	case amount >= Crore:
		crores := fmt.Sprintf("%.0f", math.Round(amount/Crore))
		return sign + "₹" + GroupIndian(crores) + " Cr"
	case amount >= Lakh:
		return fmt.Sprintf("%s₹%.2f L", sign, amount/Lakh)
	default:
		return sign + FormatIndianCurrency(amount)
	}
}

// FormatShareCount formats a number of shares in crores or lakhs.
func FormatShareCount(shares float64) string {
	switch {
	case shares >= Crore:
		return fmt.Sprintf("%.2f Cr", shares/Crore)
	case shares >= Lakh:
		return fmt.Sprintf("%.2f L", shares/Lakh)
	default:
		return fmt.Sprintf("%.0f", shares)
	}
}

// FormatWeight formats a constituent's share of the index, e.g. 42.31%.
func FormatWeight(pct float64) string {
	return fmt.Sprintf("%.2f%%", pct)
}

// FormatPercent formats a change percentage with its sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}
