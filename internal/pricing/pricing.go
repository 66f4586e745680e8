// Package pricing converts display strings scraped from product and delivery
// cards into numeric currency values. All functions are pure and never fail:
// unparseable input yields the Invalid sentinel so callers can filter instead
// of branching on errors.
package pricing

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Invalid is returned when no currency-like number can be extracted.
func Invalid() float64 {
	return math.Inf(1)
}

// IsInvalid reports whether v is the unparseable-price sentinel.
func IsInvalid(v float64) bool {
	return math.IsInf(v, 1)
}

var priceRe = regexp.MustCompile(`R?\$?\s*(\d+[.,]\d+)`)

// ParsePrice extracts the first currency-like numeric substring from text
// ("R$ 12,90", "$ 4.50", "12,90") and returns its value with the decimal
// comma normalized. Returns the Invalid sentinel when nothing matches.
func ParsePrice(text string) float64 {
	m := priceRe.FindStringSubmatch(text)
	if m == nil {
		return Invalid()
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return Invalid()
	}
	return v
}

// ParseDeliveryFee returns 0 for free delivery ("Grátis" anywhere in the
// text, case-insensitive) and otherwise delegates to ParsePrice.
func ParseDeliveryFee(text string) float64 {
	if strings.Contains(strings.ToLower(text), "grátis") {
		return 0
	}
	return ParsePrice(text)
}

// FormatTotal renders a basket total as currency text with two decimals.
// The Invalid sentinel renders as "N/A", never as a numeric infinity.
func FormatTotal(v float64) string {
	if IsInvalid(v) {
		return "N/A"
	}
	return "R$ " + strconv.FormatFloat(v, 'f', 2, 64)
}
