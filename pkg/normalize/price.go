// Package normalize converts the free-text fields of Indian property listings
// (price, area, location) into typed values.
//
// All functions are pure. A value that cannot be derived is reported through
// the boolean result or a nil pointer, never through an error.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Magnitude multipliers for Indian numeral units.
const (
	Crore    = 10_000_000
	Lakh     = 100_000
	Thousand = 1_000
)

const rupee = "₹"

var (
	priceNumber = regexp.MustCompile(`\d+(?:\.\d+)?`)
	// priceUnit matches a whole-token magnitude unit. It may be attached to a
	// digit ("85L") but not to a letter, so the "l" of "local" is no unit.
	priceUnit = regexp.MustCompile(`(?i)(?:^|[^\pL])(crores?|cr|lakhs?|lacs?|l|thousand|k)\b`)
)

// Price converts a price text such as "₹ 1.25 Cr", "₹ 50 Lac" or "85 L" into
// rupees. The value is the first number; the unit is the first unit token
// after it, so a range such as "₹1.2 - 1.5 Cr" yields the lower bound in crore.
// When the text holds several rupee-delimited segments (for example a total
// price followed by a per-sqft rate), only the first segment is used.
// It reports false when no digits are present.
func Price(text string) (int64, bool) {
	text = firstCurrencySegment(text)
	text = strings.ReplaceAll(text, ",", "")

	loc := priceNumber.FindStringIndex(text)
	if loc == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(text[loc[0]:loc[1]], 64)
	if err != nil {
		return 0, false
	}

	unit := ""
	if m := priceUnit.FindStringSubmatch(text[loc[1]:]); m != nil {
		unit = m[1]
	}
	return int64(math.Round(value * unitMultiplier(unit))), true
}

func unitMultiplier(unit string) float64 {
	switch strings.ToLower(unit) {
	case "cr", "crore", "crores":
		return Crore
	case "l", "lac", "lacs", "lakh", "lakhs":
		return Lakh
	case "k", "thousand":
		return Thousand
	default:
		return 1
	}
}

// firstCurrencySegment returns the text between the first and second rupee
// symbols when the text contains more than one of them.
func firstCurrencySegment(text string) string {
	if strings.Count(text, rupee) < 2 {
		return text
	}
	for _, part := range strings.Split(text, rupee) {
		if strings.TrimSpace(part) != "" {
			return part
		}
	}
	return text
}
