package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// Conversion factors to square feet.
const (
	SqmToSqft  = 10.764
	SqydToSqft = 9
	AcreToSqft = 43_560
)

var areaNumber = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// areaUnits are tried against the text directly after the number. "Gaj" is
// the local name for a square yard on NCR plot listings.
var areaUnits = []struct {
	pattern *regexp.Regexp
	factor  float64
}{
	{regexp.MustCompile(`(?i)^\s*(?:sq[.\-]?\s*(?:ft|feet|foot)|square\s*f(?:ee|oo)t)\b`), 1},
	{regexp.MustCompile(`(?i)^\s*(?:sq[.\-]?\s*m(?:tr?s?|eters?|etres?)?|square\s*met(?:er|re)s?)\b`), SqmToSqft},
	{regexp.MustCompile(`(?i)^\s*(?:sq[.\-]?\s*y(?:d|ds|ards?)|square\s*yards?|gaj)\b`), SqydToSqft},
	{regexp.MustCompile(`(?i)^\s*acres?\b`), AcreToSqft},
}

// sqmMarker finds a square-meter unit anywhere in the text.
var sqmMarker = regexp.MustCompile(`(?i)\bsq\.?\s*m(?:tr?s?|eters?|etres?)?\b`)

// Area converts an area text such as "1,200 sq.ft", "100 sq.m", "200 sq.yd"
// or "1 acre" to square feet. The unit directly after the first number
// decides; when none follows it, a square-meter marker anywhere in the text
// does, and otherwise the value is taken as square feet. It reports false
// when no digits are present.
func Area(text string) (float64, bool) {
	loc := areaNumber.FindStringIndex(text)
	if loc == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(text[loc[0]:loc[1]], ",", ""), 64)
	if err != nil {
		return 0, false
	}

	rest := text[loc[1]:]
	for _, u := range areaUnits {
		if u.pattern.MatchString(rest) {
			return value * u.factor, true
		}
	}
	if sqmMarker.MatchString(text) {
		return value * SqmToSqft, true
	}
	return value, true
}
