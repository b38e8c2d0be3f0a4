package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	// minPlausibleArea is the area below which a parsed area is distrusted.
	minPlausibleArea = 100
	// Rates above yardRateThreshold with areas below yardAreaThreshold mean the
	// area was given in square yards.
	yardRateThreshold = 100_000
	yardAreaThreshold = 500
	sqftPerSqyd       = 9
)

var (
	ratePattern      = regexp.MustCompile(`(?i)₹\s*([\d,]+(?:\.\d+)?)\s*(?:/|per)\s*sq\.?\s*-?\s*ft`)
	titleAreaPattern = regexp.MustCompile(`(?i)\b(\d{3,5})\s*sq\.?\s*-?\s*ft`)
)

// RecoverAreaAndRate derives the per-sqft rate and repairs the area of a
// listing. The rate comes from a "₹<n> per sqft" mention in the raw price
// text. A missing or implausibly small area is replaced by an explicit area in
// the title, or else by price divided by rate. Finally a rate above 100,000
// with an area below 500 is taken as square yards: area is multiplied by 9 and
// rate divided by 9.
//
// Either result is nil when it cannot be derived.
func RecoverAreaAndRate(price int64, title, priceRaw string, area *float64) (rate, recovered *float64) {
	if m := ratePattern.FindStringSubmatch(priceRaw); m != nil {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil {
			rate = &v
		}
	}

	if area != nil {
		v := *area
		recovered = &v
	}

	if recovered == nil || *recovered < minPlausibleArea {
		if m := titleAreaPattern.FindStringSubmatch(title); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				recovered = &v
			}
		}
	}

	if (recovered == nil || *recovered == 0) && price > 0 && rate != nil && *rate > 0 {
		v := math.Round(float64(price) / *rate)
		recovered = &v
	}

	if recovered != nil && rate != nil && *rate > yardRateThreshold && *recovered < yardAreaThreshold {
		a := *recovered * sqftPerSqyd
		r := *rate / sqftPerSqyd
		recovered, rate = &a, &r
	}
	return rate, recovered
}
