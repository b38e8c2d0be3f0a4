package normalize

import (
	"regexp"
	"strings"
)

const (
	// DefaultSociety is used when no society name can be derived.
	DefaultSociety = "Independent/Authority"
	// DefaultRegion is the locality used when there is no title at all.
	DefaultRegion = "NCR"
)

// Location is the address breakdown derived from a listing title and URL.
// Sector is empty when absent.
type Location struct {
	Society  string
	Sector   string
	Locality string
}

var (
	inDelimiter = regexp.MustCompile(`(?i)\s+in\s+`)

	sectorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bsector\s?-?\s?(\d+[a-z]?)\b`),
		regexp.MustCompile(`(?i)\bsec\s?-?\s?(\d+[a-z]?)\b`),
	}

	urlSectorPattern = regexp.MustCompile(`(?i)sector-(\d+[a-z]?)-in-`)

	// Named areas that stand in for a sector.
	knownAreas = []*regexp.Regexp{
		regexp.MustCompile(`(?i)DLF\s+Phase\s+\d+`),
		regexp.MustCompile(`(?i)Golf\s+Course\s+Road`),
		regexp.MustCompile(`(?i)Noida\s+Extension`),
		regexp.MustCompile(`(?i)Greater\s+Noida\s+West`),
		regexp.MustCompile(`(?i)Sohna\s+Road`),
		regexp.MustCompile(`(?i)MG\s+Road`),
		regexp.MustCompile(`(?i)Dwarka`),
	}
)

// ParseLocation derives society, sector and locality from a title such as
// "3 BHK Flat for Sale in Godrej Woods, Sector 43, Noida" and, as a fallback
// for the sector, from the listing URL.
//
// The address is the part of the title after the first " in ". Locality is its
// last comma-separated token. The sector comes from, in order: a Sector/Sec
// pattern in the address, a "Sector-<N>-in-" URL segment, a known named area,
// and finally the second-to-last address token.
func ParseLocation(title, rawURL string) Location {
	loc := Location{Society: DefaultSociety, Locality: DefaultRegion}
	title = strings.TrimSpace(title)
	if title == "" {
		if sector, ok := sectorFromURL(rawURL); ok {
			loc.Sector = sector
		}
		return loc
	}

	address := title
	if parts := inDelimiter.Split(title, 2); len(parts) == 2 {
		address = parts[1]
	}

	tokens := splitTokens(address)
	if len(tokens) > 0 {
		loc.Locality = tokens[len(tokens)-1]
	}

	for _, p := range sectorPatterns {
		m := p.FindStringSubmatchIndex(address)
		if m == nil {
			continue
		}
		loc.Sector = "Sector " + strings.ToUpper(address[m[2]:m[3]])
		if pre := splitTokens(address[:m[0]]); len(pre) > 0 {
			candidate := pre[len(pre)-1]
			if len(candidate) > 2 && !strings.Contains(candidate, "Flat") {
				loc.Society = candidate
			}
		}
		break
	}

	if loc.Sector == "" {
		if sector, ok := sectorFromURL(rawURL); ok {
			loc.Sector = sector
		}
	}

	if loc.Sector == "" {
		for _, p := range knownAreas {
			if area := p.FindString(address); area != "" {
				loc.Sector = area
				if len(tokens) >= 3 {
					loc.Society = tokens[0]
				}
				break
			}
		}
	}

	if loc.Sector == "" && len(tokens) >= 2 {
		candidate := tokens[len(tokens)-2]
		if len(candidate) > 3 && !strings.Contains(candidate, "Flat") {
			loc.Sector = candidate
			if len(tokens) >= 3 {
				loc.Society = tokens[0]
			}
		}
	}

	// A sector must not leak into the society field.
	if loc.Society == loc.Sector {
		loc.Society = DefaultSociety
	}
	return loc
}

func sectorFromURL(rawURL string) (string, bool) {
	m := urlSectorPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return "Sector " + strings.ToUpper(m[1]), true
}

func splitTokens(s string) []string {
	var tokens []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}
