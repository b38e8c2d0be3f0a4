package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jmylchreest/ncrlistings/pkg/listing"
)

// Categorical fields are decided by keyword presence in the lower-cased card
// blob. Rules are ordered; the first rule with a matching keyword wins.

var propertyTypeRules = []struct {
	keywords []string
	value    listing.PropertyType
}{
	{[]string{"builder floor"}, listing.BuilderFloor},
	{[]string{"villa", "independent house"}, listing.IndependentHouse},
	{[]string{"plot"}, listing.Plot},
}

var furnishingRules = []struct {
	all   []string
	value listing.Furnishing
}{
	{[]string{"semi", "furnished"}, listing.SemiFurnished},
	{[]string{"fully", "furnished"}, listing.FullyFurnished},
	{[]string{"unfurnished"}, listing.Unfurnished},
}

var facingRules = []struct {
	keywords []string
	value    listing.Facing
}{
	{[]string{"north-east facing", "north east facing"}, listing.NorthEast},
	{[]string{"north-west facing", "north west facing"}, listing.NorthWest},
	{[]string{"south-east facing", "south east facing"}, listing.SouthEast},
	{[]string{"south-west facing", "south west facing"}, listing.SouthWest},
	{[]string{"north facing"}, listing.North},
	{[]string{"south facing"}, listing.South},
	{[]string{"east facing"}, listing.East},
	{[]string{"west facing"}, listing.West},
}

var amenityKeywords = []struct {
	keywords []string
	set      func(*listing.Amenities)
}{
	{[]string{"pooja", "puja"}, func(a *listing.Amenities) { a.PoojaRoom = true }},
	{[]string{"servant"}, func(a *listing.Amenities) { a.ServantRoom = true }},
	{[]string{"store"}, func(a *listing.Amenities) { a.StoreRoom = true }},
	{[]string{"pool", "swimming"}, func(a *listing.Amenities) { a.Pool = true }},
	{[]string{"gym"}, func(a *listing.Amenities) { a.Gym = true }},
	{[]string{"lift", "elevator"}, func(a *listing.Amenities) { a.Lift = true }},
	{[]string{"parking"}, func(a *listing.Amenities) { a.Parking = true }},
	{[]string{"vastu"}, func(a *listing.Amenities) { a.Vastu = true }},
}

var (
	bedroomsPattern  = regexp.MustCompile(`(\d+)\s*(?:bhk|bed|bedroom)`)
	bathroomsPattern = regexp.MustCompile(`(\d+)\s*(?:bath|toilet|washroom)`)
	balconyPattern   = regexp.MustCompile(`(\d+)\s*balcon`)
	floorPattern     = regexp.MustCompile(`(\d+)(?:st|nd|rd|th)?\s*floor`)
)

// classify fills the blob-derived fields of r. blob must already be lower-cased.
func classify(r *listing.Record, blob string) {
	r.PropertyType = listing.Apartment
	for _, rule := range propertyTypeRules {
		if containsAny(blob, rule.keywords) {
			r.PropertyType = rule.value
			break
		}
	}

	r.Furnishing = listing.FurnishingUnknown
	for _, rule := range furnishingRules {
		if containsAll(blob, rule.all) {
			r.Furnishing = rule.value
			break
		}
	}

	r.Facing = listing.FacingUnknown
	for _, rule := range facingRules {
		if containsAny(blob, rule.keywords) {
			r.Facing = rule.value
			break
		}
	}

	r.Amenities = listing.Amenities{}
	for _, a := range amenityKeywords {
		if containsAny(blob, a.keywords) {
			a.set(&r.Amenities)
		}
	}

	r.Bedrooms = firstInt(bedroomsPattern, blob)
	r.Bathrooms = firstInt(bathroomsPattern, blob)
	r.Balcony = firstInt(balconyPattern, blob)
	r.Floor = firstInt(floorPattern, blob)
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func containsAll(s string, keywords []string) bool {
	for _, k := range keywords {
		if !strings.Contains(s, k) {
			return false
		}
	}
	return true
}

func firstInt(re *regexp.Regexp, s string) int {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
