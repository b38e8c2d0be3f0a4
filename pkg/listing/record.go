// Package listing defines the record produced for one scraped property listing.
package listing

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// PropertyType is the coarse category of a listing.
type PropertyType string

const (
	Apartment        PropertyType = "Apartment"
	IndependentHouse PropertyType = "Independent House"
	Plot             PropertyType = "Plot"
	BuilderFloor     PropertyType = "Builder Floor"
)

// Furnishing describes the furnishing status of a listing.
type Furnishing string

const (
	FurnishingUnknown Furnishing = "Unknown"
	SemiFurnished     Furnishing = "Semi-Furnished"
	FullyFurnished    Furnishing = "Fully-Furnished"
	Unfurnished       Furnishing = "Unfurnished"
)

// Facing is the compass direction the property faces.
type Facing string

const (
	FacingUnknown Facing = "Unknown"
	North         Facing = "North"
	South         Facing = "South"
	East          Facing = "East"
	West          Facing = "West"
	NorthEast     Facing = "North-East"
	NorthWest     Facing = "North-West"
	SouthEast     Facing = "South-East"
	SouthWest     Facing = "South-West"
)

// Amenities holds the binary amenity flags.
type Amenities struct {
	PoojaRoom   bool `json:"pooja_room" yaml:"pooja_room"`
	ServantRoom bool `json:"servant_room" yaml:"servant_room"`
	StoreRoom   bool `json:"store_room" yaml:"store_room"`
	Pool        bool `json:"pool" yaml:"pool"`
	Gym         bool `json:"gym" yaml:"gym"`
	Lift        bool `json:"lift" yaml:"lift"`
	Parking     bool `json:"parking" yaml:"parking"`
	Vastu       bool `json:"vastu_compliant" yaml:"vastu_compliant"`
}

// Record is one listing. Records are immutable once built by the extractor.
//
// Price is in rupees and is always positive for a persisted record.
// Area and PricePerSqft are nil when they could not be derived.
type Record struct {
	Site     string `json:"site" yaml:"site"`
	Title    string `json:"title" yaml:"title"`
	URL      string `json:"url" yaml:"url"`
	City     string `json:"city" yaml:"city"`
	Location string `json:"location" yaml:"location"`
	Society  string `json:"society" yaml:"society"`
	Sector   string `json:"sector" yaml:"sector"`
	Locality string `json:"locality" yaml:"locality"`

	Price        int64    `json:"price" yaml:"price"`
	PriceRaw     string   `json:"price_raw" yaml:"price_raw"`
	PricePerSqft *float64 `json:"price_per_sqft" yaml:"price_per_sqft"`
	Area         *float64 `json:"area_sqft" yaml:"area_sqft"`
	AreaRaw      string   `json:"area_raw" yaml:"area_raw"`

	Bedrooms  int `json:"bedrooms" yaml:"bedrooms"`
	Bathrooms int `json:"bathrooms" yaml:"bathrooms"`
	Balcony   int `json:"balcony" yaml:"balcony"`
	Floor     int `json:"floor" yaml:"floor"`

	PropertyType PropertyType `json:"property_type" yaml:"property_type"`
	Furnishing   Furnishing   `json:"furnishing" yaml:"furnishing"`
	Facing       Facing       `json:"facing" yaml:"facing"`
	Amenities    `yaml:",inline"`

	Fingerprint string    `json:"fingerprint" yaml:"fingerprint"`
	ScrapedAt   time.Time `json:"scraped_at" yaml:"scraped_at"`
}

// Fingerprint returns the content hash used as identity key when listing URLs
// are not stable: md5 over "title|price|area|location" with title and location
// trimmed and lower-cased. Area keeps at least one decimal place ("1200.0") and
// an absent area is written as "None", the format of the fingerprint column in
// datasets collected before this tool, so those keys keep deduplicating.
func Fingerprint(title string, price int64, area *float64, location string) string {
	payload := strings.Join([]string{
		strings.ToLower(strings.TrimSpace(title)),
		strconv.FormatInt(price, 10),
		fingerprintArea(area),
		strings.ToLower(strings.TrimSpace(location)),
	}, "|")
	sum := md5.Sum([]byte(payload)) //#nosec G401 -- identity hash, not a security boundary
	return hex.EncodeToString(sum[:])
}

func fingerprintArea(area *float64) string {
	if area == nil {
		return "None"
	}
	s := strconv.FormatFloat(*area, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// ComputeFingerprint returns the content fingerprint of r.
func (r *Record) ComputeFingerprint() string {
	return Fingerprint(r.Title, r.Price, r.Area, r.Location)
}

// HasArea reports whether an area was derived for the record.
func (r *Record) HasArea() bool {
	return r.Area != nil
}

// Timestamp returns t in UTC truncated to the microsecond precision that every
// store can represent.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
