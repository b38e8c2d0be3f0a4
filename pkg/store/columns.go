package store

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jmylchreest/ncrlistings/pkg/listing"
)

// column maps one flat column to a record field. CSV and Postgres share the
// same column set and order.
type column struct {
	name string
	get  func(*listing.Record) string
	set  func(*listing.Record, string) error
}

func textColumn(name string, field func(*listing.Record) *string) column {
	return column{
		name: name,
		get:  func(r *listing.Record) string { return *field(r) },
		set: func(r *listing.Record, v string) error {
			*field(r) = v
			return nil
		},
	}
}

func intColumn(name string, field func(*listing.Record) *int) column {
	return column{
		name: name,
		get:  func(r *listing.Record) string { return strconv.Itoa(*field(r)) },
		set: func(r *listing.Record, v string) error {
			if v == "" {
				*field(r) = 0
				return nil
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			*field(r) = n
			return nil
		},
	}
}

func floatColumn(name string, field func(*listing.Record) **float64) column {
	return column{
		name: name,
		get: func(r *listing.Record) string {
			if p := *field(r); p != nil {
				return strconv.FormatFloat(*p, 'f', -1, 64)
			}
			return ""
		},
		set: func(r *listing.Record, v string) error {
			if v == "" {
				*field(r) = nil
				return nil
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return err
			}
			*field(r) = &f
			return nil
		},
	}
}

func boolColumn(name string, field func(*listing.Record) *bool) column {
	return column{
		name: name,
		get: func(r *listing.Record) string {
			if *field(r) {
				return "1"
			}
			return "0"
		},
		set: func(r *listing.Record, v string) error {
			if v == "" {
				*field(r) = false
				return nil
			}
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			*field(r) = b
			return nil
		},
	}
}

var columns = []column{
	textColumn("site", func(r *listing.Record) *string { return &r.Site }),
	textColumn("title", func(r *listing.Record) *string { return &r.Title }),
	textColumn("url", func(r *listing.Record) *string { return &r.URL }),
	textColumn("city", func(r *listing.Record) *string { return &r.City }),
	textColumn("location", func(r *listing.Record) *string { return &r.Location }),
	textColumn("society", func(r *listing.Record) *string { return &r.Society }),
	textColumn("sector", func(r *listing.Record) *string { return &r.Sector }),
	textColumn("locality", func(r *listing.Record) *string { return &r.Locality }),
	{
		name: "price",
		get:  func(r *listing.Record) string { return strconv.FormatInt(r.Price, 10) },
		set: func(r *listing.Record, v string) (err error) {
			r.Price, err = strconv.ParseInt(v, 10, 64)
			return err
		},
	},
	textColumn("price_raw", func(r *listing.Record) *string { return &r.PriceRaw }),
	floatColumn("price_per_sqft", func(r *listing.Record) **float64 { return &r.PricePerSqft }),
	floatColumn("area_sqft", func(r *listing.Record) **float64 { return &r.Area }),
	textColumn("area_raw", func(r *listing.Record) *string { return &r.AreaRaw }),
	intColumn("bedrooms", func(r *listing.Record) *int { return &r.Bedrooms }),
	intColumn("bathrooms", func(r *listing.Record) *int { return &r.Bathrooms }),
	intColumn("balcony", func(r *listing.Record) *int { return &r.Balcony }),
	intColumn("floor", func(r *listing.Record) *int { return &r.Floor }),
	{
		name: "property_type",
		get:  func(r *listing.Record) string { return string(r.PropertyType) },
		set:  func(r *listing.Record, v string) error { r.PropertyType = listing.PropertyType(v); return nil },
	},
	{
		name: "furnishing",
		get:  func(r *listing.Record) string { return string(r.Furnishing) },
		set:  func(r *listing.Record, v string) error { r.Furnishing = listing.Furnishing(v); return nil },
	},
	{
		name: "facing",
		get:  func(r *listing.Record) string { return string(r.Facing) },
		set:  func(r *listing.Record, v string) error { r.Facing = listing.Facing(v); return nil },
	},
	boolColumn("pooja_room", func(r *listing.Record) *bool { return &r.PoojaRoom }),
	boolColumn("servant_room", func(r *listing.Record) *bool { return &r.ServantRoom }),
	boolColumn("store_room", func(r *listing.Record) *bool { return &r.StoreRoom }),
	boolColumn("pool", func(r *listing.Record) *bool { return &r.Pool }),
	boolColumn("gym", func(r *listing.Record) *bool { return &r.Gym }),
	boolColumn("lift", func(r *listing.Record) *bool { return &r.Lift }),
	boolColumn("parking", func(r *listing.Record) *bool { return &r.Parking }),
	boolColumn("vastu_compliant", func(r *listing.Record) *bool { return &r.Vastu }),
	textColumn("fingerprint", func(r *listing.Record) *string { return &r.Fingerprint }),
	{
		name: "scraped_at",
		get:  func(r *listing.Record) string { return r.ScrapedAt.UTC().Format(time.RFC3339Nano) },
		set: func(r *listing.Record, v string) (err error) {
			if v == "" {
				return nil
			}
			r.ScrapedAt, err = time.Parse(time.RFC3339Nano, v)
			return err
		},
	},
}

// header returns the column names in order.
func header() []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.name
	}
	return names
}

// encodeRow flattens r into column order.
func encodeRow(r *listing.Record) []string {
	row := make([]string, len(columns))
	for i, c := range columns {
		row[i] = c.get(r)
	}
	return row
}

// decodeRow rebuilds a record from row, using index to find each column by
// name. Columns absent from index keep their zero value, so files written by
// older versions with fewer columns still load.
func decodeRow(index map[string]int, row []string) (listing.Record, error) {
	var r listing.Record
	for _, c := range columns {
		i, ok := index[c.name]
		if !ok || i >= len(row) {
			continue
		}
		if err := c.set(&r, row[i]); err != nil {
			return listing.Record{}, fmt.Errorf("column %s: %w", c.name, err)
		}
	}
	return r, nil
}

// headerIndex maps column names to their position in hdr.
func headerIndex(hdr []string) map[string]int {
	index := make(map[string]int, len(hdr))
	for i, name := range hdr {
		index[name] = i
	}
	return index
}
