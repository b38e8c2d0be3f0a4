package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/jmylchreest/ncrlistings/pkg/listing"
)

// parquetRow is the columnar layout of a record. Optional numeric fields map
// to nullable columns.
type parquetRow struct {
	Site     string `parquet:"site"`
	Title    string `parquet:"title"`
	URL      string `parquet:"url"`
	City     string `parquet:"city,dict"`
	Location string `parquet:"location"`
	Society  string `parquet:"society"`
	Sector   string `parquet:"sector"`
	Locality string `parquet:"locality,dict"`

	Price        int64    `parquet:"price"`
	PriceRaw     string   `parquet:"price_raw"`
	PricePerSqft *float64 `parquet:"price_per_sqft,optional"`
	Area         *float64 `parquet:"area_sqft,optional"`
	AreaRaw      string   `parquet:"area_raw"`

	Bedrooms  int32 `parquet:"bedrooms"`
	Bathrooms int32 `parquet:"bathrooms"`
	Balcony   int32 `parquet:"balcony"`
	Floor     int32 `parquet:"floor"`

	PropertyType string `parquet:"property_type,dict"`
	Furnishing   string `parquet:"furnishing,dict"`
	Facing       string `parquet:"facing,dict"`

	PoojaRoom   bool `parquet:"pooja_room"`
	ServantRoom bool `parquet:"servant_room"`
	StoreRoom   bool `parquet:"store_room"`
	Pool        bool `parquet:"pool"`
	Gym         bool `parquet:"gym"`
	Lift        bool `parquet:"lift"`
	Parking     bool `parquet:"parking"`
	Vastu       bool `parquet:"vastu_compliant"`

	Fingerprint string    `parquet:"fingerprint"`
	ScrapedAt   time.Time `parquet:"scraped_at,timestamp(microsecond)"`
}

func toParquetRow(r *listing.Record) parquetRow {
	return parquetRow{
		Site:         r.Site,
		Title:        r.Title,
		URL:          r.URL,
		City:         r.City,
		Location:     r.Location,
		Society:      r.Society,
		Sector:       r.Sector,
		Locality:     r.Locality,
		Price:        r.Price,
		PriceRaw:     r.PriceRaw,
		PricePerSqft: r.PricePerSqft,
		Area:         r.Area,
		AreaRaw:      r.AreaRaw,
		Bedrooms:     int32(r.Bedrooms),
		Bathrooms:    int32(r.Bathrooms),
		Balcony:      int32(r.Balcony),
		Floor:        int32(r.Floor),
		PropertyType: string(r.PropertyType),
		Furnishing:   string(r.Furnishing),
		Facing:       string(r.Facing),
		PoojaRoom:    r.PoojaRoom,
		ServantRoom:  r.ServantRoom,
		StoreRoom:    r.StoreRoom,
		Pool:         r.Pool,
		Gym:          r.Gym,
		Lift:         r.Lift,
		Parking:      r.Parking,
		Vastu:        r.Vastu,
		Fingerprint:  r.Fingerprint,
		ScrapedAt:    r.ScrapedAt.UTC(),
	}
}

func (p *parquetRow) record() listing.Record {
	return listing.Record{
		Site:         p.Site,
		Title:        p.Title,
		URL:          p.URL,
		City:         p.City,
		Location:     p.Location,
		Society:      p.Society,
		Sector:       p.Sector,
		Locality:     p.Locality,
		Price:        p.Price,
		PriceRaw:     p.PriceRaw,
		PricePerSqft: p.PricePerSqft,
		Area:         p.Area,
		AreaRaw:      p.AreaRaw,
		Bedrooms:     int(p.Bedrooms),
		Bathrooms:    int(p.Bathrooms),
		Balcony:      int(p.Balcony),
		Floor:        int(p.Floor),
		PropertyType: listing.PropertyType(p.PropertyType),
		Furnishing:   listing.Furnishing(p.Furnishing),
		Facing:       listing.Facing(p.Facing),
		Amenities: listing.Amenities{
			PoojaRoom:   p.PoojaRoom,
			ServantRoom: p.ServantRoom,
			StoreRoom:   p.StoreRoom,
			Pool:        p.Pool,
			Gym:         p.Gym,
			Lift:        p.Lift,
			Parking:     p.Parking,
			Vastu:       p.Vastu,
		},
		Fingerprint: p.Fingerprint,
		ScrapedAt:   p.ScrapedAt.UTC(),
	}
}

// ParquetStore keeps records in a single Parquet file. Parquet files cannot be
// appended in place, so Append rewrites the file with the new rows added and
// swaps it in with a rename; a crash mid-write leaves the previous file intact.
type ParquetStore struct {
	path string
}

// NewParquet returns a store for the Parquet file at path.
func NewParquet(path string) *ParquetStore {
	return &ParquetStore{path: path}
}

func (s *ParquetStore) readAll() ([]parquetRow, error) {
	rows, err := parquet.ReadFile[parquetRow](s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("parquet: read %q: %w", s.path, err)
	}
	return rows, nil
}

// Append rewrites the file with records added at the end.
func (s *ParquetStore) Append(ctx context.Context, records []listing.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rows, err := s.readAll()
	if err != nil {
		return err
	}
	for i := range records {
		rows = append(rows, toParquetRow(&records[i]))
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("parquet: create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".listings-*.parquet")
	if err != nil {
		return fmt.Errorf("parquet: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := parquet.WriteFile(tmpPath, rows); err != nil {
		return fmt.Errorf("parquet: write: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("parquet: replace %q: %w", s.path, err)
	}
	return nil
}

// Scan reads every row in file order.
func (s *ParquetStore) Scan(ctx context.Context, fn func(listing.Record) error) error {
	rows, err := s.readAll()
	if err != nil {
		return err
	}
	for i := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(rows[i].record()); err != nil {
			return err
		}
	}
	return nil
}

// Close releases resources.
func (s *ParquetStore) Close() error {
	return nil
}
