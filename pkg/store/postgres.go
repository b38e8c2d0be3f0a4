package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmylchreest/ncrlistings/pkg/listing"
)

// DefaultTable is the Postgres table used when none is configured.
const DefaultTable = "listings"

// sqlTypes holds the column type of every non-text column. Columns missing
// from the map are non-null text defaulting to the empty string.
var sqlTypes = map[string]string{
	"price":           "BIGINT NOT NULL",
	"price_per_sqft":  "DOUBLE PRECISION",
	"area_sqft":       "DOUBLE PRECISION",
	"bedrooms":        "INTEGER NOT NULL DEFAULT 0",
	"bathrooms":       "INTEGER NOT NULL DEFAULT 0",
	"balcony":         "INTEGER NOT NULL DEFAULT 0",
	"floor":           "INTEGER NOT NULL DEFAULT 0",
	"pooja_room":      "BOOLEAN NOT NULL DEFAULT FALSE",
	"servant_room":    "BOOLEAN NOT NULL DEFAULT FALSE",
	"store_room":      "BOOLEAN NOT NULL DEFAULT FALSE",
	"pool":            "BOOLEAN NOT NULL DEFAULT FALSE",
	"gym":             "BOOLEAN NOT NULL DEFAULT FALSE",
	"lift":            "BOOLEAN NOT NULL DEFAULT FALSE",
	"parking":         "BOOLEAN NOT NULL DEFAULT FALSE",
	"vastu_compliant": "BOOLEAN NOT NULL DEFAULT FALSE",
	"scraped_at":      "TIMESTAMPTZ NOT NULL",
}

// PostgresStore appends records to a table with COPY.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table pgx.Identifier
	log   *slog.Logger
}

// NewPostgres connects to dsn and creates the table if it does not exist.
func NewPostgres(ctx context.Context, dsn, table string, log *slog.Logger) (*PostgresStore, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if table == "" {
		table = DefaultTable
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	cfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	s := &PostgresStore{pool: pool, table: pgx.Identifier{table}, log: log}
	if _, err := pool.Exec(ctx, createTableSQL(s.table)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: create table %s: %w", table, err)
	}
	log.Debug("postgres store ready", "table", table)
	return s, nil
}

func createTableSQL(table pgx.Identifier) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n\tid BIGSERIAL PRIMARY KEY", table.Sanitize())
	for _, c := range columns {
		typ, ok := sqlTypes[c.name]
		if !ok {
			typ = "TEXT NOT NULL DEFAULT ''"
		}
		fmt.Fprintf(&b, ",\n\t%s %s", pgx.Identifier{c.name}.Sanitize(), typ)
	}
	b.WriteString("\n)")
	return b.String()
}

// copyValues returns r's values in column order, typed for COPY.
func copyValues(r *listing.Record) []any {
	return []any{
		r.Site, r.Title, r.URL, r.City, r.Location, r.Society, r.Sector, r.Locality,
		r.Price, r.PriceRaw, r.PricePerSqft, r.Area, r.AreaRaw,
		int32(r.Bedrooms), int32(r.Bathrooms), int32(r.Balcony), int32(r.Floor),
		string(r.PropertyType), string(r.Furnishing), string(r.Facing),
		r.PoojaRoom, r.ServantRoom, r.StoreRoom, r.Pool, r.Gym, r.Lift, r.Parking, r.Vastu,
		r.Fingerprint, r.ScrapedAt.UTC(),
	}
}

// Append copies records into the table in one statement.
func (s *PostgresStore) Append(ctx context.Context, records []listing.Record) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([][]any, len(records))
	for i := range records {
		rows[i] = copyValues(&records[i])
	}
	n, err := s.pool.CopyFrom(ctx, s.table, header(), pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("postgres: copy into %s: %w", s.table.Sanitize(), err)
	}
	s.log.Debug("postgres append", "rows", n)
	return nil
}

// Scan reads every row in insertion order.
func (s *PostgresStore) Scan(ctx context.Context, fn func(listing.Record) error) error {
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = pgx.Identifier{c.name}.Sanitize()
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", strings.Join(cols, ", "), s.table.Sanitize())

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("postgres: query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r                          listing.Record
			beds, baths, balcony, flr  int32
			propertyType, furn, facing string
			scrapedAt                  time.Time
		)
		err := rows.Scan(
			&r.Site, &r.Title, &r.URL, &r.City, &r.Location, &r.Society, &r.Sector, &r.Locality,
			&r.Price, &r.PriceRaw, &r.PricePerSqft, &r.Area, &r.AreaRaw,
			&beds, &baths, &balcony, &flr,
			&propertyType, &furn, &facing,
			&r.PoojaRoom, &r.ServantRoom, &r.StoreRoom, &r.Pool, &r.Gym, &r.Lift, &r.Parking, &r.Vastu,
			&r.Fingerprint, &scrapedAt,
		)
		if err != nil {
			return fmt.Errorf("postgres: scan row: %w", err)
		}
		r.Bedrooms, r.Bathrooms, r.Balcony, r.Floor = int(beds), int(baths), int(balcony), int(flr)
		r.PropertyType = listing.PropertyType(propertyType)
		r.Furnishing = listing.Furnishing(furn)
		r.Facing = listing.Facing(facing)
		r.ScrapedAt = scrapedAt.UTC()

		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

var (
	_ Store = (*CSVStore)(nil)
	_ Store = (*JSONLStore)(nil)
	_ Store = (*ParquetStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
