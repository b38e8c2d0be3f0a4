// Package store persists listing records. Every store is append-only: records
// are never updated or deleted once written, and identity is enforced by the
// dedup index rather than by the storage layer.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmylchreest/ncrlistings/pkg/listing"
)

// ErrUnsupportedFormat is returned by Open for an unknown format name.
var ErrUnsupportedFormat = errors.New("unsupported store format")

// Store is an append-only record sink that can replay what it holds.
type Store interface {
	// Append durably writes records. A store that does not exist yet is
	// created with its header or schema.
	Append(ctx context.Context, records []listing.Record) error

	// Scan calls fn for every persisted record in write order. A missing
	// store scans as empty.
	Scan(ctx context.Context, fn func(listing.Record) error) error

	// Close releases any resources.
	Close() error
}

// Format names a store implementation.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatJSONL    Format = "jsonl"
	FormatParquet  Format = "parquet"
	FormatPostgres Format = "postgres"
)

// Formats returns the supported format names.
func Formats() []string {
	return []string{string(FormatCSV), string(FormatJSONL), string(FormatParquet), string(FormatPostgres)}
}

// Options configures Open.
type Options struct {
	// Table is the Postgres table name.
	Table  string
	Logger *slog.Logger
}

// Open returns the store for format. target is a file path, or a DSN for postgres.
func Open(ctx context.Context, format, target string, opts Options) (Store, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	switch Format(strings.ToLower(format)) {
	case FormatCSV, "":
		return NewCSV(target, opts.Logger), nil
	case FormatJSONL:
		return NewJSONL(target, opts.Logger), nil
	case FormatParquet:
		return NewParquet(target), nil
	case FormatPostgres:
		pg, err := NewPostgres(ctx, target, opts.Table, opts.Logger)
		if err != nil {
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("%w: %s (use %s)", ErrUnsupportedFormat, format, strings.Join(Formats(), ", "))
	}
}

// FormatFromPath guesses the store format from a file extension.
func FormatFromPath(path string) Format {
	switch {
	case strings.HasSuffix(path, ".jsonl"), strings.HasSuffix(path, ".ndjson"):
		return FormatJSONL
	case strings.HasSuffix(path, ".parquet"):
		return FormatParquet
	case strings.HasPrefix(path, "postgres://"), strings.HasPrefix(path, "postgresql://"):
		return FormatPostgres
	default:
		return FormatCSV
	}
}
