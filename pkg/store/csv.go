package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jmylchreest/ncrlistings/pkg/listing"
)

// CSVStore appends records to a CSV file with a header row.
type CSVStore struct {
	path string
	log  *slog.Logger
}

// NewCSV returns a store for the CSV file at path. The file is created on the
// first Append.
func NewCSV(path string, log *slog.Logger) *CSVStore {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &CSVStore{path: path, log: log}
}

// Append writes records, adding the header only when the file is new or empty.
func (s *CSVStore) Append(ctx context.Context, records []listing.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("csv: open %q: %w", s.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("csv: stat %q: %w", s.path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header()); err != nil {
			return fmt.Errorf("csv: write header: %w", err)
		}
	}
	for i := range records {
		if err := w.Write(encodeRow(&records[i])); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csv: flush: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("csv: sync: %w", err)
	}
	return f.Close()
}

// Scan reads every row. Rows that fail to parse are logged and skipped so a
// torn final line from an earlier crash does not block a restart.
func (s *CSVStore) Scan(ctx context.Context, fn func(listing.Record) error) error {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("csv: open %q: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	hdr, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("csv: read header: %w", err)
	}
	index := headerIndex(hdr)

	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			s.log.Warn("csv: skipping malformed row", "path", s.path, "line", parseErr.Line, "error", err)
			continue
		}
		if err != nil {
			return fmt.Errorf("csv: read: %w", err)
		}

		rec, err := decodeRow(index, row)
		if err != nil {
			s.log.Warn("csv: skipping undecodable row", "path", s.path, "line", line, "error", err)
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

// Close releases resources. CSVStore holds no open handles between calls.
func (s *CSVStore) Close() error {
	return nil
}
