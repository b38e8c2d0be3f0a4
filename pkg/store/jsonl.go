package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jmylchreest/ncrlistings/pkg/listing"
)

// JSONLStore appends records as one JSON object per line.
type JSONLStore struct {
	path string
	log  *slog.Logger
}

// NewJSONL returns a store for the JSON Lines file at path.
func NewJSONL(path string, log *slog.Logger) *JSONLStore {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &JSONLStore{path: path, log: log}
}

// Append writes one line per record.
func (s *JSONLStore) Append(ctx context.Context, records []listing.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("jsonl: create output dir: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("jsonl: open %q: %w", s.path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return fmt.Errorf("jsonl: encode: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("jsonl: flush: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("jsonl: sync: %w", err)
	}
	return f.Close()
}

// Scan decodes every line. Undecodable lines are logged and skipped.
func (s *JSONLStore) Scan(ctx context.Context, fn func(listing.Record) error) error {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("jsonl: open %q: %w", s.path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		data := sc.Bytes()
		if len(data) == 0 {
			continue
		}
		var rec listing.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			s.log.Warn("jsonl: skipping malformed line", "path", s.path, "line", line, "error", err)
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("jsonl: read: %w", err)
	}
	return nil
}

// Close releases resources.
func (s *JSONLStore) Close() error {
	return nil
}
