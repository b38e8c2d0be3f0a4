// Package output writes exported listings and run reports.
package output

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/jmylchreest/ncrlistings/pkg/listing"
)

// Format represents output format types.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatJSONL, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	case "ndjson":
		return FormatJSONL, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s (use json, jsonl or yaml)", s)
	}
}

// FormatFromPath picks a format from the file extension, defaulting to JSONL.
func FormatFromPath(path string) Format {
	if f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), ".")); err == nil {
		return f
	}
	return FormatJSONL
}

// Writer exports listing records.
type Writer interface {
	// Write outputs one record.
	Write(rec listing.Record) error

	// Close finishes the document and flushes buffered output. It does not
	// close the underlying io.Writer.
	Close() error
}

// WriterOption configures a writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	indent string
}

// WithIndent sets the JSON indentation. An empty indent writes compact JSON.
func WithIndent(indent string) WriterOption {
	return func(c *writerConfig) {
		c.indent = indent
	}
}

// NewWriter creates a writer for the specified format.
func NewWriter(w io.Writer, format Format, opts ...WriterOption) (Writer, error) {
	cfg := &writerConfig{indent: "  "}
	for _, opt := range opts {
		opt(cfg)
	}

	switch format {
	case FormatJSON:
		return NewJSONWriter(w, cfg.indent), nil
	case FormatJSONL:
		return NewJSONLWriter(w), nil
	case FormatYAML:
		return NewYAMLWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteAll writes every record and closes w.
func WriteAll(w Writer, records []listing.Record) error {
	for i := range records {
		if err := w.Write(records[i]); err != nil {
			return err
		}
	}
	return w.Close()
}
