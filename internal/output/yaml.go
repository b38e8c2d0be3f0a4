package output

import (
	"bufio"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/ncrlistings/pkg/listing"
)

// YAMLWriter writes records as a single YAML sequence.
type YAMLWriter struct {
	w     *bufio.Writer
	items []listing.Record
}

// NewYAMLWriter creates a YAML writer.
func NewYAMLWriter(w io.Writer) *YAMLWriter {
	return &YAMLWriter{w: bufio.NewWriter(w)}
}

// Write buffers rec until Close.
func (w *YAMLWriter) Write(rec listing.Record) error {
	w.items = append(w.items, rec)
	return nil
}

// Close encodes the buffered records.
func (w *YAMLWriter) Close() error {
	items := w.items
	if items == nil {
		items = []listing.Record{}
	}
	w.items = nil
	if err := encodeYAML(w.w, items); err != nil {
		return err
	}
	return w.w.Flush()
}

func encodeYAML(w io.Writer, v any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	return encoder.Close()
}
