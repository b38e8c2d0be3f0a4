package output

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"

	"github.com/jmylchreest/ncrlistings/pkg/listing"
)

// JSONWriter streams records as one JSON array.
type JSONWriter struct {
	w      *bufio.Writer
	indent string
	count  int
	closed bool
}

// NewJSONWriter creates a JSON writer.
func NewJSONWriter(w io.Writer, indent string) *JSONWriter {
	return &JSONWriter{w: bufio.NewWriter(w), indent: indent}
}

func (w *JSONWriter) newline(prefix string) string {
	if w.indent == "" {
		return ""
	}
	return "\n" + prefix
}

// Write appends rec to the array.
func (w *JSONWriter) Write(rec listing.Record) error {
	data, err := marshalJSON(rec, w.indent, w.indent)
	if err != nil {
		return err
	}
	sep := ","
	if w.count == 0 {
		sep = "["
	}
	if _, err := w.w.WriteString(sep + w.newline(w.indent)); err != nil {
		return err
	}
	if _, err := w.w.Write(data); err != nil {
		return err
	}
	w.count++
	return nil
}

// Close terminates the array. An empty writer produces "[]".
func (w *JSONWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	end := w.newline("") + "]\n"
	if w.count == 0 {
		end = "[]\n"
	}
	if _, err := w.w.WriteString(end); err != nil {
		return err
	}
	return w.w.Flush()
}

// JSONLWriter writes newline-delimited JSON (JSONL).
type JSONLWriter struct {
	w   *bufio.Writer
	enc *json.Encoder
}

// NewJSONLWriter creates a JSONL writer.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{w: bw, enc: enc}
}

// Write writes rec as a single line.
func (w *JSONLWriter) Write(rec listing.Record) error {
	return w.enc.Encode(rec)
}

// Close flushes the writer.
func (w *JSONLWriter) Close() error {
	return w.w.Flush()
}

// marshalJSON encodes v without HTML escaping and without the trailing newline.
func marshalJSON(v any, prefix, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent(prefix, indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
