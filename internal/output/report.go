package output

import (
	"fmt"
	"io"
)

// WriteReport renders a summary value (run summary, validation report) in
// format. JSONL renders as compact single-line JSON.
func WriteReport(w io.Writer, format Format, v any) error {
	switch format {
	case FormatJSON, FormatJSONL:
		indent := "  "
		if format == FormatJSONL {
			indent = ""
		}
		data, err := marshalJSON(v, "", indent)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	case FormatYAML:
		return encodeYAML(w, v)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
