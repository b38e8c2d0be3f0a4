package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/ncrlistings/internal/output"
	"github.com/jmylchreest/ncrlistings/pkg/listing"
	"github.com/jmylchreest/ncrlistings/pkg/schema"
	"github.com/jmylchreest/ncrlistings/pkg/store"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a store against plausible listing ranges",
	Long: `Read every record of a store, apply the price, area and room-count
range checks and report how many rows each field rejected.

Accepted rows can be exported as JSON, JSONL or YAML.

Examples:
  ncrlistings validate -i data/99acres.csv
  ncrlistings validate -i data/99acres.parquet --export clean.jsonl
  ncrlistings validate -i postgres://scraper@localhost/listings --report json`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	flags := validateCmd.Flags()
	flags.StringP("input", "i", "", "store to validate: file path or Postgres DSN (required)")
	flags.String("input-format", "", "store format (default: from input)")
	flags.String("table", store.DefaultTable, "Postgres table")
	flags.String("export", "", "write accepted records to this file (- for stdout)")
	flags.String("export-format", "", "export format: json, jsonl, yaml (default: from export extension)")
	flags.String("report", "text", "report format: text, json, yaml")

	_ = validateCmd.MarkFlagRequired("input")
}

func runValidate(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd); err != nil {
		return err
	}
	log := newLogger()
	ctx := context.Background()

	input := viper.GetString("input")
	format := viper.GetString("input-format")
	if format == "" {
		format = string(store.FormatFromPath(input))
	}
	if format != string(store.FormatPostgres) {
		if _, err := os.Stat(input); err != nil {
			return fmt.Errorf("open input: %w", err)
		}
	}

	st, err := store.Open(ctx, format, input, store.Options{Table: viper.GetString("table"), Logger: log})
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	var records []listing.Record
	if err := st.Scan(ctx, func(r listing.Record) error {
		records = append(records, r)
		return nil
	}); err != nil {
		return err
	}

	accepted, report := schema.New().Filter(records)
	log.Info("validation complete", "total", report.Total, "accepted", report.Accepted, "rejected", report.Rejected)

	if err := exportRecords(viper.GetString("export"), viper.GetString("export-format"), accepted); err != nil {
		return err
	}

	return printReport(cmd.OutOrStdout(), viper.GetString("report"), report)
}

func exportRecords(path, format string, records []listing.Record) error {
	if path == "" {
		return nil
	}

	var f output.Format
	var err error
	if format != "" {
		f, err = output.ParseFormat(format)
		if err != nil {
			return err
		}
	} else {
		f = output.FormatFromPath(path)
	}

	var w io.Writer = os.Stdout
	if path != "-" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create export dir: %w", err)
			}
		}
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create export file: %w", err)
		}
		defer func() { _ = file.Close() }()
		w = file
	}

	ow, err := output.NewWriter(w, f)
	if err != nil {
		return err
	}
	if err := output.WriteAll(ow, records); err != nil {
		return fmt.Errorf("export records: %w", err)
	}
	return nil
}

func printReport(w io.Writer, format string, report schema.Report) error {
	if format == "" || format == "text" {
		fmt.Fprintf(w, "Records:  %s\n", humanize.Comma(int64(report.Total)))
		fmt.Fprintf(w, "Accepted: %s\n", humanize.Comma(int64(report.Accepted)))
		fmt.Fprintf(w, "Rejected: %s\n", humanize.Comma(int64(report.Rejected)))
		for _, field := range report.Fields() {
			fmt.Fprintf(w, "  %-12s %s\n", field, humanize.Comma(int64(report.ByField[field])))
		}
		return nil
	}
	f, err := output.ParseFormat(format)
	if err != nil {
		return errors.New("unsupported report format: " + format + " (use text, json or yaml)")
	}
	return output.WriteReport(w, f, report)
}
