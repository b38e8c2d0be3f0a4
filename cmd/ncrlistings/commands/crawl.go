package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	clifetcher "github.com/jmylchreest/ncrlistings/cmd/ncrlistings/fetcher"
	"github.com/jmylchreest/ncrlistings/internal/crawler"
	"github.com/jmylchreest/ncrlistings/internal/output"
	"github.com/jmylchreest/ncrlistings/pkg/buffer"
	"github.com/jmylchreest/ncrlistings/pkg/checkpoint"
	"github.com/jmylchreest/ncrlistings/pkg/dedup"
	"github.com/jmylchreest/ncrlistings/pkg/extractor"
	"github.com/jmylchreest/ncrlistings/pkg/fetcher"
	"github.com/jmylchreest/ncrlistings/pkg/schema"
	"github.com/jmylchreest/ncrlistings/pkg/store"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl listing pages into a store",
	Long: `Crawl the search results of a listing portal city by city.

Each city is paged from 1 until a run of empty or unusable pages, the page
limit or the per-city target is reached. New records are buffered and
appended to the output store every --batch-pages pages, and the checkpoint
is written every --checkpoint-every pages so an interrupted crawl resumes
where it stopped.

Examples:
  # Every city of 99acres, CSV output, default limits
  ncrlistings crawl --site 99acres

  # Resume a Noida crawl into Parquet with range checks
  ncrlistings crawl --site 99acres --city Noida -o noida.parquet --validate

  # Write straight to Postgres
  ncrlistings crawl --site magicbricks --format postgres \
      --dsn postgres://scraper@localhost:5432/listings`,
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	flags := crawlCmd.Flags()

	// Site selection
	flags.String("site", "99acres", "site descriptor to crawl")
	flags.StringSlice("city", nil, "city to crawl (can be repeated, default: every city of the site)")
	flags.String("sites-dir", "", "directory of extra site descriptors (YAML)")

	// Crawl limits
	flags.Int("max-pages", 200, "last page crawled per city")
	flags.Int("empty-limit", 5, "consecutive empty or unusable pages before a city is finished")
	flags.Int("target", 0, "new records per city before it is finished (0=unlimited)")
	flags.Duration("delay", 2*time.Second, "minimum delay between page fetches")
	flags.Duration("backoff", 10*time.Second, "wait before retrying a failed page")

	// Persistence
	flags.StringP("output", "o", "", "output store path (default: data/<site>.csv)")
	flags.String("format", "", "store format: csv, jsonl, parquet, postgres (default: from output extension)")
	flags.String("dsn", "", "Postgres connection string (format postgres)")
	flags.String("table", store.DefaultTable, "Postgres table")
	flags.Int("batch-pages", buffer.DefaultThreshold, "pages buffered before records are appended to the store")
	flags.String("checkpoint", "", "checkpoint file (default: <output dir>/<site>.checkpoint.json)")
	flags.Int("checkpoint-every", checkpoint.DefaultEvery, "pages between checkpoint saves")
	flags.String("dedup", string(dedup.ModeURL), "identity key: url, fingerprint")
	flags.Bool("validate", false, "drop records outside plausible price, area and room ranges")

	// Fetch settings
	flags.String("fetch-mode", "static", "fetch mode: static, dynamic")
	flags.Duration("timeout", 30*time.Second, "request timeout")
	flags.Int("retries", 3, "fetch attempts per page before it counts as unusable")
	flags.String("user-agent", fetcher.DefaultUserAgent, "user agent sent with every request")

	flags.Bool("no-progress", false, "hide the progress bar")
	flags.String("summary", "text", "summary format: text, json, yaml")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd); err != nil {
		return err
	}

	runID := uuid.New().String()
	log := newLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sites, err := loadSites(viper.GetString("sites-dir"))
	if err != nil {
		return err
	}
	site, err := sites.Get(viper.GetString("site"))
	if err != nil {
		return err
	}
	log = log.With("run_id", runID, "site", site.Name)

	cities, err := selectCities(site, viper.GetStringSlice("city"))
	if err != nil {
		return err
	}

	// Store
	format, target, err := storeTarget(site.Name)
	if err != nil {
		return err
	}
	st, err := store.Open(ctx, string(format), target, store.Options{
		Table:  viper.GetString("table"),
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	// Dedup index from what is already persisted
	mode, err := dedup.ParseMode(viper.GetString("dedup"))
	if err != nil {
		return err
	}
	index, err := dedup.Rebuild(ctx, mode, 0, st)
	if err != nil {
		return err
	}
	log.Info("dedup index loaded", "mode", mode, "keys", index.Len())

	ext, err := extractor.New(extractor.Config{Site: site, Index: index, Logger: log})
	if err != nil {
		return err
	}

	f, err := newFetcher(site, log)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	var validator *schema.Validator
	if viper.GetBool("validate") {
		validator = schema.New()
	}

	checkpointPath := viper.GetString("checkpoint")
	if checkpointPath == "" {
		checkpointPath = defaultCheckpointPath(format, target, site.Name)
	}

	progress := newProgress(os.Stderr, !viper.GetBool("quiet") && !viper.GetBool("no-progress"))
	defer progress.Finish()

	cfg := crawler.Config{
		Site:       site,
		Cities:     cities,
		MaxPages:   viper.GetInt("max-pages"),
		EmptyLimit: viper.GetInt("empty-limit"),
		Target:     viper.GetInt("target"),
		Delay:      viper.GetDuration("delay"),
		Backoff:    viper.GetDuration("backoff"),
		RunID:      runID,
		Logger:     log,
		OnPage:     progress.Page,
	}
	ctl, err := crawler.New(cfg,
		f,
		ext,
		buffer.New(st, viper.GetInt("batch-pages"), log),
		checkpoint.New(checkpointPath, viper.GetInt("checkpoint-every"), log),
		validator,
	)
	if err != nil {
		return err
	}

	log.Info("crawl starting",
		"cities", strings.Join(cities, ","),
		"store", format,
		"output", redactDSN(target),
		"checkpoint", checkpointPath)

	sum, err := ctl.Run(ctx)
	progress.Finish()
	if perr := writeSummary(os.Stdout, viper.GetString("summary"), sum, validator != nil); perr != nil {
		log.Error("printing summary failed", "error", perr)
	}

	switch {
	case err != nil && sum.Interrupted:
		log.Warn("crawl interrupted, resume with the same command", "checkpoint", checkpointPath)
		return err
	case err != nil:
		return err
	case sum.Pending > 0:
		return fmt.Errorf("%d records could not be persisted", sum.Pending)
	}
	return nil
}

func loadSites(dir string) (extractor.Sites, error) {
	sites, err := extractor.Builtin()
	if err != nil {
		return nil, err
	}
	if dir != "" {
		if err := sites.LoadDir(dir); err != nil {
			return nil, err
		}
	}
	return sites, nil
}

// selectCities matches the requested cities against the site's list,
// ignoring case. An empty request selects every city.
func selectCities(site *extractor.Site, requested []string) ([]string, error) {
	if len(requested) == 0 {
		return site.Cities, nil
	}
	var out []string
	for _, want := range requested {
		found := ""
		for _, c := range site.Cities {
			if strings.EqualFold(c, strings.TrimSpace(want)) {
				found = c
				break
			}
		}
		if found == "" {
			return nil, fmt.Errorf("site %s has no city %q (cities: %s)", site.Name, want, strings.Join(site.Cities, ", "))
		}
		out = append(out, found)
	}
	return out, nil
}

// storeTarget resolves the store format and its file path or DSN.
func storeTarget(siteName string) (store.Format, string, error) {
	output := viper.GetString("output")
	format := store.Format(strings.ToLower(viper.GetString("format")))

	if format == store.FormatPostgres || (format == "" && output == "" && viper.GetString("dsn") != "") {
		dsn := viper.GetString("dsn")
		if dsn == "" {
			dsn = output
		}
		if dsn == "" {
			return "", "", errors.New("--dsn is required for the postgres store")
		}
		return store.FormatPostgres, dsn, nil
	}

	if output == "" {
		ext := string(format)
		if ext == "" {
			ext = string(store.FormatCSV)
		}
		output = filepath.Join("data", siteName+"."+ext)
	}
	if format == "" {
		format = store.FormatFromPath(output)
	}
	return format, output, nil
}

func defaultCheckpointPath(format store.Format, target, siteName string) string {
	name := siteName + ".checkpoint.json"
	if format == store.FormatPostgres {
		return filepath.Join("data", name)
	}
	return filepath.Join(filepath.Dir(target), name)
}

func newFetcher(site *extractor.Site, log *slog.Logger) (fetcher.Fetcher, error) {
	timeout := viper.GetDuration("timeout")
	userAgent := viper.GetString("user-agent")

	var base fetcher.Fetcher
	switch mode := viper.GetString("fetch-mode"); mode {
	case "dynamic":
		dynamicFetcher, err := clifetcher.NewDynamicFetcher(clifetcher.Config{
			UserAgent:       userAgent,
			Timeout:         timeout,
			WaitForSelector: site.WaitFor,
			Logger:          log,
		})
		if err != nil {
			return nil, fmt.Errorf("create dynamic fetcher: %w", err)
		}
		base = dynamicFetcher
	case "static", "":
		base = fetcher.NewStatic(fetcher.StaticConfig{
			UserAgent: userAgent,
			Timeout:   timeout,
			Logger:    log,
		})
	default:
		return nil, fmt.Errorf("unknown fetch mode: %s (use 'static' or 'dynamic')", mode)
	}

	return fetcher.Retrying(base, fetcher.RetryConfig{
		MaxAttempts: viper.GetInt("retries"),
		BaseDelay:   time.Second,
		Logger:      log,
	}), nil
}

// writeSummary prints the run summary as a table, or as JSON or YAML.
func writeSummary(w io.Writer, format string, sum crawler.Summary, validated bool) error {
	if format == "" || format == "text" {
		printSummary(w, sum, validated)
		return nil
	}
	f, err := output.ParseFormat(format)
	if err != nil {
		return err
	}
	return output.WriteReport(w, f, sum)
}

// printSummary writes the per-city table and totals.
func printSummary(w io.Writer, sum crawler.Summary, validated bool) {
	fmt.Fprintln(w)
	status := "complete"
	if sum.Interrupted {
		status = "interrupted"
	}
	fmt.Fprintf(w, "Crawl %s: %s (%s)\n", status, sum.Site, sum.Duration.Round(time.Second))
	fmt.Fprintf(w, "%-22s %7s %9s %11s %7s %9s %9s %8s  %s\n",
		"city", "pages", "new", "duplicates", "no url", "no price", "invalid", "blocked", "status")

	row := func(c crawler.CityStats) {
		state := "active"
		if c.Finished {
			state = c.Reason
		}
		if c.City == "total" {
			state = ""
		}
		fmt.Fprintf(w, "%-22s %7s %9s %11s %7s %9s %9s %8s  %s\n",
			c.City,
			humanize.Comma(int64(c.Pages)),
			humanize.Comma(int64(c.New)),
			humanize.Comma(int64(c.Duplicates)),
			humanize.Comma(int64(c.NoURL)),
			humanize.Comma(int64(c.NoPrice)),
			humanize.Comma(int64(c.Invalid)),
			humanize.Comma(int64(c.Failures)),
			state)
	}
	for _, c := range sum.Cities {
		row(*c)
	}
	row(sum.Totals())

	fmt.Fprintf(w, "\nPersisted %s records", humanize.Comma(int64(sum.Flushed)))
	if sum.Pending > 0 {
		fmt.Fprintf(w, ", %s NOT persisted", humanize.Comma(int64(sum.Pending)))
	}
	fmt.Fprintln(w)

	if validated && sum.Validation.Rejected > 0 {
		fmt.Fprintf(w, "Rejected by range checks: %s of %s\n",
			humanize.Comma(int64(sum.Validation.Rejected)),
			humanize.Comma(int64(sum.Validation.Total)))
		for _, field := range sum.Validation.Fields() {
			fmt.Fprintf(w, "  %-12s %s\n", field, humanize.Comma(int64(sum.Validation.ByField[field])))
		}
	}
}

// redactDSN hides the password of a connection string for logging.
func redactDSN(target string) string {
	scheme, rest, ok := strings.Cut(target, "://")
	if !ok {
		return target
	}
	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return target
	}
	if user, _, hasPass := strings.Cut(userinfo, ":"); hasPass {
		return scheme + "://" + user + ":xxxxx@" + host
	}
	return target
}
