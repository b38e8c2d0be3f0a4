// Package crawler runs the per-city, per-page crawl loop: fetch a results
// page, extract new records, buffer them, and keep the checkpoint current so
// an interrupted run can resume where it stopped.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jmylchreest/ncrlistings/pkg/buffer"
	"github.com/jmylchreest/ncrlistings/pkg/checkpoint"
	"github.com/jmylchreest/ncrlistings/pkg/extractor"
	"github.com/jmylchreest/ncrlistings/pkg/fetcher"
	"github.com/jmylchreest/ncrlistings/pkg/listing"
	"github.com/jmylchreest/ncrlistings/pkg/schema"
)

// Extractor turns one results page into new records.
type Extractor interface {
	Extract(html, city string) (extractor.Result, error)
}

// Config holds crawl configuration.
type Config struct {
	Site   *extractor.Site
	Cities []string // empty means every city of Site

	MaxPages   int // last page crawled per city
	EmptyLimit int // consecutive empty or failed pages before a city is finished
	Target     int // new records per city before it is finished (0 = unlimited)

	Delay   time.Duration // minimum spacing between page fetches
	Backoff time.Duration // wait before retrying a page that failed

	FetchOptions fetcher.Options
	RunID        string
	Logger       *slog.Logger

	// OnPage, if set, is called after every page attempt.
	OnPage func(PageEvent)
}

// DefaultConfig returns the standard crawl limits.
func DefaultConfig() Config {
	return Config{
		MaxPages:   200,
		EmptyLimit: 5,
		Delay:      2 * time.Second,
		Backoff:    10 * time.Second,
	}
}

// PageEvent reports the outcome of one page attempt.
type PageEvent struct {
	City    string
	Page    int
	New     int
	Streak  int
	Skipped int // duplicates plus discarded cards
	Err     error
}

// Controller drives the crawl. It is single-use: call Run once.
type Controller struct {
	cfg         Config
	fetcher     fetcher.Fetcher
	extractor   Extractor
	buffer      *buffer.Writer
	checkpoints *checkpoint.Manager
	validator   *schema.Validator
	log         *slog.Logger

	limiter *rate.Limiter
	sleep   func(context.Context, time.Duration) error
	now     func() time.Time

	state       checkpoint.State
	pendingFrom int // first page of the current city still only in the buffer
	summary     Summary
	stats       map[string]*CityStats
}

// New creates a controller. validator may be nil to persist records without
// range checks.
func New(cfg Config, f fetcher.Fetcher, ext Extractor, buf *buffer.Writer, cp *checkpoint.Manager, validator *schema.Validator) (*Controller, error) {
	if cfg.Site == nil {
		return nil, errors.New("crawler: site is required")
	}
	if f == nil || ext == nil || buf == nil || cp == nil {
		return nil, errors.New("crawler: fetcher, extractor, buffer and checkpoint are required")
	}

	defaults := DefaultConfig()
	if cfg.MaxPages < 1 {
		cfg.MaxPages = defaults.MaxPages
	}
	if cfg.EmptyLimit < 1 {
		cfg.EmptyLimit = defaults.EmptyLimit
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}
	if len(cfg.Cities) == 0 {
		cfg.Cities = cfg.Site.Cities
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}

	return &Controller{
		cfg:         cfg,
		fetcher:     f,
		extractor:   ext,
		buffer:      buf,
		checkpoints: cp,
		validator:   validator,
		log:         log,
		limiter:     rate.NewLimiter(limit, 1),
		sleep:       fetcher.Sleep,
		now:         time.Now,
		stats:       make(map[string]*CityStats),
	}, nil
}

// Run crawls every configured city and returns the run summary. The buffer is
// flushed and the checkpoint saved on every exit path, including cancellation
// and panics; a cancelled run returns the context error.
func (c *Controller) Run(ctx context.Context) (sum Summary, err error) {
	start := c.now()
	c.summary = Summary{RunID: c.cfg.RunID, Site: c.cfg.Site.Name}

	resume := c.resumeState()
	if resume != nil {
		c.state = *resume
		c.state.FinishedCities = append([]string(nil), resume.FinishedCities...)
	}
	c.state.Site = c.cfg.Site.Name
	c.state.RunID = c.cfg.RunID

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("crawl aborted: %v", r)
			c.log.Error("crawl aborted", "panic", r)
		}
		c.shutdown(context.WithoutCancel(ctx))
		if err != nil && errors.Is(err, ctx.Err()) {
			c.summary.Interrupted = true
		}
		c.summary.Duration = c.now().Sub(start)
		c.summary.Pending = c.buffer.Pending()
		c.summary.Flushed = c.buffer.Flushed()
		sum = c.summary
	}()

	for _, city := range c.cfg.Cities {
		st := c.cityStats(city)
		if c.state.IsFinished(city) {
			st.Finished = true
			st.Reason = ReasonResumed
			c.log.Info("skipping finished city", "city", city)
			continue
		}

		startPage := 1
		if resume != nil && strings.EqualFold(resume.CurrentCity, city) {
			startPage = resume.CurrentPage
			c.log.Info("resuming city", "city", city, "page", startPage)
		}
		if err := c.crawlCity(ctx, city, startPage); err != nil {
			return c.summary, err
		}
	}

	c.log.Info("crawl complete", "cities", len(c.cfg.Cities), "new", c.summary.New())
	return c.summary, nil
}

// resumeState loads the checkpoint, ignoring one written for another site.
func (c *Controller) resumeState() *checkpoint.State {
	st := c.checkpoints.Load()
	if st == nil {
		return nil
	}
	if st.Site != "" && !strings.EqualFold(st.Site, c.cfg.Site.Name) {
		c.log.Warn("checkpoint belongs to another site, starting fresh",
			"checkpoint_site", st.Site,
			"site", c.cfg.Site.Name)
		return nil
	}
	return st
}

// crawlCity walks the pages of one city from startPage until the city is
// finished. It returns only context errors.
func (c *Controller) crawlCity(ctx context.Context, city string, startPage int) error {
	st := c.cityStats(city)
	log := c.log.With("city", city)
	log.Info("crawling city", "start_page", startPage, "max_pages", c.cfg.MaxPages)

	c.state.CurrentCity = city
	c.state.CurrentPage = startPage
	c.pendingFrom = 0

	streak := 0
	page := startPage
	for {
		if page > c.cfg.MaxPages {
			return c.finishCity(ctx, city, ReasonMaxPages)
		}
		if streak >= c.cfg.EmptyLimit {
			return c.finishCity(ctx, city, ReasonEmptyStreak)
		}
		if c.cfg.Target > 0 && st.New >= c.cfg.Target {
			return c.finishCity(ctx, city, ReasonTarget)
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return ctxErr(ctx, err)
		}

		records, res, err := c.processPage(ctx, city, page)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			streak++
			if isTransportFailure(err) {
				st.Failures++
				log.Warn("page unusable", "page", page, "streak", streak, "blocked", fetcher.IsBlocked(err), "error", err)
			} else {
				st.Errors++
				log.Error("page failed", "page", page, "streak", streak, "error", err)
			}
			c.emit(PageEvent{City: city, Page: page, Streak: streak, Err: err})
			if streak >= c.cfg.EmptyLimit {
				continue
			}
			if err := c.sleep(ctx, c.cfg.Backoff); err != nil {
				return err
			}
			continue
		}

		st.Pages++
		st.Duplicates += res.Duplicates
		st.NoURL += res.NoURL
		st.NoPrice += res.NoPrice

		if len(records) == 0 {
			streak++
		} else {
			streak = 0
			st.New += len(records)
			c.state.TotalScraped += len(records)
			c.buffer.Add(records)
			if c.pendingFrom == 0 {
				c.pendingFrom = page
			}
		}
		log.Info("page done",
			"page", page,
			"cards", res.Cards,
			"new", len(records),
			"duplicates", res.Duplicates,
			"streak", streak)
		c.emit(PageEvent{
			City:    city,
			Page:    page,
			New:     len(records),
			Streak:  streak,
			Skipped: res.Duplicates + res.NoURL + res.NoPrice,
		})

		page++
		c.state.CurrentPage = page

		if c.buffer.ShouldFlush() {
			c.flush(ctx)
		}
		if c.checkpoints.Tick() {
			c.flush(ctx)
			c.saveCheckpoint()
		}
	}
}

// Errors raised after the page was fetched. They count as page errors, not
// transport failures.
var (
	errExtract   = errors.New("extract failed")
	errPagePanic = errors.New("page processing panicked")
)

func isTransportFailure(err error) bool {
	return fetcher.IsTransportFailure(err) &&
		!errors.Is(err, errExtract) &&
		!errors.Is(err, errPagePanic)
}

// processPage fetches and extracts one page. Rejected records are dropped
// here when a validator is configured. A panic while handling the page is
// returned as an error wrapping errPagePanic.
func (c *Controller) processPage(ctx context.Context, city string, page int) (records []listing.Record, res extractor.Result, err error) {
	pageURL := c.cfg.Site.PageURLFor(city, page)
	defer func() {
		if r := recover(); r != nil {
			records, res = nil, extractor.Result{}
			err = fmt.Errorf("%w: %s: %v", errPagePanic, pageURL, r)
		}
	}()

	opts := c.cfg.FetchOptions
	if opts.WaitForSelector == "" {
		opts.WaitForSelector = c.cfg.Site.WaitFor
	}
	content, err := c.fetcher.Fetch(ctx, pageURL, opts)
	if err != nil {
		return nil, extractor.Result{}, err
	}

	res, err = c.extractor.Extract(content.HTML, city)
	if err != nil {
		return nil, extractor.Result{}, fmt.Errorf("%w: %s: %w", errExtract, pageURL, err)
	}

	records = res.Records
	if c.validator != nil && len(records) > 0 {
		var report schema.Report
		records, report = c.validator.Filter(records)
		c.summary.Validation.Merge(report)
		c.cityStats(city).Invalid += report.Rejected
	}
	return records, res, nil
}

func (c *Controller) finishCity(ctx context.Context, city, reason string) error {
	st := c.cityStats(city)
	st.Finished = true
	st.Reason = reason
	c.state.MarkFinished(city)
	c.log.Info("city finished", "city", city, "reason", reason, "pages", st.Pages, "new", st.New)

	c.flush(ctx)
	c.saveCheckpoint()
	return nil
}

// flush drains the buffer. Failures are logged and the records stay buffered.
func (c *Controller) flush(ctx context.Context) {
	if _, err := c.buffer.Flush(ctx); err != nil {
		c.log.Error("persisting records failed", "pending", c.buffer.Pending(), "error", err)
		return
	}
	c.pendingFrom = 0
}

// saveCheckpoint writes the cursor. While records of the current city are
// still only buffered, the cursor points at the first of their pages so a
// crash cannot skip them.
func (c *Controller) saveCheckpoint() {
	st := c.state
	if c.pendingFrom > 0 && c.pendingFrom < st.CurrentPage {
		st.CurrentPage = c.pendingFrom
	}
	if err := c.checkpoints.Save(st); err != nil {
		c.log.Error("saving checkpoint failed", "path", c.checkpoints.Path(), "error", err)
		return
	}
	c.log.Debug("checkpoint saved", "city", st.CurrentCity, "page", st.CurrentPage, "total", st.TotalScraped)
}

// shutdown runs the final flush and checkpoint save. ctx must not be
// cancelled.
func (c *Controller) shutdown(ctx context.Context) {
	c.flush(ctx)
	c.saveCheckpoint()
}

func (c *Controller) emit(ev PageEvent) {
	if c.cfg.OnPage != nil {
		c.cfg.OnPage(ev)
	}
}

func (c *Controller) cityStats(city string) *CityStats {
	if st, ok := c.stats[city]; ok {
		return st
	}
	st := &CityStats{City: city}
	c.stats[city] = st
	c.summary.Cities = append(c.summary.Cities, st)
	return st
}

func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
