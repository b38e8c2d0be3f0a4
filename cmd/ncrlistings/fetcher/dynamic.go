package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/jmylchreest/ncrlistings/pkg/fetcher"
)

// DynamicFetcher uses chromedp for JavaScript-rendered listing pages.
// One browser process is shared by all fetches; each fetch gets its own tab.
type DynamicFetcher struct {
	config    Config
	log       *slog.Logger
	allocCtx  context.Context
	cancelCtx context.CancelFunc
}

// NewDynamicFetcher creates a new dynamic fetcher with a browser instance.
func NewDynamicFetcher(cfg Config) (*DynamicFetcher, error) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig().UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.ScrollPause <= 0 {
		cfg.ScrollPause = DefaultConfig().ScrollPause
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if chromePath := FindChromePath(log); chromePath != "" {
		opts = append(opts, chromedp.ExecPath(chromePath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	log.Debug("dynamic fetcher created", "timeout", cfg.Timeout)

	return &DynamicFetcher{
		config:    cfg,
		log:       log,
		allocCtx:  allocCtx,
		cancelCtx: cancelAlloc,
	}, nil
}

// scrollScript scrolls to a fraction of the page height so lazily rendered
// listing cards are attached to the DOM before it is read.
const scrollScript = `window.scrollTo(0, document.body.scrollHeight * %g)`

// scrollSteps are the page-height fractions visited after the cards appear.
var scrollSteps = []float64{0.5, 1}

// Fetch renders a results page in a new tab, scrolls through it and returns
// the final DOM. A render that times out is reported as ErrChallengeTimeout,
// which is how interstitial challenge pages usually present.
func (f *DynamicFetcher) Fetch(ctx context.Context, targetURL string, opts fetcher.Options) (fetcher.Content, error) {
	log := f.log.With("url", targetURL)
	page := fetcher.Content{URL: targetURL, FetchedAt: time.Now()}

	tabCtx, closeTab := chromedp.NewContext(f.allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			log.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
		}),
	)
	defer closeTab()

	// The allocator outlives ctx, so cancellation has to reach the tab explicitly.
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = f.config.Timeout
	}
	runCtx, cancel := context.WithTimeout(tabCtx, timeout)
	defer cancel()

	waitFor := coalesce(opts.WaitForSelector, f.config.WaitForSelector, "body")

	var html, title string
	if err := chromedp.Run(runCtx, f.actions(targetURL, waitFor, opts.WaitDuration, &html, &title)...); err != nil {
		if ctx.Err() != nil {
			return page, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn("page did not render in time", "wait_for", waitFor, "timeout", timeout)
			return page, fmt.Errorf("%w: waiting for %s: %v", fetcher.ErrChallengeTimeout, waitFor, err)
		}
		return page, fmt.Errorf("render %s: %w", targetURL, err)
	}

	page.HTML = html
	page.Title = title
	page.StatusCode = 200 // chromedp does not surface the document status
	if err := fetcher.ParseContent(&page); err != nil {
		return page, fmt.Errorf("parse page: %w", err)
	}
	if err := fetcher.CheckChallenge(page.Title, page.HTML, page.Text); err != nil {
		log.Warn("block page served", "title", page.Title, "error", err)
		return page, err
	}

	log.Debug("dynamic fetch complete", "title", title, "bytes", len(html))
	return page, nil
}

func (f *DynamicFetcher) actions(targetURL, waitFor string, settle time.Duration, html, title *string) []chromedp.Action {
	actions := []chromedp.Action{
		chromedp.Navigate(targetURL),
		// WaitReady, not WaitVisible: cards hidden behind a banner never become visible.
		chromedp.WaitReady(waitFor),
	}
	for _, frac := range scrollSteps {
		actions = append(actions,
			chromedp.Evaluate(fmt.Sprintf(scrollScript, frac), nil),
			chromedp.Sleep(f.config.ScrollPause),
		)
	}
	if settle > 0 {
		actions = append(actions, chromedp.Sleep(settle))
	}
	return append(actions,
		chromedp.OuterHTML("html", html),
		chromedp.Title(title),
	)
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Close releases browser resources.
func (f *DynamicFetcher) Close() error {
	if f.cancelCtx != nil {
		f.cancelCtx()
	}
	return nil
}

// Type returns the fetcher type.
func (f *DynamicFetcher) Type() string {
	return "dynamic"
}

var _ fetcher.Fetcher = (*DynamicFetcher)(nil)
