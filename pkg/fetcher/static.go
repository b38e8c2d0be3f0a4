package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

// StaticConfig holds configuration for the static fetcher.
type StaticConfig struct {
	UserAgent string
	Timeout   time.Duration
	Logger    *slog.Logger
}

// DefaultStaticConfig returns sensible defaults.
func DefaultStaticConfig() StaticConfig {
	return StaticConfig{
		UserAgent: DefaultUserAgent,
		Timeout:   30 * time.Second,
	}
}

// DefaultUserAgent is a desktop Chrome user agent; listing portals serve
// reduced markup to unknown clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// defaultHeaders are sent with every static request unless Options.Headers
// overrides them. Portals answer bare requests with a consent or block page.
var defaultHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.5",
}

// StaticFetcher fetches server-rendered result pages with colly.
type StaticFetcher struct {
	config StaticConfig
	log    *slog.Logger
}

// NewStatic creates a static fetcher.
func NewStatic(cfg StaticConfig) *StaticFetcher {
	defaults := DefaultStaticConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &StaticFetcher{config: cfg, log: log}
}

// requestHeaders merges the default headers, a Referer pointing at the
// site's home page and opts.Headers, in increasing precedence.
func requestHeaders(targetURL string, opts Options) map[string]string {
	h := make(map[string]string, len(defaultHeaders)+len(opts.Headers)+1)
	for k, v := range defaultHeaders {
		h[k] = v
	}
	if u, err := url.Parse(targetURL); err == nil && u.Host != "" {
		h["Referer"] = u.Scheme + "://" + u.Host + "/"
	}
	for k, v := range opts.Headers {
		h[k] = v
	}
	return h
}

// Fetch downloads one results page. Non-success statuses wrap
// ErrUnexpectedStatus, an empty body wraps ErrEmptyPage and block pages wrap
// ErrAntiBot or ErrCaptchaChallenge.
func (f *StaticFetcher) Fetch(ctx context.Context, targetURL string, opts Options) (Content, error) {
	log := f.log.With("url", targetURL)
	page := Content{URL: targetURL, FetchedAt: time.Now()}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = f.config.Timeout
	}

	// One collector per page: colly's visited set would otherwise refuse a
	// retry of the same URL.
	c := colly.NewCollector(
		colly.UserAgent(coalesce(opts.UserAgent, f.config.UserAgent)),
		colly.StdlibContext(ctx),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(timeout)

	headers := requestHeaders(targetURL, opts)
	c.OnRequest(func(r *colly.Request) {
		for k, v := range headers {
			r.Headers.Set(k, v)
		}
	})

	var respErr error
	c.OnResponse(func(r *colly.Response) {
		page.StatusCode = r.StatusCode
		page.ContentType = r.Headers.Get("Content-Type")
		page.HTML = string(r.Body)
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			page.StatusCode = r.StatusCode
			respErr = fmt.Errorf("%w: %d", ErrUnexpectedStatus, r.StatusCode)
			return
		}
		respErr = fmt.Errorf("request failed: %w", err)
	})

	start := time.Now()
	if err := c.Visit(targetURL); err != nil && respErr == nil {
		if ctx.Err() != nil {
			return page, ctx.Err()
		}
		respErr = fmt.Errorf("visit: %w", err)
	}
	if respErr != nil {
		log.Debug("static fetch failed", "status", page.StatusCode, "error", respErr)
		return page, respErr
	}
	if strings.TrimSpace(page.HTML) == "" {
		return page, fmt.Errorf("%w: status %d", ErrEmptyPage, page.StatusCode)
	}

	if err := ParseContent(&page); err != nil {
		return page, fmt.Errorf("parse page: %w", err)
	}
	if err := CheckChallenge(page.Title, page.HTML, page.Text); err != nil {
		log.Warn("block page served", "title", page.Title, "error", err)
		return page, err
	}

	log.Debug("static fetch complete",
		"status", page.StatusCode,
		"bytes", len(page.HTML),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return page, nil
}

// Close is a no-op; collectors are per request.
func (f *StaticFetcher) Close() error {
	return nil
}

// Type returns "static".
func (f *StaticFetcher) Type() string {
	return "static"
}
