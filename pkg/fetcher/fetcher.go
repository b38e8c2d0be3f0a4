// Package fetcher defines how listing pages are obtained.
// The crawl loop only sees the Fetcher interface; transports live behind it
// and report unusable pages through the sentinel errors below.
package fetcher

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Fetcher abstracts page fetching strategies.
type Fetcher interface {
	// Fetch retrieves page content from a URL.
	Fetch(ctx context.Context, url string, opts Options) (Content, error)

	// Close releases any resources (browser instances, etc.).
	Close() error

	// Type returns a string identifying the fetcher type (e.g., "static", "dynamic").
	Type() string
}

// Options controls fetching behavior.
type Options struct {
	UserAgent       string
	Timeout         time.Duration
	WaitForSelector string        // CSS selector to wait for (dynamic fetchers)
	WaitDuration    time.Duration // Additional wait after load
	Headers         map[string]string
}

// Content represents fetched page data.
type Content struct {
	URL         string
	HTML        string
	Text        string // Visible text with whitespace collapsed
	Title       string
	StatusCode  int
	ContentType string
	FetchedAt   time.Time
}

// Error types for distinguishing failure reasons.
// Check with errors.Is(err, fetcher.ErrCaptchaChallenge).
var (
	// ErrCaptchaChallenge indicates the site served an interactive CAPTCHA.
	ErrCaptchaChallenge = errors.New("captcha challenge detected")
	// ErrAntiBot indicates the site's anti-bot protection blocked the request.
	ErrAntiBot = errors.New("anti-bot protection detected")
	// ErrChallengeTimeout indicates a timeout while waiting for the page to render.
	ErrChallengeTimeout = errors.New("challenge timeout")
	// ErrUnexpectedStatus indicates a non-success HTTP status.
	ErrUnexpectedStatus = errors.New("unexpected status code")
	// ErrEmptyPage indicates a successful response without a body.
	ErrEmptyPage = errors.New("empty page")
)

// IsBlocked reports whether err means the site refused to serve the page.
// Blocked pages are not retried by Retrying.
func IsBlocked(err error) bool {
	return errors.Is(err, ErrCaptchaChallenge) ||
		errors.Is(err, ErrAntiBot) ||
		errors.Is(err, ErrChallengeTimeout)
}

// IsTransportFailure reports whether err came from obtaining the page rather
// than from the caller's context being cancelled.
func IsTransportFailure(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// ParseContent fills Title and Text from content.HTML. A title already set by
// the transport is kept.
func ParseContent(content *Content) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content.HTML))
	if err != nil {
		return err
	}

	if content.Title == "" {
		content.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	// Remove script and style elements before extracting text
	doc.Find("script, style, noscript, iframe, svg").Remove()

	var textParts []string
	doc.Find("body").Each(func(_ int, s *goquery.Selection) {
		text := cleanText(s.Text())
		if text != "" {
			textParts = append(textParts, text)
		}
	})
	content.Text = strings.Join(textParts, "\n")

	return nil
}

// cleanText normalizes whitespace in text.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// coalesce returns the first non-empty string.
func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
