// Package fetcher provides the headless-browser transport for the CLI.
// Listing portals that render cards client-side are fetched through chromedp;
// everything else uses the colly transport in pkg/fetcher.
package fetcher

import (
	"log/slog"
	"time"

	"github.com/jmylchreest/ncrlistings/pkg/fetcher"
)

// Config holds configuration for the dynamic fetcher.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// WaitForSelector is used when a fetch does not name its own selector.
	WaitForSelector string
	// ScrollPause is the wait after each scroll step.
	ScrollPause time.Duration
	Logger      *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent:   fetcher.DefaultUserAgent,
		Timeout:     30 * time.Second,
		ScrollPause: 750 * time.Millisecond,
	}
}
