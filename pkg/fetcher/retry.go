package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryConfig holds the parameters for the retry strategy.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      *slog.Logger
}

// RetryingFetcher wraps a Fetcher with exponential back-off. Block pages and
// context cancellation are returned immediately.
type RetryingFetcher struct {
	next  Fetcher
	cfg   RetryConfig
	sleep func(context.Context, time.Duration) error
}

// Retrying wraps next with retry logic. MaxAttempts below 1 means a single try.
func Retrying(next Fetcher, cfg RetryConfig) *RetryingFetcher {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &RetryingFetcher{next: next, cfg: cfg, sleep: Sleep}
}

// Fetch calls the wrapped fetcher until it succeeds or attempts run out.
func (r *RetryingFetcher) Fetch(ctx context.Context, url string, opts Options) (Content, error) {
	var (
		content Content
		lastErr error
	)
	delay := r.cfg.BaseDelay

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		content, lastErr = r.next.Fetch(ctx, url, opts)
		if lastErr == nil {
			return content, nil
		}
		if IsBlocked(lastErr) || ctx.Err() != nil {
			return content, lastErr
		}

		if attempt < r.cfg.MaxAttempts {
			r.cfg.Logger.Warn("fetch failed, retrying",
				"url", url,
				"attempt", attempt,
				"max_attempts", r.cfg.MaxAttempts,
				"delay", delay,
				"error", lastErr)
			if err := r.sleep(ctx, delay); err != nil {
				return content, err
			}
			delay *= 2
		}
	}

	if r.cfg.MaxAttempts == 1 {
		return content, lastErr
	}
	return content, fmt.Errorf("fetch failed after %d attempts: %w", r.cfg.MaxAttempts, lastErr)
}

// Close closes the wrapped fetcher.
func (r *RetryingFetcher) Close() error {
	return r.next.Close()
}

// Type returns the wrapped fetcher type.
func (r *RetryingFetcher) Type() string {
	return r.next.Type()
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ Fetcher = (*RetryingFetcher)(nil)
var _ Fetcher = (*StaticFetcher)(nil)
