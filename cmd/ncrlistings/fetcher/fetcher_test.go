package fetcher

import (
	"log/slog"
	"testing"
	"time"
)

func TestFindChromePath_Env(t *testing.T) {
	t.Setenv(ChromePathEnv, "/opt/chrome/chrome")
	if got := FindChromePath(slog.New(slog.DiscardHandler)); got != "/opt/chrome/chrome" {
		t.Errorf("FindChromePath() = %q, want env override", got)
	}
}

func TestDynamicFetcher_Actions(t *testing.T) {
	f := &DynamicFetcher{config: Config{ScrollPause: time.Millisecond}}
	var html, title string

	got := f.actions("https://www.magicbricks.com/x", "div.mb-srp__card", 0, &html, &title)
	// navigate, wait, two scroll+pause pairs, outer html, title
	if len(got) != 2+2*len(scrollSteps)+2 {
		t.Errorf("actions() returned %d actions", len(got))
	}

	withSettle := f.actions("https://www.magicbricks.com/x", "body", time.Second, &html, &title)
	if len(withSettle) != len(got)+1 {
		t.Errorf("settle wait not appended: %d actions", len(withSettle))
	}
}

func TestCoalesce(t *testing.T) {
	if got := coalesce("", "div.card", "body"); got != "div.card" {
		t.Errorf("coalesce() = %q", got)
	}
	if got := coalesce("", ""); got != "" {
		t.Errorf("coalesce() = %q, want empty", got)
	}
}
