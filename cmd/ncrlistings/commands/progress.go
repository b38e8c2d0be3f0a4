package commands

import (
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/jmylchreest/ncrlistings/internal/crawler"
	"github.com/jmylchreest/ncrlistings/internal/logger"
)

// progress renders crawl page events as a spinner with a running count of
// new records. It is a no-op when the output is not a terminal.
type progress struct {
	mu   sync.Mutex
	bar  *progressbar.ProgressBar
	news int
	done bool
}

func newProgress(w io.Writer, enabled bool) *progress {
	p := &progress{}
	if !enabled || !logger.IsTerminal(w) {
		return p
	}
	p.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("starting"),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("pages"),
		progressbar.OptionShowIts(),
		progressbar.OptionClearOnFinish(),
	)
	return p
}

// Page is a crawler.Config.OnPage hook.
func (p *progress) Page(ev crawler.PageEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil || p.done {
		return
	}
	p.news += ev.New
	desc := fmt.Sprintf("%s p%d, %d new", ev.City, ev.Page, p.news)
	if ev.Err != nil {
		desc += fmt.Sprintf(" (retrying, streak %d)", ev.Streak)
	}
	p.bar.Describe(desc)
	_ = p.bar.Add(1)
}

// Finish clears the bar. It is safe to call more than once.
func (p *progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil || p.done {
		return
	}
	p.done = true
	_ = p.bar.Finish()
}
