// Package logger builds the slog loggers handed to every component.
package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Options configures the logger.
type Options struct {
	Debug   bool      // Enable debug level logging
	Quiet   bool      // Only show errors
	JSON    bool      // Output as JSON
	NoColor bool      // Never colorize, even on a terminal
	Output  io.Writer // Output destination (default: stderr)
}

// Level returns the minimum level implied by opts. Quiet wins over Debug.
func (o Options) Level() slog.Level {
	switch {
	case o.Quiet:
		return slog.LevelError
	case o.Debug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// New returns a logger for opts. Text output is colorized when it goes to a
// terminal and NoColor is unset.
func New(opts Options) *slog.Logger {
	output := opts.Output
	if output == nil {
		output = os.Stderr
	}
	level := opts.Level()

	var handler slog.Handler
	switch {
	case opts.JSON:
		handler = slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level})
	case !opts.NoColor && IsTerminal(output):
		handler = tint.NewHandler(output, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		})
	default:
		handler = slog.NewTextHandler(output, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler)
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
