// Package buffer batches accepted records in memory and flushes them to a
// store once enough pages have been collected.
package buffer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmylchreest/ncrlistings/pkg/listing"
)

// DefaultThreshold is the number of buffered pages that triggers a flush.
const DefaultThreshold = 10

// Appender is the durable sink the buffer drains into.
type Appender interface {
	Append(ctx context.Context, records []listing.Record) error
}

// Writer accumulates records per page. The buffer is the only copy of
// unflushed data and is cleared only after the sink accepts it.
// It is safe for concurrent use.
type Writer struct {
	sink      Appender
	threshold int
	log       *slog.Logger

	mu      sync.Mutex
	records []listing.Record
	pages   int
	flushed int
}

// New returns a writer that flushes into sink after threshold pages.
func New(sink Appender, threshold int, log *slog.Logger) *Writer {
	if threshold < 1 {
		threshold = DefaultThreshold
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Writer{sink: sink, threshold: threshold, log: log}
}

// Add buffers the records of one page. A page with no records does not count
// toward the threshold.
func (w *Writer) Add(records []listing.Record) {
	if len(records) == 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = append(w.records, records...)
	w.pages++
}

// ShouldFlush reports whether the buffered page count reached the threshold.
func (w *Writer) ShouldFlush() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pages >= w.threshold
}

// Pending returns the number of buffered records.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.records)
}

// Flushed returns the number of records written by successful flushes.
func (w *Writer) Flushed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushed
}

// Flush appends every buffered record to the sink and returns how many were
// written. On failure the buffer is kept intact so a later flush can retry.
func (w *Writer) Flush(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.records) == 0 {
		w.pages = 0
		return 0, nil
	}
	n := len(w.records)
	if err := w.sink.Append(ctx, w.records); err != nil {
		w.log.Error("flush failed, keeping records buffered", "records", n, "error", err)
		return 0, fmt.Errorf("flush %d records: %w", n, err)
	}
	w.records = nil
	w.pages = 0
	w.flushed += n
	w.log.Info("flushed records", "records", n, "total_flushed", w.flushed)
	return n, nil
}
