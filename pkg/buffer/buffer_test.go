package buffer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jmylchreest/ncrlistings/pkg/listing"
)

type recordingSink struct {
	calls   [][]listing.Record
	failing error
}

func (s *recordingSink) Append(_ context.Context, records []listing.Record) error {
	if s.failing != nil {
		return s.failing
	}
	batch := make([]listing.Record, len(records))
	copy(batch, records)
	s.calls = append(s.calls, batch)
	return nil
}

func page(n int, prefix string) []listing.Record {
	out := make([]listing.Record, n)
	for i := range out {
		out[i] = listing.Record{URL: fmt.Sprintf("https://example.com/%s/%d", prefix, i), Price: 5_000_000}
	}
	return out
}

func TestWriter_BelowThresholdDoesNotFlush(t *testing.T) {
	sink := &recordingSink{}
	w := New(sink, 3, nil)

	w.Add(page(2, "a"))
	w.Add(page(1, "b"))
	if w.ShouldFlush() {
		t.Fatal("ShouldFlush() = true after 2 of 3 pages")
	}
	if len(sink.calls) != 0 {
		t.Errorf("sink called %d times, want 0", len(sink.calls))
	}
	if w.Pending() != 3 {
		t.Errorf("Pending() = %d, want 3", w.Pending())
	}
}

func TestWriter_ThresholdFlushesOnceAndClears(t *testing.T) {
	sink := &recordingSink{}
	w := New(sink, 3, nil)

	for i := 0; i < 3; i++ {
		w.Add(page(2, fmt.Sprint(i)))
	}
	if !w.ShouldFlush() {
		t.Fatal("ShouldFlush() = false at threshold")
	}

	n, err := w.Flush(context.Background())
	if err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if n != 6 {
		t.Errorf("Flush() = %d, want 6", n)
	}
	if len(sink.calls) != 1 || len(sink.calls[0]) != 6 {
		t.Errorf("sink calls = %v, want one batch of 6", len(sink.calls))
	}
	if w.Pending() != 0 || w.ShouldFlush() {
		t.Errorf("buffer not cleared: pending=%d shouldFlush=%v", w.Pending(), w.ShouldFlush())
	}
	if w.Flushed() != 6 {
		t.Errorf("Flushed() = %d, want 6", w.Flushed())
	}
}

func TestWriter_EmptyPagesDoNotCount(t *testing.T) {
	w := New(&recordingSink{}, 2, nil)
	w.Add(nil)
	w.Add([]listing.Record{})
	w.Add(page(1, "a"))
	if w.ShouldFlush() {
		t.Error("empty pages should not count toward the threshold")
	}
}

func TestWriter_EmptyFlushIsNoop(t *testing.T) {
	sink := &recordingSink{}
	w := New(sink, 2, nil)
	n, err := w.Flush(context.Background())
	if err != nil || n != 0 {
		t.Errorf("Flush() = %d, %v; want 0, nil", n, err)
	}
	if len(sink.calls) != 0 {
		t.Error("empty flush should not touch the sink")
	}
}

func TestWriter_FailedFlushKeepsBuffer(t *testing.T) {
	boom := errors.New("disk full")
	sink := &recordingSink{failing: boom}
	w := New(sink, 1, nil)
	w.Add(page(4, "a"))

	if _, err := w.Flush(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Flush() error = %v, want %v", err, boom)
	}
	if w.Pending() != 4 {
		t.Errorf("Pending() = %d after failed flush, want 4", w.Pending())
	}

	sink.failing = nil
	n, err := w.Flush(context.Background())
	if err != nil || n != 4 {
		t.Fatalf("retry Flush() = %d, %v; want 4, nil", n, err)
	}
	if len(sink.calls) != 1 {
		t.Errorf("sink received %d batches, want 1", len(sink.calls))
	}
}

func TestNew_DefaultThreshold(t *testing.T) {
	w := New(&recordingSink{}, 0, nil)
	for i := 0; i < DefaultThreshold-1; i++ {
		w.Add(page(1, fmt.Sprint(i)))
	}
	if w.ShouldFlush() {
		t.Error("ShouldFlush() before default threshold")
	}
	w.Add(page(1, "last"))
	if !w.ShouldFlush() {
		t.Error("ShouldFlush() = false at default threshold")
	}
}
