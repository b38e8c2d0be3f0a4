package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/jmylchreest/ncrlistings/pkg/listing"
)

type sliceScanner struct {
	records []listing.Record
	err     error
}

func (s sliceScanner) Scan(_ context.Context, fn func(listing.Record) error) error {
	if s.err != nil {
		return s.err
	}
	for _, r := range s.records {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// --- Index Tests ---

func TestIndex_AddContains(t *testing.T) {
	ix := New(ModeURL, 10)

	if ix.Contains("https://example.com/a") {
		t.Error("empty index should not contain key")
	}
	if !ix.Add("https://example.com/a") {
		t.Error("first Add() should return true")
	}
	if ix.Add("https://example.com/a") {
		t.Error("second Add() of the same key should return false")
	}
	if !ix.Contains("https://example.com/a") {
		t.Error("index should contain added key")
	}
	if ix.Len() != 1 {
		t.Errorf("Len() = %d, want 1", ix.Len())
	}
}

func TestIndex_EmptyKey(t *testing.T) {
	ix := New(ModeURL, 0)
	if ix.Add("") {
		t.Error("Add(\"\") should return false")
	}
	if ix.Contains("") {
		t.Error("Contains(\"\") should return false")
	}
}

func TestIndex_KeyOf(t *testing.T) {
	area := 1200.0
	r := listing.Record{
		Title:    "3 BHK Flat",
		URL:      "https://WWW.Example.com/listing/1/#photos",
		Price:    9_500_000,
		Area:     &area,
		Location: "Sector 43",
	}

	urlIndex := New(ModeURL, 0)
	if got := urlIndex.KeyOf(&r); got != "https://www.example.com/listing/1" {
		t.Errorf("KeyOf() url mode = %q", got)
	}

	fpIndex := New(ModeFingerprint, 0)
	if got, want := fpIndex.KeyOf(&r), r.ComputeFingerprint(); got != want {
		t.Errorf("KeyOf() fingerprint mode = %q, want %q", got, want)
	}

	r.Fingerprint = "precomputed"
	if got := fpIndex.KeyOf(&r); got != "precomputed" {
		t.Errorf("KeyOf() should prefer stored fingerprint, got %q", got)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"", ModeURL, false},
		{"url", ModeURL, false},
		{"Fingerprint", ModeFingerprint, false},
		{"hash", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

// --- Rebuild Tests ---

func TestRebuild_FromRecords(t *testing.T) {
	src := sliceScanner{records: []listing.Record{
		{URL: "https://example.com/a"},
		{URL: "https://example.com/b/"},
		{URL: "https://example.com/a"},
	}}

	ix, err := Rebuild(context.Background(), ModeURL, 10, src)
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if ix.Len() != 2 {
		t.Errorf("Len() = %d, want 2", ix.Len())
	}
	if !ix.Contains("https://example.com/b") {
		t.Error("index should contain canonical form of stored URL")
	}
}

func TestRebuild_EmptyStore(t *testing.T) {
	ix, err := Rebuild(context.Background(), ModeURL, 10, sliceScanner{})
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if ix.Len() != 0 {
		t.Errorf("Len() = %d, want 0", ix.Len())
	}
}

func TestRebuild_ScanError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Rebuild(context.Background(), ModeURL, 10, sliceScanner{err: boom})
	if !errors.Is(err, boom) {
		t.Errorf("Rebuild() error = %v, want wrapped boom", err)
	}
}

// --- CanonicalURL Tests ---

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://example.com/a", "https://example.com/a"},
		{"https://example.com/a/", "https://example.com/a"},
		{"https://example.com/a#frag", "https://example.com/a"},
		{"https://EXAMPLE.com/", "https://example.com/"},
		{"  https://example.com/a?id=1  ", "https://example.com/a?id=1"},
	}
	for _, tt := range tests {
		if got := CanonicalURL(tt.input); got != tt.want {
			t.Errorf("CanonicalURL(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
