// Package dedup tracks the identity keys of listings that are already persisted.
package dedup

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/jmylchreest/ncrlistings/pkg/listing"
)

// Mode selects how the identity key of a record is built.
type Mode string

const (
	// ModeURL keys records by their canonical listing URL.
	ModeURL Mode = "url"
	// ModeFingerprint keys records by a content hash of title, price, area and location.
	ModeFingerprint Mode = "fingerprint"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case ModeURL, "":
		return ModeURL, nil
	case ModeFingerprint:
		return ModeFingerprint, nil
	default:
		return "", fmt.Errorf("unknown dedup mode: %s (use 'url' or 'fingerprint')", s)
	}
}

const defaultExpected = 100_000

// Index is an in-memory set of identity keys. A bloom filter answers most
// negative lookups before the exact set is consulted.
// It is safe for concurrent use.
type Index struct {
	mode Mode

	mu     sync.RWMutex
	filter *bloom.BloomFilter
	keys   map[string]struct{}
}

// New creates an empty index sized for about expected keys.
func New(mode Mode, expected uint) *Index {
	if expected == 0 {
		expected = defaultExpected
	}
	if mode == "" {
		mode = ModeURL
	}
	return &Index{
		mode:   mode,
		filter: bloom.NewWithEstimates(expected, 0.0001),
		keys:   make(map[string]struct{}, expected),
	}
}

// Mode returns the key mode of the index.
func (ix *Index) Mode() Mode {
	return ix.mode
}

// KeyOf returns the identity key of r for the index mode.
func (ix *Index) KeyOf(r *listing.Record) string {
	if ix.mode == ModeFingerprint {
		if r.Fingerprint != "" {
			return r.Fingerprint
		}
		return r.ComputeFingerprint()
	}
	return CanonicalURL(r.URL)
}

// Contains reports whether key is known.
func (ix *Index) Contains(key string) bool {
	if key == "" {
		return false
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if !ix.filter.TestString(key) {
		return false
	}
	_, ok := ix.keys[key]
	return ok
}

// Add registers key. It returns false when the key was already known or empty.
func (ix *Index) Add(key string) bool {
	if key == "" {
		return false
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, ok := ix.keys[key]; ok {
		return false
	}
	ix.keys[key] = struct{}{}
	ix.filter.AddString(key)
	return true
}

// Len returns the number of known keys.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.keys)
}

// Scanner streams previously persisted records.
type Scanner interface {
	Scan(ctx context.Context, fn func(listing.Record) error) error
}

// Rebuild creates an index holding the key of every record in src. An empty or
// missing store yields an empty index.
func Rebuild(ctx context.Context, mode Mode, expected uint, src Scanner) (*Index, error) {
	ix := New(mode, expected)
	err := src.Scan(ctx, func(r listing.Record) error {
		ix.Add(ix.KeyOf(&r))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rebuild dedup index: %w", err)
	}
	return ix, nil
}

// CanonicalURL normalizes a listing URL for comparison: the fragment and a
// trailing slash are dropped and the host is lower-cased. Unparseable input is
// returned trimmed.
func CanonicalURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	parsed.Fragment = ""
	parsed.Host = strings.ToLower(parsed.Host)

	if len(parsed.Path) > 1 && parsed.Path[len(parsed.Path)-1] == '/' {
		parsed.Path = parsed.Path[:len(parsed.Path)-1]
	}

	return parsed.String()
}
