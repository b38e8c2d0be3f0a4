package crawler

import (
	"time"

	"github.com/jmylchreest/ncrlistings/pkg/schema"
)

// Reasons a city was finished.
const (
	ReasonEmptyStreak = "empty-streak"
	ReasonMaxPages    = "max-pages"
	ReasonTarget      = "target"
	ReasonResumed     = "finished-earlier"
)

// CityStats counts what happened while crawling one city.
type CityStats struct {
	City       string `json:"city" yaml:"city"`
	Pages      int    `json:"pages" yaml:"pages"`
	New        int    `json:"new" yaml:"new"`
	Duplicates int    `json:"duplicates" yaml:"duplicates"`
	NoURL      int    `json:"no_url" yaml:"no_url"`
	NoPrice    int    `json:"no_price" yaml:"no_price"`
	Invalid    int    `json:"invalid" yaml:"invalid"`
	Failures   int    `json:"failures" yaml:"failures"` // unusable or blocked pages
	Errors     int    `json:"errors" yaml:"errors"`
	Finished   bool   `json:"finished" yaml:"finished"`
	Reason     string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Summary is the result of a crawl run. It is returned on every exit path.
type Summary struct {
	RunID       string        `json:"run_id" yaml:"run_id"`
	Site        string        `json:"site" yaml:"site"`
	Cities      []*CityStats  `json:"cities" yaml:"cities"`
	Flushed     int           `json:"flushed" yaml:"flushed"`
	Pending     int           `json:"pending" yaml:"pending"` // records lost if the final flush failed
	Validation  schema.Report `json:"validation" yaml:"validation"`
	Interrupted bool          `json:"interrupted" yaml:"interrupted"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
}

// New returns the number of new records across cities.
func (s Summary) New() int {
	n := 0
	for _, c := range s.Cities {
		n += c.New
	}
	return n
}

// Totals sums the per-city counters.
func (s Summary) Totals() CityStats {
	var t CityStats
	t.City = "total"
	for _, c := range s.Cities {
		t.Pages += c.Pages
		t.New += c.New
		t.Duplicates += c.Duplicates
		t.NoURL += c.NoURL
		t.NoPrice += c.NoPrice
		t.Invalid += c.Invalid
		t.Failures += c.Failures
		t.Errors += c.Errors
	}
	return t
}
