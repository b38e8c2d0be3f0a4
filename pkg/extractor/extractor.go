// Package extractor turns a listing results page into normalized records.
//
// Each portal is described by a Site: where the listing cards are and, per
// field, an ordered chain of strategies (exact selector, looser selector,
// structural fallback, regex over the card text). The extractor evaluates the
// chains for every card, normalizes the raw values and consults a dedup index
// so a page that was already persisted yields nothing.
package extractor

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/ncrlistings/pkg/listing"
	"github.com/jmylchreest/ncrlistings/pkg/normalize"
)

// Index is the dedup view the extractor needs.
type Index interface {
	KeyOf(r *listing.Record) string
	Contains(key string) bool
	Add(key string) bool
}

// Config configures an Extractor.
type Config struct {
	Site   *Site
	Index  Index
	Logger *slog.Logger
	Now    func() time.Time
}

// Result is the outcome of extracting one page.
type Result struct {
	Records []listing.Record

	Cards      int // listing cards found on the page
	Duplicates int // cards whose identity key was already known
	NoURL      int // cards without a resolvable listing URL
	NoPrice    int // cards without a positive price
}

// Extractor maps listing cards to records. It is not safe for concurrent
// Extract calls that share one Index unless the Index is.
type Extractor struct {
	site  *Site
	base  *url.URL
	index Index
	log   *slog.Logger
	now   func() time.Time

	mu    sync.Mutex
	plans map[string]*plan
}

// New creates an extractor for cfg.Site.
func New(cfg Config) (*Extractor, error) {
	if cfg.Site == nil {
		return nil, errors.New("extractor: site is required")
	}
	if cfg.Index == nil {
		return nil, errors.New("extractor: index is required")
	}
	base, err := url.Parse(cfg.Site.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Extractor{
		site:  cfg.Site,
		base:  base,
		index: cfg.Index,
		log:   log,
		now:   now,
		plans: make(map[string]*plan),
	}, nil
}

// Site returns the descriptor the extractor was built with.
func (e *Extractor) Site() *Site {
	return e.site
}

// Extract parses html and returns the new records for city.
func (e *Extractor) Extract(html, city string) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Result{}, fmt.Errorf("parse html: %w", err)
	}
	return e.ExtractDocument(doc, city)
}

// ExtractDocument returns the new records found in doc for city. Accepted
// records are registered in the index before ExtractDocument returns.
func (e *Extractor) ExtractDocument(doc *goquery.Document, city string) (Result, error) {
	p, err := e.planFor(city)
	if err != nil {
		return Result{}, err
	}

	var res Result
	cards := e.findCards(doc)
	res.Cards = cards.Length()

	cards.Each(func(_ int, card *goquery.Selection) {
		rec, d := e.buildRecord(p, card, city)
		switch d {
		case discardNoURL:
			res.NoURL++
			return
		case discardNoPrice:
			res.NoPrice++
			return
		}

		key := e.index.KeyOf(&rec)
		if e.index.Contains(key) {
			res.Duplicates++
			e.log.Debug("duplicate listing skipped", "key", key)
			return
		}
		e.index.Add(key)
		res.Records = append(res.Records, rec)
	})

	e.log.Debug("page extracted",
		"city", city,
		"cards", res.Cards,
		"new", len(res.Records),
		"duplicates", res.Duplicates,
		"no_url", res.NoURL,
		"no_price", res.NoPrice)

	return res, nil
}

// findCards applies the card selectors in order and returns the first
// non-empty match.
func (e *Extractor) findCards(doc *goquery.Document) *goquery.Selection {
	var cards *goquery.Selection
	for _, sel := range e.site.Cards {
		cards = doc.Find(sel)
		if cards.Length() > 0 {
			break
		}
	}
	return cards
}

type discard int

const (
	keep discard = iota
	discardNoURL
	discardNoPrice
)

func (e *Extractor) buildRecord(p *plan, card *goquery.Selection, city string) (listing.Record, discard) {
	c := &Candidate{Card: card, City: city}

	href, ok := p.url(c)
	if !ok {
		return listing.Record{}, discardNoURL
	}
	c.URL = e.resolve(href)
	if c.URL == "" {
		return listing.Record{}, discardNoURL
	}

	c.Title, _ = p.title(c)
	c.Blob = strings.ToLower(collapse(card.Text()))

	priceRaw, _ := p.price(c)
	price, ok := normalize.Price(priceRaw)
	if !ok || price <= 0 {
		e.log.Debug("listing without price skipped", "url", c.URL, "price_raw", priceRaw)
		return listing.Record{}, discardNoPrice
	}

	rec := listing.Record{
		Site:     e.site.Name,
		Title:    c.Title,
		URL:      c.URL,
		City:     normalize.City(city),
		Price:    price,
		PriceRaw: priceRaw,
	}

	rec.AreaRaw, _ = p.area(c)
	var area *float64
	if v, ok := normalize.Area(rec.AreaRaw); ok {
		area = &v
	}
	rec.PricePerSqft, rec.Area = normalize.RecoverAreaAndRate(price, c.Title, priceRaw, area)

	rec.Location, _ = p.location(c)
	loc := normalize.ParseLocation(c.Title, c.URL)
	rec.Society, rec.Sector, rec.Locality = loc.Society, loc.Sector, loc.Locality

	classify(&rec, c.Blob)

	rec.Fingerprint = rec.ComputeFingerprint()
	rec.ScrapedAt = listing.Timestamp(e.now())
	return rec, keep
}

// resolve makes href absolute against the site base URL. Fragment and
// javascript links resolve to "".
func (e *Extractor) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if !u.IsAbs() {
		u = e.base.ResolveReference(u)
	}
	return u.String()
}

func (e *Extractor) planFor(city string) (*plan, error) {
	key := strings.ToLower(city)
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.plans[key]; ok {
		return p, nil
	}
	p, err := compileSite(e.site, city)
	if err != nil {
		return nil, fmt.Errorf("compile site %s for %s: %w", e.site.Name, city, err)
	}
	e.plans[key] = p
	return p, nil
}
