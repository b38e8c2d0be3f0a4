package extractor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Candidate is one listing card being turned into a record. Fields are filled
// in evaluation order (URL, Title, Blob) so later strategies can read earlier
// results through their Source.
type Candidate struct {
	Card  *goquery.Selection
	City  string
	URL   string
	Title string
	Blob  string
}

// FieldFunc produces a field value from a candidate, or reports a miss.
type FieldFunc func(*Candidate) (string, bool)

// FirstOf tries each function in order until one yields a value.
func FirstOf(fns ...FieldFunc) FieldFunc {
	return func(c *Candidate) (string, bool) {
		for _, fn := range fns {
			if v, ok := fn(c); ok {
				return v, true
			}
		}
		return "", false
	}
}

// plan is a descriptor compiled for one city.
type plan struct {
	url      FieldFunc
	title    FieldFunc
	price    FieldFunc
	area     FieldFunc
	location FieldFunc
}

func compileSite(s *Site, city string) (*plan, error) {
	var p plan
	var err error
	if p.url, err = compileChain("url", s.Fields.URL, city); err != nil {
		return nil, err
	}
	if p.title, err = compileChain("title", s.Fields.Title, city); err != nil {
		return nil, err
	}
	if p.price, err = compileChain("price", s.Fields.Price, city); err != nil {
		return nil, err
	}
	if p.area, err = compileChain("area", s.Fields.Area, city); err != nil {
		return nil, err
	}
	if p.location, err = compileChain("location", s.Fields.Location, city); err != nil {
		return nil, err
	}
	return &p, nil
}

func compileChain(field string, strategies []Strategy, city string) (FieldFunc, error) {
	fns := make([]FieldFunc, 0, len(strategies))
	for i, st := range strategies {
		fn, err := compileStrategy(st, city)
		if err != nil {
			return nil, fmt.Errorf("field %s strategy %d: %w", field, i, err)
		}
		fns = append(fns, fn)
	}
	return FirstOf(fns...), nil
}

func compileStrategy(st Strategy, city string) (FieldFunc, error) {
	var re *regexp.Regexp
	group := st.Group
	if st.Pattern != "" {
		pattern := strings.ReplaceAll(st.Pattern, "{city}", regexp.QuoteMeta(strings.ToLower(city)))
		var err error
		if re, err = regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("compile pattern: %w", err)
		}
		if group == 0 && re.NumSubexp() > 0 {
			group = 1
		}
		if group > re.NumSubexp() {
			return nil, fmt.Errorf("pattern %q has no group %d", st.Pattern, group)
		}
	}

	input := sourceFunc(st)

	return func(c *Candidate) (string, bool) {
		v, ok := input(c)
		if !ok {
			return "", false
		}
		if re != nil {
			m := re.FindStringSubmatch(v)
			if m == nil {
				return "", false
			}
			v = strings.TrimSpace(m[group])
		}
		if st.Format == "words" {
			v = strings.TrimSpace(cases.Title(language.English).String(strings.ReplaceAll(v, "-", " ")))
		}
		return v, v != ""
	}, nil
}

func sourceFunc(st Strategy) FieldFunc {
	if st.Selector != "" {
		return func(c *Candidate) (string, bool) {
			sel := c.Card.Find(st.Selector)
			if sel.Length() == 0 {
				return "", false
			}
			if st.Attr != "" {
				v, ok := sel.First().Attr(st.Attr)
				v = strings.TrimSpace(v)
				return v, ok && v != ""
			}
			if st.All {
				parts := sel.Map(func(_ int, s *goquery.Selection) string {
					return collapse(s.Text())
				})
				v := strings.TrimSpace(strings.Join(parts, " "))
				return v, v != ""
			}
			v := collapse(sel.First().Text())
			return v, v != ""
		}
	}

	switch st.Source {
	case "title":
		return func(c *Candidate) (string, bool) { return c.Title, c.Title != "" }
	case "url":
		return func(c *Candidate) (string, bool) { return c.URL, c.URL != "" }
	default:
		return func(c *Candidate) (string, bool) { return c.Blob, c.Blob != "" }
	}
}

// collapse trims s and reduces internal whitespace runs to one space.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
