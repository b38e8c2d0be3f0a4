package extractor

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrUnknownSite is returned when a site name has no descriptor.
var ErrUnknownSite = errors.New("unknown site")

//go:embed sites/*.yaml
var builtinFS embed.FS

// Strategy is one attempt at producing a field value. Strategies of a field
// are tried in order; the first non-empty result wins.
//
// A strategy reads its input either from a CSS Selector evaluated against the
// card (text, or Attr when set) or from a Source already computed for the
// candidate: "title", "url" or "blob". When Pattern is set, the input must
// match it and capture Group (default 1, or the whole match for patterns
// without groups) becomes the value. "{city}" in Pattern stands for the
// lower-cased city label.
type Strategy struct {
	Selector string `yaml:"selector,omitempty" validate:"required_without=Pattern"`
	Attr     string `yaml:"attr,omitempty"`
	All      bool   `yaml:"all,omitempty"`
	Source   string `yaml:"source,omitempty" validate:"omitempty,oneof=title url blob"`
	Pattern  string `yaml:"pattern,omitempty"`
	Group    int    `yaml:"group,omitempty" validate:"gte=0"`
	Format   string `yaml:"format,omitempty" validate:"omitempty,oneof=words"`
}

// Fields holds the strategy chain of each extracted field.
type Fields struct {
	URL      []Strategy `yaml:"url" validate:"required,min=1,dive"`
	Title    []Strategy `yaml:"title" validate:"omitempty,dive"`
	Price    []Strategy `yaml:"price" validate:"required,min=1,dive"`
	Area     []Strategy `yaml:"area" validate:"omitempty,dive"`
	Location []Strategy `yaml:"location" validate:"omitempty,dive"`
}

// Site describes how to page through and parse one listing portal.
type Site struct {
	Name    string `yaml:"name" validate:"required"`
	BaseURL string `yaml:"base_url" validate:"required,url"`
	// PageURL is a template with {city} and {page} placeholders.
	PageURL string `yaml:"page_url" validate:"required,contains={city},contains={page}"`
	// CityFormat controls how {city} is rendered in PageURL:
	// "slug" (greater-noida) or "title-hyphen" (Greater-Noida).
	CityFormat string   `yaml:"city_format" validate:"omitempty,oneof=slug title-hyphen"`
	Cities     []string `yaml:"cities" validate:"required,min=1,dive,required"`
	// WaitFor is the selector a browser transport waits for before reading the page.
	WaitFor string   `yaml:"wait_for,omitempty"`
	Cards   []string `yaml:"cards" validate:"required,min=1,dive,required"`
	Fields  Fields   `yaml:"fields"`
}

// PageURLFor builds the listing page URL for city and page.
func (s *Site) PageURLFor(city string, page int) string {
	slug := strings.Join(strings.Fields(city), "-")
	if s.CityFormat != "title-hyphen" {
		slug = strings.ToLower(slug)
	}
	r := strings.NewReplacer("{city}", slug, "{page}", strconv.Itoa(page))
	return r.Replace(s.PageURL)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the descriptor for missing or malformed entries.
func (s *Site) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("site %q: %w", s.Name, err)
	}
	return nil
}

// ParseSite decodes and validates one YAML descriptor.
func ParseSite(data []byte) (*Site, error) {
	var s Site
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse site descriptor: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	// Compile once up front so a bad pattern fails at load time.
	if _, err := compileSite(&s, ""); err != nil {
		return nil, err
	}
	return &s, nil
}

// Sites is a set of descriptors keyed by name.
type Sites map[string]*Site

// Builtin returns the descriptors shipped with the binary.
func Builtin() (Sites, error) {
	entries, err := builtinFS.ReadDir("sites")
	if err != nil {
		return nil, err
	}
	sites := make(Sites, len(entries))
	for _, e := range entries {
		data, err := builtinFS.ReadFile("sites/" + e.Name())
		if err != nil {
			return nil, err
		}
		s, err := ParseSite(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		sites[strings.ToLower(s.Name)] = s
	}
	return sites, nil
}

// LoadDir adds every *.yaml / *.yml descriptor in dir, replacing descriptors
// with the same name.
func (ss Sites) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read sites dir: %w", err)
	}
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return err
		}
		s, err := ParseSite(data)
		if err != nil {
			return fmt.Errorf("%s: %w", e.Name(), err)
		}
		ss[strings.ToLower(s.Name)] = s
	}
	return nil
}

// Get returns the descriptor for name.
func (ss Sites) Get(name string) (*Site, error) {
	s, ok := ss[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %s)", ErrUnknownSite, name, strings.Join(ss.Names(), ", "))
	}
	return s, nil
}

// Names returns the sorted descriptor names.
func (ss Sites) Names() []string {
	names := make([]string, 0, len(ss))
	for n := range ss {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
