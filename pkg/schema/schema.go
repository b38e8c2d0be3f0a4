// Package schema is the validation boundary applied to listing records before
// final persistence. Records outside plausible market ranges are rejected and
// counted per field.
package schema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jmylchreest/ncrlistings/pkg/listing"
)

// row is the validated projection of a listing.Record. Area is optional and
// only range-checked when present.
type row struct {
	URL       string   `json:"url" validate:"required"`
	Price     int64    `json:"price" validate:"gte=500000,lte=200000000"`
	Area      *float64 `json:"area_sqft" validate:"omitempty,gte=200,lte=20000"`
	Bedrooms  int      `json:"bedrooms" validate:"gte=0,lte=10"`
	Bathrooms int      `json:"bathrooms" validate:"gte=0,lte=10"`
	Balcony   int      `json:"balcony" validate:"gte=0,lte=5"`
}

func project(r *listing.Record) row {
	return row{
		URL:       r.URL,
		Price:     r.Price,
		Area:      r.Area,
		Bedrooms:  r.Bedrooms,
		Bathrooms: r.Bathrooms,
		Balcony:   r.Balcony,
	}
}

// ValidationError describes one failed field check.
type ValidationError struct {
	Field   string
	Message string
	Value   any
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Report summarizes a Filter pass. ByField counts failures per field; a
// record failing two fields is rejected once but counted under both.
type Report struct {
	Total    int            `json:"total" yaml:"total"`
	Accepted int            `json:"accepted" yaml:"accepted"`
	Rejected int            `json:"rejected" yaml:"rejected"`
	ByField  map[string]int `json:"by_field" yaml:"by_field"`
}

// Merge adds other's counts into r.
func (r *Report) Merge(other Report) {
	r.Total += other.Total
	r.Accepted += other.Accepted
	r.Rejected += other.Rejected
	for f, n := range other.ByField {
		if r.ByField == nil {
			r.ByField = make(map[string]int)
		}
		r.ByField[f] += n
	}
}

// Fields returns the fields with failures, sorted by name.
func (r Report) Fields() []string {
	names := make([]string, 0, len(r.ByField))
	for f := range r.ByField {
		names = append(names, f)
	}
	sort.Strings(names)
	return names
}

// Validator checks records against the canonical ranges.
type Validator struct {
	validate *validator.Validate
}

// New returns a Validator.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(sf reflect.StructField) string {
		name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		return name
	})
	return &Validator{validate: v}
}

// Validate returns the failed checks for r, or nil when r is acceptable.
func (v *Validator) Validate(r *listing.Record) []ValidationError {
	p := project(r)
	err := v.validate.Struct(&p)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []ValidationError{{Field: "record", Message: err.Error()}}
	}

	errs := make([]ValidationError, 0, len(fieldErrs))
	for _, e := range fieldErrs {
		errs = append(errs, ValidationError{
			Field:   e.Field(),
			Message: formatValidationError(e),
			Value:   e.Value(),
		})
	}
	return errs
}

// Filter returns the acceptable records, in input order, and a report.
func (v *Validator) Filter(records []listing.Record) ([]listing.Record, Report) {
	report := Report{Total: len(records), ByField: make(map[string]int)}
	accepted := make([]listing.Record, 0, len(records))
	for i := range records {
		errs := v.Validate(&records[i])
		if len(errs) == 0 {
			accepted = append(accepted, records[i])
			continue
		}
		report.Rejected++
		for _, e := range errs {
			report.ByField[e.Field]++
		}
	}
	report.Accepted = len(accepted)
	return accepted, report
}

// formatValidationError creates a human-readable error message.
func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "gte":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", e.Param())
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}
