// Package filter turns caller-supplied record filters into parameterized SQL.
//
// A single compiler serves every record domain. Domain differences (tables,
// export columns, which filter fields are meaningful) live in a Schema, and
// database differences live in a Dialect. Filter values are only ever bound
// as named arguments; the compiler never interpolates caller input into SQL
// text.
package filter

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"ecoindex/internal/core"
)

// DateLayout is the calendar date format accepted for startDate and endDate.
const DateLayout = "2006-01-02"

// Filter holds the optional criteria submitted for an export. Every field is
// optional; a Filter with no populated field selects every record.
type Filter struct {
	ClassificationLevel string   `json:"classification_level"`
	ClassificationName  string   `json:"classification_name"`
	Year                int      `json:"year"`
	StartDate           string   `json:"startDate"`
	EndDate             string   `json:"endDate"`
	LocationName        string   `json:"location_name"`
	LocationType        string   `json:"location_type"`
	StartValue          *float64 `json:"startValue,omitempty"`
	EndValue            *float64 `json:"endValue,omitempty"`
	Indicator           string   `json:"indicator"`
	RiverCatchment      string   `json:"river_catchment"`
	LandcoverType       string   `json:"landcover_type"`
}

// IsEmpty reports whether no field is populated.
func (f Filter) IsEmpty() bool {
	return strings.TrimSpace(f.ClassificationLevel) == "" &&
		strings.TrimSpace(f.ClassificationName) == "" &&
		f.Year == 0 &&
		strings.TrimSpace(f.StartDate) == "" &&
		strings.TrimSpace(f.EndDate) == "" &&
		strings.TrimSpace(f.LocationName) == "" &&
		strings.TrimSpace(f.LocationType) == "" &&
		f.StartValue == nil &&
		f.EndValue == nil &&
		strings.TrimSpace(f.Indicator) == "" &&
		strings.TrimSpace(f.RiverCatchment) == "" &&
		strings.TrimSpace(f.LandcoverType) == ""
}

// LocationTypes is the closed set of location reference kinds.
var LocationTypes = []string{"region", "rohe"}

// foldCase lowers enumerated input. Casers carry state, so each call gets its own.
func foldCase(s string) string { return Fold(strings.TrimSpace(s)) }

// criteria is a validated, normalized Filter bound to one schema.
type criteria struct {
	classColumn string
	className   string

	start *time.Time
	end   *time.Time

	locationName string
	locationType string

	valueLow  *float64
	valueHigh *float64

	indicator      string
	riverCatchment string
	landcoverType  string
}

// Normalize trims every string field, folds the enumerated fields to lower
// case and expands a nonzero Year into StartDate and EndDate. Year is kept so
// the result still reports the caller's intent.
func (f Filter) Normalize() (Filter, error) {
	verr := &core.ValidationError{}
	n := f.normalize(verr)
	if err := verr.OrNil(); err != nil {
		return Filter{}, err
	}
	return n, nil
}

func (f Filter) normalize(verr *core.ValidationError) Filter {
	n := Filter{
		ClassificationLevel: foldCase(f.ClassificationLevel),
		ClassificationName:  strings.TrimSpace(f.ClassificationName),
		Year:                f.Year,
		StartDate:           strings.TrimSpace(f.StartDate),
		EndDate:             strings.TrimSpace(f.EndDate),
		LocationName:        strings.TrimSpace(f.LocationName),
		LocationType:        foldCase(f.LocationType),
		StartValue:          f.StartValue,
		EndValue:            f.EndValue,
		Indicator:           strings.TrimSpace(f.Indicator),
		RiverCatchment:      strings.TrimSpace(f.RiverCatchment),
		LandcoverType:       strings.TrimSpace(f.LandcoverType),
	}
	if f.Year != 0 {
		if f.Year < 1 || f.Year > 9999 {
			verr.Add("year", "year %d is out of range", f.Year)
			n.StartDate, n.EndDate = "", ""
		} else {
			n.StartDate = fmt.Sprintf("%04d-01-01", f.Year)
			n.EndDate = fmt.Sprintf("%04d-12-31", f.Year)
		}
	}
	return n
}

// resolve validates f against the schema. Every problem is collected so the
// caller sees them all at once; nothing reaches the store if any are found.
func resolve(s *Schema, f Filter) (criteria, error) {
	var c criteria
	verr := &core.ValidationError{}
	n := f.normalize(verr)

	if n.ClassificationLevel != "" || n.ClassificationName != "" {
		if !s.Supports(CapClassification) {
			verr.Add("classification_level", "classification filters are not supported for %s records", s.Domain)
		} else if n.ClassificationLevel != "" {
			column, ok := s.Classification[n.ClassificationLevel]
			switch {
			case !ok:
				verr.Add("classification_level", "unknown classification level %q (expected one of %s)", f.ClassificationLevel, strings.Join(s.ClassificationLevels(), ", "))
			case n.ClassificationName != "":
				if _, err := regexp.Compile(n.ClassificationName); err != nil {
					verr.Add("classification_name", "invalid pattern: %v", err)
					break
				}
				c.classColumn = column
				c.className = n.ClassificationName
			}
		}
	}

	resolveDates(n, &c, verr)

	c.locationName = n.LocationName
	if n.LocationType != "" {
		if !contains(LocationTypes, n.LocationType) {
			verr.Add("location_type", "unknown location type %q (expected one of %s)", f.LocationType, strings.Join(LocationTypes, ", "))
		} else {
			c.locationType = n.LocationType
		}
	}

	if n.StartValue != nil || n.EndValue != nil {
		switch {
		case !s.Supports(CapValueRange):
			verr.Add("startValue", "value range filters are not supported for %s records", s.Domain)
		case n.StartValue == nil || n.EndValue == nil:
			verr.Add("startValue", "startValue and endValue must be supplied together")
		case *n.StartValue > *n.EndValue:
			verr.Add("startValue", "startValue %g is greater than endValue %g", *n.StartValue, *n.EndValue)
		default:
			low, high := *n.StartValue, *n.EndValue
			c.valueLow, c.valueHigh = &low, &high
		}
	}

	if n.Indicator != "" {
		if !s.Supports(CapIndicator) {
			verr.Add("indicator", "indicator filters are not supported for %s records", s.Domain)
		} else {
			c.indicator = n.Indicator
		}
	}
	c.riverCatchment = resolvePattern(s, CapRiverCatchment, "river_catchment", n.RiverCatchment, verr)
	c.landcoverType = resolvePattern(s, CapLandcover, "landcover_type", n.LandcoverType, verr)

	if err := verr.OrNil(); err != nil {
		return criteria{}, err
	}
	return c, nil
}

// resolveDates parses the normalized date bounds.
func resolveDates(n Filter, c *criteria, verr *core.ValidationError) {
	if n.StartDate != "" {
		t, err := time.Parse(DateLayout, n.StartDate)
		if err != nil {
			verr.Add("startDate", "%q is not a YYYY-MM-DD date", n.StartDate)
		} else {
			c.start = &t
		}
	}
	if n.EndDate != "" {
		t, err := time.Parse(DateLayout, n.EndDate)
		if err != nil {
			verr.Add("endDate", "%q is not a YYYY-MM-DD date", n.EndDate)
		} else {
			c.end = &t
		}
	}
	if c.start != nil && c.end != nil && c.start.After(*c.end) {
		verr.Add("startDate", "startDate %s is after endDate %s", c.start.Format(DateLayout), c.end.Format(DateLayout))
	}
}

func resolvePattern(s *Schema, capability Capability, field, raw string, verr *core.ValidationError) string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return ""
	}
	if !s.Supports(capability) {
		verr.Add(field, "%s filters are not supported for %s records", field, s.Domain)
		return ""
	}
	if _, err := regexp.Compile(v); err != nil {
		verr.Add(field, "invalid pattern: %v", err)
		return ""
	}
	return v
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
