package filter

import (
	"fmt"
	"strings"
)

// Aliases used by every generated query.
const (
	recordAlias      = "r"
	locationAlias    = "l"
	locationRefAlias = "lr"
)

// Query is executable SQL with @name placeholders and the values bound to them.
type Query struct {
	SQL  string
	Args map[string]any
}

// SelectAll returns the unfiltered query for a schema.
func SelectAll(s *Schema) Query {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s\nFROM %s AS %s", s.selectList(), s.Table, recordAlias)
	fmt.Fprintf(&b, "\nORDER BY %s.id", recordAlias)
	return Query{SQL: b.String(), Args: map[string]any{}}
}

// Compile validates f against the schema and returns the query selecting the
// matching records. A filter with no populated field compiles to SelectAll.
// Validation runs to completion before any SQL is produced.
func Compile(s *Schema, d Dialect, f Filter) (Query, error) {
	if s == nil || d == nil {
		return Query{}, fmt.Errorf("filter: schema and dialect required")
	}
	c, err := resolve(s, f)
	if err != nil {
		return Query{}, err
	}
	if f.IsEmpty() {
		return SelectAll(s), nil
	}

	b := &clauseBuilder{args: map[string]any{}}
	b.text.WriteString(s.baseQuery())

	if c.classColumn != "" {
		b.add(d.Match(col(c.classColumn), "classification_name"), "classification_name", d.MatchArg(c.className))
	}
	if c.valueLow != nil && c.valueHigh != nil {
		b.add(col("value")+" >= @start_value AND "+col("value")+" <= @end_value", "start_value", *c.valueLow)
		b.args["end_value"] = *c.valueHigh
	}
	if c.indicator != "" {
		b.add(d.Equal(col("indicator"), "indicator"), "indicator", d.EqualArg(c.indicator))
	}
	if c.riverCatchment != "" {
		b.add(d.Match(col("river_catchment"), "river_catchment"), "river_catchment", d.MatchArg(c.riverCatchment))
	}
	if c.landcoverType != "" {
		b.add(d.Match(col("landcover_type"), "landcover_type"), "landcover_type", d.MatchArg(c.landcoverType))
	}
	switch {
	case c.start != nil && c.end != nil:
		b.add(col("observation_date")+" >= @start_date AND "+col("observation_date")+" <= @end_date", "start_date", d.DateArg(*c.start))
		b.args["end_date"] = d.DateArg(*c.end)
	case c.start != nil:
		b.add(col("observation_date")+" >= @start_date", "start_date", d.DateArg(*c.start))
	case c.end != nil:
		b.add(col("observation_date")+" <= @end_date", "end_date", d.DateArg(*c.end))
	}
	if c.locationName != "" {
		b.add(d.Equal(locationRefAlias+".name", "location_name"), "location_name", d.EqualArg(c.locationName))
	}
	if c.locationType != "" {
		b.add("LOWER("+locationRefAlias+".locationtype) = @location_type", "location_type", c.locationType)
	}

	fmt.Fprintf(&b.text, "\nORDER BY %s.id", recordAlias)
	return Query{SQL: b.text.String(), Args: b.args}, nil
}

// clauseBuilder appends predicates, emitting WHERE for the first one and AND
// for every later one, so any subset of predicates composes.
type clauseBuilder struct {
	text  strings.Builder
	args  map[string]any
	where bool
}

func (b *clauseBuilder) add(predicate, param string, value any) {
	if b.where {
		b.text.WriteString("\n  AND ")
	} else {
		b.text.WriteString("\nWHERE ")
		b.where = true
	}
	b.text.WriteString(predicate)
	b.args[param] = value
}

// baseQuery joins records to their locations. The joins are outer so records
// without a location still match filters that do not mention one; DISTINCT
// collapses records linked to several locations.
func (s *Schema) baseQuery() string {
	return fmt.Sprintf("SELECT DISTINCT %s\nFROM %s AS %s\nLEFT JOIN %s AS %s ON %s.%s = %s.id\nLEFT JOIN %s AS %s ON %s.name = %s.location_name",
		s.selectList(),
		s.Table, recordAlias,
		s.LocationTable, locationAlias, locationAlias, s.LocationKey, recordAlias,
		s.LocationRefTable, locationRefAlias, locationRefAlias, locationAlias,
	)
}

func (s *Schema) selectList() string {
	cols := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = col(c)
	}
	return strings.Join(cols, ", ")
}

func col(name string) string { return recordAlias + "." + name }
