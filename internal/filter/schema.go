package filter

import (
	"fmt"
	"sort"

	"ecoindex/internal/core"
)

// Capability flags the optional filter fields a domain understands.
type Capability uint8

const (
	CapClassification Capability = 1 << iota
	CapValueRange
	CapIndicator
	CapRiverCatchment
	CapLandcover
)

// Schema maps the generic filter onto one record domain's tables.
type Schema struct {
	Domain core.Domain

	// Table is the schema-qualified record table.
	Table string
	// LocationTable links records to named locations through LocationKey.
	LocationTable string
	LocationKey   string
	// LocationRefTable describes each named location and its type.
	LocationRefTable string

	// Columns is the fixed export column order. It doubles as the select list
	// so CSV layout never depends on what the store happens to return.
	Columns []string
	// DateColumns hold calendar dates rather than instants.
	DateColumns []string

	// Classification maps a taxonomic level to the column holding it.
	Classification map[string]string

	Capabilities Capability
}

// Supports reports whether the schema accepts filters of the given kind.
func (s *Schema) Supports(c Capability) bool { return s.Capabilities&c != 0 }

// IsDateColumn reports whether column holds a calendar date.
func (s *Schema) IsDateColumn(column string) bool { return contains(s.DateColumns, column) }

// ClassificationLevels returns the accepted levels in sorted order.
func (s *Schema) ClassificationLevels() []string {
	levels := make([]string, 0, len(s.Classification))
	for level := range s.Classification {
		levels = append(levels, level)
	}
	sort.Strings(levels)
	return levels
}

// ClassificationColumn returns the column backing a level.
func (s *Schema) ClassificationColumn(level string) (string, bool) {
	column, ok := s.Classification[foldCase(level)]
	return column, ok
}

// Occurrence is the biodiversity sighting schema.
var Occurrence = &Schema{
	Domain:           core.DomainOccurrence,
	Table:            "main.occurrence",
	LocationTable:    "main.location",
	LocationKey:      "occurrence_id",
	LocationRefTable: "main.locationref",
	Columns: []string{
		"id",
		"scientific_name",
		"observation_count",
		"observation_date",
		"occurrence_latitude",
		"occurrence_longitude",
		"occurrence_elevation",
		"occurrence_depth",
		"taxon_rank",
		"infraspecific_epithet",
		"occurrence_species",
		"occurrence_genus",
		"occurrence_family",
		"occurrence_order",
		"occurrence_class",
		"occurrence_phylum",
		"occurrence_kingdom",
		"created_at",
		"updated_at",
	},
	Classification: map[string]string{
		"phylum":  "occurrence_phylum",
		"kingdom": "occurrence_kingdom",
		"class":   "occurrence_class",
		"order":   "occurrence_order",
		"family":  "occurrence_family",
		"genus":   "occurrence_genus",
		"species": "occurrence_species",
	},
	DateColumns:  []string{"observation_date"},
	Capabilities: CapClassification,
}

// MCI is the macroinvertebrate community index schema.
var MCI = &Schema{
	Domain:           core.DomainMCI,
	Table:            "main.mci",
	LocationTable:    "main.mci_location",
	LocationKey:      "mci_id",
	LocationRefTable: "main.locationref",
	Columns: []string{
		"id",
		"value",
		"indicator",
		"observation_date",
		"occurrence_latitude",
		"occurrence_longitude",
		"river_catchment",
		"landcover_type",
		"created_at",
		"updated_at",
	},
	DateColumns:  []string{"observation_date"},
	Capabilities: CapValueRange | CapIndicator | CapRiverCatchment | CapLandcover,
}

// SchemaFor returns the schema registered for a domain.
func SchemaFor(d core.Domain) (*Schema, error) {
	switch d {
	case core.DomainOccurrence:
		return Occurrence, nil
	case core.DomainMCI:
		return MCI, nil
	default:
		return nil, fmt.Errorf("no filter schema for domain %q", d)
	}
}
