// Package core holds the small set of types shared by every ecoindex layer:
// the record domains, result rows, and the error taxonomy.
package core

import "fmt"

// Domain identifies a record domain that can be filtered and exported.
type Domain string

const (
	// DomainOccurrence is the biodiversity sighting domain.
	DomainOccurrence Domain = "occurrence"
	// DomainMCI is the macroinvertebrate community index domain.
	DomainMCI Domain = "mci"
)

// Domains lists every known domain in a stable order.
func Domains() []Domain { return []Domain{DomainOccurrence, DomainMCI} }

// ParseDomain converts a string into a known Domain.
func ParseDomain(s string) (Domain, error) {
	switch Domain(s) {
	case DomainOccurrence, DomainMCI:
		return Domain(s), nil
	default:
		return "", fmt.Errorf("unknown record domain %q", s)
	}
}

// Row is one record returned by the relational store, keyed by column name.
// Rows are read-only projections; nothing in ecoindex mutates them.
type Row map[string]any
