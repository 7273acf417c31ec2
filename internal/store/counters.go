package store

import (
	"context"
	"fmt"

	"ecoindex/internal/core"
)

// Counters hands out download ids from main.download_counter. The increment
// and the read happen in one statement, so concurrent callers never observe
// the same value.
type Counters struct {
	db DB
}

// NewCounters returns the counter repository over db.
func NewCounters(db DB) *Counters { return &Counters{db: db} }

// Next returns the current counter value for domain and advances it.
func (c *Counters) Next(ctx context.Context, domain core.Domain) (int64, error) {
	rows, err := c.db.Query(ctx,
		`UPDATE main.download_counter SET next_id = next_id + 1
WHERE domain = @domain
RETURNING next_id - 1 AS id`,
		map[string]any{"domain": string(domain)})
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, core.StoreError("next download id", fmt.Errorf("no counter row for %s", domain))
	}
	id, err := asInt64(rows[0]["id"])
	if err != nil {
		return 0, core.StoreError("next download id", err)
	}
	return id, nil
}
