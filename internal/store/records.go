package store

import (
	"context"

	"ecoindex/internal/core"
	"ecoindex/internal/filter"
)

// Records runs compiled record queries.
type Records struct {
	db DB
}

// NewRecords returns the records repository over db.
func NewRecords(db DB) *Records { return &Records{db: db} }

// Dialect reports the SQL dialect queries must be compiled for.
func (r *Records) Dialect() filter.Dialect { return r.db.Dialect() }

// Fetch executes q and returns the matching rows in query order.
func (r *Records) Fetch(ctx context.Context, q filter.Query) ([]core.Row, error) {
	return r.db.Query(ctx, q.SQL, q.Args)
}
