// Package store is the relational store collaborator. It runs the SQL built by
// the filter package against Postgres or SQLite and hosts the small
// repositories the services need (users, records, download counters).
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"ecoindex/internal/core"
	"ecoindex/internal/filter"
)

// DB executes SQL with @name placeholders. Rows come back as column->value
// maps; every driver failure is reported as core.ErrStoreUnavailable except
// unique violations, which become core.ErrConflict.
type DB interface {
	Query(ctx context.Context, sql string, args map[string]any) ([]core.Row, error)
	Exec(ctx context.Context, sql string, args map[string]any) (int64, error)
	Ping(ctx context.Context) error
	Close() error
	Dialect() filter.Dialect
}

// Config selects a database backend.
type Config struct {
	// Driver is postgres or sqlite.
	Driver string `yaml:"driver"`
	// DSN is a postgres connection string or a SQLite file path.
	DSN string `yaml:"dsn"`
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open connects to the configured backend.
func Open(ctx context.Context, cfg Config) (DB, error) {
	switch cfg.Driver {
	case DriverPostgres:
		return OpenPostgres(ctx, cfg.DSN)
	case DriverSQLite, "":
		return OpenSQLite(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// classify maps a driver error onto the core taxonomy.
func classify(op string, err error, unique func(error) bool) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	case unique(err):
		return fmt.Errorf("%s: %w: %w", op, core.ErrConflict, err)
	default:
		return core.StoreError(op, err)
	}
}

// sortedNames returns argument names in a stable order so drivers see the
// same binding sequence for the same query.
func sortedNames(args map[string]any) []string {
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
