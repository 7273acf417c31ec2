package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ecoindex/internal/core"
	"ecoindex/internal/filter"
)

const defaultPostgresDSN = "postgres://localhost/ecoindex?sslmode=disable"

var (
	pgxPoolNewWithConfig   = pgxpool.NewWithConfig
	postgresConnectRetries = 30
	postgresRetryDelay     = 2 * time.Second
	postgresPingTimeout    = 2 * time.Second
	postgresSleep          = time.Sleep
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Postgres is a DB backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ DB = (*Postgres)(nil)

// OpenPostgres connects to dsn, retrying until the server answers a ping.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		dsn = defaultPostgresDSN
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute
	var lastErr error
	for i := 0; i < postgresConnectRetries; i++ {
		pool, err := pgxPoolNewWithConfig(ctx, cfg)
		if err != nil {
			lastErr = err
			postgresSleep(postgresRetryDelay)
			continue
		}
		ctxPing, cancel := context.WithTimeout(ctx, postgresPingTimeout)
		err = pool.Ping(ctxPing)
		cancel()
		if err == nil {
			return &Postgres{pool: pool}, nil
		}
		lastErr = err
		pool.Close()
		if ctx.Err() != nil {
			break
		}
		postgresSleep(postgresRetryDelay)
	}
	return nil, core.StoreError("connect postgres", fmt.Errorf("ping retries exhausted: %w", lastErr))
}

func (p *Postgres) Dialect() filter.Dialect { return filter.Postgres }

func (p *Postgres) Query(ctx context.Context, sql string, args map[string]any) ([]core.Row, error) {
	rows, err := p.pool.Query(ctx, sql, pgx.NamedArgs(args))
	if err != nil {
		return nil, classify("query", err, isPgUnique)
	}
	defer rows.Close()
	fields := rows.FieldDescriptions()
	var out []core.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, classify("scan", err, isPgUnique)
		}
		row := make(core.Row, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("query", err, isPgUnique)
	}
	return out, nil
}

func (p *Postgres) Exec(ctx context.Context, sql string, args map[string]any) (int64, error) {
	var (
		tag pgconn.CommandTag
		err error
	)
	if len(args) == 0 {
		tag, err = p.pool.Exec(ctx, sql)
	} else {
		tag, err = p.pool.Exec(ctx, sql, pgx.NamedArgs(args))
	}
	if err != nil {
		return 0, classify("exec", err, isPgUnique)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return classify("ping", p.pool.Ping(ctx), isPgUnique)
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func isPgUnique(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
