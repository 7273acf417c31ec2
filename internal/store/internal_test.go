package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoindex/internal/core"
)

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements(`-- header
CREATE TABLE a (
    id INTEGER
);

INSERT INTO a VALUES (1);
SELECT 1`)
	require.Len(t, stmts, 3)
	assert.Equal(t, "CREATE TABLE a (\n    id INTEGER\n);", stmts[0])
	assert.Equal(t, "SELECT 1", stmts[2])
}

func TestEmbeddedSchemasSplit(t *testing.T) {
	for _, name := range []string{"schema/postgres.sql", "schema/sqlite.sql"} {
		ddl, err := schemaFS.ReadFile(name)
		require.NoError(t, err, name)
		stmts := splitStatements(string(ddl))
		assert.GreaterOrEqual(t, len(stmts), 10, name)
	}
}

func TestOpenPostgresRetriesThenFails(t *testing.T) {
	origNew, origRetries, origSleep := pgxPoolNewWithConfig, postgresConnectRetries, postgresSleep
	t.Cleanup(func() {
		pgxPoolNewWithConfig, postgresConnectRetries, postgresSleep = origNew, origRetries, origSleep
	})
	attempts := 0
	pgxPoolNewWithConfig = func(context.Context, *pgxpool.Config) (*pgxpool.Pool, error) {
		attempts++
		return nil, errors.New("connection refused")
	}
	postgresConnectRetries = 3
	postgresSleep = func(time.Duration) {}

	_, err := OpenPostgres(context.Background(), "postgres://user:pw@db.invalid:5432/ecoindex")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
	assert.Equal(t, 3, attempts)
}

func TestOpenPostgresRejectsBadDSN(t *testing.T) {
	_, err := OpenPostgres(context.Background(), "postgres://%zz")
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	never := func(error) bool { return false }
	assert.NoError(t, classify("op", nil, never))
	assert.ErrorIs(t, classify("op", errors.New("boom"), never), core.ErrStoreUnavailable)
	assert.ErrorIs(t, classify("op", &pgconn.PgError{Code: uniqueViolation}, isPgUnique), core.ErrConflict)
	assert.False(t, isPgUnique(&pgconn.PgError{Code: "23503"}))
	deadline := classify("op", context.DeadlineExceeded, never)
	assert.ErrorIs(t, deadline, context.DeadlineExceeded)
	assert.NotErrorIs(t, deadline, core.ErrStoreUnavailable)
}

func TestSQLiteRegexpFunction(t *testing.T) {
	match, err := sqliteRegexp(nil, []driver.Value{"(?i)avon", "Avon River"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), match)
	match, err = sqliteRegexp(nil, []driver.Value{"(?i)avon", nil})
	require.NoError(t, err)
	assert.Equal(t, int64(0), match)
	_, err = sqliteRegexp(nil, []driver.Value{"(", "x"})
	assert.Error(t, err)
	_, err = sqliteRegexp(nil, []driver.Value{int64(1), "x"})
	assert.Error(t, err)
}

func TestSQLiteFoldFunction(t *testing.T) {
	folded, err := sqliteFold(nil, []driver.Value{"NGĀI TAHU"})
	require.NoError(t, err)
	assert.Equal(t, "ngāi tahu", folded)
	folded, err = sqliteFold(nil, []driver.Value{[]byte("Ngāi Tahu")})
	require.NoError(t, err)
	assert.Equal(t, "ngāi tahu", folded)
	folded, err = sqliteFold(nil, []driver.Value{nil})
	require.NoError(t, err)
	assert.Nil(t, folded)
}

func TestValueConversions(t *testing.T) {
	n, err := asInt64(int32(7))
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	_, err = asInt64(struct{}{})
	assert.Error(t, err)
	assert.True(t, asBool(int64(1)))
	assert.True(t, asBool("true"))
	assert.False(t, asBool(nil))
	assert.Equal(t, "", asString(nil))
	assert.Equal(t, "x", asString([]byte("x")))
	ts := asTime("2021-06-01 09:30:00")
	assert.Equal(t, time.Date(2021, 6, 1, 9, 30, 0, 0, time.UTC), ts)
	assert.True(t, asTime(42).IsZero())
}
