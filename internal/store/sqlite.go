package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"ecoindex/internal/core"
	"ecoindex/internal/filter"
)

const defaultSQLitePath = "ecoindex.db"

var registerFuncs sync.Once

// SQLite is a DB backed by a local SQLite file through modernc.org/sqlite.
// The handle is limited to one connection: SQLite serialises writers anyway,
// and an in-memory database only exists on the connection that created it.
type SQLite struct {
	db *sql.DB
}

var _ DB = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the database at path. Use ":memory:"
// for a throwaway database.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		path = defaultSQLitePath
	}
	var regErr error
	registerFuncs.Do(func() {
		regErr = errors.Join(
			sqlite.RegisterDeterministicScalarFunction("regexp", 2, sqliteRegexp),
			sqlite.RegisterDeterministicScalarFunction(filter.FoldFunc, 1, sqliteFold),
		)
	})
	if regErr != nil {
		return nil, fmt.Errorf("register functions: %w", regErr)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, core.StoreError("open sqlite", err)
	}
	return &SQLite{db: db}, nil
}

// regexpCache holds compiled patterns keyed by source; REGEXP runs once per row.
var regexpCache sync.Map

// sqliteRegexp implements `value REGEXP pattern`, which SQLite evaluates as
// regexp(pattern, value). NULL values never match.
func sqliteRegexp(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	pattern, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("regexp: pattern must be text")
	}
	var value string
	switch v := args[1].(type) {
	case nil:
		return int64(0), nil
	case string:
		value = v
	case []byte:
		value = string(v)
	default:
		value = fmt.Sprint(v)
	}
	re, ok := regexpCache.Load(pattern)
	if !ok {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("regexp: %w", err)
		}
		re, _ = regexpCache.LoadOrStore(pattern, compiled)
	}
	if re.(*regexp.Regexp).MatchString(value) {
		return int64(1), nil
	}
	return int64(0), nil
}

// sqliteFold applies filter.Fold to text. NULL stays NULL.
func sqliteFold(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return filter.Fold(v), nil
	case []byte:
		return filter.Fold(string(v)), nil
	default:
		return filter.Fold(fmt.Sprint(v)), nil
	}
}

func (s *SQLite) Dialect() filter.Dialect { return filter.SQLite }

func (s *SQLite) Query(ctx context.Context, query string, args map[string]any) ([]core.Row, error) {
	rows, err := s.db.QueryContext(ctx, query, namedArgs(args)...)
	if err != nil {
		return nil, classify("query", err, isSQLiteUnique)
	}
	defer func() { _ = rows.Close() }()
	cols, err := rows.Columns()
	if err != nil {
		return nil, classify("columns", err, isSQLiteUnique)
	}
	var out []core.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, classify("scan", err, isSQLiteUnique)
		}
		row := make(core.Row, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("query", err, isSQLiteUnique)
	}
	return out, nil
}

func (s *SQLite) Exec(ctx context.Context, query string, args map[string]any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, namedArgs(args)...)
	if err != nil {
		return 0, classify("exec", err, isSQLiteUnique)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify("exec", err, isSQLiteUnique)
	}
	return n, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return classify("ping", s.db.PingContext(ctx), isSQLiteUnique)
}

func (s *SQLite) Close() error { return s.db.Close() }

func namedArgs(args map[string]any) []any {
	out := make([]any, 0, len(args))
	for _, name := range sortedNames(args) {
		out = append(out, sql.Named(name, args[name]))
	}
	return out
}

func isSQLiteUnique(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
