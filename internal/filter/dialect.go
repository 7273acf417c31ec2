package filter

import (
	"time"

	"golang.org/x/text/cases"
)

// Dialect captures the few places Postgres and SQLite disagree. Both accept
// @name placeholders, so placeholder syntax is not part of the dialect.
type Dialect interface {
	Name() string
	// Match renders a case-insensitive regular expression test of column
	// against the named parameter.
	Match(column, param string) string
	// MatchArg converts a caller pattern into the argument Match expects.
	MatchArg(pattern string) any
	// Equal renders a case-insensitive equality test of column against the
	// named parameter.
	Equal(column, param string) string
	// EqualArg converts a caller value into the argument Equal expects.
	EqualArg(value string) any
	// DateArg converts a calendar date into a bindable argument.
	DateArg(t time.Time) any
}

// Postgres targets PostgreSQL through pgx named arguments.
var Postgres Dialect = postgresDialect{}

// SQLite targets SQLite with registered REGEXP and FoldFunc functions.
var SQLite Dialect = sqliteDialect{}

type postgresDialect struct{}

func (postgresDialect) Name() string                      { return "postgres" }
func (postgresDialect) Match(column, param string) string { return column + " ~* @" + param }
func (postgresDialect) MatchArg(pattern string) any       { return pattern }
func (postgresDialect) DateArg(t time.Time) any           { return t }

func (postgresDialect) Equal(column, param string) string {
	return "LOWER(" + column + ") = LOWER(@" + param + ")"
}
func (postgresDialect) EqualArg(value string) any { return value }

type sqliteDialect struct{}

func (sqliteDialect) Name() string                      { return "sqlite" }
func (sqliteDialect) Match(column, param string) string { return column + " REGEXP @" + param }
func (sqliteDialect) MatchArg(pattern string) any       { return "(?i)" + pattern }

// SQLite's LOWER only folds ASCII, so equality goes through FoldFunc with the
// argument folded the same way up front.
func (sqliteDialect) Equal(column, param string) string {
	return FoldFunc + "(" + column + ") = @" + param
}
func (sqliteDialect) EqualArg(value string) any { return Fold(value) }

// DateArg keeps dates as ISO text; SQLite compares them lexically.
func (sqliteDialect) DateArg(t time.Time) any { return t.Format(DateLayout) }

// FoldFunc names the SQL function a SQLite store registers to apply Fold.
const FoldFunc = "casefold"

// Fold applies Unicode case folding, so "NGĀI TAHU" and "Ngāi Tahu" compare
// equal.
func Fold(s string) string { return cases.Fold().String(s) }
