package store

import (
	"bufio"
	"context"
	"embed"
	"fmt"
	"strings"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Migrate applies the embedded DDL for the database's dialect. Every statement
// is idempotent, so running it against an existing database is a no-op.
func Migrate(ctx context.Context, db DB) error {
	name := "schema/" + db.Dialect().Name() + ".sql"
	ddl, err := schemaFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	for _, stmt := range splitStatements(string(ddl)) {
		if _, err := db.Exec(ctx, stmt, nil); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

// splitStatements breaks a DDL script into statements terminated by a
// semicolon at end of line, skipping blank lines and -- comments.
func splitStatements(ddl string) []string {
	scanner := bufio.NewScanner(strings.NewReader(ddl))
	var stmts []string
	var current strings.Builder

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
		current.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}
	flush()
	return stmts
}
