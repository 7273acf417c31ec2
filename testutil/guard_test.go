package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestDriverImportForbidden(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"database/sql", true},
		{"database/sql/driver", true},
		{"github.com/jackc/pgx/v5/pgxpool", true},
		{"modernc.org/sqlite", true},
		{"github.com/redis/go-redis/v9", true},
		{"github.com/aws/aws-sdk-go-v2/service/s3", true},
		{"database/sqlx", false},
		{"ecoindex/internal/store", false},
	}
	for _, c := range cases {
		if got := DriverImportForbidden(c.in); got != c.want {
			t.Fatalf("DriverImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestTransportImportForbidden(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"net/http", true},
		{"net/http/httptest", true},
		{"github.com/go-chi/chi/v5", true},
		{"net/mail", false},
		{"net/url", false},
	}
	for _, c := range cases {
		if got := TransportImportForbidden(c.in); got != c.want {
			t.Fatalf("TransportImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestAny(t *testing.T) {
	pred := Any(DriverImportForbidden, TransportImportForbidden)
	if !pred("net/http") || !pred("modernc.org/sqlite") || pred("fmt") {
		t.Fatalf("Any did not combine predicates")
	}
}

type recordingFatal struct{ msg string }

func (r *recordingFatal) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	write := func(name, src string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write("ok.go", "package tmp\nimport \"fmt\"\nfunc X(){fmt.Println(1)}")
	write("bad.go", "package tmp\nimport _ \"net/http\"\n")
	write("bad_test.go", "package tmp\nimport _ \"database/sql\"\n")

	viols, err := directImportViolations(dir, Any(DriverImportForbidden, TransportImportForbidden))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != "net/http (in bad.go)" {
		t.Fatalf("unexpected violations: %v", viols)
	}

	rec := &recordingFatal{}
	failIfDirectViolations(rec, "demo", viols)
	if rec.msg == "" {
		t.Fatalf("expected failure message")
	}
	rec = &recordingFatal{}
	failIfDirectViolations(rec, "demo", nil)
	if rec.msg != "" {
		t.Fatalf("unexpected failure: %s", rec.msg)
	}

	if _, err := directImportViolations(filepath.Join(dir, "missing"), DriverImportForbidden); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}
