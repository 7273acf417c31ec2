package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoindex/internal/blob"
	"ecoindex/internal/core"
	"ecoindex/internal/export"
	"ecoindex/internal/store"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ecoindex.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsNeedOnlyASecret(t *testing.T) {
	cfg, err := Load("", envMap(map[string]string{"ECOINDEX_AUTH_SECRET": "0123456789abcdef"}))
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, store.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, blob.DriverFilesystem, cfg.Blob.Driver)
	assert.Equal(t, export.SourceSequence, cfg.Downloads.IDSource)
	assert.Equal(t, "occurrence_download", cfg.Downloads.Directories.Dir(core.DomainOccurrence))
	assert.Equal(t, "mci_download", cfg.Downloads.Directories.Dir(core.DomainMCI))
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.AuthTTL)
}

func TestMissingSecretFails(t *testing.T) {
	_, err := Load("", envMap(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.secret")
}

func TestFileThenEnv(t *testing.T) {
	path := writeFile(t, `
server:
  addr: ":9000"
  shutdown_timeout: 3s
database:
  driver: postgres
  dsn: postgres://db/ecoindex
blob:
  driver: s3
  s3:
    bucket: exports
    path_style: true
downloads:
  id_source: redis
  directories:
    occurrence: occ
redis:
  addr: localhost:6379
auth:
  secret: file-secret-0123456789
  reset_ttl: 2h
log:
  level: debug
  format: text
mail:
  reset_url: https://ecoindex.io/reset
`)
	cfg, err := Load(path, envMap(map[string]string{
		"ECOINDEX_SERVER_ADDR":       ":9100",
		"ECOINDEX_DOWNLOADS_MCI_DIR": "mci_files",
		"ECOINDEX_REDIS_DB":          "2",
	}))
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, store.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "exports", cfg.Blob.S3.Bucket)
	assert.True(t, cfg.Blob.S3.PathStyle)
	assert.Equal(t, "occ", cfg.Downloads.Directories.Dir(core.DomainOccurrence))
	assert.Equal(t, "mci_files", cfg.Downloads.Directories.Dir(core.DomainMCI))
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "file-secret-0123456789", cfg.Auth.Secret)
	assert.Equal(t, 2*time.Hour, cfg.Auth.ResetTTL)
	assert.Equal(t, "https://ecoindex.io/reset", cfg.Mail.ResetURL)
}

func TestConfigPathFromEnv(t *testing.T) {
	path := writeFile(t, "auth:\n  secret: env-located-secret-01\n")
	cfg, err := Load("", envMap(map[string]string{"ECOINDEX_CONFIG": path}))
	require.NoError(t, err)
	assert.Equal(t, "env-located-secret-01", cfg.Auth.Secret)
}

func TestUnknownKeysRejected(t *testing.T) {
	path := writeFile(t, "auth:\n  secret: x\n  sekret: y\n")
	_, err := Load(path, envMap(nil))
	assert.Error(t, err)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	_, err := Load("", envMap(map[string]string{
		"ECOINDEX_DATABASE_DRIVER":     "mysql",
		"ECOINDEX_BLOB_DRIVER":         "s3",
		"ECOINDEX_DOWNLOADS_ID_SOURCE": "redis",
		"ECOINDEX_LOG_LEVEL":           "loud",
		"ECOINDEX_LOG_FORMAT":          "xml",
	}))
	require.Error(t, err)
	for _, want := range []string{"database.driver", "blob.s3.bucket", "redis.addr", "auth.secret", "log.level", "log.format"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestDownloadDirectories(t *testing.T) {
	env := map[string]string{
		"ECOINDEX_AUTH_SECRET":             "0123456789abcdef",
		"ECOINDEX_DOWNLOADS_OCCURRENCE_DIR": "./occurrence_download",
		"ECOINDEX_DOWNLOADS_MCI_DIR":        "mci_download/",
	}
	cfg, err := Load("", envMap(env))
	require.NoError(t, err)
	assert.Equal(t, "occurrence_download", cfg.Downloads.Directories.Dir(core.DomainOccurrence))
	assert.Equal(t, "mci_download", cfg.Downloads.Directories.Dir(core.DomainMCI))

	env["ECOINDEX_DOWNLOADS_MCI_DIR"] = "occurrence_download/"
	_, err = Load("", envMap(env))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is also the occurrence directory")

	env["ECOINDEX_DOWNLOADS_MCI_DIR"] = "/var/ecoindex/mci"
	_, err = Load("", envMap(env))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "downloads.directories.mci")

	env["ECOINDEX_DOWNLOADS_MCI_DIR"] = "../mci"
	_, err = Load("", envMap(env))
	require.Error(t, err)

	cfg = Default()
	cfg.Auth.Secret = "0123456789abcdef"
	cfg.Downloads.Directories = export.Directories{core.DomainOccurrence: " ", core.DomainMCI: "mci_download"}
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "downloads.directories.occurrence: required")
}

func TestBadNumericEnv(t *testing.T) {
	_, err := Load("", envMap(map[string]string{
		"ECOINDEX_AUTH_SECRET": "0123456789abcdef",
		"ECOINDEX_REDIS_DB":    "two",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ECOINDEX_REDIS_DB")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	LogConfig{Level: "warn", Format: "text"}.NewLogger(&buf).Info("hidden")
	assert.Empty(t, buf.String())
	LogConfig{Level: "debug", Format: "json"}.NewLogger(&buf).Debug("shown", "k", "v")
	assert.True(t, strings.HasPrefix(buf.String(), "{"))
	assert.Contains(t, buf.String(), `"k":"v"`)
}
