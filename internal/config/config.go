// Package config loads ecoindex settings from an optional YAML file, then
// ECOINDEX_* environment variables, on top of built-in defaults.
//
//	ECOINDEX_CONFIG                 path of the YAML file (when --config is not given)
//	ECOINDEX_SERVER_ADDR            listen address (default :8000)
//	ECOINDEX_DATABASE_DRIVER        postgres|sqlite (default sqlite)
//	ECOINDEX_DATABASE_DSN           postgres URL or SQLite path
//	ECOINDEX_BLOB_DRIVER            fs|s3|memory (default fs)
//	ECOINDEX_BLOB_FS_ROOT           directory root when driver=fs
//	ECOINDEX_BLOB_S3_*              BUCKET, REGION, ENDPOINT, PATH_STYLE, ACCESS_KEY_ID, SECRET_ACCESS_KEY
//	ECOINDEX_DOWNLOADS_ID_SOURCE    sequence|redis|scan (default sequence)
//	ECOINDEX_DOWNLOADS_<DOMAIN>_DIR download directory per domain
//	ECOINDEX_REDIS_ADDR             redis address, required for the redis id source
//	ECOINDEX_REDIS_PASSWORD, ECOINDEX_REDIS_DB
//	ECOINDEX_AUTH_SECRET            token signing secret (required)
//	ECOINDEX_AUTH_ISSUER
//	ECOINDEX_AUTH_BCRYPT_COST
//	ECOINDEX_LOG_LEVEL              debug|info|warn|error (default info)
//	ECOINDEX_LOG_FORMAT             json|text (default json)
//	ECOINDEX_MAIL_RESET_URL         page password reset links point at
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ecoindex/internal/auth"
	"ecoindex/internal/blob"
	"ecoindex/internal/core"
	"ecoindex/internal/export"
	"ecoindex/internal/store"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ECOINDEX_"

// Config is the complete ecoindex configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  store.Config    `yaml:"database"`
	Blob      blob.Config     `yaml:"blob"`
	Downloads DownloadsConfig `yaml:"downloads"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
	Mail      MailConfig      `yaml:"mail"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DownloadsConfig selects the id source and where exports are written.
type DownloadsConfig struct {
	IDSource    string             `yaml:"id_source"`
	Directories export.Directories `yaml:"directories"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	auth.TokenConfig `yaml:",inline"`
	BcryptCost       int `yaml:"bcrypt_cost"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MailConfig struct {
	ResetURL string `yaml:"reset_url"`
}

// Default returns the built-in settings: SQLite, filesystem blobs, sequence ids.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database:  store.Config{Driver: store.DriverSQLite, DSN: "ecoindex.db"},
		Blob:      blob.Config{Driver: blob.DriverFilesystem, Root: "./blobdata"},
		Downloads: DownloadsConfig{IDSource: export.SourceSequence, Directories: export.DefaultDirectories()},
		Auth: AuthConfig{TokenConfig: auth.TokenConfig{
			Issuer:        auth.DefaultIssuer,
			AuthAudience:  auth.DefaultAuthAudience,
			ResetAudience: auth.DefaultResetAudience,
			AuthTTL:       auth.DefaultAuthTTL,
			ResetTTL:      auth.DefaultResetTTL,
		}},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads path (if non-empty), applies environment overrides from getenv
// and validates the result. A nil getenv reads the process environment.
func Load(path string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()
	if path == "" {
		path = getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(raw []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(name string, dst *string) {
		if v := strings.TrimSpace(getenv(EnvPrefix + name)); v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(name string, dst *int) {
		v := strings.TrimSpace(getenv(EnvPrefix + name))
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = n
	}

	str("SERVER_ADDR", &cfg.Server.Addr)
	str("DATABASE_DRIVER", &cfg.Database.Driver)
	str("DATABASE_DSN", &cfg.Database.DSN)

	var driver string
	str("BLOB_DRIVER", &driver)
	if driver != "" {
		cfg.Blob.Driver = blob.Driver(driver)
	}
	str("BLOB_FS_ROOT", &cfg.Blob.Root)
	str("BLOB_S3_BUCKET", &cfg.Blob.S3.Bucket)
	str("BLOB_S3_REGION", &cfg.Blob.S3.Region)
	str("BLOB_S3_ENDPOINT", &cfg.Blob.S3.Endpoint)
	str("BLOB_S3_ACCESS_KEY_ID", &cfg.Blob.S3.AccessKeyID)
	str("BLOB_S3_SECRET_ACCESS_KEY", &cfg.Blob.S3.SecretAccessKey)
	if v := getenv(EnvPrefix + "BLOB_S3_PATH_STYLE"); v != "" {
		cfg.Blob.S3.PathStyle = strings.EqualFold(strings.TrimSpace(v), "true")
	}

	str("DOWNLOADS_ID_SOURCE", &cfg.Downloads.IDSource)
	for _, d := range core.Domains() {
		dir := cfg.Downloads.Directories.Dir(d)
		str("DOWNLOADS_"+strings.ToUpper(string(d))+"_DIR", &dir)
		if cfg.Downloads.Directories == nil {
			cfg.Downloads.Directories = export.Directories{}
		}
		cfg.Downloads.Directories[d] = dir
	}

	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	num("REDIS_DB", &cfg.Redis.DB)

	str("AUTH_SECRET", &cfg.Auth.Secret)
	str("AUTH_ISSUER", &cfg.Auth.Issuer)
	num("AUTH_BCRYPT_COST", &cfg.Auth.BcryptCost)

	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	str("MAIL_RESET_URL", &cfg.Mail.ResetURL)
	return errors.Join(errs...)
}

// Validate reports every setting that would stop the server from starting.
func (c Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case store.DriverPostgres, store.DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver))
	}
	switch c.Blob.Driver {
	case blob.DriverFilesystem, blob.DriverMemory, "":
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, errors.New("blob.s3.bucket: required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("blob.driver: unknown driver %q", c.Blob.Driver))
	}
	switch c.Downloads.IDSource {
	case export.SourceSequence, export.SourceScan, "":
	case export.SourceRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr: required for the redis id source"))
		}
	default:
		errs = append(errs, fmt.Errorf("downloads.id_source: unknown source %q", c.Downloads.IDSource))
	}
	errs = append(errs, c.Downloads.validate()...)
	if c.Auth.Secret == "" {
		errs = append(errs, errors.New("auth.secret: required"))
	}
	if _, err := c.Log.level(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// validate requires one relative directory per domain, none shared.
func (c DownloadsConfig) validate() []error {
	var errs []error
	owner := map[string]core.Domain{}
	for _, d := range core.Domains() {
		key := "downloads.directories." + string(d)
		raw := c.Directories[d]
		dir := export.CleanDir(raw)
		switch {
		case dir == "":
			errs = append(errs, fmt.Errorf("%s: required", key))
		case path.IsAbs(dir) || dir == ".." || strings.HasPrefix(dir, "../"):
			errs = append(errs, fmt.Errorf("%s: %q must be relative to the blob root", key, raw))
		default:
			if other, ok := owner[dir]; ok {
				errs = append(errs, fmt.Errorf("%s: %q is also the %s directory", key, raw, other))
			}
			owner[dir] = d
		}
	}
	return errs
}

func (c LogConfig) level() (slog.Level, error) {
	var lvl slog.Level
	if c.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// NewLogger builds the process logger writing to w.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	lvl, err := c.level()
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(c.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
