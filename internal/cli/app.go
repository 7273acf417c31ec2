package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"ecoindex/internal/adapters/api"
	"ecoindex/internal/auth"
	"ecoindex/internal/blob"
	"ecoindex/internal/config"
	"ecoindex/internal/export"
	"ecoindex/internal/filter"
	"ecoindex/internal/metrics"
	"ecoindex/internal/records"
	"ecoindex/internal/store"
)

// app is the wired service graph. close releases everything it opened.
type app struct {
	db      store.DB
	users   *auth.Service
	handler *api.Handler
	closers []func() error
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// openStore connects and applies the schema.
func openStore(ctx context.Context, cfg store.Config) (store.DB, error) {
	db, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := store.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func newUserService(cfg config.Config, db store.DB, logger *slog.Logger) (*auth.Service, error) {
	tokens, err := auth.NewTokenService(cfg.Auth.TokenConfig)
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}
	return auth.NewService(store.NewUsers(db), tokens,
		auth.WithHasher(auth.NewHasher(cfg.Auth.BcryptCost)),
		auth.WithMailer(auth.NewLogMailer(logger)),
		auth.WithResetURL(cfg.Mail.ResetURL),
		auth.WithLogger(logger),
	), nil
}

func buildApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}
	db, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		_ = a.close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	var rdb *redis.Client
	if cfg.Downloads.IDSource == export.SourceRedis {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = a.close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
	}
	var cmdable redis.Cmdable
	if rdb != nil {
		cmdable = rdb
	}
	ids, err := export.NewIDSource(cfg.Downloads.IDSource, store.NewCounters(db), cmdable, blobs, cfg.Downloads.Directories)
	if err != nil {
		_ = a.close()
		return nil, err
	}

	m := metrics.New()
	exporter := export.New(blobs, ids,
		export.WithDirectories(cfg.Downloads.Directories),
		export.WithRecorder(m),
		export.WithLogger(logger),
	)
	users, err := newUserService(cfg, db, logger)
	if err != nil {
		_ = a.close()
		return nil, err
	}
	a.users = users

	recs := store.NewRecords(db)
	a.handler = api.NewHandler(api.Config{
		Occurrence: records.NewService(filter.Occurrence, recs, exporter, records.WithLogger(logger)),
		MCI:        records.NewService(filter.MCI, recs, exporter, records.WithLogger(logger)),
		Users:      users,
		Metrics:    m.Handler(),
		Observer:   m,
		Health:     db.Ping,
		Logger:     logger,
	})
	logger.Info("ecoindex wired",
		"database", cfg.Database.Driver,
		"blob", blobs.Driver(),
		"id_source", cfg.Downloads.IDSource,
	)
	return a, nil
}
