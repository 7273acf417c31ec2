// Package records is the domain service shared by the occurrence and MCI
// endpoints: list everything, export a filtered selection, and serve a stored
// export back by id.
package records

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"ecoindex/internal/core"
	"ecoindex/internal/export"
	"ecoindex/internal/filter"
)

// Fetcher runs compiled record queries.
type Fetcher interface {
	Dialect() filter.Dialect
	Fetch(ctx context.Context, q filter.Query) ([]core.Row, error)
}

// Exports stores and reopens CSV downloads.
type Exports interface {
	Export(ctx context.Context, schema *filter.Schema, rows []core.Row) (export.Artifact, error)
	Open(ctx context.Context, schema *filter.Schema, id int64) (export.Artifact, io.ReadCloser, error)
}

// Service serves one record domain.
type Service struct {
	schema  *filter.Schema
	records Fetcher
	exports Exports
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService returns a Service for schema.
func NewService(schema *filter.Schema, records Fetcher, exports Exports, opts ...Option) *Service {
	s := &Service{
		schema:  schema,
		records: records,
		exports: exports,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Domain returns the record domain served.
func (s *Service) Domain() core.Domain { return s.schema.Domain }

// Schema returns the domain schema.
func (s *Service) Schema() *filter.Schema { return s.schema }

// ListAll returns every record of the domain in id order. An empty table
// yields core.ErrNotFound.
func (s *Service) ListAll(ctx context.Context) ([]core.Row, error) {
	rows, err := s.records.Fetch(ctx, filter.SelectAll(s.schema))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, core.NotFoundf("no %s records found", s.schema.Domain)
	}
	return rows, nil
}

// CreateDownload selects the records matching f, stores them as CSV and
// returns the download id. An invalid filter is rejected before the store is
// queried.
func (s *Service) CreateDownload(ctx context.Context, f filter.Filter) (int64, error) {
	q, err := filter.Compile(s.schema, s.records.Dialect(), f)
	if err != nil {
		return 0, err
	}
	rows, err := s.records.Fetch(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("select %s records: %w", s.schema.Domain, err)
	}
	art, err := s.exports.Export(ctx, s.schema, rows)
	if err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "download created", "domain", s.schema.Domain, "id", art.ID, "rows", art.Rows)
	return art.ID, nil
}

// OpenDownload returns a stored download. The caller closes the reader.
func (s *Service) OpenDownload(ctx context.Context, id int64) (export.Artifact, io.ReadCloser, error) {
	return s.exports.Open(ctx, s.schema, id)
}
