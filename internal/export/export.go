// Package export persists filtered record sets as numbered CSV downloads and
// serves them back by id.
//
// Each download lives in the blob store at <dir>/file_<id>.csv, where dir is
// the domain's download directory. Writes are create-only: an id is used at
// most once and an existing download is never replaced.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"ecoindex/internal/blob"
	"ecoindex/internal/core"
	"ecoindex/internal/filter"
)

const (
	// ContentType is served with every download.
	ContentType = "text/csv"
	// Filename is the attachment name clients receive regardless of domain.
	Filename = "export.csv"
)

// Export outcomes reported to the Recorder.
const (
	OutcomeOK       = "ok"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Artifact describes a stored download.
type Artifact struct {
	Domain      core.Domain `json:"domain"`
	ID          int64       `json:"id"`
	Key         string      `json:"key"`
	Rows        int         `json:"rows"`
	Size        int64       `json:"size_bytes"`
	ContentType string      `json:"content_type"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Directories maps each domain to the blob prefix holding its downloads.
type Directories map[core.Domain]string

// DefaultDirectories are the directory names older deployments wrote to.
func DefaultDirectories() Directories {
	return Directories{
		core.DomainOccurrence: "occurrence_download",
		core.DomainMCI:        "mci_download",
	}
}

// Dir returns the download directory for domain in canonical form, so blob
// keys and scan prefixes agree however the directory was written.
func (d Directories) Dir(domain core.Domain) string {
	if dir := CleanDir(d[domain]); dir != "" {
		return dir
	}
	return string(domain) + "_download"
}

// CleanDir returns dir as a slash separated blob prefix with no leading "./"
// and no trailing slash. A blank dir or "." cleans to "".
func CleanDir(dir string) string {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return ""
	}
	dir = path.Clean(dir)
	if dir == "." {
		return ""
	}
	return dir
}

// Key returns the blob key of download id in domain.
func (d Directories) Key(domain core.Domain, id int64) string {
	return path.Join(d.Dir(domain), fileName(id))
}

func fileName(id int64) string { return "file_" + strconv.FormatInt(id, 10) + ".csv" }

// Recorder observes finished exports.
type Recorder interface {
	ExportFinished(domain core.Domain, outcome string, rows int)
}

// Exporter renders record sets to CSV and stores them under allocated ids.
type Exporter struct {
	blobs  blob.Store
	ids    IDSource
	dirs   Directories
	rec    Recorder
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithDirectories overrides the per-domain download directories.
func WithDirectories(d Directories) Option {
	return func(e *Exporter) {
		if len(d) > 0 {
			e.dirs = d
		}
	}
}

// WithRecorder reports every export outcome to r.
func WithRecorder(r Recorder) Option { return func(e *Exporter) { e.rec = r } }

// WithLogger sets the logger used for export events.
func WithLogger(l *slog.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// New constructs an Exporter writing to blobs with ids from ids.
func New(blobs blob.Store, ids IDSource, opts ...Option) *Exporter {
	e := &Exporter{
		blobs:  blobs,
		ids:    ids,
		dirs:   DefaultDirectories(),
		logger: slog.New(slog.DiscardHandler),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Directories returns the directories the exporter writes to.
func (e *Exporter) Directories() Directories { return e.dirs }

// Export allocates an id, renders rows with the schema's export columns and
// stores the file. The header is written even when rows is empty. If the key
// is already taken the call fails with core.ErrConflict and the existing
// download is left untouched.
func (e *Exporter) Export(ctx context.Context, schema *filter.Schema, rows []core.Row) (Artifact, error) {
	art, err := e.export(ctx, schema, rows)
	outcome := OutcomeOK
	switch {
	case errors.Is(err, core.ErrConflict):
		outcome = OutcomeConflict
	case err != nil:
		outcome = OutcomeError
	}
	if e.rec != nil && schema != nil {
		e.rec.ExportFinished(schema.Domain, outcome, len(rows))
	}
	if err != nil {
		e.logger.WarnContext(ctx, "export failed", "outcome", outcome, "err", err)
		return Artifact{}, err
	}
	e.logger.InfoContext(ctx, "export stored", "domain", art.Domain, "id", art.ID, "rows", art.Rows, "size_bytes", art.Size)
	return art, nil
}

func (e *Exporter) export(ctx context.Context, schema *filter.Schema, rows []core.Row) (Artifact, error) {
	if schema == nil {
		return Artifact{}, fmt.Errorf("export: schema required")
	}
	payload, err := renderCSV(schema, rows)
	if err != nil {
		return Artifact{}, fmt.Errorf("render csv: %w", err)
	}

	id, release, err := e.ids.Next(ctx, schema.Domain)
	if err != nil {
		return Artifact{}, fmt.Errorf("allocate download id: %w", err)
	}
	defer release()

	key := e.dirs.Key(schema.Domain, id)
	info, err := e.blobs.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: ContentType,
		Metadata: map[string]string{
			"domain": string(schema.Domain),
			"rows":   strconv.Itoa(len(rows)),
		},
	})
	switch {
	case errors.Is(err, blob.ErrExists):
		return Artifact{}, fmt.Errorf("%w: download %d for %s already exists", core.ErrConflict, id, schema.Domain)
	case err != nil:
		return Artifact{}, core.StoreError("store download", err)
	}

	art := Artifact{
		Domain:      schema.Domain,
		ID:          id,
		Key:         key,
		Rows:        len(rows),
		Size:        info.Size,
		ContentType: ContentType,
		CreatedAt:   info.LastModified,
	}
	if art.Size == 0 {
		art.Size = int64(len(payload))
	}
	if art.CreatedAt.IsZero() {
		art.CreatedAt = e.now()
	}
	return art, nil
}

// Open returns the download with the given id. The caller must close the
// reader. A download that was never stored yields core.ErrNotFound.
func (e *Exporter) Open(ctx context.Context, schema *filter.Schema, id int64) (Artifact, io.ReadCloser, error) {
	if schema == nil {
		return Artifact{}, nil, fmt.Errorf("export: schema required")
	}
	if id < 0 {
		return Artifact{}, nil, core.NotFoundf("download %d", id)
	}
	key := e.dirs.Key(schema.Domain, id)
	info, rc, err := e.blobs.Get(ctx, key)
	switch {
	case errors.Is(err, blob.ErrNotFound):
		return Artifact{}, nil, core.NotFoundf("download %d", id)
	case err != nil:
		return Artifact{}, nil, core.StoreError("open download", err)
	}
	art := Artifact{
		Domain:      schema.Domain,
		ID:          id,
		Key:         key,
		Size:        info.Size,
		ContentType: ContentType,
		CreatedAt:   info.LastModified,
	}
	if n, err := strconv.Atoi(info.Metadata["rows"]); err == nil {
		art.Rows = n
	}
	return art, rc, nil
}
