package records_test

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoindex/internal/blob"
	"ecoindex/internal/core"
	"ecoindex/internal/export"
	"ecoindex/internal/filter"
	"ecoindex/internal/records"
	"ecoindex/internal/store"
	"ecoindex/internal/store/storetest"
)

func newService(t *testing.T, db store.DB, schema *filter.Schema) *records.Service {
	t.Helper()
	exporter := export.New(blob.NewMemory(), export.NewSequenceSource(store.NewCounters(db)))
	return records.NewService(schema, store.NewRecords(db), exporter)
}

func readCSV(t *testing.T, rc io.ReadCloser) [][]string {
	t.Helper()
	defer rc.Close()
	out, err := csv.NewReader(rc).ReadAll()
	require.NoError(t, err)
	return out
}

func TestListAll(t *testing.T) {
	db := storetest.Seeded(t)
	svc := newService(t, db, filter.Occurrence)
	rows, err := svc.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, core.DomainOccurrence, svc.Domain())
}

func TestListAllEmptyIsNotFound(t *testing.T) {
	svc := newService(t, storetest.NewSQLite(t), filter.MCI)
	_, err := svc.ListAll(context.Background())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCreateAndOpenDownload(t *testing.T) {
	ctx := context.Background()
	db := storetest.Seeded(t)
	svc := newService(t, db, filter.Occurrence)

	id, err := svc.CreateDownload(ctx, filter.Filter{ClassificationLevel: "Kingdom", ClassificationName: "animalia"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), id)

	art, rc, err := svc.OpenDownload(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, art.Rows)
	lines := readCSV(t, rc)
	require.Len(t, lines, 3)
	assert.Equal(t, filter.Occurrence.Columns, lines[0])
	assert.Equal(t, "1", lines[1][0])
	assert.Equal(t, "3", lines[2][0])

	next, err := svc.CreateDownload(ctx, filter.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), next)

	_, _, err = svc.OpenDownload(ctx, 7)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDomainsShareNothing(t *testing.T) {
	ctx := context.Background()
	db := storetest.Seeded(t)
	exporter := export.New(blob.NewMemory(), export.NewSequenceSource(store.NewCounters(db)))
	occ := records.NewService(filter.Occurrence, store.NewRecords(db), exporter)
	mci := records.NewService(filter.MCI, store.NewRecords(db), exporter)

	occID, err := occ.CreateDownload(ctx, filter.Filter{})
	require.NoError(t, err)
	mciID, err := mci.CreateDownload(ctx, filter.Filter{Indicator: "MCI"})
	require.NoError(t, err)
	assert.Equal(t, occID, mciID)

	_, rc, err := mci.OpenDownload(ctx, mciID)
	require.NoError(t, err)
	lines := readCSV(t, rc)
	assert.Equal(t, filter.MCI.Columns, lines[0])
	assert.Len(t, lines, 3)
}

type countingFetcher struct {
	calls int
	err   error
}

func (f *countingFetcher) Dialect() filter.Dialect { return filter.SQLite }

func (f *countingFetcher) Fetch(context.Context, filter.Query) ([]core.Row, error) {
	f.calls++
	return nil, f.err
}

func TestInvalidFilterNeverQueries(t *testing.T) {
	fetcher := &countingFetcher{}
	svc := records.NewService(filter.Occurrence, fetcher, export.New(blob.NewMemory(), nil))

	cases := []filter.Filter{
		{ClassificationLevel: "domain", ClassificationName: "x"},
		{Year: -1},
		{StartDate: "2020-13-01"},
		{StartDate: "2021-01-01", EndDate: "2020-01-01"},
		{LocationType: "city"},
		{Indicator: "MCI"},
	}
	for _, f := range cases {
		_, err := svc.CreateDownload(context.Background(), f)
		assert.True(t, core.IsValidation(err), "%+v: %v", f, err)
	}
	assert.Zero(t, fetcher.calls)
}

func TestStoreFailureSurfaces(t *testing.T) {
	fetcher := &countingFetcher{err: core.StoreError("query", errors.New("connection refused"))}
	svc := records.NewService(filter.MCI, fetcher, export.New(blob.NewMemory(), nil))
	_, err := svc.CreateDownload(context.Background(), filter.Filter{})
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
	_, err = svc.ListAll(context.Background())
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
}
