package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoindex/internal/core"
	"ecoindex/internal/filter"
	"ecoindex/internal/store"
	"ecoindex/internal/store/storetest"
)

func ptr(v float64) *float64 { return &v }

func fetchIDs(t *testing.T, db store.DB, schema *filter.Schema, f filter.Filter) []int64 {
	t.Helper()
	q, err := filter.Compile(schema, db.Dialect(), f)
	require.NoError(t, err)
	rows, err := store.NewRecords(db).Fetch(context.Background(), q)
	require.NoError(t, err)
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		id, ok := row["id"].(int64)
		require.True(t, ok, "id column has type %T", row["id"])
		ids = append(ids, id)
	}
	return ids
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := storetest.NewSQLite(t)
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx, db))

	rows, err := db.Query(ctx, "SELECT domain, next_id FROM main.download_counter ORDER BY domain", nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "mci", rows[0]["domain"])
	assert.Equal(t, int64(0), rows[0]["next_id"])
	assert.Equal(t, "occurrence", rows[1]["domain"])
}

func TestOccurrenceFilterScenarios(t *testing.T) {
	db := storetest.Seeded(t)
	cases := []struct {
		name string
		f    filter.Filter
		want []int64
	}{
		{"empty", filter.Filter{}, []int64{storetest.BrantaID, storetest.KowhaiID, storetest.WekaID}},
		{"kingdom", filter.Filter{ClassificationLevel: "Kingdom", ClassificationName: "Animalia"}, []int64{storetest.BrantaID, storetest.WekaID}},
		{"name without level", filter.Filter{ClassificationName: "Branta canadensis"}, []int64{storetest.BrantaID, storetest.KowhaiID, storetest.WekaID}},
		{"unmatched family", filter.Filter{ClassificationLevel: "Family", ClassificationName: "Notafamily"}, []int64{}},
		{"genus pattern ignores case", filter.Filter{ClassificationLevel: "genus", ClassificationName: "^bran"}, []int64{storetest.BrantaID}},
		{"year", filter.Filter{Year: 2015}, []int64{storetest.BrantaID}},
		{"empty year", filter.Filter{Year: 2007}, []int64{}},
		{"year beats dates", filter.Filter{Year: 2015, StartDate: "2007-10-15", EndDate: "2007-10-16"}, []int64{storetest.BrantaID}},
		{"year beats matching dates", filter.Filter{Year: 2007, StartDate: "2015-05-20", EndDate: "2015-05-22"}, []int64{}},
		{"open ended start", filter.Filter{StartDate: "2016-01-01"}, []int64{storetest.KowhaiID, storetest.WekaID}},
		{"region", filter.Filter{LocationName: "Canterbury Region", LocationType: "region"}, []int64{storetest.BrantaID, storetest.WekaID}},
		{"region name ignores case", filter.Filter{LocationName: "canterbury region"}, []int64{storetest.BrantaID, storetest.WekaID}},
		{"other region", filter.Filter{LocationName: "Waikato Region", LocationType: "region"}, []int64{}},
		{"rohe", filter.Filter{LocationType: "Rohe"}, []int64{storetest.WekaID}},
		{"rohe name ignores case", filter.Filter{LocationName: "NGĀI TAHU"}, []int64{storetest.WekaID}},
		{"rohe name lower case", filter.Filter{LocationName: "ngāi tahu", LocationType: "rohe"}, []int64{storetest.WekaID}},
		{"record without a location", filter.Filter{Year: 2016}, []int64{storetest.KowhaiID}},
		{"everything", filter.Filter{
			ClassificationLevel: "Kingdom", ClassificationName: "Animalia",
			StartDate: "2015-05-20", EndDate: "2015-05-22",
			LocationName: "Canterbury Region", LocationType: "region",
		}, []int64{storetest.BrantaID}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, fetchIDs(t, db, filter.Occurrence, tc.f))
		})
	}
}

func TestMCIFilterScenarios(t *testing.T) {
	db := storetest.Seeded(t)
	cases := []struct {
		name string
		f    filter.Filter
		want []int64
	}{
		{"empty", filter.Filter{}, []int64{storetest.MCIAvonID, storetest.MCIWaimakID, storetest.MCIQMCIID}},
		{"value range", filter.Filter{StartValue: ptr(80), EndValue: ptr(100)}, []int64{storetest.MCIAvonID}},
		{"zero lower bound", filter.Filter{StartValue: ptr(0), EndValue: ptr(10)}, []int64{storetest.MCIQMCIID}},
		{"indicator ignores case", filter.Filter{Indicator: "mci"}, []int64{storetest.MCIAvonID, storetest.MCIWaimakID}},
		{"catchment", filter.Filter{RiverCatchment: "avon"}, []int64{storetest.MCIAvonID}},
		{"landcover alternation", filter.Filter{LandcoverType: "forest|pasture"}, []int64{storetest.MCIWaimakID, storetest.MCIQMCIID}},
		{"rohe", filter.Filter{LocationName: "Ngāi Tahu", LocationType: "rohe"}, []int64{storetest.MCIWaimakID}},
		{"rohe name ignores case", filter.Filter{LocationName: "NGĀI TAHU"}, []int64{storetest.MCIWaimakID}},
		{"qmci without a location", filter.Filter{Indicator: "qmci"}, []int64{storetest.MCIQMCIID}},
		{"year", filter.Filter{Year: 2019, Indicator: "MCI", StartValue: ptr(100), EndValue: ptr(200)}, []int64{storetest.MCIWaimakID}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, fetchIDs(t, db, filter.MCI, tc.f))
		})
	}
}

func TestFetchReturnsExportColumns(t *testing.T) {
	db := storetest.Seeded(t)
	rows, err := store.NewRecords(db).Fetch(context.Background(), filter.SelectAll(filter.MCI))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, column := range filter.MCI.Columns {
		assert.Contains(t, rows[0], column)
	}
	assert.Equal(t, 84.5, rows[0]["value"])
	assert.Nil(t, rows[2]["occurrence_latitude"])
}

func TestUsersRepository(t *testing.T) {
	db := storetest.NewSQLite(t)
	users := store.NewUsers(db)
	ctx := context.Background()

	created, err := users.Insert(ctx, store.User{Email: "lebron@james.io", Password: "hash", Salt: "salt"})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "GUEST", created.Role)
	assert.False(t, created.Disabled)
	assert.False(t, created.CreatedAt.IsZero())

	_, err = users.Insert(ctx, store.User{Email: "lebron@james.io", Password: "x", Salt: "y"})
	assert.ErrorIs(t, err, core.ErrConflict)

	require.NoError(t, users.UpdateRole(ctx, "lebron@james.io", "USER"))
	require.NoError(t, users.SetDisabled(ctx, "lebron@james.io", true))
	require.NoError(t, users.UpdatePassword(ctx, "lebron@james.io", "hash2", "salt2"))

	got, err := users.GetByEmail(ctx, "lebron@james.io")
	require.NoError(t, err)
	assert.Equal(t, "USER", got.Role)
	assert.True(t, got.Disabled)
	assert.Equal(t, "hash2", got.Password)
	assert.Equal(t, "salt2", got.Salt)

	_, err = users.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, users.UpdateRole(ctx, "nobody@example.com", "USER"), core.ErrNotFound)

	_, err = users.Insert(ctx, store.User{Email: "admin@ecoindex.io", Password: "h", Salt: "s", Role: "SUPER_ADMIN"})
	require.NoError(t, err)
	all, err := users.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "lebron@james.io", all[0].Email)
	assert.Equal(t, "SUPER_ADMIN", all[1].Role)
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	db := storetest.NewSQLite(t)
	require.NoError(t, db.Close())
	_, err := db.Query(context.Background(), filter.SelectAll(filter.Occurrence).SQL, nil)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
	assert.ErrorIs(t, db.Ping(context.Background()), core.ErrStoreUnavailable)
}

func TestCanceledContextIsNotStoreFailure(t *testing.T) {
	db := storetest.NewSQLite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := db.Query(ctx, "SELECT 1", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, core.ErrStoreUnavailable))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := store.Open(context.Background(), store.Config{Driver: "oracle"})
	assert.Error(t, err)
}

func TestOpenSQLiteByConfig(t *testing.T) {
	db, err := store.Open(context.Background(), store.Config{Driver: store.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, store.Migrate(context.Background(), db))
	assert.Equal(t, "sqlite", db.Dialect().Name())
}
