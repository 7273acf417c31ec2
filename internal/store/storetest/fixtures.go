// Package storetest provides a migrated SQLite store seeded with a small,
// known data set for tests in other packages.
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"ecoindex/internal/store"
)

// NewSQLite returns a migrated SQLite store in a temp directory. It is closed
// when the test ends.
func NewSQLite(t testing.TB) *store.SQLite {
	t.Helper()
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "ecoindex.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Seeded returns a migrated store holding the fixture data set.
func Seeded(t testing.TB) *store.SQLite {
	t.Helper()
	db := NewSQLite(t)
	Seed(t, db)
	return db
}

// Fixture ids.
const (
	// BrantaID is a Canada goose sighted 2015-05-21 in Canterbury Region.
	BrantaID = 1
	// KowhaiID is a 2016 plant record with no linked location.
	KowhaiID = 2
	// WekaID is a 2018 bird linked to both Canterbury Region and Ngāi Tahu rohe.
	WekaID = 3

	// MCIAvonID is an MCI reading of 84.5 on the Avon, 2019-03-02.
	MCIAvonID = 1
	// MCIWaimakID is an MCI reading of 120 on the Waimakariri, 2019-11-20.
	MCIWaimakID = 2
	// MCIQMCIID is a QMCI reading of 5.2 with no location, 2020-01-15.
	MCIQMCIID = 3
)

var seedStatements = []string{
	`INSERT INTO main.locationref (name, locationtype) VALUES
		('Canterbury Region', 'region'),
		('Waikato Region', 'region'),
		('Ngāi Tahu', 'rohe')`,
	`INSERT INTO main.occurrence (id, scientific_name, observation_count, observation_date,
		occurrence_latitude, occurrence_longitude, occurrence_elevation, occurrence_depth,
		taxon_rank, infraspecific_epithet, occurrence_species, occurrence_genus, occurrence_family,
		occurrence_order, occurrence_class, occurrence_phylum, occurrence_kingdom,
		created_at, updated_at) VALUES
		(1, 'Branta canadensis', 12, '2015-05-21', -43.5321, 172.6362, 20.5, NULL,
		 'species', NULL, 'canadensis', 'Branta', 'Anatidae',
		 'Anseriformes', 'Aves', 'Chordata', 'Animalia',
		 '2021-06-01 09:30:00', '2021-06-01 09:30:00'),
		(2, 'Sophora microphylla', 1, '2016-09-14', -41.2865, 174.7762, NULL, NULL,
		 'species', NULL, 'microphylla', 'Sophora', 'Fabaceae',
		 'Fabales', 'Magnoliopsida', 'Tracheophyta', 'Plantae',
		 '2021-06-01 09:30:00', '2021-06-01 09:30:00'),
		(3, 'Gallirallus australis', 2, '2018-02-03', -42.4504, 171.2108, 110, NULL,
		 'species', NULL, 'australis', 'Gallirallus', 'Rallidae',
		 'Gruiformes', 'Aves', 'Chordata', 'Animalia',
		 '2021-06-01 09:30:00', '2021-06-01 09:30:00')`,
	`INSERT INTO main.location (occurrence_id, location_name) VALUES
		(1, 'Canterbury Region'),
		(3, 'Canterbury Region'),
		(3, 'Ngāi Tahu')`,
	`INSERT INTO main.mci (id, value, indicator, observation_date, occurrence_latitude,
		occurrence_longitude, river_catchment, landcover_type, created_at, updated_at) VALUES
		(1, 84.5, 'MCI', '2019-03-02', -43.5280, 172.6590, 'Avon River', 'urban',
		 '2021-06-01 09:30:00', '2021-06-01 09:30:00'),
		(2, 120, 'MCI', '2019-11-20', -43.3940, 172.6510, 'Waimakariri River', 'native forest',
		 '2021-06-01 09:30:00', '2021-06-01 09:30:00'),
		(3, 5.2, 'QMCI', '2020-01-15', NULL, NULL, 'Selwyn River', 'pasture',
		 '2021-06-01 09:30:00', '2021-06-01 09:30:00')`,
	`INSERT INTO main.mci_location (mci_id, location_name) VALUES
		(1, 'Canterbury Region'),
		(2, 'Canterbury Region'),
		(2, 'Ngāi Tahu')`,
}

// Seed loads the fixture data set into db.
func Seed(t testing.TB, db store.DB) {
	t.Helper()
	ctx := context.Background()
	for _, stmt := range seedStatements {
		if _, err := db.Exec(ctx, stmt, nil); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}
