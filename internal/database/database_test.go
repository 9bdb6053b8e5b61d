package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/congregate/internal/database/settings"
	"github.com/mrlokans/congregate/internal/entities"
)

// setupTestDB creates a fresh test database
func setupTestDB(t *testing.T) (*Database, func()) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := NewDatabase(dbPath)
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
	}
	return db, cleanup
}

func TestNewDatabase_SeedsLookups(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	currencies, err := DefinedValues(db.DB, entities.DefinedTypeCurrency)
	require.NoError(t, err)
	assert.NotNil(t, DefinedValueID(currencies, "cash"))
	assert.NotNil(t, DefinedValueID(currencies, entities.CurrencyCreditCard))
	assert.Nil(t, DefinedValueID(currencies, "bitcoin"))

	campuses, err := Campuses(db.DB)
	require.NoError(t, err)
	require.Len(t, campuses, 1)
	assert.Equal(t, "MAIN", campuses[0].ShortCode)

	category, err := FindCategory(db.DB, CategoryGroupMembership, entities.EntityTypePerson)
	require.NoError(t, err)
	assert.NotNil(t, category)
}

func TestNewDatabase_SeedIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := NewDatabase(dbPath)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewDatabase(dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int64
	require.NoError(t, db.DB.Model(&entities.Campus{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGateway_ForeignIDLookups(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	gw := NewGateway(db.DB)
	ctx := context.Background()

	now := time.Now()
	batches := []*entities.FinancialBatch{
		{Name: "A", Provenance: entities.Stamp(entities.IntPtr(10), nil, now)},
		{Name: "B", Provenance: entities.Stamp(entities.IntPtr(11), nil, now)},
		{Name: "no legacy id"},
	}
	require.NoError(t, gw.UnitOfWork(ctx, func(tx *gorm.DB) error {
		return BulkInsert(tx, batches)
	}))

	found, err := GetByForeignID[entities.FinancialBatch](gw.Session(ctx), 11)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "B", found.Name)

	missing, err := GetByForeignID[entities.FinancialBatch](gw.Session(ctx), 99)
	require.NoError(t, err)
	assert.Nil(t, missing)

	ids, err := ForeignIDs[entities.FinancialBatch](gw.Session(ctx))
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Equal(t, batches[0].ID, ids[10])
}

func TestGateway_ForeignKeys(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	gw := NewGateway(db.DB)
	ctx := context.Background()

	values := []*entities.MetricValue{
		{MetricID: 1, Provenance: entities.Provenance{ForeignKey: "1|2021-01-03T09:00:00Z"}},
		{MetricID: 1},
	}
	require.NoError(t, gw.UnitOfWork(ctx, func(tx *gorm.DB) error {
		return BulkInsert(tx, values)
	}))

	keys, err := ForeignKeys[entities.MetricValue](gw.Session(ctx))
	require.NoError(t, err)
	assert.Len(t, keys, 1)
	assert.Contains(t, keys, "1|2021-01-03T09:00:00Z")

	found, err := GetByForeignKey[entities.MetricValue](gw.Session(ctx), "1|2021-01-03T09:00:00Z")
	require.NoError(t, err)
	assert.NotNil(t, found)
}

func TestGateway_UnitOfWorkRollsBack(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	gw := NewGateway(db.DB)
	ctx := context.Background()

	boom := errors.New("boom")
	err := gw.UnitOfWork(ctx, func(tx *gorm.DB) error {
		if err := BulkInsert(tx, []*entities.Location{{Name: "Chapel"}}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, db.DB.Model(&entities.Location{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEnsureLegacyAttributes(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	attrs, err := EnsureLegacyAttributes(db.DB)
	require.NoError(t, err)
	assert.Len(t, attrs, len(LegacyPersonAttributes))

	again, err := EnsureLegacyAttributes(db.DB)
	require.NoError(t, err)
	assert.Equal(t, attrs[entities.AttributeKeyHouseholdID].ID, again[entities.AttributeKeyHouseholdID].ID)

	attr, err := LookupAttribute(db.DB, entities.EntityTypePerson, entities.AttributeKeyHouseholdPosition)
	require.NoError(t, err)
	require.NotNil(t, attr)
	assert.Equal(t, entities.FieldTypeText, attr.FieldType)

	none, err := LookupAttribute(db.DB, entities.EntityTypeGroup, entities.AttributeKeyHouseholdPosition)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestGetOrCreateCategory(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	first, err := GetOrCreateCategory(db.DB, "Metrics", entities.EntityTypeMetric)
	require.NoError(t, err)
	second, err := GetOrCreateCategory(db.DB, "Metrics", entities.EntityTypeMetric)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestSettings_MigratedForRepository(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := settings.NewRepository(db.DB)

	value, err := repo.Get(entities.SettingKeyImportUser)
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, repo.Set(entities.SettingKeyImportUser, "Admin Admin"))
	require.NoError(t, repo.Set(entities.SettingKeyImportUser, "Ted Decker"))

	value, err = repo.Get(entities.SettingKeyImportUser)
	require.NoError(t, err)
	assert.Equal(t, "Ted Decker", value)
}
