package keyindex

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/congregate/internal/database"
	"github.com/mrlokans/congregate/internal/entities"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db.DB
}

// importPerson writes a person the way the household import does.
func importPerson(t *testing.T, db *gorm.DB, attrs map[string]*entities.Attribute, individualID, householdID int, position string, role entities.FamilyRole) entities.Person {
	t.Helper()
	person := entities.Person{FirstName: position, FamilyRole: role}
	require.NoError(t, db.Create(&person).Error)
	require.NoError(t, db.Create(&entities.PersonAlias{PersonID: person.ID, ForeignID: entities.IntPtr(individualID)}).Error)

	values := []entities.AttributeValue{
		{AttributeID: attrs[entities.AttributeKeyHouseholdID].ID, EntityID: person.ID, Value: strconv.Itoa(householdID)},
		{AttributeID: attrs[entities.AttributeKeyHouseholdPosition].ID, EntityID: person.ID, Value: position},
	}
	require.NoError(t, db.Create(&values).Error)
	return person
}

func TestBuild_JoinsAttributesAndAliases(t *testing.T) {
	db := setupTestDB(t)
	attrs, err := database.EnsureLegacyAttributes(db)
	require.NoError(t, err)

	child := importPerson(t, db, attrs, 103, 1, "Child", entities.FamilyRoleChild)
	head := importPerson(t, db, attrs, 101, 1, "Head", entities.FamilyRoleAdult)
	importPerson(t, db, attrs, 201, 2, "Visitor", entities.FamilyRoleVisitor)

	// Missing the position attribute: not imported by the household path.
	partial := entities.Person{FirstName: "Partial"}
	require.NoError(t, db.Create(&partial).Error)
	require.NoError(t, db.Create(&entities.AttributeValue{
		AttributeID: attrs[entities.AttributeKeyHouseholdID].ID, EntityID: partial.ID, Value: "1",
	}).Error)

	idx, err := Build(context.Background(), db)
	require.NoError(t, err)

	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, 2, idx.Households())
	assert.True(t, idx.HasPeople())

	keys := idx.Keys()
	assert.Equal(t, child.ID, keys[0].PersonID, "keys are ordered by person id")

	k := idx.GetPersonKeys(entities.IntPtr(101), nil, true)
	require.NotNil(t, k)
	assert.Equal(t, head.ID, k.PersonID)
	assert.NotZero(t, k.PersonAliasID)
	require.NotNil(t, k.HouseholdID)
	assert.Equal(t, 1, *k.HouseholdID)
	assert.Equal(t, RoleHead, k.Role())

	assert.Nil(t, idx.GetPersonKeys(entities.IntPtr(999), nil, true))
}

func TestBuild_KeepsPersonWithNonIntegerHousehold(t *testing.T) {
	db := setupTestDB(t)
	attrs, err := database.EnsureLegacyAttributes(db)
	require.NoError(t, err)

	importPerson(t, db, attrs, 101, 1, "Head", entities.FamilyRoleAdult)

	odd := entities.Person{FirstName: "Odd"}
	require.NoError(t, db.Create(&odd).Error)
	require.NoError(t, db.Create(&entities.PersonAlias{PersonID: odd.ID, ForeignID: entities.IntPtr(150)}).Error)
	require.NoError(t, db.Create(&[]entities.AttributeValue{
		{AttributeID: attrs[entities.AttributeKeyHouseholdID].ID, EntityID: odd.ID, Value: "H-7"},
		{AttributeID: attrs[entities.AttributeKeyHouseholdPosition].ID, EntityID: odd.ID, Value: "Head"},
	}).Error)

	idx, err := Build(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, 1, idx.Households(), "no household entry for the unparseable id")

	k := idx.GetPersonKeys(entities.IntPtr(150), nil, true)
	require.NotNil(t, k)
	assert.Equal(t, odd.ID, k.PersonID)
	assert.Nil(t, k.HouseholdID)

	head := idx.GetPersonKeys(nil, entities.IntPtr(1), true)
	require.NotNil(t, head)
	assert.NotEqual(t, odd.ID, head.PersonID)
}

func TestBuild_EmptyDestination(t *testing.T) {
	db := setupTestDB(t)

	idx, err := Build(context.Background(), db)
	require.NoError(t, err)
	assert.False(t, idx.HasPeople())
	assert.Nil(t, idx.GetPersonKeys(nil, entities.IntPtr(1), true))
}

func key(ind, hh int, person uint, position string, role entities.FamilyRole) PersonKey {
	return PersonKey{IndividualID: entities.IntPtr(ind), HouseholdID: entities.IntPtr(hh), PersonID: person, PersonAliasID: person, Position: position, FamilyRole: role}
}

func TestGetPersonKeys_HouseholdRanking(t *testing.T) {
	child := key(3, 1, 30, "Child", entities.FamilyRoleChild)
	spouse := key(2, 1, 20, "Spouse", entities.FamilyRoleAdult)
	head := key(1, 1, 10, "Head", entities.FamilyRoleAdult)
	other := key(4, 1, 40, "Other", entities.FamilyRoleAdult)

	idx := New([]PersonKey{child, spouse, head, other})
	got := idx.GetPersonKeys(nil, entities.IntPtr(1), true)
	require.NotNil(t, got)
	assert.Equal(t, uint(10), got.PersonID)

	idx = New([]PersonKey{child, spouse, other})
	got = idx.GetPersonKeys(nil, entities.IntPtr(1), true)
	require.NotNil(t, got)
	assert.Equal(t, uint(20), got.PersonID)

	idx = New([]PersonKey{child, other})
	for i := 0; i < 3; i++ {
		got = idx.GetPersonKeys(nil, entities.IntPtr(1), true)
		require.NotNil(t, got)
		assert.Equal(t, uint(30), got.PersonID, "remaining members resolve in build order")
	}
}

func TestGetPersonKeys_PositionIsCaseInsensitive(t *testing.T) {
	idx := New([]PersonKey{
		key(1, 5, 11, "child", entities.FamilyRoleChild),
		key(2, 5, 12, "HEAD", entities.FamilyRoleAdult),
	})
	got := idx.GetPersonKeys(nil, entities.IntPtr(5), false)
	require.NotNil(t, got)
	assert.Equal(t, uint(12), got.PersonID)
}

func TestGetPersonKeys_IndividualTakesPrecedence(t *testing.T) {
	idx := New([]PersonKey{
		key(1, 1, 10, "Head", entities.FamilyRoleAdult),
		key(7, 2, 70, "Child", entities.FamilyRoleChild),
	})

	got := idx.GetPersonKeys(entities.IntPtr(7), entities.IntPtr(1), true)
	require.NotNil(t, got)
	assert.Equal(t, uint(70), got.PersonID)

	assert.Nil(t, idx.GetPersonKeys(entities.IntPtr(8), entities.IntPtr(1), true),
		"an unknown individual does not fall back to the household")
	assert.Nil(t, idx.GetPersonKeys(nil, nil, true))
}

func TestGetPersonKeys_Visitors(t *testing.T) {
	idx := New([]PersonKey{key(9, 3, 90, "Visitor", entities.FamilyRoleVisitor)})

	assert.Nil(t, idx.GetPersonKeys(nil, entities.IntPtr(3), false))
	assert.NotNil(t, idx.GetPersonKeys(nil, entities.IntPtr(3), true))
	assert.Empty(t, idx.Family(3, false))
	assert.Len(t, idx.Family(3, true), 1)
}

func TestNew_DuplicateIndividualKeepsFirst(t *testing.T) {
	idx := New([]PersonKey{
		key(1, 1, 10, "Head", entities.FamilyRoleAdult),
		key(1, 1, 11, "Spouse", entities.FamilyRoleAdult),
	})

	assert.Equal(t, 1, idx.Len())
	assert.True(t, idx.Contains(1))
	assert.Equal(t, uint(10), idx.GetPersonKeys(entities.IntPtr(1), nil, true).PersonID)
}

func TestPersonKey_Role(t *testing.T) {
	assert.Equal(t, RoleVisitor, PersonKey{FamilyRole: entities.FamilyRoleVisitor}.Role())
	assert.Equal(t, RoleOther, PersonKey{Position: "Single"}.Role())
	assert.Equal(t, RoleSpouse, PersonKey{Position: " Spouse "}.Role())
	assert.Nil(t, PersonKey{}.AliasID())
}
