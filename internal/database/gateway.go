package database

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"gorm.io/gorm"

	"github.com/mrlokans/congregate/internal/entities"
)

// insertBatchSize bounds the rows per INSERT statement so SQLite stays under
// its bound-variable limit.
const insertBatchSize = 100

// Gateway is the persistence boundary used by the importers. Lookups run on a
// short-lived session; writes run inside one transaction per flushed batch.
type Gateway struct {
	db *gorm.DB
}

func NewGateway(db *gorm.DB) *Gateway {
	return &Gateway{db: db}
}

// DB returns the root connection.
func (g *Gateway) DB() *gorm.DB {
	return g.db
}

// Session returns a fresh session with no accumulated conditions. Importers
// replace their lookup session at every flush boundary.
func (g *Gateway) Session(ctx context.Context) *gorm.DB {
	return g.db.Session(&gorm.Session{NewDB: true, Context: ctx})
}

// UnitOfWork runs fn in a single transaction. Any error rolls back the whole
// unit; nothing is retried.
func (g *Gateway) UnitOfWork(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.Session(ctx).Transaction(fn)
}

// BulkInsert persists items in statement-sized chunks.
func BulkInsert[T any](tx *gorm.DB, items []T) error {
	if len(items) == 0 {
		return nil
	}
	return tx.CreateInBatches(items, insertBatchSize).Error
}

// GetByForeignID returns the entity carrying the legacy id, or nil when none
// has been imported yet.
func GetByForeignID[T any](db *gorm.DB, foreignID int) (*T, error) {
	var out T
	err := db.Where("foreign_id = ?", foreignID).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetByForeignKey is GetByForeignID for composite string keys.
func GetByForeignKey[T any](db *gorm.DB, key string) (*T, error) {
	var out T
	err := db.Where("foreign_key = ?", key).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ForeignIDs maps every imported legacy id of T to its destination id.
func ForeignIDs[T any](db *gorm.DB) (map[int]uint, error) {
	var rows []struct {
		ID        uint
		ForeignID int
	}
	err := db.Model(new(T)).
		Select("id, foreign_id").
		Where("foreign_id IS NOT NULL").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	ids := make(map[int]uint, len(rows))
	for _, r := range rows {
		if _, ok := ids[r.ForeignID]; !ok {
			ids[r.ForeignID] = r.ID
		}
	}
	return ids, nil
}

// ForeignKeys returns the set of composite keys already imported for T.
func ForeignKeys[T any](db *gorm.DB) (map[string]struct{}, error) {
	var keys []string
	err := db.Model(new(T)).
		Where("foreign_key IS NOT NULL AND foreign_key <> ''").
		Pluck("foreign_key", &keys).Error
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set, nil
}

// LookupAttribute returns the attribute descriptor for key, or nil.
func LookupAttribute(db *gorm.DB, entityType, key string) (*entities.Attribute, error) {
	var attr entities.Attribute
	err := db.Where("entity_type = ? AND key = ?", entityType, key).First(&attr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attr, nil
}

// EnsureAttribute returns the attribute matching attr's entity type and key,
// creating it from attr when missing.
func EnsureAttribute(db *gorm.DB, attr entities.Attribute) (*entities.Attribute, error) {
	if attr.Name == "" {
		attr.Name = attr.Key
	}
	if attr.FieldType == "" {
		attr.FieldType = entities.FieldTypeText
	}

	var out entities.Attribute
	err := db.Where(entities.Attribute{EntityType: attr.EntityType, Key: attr.Key}).
		Attrs(attr).
		FirstOrCreate(&out).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to ensure attribute %s", attr.Key)
	}
	return &out, nil
}

// LegacyPersonAttributes are the person attributes carrying legacy identity.
var LegacyPersonAttributes = []entities.Attribute{
	{EntityType: entities.EntityTypePerson, Key: entities.AttributeKeyHouseholdPosition, Name: "Household Position", FieldType: entities.FieldTypeText},
	{EntityType: entities.EntityTypePerson, Key: entities.AttributeKeyHouseholdID, Name: "F1 Household Id", FieldType: entities.FieldTypeInteger},
	{EntityType: entities.EntityTypePerson, Key: entities.AttributeKeyIndividualID, Name: "F1 Individual Id", FieldType: entities.FieldTypeInteger},
	{EntityType: entities.EntityTypePerson, Key: entities.AttributeKeySecondaryEmail, Name: "Secondary Email", FieldType: entities.FieldTypeText},
	{EntityType: entities.EntityTypePerson, Key: entities.AttributeKeyLogin, Name: "InFellowship Login", FieldType: entities.FieldTypeText},
}

// EnsureLegacyAttributes creates the legacy identity attributes when missing
// and returns them keyed by attribute key.
func EnsureLegacyAttributes(db *gorm.DB) (map[string]*entities.Attribute, error) {
	out := make(map[string]*entities.Attribute, len(LegacyPersonAttributes))
	for _, attr := range LegacyPersonAttributes {
		a, err := EnsureAttribute(db, attr)
		if err != nil {
			return nil, err
		}
		out[a.Key] = a
	}
	return out, nil
}

// FindCategory returns the named category, or nil.
func FindCategory(db *gorm.DB, name, entityType string) (*entities.Category, error) {
	var category entities.Category
	err := db.Where("name = ? AND entity_type = ?", name, entityType).First(&category).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// GetOrCreateCategory returns the named category, creating it when missing.
func GetOrCreateCategory(db *gorm.DB, name, entityType string) (*entities.Category, error) {
	var category entities.Category
	err := db.Where(entities.Category{Name: name, EntityType: entityType}).FirstOrCreate(&category).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create category %s", name)
	}
	return &category, nil
}

// DefinedValues lists the values of one type in display order.
func DefinedValues(db *gorm.DB, definedType string) ([]entities.DefinedValue, error) {
	var values []entities.DefinedValue
	err := db.Where("type = ?", definedType).Order(`"order", id`).Find(&values).Error
	return values, err
}

// DefinedValueID returns the id of the value matching value case-insensitively.
func DefinedValueID(values []entities.DefinedValue, value string) *uint {
	for _, v := range values {
		if strings.EqualFold(v.Value, value) {
			id := v.ID
			return &id
		}
	}
	return nil
}

// Campuses lists all campuses ordered by id.
func Campuses(db *gorm.DB) ([]entities.Campus, error) {
	var campuses []entities.Campus
	err := db.Order("id").Find(&campuses).Error
	return campuses, err
}
