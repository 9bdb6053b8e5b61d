package importers

import (
	"time"

	"github.com/go-faster/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/congregate/internal/database"
	"github.com/mrlokans/congregate/internal/entities"
	"github.com/mrlokans/congregate/internal/rules"
)

// AttributeSet collects attribute values for the entities touched by one
// batch. Stored values are loaded the first time an entity is touched, merged
// in memory and written as upserts when the batch flushes.
type AttributeSet struct {
	attrs   map[string]*entities.Attribute
	stored  map[uint]map[uint]string
	pending map[uint]map[uint]string
	order   []uint
}

func NewAttributeSet(attrs map[string]*entities.Attribute) *AttributeSet {
	s := &AttributeSet{attrs: attrs}
	s.Reset()
	return s
}

// ensureAttributes creates the attributes when missing and returns them by key.
func ensureAttributes(db *gorm.DB, attrs []entities.Attribute) (map[string]*entities.Attribute, error) {
	out := make(map[string]*entities.Attribute, len(attrs))
	for _, a := range attrs {
		got, err := database.EnsureAttribute(db, a)
		if err != nil {
			return nil, err
		}
		out[got.Key] = got
	}
	return out, nil
}

// Attribute returns the descriptor for key, or nil when the set does not
// manage it.
func (s *AttributeSet) Attribute(key string) *entities.Attribute {
	return s.attrs[key]
}

func (s *AttributeSet) load(db *gorm.DB, entityID uint) error {
	if _, ok := s.stored[entityID]; ok {
		return nil
	}
	ids := make([]uint, 0, len(s.attrs))
	for _, a := range s.attrs {
		ids = append(ids, a.ID)
	}

	var rows []entities.AttributeValue
	err := db.Where("entity_id = ? AND attribute_id IN ?", entityID, ids).Find(&rows).Error
	if err != nil {
		return errors.Wrap(err, "failed to load attribute values")
	}
	values := make(map[uint]string, len(rows))
	for _, r := range rows {
		values[r.AttributeID] = r.Value
	}
	s.stored[entityID] = values
	return nil
}

// Current returns the value an entity has for key: the pending value when the
// batch already set one, otherwise the stored value.
func (s *AttributeSet) Current(db *gorm.DB, entityID uint, key string) (string, error) {
	attr := s.attrs[key]
	if attr == nil {
		return "", errors.Errorf("unknown attribute %s", key)
	}
	if v, ok := s.pending[entityID][attr.ID]; ok {
		return v, nil
	}
	if err := s.load(db, entityID); err != nil {
		return "", err
	}
	return s.stored[entityID][attr.ID], nil
}

// Touched reports whether the batch already set key on the entity.
func (s *AttributeSet) Touched(entityID uint, key string) bool {
	attr := s.attrs[key]
	if attr == nil {
		return false
	}
	_, ok := s.pending[entityID][attr.ID]
	return ok
}

// Set merges value into the entity's current value using strategy.
func (s *AttributeSet) Set(db *gorm.DB, entityID uint, key, value string, strategy rules.Strategy) error {
	current, err := s.Current(db, entityID, key)
	if err != nil {
		return err
	}
	merged := rules.Merge(current, value, strategy)

	attr := s.attrs[key]
	if _, ok := s.pending[entityID]; !ok {
		s.pending[entityID] = make(map[uint]string)
		s.order = append(s.order, entityID)
	}
	s.pending[entityID][attr.ID] = merged
	return nil
}

// Apply sets every change of a rule result, honoring Once.
func (s *AttributeSet) Apply(db *gorm.DB, entityID uint, changes []rules.Change) error {
	for _, c := range changes {
		if c.Once && s.Touched(entityID, c.Attribute) {
			continue
		}
		if err := s.Set(db, entityID, c.Attribute, c.Value, c.Strategy); err != nil {
			return err
		}
	}
	return nil
}

// Len is the number of entities with pending values.
func (s *AttributeSet) Len() int {
	return len(s.order)
}

// Flush upserts every pending value keyed by (attribute, entity).
func (s *AttributeSet) Flush(tx *gorm.DB, now time.Time) error {
	var values []entities.AttributeValue
	for _, entityID := range s.order {
		for attrID, v := range s.pending[entityID] {
			if stored, ok := s.stored[entityID][attrID]; ok && stored == v {
				continue
			}
			values = append(values, entities.AttributeValue{
				AttributeID: attrID,
				EntityID:    entityID,
				Value:       v,
				UpdatedAt:   now,
			})
		}
	}
	if len(values) == 0 {
		return nil
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "attribute_id"}, {Name: "entity_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).CreateInBatches(values, 100).Error
	if err != nil {
		return errors.Wrap(err, "failed to save attribute values")
	}
	return nil
}

// Reset drops all cached and pending values. Called after every flush.
func (s *AttributeSet) Reset() {
	s.stored = make(map[uint]map[uint]string)
	s.pending = make(map[uint]map[uint]string)
	s.order = nil
}
