// Package keyindex maps legacy individual and household ids to the people
// already imported into the destination.
//
// An Index is a snapshot. It is built once, never mutated, and handed to every
// mapper of a run. Rebuilding after people are imported yields a new snapshot.
package keyindex

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mrlokans/congregate/internal/database"
	"github.com/mrlokans/congregate/internal/entities"
)

// Role is a household role derived from the legacy position label.
type Role string

const (
	RoleHead    Role = "head"
	RoleSpouse  Role = "spouse"
	RoleChild   Role = "child"
	RoleVisitor Role = "visitor"
	RoleOther   Role = "other"
)

// PersonKey links one legacy individual to its destination person.
type PersonKey struct {
	IndividualID  *int                `json:"individual_id,omitempty"`
	HouseholdID   *int                `json:"household_id,omitempty"`
	PersonID      uint                `json:"person_id"`
	PersonAliasID uint                `json:"person_alias_id"`
	FamilyRole    entities.FamilyRole `json:"family_role"`
	Position      string              `json:"position"`
}

// Role classifies the household position label.
func (k PersonKey) Role() Role {
	switch strings.ToLower(strings.TrimSpace(k.Position)) {
	case "head":
		return RoleHead
	case "spouse":
		return RoleSpouse
	case "child":
		return RoleChild
	case "visitor":
		return RoleVisitor
	}
	if k.FamilyRole == entities.FamilyRoleVisitor {
		return RoleVisitor
	}
	return RoleOther
}

// AliasID returns the alias id or nil when the person has no alias.
func (k PersonKey) AliasID() *uint {
	return entities.UintPtr(k.PersonAliasID)
}

func (k PersonKey) isVisitor() bool {
	return k.FamilyRole == entities.FamilyRoleVisitor
}

// Index is an immutable lookup over imported people.
type Index struct {
	keys         []PersonKey
	byIndividual map[int]int
	byHousehold  map[int][]int
}

// ErrNoPeople is returned by callers that require at least one imported person.
var ErrNoPeople = errors.New("no imported people found")

// New builds an index from keys. Keys are kept in the given order; a repeated
// individual id keeps the first key.
func New(keys []PersonKey) *Index {
	idx := &Index{
		byIndividual: make(map[int]int, len(keys)),
		byHousehold:  make(map[int][]int),
	}
	for _, k := range keys {
		if k.IndividualID != nil {
			if _, dup := idx.byIndividual[*k.IndividualID]; dup {
				logrus.WithFields(logrus.Fields{
					"component":     "keyindex",
					"individual_id": *k.IndividualID,
					"person_id":     k.PersonID,
				}).Warn("Duplicate legacy individual id, keeping first person")
				continue
			}
		}
		pos := len(idx.keys)
		idx.keys = append(idx.keys, k)
		if k.IndividualID != nil {
			idx.byIndividual[*k.IndividualID] = pos
		}
		if k.HouseholdID != nil {
			idx.byHousehold[*k.HouseholdID] = append(idx.byHousehold[*k.HouseholdID], pos)
		}
	}
	return idx
}

type attributeRow struct {
	EntityID uint
	Value    string
}

type aliasRow struct {
	ID        uint
	PersonID  uint
	ForeignID *int
}

type personRow struct {
	ID         uint
	FamilyRole entities.FamilyRole
}

// Build reads every person carrying both the legacy household id and the
// household position attributes. Keys are ordered by person id.
func Build(ctx context.Context, db *gorm.DB) (*Index, error) {
	db = db.WithContext(ctx)

	householdAttr, err := database.LookupAttribute(db, entities.EntityTypePerson, entities.AttributeKeyHouseholdID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load household id attribute")
	}
	positionAttr, err := database.LookupAttribute(db, entities.EntityTypePerson, entities.AttributeKeyHouseholdPosition)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load household position attribute")
	}
	if householdAttr == nil || positionAttr == nil {
		return New(nil), nil
	}
	individualAttr, err := database.LookupAttribute(db, entities.EntityTypePerson, entities.AttributeKeyIndividualID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load individual id attribute")
	}

	households, err := attributeValues(db, householdAttr.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load household ids")
	}
	positions, err := attributeValues(db, positionAttr.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load household positions")
	}
	individuals := map[uint]string{}
	if individualAttr != nil {
		if individuals, err = attributeValues(db, individualAttr.ID); err != nil {
			return nil, errors.Wrap(err, "failed to load individual ids")
		}
	}

	var aliases []aliasRow
	if err := db.Model(&entities.PersonAlias{}).Select("id, person_id, foreign_id").Order("id").Scan(&aliases).Error; err != nil {
		return nil, errors.Wrap(err, "failed to load person aliases")
	}
	firstAlias := make(map[uint]aliasRow, len(aliases))
	for _, a := range aliases {
		if _, ok := firstAlias[a.PersonID]; !ok {
			firstAlias[a.PersonID] = a
		}
	}

	var people []personRow
	if err := db.Model(&entities.Person{}).Select("id, family_role").Scan(&people).Error; err != nil {
		return nil, errors.Wrap(err, "failed to load people")
	}
	roles := make(map[uint]entities.FamilyRole, len(people))
	for _, p := range people {
		roles[p.ID] = p.FamilyRole
	}

	personIDs := make([]uint, 0, len(households))
	for id := range households {
		if _, ok := positions[id]; ok {
			personIDs = append(personIDs, id)
		}
	}
	sort.Slice(personIDs, func(i, j int) bool { return personIDs[i] < personIDs[j] })

	keys := make([]PersonKey, 0, len(personIDs))
	for _, id := range personIDs {
		key := PersonKey{
			PersonID:   id,
			FamilyRole: roles[id],
			Position:   positions[id],
		}
		// A household id that is not an integer leaves the person reachable
		// by individual id only.
		if n, err := strconv.Atoi(strings.TrimSpace(households[id])); err == nil {
			key.HouseholdID = &n
		}
		if alias, ok := firstAlias[id]; ok {
			key.PersonAliasID = alias.ID
			key.IndividualID = alias.ForeignID
		}
		if key.IndividualID == nil {
			if n, err := strconv.Atoi(strings.TrimSpace(individuals[id])); err == nil {
				key.IndividualID = &n
			}
		}
		keys = append(keys, key)
	}
	return New(keys), nil
}

func attributeValues(db *gorm.DB, attributeID uint) (map[uint]string, error) {
	var rows []attributeRow
	err := db.Model(&entities.AttributeValue{}).
		Select("entity_id, value").
		Where("attribute_id = ?", attributeID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uint]string, len(rows))
	for _, r := range rows {
		out[r.EntityID] = r.Value
	}
	return out, nil
}

// GetPersonKeys resolves a legacy reference to one person. An individual id
// always takes precedence and is an exact match. Otherwise the household is
// ranked head first, then spouse, then build order.
func (idx *Index) GetPersonKeys(individualID, householdID *int, includeVisitors bool) *PersonKey {
	if individualID != nil {
		pos, ok := idx.byIndividual[*individualID]
		if !ok {
			return nil
		}
		k := idx.keys[pos]
		return &k
	}
	if householdID == nil {
		return nil
	}

	var best *PersonKey
	bestRank := 3
	for _, pos := range idx.byHousehold[*householdID] {
		k := idx.keys[pos]
		if !includeVisitors && k.isVisitor() {
			continue
		}
		rank := rankOf(k)
		if rank < bestRank {
			kk := k
			best, bestRank = &kk, rank
		}
	}
	return best
}

func rankOf(k PersonKey) int {
	switch k.Role() {
	case RoleHead:
		return 0
	case RoleSpouse:
		return 1
	default:
		return 2
	}
}

// Family lists the members of a household in build order.
func (idx *Index) Family(householdID int, includeVisitors bool) []PersonKey {
	var out []PersonKey
	for _, pos := range idx.byHousehold[householdID] {
		k := idx.keys[pos]
		if !includeVisitors && k.isVisitor() {
			continue
		}
		out = append(out, k)
	}
	return out
}

// Contains reports whether the individual id is already imported.
func (idx *Index) Contains(individualID int) bool {
	_, ok := idx.byIndividual[individualID]
	return ok
}

// Len is the number of keys.
func (idx *Index) Len() int {
	return len(idx.keys)
}

// Households is the number of distinct households.
func (idx *Index) Households() int {
	return len(idx.byHousehold)
}

// HasPeople reports whether any person has been imported.
func (idx *Index) HasPeople() bool {
	return len(idx.keys) > 0
}

// Keys returns a copy of all keys in build order.
func (idx *Index) Keys() []PersonKey {
	out := make([]PersonKey, len(idx.keys))
	copy(out, idx.keys)
	return out
}
