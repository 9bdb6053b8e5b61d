package importers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"gorm.io/gorm"

	"github.com/mrlokans/congregate/internal/database"
	"github.com/mrlokans/congregate/internal/entities"
	"github.com/mrlokans/congregate/internal/legacy"
)

// Family group roles.
const (
	RoleAdult = "Adult"
	RoleChild = "Child"
)

const householdKeyPrefix = "household:"

func householdKey(householdID int) string {
	return householdKeyPrefix + strconv.Itoa(householdID)
}

// HouseholdMapper imports Individual_Household: one person per row, grouped
// into family groups by household id. The legacy identity is kept on the
// person alias and in the F1 attributes read by the key index.
type HouseholdMapper struct{}

func (m *HouseholdMapper) Table() string        { return TableIndividualHousehold }
func (m *HouseholdMapper) ProducesPeople() bool { return true }

type householdMember struct {
	person      *entities.Person
	householdID int
	family      string
	adult       bool
	attrs       map[string]string
}

// familyGroups tracks the family group of every household seen so far.
type familyGroups struct {
	groupType *entities.GroupType
	adultRole uint
	childRole uint
	byHH      map[int]uint
}

func loadFamilyGroups(db *gorm.DB) (*familyGroups, error) {
	var gt entities.GroupType
	if err := db.Where(entities.GroupType{Name: entities.GroupTypeFamily}).FirstOrCreate(&gt).Error; err != nil {
		return nil, errors.Wrap(err, "failed to create family group type")
	}
	adult, err := ensureRole(db, gt.ID, RoleAdult, true)
	if err != nil {
		return nil, err
	}
	child, err := ensureRole(db, gt.ID, RoleChild, false)
	if err != nil {
		return nil, err
	}
	if gt.DefaultRoleID == nil {
		gt.DefaultRoleID = &adult.ID
		if err := db.Model(&gt).Update("default_role_id", adult.ID).Error; err != nil {
			return nil, errors.Wrap(err, "failed to set family default role")
		}
	}

	var groups []entities.Group
	err = db.Select("id, foreign_key").
		Where("group_type_id = ? AND foreign_key LIKE ?", gt.ID, householdKeyPrefix+"%").
		Find(&groups).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to load family groups")
	}
	byHH := make(map[int]uint, len(groups))
	for _, g := range groups {
		if id, err := strconv.Atoi(strings.TrimPrefix(g.ForeignKey, householdKeyPrefix)); err == nil {
			byHH[id] = g.ID
		}
	}
	return &familyGroups{groupType: &gt, adultRole: adult.ID, childRole: child.ID, byHH: byHH}, nil
}

func ensureRole(db *gorm.DB, groupTypeID uint, name string, leader bool) (*entities.GroupTypeRole, error) {
	role := entities.GroupTypeRole{GroupTypeID: groupTypeID, Name: name}
	err := db.Where(entities.GroupTypeRole{GroupTypeID: groupTypeID, Name: name}).
		Attrs(entities.GroupTypeRole{IsLeader: leader}).
		FirstOrCreate(&role).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create group role %s", name)
	}
	return &role, nil
}

func familyRole(position string) entities.FamilyRole {
	switch strings.ToLower(strings.TrimSpace(position)) {
	case "visitor":
		return entities.FamilyRoleVisitor
	case "child":
		return entities.FamilyRoleChild
	default:
		return entities.FamilyRoleAdult
	}
}

func (m *HouseholdMapper) Map(ctx context.Context, env *Env, src legacy.Source) (Stats, error) {
	db := env.Gateway.Session(ctx)
	attrs, err := database.EnsureLegacyAttributes(db)
	if err != nil {
		return Stats{}, err
	}
	families, err := loadFamilyGroups(db)
	if err != nil {
		return Stats{}, err
	}
	campuses, err := loadCampuses(db, env.DefaultCampus)
	if err != nil {
		return Stats{}, err
	}
	imported, err := database.ForeignIDs[entities.Person](db)
	if err != nil {
		return Stats{}, errors.Wrap(err, "failed to load imported people")
	}
	env.report(0, fmt.Sprintf("Verifying person import (%d already exist).", len(imported)))

	seen := make(map[int]bool)
	batch := NewBatch(ctx, m.Table(), "people", env, func(tx *gorm.DB, items []householdMember) error {
		return saveHouseholds(tx, env, families, campuses, attrs, items)
	})

	for {
		rec, ok, err := src.Next()
		if err != nil {
			return batch.Stats(), errors.Wrap(err, "failed to read Individual_Household")
		}
		if !ok {
			break
		}

		ind, hh := rec.Int("Individual_ID"), rec.Int("Household_ID")
		if ind == nil || hh == nil {
			batch.Skip()
			continue
		}
		if _, done := imported[*ind]; done || seen[*ind] {
			batch.Skip()
			continue
		}
		seen[*ind] = true

		member, err := readHouseholdMember(env, rec, *ind, *hh)
		if err != nil {
			return batch.Stats(), err
		}
		if err := batch.Add(ctx, member); err != nil {
			return batch.Stats(), err
		}
	}

	stats, err := batch.Finish(ctx)
	if err != nil {
		return stats, err
	}
	env.report(100, fmt.Sprintf("Finished person import: %d people imported.", stats.Completed))
	return stats, nil
}

func readHouseholdMember(env *Env, rec legacy.Record, ind, hh int) (householdMember, error) {
	birth, err := rec.Time("Date_Of_Birth")
	if err != nil {
		env.logger().WithField("individual_id", ind).Warnf("Ignoring birth date: %v", err)
		birth = nil
	}

	position := rec.String("Household_Position")
	status := entities.RecordStatusActive
	if strings.Contains(strings.ToLower(rec.String("Status_Name")), "inactive") {
		status = entities.RecordStatusInactive
	}

	person := &entities.Person{
		FirstName:    truncate(rec.String("First_Name"), 50),
		NickName:     truncate(rec.String("Goes_By"), 50),
		LastName:     truncate(rec.String("Last_Name"), 50),
		Email:        truncate(rec.String("Email"), 75),
		Gender:       rec.String("Gender"),
		BirthDate:    birth,
		FamilyRole:   familyRole(position),
		RecordStatus: status,
		Provenance:   env.Stamp(entities.IntPtr(ind)),
	}
	if person.NickName == "" {
		person.NickName = person.FirstName
	}

	values := map[string]string{
		entities.AttributeKeyIndividualID:      strconv.Itoa(ind),
		entities.AttributeKeyHouseholdID:       strconv.Itoa(hh),
		entities.AttributeKeyHouseholdPosition: position,
	}
	if v := rec.String("Secondary_Email"); v != "" {
		values[entities.AttributeKeySecondaryEmail] = v
	}
	if v := rec.String("InFellowship_Login"); v != "" {
		values[entities.AttributeKeyLogin] = v
	}

	family := rec.String("Household_Name")
	if family == "" {
		family = strings.TrimSpace(person.LastName + " Family")
	}
	return householdMember{
		person:      person,
		householdID: hh,
		family:      family,
		adult:       person.FamilyRole != entities.FamilyRoleChild,
		attrs:       values,
	}, nil
}

func saveHouseholds(tx *gorm.DB, env *Env, families *familyGroups, campuses *campusMatcher, attrs map[string]*entities.Attribute, items []householdMember) error {
	if len(items) == 0 {
		return nil
	}

	people := make([]*entities.Person, len(items))
	for i, it := range items {
		people[i] = it.person
	}
	if err := database.BulkInsert(tx, people); err != nil {
		return errors.Wrap(err, "failed to save people")
	}

	aliases := make([]*entities.PersonAlias, len(people))
	for i, p := range people {
		aliases[i] = &entities.PersonAlias{PersonID: p.ID, ForeignID: p.ForeignID}
	}
	if err := database.BulkInsert(tx, aliases); err != nil {
		return errors.Wrap(err, "failed to save person aliases")
	}

	members := make([]*entities.GroupMember, 0, len(items))
	var values []*entities.AttributeValue
	for _, it := range items {
		groupID, ok := families.byHH[it.householdID]
		if !ok {
			group := &entities.Group{
				GroupTypeID: families.groupType.ID,
				Name:        truncate(it.family, 100),
				CampusID:    campuses.fallback(),
				IsActive:    true,
				Provenance:  env.Stamp(nil),
			}
			group.ForeignKey = householdKey(it.householdID)
			if err := tx.Create(group).Error; err != nil {
				return errors.Wrapf(err, "failed to create family %s", it.family)
			}
			groupID = group.ID
			families.byHH[it.householdID] = groupID
		}

		role := families.adultRole
		if !it.adult {
			role = families.childRole
		}
		members = append(members, &entities.GroupMember{
			GroupID:       groupID,
			PersonID:      it.person.ID,
			GroupRoleID:   role,
			Status:        entities.GroupMemberActive,
			DateTimeAdded: &env.ImportedAt,
			Provenance:    env.Stamp(nil),
		})

		for key, v := range it.attrs {
			attr := attrs[key]
			// A blank position is still written; the key index needs the row.
			if attr == nil || (v == "" && key != entities.AttributeKeyHouseholdPosition) {
				continue
			}
			values = append(values, &entities.AttributeValue{
				AttributeID: attr.ID,
				EntityID:    it.person.ID,
				Value:       v,
				UpdatedAt:   env.ImportedAt,
			})
		}
	}

	if err := database.BulkInsert(tx, members); err != nil {
		return errors.Wrap(err, "failed to save family members")
	}
	return database.BulkInsert(tx, values)
}
