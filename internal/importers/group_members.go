package importers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"gorm.io/gorm"

	"github.com/mrlokans/congregate/internal/database"
	"github.com/mrlokans/congregate/internal/entities"
	"github.com/mrlokans/congregate/internal/legacy"
	"github.com/mrlokans/congregate/internal/rules"
)

// Group member attribute keys.
const (
	AttributeKeyAssignedServices = "AssignedServices"
	AttributeKeyAssignedTeam     = "AssignedTeam"
	AttributeKeyJob              = "Job"
)

var groupMemberAttributes = []entities.Attribute{
	{EntityType: entities.EntityTypeGroupMember, Key: AttributeKeyAssignedServices, Name: "Assigned Services", IsMultiValue: true},
	{EntityType: entities.EntityTypeGroupMember, Key: AttributeKeyAssignedTeam, Name: "Assigned Team", IsMultiValue: true},
	{EntityType: entities.EntityTypeGroupMember, Key: AttributeKeyJob, Name: "Job"},
}

var groupMemberStrategies = map[string]rules.Strategy{
	AttributeKeyAssignedServices: rules.StrategyAccumulate,
	AttributeKeyAssignedTeam:     rules.StrategyAccumulate,
	AttributeKeyJob:              rules.StrategyReplace,
}

// GroupMemberMapper imports the positional group membership extract.
// Inactive rows become dated history on the person; active rows become group
// members with their service assignments.
type GroupMemberMapper struct{}

func (m *GroupMemberMapper) Table() string { return TableGroupMember }

type memberState int

const (
	memberNew memberState = iota
	memberExisting
)

type memberKey struct {
	group, person uint
}

type memberWrite struct {
	history []*entities.History
	member  *entities.GroupMember
	state   memberState
	attrs   map[string]string
}

// memberFinder resolves group members by (group, person), remembering the
// ones queued in the current batch.
type memberFinder struct {
	pending map[memberKey]*entities.GroupMember
}

func (f *memberFinder) findOrCreate(db *gorm.DB, groupID, personID uint) (*entities.GroupMember, memberState, error) {
	key := memberKey{groupID, personID}
	if gm, ok := f.pending[key]; ok {
		return gm, memberExisting, nil
	}

	var gm entities.GroupMember
	err := db.Where("group_id = ? AND person_id = ?", groupID, personID).First(&gm).Error
	switch {
	case err == nil:
		f.pending[key] = &gm
		return &gm, memberExisting, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		created := &entities.GroupMember{GroupID: groupID, PersonID: personID}
		f.pending[key] = created
		return created, memberNew, nil
	default:
		return nil, memberNew, errors.Wrap(err, "failed to load group member")
	}
}

// roleFinder resolves roles by name within a group type.
type roleFinder struct {
	byType map[uint][]entities.GroupTypeRole
	types  map[uint]*entities.GroupType
}

func (r *roleFinder) resolve(db *gorm.DB, groupTypeID uint, name string) (uint, error) {
	roles, ok := r.byType[groupTypeID]
	if !ok {
		if err := db.Where("group_type_id = ?", groupTypeID).Order("id").Find(&roles).Error; err != nil {
			return 0, errors.Wrap(err, "failed to load group roles")
		}
		r.byType[groupTypeID] = roles
	}
	for _, role := range roles {
		if strings.EqualFold(role.Name, name) {
			return role.ID, nil
		}
	}

	gt, ok := r.types[groupTypeID]
	if !ok {
		gt = &entities.GroupType{}
		if err := db.First(gt, groupTypeID).Error; err != nil {
			return 0, errors.Wrapf(err, "failed to load group type %d", groupTypeID)
		}
		r.types[groupTypeID] = gt
	}
	if gt.DefaultRoleID != nil {
		return *gt.DefaultRoleID, nil
	}
	if len(roles) > 0 {
		return roles[0].ID, nil
	}
	return 0, nil
}

func (m *GroupMemberMapper) Map(ctx context.Context, env *Env, src legacy.Source) (Stats, error) {
	db := env.Gateway.Session(ctx)
	category, err := database.FindCategory(db, database.CategoryGroupMembership, entities.EntityTypePerson)
	if err != nil {
		return Stats{}, errors.Wrap(err, "failed to load group membership category")
	}
	if category == nil {
		return Stats{}, &PreconditionError{Table: m.Table(), Requirement: "category " + database.CategoryGroupMembership + " is missing"}
	}
	groups, err := newGroupResolver(db)
	if err != nil {
		return Stats{}, err
	}
	attrs, err := ensureAttributes(db, groupMemberAttributes)
	if err != nil {
		return Stats{}, err
	}
	history, err := database.ForeignKeys[entities.History](db)
	if err != nil {
		return Stats{}, errors.Wrap(err, "failed to load imported membership history")
	}
	set := NewAttributeSet(attrs)
	roles := &roleFinder{byType: make(map[uint][]entities.GroupTypeRole), types: make(map[uint]*entities.GroupType)}
	finder := &memberFinder{pending: make(map[memberKey]*entities.GroupMember)}
	env.report(0, fmt.Sprintf("Starting group member import (%d people exist).", env.People.Len()))

	batch := NewBatch(ctx, m.Table(), "group members", env, func(tx *gorm.DB, items []memberWrite) error {
		return saveGroupMembers(tx, env, set, items)
	})
	batch.AfterFlush(func() {
		finder.pending = make(map[memberKey]*entities.GroupMember)
		set.Reset()
	})

	for {
		rec, ok, err := src.Next()
		if err != nil {
			return batch.Stats(), errors.Wrap(err, "failed to read GroupMember")
		}
		if !ok {
			break
		}

		groupID, individualID := rec.Int("Group_ID"), rec.Int("Individual_ID")
		if groupID == nil || individualID == nil {
			batch.Skip()
			continue
		}
		person := env.People.GetPersonKeys(individualID, nil, true)
		group, err := groups.resolve(batch.Session(), *groupID)
		if err != nil {
			return batch.Stats(), err
		}
		if person == nil || group == nil {
			batch.Skip()
			continue
		}

		key := keyOf("Individual_ID", individualID) + " Group_ID " + rec.String("Group_ID")
		added, err := rec.Time("Date_Added")
		if err != nil {
			return batch.Stats(), &ParseError{Table: m.Table(), Key: key, Field: "Date_Added", Value: rec.String("Date_Added"), Err: err}
		}

		status := rec.String("Member_Status")
		if status == "" {
			status = "Inactive"
		}

		if strings.EqualFold(status, "Inactive") {
			write := memberWrite{}
			record := func(caption, verb string, at time.Time) {
				hk := historyKey(*individualID, group.ID, verb, at)
				if _, done := history[hk]; done {
					return
				}
				history[hk] = struct{}{}
				h := membershipHistory(env, category.ID, person.PersonID, group.ID, caption, verb, at)
				h.ForeignKey = hk
				write.history = append(write.history, h)
			}
			if added != nil {
				record("Added to group.", "added", *added)
			}
			removed, err := rec.Time("Date_Inactivated")
			if err != nil {
				env.report(0, fmt.Sprintf("%s: ignoring removal date %q", key, rec.String("Date_Inactivated")))
			} else if removed != nil {
				record("Removed from group.", "removed", *removed)
			}
			if len(write.history) == 0 {
				batch.Skip()
				continue
			}
			if err := batch.Add(ctx, write); err != nil {
				return batch.Stats(), err
			}
			continue
		}

		roleName := rec.String("Group_Role")
		if rec.Int("Group_Type_ID") == nil || roleName == "" {
			batch.Skip()
			continue
		}
		roleID, err := roles.resolve(batch.Session(), group.GroupTypeID, roleName)
		if err != nil {
			return batch.Stats(), err
		}

		member, state, err := finder.findOrCreate(batch.Session(), group.ID, person.PersonID)
		if err != nil {
			return batch.Stats(), err
		}
		member.GroupRoleID = roleID
		member.Status = entities.GroupMemberActive
		if added != nil {
			member.DateTimeAdded = added
		}
		if state == memberNew {
			member.Provenance = env.Stamp(nil)
		}

		write := memberWrite{member: member, state: state, attrs: map[string]string{}}
		for key, col := range map[string]string{
			AttributeKeyAssignedServices: "Assigned_Services",
			AttributeKeyAssignedTeam:     "Assigned_Team",
			AttributeKeyJob:              "Job",
		} {
			if v := rec.String(col); v != "" {
				write.attrs[key] = v
			}
		}
		if err := batch.Add(ctx, write); err != nil {
			return batch.Stats(), err
		}
	}

	stats, err := batch.Finish(ctx)
	if err != nil {
		return stats, err
	}
	env.report(100, fmt.Sprintf("Finished group member import: %d rows processed", stats.Completed))
	return stats, nil
}

// historyKey identifies one membership history record across runs.
func historyKey(individualID int, groupID uint, verb string, at time.Time) string {
	return fmt.Sprintf("gm|%d|%d|%s|%s", individualID, groupID, verb, at.Format(foreignKeyTime))
}

func membershipHistory(env *Env, categoryID, personID, groupID uint, caption, verb string, at time.Time) *entities.History {
	h := &entities.History{
		CategoryID:        categoryID,
		EntityType:        entities.EntityTypePerson,
		EntityID:          personID,
		RelatedEntityType: entities.EntityTypeGroup,
		RelatedEntityID:   entities.UintPtr(groupID),
		Verb:              verb,
		Caption:           caption,
		Provenance:        env.Stamp(nil),
	}
	h.CreatedDateTime = at
	return h
}

func saveGroupMembers(tx *gorm.DB, env *Env, set *AttributeSet, items []memberWrite) error {
	var (
		history  []*entities.History
		created  []*entities.GroupMember
		existing []*entities.GroupMember
	)
	seen := make(map[*entities.GroupMember]bool)
	for _, it := range items {
		history = append(history, it.history...)
		if it.member == nil || seen[it.member] {
			continue
		}
		seen[it.member] = true
		if it.member.ID == 0 {
			created = append(created, it.member)
		} else {
			existing = append(existing, it.member)
		}
	}

	if err := database.BulkInsert(tx, history); err != nil {
		return errors.Wrap(err, "failed to save membership history")
	}
	if err := database.BulkInsert(tx, created); err != nil {
		return errors.Wrap(err, "failed to save group members")
	}
	for _, gm := range existing {
		if err := tx.Model(gm).Select("group_role_id", "status", "date_time_added").Updates(gm).Error; err != nil {
			return errors.Wrap(err, "failed to update group member")
		}
	}

	for _, it := range items {
		if it.member == nil {
			continue
		}
		for key, v := range it.attrs {
			if err := set.Set(tx, it.member.ID, key, v, groupMemberStrategies[key]); err != nil {
				return err
			}
		}
	}
	return set.Flush(tx, env.ImportedAt)
}
