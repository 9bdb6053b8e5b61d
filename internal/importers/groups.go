package importers

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"gorm.io/gorm"

	"github.com/mrlokans/congregate/internal/database"
	"github.com/mrlokans/congregate/internal/entities"
	"github.com/mrlokans/congregate/internal/legacy"
)

// RoleMember is the default role of imported group types.
const RoleMember = "Member"

// GroupMapper imports Groups keyed by Group_ID. Group types are created on
// first use with a single Member role.
type GroupMapper struct{}

func (m *GroupMapper) Table() string { return TableGroups }

// groupTypes caches group types by name.
type groupTypes struct {
	byName map[string]*entities.GroupType
}

func (g *groupTypes) get(db *gorm.DB, name string) (*entities.GroupType, error) {
	if gt, ok := g.byName[name]; ok {
		return gt, nil
	}
	gt := &entities.GroupType{}
	if err := db.Where(entities.GroupType{Name: name}).FirstOrCreate(gt).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to create group type %s", name)
	}
	if gt.DefaultRoleID == nil {
		role, err := ensureRole(db, gt.ID, RoleMember, false)
		if err != nil {
			return nil, err
		}
		gt.DefaultRoleID = &role.ID
		if err := db.Model(gt).Update("default_role_id", role.ID).Error; err != nil {
			return nil, errors.Wrapf(err, "failed to set default role of %s", name)
		}
	}
	g.byName[name] = gt
	return gt, nil
}

func (m *GroupMapper) Map(ctx context.Context, env *Env, src legacy.Source) (Stats, error) {
	db := env.Gateway.Session(ctx)
	campuses, err := loadCampuses(db, env.DefaultCampus)
	if err != nil {
		return Stats{}, err
	}
	imported, err := database.ForeignIDs[entities.Group](db)
	if err != nil {
		return Stats{}, errors.Wrap(err, "failed to load imported groups")
	}
	types := &groupTypes{byName: make(map[string]*entities.GroupType)}
	env.report(0, fmt.Sprintf("Verifying group import (%d already exist).", len(imported)))

	// Parents are linked after insert because a child row may precede its parent.
	parents := make(map[int]int)
	batch := NewBatch(ctx, m.Table(), "groups", env, func(tx *gorm.DB, items []*entities.Group) error {
		if err := database.BulkInsert(tx, items); err != nil {
			return err
		}
		for _, g := range items {
			imported[*g.ForeignID] = g.ID
		}
		return nil
	})

	for {
		rec, ok, err := src.Next()
		if err != nil {
			return batch.Stats(), errors.Wrap(err, "failed to read Groups")
		}
		if !ok {
			break
		}

		id := rec.Int("Group_ID")
		if id == nil {
			batch.Skip()
			continue
		}
		if _, done := imported[*id]; done || pendingGroup(batch.Pending(), *id) {
			batch.Skip()
			continue
		}

		typeName := rec.String("Group_Type_Name")
		if typeName == "" {
			typeName = "General"
		}
		gt, err := types.get(batch.Session(), typeName)
		if err != nil {
			return batch.Stats(), err
		}

		campusID := campuses.fallback()
		if c := campuses.byName(rec.String("Campus_Name")); c != nil {
			campusID = entities.UintPtr(c.ID)
		} else if p := campuses.prefixID(rec.String("Group_Name")); p != nil {
			campusID = p
		}

		isActive := true
		if !rec.IsBlank("Is_Active") {
			isActive = rec.Bool("Is_Active")
		}
		if parent := rec.Int("Parent_Group_ID"); parent != nil {
			parents[*id] = *parent
		}

		group := &entities.Group{
			GroupTypeID: gt.ID,
			CampusID:    campusID,
			Name:        truncate(rec.String("Group_Name"), 100),
			Description: rec.String("Description"),
			IsActive:    isActive,
			Provenance:  env.Stamp(id),
		}
		if err := batch.Add(ctx, group); err != nil {
			return batch.Stats(), err
		}
	}

	stats, err := batch.Finish(ctx)
	if err != nil {
		return stats, err
	}
	if err := linkParentGroups(ctx, env, imported, parents); err != nil {
		return stats, err
	}
	env.report(100, fmt.Sprintf("Finished group import: %d groups imported.", stats.Completed))
	return stats, nil
}

func pendingGroup(pending []*entities.Group, id int) bool {
	for _, g := range pending {
		if g.ForeignID != nil && *g.ForeignID == id {
			return true
		}
	}
	return false
}

func linkParentGroups(ctx context.Context, env *Env, ids map[int]uint, parents map[int]int) error {
	if len(parents) == 0 {
		return nil
	}
	return env.Gateway.UnitOfWork(ctx, func(tx *gorm.DB) error {
		for child, parent := range parents {
			childID, ok := ids[child]
			parentID, pok := ids[parent]
			if !ok || !pok {
				continue
			}
			err := tx.Model(&entities.Group{}).Where("id = ?", childID).Update("parent_group_id", parentID).Error
			if err != nil {
				return errors.Wrapf(err, "failed to link group %d to parent %d", child, parent)
			}
		}
		return nil
	})
}
