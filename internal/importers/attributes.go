package importers

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"gorm.io/gorm"

	"github.com/mrlokans/congregate/internal/entities"
	"github.com/mrlokans/congregate/internal/legacy"
	"github.com/mrlokans/congregate/internal/rules"
)

// AttributeMapper applies the attribute rule table to legacy person
// attributes, matched by Attribute_Name.
type AttributeMapper struct{}

func (m *AttributeMapper) Table() string { return TableAttribute }

// aliasReferences resolves legacy individuals to the guid of their primary
// alias, the stable reference stored in person-valued attributes.
type aliasReferences struct {
	env   *Env
	db    *gorm.DB
	cache map[uint]string
}

func (a *aliasReferences) PersonReference(individualID int) (string, bool) {
	person := a.env.People.GetPersonKeys(&individualID, nil, false)
	if person == nil || person.PersonAliasID == 0 {
		return "", false
	}
	if ref, ok := a.cache[person.PersonAliasID]; ok {
		return ref, ref != ""
	}
	var alias entities.PersonAlias
	if err := a.db.Select("id, alias_guid").First(&alias, person.PersonAliasID).Error; err != nil {
		a.env.logger().WithError(err).WithField("alias_id", person.PersonAliasID).Warn("Failed to load person alias")
		a.cache[person.PersonAliasID] = ""
		return "", false
	}
	ref := alias.AliasGuid.String()
	a.cache[person.PersonAliasID] = ref
	return ref, true
}

// ruleImport is the shared loop of the rule-driven person mappers.
type ruleImport struct {
	table     string
	nameField string
	rules     *rules.Table
	// recency enables the Recency guard of matched rules.
	recency bool
}

func loadRuleTable(table *rules.Table, fallback string) (*rules.Table, error) {
	if table != nil {
		return table, nil
	}
	return rules.Load("", fallback)
}

func (r *ruleImport) run(ctx context.Context, env *Env, src legacy.Source, noun string) (Stats, error) {
	db := env.Gateway.Session(ctx)
	attrs, err := ensureAttributes(db, r.rules.Attributes())
	if err != nil {
		return Stats{}, err
	}
	set := NewAttributeSet(attrs)
	people := &aliasReferences{env: env, db: db, cache: make(map[uint]string)}

	batch := NewBatch(ctx, r.table, noun, env, func(tx *gorm.DB, _ []uint) error {
		return set.Flush(tx, env.ImportedAt)
	})
	batch.AfterFlush(set.Reset)

	for {
		rec, ok, err := src.Next()
		if err != nil {
			return batch.Stats(), errors.Wrapf(err, "failed to read %s", r.table)
		}
		if !ok {
			break
		}

		individualID := rec.Int("Individual_ID")
		name := rec.String(r.nameField)
		rule := r.rules.Match(name)
		person := env.People.GetPersonKeys(individualID, nil, false)
		if rule == nil || person == nil {
			batch.Skip()
			continue
		}

		res, err := rule.Apply(rec, name, people)
		if err != nil {
			env.report(0, fmt.Sprintf("%s %s: %v", keyOf("Individual_ID", individualID), name, err))
			batch.Skip()
			continue
		}

		if r.recency && rule.Recency != "" {
			current, err := set.Current(batch.Session(), person.PersonID, rule.Recency)
			if err != nil {
				return batch.Stats(), err
			}
			if !rules.MoreRecent(current, res.Date) {
				batch.Skip()
				continue
			}
		}

		if err := set.Apply(batch.Session(), person.PersonID, res.Changes); err != nil {
			return batch.Stats(), err
		}
		if err := batch.Add(ctx, person.PersonID); err != nil {
			return batch.Stats(), err
		}
	}
	return batch.Finish(ctx)
}

func (m *AttributeMapper) Map(ctx context.Context, env *Env, src legacy.Source) (Stats, error) {
	table, err := loadRuleTable(env.Attributes, rules.DefaultAttributes)
	if err != nil {
		return Stats{}, err
	}
	env.report(0, fmt.Sprintf("Verifying attribute value import (%d found).", env.Total))

	imp := &ruleImport{table: m.Table(), nameField: "Attribute_Name", rules: table}
	stats, err := imp.run(ctx, env, src, "attribute values")
	if err != nil {
		return stats, err
	}
	env.report(100, fmt.Sprintf("Finished attribute value import: %d records imported.", stats.Completed))
	return stats, nil
}
