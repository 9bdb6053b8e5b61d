package importers

import (
	"context"
	"fmt"

	"github.com/mrlokans/congregate/internal/legacy"
	"github.com/mrlokans/congregate/internal/rules"
)

// RequirementMapper applies the requirement rule table, matched by
// Requirement_Name. A rule with a recency attribute only updates a person
// whose stored date is older than the row's Requirement_Date.
type RequirementMapper struct{}

func (m *RequirementMapper) Table() string { return TableRequirement }

func (m *RequirementMapper) Map(ctx context.Context, env *Env, src legacy.Source) (Stats, error) {
	table, err := loadRuleTable(env.Requirements, rules.DefaultRequirements)
	if err != nil {
		return Stats{}, err
	}
	env.report(0, fmt.Sprintf("Verifying requirement import (%d found).", env.Total))

	imp := &ruleImport{table: m.Table(), nameField: "Requirement_Name", rules: table, recency: true}
	stats, err := imp.run(ctx, env, src, "requirements")
	if err != nil {
		return stats, err
	}
	env.report(100, fmt.Sprintf("Finished requirement import: %d records imported.", stats.Completed))
	return stats, nil
}
