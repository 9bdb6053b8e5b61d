// Package rules holds the table-driven mapping from legacy attribute and
// requirement names to destination person attributes.
//
// A Table is loaded from YAML. The defaults are embedded and can be replaced
// by a file on disk:
//
//	table, err := rules.Load(cfg.Rules.AttributesPath, rules.DefaultAttributes)
//	rule := table.Match("Child Sponsorship-India")
//	result, err := rule.Apply(rec, people)
package rules

import (
	"embed"
	"os"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mrlokans/congregate/internal/entities"
	"github.com/mrlokans/congregate/internal/legacy"
)

//go:embed defaults/*.yaml
var defaults embed.FS

// Embedded default tables.
const (
	DefaultAttributes   = "defaults/attributes.yaml"
	DefaultRequirements = "defaults/requirements.yaml"
)

type MatchKind string

const (
	MatchEquals   MatchKind = "equals"
	MatchPrefix   MatchKind = "prefix"
	MatchContains MatchKind = "contains"
)

type Strategy string

const (
	StrategyReplace    Strategy = "replace"
	StrategyAccumulate Strategy = "accumulate"
)

// Assignment sets one destination attribute from a row.
type Assignment struct {
	Attribute string    `yaml:"attribute" validate:"required"`
	Name      string    `yaml:"name"`
	FieldType string    `yaml:"field_type" validate:"omitempty,oneof=text integer date boolean"`
	Field     string    `yaml:"field"`
	Value     string    `yaml:"value"`
	Transform Transform `yaml:"transform" validate:"omitempty,oneof=identity date true status pass_fail suffix person"`
	Strategy  Strategy  `yaml:"strategy" validate:"omitempty,oneof=replace accumulate"`
	// Once keeps the first value a person receives instead of merging.
	Once bool `yaml:"once"`
}

// Rule maps one legacy name onto a set of assignments. When Recency is set
// the rule only applies if the row's Date column is more recent than the
// stored value of the Recency attribute.
type Rule struct {
	Source  string       `yaml:"source" validate:"required"`
	Match   MatchKind    `yaml:"match" validate:"omitempty,oneof=equals prefix contains"`
	Recency string       `yaml:"recency"`
	Date    string       `yaml:"date" validate:"required_with=Recency"`
	Assign  []Assignment `yaml:"assign" validate:"required,min=1,dive"`
}

// Table is an ordered rule set; the first matching rule wins.
type Table struct {
	EntityType string `yaml:"entity_type" validate:"required"`
	Rules      []Rule `yaml:"rules" validate:"dive"`
}

// Load reads the table at path, or the embedded fallback when path is empty.
func Load(path, fallback string) (*Table, error) {
	var (
		data []byte
		err  error
	)
	if path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = defaults.ReadFile(fallback)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read rule table")
	}
	return Parse(data)
}

// Parse decodes and validates a YAML rule table.
func Parse(data []byte) (*Table, error) {
	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, errors.Wrap(err, "failed to parse rule table")
	}
	if err := validator.New().Struct(&table); err != nil {
		return nil, errors.Wrap(err, "invalid rule table")
	}
	for i := range table.Rules {
		r := &table.Rules[i]
		if r.Match == "" {
			r.Match = MatchEquals
		}
		for j := range r.Assign {
			a := &r.Assign[j]
			if a.Name == "" {
				a.Name = a.Attribute
			}
			if a.FieldType == "" {
				a.FieldType = entities.FieldTypeText
			}
			if a.Transform == "" {
				a.Transform = TransformIdentity
			}
			if a.Strategy == "" {
				a.Strategy = StrategyReplace
			}
		}
	}
	return &table, nil
}

// Match returns the first rule matching name, or nil.
func (t *Table) Match(name string) *Rule {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	for i := range t.Rules {
		if t.Rules[i].matches(name) {
			return &t.Rules[i]
		}
	}
	return nil
}

func (r *Rule) matches(name string) bool {
	n, s := strings.ToLower(name), strings.ToLower(r.Source)
	switch r.Match {
	case MatchPrefix:
		return strings.HasPrefix(n, s)
	case MatchContains:
		return strings.Contains(n, s)
	default:
		return n == s
	}
}

// Attributes lists every attribute the table writes, once each.
func (t *Table) Attributes() []entities.Attribute {
	seen := make(map[string]bool)
	var out []entities.Attribute
	for _, r := range t.Rules {
		for _, a := range r.Assign {
			if seen[a.Attribute] {
				continue
			}
			seen[a.Attribute] = true
			out = append(out, entities.Attribute{
				EntityType:   t.EntityType,
				Key:          a.Attribute,
				Name:         a.Name,
				FieldType:    a.FieldType,
				IsMultiValue: a.Strategy == StrategyAccumulate,
			})
		}
	}
	return out
}

// Change is one attribute value produced by a rule.
type Change struct {
	Attribute string
	Value     string
	Strategy  Strategy
	Once      bool
}

// Result is the outcome of applying a rule to a row.
type Result struct {
	Changes []Change
	// Date is the parsed recency column, nil when blank or not configured.
	Date *time.Time
}

// People resolves a legacy individual id to a stable destination reference.
type People interface {
	PersonReference(individualID int) (string, bool)
}

// Apply evaluates every assignment of the rule against rec, which matched
// under name. Assignments whose source is blank are left out. A date that
// cannot be parsed is an error wrapping legacy.ErrUnparseableDate.
func (r *Rule) Apply(rec legacy.Record, name string, people People) (Result, error) {
	var res Result
	if r.Date != "" {
		d, err := rec.Time(r.Date)
		if err != nil {
			return Result{}, err
		}
		res.Date = d
	}

	for _, a := range r.Assign {
		raw := a.Value
		if a.Field != "" {
			raw = rec.String(a.Field)
		}
		value, ok, err := a.Transform.apply(transformInput{
			raw:    raw,
			field:  a.Field,
			rec:    rec,
			name:   name,
			source: r.Source,
			people: people,
		})
		if err != nil {
			return Result{}, errors.Wrapf(err, "attribute %s", a.Attribute)
		}
		if !ok {
			continue
		}
		res.Changes = append(res.Changes, Change{
			Attribute: a.Attribute,
			Value:     value,
			Strategy:  a.Strategy,
			Once:      a.Once,
		})
	}
	return res, nil
}
