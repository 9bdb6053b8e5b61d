package rules

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/congregate/internal/entities"
	"github.com/mrlokans/congregate/internal/legacy"
)

type stubPeople map[int]string

func (s stubPeople) PersonReference(id int) (string, bool) {
	v, ok := s[id]
	return v, ok
}

func attributeRow(name string, values ...any) legacy.Record {
	cols := []string{"Individual_ID", "Attribute_Name", "Start_Date", "End_Date", "Comment", "Staff_Individual_ID"}
	return legacy.NewRecord("Attribute", cols, append([]any{int64(1), name}, values...))
}

func TestLoad_Defaults(t *testing.T) {
	attrs, err := Load("", DefaultAttributes)
	require.NoError(t, err)
	assert.NotEmpty(t, attrs.Rules)
	assert.Equal(t, entities.EntityTypePerson, attrs.EntityType)

	reqs, err := Load("", DefaultRequirements)
	require.NoError(t, err)

	cia := reqs.Match("CIA Clearance")
	require.NotNil(t, cia)
	assert.Equal(t, "BackgroundCheckDate", cia.Recency)
	assert.Len(t, cia.Assign, 3)

	megan := reqs.Match("Meagan's Law Clearance")
	require.NotNil(t, megan)
	assert.Equal(t, cia.Assign, megan.Assign)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
entity_type: person
rules:
  - source: Volunteer
    match: prefix
    assign:
      - attribute: VolunteerAreas
        transform: suffix
        strategy: accumulate
`), 0o644))

	table, err := Load(path, DefaultAttributes)
	require.NoError(t, err)

	rule := table.Match("volunteer - Nursery")
	require.NotNil(t, rule)
	a := rule.Assign[0]
	assert.Equal(t, "VolunteerAreas", a.Name)
	assert.Equal(t, entities.FieldTypeText, a.FieldType)
	assert.Equal(t, StrategyAccumulate, a.Strategy)

	attrs := table.Attributes()
	require.Len(t, attrs, 1)
	assert.True(t, attrs[0].IsMultiValue)
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"missing source":    "entity_type: person\nrules:\n  - assign:\n      - attribute: A\n",
		"no assignments":    "entity_type: person\nrules:\n  - source: A\n",
		"bad strategy":      "entity_type: person\nrules:\n  - source: A\n    assign:\n      - attribute: A\n        strategy: append\n",
		"bad match":         "entity_type: person\nrules:\n  - source: A\n    match: regex\n    assign:\n      - attribute: A\n",
		"recency sans date": "entity_type: person\nrules:\n  - source: A\n    recency: B\n    assign:\n      - attribute: A\n",
		"not yaml":          "rules: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestTable_MatchKinds(t *testing.T) {
	table, err := Load("", DefaultAttributes)
	require.NoError(t, err)

	assert.NotNil(t, table.Match("Photo Consent"))
	assert.Nil(t, table.Match("Photo Consent Revoked"), "equals does not match longer names")
	assert.NotNil(t, table.Match("Child Sponsorship-Uganda-CSP"))
	assert.NotNil(t, table.Match("Staff: Hire Date"))
	assert.Nil(t, table.Match("Unknown attribute"))
	assert.Nil(t, table.Match("  "))
}

func TestRule_ApplyChildSponsorship(t *testing.T) {
	table, err := Load("", DefaultAttributes)
	require.NoError(t, err)

	name := "Child Sponsorship-Vietnam-Father's House"
	rec := attributeRow(name, "2019-04-01", nil, "Minh", nil)
	res, err := table.Match(name).Apply(rec, name, nil)
	require.NoError(t, err)

	values := map[string]string{}
	for _, c := range res.Changes {
		values[c.Attribute] = c.Value
		assert.True(t, c.Once)
	}
	assert.Equal(t, "Vietnam-Father's House", values["ChildSponsorshipLocation"])
	assert.Equal(t, "Minh", values["ChildSponsorshipName"])
	assert.Equal(t, "2019-04-01T00:00:00", values["ChildSponsorshipStartDate"])
}

func TestRule_ApplySkipsBlankSources(t *testing.T) {
	table, err := Load("", DefaultAttributes)
	require.NoError(t, err)

	rec := attributeRow("Child Sponsorship-India", nil, nil, "", nil)
	res, err := table.Match("Child Sponsorship-India").Apply(rec, "Child Sponsorship-India", nil)
	require.NoError(t, err)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, "India", res.Changes[0].Value)
}

func TestRule_ApplyPersonReference(t *testing.T) {
	table, err := Load("", DefaultAttributes)
	require.NoError(t, err)
	rule := table.Match("Leadership Development")

	res, err := rule.Apply(attributeRow("Leadership Development", nil, nil, nil, int64(77)), "Leadership Development", stubPeople{77: "alias-guid"})
	require.NoError(t, err)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, "alias-guid", res.Changes[0].Value)

	res, err = rule.Apply(attributeRow("Leadership Development", nil, nil, nil, int64(78)), "Leadership Development", stubPeople{})
	require.NoError(t, err)
	assert.Empty(t, res.Changes)
}

func TestRule_ApplyRequirement(t *testing.T) {
	table, err := Load("", DefaultRequirements)
	require.NoError(t, err)

	cols := []string{"Individual_ID", "Requirement_Name", "Requirement_Date", "Requirement_Status_Name"}
	rec := legacy.NewRecord("Requirement", cols, []any{int64(5), "Application on File", "06/01/2019", "Approved"})

	res, err := table.Match("Application on File").Apply(rec, "Application on File", nil)
	require.NoError(t, err)
	require.NotNil(t, res.Date)
	assert.Equal(t, time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC), *res.Date)
	require.Len(t, res.Changes, 2)
	assert.Equal(t, Change{Attribute: "ApplicationOnFileStatus", Value: "Completed", Strategy: StrategyReplace}, res.Changes[0])

	bad := legacy.NewRecord("Requirement", cols, []any{int64(5), "CIA Clearance", "sometime", "Denied"})
	_, err = table.Match("CIA Clearance").Apply(bad, "CIA Clearance", nil)
	assert.ErrorIs(t, err, legacy.ErrUnparseableDate)
}

func TestTransforms(t *testing.T) {
	pf := func(raw string) string {
		v, _, _ := TransformPassFail.apply(transformInput{raw: raw})
		return v
	}
	assert.Equal(t, "Pass", pf("Approved"))
	assert.Equal(t, "Pass", pf("Completed"))
	assert.Equal(t, "Fail", pf("Denied"))

	v, ok, _ := TransformStatus.apply(transformInput{raw: "Pending"})
	assert.True(t, ok)
	assert.Equal(t, "Pending", v)

	_, ok, _ = TransformIdentity.apply(transformInput{raw: ""})
	assert.False(t, ok)
}

func TestTransformPerson(t *testing.T) {
	people := stubPeople{42: "alias-42"}

	v, ok, err := TransformPerson.apply(transformInput{raw: "42", people: people})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "alias-42", v)

	_, ok, err = TransformPerson.apply(transformInput{raw: "43", people: people})
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = TransformPerson.apply(transformInput{raw: "n/a", people: people})
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = TransformPerson.apply(transformInput{raw: "42"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMerge(t *testing.T) {
	assert.Equal(t, "A,B", Merge("A", "B", StrategyAccumulate))
	assert.Equal(t, "B", Merge("A", "B", StrategyReplace))
	assert.Equal(t, "B", Merge("", "B", StrategyAccumulate))
	assert.Equal(t, "A,B", Merge("A,B", "B", StrategyAccumulate))
	assert.Equal(t, "A", Merge("A", "", StrategyAccumulate))
}

func TestMoreRecent(t *testing.T) {
	stored := "2020-01-01T00:00:00"
	older := time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.False(t, MoreRecent(stored, &older))
	assert.True(t, MoreRecent(stored, &newer))
	assert.True(t, MoreRecent("", &older))
	assert.True(t, MoreRecent("", nil))
	assert.False(t, MoreRecent(stored, nil))
	assert.False(t, MoreRecent("not a date", &newer))
	assert.False(t, MoreRecent("2020-01-01", &time.Time{}))
}
