package importers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/congregate/internal/entities"
	"github.com/mrlokans/congregate/internal/rules"
)

// currentValues reads the stored values of keys for person through a fresh
// attribute set.
func currentValues(t *testing.T, db *gorm.DB, table *rules.Table, personID uint, keys ...string) map[string]string {
	t.Helper()
	attrs, err := ensureAttributes(db, table.Attributes())
	require.NoError(t, err)
	set := NewAttributeSet(attrs)
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		v, err := set.Current(db, personID, k)
		require.NoError(t, err)
		out[k] = v
	}
	return out
}

func messagesContaining(messages []string, part string) []string {
	var out []string
	for _, m := range messages {
		if strings.Contains(m, part) {
			out = append(out, m)
		}
	}
	return out
}

var attributeColumns = []string{"Individual_ID", "Attribute_Name", "Comment", "Start_Date", "End_Date", "Staff_Individual_ID"}

func TestAttributeMapper_AppliesRules(t *testing.T) {
	env, db, recorder := setupTestEnv(t)
	seedFamily(t, env)

	stats, err := mapRows(t, env, &AttributeMapper{}, attributeColumns,
		[]any{int64(101), "Child Sponsorship - India", "Ravi", "2020-01-15", "", nil},
		[]any{int64(101), "Child Sponsorship - Kenya", "Amani", "2021-06-01", "", nil},
		[]any{int64(102), "Leadership Development", "", "", "", int64(101)},
		[]any{int64(103), "Baptismal Date", "", "not a date", "", nil},
		[]any{int64(999), "Photo Consent", "", "", "", nil},
		[]any{int64(101), "Favorite Color", "Blue", "", "", nil},
	)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Completed)
	assert.Equal(t, 3, stats.Skipped)

	table, err := rules.Load("", rules.DefaultAttributes)
	require.NoError(t, err)

	john := env.People.GetPersonKeys(entities.IntPtr(101), nil, false)
	sponsorship := currentValues(t, db, table, john.PersonID,
		"ChildSponsorshipLocation", "ChildSponsorshipName", "ChildSponsorshipStartDate")
	assert.Equal(t, "India", sponsorship["ChildSponsorshipLocation"], "the first value of a batch is kept")
	assert.Equal(t, "Ravi", sponsorship["ChildSponsorshipName"])
	assert.Equal(t, "2020-01-15T00:00:00", sponsorship["ChildSponsorshipStartDate"])

	var alias entities.PersonAlias
	require.NoError(t, db.First(&alias, *john.AliasID()).Error)
	jane := env.People.GetPersonKeys(entities.IntPtr(102), nil, false)
	leadership := currentValues(t, db, table, jane.PersonID, "LeadershipDevelopment")
	assert.Equal(t, alias.AliasGuid.String(), leadership["LeadershipDevelopment"])

	diagnostics := messagesContaining(recorder.Messages(), "Individual_ID 103 Baptismal Date:")
	assert.Len(t, diagnostics, 1)
	assert.Contains(t, recorder.Messages(), "Finished attribute value import: 3 records imported.")
}

func TestAttributeMapper_CustomTable(t *testing.T) {
	env, db, _ := setupTestEnv(t)
	seedFamily(t, env)
	table, err := rules.Parse([]byte(`
entity_type: person
rules:
  - source: Allergy
    match: prefix
    assign:
      - attribute: Allergies
        field: Comment
        strategy: accumulate
`))
	require.NoError(t, err)
	env.Attributes = table

	_, err = mapRows(t, env, &AttributeMapper{}, attributeColumns,
		[]any{int64(103), "Allergy - Food", "Peanuts", "", "", nil},
		[]any{int64(103), "Allergy - Other", "Bees", "", "", nil},
		[]any{int64(103), "Allergy - Food", "Peanuts", "", "", nil},
	)
	require.NoError(t, err)

	jimmy := env.People.GetPersonKeys(entities.IntPtr(103), nil, false)
	values := currentValues(t, db, table, jimmy.PersonID, "Allergies")
	assert.Equal(t, "Peanuts,Bees", values["Allergies"])
}

var requirementColumns = []string{"Individual_ID", "Requirement_Name", "Requirement_Status_Name", "Requirement_Date"}

func TestRequirementMapper_KeepsMostRecent(t *testing.T) {
	env, db, recorder := setupTestEnv(t)
	seedFamily(t, env)

	stats, err := mapRows(t, env, &RequirementMapper{}, requirementColumns,
		[]any{int64(101), "Application on File", "Approved", "2023-05-01"},
		[]any{int64(101), "Application on File", "Pending", "2022-01-01"},
		[]any{int64(102), "CIA Clearance", "Denied", "2023-01-01"},
		[]any{int64(102), "Meagan's Law Clearance", "Approved", "2024-02-01"},
		[]any{int64(103), "Driving Record Clearance", "", "bad"},
	)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Completed)
	assert.Equal(t, 2, stats.Skipped)

	table, err := rules.Load("", rules.DefaultRequirements)
	require.NoError(t, err)

	john := env.People.GetPersonKeys(entities.IntPtr(101), nil, false)
	application := currentValues(t, db, table, john.PersonID, "ApplicationOnFileStatus", "ApplicationOnFileDate")
	assert.Equal(t, "Completed", application["ApplicationOnFileStatus"])
	assert.Equal(t, "2023-05-01T00:00:00", application["ApplicationOnFileDate"], "older rows do not replace newer ones")

	jane := env.People.GetPersonKeys(entities.IntPtr(102), nil, false)
	background := currentValues(t, db, table, jane.PersonID, "BackgroundCheckDate", "BackgroundCheckResult", "BackgroundChecked")
	assert.Equal(t, "2024-02-01T00:00:00", background["BackgroundCheckDate"])
	assert.Equal(t, "Pass", background["BackgroundCheckResult"])
	assert.Equal(t, "True", background["BackgroundChecked"])

	assert.Len(t, messagesContaining(recorder.Messages(), "Individual_ID 103 Driving Record Clearance:"), 1)
	assert.Contains(t, recorder.Messages(), "Finished requirement import: 3 records imported.")

	again, err := mapRows(t, env, &RequirementMapper{}, requirementColumns,
		[]any{int64(102), "CIA Clearance", "Denied", "2023-01-01"},
	)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Completed)
	background = currentValues(t, db, table, jane.PersonID, "BackgroundCheckResult")
	assert.Equal(t, "Pass", background["BackgroundCheckResult"])
}
