package importers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/congregate/internal/entities"
)

var noteColumns = []string{"Note_ID", "Individual_ID", "Household_ID", "Note_Type_Name", "Note_Text", "Created_Date"}

func TestNoteMapper_CreatesTypesOnFirstUse(t *testing.T) {
	env, db, recorder := setupTestEnv(t)
	seedFamily(t, env)

	stats, err := mapRows(t, env, &NoteMapper{}, noteColumns,
		[]any{int64(1), int64(101), nil, "", "Prefers email.", "2019-04-02"},
		[]any{int64(2), nil, int64(1), "Pastoral", "Hospital visit.", "someday"},
		[]any{int64(3), int64(102), nil, "Pastoral", "", ""},
		[]any{int64(4), int64(999), nil, "Pastoral", "Unknown person.", ""},
		[]any{int64(1), int64(101), nil, "", "Prefers email.", ""},
	)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 3, stats.Skipped)

	var notes []entities.Note
	require.NoError(t, db.Order("id").Find(&notes).Error)
	require.Len(t, notes, 2)

	var personal, pastoral entities.NoteType
	require.NoError(t, db.Where("name = ?", DefaultNoteType).First(&personal).Error)
	require.NoError(t, db.Where("name = ?", "Pastoral").First(&pastoral).Error)
	assert.True(t, pastoral.UserSelectable)
	assert.Equal(t, entities.EntityTypePerson, pastoral.EntityType)

	assert.Equal(t, personal.ID, notes[0].NoteTypeID)
	assert.Equal(t, time.Date(2019, 4, 2, 0, 0, 0, 0, time.UTC), notes[0].CreatedDateTime.UTC())
	assert.Equal(t, "1", notes[0].ForeignKey)

	assert.Equal(t, pastoral.ID, notes[1].NoteTypeID)
	assert.Equal(t, importedAt, notes[1].CreatedDateTime.UTC(), "an unreadable date keeps the import time")
	head := env.People.GetPersonKeys(nil, entities.IntPtr(1), false)
	assert.Equal(t, head.PersonID, notes[1].EntityID)

	assert.Contains(t, recorder.Messages(), "Finished note import: 2 notes imported.")
}

var contactFormColumns = []string{
	"ContactInstanceID", "ContactIndividualID", "HouseholdID", "ContactFormName", "ContactNote",
	"ContactDispositionName", "ContactDatetime", "ContactItemLastUpdatedDate",
}

func TestContactFormText(t *testing.T) {
	text := contactFormText(7, "Prayer Request", "Pray for&nbsp;my mom &amp; dad&#x0D;", "Closed", "3/3/2024 9:15:00 AM", "3/4/2024 10:00:00 AM")
	assert.Equal(t,
		"Contact Form (id: 7) Prayer Request submitted with original contents of Pray for my mom & dad on 3/3/2024 9:15:00 AM closed on 3/4/2024 10:00:00 AM with disposition Closed",
		text)

	open := contactFormText(8, "Visit", "\tHello", "", "3/3/2024 9:15:00 AM", "")
	assert.Equal(t, "Contact Form (id: 8) Visit submitted with original contents of  Hello on 3/3/2024 9:15:00 AM with disposition", open)
}

func TestContactFormMapper_ImportsNotes(t *testing.T) {
	env, db, recorder := setupTestEnv(t)
	seedFamily(t, env)
	_, err := mapRows(t, env, &NoteMapper{}, noteColumns,
		[]any{int64(7), int64(101), nil, "", "Same legacy id as a form.", ""},
	)
	require.NoError(t, err)

	rows := [][]any{
		{int64(7), int64(101), int64(1), "Prayer Request", "Pray for us", "Closed", "2024-03-03 09:15:00", "2024-03-04 10:00:00"},
		{int64(8), int64(102), int64(1), "Email", "Newsletter", "", "2024-03-03 09:15:00", ""},
		{int64(9), int64(999), nil, "Visit", "Unknown", "", "2024-03-03 09:15:00", ""},
		{nil, int64(101), int64(1), "Visit", "No id", "", "2024-03-03 09:15:00", ""},
	}
	stats, err := mapRows(t, env, &ContactFormMapper{}, contactFormColumns, rows...)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 3, stats.Skipped)

	var contact entities.NoteType
	require.NoError(t, db.Where("name = ?", NoteTypeContact).First(&contact).Error)
	var forms []entities.Note
	require.NoError(t, db.Where("note_type_id = ?", contact.ID).Find(&forms).Error)
	require.Len(t, forms, 1, "a plain note with the same legacy id does not block the form")
	assert.Equal(t, "ContactFormData|7", forms[0].ForeignKey)
	assert.Nil(t, forms[0].ForeignID)
	assert.Contains(t, forms[0].Text, "Contact Form (id: 7) Prayer Request")
	assert.Contains(t, forms[0].Text, "closed on 3/4/2024 10:00:00 AM")
	assert.Equal(t, 2024, forms[0].CreatedDateTime.Year())
	assert.Contains(t, recorder.Messages(), "Finished contact form data import: 1 records imported.")

	again, err := mapRows(t, env, &ContactFormMapper{}, contactFormColumns, rows[0])
	require.NoError(t, err)
	assert.Equal(t, 0, again.Completed)
}

func TestContactFormMapper_BadDateIsFatal(t *testing.T) {
	env, _, _ := setupTestEnv(t)
	seedFamily(t, env)

	_, err := mapRows(t, env, &ContactFormMapper{}, contactFormColumns,
		[]any{int64(7), int64(101), int64(1), "Visit", "", "", "last week", ""},
	)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "ContactDatetime", parseErr.Field)
	assert.Equal(t, "ContactInstanceID 7", parseErr.Key)
}
