package importers

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/congregate/internal/database"
	"github.com/mrlokans/congregate/internal/keyindex"
	"github.com/mrlokans/congregate/internal/legacy"
	"github.com/mrlokans/congregate/internal/progress"
)

var importedAt = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

// setupTestEnv creates a fresh destination and an Env with a small threshold
// so flush boundaries are exercised.
func setupTestEnv(t *testing.T) (*Env, *gorm.DB, *progress.Recorder) {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	recorder := &progress.Recorder{}
	env := &Env{
		Gateway:    database.NewGateway(db.DB),
		People:     keyindex.New(nil),
		ImportedAt: importedAt,
		Threshold:  2,
		Reporter:   recorder,
	}
	return env, db.DB, recorder
}

var householdColumns = []string{
	"Individual_ID", "Household_ID", "Household_Position", "First_Name", "Goes_By",
	"Last_Name", "Email", "Gender", "Date_Of_Birth", "Status_Name", "Household_Name",
}

// seedPeople imports rows through the household mapper and refreshes the
// key index of env.
func seedPeople(t *testing.T, env *Env, rows ...[]any) {
	t.Helper()
	ctx := context.Background()
	_, err := (&HouseholdMapper{}).Map(ctx, env, legacy.NewSliceSource(TableIndividualHousehold, householdColumns, rows...))
	require.NoError(t, err)

	env.People, err = keyindex.Build(ctx, env.Gateway.Session(ctx))
	require.NoError(t, err)
}

// seedFamily imports the Smith household (1) and a visitor household (2).
func seedFamily(t *testing.T, env *Env) {
	t.Helper()
	seedPeople(t, env,
		[]any{int64(101), int64(1), "Head", "John", "", "Smith", "john@example.com", "Male", "1970-05-01", "Member", "Smith Family"},
		[]any{int64(102), int64(1), "Spouse", "Jane", "", "Smith", "", "Female", "", "Member", "Smith Family"},
		[]any{int64(103), int64(1), "Child", "Jimmy", "Jim", "Smith", "", "Male", "2010-02-03", "Member", "Smith Family"},
		[]any{int64(201), int64(2), "Visitor", "Val", "", "Guest", "", "", "", "Visitor", ""},
	)
}

func mapRows(t *testing.T, env *Env, m Mapper, columns []string, rows ...[]any) (Stats, error) {
	t.Helper()
	return m.Map(context.Background(), env, legacy.NewSliceSource(m.Table(), columns, rows...))
}
