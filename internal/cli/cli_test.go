package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const householdCSV = `Individual_ID,Household_ID,Household_Position,First_Name,Goes_By,Last_Name,Email,Gender,Date_Of_Birth,Status_Name,Household_Name
101,1,Head,John,,Smith,john@example.com,Male,1970-05-01,Member,Smith Family
102,1,Spouse,Jane,,Smith,,Female,,Member,Smith Family
`

func setupLegacy(t *testing.T) (legacyDir, dsn string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AUDIT_REPORT_DIR", filepath.Join(dir, "reports"))
	t.Setenv("LEGACY_PATH", "")
	t.Setenv("IMPORT_TABLES", "")

	legacyDir = filepath.Join(dir, "legacy")
	require.NoError(t, os.MkdirAll(legacyDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(legacyDir, "Individual_Household.csv"), []byte(householdCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(legacyDir, "Communication.csv"), []byte("Individual_ID,Communication_Value\n101,555-0100\n"), 0o644))
	return legacyDir, filepath.Join(dir, "dest.db")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := Execute(context.Background(), "test", args, &out)
	return out.String(), err
}

func TestImport_DryRunWritesNothing(t *testing.T) {
	legacyDir, dsn := setupLegacy(t)

	out, err := execute(t, "--database-dsn", dsn, "import", "--legacy", legacyDir, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Individual_Household")
	assert.Contains(t, out, "Communication")

	out, err = execute(t, "--database-dsn", dsn, "keys")
	require.NoError(t, err)
	assert.Contains(t, out, "People:     0")
}

func TestImport_ImportsAndPrintsSummary(t *testing.T) {
	legacyDir, dsn := setupLegacy(t)

	out, err := execute(t, "--database-dsn", dsn, "import", "--legacy", legacyDir, "--threshold", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Run ")
	assert.Contains(t, out, "Imported 2 records")

	out, err = execute(t, "--database-dsn", dsn, "keys")
	require.NoError(t, err)
	assert.Contains(t, out, "People:     2")
	assert.Contains(t, out, "Households: 1")
}

func TestImport_RequiresPeopleFirst(t *testing.T) {
	legacyDir, dsn := setupLegacy(t)

	_, err := execute(t, "--database-dsn", dsn, "import", "--legacy", legacyDir, "--tables", "Notes")
	assert.Error(t, err)
}

func TestTables(t *testing.T) {
	legacyDir, dsn := setupLegacy(t)

	out, err := execute(t, "--database-dsn", dsn, "tables", "--legacy", legacyDir)
	require.NoError(t, err)
	assert.Regexp(t, `Individual_Household\s+2\s+yes\s+yes`, out)
	assert.Regexp(t, `Communication\s+1\s+yes\s+no`, out)
}

func TestRootRejectsBadDriver(t *testing.T) {
	_, err := execute(t, "--database-driver", "oracle", "keys")
	assert.Error(t, err)
}
