package legacy

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, path string, rows ...[]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

func TestDirCatalog_Tables(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Pledge.csv", []byte("Pledge_ID\n1\n"))
	writeFile(t, dir, "Batch.tsv", []byte("BatchID\tBatchName\n1\tSunday\n"))
	writeFile(t, dir, "readme.md", []byte("ignored"))
	writeWorkbook(t, filepath.Join(dir, "Notes.xlsx"), []any{"Note_ID"}, []any{1})

	catalog, err := NewDirCatalog(dir, DefaultColumnLayouts)
	require.NoError(t, err)

	tables, err := catalog.Tables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Batch", "Notes", "Pledge"}, tables)

	_, err = catalog.Open(context.Background(), "Household")
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestDirCatalog_OpenXLSX(t *testing.T) {
	dir := t.TempDir()
	writeWorkbook(t, filepath.Join(dir, "Users.xlsx"),
		[]any{"User_ID", "First_Name", "Last_Name"},
		[]any{7, "Ted", "Decker"},
		[]any{},
		[]any{8, "Cindy", "Decker"},
	)

	catalog, err := NewDirCatalog(dir, nil)
	require.NoError(t, err)

	src, err := catalog.Open(context.Background(), "users")
	require.NoError(t, err)
	records, err := Drain(src)
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, 7, *records[0].Int("User_ID"))
	assert.Equal(t, "Cindy", records[1].String("First_Name"))
}

func TestDirCatalog_PositionalLayout(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Metrics.csv", []byte(
		"Worship,Sunday,9AM Service,2021-03-07,9:00 AM,212\n"+
			"Worship,Sunday,11AM Service,2021-03-07,11:00 AM,187\n"))

	catalog, err := NewDirCatalog(dir, DefaultColumnLayouts)
	require.NoError(t, err)

	n, err := catalog.Count(context.Background(), "Metrics")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	src, err := catalog.Open(context.Background(), "Metrics")
	require.NoError(t, err)
	records, err := Drain(src)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "11AM Service", records[1].String("Roster"))
	assert.Equal(t, 187, *records[1].Int("Count"))
}

func TestColumnLayouts_Lookup(t *testing.T) {
	assert.NotNil(t, DefaultColumnLayouts.Lookup("groupmember"))
	assert.Nil(t, DefaultColumnLayouts.Lookup("Contribution"))

	var empty ColumnLayouts
	assert.Nil(t, empty.Lookup("Attendance"))
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("", nil)
	assert.Error(t, err)
}
