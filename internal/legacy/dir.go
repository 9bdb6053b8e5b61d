package legacy

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
)

// ColumnLayouts names the positional columns of header-less extracts, keyed by
// table name.
type ColumnLayouts map[string][]string

// DefaultColumnLayouts covers the positional CSV extracts produced by the
// legacy attendance, group membership and headcount reports.
var DefaultColumnLayouts = ColumnLayouts{
	"Attendance": {
		"Individual_ID", "Ministry", "Activity", "Roster", "Job",
		"Start_Date", "Start_Time", "Individual_Type", "Group_ID",
	},
	"GroupMember": {
		"Household_ID", "Household_Name", "Individual_ID", "First_Name", "Last_Name",
		"Goes_By", "Gender", "Date_Of_Birth", "Email", "Phone",
		"Ministry", "Activity", "Group_Type_Name", "Group_Name", "Group_Type_ID",
		"Group_ID", "Group_Role", "Assigned_Services", "Assigned_Team", "Member_Status",
		"Date_Added", "Date_Inactivated", "Job",
	},
	"Metrics": {
		"Activity", "Roster_Folder", "Roster", "Start_Date", "Start_Time", "Count",
	},
}

// Lookup returns the layout for table, matching case-insensitively.
func (l ColumnLayouts) Lookup(table string) []string {
	for name, cols := range l {
		if strings.EqualFold(name, table) {
			return cols
		}
	}
	return nil
}

var extractExtensions = map[string]bool{
	".csv":  true,
	".tsv":  true,
	".txt":  true,
	".xlsx": true,
}

// DirCatalog serves every extract in a directory as a table named after the
// file, e.g. Contribution.csv becomes table "Contribution".
type DirCatalog struct {
	dir     string
	layouts ColumnLayouts
	files   map[string]string
}

var (
	_ Catalog = (*DirCatalog)(nil)
	_ Counter = (*DirCatalog)(nil)
)

// NewDirCatalog indexes the extracts in dir. Tables with an entry in layouts
// are read as header-less positional files.
func NewDirCatalog(dir string, layouts ColumnLayouts) (*DirCatalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read extract directory %s", dir)
	}

	files := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !extractExtensions[ext] {
			continue
		}
		table := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		files[table] = filepath.Join(dir, e.Name())
	}
	return &DirCatalog{dir: dir, layouts: layouts, files: files}, nil
}

func (c *DirCatalog) Tables(ctx context.Context) ([]string, error) {
	tables := make([]string, 0, len(c.files))
	for t := range c.files {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables, nil
}

func (c *DirCatalog) resolve(table string) (string, string, error) {
	for name, path := range c.files {
		if strings.EqualFold(name, table) {
			return name, path, nil
		}
	}
	return "", "", errors.Wrapf(ErrUnknownTable, "%s", table)
}

func (c *DirCatalog) Open(ctx context.Context, table string) (Source, error) {
	name, path, err := c.resolve(table)
	if err != nil {
		return nil, err
	}

	columns := c.layouts.Lookup(name)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return OpenXLSX(path, name, columns)
	case ".tsv":
		return OpenDelimited(path, name, DelimitedOptions{Delimiter: '\t', Columns: columns})
	default:
		return OpenDelimited(path, name, DelimitedOptions{Columns: columns})
	}
}

// Count scans the table once. Extracts are small enough next to the import
// itself that the extra pass is acceptable.
func (c *DirCatalog) Count(ctx context.Context, table string) (int, error) {
	src, err := c.Open(ctx, table)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		_, ok, err := src.Next()
		if err != nil {
			return n, err
		}
		if !ok {
			return n, nil
		}
		n++
	}
}

func (c *DirCatalog) Close() error {
	return nil
}

func columnName(i int) string {
	return "Column_" + strconv.Itoa(i+1)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
