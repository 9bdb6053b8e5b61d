// Package legacy reads rows out of a legacy church-management dataset.
//
// A Catalog exposes named tables; every Open starts a fresh forward-only scan
// of one table. Sources yield Records until Next reports ok=false. A read
// failure is an error; running out of rows is not.
//
// Implementations:
//   - SQLiteCatalog (sqlite.go) - a SQLite snapshot of the legacy database
//   - DirCatalog (dir.go) - a directory of CSV, TSV and XLSX extracts
package legacy

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrUnknownTable is returned by Open for a table the catalog does not hold.
var ErrUnknownTable = errors.New("unknown legacy table")

// Source is a lazy, forward-only sequence of records.
type Source interface {
	// Next returns the next record. ok is false once the source is exhausted.
	Next() (rec Record, ok bool, err error)
	Close() error
}

// Catalog opens legacy tables by name.
type Catalog interface {
	Tables(ctx context.Context) ([]string, error)
	Open(ctx context.Context, table string) (Source, error)
	Close() error
}

// Counter is implemented by catalogs that can count a table's rows cheaply
// enough to drive percentage progress.
type Counter interface {
	Count(ctx context.Context, table string) (int, error)
}

// SliceSource serves records from memory.
type SliceSource struct {
	records []Record
	pos     int
}

// NewSliceSource builds a source over rows with the given column names.
func NewSliceSource(table string, columns []string, rows ...[]any) *SliceSource {
	records := make([]Record, len(rows))
	for i, row := range rows {
		records[i] = NewRecord(table, columns, row)
	}
	return &SliceSource{records: records}
}

// FromRecords builds a source over existing records.
func FromRecords(records ...Record) *SliceSource {
	return &SliceSource{records: records}
}

func (s *SliceSource) Next() (Record, bool, error) {
	if s.pos >= len(s.records) {
		return Record{}, false, nil
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, true, nil
}

func (s *SliceSource) Close() error {
	return nil
}

// Drain reads every remaining record of src and closes it.
func Drain(src Source) ([]Record, error) {
	defer src.Close()
	var out []Record
	for {
		rec, ok, err := src.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, rec)
	}
}

// Open opens path as a catalog: a directory of extracts or a SQLite file.
func Open(path string, layouts ColumnLayouts) (Catalog, error) {
	if path == "" {
		return nil, errors.New("legacy path is not set")
	}
	if isDir(path) {
		return NewDirCatalog(path, layouts)
	}
	return OpenSQLite(path)
}
