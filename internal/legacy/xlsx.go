package legacy

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/xuri/excelize/v2"
)

// xlsxSource streams rows of the first worksheet. The first row is the
// header unless columns are supplied.
type xlsxSource struct {
	table   string
	file    *excelize.File
	rows    *excelize.Rows
	columns []string
}

// OpenXLSX opens the first sheet of a workbook as a table.
func OpenXLSX(path, table string, columns []string) (Source, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open workbook %s", path)
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, errors.Errorf("workbook %s has no sheets", path)
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "failed to read sheet %s", sheets[0])
	}

	src := &xlsxSource{table: table, file: f, rows: rows, columns: columns}
	if len(src.columns) == 0 && rows.Next() {
		header, err := rows.Columns()
		if err != nil {
			src.Close()
			return nil, errors.Wrapf(err, "failed to read header of %s", path)
		}
		src.columns = make([]string, len(header))
		for i, h := range header {
			src.columns[i] = strings.TrimSpace(h)
		}
	}
	return src, nil
}

func (s *xlsxSource) Next() (Record, bool, error) {
	for s.rows.Next() {
		cells, err := s.rows.Columns()
		if err != nil {
			return Record{}, false, errors.Wrapf(err, "failed to read %s", s.table)
		}
		if isEmptyLine(cells) {
			continue
		}

		names := s.columns
		if len(cells) > len(names) {
			names = extendColumns(names, len(cells))
		}
		values := make([]any, len(cells))
		for i, c := range cells {
			values[i] = c
		}
		return NewRecord(s.table, names, values), true, nil
	}
	if err := s.rows.Error(); err != nil {
		return Record{}, false, errors.Wrapf(err, "failed to read %s", s.table)
	}
	return Record{}, false, nil
}

func (s *xlsxSource) Close() error {
	if err := s.rows.Close(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
