package legacy

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-faster/errors"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteCatalog scans tables of a legacy SQLite snapshot.
type SQLiteCatalog struct {
	db *sql.DB
}

var (
	_ Catalog = (*SQLiteCatalog)(nil)
	_ Counter = (*SQLiteCatalog)(nil)
)

// OpenSQLite opens the snapshot read-only.
func OpenSQLite(path string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open legacy database")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to open legacy database")
	}
	return &SQLiteCatalog{db: db}, nil
}

// NewSQLiteCatalog wraps an existing connection.
func NewSQLiteCatalog(db *sql.DB) *SQLiteCatalog {
	return &SQLiteCatalog{db: db}
}

func (c *SQLiteCatalog) Tables(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list legacy tables")
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "failed to list legacy tables")
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (c *SQLiteCatalog) resolve(ctx context.Context, table string) (string, error) {
	tables, err := c.Tables(ctx)
	if err != nil {
		return "", err
	}
	for _, t := range tables {
		if strings.EqualFold(t, table) {
			return t, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownTable, "%s", table)
}

func (c *SQLiteCatalog) Open(ctx context.Context, table string) (Source, error) {
	name, err := c.resolve(ctx, table)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(name))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to scan legacy table %s", name)
	}
	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, errors.Wrapf(err, "failed to read columns of %s", name)
	}
	return &rowsSource{table: name, rows: rows, columns: columns}, nil
}

func (c *SQLiteCatalog) Count(ctx context.Context, table string) (int, error) {
	name, err := c.resolve(ctx, table)
	if err != nil {
		return 0, err
	}
	var n int
	err = c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(name)).Scan(&n)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to count legacy table %s", name)
	}
	return n, nil
}

func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}

// rowsSource reads one row per Next call from an open result set.
type rowsSource struct {
	table   string
	rows    *sql.Rows
	columns []string
}

func (s *rowsSource) Next() (Record, bool, error) {
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return Record{}, false, errors.Wrapf(err, "failed to read legacy table %s", s.table)
		}
		return Record{}, false, nil
	}

	values := make([]any, len(s.columns))
	ptrs := make([]any, len(s.columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		return Record{}, false, errors.Wrapf(err, "failed to read legacy table %s", s.table)
	}
	return NewRecord(s.table, s.columns, values), true, nil
}

func (s *rowsSource) Close() error {
	return s.rows.Close()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
