package schema

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteSource observes schemas from a SQLite database file.
type SQLiteSource struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database for schema inspection. The
// connection is read-only from this package's perspective; a busy
// timeout keeps lock contention with writers from surfacing as errors.
func OpenSQLite(path string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to sqlite database: %w", err)
	}
	return &SQLiteSource{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// Columns returns the table's column names in declaration order via
// PRAGMA table_info. An unknown table yields zero rows, which maps to
// an empty column list.
func (s *SQLiteSource) Columns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, &ReadError{Table: table, Err: err}
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &ReadError{Table: table, Err: err}
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, &ReadError{Table: table, Err: err}
	}
	return cols, nil
}
