package schema

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLSource observes schemas from a MySQL database via
// information_schema.
type MySQLSource struct {
	db     *sql.DB
	schema string
}

// OpenMySQL opens a MySQL connection for schema inspection. schema is
// the database (TABLE_SCHEMA) to inspect.
func OpenMySQL(dsn, schema string) (*MySQLSource, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql ping failed: %w", err)
	}

	return &MySQLSource{db: db, schema: schema}, nil
}

// Close releases the underlying database handle.
func (s *MySQLSource) Close() error {
	return s.db.Close()
}

// Columns returns the table's column names in ordinal position order.
// An unknown table yields zero rows, which maps to an empty column
// list.
func (s *MySQLSource) Columns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT COLUMN_NAME
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`, s.schema, table)
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
