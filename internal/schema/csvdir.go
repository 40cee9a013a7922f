package schema

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DirSource observes schemas from a directory of CSV files, one file
// per table named "<table>.csv". The column list is the header row.
type DirSource struct {
	Dir string
}

// Columns reads the header row of the table's CSV file. A missing file
// means the table is absent: empty column list, no error.
func (s *DirSource) Columns(ctx context.Context, table string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(s.Dir, table+".csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &ReadError{Table: table, Err: err}
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if err == io.EOF {
		// Empty file: table exists but has no columns.
		return nil, nil
	}
	if err != nil {
		return nil, &ReadError{Table: table, Err: fmt.Errorf("read header: %w", err)}
	}
	return header, nil
}
