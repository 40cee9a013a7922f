// Package schema observes per-table column lists from a data source and
// detects which tables changed relative to the persisted snapshot.
package schema

import "context"

// Source provides read-only access to the observed column list of a
// table. An absent table yields an empty column list and no error:
// absence is itself meaningful state, and surfaces downstream as a
// changed table if the table previously had columns.
type Source interface {
	Columns(ctx context.Context, table string) ([]string, error)
}

// ReadError indicates a single table's schema could not be read. It is
// non-fatal: the detector logs it and treats the table as having no
// columns, which is the conservative outcome.
type ReadError struct {
	Table string
	Err   error
}

func (e *ReadError) Error() string {
	return "read schema for table " + e.Table + ": " + e.Err.Error()
}

func (e *ReadError) Unwrap() error { return e.Err }
