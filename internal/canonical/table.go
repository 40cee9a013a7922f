package canonical

import (
	"bytes"
	"fmt"
	"sort"
)

// Row is one record of a tabular input: column name to cell value.
// Cell values are anything Marshal accepts.
type Row map[string]any

// EmptyTable is the sentinel canonical form of a table with no rows and
// no columns. It is deliberately not the empty byte string so that
// "empty" and "missing" stay distinguishable downstream.
const EmptyTable = `{"columns":[],"rows":[]}`

// MarshalTable canonicalizes a tabular input so that column order, row
// order, and sequence-vs-mapping representation differences in cell
// values never affect the output bytes.
//
// The column set is the sorted union of keys across all rows. Each row
// is rendered as a value array in column order (missing cell -> null),
// then rows are sorted bytewise on their rendered form.
func MarshalTable(rows []Row) ([]byte, error) {
	if len(rows) == 0 {
		return []byte(EmptyTable), nil
	}

	colSet := map[string]bool{}
	for _, r := range rows {
		for k := range r {
			colSet[k] = true
		}
	}
	columns := make([]string, 0, len(colSet))
	for c := range colSet {
		columns = append(columns, c)
	}
	sort.Strings(columns)

	rendered := make([][]byte, 0, len(rows))
	for i, r := range rows {
		var buf bytes.Buffer
		buf.WriteByte('[')
		for j, c := range columns {
			if j > 0 {
				buf.WriteByte(',')
			}
			cell, ok := r[c]
			if !ok {
				buf.WriteString("null")
				continue
			}
			if err := marshalValue(&buf, cell); err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i, c, err)
			}
		}
		buf.WriteByte(']')
		rendered = append(rendered, buf.Bytes())
	}

	// Row order independence: sort on fully rendered content.
	sort.Slice(rendered, func(i, j int) bool {
		return bytes.Compare(rendered[i], rendered[j]) < 0
	})

	var out bytes.Buffer
	out.WriteString(`{"columns":`)
	cols := make([]any, len(columns))
	for i, c := range columns {
		cols[i] = c
	}
	if err := marshalArray(&out, cols); err != nil {
		return nil, err
	}
	out.WriteString(`,"rows":[`)
	for i, r := range rendered {
		if i > 0 {
			out.WriteByte(',')
		}
		out.Write(r)
	}
	out.WriteString("]}")
	return out.Bytes(), nil
}
