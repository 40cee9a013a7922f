package registry

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/recheck/internal/canonical"
)

// checkSchema constrains the shape of a registry row. Unknown fields
// are deliberately open: descriptive extras must survive validation.
const checkSchema = `
#Check: {
	check_id:          string & !=""
	check_name?:       string
	target_table?:     string | [...string]
	description?:      string
	calculation_hint?: string
	severity?:         string
	owner?:            string
	tags?:             [...string]
	enabled?:          bool
	...
}
`

// ValidationError reports one invalid registry row.
type ValidationError struct {
	Index   int
	CheckID string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.CheckID != "" {
		return fmt.Sprintf("check %q (row %d): %v", e.CheckID, e.Index, e.Err)
	}
	return fmt.Sprintf("row %d: %v", e.Index, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validate unifies every registry row with the embedded CUE schema and
// collects all violations rather than stopping at the first.
func Validate(checks []CheckDefinition) []error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(checkSchema).LookupPath(cue.ParsePath("#Check"))
	if err := schema.Err(); err != nil {
		return []error{fmt.Errorf("compile check schema: %w", err)}
	}

	var errs []error
	for i, c := range checks {
		// JSON is a subset of CUE, so the canonical row form compiles
		// directly into a CUE value.
		data, err := canonical.Marshal(map[string]any(c.Row()))
		if err != nil {
			errs = append(errs, &ValidationError{Index: i, CheckID: c.CheckID, Err: err})
			continue
		}
		v := ctx.CompileBytes(data)
		if err := v.Err(); err != nil {
			errs = append(errs, &ValidationError{Index: i, CheckID: c.CheckID, Err: err})
			continue
		}
		if err := schema.Unify(v).Validate(cue.Concrete(true)); err != nil {
			errs = append(errs, &ValidationError{Index: i, CheckID: c.CheckID, Err: err})
		}
	}
	return errs
}
