// Package oracle defines the external compilation collaborator: it
// turns a check definition plus schema context into a plan artifact and
// an execution artifact. The oracle's reasoning is opaque and
// non-deterministic; this package only defines the contract and a
// subprocess-backed implementation.
package oracle

import (
	"context"
	"fmt"

	"github.com/roach88/recheck/internal/registry"
)

// Artifacts is the oracle's output for one check: two opaque JSON
// payloads. Status vocabulary (PASS/FAIL/SKIPPED/ERROR) lives inside
// the execution payload and is the oracle's contract, not this core's.
type Artifacts struct {
	Plan      []byte
	Execution []byte
}

// Compiler produces compiled artifacts for one check.
type Compiler interface {
	Compile(ctx context.Context, check registry.CheckDefinition, schemaCols map[string][]string) (Artifacts, error)
}

// CompileError indicates the oracle failed or returned malformed output
// for one check. Non-fatal: the check's prior cache entry is left
// untouched and the run continues.
type CompileError struct {
	Identity registry.Identity
	Err      error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile check %s: %v", e.Identity, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// Func adapts a plain function to the Compiler interface.
type Func func(ctx context.Context, check registry.CheckDefinition, schemaCols map[string][]string) (Artifacts, error)

// Compile implements Compiler.
func (f Func) Compile(ctx context.Context, check registry.CheckDefinition, schemaCols map[string][]string) (Artifacts, error) {
	return f(ctx, check, schemaCols)
}
