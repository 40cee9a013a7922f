package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"

	"github.com/roach88/recheck/internal/registry"
)

// ExecCompiler shells out to an external command per check. The request
// is written to the command's stdin as JSON and the response is read
// from stdout:
//
//	stdin:  {"check": {...full registry row...}, "schema_cols": {"orders": ["id", ...]}}
//	stdout: {"plan": {...}, "execution": {...}}
//
// Both response fields are kept opaque. Any process failure or
// malformed response becomes a CompileError for that one check.
type ExecCompiler struct {
	Command []string
}

type execRequest struct {
	Check      map[string]any      `json:"check"`
	SchemaCols map[string][]string `json:"schema_cols"`
}

type execResponse struct {
	Plan      json.RawMessage `json:"plan"`
	Execution json.RawMessage `json:"execution"`
}

// Compile implements Compiler.
func (e *ExecCompiler) Compile(ctx context.Context, check registry.CheckDefinition, schemaCols map[string][]string) (Artifacts, error) {
	if len(e.Command) == 0 {
		return Artifacts{}, &CompileError{Identity: check.Identity(), Err: errors.New("no oracle command configured")}
	}

	input, err := json.Marshal(execRequest{Check: map[string]any(check.Row()), SchemaCols: schemaCols})
	if err != nil {
		return Artifacts{}, &CompileError{Identity: check.Identity(), Err: err}
	}

	cmd := exec.CommandContext(ctx, e.Command[0], e.Command[1:]...)
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := err
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			detail = fmt.Errorf("%w: %s", err, msg)
		}
		return Artifacts{}, &CompileError{Identity: check.Identity(), Err: detail}
	}

	var resp execResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return Artifacts{}, &CompileError{Identity: check.Identity(), Err: fmt.Errorf("malformed oracle output: %w", err)}
	}
	if len(resp.Plan) == 0 || len(resp.Execution) == 0 {
		return Artifacts{}, &CompileError{Identity: check.Identity(), Err: errors.New("oracle output missing plan or execution artifact")}
	}

	return Artifacts{Plan: resp.Plan, Execution: resp.Execution}, nil
}
