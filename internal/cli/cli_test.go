package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recheck/internal/oracle"
	"github.com/roach88/recheck/internal/registry"
)

// writeWorkspace lays out a registry, a CSV schema dir, and a config
// pointing at them. The oracle is a shell one-liner so the run command
// exercises the real exec path.
func writeWorkspace(t *testing.T) (configPath, dir string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test oracle uses a POSIX shell")
	}
	dir = t.TempDir()

	tables := filepath.Join(dir, "tables")
	require.NoError(t, os.Mkdir(tables, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tables, "users.csv"), []byte("id,email\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tables, "orders.csv"), []byte("id,amount\n"), 0o644))

	reg := `[
  {"check_id": "chk_001", "check_name": "users fresh", "target_table": "users"},
  {"check_id": "chk_002", "check_name": "orders positive", "target_table": "orders"}
]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "checks.json"), []byte(reg), 0o644))

	cfg := fmt.Sprintf(`
registry:
  path: %s
source:
  type: csvdir
  dir: %s
cache:
  dir: %s
oracle:
  command: ["sh", "-c", "printf '{\"plan\":{\"steps\":[]},\"execution\":{\"status\":\"PASS\"}}'"]
run:
  flushBackoff: 1ms
`, filepath.Join(dir, "checks.json"), tables, filepath.Join(dir, "state"))
	configPath = filepath.Join(dir, "recheck.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o644))
	return configPath, dir
}

func executeCommand(args ...string) (stdout, stderr string, err error) {
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestRunCommandText(t *testing.T) {
	configPath, _ := writeWorkspace(t)

	stdout, _, err := executeCommand("run", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "registry changed: true")
	assert.Contains(t, stdout, "2 scheduled, 2 compiled, 0 failed, reused 0 cached")
}

func TestRunCommandJSON(t *testing.T) {
	configPath, _ := writeWorkspace(t)

	stdout, _, err := executeCommand("run", "--config", configPath, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			RunID     string `json:"run_id"`
			Scheduled int    `json:"scheduled"`
			Compiled  int    `json:"compiled"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Scheduled)
	assert.Equal(t, 2, resp.Data.Compiled)
	assert.NotEmpty(t, resp.Data.RunID)
}

func TestRunCommandSecondRunReuses(t *testing.T) {
	configPath, _ := writeWorkspace(t)

	_, _, err := executeCommand("run", "--config", configPath)
	require.NoError(t, err)

	stdout, _, err := executeCommand("run", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "0 scheduled, 0 compiled, 0 failed, reused 2 cached")
}

func TestRunCommandBadConfig(t *testing.T) {
	_, _, err := executeCommand("run", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunCommandRequiresConfigFlag(t *testing.T) {
	_, _, err := executeCommand("run")
	require.Error(t, err)
}

func TestInvalidFormatRejected(t *testing.T) {
	configPath, _ := writeWorkspace(t)

	_, _, err := executeCommand("run", "--config", configPath, "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRunWithInjectedCompiler(t *testing.T) {
	configPath, _ := writeWorkspace(t)

	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		Config:      configPath,
		Compiler: oracle.Func(func(ctx context.Context, check registry.CheckDefinition, schemaCols map[string][]string) (oracle.Artifacts, error) {
			if check.CheckID == "chk_002" {
				return oracle.Artifacts{}, errors.New("boom")
			}
			return oracle.Artifacts{Plan: []byte(`{}`), Execution: []byte(`{}`)}, nil
		}),
	}

	cmd := NewRunCommand(opts.RootOptions)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetContext(context.Background())

	err := runRun(opts, cmd)
	require.NoError(t, err, "per-check failures surface in the summary, not the exit status")
	assert.Contains(t, out.String(), "1 failed")
	assert.Contains(t, out.String(), "failed chk_002::orders positive: boom")
}

func TestStatusCommand(t *testing.T) {
	configPath, _ := writeWorkspace(t)

	stdout, _, err := executeCommand("status", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "(no workflows cached yet)")

	_, _, err = executeCommand("run", "--config", configPath)
	require.NoError(t, err)

	stdout, _, err = executeCommand("status", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "=== Workflow Cache Summary ===")
	assert.Contains(t, stdout, "chk_001::users fresh: 2 artifact(s)")
	assert.Contains(t, stdout, "chk_002::orders positive: 2 artifact(s)")
}

func TestStatusCommandJSON(t *testing.T) {
	configPath, _ := writeWorkspace(t)

	_, _, err := executeCommand("run", "--config", configPath)
	require.NoError(t, err)

	stdout, _, err := executeCommand("status", "--config", configPath, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   []CheckStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "chk_001::users fresh", resp.Data[0].Identity)
	assert.Equal(t, 2, resp.Data[0].Artifacts)
	assert.NotEmpty(t, resp.Data[0].Excerpt)
}

func TestValidateCommandValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checks.json")
	require.NoError(t, os.WriteFile(path, []byte(
		`[{"check_id": "chk_001", "check_name": "users fresh", "target_table": "users"}]`), 0o644))

	stdout, _, err := executeCommand("validate", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "1 check(s) valid")
}

func TestValidateCommandInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checks.json")
	require.NoError(t, os.WriteFile(path, []byte(
		`[{"check_id": "chk_001", "check_name": "ok"}, {"check_id": "chk_002", "target_table": 42}]`), 0o644))

	stdout, _, err := executeCommand("validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "1 of 2 check(s) invalid")
}

func TestValidateCommandUnreadable(t *testing.T) {
	_, _, err := executeCommand("validate", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
