package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
registry:
  path: checks.json
source:
  type: csvdir
  dir: ./tables
cache:
  dir: ./state
oracle:
  command: ["python3", "oracle.py"]
run:
  workers: 8
  flushAttempts: 5
  flushBackoff: 100ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "checks.json", cfg.Registry.Path)
	assert.Equal(t, SourceCSVDir, cfg.Source.Type)
	assert.Equal(t, []string{"python3", "oracle.py"}, cfg.Oracle.Command)
	assert.Equal(t, 8, cfg.Run.Workers)
	assert.Equal(t, 5, cfg.Run.FlushAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Run.FlushBackoff)

	assert.Equal(t, filepath.Join("./state", RegistrySnapshotFile), cfg.RegistrySnapshotPath())
	assert.Equal(t, filepath.Join("./state", SchemaSnapshotFile), cfg.SchemaSnapshotPath())
	assert.Equal(t, filepath.Join("./state", WorkflowCacheFile), cfg.WorkflowCachePath())
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing registry path",
			content: `
source: {type: csvdir, dir: ./tables}
cache: {dir: ./state}
oracle: {command: [oracle]}
`,
			wantErr: "registry.path",
		},
		{
			name: "missing cache dir",
			content: `
registry: {path: checks.json}
source: {type: csvdir, dir: ./tables}
oracle: {command: [oracle]}
`,
			wantErr: "cache.dir",
		},
		{
			name: "unknown source type",
			content: `
registry: {path: checks.json}
source: {type: postgres}
cache: {dir: ./state}
oracle: {command: [oracle]}
`,
			wantErr: "source.type",
		},
		{
			name: "csvdir without dir",
			content: `
registry: {path: checks.json}
source: {type: csvdir}
cache: {dir: ./state}
oracle: {command: [oracle]}
`,
			wantErr: "source.dir",
		},
		{
			name: "sqlite without path",
			content: `
registry: {path: checks.json}
source: {type: sqlite}
cache: {dir: ./state}
oracle: {command: [oracle]}
`,
			wantErr: "source.path",
		},
		{
			name: "mysql without schema",
			content: `
registry: {path: checks.json}
source: {type: mysql, dsn: "user:pw@/db"}
cache: {dir: ./state}
oracle: {command: [oracle]}
`,
			wantErr: "source.schema",
		},
		{
			name: "missing oracle command",
			content: `
registry: {path: checks.json}
source: {type: csvdir, dir: ./tables}
cache: {dir: ./state}
`,
			wantErr: "oracle.command",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadEmptyPath(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "registry: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}
