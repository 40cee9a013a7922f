package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/recheck/internal/config"
	"github.com/roach88/recheck/internal/oracle"
	"github.com/roach88/recheck/internal/runner"
	"github.com/roach88/recheck/internal/schema"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config string

	// Compiler allows overriding the compilation oracle (for testing).
	// If nil, an ExecCompiler is built from the config.
	Compiler oracle.Compiler
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run change detection and recompile affected checks",
		Long: `Run one batch pass: detect registry and schema changes, recompile the
affected checks through the configured oracle, and persist the workflow
cache.

Example:
  recheck run --config recheck.yaml
  recheck run --config recheck.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to recheck.yaml (required)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runRun(opts *RunOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		_ = formatter.Error(err.Error())
		return WrapExitError(ExitCommandError, "load config", err)
	}

	if err := os.MkdirAll(cfg.Cache.Dir, 0o755); err != nil {
		_ = formatter.Error(err.Error())
		return WrapExitError(ExitCommandError, "create cache directory", err)
	}

	source, closeSource, err := openSource(cfg)
	if err != nil {
		_ = formatter.Error(err.Error())
		return WrapExitError(ExitCommandError, "open schema source", err)
	}
	defer closeSource()

	compiler := opts.Compiler
	if compiler == nil {
		compiler = &oracle.ExecCompiler{Command: cfg.Oracle.Command}
	}

	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logLevel}))

	summary, err := runner.Run(cmd.Context(), runner.Options{
		RegistryPath:         cfg.Registry.Path,
		RegistrySnapshotPath: cfg.RegistrySnapshotPath(),
		SchemaSnapshotPath:   cfg.SchemaSnapshotPath(),
		CachePath:            cfg.WorkflowCachePath(),
		Source:               source,
		Compiler:             compiler,
		Workers:              cfg.Run.Workers,
		FlushAttempts:        cfg.Run.FlushAttempts,
		FlushBackoff:         cfg.Run.FlushBackoff,
		Logger:               log,
	})
	if err != nil {
		_ = formatter.Error(err.Error())
		return WrapExitError(ExitFailure, "run failed", err)
	}

	return formatter.Success(summary, renderSummary(summary))
}

func renderSummary(s runner.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s\n", s.RunID)
	fmt.Fprintf(&b, "registry changed: %v\n", s.RegistryChanged)
	if len(s.ChangedTables) > 0 {
		fmt.Fprintf(&b, "changed tables: %s\n", strings.Join(s.ChangedTables, ", "))
	}
	fmt.Fprintf(&b, "%d scheduled, %d compiled, %d failed, reused %d cached",
		s.Scheduled, s.Compiled, s.Failed, s.Reused)
	for _, f := range s.Failures {
		fmt.Fprintf(&b, "\n  failed %s: %s", f.Identity, f.Err)
	}
	return b.String()
}

// openSource builds the configured schema source. The returned close
// function is a no-op for sources without a handle to release.
func openSource(cfg *config.Config) (schema.Source, func(), error) {
	switch cfg.Source.Type {
	case config.SourceCSVDir:
		return &schema.DirSource{Dir: cfg.Source.Dir}, func() {}, nil
	case config.SourceSQLite:
		src, err := schema.OpenSQLite(cfg.Source.Path)
		if err != nil {
			return nil, nil, err
		}
		return src, func() { _ = src.Close() }, nil
	case config.SourceMySQL:
		src, err := schema.OpenMySQL(cfg.Source.DSN, cfg.Source.Schema)
		if err != nil {
			return nil, nil, err
		}
		return src, func() { _ = src.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
	}
}
