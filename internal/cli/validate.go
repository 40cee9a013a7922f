package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/recheck/internal/registry"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// ValidationReport summarizes a registry validation pass.
type ValidationReport struct {
	Checks int      `json:"checks"`
	Errors []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <registry-file>",
		Short: "Validate check definitions against the schema",
		Long: `Validate every check definition in a registry file against the embedded
CUE schema, reporting all violations.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	checks, err := registry.Load(path)
	if err != nil {
		_ = formatter.Error(err.Error())
		return WrapExitError(ExitCommandError, "load registry", err)
	}
	formatter.VerboseLog("loaded %d check(s) from %s", len(checks), path)

	report := ValidationReport{Checks: len(checks)}
	for _, verr := range registry.Validate(checks) {
		report.Errors = append(report.Errors, verr.Error())
	}

	if len(report.Errors) > 0 {
		text := fmt.Sprintf("%d of %d check(s) invalid:", len(report.Errors), report.Checks)
		for _, msg := range report.Errors {
			text += "\n  " + msg
		}
		_ = formatter.Success(report, text)
		return WrapExitError(ExitFailure, "registry validation failed", fmt.Errorf("%d invalid check(s)", len(report.Errors)))
	}

	return formatter.Success(report, fmt.Sprintf("%d check(s) valid", report.Checks))
}
