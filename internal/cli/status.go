package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/recheck/internal/cache"
	"github.com/roach88/recheck/internal/config"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Config string
}

// CheckStatus is the per-identity view of the workflow cache: artifact
// count plus a short excerpt of the first artifact. Purely
// observational.
type CheckStatus struct {
	Identity  string `json:"identity"`
	RunID     string `json:"run_id"`
	Artifacts int    `json:"artifacts"`
	Excerpt   string `json:"excerpt"`
}

const excerptLen = 110

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the workflow cache summary",
		Long: `Show, per check identity, the number of cached artifacts and a short
excerpt of the first artifact payload.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to recheck.yaml (required)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
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

	wc := cache.Open(cfg.WorkflowCachePath())
	if warn := wc.LoadWarning(); warn != nil {
		formatter.VerboseLog("cache load warning: %v", warn)
	}

	statuses := make([]CheckStatus, 0, wc.Len())
	for _, id := range wc.Identities() {
		entry, _ := wc.Get(id)
		statuses = append(statuses, CheckStatus{
			Identity:  string(id),
			RunID:     entry.RunID,
			Artifacts: len(entry.Artifacts),
			Excerpt:   entryExcerpt(entry),
		})
	}

	return formatter.Success(statuses, renderStatuses(statuses))
}

// entryExcerpt returns the head of the first artifact payload,
// collapsed to one line.
func entryExcerpt(e cache.Entry) string {
	if len(e.Artifacts) == 0 {
		return ""
	}
	excerpt := strings.Join(strings.Fields(string(e.Artifacts[0].Payload)), " ")
	if len(excerpt) > excerptLen {
		excerpt = excerpt[:excerptLen]
	}
	return excerpt
}

func renderStatuses(statuses []CheckStatus) string {
	if len(statuses) == 0 {
		return "(no workflows cached yet)"
	}
	var b strings.Builder
	b.WriteString("=== Workflow Cache Summary ===")
	for _, s := range statuses {
		fmt.Fprintf(&b, "\n- %s: %d artifact(s). %s", s.Identity, s.Artifacts, s.Excerpt)
	}
	return b.String()
}
