package main

import (
	"fmt"
	"os"

	"github.com/roach88/recheck/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Formatters already printed command-specific output; keep the
		// fallback terse.
		fmt.Fprintf(os.Stderr, "recheck: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
