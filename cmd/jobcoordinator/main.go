package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// main is a deterministic boundary: every subcommand below builds its
// own collaborators from config.Load() before doing anything else, so a
// misconfigured process fails fast rather than partway through a run.
func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "jobcoordinator",
		Short: "Job-chain resolution and locking engine for a derived-artifact service.",
	}
	root.AddCommand(newServeCommand())
	root.AddCommand(newAdminCommand())
	return root
}
