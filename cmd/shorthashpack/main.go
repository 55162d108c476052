// Command shorthashpack generates a single git pack file (plus its index)
// containing one commit for every possible 7-hex-character short object
// identifier, reachable from one branch tip.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// globalFlags holds the persistent (root-level) flags shared by every
// subcommand, grounded on cmd/git-go/main.go's globalFlags pattern. They
// are registered once on the root command and inherited by its
// subcommands, which is also what lets a bare invocation (no subcommand)
// run generate directly with the same flag set.
type globalFlags struct {
	OutputDir  string
	ConfigPath string
	K          uint
	DryRun     bool
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "shorthashpack",
		Short:         "generate a git pack with one commit per 7-hex-character short identifier",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := &globalFlags{}
	cmd.PersistentFlags().StringVarP(&flags.OutputDir, "C", "C", "", "directory to write the pack and index to (overrides the config file's run.output)")
	cmd.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to an INI config file with template knobs and run parameters")
	cmd.PersistentFlags().UintVar(&flags.K, "k", 0, "short-identifier bit width; 0 means use the config file's run.k or the full-scale default (28)")
	cmd.PersistentFlags().BoolVar(&flags.DryRun, "dry-run", false, "run the generator entirely in memory and report acceptance statistics instead of writing a pack")

	generate := newGenerateCmd(flags)
	cmd.AddCommand(generate)

	// generate is also the default action, so a bare invocation works
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runGenerate(cmd, flags)
	}

	return cmd
}
