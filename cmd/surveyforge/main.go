package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/surveyforge/internal/cli"
	"github.com/example/surveyforge/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "surveyforge",
		Short:   "surveyforge - survey creation wizard with autosave",
		Version: version.String(),
		Long: `surveyforge is a CLI for building surveys step by step.
Drafts are autosaved as you type and can be recovered after a crash or
an abandoned session.`,
	}

	// Add subcommands
	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.StatusCmd())
	rootCmd.AddCommand(cli.WizardCmd())
	rootCmd.AddCommand(cli.DraftCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
