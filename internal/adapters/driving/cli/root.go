// Package cli provides the cobra command surface of the Recall CLI.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall-cli/internal/logger"
)

var (
	app *App

	flagVerbose  bool
	flagDataRoot string
	flagTimeout  time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Personal knowledge base with semantic search",
	Long: `Recall stores messages and files in topic spaces, indexes their text
as embeddings, and answers questions grounded in the saved content.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(flagVerbose)
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		var err error
		app, err = NewApp(flagDataRoot)
		if err != nil {
			return fmt.Errorf("initialising: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if app != nil {
			app.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose logging to stderr")
	rootCmd.PersistentFlags().StringVar(&flagDataRoot, "data-root", "", "data directory (default ~/.recall)")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 2*time.Minute, "per-operation deadline")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
