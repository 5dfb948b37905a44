// Package cli implements emissionsctl, an offline companion to the server for
// checking readings and threshold files without a running instance.
package cli

import (
	"encoding/json"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"emissions/internal/platform/logger"
)

type options struct {
	verbose bool
	logger  *slog.Logger
}

// NewRootCommand builds the emissionsctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "emissionsctl",
		Short: "Offline tools for the emissions compliance engine",
		Long: `emissionsctl evaluates readings and inspects threshold configuration
using the same engine the server runs, without a database.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := "warn"
			if opts.verbose {
				level = "debug"
			}
			opts.logger = logger.NewWithWriter(cmd.ErrOrStderr(), level, "text", true)
		},
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose (debug) logging")

	root.AddCommand(newEvaluateCommand(opts))
	root.AddCommand(newBracketsCommand())
	root.AddCommand(newSeedCommand(opts))
	return root
}

// Execute runs the command tree against os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
