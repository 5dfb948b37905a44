package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"emissions/internal/thresholds"
)

func newSeedCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Inspect threshold seed files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Check a threshold YAML file the server would accept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := thresholds.LoadSeed(args[0])
			if err != nil {
				return err
			}
			opts.logger.Debug("seed validated",
				"file", args[0],
				"gasoline_categories", len(snap.Gasoline),
				"diesel_categories", len(snap.Diesel),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "print [file]",
		Short: "Print a seed (or the built-in limits) as normalized JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			snap, err := thresholds.LoadSeed(path)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), snap)
		},
	})
	return cmd
}
