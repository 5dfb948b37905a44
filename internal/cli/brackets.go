package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"emissions/internal/emission"
)

func newBracketsCommand() *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "brackets",
		Short: "List age brackets, or the bracket a model year falls in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if year != 0 {
				fmt.Fprintln(w, "FUEL\tYEAR\tBRACKET")
				for _, fuel := range []emission.FuelType{emission.FuelGasoline, emission.FuelDiesel} {
					b, err := emission.BracketFor(fuel, year)
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "%s\t%d\t%s\n", fuel, year, b)
				}
				return w.Flush()
			}
			fmt.Fprintln(w, "FUEL\tBRACKET\tCATEGORIES")
			for _, fuel := range []emission.FuelType{emission.FuelGasoline, emission.FuelDiesel} {
				for _, b := range emission.Brackets(fuel) {
					fmt.Fprintf(w, "%s\t%s\t%v\n", fuel, b, fuel.Categories())
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "Show the bracket for this model year")
	return cmd
}
