package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"emissions/internal/emission"
	"emissions/internal/thresholds"
)

type evaluateOutput struct {
	Fuel       emission.FuelType     `json:"fuel_type"`
	Category   emission.LoadCategory `json:"load_category"`
	ModelYear  int                   `json:"model_year"`
	Resolution emission.Resolution   `json:"resolution"`
	Verdict    emission.Verdict      `json:"verdict"`
}

func newEvaluateCommand(opts *options) *cobra.Command {
	var (
		fuel, category, seedFile string
		year                     int
	)
	cmd := &cobra.Command{
		Use:   "evaluate field=value...",
		Short: "Evaluate one reading against the configured limits",
		Long: `Resolve the limits for a vehicle and evaluate one reading against them.

Examples:
  emissionsctl evaluate --fuel diesel --category under_3_5_ton --year 2014 opacity=45
  emissionsctl evaluate --fuel gasoline --year 2019 co=0.3 co2=14 hc=80 o2=0.5 lambda_val=1.0`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fuelType, err := emission.ParseFuelType(fuel)
			if err != nil {
				return err
			}
			cat := emission.NormalizeLoadCategory(category)
			if cat == "" {
				cat = fuelType.Categories()[0]
			}
			payload, err := parseReading(args)
			if err != nil {
				return err
			}

			snapshot, err := thresholds.LoadSeed(seedFile)
			if err != nil {
				return err
			}
			res, err := emission.Resolve(snapshot, fuelType, cat, year)
			if err != nil {
				return err
			}
			m, err := emission.ParseMeasurement(fuelType, payload)
			if err != nil {
				return err
			}
			verdict, err := emission.Evaluate(fuelType, m, res.Thresholds)
			if err != nil {
				return err
			}
			opts.logger.Debug("evaluated reading",
				"fuel_type", fuelType,
				"age_bracket", res.Bracket,
				"source", res.Source,
				"passed", verdict.Passed,
			)
			return writeJSON(cmd.OutOrStdout(), evaluateOutput{
				Fuel:       fuelType,
				Category:   cat,
				ModelYear:  year,
				Resolution: res,
				Verdict:    verdict,
			})
		},
	}
	cmd.Flags().StringVar(&fuel, "fuel", "", "Fuel type (gasoline or diesel)")
	cmd.Flags().StringVar(&category, "category", "", "Load category; defaults to the first valid one for the fuel")
	cmd.Flags().IntVar(&year, "year", 0, "Model year")
	cmd.Flags().StringVar(&seedFile, "thresholds", "", "Threshold YAML file; defaults to the built-in limits")
	_ = cmd.MarkFlagRequired("fuel")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

// parseReading turns field=value arguments into a measurement payload. Values
// stay strings; ParseMeasurement does the numeric conversion.
func parseReading(args []string) (map[string]any, error) {
	payload := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		if !ok || key == "" {
			return nil, fmt.Errorf("reading %q must have the form field=value", arg)
		}
		payload[key] = value
	}
	return payload, nil
}
