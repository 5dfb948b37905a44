package emission

import "math"

// Verdict is the outcome of one evaluation.
//
// Valid=false means the reading is physically impossible (negative value,
// opacity outside [0,100]); Passed is then always false and Failures names
// the rejected fields. Valid=true with Passed=false means at least one limit
// was exceeded; Failures names the failing checks.
type Verdict struct {
	Valid           bool         `json:"valid"`
	Passed          bool         `json:"passed"`
	EffectiveLimits ThresholdSet `json:"effective_limits"`
	Failures        []string     `json:"failures,omitempty"`
}

// Check names reported in Verdict.Failures.
const (
	CheckCOMax      = "co_max"
	CheckHCMax      = "hc_max"
	CheckCO2Min     = "co2_min"
	CheckO2Max      = "o2_max"
	CheckO2Min      = "o2_min"
	CheckLambdaMin  = "lambda_min"
	CheckLambdaMax  = "lambda_max"
	CheckOpacityMax = "opacity_max"
)

// Evaluate applies the compliance rules for fuel to a reading.
// Pure domain logic with no I/O.
//
// Passing is a strict conjunction: any single failed check fails the test.
// Every check is still evaluated so the caller can show all failures.
func Evaluate(fuel FuelType, m Measurement, limits ThresholdSet) (Verdict, error) {
	switch fuel {
	case FuelGasoline:
		reading, ok := m.(GasolineReading)
		if !ok || limits.Gasoline == nil {
			return Verdict{}, ErrMeasurementMismatch
		}
		return evaluateGasoline(reading, limits), nil
	case FuelDiesel:
		reading, ok := m.(DieselReading)
		if !ok || limits.Diesel == nil {
			return Verdict{}, ErrMeasurementMismatch
		}
		return evaluateDiesel(reading, limits), nil
	default:
		return Verdict{}, &InvalidFuelTypeError{Value: string(fuel)}
	}
}

// evaluateGasoline applies the gasoline rule chain.
//  1. Sanity: every reading finite and non-negative, else invalid
//  2. co <= co_max, hc <= hc_max, co2 >= co2_min
//  3. o2 <= o2_max always; o2 >= o2_min only when a floor is configured
//  4. lambda_min <= lambda <= lambda_max
func evaluateGasoline(r GasolineReading, limits ThresholdSet) Verdict {
	if bad := nonPhysicalGasoline(r); len(bad) > 0 {
		return Verdict{Valid: false, Passed: false, EffectiveLimits: limits, Failures: bad}
	}

	t := limits.Gasoline
	var failures []string
	if r.CO > t.COMax {
		failures = append(failures, CheckCOMax)
	}
	if r.HC > t.HCMax {
		failures = append(failures, CheckHCMax)
	}
	if r.CO2 < t.CO2Min {
		failures = append(failures, CheckCO2Min)
	}
	if r.O2 > t.O2Max {
		failures = append(failures, CheckO2Max)
	}
	if t.O2Min != nil && r.O2 < *t.O2Min {
		failures = append(failures, CheckO2Min)
	}
	if r.Lambda < t.LambdaMin {
		failures = append(failures, CheckLambdaMin)
	}
	if r.Lambda > t.LambdaMax {
		failures = append(failures, CheckLambdaMax)
	}

	return Verdict{
		Valid:           true,
		Passed:          len(failures) == 0,
		EffectiveLimits: limits,
		Failures:        failures,
	}
}

// evaluateDiesel applies the diesel rule: opacity within [0,100] is a valid
// reading, and it passes when at or below opacity_max.
func evaluateDiesel(r DieselReading, limits ThresholdSet) Verdict {
	if !isFinite(r.Opacity) || r.Opacity < 0 || r.Opacity > 100 {
		return Verdict{Valid: false, Passed: false, EffectiveLimits: limits, Failures: []string{FieldOpacity}}
	}
	if r.Opacity > limits.Diesel.OpacityMax {
		return Verdict{Valid: true, Passed: false, EffectiveLimits: limits, Failures: []string{CheckOpacityMax}}
	}
	return Verdict{Valid: true, Passed: true, EffectiveLimits: limits}
}

func nonPhysicalGasoline(r GasolineReading) []string {
	var bad []string
	for _, f := range []struct {
		name  string
		value float64
	}{
		{FieldCO, r.CO}, {FieldCO2, r.CO2}, {FieldHC, r.HC}, {FieldO2, r.O2}, {FieldLambda, r.Lambda},
	} {
		if !isFinite(f.value) || f.value < 0 {
			bad = append(bad, f.name)
		}
	}
	return bad
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
