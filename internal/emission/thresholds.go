package emission

import (
	"fmt"
	"math"
	"time"
)

// GasolineLimits is one tier of the gasoline rule table. A nil field is not
// configured for the tier and resolves to the matching scalar default.
type GasolineLimits struct {
	COMax     *float64 `json:"co_max,omitempty" yaml:"co_max,omitempty"`
	HCMax     *float64 `json:"hc_max,omitempty" yaml:"hc_max,omitempty"`
	CO2Min    *float64 `json:"co2_min,omitempty" yaml:"co2_min,omitempty"`
	LambdaMin *float64 `json:"lambda_min,omitempty" yaml:"lambda_min,omitempty"`
	LambdaMax *float64 `json:"lambda_max,omitempty" yaml:"lambda_max,omitempty"`
}

func (l GasolineLimits) Clone() GasolineLimits {
	return GasolineLimits{
		COMax:     clonePtr(l.COMax),
		HCMax:     clonePtr(l.HCMax),
		CO2Min:    clonePtr(l.CO2Min),
		LambdaMin: clonePtr(l.LambdaMin),
		LambdaMax: clonePtr(l.LambdaMax),
	}
}

// DieselLimits is one tier of the diesel rule table.
type DieselLimits struct {
	OpacityMax *float64 `json:"opacity_max,omitempty" yaml:"opacity_max,omitempty"`
}

func (l DieselLimits) Clone() DieselLimits {
	return DieselLimits{OpacityMax: clonePtr(l.OpacityMax)}
}

// Limits is the constraint satisfied by the per-fuel tier types.
type Limits[L any] interface {
	GasolineLimits | DieselLimits
	Clone() L
}

// TierTable is the two-level category × bracket lookup for one fuel type.
type TierTable[L Limits[L]] map[LoadCategory]map[AgeBracket]L

// Lookup returns the tier for (category, bracket), if configured.
func (t TierTable[L]) Lookup(category LoadCategory, bracket AgeBracket) (L, bool) {
	var zero L
	byBracket, ok := t[category]
	if !ok {
		return zero, false
	}
	l, ok := byBracket[bracket]
	if !ok {
		return zero, false
	}
	return l, true
}

func (t TierTable[L]) clone() TierTable[L] {
	if t == nil {
		return nil
	}
	out := make(TierTable[L], len(t))
	for c, byBracket := range t {
		inner := make(map[AgeBracket]L, len(byBracket))
		for b, l := range byBracket {
			inner[b] = l.Clone()
		}
		out[c] = inner
	}
	return out
}

func clonePtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func valueOr(v *float64, fallback float64) float64 {
	if v != nil {
		return *v
	}
	return fallback
}

// Defaults are the fuel-wide scalar limits. O2Max and O2Min apply to every
// gasoline evaluation; the rest fill in whatever a tier leaves out. Every
// field except O2Min must be present when decoded.
type Defaults struct {
	COMax      float64  `json:"co_max" yaml:"co_max"`
	HCMax      float64  `json:"hc_max" yaml:"hc_max"`
	CO2Min     float64  `json:"co2_min" yaml:"co2_min"`
	O2Max      float64  `json:"o2_max" yaml:"o2_max"`
	O2Min      *float64 `json:"o2_min,omitempty" yaml:"o2_min,omitempty"`
	LambdaMin  float64  `json:"lambda_min" yaml:"lambda_min"`
	LambdaMax  float64  `json:"lambda_max" yaml:"lambda_max"`
	OpacityMax float64  `json:"opacity_max" yaml:"opacity_max"`
}

// Snapshot is an immutable view of the regulatory configuration. Updates
// produce a new Snapshot with a higher Version; readers keep the one they
// loaded for the whole evaluation.
type Snapshot struct {
	Version   int64                     `json:"version" yaml:"-"`
	UpdatedAt time.Time                 `json:"updated_at" yaml:"-"`
	UpdatedBy string                    `json:"updated_by" yaml:"-"`
	Defaults  Defaults                  `json:"defaults" yaml:"defaults"`
	Gasoline  TierTable[GasolineLimits] `json:"gasoline_parameters" yaml:"gasoline_parameters"`
	Diesel    TierTable[DieselLimits]   `json:"diesel_parameters" yaml:"diesel_parameters"`
}

// Clone returns a deep copy so callers can edit without touching shared state.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Defaults.O2Min = clonePtr(s.Defaults.O2Min)
	out.Gasoline = s.Gasoline.clone()
	out.Diesel = s.Diesel.clone()
	return out
}

// Validate checks that the defaults are present, every limit is a finite,
// non-negative number, ranges are ordered once tier values are merged with
// the defaults, and tier keys belong to their fuel type.
func (s Snapshot) Validate() error {
	d := s.Defaults
	if d == (Defaults{}) {
		return fmt.Errorf("defaults are required")
	}
	if err := checkGasoline("defaults", d.COMax, d.HCMax, d.CO2Min, d.LambdaMin, d.LambdaMax); err != nil {
		return err
	}
	if err := checkLimit("defaults.o2_max", d.O2Max); err != nil {
		return err
	}
	if d.O2Min != nil {
		if err := checkLimit("defaults.o2_min", *d.O2Min); err != nil {
			return err
		}
		if *d.O2Min > d.O2Max {
			return fmt.Errorf("defaults.o2_min must not exceed o2_max")
		}
	}
	if err := checkOpacity("defaults.opacity_max", d.OpacityMax); err != nil {
		return err
	}

	for c, byBracket := range s.Gasoline {
		if err := ValidateCategory(FuelGasoline, c); err != nil {
			return fmt.Errorf("gasoline_parameters: %w", err)
		}
		for b, l := range byBracket {
			if !ValidBracket(FuelGasoline, b) {
				return fmt.Errorf("gasoline_parameters.%s: unknown age bracket %q", c, b)
			}
			if err := checkGasoline(fmt.Sprintf("gasoline_parameters.%s.%s", c, b),
				valueOr(l.COMax, d.COMax),
				valueOr(l.HCMax, d.HCMax),
				valueOr(l.CO2Min, d.CO2Min),
				valueOr(l.LambdaMin, d.LambdaMin),
				valueOr(l.LambdaMax, d.LambdaMax),
			); err != nil {
				return err
			}
		}
	}
	for c, byBracket := range s.Diesel {
		if err := ValidateCategory(FuelDiesel, c); err != nil {
			return fmt.Errorf("diesel_parameters: %w", err)
		}
		for b, l := range byBracket {
			if !ValidBracket(FuelDiesel, b) {
				return fmt.Errorf("diesel_parameters.%s: unknown age bracket %q", c, b)
			}
			path := fmt.Sprintf("diesel_parameters.%s.%s.opacity_max", c, b)
			if err := checkOpacity(path, valueOr(l.OpacityMax, d.OpacityMax)); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkGasoline(path string, coMax, hcMax, co2Min, lambdaMin, lambdaMax float64) error {
	fields := []struct {
		name  string
		value float64
	}{
		{"co_max", coMax}, {"hc_max", hcMax}, {"co2_min", co2Min},
		{"lambda_min", lambdaMin}, {"lambda_max", lambdaMax},
	}
	for _, f := range fields {
		if err := checkLimit(path+"."+f.name, f.value); err != nil {
			return err
		}
	}
	if lambdaMin > lambdaMax {
		return fmt.Errorf("%s: lambda_min must not exceed lambda_max", path)
	}
	return nil
}

func checkOpacity(path string, v float64) error {
	if err := checkLimit(path, v); err != nil {
		return err
	}
	if v > 100 {
		return fmt.Errorf("%s must be at most 100", path)
	}
	return nil
}

func checkLimit(path string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%s must be a non-negative number", path)
	}
	return nil
}

// GasolineThresholds are the effective gasoline limits for one evaluation.
type GasolineThresholds struct {
	COMax     float64  `json:"co_max"`
	HCMax     float64  `json:"hc_max"`
	CO2Min    float64  `json:"co2_min"`
	O2Max     float64  `json:"o2_max"`
	O2Min     *float64 `json:"o2_min,omitempty"`
	LambdaMin float64  `json:"lambda_min"`
	LambdaMax float64  `json:"lambda_max"`
}

// DieselThresholds are the effective diesel limits for one evaluation.
type DieselThresholds struct {
	OpacityMax float64 `json:"opacity_max"`
}

// ThresholdSet holds exactly one of Gasoline or Diesel.
type ThresholdSet struct {
	Gasoline *GasolineThresholds `json:"gasoline,omitempty"`
	Diesel   *DieselThresholds   `json:"diesel,omitempty"`
}

// Fuel reports which variant the set carries.
func (t ThresholdSet) Fuel() FuelType {
	switch {
	case t.Gasoline != nil:
		return FuelGasoline
	case t.Diesel != nil:
		return FuelDiesel
	default:
		return ""
	}
}

// AsMap flattens the set into the metric → limit shape shown to operators.
func (t ThresholdSet) AsMap() map[string]float64 {
	out := map[string]float64{}
	if g := t.Gasoline; g != nil {
		out["co_max"] = g.COMax
		out["hc_max"] = g.HCMax
		out["co2_min"] = g.CO2Min
		out["o2_max"] = g.O2Max
		out["lambda_min"] = g.LambdaMin
		out["lambda_max"] = g.LambdaMax
		if g.O2Min != nil {
			out["o2_min"] = *g.O2Min
		}
	}
	if d := t.Diesel; d != nil {
		out["opacity_max"] = d.OpacityMax
	}
	return out
}
