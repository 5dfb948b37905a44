package emission

// LimitSource records where a resolved ThresholdSet came from.
type LimitSource string

const (
	SourceTier     LimitSource = "tier"
	SourceDefaults LimitSource = "defaults"
)

// Resolution is the outcome of Resolve: the limits plus the bracket and
// source that produced them, kept for audit and display.
type Resolution struct {
	Bracket    AgeBracket   `json:"age_bracket"`
	Source     LimitSource  `json:"source"`
	Thresholds ThresholdSet `json:"thresholds"`
}

// Resolve selects the limits that apply to a vehicle.
//
// The category is checked against the fuel before the year, so a
// cross-assigned category is reported even for an out-of-range year. A
// (category, bracket) pair missing from the tier table falls back to the
// scalar defaults; that fallback cannot fail and is the same for every
// missing pair of a fuel type. A tier that omits a field takes that field
// from the defaults too.
func Resolve(snapshot Snapshot, fuel FuelType, category LoadCategory, modelYear int) (Resolution, error) {
	if !fuel.IsValid() {
		return Resolution{}, &InvalidFuelTypeError{Value: string(fuel)}
	}
	if err := ValidateCategory(fuel, category); err != nil {
		return Resolution{}, err
	}
	bracket, err := BracketFor(fuel, modelYear)
	if err != nil {
		return Resolution{}, err
	}

	switch fuel {
	case FuelGasoline:
		return resolveGasoline(snapshot, category, bracket), nil
	default:
		return resolveDiesel(snapshot, category, bracket), nil
	}
}

// resolveGasoline merges the tier with the scalar defaults field by field. A
// missing tier is the empty tier, so every field comes from the defaults.
func resolveGasoline(s Snapshot, category LoadCategory, bracket AgeBracket) Resolution {
	d := s.Defaults
	tier, ok := s.Gasoline.Lookup(category, bracket)
	source := SourceTier
	if !ok {
		source = SourceDefaults
	}

	// O2 bounds are global in every configuration, never tiered.
	return Resolution{
		Bracket: bracket,
		Source:  source,
		Thresholds: ThresholdSet{Gasoline: &GasolineThresholds{
			COMax:     valueOr(tier.COMax, d.COMax),
			HCMax:     valueOr(tier.HCMax, d.HCMax),
			CO2Min:    valueOr(tier.CO2Min, d.CO2Min),
			O2Max:     d.O2Max,
			O2Min:     clonePtr(d.O2Min),
			LambdaMin: valueOr(tier.LambdaMin, d.LambdaMin),
			LambdaMax: valueOr(tier.LambdaMax, d.LambdaMax),
		}},
	}
}

func resolveDiesel(s Snapshot, category LoadCategory, bracket AgeBracket) Resolution {
	tier, ok := s.Diesel.Lookup(category, bracket)
	source := SourceTier
	if !ok {
		source = SourceDefaults
	}
	return Resolution{
		Bracket: bracket,
		Source:  source,
		Thresholds: ThresholdSet{Diesel: &DieselThresholds{
			OpacityMax: valueOr(tier.OpacityMax, s.Defaults.OpacityMax),
		}},
	}
}
