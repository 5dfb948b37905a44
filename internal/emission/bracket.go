package emission

// AgeBracket buckets a model year into a regulation era. It is derived on
// every evaluation and never stored as vehicle state.
type AgeBracket string

const (
	BracketGasolineBefore2007 AgeBracket = "<2007"
	BracketGasoline2007To2018 AgeBracket = "2007-2018"
	BracketGasolineAfter2018  AgeBracket = ">2018"

	BracketDieselBefore2010 AgeBracket = "<2010"
	BracketDiesel2010To2021 AgeBracket = "2010-2021"
	BracketDieselAfter2021  AgeBracket = ">2021"
)

const (
	MinModelYear = 1900
	MaxModelYear = 2100
)

// eraBounds holds the inclusive middle range for one fuel type.
type eraBounds struct {
	first, last        int
	before, mid, after AgeBracket
}

var eras = map[FuelType]eraBounds{
	FuelGasoline: {first: 2007, last: 2018, before: BracketGasolineBefore2007, mid: BracketGasoline2007To2018, after: BracketGasolineAfter2018},
	FuelDiesel:   {first: 2010, last: 2021, before: BracketDieselBefore2010, mid: BracketDiesel2010To2021, after: BracketDieselAfter2021},
}

// BracketFor maps a model year to its age bracket. Both ends of the middle
// bracket are inclusive.
func BracketFor(fuel FuelType, modelYear int) (AgeBracket, error) {
	b, ok := eras[fuel]
	if !ok {
		return "", &InvalidFuelTypeError{Value: string(fuel)}
	}
	if modelYear < MinModelYear || modelYear > MaxModelYear {
		return "", &InvalidYearError{Year: modelYear}
	}
	switch {
	case modelYear < b.first:
		return b.before, nil
	case modelYear <= b.last:
		return b.mid, nil
	default:
		return b.after, nil
	}
}

// Brackets lists fuel's brackets from oldest to newest.
func Brackets(fuel FuelType) []AgeBracket {
	b, ok := eras[fuel]
	if !ok {
		return nil
	}
	return []AgeBracket{b.before, b.mid, b.after}
}

// ValidBracket reports whether bracket belongs to fuel.
func ValidBracket(fuel FuelType, bracket AgeBracket) bool {
	for _, b := range Brackets(fuel) {
		if b == bracket {
			return true
		}
	}
	return false
}
