package emission

import "strings"

// FuelType selects the measurement schema and the rule table for a vehicle.
type FuelType string

const (
	FuelGasoline FuelType = "gasoline"
	FuelDiesel   FuelType = "diesel"
)

// Stored records and older clients still use the pre-migration names.
var fuelAliases = map[string]FuelType{
	"gasoline": FuelGasoline,
	"bensin":   FuelGasoline,
	"petrol":   FuelGasoline,
	"diesel":   FuelDiesel,
	"solar":    FuelDiesel,
}

// ParseFuelType accepts canonical and legacy fuel names, case-insensitively.
func ParseFuelType(s string) (FuelType, error) {
	if f, ok := fuelAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return f, nil
	}
	return "", &InvalidFuelTypeError{Value: s}
}

func (f FuelType) IsValid() bool {
	return f == FuelGasoline || f == FuelDiesel
}

func (f FuelType) String() string {
	return string(f)
}

// Categories lists the load categories valid for f, in their canonical order.
// The first entry is the default when a vehicle switches fuel type.
func (f FuelType) Categories() []LoadCategory {
	switch f {
	case FuelGasoline:
		return []LoadCategory{CategoryCargo, CategoryPassenger}
	case FuelDiesel:
		return []LoadCategory{CategoryUnder3_5Ton, CategoryAtOrOver3_5Ton}
	default:
		return nil
	}
}

// LoadCategory is a weight/use classification; its valid set depends on fuel.
type LoadCategory string

const (
	CategoryCargo          LoadCategory = "cargo"
	CategoryPassenger      LoadCategory = "passenger"
	CategoryUnder3_5Ton    LoadCategory = "under_3_5_ton"
	CategoryAtOrOver3_5Ton LoadCategory = "at_or_over_3_5_ton"
)

var categoryAliases = map[string]LoadCategory{
	"kendaraan_muatan":    CategoryCargo,
	"kendaraan_penumpang": CategoryPassenger,
	"<3.5ton":             CategoryUnder3_5Ton,
	">=3.5ton":            CategoryAtOrOver3_5Ton,
}

// NormalizeLoadCategory maps legacy category names onto canonical ones.
// Unknown values are returned lower-cased so validation can report them.
func NormalizeLoadCategory(s string) LoadCategory {
	key := strings.ToLower(strings.TrimSpace(s))
	if c, ok := categoryAliases[key]; ok {
		return c
	}
	return LoadCategory(key)
}

// ValidateCategory enforces that category belongs to fuel's valid set.
func ValidateCategory(fuel FuelType, category LoadCategory) error {
	for _, c := range fuel.Categories() {
		if c == category {
			return nil
		}
	}
	return &InvalidCategoryError{Fuel: fuel, Category: category}
}

func (c LoadCategory) String() string {
	return string(c)
}

// DisplayName returns a human-readable label for reports and certificates.
func (c LoadCategory) DisplayName() string {
	switch c {
	case CategoryCargo:
		return "Cargo vehicle"
	case CategoryPassenger:
		return "Passenger vehicle"
	case CategoryUnder3_5Ton:
		return "Under 3.5 ton"
	case CategoryAtOrOver3_5Ton:
		return "3.5 ton or more"
	default:
		return string(c)
	}
}
