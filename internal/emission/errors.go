package emission

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMeasurementMismatch is returned when a reading or limit set does not
// belong to the fuel type being evaluated.
var ErrMeasurementMismatch = errors.New("measurement does not match fuel type")

// InvalidFuelTypeError reports an unrecognised fuel name.
type InvalidFuelTypeError struct {
	Value string
}

func (e *InvalidFuelTypeError) Error() string {
	return fmt.Sprintf("invalid fuel type %q (valid: gasoline, diesel)", e.Value)
}

// InvalidCategoryError reports a load category outside its fuel's valid set.
type InvalidCategoryError struct {
	Fuel     FuelType
	Category LoadCategory
}

func (e *InvalidCategoryError) Error() string {
	valid := make([]string, 0, 2)
	for _, c := range e.Fuel.Categories() {
		valid = append(valid, string(c))
	}
	return fmt.Sprintf("invalid load category %q for %s (valid: %s)",
		e.Category, e.Fuel, strings.Join(valid, ", "))
}

// InvalidYearError reports a model year outside [MinModelYear, MaxModelYear].
type InvalidYearError struct {
	Year int
}

func (e *InvalidYearError) Error() string {
	return fmt.Sprintf("invalid model year %d (must be between %d and %d)", e.Year, MinModelYear, MaxModelYear)
}

// FieldError names one offending measurement field.
type FieldError struct {
	Field  string
	Reason string
}

// MalformedInputError is a caller-side input problem: a required reading is
// missing or not numeric. It is distinct from a physically invalid reading,
// which evaluates to an invalid Verdict instead.
type MalformedInputError struct {
	Fuel   FuelType
	Fields []FieldError
}

func (e *MalformedInputError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return fmt.Sprintf("malformed %s measurement: %s", e.Fuel, strings.Join(parts, "; "))
}

// FieldNames lists the offending fields in report order.
func (e *MalformedInputError) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return names
}
