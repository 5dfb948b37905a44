package models

import (
	"strings"
	"time"

	"emissions/internal/emission"
	id "emissions/pkg/domain"
	dErrors "emissions/pkg/domain-errors"
)

// Usage distinguishes privately operated vehicles from government fleet ones.
type Usage string

const (
	UsagePublic   Usage = "public"
	UsageOfficial Usage = "official"
)

// NoAgency is stored for vehicles that are not operated by an agency.
const NoAgency = "-"

const minPlateLength = 4

var usageAliases = map[string]Usage{
	"public":   UsagePublic,
	"umum":     UsagePublic,
	"official": UsageOfficial,
	"dinas":    UsageOfficial,
}

// ParseUsage accepts canonical and legacy usage names.
func ParseUsage(s string) (Usage, error) {
	if u, ok := usageAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return u, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "usage must be public or official")
}

// NormalizePlate trims and upper-cases a registration plate.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

// Vehicle is a registered vehicle.
//
// Invariants:
//   - Plate is trimmed, upper-cased, at least 4 characters and unique
//   - ModelYear is within [1900, 2100]
//   - LoadCategory belongs to FuelType
//   - Agency is NoAgency unless Usage is official
type Vehicle struct {
	ID           id.VehicleID          `json:"id"`
	Plate        string                `json:"plate"`
	Usage        Usage                 `json:"usage"`
	Agency       string                `json:"agency"`
	Make         string                `json:"make"`
	Model        string                `json:"model"`
	ModelYear    int                   `json:"model_year"`
	FuelType     emission.FuelType     `json:"fuel_type"`
	LoadCategory emission.LoadCategory `json:"load_category"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// VehicleSpec carries the mutable attributes of a vehicle.
type VehicleSpec struct {
	Plate        string
	Usage        Usage
	Agency       string
	Make         string
	Model        string
	ModelYear    int
	FuelType     emission.FuelType
	LoadCategory emission.LoadCategory
}

// NewVehicle builds a vehicle that satisfies every invariant.
func NewVehicle(vid id.VehicleID, spec VehicleSpec, now time.Time) (*Vehicle, error) {
	v := &Vehicle{ID: vid, CreatedAt: now}
	if err := v.apply(spec, now); err != nil {
		return nil, err
	}
	return v, nil
}

// ApplyUpdate replaces the vehicle attributes after re-checking invariants.
// The vehicle is left unchanged on error.
func (v *Vehicle) ApplyUpdate(spec VehicleSpec, now time.Time) error {
	next := *v
	if err := next.apply(spec, now); err != nil {
		return err
	}
	*v = next
	return nil
}

func (v *Vehicle) apply(spec VehicleSpec, now time.Time) error {
	plate := NormalizePlate(spec.Plate)
	if len(plate) < minPlateLength {
		return dErrors.New(dErrors.CodeValidation, "plate must be at least 4 characters")
	}
	if spec.Usage != UsagePublic && spec.Usage != UsageOfficial {
		return dErrors.New(dErrors.CodeValidation, "usage must be public or official")
	}
	if spec.ModelYear < emission.MinModelYear || spec.ModelYear > emission.MaxModelYear {
		return dErrors.New(dErrors.CodeValidation, (&emission.InvalidYearError{Year: spec.ModelYear}).Error())
	}
	if !spec.FuelType.IsValid() {
		return dErrors.New(dErrors.CodeValidation, (&emission.InvalidFuelTypeError{Value: string(spec.FuelType)}).Error())
	}
	if err := emission.ValidateCategory(spec.FuelType, spec.LoadCategory); err != nil {
		return dErrors.New(dErrors.CodeValidation, err.Error())
	}
	vehicleMake := strings.TrimSpace(spec.Make)
	if vehicleMake == "" {
		return dErrors.New(dErrors.CodeValidation, "make is required")
	}

	agency := NoAgency
	if spec.Usage == UsageOfficial {
		if a := strings.TrimSpace(spec.Agency); a != "" {
			agency = a
		}
	}

	v.Plate = plate
	v.Usage = spec.Usage
	v.Agency = agency
	v.Make = vehicleMake
	v.Model = strings.TrimSpace(spec.Model)
	v.ModelYear = spec.ModelYear
	v.FuelType = spec.FuelType
	v.LoadCategory = spec.LoadCategory
	v.UpdatedAt = now
	return nil
}

// Spec returns the mutable attributes, the starting point of a partial update.
func (v *Vehicle) Spec() VehicleSpec {
	return VehicleSpec{
		Plate:        v.Plate,
		Usage:        v.Usage,
		Agency:       v.Agency,
		Make:         v.Make,
		Model:        v.Model,
		ModelYear:    v.ModelYear,
		FuelType:     v.FuelType,
		LoadCategory: v.LoadCategory,
	}
}

// Age returns the vehicle age in whole years at year.
func (v *Vehicle) Age(year int) int {
	if age := year - v.ModelYear; age > 0 {
		return age
	}
	return 0
}

// ListFilter narrows a vehicle listing. Empty fields match everything.
type ListFilter struct {
	Plate     string
	Make      string
	Usage     Usage
	FuelTypes []emission.FuelType
}
