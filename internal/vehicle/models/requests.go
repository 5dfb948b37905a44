package models

import (
	"emissions/internal/emission"
	dErrors "emissions/pkg/domain-errors"
)

// RegisterRequest is the body of POST /vehicles.
type RegisterRequest struct {
	Plate        string `json:"plate"`
	Usage        string `json:"usage"`
	Agency       string `json:"agency"`
	Make         string `json:"make"`
	Model        string `json:"model"`
	ModelYear    int    `json:"model_year"`
	FuelType     string `json:"fuel_type"`
	LoadCategory string `json:"load_category"`
}

// Validate checks shape only; vehicle invariants are enforced by NewVehicle.
func (r *RegisterRequest) Validate() error {
	if r.Plate == "" {
		return dErrors.New(dErrors.CodeValidation, "plate is required")
	}
	if r.FuelType == "" {
		return dErrors.New(dErrors.CodeValidation, "fuel_type is required")
	}
	if r.ModelYear == 0 {
		return dErrors.New(dErrors.CodeValidation, "model_year is required")
	}
	return nil
}

// Spec converts the request into vehicle attributes, resolving legacy names.
// A missing load category defaults to the first one valid for the fuel.
func (r *RegisterRequest) Spec() (VehicleSpec, error) {
	fuel, err := emission.ParseFuelType(r.FuelType)
	if err != nil {
		return VehicleSpec{}, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	usage := UsagePublic
	if r.Usage != "" {
		if usage, err = ParseUsage(r.Usage); err != nil {
			return VehicleSpec{}, err
		}
	}
	category := emission.NormalizeLoadCategory(r.LoadCategory)
	if category == "" {
		category = fuel.Categories()[0]
	}
	return VehicleSpec{
		Plate:        r.Plate,
		Usage:        usage,
		Agency:       r.Agency,
		Make:         r.Make,
		Model:        r.Model,
		ModelYear:    r.ModelYear,
		FuelType:     fuel,
		LoadCategory: category,
	}, nil
}

// UpdateRequest is the body of PUT /vehicles/{plate}. Nil fields keep their
// current value.
type UpdateRequest struct {
	Plate        *string `json:"plate,omitempty"`
	Usage        *string `json:"usage,omitempty"`
	Agency       *string `json:"agency,omitempty"`
	Make         *string `json:"make,omitempty"`
	Model        *string `json:"model,omitempty"`
	ModelYear    *int    `json:"model_year,omitempty"`
	FuelType     *string `json:"fuel_type,omitempty"`
	LoadCategory *string `json:"load_category,omitempty"`
}

func (r *UpdateRequest) Validate() error {
	if r.Plate == nil && r.Usage == nil && r.Agency == nil && r.Make == nil &&
		r.Model == nil && r.ModelYear == nil && r.FuelType == nil && r.LoadCategory == nil {
		return dErrors.New(dErrors.CodeValidation, "at least one field must be provided")
	}
	return nil
}

// Apply overlays the request on current.
//
// Changing the fuel type without naming a load category resets the category
// to the first one valid for the new fuel, since the old category cannot
// belong to it.
func (r *UpdateRequest) Apply(current VehicleSpec) (VehicleSpec, error) {
	next := current
	if r.Plate != nil {
		next.Plate = *r.Plate
	}
	if r.Usage != nil {
		usage, err := ParseUsage(*r.Usage)
		if err != nil {
			return VehicleSpec{}, err
		}
		next.Usage = usage
	}
	if r.Agency != nil {
		next.Agency = *r.Agency
	}
	if r.Make != nil {
		next.Make = *r.Make
	}
	if r.Model != nil {
		next.Model = *r.Model
	}
	if r.ModelYear != nil {
		next.ModelYear = *r.ModelYear
	}
	if r.FuelType != nil {
		fuel, err := emission.ParseFuelType(*r.FuelType)
		if err != nil {
			return VehicleSpec{}, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		if fuel != current.FuelType && r.LoadCategory == nil {
			next.LoadCategory = fuel.Categories()[0]
		}
		next.FuelType = fuel
	}
	if r.LoadCategory != nil {
		next.LoadCategory = emission.NormalizeLoadCategory(*r.LoadCategory)
	}
	return next, nil
}
