package models

import (
	"strings"
	"time"

	"emissions/internal/emission"
	vehiclemodels "emissions/internal/vehicle/models"
	id "emissions/pkg/domain"
)

// Outcome is the operator facing status of a result.
type Outcome string

const (
	OutcomePass    Outcome = "pass"
	OutcomeFail    Outcome = "fail"
	OutcomeInvalid Outcome = "invalid"
)

// Result is the single active inspection result of a vehicle. A new
// submission for the same vehicle replaces it.
//
// Exactly one of Gasoline or Diesel is set, matching FuelType. Valid=false
// implies Passed=false.
type Result struct {
	ID               id.ResultID               `json:"id"`
	VehicleID        id.VehicleID              `json:"vehicle_id"`
	FuelType         emission.FuelType         `json:"fuel_type"`
	Gasoline         *emission.GasolineReading `json:"gasoline,omitempty"`
	Diesel           *emission.DieselReading   `json:"diesel,omitempty"`
	Valid            bool                      `json:"valid"`
	Passed           bool                      `json:"passed"`
	Failures         []string                  `json:"failures"`
	EffectiveLimits  emission.ThresholdSet     `json:"effective_limits"`
	AgeBracket       emission.AgeBracket       `json:"age_bracket"`
	LimitSource      emission.LimitSource      `json:"limit_source"`
	ThresholdVersion int64                     `json:"threshold_version"`
	OperatorID       id.UserID                 `json:"operator_id"`
	OperatorName     string                    `json:"operator_name"`
	TestedAt         time.Time                 `json:"tested_at"`
}

// NewResult records a verdict for a vehicle.
func NewResult(
	vid id.VehicleID,
	m emission.Measurement,
	verdict emission.Verdict,
	resolution emission.Resolution,
	thresholdVersion int64,
	operatorID id.UserID,
	operatorName string,
	testedAt time.Time,
) *Result {
	r := &Result{
		ID:               id.NewResultID(),
		VehicleID:        vid,
		FuelType:         m.Fuel(),
		Valid:            verdict.Valid,
		Passed:           verdict.Valid && verdict.Passed,
		Failures:         append([]string{}, verdict.Failures...),
		EffectiveLimits:  verdict.EffectiveLimits,
		AgeBracket:       resolution.Bracket,
		LimitSource:      resolution.Source,
		ThresholdVersion: thresholdVersion,
		OperatorID:       operatorID,
		OperatorName:     operatorName,
		TestedAt:         testedAt,
	}
	switch reading := m.(type) {
	case emission.GasolineReading:
		r.Gasoline = &reading
	case emission.DieselReading:
		r.Diesel = &reading
	}
	return r
}

// Measurement returns the stored reading.
func (r *Result) Measurement() emission.Measurement {
	if r.Gasoline != nil {
		return *r.Gasoline
	}
	if r.Diesel != nil {
		return *r.Diesel
	}
	return nil
}

func (r *Result) Outcome() Outcome {
	switch {
	case !r.Valid:
		return OutcomeInvalid
	case r.Passed:
		return OutcomePass
	default:
		return OutcomeFail
	}
}

// VehicleSummary is the slice of vehicle data shown next to a result.
type VehicleSummary struct {
	Plate        string                `json:"plate"`
	Make         string                `json:"make"`
	Model        string                `json:"model"`
	ModelYear    int                   `json:"model_year"`
	FuelType     emission.FuelType     `json:"fuel_type"`
	LoadCategory emission.LoadCategory `json:"load_category"`
}

// Summarize extracts the summary of v.
func Summarize(v *vehiclemodels.Vehicle) VehicleSummary {
	return VehicleSummary{
		Plate:        v.Plate,
		Make:         v.Make,
		Model:        v.Model,
		ModelYear:    v.ModelYear,
		FuelType:     v.FuelType,
		LoadCategory: v.LoadCategory,
	}
}

// Entry pairs a result with its vehicle, as listed in history and reports.
type Entry struct {
	Result  Result         `json:"result"`
	Vehicle VehicleSummary `json:"vehicle"`
}

// HistoryFilter narrows the history listing. Zero values match everything;
// From and To are inclusive.
type HistoryFilter struct {
	Plate   string
	Make    string
	From    time.Time
	To      time.Time
	Outcome Outcome
}

// Matches applies the filter in memory.
func (f HistoryFilter) Matches(e Entry) bool {
	if f.Plate != "" && !containsFold(e.Vehicle.Plate, f.Plate) {
		return false
	}
	if f.Make != "" && !containsFold(e.Vehicle.Make, f.Make) {
		return false
	}
	if !f.From.IsZero() && e.Result.TestedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Result.TestedAt.After(f.To) {
		return false
	}
	switch f.Outcome {
	case OutcomePass:
		return e.Result.Passed
	case OutcomeFail:
		return !e.Result.Passed
	case OutcomeInvalid:
		return !e.Result.Valid
	}
	return true
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(sub)))
}
