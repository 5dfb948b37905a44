package handler

import (
	"emissions/internal/emission"
	"emissions/internal/inspection/models"
	"emissions/internal/inspection/service"
	dErrors "emissions/pkg/domain-errors"
)

// SubmitRequest is the raw reading. Field presence and types are checked by
// the evaluator so every problem is reported at once.
type SubmitRequest map[string]any

func (r *SubmitRequest) Validate() error {
	if r == nil || len(*r) == 0 {
		return dErrors.New(dErrors.CodeValidation, "measurement values are required")
	}
	return nil
}

// ResultResponse is the verdict shown to the operator.
type ResultResponse struct {
	Outcome          models.Outcome        `json:"outcome"`
	Valid            bool                  `json:"valid"`
	Passed           bool                  `json:"passed"`
	Failures         []string              `json:"failures"`
	AgeBracket       emission.AgeBracket   `json:"age_bracket"`
	LimitSource      emission.LimitSource  `json:"limit_source"`
	ThresholdVersion int64                 `json:"threshold_version"`
	Limits           map[string]float64    `json:"limits"`
	Vehicle          models.VehicleSummary `json:"vehicle"`
	Result           *models.Result        `json:"result"`
}

func toResultResponse(sub *service.Submission) ResultResponse {
	r := sub.Result
	failures := r.Failures
	if failures == nil {
		failures = []string{}
	}
	return ResultResponse{
		Outcome:          r.Outcome(),
		Valid:            r.Valid,
		Passed:           r.Passed,
		Failures:         failures,
		AgeBracket:       r.AgeBracket,
		LimitSource:      r.LimitSource,
		ThresholdVersion: r.ThresholdVersion,
		Limits:           r.EffectiveLimits.AsMap(),
		Vehicle:          models.Summarize(sub.Vehicle),
		Result:           r,
	}
}

type TestedPlatesResponse struct {
	Plates []string `json:"plates"`
}
