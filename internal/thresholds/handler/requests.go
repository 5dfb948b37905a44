package handler

import (
	"emissions/internal/emission"
	dErrors "emissions/pkg/domain-errors"
)

// ReplaceRequest is a full snapshot as returned by GET /admin/thresholds.
type ReplaceRequest struct {
	emission.Snapshot
}

func (r *ReplaceRequest) Validate() error {
	if r.Version < 0 {
		return dErrors.New(dErrors.CodeValidation, "version must not be negative")
	}
	return nil
}

// ResolveResponse is the body of GET /thresholds/resolve.
type ResolveResponse struct {
	FuelType        emission.FuelType     `json:"fuel_type"`
	LoadCategory    emission.LoadCategory `json:"load_category"`
	ModelYear       int                   `json:"model_year"`
	SnapshotVersion int64                 `json:"snapshot_version"`
	Limits          map[string]float64    `json:"limits"`
	emission.Resolution
}
