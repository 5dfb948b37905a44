package store

import (
	"context"
	"sort"
	"sync"

	"emissions/internal/inspection/models"
	vehiclemodels "emissions/internal/vehicle/models"
	id "emissions/pkg/domain"
	"emissions/pkg/platform/paging"
	"emissions/pkg/platform/sentinel"
)

// VehicleLookup joins results to their vehicles.
type VehicleLookup interface {
	FindByID(ctx context.Context, vid id.VehicleID) (*vehiclemodels.Vehicle, error)
}

// InMemory keeps one result per vehicle behind a mutex.
type InMemory struct {
	mu       sync.RWMutex
	results  map[id.VehicleID]*models.Result
	vehicles VehicleLookup
}

func NewInMemory(vehicles VehicleLookup) *InMemory {
	return &InMemory{
		results:  make(map[id.VehicleID]*models.Result),
		vehicles: vehicles,
	}
}

// Upsert replaces the vehicle's result. An unknown vehicle is ErrNotFound.
// The vehicle is looked up while holding the lock so a concurrent
// DeleteByVehicle for a vehicle being removed cannot slip in between the
// check and the write.
func (s *InMemory) Upsert(ctx context.Context, r *models.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.vehicles.FindByID(ctx, r.VehicleID); err != nil {
		return err
	}
	s.results[r.VehicleID] = cloneResult(r)
	return nil
}

func (s *InMemory) FindByVehicle(_ context.Context, vid id.VehicleID) (*models.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[vid]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneResult(r), nil
}

func (s *InMemory) DeleteByVehicle(_ context.Context, vid id.VehicleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[vid]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.results, vid)
	return nil
}

func (s *InMemory) History(ctx context.Context, filter models.HistoryFilter, page paging.Params) ([]models.Entry, int, error) {
	entries, err := s.Entries(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	start, end := page.Window(len(entries))
	return entries[start:end], len(entries), nil
}

// Entries returns every matching result joined to its vehicle, newest first.
// Results whose vehicle is gone are skipped.
func (s *InMemory) Entries(ctx context.Context, filter models.HistoryFilter) ([]models.Entry, error) {
	s.mu.RLock()
	results := make([]*models.Result, 0, len(s.results))
	for _, r := range s.results {
		results = append(results, cloneResult(r))
	}
	s.mu.RUnlock()

	entries := make([]models.Entry, 0, len(results))
	for _, r := range results {
		v, err := s.vehicles.FindByID(ctx, r.VehicleID)
		if err != nil {
			continue
		}
		e := models.Entry{Result: *r, Vehicle: models.Summarize(v)}
		if filter.Matches(e) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].Result.TestedAt, entries[j].Result.TestedAt
		if a.Equal(b) {
			return entries[i].Vehicle.Plate < entries[j].Vehicle.Plate
		}
		return a.After(b)
	})
	return entries, nil
}

func (s *InMemory) TestedPlates(ctx context.Context) ([]string, error) {
	entries, err := s.Entries(ctx, models.HistoryFilter{})
	if err != nil {
		return nil, err
	}
	plates := make([]string, 0, len(entries))
	for _, e := range entries {
		plates = append(plates, e.Vehicle.Plate)
	}
	sort.Strings(plates)
	return plates, nil
}

func cloneResult(r *models.Result) *models.Result {
	cp := *r
	cp.Failures = append([]string{}, r.Failures...)
	if r.Gasoline != nil {
		g := *r.Gasoline
		cp.Gasoline = &g
	}
	if r.Diesel != nil {
		d := *r.Diesel
		cp.Diesel = &d
	}
	return &cp
}
