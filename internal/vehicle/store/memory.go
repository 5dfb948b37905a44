package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"emissions/internal/vehicle/models"
	id "emissions/pkg/domain"
	"emissions/pkg/platform/paging"
	"emissions/pkg/platform/sentinel"
)

// InMemory is a mutex guarded vehicle store for tests and local runs.
type InMemory struct {
	mu       sync.RWMutex
	vehicles map[id.VehicleID]*models.Vehicle
	byPlate  map[string]id.VehicleID
}

func NewInMemory() *InMemory {
	return &InMemory{
		vehicles: make(map[id.VehicleID]*models.Vehicle),
		byPlate:  make(map[string]id.VehicleID),
	}
}

func (s *InMemory) Create(_ context.Context, v *models.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byPlate[v.Plate]; taken {
		return sentinel.ErrAlreadyUsed
	}
	cp := *v
	s.vehicles[v.ID] = &cp
	s.byPlate[v.Plate] = v.ID
	return nil
}

// CreateMany checks every plate before inserting any vehicle.
func (s *InMemory) CreateMany(_ context.Context, vehicles []*models.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := make(map[string]struct{}, len(vehicles))
	for _, v := range vehicles {
		_, taken := s.byPlate[v.Plate]
		_, repeated := batch[v.Plate]
		if taken || repeated {
			return fmt.Errorf("plate %s: %w", v.Plate, sentinel.ErrAlreadyUsed)
		}
		batch[v.Plate] = struct{}{}
	}
	for _, v := range vehicles {
		cp := *v
		s.vehicles[v.ID] = &cp
		s.byPlate[v.Plate] = v.ID
	}
	return nil
}

func (s *InMemory) FindByPlate(_ context.Context, plate string) (*models.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vid, ok := s.byPlate[plate]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.vehicles[vid]
	return &cp, nil
}

func (s *InMemory) FindByID(_ context.Context, vid id.VehicleID) (*models.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vehicles[vid]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (s *InMemory) Update(_ context.Context, v *models.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.vehicles[v.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if owner, taken := s.byPlate[v.Plate]; taken && owner != v.ID {
		return sentinel.ErrAlreadyUsed
	}
	delete(s.byPlate, existing.Plate)
	cp := *v
	s.vehicles[v.ID] = &cp
	s.byPlate[v.Plate] = v.ID
	return nil
}

func (s *InMemory) Delete(_ context.Context, vid id.VehicleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vehicles[vid]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byPlate, v.Plate)
	delete(s.vehicles, vid)
	return nil
}

// List returns one page of matches ordered by plate.
func (s *InMemory) List(ctx context.Context, filter models.ListFilter, page paging.Params) ([]*models.Vehicle, int, error) {
	all, err := s.ListAll(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	start, end := page.Window(len(all))
	return all[start:end], len(all), nil
}

func (s *InMemory) ListAll(_ context.Context, filter models.ListFilter) ([]*models.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Vehicle
	for _, v := range s.vehicles {
		if matches(v, filter) {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Plate < out[j].Plate })
	return out, nil
}

// Count returns the number of registered vehicles.
func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vehicles), nil
}

func matches(v *models.Vehicle, f models.ListFilter) bool {
	if f.Plate != "" && !strings.Contains(v.Plate, strings.ToUpper(f.Plate)) {
		return false
	}
	if f.Make != "" && !strings.Contains(strings.ToLower(v.Make), strings.ToLower(f.Make)) {
		return false
	}
	if f.Usage != "" && v.Usage != f.Usage {
		return false
	}
	if len(f.FuelTypes) > 0 && !slices.Contains(f.FuelTypes, v.FuelType) {
		return false
	}
	return true
}
