//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"emissions/internal/emission"
	"emissions/internal/vehicle/models"
	"emissions/internal/vehicle/store"
	id "emissions/pkg/domain"
	"emissions/pkg/platform/paging"
	"emissions/pkg/platform/sentinel"
	"emissions/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "inspection_results", "vehicles"))
}

func (s *PostgresStoreSuite) newVehicle(plate string, fuel emission.FuelType) *models.Vehicle {
	v, err := models.NewVehicle(id.NewVehicleID(), models.VehicleSpec{
		Plate:        plate,
		Usage:        models.UsageOfficial,
		Agency:       "Dinas Perhubungan",
		Make:         "Mitsubishi",
		Model:        "Colt",
		ModelYear:    2012,
		FuelType:     fuel,
		LoadCategory: fuel.Categories()[0],
	}, time.Now().UTC().Truncate(time.Microsecond))
	s.Require().NoError(err)
	return v
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	v := s.newVehicle("B 9 XYZ", emission.FuelDiesel)
	s.Require().NoError(s.store.Create(ctx, v))

	got, err := s.store.FindByPlate(ctx, "B 9 XYZ")
	s.Require().NoError(err)
	s.Equal(v.ID, got.ID)
	s.Equal("Dinas Perhubungan", got.Agency)
	s.Equal(emission.CategoryUnder3_5Ton, got.LoadCategory)
	s.True(v.CreatedAt.Equal(got.CreatedAt))

	byID, err := s.store.FindByID(ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(v.Plate, byID.Plate)
}

func (s *PostgresStoreSuite) TestLegacyRowsAreNormalized() {
	ctx := context.Background()
	_, err := s.postgres.DB.ExecContext(ctx, `
		INSERT INTO vehicles (id, plate, usage, agency, make, model, model_year, fuel_type, load_category, created_at, updated_at)
		VALUES ($1, 'L 1 OLD', 'public', '-', 'Daihatsu', '', 2005, 'bensin', 'kendaraan_muatan', now(), now())
	`, id.NewVehicleID().String())
	s.Require().NoError(err)

	got, err := s.store.FindByPlate(ctx, "L 1 OLD")
	s.Require().NoError(err)
	s.Equal(emission.FuelGasoline, got.FuelType)
	s.Equal(emission.CategoryCargo, got.LoadCategory)
}

func (s *PostgresStoreSuite) TestListFiltersByFuelTypes() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newVehicle("B 1 AA", emission.FuelGasoline)))
	s.Require().NoError(s.store.Create(ctx, s.newVehicle("B 2 BB", emission.FuelDiesel)))
	s.Require().NoError(s.store.Create(ctx, s.newVehicle("B 3 CC", emission.FuelDiesel)))

	diesel, total, err := s.store.List(ctx,
		models.ListFilter{FuelTypes: []emission.FuelType{emission.FuelDiesel}},
		paging.Params{Page: 1, PerPage: 1},
	)
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Require().Len(diesel, 1)
	s.Equal("B 2 BB", diesel[0].Plate)

	both, err := s.store.ListAll(ctx, models.ListFilter{
		Plate:     "b",
		FuelTypes: []emission.FuelType{emission.FuelDiesel, emission.FuelGasoline},
	})
	s.Require().NoError(err)
	s.Len(both, 3)
}

func (s *PostgresStoreSuite) TestUpdateAndDelete() {
	ctx := context.Background()
	v := s.newVehicle("B 1 AA", emission.FuelGasoline)
	s.Require().NoError(s.store.Create(ctx, v))
	other := s.newVehicle("B 2 BB", emission.FuelGasoline)
	s.Require().NoError(s.store.Create(ctx, other))

	other.Plate = v.Plate
	s.ErrorIs(s.store.Update(ctx, other), sentinel.ErrAlreadyUsed)

	v.Model = "L300"
	s.Require().NoError(s.store.Update(ctx, v))
	got, err := s.store.FindByID(ctx, v.ID)
	s.Require().NoError(err)
	s.Equal("L300", got.Model)

	s.Require().NoError(s.store.Delete(ctx, v.ID))
	s.ErrorIs(s.store.Delete(ctx, v.ID), sentinel.ErrNotFound)
}

// TestConcurrentRegistrationSamePlate verifies that exactly one of many
// concurrent registrations of one plate succeeds.
func (s *PostgresStoreSuite) TestConcurrentRegistrationSamePlate() {
	ctx := context.Background()
	const goroutines = 30

	var wg sync.WaitGroup
	var created, taken atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Create(ctx, s.newVehicle("B 777 RACE", emission.FuelGasoline))
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				taken.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), created.Load())
	s.Equal(int32(goroutines-1), taken.Load())
}

func (s *PostgresStoreSuite) TestCreateManyRollsBackOnTakenPlate() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newVehicle("B 1 AA", emission.FuelGasoline)))

	err := s.store.CreateMany(ctx, []*models.Vehicle{
		s.newVehicle("B 2 BB", emission.FuelGasoline),
		s.newVehicle("B 1 AA", emission.FuelDiesel),
	})
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	_, err = s.store.FindByPlate(ctx, "B 2 BB")
	s.ErrorIs(err, sentinel.ErrNotFound, "first row of the failed batch must be rolled back")

	s.Require().NoError(s.store.CreateMany(ctx, []*models.Vehicle{
		s.newVehicle("B 2 BB", emission.FuelGasoline),
		s.newVehicle("B 3 CC", emission.FuelDiesel),
	}))
	all, err := s.store.ListAll(ctx, models.ListFilter{})
	s.Require().NoError(err)
	s.Len(all, 3)
}
