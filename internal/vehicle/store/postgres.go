package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"emissions/internal/emission"
	"emissions/internal/platform/postgres"
	"emissions/internal/vehicle/models"
	id "emissions/pkg/domain"
	"emissions/pkg/platform/paging"
	"emissions/pkg/platform/sentinel"
	"emissions/pkg/platform/tx"
)

// PostgresStore persists vehicles in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const vehicleColumns = `id, plate, usage, agency, make, model, model_year, fuel_type, load_category, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, v *models.Vehicle) error {
	query := `
		INSERT INTO vehicles (` + vehicleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := tx.Or(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(v.ID), v.Plate, string(v.Usage), v.Agency, v.Make, v.Model, v.ModelYear,
		string(v.FuelType), string(v.LoadCategory), v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert vehicle: %w", err)
	}
	return nil
}

// CreateMany inserts the vehicles in one transaction. A taken plate rolls
// back the whole batch.
func (s *PostgresStore) CreateMany(ctx context.Context, vehicles []*models.Vehicle) error {
	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		for _, v := range vehicles {
			if err := s.Create(ctx, v); err != nil {
				if errors.Is(err, sentinel.ErrAlreadyUsed) {
					return fmt.Errorf("plate %s: %w", v.Plate, err)
				}
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStore) FindByPlate(ctx context.Context, plate string) (*models.Vehicle, error) {
	row := tx.Or(ctx, s.db).QueryRowContext(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE plate = $1`, plate)
	v, err := scanVehicle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find vehicle by plate: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, vid id.VehicleID) (*models.Vehicle, error) {
	row := tx.Or(ctx, s.db).QueryRowContext(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1`, uuid.UUID(vid))
	v, err := scanVehicle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find vehicle by id: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) Update(ctx context.Context, v *models.Vehicle) error {
	query := `
		UPDATE vehicles
		SET plate = $2, usage = $3, agency = $4, make = $5, model = $6, model_year = $7,
			fuel_type = $8, load_category = $9, updated_at = $10
		WHERE id = $1
	`
	res, err := tx.Or(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(v.ID), v.Plate, string(v.Usage), v.Agency, v.Make, v.Model, v.ModelYear,
		string(v.FuelType), string(v.LoadCategory), v.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("update vehicle: %w", err)
	}
	return requireRow(res, "update vehicle")
}

// Delete removes the vehicle; its inspection result goes with it through the
// foreign key cascade.
func (s *PostgresStore) Delete(ctx context.Context, vid id.VehicleID) error {
	res, err := tx.Or(ctx, s.db).ExecContext(ctx, `DELETE FROM vehicles WHERE id = $1`, uuid.UUID(vid))
	if err != nil {
		return fmt.Errorf("delete vehicle: %w", err)
	}
	return requireRow(res, "delete vehicle")
}

func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter, page paging.Params) ([]*models.Vehicle, int, error) {
	where, args := buildWhere(filter)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vehicles`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count vehicles: %w", err)
	}

	n := len(args)
	query := `SELECT ` + vehicleColumns + ` FROM vehicles` + where +
		` ORDER BY plate LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	vehicles, err := s.query(ctx, query, append(args, page.PerPage, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	return vehicles, total, nil
}

func (s *PostgresStore) ListAll(ctx context.Context, filter models.ListFilter) ([]*models.Vehicle, error) {
	where, args := buildWhere(filter)
	return s.query(ctx, `SELECT `+vehicleColumns+` FROM vehicles`+where+` ORDER BY plate`, args...)
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vehicles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count vehicles: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*models.Vehicle, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()

	var out []*models.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vehicles: %w", err)
	}
	return out, nil
}

func buildWhere(f models.ListFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(args))))
	}
	if f.Plate != "" {
		add("plate LIKE '%' || ? || '%'", strings.ToUpper(f.Plate))
	}
	if f.Make != "" {
		add("make ILIKE '%' || ? || '%'", f.Make)
	}
	if f.Usage != "" {
		add("usage = ?", string(f.Usage))
	}
	if len(f.FuelTypes) > 0 {
		fuels := make([]string, len(f.FuelTypes))
		for i, ft := range f.FuelTypes {
			fuels[i] = string(ft)
		}
		add("fuel_type = ANY(?)", pq.Array(fuels))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVehicle(row scanner) (*models.Vehicle, error) {
	var (
		v        models.Vehicle
		vid      uuid.UUID
		usage    string
		fuel     string
		category string
	)
	err := row.Scan(&vid, &v.Plate, &usage, &v.Agency, &v.Make, &v.Model, &v.ModelYear,
		&fuel, &category, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	v.ID = id.VehicleID(vid)
	v.Usage = models.Usage(usage)
	// Rows written before the fuel rename still carry legacy names.
	if ft, err := emission.ParseFuelType(fuel); err == nil {
		v.FuelType = ft
	} else {
		v.FuelType = emission.FuelType(fuel)
	}
	v.LoadCategory = emission.NormalizeLoadCategory(category)
	return &v, nil
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
