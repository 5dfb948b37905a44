package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"emissions/internal/emission"
	"emissions/internal/inspection/models"
	"emissions/internal/platform/postgres"
	id "emissions/pkg/domain"
	"emissions/pkg/platform/paging"
	"emissions/pkg/platform/sentinel"
	"emissions/pkg/platform/tx"
)

// PostgresStore persists inspection results in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const resultColumns = `r.id, r.vehicle_id, r.fuel_type, r.co, r.co2, r.hc, r.o2, r.lambda_val, r.opacity,
	r.valid, r.passed, r.failures, r.effective_limits, r.age_bracket, r.limit_source,
	r.threshold_version, r.operator_id, r.operator_name, r.tested_at`

const entryColumns = resultColumns + `,
	v.plate, v.make, v.model, v.model_year, v.fuel_type, v.load_category`

// Upsert replaces the vehicle's result. The vehicle row is locked first so
// concurrent submissions for one vehicle serialize, and a vehicle deleted in
// the meantime surfaces as ErrNotFound instead of a foreign key error.
func (s *PostgresStore) Upsert(ctx context.Context, r *models.Result) error {
	limits, err := json.Marshal(r.EffectiveLimits)
	if err != nil {
		return fmt.Errorf("marshal effective limits: %w", err)
	}

	var co, co2, hc, o2, lambda, opacity sql.NullFloat64
	if g := r.Gasoline; g != nil {
		co = sql.NullFloat64{Float64: g.CO, Valid: true}
		co2 = sql.NullFloat64{Float64: g.CO2, Valid: true}
		hc = sql.NullFloat64{Float64: g.HC, Valid: true}
		o2 = sql.NullFloat64{Float64: g.O2, Valid: true}
		lambda = sql.NullFloat64{Float64: g.Lambda, Valid: true}
	}
	if d := r.Diesel; d != nil {
		opacity = sql.NullFloat64{Float64: d.Opacity, Valid: true}
	}
	operator := uuid.NullUUID{UUID: uuid.UUID(r.OperatorID), Valid: !r.OperatorID.IsNil()}

	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		exec := tx.Or(ctx, s.db)
		var locked uuid.UUID
		err := exec.QueryRowContext(ctx,
			`SELECT id FROM vehicles WHERE id = $1 FOR UPDATE`, uuid.UUID(r.VehicleID),
		).Scan(&locked)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sentinel.ErrNotFound
			}
			return fmt.Errorf("lock vehicle: %w", err)
		}

		query := `
			INSERT INTO inspection_results (
				id, vehicle_id, fuel_type, co, co2, hc, o2, lambda_val, opacity,
				valid, passed, failures, effective_limits, age_bracket, limit_source,
				threshold_version, operator_id, operator_name, tested_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
			ON CONFLICT (vehicle_id) DO UPDATE SET
				id = EXCLUDED.id,
				fuel_type = EXCLUDED.fuel_type,
				co = EXCLUDED.co,
				co2 = EXCLUDED.co2,
				hc = EXCLUDED.hc,
				o2 = EXCLUDED.o2,
				lambda_val = EXCLUDED.lambda_val,
				opacity = EXCLUDED.opacity,
				valid = EXCLUDED.valid,
				passed = EXCLUDED.passed,
				failures = EXCLUDED.failures,
				effective_limits = EXCLUDED.effective_limits,
				age_bracket = EXCLUDED.age_bracket,
				limit_source = EXCLUDED.limit_source,
				threshold_version = EXCLUDED.threshold_version,
				operator_id = EXCLUDED.operator_id,
				operator_name = EXCLUDED.operator_name,
				tested_at = EXCLUDED.tested_at
		`
		_, err = exec.ExecContext(ctx, query,
			uuid.UUID(r.ID), uuid.UUID(r.VehicleID), string(r.FuelType),
			co, co2, hc, o2, lambda, opacity,
			r.Valid, r.Passed, pq.Array(nonNil(r.Failures)), limits,
			string(r.AgeBracket), string(r.LimitSource), r.ThresholdVersion,
			operator, r.OperatorName, r.TestedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert inspection result: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) FindByVehicle(ctx context.Context, vid id.VehicleID) (*models.Result, error) {
	row := tx.Or(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+resultColumns+` FROM inspection_results r WHERE r.vehicle_id = $1`, uuid.UUID(vid))
	r, err := scanResult(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find inspection result: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) DeleteByVehicle(ctx context.Context, vid id.VehicleID) error {
	res, err := tx.Or(ctx, s.db).ExecContext(ctx,
		`DELETE FROM inspection_results WHERE vehicle_id = $1`, uuid.UUID(vid))
	if err != nil {
		return fmt.Errorf("delete inspection result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete inspection result rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) History(ctx context.Context, filter models.HistoryFilter, page paging.Params) ([]models.Entry, int, error) {
	where, args := buildHistoryWhere(filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM inspection_results r JOIN vehicles v ON v.id = r.vehicle_id` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count inspection history: %w", err)
	}

	n := len(args)
	query := `SELECT ` + entryColumns + `
		FROM inspection_results r JOIN vehicles v ON v.id = r.vehicle_id` + where + `
		ORDER BY r.tested_at DESC, v.plate
		LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	entries, err := s.queryEntries(ctx, query, append(args, page.PerPage, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// Entries returns every matching result joined to its vehicle, newest first.
func (s *PostgresStore) Entries(ctx context.Context, filter models.HistoryFilter) ([]models.Entry, error) {
	where, args := buildHistoryWhere(filter)
	query := `SELECT ` + entryColumns + `
		FROM inspection_results r JOIN vehicles v ON v.id = r.vehicle_id` + where + `
		ORDER BY r.tested_at DESC, v.plate`
	return s.queryEntries(ctx, query, args...)
}

func (s *PostgresStore) TestedPlates(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.plate FROM inspection_results r JOIN vehicles v ON v.id = r.vehicle_id
		ORDER BY v.plate
	`)
	if err != nil {
		return nil, fmt.Errorf("list tested plates: %w", err)
	}
	defer rows.Close()

	var plates []string
	for rows.Next() {
		var plate string
		if err := rows.Scan(&plate); err != nil {
			return nil, fmt.Errorf("scan tested plate: %w", err)
		}
		plates = append(plates, plate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tested plates: %w", err)
	}
	return plates, nil
}

func (s *PostgresStore) queryEntries(ctx context.Context, query string, args ...any) ([]models.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list inspection history: %w", err)
	}
	defer rows.Close()

	var entries []models.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inspection entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inspection history: %w", err)
	}
	return entries, nil
}

func buildHistoryWhere(f models.HistoryFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(args))))
	}
	if f.Plate != "" {
		add("v.plate ILIKE '%' || ? || '%'", strings.TrimSpace(f.Plate))
	}
	if f.Make != "" {
		add("v.make ILIKE '%' || ? || '%'", strings.TrimSpace(f.Make))
	}
	if !f.From.IsZero() {
		add("r.tested_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		add("r.tested_at <= ?", f.To)
	}
	switch f.Outcome {
	case models.OutcomePass:
		clauses = append(clauses, "r.passed")
	case models.OutcomeFail:
		clauses = append(clauses, "NOT r.passed")
	case models.OutcomeInvalid:
		clauses = append(clauses, "NOT r.valid")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type scanner interface {
	Scan(dest ...any) error
}

type resultRow struct {
	r                             models.Result
	rid, vid                      uuid.UUID
	fuel, bracket, source         string
	co, co2, hc, o2, lambda, opac sql.NullFloat64
	failures                      []string
	limits                        any
	operator                      uuid.NullUUID
}

func (row *resultRow) dest() []any {
	return []any{
		&row.rid, &row.vid, &row.fuel, &row.co, &row.co2, &row.hc, &row.o2, &row.lambda, &row.opac,
		&row.r.Valid, &row.r.Passed, pq.Array(&row.failures), &row.limits, &row.bracket, &row.source,
		&row.r.ThresholdVersion, &row.operator, &row.r.OperatorName, &row.r.TestedAt,
	}
}

func (row *resultRow) result() (*models.Result, error) {
	r := row.r
	r.ID = id.ResultID(row.rid)
	r.VehicleID = id.VehicleID(row.vid)
	r.FuelType = emission.FuelType(row.fuel)
	r.AgeBracket = emission.AgeBracket(row.bracket)
	r.LimitSource = emission.LimitSource(row.source)
	r.Failures = nonNil(row.failures)
	if row.operator.Valid {
		r.OperatorID = id.UserID(row.operator.UUID)
	}

	raw, err := postgres.RawJSON(row.limits)
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &r.EffectiveLimits); err != nil {
			return nil, fmt.Errorf("decode effective limits: %w", err)
		}
	}

	switch r.FuelType {
	case emission.FuelGasoline:
		r.Gasoline = &emission.GasolineReading{
			CO: row.co.Float64, CO2: row.co2.Float64, HC: row.hc.Float64,
			O2: row.o2.Float64, Lambda: row.lambda.Float64,
		}
	case emission.FuelDiesel:
		r.Diesel = &emission.DieselReading{Opacity: row.opac.Float64}
	}
	r.TestedAt = r.TestedAt.UTC()
	return &r, nil
}

func scanResult(s scanner) (*models.Result, error) {
	var row resultRow
	if err := s.Scan(row.dest()...); err != nil {
		return nil, err
	}
	return row.result()
}

func scanEntry(s scanner) (models.Entry, error) {
	var (
		row      resultRow
		v        models.VehicleSummary
		fuel     string
		category string
	)
	dest := append(row.dest(), &v.Plate, &v.Make, &v.Model, &v.ModelYear, &fuel, &category)
	if err := s.Scan(dest...); err != nil {
		return models.Entry{}, err
	}
	r, err := row.result()
	if err != nil {
		return models.Entry{}, err
	}
	v.FuelType = emission.FuelType(fuel)
	if ft, err := emission.ParseFuelType(fuel); err == nil {
		v.FuelType = ft
	}
	v.LoadCategory = emission.NormalizeLoadCategory(category)
	return models.Entry{Result: *r, Vehicle: v}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
