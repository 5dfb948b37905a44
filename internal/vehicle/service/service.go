package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"emissions/internal/audit"
	"emissions/internal/vehicle/models"
	id "emissions/pkg/domain"
	dErrors "emissions/pkg/domain-errors"
	"emissions/pkg/platform/paging"
	"emissions/pkg/platform/sentinel"
	"emissions/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store AuditPublisher

// Store persists vehicles. Plates are unique; a taken plate is reported as
// sentinel.ErrAlreadyUsed.
type Store interface {
	Create(ctx context.Context, v *models.Vehicle) error
	// CreateMany stores every vehicle or none of them.
	CreateMany(ctx context.Context, vehicles []*models.Vehicle) error
	FindByPlate(ctx context.Context, plate string) (*models.Vehicle, error)
	FindByID(ctx context.Context, vid id.VehicleID) (*models.Vehicle, error)
	Update(ctx context.Context, v *models.Vehicle) error
	Delete(ctx context.Context, vid id.VehicleID) error
	List(ctx context.Context, filter models.ListFilter, page paging.Params) ([]*models.Vehicle, int, error)
	ListAll(ctx context.Context, filter models.ListFilter) ([]*models.Vehicle, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// ResultRemover drops a vehicle's inspection result when the vehicle goes.
type ResultRemover interface {
	DeleteByVehicle(ctx context.Context, vid id.VehicleID) error
}

// Service manages the vehicle registry.
type Service struct {
	store          Store
	results        ResultRemover
	logger         *slog.Logger
	auditPublisher AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithResultRemover cascades deletes to stores that have no foreign keys.
func WithResultRemover(results ResultRemover) Option {
	return func(s *Service) {
		s.results = results
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("vehicle store is required")
	}
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.Vehicle, error) {
	spec, err := req.Spec()
	if err != nil {
		return nil, err
	}
	v, err := models.NewVehicle(id.NewVehicleID(), spec, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, v); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "plate "+v.Plate+" is already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register vehicle")
	}

	s.logger.InfoContext(ctx, "vehicle registered",
		"request_id", requestcontext.RequestID(ctx),
		"plate", v.Plate,
		"fuel_type", v.FuelType,
	)
	s.emitAudit(ctx, audit.Event{
		Action:  audit.EventVehicleRegistered.String(),
		Subject: v.Plate,
		Details: map[string]string{"vehicle_id": v.ID.String()},
	})
	return v, nil
}

func (s *Service) Get(ctx context.Context, plate string) (*models.Vehicle, error) {
	v, err := s.store.FindByPlate(ctx, models.NormalizePlate(plate))
	if err != nil {
		return nil, wrapVehicleErr(err, plate)
	}
	return v, nil
}

// Update applies a partial update. Changing the fuel type without a load
// category moves the vehicle to the first category of the new fuel.
func (s *Service) Update(ctx context.Context, plate string, req models.UpdateRequest) (*models.Vehicle, error) {
	v, err := s.Get(ctx, plate)
	if err != nil {
		return nil, err
	}
	spec, err := req.Apply(v.Spec())
	if err != nil {
		return nil, err
	}
	previousPlate := v.Plate
	if err := v.ApplyUpdate(spec, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, v); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "plate "+v.Plate+" is already registered")
		}
		return nil, wrapVehicleErr(err, plate)
	}

	details := map[string]string{"vehicle_id": v.ID.String()}
	if previousPlate != v.Plate {
		details["previous_plate"] = previousPlate
	}
	s.emitAudit(ctx, audit.Event{
		Action:  audit.EventVehicleUpdated.String(),
		Subject: v.Plate,
		Details: details,
	})
	return v, nil
}

// Delete removes the vehicle and its inspection result.
func (s *Service) Delete(ctx context.Context, plate string) error {
	v, err := s.Get(ctx, plate)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, v.ID); err != nil {
		return wrapVehicleErr(err, plate)
	}
	if s.results != nil {
		if err := s.results.DeleteByVehicle(ctx, v.ID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "failed to remove inspection result of deleted vehicle",
				"request_id", requestcontext.RequestID(ctx),
				"plate", v.Plate,
				"error", err,
			)
		}
	}

	s.logger.InfoContext(ctx, "vehicle deleted",
		"request_id", requestcontext.RequestID(ctx),
		"plate", v.Plate,
	)
	s.emitAudit(ctx, audit.Event{
		Action:  audit.EventVehicleDeleted.String(),
		Subject: v.Plate,
		Details: map[string]string{"vehicle_id": v.ID.String()},
	})
	return nil
}

func (s *Service) List(ctx context.Context, filter models.ListFilter, page paging.Params) (paging.Result[*models.Vehicle], error) {
	page = page.Normalize()
	vehicles, total, err := s.store.List(ctx, filter, page)
	if err != nil {
		return paging.Result[*models.Vehicle]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list vehicles")
	}
	return paging.NewResult(vehicles, total, page), nil
}

var exportHeader = []string{
	"plate", "usage", "agency", "make", "model", "model_year", "fuel_type", "load_category", "registered_at",
}

// ExportCSV writes every vehicle matching filter as CSV, ordered by plate.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, filter models.ListFilter) error {
	vehicles, err := s.store.ListAll(ctx, filter)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to export vehicles")
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, v := range vehicles {
		record := []string{
			v.Plate,
			string(v.Usage),
			v.Agency,
			v.Make,
			v.Model,
			strconv.Itoa(v.ModelYear),
			string(v.FuelType),
			string(v.LoadCategory),
			v.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// maxImportRows bounds the data rows of one import file.
const maxImportRows = 5000

// Import registers every vehicle in a CSV file, or none of them. Rows that
// fail validation, repeat a plate of the file or reuse a registered plate
// are reported by row number and nothing is written. Problems with the file
// itself, such as broken CSV or missing columns, are returned as errors.
func (s *Service) Import(ctx context.Context, r io.Reader) (*models.ImportResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, dErrors.New(dErrors.CodeValidation, "import file is empty")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "import file is not valid CSV")
	}
	columns, err := importColumns(header)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	result := &models.ImportResult{Errors: []models.RowError{}}
	firstRow := make(map[string]int)
	var vehicles []*models.Vehicle
	for row := 2; ; row++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("import file is not valid CSV at row %d", row))
		}
		if blankRecord(record) {
			continue
		}
		result.TotalRows++
		if result.TotalRows > maxImportRows {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("import file has more than %d rows", maxImportRows))
		}

		v, err := s.importRow(ctx, columns, record, now)
		if err != nil {
			if dErrors.CodeOf(err) == dErrors.CodeInternal {
				return nil, err
			}
			result.Errors = append(result.Errors, models.RowError{Row: row, Error: rowMessage(err)})
			continue
		}
		if first, repeated := firstRow[v.Plate]; repeated {
			result.Errors = append(result.Errors, models.RowError{
				Row:   row,
				Error: fmt.Sprintf("plate %s repeats row %d", v.Plate, first),
			})
			continue
		}
		firstRow[v.Plate] = row
		vehicles = append(vehicles, v)
	}
	if result.TotalRows == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "import file has no vehicle rows")
	}
	if result.Rejected() {
		s.logger.WarnContext(ctx, "vehicle import rejected",
			"request_id", requestcontext.RequestID(ctx),
			"rows", result.TotalRows,
			"rejected_rows", len(result.Errors),
		)
		return result, nil
	}

	if err := s.store.CreateMany(ctx, vehicles); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "a plate in the file was registered meanwhile; nothing was imported")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to import vehicles")
	}
	result.Imported = len(vehicles)

	s.logger.InfoContext(ctx, "vehicles imported",
		"request_id", requestcontext.RequestID(ctx),
		"count", result.Imported,
	)
	for _, v := range vehicles {
		s.emitAudit(ctx, audit.Event{
			Action:  audit.EventVehicleRegistered.String(),
			Subject: v.Plate,
			Details: map[string]string{"vehicle_id": v.ID.String(), "source": "import"},
		})
	}
	return result, nil
}

// ImportTemplate writes the import header and a few example rows.
func (s *Service) ImportTemplate(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(models.ImportColumns); err != nil {
		return err
	}
	if err := cw.WriteAll(models.ImportTemplateRows); err != nil {
		return err
	}
	return cw.Error()
}

// importRow turns one record into a vehicle, applying the same rules as
// Register.
func (s *Service) importRow(ctx context.Context, columns map[string]int, record []string, now time.Time) (*models.Vehicle, error) {
	field := func(name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	req := models.RegisterRequest{
		Plate:        field("plate"),
		Usage:        field("usage"),
		Agency:       field("agency"),
		Make:         field("make"),
		Model:        field("model"),
		FuelType:     field("fuel_type"),
		LoadCategory: field("load_category"),
	}
	if raw := field("model_year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, "model_year must be a whole number")
		}
		req.ModelYear = year
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	spec, err := req.Spec()
	if err != nil {
		return nil, err
	}
	v, err := models.NewVehicle(id.NewVehicleID(), spec, now)
	if err != nil {
		return nil, err
	}

	_, err = s.store.FindByPlate(ctx, v.Plate)
	switch {
	case err == nil:
		return nil, dErrors.New(dErrors.CodeConflict, "plate "+v.Plate+" is already registered")
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "vehicle store failed")
	}
	return v, nil
}

// importColumns maps header names to their index. Names are matched case
// insensitively and unknown columns are ignored.
func importColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, dup := columns[name]; dup {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("import file repeats column %q", name))
		}
		columns[name] = i
	}
	var missing []string
	for _, name := range models.RequiredImportColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "import file is missing columns: "+strings.Join(missing, ", "))
	}
	return columns, nil
}

func blankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// rowMessage keeps the user-facing part of a row error.
func rowMessage(err error) string {
	if de, ok := dErrors.As(err); ok {
		return de.Message
	}
	return err.Error()
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err,
		)
	}
}

func wrapVehicleErr(err error, plate string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "vehicle "+models.NormalizePlate(plate)+" not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "vehicle store failed")
}
