package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"emissions/internal/audit"
	"emissions/internal/emission"
	inspectionmetrics "emissions/internal/inspection/metrics"
	"emissions/internal/inspection/models"
	vehiclemodels "emissions/internal/vehicle/models"
	id "emissions/pkg/domain"
	dErrors "emissions/pkg/domain-errors"
	"emissions/pkg/platform/paging"
	"emissions/pkg/platform/sentinel"
	"emissions/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store VehicleReader ThresholdProvider AuditPublisher

// Store persists the active result of each vehicle.
//
// Upsert must serialize writers for the same vehicle and report a vehicle
// deleted in the meantime as sentinel.ErrNotFound.
type Store interface {
	Upsert(ctx context.Context, r *models.Result) error
	FindByVehicle(ctx context.Context, vid id.VehicleID) (*models.Result, error)
	DeleteByVehicle(ctx context.Context, vid id.VehicleID) error
	History(ctx context.Context, filter models.HistoryFilter, page paging.Params) ([]models.Entry, int, error)
	TestedPlates(ctx context.Context) ([]string, error)
}

// VehicleReader resolves the vehicle a submission is for.
type VehicleReader interface {
	FindByPlate(ctx context.Context, plate string) (*vehiclemodels.Vehicle, error)
}

// ThresholdProvider hands out the snapshot to evaluate against.
type ThresholdProvider interface {
	Current(ctx context.Context) (emission.Snapshot, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service records inspections. It reads one threshold snapshot per
// submission, so a concurrent threshold update never yields a verdict mixing
// two versions.
type Service struct {
	store          Store
	vehicles       VehicleReader
	thresholds     ThresholdProvider
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *inspectionmetrics.Metrics
	tracer         trace.Tracer
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

func WithMetrics(m *inspectionmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func New(store Store, vehicles VehicleReader, thresholds ThresholdProvider, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("inspection store is required")
	}
	if vehicles == nil {
		return nil, errors.New("vehicle reader is required")
	}
	if thresholds == nil {
		return nil, errors.New("threshold provider is required")
	}
	s := &Service{
		store:      store,
		vehicles:   vehicles,
		thresholds: thresholds,
		logger:     slog.Default(),
		tracer:     otel.Tracer("emissions/inspection"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submission is the evaluated and stored outcome of one reading.
type Submission struct {
	Vehicle *vehiclemodels.Vehicle
	Result  *models.Result
}

// Submit evaluates a reading for the vehicle with plate and stores it as
// the vehicle's active result.
//
// A missing or non-numeric field is rejected before evaluation. A physically
// impossible reading is not an error: it is stored and returned with
// Valid=false.
func (s *Service) Submit(ctx context.Context, plate string, payload map[string]any) (*Submission, error) {
	start := time.Now()
	defer s.metrics.ObserveSubmit(start)

	ctx, span := s.tracer.Start(ctx, "inspection.Submit")
	defer span.End()

	v, err := s.vehicle(ctx, plate)
	if err != nil {
		return nil, s.fail(span, err)
	}
	span.SetAttributes(
		attribute.String("vehicle.plate", v.Plate),
		attribute.String("vehicle.fuel_type", string(v.FuelType)),
	)

	snap, err := s.thresholds.Current(ctx)
	if err != nil {
		return nil, s.fail(span, err)
	}

	resolution, err := emission.Resolve(snap, v.FuelType, v.LoadCategory, v.ModelYear)
	if err != nil {
		s.metrics.IncrementRejected("unresolvable_vehicle")
		return nil, s.fail(span, translateEmissionErr(err))
	}

	measurement, err := emission.ParseMeasurement(v.FuelType, payload)
	if err != nil {
		s.metrics.IncrementRejected("malformed_input")
		return nil, s.fail(span, translateEmissionErr(err))
	}

	verdict, err := emission.Evaluate(v.FuelType, measurement, resolution.Thresholds)
	if err != nil {
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "evaluation failed"))
	}

	operator := requestcontext.Operator(ctx)
	result := models.NewResult(
		v.ID, measurement, verdict, resolution, snap.Version,
		id.UserID(operator.UserID), operator.Username, requestcontext.Now(ctx),
	)
	if err := s.store.Upsert(ctx, result); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, s.fail(span, dErrors.New(dErrors.CodeNotFound, "vehicle "+v.Plate+" was deleted"))
		}
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store inspection result"))
	}

	outcome := result.Outcome()
	span.SetAttributes(
		attribute.String("inspection.outcome", string(outcome)),
		attribute.String("inspection.age_bracket", string(result.AgeBracket)),
		attribute.Int64("thresholds.version", snap.Version),
	)
	s.metrics.ObserveEvaluation(string(v.FuelType), string(outcome), result.Failures, snap.Version)

	s.logger.InfoContext(ctx, "inspection recorded",
		"request_id", requestcontext.RequestID(ctx),
		"plate", v.Plate,
		"fuel_type", v.FuelType,
		"age_bracket", result.AgeBracket,
		"limit_source", result.LimitSource,
		"outcome", outcome,
		"threshold_version", snap.Version,
	)
	s.emitAudit(ctx, audit.Event{
		Action:   audit.EventInspectionRecorded.String(),
		Subject:  v.Plate,
		Decision: string(outcome),
		Reason:   strings.Join(result.Failures, ","),
		Details: map[string]string{
			"result_id":         result.ID.String(),
			"age_bracket":       string(result.AgeBracket),
			"threshold_version": strconv.FormatInt(snap.Version, 10),
		},
	})
	return &Submission{Vehicle: v, Result: result}, nil
}

// Get returns the active result of the vehicle with plate.
func (s *Service) Get(ctx context.Context, plate string) (*Submission, error) {
	v, err := s.vehicle(ctx, plate)
	if err != nil {
		return nil, err
	}
	r, err := s.store.FindByVehicle(ctx, v.ID)
	if err != nil {
		return nil, wrapResultErr(err, v.Plate)
	}
	return &Submission{Vehicle: v, Result: r}, nil
}

// Clear removes the active result of the vehicle with plate.
func (s *Service) Clear(ctx context.Context, plate string) error {
	v, err := s.vehicle(ctx, plate)
	if err != nil {
		return err
	}
	if err := s.store.DeleteByVehicle(ctx, v.ID); err != nil {
		return wrapResultErr(err, v.Plate)
	}
	s.logger.InfoContext(ctx, "inspection result cleared",
		"request_id", requestcontext.RequestID(ctx),
		"plate", v.Plate,
		"operator", requestcontext.Operator(ctx).Username,
	)
	s.emitAudit(ctx, audit.Event{
		Action:  audit.EventInspectionCleared.String(),
		Subject: v.Plate,
	})
	return nil
}

// History lists results newest first.
func (s *Service) History(ctx context.Context, filter models.HistoryFilter, page paging.Params) (paging.Result[models.Entry], error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return paging.Result[models.Entry]{}, dErrors.New(dErrors.CodeValidation, "to must not be before from")
	}
	page = page.Normalize()
	entries, total, err := s.store.History(ctx, filter, page)
	if err != nil {
		return paging.Result[models.Entry]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load inspection history")
	}
	return paging.NewResult(entries, total, page), nil
}

// TestedPlates lists the plates that currently have a result.
func (s *Service) TestedPlates(ctx context.Context) ([]string, error) {
	plates, err := s.store.TestedPlates(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tested plates")
	}
	if plates == nil {
		plates = []string{}
	}
	return plates, nil
}

// Certificate builds the printable certificate of the active result.
func (s *Service) Certificate(ctx context.Context, plate string) (*models.Certificate, error) {
	sub, err := s.Get(ctx, plate)
	if err != nil {
		return nil, err
	}
	v, r := sub.Vehicle, sub.Result
	operator := r.OperatorName
	if operator == "" {
		operator = "unknown"
	}
	return &models.Certificate{
		Number:       models.CertificateNumber(r),
		IssuedAt:     requestcontext.Now(ctx),
		Outcome:      r.Outcome(),
		Vehicle:      models.Summarize(v),
		Usage:        string(v.Usage),
		Agency:       v.Agency,
		Category:     v.LoadCategory.DisplayName(),
		Result:       *r,
		Limits:       r.EffectiveLimits.AsMap(),
		OperatorName: operator,
	}, nil
}

func (s *Service) vehicle(ctx context.Context, plate string) (*vehiclemodels.Vehicle, error) {
	normalized := vehiclemodels.NormalizePlate(plate)
	v, err := s.vehicles.FindByPlate(ctx, normalized)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "vehicle "+normalized+" not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load vehicle")
	}
	return v, nil
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	return err
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

// translateEmissionErr maps the engine's typed errors onto validation
// errors whose message names the offending input.
func translateEmissionErr(err error) error {
	var (
		malformed *emission.MalformedInputError
		category  *emission.InvalidCategoryError
		year      *emission.InvalidYearError
		fuel      *emission.InvalidFuelTypeError
	)
	switch {
	case errors.As(err, &malformed), errors.As(err, &category),
		errors.As(err, &year), errors.As(err, &fuel):
		return dErrors.Wrap(err, dErrors.CodeValidation, err.Error())
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "evaluation failed")
	}
}

func wrapResultErr(err error, plate string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "no inspection result for "+plate)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "inspection store failed")
}
