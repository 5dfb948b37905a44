package main

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"

	"emissions/internal/audit"
	inspectionhandler "emissions/internal/inspection/handler"
	inspectionmetrics "emissions/internal/inspection/metrics"
	inspectionservice "emissions/internal/inspection/service"
	inspectionstore "emissions/internal/inspection/store"
	jwttoken "emissions/internal/jwt_token"
	"emissions/internal/platform/config"
	"emissions/internal/platform/metrics"
	lockoutmodels "emissions/internal/ratelimit/models"
	lockoutservice "emissions/internal/ratelimit/service"
	lockoutstore "emissions/internal/ratelimit/store"
	reporthandler "emissions/internal/report/handler"
	reportservice "emissions/internal/report/service"
	"emissions/internal/thresholds"
	thresholdshandler "emissions/internal/thresholds/handler"
	thresholdsservice "emissions/internal/thresholds/service"
	thresholdsstore "emissions/internal/thresholds/store"
	httptransport "emissions/internal/transport/http"
	userhandler "emissions/internal/user/handler"
	userservice "emissions/internal/user/service"
	userstore "emissions/internal/user/store"
	vehiclehandler "emissions/internal/vehicle/handler"
	vehicleservice "emissions/internal/vehicle/service"
	vehiclestore "emissions/internal/vehicle/store"
)

// vehicleStore is what every consumer of the registry needs combined.
type vehicleStore interface {
	vehicleservice.Store
	inspectionservice.VehicleReader
	reportservice.VehicleSource
}

type resultStore interface {
	inspectionservice.Store
	reportservice.EntrySource
}

type app struct {
	tokens      *jwttoken.JWTService
	users       *userservice.Service
	vehicles    *vehicleservice.Service
	inspections *inspectionservice.Service
	reports     *reportservice.Service
	thresholds  *thresholdsservice.Service
}

func build(ctx context.Context, cfg config.Server, log *slog.Logger, infra *infrastructure, publisher *audit.Publisher) (*app, error) {
	var (
		vehicles      vehicleStore
		results       resultStore
		snapshots     thresholdsservice.Store
		users         userservice.Store
		lockouts      lockoutservice.Store
		vehicleOpts   []vehicleservice.Option
		thresholdOpts []thresholdsservice.Option
	)
	if infra.db != nil {
		vehicles = vehiclestore.NewPostgres(infra.db)
		results = inspectionstore.NewPostgres(infra.db)
		snapshots = thresholdsstore.NewPostgres(infra.db)
		users = userstore.NewPostgres(infra.db)
	} else {
		mem := vehiclestore.NewInMemory()
		memResults := inspectionstore.NewInMemory(mem)
		vehicles, results = mem, memResults
		snapshots = thresholdsstore.NewInMemory()
		users = userstore.NewInMemory()
		// Postgres cascades the delete; memory needs it done explicitly.
		vehicleOpts = append(vehicleOpts, vehicleservice.WithResultRemover(memResults))
	}
	lockouts = lockoutstore.NewInMemory()
	if infra.redis != nil {
		lockouts = lockoutstore.NewRedis(infra.redis.Client)
		thresholdOpts = append(thresholdOpts, thresholdsservice.WithCache(
			thresholdsstore.NewRedisCache(infra.redis.Client, cfg.Redis.SnapshotTTL)))
	}

	thresholdsSvc, err := thresholdsservice.New(snapshots, append(thresholdOpts,
		thresholdsservice.WithLogger(log),
		thresholdsservice.WithAuditPublisher(publisher),
	)...)
	if err != nil {
		return nil, err
	}
	seed, err := thresholds.LoadSeed(cfg.Thresholds.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("load threshold seed: %w", err)
	}
	current, err := thresholdsSvc.EnsureSeeded(ctx, seed)
	if err != nil {
		return nil, fmt.Errorf("seed thresholds: %w", err)
	}
	log.Info("thresholds loaded", "version", current.Version)

	vehicleSvc, err := vehicleservice.New(vehicles, append(vehicleOpts,
		vehicleservice.WithLogger(log),
		vehicleservice.WithAuditPublisher(publisher),
	)...)
	if err != nil {
		return nil, err
	}

	inspectionSvc, err := inspectionservice.New(results, vehicles, thresholdsSvc,
		inspectionservice.WithLogger(log),
		inspectionservice.WithAuditPublisher(publisher),
		inspectionservice.WithMetrics(inspectionmetrics.New()),
		inspectionservice.WithTracer(otel.Tracer("emissions/inspection")),
	)
	if err != nil {
		return nil, err
	}

	reportSvc, err := reportservice.New(vehicles, results, reportservice.WithLogger(log))
	if err != nil {
		return nil, err
	}

	limiter, err := lockoutservice.New(lockouts,
		lockoutservice.WithLogger(log),
		lockoutservice.WithAuditPublisher(publisher),
		lockoutservice.WithConfig(lockoutmodels.Config{
			MaxFailures:  cfg.Auth.LoginMaxFailures,
			Window:       cfg.Auth.LoginFailureWindow,
			LockDuration: cfg.Auth.LoginLockDuration,
		}),
	)
	if err != nil {
		return nil, err
	}

	tokens := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	userSvc, err := userservice.New(users, tokens,
		userservice.WithLogger(log),
		userservice.WithAuditPublisher(publisher),
		userservice.WithLoginLimiter(limiter),
	)
	if err != nil {
		return nil, err
	}
	if _, err := userSvc.EnsureAdmin(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	return &app{
		tokens:      tokens,
		users:       userSvc,
		vehicles:    vehicleSvc,
		inspections: inspectionSvc,
		reports:     reportSvc,
		thresholds:  thresholdsSvc,
	}, nil
}

func (a *app) routes(log *slog.Logger, health map[string]httptransport.HealthCheck) httptransport.Dependencies {
	return httptransport.Dependencies{
		Logger:      log,
		Metrics:     metrics.New(),
		Validator:   jwttoken.NewMiddlewareValidator(a.tokens),
		Health:      health,
		Users:       userhandler.New(a.users, log),
		Vehicles:    vehiclehandler.New(a.vehicles, log),
		Inspections: inspectionhandler.New(a.inspections, log),
		Reports:     reporthandler.New(a.reports, log),
		Thresholds:  thresholdshandler.New(a.thresholds, log),
	}
}
