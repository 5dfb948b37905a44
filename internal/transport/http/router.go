// Package httptransport assembles the bounded-context handlers into one chi
// router behind the shared middleware chain.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	inspectionhandler "emissions/internal/inspection/handler"
	"emissions/internal/platform/config"
	"emissions/internal/platform/metrics"
	"emissions/internal/platform/middleware"
	reporthandler "emissions/internal/report/handler"
	thresholdshandler "emissions/internal/thresholds/handler"
	userhandler "emissions/internal/user/handler"
	vehiclehandler "emissions/internal/vehicle/handler"
	"emissions/pkg/platform/httputil"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Dependencies carries everything the router mounts. Health may be empty.
type Dependencies struct {
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Validator   middleware.JWTValidator
	Health      map[string]HealthCheck
	Users       *userhandler.Handler
	Vehicles    *vehiclehandler.Handler
	Inspections *inspectionhandler.Handler
	Reports     *reporthandler.Handler
	Thresholds  *thresholdshandler.Handler
}

// NewRouter wires the public, operator and admin route groups.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Latency(deps.Metrics))

	r.Get("/healthz", handleHealth(deps.Health))
	r.Get("/version", handleVersion)
	r.Handle("/metrics", metrics.Handler())

	deps.Users.Register(r)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.Validator, deps.Logger))

		deps.Users.RegisterOperator(r)
		deps.Vehicles.Register(r)
		deps.Inspections.Register(r)
		deps.Reports.Register(r)
		deps.Thresholds.Register(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(deps.Logger, "admin"))
			deps.Thresholds.RegisterAdmin(r)
			deps.Users.RegisterAdmin(r)
		})
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func handleHealth(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		names := make([]string, 0, len(checks))
		for name := range checks {
			names = append(names, name)
		}
		sort.Strings(names)

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
		status := http.StatusOK
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}

func handleVersion(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"version": config.APIVersion})
}
