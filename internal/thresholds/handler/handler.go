package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"emissions/internal/emission"
	dErrors "emissions/pkg/domain-errors"
	"emissions/pkg/platform/httputil"
	"emissions/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service defines the threshold operations exposed over HTTP.
type Service interface {
	Current(ctx context.Context) (emission.Snapshot, error)
	Replace(ctx context.Context, next emission.Snapshot, expectedVersion int64) (emission.Snapshot, error)
}

// Handler wires threshold endpoints to the thresholds service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the operator facing preview endpoint.
func (h *Handler) Register(r chi.Router) {
	r.Get("/thresholds/resolve", h.HandleResolve)
}

// RegisterAdmin mounts the administrator endpoints.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/thresholds", h.HandleGet)
	r.Put("/admin/thresholds", h.HandleReplace)
}

// HandleGet handles GET /admin/thresholds.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Current(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// HandleReplace handles PUT /admin/thresholds. The body is a full snapshot;
// its version is the one the administrator edited and must still be current.
func (h *Handler) HandleReplace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ReplaceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	snap, err := h.service.Replace(ctx, req.Snapshot, req.Version)
	if err != nil {
		h.logger.WarnContext(ctx, "threshold replacement rejected",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// HandleResolve handles GET /thresholds/resolve and shows which limits a
// vehicle would be tested against.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fuel, err := emission.ParseFuelType(q.Get("fuel_type"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, err.Error()))
		return
	}
	year, err := strconv.Atoi(q.Get("model_year"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "model_year must be an integer"))
		return
	}
	category := emission.NormalizeLoadCategory(q.Get("load_category"))

	snap, err := h.service.Current(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	res, err := emission.Resolve(snap, fuel, category, year)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, err.Error()))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ResolveResponse{
		FuelType:        fuel,
		LoadCategory:    category,
		ModelYear:       year,
		Resolution:      res,
		Limits:          res.Thresholds.AsMap(),
		SnapshotVersion: snap.Version,
	})
}
