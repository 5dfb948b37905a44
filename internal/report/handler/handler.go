package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"emissions/internal/inspection/models"
	"emissions/internal/report"
	"emissions/pkg/platform/httputil"
	"emissions/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type Service interface {
	Statistics(ctx context.Context) (*report.Statistics, error)
	EmissionsByCategory(ctx context.Context) (*report.EmissionsByCategory, error)
	AgePerformance(ctx context.Context) ([]report.AgeGroup, error)
	ExportCSV(ctx context.Context, w io.Writer, filter models.HistoryFilter) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/reports/statistics", h.HandleStatistics)
	r.Get("/reports/emissions-by-category", h.HandleEmissionsByCategory)
	r.Get("/reports/age-performance", h.HandleAgePerformance)
	r.Get("/reports/export.csv", h.HandleExport)
}

func (h *Handler) HandleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Statistics(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) HandleEmissionsByCategory(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.EmissionsByCategory(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleAgePerformance(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.AgePerformance(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, groups)
}

// HandleExport streams the filtered results as CSV. It takes the same
// filters as the inspection history.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := models.ParseHistoryFilter(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	filename := "inspections-" + requestcontext.Now(ctx).Format("20060102-150405") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := h.service.ExportCSV(ctx, w, filter); err != nil {
		h.logger.ErrorContext(ctx, "inspection export failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}
