package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"emissions/internal/inspection/models"
	"emissions/internal/inspection/service"
	dErrors "emissions/pkg/domain-errors"
	"emissions/pkg/platform/httputil"
	"emissions/pkg/platform/paging"
	"emissions/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service defines the inspection operations exposed over HTTP.
type Service interface {
	Submit(ctx context.Context, plate string, payload map[string]any) (*service.Submission, error)
	Get(ctx context.Context, plate string) (*service.Submission, error)
	Clear(ctx context.Context, plate string) error
	History(ctx context.Context, filter models.HistoryFilter, page paging.Params) (paging.Result[models.Entry], error)
	TestedPlates(ctx context.Context) ([]string, error)
	Certificate(ctx context.Context, plate string) (*models.Certificate, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/inspections", h.HandleHistory)
	r.Get("/inspections/tested-plates", h.HandleTestedPlates)
	r.Post("/inspections/{plate}", h.HandleSubmit)
	r.Get("/inspections/{plate}", h.HandleGet)
	r.Delete("/inspections/{plate}", h.HandleClear)
	r.Get("/inspections/{plate}/certificate", h.HandleCertificate)
}

// HandleSubmit evaluates a reading. Physically impossible readings are a
// normal verdict and answer 200 with valid=false.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SubmitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	sub, err := h.service.Submit(ctx, chi.URLParam(r, "plate"), *req)
	if err != nil {
		h.logFailure(ctx, "inspection submission failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResultResponse(sub))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sub, err := h.service.Get(r.Context(), chi.URLParam(r, "plate"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResultResponse(sub))
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context(), chi.URLParam(r, "plate")); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	filter, err := models.ParseHistoryFilter(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	page, err := paging.Parse(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.History(r.Context(), filter, page)
	if err != nil {
		h.logFailure(r.Context(), "inspection history failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleTestedPlates(w http.ResponseWriter, r *http.Request) {
	plates, err := h.service.TestedPlates(r.Context())
	if err != nil {
		h.logFailure(r.Context(), "listing tested plates failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, TestedPlatesResponse{Plates: plates})
}

func (h *Handler) HandleCertificate(w http.ResponseWriter, r *http.Request) {
	cert, err := h.service.Certificate(r.Context(), chi.URLParam(r, "plate"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cert)
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err)
		return
	}
	h.logger.WarnContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err)
}
