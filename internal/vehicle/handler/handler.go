package handler

import (
	"context"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"emissions/internal/emission"
	"emissions/internal/vehicle/models"
	dErrors "emissions/pkg/domain-errors"
	"emissions/pkg/platform/httputil"
	"emissions/pkg/platform/paging"
	"emissions/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service defines the vehicle registry operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.Vehicle, error)
	Get(ctx context.Context, plate string) (*models.Vehicle, error)
	Update(ctx context.Context, plate string, req models.UpdateRequest) (*models.Vehicle, error)
	Delete(ctx context.Context, plate string) error
	List(ctx context.Context, filter models.ListFilter, page paging.Params) (paging.Result[*models.Vehicle], error)
	ExportCSV(ctx context.Context, w io.Writer, filter models.ListFilter) error
	Import(ctx context.Context, r io.Reader) (*models.ImportResult, error)
	ImportTemplate(w io.Writer) error
}

// maxImportBytes bounds an uploaded import file.
const maxImportBytes = 5 << 20

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/vehicles", h.HandleRegister)
	r.Get("/vehicles", h.HandleList)
	r.Get("/vehicles/export.csv", h.HandleExport)
	r.Post("/vehicles/import", h.HandleImport)
	r.Get("/vehicles/import-template", h.HandleImportTemplate)
	r.Get("/vehicles/{plate}", h.HandleGet)
	r.Put("/vehicles/{plate}", h.HandleUpdate)
	r.Delete("/vehicles/{plate}", h.HandleDelete)
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	v, err := h.service.Register(ctx, *req)
	if err != nil {
		h.logFailure(ctx, "vehicle registration failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, v)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.Get(r.Context(), chi.URLParam(r, "plate"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.UpdateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	v, err := h.service.Update(ctx, chi.URLParam(r, "plate"), *req)
	if err != nil {
		h.logFailure(ctx, "vehicle update failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "plate")); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	page, err := paging.Parse(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.List(r.Context(), filter, page)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleExport streams the filtered registry as CSV.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	filename := "vehicles-" + requestcontext.Now(ctx).Format("20060102") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := h.service.ExportCSV(ctx, w, filter); err != nil {
		// Headers may already be sent; the truncated body is all we can signal.
		h.logFailure(ctx, "vehicle export failed", err)
	}
}

// HandleImport registers the vehicles of a CSV file. The file is either the
// request body or the "file" part of a multipart form. A file with rejected
// rows answers 422 with the row errors and imports nothing.
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	body, err := importBody(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	defer body.Close()

	result, err := h.service.Import(ctx, body)
	if err != nil {
		h.logFailure(ctx, "vehicle import failed", err)
		httputil.WriteError(w, err)
		return
	}
	if result.Rejected() {
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

// HandleImportTemplate serves an import file with example rows.
func (h *Handler) HandleImportTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="vehicles-import-template.csv"`)
	if err := h.service.ImportTemplate(w); err != nil {
		h.logFailure(r.Context(), "import template failed", err)
	}
}

func importBody(r *http.Request) (io.ReadCloser, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, nil
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "multipart upload needs a file field")
	}
	return file, nil
}

// parseFilter reads plate, make, usage and fuel_type. fuel_type may repeat
// or hold a comma separated list.
func parseFilter(r *http.Request) (models.ListFilter, error) {
	q := r.URL.Query()
	filter := models.ListFilter{
		Plate: strings.TrimSpace(q.Get("plate")),
		Make:  strings.TrimSpace(q.Get("make")),
	}
	if raw := q.Get("usage"); raw != "" {
		usage, err := models.ParseUsage(raw)
		if err != nil {
			return models.ListFilter{}, err
		}
		filter.Usage = usage
	}
	for _, value := range q["fuel_type"] {
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			fuel, err := emission.ParseFuelType(part)
			if err != nil {
				return models.ListFilter{}, dErrors.New(dErrors.CodeValidation, err.Error())
			}
			filter.FuelTypes = append(filter.FuelTypes, fuel)
		}
	}
	return filter, nil
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err)
		return
	}
	h.logger.WarnContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err)
}
