package visits

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pestward/pestward/internal/platform/httpx"
	"github.com/pestward/pestward/internal/shared"
)

// Handler manages service request and visit endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers visit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/requests", func(r chi.Router) {
		r.Post("/", h.createRequest)
		r.Get("/{id}", h.getRequest)
		r.Post("/{id}/assign", h.assignRequest)
		r.Post("/{id}/start", h.startRequest)
		r.Post("/{id}/cancel", h.cancelRequest)
		r.Post("/{id}/complete", h.completeRequest)
	})
	r.Route("/visits", func(r chi.Router) {
		r.Get("/", h.listUnified)
		r.Get("/{id}", h.getVisit)
		r.Post("/{id}/invoiced", h.setInvoiced)
	})
}

func (h *Handler) respondError(w http.ResponseWriter, action string, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", verrs.Error())
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	case errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, shared.ErrConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", "visit was modified concurrently")
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Request", "completion already processed")
	default:
		h.logger.Error(action, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) createRequest(w http.ResponseWriter, r *http.Request) {
	var req CreateRequestRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	created, err := h.service.CreateRequest(r.Context(), shared.CompanyFromContext(r.Context()), req)
	if err != nil {
		h.respondError(w, "create request", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) getRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	req, err := h.service.GetRequest(r.Context(), shared.CompanyFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, "get request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) assignRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var body struct {
		OperatorID int64 `json:"operator_id"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil || body.OperatorID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "operator_id required")
		return
	}
	req, err := h.service.Assign(r.Context(), shared.CompanyFromContext(r.Context()), id, body.OperatorID)
	if err != nil {
		h.respondError(w, "assign request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) startRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	req, err := h.service.Start(r.Context(), shared.CompanyFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, "start request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) cancelRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	req, err := h.service.Cancel(r.Context(), shared.CompanyFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, "cancel request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) completeRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req CompleteRequestRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	visit, err := h.service.Complete(r.Context(), shared.CompanyFromContext(r.Context()), id, req)
	if err != nil {
		h.respondError(w, "complete request", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, visit)
}

func (h *Handler) getVisit(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	visit, err := h.service.GetVisit(r.Context(), shared.CompanyFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, "get visit", err)
		return
	}
	httpx.JSON(w, http.StatusOK, visit)
}

func (h *Handler) setInvoiced(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req SetInvoicedRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	visit, err := h.service.SetInvoiced(r.Context(), shared.CompanyFromContext(r.Context()), id, req)
	if err != nil {
		h.respondError(w, "set invoiced", err)
		return
	}
	httpx.JSON(w, http.StatusOK, visit)
}

// listUnified renders the merged month view of completed visits and open
// service requests.
func (h *Handler) listUnified(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := time.Now().UTC()
	year := now.Year()
	month := now.Month()
	if raw := q.Get("year"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid year")
			return
		}
		year = v
	}
	if raw := q.Get("month"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 12 {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid month")
			return
		}
		month = time.Month(v)
	}

	unified, err := h.service.ListUnified(r.Context(), shared.CompanyFromContext(r.Context()), year, month)
	if err != nil {
		h.respondError(w, "list unified visits", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"year":   year,
		"month":  int(month),
		"visits": unified,
	})
}
