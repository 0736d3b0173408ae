package pricing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pestward/pestward/internal/platform/httpx"
	"github.com/pestward/pestward/internal/shared"
)

// Handler manages pricing plan endpoints.
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

// MountRoutes registers pricing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/customers/{customerID}/pricing", func(r chi.Router) {
		r.Get("/", h.getPlan)
		r.Put("/", h.upsertPlan)
	})
}

func customerParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "customerID"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) getPlan(w http.ResponseWriter, r *http.Request) {
	customerID, ok := customerParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid customer id")
		return
	}
	plan, err := h.service.Get(r.Context(), shared.CompanyFromContext(r.Context()), customerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "")
			return
		}
		h.logger.Error("get plan", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, plan)
}

func (h *Handler) upsertPlan(w http.ResponseWriter, r *http.Request) {
	customerID, ok := customerParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid customer id")
		return
	}
	var req UpsertPlanRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	plan, err := h.service.Upsert(r.Context(), shared.CompanyFromContext(r.Context()), customerID, req)
	if err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", verrs.Error())
			return
		}
		h.logger.Error("upsert plan", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, plan)
}
