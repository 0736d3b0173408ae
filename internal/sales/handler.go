package sales

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pestward/pestward/internal/platform/httpx"
	"github.com/pestward/pestward/internal/shared"
)

// Handler serves material sale lookups.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// MountRoutes registers sale routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/sales", func(r chi.Router) {
		r.Get("/visits/{visitID}", h.saleByVisit)
		r.Get("/items", h.itemsByVisits)
	})
}

func (h *Handler) saleByVisit(w http.ResponseWriter, r *http.Request) {
	companyID := shared.CompanyFromContext(r.Context())
	visitID, err := strconv.ParseInt(chi.URLParam(r, "visitID"), 10, 64)
	if err != nil || visitID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid visit id")
		return
	}
	sale, err := h.service.SaleByVisit(r.Context(), companyID, visitID)
	if errors.Is(err, shared.ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no material sale for visit")
		return
	}
	if err != nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "lookup sale")
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

// itemsByVisits batches ?visit_ids=1,2,3 into one lookup.
func (h *Handler) itemsByVisits(w http.ResponseWriter, r *http.Request) {
	companyID := shared.CompanyFromContext(r.Context())
	var visitIDs []int64
	for _, raw := range strings.Split(r.URL.Query().Get("visit_ids"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid visit id: "+raw)
			return
		}
		visitIDs = append(visitIDs, id)
	}
	items, err := h.service.ItemsByVisit(r.Context(), companyID, visitIDs)
	if err != nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "lookup sale items")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}
