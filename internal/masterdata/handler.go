package masterdata

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

// Handler manages master data endpoints.
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

// MountRoutes registers master data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/customers", func(r chi.Router) {
		r.Get("/", h.listCustomers)
		r.Post("/", h.createCustomer)
		r.Get("/{id}", h.getCustomer)
		r.Patch("/{id}", h.updateCustomer)
	})
	r.Route("/branches", func(r chi.Router) {
		r.Get("/", h.listBranches)
		r.Post("/", h.createBranch)
		r.Get("/{id}", h.getBranch)
		r.Patch("/{id}", h.updateBranch)
	})
	r.Route("/operators", func(r chi.Router) {
		r.Get("/", h.listOperators)
		r.Post("/", h.createOperator)
		r.Get("/{id}", h.getOperator)
		r.Patch("/{id}", h.updateOperator)
	})
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Post("/", h.createProduct)
		r.Get("/{id}", h.getProduct)
		r.Patch("/{id}", h.updateProduct)
	})
}

func (h *Handler) respondError(w http.ResponseWriter, action string, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", verrs.Error())
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	case errors.Is(err, shared.ErrAlreadyExists):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "")
	default:
		h.logger.Error(action, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func listFilter(r *http.Request) ListFilter {
	q := r.URL.Query()
	filter := ListFilter{
		CompanyID: shared.CompanyFromContext(r.Context()),
		Search:    q.Get("search"),
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	if raw := q.Get("customer_id"); raw != "" {
		filter.CustomerID, _ = strconv.ParseInt(raw, 10, 64)
	}
	if raw := q.Get("is_active"); raw != "" {
		active := raw == "true"
		filter.IsActive = &active
	}
	return filter
}

type listResponse[T any] struct {
	Items      []T               `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

// ============================================================================
// CUSTOMERS
// ============================================================================

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	filter := listFilter(r)
	customers, total, err := h.service.ListCustomers(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list customers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse[Customer]{
		Items:      customers,
		Pagination: shared.NewPagination(filter.Page, filter.PerPage, total),
	})
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	customer, err := h.service.CreateCustomer(r.Context(), shared.CompanyFromContext(r.Context()), req)
	if err != nil {
		h.respondError(w, "create customer", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, customer)
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	customer, err := h.service.GetCustomer(r.Context(), shared.CompanyFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, "get customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req UpdateCustomerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	customer, err := h.service.UpdateCustomer(r.Context(), shared.CompanyFromContext(r.Context()), id, req)
	if err != nil {
		h.respondError(w, "update customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

// ============================================================================
// BRANCHES
// ============================================================================

func (h *Handler) listBranches(w http.ResponseWriter, r *http.Request) {
	filter := listFilter(r)
	branches, total, err := h.service.ListBranches(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list branches", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse[Branch]{
		Items:      branches,
		Pagination: shared.NewPagination(filter.Page, filter.PerPage, total),
	})
}

func (h *Handler) createBranch(w http.ResponseWriter, r *http.Request) {
	var req CreateBranchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	branch, err := h.service.CreateBranch(r.Context(), shared.CompanyFromContext(r.Context()), req)
	if err != nil {
		h.respondError(w, "create branch", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, branch)
}

func (h *Handler) getBranch(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	branch, err := h.service.GetBranch(r.Context(), shared.CompanyFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, "get branch", err)
		return
	}
	httpx.JSON(w, http.StatusOK, branch)
}

func (h *Handler) updateBranch(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req UpdateBranchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	branch, err := h.service.UpdateBranch(r.Context(), shared.CompanyFromContext(r.Context()), id, req)
	if err != nil {
		h.respondError(w, "update branch", err)
		return
	}
	httpx.JSON(w, http.StatusOK, branch)
}

// ============================================================================
// OPERATORS
// ============================================================================

func (h *Handler) listOperators(w http.ResponseWriter, r *http.Request) {
	filter := listFilter(r)
	operators, total, err := h.service.ListOperators(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list operators", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse[Operator]{
		Items:      operators,
		Pagination: shared.NewPagination(filter.Page, filter.PerPage, total),
	})
}

func (h *Handler) createOperator(w http.ResponseWriter, r *http.Request) {
	var req CreateOperatorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	operator, err := h.service.CreateOperator(r.Context(), shared.CompanyFromContext(r.Context()), req)
	if err != nil {
		h.respondError(w, "create operator", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, operator)
}

func (h *Handler) getOperator(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	operator, err := h.service.GetOperator(r.Context(), shared.CompanyFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, "get operator", err)
		return
	}
	httpx.JSON(w, http.StatusOK, operator)
}

func (h *Handler) updateOperator(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req UpdateOperatorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	operator, err := h.service.UpdateOperator(r.Context(), shared.CompanyFromContext(r.Context()), id, req)
	if err != nil {
		h.respondError(w, "update operator", err)
		return
	}
	httpx.JSON(w, http.StatusOK, operator)
}

// ============================================================================
// PRODUCTS
// ============================================================================

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	filter := listFilter(r)
	products, total, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list products", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse[Product]{
		Items:      products,
		Pagination: shared.NewPagination(filter.Page, filter.PerPage, total),
	})
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	product, err := h.service.CreateProduct(r.Context(), shared.CompanyFromContext(r.Context()), req)
	if err != nil {
		h.respondError(w, "create product", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	product, err := h.service.GetProduct(r.Context(), shared.CompanyFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, "get product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req UpdateProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	product, err := h.service.UpdateProduct(r.Context(), shared.CompanyFromContext(r.Context()), id, req)
	if err != nil {
		h.respondError(w, "update product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}
