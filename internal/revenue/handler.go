package revenue

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pestward/pestward/internal/platform/httpx"
	"github.com/pestward/pestward/internal/shared"
)

// Handler serves the monthly revenue report.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// MountRoutes registers revenue routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/revenue", func(r chi.Router) {
		r.Get("/report", h.monthlyReport)
		r.Get("/report.csv", h.monthlyReportCSV)
		r.Get("/overview", h.yearOverview)
	})
}

func monthParams(r *http.Request) (int, time.Month, error) {
	q := r.URL.Query()
	now := time.Now().UTC()
	year := now.Year()
	month := now.Month()
	if raw := q.Get("year"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid year")
		}
		year = v
	}
	if raw := q.Get("month"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 12 {
			return 0, 0, fmt.Errorf("invalid month")
		}
		month = time.Month(v)
	}
	return year, month, nil
}

func (h *Handler) monthlyReport(w http.ResponseWriter, r *http.Request) {
	year, month, err := monthParams(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	report, err := h.service.MonthlyReport(r.Context(), shared.CompanyFromContext(r.Context()), year, month)
	if err != nil {
		h.logger.Error("monthly report", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) monthlyReportCSV(w http.ResponseWriter, r *http.Request) {
	year, month, err := monthParams(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	report, err := h.service.MonthlyReport(r.Context(), shared.CompanyFromContext(r.Context()), year, month)
	if err != nil {
		h.logger.Error("monthly report csv", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="revenue-%s.csv"`, report.Month))
	if err := WriteCSV(w, report); err != nil {
		h.logger.Error("stream report csv", slog.Any("error", err))
	}
}

func (h *Handler) yearOverview(w http.ResponseWriter, r *http.Request) {
	year := time.Now().UTC().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid year")
			return
		}
		year = v
	}
	overview, err := h.service.YearOverview(r.Context(), shared.CompanyFromContext(r.Context()), year)
	if err != nil {
		h.logger.Error("year overview", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"year": year, "months": overview})
}
