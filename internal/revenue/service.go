package revenue

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pestward/pestward/internal/pricing"
	"github.com/pestward/pestward/internal/shared"
	"github.com/pestward/pestward/internal/visits"
)

// VisitSource lists the unified visit rows for one company and month.
type VisitSource interface {
	ListUnified(ctx context.Context, companyID int64, year int, month time.Month) ([]visits.UnifiedVisit, error)
}

// PlanSource snapshots customer pricing plans for one batch.
type PlanSource interface {
	Snapshot(ctx context.Context, companyID int64, customerIDs []int64) (pricing.Snapshot, error)
}

// MaterialSource sums sold material lines per completed visit.
type MaterialSource interface {
	TotalsByVisit(ctx context.Context, companyID int64, visitIDs []int64) (map[int64]float64, error)
}

// Row is one unified visit with its computed revenue attached.
type Row struct {
	visits.UnifiedVisit
	Revenue Line `json:"revenue"`
}

// BranchSummary rolls revenue up per branch.
type BranchSummary struct {
	BranchID   int64   `json:"branch_id"`
	BranchName string  `json:"branch_name"`
	Visits     int     `json:"visits"`
	Total      float64 `json:"total"`
}

// Report is the monthly revenue report for one company.
type Report struct {
	CompanyID       int64           `json:"company_id"`
	Month           string          `json:"month"`
	Currency        string          `json:"currency"`
	Rows            []Row           `json:"rows"`
	Branches        []BranchSummary `json:"branches"`
	ServiceRevenue  float64         `json:"service_revenue"`
	MaterialRevenue float64         `json:"material_revenue"`
	Total           float64         `json:"total"`
	// Degraded is set when material sale lookup failed and the report was
	// computed from service prices alone.
	Degraded      bool      `json:"degraded"`
	DegradedCause string    `json:"degraded_cause,omitempty"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// transientResult keeps degraded reports out of the cache so a recovered
// material backend is picked up on the next request instead of after TTL.
func (r *Report) transientResult() bool { return r.Degraded }

// ServiceConfig carries report tunables.
type ServiceConfig struct {
	Currency string
}

// Service assembles monthly revenue reports from visits, pricing plans and
// material sales.
type Service struct {
	visits    VisitSource
	plans     PlanSource
	materials MaterialSource
	cache     *Cache
	logger    *slog.Logger
	cfg       ServiceConfig
	now       func() time.Time
}

func NewService(visitSrc VisitSource, planSrc PlanSource, materialSrc MaterialSource, cache *Cache, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Currency == "" {
		cfg.Currency = "TRY"
	}
	return &Service{
		visits:    visitSrc,
		plans:     planSrc,
		materials: materialSrc,
		cache:     cache,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// MonthlyReport returns the revenue report for one calendar month, served
// from the versioned cache when possible.
func (s *Service) MonthlyReport(ctx context.Context, companyID int64, year int, month time.Month) (*Report, error) {
	key, err := s.cache.BuildKey(ctx, "revenue:report",
		fmt.Sprintf("%d", companyID), fmt.Sprintf("%04d-%02d", year, month))
	if err != nil {
		return nil, fmt.Errorf("build cache key: %w", err)
	}
	var report Report
	err = s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (interface{}, error) {
		return s.buildReport(ctx, companyID, year, month)
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *Service) buildReport(ctx context.Context, companyID int64, year int, month time.Month) (*Report, error) {
	unified, err := s.visits.ListUnified(ctx, companyID, year, month)
	if err != nil {
		return nil, fmt.Errorf("fetch visits: %w", err)
	}

	customerIDs := make([]int64, 0, len(unified))
	seenCustomers := make(map[int64]struct{}, len(unified))
	var visitIDs []int64
	for _, v := range unified {
		if _, ok := seenCustomers[v.CustomerID]; !ok {
			seenCustomers[v.CustomerID] = struct{}{}
			customerIDs = append(customerIDs, v.CustomerID)
		}
		if v.Source == visits.SourceVisit && v.Status == visits.StatusCompleted {
			visitIDs = append(visitIDs, v.ID)
		}
	}

	var (
		plans         pricing.Snapshot
		totals        map[int64]float64
		degraded      bool
		degradedCause string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		plans, err = s.plans.Snapshot(gctx, companyID, customerIDs)
		if err != nil {
			return fmt.Errorf("fetch pricing: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		totals, err = s.materials.TotalsByVisit(gctx, companyID, visitIDs)
		if err != nil {
			// Material sales degrade to empty rather than failing the report.
			s.logger.Warn("material sale lookup failed, report degraded",
				slog.Int64("company_id", companyID), slog.Any("error", err))
			degraded = true
			degradedCause = "material sale lookup unavailable"
			totals = map[int64]float64{}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	lines := Calculate(Input{Visits: unified, Plans: plans, MaterialTotals: totals})

	report := &Report{
		CompanyID:     companyID,
		Month:         fmt.Sprintf("%04d-%02d", year, month),
		Currency:      s.cfg.Currency,
		Rows:          make([]Row, 0, len(unified)),
		Degraded:      degraded,
		DegradedCause: degradedCause,
		GeneratedAt:   s.now(),
	}
	branchTotals := make(map[int64]*BranchSummary)
	for _, v := range unified {
		line := lines[v.Key()]
		report.Rows = append(report.Rows, Row{UnifiedVisit: v, Revenue: line})
		report.ServiceRevenue += line.ServiceRevenue
		report.MaterialRevenue += line.MaterialRevenue
		report.Total += line.Total

		summary, ok := branchTotals[v.BranchID]
		if !ok {
			summary = &BranchSummary{BranchID: v.BranchID, BranchName: v.BranchName}
			branchTotals[v.BranchID] = summary
		}
		summary.Visits++
		summary.Total += line.Total
	}
	for _, summary := range branchTotals {
		report.Branches = append(report.Branches, *summary)
	}
	sort.Slice(report.Branches, func(i, j int) bool {
		return report.Branches[i].BranchID < report.Branches[j].BranchID
	})
	return report, nil
}

// YearOverview builds light per-month totals for one calendar year. Used by
// the warmup job and the overview endpoint.
func (s *Service) YearOverview(ctx context.Context, companyID int64, year int) (map[string]float64, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 1, 0, 0, 0, 0, time.UTC)
	out := make(map[string]float64, 12)
	for _, m := range shared.EnumerateMonths(from, to) {
		report, err := s.MonthlyReport(ctx, companyID, m.Year(), m.Month())
		if err != nil {
			return nil, fmt.Errorf("month %s: %w", shared.MonthKey(m), err)
		}
		out[report.Month] = report.Total
	}
	return out, nil
}

// Invalidator exposes the cache bump for wiring into the visit service.
func (s *Service) Invalidator() *Cache {
	return s.cache
}
