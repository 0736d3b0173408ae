package revenue

import (
	"github.com/pestward/pestward/internal/pricing"
	"github.com/pestward/pestward/internal/shared"
	"github.com/pestward/pestward/internal/visits"
)

// Line is the computed revenue for one unified visit row.
type Line struct {
	ServiceRevenue  float64 `json:"service_revenue"`
	MaterialRevenue float64 `json:"material_revenue"`
	Total           float64 `json:"total"`
}

// Input is everything Calculate needs. It is plain data so the computation
// stays pure and repeatable for a fixed input.
type Input struct {
	Visits []visits.UnifiedVisit
	Plans  pricing.Snapshot
	// MaterialTotals maps completed visit ids to the sum of their sold lines.
	MaterialTotals map[int64]float64
}

type monthlyGroup struct {
	customerID int64
	branchID   int64
	month      string
}

// Calculate computes per-row revenue keyed by UnifiedVisit.Key.
//
// Only completed visits earn revenue; planned or cancelled rows map to 0.
// A per_visit plan bills its flat price on every completed visit. A monthly
// plan spreads the monthly price evenly across the completed visits of the
// same customer, branch and calendar month within the batch; the divisor is
// clamped to at least 1 so a lone visit never divides by zero. Customers
// without a plan contribute 0 service revenue but still carry their material
// sale totals.
func Calculate(in Input) map[string]Line {
	out := make(map[string]Line, len(in.Visits))

	// First pass: count completed visits per monthly billing group.
	counts := make(map[monthlyGroup]int)
	for _, v := range in.Visits {
		if v.Status != visits.StatusCompleted {
			continue
		}
		plan, ok := in.Plans[v.CustomerID]
		if !ok || plan.Type != pricing.TypeMonthly {
			continue
		}
		counts[groupOf(v)]++
	}

	for _, v := range in.Visits {
		line := Line{}
		if v.Status == visits.StatusCompleted {
			line.ServiceRevenue = servicePrice(v, in.Plans, counts)
			if v.Source == visits.SourceVisit {
				line.MaterialRevenue = in.MaterialTotals[v.ID]
			}
		}
		line.Total = line.ServiceRevenue + line.MaterialRevenue
		out[v.Key()] = line
	}
	return out
}

func groupOf(v visits.UnifiedVisit) monthlyGroup {
	return monthlyGroup{
		customerID: v.CustomerID,
		branchID:   v.BranchID,
		month:      shared.MonthKey(v.Date),
	}
}

func servicePrice(v visits.UnifiedVisit, plans pricing.Snapshot, counts map[monthlyGroup]int) float64 {
	plan, ok := plans[v.CustomerID]
	if !ok {
		return 0
	}
	switch plan.Type {
	case pricing.TypePerVisit:
		return plan.PerVisitPrice
	case pricing.TypeMonthly:
		n := counts[groupOf(v)]
		if n < 1 {
			n = 1
		}
		return plan.MonthlyPrice / float64(n)
	default:
		return 0
	}
}
