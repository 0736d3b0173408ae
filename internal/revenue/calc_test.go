package revenue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pestward/pestward/internal/pricing"
	"github.com/pestward/pestward/internal/visits"
)

func completedVisit(id, customerID, branchID int64, day int) visits.UnifiedVisit {
	return visits.UnifiedVisit{
		Source:     visits.SourceVisit,
		ID:         id,
		CustomerID: customerID,
		BranchID:   branchID,
		Date:       time.Date(2026, 6, day, 10, 0, 0, 0, time.UTC),
		Status:     visits.StatusCompleted,
	}
}

func plannedRequest(id, customerID, branchID int64, day int) visits.UnifiedVisit {
	return visits.UnifiedVisit{
		Source:     visits.SourceRequest,
		ID:         id,
		CustomerID: customerID,
		BranchID:   branchID,
		Date:       time.Date(2026, 6, day, 10, 0, 0, 0, time.UTC),
		Status:     visits.StatusPending,
	}
}

func TestPerVisitPlanBillsFlatPrice(t *testing.T) {
	in := Input{
		Visits: []visits.UnifiedVisit{
			completedVisit(1, 10, 100, 5),
			completedVisit(2, 10, 100, 12),
		},
		Plans: pricing.Snapshot{
			10: {CustomerID: 10, Type: pricing.TypePerVisit, PerVisitPrice: 250},
		},
	}
	lines := Calculate(in)
	assert.InDelta(t, 250, lines["visit:1"].Total, 1e-9)
	assert.InDelta(t, 250, lines["visit:2"].Total, 1e-9)
}

func TestMonthlyPlanSpreadsAcrossCompletedVisits(t *testing.T) {
	in := Input{
		Visits: []visits.UnifiedVisit{
			completedVisit(1, 10, 100, 5),
			completedVisit(2, 10, 100, 12),
			completedVisit(3, 10, 100, 19),
			plannedRequest(4, 10, 100, 26), // planned rows never join the divisor
		},
		Plans: pricing.Snapshot{
			10: {CustomerID: 10, Type: pricing.TypeMonthly, MonthlyPrice: 900},
		},
	}
	lines := Calculate(in)
	assert.InDelta(t, 300, lines["visit:1"].ServiceRevenue, 1e-9)
	assert.InDelta(t, 300, lines["visit:2"].ServiceRevenue, 1e-9)
	assert.InDelta(t, 300, lines["visit:3"].ServiceRevenue, 1e-9)
	assert.Zero(t, lines["request:4"].Total)
}

func TestMonthlyDivisorNeverZero(t *testing.T) {
	in := Input{
		Visits: []visits.UnifiedVisit{completedVisit(1, 10, 100, 5)},
		Plans: pricing.Snapshot{
			10: {CustomerID: 10, Type: pricing.TypeMonthly, MonthlyPrice: 600},
		},
	}
	lines := Calculate(in)
	assert.InDelta(t, 600, lines["visit:1"].ServiceRevenue, 1e-9)
}

func TestMonthlyGroupsByBranchAndMonth(t *testing.T) {
	other := completedVisit(3, 10, 200, 8) // different branch, own divisor
	julyVisit := completedVisit(4, 10, 100, 1)
	julyVisit.Date = time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

	in := Input{
		Visits: []visits.UnifiedVisit{
			completedVisit(1, 10, 100, 5),
			completedVisit(2, 10, 100, 12),
			other,
			julyVisit,
		},
		Plans: pricing.Snapshot{
			10: {CustomerID: 10, Type: pricing.TypeMonthly, MonthlyPrice: 1000},
		},
	}
	lines := Calculate(in)
	assert.InDelta(t, 500, lines["visit:1"].ServiceRevenue, 1e-9)
	assert.InDelta(t, 500, lines["visit:2"].ServiceRevenue, 1e-9)
	assert.InDelta(t, 1000, lines["visit:3"].ServiceRevenue, 1e-9)
	assert.InDelta(t, 1000, lines["visit:4"].ServiceRevenue, 1e-9)
}

func TestNonCompletedRowsEarnNothing(t *testing.T) {
	cancelled := completedVisit(1, 10, 100, 5)
	cancelled.Status = visits.StatusCancelled

	in := Input{
		Visits: []visits.UnifiedVisit{cancelled, plannedRequest(2, 10, 100, 9)},
		Plans: pricing.Snapshot{
			10: {CustomerID: 10, Type: pricing.TypePerVisit, PerVisitPrice: 250},
		},
		MaterialTotals: map[int64]float64{1: 400},
	}
	lines := Calculate(in)
	assert.Zero(t, lines["visit:1"].Total)
	assert.Zero(t, lines["request:2"].Total)
}

func TestMissingPlanStillCountsMaterials(t *testing.T) {
	in := Input{
		Visits:         []visits.UnifiedVisit{completedVisit(1, 10, 100, 5)},
		Plans:          pricing.Snapshot{},
		MaterialTotals: map[int64]float64{1: 180},
	}
	lines := Calculate(in)
	assert.Zero(t, lines["visit:1"].ServiceRevenue)
	assert.InDelta(t, 180, lines["visit:1"].MaterialRevenue, 1e-9)
	assert.InDelta(t, 180, lines["visit:1"].Total, 1e-9)
}

func TestMaterialsAddedOnTopOfServicePrice(t *testing.T) {
	in := Input{
		Visits: []visits.UnifiedVisit{completedVisit(1, 10, 100, 5)},
		Plans: pricing.Snapshot{
			10: {CustomerID: 10, Type: pricing.TypePerVisit, PerVisitPrice: 250},
		},
		MaterialTotals: map[int64]float64{1: 120},
	}
	lines := Calculate(in)
	assert.InDelta(t, 250, lines["visit:1"].ServiceRevenue, 1e-9)
	assert.InDelta(t, 120, lines["visit:1"].MaterialRevenue, 1e-9)
	assert.InDelta(t, 370, lines["visit:1"].Total, 1e-9)
}

func TestCalculateIsDeterministic(t *testing.T) {
	in := Input{
		Visits: []visits.UnifiedVisit{
			completedVisit(1, 10, 100, 5),
			completedVisit(2, 11, 100, 7),
			plannedRequest(3, 10, 100, 20),
		},
		Plans: pricing.Snapshot{
			10: {CustomerID: 10, Type: pricing.TypeMonthly, MonthlyPrice: 500},
			11: {CustomerID: 11, Type: pricing.TypePerVisit, PerVisitPrice: 75},
		},
		MaterialTotals: map[int64]float64{1: 30},
	}
	first := Calculate(in)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, Calculate(in))
	}
}
