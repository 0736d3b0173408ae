package pricing

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// PricingType selects how completed visits are billed.
type PricingType string

const (
	// TypePerVisit bills a flat price for every completed visit.
	TypePerVisit PricingType = "per_visit"
	// TypeMonthly spreads a monthly price across the month's completed visits.
	TypeMonthly PricingType = "monthly"
)

// Plan is the per-customer billing configuration.
type Plan struct {
	CustomerID    int64       `json:"customer_id"`
	CompanyID     int64       `json:"company_id"`
	Type          PricingType `json:"pricing_type"`
	PerVisitPrice float64     `json:"per_visit_price"`
	MonthlyPrice  float64     `json:"monthly_price"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// UpsertPlanRequest creates or replaces a customer's plan.
type UpsertPlanRequest struct {
	Type          PricingType `json:"pricing_type" validate:"required,oneof=per_visit monthly"`
	PerVisitPrice float64     `json:"per_visit_price" validate:"gte=0"`
	MonthlyPrice  float64     `json:"monthly_price" validate:"gte=0"`
}

// Snapshot maps customer ids to their plan for one calculation batch.
type Snapshot map[int64]Plan

// ParseAmount converts a loosely typed monetary value into a float64.
// Invalid or missing input becomes 0 so downstream sums never see NaN.
func ParseAmount(raw *string) float64 {
	if raw == nil {
		return 0
	}
	s := strings.TrimSpace(*raw)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
