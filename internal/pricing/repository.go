package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pestward/pestward/internal/shared"
)

// Repository provides PostgreSQL backed persistence for pricing plans.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert creates or replaces the plan for a customer.
func (r *Repository) Upsert(ctx context.Context, plan Plan) error {
	const query = `INSERT INTO customer_pricing (customer_id, company_id, pricing_type, per_visit_price, monthly_price, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (customer_id) DO UPDATE
		SET pricing_type = EXCLUDED.pricing_type,
		    per_visit_price = EXCLUDED.per_visit_price,
		    monthly_price = EXCLUDED.monthly_price,
		    updated_at = NOW()`
	_, err := r.pool.Exec(ctx, query, plan.CustomerID, plan.CompanyID, string(plan.Type), plan.PerVisitPrice, plan.MonthlyPrice)
	return err
}

// Get returns the plan for one customer.
func (r *Repository) Get(ctx context.Context, companyID, customerID int64) (*Plan, error) {
	const query = `SELECT customer_id, company_id, pricing_type, per_visit_price::text, monthly_price::text, updated_at
		FROM customer_pricing WHERE customer_id = $1 AND company_id = $2`
	var plan Plan
	var perVisit, monthly *string
	err := r.pool.QueryRow(ctx, query, customerID, companyID).Scan(
		&plan.CustomerID, &plan.CompanyID, &plan.Type, &perVisit, &monthly, &plan.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	plan.PerVisitPrice = ParseAmount(perVisit)
	plan.MonthlyPrice = ParseAmount(monthly)
	return &plan, nil
}

// Snapshot loads the plans for all referenced customers in one query.
// Prices are parsed defensively here, once, so the calculator only sees floats.
func (r *Repository) Snapshot(ctx context.Context, companyID int64, customerIDs []int64) (Snapshot, error) {
	snapshot := make(Snapshot, len(customerIDs))
	if len(customerIDs) == 0 {
		return snapshot, nil
	}
	const query = `SELECT customer_id, company_id, pricing_type, per_visit_price::text, monthly_price::text, updated_at
		FROM customer_pricing WHERE company_id = $1 AND customer_id = ANY($2)`
	rows, err := r.pool.Query(ctx, query, companyID, customerIDs)
	if err != nil {
		return nil, fmt.Errorf("pricing snapshot: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var plan Plan
		var perVisit, monthly *string
		if err := rows.Scan(&plan.CustomerID, &plan.CompanyID, &plan.Type, &perVisit, &monthly, &plan.UpdatedAt); err != nil {
			return nil, err
		}
		plan.PerVisitPrice = ParseAmount(perVisit)
		plan.MonthlyPrice = ParseAmount(monthly)
		snapshot[plan.CustomerID] = plan
	}
	return snapshot, rows.Err()
}
