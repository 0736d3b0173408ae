package pricing

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Store is the persistence surface the service depends on.
type Store interface {
	Upsert(ctx context.Context, plan Plan) error
	Get(ctx context.Context, companyID, customerID int64) (*Plan, error)
	Snapshot(ctx context.Context, companyID int64, customerIDs []int64) (Snapshot, error)
}

// Service provides business logic for pricing plans.
type Service struct {
	store    Store
	validate *validator.Validate
}

// NewService constructs a pricing service.
func NewService(store Store) *Service {
	return &Service{store: store, validate: validator.New()}
}

// Upsert stores the plan for one customer.
func (s *Service) Upsert(ctx context.Context, companyID, customerID int64, req UpsertPlanRequest) (*Plan, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("validate plan: %w", err)
	}
	plan := Plan{
		CustomerID:    customerID,
		CompanyID:     companyID,
		Type:          req.Type,
		PerVisitPrice: req.PerVisitPrice,
		MonthlyPrice:  req.MonthlyPrice,
	}
	if err := s.store.Upsert(ctx, plan); err != nil {
		return nil, fmt.Errorf("upsert plan: %w", err)
	}
	return s.store.Get(ctx, companyID, customerID)
}

// Get returns the plan for one customer.
func (s *Service) Get(ctx context.Context, companyID, customerID int64) (*Plan, error) {
	return s.store.Get(ctx, companyID, customerID)
}

// Snapshot loads all referenced plans in one batch.
func (s *Service) Snapshot(ctx context.Context, companyID int64, customerIDs []int64) (Snapshot, error) {
	return s.store.Snapshot(ctx, companyID, customerIDs)
}
