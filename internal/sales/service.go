package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pestward/pestward/internal/shared"
)

// Store is the lookup surface the service depends on.
type Store interface {
	ItemsByVisit(ctx context.Context, companyID int64, visitIDs []int64) (map[int64][]SaleItem, error)
	SaleByVisit(ctx context.Context, companyID, visitID int64) (*MaterialSale, error)
}

// Service exposes material sale lookups to handlers and the revenue report.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// ItemsByVisit batches sold line items for the given visit ids. An empty id
// set returns an empty map without reaching the store.
func (s *Service) ItemsByVisit(ctx context.Context, companyID int64, visitIDs []int64) (map[int64][]SaleItem, error) {
	if len(visitIDs) == 0 {
		return map[int64][]SaleItem{}, nil
	}
	items, err := s.store.ItemsByVisit(ctx, companyID, visitIDs)
	if err != nil {
		return nil, fmt.Errorf("lookup material sales: %w", err)
	}
	return items, nil
}

// SaleByVisit returns the sale for one visit. A visit that sold nothing maps
// to shared.ErrNotFound.
func (s *Service) SaleByVisit(ctx context.Context, companyID, visitID int64) (*MaterialSale, error) {
	sale, err := s.store.SaleByVisit(ctx, companyID, visitID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup sale: %w", err)
	}
	return sale, nil
}

// TotalsByVisit reduces ItemsByVisit down to one revenue figure per visit.
func (s *Service) TotalsByVisit(ctx context.Context, companyID int64, visitIDs []int64) (map[int64]float64, error) {
	items, err := s.ItemsByVisit(ctx, companyID, visitIDs)
	if err != nil {
		return nil, err
	}
	totals := make(map[int64]float64, len(items))
	for visitID, lines := range items {
		var sum float64
		for _, line := range lines {
			sum += line.TotalPrice
		}
		totals[visitID] = sum
	}
	return totals, nil
}
