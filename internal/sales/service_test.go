package sales

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pestward/pestward/internal/shared"
)

type stubStore struct {
	items   map[int64][]SaleItem
	queries int
}

func (s *stubStore) ItemsByVisit(_ context.Context, _ int64, visitIDs []int64) (map[int64][]SaleItem, error) {
	s.queries++
	out := make(map[int64][]SaleItem)
	for _, id := range visitIDs {
		if lines, ok := s.items[id]; ok {
			out[id] = lines
		}
	}
	return out, nil
}

func (s *stubStore) SaleByVisit(_ context.Context, _ int64, visitID int64) (*MaterialSale, error) {
	s.queries++
	lines, ok := s.items[visitID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &MaterialSale{ID: 1, VisitID: visitID, Items: lines}, nil
}

func TestItemsByVisitEmptyInputSkipsQuery(t *testing.T) {
	store := &stubStore{}
	svc := NewService(store)

	items, err := svc.ItemsByVisit(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, store.queries, "empty id set must not reach the store")

	items, err = svc.ItemsByVisit(context.Background(), 1, []int64{})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, store.queries)

	totals, err := svc.TotalsByVisit(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Empty(t, totals)
	assert.Zero(t, store.queries)
}

func TestItemsByVisitGroupsByVisit(t *testing.T) {
	store := &stubStore{items: map[int64][]SaleItem{
		7: {
			{ProductID: 1, Name: "Gel Bait", Quantity: 2, UnitPrice: 150, TotalPrice: 300, Currency: "TRY"},
			{ProductID: 2, Name: "Rodent Trap", Quantity: 1, UnitPrice: 90, TotalPrice: 90, Currency: "TRY"},
		},
		9: {
			{ProductID: 3, Name: "Spray", Quantity: 4, UnitPrice: 25, TotalPrice: 100, Currency: "TRY"},
		},
	}}
	svc := NewService(store)

	items, err := svc.ItemsByVisit(context.Background(), 1, []int64{7, 8, 9})
	require.NoError(t, err)
	assert.Len(t, items[7], 2)
	assert.Len(t, items[9], 1)
	_, ok := items[8]
	assert.False(t, ok, "visit without sales must be absent from the map")
}

func TestTotalsByVisit(t *testing.T) {
	store := &stubStore{items: map[int64][]SaleItem{
		7: {
			{TotalPrice: 300},
			{TotalPrice: 90},
		},
	}}
	svc := NewService(store)

	totals, err := svc.TotalsByVisit(context.Background(), 1, []int64{7})
	require.NoError(t, err)
	assert.InDelta(t, 390, totals[7], 1e-9)
}

func TestSaleByVisitMapsNoRows(t *testing.T) {
	svc := NewService(&stubStore{items: map[int64][]SaleItem{}})
	_, err := svc.SaleByVisit(context.Background(), 1, 42)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestMaterialSaleTotal(t *testing.T) {
	sale := MaterialSale{Items: []SaleItem{{TotalPrice: 10.5}, {TotalPrice: 4.5}}}
	assert.InDelta(t, 15, sale.Total(), 1e-9)
}
