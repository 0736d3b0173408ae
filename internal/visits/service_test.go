package visits

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pestward/pestward/internal/shared"
)

// ============================================================================
// MOCK STORE
// ============================================================================

type mockStore struct {
	requests  map[int64]*ServiceRequest
	visits    map[int64]*Visit
	completed []UnifiedVisit
	open      []UnifiedVisit
	nextID    int64
}

func newMockStore() *mockStore {
	return &mockStore{
		requests: make(map[int64]*ServiceRequest),
		visits:   make(map[int64]*Visit),
		nextID:   1,
	}
}

func (m *mockStore) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *mockStore) InsertRequest(_ context.Context, req ServiceRequest) (int64, error) {
	req.ID = m.id()
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt
	m.requests[req.ID] = &req
	return req.ID, nil
}

func (m *mockStore) GetRequest(_ context.Context, companyID, id int64) (*ServiceRequest, error) {
	req, ok := m.requests[id]
	if !ok || req.CompanyID != companyID {
		return nil, shared.ErrNotFound
	}
	return req, nil
}

func (m *mockStore) UpdateRequestStatus(_ context.Context, companyID, id int64, from, to Status, operatorID *int64) error {
	req, ok := m.requests[id]
	if !ok || req.CompanyID != companyID {
		return shared.ErrNotFound
	}
	if req.Status != from {
		return ErrInvalidTransition
	}
	req.Status = to
	if operatorID != nil {
		req.OperatorID = operatorID
	}
	return nil
}

func (m *mockStore) CompleteRequest(_ context.Context, companyID, requestID int64, visitDate time.Time, reportNumber *string, items []SaleItemInput, _ string) (*Visit, error) {
	req, ok := m.requests[requestID]
	if !ok || req.CompanyID != companyID {
		return nil, shared.ErrNotFound
	}
	if !CanTransition(req.Status, StatusCompleted) {
		return nil, ErrInvalidTransition
	}
	req.Status = StatusCompleted
	visit := &Visit{
		ID:           m.id(),
		CompanyID:    companyID,
		CustomerID:   req.CustomerID,
		BranchID:     req.BranchID,
		OperatorID:   req.OperatorID,
		VisitDate:    visitDate,
		ReportNumber: reportNumber,
		UpdatedAt:    time.Now(),
	}
	m.visits[visit.ID] = visit
	return visit, nil
}

func (m *mockStore) GetVisit(_ context.Context, companyID, id int64) (*Visit, error) {
	v, ok := m.visits[id]
	if !ok || v.CompanyID != companyID {
		return nil, shared.ErrNotFound
	}
	return v, nil
}

func (m *mockStore) SetInvoiced(_ context.Context, companyID, id int64, invoiced bool, token time.Time) error {
	v, ok := m.visits[id]
	if !ok || v.CompanyID != companyID {
		return shared.ErrNotFound
	}
	if !v.UpdatedAt.Equal(token) {
		return shared.ErrConflict
	}
	v.IsInvoiced = invoiced
	v.UpdatedAt = v.UpdatedAt.Add(time.Second)
	return nil
}

func (m *mockStore) ListCompletedVisits(_ context.Context, companyID int64, _, _ time.Time) ([]UnifiedVisit, error) {
	return m.completed, nil
}

func (m *mockStore) ListOpenRequests(_ context.Context, companyID int64, _, _ time.Time) ([]UnifiedVisit, error) {
	return m.open, nil
}

func newTestService(store *mockStore) *Service {
	return NewService(store, nil, nil, nil, ServiceConfig{Currency: "TRY"})
}

// ============================================================================
// TESTS
// ============================================================================

func TestLifecycleHappyPath(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)
	ctx := context.Background()

	req, err := svc.CreateRequest(ctx, 1, CreateRequestRequest{
		CustomerID:    10,
		BranchID:      20,
		ScheduledDate: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, req.Status)

	req, err = svc.Assign(ctx, 1, req.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, StatusAssigned, req.Status)
	require.NotNil(t, req.OperatorID)
	assert.Equal(t, int64(5), *req.OperatorID)

	req, err = svc.Start(ctx, 1, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, req.Status)

	visit, err := svc.Complete(ctx, 1, req.ID, CompleteRequestRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(10), visit.CustomerID)
	assert.Equal(t, int64(20), visit.BranchID)
	assert.False(t, visit.IsInvoiced)
}

func TestInvalidTransitionsRejected(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)
	ctx := context.Background()

	req, err := svc.CreateRequest(ctx, 1, CreateRequestRequest{
		CustomerID:    10,
		BranchID:      20,
		ScheduledDate: time.Now().UTC(),
	})
	require.NoError(t, err)

	// completing a pending request must fail
	_, err = svc.Complete(ctx, 1, req.ID, CompleteRequestRequest{})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// starting a pending request must fail
	_, err = svc.Start(ctx, 1, req.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// cancel works from pending, then nothing else does
	req, err = svc.Cancel(ctx, 1, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, req.Status)

	_, err = svc.Assign(ctx, 1, req.ID, 5)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = svc.Cancel(ctx, 1, req.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCanTransitionTable(t *testing.T) {
	allowed := map[Status][]Status{
		StatusPending:    {StatusAssigned, StatusCancelled},
		StatusAssigned:   {StatusInProgress, StatusCancelled},
		StatusInProgress: {StatusCompleted, StatusCancelled},
		StatusCompleted:  {},
		StatusCancelled:  {},
	}
	all := []Status{StatusPending, StatusAssigned, StatusInProgress, StatusCompleted, StatusCancelled}
	for from, targets := range allowed {
		ok := make(map[Status]bool, len(targets))
		for _, to := range targets {
			ok[to] = true
		}
		for _, to := range all {
			assert.Equal(t, ok[to], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestSetInvoicedConflictOnStaleToken(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)
	ctx := context.Background()

	token := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	store.visits[1] = &Visit{ID: 1, CompanyID: 1, UpdatedAt: token}

	visit, err := svc.SetInvoiced(ctx, 1, 1, SetInvoicedRequest{Invoiced: true, UpdateToken: token})
	require.NoError(t, err)
	assert.True(t, visit.IsInvoiced)

	// re-using the original token must now conflict
	_, err = svc.SetInvoiced(ctx, 1, 1, SetInvoicedRequest{Invoiced: false, UpdateToken: token})
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestListUnifiedMergesAndSortsDescending(t *testing.T) {
	store := newMockStore()
	day := func(d int) time.Time { return time.Date(2026, 5, d, 10, 0, 0, 0, time.UTC) }
	store.completed = []UnifiedVisit{
		{Source: SourceVisit, ID: 1, Date: day(10), Status: StatusCompleted},
		{Source: SourceVisit, ID: 2, Date: day(5), Status: StatusCompleted},
	}
	store.open = []UnifiedVisit{
		{Source: SourceRequest, ID: 3, Date: day(20), Status: StatusPending},
		{Source: SourceRequest, ID: 4, Date: day(5), Status: StatusAssigned},
	}

	svc := newTestService(store)
	unified, err := svc.ListUnified(context.Background(), 1, 2026, time.May)
	require.NoError(t, err)
	require.Len(t, unified, 4)

	assert.Equal(t, "request:3", unified[0].Key())
	assert.Equal(t, "visit:1", unified[1].Key())
	// equal dates keep input order: completed before planned
	assert.Equal(t, "visit:2", unified[2].Key())
	assert.Equal(t, "request:4", unified[3].Key())
}

type stubGuard struct {
	keys    map[string]bool
	deleted []string
}

func newStubGuard() *stubGuard {
	return &stubGuard{keys: make(map[string]bool)}
}

func (g *stubGuard) CheckAndInsert(_ context.Context, key, _ string) error {
	if g.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	g.keys[key] = true
	return nil
}

func (g *stubGuard) Delete(_ context.Context, key string) error {
	delete(g.keys, key)
	g.deleted = append(g.deleted, key)
	return nil
}

func TestCompleteDeduplicatesByIdempotencyKey(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)
	guard := newStubGuard()
	svc.UseIdempotencyGuard(guard)
	ctx := context.Background()

	req, err := svc.CreateRequest(ctx, 1, CreateRequestRequest{
		CustomerID:    10,
		BranchID:      20,
		ScheduledDate: time.Now().UTC(),
	})
	require.NoError(t, err)
	_, err = svc.Assign(ctx, 1, req.ID, 5)
	require.NoError(t, err)
	_, err = svc.Start(ctx, 1, req.ID)
	require.NoError(t, err)

	complete := CompleteRequestRequest{IdempotencyKey: "abc-123"}
	_, err = svc.Complete(ctx, 1, req.ID, complete)
	require.NoError(t, err)

	_, err = svc.Complete(ctx, 1, req.ID, complete)
	assert.ErrorIs(t, err, shared.ErrIdempotencyConflict)
}

func TestCompleteReleasesKeyOnFailure(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)
	guard := newStubGuard()
	svc.UseIdempotencyGuard(guard)
	ctx := context.Background()

	req, err := svc.CreateRequest(ctx, 1, CreateRequestRequest{
		CustomerID:    10,
		BranchID:      20,
		ScheduledDate: time.Now().UTC(),
	})
	require.NoError(t, err)

	// pending request cannot complete; the key must be released for retry
	_, err = svc.Complete(ctx, 1, req.ID, CompleteRequestRequest{IdempotencyKey: "retry-me"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Len(t, guard.deleted, 1)
	assert.Empty(t, guard.keys)
}

func TestListUnifiedEmptyCompany(t *testing.T) {
	svc := newTestService(newMockStore())
	unified, err := svc.ListUnified(context.Background(), 999, 2026, time.January)
	require.NoError(t, err)
	assert.Empty(t, unified)
}
