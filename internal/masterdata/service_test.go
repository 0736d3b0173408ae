package masterdata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pestward/pestward/internal/shared"
)

// ============================================================================
// MOCK STORE
// ============================================================================

type mockStore struct {
	customers map[int64]*Customer
	branches  map[int64]*Branch
	operators map[int64]*Operator
	products  map[int64]*Product
	nextID    int64
}

func newMockStore() *mockStore {
	return &mockStore{
		customers: make(map[int64]*Customer),
		branches:  make(map[int64]*Branch),
		operators: make(map[int64]*Operator),
		products:  make(map[int64]*Product),
		nextID:    1,
	}
}

func (m *mockStore) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *mockStore) CreateCustomer(_ context.Context, c Customer) (int64, error) {
	c.ID = m.id()
	m.customers[c.ID] = &c
	return c.ID, nil
}

func (m *mockStore) GetCustomer(_ context.Context, companyID, id int64) (*Customer, error) {
	c, ok := m.customers[id]
	if !ok || c.CompanyID != companyID {
		return nil, shared.ErrNotFound
	}
	return c, nil
}

func (m *mockStore) UpdateCustomer(_ context.Context, companyID, id int64, updates map[string]any) error {
	c, ok := m.customers[id]
	if !ok || c.CompanyID != companyID {
		return shared.ErrNotFound
	}
	if v, ok := updates["name"]; ok {
		c.Name = v.(string)
	}
	if v, ok := updates["is_active"]; ok {
		c.IsActive = v.(bool)
	}
	return nil
}

func (m *mockStore) ListCustomers(_ context.Context, filter ListFilter) ([]Customer, int, error) {
	var out []Customer
	for _, c := range m.customers {
		if c.CompanyID != filter.CompanyID {
			continue
		}
		if filter.IsActive != nil && c.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *mockStore) CreateBranch(_ context.Context, b Branch) (int64, error) {
	b.ID = m.id()
	m.branches[b.ID] = &b
	return b.ID, nil
}

func (m *mockStore) GetBranch(_ context.Context, companyID, id int64) (*Branch, error) {
	b, ok := m.branches[id]
	if !ok || b.CompanyID != companyID {
		return nil, shared.ErrNotFound
	}
	return b, nil
}

func (m *mockStore) UpdateBranch(_ context.Context, companyID, id int64, updates map[string]any) error {
	b, ok := m.branches[id]
	if !ok || b.CompanyID != companyID {
		return shared.ErrNotFound
	}
	if v, ok := updates["name"]; ok {
		b.Name = v.(string)
	}
	return nil
}

func (m *mockStore) ListBranches(_ context.Context, filter ListFilter) ([]Branch, int, error) {
	var out []Branch
	for _, b := range m.branches {
		if b.CompanyID != filter.CompanyID {
			continue
		}
		if filter.CustomerID > 0 && b.CustomerID != filter.CustomerID {
			continue
		}
		out = append(out, *b)
	}
	return out, len(out), nil
}

func (m *mockStore) CreateOperator(_ context.Context, o Operator) (int64, error) {
	o.ID = m.id()
	m.operators[o.ID] = &o
	return o.ID, nil
}

func (m *mockStore) GetOperator(_ context.Context, companyID, id int64) (*Operator, error) {
	o, ok := m.operators[id]
	if !ok || o.CompanyID != companyID {
		return nil, shared.ErrNotFound
	}
	return o, nil
}

func (m *mockStore) UpdateOperator(_ context.Context, companyID, id int64, updates map[string]any) error {
	o, ok := m.operators[id]
	if !ok || o.CompanyID != companyID {
		return shared.ErrNotFound
	}
	if v, ok := updates["name"]; ok {
		o.Name = v.(string)
	}
	return nil
}

func (m *mockStore) ListOperators(_ context.Context, filter ListFilter) ([]Operator, int, error) {
	var out []Operator
	for _, o := range m.operators {
		if o.CompanyID == filter.CompanyID {
			out = append(out, *o)
		}
	}
	return out, len(out), nil
}

func (m *mockStore) CreateProduct(_ context.Context, p Product) (int64, error) {
	p.ID = m.id()
	m.products[p.ID] = &p
	return p.ID, nil
}

func (m *mockStore) GetProduct(_ context.Context, companyID, id int64) (*Product, error) {
	p, ok := m.products[id]
	if !ok || p.CompanyID != companyID {
		return nil, shared.ErrNotFound
	}
	return p, nil
}

func (m *mockStore) UpdateProduct(_ context.Context, companyID, id int64, updates map[string]any) error {
	p, ok := m.products[id]
	if !ok || p.CompanyID != companyID {
		return shared.ErrNotFound
	}
	if v, ok := updates["unit_price"]; ok {
		p.UnitPrice = v.(float64)
	}
	return nil
}

func (m *mockStore) ListProducts(_ context.Context, filter ListFilter) ([]Product, int, error) {
	var out []Product
	for _, p := range m.products {
		if p.CompanyID == filter.CompanyID {
			out = append(out, *p)
		}
	}
	return out, len(out), nil
}

// ============================================================================
// TESTS
// ============================================================================

func TestCreateCustomerValidates(t *testing.T) {
	svc := NewService(newMockStore(), nil)

	_, err := svc.CreateCustomer(context.Background(), 1, CreateCustomerRequest{})
	assert.Error(t, err, "missing name must fail validation")

	bad := "not-an-email"
	_, err = svc.CreateCustomer(context.Background(), 1, CreateCustomerRequest{Name: "Acme Foods", Email: &bad})
	assert.Error(t, err)

	customer, err := svc.CreateCustomer(context.Background(), 1, CreateCustomerRequest{Name: "Acme Foods"})
	require.NoError(t, err)
	assert.Equal(t, "Acme Foods", customer.Name)
	assert.True(t, customer.IsActive)
}

func TestCompanyScopeIsEnforced(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, nil)

	customer, err := svc.CreateCustomer(context.Background(), 1, CreateCustomerRequest{Name: "Tenant One Client"})
	require.NoError(t, err)

	_, err = svc.GetCustomer(context.Background(), 2, customer.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateBranchRequiresExistingCustomer(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, nil)

	_, err := svc.CreateBranch(context.Background(), 1, CreateBranchRequest{CustomerID: 42, Name: "Warehouse"})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	customer, err := svc.CreateCustomer(context.Background(), 1, CreateCustomerRequest{Name: "Acme Foods"})
	require.NoError(t, err)

	branch, err := svc.CreateBranch(context.Background(), 1, CreateBranchRequest{CustomerID: customer.ID, Name: "Warehouse"})
	require.NoError(t, err)
	assert.Equal(t, customer.ID, branch.CustomerID)
}

func TestUpdateProductPrice(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, nil)

	product, err := svc.CreateProduct(context.Background(), 1, CreateProductRequest{Name: "Rodent bait", Unit: "kg", UnitPrice: 12.5})
	require.NoError(t, err)

	newPrice := 15.0
	updated, err := svc.UpdateProduct(context.Background(), 1, product.ID, UpdateProductRequest{UnitPrice: &newPrice})
	require.NoError(t, err)
	assert.Equal(t, 15.0, updated.UnitPrice)

	negative := -1.0
	_, err = svc.UpdateProduct(context.Background(), 1, product.ID, UpdateProductRequest{UnitPrice: &negative})
	assert.Error(t, err)
}
