package masterdata

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/pestward/pestward/internal/shared"
)

// Store is the persistence surface the service depends on.
type Store interface {
	CreateCustomer(ctx context.Context, c Customer) (int64, error)
	GetCustomer(ctx context.Context, companyID, id int64) (*Customer, error)
	UpdateCustomer(ctx context.Context, companyID, id int64, updates map[string]any) error
	ListCustomers(ctx context.Context, filter ListFilter) ([]Customer, int, error)

	CreateBranch(ctx context.Context, b Branch) (int64, error)
	GetBranch(ctx context.Context, companyID, id int64) (*Branch, error)
	UpdateBranch(ctx context.Context, companyID, id int64, updates map[string]any) error
	ListBranches(ctx context.Context, filter ListFilter) ([]Branch, int, error)

	CreateOperator(ctx context.Context, o Operator) (int64, error)
	GetOperator(ctx context.Context, companyID, id int64) (*Operator, error)
	UpdateOperator(ctx context.Context, companyID, id int64, updates map[string]any) error
	ListOperators(ctx context.Context, filter ListFilter) ([]Operator, int, error)

	CreateProduct(ctx context.Context, p Product) (int64, error)
	GetProduct(ctx context.Context, companyID, id int64) (*Product, error)
	UpdateProduct(ctx context.Context, companyID, id int64, updates map[string]any) error
	ListProducts(ctx context.Context, filter ListFilter) ([]Product, int, error)
}

// AuditRecorder persists audit trail entries for mutations.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service provides business logic for master data operations.
type Service struct {
	store    Store
	audit    AuditRecorder
	validate *validator.Validate
}

// NewService constructs a master data service.
func NewService(store Store, audit AuditRecorder) *Service {
	return &Service{store: store, audit: audit, validate: validator.New()}
}

func (s *Service) recordAudit(ctx context.Context, action, entity string, id int64) {
	if s.audit == nil {
		return
	}
	actor := int64(0)
	if p := shared.PrincipalFromContext(ctx); p != nil {
		actor = p.KeyID
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
	})
}

// ============================================================================
// CUSTOMERS
// ============================================================================

func (s *Service) CreateCustomer(ctx context.Context, companyID int64, req CreateCustomerRequest) (*Customer, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("validate customer: %w", err)
	}
	customer := Customer{
		CompanyID:   companyID,
		Name:        req.Name,
		ContactName: req.ContactName,
		Phone:       req.Phone,
		Email:       req.Email,
		Address:     req.Address,
		IsActive:    true,
	}
	id, err := s.store.CreateCustomer(ctx, customer)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	s.recordAudit(ctx, "customer.create", "customer", id)
	return s.store.GetCustomer(ctx, companyID, id)
}

func (s *Service) UpdateCustomer(ctx context.Context, companyID, id int64, req UpdateCustomerRequest) (*Customer, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("validate customer: %w", err)
	}
	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.ContactName != nil {
		updates["contact_name"] = *req.ContactName
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) > 0 {
		if err := s.store.UpdateCustomer(ctx, companyID, id, updates); err != nil {
			return nil, fmt.Errorf("update customer: %w", err)
		}
		s.recordAudit(ctx, "customer.update", "customer", id)
	}
	return s.store.GetCustomer(ctx, companyID, id)
}

func (s *Service) GetCustomer(ctx context.Context, companyID, id int64) (*Customer, error) {
	return s.store.GetCustomer(ctx, companyID, id)
}

func (s *Service) ListCustomers(ctx context.Context, filter ListFilter) ([]Customer, int, error) {
	return s.store.ListCustomers(ctx, filter)
}

// ============================================================================
// BRANCHES
// ============================================================================

func (s *Service) CreateBranch(ctx context.Context, companyID int64, req CreateBranchRequest) (*Branch, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("validate branch: %w", err)
	}
	if _, err := s.store.GetCustomer(ctx, companyID, req.CustomerID); err != nil {
		return nil, fmt.Errorf("verify customer: %w", err)
	}
	branch := Branch{
		CompanyID:  companyID,
		CustomerID: req.CustomerID,
		Name:       req.Name,
		Address:    req.Address,
		City:       req.City,
		IsActive:   true,
	}
	id, err := s.store.CreateBranch(ctx, branch)
	if err != nil {
		return nil, fmt.Errorf("create branch: %w", err)
	}
	s.recordAudit(ctx, "branch.create", "branch", id)
	return s.store.GetBranch(ctx, companyID, id)
}

func (s *Service) UpdateBranch(ctx context.Context, companyID, id int64, req UpdateBranchRequest) (*Branch, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("validate branch: %w", err)
	}
	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.City != nil {
		updates["city"] = *req.City
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) > 0 {
		if err := s.store.UpdateBranch(ctx, companyID, id, updates); err != nil {
			return nil, fmt.Errorf("update branch: %w", err)
		}
		s.recordAudit(ctx, "branch.update", "branch", id)
	}
	return s.store.GetBranch(ctx, companyID, id)
}

func (s *Service) GetBranch(ctx context.Context, companyID, id int64) (*Branch, error) {
	return s.store.GetBranch(ctx, companyID, id)
}

func (s *Service) ListBranches(ctx context.Context, filter ListFilter) ([]Branch, int, error) {
	return s.store.ListBranches(ctx, filter)
}

// ============================================================================
// OPERATORS
// ============================================================================

func (s *Service) CreateOperator(ctx context.Context, companyID int64, req CreateOperatorRequest) (*Operator, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("validate operator: %w", err)
	}
	operator := Operator{
		CompanyID: companyID,
		Name:      req.Name,
		Phone:     req.Phone,
		Email:     req.Email,
		IsActive:  true,
	}
	id, err := s.store.CreateOperator(ctx, operator)
	if err != nil {
		return nil, fmt.Errorf("create operator: %w", err)
	}
	s.recordAudit(ctx, "operator.create", "operator", id)
	return s.store.GetOperator(ctx, companyID, id)
}

func (s *Service) UpdateOperator(ctx context.Context, companyID, id int64, req UpdateOperatorRequest) (*Operator, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("validate operator: %w", err)
	}
	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) > 0 {
		if err := s.store.UpdateOperator(ctx, companyID, id, updates); err != nil {
			return nil, fmt.Errorf("update operator: %w", err)
		}
		s.recordAudit(ctx, "operator.update", "operator", id)
	}
	return s.store.GetOperator(ctx, companyID, id)
}

func (s *Service) GetOperator(ctx context.Context, companyID, id int64) (*Operator, error) {
	return s.store.GetOperator(ctx, companyID, id)
}

func (s *Service) ListOperators(ctx context.Context, filter ListFilter) ([]Operator, int, error) {
	return s.store.ListOperators(ctx, filter)
}

// ============================================================================
// PRODUCTS
// ============================================================================

func (s *Service) CreateProduct(ctx context.Context, companyID int64, req CreateProductRequest) (*Product, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("validate product: %w", err)
	}
	product := Product{
		CompanyID: companyID,
		Name:      req.Name,
		Unit:      req.Unit,
		UnitPrice: req.UnitPrice,
		IsActive:  true,
	}
	id, err := s.store.CreateProduct(ctx, product)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	s.recordAudit(ctx, "product.create", "product", id)
	return s.store.GetProduct(ctx, companyID, id)
}

func (s *Service) UpdateProduct(ctx context.Context, companyID, id int64, req UpdateProductRequest) (*Product, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("validate product: %w", err)
	}
	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Unit != nil {
		updates["unit"] = *req.Unit
	}
	if req.UnitPrice != nil {
		updates["unit_price"] = *req.UnitPrice
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) > 0 {
		if err := s.store.UpdateProduct(ctx, companyID, id, updates); err != nil {
			return nil, fmt.Errorf("update product: %w", err)
		}
		s.recordAudit(ctx, "product.update", "product", id)
	}
	return s.store.GetProduct(ctx, companyID, id)
}

func (s *Service) GetProduct(ctx context.Context, companyID, id int64) (*Product, error) {
	return s.store.GetProduct(ctx, companyID, id)
}

func (s *Service) ListProducts(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	return s.store.ListProducts(ctx, filter)
}
