package masterdata

import "time"

// Customer is a client company serviced by the tenant.
type Customer struct {
	ID          int64     `json:"id" db:"id"`
	CompanyID   int64     `json:"company_id" db:"company_id"`
	Name        string    `json:"name" db:"name"`
	ContactName *string   `json:"contact_name,omitempty" db:"contact_name"`
	Phone       *string   `json:"phone,omitempty" db:"phone"`
	Email       *string   `json:"email,omitempty" db:"email"`
	Address     *string   `json:"address,omitempty" db:"address"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Branch is a serviced location belonging to a customer.
type Branch struct {
	ID         int64     `json:"id" db:"id"`
	CompanyID  int64     `json:"company_id" db:"company_id"`
	CustomerID int64     `json:"customer_id" db:"customer_id"`
	Name       string    `json:"name" db:"name"`
	Address    *string   `json:"address,omitempty" db:"address"`
	City       *string   `json:"city,omitempty" db:"city"`
	IsActive   bool      `json:"is_active" db:"is_active"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Operator is a field technician employed by the tenant.
type Operator struct {
	ID        int64     `json:"id" db:"id"`
	CompanyID int64     `json:"company_id" db:"company_id"`
	Name      string    `json:"name" db:"name"`
	Phone     *string   `json:"phone,omitempty" db:"phone"`
	Email     *string   `json:"email,omitempty" db:"email"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Product is a catalog item (material or equipment) sold or applied on visits.
type Product struct {
	ID        int64     `json:"id" db:"id"`
	CompanyID int64     `json:"company_id" db:"company_id"`
	Name      string    `json:"name" db:"name"`
	Unit      string    `json:"unit" db:"unit"`
	UnitPrice float64   `json:"unit_price" db:"unit_price"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CreateCustomerRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	ContactName *string `json:"contact_name,omitempty" validate:"omitempty,max=200"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	Address     *string `json:"address,omitempty" validate:"omitempty,max=500"`
}

type UpdateCustomerRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,max=200"`
	ContactName *string `json:"contact_name,omitempty" validate:"omitempty,max=200"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	Address     *string `json:"address,omitempty" validate:"omitempty,max=500"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

type CreateBranchRequest struct {
	CustomerID int64   `json:"customer_id" validate:"required,gt=0"`
	Name       string  `json:"name" validate:"required,max=200"`
	Address    *string `json:"address,omitempty" validate:"omitempty,max=500"`
	City       *string `json:"city,omitempty" validate:"omitempty,max=100"`
}

type UpdateBranchRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Address  *string `json:"address,omitempty" validate:"omitempty,max=500"`
	City     *string `json:"city,omitempty" validate:"omitempty,max=100"`
	IsActive *bool   `json:"is_active,omitempty"`
}

type CreateOperatorRequest struct {
	Name  string  `json:"name" validate:"required,max=200"`
	Phone *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Email *string `json:"email,omitempty" validate:"omitempty,email"`
}

type UpdateOperatorRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	IsActive *bool   `json:"is_active,omitempty"`
}

type CreateProductRequest struct {
	Name      string  `json:"name" validate:"required,max=200"`
	Unit      string  `json:"unit" validate:"required,max=20"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

type UpdateProductRequest struct {
	Name      *string  `json:"name,omitempty" validate:"omitempty,max=200"`
	Unit      *string  `json:"unit,omitempty" validate:"omitempty,max=20"`
	UnitPrice *float64 `json:"unit_price,omitempty" validate:"omitempty,gte=0"`
	IsActive  *bool    `json:"is_active,omitempty"`
}

// ListFilter narrows company-scoped listings.
type ListFilter struct {
	CompanyID  int64
	CustomerID int64
	Search     string
	IsActive   *bool
	Page       int
	PerPage    int
}
