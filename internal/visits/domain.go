package visits

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a service request or visit.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// CanTransition reports whether a lifecycle move is allowed. Completed and
// cancelled are terminal.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusAssigned || to == StatusCancelled
	case StatusAssigned:
		return to == StatusInProgress || to == StatusCancelled
	case StatusInProgress:
		return to == StatusCompleted || to == StatusCancelled
	}
	return false
}

// ServiceRequest is a planned or in-progress visit not yet completed.
type ServiceRequest struct {
	ID            int64     `json:"id"`
	CompanyID     int64     `json:"company_id"`
	CustomerID    int64     `json:"customer_id"`
	BranchID      int64     `json:"branch_id"`
	OperatorID    *int64    `json:"operator_id,omitempty"`
	ScheduledDate time.Time `json:"scheduled_date"`
	Status        Status    `json:"status"`
	Notes         *string   `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Visit is a completed service occurrence. Immutable once written except for
// the is_invoiced flag.
type Visit struct {
	ID           int64     `json:"id"`
	CompanyID    int64     `json:"company_id"`
	CustomerID   int64     `json:"customer_id"`
	BranchID     int64     `json:"branch_id"`
	OperatorID   *int64    `json:"operator_id,omitempty"`
	VisitDate    time.Time `json:"visit_date"`
	ReportNumber *string   `json:"report_number,omitempty"`
	IsInvoiced   bool      `json:"is_invoiced"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Source identifies which table a unified row came from.
type Source string

const (
	SourceVisit   Source = "visit"
	SourceRequest Source = "request"
)

// UnifiedVisit is the single shape both completed visits and open service
// requests normalize into for listing and revenue computation.
type UnifiedVisit struct {
	Source       Source    `json:"source"`
	ID           int64     `json:"id"`
	CustomerID   int64     `json:"customer_id"`
	CustomerName string    `json:"customer_name"`
	BranchID     int64     `json:"branch_id"`
	BranchName   string    `json:"branch_name"`
	OperatorID   *int64    `json:"operator_id,omitempty"`
	OperatorName *string   `json:"operator_name,omitempty"`
	Date         time.Time `json:"date"`
	Status       Status    `json:"status"`
	ReportNumber *string   `json:"report_number,omitempty"`
	IsInvoiced   bool      `json:"is_invoiced"`
}

// Key uniquely identifies a unified row across both source tables.
func (u UnifiedVisit) Key() string {
	return fmt.Sprintf("%s:%d", u.Source, u.ID)
}

// CreateRequestRequest schedules a new service request.
type CreateRequestRequest struct {
	CustomerID    int64     `json:"customer_id" validate:"required,gt=0"`
	BranchID      int64     `json:"branch_id" validate:"required,gt=0"`
	ScheduledDate time.Time `json:"scheduled_date" validate:"required"`
	Notes         *string   `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// SaleItemInput is one ad-hoc product line sold during completion.
type SaleItemInput struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Quantity  float64 `json:"quantity" validate:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

// CompleteRequestRequest finishes an in-progress service request.
type CompleteRequestRequest struct {
	ReportNumber *string         `json:"report_number,omitempty" validate:"omitempty,max=50"`
	VisitDate    *time.Time      `json:"visit_date,omitempty"`
	Items        []SaleItemInput `json:"items,omitempty" validate:"omitempty,dive"`

	// IdempotencyKey comes from the Idempotency-Key header, not the body.
	IdempotencyKey string `json:"-"`
}

// SetInvoicedRequest toggles the invoiced flag using the row's updated_at as an
// optimistic concurrency token.
type SetInvoicedRequest struct {
	Invoiced    bool      `json:"invoiced"`
	UpdateToken time.Time `json:"update_token" validate:"required"`
}
