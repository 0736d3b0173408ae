package visits

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/pestward/pestward/internal/shared"
)

// Store is the persistence surface the service depends on.
type Store interface {
	InsertRequest(ctx context.Context, req ServiceRequest) (int64, error)
	GetRequest(ctx context.Context, companyID, id int64) (*ServiceRequest, error)
	UpdateRequestStatus(ctx context.Context, companyID, id int64, from, to Status, operatorID *int64) error
	CompleteRequest(ctx context.Context, companyID, requestID int64, visitDate time.Time, reportNumber *string, items []SaleItemInput, currency string) (*Visit, error)
	GetVisit(ctx context.Context, companyID, id int64) (*Visit, error)
	SetInvoiced(ctx context.Context, companyID, id int64, invoiced bool, token time.Time) error
	ListCompletedVisits(ctx context.Context, companyID int64, from, to time.Time) ([]UnifiedVisit, error)
	ListOpenRequests(ctx context.Context, companyID int64, from, to time.Time) ([]UnifiedVisit, error)
}

// AuditRecorder persists audit trail entries for mutations.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ReportInvalidator drops derived revenue reports when visit data changes.
type ReportInvalidator interface {
	Bump(ctx context.Context) error
}

// IdempotencyGuard deduplicates retried completion requests.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// ServiceConfig carries tunables for the visit service.
type ServiceConfig struct {
	Currency string
}

// Service provides business logic for the visit lifecycle.
type Service struct {
	store    Store
	audit    AuditRecorder
	reports  ReportInvalidator
	logger   *slog.Logger
	validate *validator.Validate
	cfg      ServiceConfig
	now      func() time.Time
	idem     IdempotencyGuard
}

// UseIdempotencyGuard enables Idempotency-Key deduplication on completion.
func (s *Service) UseIdempotencyGuard(guard IdempotencyGuard) {
	s.idem = guard
}

// NewService constructs a visit service.
func NewService(store Store, audit AuditRecorder, reports ReportInvalidator, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Currency == "" {
		cfg.Currency = "TRY"
	}
	return &Service{
		store:    store,
		audit:    audit,
		reports:  reports,
		logger:   logger,
		validate: validator.New(),
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
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

func (s *Service) bumpReports(ctx context.Context) {
	if s.reports == nil {
		return
	}
	if err := s.reports.Bump(ctx); err != nil {
		s.logger.Warn("bump revenue reports", slog.Any("error", err))
	}
}

// CreateRequest schedules a new pending service request.
func (s *Service) CreateRequest(ctx context.Context, companyID int64, req CreateRequestRequest) (*ServiceRequest, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("validate request: %w", err)
	}
	id, err := s.store.InsertRequest(ctx, ServiceRequest{
		CompanyID:     companyID,
		CustomerID:    req.CustomerID,
		BranchID:      req.BranchID,
		ScheduledDate: req.ScheduledDate,
		Status:        StatusPending,
		Notes:         req.Notes,
	})
	if err != nil {
		return nil, fmt.Errorf("insert request: %w", err)
	}
	s.recordAudit(ctx, "request.create", "service_request", id)
	return s.store.GetRequest(ctx, companyID, id)
}

// Assign moves a pending request to assigned with the given operator.
func (s *Service) Assign(ctx context.Context, companyID, requestID, operatorID int64) (*ServiceRequest, error) {
	if operatorID <= 0 {
		return nil, fmt.Errorf("operator id required")
	}
	if err := s.store.UpdateRequestStatus(ctx, companyID, requestID, StatusPending, StatusAssigned, &operatorID); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "request.assign", "service_request", requestID)
	return s.store.GetRequest(ctx, companyID, requestID)
}

// Start moves an assigned request to in_progress.
func (s *Service) Start(ctx context.Context, companyID, requestID int64) (*ServiceRequest, error) {
	if err := s.store.UpdateRequestStatus(ctx, companyID, requestID, StatusAssigned, StatusInProgress, nil); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "request.start", "service_request", requestID)
	return s.store.GetRequest(ctx, companyID, requestID)
}

// Cancel aborts a request from any non-terminal state.
func (s *Service) Cancel(ctx context.Context, companyID, requestID int64) (*ServiceRequest, error) {
	req, err := s.store.GetRequest(ctx, companyID, requestID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(req.Status, StatusCancelled) {
		return nil, ErrInvalidTransition
	}
	if err := s.store.UpdateRequestStatus(ctx, companyID, requestID, req.Status, StatusCancelled, nil); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "request.cancel", "service_request", requestID)
	s.bumpReports(ctx)
	return s.store.GetRequest(ctx, companyID, requestID)
}

// Complete finishes an in-progress request, writes the visit record, and
// stores any ad-hoc material sale lines atomically.
func (s *Service) Complete(ctx context.Context, companyID, requestID int64, req CompleteRequestRequest) (*Visit, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("validate completion: %w", err)
	}
	visitDate := s.now()
	if req.VisitDate != nil {
		visitDate = req.VisitDate.UTC()
	}
	idemKey := ""
	if s.idem != nil && req.IdempotencyKey != "" {
		idemKey = fmt.Sprintf("visits:complete:%d:%s", companyID, req.IdempotencyKey)
		if err := s.idem.CheckAndInsert(ctx, idemKey, "visits"); err != nil {
			return nil, err
		}
	}
	visit, err := s.store.CompleteRequest(ctx, companyID, requestID, visitDate, req.ReportNumber, req.Items, s.cfg.Currency)
	if err != nil {
		if idemKey != "" {
			// Release the key so the client can retry after a transient failure.
			if derr := s.idem.Delete(ctx, idemKey); derr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", derr))
			}
		}
		return nil, err
	}
	s.recordAudit(ctx, "visit.complete", "visit", visit.ID)
	s.bumpReports(ctx)
	return visit, nil
}

// SetInvoiced toggles the invoiced flag with an optimistic concurrency token.
func (s *Service) SetInvoiced(ctx context.Context, companyID, visitID int64, req SetInvoicedRequest) (*Visit, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("validate invoiced: %w", err)
	}
	if err := s.store.SetInvoiced(ctx, companyID, visitID, req.Invoiced, req.UpdateToken); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "visit.invoiced", "visit", visitID)
	return s.store.GetVisit(ctx, companyID, visitID)
}

// GetRequest returns one service request.
func (s *Service) GetRequest(ctx context.Context, companyID, id int64) (*ServiceRequest, error) {
	return s.store.GetRequest(ctx, companyID, id)
}

// GetVisit returns one completed visit.
func (s *Service) GetVisit(ctx context.Context, companyID, id int64) (*Visit, error) {
	return s.store.GetVisit(ctx, companyID, id)
}

// ListUnified merges completed visits and open service requests for one
// calendar month into a single list, sorted descending by date. The sort is
// stable: rows with equal dates keep input order, completed visits first.
// An unknown company simply yields an empty list.
func (s *Service) ListUnified(ctx context.Context, companyID int64, year int, month time.Month) ([]UnifiedVisit, error) {
	from, to := shared.MonthRange(year, month)
	return s.ListUnifiedRange(ctx, companyID, from, to)
}

// ListUnifiedRange is ListUnified over an arbitrary [from, to) window.
func (s *Service) ListUnifiedRange(ctx context.Context, companyID int64, from, to time.Time) ([]UnifiedVisit, error) {
	completed, err := s.store.ListCompletedVisits(ctx, companyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch completed visits: %w", err)
	}
	planned, err := s.store.ListOpenRequests(ctx, companyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch open requests: %w", err)
	}

	unified := make([]UnifiedVisit, 0, len(completed)+len(planned))
	unified = append(unified, completed...)
	unified = append(unified, planned...)
	sort.SliceStable(unified, func(i, j int) bool {
		return unified[i].Date.After(unified[j].Date)
	})
	return unified, nil
}
