package visits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pestward/pestward/internal/platform/db"
	"github.com/pestward/pestward/internal/shared"
)

// ErrInvalidTransition indicates a lifecycle move not allowed from the current state.
var ErrInvalidTransition = errors.New("invalid status transition")

// Repository provides PostgreSQL backed persistence for visits and service requests.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertRequest stores a new pending service request.
func (r *Repository) InsertRequest(ctx context.Context, req ServiceRequest) (int64, error) {
	const query = `INSERT INTO service_requests (company_id, customer_id, branch_id, operator_id, scheduled_date, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW()) RETURNING id`
	var id int64
	err := r.pool.QueryRow(ctx, query, req.CompanyID, req.CustomerID, req.BranchID, req.OperatorID, req.ScheduledDate, string(req.Status), req.Notes).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetRequest returns one service request scoped to the company.
func (r *Repository) GetRequest(ctx context.Context, companyID, id int64) (*ServiceRequest, error) {
	const query = `SELECT id, company_id, customer_id, branch_id, operator_id, scheduled_date, status, notes, created_at, updated_at
		FROM service_requests WHERE id = $1 AND company_id = $2`
	var req ServiceRequest
	err := r.pool.QueryRow(ctx, query, id, companyID).Scan(
		&req.ID, &req.CompanyID, &req.CustomerID, &req.BranchID, &req.OperatorID,
		&req.ScheduledDate, &req.Status, &req.Notes, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

// UpdateRequestStatus moves a request between states, optionally assigning an
// operator. The WHERE clause re-checks the expected current status so two
// concurrent transitions cannot both win.
func (r *Repository) UpdateRequestStatus(ctx context.Context, companyID, id int64, from, to Status, operatorID *int64) error {
	const query = `UPDATE service_requests
		SET status = $1, operator_id = COALESCE($2, operator_id), updated_at = NOW()
		WHERE id = $3 AND company_id = $4 AND status = $5`
	tag, err := r.pool.Exec(ctx, query, string(to), operatorID, id, companyID, string(from))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetRequest(ctx, companyID, id); err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	return nil
}

// CompleteRequest finishes an in-progress request in one transaction: the
// request flips to completed, a visit row is written, and any ad-hoc material
// sale lines are recorded against the new visit.
func (r *Repository) CompleteRequest(ctx context.Context, companyID, requestID int64, visitDate time.Time, reportNumber *string, items []SaleItemInput, currency string) (*Visit, error) {
	var visit Visit
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var req ServiceRequest
		const lockQuery = `SELECT id, customer_id, branch_id, operator_id, status
			FROM service_requests WHERE id = $1 AND company_id = $2 FOR UPDATE`
		err := tx.QueryRow(ctx, lockQuery, requestID, companyID).Scan(&req.ID, &req.CustomerID, &req.BranchID, &req.OperatorID, &req.Status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return err
		}
		if !CanTransition(req.Status, StatusCompleted) {
			return ErrInvalidTransition
		}

		if _, err := tx.Exec(ctx, `UPDATE service_requests SET status = $1, updated_at = NOW() WHERE id = $2`, string(StatusCompleted), requestID); err != nil {
			return err
		}

		const insertVisit = `INSERT INTO visits (company_id, customer_id, branch_id, operator_id, request_id, visit_date, report_number, is_invoiced, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, NOW(), NOW())
			RETURNING id, created_at, updated_at`
		err = tx.QueryRow(ctx, insertVisit, companyID, req.CustomerID, req.BranchID, req.OperatorID, requestID, visitDate, reportNumber).
			Scan(&visit.ID, &visit.CreatedAt, &visit.UpdatedAt)
		if err != nil {
			return err
		}
		visit.CompanyID = companyID
		visit.CustomerID = req.CustomerID
		visit.BranchID = req.BranchID
		visit.OperatorID = req.OperatorID
		visit.VisitDate = visitDate
		visit.ReportNumber = reportNumber

		if len(items) == 0 {
			return nil
		}

		var saleID int64
		if err := tx.QueryRow(ctx, `INSERT INTO material_sales (visit_id, company_id, created_at) VALUES ($1, $2, NOW()) RETURNING id`, visit.ID, companyID).Scan(&saleID); err != nil {
			return err
		}
		const insertItem = `INSERT INTO material_sale_items (sale_id, product_id, name, unit, quantity, unit_price, total_price, currency)
			SELECT $1, p.id, p.name, p.unit, $3, $4, $5, $6
			FROM products p WHERE p.id = $2 AND p.company_id = $7`
		for _, item := range items {
			tag, err := tx.Exec(ctx, insertItem, saleID, item.ProductID, item.Quantity, item.UnitPrice, item.Quantity*item.UnitPrice, currency, companyID)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("product %d: %w", item.ProductID, shared.ErrNotFound)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &visit, nil
}

// GetVisit returns one completed visit scoped to the company.
func (r *Repository) GetVisit(ctx context.Context, companyID, id int64) (*Visit, error) {
	const query = `SELECT id, company_id, customer_id, branch_id, operator_id, visit_date, report_number, is_invoiced, created_at, updated_at
		FROM visits WHERE id = $1 AND company_id = $2`
	var v Visit
	err := r.pool.QueryRow(ctx, query, id, companyID).Scan(
		&v.ID, &v.CompanyID, &v.CustomerID, &v.BranchID, &v.OperatorID,
		&v.VisitDate, &v.ReportNumber, &v.IsInvoiced, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// SetInvoiced toggles the invoiced flag using updated_at as an optimistic
// concurrency token. A stale token yields shared.ErrConflict.
func (r *Repository) SetInvoiced(ctx context.Context, companyID, id int64, invoiced bool, token time.Time) error {
	const query = `UPDATE visits SET is_invoiced = $1, updated_at = NOW()
		WHERE id = $2 AND company_id = $3 AND updated_at = $4`
	tag, err := r.pool.Exec(ctx, query, invoiced, id, companyID, token)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetVisit(ctx, companyID, id); err != nil {
			return err
		}
		return shared.ErrConflict
	}
	return nil
}

// ListCompletedVisits fetches completed visits in [from, to) with display names
// resolved, ordered descending by visit date.
func (r *Repository) ListCompletedVisits(ctx context.Context, companyID int64, from, to time.Time) ([]UnifiedVisit, error) {
	const query = `SELECT v.id, v.customer_id, c.name, v.branch_id, b.name, v.operator_id, o.name,
			v.visit_date, v.report_number, v.is_invoiced
		FROM visits v
		JOIN customers c ON c.id = v.customer_id
		JOIN branches b ON b.id = v.branch_id
		LEFT JOIN operators o ON o.id = v.operator_id
		WHERE v.company_id = $1 AND v.visit_date >= $2 AND v.visit_date < $3
		ORDER BY v.visit_date DESC, v.id DESC`
	rows, err := r.pool.Query(ctx, query, companyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list completed visits: %w", err)
	}
	defer rows.Close()

	var out []UnifiedVisit
	for rows.Next() {
		u := UnifiedVisit{Source: SourceVisit, Status: StatusCompleted}
		if err := rows.Scan(&u.ID, &u.CustomerID, &u.CustomerName, &u.BranchID, &u.BranchName, &u.OperatorID, &u.OperatorName, &u.Date, &u.ReportNumber, &u.IsInvoiced); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ListOpenRequests fetches pending/assigned/in-progress requests in [from, to)
// with display names resolved, ordered descending by scheduled date.
func (r *Repository) ListOpenRequests(ctx context.Context, companyID int64, from, to time.Time) ([]UnifiedVisit, error) {
	const query = `SELECT sr.id, sr.customer_id, c.name, sr.branch_id, b.name, sr.operator_id, o.name,
			sr.scheduled_date, sr.status
		FROM service_requests sr
		JOIN customers c ON c.id = sr.customer_id
		JOIN branches b ON b.id = sr.branch_id
		LEFT JOIN operators o ON o.id = sr.operator_id
		WHERE sr.company_id = $1 AND sr.scheduled_date >= $2 AND sr.scheduled_date < $3
			AND sr.status IN ('pending', 'assigned', 'in_progress')
		ORDER BY sr.scheduled_date DESC, sr.id DESC`
	rows, err := r.pool.Query(ctx, query, companyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list open requests: %w", err)
	}
	defer rows.Close()

	var out []UnifiedVisit
	for rows.Next() {
		u := UnifiedVisit{Source: SourceRequest}
		if err := rows.Scan(&u.ID, &u.CustomerID, &u.CustomerName, &u.BranchID, &u.BranchName, &u.OperatorID, &u.OperatorName, &u.Date, &u.Status); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
