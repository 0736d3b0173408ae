package masterdata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pestward/pestward/internal/shared"
)

// Repository provides PostgreSQL backed persistence for master data.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrAlreadyExists
	}
	return err
}

// buildUpdate renders a dynamic SET clause; callers guarantee column names.
func buildUpdate(table string, updates map[string]any, scope string, scopeArgs []any) (string, []any) {
	sets := make([]string, 0, len(updates)+1)
	args := make([]any, 0, len(updates)+len(scopeArgs))
	i := 1
	for col, val := range updates {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, val)
		i++
	}
	sets = append(sets, "updated_at = NOW()")
	scopeClause := scope
	for range scopeArgs {
		scopeClause = strings.Replace(scopeClause, "?", fmt.Sprintf("$%d", i), 1)
		i++
	}
	args = append(args, scopeArgs...)
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s", table, strings.Join(sets, ", "), scopeClause), args
}

func (r *Repository) execUpdate(ctx context.Context, table string, updates map[string]any, scope string, scopeArgs ...any) error {
	if len(updates) == 0 {
		return nil
	}
	query, args := buildUpdate(table, updates, scope, scopeArgs)
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ============================================================================
// CUSTOMERS
// ============================================================================

func (r *Repository) CreateCustomer(ctx context.Context, c Customer) (int64, error) {
	const query = `INSERT INTO customers (company_id, name, contact_name, phone, email, address, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, NOW(), NOW()) RETURNING id`
	var id int64
	if err := r.pool.QueryRow(ctx, query, c.CompanyID, c.Name, c.ContactName, c.Phone, c.Email, c.Address).Scan(&id); err != nil {
		return 0, mapPgError(err)
	}
	return id, nil
}

func (r *Repository) GetCustomer(ctx context.Context, companyID, id int64) (*Customer, error) {
	const query = `SELECT id, company_id, name, contact_name, phone, email, address, is_active, created_at, updated_at
		FROM customers WHERE id = $1 AND company_id = $2`
	var c Customer
	err := r.pool.QueryRow(ctx, query, id, companyID).Scan(
		&c.ID, &c.CompanyID, &c.Name, &c.ContactName, &c.Phone, &c.Email, &c.Address, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *Repository) UpdateCustomer(ctx context.Context, companyID, id int64, updates map[string]any) error {
	return r.execUpdate(ctx, "customers", updates, "id = ? AND company_id = ?", id, companyID)
}

func (r *Repository) ListCustomers(ctx context.Context, filter ListFilter) ([]Customer, int, error) {
	page := shared.NewPagination(filter.Page, filter.PerPage, 0)
	where := []string{"company_id = $1"}
	args := []any{filter.CompanyID}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM customers WHERE "+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT id, company_id, name, contact_name, phone, email, address, is_active, created_at, updated_at
		FROM customers WHERE %s ORDER BY name LIMIT $%d OFFSET $%d`, clause, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, query, append(args, page.PerPage, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.Name, &c.ContactName, &c.Phone, &c.Email, &c.Address, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// ============================================================================
// BRANCHES
// ============================================================================

func (r *Repository) CreateBranch(ctx context.Context, b Branch) (int64, error) {
	const query = `INSERT INTO branches (company_id, customer_id, name, address, city, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, NOW(), NOW()) RETURNING id`
	var id int64
	if err := r.pool.QueryRow(ctx, query, b.CompanyID, b.CustomerID, b.Name, b.Address, b.City).Scan(&id); err != nil {
		return 0, mapPgError(err)
	}
	return id, nil
}

func (r *Repository) GetBranch(ctx context.Context, companyID, id int64) (*Branch, error) {
	const query = `SELECT id, company_id, customer_id, name, address, city, is_active, created_at, updated_at
		FROM branches WHERE id = $1 AND company_id = $2`
	var b Branch
	err := r.pool.QueryRow(ctx, query, id, companyID).Scan(
		&b.ID, &b.CompanyID, &b.CustomerID, &b.Name, &b.Address, &b.City, &b.IsActive, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *Repository) UpdateBranch(ctx context.Context, companyID, id int64, updates map[string]any) error {
	return r.execUpdate(ctx, "branches", updates, "id = ? AND company_id = ?", id, companyID)
}

func (r *Repository) ListBranches(ctx context.Context, filter ListFilter) ([]Branch, int, error) {
	page := shared.NewPagination(filter.Page, filter.PerPage, 0)
	where := []string{"company_id = $1"}
	args := []any{filter.CompanyID}
	if filter.CustomerID > 0 {
		args = append(args, filter.CustomerID)
		where = append(where, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM branches WHERE "+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT id, company_id, customer_id, name, address, city, is_active, created_at, updated_at
		FROM branches WHERE %s ORDER BY name LIMIT $%d OFFSET $%d`, clause, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, query, append(args, page.PerPage, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Branch
	for rows.Next() {
		var b Branch
		if err := rows.Scan(&b.ID, &b.CompanyID, &b.CustomerID, &b.Name, &b.Address, &b.City, &b.IsActive, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}

// ============================================================================
// OPERATORS
// ============================================================================

func (r *Repository) CreateOperator(ctx context.Context, o Operator) (int64, error) {
	const query = `INSERT INTO operators (company_id, name, phone, email, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW()) RETURNING id`
	var id int64
	if err := r.pool.QueryRow(ctx, query, o.CompanyID, o.Name, o.Phone, o.Email).Scan(&id); err != nil {
		return 0, mapPgError(err)
	}
	return id, nil
}

func (r *Repository) GetOperator(ctx context.Context, companyID, id int64) (*Operator, error) {
	const query = `SELECT id, company_id, name, phone, email, is_active, created_at, updated_at
		FROM operators WHERE id = $1 AND company_id = $2`
	var o Operator
	err := r.pool.QueryRow(ctx, query, id, companyID).Scan(
		&o.ID, &o.CompanyID, &o.Name, &o.Phone, &o.Email, &o.IsActive, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *Repository) UpdateOperator(ctx context.Context, companyID, id int64, updates map[string]any) error {
	return r.execUpdate(ctx, "operators", updates, "id = ? AND company_id = ?", id, companyID)
}

func (r *Repository) ListOperators(ctx context.Context, filter ListFilter) ([]Operator, int, error) {
	page := shared.NewPagination(filter.Page, filter.PerPage, 0)
	where := []string{"company_id = $1"}
	args := []any{filter.CompanyID}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM operators WHERE "+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT id, company_id, name, phone, email, is_active, created_at, updated_at
		FROM operators WHERE %s ORDER BY name LIMIT $%d OFFSET $%d`, clause, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, query, append(args, page.PerPage, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Operator
	for rows.Next() {
		var o Operator
		if err := rows.Scan(&o.ID, &o.CompanyID, &o.Name, &o.Phone, &o.Email, &o.IsActive, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

// ============================================================================
// PRODUCTS
// ============================================================================

func (r *Repository) CreateProduct(ctx context.Context, p Product) (int64, error) {
	const query = `INSERT INTO products (company_id, name, unit, unit_price, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW()) RETURNING id`
	var id int64
	if err := r.pool.QueryRow(ctx, query, p.CompanyID, p.Name, p.Unit, p.UnitPrice).Scan(&id); err != nil {
		return 0, mapPgError(err)
	}
	return id, nil
}

func (r *Repository) GetProduct(ctx context.Context, companyID, id int64) (*Product, error) {
	const query = `SELECT id, company_id, name, unit, unit_price, is_active, created_at, updated_at
		FROM products WHERE id = $1 AND company_id = $2`
	var p Product
	err := r.pool.QueryRow(ctx, query, id, companyID).Scan(
		&p.ID, &p.CompanyID, &p.Name, &p.Unit, &p.UnitPrice, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *Repository) UpdateProduct(ctx context.Context, companyID, id int64, updates map[string]any) error {
	return r.execUpdate(ctx, "products", updates, "id = ? AND company_id = ?", id, companyID)
}

func (r *Repository) ListProducts(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	page := shared.NewPagination(filter.Page, filter.PerPage, 0)
	where := []string{"company_id = $1"}
	args := []any{filter.CompanyID}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM products WHERE "+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT id, company_id, name, unit, unit_price, is_active, created_at, updated_at
		FROM products WHERE %s ORDER BY name LIMIT $%d OFFSET $%d`, clause, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, query, append(args, page.PerPage, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.Name, &p.Unit, &p.UnitPrice, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}
