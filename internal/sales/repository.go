package sales

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads material sales from postgres. Writes happen inside the
// visit completion transaction, so this side is lookup-only.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const itemsByVisitQuery = `
SELECT s.visit_id, i.id, i.sale_id, i.product_id, i.name, i.unit,
       i.quantity, i.unit_price, i.total_price, i.currency
FROM material_sale_items i
JOIN material_sales s ON s.id = i.sale_id
WHERE s.company_id = $1 AND s.visit_id = ANY($2)
ORDER BY s.visit_id, i.id`

// ItemsByVisit returns sold line items grouped by visit id for one batch of
// visits. An empty id list returns an empty map without touching the database.
func (r *Repository) ItemsByVisit(ctx context.Context, companyID int64, visitIDs []int64) (map[int64][]SaleItem, error) {
	out := make(map[int64][]SaleItem)
	if len(visitIDs) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, itemsByVisitQuery, companyID, visitIDs)
	if err != nil {
		return nil, fmt.Errorf("query sale items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var visitID int64
		var item SaleItem
		if err := rows.Scan(&visitID, &item.ID, &item.SaleID, &item.ProductID, &item.Name, &item.Unit,
			&item.Quantity, &item.UnitPrice, &item.TotalPrice, &item.Currency); err != nil {
			return nil, fmt.Errorf("scan sale item: %w", err)
		}
		out[visitID] = append(out[visitID], item)
	}
	return out, rows.Err()
}

const saleByVisitQuery = `
SELECT id, visit_id, company_id, created_at
FROM material_sales
WHERE company_id = $1 AND visit_id = $2`

// SaleByVisit returns the material sale recorded for one visit, or nil when
// the visit sold nothing.
func (r *Repository) SaleByVisit(ctx context.Context, companyID, visitID int64) (*MaterialSale, error) {
	var sale MaterialSale
	err := r.pool.QueryRow(ctx, saleByVisitQuery, companyID, visitID).
		Scan(&sale.ID, &sale.VisitID, &sale.CompanyID, &sale.CreatedAt)
	if err != nil {
		return nil, err
	}
	items, err := r.ItemsByVisit(ctx, companyID, []int64{visitID})
	if err != nil {
		return nil, err
	}
	sale.Items = items[visitID]
	return &sale, nil
}
