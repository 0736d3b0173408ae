package sales

import "time"

// SaleItem is one material line sold during a visit. Product name and unit are
// snapshotted at sale time so later catalog edits do not rewrite history.
type SaleItem struct {
	ID         int64   `db:"id" json:"id"`
	SaleID     int64   `db:"sale_id" json:"sale_id"`
	ProductID  int64   `db:"product_id" json:"product_id"`
	Name       string  `db:"name" json:"name"`
	Unit       string  `db:"unit" json:"unit"`
	Quantity   float64 `db:"quantity" json:"quantity"`
	UnitPrice  float64 `db:"unit_price" json:"unit_price"`
	TotalPrice float64 `db:"total_price" json:"total_price"`
	Currency   string  `db:"currency" json:"currency"`
}

// MaterialSale groups the line items sold during one completed visit.
type MaterialSale struct {
	ID        int64      `db:"id" json:"id"`
	VisitID   int64      `db:"visit_id" json:"visit_id"`
	CompanyID int64      `db:"company_id" json:"-"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	Items     []SaleItem `json:"items"`
}

// Total sums the line totals of a sale.
func (m MaterialSale) Total() float64 {
	var total float64
	for _, item := range m.Items {
		total += item.TotalPrice
	}
	return total
}
