package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DashboardRepo runs the read-only analytics queries behind the dashboard.
type DashboardRepo struct {
	db *sql.DB
	t  Tables
}

func NewDashboardRepo(db *sql.DB, t Tables) *DashboardRepo { return &DashboardRepo{db: db, t: t} }

type RevenuePoint struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
	Orders  int64           `json:"orders"`
}

// RevenueTrend returns revenue per day for sales created at or after since.
func (r *DashboardRepo) RevenueTrend(ctx context.Context, since time.Time) ([]RevenuePoint, error) {
	q := fmt.Sprintf(`SELECT DATE(created_at) AS day, COALESCE(SUM(total), 0), COUNT(*)
		FROM %s
		WHERE created_at >= ?
		GROUP BY DATE(created_at)
		ORDER BY day`, r.t.Sales)
	rows, err := r.db.QueryContext(ctx, q, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []RevenuePoint{}
	for rows.Next() {
		var (
			day time.Time
			p   RevenuePoint
		)
		if err := rows.Scan(&day, &p.Revenue, &p.Orders); err != nil {
			return nil, err
		}
		p.Date = day.Format(time.DateOnly)
		out = append(out, p)
	}
	return out, rows.Err()
}

type CategoryStat struct {
	CategoryID uint64          `json:"category_id"`
	Name       string          `json:"name"`
	Revenue    decimal.Decimal `json:"revenue"`
	Units      int64           `json:"units"`
}

// CategoryPerformance aggregates revenue and units sold per category since
// the given time.  Categories without sales are included with zeros.
func (r *DashboardRepo) CategoryPerformance(ctx context.Context, since time.Time) ([]CategoryStat, error) {
	q := fmt.Sprintf(`SELECT c.id, c.name,
			COALESCE(SUM(x.quantity * x.unit_price), 0) AS revenue,
			COALESCE(SUM(x.quantity), 0) AS units
		FROM %s c
		LEFT JOIN %s p ON p.category_id = c.id
		LEFT JOIN (
			SELECT si.product_id, si.quantity, si.unit_price
			FROM %s si
			JOIN %s s ON s.id = si.sale_id
			WHERE s.created_at >= ?
		) x ON x.product_id = p.id
		GROUP BY c.id, c.name
		ORDER BY revenue DESC, c.id`, r.t.Categories, r.t.Products, r.t.SaleItems, r.t.Sales)
	rows, err := r.db.QueryContext(ctx, q, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []CategoryStat{}
	for rows.Next() {
		var s CategoryStat
		if err := rows.Scan(&s.CategoryID, &s.Name, &s.Revenue, &s.Units); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type DailySales struct {
	Date         string          `json:"date"`
	Orders       int64           `json:"orders"`
	Revenue      decimal.Decimal `json:"revenue"`
	AverageOrder decimal.Decimal `json:"average_order"`
	Units        int64           `json:"units"`
}

// DailySales summarises sales created on the calendar day of day (UTC).
func (r *DashboardRepo) DailySales(ctx context.Context, day time.Time) (*DailySales, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	out := &DailySales{Date: start.Format(time.DateOnly)}

	q := fmt.Sprintf("SELECT COUNT(*), COALESCE(SUM(total), 0) FROM %s WHERE created_at >= ? AND created_at < ?", r.t.Sales)
	if err := r.db.QueryRowContext(ctx, q, start, end).Scan(&out.Orders, &out.Revenue); err != nil {
		return nil, err
	}
	q = fmt.Sprintf(`SELECT COALESCE(SUM(si.quantity), 0)
		FROM %s si
		JOIN %s s ON s.id = si.sale_id
		WHERE s.created_at >= ? AND s.created_at < ?`, r.t.SaleItems, r.t.Sales)
	if err := r.db.QueryRowContext(ctx, q, start, end).Scan(&out.Units); err != nil {
		return nil, err
	}
	if out.Orders > 0 {
		out.AverageOrder = out.Revenue.Div(decimal.NewFromInt(out.Orders)).Round(2)
	}
	return out, nil
}

type InventoryStatus struct {
	TotalProducts int64           `json:"total_products"`
	InStock       int64           `json:"in_stock"`
	LowStock      int64           `json:"low_stock"`
	OutOfStock    int64           `json:"out_of_stock"`
	StockValue    decimal.Decimal `json:"stock_value"`
}

// InventoryStatus classifies products by stock level against their reorder
// level.
func (r *DashboardRepo) InventoryStatus(ctx context.Context) (*InventoryStatus, error) {
	q := fmt.Sprintf(`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN stock_quantity > reorder_level THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN stock_quantity > 0 AND stock_quantity <= reorder_level THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN stock_quantity <= 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(GREATEST(stock_quantity, 0) * price), 0)
		FROM %s`, r.t.Products)
	var s InventoryStatus
	if err := r.db.QueryRowContext(ctx, q).Scan(&s.TotalProducts, &s.InStock, &s.LowStock, &s.OutOfStock, &s.StockValue); err != nil {
		return nil, err
	}
	return &s, nil
}

type EnhancedStats struct {
	RevenueToday       decimal.Decimal `json:"revenue_today"`
	OrdersToday        int64           `json:"orders_today"`
	RevenueMonth       decimal.Decimal `json:"revenue_month"`
	Customers          int64           `json:"customers"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	TotalCreditLimit   decimal.Decimal `json:"total_credit_limit"`
	ActiveUsers        int64           `json:"active_users"`
}

// EnhancedStats collects the headline numbers of the dashboard.
func (r *DashboardRepo) EnhancedStats(ctx context.Context, now time.Time) (*EnhancedStats, error) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	var s EnhancedStats

	q := fmt.Sprintf(`SELECT
			COALESCE(SUM(CASE WHEN created_at >= ? THEN total ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(total), 0)
		FROM %s WHERE created_at >= ?`, r.t.Sales)
	if err := r.db.QueryRowContext(ctx, q, today, today, month).Scan(&s.RevenueToday, &s.OrdersToday, &s.RevenueMonth); err != nil {
		return nil, err
	}
	q = fmt.Sprintf(`SELECT COUNT(*), COALESCE(SUM(current_balance), 0), COALESCE(SUM(credit_limit), 0) FROM %s`, r.t.Customers)
	if err := r.db.QueryRowContext(ctx, q).Scan(&s.Customers, &s.OutstandingBalance, &s.TotalCreditLimit); err != nil {
		return nil, err
	}
	q = fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE status = 'active' AND deleted_at IS NULL", r.t.Users)
	if err := r.db.QueryRowContext(ctx, q).Scan(&s.ActiveUsers); err != nil {
		return nil, err
	}
	return &s, nil
}
