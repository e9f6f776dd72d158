package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
	"restaurant_pos/constants"
)

type gormRevenueRepo struct {
	db *gorm.DB
}

// reader routes reporting queries to a replica when one is registered.
func (r *gormRevenueRepo) reader(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Clauses(dbresolver.Read)
}

func (r *gormRevenueRepo) Totals(ctx context.Context, w Window) (RevenueTotals, error) {
	row := struct {
		Total  decimal.Decimal
		Orders int64
	}{}
	err := r.reader(ctx).Raw(`
		SELECT COALESCE(SUM(total_amount), 0) AS total, COUNT(id) AS orders
		FROM orders
		WHERE status = ? AND deleted_at IS NULL AND created_at BETWEEN ? AND ?`,
		constants.ORDER_STATUS_COMPLETED, w.Start, w.End).Scan(&row).Error
	if err != nil {
		return RevenueTotals{}, translate(err)
	}
	return RevenueTotals{Total: row.Total, Orders: row.Orders}, nil
}

func (r *gormRevenueRepo) Buckets(ctx context.Context, w Window, unit string, loc *time.Location) ([]BucketRow, error) {
	rows := make([]struct {
		Slot   time.Time
		Total  decimal.Decimal
		Orders int64
	}, 0)
	err := r.reader(ctx).Raw(`
		SELECT date_trunc(?, created_at AT TIME ZONE ?) AS slot,
		       SUM(total_amount) AS total,
		       COUNT(id) AS orders
		FROM orders
		WHERE status = ? AND deleted_at IS NULL AND created_at BETWEEN ? AND ?
		GROUP BY 1
		ORDER BY 1`,
		unit, loc.String(), constants.ORDER_STATUS_COMPLETED, w.Start, w.End).Scan(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	buckets := make([]BucketRow, 0, len(rows))
	for _, row := range rows {
		buckets = append(buckets, BucketRow{Slot: row.Slot, Total: row.Total, Orders: row.Orders})
	}
	return buckets, nil
}

func (r *gormRevenueRepo) TopItems(ctx context.Context, w Window, limit int) ([]ItemSales, error) {
	rows := make([]struct {
		MenuItemID uint
		Name       string
		Quantity   int64
		Revenue    decimal.Decimal
	}, 0)
	err := r.reader(ctx).Raw(`
		SELECT oi.menu_item_id AS menu_item_id,
		       COALESCE(mi.name, '') AS name,
		       SUM(oi.quantity) AS quantity,
		       SUM(oi.price * oi.quantity) AS revenue
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		LEFT JOIN menu_items mi ON mi.id = oi.menu_item_id
		WHERE o.status = ? AND o.deleted_at IS NULL AND oi.deleted_at IS NULL
		  AND o.created_at BETWEEN ? AND ?
		GROUP BY oi.menu_item_id, mi.name
		ORDER BY quantity DESC, revenue DESC, oi.menu_item_id
		LIMIT ?`,
		constants.ORDER_STATUS_COMPLETED, w.Start, w.End, limit).Scan(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	items := make([]ItemSales, 0, len(rows))
	for _, row := range rows {
		items = append(items, ItemSales{MenuItemID: row.MenuItemID, Name: row.Name, Quantity: row.Quantity, Revenue: row.Revenue})
	}
	return items, nil
}

func (r *gormRevenueRepo) PaymentMethods(ctx context.Context, w Window) ([]MethodShare, error) {
	rows := make([]struct {
		Method string
		Count  int64
		Amount decimal.Decimal
	}, 0)
	err := r.reader(ctx).Raw(`
		SELECT p.method AS method, COUNT(p.id) AS count, SUM(p.amount) AS amount
		FROM payments p
		JOIN orders o ON o.id = p.order_id
		WHERE p.status = ? AND o.status = ? AND o.deleted_at IS NULL
		  AND o.created_at BETWEEN ? AND ?
		GROUP BY p.method
		ORDER BY p.method`,
		constants.PAYMENT_STATUS_COMPLETED, constants.ORDER_STATUS_COMPLETED, w.Start, w.End).Scan(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	shares := make([]MethodShare, 0, len(rows))
	for _, row := range rows {
		shares = append(shares, MethodShare{Method: row.Method, Count: row.Count, Amount: row.Amount})
	}
	return shares, nil
}
