package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"restaurant_pos/constants"
	"restaurant_pos/custom/store"
	"restaurant_pos/model"
)

type revenueRepo struct{ s *Store }

func inWindow(t time.Time, w store.Window) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func (r *revenueRepo) completed(w store.Window) []model.Order {
	orders := make([]model.Order, 0)
	for _, id := range sortedIDs(r.s.db.data.orders) {
		order := r.s.db.data.orders[id]
		if order.DeletedAt == nil && order.Status == constants.ORDER_STATUS_COMPLETED && inWindow(order.CreatedAt, w) {
			orders = append(orders, order)
		}
	}
	return orders
}

func (r *revenueRepo) Totals(ctx context.Context, w store.Window) (store.RevenueTotals, error) {
	defer r.s.lock()()
	totals := store.RevenueTotals{Total: decimal.Zero}
	for _, order := range r.completed(w) {
		totals.Total = totals.Total.Add(order.TotalAmount)
		totals.Orders++
	}
	return totals, nil
}

func truncate(t time.Time, unit string, loc *time.Location) time.Time {
	t = t.In(loc)
	if unit == "day" {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc)
}

func (r *revenueRepo) Buckets(ctx context.Context, w store.Window, unit string, loc *time.Location) ([]store.BucketRow, error) {
	defer r.s.lock()()
	bySlot := map[int64]*store.BucketRow{}
	for _, order := range r.completed(w) {
		slot := truncate(order.CreatedAt, unit, loc)
		row, ok := bySlot[slot.Unix()]
		if !ok {
			row = &store.BucketRow{Slot: slot, Total: decimal.Zero}
			bySlot[slot.Unix()] = row
		}
		row.Total = row.Total.Add(order.TotalAmount)
		row.Orders++
	}
	rows := make([]store.BucketRow, 0, len(bySlot))
	for _, row := range bySlot {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Slot.Before(rows[j].Slot) })
	return rows, nil
}

func (r *revenueRepo) TopItems(ctx context.Context, w store.Window, limit int) ([]store.ItemSales, error) {
	defer r.s.lock()()
	byItem := map[uint]*store.ItemSales{}
	for _, order := range r.completed(w) {
		for _, item := range (&orderRepo{r.s}).liveItems(order.ID) {
			sales, ok := byItem[item.MenuItemID]
			if !ok {
				sales = &store.ItemSales{MenuItemID: item.MenuItemID, Revenue: decimal.Zero}
				if menuItem, found := r.s.db.data.menu[item.MenuItemID]; found {
					sales.Name = menuItem.Name
				}
				byItem[item.MenuItemID] = sales
			}
			sales.Quantity += int64(item.Quantity)
			sales.Revenue = sales.Revenue.Add(item.Subtotal())
		}
	}
	items := make([]store.ItemSales, 0, len(byItem))
	for _, sales := range byItem {
		items = append(items, *sales)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Quantity != items[j].Quantity {
			return items[i].Quantity > items[j].Quantity
		}
		if !items[i].Revenue.Equal(items[j].Revenue) {
			return items[i].Revenue.GreaterThan(items[j].Revenue)
		}
		return items[i].MenuItemID < items[j].MenuItemID
	})
	return window(items, 0, limit), nil
}

func (r *revenueRepo) PaymentMethods(ctx context.Context, w store.Window) ([]store.MethodShare, error) {
	defer r.s.lock()()
	byMethod := map[string]*store.MethodShare{}
	for _, order := range r.completed(w) {
		for _, payment := range r.s.db.data.payments {
			if payment.OrderID != order.ID || payment.Status != constants.PAYMENT_STATUS_COMPLETED {
				continue
			}
			share, ok := byMethod[payment.Method]
			if !ok {
				share = &store.MethodShare{Method: payment.Method, Amount: decimal.Zero}
				byMethod[payment.Method] = share
			}
			share.Count++
			share.Amount = share.Amount.Add(payment.Amount)
		}
	}
	shares := make([]store.MethodShare, 0, len(byMethod))
	for _, share := range byMethod {
		shares = append(shares, *share)
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].Method < shares[j].Method })
	return shares, nil
}
