package memstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"restaurant_pos/constants"
	"restaurant_pos/custom/store"
	"restaurant_pos/model"
)

// Categories

type categoryRepo struct{ s *Store }

func (r *categoryRepo) Create(ctx context.Context, category *model.Category) error {
	defer r.s.lock()()
	data := r.s.db.data
	for _, existing := range data.categories {
		if existing.DeletedAt == nil && existing.Name == category.Name {
			return store.ErrDuplicate
		}
	}
	now := r.s.db.now()
	category.ID = data.id()
	category.CreatedAt, category.UpdatedAt = now, now
	data.categories[category.ID] = *category
	return nil
}

func (r *categoryRepo) FindByID(ctx context.Context, id uint, opts store.QueryOptions) (*model.Category, error) {
	defer r.s.lock()()
	category, ok := r.s.db.data.categories[id]
	if !ok || !visible(category.DeletedAt, opts) {
		return nil, store.ErrNotFound
	}
	return &category, nil
}

func (r *categoryRepo) FindByName(ctx context.Context, name string) (*model.Category, error) {
	defer r.s.lock()()
	for _, id := range sortedIDs(r.s.db.data.categories) {
		category := r.s.db.data.categories[id]
		if category.DeletedAt == nil && category.Name == name {
			return &category, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *categoryRepo) List(ctx context.Context, opts store.QueryOptions) ([]model.Category, error) {
	defer r.s.lock()()
	categories := make([]model.Category, 0)
	for _, id := range sortedIDs(r.s.db.data.categories) {
		category := r.s.db.data.categories[id]
		if visible(category.DeletedAt, opts) {
			categories = append(categories, category)
		}
	}
	return window(categories, opts.Offset, opts.Limit), nil
}

func (r *categoryRepo) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	defer r.s.lock()()
	data := r.s.db.data
	category, ok := data.categories[id]
	if !ok || category.DeletedAt != nil {
		return store.ErrNotFound
	}
	if name, ok := fields["name"].(string); ok {
		for otherID, other := range data.categories {
			if otherID != id && other.DeletedAt == nil && other.Name == name {
				return store.ErrDuplicate
			}
		}
		category.Name = name
	}
	if description, ok := fields["description"].(*string); ok {
		category.Description = description
	}
	category.UpdatedAt = r.s.db.now()
	data.categories[id] = category
	return nil
}

func (r *categoryRepo) SoftDelete(ctx context.Context, id uint, at time.Time) error {
	defer r.s.lock()()
	category, ok := r.s.db.data.categories[id]
	if !ok || category.DeletedAt != nil {
		return store.ErrNotFound
	}
	category.DeletedAt = timePtr(at)
	r.s.db.data.categories[id] = category
	return nil
}

// Users

type userRepo struct{ s *Store }

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	defer r.s.lock()()
	data := r.s.db.data
	for _, existing := range data.users {
		if existing.DeletedAt == nil && existing.Username == user.Username {
			return store.ErrDuplicate
		}
	}
	now := r.s.db.now()
	user.ID = data.id()
	user.CreatedAt, user.UpdatedAt = now, now
	data.users[user.ID] = *user
	return nil
}

func (r *userRepo) FindByID(ctx context.Context, id uint, opts store.QueryOptions) (*model.User, error) {
	defer r.s.lock()()
	user, ok := r.s.db.data.users[id]
	if !ok || !visible(user.DeletedAt, opts) {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (r *userRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	defer r.s.lock()()
	for _, id := range sortedIDs(r.s.db.data.users) {
		user := r.s.db.data.users[id]
		if user.DeletedAt == nil && user.Username == username {
			return &user, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *userRepo) List(ctx context.Context, opts store.QueryOptions) ([]model.User, error) {
	defer r.s.lock()()
	users := make([]model.User, 0)
	for _, id := range sortedIDs(r.s.db.data.users) {
		user := r.s.db.data.users[id]
		if visible(user.DeletedAt, opts) {
			users = append(users, user)
		}
	}
	return window(users, opts.Offset, opts.Limit), nil
}

func (r *userRepo) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	defer r.s.lock()()
	user, ok := r.s.db.data.users[id]
	if !ok || user.DeletedAt != nil {
		return store.ErrNotFound
	}
	if fullName, ok := fields["full_name"].(string); ok {
		user.FullName = fullName
	}
	if role, ok := fields["role"].(string); ok {
		user.Role = role
	}
	user.UpdatedAt = r.s.db.now()
	r.s.db.data.users[id] = user
	return nil
}

func (r *userRepo) SoftDelete(ctx context.Context, id uint, at time.Time) error {
	defer r.s.lock()()
	user, ok := r.s.db.data.users[id]
	if !ok || user.DeletedAt != nil {
		return store.ErrNotFound
	}
	user.DeletedAt = timePtr(at)
	r.s.db.data.users[id] = user
	return nil
}

// Menu

type menuRepo struct{ s *Store }

func (r *menuRepo) hydrate(item model.MenuItem) model.MenuItem {
	if category, ok := r.s.db.data.categories[item.CategoryID]; ok {
		item.Category = &category
	}
	return item
}

func (r *menuRepo) Create(ctx context.Context, item *model.MenuItem) error {
	defer r.s.lock()()
	now := r.s.db.now()
	item.ID = r.s.db.data.id()
	item.CreatedAt, item.UpdatedAt = now, now
	stored := *item
	stored.Category = nil
	r.s.db.data.menu[item.ID] = stored
	return nil
}

func (r *menuRepo) FindByID(ctx context.Context, id uint, opts store.QueryOptions) (*model.MenuItem, error) {
	defer r.s.lock()()
	item, ok := r.s.db.data.menu[id]
	if !ok || !visible(item.DeletedAt, opts) {
		return nil, store.ErrNotFound
	}
	item = r.hydrate(item)
	return &item, nil
}

func (r *menuRepo) FindAvailable(ctx context.Context, ids []uint) ([]model.MenuItem, error) {
	defer r.s.lock()()
	items := make([]model.MenuItem, 0)
	seen := map[uint]bool{}
	for _, id := range ids {
		item, ok := r.s.db.data.menu[id]
		if !ok || seen[id] || !item.Active || item.DeletedAt != nil {
			continue
		}
		seen[id] = true
		items = append(items, item)
	}
	return items, nil
}

func (r *menuRepo) Search(ctx context.Context, filter store.MenuFilter) ([]model.MenuItem, int64, error) {
	defer r.s.lock()()
	items := make([]model.MenuItem, 0)
	needle := strings.ToLower(filter.Name)
	for _, item := range r.s.db.data.menu {
		if item.DeletedAt != nil {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(item.Name), needle) {
			continue
		}
		if filter.CategoryID != 0 && item.CategoryID != filter.CategoryID {
			continue
		}
		if filter.Active != nil && item.Active != *filter.Active {
			continue
		}
		items = append(items, r.hydrate(item))
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return window(items, filter.Offset, filter.Limit), int64(len(items)), nil
}

func (r *menuRepo) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	defer r.s.lock()()
	item, ok := r.s.db.data.menu[id]
	if !ok || item.DeletedAt != nil {
		return store.ErrNotFound
	}
	if name, ok := fields["name"].(string); ok {
		item.Name = name
	}
	if description, ok := fields["description"].(*string); ok {
		item.Description = description
	}
	if price, ok := fields["price"].(decimal.Decimal); ok {
		item.Price = price
	}
	if categoryID, ok := fields["category_id"].(uint); ok {
		item.CategoryID = categoryID
	}
	if image, ok := fields["image"].(*string); ok {
		item.Image = image
	}
	if active, ok := fields["active"].(bool); ok {
		item.Active = active
	}
	item.UpdatedAt = r.s.db.now()
	r.s.db.data.menu[id] = item
	return nil
}

func (r *menuRepo) SoftDelete(ctx context.Context, id uint, at time.Time) error {
	defer r.s.lock()()
	item, ok := r.s.db.data.menu[id]
	if !ok || item.DeletedAt != nil {
		return store.ErrNotFound
	}
	item.DeletedAt = timePtr(at)
	r.s.db.data.menu[id] = item
	return nil
}

// Tables

type tableRepo struct{ s *Store }

func (r *tableRepo) numberTaken(number int, except uint) bool {
	for id, table := range r.s.db.data.tables {
		if id != except && table.DeletedAt == nil && table.Number == number {
			return true
		}
	}
	return false
}

func (r *tableRepo) hydrate(table model.Table) model.Table {
	orders := (&orderRepo{r.s}).activeByTable(table.ID)
	if len(orders) > 0 {
		table.Orders = orders
	} else {
		table.Orders = nil
	}
	return table
}

func (r *tableRepo) Create(ctx context.Context, table *model.Table) error {
	defer r.s.lock()()
	if r.numberTaken(table.Number, 0) {
		return store.ErrDuplicate
	}
	now := r.s.db.now()
	table.ID = r.s.db.data.id()
	table.CreatedAt, table.UpdatedAt = now, now
	stored := *table
	stored.Orders = nil
	r.s.db.data.tables[table.ID] = stored
	return nil
}

func (r *tableRepo) FindByID(ctx context.Context, id uint, opts store.QueryOptions) (*model.Table, error) {
	defer r.s.lock()()
	table, ok := r.s.db.data.tables[id]
	if !ok || !visible(table.DeletedAt, opts) {
		return nil, store.ErrNotFound
	}
	table = r.hydrate(table)
	return &table, nil
}

func (r *tableRepo) LockByID(ctx context.Context, id uint) (*model.Table, error) {
	defer r.s.lock()()
	table, ok := r.s.db.data.tables[id]
	if !ok || table.DeletedAt != nil {
		return nil, store.ErrNotFound
	}
	return &table, nil
}

func (r *tableRepo) FindByNumber(ctx context.Context, number int, opts store.QueryOptions) (*model.Table, error) {
	defer r.s.lock()()
	for _, id := range sortedIDs(r.s.db.data.tables) {
		table := r.s.db.data.tables[id]
		if table.Number == number && visible(table.DeletedAt, opts) {
			return &table, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *tableRepo) List(ctx context.Context, opts store.QueryOptions) ([]model.Table, error) {
	defer r.s.lock()()
	tables := make([]model.Table, 0)
	for _, table := range r.s.db.data.tables {
		if visible(table.DeletedAt, opts) {
			tables = append(tables, r.hydrate(table))
		}
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Number < tables[j].Number })
	return window(tables, opts.Offset, opts.Limit), nil
}

func (r *tableRepo) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	defer r.s.lock()()
	table, ok := r.s.db.data.tables[id]
	if !ok || table.DeletedAt != nil {
		return store.ErrNotFound
	}
	if number, ok := fields["number"].(int); ok {
		if r.numberTaken(number, id) {
			return store.ErrDuplicate
		}
		table.Number = number
	}
	if capacity, ok := fields["capacity"].(int); ok {
		table.Capacity = capacity
	}
	table.UpdatedAt = r.s.db.now()
	r.s.db.data.tables[id] = table
	return nil
}

func (r *tableRepo) SetStatus(ctx context.Context, id uint, status string) error {
	defer r.s.lock()()
	table, ok := r.s.db.data.tables[id]
	if !ok || table.DeletedAt != nil {
		return store.ErrNotFound
	}
	table.Status = status
	table.UpdatedAt = r.s.db.now()
	r.s.db.data.tables[id] = table
	return nil
}

func (r *tableRepo) SoftDelete(ctx context.Context, id uint, at time.Time) error {
	defer r.s.lock()()
	table, ok := r.s.db.data.tables[id]
	if !ok || table.DeletedAt != nil {
		return store.ErrNotFound
	}
	table.DeletedAt = timePtr(at)
	r.s.db.data.tables[id] = table
	return nil
}

// Orders

type orderRepo struct{ s *Store }

func (r *orderRepo) liveItems(orderID uint) []model.OrderItem {
	items := make([]model.OrderItem, 0)
	for _, id := range sortedIDs(r.s.db.data.items) {
		item := r.s.db.data.items[id]
		if item.OrderID == orderID && item.DeletedAt == nil {
			items = append(items, item)
		}
	}
	return items
}

func (r *orderRepo) withMenuItems(items []model.OrderItem) []model.OrderItem {
	for i := range items {
		if menuItem, ok := r.s.db.data.menu[items[i].MenuItemID]; ok {
			items[i].MenuItem = &menuItem
		}
	}
	return items
}

func (r *orderRepo) withUser(order *model.Order) {
	if user, ok := r.s.db.data.users[order.UserID]; ok {
		order.User = &user
	}
}

func (r *orderRepo) activeByTable(tableID uint) []model.Order {
	orders := make([]model.Order, 0)
	for _, order := range r.s.db.data.orders {
		if order.TableID == tableID && order.DeletedAt == nil && order.Status != constants.ORDER_STATUS_COMPLETED {
			order.Items = r.withMenuItems(r.liveItems(order.ID))
			r.withUser(&order)
			orders = append(orders, order)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders
}

func (r *orderRepo) Create(ctx context.Context, order *model.Order) error {
	defer r.s.lock()()
	data := r.s.db.data
	for _, existing := range data.orders {
		if existing.OrderNumber == order.OrderNumber {
			return store.ErrDuplicate
		}
	}
	now := r.s.db.now()
	order.ID = data.id()
	order.CreatedAt, order.UpdatedAt = now, now
	for i := range order.Items {
		order.Items[i].ID = data.id()
		order.Items[i].OrderID = order.ID
		order.Items[i].CreatedAt, order.Items[i].UpdatedAt = now, now
		stored := order.Items[i]
		stored.MenuItem = nil
		data.items[stored.ID] = stored
	}
	stored := *order
	stored.Items, stored.Table, stored.User, stored.Payment = nil, nil, nil, nil
	data.orders[order.ID] = stored
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, id uint, opts store.QueryOptions) (*model.Order, error) {
	defer r.s.lock()()
	data := r.s.db.data
	order, ok := data.orders[id]
	if !ok || !visible(order.DeletedAt, opts) {
		return nil, store.ErrNotFound
	}
	order.Items = r.withMenuItems(r.liveItems(id))
	if table, ok := data.tables[order.TableID]; ok {
		order.Table = &table
	}
	r.withUser(&order)
	for _, payment := range data.payments {
		if payment.OrderID == id {
			payment := payment
			order.Payment = &payment
		}
	}
	return &order, nil
}

func (r *orderRepo) LockByID(ctx context.Context, id uint) (*model.Order, error) {
	defer r.s.lock()()
	order, ok := r.s.db.data.orders[id]
	if !ok || order.DeletedAt != nil {
		return nil, store.ErrNotFound
	}
	return &order, nil
}

func (r *orderRepo) ListActiveByTable(ctx context.Context, tableID uint) ([]model.Order, error) {
	defer r.s.lock()()
	return r.activeByTable(tableID), nil
}

func (r *orderRepo) CountActiveByTable(ctx context.Context, tableID uint) (int64, error) {
	defer r.s.lock()()
	var count int64
	for _, order := range r.s.db.data.orders {
		if order.TableID == tableID && order.DeletedAt == nil && order.Status != constants.ORDER_STATUS_COMPLETED {
			count++
		}
	}
	return count, nil
}

func (r *orderRepo) ActiveItems(ctx context.Context, orderID uint) ([]model.OrderItem, error) {
	defer r.s.lock()()
	return r.liveItems(orderID), nil
}

func (r *orderRepo) InsertItems(ctx context.Context, items []model.OrderItem) error {
	defer r.s.lock()()
	now := r.s.db.now()
	for i := range items {
		items[i].ID = r.s.db.data.id()
		items[i].CreatedAt, items[i].UpdatedAt = now, now
		stored := items[i]
		stored.MenuItem = nil
		r.s.db.data.items[stored.ID] = stored
	}
	return nil
}

func (r *orderRepo) UpdateItem(ctx context.Context, itemID uint, fields map[string]interface{}) error {
	defer r.s.lock()()
	item, ok := r.s.db.data.items[itemID]
	if !ok || item.DeletedAt != nil {
		return store.ErrNotFound
	}
	if quantity, ok := fields["quantity"].(int); ok {
		item.Quantity = quantity
	}
	if price, ok := fields["price"].(decimal.Decimal); ok {
		item.Price = price
	}
	if notes, ok := fields["notes"].(*string); ok {
		item.Notes = notes
	}
	item.UpdatedAt = r.s.db.now()
	r.s.db.data.items[itemID] = item
	return nil
}

func (r *orderRepo) SoftDeleteItems(ctx context.Context, itemIDs []uint, at time.Time) error {
	defer r.s.lock()()
	for _, id := range itemIDs {
		item, ok := r.s.db.data.items[id]
		if !ok || item.DeletedAt != nil {
			continue
		}
		item.DeletedAt = timePtr(at)
		r.s.db.data.items[id] = item
	}
	return nil
}

func (r *orderRepo) UpdateTotal(ctx context.Context, id uint, total decimal.Decimal) error {
	defer r.s.lock()()
	order, ok := r.s.db.data.orders[id]
	if !ok {
		return store.ErrNotFound
	}
	order.TotalAmount = total
	order.UpdatedAt = r.s.db.now()
	r.s.db.data.orders[id] = order
	return nil
}

func (r *orderRepo) SetStatus(ctx context.Context, id uint, status string, endTime *time.Time) error {
	defer r.s.lock()()
	order, ok := r.s.db.data.orders[id]
	if !ok || order.DeletedAt != nil {
		return store.ErrNotFound
	}
	order.Status = status
	if endTime != nil {
		order.EndTime = timePtr(*endTime)
	}
	order.UpdatedAt = r.s.db.now()
	r.s.db.data.orders[id] = order
	return nil
}

// Payments

type paymentRepo struct{ s *Store }

func (r *paymentRepo) Create(ctx context.Context, payment *model.Payment) error {
	defer r.s.lock()()
	for _, existing := range r.s.db.data.payments {
		if existing.OrderID == payment.OrderID {
			return store.ErrDuplicate
		}
	}
	payment.ID = r.s.db.data.id()
	payment.CreatedAt = r.s.db.now()
	r.s.db.data.payments[payment.ID] = *payment
	return nil
}

func (r *paymentRepo) FindByOrderID(ctx context.Context, orderID uint) (*model.Payment, error) {
	defer r.s.lock()()
	for _, payment := range r.s.db.data.payments {
		if payment.OrderID == orderID {
			return &payment, nil
		}
	}
	return nil, store.ErrNotFound
}
