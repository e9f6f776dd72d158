package order

import (
	"context"
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/romana/rlog"
	"github.com/shopspring/decimal"
	"restaurant_pos/constants"
	"restaurant_pos/custom/app_error"
	"restaurant_pos/custom/store"
	"restaurant_pos/custom/util"
	"restaurant_pos/model"
)

type Config struct {
	TxPolicy store.TxPolicy
	// NodeId identifies this instance in generated order numbers (0-1023).
	NodeId int64
	// PricePolicy is the reconcile default when a request names none.
	PricePolicy string
	Now         func() time.Time
}

type Service struct {
	st          store.Store
	node        *snowflake.Node
	txPolicy    store.TxPolicy
	pricePolicy string
	now         func() time.Time
}

type LineRequest struct {
	MenuItemId uint    `json:"menu_item_id"`
	Quantity   int     `json:"quantity"`
	Notes      *string `json:"notes,omitempty"`
}

func NewService(st store.Store, conf Config) (*Service, error) {
	node, err := snowflake.NewNode(conf.NodeId)
	if err != nil {
		return nil, err
	}
	if conf.PricePolicy == "" {
		conf.PricePolicy = constants.PRICE_POLICY_REFRESH_ON_CHANGE
	}
	if !isKnownPricePolicy(conf.PricePolicy) {
		return nil, app_error.Validation(constants.INVALID_PRICE_POLICY + ": " + conf.PricePolicy)
	}
	if conf.TxPolicy == (store.TxPolicy{}) {
		conf.TxPolicy = store.DefaultTxPolicy
	}
	if conf.Now == nil {
		conf.Now = time.Now
	}
	return &Service{
		st:          st,
		node:        node,
		txPolicy:    conf.TxPolicy,
		pricePolicy: conf.PricePolicy,
		now:         conf.Now,
	}, nil
}

func (s *Service) TxPolicy() store.TxPolicy {
	return s.txPolicy
}

func isKnownPricePolicy(policy string) bool {
	return policy == constants.PRICE_POLICY_REFRESH_ON_CHANGE || policy == constants.PRICE_POLICY_KEEP_SNAPSHOT
}

func validateLines(lines []LineRequest, unique bool) error {
	if len(lines) == 0 {
		return app_error.Validation(constants.ITEMS_REQUIRED)
	}
	seen := make(map[uint]bool, len(lines))
	for i, line := range lines {
		if line.MenuItemId == 0 {
			return app_error.Validation(fmt.Sprintf("item %d: menu_item_id is required", i+1))
		}
		if line.Quantity < 1 {
			return app_error.Validation(fmt.Sprintf("item %d: %s", i+1, constants.INVALID_QUANTITY))
		}
		if line.Notes != nil && utf8.RuneCountInString(*line.Notes) > constants.MAX_NOTES_LENGTH {
			return app_error.Validation(fmt.Sprintf("item %d: %s", i+1, constants.NOTES_TOO_LONG))
		}
		if unique && seen[line.MenuItemId] {
			return app_error.Validation(fmt.Sprintf("%s (menu item %d)", constants.ITEMS_DUPLICATED, line.MenuItemId))
		}
		seen[line.MenuItemId] = true
	}
	return nil
}

func distinctMenuItemIds(lines []LineRequest) []uint {
	ids := make([]uint, 0, len(lines))
	seen := make(map[uint]bool, len(lines))
	for _, line := range lines {
		if !seen[line.MenuItemId] {
			seen[line.MenuItemId] = true
			ids = append(ids, line.MenuItemId)
		}
	}
	return ids
}

// loadMenu fails the whole request when any referenced item is missing, inactive or deleted.
func loadMenu(ctx context.Context, tx store.Store, lines []LineRequest) (map[uint]model.MenuItem, error) {
	ids := distinctMenuItemIds(lines)
	items, err := tx.Menu().FindAvailable(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(items) != len(ids) {
		return nil, app_error.Validation(constants.ITEMS_UNAVAILABLE)
	}
	menu := make(map[uint]model.MenuItem, len(items))
	for _, item := range items {
		menu[item.ID] = item
	}
	return menu, nil
}

func sumLines(items []model.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

func (s *Service) nextOrderNumber() string {
	return constants.ORDER_NUMBER_PREFIX + s.node.Generate().String()
}

func (s *Service) fail(operation string, err error) error {
	appErr := util.ToAppError(err, constants.ORDER_NOT_FOUND)
	if app_error.IsKind(appErr, app_error.KindSystem) {
		rlog.Errorf("%s failed: %s", operation, err.Error())
	}
	return appErr
}

// Create opens an order on an AVAILABLE table and marks the table OCCUPIED.
func (s *Service) Create(ctx context.Context, userId, tableId uint, lines []LineRequest) (*model.Order, error) {
	if err := validateLines(lines, false); err != nil {
		return nil, err
	}
	var created model.Order
	err := store.RunInTx(ctx, s.st, s.txPolicy, "create order", func(ctx context.Context, tx store.Store) error {
		if _, err := tx.Users().FindByID(ctx, userId, store.QueryOptions{}); err != nil {
			return util.ToAppError(err, constants.USER_NOT_FOUND)
		}
		table, err := tx.Tables().LockByID(ctx, tableId)
		if err != nil {
			return util.ToAppError(err, constants.TABLE_NOT_FOUND)
		}
		if table.Status != constants.TABLE_STATUS_AVAILABLE {
			return app_error.NotAvailable(constants.TABLE_NOT_AVAILABLE)
		}
		menu, err := loadMenu(ctx, tx, lines)
		if err != nil {
			return err
		}

		order := model.Order{
			OrderNumber: s.nextOrderNumber(),
			TableID:     table.ID,
			UserID:      userId,
			Status:      constants.ORDER_STATUS_PENDING,
			StartTime:   s.now(),
			Items:       make([]model.OrderItem, 0, len(lines)),
		}
		for _, line := range lines {
			order.Items = append(order.Items, model.OrderItem{
				MenuItemID: line.MenuItemId,
				Quantity:   line.Quantity,
				Price:      menu[line.MenuItemId].Price,
				Notes:      line.Notes,
			})
		}
		order.TotalAmount = sumLines(order.Items)

		if err := tx.Orders().Create(ctx, &order); err != nil {
			if store.IsUniqueViolation(err) {
				return fmt.Errorf("%w: order number %s is taken", store.ErrRetry, order.OrderNumber)
			}
			return err
		}
		if err := tx.Tables().SetStatus(ctx, table.ID, constants.TABLE_STATUS_OCCUPIED); err != nil {
			return err
		}
		created = order
		return nil
	})
	if err != nil {
		return nil, s.fail("create order", err)
	}
	rlog.Infof("Order %s was created on table %d as %s, total %s", created.OrderNumber, tableId, created.Status, created.TotalAmount.StringFixed(2))
	return s.Get(ctx, created.ID)
}

// Reconcile replaces the live lines of an open order with lines. Lines for menu items
// no longer requested are soft-deleted, kept lines are updated in place and new ones
// are priced from the menu. policy decides whether kept lines whose quantity changes
// take the current menu price; an empty policy uses the configured default.
func (s *Service) Reconcile(ctx context.Context, orderId uint, lines []LineRequest, policy string) (*model.Order, error) {
	if policy == "" {
		policy = s.pricePolicy
	}
	if !isKnownPricePolicy(policy) {
		return nil, app_error.Validation(constants.INVALID_PRICE_POLICY + ": " + policy)
	}
	if err := validateLines(lines, true); err != nil {
		return nil, err
	}
	var total decimal.Decimal
	err := store.RunInTx(ctx, s.st, s.txPolicy, "reconcile order", func(ctx context.Context, tx store.Store) error {
		order, err := tx.Orders().LockByID(ctx, orderId)
		if err != nil {
			return err
		}
		if isTerminal(order.Status) {
			return app_error.NotModifiable(constants.ORDER_NOT_MODIFIABLE)
		}
		menu, err := loadMenu(ctx, tx, lines)
		if err != nil {
			return err
		}
		current, err := tx.Orders().ActiveItems(ctx, orderId)
		if err != nil {
			return err
		}

		existing := make(map[uint]model.OrderItem, len(current))
		removed := make([]uint, 0)
		for _, item := range current {
			// An order created with repeated menu items keeps only the first line.
			if _, dup := existing[item.MenuItemID]; dup {
				removed = append(removed, item.ID)
				continue
			}
			existing[item.MenuItemID] = item
		}
		wanted := make(map[uint]bool, len(lines))
		for _, line := range lines {
			wanted[line.MenuItemId] = true
		}
		for menuItemId, item := range existing {
			if !wanted[menuItemId] {
				removed = append(removed, item.ID)
			}
		}
		sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })

		inserts := make([]model.OrderItem, 0)
		for _, line := range lines {
			item, ok := existing[line.MenuItemId]
			if !ok {
				inserts = append(inserts, model.OrderItem{
					OrderID:    orderId,
					MenuItemID: line.MenuItemId,
					Quantity:   line.Quantity,
					Price:      menu[line.MenuItemId].Price,
					Notes:      line.Notes,
				})
				continue
			}
			fields := map[string]interface{}{
				"quantity": line.Quantity,
				"notes":    line.Notes,
			}
			if policy == constants.PRICE_POLICY_REFRESH_ON_CHANGE && item.Quantity != line.Quantity {
				fields["price"] = menu[line.MenuItemId].Price
			}
			if err := tx.Orders().UpdateItem(ctx, item.ID, fields); err != nil {
				return err
			}
		}
		if len(removed) > 0 {
			if err := tx.Orders().SoftDeleteItems(ctx, removed, s.now()); err != nil {
				return err
			}
		}
		if len(inserts) > 0 {
			if err := tx.Orders().InsertItems(ctx, inserts); err != nil {
				return err
			}
		}

		// The total is always re-derived from what is now live.
		final, err := tx.Orders().ActiveItems(ctx, orderId)
		if err != nil {
			return err
		}
		total = sumLines(final)
		return tx.Orders().UpdateTotal(ctx, orderId, total)
	})
	if err != nil {
		return nil, s.fail("reconcile order", err)
	}
	rlog.Infof("Order %d was reconciled to %d lines, total %s", orderId, len(lines), total.StringFixed(2))
	return s.Get(ctx, orderId)
}

// Complete moves an open order to COMPLETED and releases its table when nothing else is open on it.
func (s *Service) Complete(ctx context.Context, orderId uint) (*model.Order, error) {
	err := store.RunInTx(ctx, s.st, s.txPolicy, "complete order", func(ctx context.Context, tx store.Store) error {
		order, err := tx.Orders().LockByID(ctx, orderId)
		if err != nil {
			return err
		}
		return s.CompleteTx(ctx, tx, order)
	})
	if err != nil {
		return nil, s.fail("complete order", err)
	}
	return s.Get(ctx, orderId)
}

// CompleteTx completes order inside the caller's transaction. order must have been read with LockByID.
func (s *Service) CompleteTx(ctx context.Context, tx store.Store, order *model.Order) error {
	if isTerminal(order.Status) {
		return app_error.AlreadyCompleted(constants.ORDER_ALREADY_COMPLETED)
	}
	// Lock order is always order then table.
	_, err := tx.Tables().LockByID(ctx, order.TableID)
	tableLive := err == nil
	if err != nil && !store.IsNotFound(err) {
		return err
	}

	endTime := s.now()
	if err := tx.Orders().SetStatus(ctx, order.ID, constants.ORDER_STATUS_COMPLETED, &endTime); err != nil {
		return err
	}
	order.Status = constants.ORDER_STATUS_COMPLETED
	order.EndTime = &endTime

	if !tableLive {
		rlog.Warnf("Order %d completed on deleted table %d", order.ID, order.TableID)
		return nil
	}
	remaining, err := tx.Orders().CountActiveByTable(ctx, order.TableID)
	if err != nil {
		return err
	}
	if remaining == 0 {
		if err := tx.Tables().SetStatus(ctx, order.TableID, constants.TABLE_STATUS_AVAILABLE); err != nil {
			return err
		}
		rlog.Infof("Table %d was released by order %d", order.TableID, order.ID)
	}
	rlog.Infof("Order %d state was set to %s", order.ID, order.Status)
	return nil
}

// UpdateStatus moves an open order between PENDING and PREPARING. COMPLETED goes through Complete.
func (s *Service) UpdateStatus(ctx context.Context, orderId uint, status string) (*model.Order, error) {
	if !isKnownStatus(status) {
		return nil, app_error.Validation(constants.INVALID_ORDER_STATUS + ": " + status)
	}
	if status == constants.ORDER_STATUS_COMPLETED {
		return s.Complete(ctx, orderId)
	}
	err := store.RunInTx(ctx, s.st, s.txPolicy, "update order status", func(ctx context.Context, tx store.Store) error {
		order, err := tx.Orders().LockByID(ctx, orderId)
		if err != nil {
			return err
		}
		if isTerminal(order.Status) {
			return app_error.NotModifiable(constants.ORDER_NOT_MODIFIABLE)
		}
		if order.Status == status {
			return nil
		}
		if !canTransition(order.Status, status) {
			return app_error.Validation(fmt.Sprintf("%s: %s -> %s", constants.INVALID_ORDER_STATUS, order.Status, status))
		}
		return tx.Orders().SetStatus(ctx, orderId, status, nil)
	})
	if err != nil {
		return nil, s.fail("update order status", err)
	}
	rlog.Infof("Order %d state was set to %s", orderId, status)
	return s.Get(ctx, orderId)
}

func (s *Service) Get(ctx context.Context, orderId uint) (*model.Order, error) {
	order, err := s.st.Orders().FindByID(ctx, orderId, store.QueryOptions{})
	if err != nil {
		return nil, s.fail("get order", err)
	}
	return order, nil
}

// ListByTable returns the open orders of a live table, newest first.
func (s *Service) ListByTable(ctx context.Context, tableId uint) ([]model.Order, error) {
	orders, err := s.st.Orders().ListActiveByTable(ctx, tableId)
	if err != nil {
		return nil, s.fail("list table orders", err)
	}
	if len(orders) == 0 {
		if _, err := s.st.Tables().FindByID(ctx, tableId, store.QueryOptions{}); err != nil {
			return nil, util.ToAppError(err, constants.TABLE_NOT_FOUND)
		}
	}
	return orders, nil
}
