package table

import (
	"context"
	"time"

	"github.com/romana/rlog"
	"restaurant_pos/constants"
	"restaurant_pos/custom/app_error"
	"restaurant_pos/custom/store"
	"restaurant_pos/custom/util"
	"restaurant_pos/model"
)

type Service struct {
	st       store.Store
	txPolicy store.TxPolicy
	now      func() time.Time
}

// CurrentOrder is a table with the newest open order on it.
type CurrentOrder struct {
	Table          *model.Table `json:"table"`
	Order          *model.Order `json:"order"`
	ElapsedMinutes int          `json:"elapsed_minutes"`
}

func NewService(st store.Store, txPolicy store.TxPolicy, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{st: st, txPolicy: txPolicy, now: now}
}

func validate(number, capacity int) error {
	if number < 1 {
		return app_error.Validation("table number must be at least 1")
	}
	if capacity < 1 {
		return app_error.Validation("table capacity must be at least 1")
	}
	return nil
}

func fail(err error) error {
	if store.IsUniqueViolation(err) {
		return app_error.Conflict(constants.TABLE_NUMBER_EXISTS)
	}
	appErr := util.ToAppError(err, constants.TABLE_NOT_FOUND)
	if app_error.IsKind(appErr, app_error.KindSystem) {
		rlog.Error("Table operation failed: " + err.Error())
	}
	return appErr
}

// ensureNumberFree checks live tables only. The partial unique index backs this up under races.
func ensureNumberFree(ctx context.Context, tx store.Store, number int, except uint) error {
	existing, err := tx.Tables().FindByNumber(ctx, number, store.QueryOptions{})
	if err != nil {
		if store.IsNotFound(err) {
			return nil
		}
		return err
	}
	if existing.ID != except {
		return app_error.Conflict(constants.TABLE_NUMBER_EXISTS)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, number, capacity int) (*model.Table, error) {
	if err := validate(number, capacity); err != nil {
		return nil, err
	}
	table := model.Table{Number: number, Capacity: capacity, Status: constants.TABLE_STATUS_AVAILABLE}
	err := store.RunInTx(ctx, s.st, s.txPolicy, "create table", func(ctx context.Context, tx store.Store) error {
		if err := ensureNumberFree(ctx, tx, number, 0); err != nil {
			return err
		}
		return tx.Tables().Create(ctx, &table)
	})
	if err != nil {
		return nil, fail(err)
	}
	rlog.Infof("Table %d was created with capacity %d", table.Number, table.Capacity)
	return &table, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*model.Table, error) {
	table, err := s.st.Tables().FindByID(ctx, id, store.QueryOptions{})
	if err != nil {
		return nil, fail(err)
	}
	return table, nil
}

func (s *Service) List(ctx context.Context) ([]model.Table, error) {
	tables, err := s.st.Tables().List(ctx, store.QueryOptions{})
	if err != nil {
		return nil, fail(err)
	}
	return tables, nil
}

// Update edits number and capacity. Nil fields are left unchanged.
func (s *Service) Update(ctx context.Context, id uint, number, capacity *int) (*model.Table, error) {
	err := store.RunInTx(ctx, s.st, s.txPolicy, "update table", func(ctx context.Context, tx store.Store) error {
		current, err := tx.Tables().LockByID(ctx, id)
		if err != nil {
			return err
		}
		newNumber, newCapacity := current.Number, current.Capacity
		if number != nil {
			newNumber = *number
		}
		if capacity != nil {
			newCapacity = *capacity
		}
		if err := validate(newNumber, newCapacity); err != nil {
			return err
		}
		fields := map[string]interface{}{}
		if newNumber != current.Number {
			if err := ensureNumberFree(ctx, tx, newNumber, id); err != nil {
				return err
			}
			fields["number"] = newNumber
		}
		if newCapacity != current.Capacity {
			fields["capacity"] = newCapacity
		}
		if len(fields) == 0 {
			return nil
		}
		return tx.Tables().Update(ctx, id, fields)
	})
	if err != nil {
		return nil, fail(err)
	}
	return s.Get(ctx, id)
}

// OverrideStatus writes a table status directly without checking the orders on it.
// It is an administrative escape hatch and may break the OCCUPIED/open-order pairing.
func (s *Service) OverrideStatus(ctx context.Context, id uint, status string) (*model.Table, error) {
	if !util.Contains(constants.TABLE_STATUSES, status) {
		return nil, app_error.Validation("invalid table status: " + status)
	}
	err := store.RunInTx(ctx, s.st, s.txPolicy, "override table status", func(ctx context.Context, tx store.Store) error {
		current, err := tx.Tables().LockByID(ctx, id)
		if err != nil {
			return err
		}
		open, err := tx.Orders().CountActiveByTable(ctx, id)
		if err != nil {
			return err
		}
		rlog.Warnf("Unsafe status override on table %d: %s -> %s with %d open orders", current.Number, current.Status, status, open)
		return tx.Tables().SetStatus(ctx, id, status)
	})
	if err != nil {
		return nil, fail(err)
	}
	return s.Get(ctx, id)
}

// Delete soft-deletes the table even when orders are still open on it.
func (s *Service) Delete(ctx context.Context, id uint) error {
	err := store.RunInTx(ctx, s.st, s.txPolicy, "delete table", func(ctx context.Context, tx store.Store) error {
		current, err := tx.Tables().LockByID(ctx, id)
		if err != nil {
			return err
		}
		open, err := tx.Orders().CountActiveByTable(ctx, id)
		if err != nil {
			return err
		}
		if open > 0 {
			rlog.Warnf("Deleting table %d with %d open orders", current.Number, open)
		}
		return tx.Tables().SoftDelete(ctx, id, s.now())
	})
	if err != nil {
		return fail(err)
	}
	rlog.Infof("Table %d was deleted", id)
	return nil
}

// CurrentOrder returns the table with its newest open order, or a nil order when it has none.
func (s *Service) CurrentOrder(ctx context.Context, id uint) (*CurrentOrder, error) {
	table, err := s.st.Tables().FindByID(ctx, id, store.QueryOptions{})
	if err != nil {
		return nil, fail(err)
	}
	orders, err := s.st.Orders().ListActiveByTable(ctx, id)
	if err != nil {
		return nil, fail(err)
	}
	table.Orders = nil
	current := &CurrentOrder{Table: table}
	if len(orders) > 0 {
		order, err := s.st.Orders().FindByID(ctx, orders[0].ID, store.QueryOptions{})
		if err != nil {
			return nil, util.ToAppError(err, constants.ORDER_NOT_FOUND)
		}
		current.Order = order
		current.ElapsedMinutes = int(s.now().Sub(order.StartTime).Minutes())
	}
	return current, nil
}
