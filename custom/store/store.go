package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/romana/rlog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"restaurant_pos/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate key")
)

// QueryOptions is taken by every read. Soft-deleted rows are skipped unless IncludeDeleted is set.
type QueryOptions struct {
	IncludeDeleted bool
	Offset         int
	Limit          int
}

// CrudRepository is the capability set shared by reference-data repositories.
type CrudRepository[T any] interface {
	Create(ctx context.Context, entity *T) error
	FindByID(ctx context.Context, id uint, opts QueryOptions) (*T, error)
	List(ctx context.Context, opts QueryOptions) ([]T, error)
	Update(ctx context.Context, id uint, fields map[string]interface{}) error
	SoftDelete(ctx context.Context, id uint, at time.Time) error
}

type CategoryRepository interface {
	CrudRepository[model.Category]
	FindByName(ctx context.Context, name string) (*model.Category, error)
}

type UserRepository interface {
	CrudRepository[model.User]
	FindByUsername(ctx context.Context, username string) (*model.User, error)
}

type MenuFilter struct {
	Name       string
	CategoryID uint
	Active     *bool
	Offset     int
	Limit      int
}

type MenuRepository interface {
	Create(ctx context.Context, item *model.MenuItem) error
	FindByID(ctx context.Context, id uint, opts QueryOptions) (*model.MenuItem, error)
	// FindAvailable returns the active, live items among ids.
	FindAvailable(ctx context.Context, ids []uint) ([]model.MenuItem, error)
	Search(ctx context.Context, filter MenuFilter) ([]model.MenuItem, int64, error)
	Update(ctx context.Context, id uint, fields map[string]interface{}) error
	SoftDelete(ctx context.Context, id uint, at time.Time) error
}

type TableRepository interface {
	Create(ctx context.Context, table *model.Table) error
	// FindByID hydrates the live, non-completed orders of the table.
	FindByID(ctx context.Context, id uint, opts QueryOptions) (*model.Table, error)
	// LockByID reads a live table row and holds it until the transaction ends.
	LockByID(ctx context.Context, id uint) (*model.Table, error)
	FindByNumber(ctx context.Context, number int, opts QueryOptions) (*model.Table, error)
	List(ctx context.Context, opts QueryOptions) ([]model.Table, error)
	Update(ctx context.Context, id uint, fields map[string]interface{}) error
	SetStatus(ctx context.Context, id uint, status string) error
	SoftDelete(ctx context.Context, id uint, at time.Time) error
}

type OrderRepository interface {
	// Create inserts the order with its Items.
	Create(ctx context.Context, order *model.Order) error
	// FindByID hydrates live items with menu items, table, user and payment.
	FindByID(ctx context.Context, id uint, opts QueryOptions) (*model.Order, error)
	// LockByID reads a live order row without relations and holds it until the transaction ends.
	LockByID(ctx context.Context, id uint) (*model.Order, error)
	ListActiveByTable(ctx context.Context, tableID uint) ([]model.Order, error)
	CountActiveByTable(ctx context.Context, tableID uint) (int64, error)
	ActiveItems(ctx context.Context, orderID uint) ([]model.OrderItem, error)
	InsertItems(ctx context.Context, items []model.OrderItem) error
	UpdateItem(ctx context.Context, itemID uint, fields map[string]interface{}) error
	SoftDeleteItems(ctx context.Context, itemIDs []uint, at time.Time) error
	UpdateTotal(ctx context.Context, id uint, total decimal.Decimal) error
	SetStatus(ctx context.Context, id uint, status string, endTime *time.Time) error
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	FindByOrderID(ctx context.Context, orderID uint) (*model.Payment, error)
}

// Window is an inclusive time range.
type Window struct {
	Start time.Time
	End   time.Time
}

type RevenueTotals struct {
	Total  decimal.Decimal
	Orders int64
}

// BucketRow carries the local wall-clock start of a bucket. Empty buckets are not returned.
type BucketRow struct {
	Slot   time.Time
	Total  decimal.Decimal
	Orders int64
}

type ItemSales struct {
	MenuItemID uint            `json:"menu_item_id"`
	Name       string          `json:"name"`
	Quantity   int64           `json:"quantity"`
	Revenue    decimal.Decimal `json:"revenue"`
}

type MethodShare struct {
	Method string          `json:"method"`
	Count  int64           `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

type RevenueRepository interface {
	Totals(ctx context.Context, w Window) (RevenueTotals, error)
	// Buckets groups by unit ("hour" or "day") in the given location.
	Buckets(ctx context.Context, w Window, unit string, loc *time.Location) ([]BucketRow, error)
	TopItems(ctx context.Context, w Window, limit int) ([]ItemSales, error)
	PaymentMethods(ctx context.Context, w Window) ([]MethodShare, error)
}

type Store interface {
	Categories() CategoryRepository
	Users() UserRepository
	Menu() MenuRepository
	Tables() TableRepository
	Orders() OrderRepository
	Payments() PaymentRepository
	Revenue() RevenueRepository
	// Transaction runs fn against a store bound to one atomic transaction.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type TxPolicy struct {
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
}

var DefaultTxPolicy = TxPolicy{
	Timeout:    30 * time.Second,
	MaxRetries: 3,
	Backoff:    20 * time.Millisecond,
}

// RunInTx runs fn in a transaction bounded by policy.Timeout and repeats it on retryable failures.
// fn receives the bounded context and must use it for every repository call.
func RunInTx(ctx context.Context, st Store, policy TxPolicy, name string, fn func(ctx context.Context, tx Store) error) error {
	var err error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			rlog.Warnf("Retrying %s transaction (attempt %d): %s", name, attempt+1, err.Error())
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(policy.Backoff * time.Duration(attempt)):
			}
		}
		err = runOnce(ctx, st, policy.Timeout, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
	}
	return err
}

func runOnce(ctx context.Context, st Store, timeout time.Duration, fn func(ctx context.Context, tx Store) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	err := st.Transaction(ctx, func(tx Store) error {
		return fn(ctx, tx)
	})
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !IsTimeout(err) {
		// Drivers report an expired transaction as a closed connection or ErrTxDone.
		return fmt.Errorf("%w: %s", context.DeadlineExceeded, err.Error())
	}
	return err
}

// IsRetryable reports serialization failures, deadlocks and order number collisions.
func IsRetryable(err error) bool {
	switch sqlState(err) {
	case "40001", "40P01":
		return true
	}
	return errors.Is(err, ErrRetry)
}

// ErrRetry may be wrapped by transaction bodies that want another attempt.
var ErrRetry = errors.New("transaction should be retried")

func IsUniqueViolation(err error) bool {
	if errors.Is(err, ErrDuplicate) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return sqlState(err) == "23505"
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
