package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/DATA-DOG/go-sqlmock.v1"
	"restaurant_pos/constants"
	"restaurant_pos/custom/app_error"
	"restaurant_pos/custom/order"
	"restaurant_pos/custom/receipt"
	"restaurant_pos/custom/store"
	"restaurant_pos/custom/util"
	"restaurant_pos/model"
)

var (
	paidAt       = time.Date(2024, 3, 1, 13, 30, 0, 0, time.UTC)
	orderColumns = []string{"id", "order_number", "table_id", "user_id", "total_amount", "status", "start_time"}
	tableColumns = []string{"id", "number", "capacity", "status"}
	userColumns  = []string{"id", "username", "full_name", "role"}
)

func newSQLService(t *testing.T) (*Service, sqlmock.Sqlmock, *[]*model.Invoice, func()) {
	sqlDB, st, mock := util.DbMock(t)
	orders, err := order.NewService(st, order.Config{
		TxPolicy: store.TxPolicy{Timeout: 5 * time.Second, MaxRetries: 3, Backoff: time.Millisecond},
		Now:      func() time.Time { return paidAt },
	})
	require.NoError(t, err)
	printed := make([]*model.Invoice, 0)
	sink := receipt.SinkFunc(func(ctx context.Context, invoice *model.Invoice) error {
		printed = append(printed, invoice)
		return nil
	})
	return NewService(st, orders, receipt.NewDispatcher(sink, time.Second, 0)), mock, &printed, func() { sqlDB.Close() }
}

func expectLockedOrder(mock sqlmock.Sqlmock, status string) {
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE id = .+ AND deleted_at IS NULL .+ FOR UPDATE`).
		WithArgs(10, 1).
		WillReturnRows(sqlmock.NewRows(orderColumns).AddRow(10, "ORD7", 3, 1, "100000", status, paidAt.Add(-time.Hour)))
}

func expectCashier(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = .+ ORDER BY "users"."id"`).
		WithArgs(2, 1).
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(2, "alice", "Alice Nguyen", constants.USER_ROLE_ADMIN))
}

func TestGenerateInvoiceSQL(t *testing.T) {
	service, mock, printed, done := newSQLService(t)
	defer done()

	expectLockedOrder(mock, constants.ORDER_STATUS_PENDING)
	expectCashier(mock)
	mock.ExpectQuery(`INSERT INTO "payments" .+ RETURNING "id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(40))
	mock.ExpectQuery(`SELECT \* FROM "tables" WHERE id = .+ AND deleted_at IS NULL .+ FOR UPDATE`).
		WithArgs(3, 1).
		WillReturnRows(sqlmock.NewRows(tableColumns).AddRow(3, 5, 4, constants.TABLE_STATUS_OCCUPIED))
	mock.ExpectExec(`UPDATE "orders" SET "end_time"=.+,"status"=.+,"updated_at"=.+ WHERE id = .+ AND deleted_at IS NULL`).
		WithArgs(paidAt, constants.ORDER_STATUS_COMPLETED, sqlmock.AnyArg(), 10).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "orders" WHERE table_id = .+ AND status <> .+ AND deleted_at IS NULL`).
		WithArgs(3, constants.ORDER_STATUS_COMPLETED).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`UPDATE "tables" SET "status"=.+,"updated_at"=.+ WHERE id = .+ AND deleted_at IS NULL`).
		WithArgs(constants.TABLE_STATUS_AVAILABLE, sqlmock.AnyArg(), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE .+`).
		WillReturnRows(sqlmock.NewRows(append(orderColumns, "end_time")).
			AddRow(10, "ORD7", 3, 1, "100000", constants.ORDER_STATUS_COMPLETED, paidAt.Add(-time.Hour), paidAt))
	mock.ExpectQuery(`SELECT \* FROM "order_items" WHERE .+"order_items"."order_id" = .+`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "menu_item_id", "quantity", "price", "notes"}).
			AddRow(31, 10, 2, 2, "50000", "extra herbs"))
	mock.ExpectQuery(`SELECT \* FROM "menu_items" WHERE "menu_items"."id" .+`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "category_id", "active"}).AddRow(2, "Pho", "50000", 1, true))
	mock.ExpectQuery(`SELECT \* FROM "payments" WHERE "payments"."order_id" = .+`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "amount", "method", "status", "cashier_id"}).
			AddRow(40, 10, "100000", constants.PAYMENT_METHOD_CARD, constants.PAYMENT_STATUS_COMPLETED, 2))
	mock.ExpectQuery(`SELECT \* FROM "tables" WHERE "tables"."id" = .+`).
		WillReturnRows(sqlmock.NewRows(tableColumns).AddRow(3, 5, 4, constants.TABLE_STATUS_AVAILABLE))
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE "users"."id" = .+`).
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(1, "bao", "Bao Tran", constants.USER_ROLE_STAFF))
	mock.ExpectCommit()

	result, err := service.GenerateInvoice(context.Background(), 2, 10, constants.PAYMENT_METHOD_CARD)

	require.Nil(t, err)
	assert.Equal(t, "ORD7", result.Invoice.OrderNumber)
	assert.Equal(t, 5, result.Invoice.TableNumber)
	assert.Equal(t, "Alice Nguyen", result.Invoice.Cashier)
	assert.Equal(t, "100000.00", result.Invoice.Subtotal.StringFixed(2))
	require.Len(t, result.Invoice.Items, 1)
	assert.Equal(t, "Pho", result.Invoice.Items[0].Name)
	assert.True(t, result.Receipt.Printed)
	assert.Len(t, *printed, 1)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestGenerateInvoiceSQLDuplicatePayment(t *testing.T) {
	service, mock, printed, done := newSQLService(t)
	defer done()

	expectLockedOrder(mock, constants.ORDER_STATUS_PENDING)
	expectCashier(mock)
	mock.ExpectQuery(`INSERT INTO "payments" .+`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	result, err := service.GenerateInvoice(context.Background(), 2, 10, constants.PAYMENT_METHOD_CASH)

	assert.Nil(t, result)
	assert.True(t, app_error.IsKind(err, app_error.KindAlreadyCompleted))
	assert.Empty(t, *printed)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestGenerateInvoiceSQLRollsBackCompletion(t *testing.T) {
	service, mock, printed, done := newSQLService(t)
	defer done()

	expectLockedOrder(mock, constants.ORDER_STATUS_PENDING)
	expectCashier(mock)
	mock.ExpectQuery(`INSERT INTO "payments" .+ RETURNING "id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(40))
	mock.ExpectQuery(`SELECT \* FROM "tables" WHERE id = .+ AND deleted_at IS NULL .+ FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(tableColumns).AddRow(3, 5, 4, constants.TABLE_STATUS_OCCUPIED))
	mock.ExpectExec(`UPDATE "orders" SET "end_time"=.+,"status"=.+`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	result, err := service.GenerateInvoice(context.Background(), 2, 10, constants.PAYMENT_METHOD_CASH)

	assert.Nil(t, result)
	assert.True(t, app_error.IsKind(err, app_error.KindSystem))
	assert.Empty(t, *printed)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestGenerateInvoiceSQLAlreadyCompleted(t *testing.T) {
	service, mock, _, done := newSQLService(t)
	defer done()

	expectLockedOrder(mock, constants.ORDER_STATUS_COMPLETED)
	mock.ExpectRollback()

	_, err := service.GenerateInvoice(context.Background(), 2, 10, constants.PAYMENT_METHOD_CASH)

	assert.True(t, app_error.IsKind(err, app_error.KindAlreadyCompleted))
	assert.Nil(t, mock.ExpectationsWereMet())
}
