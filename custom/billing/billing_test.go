package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"restaurant_pos/constants"
	"restaurant_pos/custom/app_error"
	"restaurant_pos/custom/order"
	"restaurant_pos/custom/receipt"
	"restaurant_pos/custom/store"
	"restaurant_pos/custom/store/memstore"
	"restaurant_pos/custom/util"
	"restaurant_pos/model"
)

type fixture struct {
	st      *memstore.Store
	orders  *order.Service
	service *Service
	waiter  model.User
	cashier model.User
	table   model.Table
	pho     model.MenuItem
	printed []*model.Invoice
}

func newFixture(t *testing.T, sinkErr error) *fixture {
	ctx := context.Background()
	st := memstore.New()
	f := &fixture{st: st}

	f.waiter = model.User{Username: "bao", FullName: "Bao Tran", Role: constants.USER_ROLE_STAFF}
	require.NoError(t, st.Users().Create(ctx, &f.waiter))
	f.cashier = model.User{Username: "alice", FullName: "Alice Nguyen", Role: constants.USER_ROLE_ADMIN}
	require.NoError(t, st.Users().Create(ctx, &f.cashier))
	category := model.Category{Name: "Noodles"}
	require.NoError(t, st.Categories().Create(ctx, &category))
	f.pho = model.MenuItem{Name: "Pho", Price: decimal.RequireFromString("50000"), CategoryID: category.ID, Active: true}
	require.NoError(t, st.Menu().Create(ctx, &f.pho))
	f.table = model.Table{Number: 5, Capacity: 4, Status: constants.TABLE_STATUS_AVAILABLE}
	require.NoError(t, st.Tables().Create(ctx, &f.table))

	orders, err := order.NewService(st, order.Config{
		TxPolicy: store.TxPolicy{Timeout: 5 * time.Second, MaxRetries: 3, Backoff: time.Millisecond},
	})
	require.NoError(t, err)
	f.orders = orders

	var mu sync.Mutex
	sink := receipt.SinkFunc(func(ctx context.Context, invoice *model.Invoice) error {
		if sinkErr != nil {
			return sinkErr
		}
		mu.Lock()
		defer mu.Unlock()
		f.printed = append(f.printed, invoice)
		return nil
	})
	f.service = NewService(st, orders, receipt.NewDispatcher(sink, time.Second, 1).WithBackoff(time.Millisecond))
	return f
}

func (f *fixture) openOrder(t *testing.T, quantity int) *model.Order {
	notes := "extra herbs"
	created, err := f.orders.Create(context.Background(), f.waiter.ID, f.table.ID,
		[]order.LineRequest{{MenuItemId: f.pho.ID, Quantity: quantity, Notes: &notes}})
	require.NoError(t, err)
	return created
}

func TestGenerateInvoiceEndToEnd(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	opened := f.openOrder(t, 2)

	result, err := f.service.GenerateInvoice(ctx, f.cashier.ID, opened.ID, constants.PAYMENT_METHOD_CASH)
	require.NoError(t, err)

	invoice := result.Invoice
	assert.Equal(t, opened.OrderNumber, invoice.OrderNumber)
	assert.Equal(t, 5, invoice.TableNumber)
	assert.True(t, decimal.RequireFromString("100000").Equal(invoice.Subtotal))
	require.Len(t, invoice.Items, 1)
	assert.Equal(t, "Pho", invoice.Items[0].Name)
	assert.Equal(t, 2, invoice.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("50000").Equal(invoice.Items[0].Price))
	assert.True(t, decimal.RequireFromString("100000").Equal(invoice.Items[0].Subtotal))
	assert.Equal(t, "extra herbs", *invoice.Items[0].Notes)
	assert.Equal(t, constants.PAYMENT_METHOD_CASH, invoice.PaymentMethod)
	assert.Equal(t, constants.PAYMENT_STATUS_COMPLETED, invoice.PaymentStatus)
	assert.Equal(t, "Alice Nguyen", invoice.Cashier)
	assert.True(t, result.Receipt.Printed)
	assert.Len(t, f.printed, 1)

	settled, err := f.st.Orders().FindByID(ctx, opened.ID, store.QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, constants.ORDER_STATUS_COMPLETED, settled.Status)
	assert.NotNil(t, settled.EndTime)
	require.NotNil(t, settled.Payment)
	assert.True(t, settled.TotalAmount.Equal(settled.Payment.Amount))
	assert.Equal(t, f.cashier.ID, *settled.Payment.CashierID)

	table, err := f.st.Tables().FindByID(ctx, f.table.ID, store.QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, constants.TABLE_STATUS_AVAILABLE, table.Status)

	_, err = f.service.GenerateInvoice(ctx, f.cashier.ID, opened.ID, constants.PAYMENT_METHOD_CARD)
	assert.True(t, app_error.IsKind(err, app_error.KindAlreadyCompleted))
}

func TestGenerateInvoiceRejections(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	opened := f.openOrder(t, 1)

	_, err := f.service.GenerateInvoice(ctx, f.cashier.ID, opened.ID, "BITCOIN")
	assert.True(t, app_error.IsKind(err, app_error.KindValidation))
	_, err = f.service.GenerateInvoice(ctx, f.cashier.ID, 9999, constants.PAYMENT_METHOD_CASH)
	assert.True(t, app_error.IsKind(err, app_error.KindNotFound))

	_, err = f.orders.Complete(ctx, opened.ID)
	require.NoError(t, err)
	_, err = f.service.GenerateInvoice(ctx, f.cashier.ID, opened.ID, constants.PAYMENT_METHOD_CASH)
	assert.True(t, app_error.IsKind(err, app_error.KindAlreadyCompleted))

	_, err = f.st.Payments().FindByOrderID(ctx, opened.ID)
	assert.True(t, store.IsNotFound(err))
}

func TestGenerateInvoiceSinkFailureKeepsPayment(t *testing.T) {
	f := newFixture(t, errors.New("printer offline"))
	ctx := context.Background()
	opened := f.openOrder(t, 3)

	result, err := f.service.GenerateInvoice(ctx, f.cashier.ID, opened.ID, constants.PAYMENT_METHOD_E_WALLET)
	require.NoError(t, err)
	assert.False(t, result.Receipt.Printed)
	assert.Equal(t, "printer offline", result.Receipt.Error)

	payment, err := f.st.Payments().FindByOrderID(ctx, opened.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("150000").Equal(payment.Amount))
}

func TestGenerateInvoiceCashierFallsBackToOpener(t *testing.T) {
	f := newFixture(t, nil)
	opened := f.openOrder(t, 1)

	result, err := f.service.GenerateInvoice(context.Background(), 4242, opened.ID, constants.PAYMENT_METHOD_CARD)
	require.NoError(t, err)
	assert.Equal(t, "Bao Tran", result.Invoice.Cashier)

	payment, err := f.st.Payments().FindByOrderID(context.Background(), opened.ID)
	require.NoError(t, err)
	assert.Nil(t, payment.CashierID)
}

func TestGenerateInvoiceConcurrently(t *testing.T) {
	f := newFixture(t, nil)
	opened := f.openOrder(t, 1)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, alreadyCompleted := 0, 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.GenerateInvoice(context.Background(), f.cashier.ID, opened.ID, constants.PAYMENT_METHOD_CASH)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if app_error.IsKind(err, app_error.KindAlreadyCompleted) {
				alreadyCompleted++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 7, alreadyCompleted)
}

func TestGenerateInvoiceKeepsTableOccupiedByOtherOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	first := f.openOrder(t, 1)
	// A second open order on the same table, as left by a split bill.
	second := model.Order{OrderNumber: "ORD-SPLIT", TableID: f.table.ID, UserID: f.waiter.ID,
		Status: constants.ORDER_STATUS_PREPARING, TotalAmount: decimal.RequireFromString("50000"),
		Items: []model.OrderItem{{MenuItemID: f.pho.ID, Quantity: 1, Price: decimal.RequireFromString("50000")}}}
	require.NoError(t, f.st.Orders().Create(ctx, &second))

	_, err := f.service.GenerateInvoice(ctx, f.cashier.ID, first.ID, constants.PAYMENT_METHOD_CASH)
	require.NoError(t, err)
	table, err := f.st.Tables().FindByID(ctx, f.table.ID, store.QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, constants.TABLE_STATUS_OCCUPIED, table.Status)
}

func TestReprint(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	opened := f.openOrder(t, 2)

	_, err := f.service.Reprint(ctx, opened.ID)
	assert.True(t, app_error.IsKind(err, app_error.KindNotFound))

	paid, err := f.service.GenerateInvoice(ctx, f.cashier.ID, opened.ID, constants.PAYMENT_METHOD_BANK_TRANSFER)
	require.NoError(t, err)
	again, err := f.service.Reprint(ctx, opened.ID)
	require.NoError(t, err)
	assert.Equal(t, paid.Invoice, again.Invoice)
	assert.Len(t, f.printed, 2)
}

func TestGenerateInvoiceHandler(t *testing.T) {
	f := newFixture(t, nil)
	opened := f.openOrder(t, 2)
	handlerCtx := HandlerContext{}
	handlerCtx.InitialHandlerContext(f.service)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "http://localhosts/pos/generate_invoice", bytes.NewBufferString(`{"order_id":1,"payment_method":"CASH"}`))
	handlerCtx.GenerateInvoice(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body, _ := json.Marshal(GenerateInvoiceRequest{OrderId: opened.ID, PaymentMethod: constants.PAYMENT_METHOD_CASH})
	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "http://localhosts/pos/generate_invoice", bytes.NewBuffer(body))
	r.Header.Set(util.HEADER_USER_ID, "2")
	handlerCtx.GenerateInvoice(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	resp := struct {
		Data Result `json:"data"`
	}{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Receipt.Printed)
	assert.Equal(t, "100000.00", resp.Data.Invoice.Subtotal.StringFixed(2))

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "http://localhosts/pos/generate_invoice", bytes.NewBuffer(body))
	r.Header.Set(util.HEADER_USER_ID, "2")
	handlerCtx.GenerateInvoice(w, r)
	assert.Equal(t, http.StatusConflict, w.Code)
	errResp := util.ErrorResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, app_error.CODE_ALREADY_COMPLETED, errResp.ErrorCode)
}
