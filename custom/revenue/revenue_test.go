package revenue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/DATA-DOG/go-sqlmock.v1"
	"restaurant_pos/constants"
	"restaurant_pos/custom/app_error"
	"restaurant_pos/custom/store/memstore"
	"restaurant_pos/custom/util"
	"restaurant_pos/model"
)

type fixture struct {
	st    *memstore.Store
	clock time.Time
	menu  []model.MenuItem
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{clock: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	f.st = memstore.New().WithClock(func() time.Time { return f.clock })
	ctx := context.Background()
	for _, item := range []struct {
		name  string
		price string
	}{{"Pho", "10.00"}, {"Tea", "2.50"}} {
		menuItem := model.MenuItem{Name: item.name, Price: decimal.RequireFromString(item.price), CategoryID: 1, Active: true}
		require.NoError(t, f.st.Menu().Create(ctx, &menuItem))
		f.menu = append(f.menu, menuItem)
	}
	return f
}

// order records an order created at the given instant, settled with method when it is not empty.
func (f *fixture) order(t *testing.T, at time.Time, status, method string, lines map[int]int) model.Order {
	ctx := context.Background()
	f.clock = at
	order := model.Order{
		OrderNumber: "ORD" + at.Format("20060102150405.000000"),
		TableID:     1,
		UserID:      1,
		Status:      status,
		StartTime:   at,
		TotalAmount: decimal.Zero,
	}
	for index, quantity := range lines {
		item := model.OrderItem{MenuItemID: f.menu[index].ID, Quantity: quantity, Price: f.menu[index].Price}
		order.Items = append(order.Items, item)
		order.TotalAmount = order.TotalAmount.Add(item.Subtotal())
	}
	require.NoError(t, f.st.Orders().Create(ctx, &order))
	if method != "" {
		payment := model.Payment{OrderID: order.ID, Amount: order.TotalAmount, Method: method, Status: constants.PAYMENT_STATUS_COMPLETED}
		require.NoError(t, f.st.Payments().Create(ctx, &payment))
	}
	return order
}

func (f *fixture) service(t *testing.T, timezone string, now time.Time) *Service {
	service, err := NewService(f.st, timezone, 0, func() time.Time { return now })
	require.NoError(t, err)
	return service
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestReportDenseDailySeries(t *testing.T) {
	f := newFixture(t)
	day := func(d, h int) time.Time { return time.Date(2024, 3, d, h, 0, 0, 0, time.UTC) }
	f.order(t, day(1, 9), constants.ORDER_STATUS_COMPLETED, constants.PAYMENT_METHOD_CASH, map[int]int{0: 1})
	f.order(t, day(3, 20), constants.ORDER_STATUS_COMPLETED, constants.PAYMENT_METHOD_CARD, map[int]int{0: 2, 1: 2})
	f.order(t, day(2, 12), constants.ORDER_STATUS_PENDING, "", map[int]int{0: 5})

	report, err := f.service(t, "UTC", day(10, 0)).Report(context.Background(), Query{
		Start: timePtr(day(1, 0)),
		End:   timePtr(time.Date(2024, 3, 3, 23, 59, 59, 0, time.UTC)),
	})
	require.NoError(t, err)

	assert.Equal(t, UNIT_DAY, report.Granularity)
	require.Len(t, report.Series, 3)
	assert.True(t, decimal.RequireFromString("10").Equal(report.Series[0].Revenue))
	assert.True(t, decimal.Zero.Equal(report.Series[1].Revenue))
	assert.Equal(t, int64(0), report.Series[1].Orders)
	assert.True(t, decimal.RequireFromString("25").Equal(report.Series[2].Revenue))
	assert.Equal(t, day(2, 0), report.Series[1].Start)
	assert.Equal(t, "10.00", report.Series[0].AverageOrderValue.StringFixed(2))
	assert.True(t, report.Series[1].AverageOrderValue.IsZero())
	assert.Equal(t, "25.00", report.Series[2].AverageOrderValue.StringFixed(2))

	assert.True(t, decimal.RequireFromString("35").Equal(report.TotalRevenue))
	assert.Equal(t, int64(2), report.OrderCount)
	assert.Equal(t, "17.50", report.AverageOrderValue.StringFixed(2))

	require.Len(t, report.TopItems, 2)
	assert.Equal(t, "Pho", report.TopItems[0].Name)
	assert.Equal(t, int64(3), report.TopItems[0].Quantity)
	assert.True(t, decimal.RequireFromString("30").Equal(report.TopItems[0].Revenue))

	require.Len(t, report.PaymentMethods, 2)
	assert.Equal(t, constants.PAYMENT_METHOD_CARD, report.PaymentMethods[0].Method)
	assert.True(t, decimal.RequireFromString("25").Equal(report.PaymentMethods[0].Amount))
}

func TestReportEmptyWindowIsAllZero(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2024, 3, 10, 15, 20, 0, 0, time.UTC)

	report, err := f.service(t, "UTC", now).Report(context.Background(), Query{Period: PERIOD_MONTH})
	require.NoError(t, err)

	require.Len(t, report.Series, 30)
	for _, bucket := range report.Series {
		assert.True(t, bucket.Revenue.IsZero())
	}
	assert.True(t, report.AverageOrderValue.IsZero())
	assert.Empty(t, report.TopItems)
	assert.Equal(t, time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), report.Start)
}

func TestReportLastDayIsHourly(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2024, 3, 10, 15, 20, 0, 0, time.UTC)
	f.order(t, time.Date(2024, 3, 9, 15, 59, 0, 0, time.UTC), constants.ORDER_STATUS_COMPLETED, "", map[int]int{0: 1})
	f.order(t, time.Date(2024, 3, 9, 16, 0, 0, 0, time.UTC), constants.ORDER_STATUS_COMPLETED, "", map[int]int{1: 1})
	f.order(t, time.Date(2024, 3, 10, 15, 5, 0, 0, time.UTC), constants.ORDER_STATUS_COMPLETED, "", map[int]int{1: 2})

	report, err := f.service(t, "UTC", now).Report(context.Background(), Query{})
	require.NoError(t, err)

	assert.Equal(t, UNIT_HOUR, report.Granularity)
	require.Len(t, report.Series, 24)
	assert.Equal(t, time.Date(2024, 3, 9, 16, 0, 0, 0, time.UTC), report.Series[0].Start)
	assert.True(t, decimal.RequireFromString("2.50").Equal(report.Series[0].Revenue))
	assert.True(t, decimal.RequireFromString("5.00").Equal(report.Series[23].Revenue))
	assert.Equal(t, int64(2), report.OrderCount)
}

func TestReportAverageIsRounded(t *testing.T) {
	f := newFixture(t)
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	f.order(t, at, constants.ORDER_STATUS_COMPLETED, "", map[int]int{0: 1})
	f.order(t, at.Add(time.Minute), constants.ORDER_STATUS_COMPLETED, "", map[int]int{1: 1})
	f.order(t, at.Add(2*time.Minute), constants.ORDER_STATUS_COMPLETED, "", map[int]int{1: 1})

	report, err := f.service(t, "UTC", at).Report(context.Background(), Query{Start: timePtr(at), End: timePtr(at.Add(time.Hour))})
	require.NoError(t, err)
	// 15.00 / 3
	assert.Equal(t, "5.00", report.AverageOrderValue.StringFixed(2))
	require.Len(t, report.Series, 2)
	assert.Equal(t, int64(3), report.Series[0].Orders)
	assert.Equal(t, "5.00", report.Series[0].AverageOrderValue.StringFixed(2))
	assert.True(t, report.Series[1].AverageOrderValue.IsZero())
}

func TestReportAlignsToTimeZone(t *testing.T) {
	f := newFixture(t)
	// 01:30 on March 10th in Ho Chi Minh City.
	f.order(t, time.Date(2024, 3, 9, 18, 30, 0, 0, time.UTC), constants.ORDER_STATUS_COMPLETED, "", map[int]int{0: 1})
	now := time.Date(2024, 3, 10, 5, 0, 0, 0, time.UTC)

	report, err := f.service(t, "Asia/Ho_Chi_Minh", now).Report(context.Background(), Query{Period: PERIOD_WEEK})
	require.NoError(t, err)

	require.Len(t, report.Series, 7)
	lastDay := report.Series[6]
	assert.Equal(t, 10, lastDay.Start.Day())
	assert.Equal(t, 0, lastDay.Start.Hour())
	assert.Equal(t, int64(1), lastDay.Orders)
}

func TestReportValidation(t *testing.T) {
	f := newFixture(t)
	service := f.service(t, "UTC", time.Now())
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	queries := []Query{
		{Period: "year"},
		{Start: timePtr(start)},
		{Start: timePtr(start), End: timePtr(start.Add(-time.Hour))},
		{Start: timePtr(start), End: timePtr(start.AddDate(1, 0, 2))},
		{Period: PERIOD_DAY, Start: timePtr(start), End: timePtr(start)},
	}
	for _, q := range queries {
		_, err := service.Report(ctx, q)
		assert.True(t, app_error.IsKind(err, app_error.KindValidation), "%+v", q)
	}

	_, err := NewService(f.st, "Mars/Olympus", 0, nil)
	assert.True(t, app_error.IsKind(err, app_error.KindValidation))
}

func TestQueryRevenueHandler(t *testing.T) {
	f := newFixture(t)
	f.order(t, time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC), constants.ORDER_STATUS_COMPLETED, "", map[int]int{0: 2})
	handlerCtx := HandlerContext{}
	handlerCtx.InitialHandlerContext(f.service(t, "UTC", time.Now()))

	w := httptest.NewRecorder()
	handlerCtx.QueryRevenue(w, httptest.NewRequest(http.MethodGet, "http://localhosts/pos/revenue?start=2024-03-01&end=2024-03-05", nil))
	require.Equal(t, http.StatusOK, w.Code)
	resp := struct {
		Data Report `json:"data"`
	}{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.Series, 5)
	assert.Equal(t, "20", resp.Data.TotalRevenue.String())

	w = httptest.NewRecorder()
	handlerCtx.QueryRevenue(w, httptest.NewRequest(http.MethodGet, "http://localhosts/pos/revenue?start=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	handlerCtx.QueryRevenue(w, httptest.NewRequest(http.MethodPost, "http://localhosts/pos/revenue", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestReportSQL(t *testing.T) {
	sqlDB, st, mock := util.DbMock(t)
	defer sqlDB.Close()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 1, 5, 30, 0, 0, time.UTC)
	service, err := NewService(st, "UTC", 3, nil)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(total_amount\), 0\) AS total, COUNT\(id\) AS orders\s+FROM orders`).
		WillReturnRows(sqlmock.NewRows([]string{"total", "orders"}).AddRow("42.00", 2))
	mock.ExpectQuery(`SELECT date_trunc\(.+, created_at AT TIME ZONE .+\) AS slot`).
		WithArgs(UNIT_HOUR, "UTC", constants.ORDER_STATUS_COMPLETED, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"slot", "total", "orders"}).AddRow(time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC), "42.00", 2))
	mock.ExpectQuery(`SELECT oi.menu_item_id AS menu_item_id`).
		WillReturnRows(sqlmock.NewRows([]string{"menu_item_id", "name", "quantity", "revenue"}).AddRow(1, "Pho", 4, "42.00"))
	mock.ExpectQuery(`SELECT p.method AS method`).
		WillReturnRows(sqlmock.NewRows([]string{"method", "count", "amount"}).AddRow("CASH", 2, "42.00"))

	report, err := service.Report(context.Background(), Query{Start: &start, End: &end})

	require.NoError(t, err)
	assert.Nil(t, mock.ExpectationsWereMet())
	require.Len(t, report.Series, 6)
	assert.True(t, decimal.RequireFromString("42").Equal(report.Series[2].Revenue))
	assert.Equal(t, "21.00", report.AverageOrderValue.StringFixed(2))
	assert.Equal(t, "Pho", report.TopItems[0].Name)
}
