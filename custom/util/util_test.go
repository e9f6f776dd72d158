package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"restaurant_pos/constants"
	"restaurant_pos/custom/app_error"
	"restaurant_pos/custom/store"
)

func TestParseConfigDefaults(t *testing.T) {
	conf := ServerConfig{}
	require.NoError(t, conf.Parse([]byte(`
store: memory
postgres:
  host: db
  port: 5433
  username: pos
  password: secret
  database: pos
  replicas:
    - host: replica
      port: 5432
      username: pos
      password: secret
      database: pos
order:
  tx_timeout: 2s
receipt:
  sink: amqp
`)))

	assert.Equal(t, 8080, conf.Port)
	assert.Equal(t, "memory", conf.Store)
	assert.Equal(t, "pgx", conf.Postgres.Driver)
	assert.Equal(t, 2*time.Second, conf.Order.TxTimeout)
	assert.Equal(t, 3, conf.Order.MaxRetries)
	assert.Equal(t, 2, conf.Receipt.Retries)
	assert.Equal(t, constants.PRICE_POLICY_REFRESH_ON_CHANGE, conf.Order.PricePolicy)
	assert.Equal(t, "amqp", conf.Receipt.Sink)
	assert.Equal(t, 5*time.Second, conf.Receipt.Timeout)
	assert.Equal(t, "UTC", conf.Revenue.Timezone)
	assert.Equal(t, 10, conf.Revenue.TopItems)
	assert.Equal(t, "host=db port=5433 user=pos password=secret dbname=pos sslmode=disable", conf.Postgres.DSN())
	require.Len(t, conf.Postgres.Replicas, 1)
	assert.Equal(t, "replica", conf.Postgres.Replicas[0].Host)
}

func TestParseConfigKeepsZeroRetries(t *testing.T) {
	conf := ServerConfig{}
	require.NoError(t, conf.Parse([]byte(`
order:
  max_retries: 0
receipt:
  retries: 0
`)))
	assert.Equal(t, 0, conf.Order.MaxRetries)
	assert.Equal(t, 0, conf.Receipt.Retries)

	conf = ServerConfig{}
	require.NoError(t, conf.Parse([]byte("order:\n  max_retries: 5\n")))
	assert.Equal(t, 5, conf.Order.MaxRetries)
	assert.Equal(t, 2, conf.Receipt.Retries)
}

func TestParseConfigRejectsBadDuration(t *testing.T) {
	conf := ServerConfig{}
	assert.Error(t, conf.Parse([]byte("order:\n  tx_timeout: soon\n")))
}

func TestToAppError(t *testing.T) {
	cases := []struct {
		err       error
		kind      app_error.Kind
		retryable bool
	}{
		{store.ErrNotFound, app_error.KindNotFound, false},
		{gorm.ErrRecordNotFound, app_error.KindNotFound, false},
		{gorm.ErrDuplicatedKey, app_error.KindConflict, false},
		{&pgconn.PgError{Code: "23505"}, app_error.KindConflict, false},
		{&pq.Error{Code: "23505"}, app_error.KindConflict, false},
		{&pgconn.PgError{Code: "40001"}, app_error.KindSystem, true},
		{&pq.Error{Code: "40P01"}, app_error.KindSystem, true},
		{fmt.Errorf("commit: %w", context.DeadlineExceeded), app_error.KindSystem, true},
		{errors.New("disk full"), app_error.KindSystem, false},
		{app_error.NotAvailable(constants.TABLE_NOT_AVAILABLE), app_error.KindNotAvailable, false},
	}
	for _, c := range cases {
		appErr := app_error.From(ToAppError(c.err, constants.TABLE_NOT_FOUND))
		assert.Equal(t, c.kind, appErr.Kind, c.err.Error())
		assert.Equal(t, c.retryable, appErr.Retryable, c.err.Error())
	}
	assert.Nil(t, ToAppError(nil, ""))
	assert.Equal(t, constants.TRANSACTION_TIMEOUT, app_error.From(ToAppError(context.DeadlineExceeded, "")).Message)
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, app_error.Retry(constants.TRANSACTION_TIMEOUT, context.DeadlineExceeded), "Create order failed")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := ErrorResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, app_error.CODE_SYSTEM_ERROR, resp.ErrorCode)
	assert.True(t, resp.Retryable)
	assert.Equal(t, "Create order failed: "+constants.TRANSACTION_TIMEOUT, resp.Message)

	w = httptest.NewRecorder()
	WriteError(w, errors.New("boom"), "Query order failed")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	plain := ErrorResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plain))
	assert.Equal(t, app_error.CODE_SYSTEM_ERROR, plain.ErrorCode)
	assert.False(t, plain.Retryable)

	for _, c := range []struct {
		err    error
		status int
	}{
		{app_error.Validation("bad"), http.StatusBadRequest},
		{app_error.NotFound("missing"), http.StatusNotFound},
		{app_error.NotModifiable("closed"), http.StatusConflict},
		{app_error.AlreadyCompleted("done"), http.StatusConflict},
	} {
		w = httptest.NewRecorder()
		WriteError(w, c.err, "failed")
		assert.Equal(t, c.status, w.Code)
	}
}

func TestUserIdFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "http://localhosts", nil)
	_, err := UserIdFromRequest(r)
	assert.True(t, app_error.IsKind(err, app_error.KindValidation))

	r.Header.Set(HEADER_USER_ID, "abc")
	_, err = UserIdFromRequest(r)
	assert.True(t, app_error.IsKind(err, app_error.KindValidation))

	r.Header.Set(HEADER_USER_ID, "7")
	id, err := UserIdFromRequest(r)
	assert.Nil(t, err)
	assert.Equal(t, uint(7), id)
}

func TestWithRequestId(t *testing.T) {
	var seen string
	handler := WithRequestId(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = w.Header().Get(HEADER_REQUEST_ID)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://localhosts/pos/query_table", nil))
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, w.Header().Get(HEADER_REQUEST_ID))

	w = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "http://localhosts/pos/query_table", nil)
	r.Header.Set(HEADER_REQUEST_ID, "upstream-id")
	handler.ServeHTTP(w, r)
	assert.Equal(t, "upstream-id", w.Header().Get(HEADER_REQUEST_ID))
}
