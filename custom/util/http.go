package util

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/romana/rlog"
	"restaurant_pos/custom/app_error"
)

const HEADER_USER_ID = "X-User-Id"
const HEADER_REQUEST_ID = "X-Request-Id"

type SuccessResponse struct {
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
}

type ErrorResponse struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func IsAllowHttpMethod(methods []string, w http.ResponseWriter, r *http.Request) bool {
	for _, method := range methods {
		if method == r.Method {
			return true
		}
	}
	WriteError(w, app_error.Validation("not allowed http method"), "Request rejected", http.StatusMethodNotAllowed)
	return false
}

func FetchReqObject(r *http.Request, reqObj interface{}) error {
	if r == nil {
		return errors.New("http request is nil")
	}
	reqBody, err := io.ReadAll(r.Body)
	if err != nil {
		errInfo := "Read request body failed: " + err.Error()
		rlog.Error(errInfo)
		return app_error.Validation(errInfo)
	}
	err = json.Unmarshal(reqBody, reqObj)
	if err != nil {
		errInfo := "Unmarshal request body failed: " + err.Error()
		rlog.Error(errInfo)
		return app_error.Validation(errInfo)
	}
	return nil
}

// UserIdFromRequest reads the acting staff member set by the authenticating proxy.
func UserIdFromRequest(r *http.Request) (uint, error) {
	raw := r.Header.Get(HEADER_USER_ID)
	if raw == "" {
		return 0, app_error.Validation(HEADER_USER_ID + " header is required")
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, app_error.Validation(HEADER_USER_ID + " header is invalid")
	}
	return uint(id), nil
}

// QueryUint reads a required positive integer from the query string.
func QueryUint(r *http.Request, key string) (uint, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, app_error.Validation(key + " is required")
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value == 0 {
		return 0, app_error.Validation(key + " must be a positive integer")
	}
	return uint(value), nil
}

func WriteSuccess(w http.ResponseWriter, data interface{}, message string) {
	respBody, err := json.Marshal(SuccessResponse{Data: data, Message: message})
	if err != nil {
		WriteError(w, app_error.System("encode response failed", err), message)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(respBody)
}

// WriteError renders err in the error envelope. The status is taken from the error kind unless given.
func WriteError(w http.ResponseWriter, err error, message string, status ...int) {
	appErr := app_error.From(err)
	code := app_error.NormalizeCode(appErr.Code())
	httpStatus := appErr.HttpStatus()
	if len(status) > 0 {
		httpStatus = status[0]
	}
	if appErr.Kind == app_error.KindSystem {
		rlog.Error(message + ": " + appErr.Error())
	}
	respBody, _ := json.Marshal(ErrorResponse{
		ErrorCode: code,
		Message:   message + ": " + appErr.Message,
		Retryable: appErr.Retryable,
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	w.Write(respBody)
}

// WithRequestId tags every request with an id and logs it.
func WithRequestId(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestId := r.Header.Get(HEADER_REQUEST_ID)
		if requestId == "" {
			requestId = uuid.NewString()
		}
		w.Header().Set(HEADER_REQUEST_ID, requestId)
		rlog.Debugf("[%s] %s %s", requestId, r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func GetStringPtr(s string) *string {
	return &s
}

func Contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
