package util

import (
	"errors"

	"restaurant_pos/constants"
	"restaurant_pos/custom/app_error"
	"restaurant_pos/custom/store"
)

// ToAppError maps store failures onto the error taxonomy. notFound is the message used for missing records.
func ToAppError(err error, notFound string) error {
	if err == nil {
		return nil
	}
	var appErr *app_error.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case store.IsTimeout(err):
		return app_error.Retry(constants.TRANSACTION_TIMEOUT, err)
	case store.IsNotFound(err):
		return app_error.NotFound(notFound)
	case store.IsUniqueViolation(err):
		return app_error.Conflict(constants.RECORD_EXISTS)
	case store.IsRetryable(err):
		return app_error.Retry(constants.SYSTEM_ERROR, err)
	}
	return app_error.System(constants.SYSTEM_ERROR, err)
}
