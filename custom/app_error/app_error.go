package app_error

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindSystem Kind = iota
	KindValidation
	KindNotFound
	KindNotAvailable
	KindNotModifiable
	KindAlreadyCompleted
	KindConflict
)

// Error codes surfaced in the error envelope. Anything else is reported as SYSTEM_ERROR.
const (
	CODE_VALIDATION_ERROR  = "VALIDATION_ERROR"
	CODE_NOT_FOUND         = "NOT_FOUND"
	CODE_NOT_AVAILABLE     = "NOT_AVAILABLE"
	CODE_NOT_MODIFIABLE    = "NOT_MODIFIABLE"
	CODE_ALREADY_COMPLETED = "ALREADY_COMPLETED"
	CODE_CONFLICT          = "CONFLICT"
	CODE_SYSTEM_ERROR      = "SYSTEM_ERROR"
)

var kindCodes = map[Kind]string{
	KindSystem:           CODE_SYSTEM_ERROR,
	KindValidation:       CODE_VALIDATION_ERROR,
	KindNotFound:         CODE_NOT_FOUND,
	KindNotAvailable:     CODE_NOT_AVAILABLE,
	KindNotModifiable:    CODE_NOT_MODIFIABLE,
	KindAlreadyCompleted: CODE_ALREADY_COMPLETED,
	KindConflict:         CODE_CONFLICT,
}

type Error struct {
	Kind      Kind
	Message   string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Code returns the envelope code of the error kind.
func (e *Error) Code() string {
	return CodeOf(e.Kind)
}

// HttpStatus maps the kind onto a response status.
func (e *Error) HttpStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindNotAvailable, KindNotModifiable, KindAlreadyCompleted, KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func CodeOf(kind Kind) string {
	if code, ok := kindCodes[kind]; ok {
		return code
	}
	return CODE_SYSTEM_ERROR
}

// NormalizeCode coerces unknown codes to SYSTEM_ERROR.
func NormalizeCode(code string) string {
	for _, known := range kindCodes {
		if known == code {
			return code
		}
	}
	return CODE_SYSTEM_ERROR
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func NotAvailable(message string) *Error {
	return &Error{Kind: KindNotAvailable, Message: message}
}

func NotModifiable(message string) *Error {
	return &Error{Kind: KindNotModifiable, Message: message}
}

func AlreadyCompleted(message string) *Error {
	return &Error{Kind: KindAlreadyCompleted, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func System(message string, err error) *Error {
	return &Error{Kind: KindSystem, Message: message, Err: err}
}

// Retry marks a system failure the caller may safely repeat.
func Retry(message string, err error) *Error {
	return &Error{Kind: KindSystem, Message: message, Err: err, Retryable: true}
}

// From returns err as *Error, wrapping anything uncategorised as a system error.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return System("unexpected system error", err)
}

func IsKind(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}
