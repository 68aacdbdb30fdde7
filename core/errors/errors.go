package errors

import (
	stdErrors "errors"
	"fmt"
)

type ErrorCode string

const (
	ErrInvalidInput               ErrorCode = "INVALID_INPUT"
	ErrInvalidRequestData         ErrorCode = "INVALID_REQUEST_DATA"
	ErrValidation                 ErrorCode = "VALIDATION_ERROR"
	ErrSelfBooking                ErrorCode = "SELF_BOOKING"
	ErrRoleMismatch               ErrorCode = "ROLE_MISMATCH"
	ErrUnauthorized               ErrorCode = "UNAUTHORIZED"
	ErrTokenExpired               ErrorCode = "TOKEN_EXPIRED"
	ErrInvalidTokenFormat         ErrorCode = "INVALID_TOKEN_FORMAT"
	ErrMissingAuthorizationHeader ErrorCode = "MISSING_AUTHORIZATION_HEADER"
	ErrForbidden                  ErrorCode = "FORBIDDEN"
	ErrNotFound                   ErrorCode = "NOT_FOUND"
	ErrAlreadyExists              ErrorCode = "ALREADY_EXISTS"
	ErrConflict                   ErrorCode = "CONFLICT"
	ErrUpstream                   ErrorCode = "UPSTREAM_ERROR"
	ErrConfiguration              ErrorCode = "CONFIGURATION_ERROR"
	ErrInternalServer             ErrorCode = "INTERNAL_SERVER_ERROR"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the first AppError in err's chain, or ErrInternalServer.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stdErrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternalServer
}

func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// As is re-exported so callers importing this package under the errors name keep access to it.
func As(err error, target any) bool {
	return stdErrors.As(err, target)
}
