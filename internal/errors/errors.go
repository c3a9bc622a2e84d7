package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ValidationError      ErrorCode = "validation_error"
	CustomerNotFound     ErrorCode = "customer_not_found"
	AccountNotFound      ErrorCode = "account_not_found"
	Forbidden            ErrorCode = "forbidden"
	InsufficientFunds    ErrorCode = "insufficient_funds"
	Unauthenticated      ErrorCode = "unauthenticated"
	Conflict             ErrorCode = "conflict"
	SerializationFailure ErrorCode = "serialization_failure" // retried, never returned to callers
	TransientFailure     ErrorCode = "transient_failure"
	InternalError        ErrorCode = "internal_error"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

func (e AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any AppError carrying the same code, so wrapped copies of the
// predefined errors still satisfy errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func NewAppErrorf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithDetails returns a copy of e carrying details. The receiver is left
// untouched so the predefined errors below stay immutable.
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// HTTPStatus maps the error code to the status the HTTP layer responds with.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ValidationError, InsufficientFunds:
		return http.StatusBadRequest
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case CustomerNotFound, AccountNotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case SerializationFailure, TransientFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the operation that produced err may be attempted again.
func Retryable(err error) bool {
	return stderrors.Is(err, ErrSerializationFailure)
}

// AsAppError unwraps err into an AppError. Anything that is not already an
// AppError is reported as a generic internal error with no details.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrInternal
}

// Predefined errors for common cases
var (
	ErrInvalidAmount          = NewAppError(ValidationError, "amount must be a positive decimal with at most two fractional digits")
	ErrInvalidAccountKind     = NewAppError(ValidationError, "account kind must be CHECKING or SAVINGS")
	ErrInvalidPostingKind     = NewAppError(ValidationError, "transaction kind must be DEPOSIT or WITHDRAWAL")
	ErrInvalidAccountID       = NewAppError(ValidationError, "invalid account id")
	ErrInvalidCustomerID      = NewAppError(ValidationError, "invalid customer id")
	ErrCustomerNotFound       = NewAppError(CustomerNotFound, "customer not found")
	ErrAccountNotFound        = NewAppError(AccountNotFound, "account not found")
	ErrForbidden              = NewAppError(Forbidden, "forbidden")
	ErrInsufficientFunds      = NewAppError(InsufficientFunds, "insufficient funds")
	ErrBalanceLimit           = NewAppError(ValidationError, "posting would exceed the maximum account balance")
	ErrRequestTooLarge        = NewAppError(ValidationError, "request body too large")
	ErrUnauthenticated        = NewAppError(Unauthenticated, "missing or invalid principal")
	ErrSerializationFailure   = NewAppError(SerializationFailure, "concurrent update conflict")
	ErrTransientFailure       = NewAppError(TransientFailure, "the request could not be completed, please retry")
	ErrInternal               = NewAppError(InternalError, "an unexpected error occurred")
	ErrCannotBeginTransaction = NewAppError(InternalError, "store is already inside a transaction")
)
