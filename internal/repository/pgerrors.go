package repository

import (
	"context"
	"errors"

	"github.com/lib/pq"

	apperrors "branch-ledger/internal/errors"
)

// PostgreSQL SQLSTATE codes the ledger reacts to.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgNumericOutOfRange    = "22003"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// translate maps a driver error onto the application error taxonomy.
// Conflicts between concurrent serializable transactions become
// ErrSerializationFailure so callers can retry them.
func translate(err error, message string) error {
	if err == nil {
		return nil
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.ErrTransientFailure.WithDetails(err.Error())
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pgSerializationFailure, pgDeadlockDetected:
			return apperrors.ErrSerializationFailure.WithDetails(pqErr.Message)
		case pgUniqueViolation:
			return apperrors.NewAppError(apperrors.Conflict, message).WithDetails(pqErr.Constraint)
		case pgForeignKeyViolation:
			if pqErr.Constraint == "transactions_performed_by_fkey" {
				return apperrors.ErrForbidden.WithDetails("principal is not a registered user")
			}
		case pgNumericOutOfRange:
			return apperrors.ErrBalanceLimit.WithDetails(pqErr.Message)
		case pgCheckViolation:
			if pqErr.Constraint == "accounts_balance_non_negative" {
				return apperrors.ErrInsufficientFunds.WithDetails(pqErr.Constraint)
			}
		}
	}

	return apperrors.NewAppError(apperrors.InternalError, message).WithDetails(err.Error())
}
