package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// Codes referenced outside this package.
const (
	CodeValidation              = "VAL_001"
	CodeInsufficientBalance     = "PAY_001"
	CodeDailyLimitExceeded      = "PAY_002"
	CodeMonthlyLimitExceeded    = "PAY_003"
	CodeUnverifiedPaymentMethod = "PAY_004"
	CodeExceedsReservedAmount   = "PAY_005"
	CodeInvalidTransition       = "PAY_006"
	CodeDuplicatePaymentMethod  = "PAY_007"
	CodeNotFound                = "RES_001"
	CodeConfigurationMissing    = "CFG_001"
	CodeInternal                = "SYS_001"
	CodeConflict                = "SYS_002"
	CodeEncryptionFailure       = "SYS_003"
	CodeInvariantViolation      = "SYS_004"
	CodeInvalidToken            = "AUTH_001"
	CodeForbidden               = "AUTH_002"
	CodeRateLimitExceeded       = "RATE_001"
)

// ---- Validation (VAL) ----

// Validation returns a caller-correctable input error.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

// ---- Payout Business Rules (PAY) ----

func ErrInsufficientBalance() *AppError {
	return New(CodeInsufficientBalance, "Insufficient available balance", http.StatusUnprocessableEntity)
}

func ErrDailyLimitExceeded(limit string) *AppError {
	return New(CodeDailyLimitExceeded, fmt.Sprintf("Daily payout limit of %s exceeded", limit), http.StatusUnprocessableEntity)
}

func ErrMonthlyLimitExceeded(limit string) *AppError {
	return New(CodeMonthlyLimitExceeded, fmt.Sprintf("Monthly payout limit of %s exceeded", limit), http.StatusUnprocessableEntity)
}

func ErrUnverifiedPaymentMethod() *AppError {
	return New(CodeUnverifiedPaymentMethod, "Payment method is not verified", http.StatusUnprocessableEntity)
}

func ErrExceedsReservedAmount() *AppError {
	return New(CodeExceedsReservedAmount, "Approved amount exceeds the reserved amount", http.StatusUnprocessableEntity)
}

func ErrInvalidTransition(from, action string) *AppError {
	return New(CodeInvalidTransition, fmt.Sprintf("Cannot %s a payout in status %s", action, from), http.StatusConflict)
}

func ErrDuplicatePaymentMethod() *AppError {
	return New(CodeDuplicatePaymentMethod, "Payment method already registered", http.StatusConflict)
}

// ---- Resources (RES / CFG) ----

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrConfigurationMissing() *AppError {
	return New(CodeConfigurationMissing, "No active payout configuration", http.StatusServiceUnavailable)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New(CodeForbidden, "Actor is not allowed to perform this action", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// ErrConflict reports a lock timeout or concurrent modification. Callers may retry.
func ErrConflict(err error) *AppError {
	return Wrap(CodeConflict, "Concurrent modification, please retry", http.StatusConflict, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap(CodeEncryptionFailure, "Encryption service failure", http.StatusInternalServerError, err)
}

// ErrInvariantViolation signals ledger state that should be impossible.
func ErrInvariantViolation(detail string) *AppError {
	return Wrap(CodeInvariantViolation, "Ledger invariant violated", http.StatusInternalServerError, errors.New(detail))
}

// PostgreSQL SQLSTATEs treated as retryable contention.
const (
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgQueryCanceled        = "57014"
	pgUniqueViolation      = "23505"
)

// FromDB classifies a storage error. Contention and deadline errors become
// Conflict, AppErrors pass through, anything else is internal.
func FromDB(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	wrapped := fmt.Errorf("%s: %w", op, err)
	if IsRetryable(err) {
		return ErrConflict(wrapped)
	}
	return InternalError(wrapped)
}

// IsRetryable reports whether err stems from lock contention or a timeout.
func IsRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgSerializationFailure, pgDeadlockDetected, pgQueryCanceled:
			return true
		}
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeConflict
	}
	return false
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
