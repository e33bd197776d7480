package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("PAY_001", "Insufficient available balance", http.StatusUnprocessableEntity),
			expected: "[PAY_001] Insufficient available balance",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
	assert.Nil(t, New("PAY_001", "test", http.StatusBadRequest).Unwrap())
}

func TestPayoutErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"Validation", Validation("amount below minimum"), CodeValidation, 400},
		{"InsufficientBalance", ErrInsufficientBalance(), CodeInsufficientBalance, 422},
		{"DailyLimit", ErrDailyLimitExceeded("10000.00"), CodeDailyLimitExceeded, 422},
		{"MonthlyLimit", ErrMonthlyLimitExceeded("50000.00"), CodeMonthlyLimitExceeded, 422},
		{"UnverifiedPaymentMethod", ErrUnverifiedPaymentMethod(), CodeUnverifiedPaymentMethod, 422},
		{"ExceedsReserved", ErrExceedsReservedAmount(), CodeExceedsReservedAmount, 422},
		{"InvalidTransition", ErrInvalidTransition("paid", "approve"), CodeInvalidTransition, 409},
		{"DuplicatePaymentMethod", ErrDuplicatePaymentMethod(), CodeDuplicatePaymentMethod, 409},
		{"NotFound", ErrNotFound("Payout"), CodeNotFound, 404},
		{"ConfigurationMissing", ErrConfigurationMissing(), CodeConfigurationMissing, 503},
		{"InvalidToken", ErrInvalidToken(), CodeInvalidToken, 401},
		{"Forbidden", ErrForbidden(), CodeForbidden, 403},
		{"RateLimit", ErrRateLimitExceeded(), CodeRateLimitExceeded, 429},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestMessagesCarryContext(t *testing.T) {
	assert.Contains(t, ErrDailyLimitExceeded("10000.00").Message, "10000.00")
	assert.Contains(t, ErrInvalidTransition("paid", "approve").Message, "paid")
	assert.Contains(t, ErrNotFound("Payment method").Message, "Payment method")
}

func TestSystemErrors(t *testing.T) {
	inner := fmt.Errorf("pg: connection closed")

	internal := InternalError(inner)
	assert.Equal(t, CodeInternal, internal.Code)
	assert.Equal(t, 500, internal.HTTPStatus)
	assert.True(t, errors.Is(internal, inner))

	conflict := ErrConflict(inner)
	assert.Equal(t, CodeConflict, conflict.Code)
	assert.Equal(t, 409, conflict.HTTPStatus)

	enc := ErrEncryptionFailure(inner)
	assert.Equal(t, CodeEncryptionFailure, enc.Code)

	inv := ErrInvariantViolation("pending below release amount")
	assert.Equal(t, CodeInvariantViolation, inv.Code)
	assert.Contains(t, inv.Error(), "pending below release amount")
}

func TestFromDB(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, FromDB("lock wallet", nil))
	})

	t.Run("app errors pass through", func(t *testing.T) {
		err := FromDB("reserve", ErrInsufficientBalance())
		assert.True(t, HasCode(err, CodeInsufficientBalance))
	})

	t.Run("lock timeout becomes conflict", func(t *testing.T) {
		err := FromDB("lock wallet", &pgconn.PgError{Code: "55P03"})
		assert.True(t, HasCode(err, CodeConflict))
		assert.True(t, IsRetryable(err))
	})

	t.Run("deadlock becomes conflict", func(t *testing.T) {
		err := FromDB("lock payout", fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40P01"}))
		assert.True(t, HasCode(err, CodeConflict))
	})

	t.Run("deadline becomes conflict", func(t *testing.T) {
		err := FromDB("begin tx", context.DeadlineExceeded)
		assert.True(t, HasCode(err, CodeConflict))
	})

	t.Run("other errors are internal", func(t *testing.T) {
		err := FromDB("insert payout", errors.New("syntax error"))
		assert.True(t, HasCode(err, CodeInternal))
		assert.False(t, IsRetryable(err))
	})
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert payout: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "55P03"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}
