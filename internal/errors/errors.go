// Package errors provides custom error types for the Folio API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrForbidden          = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Owner errors.
var (
	ErrOwnerNotFound  = &AppError{Code: "OWNER_NOT_FOUND", Message: "Owner not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "An owner with this email already exists", StatusCode: http.StatusConflict}
)

// Scope errors.
var (
	ErrInvalidScope      = &AppError{Code: "INVALID_SCOPE", Message: "Unknown scope kind", StatusCode: http.StatusBadRequest}
	ErrPortfolioNotFound = &AppError{Code: "PORTFOLIO_NOT_FOUND", Message: "Portfolio not found", StatusCode: http.StatusNotFound}
	ErrAccountNotFound   = &AppError{Code: "ACCOUNT_NOT_FOUND", Message: "Account not found", StatusCode: http.StatusNotFound}
	ErrGroupNotFound     = &AppError{Code: "GROUP_NOT_FOUND", Message: "Combined group not found", StatusCode: http.StatusNotFound}
)

// Transaction errors.
var (
	ErrTransactionNotFound = &AppError{Code: "TRANSACTION_NOT_FOUND", Message: "Transaction not found", StatusCode: http.StatusNotFound}
	ErrInvalidQuantity     = &AppError{Code: "INVALID_QUANTITY", Message: "Quantity must be positive", StatusCode: http.StatusBadRequest}
)

// Sell-plan errors.
var (
	ErrPlanNotFound       = &AppError{Code: "PLAN_NOT_FOUND", Message: "Sell plan not found", StatusCode: http.StatusNotFound}
	ErrDraftNotFound      = &AppError{Code: "DRAFT_NOT_FOUND", Message: "Plan draft not found", StatusCode: http.StatusNotFound}
	ErrStageIncomplete    = &AppError{Code: "STAGE_INCOMPLETE", Message: "A previous wizard stage has not been completed", StatusCode: http.StatusBadRequest}
	ErrSymbolNotHeld      = &AppError{Code: "SYMBOL_NOT_HELD", Message: "Symbol is not held in this portfolio", StatusCode: http.StatusBadRequest}
	ErrPercentagesNot100  = &AppError{Code: "PERCENTAGES_NOT_100", Message: "Buy percentages must sum to 100", StatusCode: http.StatusBadRequest}
	ErrInsufficientShares = &AppError{Code: "INSUFFICIENT_SHARES", Message: "Insufficient shares for this sale", StatusCode: http.StatusBadRequest}
	ErrAllocationNotFound = &AppError{Code: "ALLOCATION_NOT_FOUND", Message: "Account allocation not found", StatusCode: http.StatusNotFound}
)

// Quote errors.
var (
	ErrPriceUnavailable = &AppError{Code: "PRICE_UNAVAILABLE", Message: "No price available for this symbol", StatusCode: http.StatusUnprocessableEntity}
)
