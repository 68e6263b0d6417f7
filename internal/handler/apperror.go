package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrRateLimited      = &AppError{http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, slow down"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrAccountNotFound   = &AppError{http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account not found"}
	ErrPartyNotFound     = &AppError{http.StatusNotFound, "PARTY_NOT_FOUND", "Party not found"}
	ErrIntentNotFound    = &AppError{http.StatusNotFound, "INTENT_NOT_FOUND", "Payment intent not found"}
	ErrLinkInvalid       = &AppError{http.StatusNotFound, "LINK_INVALID", "Paylink is invalid, used or expired"}
	ErrInsufficientFunds = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "Insufficient funds"}
	ErrCardDeclined      = &AppError{http.StatusPaymentRequired, "CARD_DECLINED", "Card was declined"}
	ErrSelfTransfer      = &AppError{http.StatusUnprocessableEntity, "SELF_TRANSFER_NOT_ALLOWED", "Cannot transfer to the same account"}
	ErrAccountClosed     = &AppError{http.StatusUnprocessableEntity, "ACCOUNT_CLOSED", "Account is closed"}
	ErrAccountNotEmpty   = &AppError{http.StatusUnprocessableEntity, "ACCOUNT_NOT_EMPTY", "Account must have a zero balance to close"}
	ErrCurrencyMismatch  = &AppError{http.StatusConflict, "CURRENCY_MISMATCH", "Currency mismatch"}
	ErrIntentTerminal    = &AppError{http.StatusConflict, "INTENT_TERMINAL", "Payment intent is already settled"}
	ErrDuplicate         = &AppError{http.StatusConflict, "DUPLICATE", "Resource already exists"}
	ErrInvalidCurrency   = &AppError{http.StatusBadRequest, "INVALID_CURRENCY", "Invalid currency"}
	ErrInvalidAmount     = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrContention        = &AppError{http.StatusConflict, "CONTENTION", "Resource is busy, please retry"}
	ErrStoreUnavailable  = &AppError{http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Storage is temporarily unavailable"}

	ErrMissingIdempotencyKey = &AppError{http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required"}
	ErrIdempotencyConflict   = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
	ErrIdempotencyInProgress = &AppError{http.StatusConflict, "IDEMPOTENCY_IN_PROGRESS", "A request with this idempotency key is still being processed"}
)
