package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/josh-kwaku/corebank/internal/domain"
)

const retryAfterSeconds = "1"

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	if appErr == ErrContention || appErr == ErrRateLimited || appErr == ErrIdempotencyInProgress {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

func RespondDomainError(w http.ResponseWriter, err error) {
	RespondAppError(w, appErrorFor(err), nil)
}

// appErrorFor picks the most specific code for err. Contention and store
// failures go first because they wrap driver errors that may also carry a
// domain sentinel.
func appErrorFor(err error) *AppError {
	switch {
	case errors.Is(err, domain.ErrContention), errors.Is(err, domain.ErrVersionConflict):
		return ErrContention
	case errors.Is(err, domain.ErrStoreUnavailable):
		return ErrStoreUnavailable
	case errors.Is(err, domain.ErrAccountNotFound):
		return ErrAccountNotFound
	case errors.Is(err, domain.ErrPartyNotFound):
		return ErrPartyNotFound
	case errors.Is(err, domain.ErrIntentNotFound):
		return ErrIntentNotFound
	case errors.Is(err, domain.ErrLinkInvalid):
		return ErrLinkInvalid
	case errors.Is(err, domain.ErrNotFound):
		return ErrResourceNotFound
	case errors.Is(err, domain.ErrInsufficientFunds):
		return ErrInsufficientFunds
	case errors.Is(err, domain.ErrCardDeclined):
		return ErrCardDeclined
	case errors.Is(err, domain.ErrSelfTransfer):
		return ErrSelfTransfer
	case errors.Is(err, domain.ErrAccountClosed):
		return ErrAccountClosed
	case errors.Is(err, domain.ErrAccountNotEmpty):
		return ErrAccountNotEmpty
	case errors.Is(err, domain.ErrCurrencyMismatch):
		return ErrCurrencyMismatch
	case errors.Is(err, domain.ErrIntentTerminal):
		return ErrIntentTerminal
	case errors.Is(err, domain.ErrDuplicateKey):
		return ErrDuplicate
	case errors.Is(err, domain.ErrInvalidCurrency):
		return ErrInvalidCurrency
	case errors.Is(err, domain.ErrInvalidAmount):
		return ErrInvalidAmount
	case errors.Is(err, domain.ErrInvalidRequest):
		return ErrInvalidRequest
	default:
		slog.Error("unhandled domain error", "error", err, "kind", domain.KindOf(err))
		return ErrInternalError
	}
}
