package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAccountNotFound   = errors.New("account not found")
	ErrPartyNotFound     = errors.New("party not found")
	ErrIntentNotFound    = errors.New("payment intent not found")
	ErrLinkInvalid       = errors.New("paylink invalid or expired")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrCardDeclined      = errors.New("card declined")
	ErrSelfTransfer      = errors.New("cannot transfer to same account")
	ErrInvalidCurrency   = errors.New("invalid currency")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrAccountClosed     = errors.New("account closed")
	ErrAccountNotEmpty   = errors.New("account balance must be zero to close")
	ErrCurrencyMismatch  = errors.New("currency mismatch")
	ErrIntentTerminal    = errors.New("payment intent already in terminal state")
	ErrVersionConflict   = errors.New("optimistic lock conflict")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrContention        = errors.New("resource busy, retry")
	ErrStoreUnavailable  = errors.New("store unavailable")
)

type ErrorKind string

const (
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindConflict          ErrorKind = "CONFLICT"
	KindInsufficientFunds ErrorKind = "INSUFFICIENT_FUNDS"
	KindCardDeclined      ErrorKind = "CARD_DECLINED"
	KindInvalidOperation  ErrorKind = "INVALID_OPERATION"
	KindContention        ErrorKind = "CONTENTION"
	KindStoreUnavailable  ErrorKind = "STORE_UNAVAILABLE"
	KindInternal          ErrorKind = "INTERNAL"
)

// KindOf classifies err into the error taxonomy. Contention and store
// failures are checked first since they may wrap a driver error alongside a
// domain sentinel.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrContention), errors.Is(err, ErrVersionConflict):
		return KindContention
	case errors.Is(err, ErrStoreUnavailable):
		return KindStoreUnavailable
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrPartyNotFound),
		errors.Is(err, ErrIntentNotFound),
		errors.Is(err, ErrLinkInvalid):
		return KindNotFound
	case errors.Is(err, ErrCurrencyMismatch),
		errors.Is(err, ErrIntentTerminal),
		errors.Is(err, ErrDuplicateKey):
		return KindConflict
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ErrCardDeclined):
		return KindCardDeclined
	case errors.Is(err, ErrSelfTransfer),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidCurrency),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrAccountClosed),
		errors.Is(err, ErrAccountNotEmpty):
		return KindInvalidOperation
	default:
		return KindInternal
	}
}

// Retryable reports whether the same request may be sent again unchanged.
func Retryable(err error) bool {
	return KindOf(err) == KindContention
}
