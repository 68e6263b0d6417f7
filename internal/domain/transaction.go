package domain

import (
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionTypeTransfer    TransactionType = "TRANSFER"
	TransactionTypeCardPayment TransactionType = "CARD_PAYMENT"
)

type TransactionStatus string

const (
	TransactionStatusPosted TransactionStatus = "POSTED"
	TransactionStatusFailed TransactionStatus = "FAILED"
)

// Transaction is an append-only ledger record of one movement attempt.
type Transaction struct {
	ID            string
	CreatedAt     time.Time
	Type          TransactionType
	Currency      Currency
	Amount        int64
	FromAccountID *uuid.UUID
	ToAccountID   *uuid.UUID
	Status        TransactionStatus
	ExternalRef   *string
	Message       *string
}

// StatementLine is a transaction seen from one account: outgoing amounts are
// negative, incoming positive.
type StatementLine struct {
	Transaction
	SignedAmount int64
}

type TransactionFilter struct {
	Type   TransactionType
	Status TransactionStatus
	From   *time.Time
	To     *time.Time
	Limit  int
}
