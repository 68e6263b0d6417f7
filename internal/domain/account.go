package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AccountKind string

const (
	AccountKindSavings AccountKind = "SAVINGS"
	AccountKindCredit  AccountKind = "CREDIT"
)

func (k AccountKind) IsValid() bool {
	switch k {
	case AccountKindSavings, AccountKindCredit:
		return true
	default:
		return false
	}
}

type AccountStatus string

const (
	AccountStatusActive AccountStatus = "ACTIVE"
	AccountStatusClosed AccountStatus = "CLOSED"
)

// Account balances follow its Kind. Savings accounts spend from Balance;
// credit accounts spend from AvailableCredit and leave Balance at zero.
type Account struct {
	ID              uuid.UUID
	AccountNumber   string
	PartyID         uuid.UUID
	OwnerName       string
	Currency        Currency
	Kind            AccountKind
	Status          AccountStatus
	Balance         int64
	CreditLimit     int64
	AvailableCredit int64
	Version         int64
	CreatedAt       time.Time
}

// Spendable is the amount a debit may draw on.
func (a *Account) Spendable() int64 {
	switch a.Kind {
	case AccountKindSavings:
		return a.Balance
	case AccountKindCredit:
		return a.AvailableCredit
	default:
		panic(fmt.Sprintf("unknown account kind %q", a.Kind))
	}
}

// Debit draws amount from the account. It only mutates the in-memory row;
// callers persist it inside the transaction that locked the row.
func (a *Account) Debit(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("Debit: %w", ErrInvalidAmount)
	}
	rest, err := NewMoney(a.Spendable(), a.Currency).Sub(NewMoney(amount, a.Currency))
	if err != nil {
		return fmt.Errorf("Debit: account %s: %w", a.AccountNumber, err)
	}
	switch a.Kind {
	case AccountKindSavings:
		a.Balance = rest.Amount
	case AccountKindCredit:
		a.AvailableCredit = rest.Amount
	}
	return nil
}

// Credit succeeds for any positive amount that fits. A credit account paid
// past its limit keeps the surplus as available credit.
func (a *Account) Credit(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("Credit: %w", ErrInvalidAmount)
	}
	in := NewMoney(amount, a.Currency)
	switch a.Kind {
	case AccountKindSavings:
		sum, err := NewMoney(a.Balance, a.Currency).Add(in)
		if err != nil {
			return fmt.Errorf("Credit: account %s: %w", a.AccountNumber, err)
		}
		a.Balance = sum.Amount
	case AccountKindCredit:
		sum, err := NewMoney(a.AvailableCredit, a.Currency).Add(in)
		if err != nil {
			return fmt.Errorf("Credit: account %s: %w", a.AccountNumber, err)
		}
		a.AvailableCredit = sum.Amount
	default:
		panic(fmt.Sprintf("unknown account kind %q", a.Kind))
	}
	return nil
}

func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

type AccountFilter struct {
	PartyID  *uuid.UUID
	Currency Currency
	Status   AccountStatus
	Limit    int
}
