package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/corebank/internal/domain"
	"github.com/josh-kwaku/corebank/internal/ids"
)

// lockAccountsInOrder takes row locks in a stable order so two movements
// touching the same pair of accounts cannot deadlock.
func lockAccountsInOrder(ctx context.Context, tx *sql.Tx, accounts accountRepo, accountIDs ...uuid.UUID) (map[uuid.UUID]*domain.Account, error) {
	sorted := make([]uuid.UUID, 0, len(accountIDs))
	seen := make(map[uuid.UUID]bool, len(accountIDs))
	for _, id := range accountIDs {
		if !seen[id] {
			seen[id] = true
			sorted = append(sorted, id)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].String() < sorted[j].String()
	})

	result := make(map[uuid.UUID]*domain.Account, len(sorted))
	for _, id := range sorted {
		acct, err := accounts.GetForUpdate(ctx, tx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("lockAccountsInOrder: %s: %w", id, domain.ErrAccountNotFound)
			}
			return nil, fmt.Errorf("lockAccountsInOrder: %w", err)
		}
		result[id] = acct
	}
	return result, nil
}

// move debits from and credits to on rows already locked in tx and writes
// both back. Nothing is persisted when the debit is refused.
func (s *Service) move(ctx context.Context, tx *sql.Tx, from, to *domain.Account, amount int64) error {
	if err := from.Debit(amount); err != nil {
		return fmt.Errorf("move: %w", err)
	}
	if err := to.Credit(amount); err != nil {
		return fmt.Errorf("move: %w", err)
	}

	if err := s.accounts.UpdateBalances(ctx, tx, from); err != nil {
		return fmt.Errorf("move: update %s: %w", from.AccountNumber, err)
	}
	if err := s.accounts.UpdateBalances(ctx, tx, to); err != nil {
		return fmt.Errorf("move: update %s: %w", to.AccountNumber, err)
	}
	return nil
}

type entry struct {
	typ     domain.TransactionType
	status  domain.TransactionStatus
	money   domain.Money
	from    *uuid.UUID
	to      *uuid.UUID
	ref     *string
	message *string
}

func (s *Service) appendTransaction(ctx context.Context, tx *sql.Tx, e entry, now time.Time) (*domain.Transaction, error) {
	t := &domain.Transaction{
		ID:            ids.NewTransactionID(now),
		CreatedAt:     now,
		Type:          e.typ,
		Currency:      e.money.Currency,
		Amount:        e.money.Amount,
		FromAccountID: e.from,
		ToAccountID:   e.to,
		Status:        e.status,
		ExternalRef:   e.ref,
		Message:       e.message,
	}
	if err := s.transactions.Create(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("appendTransaction: %w", err)
	}
	return t, nil
}

func ptr[T any](v T) *T {
	return &v
}
