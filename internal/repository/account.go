package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/josh-kwaku/corebank/internal/domain"
)

// accountSelect joins the owner so every read carries the party's name.
const accountSelect = `SELECT a.id, a.account_number, a.party_id, p.full_name, a.currency, a.kind, a.status,
	a.balance, a.credit_limit, a.available_credit, a.version, a.created_at
	FROM accounts a JOIN parties p ON p.id = a.party_id`

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		accountSelect+` WHERE a.id = $1`, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", classify(err))
	}
	return a, nil
}

func (r *AccountRepository) GetByNumber(ctx context.Context, number string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		accountSelect+` WHERE a.account_number = $1`, number,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByNumber: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByNumber: %w", classify(err))
	}
	return a, nil
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (
			id, account_number, party_id, currency, kind, status,
			balance, credit_limit, available_credit, version, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		account.ID, account.AccountNumber, account.PartyID, account.Currency,
		account.Kind, account.Status,
		account.Balance, account.CreditLimit, account.AvailableCredit,
		account.Version, account.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", classify(err))
	}
	return nil
}

func (r *AccountRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Account, error) {
	row := tx.QueryRowContext(ctx,
		accountSelect+` WHERE a.id = $1 FOR UPDATE OF a`, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", classify(err))
	}
	return a, nil
}

// UpdateBalances persists the balance columns of a locked account and bumps
// its version. The version guard catches writers that skipped the row lock.
func (r *AccountRepository) UpdateBalances(ctx context.Context, tx *sql.Tx, account *domain.Account) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = $1, available_credit = $2, version = version + 1
		WHERE id = $3 AND version = $4`,
		account.Balance, account.AvailableCredit, account.ID, account.Version,
	)
	if err != nil {
		return fmt.Errorf("UpdateBalances: %w", classify(err))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateBalances: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateBalances: %w", domain.ErrVersionConflict)
	}
	account.Version++
	return nil
}

func (r *AccountRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.AccountStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET status = $1, version = version + 1 WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", classify(err))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *AccountRepository) List(ctx context.Context, f domain.AccountFilter) ([]domain.Account, error) {
	var sb strings.Builder
	sb.WriteString(accountSelect + ` WHERE TRUE`)
	var args []any

	if f.PartyID != nil {
		args = append(args, *f.PartyID)
		fmt.Fprintf(&sb, " AND a.party_id = $%d", len(args))
	}
	if f.Currency != "" {
		args = append(args, f.Currency)
		fmt.Fprintf(&sb, " AND a.currency = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		fmt.Fprintf(&sb, " AND a.status = $%d", len(args))
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = defaultStatementLimit
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, " ORDER BY a.created_at, a.account_number LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("List: %w", classify(err))
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("List: scan: %w", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: rows: %w", classify(err))
	}
	return accounts, nil
}

func scanAccount(s scanner) (*domain.Account, error) {
	var a domain.Account
	err := s.Scan(
		&a.ID, &a.AccountNumber, &a.PartyID, &a.OwnerName, &a.Currency, &a.Kind, &a.Status,
		&a.Balance, &a.CreditLimit, &a.AvailableCredit, &a.Version, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
