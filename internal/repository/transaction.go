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

const transactionColumns = `id, created_at, type, currency, amount,
	from_account_id, to_account_id, status, external_ref, message`

const defaultStatementLimit = 100

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (
			id, created_at, type, currency, amount,
			from_account_id, to_account_id, status, external_ref, message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.CreatedAt, t.Type, t.Currency, t.Amount,
		t.FromAccountID, t.ToAccountID, t.Status, t.ExternalRef, t.Message,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", classify(err))
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", classify(err))
	}
	return t, nil
}

// ListByAccount returns the account statement, newest first, with amounts
// signed from the account's point of view.
func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, f domain.TransactionFilter) ([]domain.StatementLine, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + transactionColumns + `,
		CASE WHEN from_account_id = $1 THEN -amount
		     WHEN to_account_id = $1 THEN amount
		     ELSE 0 END AS signed_amount
		FROM transactions
		WHERE (from_account_id = $1 OR to_account_id = $1)`)
	args := []any{accountID}

	if f.Type != "" {
		args = append(args, f.Type)
		fmt.Fprintf(&sb, " AND type = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		fmt.Fprintf(&sb, " AND status = $%d", len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		fmt.Fprintf(&sb, " AND created_at >= $%d", len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		fmt.Fprintf(&sb, " AND created_at <= $%d", len(args))
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = defaultStatementLimit
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, " ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("ListByAccount: %w", classify(err))
	}
	defer rows.Close()

	var lines []domain.StatementLine
	for rows.Next() {
		var l domain.StatementLine
		err := rows.Scan(
			&l.ID, &l.CreatedAt, &l.Type, &l.Currency, &l.Amount,
			&l.FromAccountID, &l.ToAccountID, &l.Status, &l.ExternalRef, &l.Message,
			&l.SignedAmount,
		)
		if err != nil {
			return nil, fmt.Errorf("ListByAccount: scan: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByAccount: rows: %w", classify(err))
	}
	return lines, nil
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var t domain.Transaction
	err := s.Scan(
		&t.ID, &t.CreatedAt, &t.Type, &t.Currency, &t.Amount,
		&t.FromAccountID, &t.ToAccountID, &t.Status, &t.ExternalRef, &t.Message,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
