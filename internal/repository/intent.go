package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/josh-kwaku/corebank/internal/domain"
)

const intentColumns = `id, account_id, amount, currency, status, description,
	capture_transaction_id, failure_reason, created_at, updated_at`

type IntentRepository struct {
	db *sql.DB
}

func NewIntentRepository(db *sql.DB) *IntentRepository {
	return &IntentRepository{db: db}
}

func (r *IntentRepository) Create(ctx context.Context, tx *sql.Tx, intent *domain.PaymentIntent) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO payment_intents (
			id, account_id, amount, currency, status, description,
			capture_transaction_id, failure_reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		intent.ID, intent.AccountID, intent.Amount, intent.Currency, intent.Status,
		intent.Description, intent.CaptureTransactionID, intent.FailureReason,
		intent.CreatedAt, intent.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", classify(err))
	}
	return nil
}

func (r *IntentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+intentColumns+` FROM payment_intents WHERE id = $1`, id,
	)
	p, err := scanIntent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", classify(err))
	}
	return p, nil
}

func (r *IntentRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.PaymentIntent, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+intentColumns+` FROM payment_intents WHERE id = $1 FOR UPDATE`, id,
	)
	p, err := scanIntent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", classify(err))
	}
	return p, nil
}

// Update writes a status change. Only intents still awaiting payment can be
// updated; anything else reports ErrIntentTerminal.
func (r *IntentRepository) Update(ctx context.Context, tx *sql.Tx, intent *domain.PaymentIntent) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE payment_intents
		SET status = $1, capture_transaction_id = $2, failure_reason = $3, updated_at = $4
		WHERE id = $5 AND status = $6`,
		intent.Status, intent.CaptureTransactionID, intent.FailureReason, intent.UpdatedAt,
		intent.ID, domain.IntentStatusRequiresPayment,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", classify(err))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Update: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Update: %w", domain.ErrIntentTerminal)
	}
	return nil
}

// ListStaleIDs returns intents still awaiting payment whose paylinks have
// all expired unused, oldest first. Intents never given a link are skipped.
func (r *IntentRepository) ListStaleIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT pi.id FROM payment_intents pi
		WHERE pi.status = $1
		  AND EXISTS (SELECT 1 FROM paylinks pl WHERE pl.intent_id = pi.id)
		  AND NOT EXISTS (
			SELECT 1 FROM paylinks pl
			WHERE pl.intent_id = pi.id
			  AND (pl.used OR pl.expires_at IS NULL OR pl.expires_at > $2)
		  )
		ORDER BY pi.created_at
		LIMIT $3`,
		domain.IntentStatusRequiresPayment, now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ListStaleIDs: %w", classify(err))
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ListStaleIDs: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListStaleIDs: rows: %w", classify(err))
	}
	return ids, nil
}

func scanIntent(s scanner) (*domain.PaymentIntent, error) {
	var p domain.PaymentIntent
	err := s.Scan(
		&p.ID, &p.AccountID, &p.Amount, &p.Currency, &p.Status, &p.Description,
		&p.CaptureTransactionID, &p.FailureReason, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
