package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/josh-kwaku/corebank/internal/domain"
)

const cardColumns = `id, party_id, account_id, masked_pan, pan_hash, cvc_hash,
	exp_month, exp_year, status, created_at`

type CardRepository struct {
	db *sql.DB
}

func NewCardRepository(db *sql.DB) *CardRepository {
	return &CardRepository{db: db}
}

func (r *CardRepository) Create(ctx context.Context, card *domain.Card) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO cards (
			id, party_id, account_id, masked_pan, pan_hash, cvc_hash,
			exp_month, exp_year, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		card.ID, card.PartyID, card.AccountID, card.MaskedPAN, card.PANHash, card.CVCHash,
		card.ExpMonth, card.ExpYear, card.Status, card.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", classify(err))
	}
	return nil
}

// FindActive looks a card up by the hash of its number and its printed
// expiry. Blocked cards are not returned.
func (r *CardRepository) FindActive(ctx context.Context, panHash string, expMonth, expYear int) (*domain.Card, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM cards
		WHERE pan_hash = $1 AND exp_month = $2 AND exp_year = $3 AND status = $4`,
		panHash, expMonth, expYear, domain.CardStatusActive,
	)
	c, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("FindActive: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("FindActive: %w", classify(err))
	}
	return c, nil
}

func scanCard(s scanner) (*domain.Card, error) {
	var c domain.Card
	err := s.Scan(
		&c.ID, &c.PartyID, &c.AccountID, &c.MaskedPAN, &c.PANHash, &c.CVCHash,
		&c.ExpMonth, &c.ExpYear, &c.Status, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
