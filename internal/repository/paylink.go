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

const paylinkColumns = `slug, intent_id, account_id, kind, expires_at, used, created_at`

type PaylinkRepository struct {
	db *sql.DB
}

func NewPaylinkRepository(db *sql.DB) *PaylinkRepository {
	return &PaylinkRepository{db: db}
}

// Create stores a new link. A slug collision surfaces as ErrDuplicateKey so
// the issuer can draw another one.
func (r *PaylinkRepository) Create(ctx context.Context, link *domain.Paylink) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO paylinks (slug, intent_id, account_id, kind, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		link.Slug, link.IntentID, link.AccountID, link.Kind,
		link.ExpiresAt, link.Used, link.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", classify(err))
	}
	return nil
}

func (r *PaylinkRepository) GetBySlug(ctx context.Context, slug string) (*domain.Paylink, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paylinkColumns+` FROM paylinks WHERE slug = $1`, slug,
	)
	l, err := scanPaylink(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetBySlug: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetBySlug: %w", classify(err))
	}
	return l, nil
}

func (r *PaylinkRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, slug string) (*domain.Paylink, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+paylinkColumns+` FROM paylinks WHERE slug = $1 FOR UPDATE`, slug,
	)
	l, err := scanPaylink(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", classify(err))
	}
	return l, nil
}

func (r *PaylinkRepository) MarkUsed(ctx context.Context, tx *sql.Tx, slug string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE paylinks SET used = TRUE WHERE slug = $1 AND used = FALSE`, slug,
	)
	if err != nil {
		return fmt.Errorf("MarkUsed: %w", classify(err))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("MarkUsed: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("MarkUsed: %w", domain.ErrLinkInvalid)
	}
	return nil
}

// MarkUsedByIntent consumes every open link bound to the intent. It runs in
// the capture transaction so a captured intent never leaves a payable link.
func (r *PaylinkRepository) MarkUsedByIntent(ctx context.Context, tx *sql.Tx, intentID uuid.UUID) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE paylinks SET used = TRUE WHERE intent_id = $1 AND used = FALSE`, intentID,
	)
	if err != nil {
		return 0, fmt.Errorf("MarkUsedByIntent: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("MarkUsedByIntent: rows affected: %w", err)
	}
	return n, nil
}

// Expire pulls a link's expiry forward to now. Links that are already used
// or expired report ErrLinkInvalid.
func (r *PaylinkRepository) Expire(ctx context.Context, slug string, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE paylinks SET expires_at = $2
		WHERE slug = $1 AND used = FALSE AND (expires_at IS NULL OR expires_at > $2)`,
		slug, now,
	)
	if err != nil {
		return fmt.Errorf("Expire: %w", classify(err))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Expire: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Expire: %w", domain.ErrLinkInvalid)
	}
	return nil
}

func scanPaylink(s scanner) (*domain.Paylink, error) {
	var l domain.Paylink
	err := s.Scan(
		&l.Slug, &l.IntentID, &l.AccountID, &l.Kind,
		&l.ExpiresAt, &l.Used, &l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
