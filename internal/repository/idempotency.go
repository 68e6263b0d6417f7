package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// IdempotencyCacheEntry is the row behind an Idempotency-Key. A row with no
// CompletedAt is a claim held by a request still running.
type IdempotencyCacheEntry struct {
	Key          string
	OperatorID   string
	RequestHash  string
	StatusCode   int
	ResponseBody []byte
	CreatedAt    time.Time
	CompletedAt  *time.Time
	ExpiresAt    time.Time
}

func (e *IdempotencyCacheEntry) InProgress() bool {
	return e.CompletedAt == nil
}

type IdempotencyRepository struct {
	db *sql.DB
}

func NewIdempotencyRepository(db *sql.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

func (r *IdempotencyRepository) Get(ctx context.Context, key string, operatorID string) (*IdempotencyCacheEntry, error) {
	var e IdempotencyCacheEntry
	err := r.db.QueryRowContext(ctx,
		`SELECT idempotency_key, operator_id, request_hash, status_code, response_body, created_at, completed_at, expires_at
		FROM idempotency_cache
		WHERE idempotency_key = $1 AND operator_id = $2 AND expires_at > now()`,
		key, operatorID,
	).Scan(&e.Key, &e.OperatorID, &e.RequestHash, &e.StatusCode, &e.ResponseBody, &e.CreatedAt, &e.CompletedAt, &e.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", classify(err))
	}
	return &e, nil
}

// Claim reserves the key until entry.ExpiresAt. It reports false when a live
// row, claimed or completed, already holds the key. Expired rows are taken over.
func (r *IdempotencyRepository) Claim(ctx context.Context, entry *IdempotencyCacheEntry) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO idempotency_cache (idempotency_key, operator_id, request_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (idempotency_key, operator_id) DO UPDATE
		SET request_hash = EXCLUDED.request_hash, status_code = 0, response_body = ''::bytea,
			completed_at = NULL, created_at = EXCLUDED.created_at, expires_at = EXCLUDED.expires_at
		WHERE idempotency_cache.expires_at <= now()`,
		entry.Key, entry.OperatorID, entry.RequestHash, entry.CreatedAt, entry.ExpiresAt,
	)
	if err != nil {
		return false, fmt.Errorf("Claim: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("Claim: rows affected: %w", err)
	}
	return n == 1, nil
}

// Complete stores the response on a claimed row.
func (r *IdempotencyRepository) Complete(ctx context.Context, entry *IdempotencyCacheEntry) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE idempotency_cache
		SET status_code = $3, response_body = $4, completed_at = $5, expires_at = $6
		WHERE idempotency_key = $1 AND operator_id = $2 AND completed_at IS NULL`,
		entry.Key, entry.OperatorID, entry.StatusCode, entry.ResponseBody, entry.CompletedAt, entry.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("Complete: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Complete: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("Complete: claim on %q lost", entry.Key)
	}
	return nil
}

// Release drops an unfinished claim so the key can be retried.
func (r *IdempotencyRepository) Release(ctx context.Context, key string, operatorID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM idempotency_cache
		WHERE idempotency_key = $1 AND operator_id = $2 AND completed_at IS NULL`,
		key, operatorID,
	)
	if err != nil {
		return fmt.Errorf("Release: %w", classify(err))
	}
	return nil
}

func (r *IdempotencyRepository) CleanExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM idempotency_cache WHERE expires_at < now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("CleanExpired: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("CleanExpired: rows affected: %w", err)
	}
	return n, nil
}
