package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/josh-kwaku/corebank/internal/domain"
)

const intentEventColumns = `id, intent_id, event_type, actor, payload, created_at`

type IntentEventRepository struct {
	db *sql.DB
}

func NewIntentEventRepository(db *sql.DB) *IntentEventRepository {
	return &IntentEventRepository{db: db}
}

func (r *IntentEventRepository) Create(ctx context.Context, tx *sql.Tx, event *domain.IntentEvent) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO intent_events (id, intent_id, event_type, actor, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.IntentID, event.EventType, event.Actor,
		event.Payload, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", classify(err))
	}
	return nil
}

func (r *IntentEventRepository) ListByIntent(ctx context.Context, intentID uuid.UUID) ([]domain.IntentEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+intentEventColumns+` FROM intent_events
		WHERE intent_id = $1 ORDER BY created_at, id`, intentID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByIntent: %w", classify(err))
	}
	defer rows.Close()

	var events []domain.IntentEvent
	for rows.Next() {
		e, err := scanIntentEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByIntent: scan: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByIntent: rows: %w", classify(err))
	}
	return events, nil
}

func scanIntentEvent(s scanner) (*domain.IntentEvent, error) {
	var e domain.IntentEvent
	err := s.Scan(
		&e.ID, &e.IntentID, &e.EventType, &e.Actor,
		&e.Payload, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
