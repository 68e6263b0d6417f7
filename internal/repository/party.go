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

const partyColumns = `id, doc_type, doc_number, full_name, email, created_at`

type PartyRepository struct {
	db *sql.DB
}

func NewPartyRepository(db *sql.DB) *PartyRepository {
	return &PartyRepository{db: db}
}

func (r *PartyRepository) Create(ctx context.Context, p *domain.Party) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO parties (`+partyColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.DocType, p.DocNumber, p.FullName, p.Email, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", classify(err))
	}
	return nil
}

func (r *PartyRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Party, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+partyColumns+` FROM parties WHERE id = $1`, id,
	)
	p, err := scanParty(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", classify(err))
	}
	return p, nil
}

func (r *PartyRepository) List(ctx context.Context, f domain.PartyFilter) ([]domain.Party, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + partyColumns + ` FROM parties WHERE TRUE`)
	var args []any

	if f.DocType != "" {
		args = append(args, f.DocType)
		fmt.Fprintf(&sb, " AND doc_type = $%d", len(args))
	}
	if f.DocNumber != "" {
		args = append(args, f.DocNumber)
		fmt.Fprintf(&sb, " AND doc_number = $%d", len(args))
	}
	if f.Name != "" {
		args = append(args, "%"+escapeLike(f.Name)+"%")
		fmt.Fprintf(&sb, " AND full_name ILIKE $%d", len(args))
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = defaultStatementLimit
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, " ORDER BY full_name, id LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("List: %w", classify(err))
	}
	defer rows.Close()

	var parties []domain.Party
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, fmt.Errorf("List: scan: %w", err)
		}
		parties = append(parties, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: rows: %w", classify(err))
	}
	return parties, nil
}

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanParty(s scanner) (*domain.Party, error) {
	var p domain.Party
	if err := s.Scan(&p.ID, &p.DocType, &p.DocNumber, &p.FullName, &p.Email, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
