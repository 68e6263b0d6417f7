package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/corebank/internal/domain"
	"github.com/josh-kwaku/corebank/internal/logging"
)

type partyRepo interface {
	Create(ctx context.Context, p *domain.Party) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Party, error)
	List(ctx context.Context, f domain.PartyFilter) ([]domain.Party, error)
}

type PartyService struct {
	parties partyRepo
	now     func() time.Time
}

func NewPartyService(parties partyRepo) *PartyService {
	return &PartyService{
		parties: parties,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type RegisterPartyRequest struct {
	DocType   domain.DocType
	DocNumber string
	FullName  string
	Email     *string
}

// RegisterParty records a new customer. A document already on file is
// reported as ErrDuplicateKey.
func (s *PartyService) RegisterParty(ctx context.Context, req RegisterPartyRequest) (*domain.Party, error) {
	if !req.DocType.IsValid() {
		return nil, fmt.Errorf("RegisterParty: doc type %q: %w", req.DocType, domain.ErrInvalidRequest)
	}
	docNumber := strings.TrimSpace(req.DocNumber)
	name := strings.TrimSpace(req.FullName)
	if docNumber == "" || name == "" {
		return nil, fmt.Errorf("RegisterParty: document number and name are required: %w", domain.ErrInvalidRequest)
	}
	if req.Email != nil {
		if _, err := mail.ParseAddress(*req.Email); err != nil {
			return nil, fmt.Errorf("RegisterParty: email: %w", domain.ErrInvalidRequest)
		}
	}

	p := &domain.Party{
		ID:        uuid.New(),
		DocType:   req.DocType,
		DocNumber: docNumber,
		FullName:  name,
		Email:     req.Email,
		CreatedAt: s.now(),
	}
	if err := s.parties.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("RegisterParty: %w", err)
	}

	logging.FromContext(ctx).Info("party registered", "party_id", p.ID, "doc_type", p.DocType)
	return p, nil
}

func (s *PartyService) GetParty(ctx context.Context, id uuid.UUID) (*domain.Party, error) {
	p, err := s.parties.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("GetParty: %s: %w", id, domain.ErrPartyNotFound)
		}
		return nil, fmt.Errorf("GetParty: %w", err)
	}
	return p, nil
}

func (s *PartyService) ListParties(ctx context.Context, f domain.PartyFilter) ([]domain.Party, error) {
	if f.DocType != "" && !f.DocType.IsValid() {
		return nil, fmt.Errorf("ListParties: doc type %q: %w", f.DocType, domain.ErrInvalidRequest)
	}
	parties, err := s.parties.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("ListParties: %w", err)
	}
	return parties, nil
}
