package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/corebank/internal/domain"
	"github.com/josh-kwaku/corebank/internal/logging"
	"github.com/josh-kwaku/corebank/internal/service"
)

type partyService interface {
	RegisterParty(ctx context.Context, req service.RegisterPartyRequest) (*domain.Party, error)
	GetParty(ctx context.Context, id uuid.UUID) (*domain.Party, error)
	ListParties(ctx context.Context, f domain.PartyFilter) ([]domain.Party, error)
}

type PartyHandler struct {
	parties partyService
}

func NewPartyHandler(parties partyService) *PartyHandler {
	return &PartyHandler{parties: parties}
}

type registerPartyRequest struct {
	DocType   string  `json:"doc_type"`
	DocNumber string  `json:"doc_number"`
	FullName  string  `json:"full_name"`
	Email     *string `json:"email"`
}

func (r registerPartyRequest) Validate() []FieldError {
	var errs []FieldError
	if !domain.DocType(r.DocType).IsValid() {
		errs = append(errs, FieldError{Field: "doc_type", Message: "must be CEDULA, PASSPORT or RNC"})
	}
	if r.DocNumber == "" {
		errs = append(errs, FieldError{Field: "doc_number", Message: "required"})
	}
	if r.FullName == "" {
		errs = append(errs, FieldError{Field: "full_name", Message: "required"})
	}
	return errs
}

type partyDTO struct {
	ID        uuid.UUID `json:"id"`
	DocType   string    `json:"doc_type"`
	DocNumber string    `json:"doc_number"`
	FullName  string    `json:"full_name"`
	Email     *string   `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toPartyDTO(p *domain.Party) partyDTO {
	return partyDTO{
		ID:        p.ID,
		DocType:   string(p.DocType),
		DocNumber: p.DocNumber,
		FullName:  p.FullName,
		Email:     p.Email,
		CreatedAt: p.CreatedAt,
	}
}

func (h *PartyHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerPartyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	party, err := h.parties.RegisterParty(r.Context(), service.RegisterPartyRequest{
		DocType:   domain.DocType(req.DocType),
		DocNumber: req.DocNumber,
		FullName:  req.FullName,
		Email:     req.Email,
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("party registration refused", "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/parties/%s", party.ID))
	RespondSuccess(w, http.StatusCreated, toPartyDTO(party))
}

func (h *PartyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "id", Message: "must be a UUID"}})
		return
	}

	party, err := h.parties.GetParty(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Warn("party lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toPartyDTO(party))
}

func (h *PartyHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var fields []FieldError
	f := domain.PartyFilter{
		DocType:   domain.DocType(q.Get("doc_type")),
		DocNumber: q.Get("doc_number"),
		Name:      q.Get("name"),
	}
	if f.DocType != "" && !f.DocType.IsValid() {
		fields = append(fields, FieldError{Field: "doc_type", Message: "must be CEDULA, PASSPORT or RNC"})
	}
	limit, fe := parseLimit(q)
	if fe != nil {
		fields = append(fields, *fe)
	}
	f.Limit = limit

	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	parties, err := h.parties.ListParties(r.Context(), f)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list parties", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]partyDTO, len(parties))
	for i := range parties {
		dtos[i] = toPartyDTO(&parties[i])
	}

	RespondSuccess(w, http.StatusOK, dtos)
}
