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
	"github.com/josh-kwaku/corebank/internal/service/paylink"
	"github.com/josh-kwaku/corebank/internal/service/payment"
)

type intentService interface {
	CreateIntent(ctx context.Context, req payment.CreateIntentRequest) (*domain.PaymentIntent, error)
	GetIntent(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error)
	ListIntentEvents(ctx context.Context, id uuid.UUID) ([]domain.IntentEvent, error)
	ConfirmIntent(ctx context.Context, id uuid.UUID, card domain.CardDetails) (*payment.Confirmation, error)
	CancelIntent(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error)
}

type linkIssuer interface {
	Issue(ctx context.Context, req paylink.IssueRequest) (*paylink.Issued, error)
}

type IntentHandler struct {
	intents intentService
	links   linkIssuer
}

func NewIntentHandler(intents intentService, links linkIssuer) *IntentHandler {
	return &IntentHandler{intents: intents, links: links}
}

const maxTTLSeconds = int64(paylink.MaxTTL / time.Second)

type paylinkOptions struct {
	Kind       string `json:"kind"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

func (o paylinkOptions) Validate(prefix string) []FieldError {
	var errs []FieldError
	if o.Kind != "" && !domain.PaylinkKind(o.Kind).IsValid() {
		errs = append(errs, FieldError{Field: prefix + "kind", Message: "must be URL or QR"})
	}
	if o.TTLSeconds > maxTTLSeconds {
		errs = append(errs, FieldError{Field: prefix + "ttl_seconds", Message: fmt.Sprintf("must be at most %d", maxTTLSeconds)})
	}
	return errs
}

func (o paylinkOptions) ttl() time.Duration {
	return time.Duration(o.TTLSeconds) * time.Second
}

type createIntentRequest struct {
	Account       string          `json:"account"`
	Amount        int64           `json:"amount"`
	AmountDecimal string          `json:"amount_decimal"`
	Currency      string          `json:"currency"`
	Description   *string         `json:"description"`
	Paylink       *paylinkOptions `json:"paylink"`
}

func (r createIntentRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Account == "" {
		errs = append(errs, FieldError{Field: "account", Message: "required"})
	}
	if _, fe := requestAmount(r.Amount, r.AmountDecimal, domain.Currency(r.Currency)); fe != nil {
		errs = append(errs, *fe)
	}
	if r.Currency == "" {
		errs = append(errs, FieldError{Field: "currency", Message: "required"})
	} else if !domain.Currency(r.Currency).IsValid() {
		errs = append(errs, FieldError{Field: "currency", Message: "must be a 3-letter ISO code"})
	}
	if r.Paylink != nil {
		errs = append(errs, r.Paylink.Validate("paylink.")...)
	}
	return errs
}

type cardRequest struct {
	Number   string `json:"number"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
	CVC      string `json:"cvc"`
}

func (c cardRequest) Validate() []FieldError {
	var errs []FieldError
	if c.Number == "" {
		errs = append(errs, FieldError{Field: "card.number", Message: "required"})
	}
	if c.ExpMonth < 1 || c.ExpMonth > 12 {
		errs = append(errs, FieldError{Field: "card.exp_month", Message: "must be between 1 and 12"})
	}
	if c.ExpYear < 2000 {
		errs = append(errs, FieldError{Field: "card.exp_year", Message: "must be a four-digit year"})
	}
	return errs
}

func (c cardRequest) details() domain.CardDetails {
	return domain.CardDetails{Number: c.Number, ExpMonth: c.ExpMonth, ExpYear: c.ExpYear, CVC: c.CVC}
}

type confirmIntentRequest struct {
	Card cardRequest `json:"card"`
}

type intentDTO struct {
	ID                   uuid.UUID `json:"id"`
	AccountID            uuid.UUID `json:"account_id"`
	Amount               int64     `json:"amount"`
	Currency             string    `json:"currency"`
	Display              string    `json:"display"`
	Status               string    `json:"status"`
	Description          *string   `json:"description,omitempty"`
	CaptureTransactionID *string   `json:"capture_transaction_id,omitempty"`
	FailureReason        *string   `json:"failure_reason,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func toIntentDTO(p *domain.PaymentIntent) intentDTO {
	return intentDTO{
		ID:                   p.ID,
		AccountID:            p.AccountID,
		Amount:               p.Amount,
		Currency:             string(p.Currency),
		Display:              p.Money().String(),
		Status:               string(p.Status),
		Description:          p.Description,
		CaptureTransactionID: p.CaptureTransactionID,
		FailureReason:        p.FailureReason,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
}

type createIntentResponse struct {
	Intent  intentDTO   `json:"intent"`
	Paylink *paylinkDTO `json:"paylink,omitempty"`
}

type confirmationDTO struct {
	Intent      intentDTO       `json:"intent"`
	Transaction *transactionDTO `json:"transaction,omitempty"`
	Replayed    bool            `json:"replayed"`
}

func toConfirmationDTO(c *payment.Confirmation) confirmationDTO {
	dto := confirmationDTO{Intent: toIntentDTO(c.Intent), Replayed: c.Replayed}
	if c.Transaction != nil {
		t := toTransactionDTO(c.Transaction)
		dto.Transaction = &t
	}
	return dto
}

type intentEventDTO struct {
	ID        uuid.UUID       `json:"id"`
	EventType string          `json:"event_type"`
	Actor     string          `json:"actor"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func (h *IntentHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req createIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	amount, _ := requestAmount(req.Amount, req.AmountDecimal, domain.Currency(req.Currency))
	intent, err := h.intents.CreateIntent(r.Context(), payment.CreateIntentRequest{
		Account:     req.Account,
		Amount:      amount,
		Currency:    domain.Currency(req.Currency),
		Description: req.Description,
	})
	if err != nil {
		log.Warn("intent creation failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	resp := createIntentResponse{Intent: toIntentDTO(intent)}
	if req.Paylink != nil {
		issued, err := h.links.Issue(r.Context(), paylink.IssueRequest{
			IntentID: &intent.ID,
			Kind:     domain.PaylinkKind(req.Paylink.Kind),
			TTL:      req.Paylink.ttl(),
		})
		if err != nil {
			// The intent stands; the caller can issue a link for it separately.
			log.Error("paylink issue for new intent failed", "error", err, "intent_id", intent.ID)
			RespondAppError(w, appErrorFor(err), map[string]any{"intent": resp.Intent})
			return
		}
		link := toPaylinkDTO(issued)
		resp.Paylink = &link
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/payment-intents/%s", intent.ID))
	RespondSuccess(w, http.StatusCreated, resp)
}

func (h *IntentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrIntentNotFound, nil)
		return
	}

	intent, err := h.intents.GetIntent(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Warn("intent lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toIntentDTO(intent))
}

func (h *IntentHandler) Events(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrIntentNotFound, nil)
		return
	}

	events, err := h.intents.ListIntentEvents(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Warn("intent events lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]intentEventDTO, len(events))
	for i, e := range events {
		dtos[i] = intentEventDTO{
			ID:        e.ID,
			EventType: string(e.EventType),
			Actor:     e.Actor,
			Payload:   json.RawMessage(e.Payload),
			CreatedAt: e.CreatedAt,
		}
	}

	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *IntentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrIntentNotFound, nil)
		return
	}

	var req confirmIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Card.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	conf, err := h.intents.ConfirmIntent(r.Context(), id, req.Card.details())
	respondConfirmation(w, r, conf, err)
}

func (h *IntentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrIntentNotFound, nil)
		return
	}

	intent, err := h.intents.CancelIntent(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Warn("intent cancel refused", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toIntentDTO(intent))
}

// respondConfirmation writes a confirm result. A refused payment was still
// committed, so the failed intent travels in the error details.
func respondConfirmation(w http.ResponseWriter, r *http.Request, conf *payment.Confirmation, err error) {
	if err != nil {
		logging.FromContext(r.Context()).Warn("confirmation refused", "error", err)
		if conf != nil {
			RespondAppError(w, appErrorFor(err), toConfirmationDTO(conf))
			return
		}
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toConfirmationDTO(conf))
}
