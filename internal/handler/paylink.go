package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/corebank/internal/domain"
	"github.com/josh-kwaku/corebank/internal/logging"
	"github.com/josh-kwaku/corebank/internal/service/paylink"
	"github.com/josh-kwaku/corebank/internal/service/payment"
)

type paylinkService interface {
	Issue(ctx context.Context, req paylink.IssueRequest) (*paylink.Issued, error)
	Expire(ctx context.Context, slug string) error
	Resolve(ctx context.Context, slug string) (*paylink.View, error)
	Pay(ctx context.Context, slug string, req paylink.PayRequest) (*payment.Confirmation, error)
}

type PaylinkHandler struct {
	links paylinkService
}

func NewPaylinkHandler(links paylinkService) *PaylinkHandler {
	return &PaylinkHandler{links: links}
}

type issuePaylinkRequest struct {
	Account  string `json:"account"`
	IntentID string `json:"intent_id"`
	paylinkOptions
}

func (r issuePaylinkRequest) Validate() []FieldError {
	var errs []FieldError
	if (r.Account == "") == (r.IntentID == "") {
		errs = append(errs, FieldError{Field: "account", Message: "exactly one of account or intent_id is required"})
	}
	if r.IntentID != "" {
		if _, err := uuid.Parse(r.IntentID); err != nil {
			errs = append(errs, FieldError{Field: "intent_id", Message: "must be a UUID"})
		}
	}
	return append(errs, r.paylinkOptions.Validate("")...)
}

type payRequest struct {
	Card   cardRequest `json:"card"`
	Amount int64       `json:"amount"`
}

type paylinkDTO struct {
	Slug      string     `json:"slug"`
	URL       string     `json:"url"`
	QRPayload string     `json:"qr_payload,omitempty"`
	Kind      string     `json:"kind"`
	IntentID  *uuid.UUID `json:"intent_id,omitempty"`
	AccountID *uuid.UUID `json:"account_id,omitempty"`
	ExpiresAt *time.Time `json:"expires_at"`
	Used      bool       `json:"used"`
	CreatedAt time.Time  `json:"created_at"`
}

func toPaylinkDTO(i *paylink.Issued) paylinkDTO {
	return paylinkDTO{
		Slug:      i.Link.Slug,
		URL:       i.URL,
		QRPayload: i.QRPayload,
		Kind:      string(i.Link.Kind),
		IntentID:  i.Link.IntentID,
		AccountID: i.Link.AccountID,
		ExpiresAt: i.Link.ExpiresAt,
		Used:      i.Link.Used,
		CreatedAt: i.Link.CreatedAt,
	}
}

// payPageDTO is the public view of a link. It never exposes internal ids or
// the full account number.
type payPageDTO struct {
	Slug        string     `json:"slug"`
	Payee       string     `json:"payee"`
	Currency    string     `json:"currency"`
	Amount      *int64     `json:"amount,omitempty"`
	Display     string     `json:"display,omitempty"`
	Description *string    `json:"description,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

func toPayPageDTO(v *paylink.View) payPageDTO {
	dto := payPageDTO{
		Slug:      v.Link.Slug,
		Payee:     maskAccountNumber(v.Account.AccountNumber),
		Currency:  string(v.Account.Currency),
		ExpiresAt: v.Link.ExpiresAt,
	}
	if v.Intent != nil {
		dto.Amount = &v.Intent.Amount
		dto.Display = v.Intent.Money().String()
		dto.Description = v.Intent.Description
	}
	return dto
}

type receiptDTO struct {
	Status        string  `json:"status"`
	Display       string  `json:"display"`
	TransactionID *string `json:"transaction_id,omitempty"`
	FailureReason *string `json:"failure_reason,omitempty"`
}

func toReceiptDTO(c *payment.Confirmation) receiptDTO {
	dto := receiptDTO{
		Status:        string(c.Intent.Status),
		Display:       c.Intent.Money().String(),
		FailureReason: c.Intent.FailureReason,
	}
	if c.Transaction != nil {
		dto.TransactionID = &c.Transaction.ID
	}
	return dto
}

func maskAccountNumber(n string) string {
	if len(n) <= 4 {
		return n
	}
	return "****" + n[len(n)-4:]
}

func (h *PaylinkHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req issuePaylinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	issueReq := paylink.IssueRequest{
		Account: req.Account,
		Kind:    domain.PaylinkKind(req.Kind),
		TTL:     req.ttl(),
	}
	if req.IntentID != "" {
		id := uuid.MustParse(req.IntentID)
		issueReq.IntentID = &id
	}

	issued, err := h.links.Issue(r.Context(), issueReq)
	if err != nil {
		logging.FromContext(r.Context()).Warn("paylink issue refused", "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", issued.URL)
	RespondSuccess(w, http.StatusCreated, toPaylinkDTO(issued))
}

func (h *PaylinkHandler) Expire(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if err := h.links.Expire(r.Context(), slug); err != nil {
		logging.FromContext(r.Context()).Warn("paylink expire refused", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, map[string]string{"slug": slug, "status": "expired"})
}

func (h *PaylinkHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	view, err := h.links.Resolve(r.Context(), r.PathValue("slug"))
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toPayPageDTO(view))
}

func (h *PaylinkHandler) Pay(w http.ResponseWriter, r *http.Request) {
	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Card.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	conf, err := h.links.Pay(r.Context(), r.PathValue("slug"), paylink.PayRequest{
		Card:   req.Card.details(),
		Amount: req.Amount,
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("paylink payment refused", "error", err)
		if conf != nil {
			RespondAppError(w, appErrorFor(err), toReceiptDTO(conf))
			return
		}
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toReceiptDTO(conf))
}
