package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/josh-kwaku/corebank/internal/domain"
	"github.com/josh-kwaku/corebank/internal/logging"
	"github.com/josh-kwaku/corebank/internal/service/payment"
)

type transferService interface {
	Transfer(ctx context.Context, req payment.TransferRequest) (*domain.Transaction, error)
}

type TransferHandler struct {
	transfers transferService
}

func NewTransferHandler(transfers transferService) *TransferHandler {
	return &TransferHandler{transfers: transfers}
}

type createTransferRequest struct {
	From          string  `json:"from"`
	To            string  `json:"to"`
	Amount        int64   `json:"amount"`
	AmountDecimal string  `json:"amount_decimal"`
	Currency      string  `json:"currency"`
	Reference     *string `json:"reference"`
	Message       *string `json:"message"`
}

func (r createTransferRequest) Validate() []FieldError {
	var errs []FieldError
	if r.From == "" {
		errs = append(errs, FieldError{Field: "from", Message: "required"})
	}
	if r.To == "" {
		errs = append(errs, FieldError{Field: "to", Message: "required"})
	}
	if _, fe := requestAmount(r.Amount, r.AmountDecimal, domain.Currency(r.Currency)); fe != nil {
		errs = append(errs, *fe)
	}
	if r.Currency == "" {
		errs = append(errs, FieldError{Field: "currency", Message: "required"})
	} else if !domain.Currency(r.Currency).IsValid() {
		errs = append(errs, FieldError{Field: "currency", Message: "must be a 3-letter ISO code"})
	}
	return errs
}

func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	amount, _ := requestAmount(req.Amount, req.AmountDecimal, domain.Currency(req.Currency))
	t, err := h.transfers.Transfer(r.Context(), payment.TransferRequest{
		From:      req.From,
		To:        req.To,
		Amount:    amount,
		Currency:  domain.Currency(req.Currency),
		Reference: req.Reference,
		Message:   req.Message,
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("transfer refused", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toTransactionDTO(t))
}
