package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/corebank/internal/domain"
	"github.com/josh-kwaku/corebank/internal/logging"
	"github.com/josh-kwaku/corebank/internal/service"
)

type accountService interface {
	OpenAccount(ctx context.Context, req service.OpenAccountRequest) (*domain.Account, error)
	GetAccount(ctx context.Context, number string) (*domain.Account, error)
	ListAccounts(ctx context.Context, f domain.AccountFilter) ([]domain.Account, error)
	CloseAccount(ctx context.Context, number string) (*domain.Account, error)
	ListTransactions(ctx context.Context, number string, f domain.TransactionFilter) ([]domain.StatementLine, error)
}

type AccountHandler struct {
	accounts accountService
}

func NewAccountHandler(accounts accountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

type openAccountRequest struct {
	PartyID     string `json:"party_id"`
	Currency    string `json:"currency"`
	Kind        string `json:"kind"`
	CreditLimit int64  `json:"credit_limit"`
}

func (r openAccountRequest) Validate() []FieldError {
	var errs []FieldError
	if _, err := uuid.Parse(r.PartyID); err != nil {
		errs = append(errs, FieldError{Field: "party_id", Message: "must be a UUID"})
	}
	if r.Currency == "" {
		errs = append(errs, FieldError{Field: "currency", Message: "required"})
	} else if !domain.Currency(r.Currency).IsValid() {
		errs = append(errs, FieldError{Field: "currency", Message: "must be a 3-letter ISO code"})
	}
	if r.Kind != "" && !domain.AccountKind(r.Kind).IsValid() {
		errs = append(errs, FieldError{Field: "kind", Message: "must be SAVINGS or CREDIT"})
	}
	if r.CreditLimit < 0 {
		errs = append(errs, FieldError{Field: "credit_limit", Message: "must not be negative"})
	}
	return errs
}

type accountDTO struct {
	ID              uuid.UUID `json:"id"`
	AccountNumber   string    `json:"account_number"`
	PartyID         uuid.UUID `json:"party_id"`
	OwnerName       string    `json:"owner_name"`
	Currency        string    `json:"currency"`
	Kind            string    `json:"kind"`
	Status          string    `json:"status"`
	Balance         int64     `json:"balance"`
	CreditLimit     int64     `json:"credit_limit"`
	AvailableCredit int64     `json:"available_credit"`
	Spendable       string    `json:"spendable"`
	CreatedAt       time.Time `json:"created_at"`
}

func toAccountDTO(a *domain.Account) accountDTO {
	return accountDTO{
		ID:              a.ID,
		AccountNumber:   a.AccountNumber,
		PartyID:         a.PartyID,
		OwnerName:       a.OwnerName,
		Currency:        string(a.Currency),
		Kind:            string(a.Kind),
		Status:          string(a.Status),
		Balance:         a.Balance,
		CreditLimit:     a.CreditLimit,
		AvailableCredit: a.AvailableCredit,
		Spendable:       domain.NewMoney(a.Spendable(), a.Currency).String(),
		CreatedAt:       a.CreatedAt,
	}
}

type transactionDTO struct {
	ID            string     `json:"id"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	Amount        int64      `json:"amount"`
	Currency      string     `json:"currency"`
	Display       string     `json:"display"`
	FromAccountID *uuid.UUID `json:"from_account_id"`
	ToAccountID   *uuid.UUID `json:"to_account_id"`
	Reference     *string    `json:"reference,omitempty"`
	Message       *string    `json:"message,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toTransactionDTO(t *domain.Transaction) transactionDTO {
	return transactionDTO{
		ID:            t.ID,
		Type:          string(t.Type),
		Status:        string(t.Status),
		Amount:        t.Amount,
		Currency:      string(t.Currency),
		Display:       domain.NewMoney(t.Amount, t.Currency).String(),
		FromAccountID: t.FromAccountID,
		ToAccountID:   t.ToAccountID,
		Reference:     t.ExternalRef,
		Message:       t.Message,
		CreatedAt:     t.CreatedAt,
	}
}

type statementLineDTO struct {
	transactionDTO
	SignedAmount int64 `json:"signed_amount"`
}

func (h *AccountHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	kind := domain.AccountKind(req.Kind)
	if kind == "" {
		kind = domain.AccountKindSavings
	}

	account, err := h.accounts.OpenAccount(r.Context(), service.OpenAccountRequest{
		PartyID:     uuid.MustParse(req.PartyID),
		Currency:    domain.Currency(req.Currency),
		Kind:        kind,
		CreditLimit: req.CreditLimit,
	})
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to open account", "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/accounts/%s", account.AccountNumber))
	RespondSuccess(w, http.StatusCreated, toAccountDTO(account))
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.GetAccount(r.Context(), r.PathValue("number"))
	if err != nil {
		logging.FromContext(r.Context()).Warn("account lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toAccountDTO(account))
}

func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var fields []FieldError
	var f domain.AccountFilter

	if v := q.Get("party_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			fields = append(fields, FieldError{Field: "party_id", Message: "must be a UUID"})
		} else {
			f.PartyID = &id
		}
	}
	f.Currency = domain.Currency(q.Get("currency"))
	switch status := domain.AccountStatus(q.Get("status")); status {
	case "", domain.AccountStatusActive, domain.AccountStatusClosed:
		f.Status = status
	default:
		fields = append(fields, FieldError{Field: "status", Message: "must be ACTIVE or CLOSED"})
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

	accounts, err := h.accounts.ListAccounts(r.Context(), f)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list accounts", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]accountDTO, len(accounts))
	for i := range accounts {
		dtos[i] = toAccountDTO(&accounts[i])
	}

	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *AccountHandler) Close(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.CloseAccount(r.Context(), r.PathValue("number"))
	if err != nil {
		logging.FromContext(r.Context()).Warn("account close refused", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toAccountDTO(account))
}

func (h *AccountHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var fields []FieldError
	var f domain.TransactionFilter

	switch typ := domain.TransactionType(q.Get("type")); typ {
	case "", domain.TransactionTypeTransfer, domain.TransactionTypeCardPayment:
		f.Type = typ
	default:
		fields = append(fields, FieldError{Field: "type", Message: "must be TRANSFER or CARD_PAYMENT"})
	}
	switch status := domain.TransactionStatus(q.Get("status")); status {
	case "", domain.TransactionStatusPosted, domain.TransactionStatusFailed:
		f.Status = status
	default:
		fields = append(fields, FieldError{Field: "status", Message: "must be POSTED or FAILED"})
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			fields = append(fields, FieldError{Field: p.name, Message: "must be an RFC 3339 timestamp"})
			continue
		}
		*p.dst = &ts
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

	lines, err := h.accounts.ListTransactions(r.Context(), r.PathValue("number"), f)
	if err != nil {
		logging.FromContext(r.Context()).Warn("statement lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]statementLineDTO, len(lines))
	for i := range lines {
		dtos[i] = statementLineDTO{
			transactionDTO: toTransactionDTO(&lines[i].Transaction),
			SignedAmount:   lines[i].SignedAmount,
		}
	}

	RespondSuccess(w, http.StatusOK, dtos)
}

func parseLimit(q url.Values) (int, *FieldError) {
	v := q.Get("limit")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, &FieldError{Field: "limit", Message: "must be a positive integer"}
	}
	return n, nil
}
