package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/corebank/internal/domain"
	"github.com/josh-kwaku/corebank/internal/logging"
)

type CreateIntentRequest struct {
	Account     string
	Amount      int64
	Currency    domain.Currency
	Description *string
}

// Confirmation is the result of a confirm attempt. Transaction is the row
// written by this attempt, or nil when nothing moved.
type Confirmation struct {
	Intent      *domain.PaymentIntent
	Transaction *domain.Transaction
	Replayed    bool
}

func (s *Service) CreateIntent(ctx context.Context, req CreateIntentRequest) (*domain.PaymentIntent, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("CreateIntent: %w", domain.ErrInvalidAmount)
	}
	if !req.Currency.IsValid() {
		return nil, fmt.Errorf("CreateIntent: %q: %w", req.Currency, domain.ErrInvalidCurrency)
	}

	acct, err := s.resolveAccount(ctx, req.Account)
	if err != nil {
		return nil, fmt.Errorf("CreateIntent: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("CreateIntent: begin tx: %w", err)
	}
	defer tx.Rollback()

	intent, err := s.createIntent(ctx, tx, acct, domain.Money{Amount: req.Amount, Currency: req.Currency}, req.Description)
	if err != nil {
		return nil, fmt.Errorf("CreateIntent: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("CreateIntent: commit: %w", err)
	}

	logging.FromContext(ctx).Info("payment intent created",
		"intent_id", intent.ID,
		"account", acct.AccountNumber,
		"amount", intent.Amount,
		"currency", intent.Currency,
	)
	s.metrics.IntentTransition(string(intent.Status))
	return intent, nil
}

// CreateIntentInTx opens an intent for the account with the given id inside
// a transaction owned by the caller.
func (s *Service) CreateIntentInTx(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, amount domain.Money, description *string) (*domain.PaymentIntent, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("CreateIntentInTx: %w", domain.ErrInvalidAmount)
	}
	if !amount.Currency.IsValid() {
		return nil, fmt.Errorf("CreateIntentInTx: %w", domain.ErrInvalidCurrency)
	}

	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("CreateIntentInTx: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("CreateIntentInTx: %w", err)
	}

	intent, err := s.createIntent(ctx, tx, acct, amount, description)
	if err != nil {
		return nil, fmt.Errorf("CreateIntentInTx: %w", err)
	}
	s.metrics.IntentTransition(string(intent.Status))
	return intent, nil
}

func (s *Service) createIntent(ctx context.Context, tx *sql.Tx, acct *domain.Account, amount domain.Money, description *string) (*domain.PaymentIntent, error) {
	if !acct.IsActive() {
		return nil, fmt.Errorf("createIntent: %s: %w", acct.AccountNumber, domain.ErrAccountClosed)
	}
	if acct.Currency != amount.Currency {
		return nil, fmt.Errorf("createIntent: account %s holds %s: %w", acct.AccountNumber, acct.Currency, domain.ErrCurrencyMismatch)
	}

	now := s.now()
	intent := &domain.PaymentIntent{
		ID:          uuid.New(),
		AccountID:   acct.ID,
		Amount:      amount.Amount,
		Currency:    amount.Currency,
		Status:      domain.IntentStatusRequiresPayment,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.intents.Create(ctx, tx, intent); err != nil {
		return nil, fmt.Errorf("createIntent: %w", err)
	}
	if err := s.recordEvent(ctx, tx, intent, eventDetail{}); err != nil {
		return nil, fmt.Errorf("createIntent: %w", err)
	}
	return intent, nil
}

func (s *Service) GetIntent(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error) {
	intent, err := s.intents.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("GetIntent: %s: %w", id, domain.ErrIntentNotFound)
		}
		return nil, fmt.Errorf("GetIntent: %w", err)
	}
	return intent, nil
}

func (s *Service) ListIntentEvents(ctx context.Context, id uuid.UUID) ([]domain.IntentEvent, error) {
	if _, err := s.GetIntent(ctx, id); err != nil {
		return nil, fmt.Errorf("ListIntentEvents: %w", err)
	}
	events, err := s.events.ListByIntent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ListIntentEvents: %w", err)
	}
	return events, nil
}

// ConfirmIntent charges the card for the intent's amount. A refused payment
// moves the intent to FAILED and that transition is committed before the
// cause is returned. Confirming a terminal intent returns it unchanged.
func (s *Service) ConfirmIntent(ctx context.Context, id uuid.UUID, card domain.CardDetails) (*Confirmation, error) {
	started := s.now()
	defer s.metrics.ObserveTx("confirm", started)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ConfirmIntent: begin tx: %w", err)
	}
	defer tx.Rollback()

	conf, cause := s.ConfirmInTx(ctx, tx, id, card)
	if conf == nil {
		return nil, fmt.Errorf("ConfirmIntent: %w", cause)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("ConfirmIntent: commit: %w", err)
	}
	s.logConfirmation(ctx, conf, cause)

	if cause != nil {
		return conf, fmt.Errorf("ConfirmIntent: %w", cause)
	}
	return conf, nil
}

// ConfirmInTx runs the confirm state machine inside the caller's
// transaction. A non-nil Confirmation means rows were written or read that
// the caller must commit, even when the error is also non-nil: the error is
// then the business reason the intent FAILED. A nil Confirmation means the
// caller must roll back.
func (s *Service) ConfirmInTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, card domain.CardDetails) (*Confirmation, error) {
	intent, err := s.intents.GetForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("ConfirmInTx: %s: %w", id, domain.ErrIntentNotFound)
		}
		return nil, fmt.Errorf("ConfirmInTx: %w", err)
	}

	if intent.Status.IsTerminal() {
		return &Confirmation{Intent: intent, Replayed: true}, nil
	}

	authz, err := s.authorizer.Authorize(ctx, card, intent.Money())
	if err != nil {
		return nil, fmt.Errorf("ConfirmInTx: authorize: %w", err)
	}
	if !authz.Approved {
		return s.fail(ctx, tx, intent, nil, authz.DeclineReason,
			fmt.Errorf("%s: %w", authz.DeclineReason, domain.ErrCardDeclined))
	}

	fundingID := authz.FundingAccountID
	if fundingID == intent.AccountID {
		return s.fail(ctx, tx, intent, nil, "card funds the destination account", domain.ErrSelfTransfer)
	}

	locked, err := lockAccountsInOrder(ctx, tx, s.accounts, fundingID, intent.AccountID)
	if err != nil {
		return nil, fmt.Errorf("ConfirmInTx: %w", err)
	}
	funding, dest := locked[fundingID], locked[intent.AccountID]

	if err := checkParticipant(dest, intent.Currency, "destination"); err != nil {
		return s.fail(ctx, tx, intent, nil, "destination account unavailable", err)
	}
	if err := checkParticipant(funding, intent.Currency, "funding"); err != nil {
		reason := "funding account closed"
		if errors.Is(err, domain.ErrCurrencyMismatch) {
			reason = "funding account currency mismatch"
		}
		return s.fail(ctx, tx, intent, &funding.ID, reason, err)
	}

	if err := s.move(ctx, tx, funding, dest, intent.Amount); err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			return s.fail(ctx, tx, intent, &funding.ID, "insufficient funds", err)
		}
		return nil, fmt.Errorf("ConfirmInTx: %w", err)
	}

	now := s.now()
	t, err := s.appendTransaction(ctx, tx, entry{
		typ:    domain.TransactionTypeCardPayment,
		status: domain.TransactionStatusPosted,
		money:  intent.Money(),
		from:   &funding.ID,
		to:     &dest.ID,
		ref:    ptr(intent.ID.String()),
	}, now)
	if err != nil {
		return nil, fmt.Errorf("ConfirmInTx: %w", err)
	}

	if err := intent.Transition(domain.IntentStatusCaptured, now); err != nil {
		return nil, fmt.Errorf("ConfirmInTx: %w", err)
	}
	intent.CaptureTransactionID = &t.ID
	if err := s.intents.Update(ctx, tx, intent); err != nil {
		return nil, fmt.Errorf("ConfirmInTx: %w", err)
	}
	if err := s.recordEvent(ctx, tx, intent, eventDetail{TransactionID: t.ID, CardID: authz.CardID.String()}); err != nil {
		return nil, fmt.Errorf("ConfirmInTx: %w", err)
	}

	if _, err := s.links.MarkUsedByIntent(ctx, tx, intent.ID); err != nil {
		return nil, fmt.Errorf("ConfirmInTx: consume paylinks: %w", err)
	}

	s.metrics.IntentTransition(string(intent.Status))
	return &Confirmation{Intent: intent, Transaction: t}, nil
}

// fail records the refused attempt as a FAILED transaction and moves the
// intent to FAILED. The returned error carries cause for the caller.
func (s *Service) fail(ctx context.Context, tx *sql.Tx, intent *domain.PaymentIntent, from *uuid.UUID, reason string, cause error) (*Confirmation, error) {
	now := s.now()
	t, err := s.appendTransaction(ctx, tx, entry{
		typ:     domain.TransactionTypeCardPayment,
		status:  domain.TransactionStatusFailed,
		money:   intent.Money(),
		from:    from,
		to:      &intent.AccountID,
		ref:     ptr(intent.ID.String()),
		message: &reason,
	}, now)
	if err != nil {
		return nil, fmt.Errorf("fail: %w", err)
	}

	if err := intent.Transition(domain.IntentStatusFailed, now); err != nil {
		return nil, fmt.Errorf("fail: %w", err)
	}
	intent.FailureReason = &reason
	if err := s.intents.Update(ctx, tx, intent); err != nil {
		return nil, fmt.Errorf("fail: %w", err)
	}
	if err := s.recordEvent(ctx, tx, intent, eventDetail{TransactionID: t.ID, Reason: reason}); err != nil {
		return nil, fmt.Errorf("fail: %w", err)
	}

	s.metrics.IntentTransition(string(intent.Status))
	return &Confirmation{Intent: intent, Transaction: t}, cause
}

// CancelIntent abandons an intent that is still awaiting payment. Canceling
// an already canceled intent is a no-op.
func (s *Service) CancelIntent(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error) {
	return s.cancel(ctx, id, "canceled by request")
}

// CancelStale cancels an intent on behalf of the expiry sweeper. Intents
// that moved on since they were selected are left alone.
func (s *Service) CancelStale(ctx context.Context, id uuid.UUID) (bool, error) {
	intent, err := s.cancel(ctx, id, "paylink expired")
	if err != nil {
		if errors.Is(err, domain.ErrIntentTerminal) {
			return false, nil
		}
		return false, fmt.Errorf("CancelStale: %w", err)
	}
	return intent.Status == domain.IntentStatusCanceled, nil
}

func (s *Service) cancel(ctx context.Context, id uuid.UUID, reason string) (*domain.PaymentIntent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("cancel: begin tx: %w", err)
	}
	defer tx.Rollback()

	intent, err := s.intents.GetForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("cancel: %s: %w", id, domain.ErrIntentNotFound)
		}
		return nil, fmt.Errorf("cancel: %w", err)
	}

	switch intent.Status {
	case domain.IntentStatusCanceled:
		return intent, nil
	case domain.IntentStatusCaptured, domain.IntentStatusFailed:
		return nil, fmt.Errorf("cancel: intent is %s: %w", intent.Status, domain.ErrIntentTerminal)
	case domain.IntentStatusRequiresPayment:
	default:
		panic(fmt.Sprintf("unknown intent status %q", intent.Status))
	}

	if err := intent.Transition(domain.IntentStatusCanceled, s.now()); err != nil {
		return nil, fmt.Errorf("cancel: %w", err)
	}
	intent.FailureReason = &reason
	if err := s.intents.Update(ctx, tx, intent); err != nil {
		return nil, fmt.Errorf("cancel: %w", err)
	}
	if err := s.recordEvent(ctx, tx, intent, eventDetail{Reason: reason}); err != nil {
		return nil, fmt.Errorf("cancel: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("cancel: commit: %w", err)
	}

	logging.FromContext(ctx).Info("payment intent canceled", "intent_id", intent.ID, "reason", reason)
	s.metrics.IntentTransition(string(intent.Status))
	return intent, nil
}

type eventDetail struct {
	Status        domain.IntentStatus `json:"status"`
	TransactionID string              `json:"transaction_id,omitempty"`
	CardID        string              `json:"card_id,omitempty"`
	Reason        string              `json:"reason,omitempty"`
}

func (s *Service) recordEvent(ctx context.Context, tx *sql.Tx, intent *domain.PaymentIntent, detail eventDetail) error {
	detail.Status = intent.Status
	payload, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("recordEvent: marshal: %w", err)
	}

	event := &domain.IntentEvent{
		ID:        uuid.New(),
		IntentID:  intent.ID,
		EventType: domain.EventTypeFor(intent.Status),
		Actor:     actorFrom(ctx),
		Payload:   payload,
		CreatedAt: intent.UpdatedAt,
	}
	if err := s.events.Create(ctx, tx, event); err != nil {
		return fmt.Errorf("recordEvent: %w", err)
	}
	return nil
}

func (s *Service) logConfirmation(ctx context.Context, conf *Confirmation, cause error) {
	log := logging.FromContext(ctx)
	switch {
	case conf.Replayed:
		log.Info("payment intent already settled", "intent_id", conf.Intent.ID, "status", conf.Intent.Status)
	case cause != nil:
		log.Warn("payment intent failed",
			"intent_id", conf.Intent.ID,
			"transaction_id", conf.Transaction.ID,
			"reason", cause.Error(),
		)
	default:
		log.Info("payment intent captured",
			"intent_id", conf.Intent.ID,
			"transaction_id", conf.Transaction.ID,
			"amount", conf.Intent.Amount,
			"currency", conf.Intent.Currency,
		)
	}
}
