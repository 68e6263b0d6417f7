package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/josh-kwaku/corebank/internal/domain"
	"github.com/josh-kwaku/corebank/internal/logging"
)

// TransferRequest moves Amount between two accounts identified by their
// account numbers.
type TransferRequest struct {
	From      string
	To        string
	Amount    int64
	Currency  domain.Currency
	Reference *string
	Message   *string
}

func (s *Service) Transfer(ctx context.Context, req TransferRequest) (*domain.Transaction, error) {
	log := logging.FromContext(ctx)

	if err := validateTransferRequest(req); err != nil {
		s.metrics.TransferOutcome(outcomeLabel(err))
		return nil, fmt.Errorf("Transfer: %w", err)
	}

	from, err := s.resolveAccount(ctx, req.From)
	if err != nil {
		s.metrics.TransferOutcome(outcomeLabel(err))
		return nil, fmt.Errorf("Transfer: from: %w", err)
	}
	to, err := s.resolveAccount(ctx, req.To)
	if err != nil {
		s.metrics.TransferOutcome(outcomeLabel(err))
		return nil, fmt.Errorf("Transfer: to: %w", err)
	}

	t, err := s.executeTransfer(ctx, req, from, to)
	s.metrics.TransferOutcome(outcomeLabel(err))
	if err != nil {
		return nil, fmt.Errorf("Transfer: %w", err)
	}

	log.Info("transfer posted",
		"transaction_id", t.ID,
		"from_account", req.From,
		"to_account", req.To,
		"amount", t.Amount,
		"currency", t.Currency,
	)
	return t, nil
}

func validateTransferRequest(req TransferRequest) error {
	if req.Amount <= 0 {
		return fmt.Errorf("validateTransferRequest: %w", domain.ErrInvalidAmount)
	}
	if !req.Currency.IsValid() {
		return fmt.Errorf("validateTransferRequest: %q: %w", req.Currency, domain.ErrInvalidCurrency)
	}
	if req.From == "" || req.To == "" {
		return fmt.Errorf("validateTransferRequest: account numbers are required: %w", domain.ErrInvalidRequest)
	}
	if req.From == req.To {
		return fmt.Errorf("validateTransferRequest: %w", domain.ErrSelfTransfer)
	}
	return nil
}

// checkParticipant runs against the locked row, so a concurrent close or a
// stale read cannot slip through.
func checkParticipant(acct *domain.Account, currency domain.Currency, role string) error {
	if !acct.IsActive() {
		return fmt.Errorf("%s %s: %w", role, acct.AccountNumber, domain.ErrAccountClosed)
	}
	if acct.Currency != currency {
		return fmt.Errorf("%s %s holds %s: %w", role, acct.AccountNumber, acct.Currency, domain.ErrCurrencyMismatch)
	}
	return nil
}

func (s *Service) executeTransfer(ctx context.Context, req TransferRequest, fromAcct, toAcct *domain.Account) (*domain.Transaction, error) {
	started := s.now()
	defer s.metrics.ObserveTx("transfer", started)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("executeTransfer: begin tx: %w", err)
	}
	defer tx.Rollback()

	locked, err := lockAccountsInOrder(ctx, tx, s.accounts, fromAcct.ID, toAcct.ID)
	if err != nil {
		return nil, fmt.Errorf("executeTransfer: %w", err)
	}
	from, to := locked[fromAcct.ID], locked[toAcct.ID]

	if err := checkParticipant(from, req.Currency, "sender"); err != nil {
		return nil, fmt.Errorf("executeTransfer: %w", err)
	}
	if err := checkParticipant(to, req.Currency, "recipient"); err != nil {
		return nil, fmt.Errorf("executeTransfer: %w", err)
	}

	if err := s.move(ctx, tx, from, to, req.Amount); err != nil {
		return nil, fmt.Errorf("executeTransfer: %w", err)
	}

	t, err := s.appendTransaction(ctx, tx, entry{
		typ:     domain.TransactionTypeTransfer,
		status:  domain.TransactionStatusPosted,
		money:   domain.Money{Amount: req.Amount, Currency: req.Currency},
		from:    &from.ID,
		to:      &to.ID,
		ref:     req.Reference,
		message: req.Message,
	}, s.now())
	if err != nil {
		return nil, fmt.Errorf("executeTransfer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("executeTransfer: commit: %w", err)
	}
	return t, nil
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "posted"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrCardDeclined):
		return "card_declined"
	default:
		return strings.ToLower(string(domain.KindOf(err)))
	}
}
