package paylink

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/corebank/internal/domain"
	"github.com/josh-kwaku/corebank/internal/logging"
	"github.com/josh-kwaku/corebank/internal/service/payment"
)

// PayRequest carries the payer's card. Amount is only read for links bound
// to an account; intent links charge the intent's amount.
type PayRequest struct {
	Card   domain.CardDetails
	Amount int64
}

// Pay charges the card through the link. The link row stays locked for the
// whole attempt and is consumed in the same commit that captures. A refused
// payment is committed as FAILED and its cause returned alongside the
// confirmation.
func (i *Issuer) Pay(ctx context.Context, slug string, req PayRequest) (*payment.Confirmation, error) {
	ctx = payment.WithActor(ctx, "paylink:"+slug)
	ctx = logging.With(ctx, "slug", slug)

	tx, err := i.payments.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("Pay: %w", err)
	}
	defer tx.Rollback()

	link, err := i.links.GetForUpdate(ctx, tx, slug)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("Pay: %w", domain.ErrLinkInvalid)
		}
		return nil, fmt.Errorf("Pay: %w", err)
	}
	if !link.UsableAt(i.now()) {
		return nil, fmt.Errorf("Pay: %w", domain.ErrLinkInvalid)
	}

	var intentID uuid.UUID
	if link.IntentID != nil {
		intentID = *link.IntentID
	} else {
		acct, err := i.accounts.GetByID(ctx, *link.AccountID)
		if err != nil {
			return nil, fmt.Errorf("Pay: %w", err)
		}
		description := "paylink " + slug
		intent, err := i.payments.CreateIntentInTx(ctx, tx, acct.ID,
			domain.Money{Amount: req.Amount, Currency: acct.Currency}, &description)
		if err != nil {
			if errors.Is(err, domain.ErrAccountClosed) {
				return nil, fmt.Errorf("Pay: %w", domain.ErrLinkInvalid)
			}
			return nil, fmt.Errorf("Pay: %w", err)
		}
		intentID = intent.ID
	}

	conf, cause := i.payments.ConfirmInTx(ctx, tx, intentID, req.Card)
	if conf == nil {
		return nil, fmt.Errorf("Pay: %w", cause)
	}
	if conf.Replayed {
		return nil, fmt.Errorf("Pay: intent is %s: %w", conf.Intent.Status, domain.ErrLinkInvalid)
	}

	if conf.Intent.Status == domain.IntentStatusCaptured && link.AccountID != nil {
		if err := i.links.MarkUsed(ctx, tx, slug); err != nil {
			return nil, fmt.Errorf("Pay: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Pay: commit: %w", err)
	}

	log := logging.FromContext(ctx)
	if cause != nil {
		log.Warn("paylink payment failed", "intent_id", conf.Intent.ID, "reason", cause.Error())
		return conf, fmt.Errorf("Pay: %w", cause)
	}
	log.Info("paylink payment captured",
		"intent_id", conf.Intent.ID,
		"transaction_id", conf.Transaction.ID,
		"amount", conf.Intent.Amount,
	)
	return conf, nil
}
