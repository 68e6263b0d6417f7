package payment

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/corebank/internal/domain"
)

const (
	DeclineInvalidNumber = "invalid card number"
	DeclineUnknownCard   = "card not recognized"
	DeclineCVCMismatch   = "cvc mismatch"
	DeclineExpired       = "card expired"
)

// Authorization is the verdict on a presented card. FundingAccountID is only
// meaningful when Approved is true.
type Authorization struct {
	Approved         bool
	FundingAccountID uuid.UUID
	CardID           uuid.UUID
	DeclineReason    string
}

func declined(reason string) Authorization {
	return Authorization{DeclineReason: reason}
}

// CardAuthorizer decides whether a card may fund a payment. A declined card
// is not an error; errors are reserved for failures to reach a verdict.
type CardAuthorizer interface {
	Authorize(ctx context.Context, card domain.CardDetails, amount domain.Money) (Authorization, error)
}

type cardFinder interface {
	FindActive(ctx context.Context, panHash string, expMonth, expYear int) (*domain.Card, error)
}

// LocalCardAuthorizer approves cards issued by this ledger, matching them
// against the stored card table.
type LocalCardAuthorizer struct {
	cards  cardFinder
	hasher domain.CardHasher
	now    func() time.Time
}

func NewLocalCardAuthorizer(cards cardFinder, hasher domain.CardHasher, now func() time.Time) *LocalCardAuthorizer {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &LocalCardAuthorizer{cards: cards, hasher: hasher, now: now}
}

func (a *LocalCardAuthorizer) Authorize(ctx context.Context, details domain.CardDetails, amount domain.Money) (Authorization, error) {
	if !amount.IsPositive() {
		return Authorization{}, fmt.Errorf("Authorize: %w", domain.ErrInvalidAmount)
	}

	pan := domain.NormalizePAN(details.Number)
	if !domain.PassesLuhn(pan) {
		return declined(DeclineInvalidNumber), nil
	}

	card, err := a.cards.FindActive(ctx, a.hasher.Hash(pan), details.ExpMonth, details.ExpYear)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return declined(DeclineUnknownCard), nil
		}
		return Authorization{}, fmt.Errorf("Authorize: %w", err)
	}

	if card.CVCHash != nil {
		given := a.hasher.Hash(details.CVC)
		if details.CVC == "" || subtle.ConstantTimeCompare([]byte(given), []byte(*card.CVCHash)) != 1 {
			return declined(DeclineCVCMismatch), nil
		}
	}

	if card.ExpiredAt(a.now()) {
		return declined(DeclineExpired), nil
	}

	return Authorization{
		Approved:         true,
		FundingAccountID: card.AccountID,
		CardID:           card.ID,
	}, nil
}
