package payment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/corebank/internal/domain"
)

type fakeCardTable struct {
	byHash map[string]domain.Card
}

func (f *fakeCardTable) FindActive(_ context.Context, panHash string, expMonth, expYear int) (*domain.Card, error) {
	c, ok := f.byHash[panHash]
	if !ok || c.ExpMonth != expMonth || c.ExpYear != expYear {
		return nil, fmt.Errorf("FindActive: %w", domain.ErrNotFound)
	}
	return &c, nil
}

func TestLocalCardAuthorizer(t *testing.T) {
	hasher := domain.NewCardHasher("issuer-key")
	fundingID := uuid.New()
	cvc := hasher.Hash("123")
	card := domain.Card{
		ID: uuid.New(), AccountID: fundingID, PANHash: hasher.Hash("4242424242424242"),
		CVCHash: &cvc, ExpMonth: 12, ExpYear: 2099, Status: domain.CardStatusActive,
	}
	past := domain.Card{
		ID: uuid.New(), AccountID: fundingID, PANHash: hasher.Hash("5555555555554444"),
		ExpMonth: 1, ExpYear: 2024, Status: domain.CardStatusActive,
	}
	table := &fakeCardTable{byHash: map[string]domain.Card{card.PANHash: card, past.PANHash: past}}
	auth := NewLocalCardAuthorizer(table, hasher, func() time.Time { return testNow })
	amount := domain.NewMoney(500, domain.CurrencyDOP)

	tests := []struct {
		name       string
		details    domain.CardDetails
		wantReason string
	}{
		{name: "approved", details: domain.CardDetails{Number: "4242 4242 4242 4242", ExpMonth: 12, ExpYear: 2099, CVC: "123"}},
		{name: "luhn failure", details: domain.CardDetails{Number: "4242424242424241", ExpMonth: 12, ExpYear: 2099, CVC: "123"}, wantReason: DeclineInvalidNumber},
		{name: "wrong cvc", details: domain.CardDetails{Number: "4242424242424242", ExpMonth: 12, ExpYear: 2099, CVC: "124"}, wantReason: DeclineCVCMismatch},
		{name: "missing cvc", details: domain.CardDetails{Number: "4242424242424242", ExpMonth: 12, ExpYear: 2099}, wantReason: DeclineCVCMismatch},
		{name: "wrong expiry", details: domain.CardDetails{Number: "4242424242424242", ExpMonth: 11, ExpYear: 2099, CVC: "123"}, wantReason: DeclineUnknownCard},
		{name: "expired", details: domain.CardDetails{Number: "5555555555554444", ExpMonth: 1, ExpYear: 2024}, wantReason: DeclineExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := auth.Authorize(context.Background(), tt.details, amount)
			require.NoError(t, err)
			if tt.wantReason == "" {
				assert.True(t, got.Approved)
				assert.Equal(t, fundingID, got.FundingAccountID)
				return
			}
			assert.False(t, got.Approved)
			assert.Equal(t, tt.wantReason, got.DeclineReason)
		})
	}
}

func TestLocalCardAuthorizer_OtherKeyMatchesNothing(t *testing.T) {
	issued := domain.NewCardHasher("issuer-key")
	card := domain.Card{ID: uuid.New(), PANHash: issued.Hash("4242424242424242"), ExpMonth: 12, ExpYear: 2099}
	table := &fakeCardTable{byHash: map[string]domain.Card{card.PANHash: card}}

	auth := NewLocalCardAuthorizer(table, domain.NewCardHasher("rotated-key"), func() time.Time { return testNow })
	got, err := auth.Authorize(context.Background(),
		domain.CardDetails{Number: "4242424242424242", ExpMonth: 12, ExpYear: 2099}, domain.NewMoney(1, domain.CurrencyDOP))
	require.NoError(t, err)
	assert.Equal(t, DeclineUnknownCard, got.DeclineReason)
}
