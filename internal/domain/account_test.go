package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountDebit(t *testing.T) {
	tests := []struct {
		name          string
		account       Account
		amount        int64
		wantErr       error
		wantBalance   int64
		wantAvailable int64
	}{
		{
			name:        "savings with enough balance",
			account:     Account{Kind: AccountKindSavings, Balance: 10000},
			amount:      3000,
			wantBalance: 7000,
		},
		{
			name:        "savings drained to zero",
			account:     Account{Kind: AccountKindSavings, Balance: 3000},
			amount:      3000,
			wantBalance: 0,
		},
		{
			name:        "savings overdraft rejected",
			account:     Account{Kind: AccountKindSavings, Balance: 2999},
			amount:      3000,
			wantErr:     ErrInsufficientFunds,
			wantBalance: 2999,
		},
		{
			name:          "credit draws available credit",
			account:       Account{Kind: AccountKindCredit, CreditLimit: 50000, AvailableCredit: 20000},
			amount:        5000,
			wantAvailable: 15000,
		},
		{
			name:          "credit beyond available rejected",
			account:       Account{Kind: AccountKindCredit, CreditLimit: 50000, AvailableCredit: 100, Balance: 900000},
			amount:        101,
			wantErr:       ErrInsufficientFunds,
			wantBalance:   900000,
			wantAvailable: 100,
		},
		{
			name:        "zero amount",
			account:     Account{Kind: AccountKindSavings, Balance: 10},
			amount:      0,
			wantErr:     ErrInvalidAmount,
			wantBalance: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct := tt.account
			err := acct.Debit(tt.amount)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantBalance, acct.Balance)
			assert.Equal(t, tt.wantAvailable, acct.AvailableCredit)
		})
	}
}

func TestAccountCredit(t *testing.T) {
	savings := Account{Kind: AccountKindSavings, Balance: 100}
	require.NoError(t, savings.Credit(900))
	assert.Equal(t, int64(1000), savings.Balance)

	credit := Account{Kind: AccountKindCredit, CreditLimit: 1000, AvailableCredit: 900}
	require.NoError(t, credit.Credit(300))
	assert.Equal(t, int64(1200), credit.AvailableCredit, "overpayment is kept, not capped at the limit")
	assert.Equal(t, int64(0), credit.Balance)

	assert.ErrorIs(t, savings.Credit(-1), ErrInvalidAmount)

	full := Account{Kind: AccountKindSavings, Currency: CurrencyDOP, Balance: math.MaxInt64 - 10}
	assert.ErrorIs(t, full.Credit(11), ErrInvalidAmount)
	assert.Equal(t, int64(math.MaxInt64-10), full.Balance, "a refused credit leaves the balance untouched")
}
