package testutil

import (
	"database/sql"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/corebank/internal/domain"
)

// CardHasher is the key SeedCard hashes with; authorizers under test must
// use the same one.
var CardHasher = domain.NewCardHasher("corebank-test-card-key")

// SeedParty registers a party with a random cedula number.
func SeedParty(t *testing.T, db *sql.DB, fullName string) *domain.Party {
	t.Helper()

	p := &domain.Party{
		ID:        uuid.New(),
		DocType:   domain.DocTypeCedula,
		DocNumber: fmt.Sprintf("%011d", rand.Int64N(100_000_000_000)),
		FullName:  fullName,
		CreatedAt: time.Now().UTC(),
	}
	_, err := db.Exec(
		`INSERT INTO parties (id, doc_type, doc_number, full_name, email, created_at)
		 VALUES ($1, $2, $3, $4, NULL, $5)`,
		p.ID, p.DocType, p.DocNumber, p.FullName, p.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed party %s: %v", fullName, err)
	}
	return p
}

// SeedSavingsAccount inserts an active savings account holding balance.
func SeedSavingsAccount(t *testing.T, db *sql.DB, currency domain.Currency, balance int64) *domain.Account {
	t.Helper()
	return seedAccount(t, db, &domain.Account{
		Currency: currency,
		Kind:     domain.AccountKindSavings,
		Balance:  balance,
	})
}

// SeedCreditAccount inserts an active credit account with available credit.
func SeedCreditAccount(t *testing.T, db *sql.DB, currency domain.Currency, limit, available int64) *domain.Account {
	t.Helper()
	return seedAccount(t, db, &domain.Account{
		Currency:        currency,
		Kind:            domain.AccountKindCredit,
		CreditLimit:     limit,
		AvailableCredit: available,
	})
}

func seedAccount(t *testing.T, db *sql.DB, a *domain.Account) *domain.Account {
	t.Helper()

	owner := SeedParty(t, db, "Test Owner "+string(a.Kind))

	a.ID = uuid.New()
	a.AccountNumber = fmt.Sprintf("%010d", rand.Int64N(10_000_000_000))
	a.PartyID = owner.ID
	a.OwnerName = owner.FullName
	a.Status = domain.AccountStatusActive
	a.CreatedAt = time.Now().UTC()

	_, err := db.Exec(
		`INSERT INTO accounts (id, account_number, party_id, currency, kind, status,
			balance, credit_limit, available_credit, version, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10)`,
		a.ID, a.AccountNumber, a.PartyID, a.Currency, a.Kind, a.Status,
		a.Balance, a.CreditLimit, a.AvailableCredit, a.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed account %s: %v", a.Kind, err)
	}
	return a
}

// TestCard is a Luhn-valid card number with its printed details.
type TestCard struct {
	Details domain.CardDetails
	Card    *domain.Card
}

// SeedCard issues an active card funded by account.
func SeedCard(t *testing.T, db *sql.DB, account *domain.Account, number, cvc string, expMonth, expYear int) *TestCard {
	t.Helper()

	cvcHash := CardHasher.Hash(cvc)
	c := &domain.Card{
		ID:        uuid.New(),
		PartyID:   account.PartyID,
		AccountID: account.ID,
		MaskedPAN: domain.MaskPAN(number),
		PANHash:   CardHasher.Hash(domain.NormalizePAN(number)),
		CVCHash:   &cvcHash,
		ExpMonth:  expMonth,
		ExpYear:   expYear,
		Status:    domain.CardStatusActive,
		CreatedAt: time.Now().UTC(),
	}

	_, err := db.Exec(
		`INSERT INTO cards (id, party_id, account_id, masked_pan, pan_hash, cvc_hash,
			exp_month, exp_year, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.PartyID, c.AccountID, c.MaskedPAN, c.PANHash, c.CVCHash,
		c.ExpMonth, c.ExpYear, c.Status, c.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed card for %s: %v", account.AccountNumber, err)
	}

	return &TestCard{
		Details: domain.CardDetails{Number: number, ExpMonth: expMonth, ExpYear: expYear, CVC: cvc},
		Card:    c,
	}
}

func GetAccountBalance(t *testing.T, db *sql.DB, accountID uuid.UUID) int64 {
	t.Helper()

	var balance int64
	err := db.QueryRow(`SELECT balance FROM accounts WHERE id = $1`, accountID).Scan(&balance)
	if err != nil {
		t.Fatalf("get account balance %s: %v", accountID, err)
	}
	return balance
}

func GetAvailableCredit(t *testing.T, db *sql.DB, accountID uuid.UUID) int64 {
	t.Helper()

	var available int64
	err := db.QueryRow(`SELECT available_credit FROM accounts WHERE id = $1`, accountID).Scan(&available)
	if err != nil {
		t.Fatalf("get available credit %s: %v", accountID, err)
	}
	return available
}

// CountTransactions counts ledger rows touching the account with status.
func CountTransactions(t *testing.T, db *sql.DB, accountID uuid.UUID, status domain.TransactionStatus) int {
	t.Helper()

	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM transactions
		 WHERE (from_account_id = $1 OR to_account_id = $1) AND status = $2`,
		accountID, status,
	).Scan(&count)
	if err != nil {
		t.Fatalf("count transactions for %s: %v", accountID, err)
	}
	return count
}
