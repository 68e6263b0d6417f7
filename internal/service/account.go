package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/corebank/internal/domain"
	"github.com/josh-kwaku/corebank/internal/logging"
)

const maxAccountNumberAttempts = 3

type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

type accountRepo interface {
	GetByNumber(ctx context.Context, number string) (*domain.Account, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Account, error)
	Create(ctx context.Context, account *domain.Account) error
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.AccountStatus) error
	List(ctx context.Context, f domain.AccountFilter) ([]domain.Account, error)
}

type partyLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Party, error)
}

type statementRepo interface {
	ListByAccount(ctx context.Context, accountID uuid.UUID, f domain.TransactionFilter) ([]domain.StatementLine, error)
}

type AccountService struct {
	accounts   accountRepo
	parties    partyLookup
	statements statementRepo
	db         txBeginner
	now        func() time.Time
}

func NewAccountService(accounts accountRepo, parties partyLookup, statements statementRepo, db txBeginner) *AccountService {
	return &AccountService{
		accounts:   accounts,
		parties:    parties,
		statements: statements,
		db:         db,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// OpenAccountRequest opens a savings account with a zero balance, or a
// credit account whose available credit starts at CreditLimit.
type OpenAccountRequest struct {
	PartyID     uuid.UUID
	Currency    domain.Currency
	Kind        domain.AccountKind
	CreditLimit int64
}

func (s *AccountService) OpenAccount(ctx context.Context, req OpenAccountRequest) (*domain.Account, error) {
	log := logging.FromContext(ctx)

	if !req.Currency.IsValid() {
		return nil, fmt.Errorf("OpenAccount: %w", domain.ErrInvalidCurrency)
	}
	if !req.Kind.IsValid() {
		return nil, fmt.Errorf("OpenAccount: kind %q: %w", req.Kind, domain.ErrInvalidRequest)
	}
	if req.PartyID == uuid.Nil {
		return nil, fmt.Errorf("OpenAccount: party is required: %w", domain.ErrInvalidRequest)
	}

	account := &domain.Account{
		ID:        uuid.New(),
		PartyID:   req.PartyID,
		Currency:  req.Currency,
		Kind:      req.Kind,
		Status:    domain.AccountStatusActive,
		CreatedAt: s.now(),
	}

	switch req.Kind {
	case domain.AccountKindSavings:
		if req.CreditLimit != 0 {
			return nil, fmt.Errorf("OpenAccount: savings accounts carry no credit limit: %w", domain.ErrInvalidRequest)
		}
	case domain.AccountKindCredit:
		if req.CreditLimit <= 0 {
			return nil, fmt.Errorf("OpenAccount: credit limit: %w", domain.ErrInvalidAmount)
		}
		account.CreditLimit = req.CreditLimit
		account.AvailableCredit = req.CreditLimit
	}

	owner, err := s.parties.GetByID(ctx, req.PartyID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("OpenAccount: %s: %w", req.PartyID, domain.ErrPartyNotFound)
		}
		return nil, fmt.Errorf("OpenAccount: %w", err)
	}
	account.OwnerName = owner.FullName

	for range maxAccountNumberAttempts {
		account.AccountNumber, err = generateAccountNumber()
		if err != nil {
			return nil, fmt.Errorf("OpenAccount: %w", err)
		}
		err = s.accounts.Create(ctx, account)
		if !errors.Is(err, domain.ErrDuplicateKey) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("OpenAccount: %w", err)
	}

	log.Info("account opened",
		"account_id", account.ID,
		"account_number", account.AccountNumber,
		"party_id", account.PartyID,
		"kind", account.Kind,
		"currency", account.Currency,
	)
	return account, nil
}

func (s *AccountService) GetAccount(ctx context.Context, number string) (*domain.Account, error) {
	account, err := s.accounts.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("GetAccount: %s: %w", number, domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	return account, nil
}

func (s *AccountService) ListAccounts(ctx context.Context, f domain.AccountFilter) ([]domain.Account, error) {
	if f.Currency != "" && !f.Currency.IsValid() {
		return nil, fmt.Errorf("ListAccounts: %w", domain.ErrInvalidCurrency)
	}
	accounts, err := s.accounts.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: %w", err)
	}
	return accounts, nil
}

// CloseAccount retires an account that holds nothing: a savings account at
// zero, or a credit account with nothing owed and no surplus. Closing a
// closed account is a no-op.
func (s *AccountService) CloseAccount(ctx context.Context, number string) (*domain.Account, error) {
	acct, err := s.GetAccount(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("CloseAccount: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("CloseAccount: begin tx: %w", err)
	}
	defer tx.Rollback()

	locked, err := s.accounts.GetForUpdate(ctx, tx, acct.ID)
	if err != nil {
		return nil, fmt.Errorf("CloseAccount: %w", err)
	}
	if !locked.IsActive() {
		return locked, nil
	}

	if err := checkEmpty(locked); err != nil {
		return nil, fmt.Errorf("CloseAccount: %w", err)
	}

	if err := s.accounts.UpdateStatus(ctx, tx, locked.ID, domain.AccountStatusClosed); err != nil {
		return nil, fmt.Errorf("CloseAccount: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("CloseAccount: commit: %w", err)
	}
	locked.Status = domain.AccountStatusClosed

	logging.FromContext(ctx).Info("account closed", "account_id", locked.ID, "account_number", locked.AccountNumber)
	return locked, nil
}

func checkEmpty(a *domain.Account) error {
	switch a.Kind {
	case domain.AccountKindSavings:
		if a.Balance != 0 {
			return fmt.Errorf("balance %d: %w", a.Balance, domain.ErrAccountNotEmpty)
		}
	case domain.AccountKindCredit:
		if a.AvailableCredit != a.CreditLimit {
			return fmt.Errorf("available credit %d of %d: %w", a.AvailableCredit, a.CreditLimit, domain.ErrAccountNotEmpty)
		}
	default:
		panic(fmt.Sprintf("unknown account kind %q", a.Kind))
	}
	return nil
}

// ListTransactions returns the account statement, newest first. Amounts are
// negative for money leaving the account.
func (s *AccountService) ListTransactions(ctx context.Context, number string, f domain.TransactionFilter) ([]domain.StatementLine, error) {
	acct, err := s.GetAccount(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, fmt.Errorf("ListTransactions: to precedes from: %w", domain.ErrInvalidRequest)
	}

	lines, err := s.statements.ListByAccount(ctx, acct.ID, f)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	return lines, nil
}

func generateAccountNumber() (string, error) {
	digits := make([]byte, 10)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generateAccountNumber: %w", err)
		}
		digits[i] = '0' + byte(n.Int64())
	}
	return string(digits), nil
}
