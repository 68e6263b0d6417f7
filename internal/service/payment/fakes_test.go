package payment

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/corebank/internal/domain"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeAccounts struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]domain.Account
	lockOrder []uuid.UUID
}

func newFakeAccounts(accts ...*domain.Account) *fakeAccounts {
	f := &fakeAccounts{byID: make(map[uuid.UUID]domain.Account)}
	for _, a := range accts {
		f.byID[a.ID] = *a
	}
	return f
}

func (f *fakeAccounts) GetByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
	}
	return &a, nil
}

func (f *fakeAccounts) GetByNumber(_ context.Context, number string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byID {
		if a.AccountNumber == number {
			return &a, nil
		}
	}
	return nil, fmt.Errorf("GetByNumber: %w", domain.ErrNotFound)
}

func (f *fakeAccounts) GetForUpdate(_ context.Context, _ *sql.Tx, id uuid.UUID) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lockOrder = append(f.lockOrder, id)
	a, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
	}
	return &a, nil
}

func (f *fakeAccounts) UpdateBalances(_ context.Context, _ *sql.Tx, a *domain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := f.byID[a.ID]
	if stored.Version != a.Version {
		return fmt.Errorf("UpdateBalances: %w", domain.ErrVersionConflict)
	}
	a.Version++
	f.byID[a.ID] = *a
	return nil
}

func (f *fakeAccounts) balance(id uuid.UUID) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.byID[id]
	return a.Spendable()
}

type fakeTransactions struct {
	rows []domain.Transaction
}

func (f *fakeTransactions) Create(_ context.Context, _ *sql.Tx, t *domain.Transaction) error {
	f.rows = append(f.rows, *t)
	return nil
}

type fakeIntents struct {
	byID map[uuid.UUID]domain.PaymentIntent
}

func newFakeIntents() *fakeIntents {
	return &fakeIntents{byID: make(map[uuid.UUID]domain.PaymentIntent)}
}

func (f *fakeIntents) Create(_ context.Context, _ *sql.Tx, p *domain.PaymentIntent) error {
	f.byID[p.ID] = *p
	return nil
}

func (f *fakeIntents) GetByID(_ context.Context, id uuid.UUID) (*domain.PaymentIntent, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
	}
	return &p, nil
}

func (f *fakeIntents) GetForUpdate(ctx context.Context, _ *sql.Tx, id uuid.UUID) (*domain.PaymentIntent, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeIntents) Update(_ context.Context, _ *sql.Tx, p *domain.PaymentIntent) error {
	stored, ok := f.byID[p.ID]
	if !ok || stored.Status != domain.IntentStatusRequiresPayment {
		return fmt.Errorf("Update: %w", domain.ErrIntentTerminal)
	}
	f.byID[p.ID] = *p
	return nil
}

type fakeEvents struct {
	rows []domain.IntentEvent
}

func (f *fakeEvents) Create(_ context.Context, _ *sql.Tx, e *domain.IntentEvent) error {
	f.rows = append(f.rows, *e)
	return nil
}

func (f *fakeEvents) ListByIntent(_ context.Context, id uuid.UUID) ([]domain.IntentEvent, error) {
	var out []domain.IntentEvent
	for _, e := range f.rows {
		if e.IntentID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeLinks struct {
	consumed []uuid.UUID
}

func (f *fakeLinks) MarkUsedByIntent(_ context.Context, _ *sql.Tx, id uuid.UUID) (int64, error) {
	f.consumed = append(f.consumed, id)
	return 1, nil
}

type fixedAuthorizer struct {
	authz Authorization
	err   error
	calls int
}

func (f *fixedAuthorizer) Authorize(context.Context, domain.CardDetails, domain.Money) (Authorization, error) {
	f.calls++
	return f.authz, f.err
}

type harness struct {
	svc        *Service
	mock       sqlmock.Sqlmock
	accounts   *fakeAccounts
	txns       *fakeTransactions
	intents    *fakeIntents
	events     *fakeEvents
	links      *fakeLinks
	authorizer *fixedAuthorizer
}

func newHarness(t *testing.T, accts ...*domain.Account) *harness {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	h := &harness{
		mock:       mock,
		accounts:   newFakeAccounts(accts...),
		txns:       &fakeTransactions{},
		intents:    newFakeIntents(),
		events:     &fakeEvents{},
		links:      &fakeLinks{},
		authorizer: &fixedAuthorizer{},
	}
	h.svc = NewService(h.accounts, h.txns, h.intents, h.events, h.links, h.authorizer, db,
		WithClock(func() time.Time { return testNow }),
	)
	return h
}

func (h *harness) expectCommit() {
	h.mock.ExpectBegin()
	h.mock.ExpectCommit()
}

func (h *harness) expectRollback() {
	h.mock.ExpectBegin()
	h.mock.ExpectRollback()
}

func savings(number string, balance int64) *domain.Account {
	return &domain.Account{
		ID:            uuid.New(),
		AccountNumber: number,
		PartyID:       uuid.New(),
		Currency:      domain.CurrencyDOP,
		Kind:          domain.AccountKindSavings,
		Status:        domain.AccountStatusActive,
		Balance:       balance,
		CreatedAt:     testNow,
	}
}

func credit(number string, limit, available int64) *domain.Account {
	return &domain.Account{
		ID:              uuid.New(),
		AccountNumber:   number,
		PartyID:         uuid.New(),
		Currency:        domain.CurrencyDOP,
		Kind:            domain.AccountKindCredit,
		Status:          domain.AccountStatusActive,
		CreditLimit:     limit,
		AvailableCredit: available,
		CreatedAt:       testNow,
	}
}
