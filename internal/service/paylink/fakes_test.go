package paylink

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/corebank/internal/domain"
	"github.com/josh-kwaku/corebank/internal/service/payment"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeLinks struct {
	bySlug     map[string]domain.Paylink
	collisions int
	creates    int
}

func newFakeLinks() *fakeLinks {
	return &fakeLinks{bySlug: make(map[string]domain.Paylink)}
}

func (f *fakeLinks) Create(_ context.Context, l *domain.Paylink) error {
	f.creates++
	if f.collisions > 0 {
		f.collisions--
		return fmt.Errorf("Create: %w", domain.ErrDuplicateKey)
	}
	if _, ok := f.bySlug[l.Slug]; ok {
		return fmt.Errorf("Create: %w", domain.ErrDuplicateKey)
	}
	f.bySlug[l.Slug] = *l
	return nil
}

func (f *fakeLinks) GetBySlug(_ context.Context, slug string) (*domain.Paylink, error) {
	l, ok := f.bySlug[slug]
	if !ok {
		return nil, fmt.Errorf("GetBySlug: %w", domain.ErrNotFound)
	}
	return &l, nil
}

func (f *fakeLinks) GetForUpdate(ctx context.Context, _ *sql.Tx, slug string) (*domain.Paylink, error) {
	return f.GetBySlug(ctx, slug)
}

func (f *fakeLinks) MarkUsed(_ context.Context, _ *sql.Tx, slug string) error {
	l, ok := f.bySlug[slug]
	if !ok || l.Used {
		return fmt.Errorf("MarkUsed: %w", domain.ErrLinkInvalid)
	}
	l.Used = true
	f.bySlug[slug] = l
	return nil
}

func (f *fakeLinks) Expire(_ context.Context, slug string, now time.Time) error {
	l, ok := f.bySlug[slug]
	if !ok || !l.UsableAt(now) {
		return fmt.Errorf("Expire: %w", domain.ErrLinkInvalid)
	}
	l.ExpiresAt = &now
	f.bySlug[slug] = l
	return nil
}

func (f *fakeLinks) markUsedByIntent(id uuid.UUID) {
	for slug, l := range f.bySlug {
		if l.IntentID != nil && *l.IntentID == id {
			l.Used = true
			f.bySlug[slug] = l
		}
	}
}

type fakeAccounts struct {
	byID map[uuid.UUID]domain.Account
}

func newFakeAccounts(accts ...*domain.Account) *fakeAccounts {
	f := &fakeAccounts{byID: make(map[uuid.UUID]domain.Account)}
	for _, a := range accts {
		f.byID[a.ID] = *a
	}
	return f
}

func (f *fakeAccounts) GetByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
	}
	return &a, nil
}

func (f *fakeAccounts) GetByNumber(_ context.Context, number string) (*domain.Account, error) {
	for _, a := range f.byID {
		if a.AccountNumber == number {
			return &a, nil
		}
	}
	return nil, fmt.Errorf("GetByNumber: %w", domain.ErrNotFound)
}

type fakeIntents struct {
	byID map[uuid.UUID]domain.PaymentIntent
}

func (f *fakeIntents) GetByID(_ context.Context, id uuid.UUID) (*domain.PaymentIntent, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
	}
	return &p, nil
}

// fakeEngine settles intents in memory: approve decides whether a confirm
// captures or fails with ErrCardDeclined.
type fakeEngine struct {
	db      *sql.DB
	intents *fakeIntents
	links   *fakeLinks
	approve bool
	created []domain.PaymentIntent
}

func (e *fakeEngine) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return e.db.BeginTx(ctx, nil)
}

func (e *fakeEngine) CreateIntentInTx(_ context.Context, _ *sql.Tx, accountID uuid.UUID, amount domain.Money, description *string) (*domain.PaymentIntent, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("CreateIntentInTx: %w", domain.ErrInvalidAmount)
	}
	p := domain.PaymentIntent{
		ID:          uuid.New(),
		AccountID:   accountID,
		Amount:      amount.Amount,
		Currency:    amount.Currency,
		Status:      domain.IntentStatusRequiresPayment,
		Description: description,
		CreatedAt:   testNow,
		UpdatedAt:   testNow,
	}
	e.intents.byID[p.ID] = p
	e.created = append(e.created, p)
	return &p, nil
}

func (e *fakeEngine) ConfirmInTx(_ context.Context, _ *sql.Tx, id uuid.UUID, _ domain.CardDetails) (*payment.Confirmation, error) {
	p, ok := e.intents.byID[id]
	if !ok {
		return nil, fmt.Errorf("ConfirmInTx: %w", domain.ErrIntentNotFound)
	}
	if p.Status.IsTerminal() {
		return &payment.Confirmation{Intent: &p, Replayed: true}, nil
	}

	t := &domain.Transaction{ID: "01JTESTTRANSACTION000000000", Amount: p.Amount, Currency: p.Currency}
	if !e.approve {
		p.Status = domain.IntentStatusFailed
		e.intents.byID[id] = p
		t.Status = domain.TransactionStatusFailed
		return &payment.Confirmation{Intent: &p, Transaction: t}, domain.ErrCardDeclined
	}

	p.Status = domain.IntentStatusCaptured
	p.CaptureTransactionID = &t.ID
	e.intents.byID[id] = p
	e.links.markUsedByIntent(id)
	t.Status = domain.TransactionStatusPosted
	return &payment.Confirmation{Intent: &p, Transaction: t}, nil
}

type fixture struct {
	issuer   *Issuer
	mock     sqlmock.Sqlmock
	links    *fakeLinks
	accounts *fakeAccounts
	intents  *fakeIntents
	engine   *fakeEngine
	clock    *time.Time
}

func newFixture(t *testing.T, accts ...*domain.Account) *fixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	now := testNow
	f := &fixture{
		mock:     mock,
		links:    newFakeLinks(),
		accounts: newFakeAccounts(accts...),
		intents:  &fakeIntents{byID: make(map[uuid.UUID]domain.PaymentIntent)},
		clock:    &now,
	}
	f.engine = &fakeEngine{db: db, intents: f.intents, links: f.links, approve: true}
	f.issuer = NewIssuer(f.links, f.accounts, f.intents, f.engine, "https://pay.example.com/", 30*time.Minute,
		WithClock(func() time.Time { return *f.clock }),
	)
	return f
}

func (f *fixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func (f *fixture) addIntent(acct *domain.Account, amount int64, status domain.IntentStatus) *domain.PaymentIntent {
	p := domain.PaymentIntent{
		ID:        uuid.New(),
		AccountID: acct.ID,
		Amount:    amount,
		Currency:  acct.Currency,
		Status:    status,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
	f.intents.byID[p.ID] = p
	return &p
}

func activeAccount(number string) *domain.Account {
	return &domain.Account{
		ID:            uuid.New(),
		AccountNumber: number,
		Currency:      domain.CurrencyDOP,
		Kind:          domain.AccountKindSavings,
		Status:        domain.AccountStatusActive,
	}
}
