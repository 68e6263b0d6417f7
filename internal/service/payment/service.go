package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/corebank/internal/auth"
	"github.com/josh-kwaku/corebank/internal/domain"
	"github.com/josh-kwaku/corebank/internal/metrics"
)

type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

type accountRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByNumber(ctx context.Context, number string) (*domain.Account, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Account, error)
	UpdateBalances(ctx context.Context, tx *sql.Tx, account *domain.Account) error
}

type transactionRepo interface {
	Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error
}

type intentRepo interface {
	Create(ctx context.Context, tx *sql.Tx, intent *domain.PaymentIntent) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.PaymentIntent, error)
	Update(ctx context.Context, tx *sql.Tx, intent *domain.PaymentIntent) error
}

type eventRepo interface {
	Create(ctx context.Context, tx *sql.Tx, event *domain.IntentEvent) error
	ListByIntent(ctx context.Context, intentID uuid.UUID) ([]domain.IntentEvent, error)
}

type paylinkRepo interface {
	MarkUsedByIntent(ctx context.Context, tx *sql.Tx, intentID uuid.UUID) (int64, error)
}

// Service owns every balance-affecting operation: transfers and the
// payment intent lifecycle. Each call runs in a single database transaction.
type Service struct {
	accounts     accountRepo
	transactions transactionRepo
	intents      intentRepo
	events       eventRepo
	links        paylinkRepo
	authorizer   CardAuthorizer
	db           txBeginner
	metrics      *metrics.Recorder
	now          func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(
	accounts accountRepo,
	transactions transactionRepo,
	intents intentRepo,
	events eventRepo,
	links paylinkRepo,
	authorizer CardAuthorizer,
	db txBeginner,
	opts ...Option,
) *Service {
	s := &Service{
		accounts:     accounts,
		transactions: transactions,
		intents:      intents,
		events:       events,
		links:        links,
		authorizer:   authorizer,
		db:           db,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BeginTx exposes the engine's transaction source to callers that need to
// compose an intent operation with their own row locks.
func (s *Service) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("BeginTx: %w", err)
	}
	return tx, nil
}

func (s *Service) Now() time.Time {
	return s.now()
}

type actorKey struct{}

// WithActor names who is driving an operation for the intent audit trail.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFrom(ctx context.Context) string {
	if a, ok := ctx.Value(actorKey{}).(string); ok && a != "" {
		return a
	}
	if c, ok := auth.OperatorFromContext(ctx); ok {
		return "operator:" + c.OperatorID
	}
	return "system"
}

func (s *Service) resolveAccount(ctx context.Context, number string) (*domain.Account, error) {
	acct, err := s.accounts.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("resolveAccount: %s: %w", number, domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("resolveAccount: %w", err)
	}
	return acct, nil
}
