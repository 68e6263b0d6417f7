package paylink

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/corebank/internal/domain"
	"github.com/josh-kwaku/corebank/internal/logging"
	"github.com/josh-kwaku/corebank/internal/metrics"
	"github.com/josh-kwaku/corebank/internal/service/payment"
)

const (
	slugBytes       = 16
	maxSlugAttempts = 3
	DefaultTTL      = 30 * time.Minute
	MaxTTL          = 365 * 24 * time.Hour
	payPathPrefix   = "/pay/"
)

type linkRepo interface {
	Create(ctx context.Context, link *domain.Paylink) error
	GetBySlug(ctx context.Context, slug string) (*domain.Paylink, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, slug string) (*domain.Paylink, error)
	MarkUsed(ctx context.Context, tx *sql.Tx, slug string) error
	Expire(ctx context.Context, slug string, now time.Time) error
}

type accountRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByNumber(ctx context.Context, number string) (*domain.Account, error)
}

type intentRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error)
}

// engine is the slice of the payment service a paylink payment composes
// with inside its own transaction.
type engine interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CreateIntentInTx(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, amount domain.Money, description *string) (*domain.PaymentIntent, error)
	ConfirmInTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, card domain.CardDetails) (*payment.Confirmation, error)
}

type Issuer struct {
	links      linkRepo
	accounts   accountRepo
	intents    intentRepo
	payments   engine
	baseURL    string
	defaultTTL time.Duration
	random     io.Reader
	now        func() time.Time
	metrics    *metrics.Recorder
}

type Option func(*Issuer)

func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// WithRandom replaces the slug entropy source.
func WithRandom(r io.Reader) Option {
	return func(i *Issuer) { i.random = r }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(i *Issuer) { i.metrics = m }
}

func NewIssuer(
	links linkRepo,
	accounts accountRepo,
	intents intentRepo,
	payments engine,
	baseURL string,
	defaultTTL time.Duration,
	opts ...Option,
) *Issuer {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	i := &Issuer{
		links:      links,
		accounts:   accounts,
		intents:    intents,
		payments:   payments,
		baseURL:    strings.TrimRight(baseURL, "/"),
		defaultTTL: defaultTTL,
		random:     rand.Reader,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// IssueRequest targets exactly one of Account (an account number) or
// IntentID. A zero TTL takes the configured default; a negative TTL issues
// a link that never expires.
type IssueRequest struct {
	Account  string
	IntentID *uuid.UUID
	Kind     domain.PaylinkKind
	TTL      time.Duration
}

type Issued struct {
	Link      *domain.Paylink
	URL       string
	QRPayload string
}

func (i *Issuer) Issue(ctx context.Context, req IssueRequest) (*Issued, error) {
	if (req.Account == "") == (req.IntentID == nil) {
		return nil, fmt.Errorf("Issue: exactly one of account or intent is required: %w", domain.ErrInvalidRequest)
	}
	if req.Kind == "" {
		req.Kind = domain.PaylinkKindURL
	}
	if !req.Kind.IsValid() {
		return nil, fmt.Errorf("Issue: kind %q: %w", req.Kind, domain.ErrInvalidRequest)
	}
	if req.TTL > MaxTTL {
		return nil, fmt.Errorf("Issue: ttl %s exceeds %s: %w", req.TTL, MaxTTL, domain.ErrInvalidRequest)
	}

	now := i.now()
	link := &domain.Paylink{
		Kind:      req.Kind,
		CreatedAt: now,
	}

	if req.IntentID != nil {
		intent, err := i.intents.GetByID(ctx, *req.IntentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("Issue: %w", domain.ErrIntentNotFound)
			}
			return nil, fmt.Errorf("Issue: %w", err)
		}
		if intent.Status != domain.IntentStatusRequiresPayment {
			return nil, fmt.Errorf("Issue: intent is %s: %w", intent.Status, domain.ErrIntentTerminal)
		}
		link.IntentID = &intent.ID
	} else {
		acct, err := i.accounts.GetByNumber(ctx, req.Account)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("Issue: %w", domain.ErrAccountNotFound)
			}
			return nil, fmt.Errorf("Issue: %w", err)
		}
		if !acct.IsActive() {
			return nil, fmt.Errorf("Issue: %w", domain.ErrAccountClosed)
		}
		link.AccountID = &acct.ID
	}

	switch ttl := req.TTL; {
	case ttl == 0:
		expires := now.Add(i.defaultTTL)
		link.ExpiresAt = &expires
	case ttl > 0:
		expires := now.Add(ttl)
		link.ExpiresAt = &expires
	}

	if err := i.store(ctx, link); err != nil {
		return nil, fmt.Errorf("Issue: %w", err)
	}

	issued := &Issued{Link: link, URL: i.URL(link.Slug)}
	if link.Kind == domain.PaylinkKindQR {
		issued.QRPayload = issued.URL
	}

	logging.FromContext(ctx).Info("paylink issued",
		"slug", link.Slug,
		"kind", link.Kind,
		"intent_id", link.IntentID,
		"account_id", link.AccountID,
		"expires_at", link.ExpiresAt,
	)
	i.metrics.PaylinkIssued(string(link.Kind))
	return issued, nil
}

// store draws a fresh slug for each attempt. Collisions on 128 random bits
// only happen with a broken entropy source, so retries are bounded.
func (i *Issuer) store(ctx context.Context, link *domain.Paylink) error {
	var err error
	for range maxSlugAttempts {
		link.Slug, err = i.newSlug()
		if err != nil {
			return fmt.Errorf("store: %w", err)
		}
		err = i.links.Create(ctx, link)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrDuplicateKey) {
			return fmt.Errorf("store: %w", err)
		}
	}
	return fmt.Errorf("store: slug collisions exhausted: %w", err)
}

func (i *Issuer) newSlug() (string, error) {
	b := make([]byte, slugBytes)
	if _, err := io.ReadFull(i.random, b); err != nil {
		return "", fmt.Errorf("newSlug: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (i *Issuer) URL(slug string) string {
	return i.baseURL + payPathPrefix + slug
}

// View is what a payer sees before paying: where the money goes and, for
// intent links, how much.
type View struct {
	Link    *domain.Paylink
	Account *domain.Account
	Intent  *domain.PaymentIntent
}

func (i *Issuer) Resolve(ctx context.Context, slug string) (*View, error) {
	link, err := i.links.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("Resolve: %w", domain.ErrLinkInvalid)
		}
		return nil, fmt.Errorf("Resolve: %w", err)
	}
	if !link.UsableAt(i.now()) {
		return nil, fmt.Errorf("Resolve: %w", domain.ErrLinkInvalid)
	}

	view := &View{Link: link}
	accountID := link.AccountID
	if link.IntentID != nil {
		intent, err := i.intents.GetByID(ctx, *link.IntentID)
		if err != nil {
			return nil, fmt.Errorf("Resolve: intent: %w", err)
		}
		if intent.Status != domain.IntentStatusRequiresPayment {
			return nil, fmt.Errorf("Resolve: intent is %s: %w", intent.Status, domain.ErrLinkInvalid)
		}
		view.Intent = intent
		accountID = &intent.AccountID
	}

	acct, err := i.accounts.GetByID(ctx, *accountID)
	if err != nil {
		return nil, fmt.Errorf("Resolve: account: %w", err)
	}
	if !acct.IsActive() {
		return nil, fmt.Errorf("Resolve: account closed: %w", domain.ErrLinkInvalid)
	}
	view.Account = acct
	return view, nil
}

// Expire ends a link's life now. Used, expired and unknown links are all
// reported as ErrLinkInvalid.
func (i *Issuer) Expire(ctx context.Context, slug string) error {
	if err := i.links.Expire(ctx, slug, i.now()); err != nil {
		return fmt.Errorf("Expire: %w", err)
	}
	logging.FromContext(ctx).Info("paylink expired", "slug", slug)
	return nil
}
