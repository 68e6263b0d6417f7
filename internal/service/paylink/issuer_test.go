package paylink

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/corebank/internal/domain"
)

var testCard = domain.CardDetails{Number: "4242424242424242", ExpMonth: 12, ExpYear: 2030, CVC: "123"}

func TestIssue_AccountLink(t *testing.T) {
	acct := activeAccount("3000000001")
	f := newFixture(t, acct)

	issued, err := f.issuer.Issue(context.Background(), IssueRequest{Account: acct.AccountNumber})
	require.NoError(t, err)

	link := issued.Link
	assert.Len(t, link.Slug, 22)
	assert.Equal(t, domain.PaylinkKindURL, link.Kind)
	require.NotNil(t, link.AccountID)
	assert.Equal(t, acct.ID, *link.AccountID)
	assert.Nil(t, link.IntentID)
	require.NotNil(t, link.ExpiresAt)
	assert.Equal(t, testNow.Add(30*time.Minute), *link.ExpiresAt)
	assert.Equal(t, "https://pay.example.com/pay/"+link.Slug, issued.URL)
	assert.Empty(t, issued.QRPayload)
}

func TestIssue_TTL(t *testing.T) {
	acct := activeAccount("3000000001")

	tests := []struct {
		name        string
		ttl         time.Duration
		wantExpires *time.Time
	}{
		{name: "zero takes default", ttl: 0, wantExpires: ptrTime(testNow.Add(30 * time.Minute))},
		{name: "explicit", ttl: 5 * time.Minute, wantExpires: ptrTime(testNow.Add(5 * time.Minute))},
		{name: "negative never expires", ttl: -1, wantExpires: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, acct)
			issued, err := f.issuer.Issue(context.Background(), IssueRequest{Account: acct.AccountNumber, TTL: tc.ttl})
			require.NoError(t, err)
			assert.Equal(t, tc.wantExpires, issued.Link.ExpiresAt)
		})
	}
}

func TestIssue_RejectsTTLBeyondMax(t *testing.T) {
	acct := activeAccount("3000000001")
	f := newFixture(t, acct)

	_, err := f.issuer.Issue(context.Background(), IssueRequest{Account: acct.AccountNumber, TTL: MaxTTL + time.Second})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	issued, err := f.issuer.Issue(context.Background(), IssueRequest{Account: acct.AccountNumber, TTL: MaxTTL})
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(MaxTTL), *issued.Link.ExpiresAt)
}

func TestIssue_QRCarriesURL(t *testing.T) {
	acct := activeAccount("3000000001")
	f := newFixture(t, acct)
	intent := f.addIntent(acct, 1500, domain.IntentStatusRequiresPayment)

	issued, err := f.issuer.Issue(context.Background(), IssueRequest{IntentID: &intent.ID, Kind: domain.PaylinkKindQR})
	require.NoError(t, err)
	assert.Equal(t, issued.URL, issued.QRPayload)
	require.NotNil(t, issued.Link.IntentID)
	assert.Equal(t, intent.ID, *issued.Link.IntentID)
}

func TestIssue_Refusals(t *testing.T) {
	acct := activeAccount("3000000001")
	closed := activeAccount("3000000002")
	closed.Status = domain.AccountStatusClosed

	f := newFixture(t, acct, closed)
	captured := f.addIntent(acct, 100, domain.IntentStatusCaptured)
	missing := uuid.New()

	tests := []struct {
		name    string
		req     IssueRequest
		wantErr error
	}{
		{name: "no target", req: IssueRequest{}, wantErr: domain.ErrInvalidRequest},
		{name: "both targets", req: IssueRequest{Account: acct.AccountNumber, IntentID: &captured.ID}, wantErr: domain.ErrInvalidRequest},
		{name: "bad kind", req: IssueRequest{Account: acct.AccountNumber, Kind: "SMS"}, wantErr: domain.ErrInvalidRequest},
		{name: "unknown account", req: IssueRequest{Account: "0000000000"}, wantErr: domain.ErrAccountNotFound},
		{name: "closed account", req: IssueRequest{Account: closed.AccountNumber}, wantErr: domain.ErrAccountClosed},
		{name: "unknown intent", req: IssueRequest{IntentID: &missing}, wantErr: domain.ErrIntentNotFound},
		{name: "settled intent", req: IssueRequest{IntentID: &captured.ID}, wantErr: domain.ErrIntentTerminal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.issuer.Issue(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
	assert.Empty(t, f.links.bySlug)
}

func TestIssue_RetriesSlugCollision(t *testing.T) {
	acct := activeAccount("3000000001")
	f := newFixture(t, acct)
	f.links.collisions = 2

	issued, err := f.issuer.Issue(context.Background(), IssueRequest{Account: acct.AccountNumber})
	require.NoError(t, err)
	assert.Equal(t, 3, f.links.creates)
	assert.Contains(t, f.links.bySlug, issued.Link.Slug)

	f.links.collisions = maxSlugAttempts
	_, err = f.issuer.Issue(context.Background(), IssueRequest{Account: acct.AccountNumber})
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)
}

func TestIssue_SlugFromEntropySource(t *testing.T) {
	acct := activeAccount("3000000001")
	f := newFixture(t, acct)
	f.issuer.random = bytes.NewReader(make([]byte, slugBytes))

	issued, err := f.issuer.Issue(context.Background(), IssueRequest{Account: acct.AccountNumber})
	require.NoError(t, err)
	assert.Equal(t, "AAAAAAAAAAAAAAAAAAAAAA", issued.Link.Slug)

	_, err = f.issuer.Issue(context.Background(), IssueRequest{Account: acct.AccountNumber})
	assert.ErrorIs(t, err, io.EOF)
}

func TestResolve(t *testing.T) {
	acct := activeAccount("3000000001")
	f := newFixture(t, acct)
	ctx := context.Background()

	open := f.addIntent(acct, 700, domain.IntentStatusRequiresPayment)
	issued, err := f.issuer.Issue(ctx, IssueRequest{IntentID: &open.ID, TTL: 10 * time.Minute})
	require.NoError(t, err)

	view, err := f.issuer.Resolve(ctx, issued.Link.Slug)
	require.NoError(t, err)
	assert.Equal(t, acct.ID, view.Account.ID)
	require.NotNil(t, view.Intent)
	assert.Equal(t, int64(700), view.Intent.Amount)

	f.advance(10*time.Minute - time.Nanosecond)
	_, err = f.issuer.Resolve(ctx, issued.Link.Slug)
	require.NoError(t, err)

	f.advance(time.Nanosecond)
	_, err = f.issuer.Resolve(ctx, issued.Link.Slug)
	assert.ErrorIs(t, err, domain.ErrLinkInvalid)

	_, err = f.issuer.Resolve(ctx, "does-not-exist")
	assert.ErrorIs(t, err, domain.ErrLinkInvalid)
}

func TestResolve_SettledIntentInvalidatesLink(t *testing.T) {
	acct := activeAccount("3000000001")
	f := newFixture(t, acct)
	intent := f.addIntent(acct, 700, domain.IntentStatusRequiresPayment)
	issued, err := f.issuer.Issue(context.Background(), IssueRequest{IntentID: &intent.ID})
	require.NoError(t, err)

	p := f.intents.byID[intent.ID]
	p.Status = domain.IntentStatusCanceled
	f.intents.byID[intent.ID] = p

	_, err = f.issuer.Resolve(context.Background(), issued.Link.Slug)
	assert.ErrorIs(t, err, domain.ErrLinkInvalid)
}

func TestExpire(t *testing.T) {
	acct := activeAccount("3000000001")
	f := newFixture(t, acct)
	ctx := context.Background()

	issued, err := f.issuer.Issue(ctx, IssueRequest{Account: acct.AccountNumber, TTL: -1})
	require.NoError(t, err)

	require.NoError(t, f.issuer.Expire(ctx, issued.Link.Slug))
	_, err = f.issuer.Resolve(ctx, issued.Link.Slug)
	assert.ErrorIs(t, err, domain.ErrLinkInvalid)

	assert.ErrorIs(t, f.issuer.Expire(ctx, issued.Link.Slug), domain.ErrLinkInvalid)
	assert.ErrorIs(t, f.issuer.Expire(ctx, "unknown"), domain.ErrLinkInvalid)
}

func TestPay_IntentLinkConsumedOnCapture(t *testing.T) {
	acct := activeAccount("3000000001")
	f := newFixture(t, acct)
	ctx := context.Background()
	intent := f.addIntent(acct, 900, domain.IntentStatusRequiresPayment)
	issued, err := f.issuer.Issue(ctx, IssueRequest{IntentID: &intent.ID})
	require.NoError(t, err)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	conf, err := f.issuer.Pay(ctx, issued.Link.Slug, PayRequest{Card: testCard})
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusCaptured, conf.Intent.Status)
	assert.True(t, f.links.bySlug[issued.Link.Slug].Used)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err = f.issuer.Pay(ctx, issued.Link.Slug, PayRequest{Card: testCard})
	assert.ErrorIs(t, err, domain.ErrLinkInvalid)
}

func TestPay_AccountLink(t *testing.T) {
	acct := activeAccount("3000000001")
	f := newFixture(t, acct)
	ctx := context.Background()
	issued, err := f.issuer.Issue(ctx, IssueRequest{Account: acct.AccountNumber})
	require.NoError(t, err)
	slug := issued.Link.Slug

	f.engine.approve = false
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	conf, err := f.issuer.Pay(ctx, slug, PayRequest{Card: testCard, Amount: 1200})
	require.ErrorIs(t, err, domain.ErrCardDeclined)
	assert.Equal(t, domain.IntentStatusFailed, conf.Intent.Status)
	assert.False(t, f.links.bySlug[slug].Used)

	f.engine.approve = true
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	conf, err = f.issuer.Pay(ctx, slug, PayRequest{Card: testCard, Amount: 1200})
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusCaptured, conf.Intent.Status)
	assert.Equal(t, int64(1200), conf.Intent.Amount)
	assert.Equal(t, domain.CurrencyDOP, conf.Intent.Currency)
	assert.True(t, f.links.bySlug[slug].Used)
	require.Len(t, f.engine.created, 2)
	assert.Equal(t, "paylink "+slug, *f.engine.created[1].Description)
}

func TestPay_AccountLinkNeedsAmount(t *testing.T) {
	acct := activeAccount("3000000001")
	f := newFixture(t, acct)
	issued, err := f.issuer.Issue(context.Background(), IssueRequest{Account: acct.AccountNumber})
	require.NoError(t, err)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err = f.issuer.Pay(context.Background(), issued.Link.Slug, PayRequest{Card: testCard})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestPay_ExpiredLink(t *testing.T) {
	acct := activeAccount("3000000001")
	f := newFixture(t, acct)
	issued, err := f.issuer.Issue(context.Background(), IssueRequest{Account: acct.AccountNumber, TTL: time.Minute})
	require.NoError(t, err)
	f.advance(time.Minute)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err = f.issuer.Pay(context.Background(), issued.Link.Slug, PayRequest{Card: testCard, Amount: 10})
	assert.ErrorIs(t, err, domain.ErrLinkInvalid)
	assert.Empty(t, f.engine.created)
}

type fakeStale struct {
	ids []uuid.UUID
}

func (f *fakeStale) ListStaleIDs(context.Context, time.Time, int) ([]uuid.UUID, error) {
	return f.ids, nil
}

type fakeCanceler struct {
	settled map[uuid.UUID]bool
	seen    []uuid.UUID
}

func (f *fakeCanceler) CancelStale(_ context.Context, id uuid.UUID) (bool, error) {
	f.seen = append(f.seen, id)
	return !f.settled[id], nil
}

func TestSweep(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	stale := &fakeStale{ids: []uuid.UUID{a, b, c}}
	canceler := &fakeCanceler{settled: map[uuid.UUID]bool{b: true}}

	s := NewSweeper(stale, canceler, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Minute, nil)
	assert.Equal(t, 2, s.Sweep(context.Background()))
	assert.Equal(t, []uuid.UUID{a, b, c}, canceler.seen)
}

func TestSweeperStopsOnCancel(t *testing.T) {
	s := NewSweeper(&fakeStale{}, &fakeCanceler{}, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
