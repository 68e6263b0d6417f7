package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/corebank/internal/domain"
	"github.com/josh-kwaku/corebank/internal/service"
	"github.com/josh-kwaku/corebank/internal/service/paylink"
	"github.com/josh-kwaku/corebank/internal/service/payment"
)

type fakeAccountService struct {
	account  *domain.Account
	lines    []domain.StatementLine
	err      error
	opened   service.OpenAccountRequest
	filter   domain.AccountFilter
	txFilter domain.TransactionFilter
}

func (f *fakeAccountService) OpenAccount(_ context.Context, req service.OpenAccountRequest) (*domain.Account, error) {
	f.opened = req
	return f.account, f.err
}

func (f *fakeAccountService) GetAccount(_ context.Context, _ string) (*domain.Account, error) {
	return f.account, f.err
}

func (f *fakeAccountService) ListAccounts(_ context.Context, filter domain.AccountFilter) ([]domain.Account, error) {
	f.filter = filter
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Account{*f.account}, nil
}

func (f *fakeAccountService) CloseAccount(_ context.Context, _ string) (*domain.Account, error) {
	return f.account, f.err
}

func (f *fakeAccountService) ListTransactions(_ context.Context, _ string, filter domain.TransactionFilter) ([]domain.StatementLine, error) {
	f.txFilter = filter
	return f.lines, f.err
}

type fakeTransferService struct {
	got payment.TransferRequest
	txn *domain.Transaction
	err error
}

func (f *fakeTransferService) Transfer(_ context.Context, req payment.TransferRequest) (*domain.Transaction, error) {
	f.got = req
	return f.txn, f.err
}

type fakeIntentService struct {
	intent    *domain.PaymentIntent
	events    []domain.IntentEvent
	conf      *payment.Confirmation
	err       error
	gotCard   domain.CardDetails
	gotCreate payment.CreateIntentRequest
}

func (f *fakeIntentService) CreateIntent(_ context.Context, req payment.CreateIntentRequest) (*domain.PaymentIntent, error) {
	f.gotCreate = req
	return f.intent, f.err
}

func (f *fakeIntentService) GetIntent(_ context.Context, _ uuid.UUID) (*domain.PaymentIntent, error) {
	return f.intent, f.err
}

func (f *fakeIntentService) ListIntentEvents(_ context.Context, _ uuid.UUID) ([]domain.IntentEvent, error) {
	return f.events, f.err
}

func (f *fakeIntentService) ConfirmIntent(_ context.Context, _ uuid.UUID, card domain.CardDetails) (*payment.Confirmation, error) {
	f.gotCard = card
	return f.conf, f.err
}

func (f *fakeIntentService) CancelIntent(_ context.Context, _ uuid.UUID) (*domain.PaymentIntent, error) {
	return f.intent, f.err
}

type fakePaylinkService struct {
	issued  *paylink.Issued
	view    *paylink.View
	conf    *payment.Confirmation
	err     error
	issue   paylink.IssueRequest
	payReq  paylink.PayRequest
	expired string
}

func (f *fakePaylinkService) Issue(_ context.Context, req paylink.IssueRequest) (*paylink.Issued, error) {
	f.issue = req
	return f.issued, f.err
}

func (f *fakePaylinkService) Expire(_ context.Context, slug string) error {
	f.expired = slug
	return f.err
}

func (f *fakePaylinkService) Resolve(_ context.Context, _ string) (*paylink.View, error) {
	return f.view, f.err
}

func (f *fakePaylinkService) Pay(_ context.Context, _ string, req paylink.PayRequest) (*payment.Confirmation, error) {
	f.payReq = req
	return f.conf, f.err
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

// serve routes one request through a mux so path values resolve.
func serve(t *testing.T, pattern string, h http.HandlerFunc, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

type fakePartyService struct {
	party      *domain.Party
	parties    []domain.Party
	err        error
	registered service.RegisterPartyRequest
	filter     domain.PartyFilter
}

func (f *fakePartyService) RegisterParty(_ context.Context, req service.RegisterPartyRequest) (*domain.Party, error) {
	f.registered = req
	return f.party, f.err
}

func (f *fakePartyService) GetParty(_ context.Context, _ uuid.UUID) (*domain.Party, error) {
	return f.party, f.err
}

func (f *fakePartyService) ListParties(_ context.Context, filter domain.PartyFilter) ([]domain.Party, error) {
	f.filter = filter
	return f.parties, f.err
}

func testAccount() *domain.Account {
	return &domain.Account{
		ID:            uuid.New(),
		AccountNumber: "1234567890",
		PartyID:       uuid.New(),
		OwnerName:     "Ana Peralta",
		Currency:      domain.CurrencyDOP,
		Kind:          domain.AccountKindSavings,
		Status:        domain.AccountStatusActive,
		Balance:       150075,
	}
}

func testIntent(status domain.IntentStatus) *domain.PaymentIntent {
	return &domain.PaymentIntent{
		ID:        uuid.New(),
		AccountID: uuid.New(),
		Amount:    5000,
		Currency:  domain.CurrencyDOP,
		Status:    status,
	}
}
