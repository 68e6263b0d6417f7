package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/corebank/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func TestRegisterParty(t *testing.T) {
	repo := newFakePartyRepo()
	svc := NewPartyService(repo)

	p, err := svc.RegisterParty(context.Background(), RegisterPartyRequest{
		DocType: domain.DocTypeCedula, DocNumber: " 00112345678 ", FullName: "Ana Peralta", Email: ptr("ana@example.test"),
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.Equal(t, "00112345678", p.DocNumber)
	assert.Len(t, repo.byID, 1)

	_, err = svc.RegisterParty(context.Background(), RegisterPartyRequest{
		DocType: domain.DocTypeCedula, DocNumber: "00112345678", FullName: "Someone Else",
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)
}

func TestRegisterParty_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  RegisterPartyRequest
	}{
		{name: "unknown doc type", req: RegisterPartyRequest{DocType: "LICENSE", DocNumber: "1", FullName: "A"}},
		{name: "blank number", req: RegisterPartyRequest{DocType: domain.DocTypeRNC, DocNumber: "  ", FullName: "A"}},
		{name: "blank name", req: RegisterPartyRequest{DocType: domain.DocTypeRNC, DocNumber: "1", FullName: ""}},
		{name: "bad email", req: RegisterPartyRequest{DocType: domain.DocTypeRNC, DocNumber: "1", FullName: "A", Email: ptr("nope")}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewPartyService(newFakePartyRepo())
			_, err := svc.RegisterParty(context.Background(), tc.req)
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}
}

func TestGetParty(t *testing.T) {
	svc := NewPartyService(newFakePartyRepo(testParty))

	p, err := svc.GetParty(context.Background(), testParty.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana Peralta", p.FullName)

	_, err = svc.GetParty(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrPartyNotFound)
}

func TestListParties(t *testing.T) {
	repo := newFakePartyRepo(testParty)
	svc := NewPartyService(repo)

	_, err := svc.ListParties(context.Background(), domain.PartyFilter{DocType: "cedula"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	parties, err := svc.ListParties(context.Background(), domain.PartyFilter{DocType: domain.DocTypeCedula, Name: "ana"})
	require.NoError(t, err)
	assert.Len(t, parties, 1)
	assert.Equal(t, "ana", repo.last.Name)
}
