package domain

import (
	"time"

	"github.com/google/uuid"
)

// DocType is the kind of identity document a party registered with.
type DocType string

const (
	DocTypeCedula   DocType = "CEDULA"
	DocTypePassport DocType = "PASSPORT"
	DocTypeRNC      DocType = "RNC"
)

func (d DocType) IsValid() bool {
	switch d {
	case DocTypeCedula, DocTypePassport, DocTypeRNC:
		return true
	default:
		return false
	}
}

// Party is the customer an account belongs to. A document identifies at
// most one party.
type Party struct {
	ID        uuid.UUID
	DocType   DocType
	DocNumber string
	FullName  string
	Email     *string
	CreatedAt time.Time
}

// PartyFilter narrows a party search. Name matches any part of the full
// name, ignoring case.
type PartyFilter struct {
	DocType   DocType
	DocNumber string
	Name      string
	Limit     int
}
