package domain

import (
	"time"

	"github.com/google/uuid"
)

type PaylinkKind string

const (
	PaylinkKindURL PaylinkKind = "URL"
	PaylinkKindQR  PaylinkKind = "QR"
)

func (k PaylinkKind) IsValid() bool {
	switch k {
	case PaylinkKindURL, PaylinkKindQR:
		return true
	default:
		return false
	}
}

// Paylink is bound to exactly one of IntentID or AccountID.
type Paylink struct {
	Slug      string
	IntentID  *uuid.UUID
	AccountID *uuid.UUID
	Kind      PaylinkKind
	ExpiresAt *time.Time
	Used      bool
	CreatedAt time.Time
}

// UsableAt reports whether the link may still be resolved or paid at now.
func (l *Paylink) UsableAt(now time.Time) bool {
	if l.Used {
		return false
	}
	if l.ExpiresAt != nil && !now.Before(*l.ExpiresAt) {
		return false
	}
	return true
}
