package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type IntentStatus string

const (
	IntentStatusRequiresPayment IntentStatus = "REQUIRES_PAYMENT"
	IntentStatusCaptured        IntentStatus = "CAPTURED"
	IntentStatusFailed          IntentStatus = "FAILED"
	IntentStatusCanceled        IntentStatus = "CANCELED"
)

func (s IntentStatus) IsTerminal() bool {
	switch s {
	case IntentStatusRequiresPayment:
		return false
	case IntentStatusCaptured, IntentStatusFailed, IntentStatusCanceled:
		return true
	default:
		panic(fmt.Sprintf("unknown intent status %q", s))
	}
}

// CanTransitionTo reports whether the lifecycle allows s -> next. Terminal
// states have no outgoing edges.
func (s IntentStatus) CanTransitionTo(next IntentStatus) bool {
	switch s {
	case IntentStatusRequiresPayment:
		return next == IntentStatusCaptured || next == IntentStatusFailed || next == IntentStatusCanceled
	case IntentStatusCaptured, IntentStatusFailed, IntentStatusCanceled:
		return false
	default:
		panic(fmt.Sprintf("unknown intent status %q", s))
	}
}

type PaymentIntent struct {
	ID                   uuid.UUID
	AccountID            uuid.UUID
	Amount               int64
	Currency             Currency
	Status               IntentStatus
	Description          *string
	CaptureTransactionID *string
	FailureReason        *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (p *PaymentIntent) Money() Money {
	return Money{Amount: p.Amount, Currency: p.Currency}
}

// Transition moves the intent to next, stamping UpdatedAt.
func (p *PaymentIntent) Transition(next IntentStatus, now time.Time) error {
	if !p.Status.CanTransitionTo(next) {
		return fmt.Errorf("Transition: %s -> %s: %w", p.Status, next, ErrIntentTerminal)
	}
	p.Status = next
	p.UpdatedAt = now
	return nil
}

type IntentEventType string

const (
	IntentEventCreated  IntentEventType = "intent.created"
	IntentEventCaptured IntentEventType = "intent.captured"
	IntentEventFailed   IntentEventType = "intent.failed"
	IntentEventCanceled IntentEventType = "intent.canceled"
)

// EventTypeFor maps a status to the event recorded when an intent enters it.
func EventTypeFor(s IntentStatus) IntentEventType {
	switch s {
	case IntentStatusRequiresPayment:
		return IntentEventCreated
	case IntentStatusCaptured:
		return IntentEventCaptured
	case IntentStatusFailed:
		return IntentEventFailed
	case IntentStatusCanceled:
		return IntentEventCanceled
	default:
		panic(fmt.Sprintf("unknown intent status %q", s))
	}
}

// IntentEvent is an audit row written in the same transaction as the
// status change it describes.
type IntentEvent struct {
	ID        uuid.UUID
	IntentID  uuid.UUID
	EventType IntentEventType
	Actor     string
	Payload   []byte
	CreatedAt time.Time
}
