package domain

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

type CardStatus string

const (
	CardStatusActive  CardStatus = "ACTIVE"
	CardStatusBlocked CardStatus = "BLOCKED"
)

type Card struct {
	ID        uuid.UUID
	PartyID   uuid.UUID
	AccountID uuid.UUID
	MaskedPAN string
	PANHash   string
	CVCHash   *string
	ExpMonth  int
	ExpYear   int
	Status    CardStatus
	CreatedAt time.Time
}

// CardDetails is what a payer presents at confirmation.
type CardDetails struct {
	Number   string
	ExpMonth int
	ExpYear  int
	CVC      string
}

// NormalizePAN strips the separators people type into card fields.
func NormalizePAN(number string) string {
	r := strings.NewReplacer(" ", "", "-", "")
	return r.Replace(number)
}

// CardHasher derives the stored lookup hashes for card numbers and CVCs,
// keyed with a server secret. The same key must hash at issue and at
// confirmation.
type CardHasher struct {
	key []byte
}

func NewCardHasher(key string) CardHasher {
	return CardHasher{key: []byte(key)}
}

// Hash returns the hex HMAC-SHA256 of s.
func (h CardHasher) Hash(s string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(s))
	return hex.EncodeToString(mac.Sum(nil))
}

func MaskPAN(pan string) string {
	pan = NormalizePAN(pan)
	if len(pan) < 10 {
		return strings.Repeat("*", len(pan))
	}
	return pan[:6] + strings.Repeat("*", len(pan)-10) + pan[len(pan)-4:]
}

// PassesLuhn runs the mod 10 check used by card schemes.
func PassesLuhn(number string) bool {
	if len(number) < 12 {
		return false
	}
	sum := 0
	alternate := false
	for i := len(number) - 1; i >= 0; i-- {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}
		n := int(c - '0')
		if alternate {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		alternate = !alternate
	}
	return sum%10 == 0
}

// ExpiredAt reports whether the card is past the last day of its expiry month.
func (c *Card) ExpiredAt(now time.Time) bool {
	endOfMonth := time.Date(c.ExpYear, time.Month(c.ExpMonth)+1, 1, 0, 0, 0, 0, time.UTC)
	return !now.Before(endOfMonth)
}
