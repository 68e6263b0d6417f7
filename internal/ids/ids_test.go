package ids

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransactionIDIsMonotonic(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	prev := NewTransactionID(now)
	for range 100 {
		next := NewTransactionID(now)
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestNewTransactionIDCarriesTimestamp(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	id, err := ulid.Parse(NewTransactionID(now))
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(now), id.Time())
	assert.Len(t, id.String(), 26)
}
