package recipient

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/transfa/wallet-desk/internal/domain"
)

func testDirectory() []domain.Contact {
	return []domain.Contact{
		{ID: 1, SMSNumber: "09171234567", FirstName: "Juan", LastName: "Delacruz"},
		{ID: 2, SMSNumber: "09181112222", FirstName: "Al", LastName: "Ice"},
		{ID: 7, SMSNumber: "09990000000", FirstName: "Self", LastName: "User"},
	}
}

func TestLookupResolvesExactMatch(t *testing.T) {
	r := NewResolver(testDirectory(), 7)

	got := r.Lookup("09171234567", Resolution{})

	assert.True(t, got.Resolved())
	assert.Equal(t, "1", got.ToContactID)
	assert.Equal(t, "J**n D**acruz", got.Name)
	assert.NoError(t, got.Err)
}

func TestLookupShortInputLeavesStateUnchanged(t *testing.T) {
	r := NewResolver(testDirectory(), 7)
	current := Resolution{ToContactID: "2", Name: "A* I**"}

	got := r.Lookup("00000000", current)

	assert.Equal(t, current, got)
}

func TestLookupLongMissSetsNotFound(t *testing.T) {
	r := NewResolver(testDirectory(), 7)
	current := Resolution{ToContactID: "1", Name: "J**n D**acruz"}

	got := r.Lookup("0000000000", current)

	assert.False(t, got.Resolved())
	assert.Empty(t, got.Name)
	assert.ErrorIs(t, got.Err, ErrRecipientNotFound)
}

func TestLookupExcludesSelf(t *testing.T) {
	r := NewResolver(testDirectory(), 7)

	got := r.Lookup("09990000000", Resolution{})

	assert.ErrorIs(t, got.Err, ErrRecipientNotFound)
	assert.Equal(t, 2, r.Len())
}

func TestLookupMatchClearsPreviousError(t *testing.T) {
	r := NewResolver(testDirectory(), 7)
	current := Resolution{Err: ErrRecipientNotFound}

	got := r.Lookup(" 09181112222 ", current)

	assert.Equal(t, "2", got.ToContactID)
	assert.Equal(t, "A* I**", got.Name)
	assert.NoError(t, got.Err)
}
