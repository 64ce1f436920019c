package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCommitment_Deterministic(t *testing.T) {
	a := NewCommitment("salt", "+15551234567", "phone")
	b := NewCommitment("salt", "+15551234567", "phone")
	assert.Equal(t, a, b)
	assert.True(t, a.WellFormed())
}

func TestNewCommitment_Distinct(t *testing.T) {
	base := NewCommitment("salt", "ab", "c")

	assert.NotEqual(t, base, NewCommitment("salt", "a", "bc"), "part boundaries must be commitment-relevant")
	assert.NotEqual(t, base, NewCommitment("salt", "abc"))
	assert.NotEqual(t, base, NewCommitment("other", "ab", "c"))
	assert.NotEqual(t, base, NewCommitment("salt", "ab", "c", ""))
}

func TestCommitment_WellFormed(t *testing.T) {
	assert.True(t, NewCommitment("salt").WellFormed())
	assert.False(t, Commitment("").WellFormed())
	assert.False(t, Commitment("abc123").WellFormed())
	assert.False(t, Commitment("zz0e5751c026e543b2e8ab2eb06099daa1d1e5df47778f7787faab45cdf12fzz").WellFormed())
}
