package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDMScope_Canonical_Order_And_Case(t *testing.T) {
	req := require.New(t)

	// When building the same thread from both sides with mixed case
	fromAlice := NewDMScope("Alice", "bob")
	fromBob := NewDMScope("BOB", "alice")

	// Then both participants derive the identical id
	req.Equal(ScopeID("dm:alice|bob"), fromAlice)
	req.Equal(fromAlice, fromBob)
}

func TestDMParticipants(t *testing.T) {
	req := require.New(t)

	a, b, err := ScopeID("dm:alice|bob").DMParticipants()
	req.NoError(err)
	req.Equal("alice", a)
	req.Equal("bob", b)

	// A group id is not a dm
	_, _, err = ScopeID("lobby").DMParticipants()
	req.Error(err)

	// A dm id missing a participant is malformed
	_, _, err = ScopeID("dm:alice|").DMParticipants()
	req.Error(err)
}

func TestScopeID_ValidateGroup(t *testing.T) {
	req := require.New(t)

	req.NoError(ScopeID("lobby").ValidateGroup())
	req.Error(ScopeID("").ValidateGroup())
	req.Error(ScopeID("  ").ValidateGroup())

	// Group ids must never carry the dm prefix
	req.Error(ScopeID("dm:alice|bob").ValidateGroup())
}

func TestScopeID_ValidateDM_Rejects_NonCanonical(t *testing.T) {
	req := require.New(t)

	req.NoError(ScopeID("dm:alice|bob").ValidateDM())

	// Wrong order
	req.Error(ScopeID("dm:bob|alice").ValidateDM())
	// Upper case
	req.Error(ScopeID("dm:Alice|bob").ValidateDM())
}

func TestNormalizeUsername(t *testing.T) {
	req := require.New(t)
	req.Equal("alice", NormalizeUsername("  Alice "))
	req.Equal("alice", NormalizeUsername("ALICE"))
}
