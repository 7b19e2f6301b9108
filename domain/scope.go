// Package domain contains core concepts of the relay.
// This file defines scope identifiers and their grammar.
// No runtime, network, or transport logic should be added here.
package domain

import (
	"fmt"
	"strings"

	"chat-relay/errors"
)

// DMPrefix marks direct-message scopes. Group ids must never carry it.
const DMPrefix = "dm:"

// ScopeID identifies a room: either an opaque group id or a DM composite id
// of the form dm:{userA}|{userB} with both usernames lowercased and sorted,
// so either participant can derive the same id independently.
type ScopeID string

func (s ScopeID) String() string {
	return string(s)
}

// IsDM reports whether the scope is a direct-message scope.
func (s ScopeID) IsDM() bool {
	return strings.HasPrefix(string(s), DMPrefix)
}

// NormalizeUsername maps a username to its canonical lowercase form used for
// presence records, filter buckets, and DM scope ids.
func NormalizeUsername(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NewDMScope builds the canonical DM scope id for two participants.
func NewDMScope(a, b string) ScopeID {
	na, nb := NormalizeUsername(a), NormalizeUsername(b)
	if na > nb {
		na, nb = nb, na
	}
	return ScopeID(DMPrefix + na + "|" + nb)
}

// DMParticipants extracts the two participants encoded in a DM scope id.
func (s ScopeID) DMParticipants() (string, string, error) {
	if !s.IsDM() {
		return "", "", fmt.Errorf("%w: %q is not a dm scope", errors.ErrInvalidScope, s)
	}
	raw := strings.TrimPrefix(string(s), DMPrefix)
	parts := strings.Split(raw, "|")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: malformed dm id %q", errors.ErrInvalidScope, s)
	}
	return parts[0], parts[1], nil
}

// ValidateGroup checks the shape of a group scope id.
func (s ScopeID) ValidateGroup() error {
	if strings.TrimSpace(string(s)) == "" {
		return fmt.Errorf("%w: empty group id", errors.ErrInvalidScope)
	}
	if s.IsDM() {
		return fmt.Errorf("%w: group id %q carries the dm prefix", errors.ErrInvalidScope, s)
	}
	return nil
}

// ValidateDM checks the shape of a DM scope id, including canonical form:
// both usernames lowercase and sorted.
func (s ScopeID) ValidateDM() error {
	a, b, err := s.DMParticipants()
	if err != nil {
		return err
	}
	if NewDMScope(a, b) != s {
		return fmt.Errorf("%w: dm id %q is not canonical", errors.ErrInvalidScope, s)
	}
	return nil
}

// Validate dispatches on the id shape.
func (s ScopeID) Validate() error {
	if s.IsDM() {
		return s.ValidateDM()
	}
	return s.ValidateGroup()
}
