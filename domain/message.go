// Package domain contains core concepts of the relay.
// This file defines Message entities and addressing rules.
// Messages are owned by the backend; the relay only brokers them.
package domain

import "strings"

// SystemUsername is the author of relay-synthesized notices. Messages from it
// are exempt from viewer filters.
const SystemUsername = "system"

// Reaction is one user's reaction to a message. One entry per reacting user.
type Reaction struct {
	Emoji    string `json:"emoji"`
	At       int64  `json:"at"`
	UserID   string `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`
}

// ReplyRef points at the message a new message replies to.
type ReplyRef struct {
	MessageID string `json:"messageId,omitempty"`
	Username  string `json:"username,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Preview   string `json:"preview,omitempty"`
}

// Message as seen by the relay. Identified by a durable id or, for legacy
// clients, by the (username, timestamp) composite.
type Message struct {
	ID        string              `json:"messageId,omitempty"`
	UserID    string              `json:"userId,omitempty"`
	Username  string              `json:"username"`
	Text      string              `json:"text,omitempty"`
	Media     string              `json:"media,omitempty"`
	Audio     string              `json:"audio,omitempty"`
	ReplyTo   *ReplyRef           `json:"replyTo,omitempty"`
	Reactions map[string]Reaction `json:"reactions,omitempty"`
	Timestamp int64               `json:"timestamp"`
	EditedAt  int64               `json:"editedAt,omitempty"`
	System    bool                `json:"system,omitempty"`
}

// HasPayload reports whether the message carries anything deliverable.
func (m Message) HasPayload() bool {
	return strings.TrimSpace(m.Text) != "" || m.Media != "" || m.Audio != ""
}

// IsSystem reports whether the message is a relay-synthesized notice.
func (m Message) IsSystem() bool {
	return m.System || NormalizeUsername(m.Username) == SystemUsername
}

// OwnedBy checks message ownership against a requester identity. The durable
// user id wins when both sides carry one; otherwise the username decides.
func (m Message) OwnedBy(userID, username string) bool {
	if m.UserID != "" && userID != "" {
		return m.UserID == userID
	}
	return NormalizeUsername(m.Username) == NormalizeUsername(username)
}

// MessageRef addresses a message either by durable id or by the legacy
// (username, timestamp) composite. Responses must mirror the shape requests
// used, so optimistic client state reconciles symmetrically.
type MessageRef struct {
	ID        string `json:"messageId,omitempty"`
	Username  string `json:"username,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// ByID reports whether the reference carries a durable id.
func (r MessageRef) ByID() bool {
	return r.ID != ""
}

// Zero reports whether the reference addresses nothing at all.
func (r MessageRef) Zero() bool {
	return r.ID == "" && (r.Username == "" || r.Timestamp == 0)
}

// Matches resolves the reference against a message, id first, legacy
// composite second.
func (r MessageRef) Matches(m Message) bool {
	if r.ByID() {
		return m.ID == r.ID
	}
	return m.Timestamp == r.Timestamp &&
		NormalizeUsername(m.Username) == NormalizeUsername(r.Username)
}

// RefTo builds the reference of a message in the same shape a request used.
func RefTo(m Message, byID bool) MessageRef {
	if byID && m.ID != "" {
		return MessageRef{ID: m.ID}
	}
	return MessageRef{Username: m.Username, Timestamp: m.Timestamp}
}

// ReactionSummary is the compact reaction digest relayed next to the full map.
type ReactionSummary struct {
	TotalCount int       `json:"totalCount"`
	MostRecent *Reaction `json:"mostRecent,omitempty"`
}

// SummarizeReactions folds a reaction map into its digest.
func SummarizeReactions(reactions map[string]Reaction) ReactionSummary {
	summary := ReactionSummary{TotalCount: len(reactions)}
	for _, r := range reactions {
		r := r
		if summary.MostRecent == nil || r.At > summary.MostRecent.At {
			summary.MostRecent = &r
		}
	}
	return summary
}
