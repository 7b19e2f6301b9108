// Package event defines the named wire events exchanged over a connection's
// bidirectional channel, with one tagged payload struct per event name.
// Payloads are validated at the transport boundary before reaching handlers.
package event

import (
	"chat-relay/domain"
)

// Inbound event names.
const (
	Identify      = "identify"
	Join          = "join"
	Leave         = "leave"
	MessageSend   = "message:send"
	MessageEdit   = "message:edit"
	MessageDelete = "message:delete"
	MessageReact  = "message:react"
	Typing        = "typing"
	Ping          = "ping"
	Like          = "like"
	Unlike        = "unlike"
	ProfileUpdate = "profile:update"
)

// Outbound event names.
const (
	Joined           = "joined"
	MemberJoined     = "member:joined"
	MemberLeft       = "member:left"
	PresenceOnline   = "presence:online"
	PresenceOffline  = "presence:offline"
	System           = "system"
	SystemReconciled = "system:reconciled"
	Message          = "message"
	DMMessage        = "dm:message"
	MessageEdited    = "message:edited"
	MessageDeleted   = "message:deleted"
	MessageReactions = "message:reactions"
	TypingUpdate     = "typing:update"
	FiltersSnapshot  = "filters:snapshot"
	LikeReceived     = "like:received"
	LikeRemoved      = "like:removed"
	ProfileUpdated   = "profile:updated"
	Error            = "error"
	Pong             = "pong"
)

// IdentifyPayload presents the caller-supplied identity. The relay trusts it;
// session issuance is owned elsewhere.
type IdentifyPayload struct {
	UserID      string `json:"userId" validate:"max=64"`
	Username    string `json:"username" validate:"required,min=1,max=64"`
	Avatar      string `json:"avatar" validate:"max=512"`
	BubbleColor string `json:"bubbleColor" validate:"max=32"`
}

type JoinPayload struct {
	Scope domain.ScopeID `json:"scope" validate:"required"`
}

type LeavePayload struct {
	Scope domain.ScopeID `json:"scope" validate:"required"`
}

type RefPayload struct {
	MessageID string `json:"messageId"`
	Username  string `json:"username"`
	Timestamp int64  `json:"timestamp"`
}

func (r RefPayload) Ref() domain.MessageRef {
	return domain.MessageRef{ID: r.MessageID, Username: r.Username, Timestamp: r.Timestamp}
}

type SendPayload struct {
	Scope   domain.ScopeID `json:"scope" validate:"required"`
	Text    string         `json:"text" validate:"max=4000"`
	Media   string         `json:"media" validate:"max=1024"`
	Audio   string         `json:"audio" validate:"max=1024"`
	LocalID string         `json:"localId" validate:"max=64"`
	ReplyTo *RefPayload    `json:"replyTo"`
}

type EditPayload struct {
	Scope     domain.ScopeID `json:"scope" validate:"required"`
	MessageID string         `json:"messageId"`
	Username  string         `json:"username"`
	Timestamp int64          `json:"timestamp"`
	Text      string         `json:"text" validate:"required,max=4000"`
}

func (p EditPayload) Ref() domain.MessageRef {
	return domain.MessageRef{ID: p.MessageID, Username: p.Username, Timestamp: p.Timestamp}
}

type DeletePayload struct {
	Scope     domain.ScopeID `json:"scope" validate:"required"`
	MessageID string         `json:"messageId"`
	Username  string         `json:"username"`
	Timestamp int64          `json:"timestamp"`
}

func (p DeletePayload) Ref() domain.MessageRef {
	return domain.MessageRef{ID: p.MessageID, Username: p.Username, Timestamp: p.Timestamp}
}

type ReactPayload struct {
	Scope     domain.ScopeID `json:"scope" validate:"required"`
	MessageID string         `json:"messageId"`
	Username  string         `json:"username"`
	Timestamp int64          `json:"timestamp"`
	Emoji     string         `json:"emoji" validate:"max=32"`
}

func (p ReactPayload) Ref() domain.MessageRef {
	return domain.MessageRef{ID: p.MessageID, Username: p.Username, Timestamp: p.Timestamp}
}

type TypingPayload struct {
	Scope  domain.ScopeID `json:"scope" validate:"required"`
	Active bool           `json:"active"`
	TTLMs  int64          `json:"ttlMs" validate:"min=0"`
}

type LikePayload struct {
	Target string `json:"target" validate:"required,min=1,max=64"`
}

// ProfileUpdatePayload carries no profile body on purpose: the relay re-fetches
// the canonical profile before fan-out, so stale or spoofed bodies never spread.
type ProfileUpdatePayload struct{}

// ErrorPayload is the scoped error event delivered for any failed operation,
// echoing the target best-effort so optimistic UI state can be cleared.
type ErrorPayload struct {
	Op      string             `json:"op"`
	Code    string             `json:"code"`
	Message string             `json:"message"`
	Scope   domain.ScopeID     `json:"scope,omitempty"`
	Target  *domain.MessageRef `json:"target,omitempty"`
	LocalID string             `json:"localId,omitempty"`
}

type PresencePayload struct {
	Username string `json:"username"`
}

type MemberPayload struct {
	Scope    domain.ScopeID `json:"scope"`
	Username string         `json:"username"`
}

type JoinedPayload struct {
	Scope    domain.ScopeID   `json:"scope"`
	Members  []string         `json:"members,omitempty"`
	Online   []string         `json:"online,omitempty"`
	Messages []domain.Message `json:"messages"`
}

type MessagePayload struct {
	Scope   domain.ScopeID `json:"scope"`
	DMID    domain.ScopeID `json:"dmId,omitempty"`
	LocalID string         `json:"localId,omitempty"`
	domain.Message
}

type MutationPayload struct {
	Scope domain.ScopeID `json:"scope"`
	domain.MessageRef
	Text     string `json:"text,omitempty"`
	EditedAt int64  `json:"editedAt,omitempty"`
}

type ReactionsPayload struct {
	Scope domain.ScopeID `json:"scope"`
	domain.MessageRef
	Reactions map[string]domain.Reaction `json:"reactions"`
	Summary   domain.ReactionSummary     `json:"summary"`
}

type TypingUpdatePayload struct {
	Scope    domain.ScopeID `json:"scope"`
	Username string         `json:"username"`
	Active   bool           `json:"active"`
	TTLMs    int64          `json:"ttlMs,omitempty"`
}

type SystemPayload struct {
	Scope domain.ScopeID `json:"scope"`
	domain.Message
}

type ReconciledPayload struct {
	Scope     domain.ScopeID `json:"scope"`
	LocalID   string         `json:"localId"`
	MessageID string         `json:"messageId"`
}

type FiltersSnapshotPayload struct {
	FetchedAt int64            `json:"fetchedAt"`
	Filters   domain.FilterSet `json:"filters"`
}

type RelationshipPayload struct {
	From    string                `json:"from"`
	Profile domain.ProfileSummary `json:"profile"`
}

type ProfileUpdatedPayload struct {
	Username string                `json:"username"`
	Profile  domain.ProfileSummary `json:"profile"`
}
