// Package services holds the protocol state machines behind the relay's
// named events: join, send, edit, delete, react, typing, and the
// relationship pass-through. Each operation returns a taxonomy error that
// the transport maps onto a scoped error event; nothing here panics.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/filters"
	"chat-relay/runtime"
)

const replyPreviewLimit = 120

// core bundles the collaborators every channel handler needs.
type core struct {
	log          *slog.Logger
	registry     *runtime.Registry
	presence     *runtime.PresenceTracker
	coordinator  *runtime.Coordinator
	backend      contract.Backend
	filterCache  *filters.Cache
	fanout       *runtime.Fanout
	historyCount int
	pageLimit    int
}

// sessionFor resolves an identified session for the connection.
func sessionFor(registry *runtime.Registry, connectionID string) (*domain.Session, error) {
	sess, ok := registry.Session(connectionID)
	if !ok || !sess.Identified() {
		return nil, errors.ErrNotAuthenticated
	}
	return sess, nil
}

func (c *core) requireSession(connectionID string) (*domain.Session, error) {
	return sessionFor(c.registry, connectionID)
}

// revalidate re-reads the session after an awaited backend call; it may have
// been removed or flagged pending by an interleaved disconnect.
func (c *core) revalidate(connectionID string) (*domain.Session, bool) {
	sess, ok := c.registry.Session(connectionID)
	if !ok || sess.PendingDisconnect {
		return nil, false
	}
	return sess, true
}

// resolveTarget finds a message in the scope's recency window, by durable id
// first and legacy (username, timestamp) second, widening the lookup window
// exactly once before giving up.
func (c *core) resolveTarget(ctx context.Context, scope domain.ScopeID,
	ref domain.MessageRef) (domain.Message, error) {
	if ref.Zero() {
		return domain.Message{}, fmt.Errorf("%w: empty message reference", errors.ErrInvalidPayload)
	}
	window := c.backend.LatestMessages(ctx, scope, c.historyCount, nil)
	if m, ok := findRef(window, ref); ok {
		return m, nil
	}
	// One widened retry: page back from the oldest message we have seen.
	before := time.Now().UnixMilli()
	if len(window) > 0 {
		oldest := window[0].Timestamp
		for _, m := range window {
			if m.Timestamp < oldest {
				oldest = m.Timestamp
			}
		}
		before = oldest
	}
	widened := c.backend.PageMessages(ctx, scope, before, c.pageLimit, nil)
	if m, ok := findRef(widened, ref); ok {
		return m, nil
	}
	return domain.Message{}, fmt.Errorf("%w: %v in scope %s", errors.ErrNotFound, refString(ref), scope)
}

func findRef(messages []domain.Message, ref domain.MessageRef) (domain.Message, bool) {
	for _, m := range messages {
		if ref.Matches(m) {
			return m, true
		}
	}
	return domain.Message{}, false
}

func refString(ref domain.MessageRef) string {
	if ref.ByID() {
		return "message " + ref.ID
	}
	return fmt.Sprintf("message by %s at %d", ref.Username, ref.Timestamp)
}

// resolveReply resolves an optional reply reference. Resolution failure drops
// the reference rather than failing the send.
func (c *core) resolveReply(ctx context.Context, scope domain.ScopeID,
	ref domain.MessageRef) *domain.ReplyRef {
	if ref.Zero() {
		return nil
	}
	target, err := c.resolveTarget(ctx, scope, ref)
	if err != nil {
		c.log.Warn("Reply reference unresolved, dropping", "scope", scope, "error", err)
		return nil
	}
	preview := target.Text
	if len(preview) > replyPreviewLimit {
		preview = preview[:replyPreviewLimit]
	}
	return &domain.ReplyRef{
		MessageID: target.ID,
		Username:  target.Username,
		Timestamp: target.Timestamp,
		Preview:   preview,
	}
}

// authorizeMutation checks ownership of a resolved target, by durable user id
// when both sides carry one, by username otherwise.
func authorizeMutation(target domain.Message, sess *domain.Session) error {
	if !target.OwnedBy(sess.UserID, sess.Username) {
		return fmt.Errorf("%w: %s does not own %s", errors.ErrNotAllowed, sess.Username, refString(domain.MessageRef{ID: target.ID, Username: target.Username, Timestamp: target.Timestamp}))
	}
	return nil
}

func buildMessage(sess *domain.Session, text, media, audio string) (domain.Message, error) {
	m := domain.Message{
		UserID:    sess.UserID,
		Username:  sess.Username,
		Text:      strings.TrimSpace(text),
		Media:     media,
		Audio:     audio,
		Timestamp: time.Now().UnixMilli(),
	}
	if !m.HasPayload() {
		return domain.Message{}, errors.ErrEmptyMessage
	}
	return m, nil
}

// typingGate rate-limits "started" typing events per (scope, user).
type typingGate struct {
	mu   sync.Mutex
	last map[string]time.Time
	min  time.Duration
	now  func() time.Time
}

func newTypingGate(min time.Duration) *typingGate {
	return &typingGate{last: make(map[string]time.Time), min: min, now: time.Now}
}

// Allow admits at most one "started" event per interval per (scope, user).
// "Stopped" events never pass through here.
func (g *typingGate) Allow(scope domain.ScopeID, username string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := scope.String() + "|" + domain.NormalizeUsername(username)
	now := g.now()
	if at, ok := g.last[key]; ok && now.Sub(at) < g.min {
		return false
	}
	g.last[key] = now
	return true
}
