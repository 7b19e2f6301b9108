package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
)

// pendingDisconnect tracks one username's disconnect grace window. At most
// one entry exists per username; the timer handle makes "reconnect cancels
// pending leave" a single check-and-cancel.
type pendingDisconnect struct {
	at           time.Time
	connectionID string
	scopes       []domain.ScopeID
	timer        *time.Timer
}

// Coordinator is the single owner of connection lifecycle state. Identify,
// activity, and disconnect all pass through here so the pending-disconnect
// and presence invariants are enforced at one boundary.
type Coordinator struct {
	mu         sync.Mutex
	log        *slog.Logger
	registry   *Registry
	presence   *PresenceTracker
	fanout     *Fanout
	aggregator *Aggregator
	backend    contract.Backend
	grace      time.Duration
	pending    map[string]*pendingDisconnect
	closed     bool
}

func NewCoordinator(log *slog.Logger, registry *Registry, presence *PresenceTracker,
	fanout *Fanout, aggregator *Aggregator, backend contract.Backend,
	grace time.Duration) *Coordinator {
	return &Coordinator{
		log:        log,
		registry:   registry,
		presence:   presence,
		fanout:     fanout,
		aggregator: aggregator,
		backend:    backend,
		grace:      grace,
		pending:    make(map[string]*pendingDisconnect),
	}
}

// Identify upserts the connection's session from caller-supplied identity,
// cancels any pending disconnect for the same user, marks activity, and seeds
// the session's DM threads from the backend (best-effort).
func (c *Coordinator) Identify(ctx context.Context, connectionID string,
	sink contract.EventSink, p event.IdentifyPayload) *domain.Session {
	sess := c.registry.RegisterOrUpdate(connectionID, p.UserID, p.Username, p.Avatar, p.BubbleColor)
	c.registry.AttachSink(connectionID, sink)

	if c.cancelPending(sess.Normalized(), connectionID) {
		c.log.Info("Reconnect within grace window, pending disconnect cancelled",
			"username", sess.Username)
	}
	c.MarkActive(sess.Username)

	threads := c.backend.DMThreads(ctx, sess.Normalized(), nil)
	c.registry.SeedDMThreads(connectionID, threads)
	return sess
}

// MarkActive refreshes the presence record and emits "online" exactly once on
// the absent-to-present transition.
func (c *Coordinator) MarkActive(username string) {
	if username == "" {
		return
	}
	if c.presence.MarkActive(username) {
		c.fanout.ToAll(event.PresenceOnline, event.PresencePayload{Username: username})
	}
}

// Touch records activity for the user behind a connection (heartbeat path).
func (c *Coordinator) Touch(connectionID string) {
	if sess, ok := c.registry.Session(connectionID); ok && sess.Identified() {
		c.MarkActive(sess.Username)
	}
}

// Disconnect flags the session and starts the grace timer. Idempotent: a
// second disconnect for the same user replaces the pending entry, silently
// retiring the previous dead connection, so at most one entry per username
// ever exists.
func (c *Coordinator) Disconnect(connectionID string) {
	sess, ok := c.registry.MarkPending(connectionID)
	if !ok {
		return
	}
	if !sess.Identified() {
		c.registry.Remove(connectionID)
		return
	}
	sess.DisconnectAt = time.Now()
	norm := sess.Normalized()
	scopes := sess.Scopes()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if existing, ok := c.pending[norm]; ok {
		existing.timer.Stop()
		if existing.connectionID != connectionID {
			c.registry.Remove(existing.connectionID)
		}
		// The retired connection's scopes still owe a leave once the user is
		// fully gone, so the replacement window inherits them.
		scopes = lo.Uniq(append(scopes, existing.scopes...))
	}
	entry := &pendingDisconnect{at: time.Now(), connectionID: connectionID, scopes: scopes}
	entry.timer = time.AfterFunc(c.grace, func() { c.finalize(norm, connectionID) })
	c.pending[norm] = entry
}

// cancelPending atomically cancels a user's grace timer, if any, and retires
// the dead connection without emitting leave or offline.
func (c *Coordinator) cancelPending(norm, newConnectionID string) bool {
	if norm == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.pending[norm]
	if !ok {
		return false
	}
	entry.timer.Stop()
	delete(c.pending, norm)
	if entry.connectionID != newConnectionID {
		c.registry.Remove(entry.connectionID)
	}
	return true
}

// finalize runs when a grace timer fires. It removes the session and, only
// when no other live session for the user remains, emits one leave per scope
// plus a single global offline.
func (c *Coordinator) finalize(norm, connectionID string) {
	c.mu.Lock()
	entry, ok := c.pending[norm]
	if !ok || entry.connectionID != connectionID {
		c.mu.Unlock()
		return
	}
	delete(c.pending, norm)
	c.mu.Unlock()

	sess, _ := c.registry.Remove(connectionID)
	if sess == nil {
		return
	}
	if c.registry.LiveCount(norm) > 0 {
		return
	}
	for _, scope := range entry.scopes {
		c.fanout.ToScope(scope, event.MemberLeft, event.MemberPayload{Scope: scope, Username: sess.Username})
		c.aggregator.Observe(scope, KindLeave, sess.Username)
	}
	if c.presence.SetOffline(norm) {
		c.fanout.ToAll(event.PresenceOffline, event.PresencePayload{Username: sess.Username})
	}
	c.log.Info("Session finalized", "username", sess.Username, "scopes", len(entry.scopes))
}

// PendingCount is the number of open grace windows, exposed for health
// reporting.
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Teardown stops every grace timer and aggregation window.
func (c *Coordinator) Teardown() {
	c.mu.Lock()
	c.closed = true
	for norm, entry := range c.pending {
		entry.timer.Stop()
		delete(c.pending, norm)
	}
	c.mu.Unlock()
	c.aggregator.Stop()
}
