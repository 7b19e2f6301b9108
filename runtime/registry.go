// Package runtime owns the relay's live state: sessions, scope membership,
// presence, pending disconnects, and the join/leave aggregation buckets.
// All mutation goes through method boundaries so invariants hold in one place.
package runtime

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
)

type Set map[string]struct{}

// Delivery pairs a live session with its connection sink. Filters is the
// viewer's mute set snapshotted under the registry lock; refreshes replace
// the set wholesale, so the snapshot stays safe to read after the lock is
// released.
type Delivery struct {
	Session *domain.Session
	Sink    contract.EventSink
	Filters domain.FilterSet
}

// Registry is the canonical map of live connections to identity and
// membership state. One session per connection, exclusively owned here.
type Registry struct {
	mu           sync.RWMutex
	sessions     map[string]*domain.Session    // connection id -> session
	sinks        map[string]contract.EventSink // connection id -> sink
	scopeMembers map[domain.ScopeID]Set        // scope -> connection ids
	byUser       map[string]Set                // normalized username -> connection ids
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:     make(map[string]*domain.Session),
		sinks:        make(map[string]contract.EventSink),
		scopeMembers: make(map[domain.ScopeID]Set),
		byUser:       make(map[string]Set),
	}
}

// RegisterOrUpdate upserts the session for a connection, merging membership
// state rather than overwriting it. Re-identifying under a new username moves
// the connection between user indexes.
func (r *Registry) RegisterOrUpdate(connectionID, userID, username, avatar, bubbleColor string) *domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[connectionID]
	if !ok {
		sess = domain.NewSession(connectionID)
		r.sessions[connectionID] = sess
	}
	previous := sess.Normalized()
	if userID != "" {
		sess.UserID = userID
	}
	if username != "" {
		sess.Username = username
	}
	if avatar != "" {
		sess.Avatar = avatar
	}
	if bubbleColor != "" {
		sess.BubbleColor = bubbleColor
	}
	sess.PendingDisconnect = false

	current := sess.Normalized()
	if previous != current {
		r.unindexUser(previous, connectionID)
	}
	if current != "" {
		if _, ok := r.byUser[current]; !ok {
			r.byUser[current] = make(Set)
		}
		r.byUser[current][connectionID] = struct{}{}
	}
	return sess
}

func (r *Registry) unindexUser(norm, connectionID string) {
	if norm == "" {
		return
	}
	if conns, ok := r.byUser[norm]; ok {
		delete(conns, connectionID)
		if len(conns) == 0 {
			delete(r.byUser, norm)
		}
	}
}

// AttachSink binds the delivery channel of a connection.
func (r *Registry) AttachSink(connectionID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[connectionID] = sink
}

func (r *Registry) Session(connectionID string) (*domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[connectionID]
	return sess, ok
}

// Join adds the connection to a scope. It reports whether this is the user's
// first live connection inside that scope, which is what triggers membership
// persistence and join aggregation.
func (r *Registry) Join(connectionID string, scope domain.ScopeID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[connectionID]
	if !ok {
		return false, fmt.Errorf("%w: unknown connection %s", errors.ErrNotAuthenticated, connectionID)
	}
	norm := sess.Normalized()
	first := true
	members, ok := r.scopeMembers[scope]
	if !ok {
		members = make(Set)
		r.scopeMembers[scope] = members
	}
	for connID := range members {
		other, exists := r.sessions[connID]
		if exists && other.Normalized() == norm {
			first = false
			break
		}
	}
	members[connectionID] = struct{}{}
	sess.AddScope(scope)
	return first, nil
}

// Leave removes the connection from a scope and reports whether the user has
// no remaining connection inside it.
func (r *Registry) Leave(connectionID string, scope domain.ScopeID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[connectionID]
	if !ok {
		return false
	}
	sess.RemoveScope(scope)
	r.dropMember(scope, connectionID)

	norm := sess.Normalized()
	for connID := range r.scopeMembers[scope] {
		if other, exists := r.sessions[connID]; exists && other.Normalized() == norm {
			return false
		}
	}
	return true
}

func (r *Registry) dropMember(scope domain.ScopeID, connectionID string) {
	if members, ok := r.scopeMembers[scope]; ok {
		delete(members, connectionID)
		if len(members) == 0 {
			delete(r.scopeMembers, scope)
		}
	}
}

// SeedDMThreads records known DM scopes on the session without joining their
// transport groups; joining stays an explicit client action.
func (r *Registry) SeedDMThreads(connectionID string, threads []domain.ScopeID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[connectionID]
	if !ok {
		return
	}
	for _, id := range threads {
		if id.IsDM() {
			sess.DMs[id] = struct{}{}
		}
	}
}

// SetFilters replaces a session's mute rules. Fanout snapshots the set under
// the same lock, so a refresh never races a concurrent filtered delivery.
func (r *Registry) SetFilters(connectionID string, set domain.FilterSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions[connectionID]; ok {
		sess.Filters = set
		sess.FiltersFetchedAt = time.Now()
	}
}

// FiltersOf returns the session's current mute rules.
func (r *Registry) FiltersOf(connectionID string) domain.FilterSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if sess, ok := r.sessions[connectionID]; ok {
		return sess.Filters
	}
	return nil
}

// MarkPending flags a session as inside its disconnect grace window, so it
// stops counting toward deliverability and liveness.
func (r *Registry) MarkPending(connectionID string) (*domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[connectionID]
	if !ok {
		return nil, false
	}
	sess.PendingDisconnect = true
	return sess, true
}

// Remove destroys a session and returns it along with the scopes it was in.
func (r *Registry) Remove(connectionID string) (*domain.Session, []domain.ScopeID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[connectionID]
	if !ok {
		return nil, nil
	}
	scopes := sess.Scopes()
	for _, scope := range scopes {
		r.dropMember(scope, connectionID)
	}
	r.unindexUser(sess.Normalized(), connectionID)
	delete(r.sessions, connectionID)
	delete(r.sinks, connectionID)
	return sess, scopes
}

// LiveCount counts a user's sessions outside any disconnect grace window.
func (r *Registry) LiveCount(username string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for connID := range r.byUser[domain.NormalizeUsername(username)] {
		if sess, ok := r.sessions[connID]; ok && !sess.PendingDisconnect {
			count++
		}
	}
	return count
}

// MembersOf lists the distinct usernames currently connected to a scope.
func (r *Registry) MembersOf(scope domain.ScopeID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(Set)
	var members []string
	for connID := range r.scopeMembers[scope] {
		sess, ok := r.sessions[connID]
		if !ok || sess.PendingDisconnect {
			continue
		}
		if _, dup := seen[sess.Normalized()]; dup {
			continue
		}
		seen[sess.Normalized()] = struct{}{}
		members = append(members, sess.Username)
	}
	sort.Strings(members)
	return members
}

// ScopeDeliveries resolves the deliverable connections of a scope. Sessions
// inside a disconnect grace window are skipped.
func (r *Registry) ScopeDeliveries(scope domain.ScopeID) []Delivery {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Delivery
	for connID := range r.scopeMembers[scope] {
		out = r.appendDelivery(out, connID)
	}
	return out
}

// UserDeliveries resolves every deliverable connection of one user, across
// all scopes.
func (r *Registry) UserDeliveries(username string) []Delivery {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Delivery
	for connID := range r.byUser[domain.NormalizeUsername(username)] {
		out = r.appendDelivery(out, connID)
	}
	return out
}

// AllDeliveries resolves every deliverable connection on the relay.
func (r *Registry) AllDeliveries() []Delivery {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Delivery
	for connID := range r.sessions {
		out = r.appendDelivery(out, connID)
	}
	return out
}

// DeliveryFor resolves one connection regardless of pending state, for
// direct replies such as error events.
func (r *Registry) DeliveryFor(connectionID string) (Delivery, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[connectionID]
	if !ok {
		return Delivery{}, false
	}
	sink, ok := r.sinks[connectionID]
	if !ok {
		return Delivery{}, false
	}
	return Delivery{Session: sess, Sink: sink, Filters: sess.Filters}, true
}

func (r *Registry) appendDelivery(out []Delivery, connID string) []Delivery {
	sess, ok := r.sessions[connID]
	if !ok || sess.PendingDisconnect {
		return out
	}
	sink, ok := r.sinks[connID]
	if !ok {
		return out
	}
	return append(out, Delivery{Session: sess, Sink: sink, Filters: sess.Filters})
}
