package runtime

import (
	"context"
	"log/slog"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/filters"
)

// Fanout delivers named events to sets of connections resolved through the
// registry. Delivery is best-effort: a failing sink is logged, never fatal.
type Fanout struct {
	log      *slog.Logger
	registry *Registry
}

func NewFanout(log *slog.Logger, registry *Registry) *Fanout {
	return &Fanout{log: log, registry: registry}
}

func (f *Fanout) deliver(d Delivery, event string, payload any) {
	if err := d.Sink.Consume(context.Background(), contract.Outbound{Event: event, Payload: payload}); err != nil {
		f.log.Warn("Sink delivery failed", "connection", d.Session.ConnectionID, "event", event, "error", err)
	}
}

// ToScope sends an event to every deliverable member of a scope.
func (f *Fanout) ToScope(scope domain.ScopeID, event string, payload any) {
	for _, d := range f.registry.ScopeDeliveries(scope) {
		f.deliver(d, event, payload)
	}
}

// ToScopeExcept sends to a scope, skipping one connection.
func (f *Fanout) ToScopeExcept(scope domain.ScopeID, exceptConnection, event string, payload any) {
	for _, d := range f.registry.ScopeDeliveries(scope) {
		if d.Session.ConnectionID == exceptConnection {
			continue
		}
		f.deliver(d, event, payload)
	}
}

// ToScopeFiltered iterates only the scope's current member connections,
// resolves each member's own mute bucket, and skips delivery to viewers who
// mute the author as of the message's effective timestamp. Suppression is
// per-viewer, never global. The payload is built per viewer so sender-only
// fields (localId) stay sender-only.
func (f *Fanout) ToScopeFiltered(scope domain.ScopeID, event, author string, timestamp int64,
	build func(viewer *domain.Session) any) {
	for _, d := range f.registry.ScopeDeliveries(scope) {
		if !filters.Allows(d.Filters, scope, author, timestamp) {
			continue
		}
		f.deliver(d, event, build(d.Session))
	}
}

// ToUser sends to every deliverable connection of one user.
func (f *Fanout) ToUser(username, event string, payload any) {
	for _, d := range f.registry.UserDeliveries(username) {
		f.deliver(d, event, payload)
	}
}

// ToAll sends to every deliverable connection on the relay.
func (f *Fanout) ToAll(event string, payload any) {
	for _, d := range f.registry.AllDeliveries() {
		f.deliver(d, event, payload)
	}
}

// ToConnection sends to a single connection if it still has a sink.
func (f *Fanout) ToConnection(connectionID, event string, payload any) {
	if d, ok := f.registry.DeliveryFor(connectionID); ok {
		f.deliver(d, event, payload)
	}
}
