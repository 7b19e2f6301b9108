// Package filters applies per-viewer, per-scope mute rules at relay time and
// history-fetch time. Rules are cached on the session and always re-synced
// from the backend; the cache is never authoritative.
package filters

import (
	"context"
	"log/slog"

	"chat-relay/contract"
	"chat-relay/domain"
)

// Store is the session-state boundary the cache reads and writes through.
// Replacing the rule set under the store's lock keeps a refresh safe against
// filtered fanout running on other connections' goroutines.
type Store interface {
	FiltersOf(connectionID string) domain.FilterSet
	SetFilters(connectionID string, set domain.FilterSet)
}

type Cache struct {
	log     *slog.Logger
	backend contract.Backend
	store   Store
}

func NewCache(log *slog.Logger, backend contract.Backend, store Store) *Cache {
	return &Cache{log: log, backend: backend, store: store}
}

// Refresh fetches the account's full rule set, rebuilds the per-scope map,
// and caches it on the session. On fetch failure the previous rules stand.
func (c *Cache) Refresh(ctx context.Context, s *domain.Session) domain.FilterSet {
	set := c.backend.MessageFilters(ctx, s.UserID, c.store.FiltersOf(s.ConnectionID))
	if set == nil {
		set = make(domain.FilterSet)
	}
	c.store.SetFilters(s.ConnectionID, set)
	return set
}

// Allows decides delivery of one author's message to one viewer. System
// messages are exempt. When the mute's effective-since or the message's own
// timestamp cannot be resolved, suppress conservatively.
func Allows(set domain.FilterSet, scope domain.ScopeID, author string, timestamp int64) bool {
	if domain.NormalizeUsername(author) == domain.SystemUsername {
		return true
	}
	since, muted := set.MutedSince(scope, author)
	if !muted {
		return true
	}
	if since == 0 || timestamp == 0 {
		return false
	}
	return timestamp < since
}

// ApplyToHistory filters a history page for one viewer before first delivery.
func ApplyToHistory(messages []domain.Message, set domain.FilterSet, scope domain.ScopeID) []domain.Message {
	out := make([]domain.Message, 0, len(messages))
	for _, m := range messages {
		if m.IsSystem() || Allows(set, scope, m.Username, m.Timestamp) {
			out = append(out, m)
		}
	}
	return out
}
