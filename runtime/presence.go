package runtime

import (
	"sync"
	"time"

	"chat-relay/domain"
)

// PresenceTracker derives process-wide online/offline state from activity
// timestamps. The online transition fires exactly once per absent-to-present
// change; going offline happens either through the disconnect path or the
// inactivity sweep.
type PresenceTracker struct {
	mu         sync.Mutex
	lastActive map[string]time.Time
	online     map[string]struct{}
	now        func() time.Time
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		lastActive: make(map[string]time.Time),
		online:     make(map[string]struct{}),
		now:        time.Now,
	}
}

// MarkActive updates the activity timestamp and reports whether the user just
// came online.
func (p *PresenceTracker) MarkActive(username string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	norm := domain.NormalizeUsername(username)
	p.lastActive[norm] = p.now()
	if _, ok := p.online[norm]; ok {
		return false
	}
	p.online[norm] = struct{}{}
	return true
}

// SetOffline clears the online flag and reports whether the user was online.
func (p *PresenceTracker) SetOffline(username string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	norm := domain.NormalizeUsername(username)
	if _, ok := p.online[norm]; !ok {
		return false
	}
	delete(p.online, norm)
	return true
}

// Forget drops a user's presence record entirely.
func (p *PresenceTracker) Forget(username string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	norm := domain.NormalizeUsername(username)
	delete(p.online, norm)
	delete(p.lastActive, norm)
}

// Online lists the users currently considered online.
func (p *PresenceTracker) Online() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.online))
	for norm := range p.online {
		out = append(out, norm)
	}
	return out
}

func (p *PresenceTracker) IsOnline(username string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.online[domain.NormalizeUsername(username)]
	return ok
}

// IdleUsers returns online users whose last activity is older than the given
// threshold. Covers backgrounded tabs that never produce a socket-level
// disconnect.
func (p *PresenceTracker) IdleUsers(threshold time.Duration) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	cutoff := p.now().Add(-threshold)
	var idle []string
	for norm := range p.online {
		if at, ok := p.lastActive[norm]; !ok || at.Before(cutoff) {
			idle = append(idle, norm)
		}
	}
	return idle
}
