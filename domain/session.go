package domain

import "time"

// FilterSet holds the per-viewer mute rules, rebuilt from the backend on every
// refresh: scope id -> normalized author -> effective-since timestamp (unix ms).
// A cache, never authoritative.
type FilterSet map[ScopeID]map[string]int64

// Session is the connection-scoped record of a user's live socket.
// Exclusively owned by the registry; destroyed on confirmed disconnect.
type Session struct {
	ConnectionID string
	UserID       string
	Username     string
	Avatar       string
	BubbleColor  string

	Groups      map[ScopeID]struct{}
	ActiveGroup ScopeID
	DMs         map[ScopeID]struct{}
	ActiveDM    ScopeID

	// PendingDisconnect flags a session inside its disconnect grace window.
	// Such a session no longer counts toward deliverability or liveness.
	PendingDisconnect bool
	DisconnectAt      time.Time

	// Filters is replaced wholesale on refresh and read during fanout from
	// other connections' goroutines. Both sides go through the registry,
	// whose lock guards the field.
	Filters          FilterSet
	FiltersFetchedAt time.Time
}

func NewSession(connectionID string) *Session {
	return &Session{
		ConnectionID: connectionID,
		Groups:       make(map[ScopeID]struct{}),
		DMs:          make(map[ScopeID]struct{}),
		Filters:      make(FilterSet),
	}
}

// Normalized returns the canonical lowercase username of the session owner.
func (s *Session) Normalized() string {
	return NormalizeUsername(s.Username)
}

// Identified reports whether the connection has presented an identity yet.
func (s *Session) Identified() bool {
	return s.Username != ""
}

// AddScope records membership in a scope, keeping the group/DM sets disjoint
// and tracking the most recently joined scope of each kind.
func (s *Session) AddScope(id ScopeID) {
	if id.IsDM() {
		s.DMs[id] = struct{}{}
		s.ActiveDM = id
		return
	}
	s.Groups[id] = struct{}{}
	s.ActiveGroup = id
}

func (s *Session) RemoveScope(id ScopeID) {
	if id.IsDM() {
		delete(s.DMs, id)
		if s.ActiveDM == id {
			s.ActiveDM = ""
		}
		return
	}
	delete(s.Groups, id)
	if s.ActiveGroup == id {
		s.ActiveGroup = ""
	}
}

func (s *Session) InScope(id ScopeID) bool {
	if id.IsDM() {
		_, ok := s.DMs[id]
		return ok
	}
	_, ok := s.Groups[id]
	return ok
}

// Scopes returns every scope the session currently belongs to.
func (s *Session) Scopes() []ScopeID {
	out := make([]ScopeID, 0, len(s.Groups)+len(s.DMs))
	for id := range s.Groups {
		out = append(out, id)
	}
	for id := range s.DMs {
		out = append(out, id)
	}
	return out
}

// MutedSince looks up the effective-since timestamp for an author in a scope.
func (f FilterSet) MutedSince(scope ScopeID, author string) (int64, bool) {
	bucket, ok := f[scope]
	if !ok {
		return 0, false
	}
	since, ok := bucket[NormalizeUsername(author)]
	return since, ok
}
