package services

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/mock/gomock"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/filters"
	"chat-relay/mocks"
	"chat-relay/runtime"
)

type captureSink struct {
	mu     sync.Mutex
	events []contract.Outbound
}

func (s *captureSink) Consume(_ context.Context, e contract.Outbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *captureSink) byName(name string) []contract.Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []contract.Outbound
	for _, e := range s.events {
		if e.Event == name {
			out = append(out, e)
		}
	}
	return out
}

func (s *captureSink) one(t *testing.T, name string) contract.Outbound {
	t.Helper()
	matches := s.byName(name)
	if len(matches) != 1 {
		t.Fatalf("expected exactly one %q event, got %d", name, len(matches))
	}
	return matches[0]
}

type fixture struct {
	backend      *mocks.MockBackend
	registry     *runtime.Registry
	presence     *runtime.PresenceTracker
	coordinator  *runtime.Coordinator
	fanout       *runtime.Fanout
	group        *GroupService
	dm           *DMService
	relationship *RelationshipService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	backend := mocks.NewMockBackend(ctrl)
	backend.EXPECT().DMThreads(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	// Aggregated join/leave notices persist in the background; absorb them so
	// they never collide with per-test message expectations.
	backend.EXPECT().
		PostMessage(gomock.Any(), gomock.Any(), gomock.Cond(func(m domain.Message) bool { return m.System })).
		DoAndReturn(func(_ any, _ domain.ScopeID, m domain.Message) (domain.Message, error) {
			return m, nil
		}).
		AnyTimes()

	log := slog.Default()
	registry := runtime.NewRegistry()
	presence := runtime.NewPresenceTracker()
	fanout := runtime.NewFanout(log, registry)
	aggregator := runtime.NewAggregator(log, backend, 10*time.Millisecond, time.Second,
		func(scope domain.ScopeID, name string, payload any) {
			fanout.ToScope(scope, name, payload)
		})
	coordinator := runtime.NewCoordinator(log, registry, presence, fanout, aggregator,
		backend, time.Second)
	t.Cleanup(coordinator.Teardown)

	filterCache := filters.NewCache(log, backend, registry)
	cfg := Config{
		HistoryCount:           50,
		PageLimit:              200,
		TypingMinInterval:      300 * time.Millisecond,
		TypingMaxTTL:           15 * time.Second,
		MembershipWriteTimeout: time.Second,
	}
	return &fixture{
		backend:     backend,
		registry:    registry,
		presence:    presence,
		coordinator: coordinator,
		fanout:      fanout,
		group: NewGroupService(log, registry, presence, coordinator, backend,
			filterCache, fanout, aggregator, cfg),
		dm: NewDMService(log, registry, presence, coordinator, backend,
			filterCache, fanout, cfg),
		relationship: NewRelationshipService(log, registry, backend, fanout),
	}
}

// connect identifies a fresh connection for the user and returns its id.
func (f *fixture) connect(username, userID string) (string, *captureSink) {
	sink := &captureSink{}
	connID := uuid.NewString()
	f.coordinator.Identify(context.Background(), connID, sink,
		event.IdentifyPayload{UserID: userID, Username: username})
	return connID, sink
}

// expectJoinReads wires the two backend reads every join performs.
func (f *fixture) expectJoinReads(set domain.FilterSet, history []domain.Message) {
	f.backend.EXPECT().
		MessageFilters(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(set).
		AnyTimes()
	f.backend.EXPECT().
		LatestMessages(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(history).
		AnyTimes()
	f.backend.EXPECT().
		AddGroupMember(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil).
		AnyTimes()
	f.backend.EXPECT().
		RemoveGroupMember(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil).
		AnyTimes()
}

func (f *fixture) join(t *testing.T, svc interface {
	Join(ctx context.Context, connectionID string, p event.JoinPayload) error
}, connID string, scope domain.ScopeID) {
	t.Helper()
	if err := svc.Join(context.Background(), connID, event.JoinPayload{Scope: scope}); err != nil {
		t.Fatalf("join failed: %v", err)
	}
}
