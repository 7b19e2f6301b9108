package runtime

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/mocks"
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

func (s *captureSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Event)
	}
	return out
}

func (s *captureSink) count(name string) int {
	n := 0
	for _, got := range s.names() {
		if got == name {
			n++
		}
	}
	return n
}

func newTestCoordinator(t *testing.T, grace time.Duration) (*Coordinator, *Registry, *mocks.MockBackend) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	backend := mocks.NewMockBackend(ctrl)
	backend.EXPECT().DMThreads(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	backend.EXPECT().
		PostMessage(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, _ domain.ScopeID, m domain.Message) (domain.Message, error) {
			return m, nil
		}).
		AnyTimes()

	log := slog.Default()
	registry := NewRegistry()
	presence := NewPresenceTracker()
	fanout := NewFanout(log, registry)
	aggregator := NewAggregator(log, backend, 10*time.Millisecond, time.Second,
		func(scope domain.ScopeID, name string, payload any) {
			fanout.ToScope(scope, name, payload)
		})
	coordinator := NewCoordinator(log, registry, presence, fanout, aggregator, backend, grace)
	t.Cleanup(coordinator.Teardown)
	return coordinator, registry, backend
}

func identify(coordinator *Coordinator, sink contract.EventSink, username string) string {
	connID := uuid.NewString()
	coordinator.Identify(context.Background(), connID, sink,
		event.IdentifyPayload{Username: username})
	return connID
}

func TestCoordinator_Identify_Emits_Online_Once(t *testing.T) {
	req := require.New(t)
	coordinator, _, _ := newTestCoordinator(t, time.Second)
	sink := &captureSink{}

	// When the same user identifies on two connections
	identify(coordinator, sink, "alice")
	identify(coordinator, sink, "alice")

	// Then online fires exactly once across both sinks
	req.Equal(1, sink.count(event.PresenceOnline))
}

func TestCoordinator_Reconnect_Within_Grace_Is_Silent(t *testing.T) {
	req := require.New(t)
	coordinator, registry, _ := newTestCoordinator(t, 80*time.Millisecond)
	scope := domain.ScopeID("lobby")

	aliceSink := &captureSink{}
	conn1 := identify(coordinator, aliceSink, "alice")
	_, err := registry.Join(conn1, scope)
	req.NoError(err)

	bobSink := &captureSink{}
	conn2 := identify(coordinator, bobSink, "bob")
	_, err = registry.Join(conn2, scope)
	req.NoError(err)

	// When alice disconnects and reconnects inside the grace window
	coordinator.Disconnect(conn1)
	req.Equal(1, coordinator.PendingCount())
	reconnSink := &captureSink{}
	identify(coordinator, reconnSink, "alice")
	req.Equal(0, coordinator.PendingCount())

	// Then after the grace would have elapsed, no leave or offline fired
	time.Sleep(200 * time.Millisecond)
	req.Equal(0, bobSink.count(event.MemberLeft))
	req.Equal(0, bobSink.count(event.PresenceOffline))
	req.Equal(0, bobSink.count(event.System))
}

func TestCoordinator_Finalize_After_Grace(t *testing.T) {
	req := require.New(t)
	coordinator, registry, _ := newTestCoordinator(t, 30*time.Millisecond)
	scope := domain.ScopeID("lobby")

	aliceSink := &captureSink{}
	conn1 := identify(coordinator, aliceSink, "alice")
	_, err := registry.Join(conn1, scope)
	req.NoError(err)

	bobSink := &captureSink{}
	conn2 := identify(coordinator, bobSink, "bob")
	_, err = registry.Join(conn2, scope)
	req.NoError(err)

	// When alice disconnects and the grace window expires
	coordinator.Disconnect(conn1)
	time.Sleep(200 * time.Millisecond)

	// Then bob sees one leave, one aggregated notice, and one offline
	req.Equal(1, bobSink.count(event.MemberLeft))
	req.Equal(1, bobSink.count(event.PresenceOffline))
	req.Equal(1, bobSink.count(event.System))
	req.Equal(0, coordinator.PendingCount())
	req.Equal(0, registry.LiveCount("alice"))
}

func TestCoordinator_Finalize_Skipped_While_Other_Session_Lives(t *testing.T) {
	req := require.New(t)
	coordinator, registry, _ := newTestCoordinator(t, 30*time.Millisecond)
	scope := domain.ScopeID("lobby")

	sink1, sink2 := &captureSink{}, &captureSink{}
	conn1 := identify(coordinator, sink1, "alice")
	conn2 := identify(coordinator, sink2, "alice")
	_, err := registry.Join(conn1, scope)
	req.NoError(err)
	_, err = registry.Join(conn2, scope)
	req.NoError(err)

	// When only one of alice's connections disconnects for good
	coordinator.Disconnect(conn1)
	time.Sleep(150 * time.Millisecond)

	// Then nothing is announced: the user is still here
	req.Equal(0, sink2.count(event.MemberLeft))
	req.Equal(0, sink2.count(event.PresenceOffline))
	req.Equal(1, registry.LiveCount("alice"))
}

func TestCoordinator_At_Most_One_Pending_Per_User(t *testing.T) {
	req := require.New(t)
	coordinator, _, _ := newTestCoordinator(t, time.Second)

	sink := &captureSink{}
	conn1 := identify(coordinator, sink, "alice")
	conn2 := identify(coordinator, sink, "alice")

	// When both connections disconnect back to back
	coordinator.Disconnect(conn1)
	coordinator.Disconnect(conn2)

	// Then a single grace window remains
	req.Equal(1, coordinator.PendingCount())
}

func TestCoordinator_Unidentified_Disconnect_Is_Silent(t *testing.T) {
	req := require.New(t)
	coordinator, registry, _ := newTestCoordinator(t, 30*time.Millisecond)

	// Given a connection that never identified
	connID := uuid.NewString()
	registry.RegisterOrUpdate(connID, "", "", "", "")

	// When it disconnects
	coordinator.Disconnect(connID)

	// Then the session is gone immediately, with no grace window
	req.Equal(0, coordinator.PendingCount())
	_, ok := registry.Session(connID)
	req.False(ok)
}

func TestCoordinator_Replaced_Pending_Keeps_Retired_Scopes(t *testing.T) {
	req := require.New(t)
	coordinator, registry, _ := newTestCoordinator(t, 30*time.Millisecond)
	alpha, beta := domain.ScopeID("alpha"), domain.ScopeID("beta")

	// Given alice in "alpha" on one connection and "beta" on another
	conn1 := identify(coordinator, &captureSink{}, "alice")
	conn2 := identify(coordinator, &captureSink{}, "alice")
	_, err := registry.Join(conn1, alpha)
	req.NoError(err)
	_, err = registry.Join(conn2, beta)
	req.NoError(err)

	// And a watcher connected only to alpha
	watcherSink := &captureSink{}
	watcherConn := identify(coordinator, watcherSink, "bob")
	_, err = registry.Join(watcherConn, alpha)
	req.NoError(err)

	// When both of alice's connections disconnect inside one grace window
	coordinator.Disconnect(conn1)
	coordinator.Disconnect(conn2)
	req.Equal(1, coordinator.PendingCount())
	time.Sleep(200 * time.Millisecond)

	// Then the scope only the first connection was in still sees the departure
	req.Equal(0, registry.LiveCount("alice"))
	req.Equal(1, watcherSink.count(event.MemberLeft))
	req.Equal(1, watcherSink.count(event.PresenceOffline))
}
