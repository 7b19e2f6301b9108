package runtime

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chat-relay/contract"
	"chat-relay/domain"
)

type Sink struct{}

func (s Sink) Consume(ctx context.Context, e contract.Outbound) error {
	return nil
}

func TestRegistry_RegisterOrUpdate_Creates_Then_Merges(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connID := uuid.NewString()

	// When a connection identifies
	sess := registry.RegisterOrUpdate(connID, "u1", "Alice", "a.png", "blue")
	req.Equal("Alice", sess.Username)
	req.Equal("alice", sess.Normalized())

	// When it re-identifies with partial fields
	sess = registry.RegisterOrUpdate(connID, "", "", "", "red")

	// Then existing identity survives and only the new field changes
	req.Equal("Alice", sess.Username)
	req.Equal("u1", sess.UserID)
	req.Equal("red", sess.BubbleColor)
}

func TestRegistry_RegisterOrUpdate_Clears_Pending(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connID := uuid.NewString()
	registry.RegisterOrUpdate(connID, "", "alice", "", "")

	// Given a session inside its grace window
	_, ok := registry.MarkPending(connID)
	req.True(ok)

	// When the connection identifies again
	sess := registry.RegisterOrUpdate(connID, "", "alice", "", "")

	// Then it is live again
	req.False(sess.PendingDisconnect)
	req.Equal(1, registry.LiveCount("alice"))
}

func TestRegistry_Join_Reports_First_Per_User(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	scope := domain.ScopeID("lobby")
	conn1, conn2 := uuid.NewString(), uuid.NewString()
	registry.RegisterOrUpdate(conn1, "", "alice", "", "")
	registry.RegisterOrUpdate(conn2, "", "Alice", "", "")

	// When the user's first connection joins
	first, err := registry.Join(conn1, scope)
	req.NoError(err)
	req.True(first)

	// Then a second connection of the same user is not a first join
	first, err = registry.Join(conn2, scope)
	req.NoError(err)
	req.False(first)
}

func TestRegistry_Join_Unknown_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	_, err := registry.Join(uuid.NewString(), domain.ScopeID("lobby"))
	req.Error(err)
}

func TestRegistry_Leave_Reports_Last_Per_User(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	scope := domain.ScopeID("lobby")
	conn1, conn2 := uuid.NewString(), uuid.NewString()
	registry.RegisterOrUpdate(conn1, "", "alice", "", "")
	registry.RegisterOrUpdate(conn2, "", "alice", "", "")
	_, _ = registry.Join(conn1, scope)
	_, _ = registry.Join(conn2, scope)

	// When one of two connections leaves
	req.False(registry.Leave(conn1, scope))

	// Then the remaining one is the last
	req.True(registry.Leave(conn2, scope))
}

func TestRegistry_MembersOf_Distinct_And_Sorted(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	scope := domain.ScopeID("lobby")
	conn1, conn2, conn3 := uuid.NewString(), uuid.NewString(), uuid.NewString()
	registry.RegisterOrUpdate(conn1, "", "bob", "", "")
	registry.RegisterOrUpdate(conn2, "", "alice", "", "")
	registry.RegisterOrUpdate(conn3, "", "alice", "", "")
	_, _ = registry.Join(conn1, scope)
	_, _ = registry.Join(conn2, scope)
	_, _ = registry.Join(conn3, scope)

	// Then two connections of one user collapse to a single entry
	req.Equal([]string{"alice", "bob"}, registry.MembersOf(scope))
}

func TestRegistry_Deliveries_Skip_Pending(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	scope := domain.ScopeID("lobby")
	conn1, conn2 := uuid.NewString(), uuid.NewString()
	registry.RegisterOrUpdate(conn1, "", "alice", "", "")
	registry.RegisterOrUpdate(conn2, "", "bob", "", "")
	registry.AttachSink(conn1, Sink{})
	registry.AttachSink(conn2, Sink{})
	_, _ = registry.Join(conn1, scope)
	_, _ = registry.Join(conn2, scope)

	// Given one session inside its grace window
	_, ok := registry.MarkPending(conn1)
	req.True(ok)

	// Then it no longer receives scope deliveries
	deliveries := registry.ScopeDeliveries(scope)
	req.Len(deliveries, 1)
	req.Equal("bob", deliveries[0].Session.Username)

	// And it no longer counts as live
	req.Equal(0, registry.LiveCount("alice"))

	// But direct replies still reach it
	_, ok = registry.DeliveryFor(conn1)
	req.True(ok)
}

func TestRegistry_Remove_Cleans_Indexes(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	scope := domain.ScopeID("lobby")
	connID := uuid.NewString()
	registry.RegisterOrUpdate(connID, "", "alice", "", "")
	registry.AttachSink(connID, Sink{})
	_, _ = registry.Join(connID, scope)

	// When the session is removed
	sess, scopes := registry.Remove(connID)

	// Then it reports the scopes it was in and every index is clean
	req.NotNil(sess)
	req.Equal([]domain.ScopeID{scope}, scopes)
	req.Empty(registry.MembersOf(scope))
	req.Equal(0, registry.LiveCount("alice"))
	_, ok := registry.Session(connID)
	req.False(ok)
}

func TestRegistry_SeedDMThreads_Does_Not_Join_Transport(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connID := uuid.NewString()
	registry.RegisterOrUpdate(connID, "", "alice", "", "")
	registry.AttachSink(connID, Sink{})
	thread := domain.NewDMScope("alice", "bob")

	// When threads are seeded
	registry.SeedDMThreads(connID, []domain.ScopeID{thread, domain.ScopeID("not-a-dm")})

	// Then the session knows the thread but is not a transport member
	sess, _ := registry.Session(connID)
	req.True(sess.InScope(thread))
	req.False(sess.InScope(domain.ScopeID("not-a-dm")))
	req.Empty(registry.ScopeDeliveries(thread))
}

func TestRegistry_SetFilters_Snapshots_Into_Deliveries(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	scope := domain.ScopeID("lobby")
	connID := uuid.NewString()
	registry.RegisterOrUpdate(connID, "", "alice", "", "")
	registry.AttachSink(connID, Sink{})
	_, _ = registry.Join(connID, scope)

	// When the mute rules are replaced through the registry
	set := domain.FilterSet{scope: {"bob": 100}}
	registry.SetFilters(connID, set)

	// Then reads and delivery snapshots both observe the new set
	req.Equal(set, registry.FiltersOf(connID))
	deliveries := registry.ScopeDeliveries(scope)
	req.Len(deliveries, 1)
	req.Equal(set, deliveries[0].Filters)

	sess, ok := registry.Session(connID)
	req.True(ok)
	req.False(sess.FiltersFetchedAt.IsZero())
}

func TestRegistry_SetFilters_Unknown_Connection_Is_Noop(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.SetFilters("ghost", domain.FilterSet{"lobby": {"bob": 1}})

	req.Nil(registry.FiltersOf("ghost"))
}
