package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-relay/domain"
	"chat-relay/filters"
	"chat-relay/mocks"
	"chat-relay/runtime"
	"chat-relay/services"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *mocks.MockBackend) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	backend := mocks.NewMockBackend(ctrl)
	backend.EXPECT().DMThreads(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	log := slog.Default()
	registry := runtime.NewRegistry()
	presence := runtime.NewPresenceTracker()
	fanout := runtime.NewFanout(log, registry)
	aggregator := runtime.NewAggregator(log, backend, time.Second, time.Second,
		func(scope domain.ScopeID, name string, payload any) {
			fanout.ToScope(scope, name, payload)
		})
	coordinator := runtime.NewCoordinator(log, registry, presence, fanout, aggregator,
		backend, time.Second)
	t.Cleanup(coordinator.Teardown)

	filterCache := filters.NewCache(log, backend, registry)
	cfg := services.Config{
		HistoryCount:           50,
		PageLimit:              200,
		TypingMinInterval:      300 * time.Millisecond,
		TypingMaxTTL:           15 * time.Second,
		MembershipWriteTimeout: time.Second,
	}
	group := services.NewGroupService(log, registry, presence, coordinator, backend,
		filterCache, fanout, aggregator, cfg)
	dm := services.NewDMService(log, registry, presence, coordinator, backend,
		filterCache, fanout, cfg)
	relationship := services.NewRelationshipService(log, registry, backend, fanout)
	return NewDispatcher(log, coordinator, group, dm, relationship), backend
}

// drain decodes every frame buffered on the client's send channel.
func drain(t *testing.T, c *Client) []outboundFrame {
	t.Helper()
	var out []outboundFrame
	for {
		select {
		case raw := <-c.send:
			var f outboundFrame
			require.NoError(t, json.Unmarshal(raw, &f))
			out = append(out, f)
		default:
			return out
		}
	}
}

type outboundFrame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func errorCode(t *testing.T, f outboundFrame) string {
	t.Helper()
	var p struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(f.Payload, &p))
	return p.Code
}

func TestDispatcher_Malformed_Frame(t *testing.T) {
	req := require.New(t)
	dispatcher, _ := newTestDispatcher(t)
	client := NewClient(slog.Default(), nil, 16)

	dispatcher.Handle(context.Background(), client, []byte("{not json"))

	frames := drain(t, client)
	req.Len(frames, 1)
	req.Equal("error", frames[0].Event)
	req.Equal("invalid-payload", errorCode(t, frames[0]))
}

func TestDispatcher_Unknown_Event(t *testing.T) {
	req := require.New(t)
	dispatcher, _ := newTestDispatcher(t)
	client := NewClient(slog.Default(), nil, 16)

	dispatcher.Handle(context.Background(), client, []byte(`{"event":"bogus"}`))

	frames := drain(t, client)
	req.Len(frames, 1)
	req.Equal("invalid-payload", errorCode(t, frames[0]))
}

func TestDispatcher_Send_Without_Identify(t *testing.T) {
	req := require.New(t)
	dispatcher, _ := newTestDispatcher(t)
	client := NewClient(slog.Default(), nil, 16)

	dispatcher.Handle(context.Background(), client,
		[]byte(`{"event":"message:send","payload":{"scope":"lobby","text":"hi","localId":"L1"}}`))

	frames := drain(t, client)
	req.Len(frames, 1)
	req.Equal("error", frames[0].Event)
	req.Equal("not-authenticated", errorCode(t, frames[0]))

	// The error echoes the local id so the client can drop its optimistic row
	var p struct {
		LocalID string `json:"localId"`
		Op      string `json:"op"`
	}
	req.NoError(json.Unmarshal(frames[0].Payload, &p))
	req.Equal("L1", p.LocalID)
	req.Equal("message:send", p.Op)
}

func TestDispatcher_Ping_Pong(t *testing.T) {
	req := require.New(t)
	dispatcher, _ := newTestDispatcher(t)
	client := NewClient(slog.Default(), nil, 16)

	dispatcher.Handle(context.Background(), client, []byte(`{"event":"ping"}`))

	frames := drain(t, client)
	req.Len(frames, 1)
	req.Equal("pong", frames[0].Event)
}

func TestDispatcher_Routes_DM_Scope_To_DM_Handler(t *testing.T) {
	req := require.New(t)
	dispatcher, _ := newTestDispatcher(t)
	client := NewClient(slog.Default(), nil, 16)

	dispatcher.Handle(context.Background(), client,
		[]byte(`{"event":"identify","payload":{"username":"carol"}}`))
	drain(t, client)

	// Joining someone else's thread fails in the DM handler, not the group one
	dispatcher.Handle(context.Background(), client,
		[]byte(`{"event":"join","payload":{"scope":"dm:alice|bob"}}`))

	frames := drain(t, client)
	req.Len(frames, 1)
	req.Equal("not-a-participant", errorCode(t, frames[0]))
}

func TestDispatcher_Identify_Then_Join_Group(t *testing.T) {
	req := require.New(t)
	dispatcher, backend := newTestDispatcher(t)
	client := NewClient(slog.Default(), nil, 16)

	backend.EXPECT().
		MessageFilters(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil)
	backend.EXPECT().
		LatestMessages(gomock.Any(), domain.ScopeID("lobby"), 50, gomock.Any()).
		Return([]domain.Message{{ID: "m1", Username: "bob", Timestamp: 42}})
	backend.EXPECT().
		AddGroupMember(gomock.Any(), domain.ScopeID("lobby"), "alice").
		Return(nil).
		AnyTimes()

	dispatcher.Handle(context.Background(), client,
		[]byte(`{"event":"identify","payload":{"username":"alice"}}`))
	dispatcher.Handle(context.Background(), client,
		[]byte(`{"event":"join","payload":{"scope":"lobby"}}`))

	frames := drain(t, client)
	var names []string
	for _, f := range frames {
		names = append(names, f.Event)
	}
	req.Contains(names, "presence:online")
	req.Contains(names, "joined")
	req.Contains(names, "filters:snapshot")
	req.NotContains(names, "error")
}
