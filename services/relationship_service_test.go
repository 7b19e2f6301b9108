package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
)

func TestRelationshipService_Like_Notifies_Target_With_Profile(t *testing.T) {
	req := require.New(t)
	fx := newFixture(t)

	aliceConn, _ := fx.connect("alice", "u-alice")
	_, bobSink := fx.connect("bob", "u-bob")

	fx.backend.EXPECT().Like(gomock.Any(), "alice", "bob").Return(nil)
	fx.backend.EXPECT().
		ProfilesBatch(gomock.Any(), []string{"alice"}).
		Return(map[string]domain.ProfileSummary{
			"alice": {Username: "alice", Avatar: "a.png", Age: 30},
		}, nil)

	err := fx.relationship.Like(context.Background(), aliceConn, event.LikePayload{Target: "Bob"})
	req.NoError(err)

	notification := bobSink.one(t, event.LikeReceived).Payload.(event.RelationshipPayload)
	req.Equal("alice", notification.From)
	req.Equal("a.png", notification.Profile.Avatar)
}

func TestRelationshipService_Like_Degrades_To_Bare_Profile(t *testing.T) {
	req := require.New(t)
	fx := newFixture(t)

	aliceConn, _ := fx.connect("alice", "")
	_, bobSink := fx.connect("bob", "")

	fx.backend.EXPECT().Like(gomock.Any(), "alice", "bob").Return(nil)
	fx.backend.EXPECT().
		ProfilesBatch(gomock.Any(), gomock.Any()).
		Return(nil, errors.ErrServer)

	// When the profile fetch fails, the notification still goes out
	err := fx.relationship.Like(context.Background(), aliceConn, event.LikePayload{Target: "bob"})
	req.NoError(err)

	notification := bobSink.one(t, event.LikeReceived).Payload.(event.RelationshipPayload)
	req.Equal(domain.BareProfile("alice"), notification.Profile)
}

func TestRelationshipService_Like_Persistence_Failure_Suppresses_Push(t *testing.T) {
	req := require.New(t)
	fx := newFixture(t)

	aliceConn, _ := fx.connect("alice", "")
	_, bobSink := fx.connect("bob", "")

	fx.backend.EXPECT().Like(gomock.Any(), "alice", "bob").Return(errors.ErrServer)

	err := fx.relationship.Like(context.Background(), aliceConn, event.LikePayload{Target: "bob"})

	req.ErrorIs(err, errors.ErrServer)
	req.Empty(bobSink.byName(event.LikeReceived))
}

func TestRelationshipService_Unlike_Notifies_Target(t *testing.T) {
	req := require.New(t)
	fx := newFixture(t)

	aliceConn, _ := fx.connect("alice", "")
	_, bobSink := fx.connect("bob", "")

	fx.backend.EXPECT().Unlike(gomock.Any(), "alice", "bob").Return(nil)
	fx.backend.EXPECT().
		ProfilesBatch(gomock.Any(), gomock.Any()).
		Return(map[string]domain.ProfileSummary{"alice": {Username: "alice"}}, nil)

	err := fx.relationship.Unlike(context.Background(), aliceConn, event.LikePayload{Target: "bob"})
	req.NoError(err)

	req.Len(bobSink.byName(event.LikeRemoved), 1)
}

func TestRelationshipService_ProfileUpdated_Broadcasts_Canonical_Profile(t *testing.T) {
	req := require.New(t)
	fx := newFixture(t)

	aliceConn, aliceSink := fx.connect("alice", "u-alice")
	_, bobSink := fx.connect("bob", "")

	// The relay never trusts a client body; it re-fetches before fan-out
	fx.backend.EXPECT().
		ProfilesBatch(gomock.Any(), []string{"alice"}).
		Return(map[string]domain.ProfileSummary{
			"alice": {Username: "alice", Bio: "fresh from the backend"},
		}, nil)

	err := fx.relationship.ProfileUpdated(context.Background(), aliceConn)
	req.NoError(err)

	// Everyone connected sees the canonical profile, the requester included
	for _, sink := range []*captureSink{aliceSink, bobSink} {
		updated := sink.one(t, event.ProfileUpdated).Payload.(event.ProfileUpdatedPayload)
		req.Equal("alice", updated.Username)
		req.Equal("fresh from the backend", updated.Profile.Bio)
	}
}

func TestRelationshipService_ProfileUpdated_Fails_Without_Canonical_Fetch(t *testing.T) {
	req := require.New(t)
	fx := newFixture(t)

	aliceConn, _ := fx.connect("alice", "")
	_, bobSink := fx.connect("bob", "")

	fx.backend.EXPECT().
		ProfilesBatch(gomock.Any(), gomock.Any()).
		Return(nil, errors.ErrServer)

	err := fx.relationship.ProfileUpdated(context.Background(), aliceConn)

	req.ErrorIs(err, errors.ErrServer)
	req.Empty(bobSink.byName(event.ProfileUpdated))
}

func TestRelationshipService_Requires_Identity(t *testing.T) {
	req := require.New(t)
	fx := newFixture(t)

	err := fx.relationship.Like(context.Background(), "ghost", event.LikePayload{Target: "bob"})
	req.ErrorIs(err, errors.ErrNotAuthenticated)
}
