package services

import (
	"context"
	"log/slog"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/runtime"
)

// RelationshipService handles likes and profile refreshes. Both are
// persist-then-notify: the backend write is authoritative, the push is a hint
// enriched with a freshly fetched profile so receivers never render stale or
// caller-supplied data.
type RelationshipService struct {
	log      *slog.Logger
	registry *runtime.Registry
	backend  contract.Backend
	fanout   *runtime.Fanout
}

func NewRelationshipService(log *slog.Logger, registry *runtime.Registry,
	backend contract.Backend, fanout *runtime.Fanout) *RelationshipService {
	return &RelationshipService{log: log, registry: registry, backend: backend, fanout: fanout}
}

func (s *RelationshipService) requireSession(connectionID string) (*domain.Session, error) {
	return sessionFor(s.registry, connectionID)
}

// fetchProfile pulls one canonical profile summary, degrading to a bare
// username card when the lookup fails or comes back empty.
func (s *RelationshipService) fetchProfile(ctx context.Context, username string) domain.ProfileSummary {
	norm := domain.NormalizeUsername(username)
	profiles, err := s.backend.ProfilesBatch(ctx, []string{norm})
	if err != nil {
		s.log.Warn("Profile fetch failed, degrading to bare card", "username", username, "error", err)
		return domain.BareProfile(username)
	}
	if p, ok := profiles[norm]; ok {
		return p
	}
	return domain.BareProfile(username)
}

// Like persists the like, then notifies every live session of the target with
// the liker's profile attached.
func (s *RelationshipService) Like(ctx context.Context, connectionID string, p event.LikePayload) error {
	sess, err := s.requireSession(connectionID)
	if err != nil {
		return err
	}
	if err := s.backend.Like(ctx, sess.Normalized(), domain.NormalizeUsername(p.Target)); err != nil {
		return err
	}
	s.fanout.ToUser(p.Target, event.LikeReceived, event.RelationshipPayload{
		From:    sess.Username,
		Profile: s.fetchProfile(ctx, sess.Username),
	})
	return nil
}

// Unlike removes the like and notifies the target's live sessions.
func (s *RelationshipService) Unlike(ctx context.Context, connectionID string, p event.LikePayload) error {
	sess, err := s.requireSession(connectionID)
	if err != nil {
		return err
	}
	if err := s.backend.Unlike(ctx, sess.Normalized(), domain.NormalizeUsername(p.Target)); err != nil {
		return err
	}
	s.fanout.ToUser(p.Target, event.LikeRemoved, event.RelationshipPayload{
		From:    sess.Username,
		Profile: s.fetchProfile(ctx, sess.Username),
	})
	return nil
}

// ProfileUpdated re-fetches the requester's canonical profile and broadcasts
// it. The inbound event carries no body on purpose; if the canonical fetch
// fails there is nothing trustworthy to spread and the operation errors out.
func (s *RelationshipService) ProfileUpdated(ctx context.Context, connectionID string) error {
	sess, err := s.requireSession(connectionID)
	if err != nil {
		return err
	}
	norm := sess.Normalized()
	profiles, err := s.backend.ProfilesBatch(ctx, []string{norm})
	if err != nil {
		return err
	}
	profile, ok := profiles[norm]
	if !ok {
		profile = domain.BareProfile(sess.Username)
	}
	s.fanout.ToAll(event.ProfileUpdated, event.ProfileUpdatedPayload{
		Username: sess.Username,
		Profile:  profile,
	})
	return nil
}
