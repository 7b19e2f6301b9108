package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/filters"
	"chat-relay/runtime"
)

// DMService handles direct-message scopes. DMs reuse the group transport for
// members who joined the scope, and additionally push to each participant's
// other live sessions so an open conversation on one device surfaces on all.
type DMService struct {
	core
}

func NewDMService(log *slog.Logger, registry *runtime.Registry, presence *runtime.PresenceTracker,
	coordinator *runtime.Coordinator, backend contract.Backend, filterCache *filters.Cache,
	fanout *runtime.Fanout, cfg Config) *DMService {
	return &DMService{
		core: core{
			log:          log,
			registry:     registry,
			presence:     presence,
			coordinator:  coordinator,
			backend:      backend,
			filterCache:  filterCache,
			fanout:       fanout,
			historyCount: cfg.HistoryCount,
			pageLimit:    cfg.PageLimit,
		},
	}
}

// requireParticipant validates the scope and checks the requester is one of
// its two participants, returning the peer's username.
func (s *DMService) requireParticipant(scope domain.ScopeID, sess *domain.Session) (string, error) {
	if err := scope.ValidateDM(); err != nil {
		return "", err
	}
	a, b, err := scope.DMParticipants()
	if err != nil {
		return "", err
	}
	switch sess.Normalized() {
	case a:
		return b, nil
	case b:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %s is not part of %s", errors.ErrNotParticipant, sess.Username, scope)
	}
}

// Join attaches the connection to the DM's transport group and replies with a
// filtered history snapshot. DM joins never produce system notices.
func (s *DMService) Join(ctx context.Context, connectionID string, p event.JoinPayload) error {
	sess, err := s.requireSession(connectionID)
	if err != nil {
		return err
	}
	peer, err := s.requireParticipant(p.Scope, sess)
	if err != nil {
		return err
	}
	first, err := s.registry.Join(connectionID, p.Scope)
	if err != nil {
		return err
	}
	s.coordinator.MarkActive(sess.Username)

	set := s.filterCache.Refresh(ctx, sess)
	history := s.backend.LatestMessages(ctx, p.Scope, s.historyCount, nil)

	sess, ok := s.revalidate(connectionID)
	if !ok {
		return nil
	}
	online := make([]string, 0, 2)
	for _, name := range []string{sess.Username, peer} {
		if s.presence.IsOnline(name) {
			online = append(online, name)
		}
	}
	s.fanout.ToConnection(connectionID, event.Joined, event.JoinedPayload{
		Scope:    p.Scope,
		Members:  s.registry.MembersOf(p.Scope),
		Online:   online,
		Messages: filters.ApplyToHistory(history, set, p.Scope),
	})
	if first {
		s.fanout.ToScopeExcept(p.Scope, connectionID, event.MemberJoined,
			event.MemberPayload{Scope: p.Scope, Username: sess.Username})
	}
	return nil
}

// Leave detaches the connection from the DM's transport group. The thread
// itself stays on the session; only delivery routing changes.
func (s *DMService) Leave(_ context.Context, connectionID string, p event.LeavePayload) error {
	sess, err := s.requireSession(connectionID)
	if err != nil {
		return err
	}
	if _, err := s.requireParticipant(p.Scope, sess); err != nil {
		return err
	}
	if s.registry.Leave(connectionID, p.Scope) {
		s.fanout.ToScope(p.Scope, event.MemberLeft,
			event.MemberPayload{Scope: p.Scope, Username: sess.Username})
	}
	return nil
}

// Send persists the message and relays it twice over: to the transport group
// like any scope, and directly to both participants' live sessions that have
// not joined the scope, so the conversation reaches every device.
func (s *DMService) Send(ctx context.Context, connectionID string, p event.SendPayload) error {
	sess, err := s.requireSession(connectionID)
	if err != nil {
		return err
	}
	peer, err := s.requireParticipant(p.Scope, sess)
	if err != nil {
		return err
	}
	msg, err := buildMessage(sess, p.Text, p.Media, p.Audio)
	if err != nil {
		return err
	}
	if p.ReplyTo != nil {
		msg.ReplyTo = s.resolveReply(ctx, p.Scope, p.ReplyTo.Ref())
	}
	persisted, err := s.backend.PostMessage(ctx, p.Scope, msg)
	if err != nil {
		return err
	}
	s.coordinator.MarkActive(sess.Username)

	sender := sess.Normalized()
	build := func(viewer *domain.Session) any {
		out := event.MessagePayload{Scope: p.Scope, DMID: p.Scope, Message: persisted}
		if viewer.Normalized() == sender {
			out.LocalID = p.LocalID
		}
		return out
	}
	delivered := make(map[string]struct{})
	for _, d := range s.registry.ScopeDeliveries(p.Scope) {
		delivered[d.Session.ConnectionID] = struct{}{}
	}
	s.fanout.ToScopeFiltered(p.Scope, event.DMMessage, persisted.Username, persisted.Timestamp, build)

	// Off-scope push: each participant session outside the transport group
	// still gets the message, under the same mute rules. A seeded thread is
	// not a transport join, so membership is checked on delivery, not the
	// session's thread set.
	targets := []string{sender}
	if peer != sender {
		targets = append(targets, peer)
	}
	for _, username := range targets {
		for _, d := range s.registry.UserDeliveries(username) {
			if _, ok := delivered[d.Session.ConnectionID]; ok {
				continue
			}
			if !filters.Allows(d.Filters, p.Scope, persisted.Username, persisted.Timestamp) {
				continue
			}
			s.fanout.ToConnection(d.Session.ConnectionID, event.DMMessage, build(d.Session))
		}
	}
	return nil
}

// Edit rewrites an owned message and relays the mutation under the same
// addressing mode the requester used.
func (s *DMService) Edit(ctx context.Context, connectionID string, p event.EditPayload) error {
	sess, err := s.requireSession(connectionID)
	if err != nil {
		return err
	}
	if _, err := s.requireParticipant(p.Scope, sess); err != nil {
		return err
	}
	target, byID, err := s.resolveOwned(ctx, p.Scope, p.Ref(), sess)
	if err != nil {
		return err
	}
	if err := s.backend.EditMessage(ctx, p.Scope, target.ID, p.Text); err != nil {
		return err
	}
	editedAt := time.Now().UnixMilli()
	s.fanout.ToScopeFiltered(p.Scope, event.MessageEdited, target.Username, target.Timestamp,
		func(*domain.Session) any {
			return event.MutationPayload{
				Scope:      p.Scope,
				MessageRef: domain.RefTo(target, byID),
				Text:       p.Text,
				EditedAt:   editedAt,
			}
		})
	return nil
}

// Delete removes an owned message from the thread. The removal notice goes to
// both participants unfiltered; there is nothing left to mute.
func (s *DMService) Delete(ctx context.Context, connectionID string, p event.DeletePayload) error {
	sess, err := s.requireSession(connectionID)
	if err != nil {
		return err
	}
	if _, err := s.requireParticipant(p.Scope, sess); err != nil {
		return err
	}
	target, byID, err := s.resolveOwned(ctx, p.Scope, p.Ref(), sess)
	if err != nil {
		return err
	}
	if err := s.backend.DeleteMessage(ctx, p.Scope, target.ID); err != nil {
		return err
	}
	s.fanout.ToScope(p.Scope, event.MessageDeleted, event.MutationPayload{
		Scope:      p.Scope,
		MessageRef: domain.RefTo(target, byID),
	})
	return nil
}

// React toggles the requester's reaction and relays the authoritative map.
func (s *DMService) React(ctx context.Context, connectionID string, p event.ReactPayload) error {
	sess, err := s.requireSession(connectionID)
	if err != nil {
		return err
	}
	if _, err := s.requireParticipant(p.Scope, sess); err != nil {
		return err
	}
	target, err := s.resolveTarget(ctx, p.Scope, p.Ref())
	if err != nil {
		return err
	}
	if target.ID == "" {
		return fmt.Errorf("%w: target has no durable id", errors.ErrNotFound)
	}
	reactions, err := s.backend.React(ctx, p.Scope, target.ID, sess.UserID, sess.Username, p.Emoji)
	if err != nil {
		return err
	}
	byID := p.Ref().ByID()
	s.fanout.ToScopeFiltered(p.Scope, event.MessageReactions, target.Username, target.Timestamp,
		func(*domain.Session) any {
			return event.ReactionsPayload{
				Scope:      p.Scope,
				MessageRef: domain.RefTo(target, byID),
				Reactions:  reactions,
				Summary:    domain.SummarizeReactions(reactions),
			}
		})
	return nil
}

func (s *DMService) resolveOwned(ctx context.Context, scope domain.ScopeID,
	ref domain.MessageRef, sess *domain.Session) (domain.Message, bool, error) {
	target, err := s.resolveTarget(ctx, scope, ref)
	if err != nil {
		return domain.Message{}, false, err
	}
	if err := authorizeMutation(target, sess); err != nil {
		return domain.Message{}, false, err
	}
	if target.ID == "" {
		return domain.Message{}, false, fmt.Errorf("%w: target has no durable id", errors.ErrNotFound)
	}
	return target, ref.ByID(), nil
}
