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

// Config carries the tunables shared by the channel handlers.
type Config struct {
	HistoryCount           int
	PageLimit              int
	TypingMinInterval      time.Duration
	TypingMaxTTL           time.Duration
	MembershipWriteTimeout time.Duration
}

// GroupService handles every operation on group scopes: join, leave, send,
// edit, delete, react, and typing.
type GroupService struct {
	core
	aggregator   *runtime.Aggregator
	typing       *typingGate
	typingMaxTTL time.Duration
	writeTimeout time.Duration
}

func NewGroupService(log *slog.Logger, registry *runtime.Registry, presence *runtime.PresenceTracker,
	coordinator *runtime.Coordinator, backend contract.Backend, filterCache *filters.Cache,
	fanout *runtime.Fanout, aggregator *runtime.Aggregator, cfg Config) *GroupService {
	return &GroupService{
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
		aggregator:   aggregator,
		typing:       newTypingGate(cfg.TypingMinInterval),
		typingMaxTTL: cfg.TypingMaxTTL,
		writeTimeout: cfg.MembershipWriteTimeout,
	}
}

// Join registers the connection in the scope, replies with a filtered history
// snapshot, and announces the member when this is the user's first live
// connection inside the scope.
func (s *GroupService) Join(ctx context.Context, connectionID string, p event.JoinPayload) error {
	sess, err := s.requireSession(connectionID)
	if err != nil {
		return err
	}
	if err := p.Scope.ValidateGroup(); err != nil {
		return err
	}
	first, err := s.registry.Join(connectionID, p.Scope)
	if err != nil {
		return err
	}
	s.coordinator.MarkActive(sess.Username)

	// Mute rules are re-synced before the history snapshot so a rule created
	// from another device applies immediately.
	set := s.filterCache.Refresh(ctx, sess)
	history := s.backend.LatestMessages(ctx, p.Scope, s.historyCount, nil)

	sess, ok := s.revalidate(connectionID)
	if !ok {
		return nil
	}
	members := s.registry.MembersOf(p.Scope)
	online := make([]string, 0, len(members))
	for _, m := range members {
		if s.presence.IsOnline(m) {
			online = append(online, m)
		}
	}
	s.fanout.ToConnection(connectionID, event.Joined, event.JoinedPayload{
		Scope:    p.Scope,
		Members:  members,
		Online:   online,
		Messages: filters.ApplyToHistory(history, set, p.Scope),
	})
	s.fanout.ToConnection(connectionID, event.FiltersSnapshot, event.FiltersSnapshotPayload{
		FetchedAt: sess.FiltersFetchedAt.UnixMilli(),
		Filters:   set,
	})

	if first {
		s.fanout.ToScopeExcept(p.Scope, connectionID, event.MemberJoined,
			event.MemberPayload{Scope: p.Scope, Username: sess.Username})
		s.aggregator.Observe(p.Scope, runtime.KindJoin, sess.Username)
		s.persistMembership(p.Scope, sess.Normalized(), true)
	}
	return nil
}

// Leave detaches the connection from the scope. Only the user's last
// connection in the scope announces the departure.
func (s *GroupService) Leave(ctx context.Context, connectionID string, p event.LeavePayload) error {
	sess, err := s.requireSession(connectionID)
	if err != nil {
		return err
	}
	if err := p.Scope.ValidateGroup(); err != nil {
		return err
	}
	last := s.registry.Leave(connectionID, p.Scope)
	if last {
		s.fanout.ToScope(p.Scope, event.MemberLeft,
			event.MemberPayload{Scope: p.Scope, Username: sess.Username})
		s.aggregator.Observe(p.Scope, runtime.KindLeave, sess.Username)
		s.persistMembership(p.Scope, sess.Normalized(), false)
	}
	return nil
}

// persistMembership mirrors the live membership change to the backend in the
// background. The join/leave itself already succeeded; a persistence failure
// only loses roster durability, so it is logged and absorbed.
func (s *GroupService) persistMembership(scope domain.ScopeID, username string, joined bool) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
		defer cancel()
		var err error
		if joined {
			err = s.backend.AddGroupMember(ctx, scope, username)
		} else {
			err = s.backend.RemoveGroupMember(ctx, scope, username)
		}
		if err != nil {
			s.log.Warn("Membership persistence failed", "scope", scope,
				"username", username, "joined", joined, "error", err)
		}
	}()
}

// Send persists the message, then relays it to scope members who do not mute
// the author. The sender's own sessions get the payload with localId intact.
func (s *GroupService) Send(ctx context.Context, connectionID string, p event.SendPayload) error {
	sess, err := s.requireSession(connectionID)
	if err != nil {
		return err
	}
	if err := p.Scope.ValidateGroup(); err != nil {
		return err
	}
	if !sess.InScope(p.Scope) {
		return fmt.Errorf("%w: %s has not joined %s", errors.ErrNotParticipant, sess.Username, p.Scope)
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
	if _, ok := s.revalidate(connectionID); !ok {
		// Sender vanished mid-write; the message is durable, still relay it.
		s.log.Info("Sender disconnected during persistence", "scope", p.Scope, "username", msg.Username)
	}
	s.coordinator.MarkActive(sess.Username)

	sender := sess.Normalized()
	s.fanout.ToScopeFiltered(p.Scope, event.Message, persisted.Username, persisted.Timestamp,
		func(viewer *domain.Session) any {
			out := event.MessagePayload{Scope: p.Scope, Message: persisted}
			if viewer.Normalized() == sender {
				out.LocalID = p.LocalID
			}
			return out
		})
	return nil
}

// Edit rewrites a message the requester owns and relays the mutation with the
// same addressing mode the requester used.
func (s *GroupService) Edit(ctx context.Context, connectionID string, p event.EditPayload) error {
	sess, err := s.requireSession(connectionID)
	if err != nil {
		return err
	}
	if err := p.Scope.ValidateGroup(); err != nil {
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

// Delete removes a message the requester owns. The removal notice goes to the
// whole scope; there is nothing left to mute.
func (s *GroupService) Delete(ctx context.Context, connectionID string, p event.DeletePayload) error {
	sess, err := s.requireSession(connectionID)
	if err != nil {
		return err
	}
	if err := p.Scope.ValidateGroup(); err != nil {
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

// resolveOwned resolves a mutation target and checks ownership. A target
// without a durable id cannot be addressed on the persistence tier, so it
// reads as not found.
func (s *GroupService) resolveOwned(ctx context.Context, scope domain.ScopeID,
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

// React toggles the requester's reaction server-side and relays the complete
// authoritative reaction map. Reacting to a deleted message resolves to not
// found; the toggle only ever touches the requester's own entry.
func (s *GroupService) React(ctx context.Context, connectionID string, p event.ReactPayload) error {
	sess, err := s.requireSession(connectionID)
	if err != nil {
		return err
	}
	if err := p.Scope.ValidateGroup(); err != nil {
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

// Typing relays typing state to everyone else in the scope. "Started" events
// are rate-limited per (scope, user) and silently dropped when too frequent;
// "stopped" always passes. The TTL is capped so a lost stop event cannot pin
// the indicator.
func (s *GroupService) Typing(_ context.Context, connectionID string, p event.TypingPayload) error {
	sess, err := s.requireSession(connectionID)
	if err != nil {
		return err
	}
	if err := p.Scope.Validate(); err != nil {
		return err
	}
	if !sess.InScope(p.Scope) {
		return fmt.Errorf("%w: %s has not joined %s", errors.ErrNotParticipant, sess.Username, p.Scope)
	}
	if p.Active && !s.typing.Allow(p.Scope, sess.Username) {
		return nil
	}
	ttl := p.TTLMs
	if max := s.typingMaxTTL.Milliseconds(); ttl <= 0 || ttl > max {
		ttl = max
	}
	s.fanout.ToScopeExcept(p.Scope, connectionID, event.TypingUpdate, event.TypingUpdatePayload{
		Scope:    p.Scope,
		Username: sess.Username,
		Active:   p.Active,
		TTLMs:    ttl,
	})
	return nil
}
