package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/runtime"
	"chat-relay/services"
)

// Dispatcher decodes inbound frames, validates payloads, and routes each
// event to its handler. Scoped operations route on the scope prefix: "dm:"
// scopes go to the DM handler, everything else is a group. Failures never
// close the connection; they come back as a scoped error event.
type Dispatcher struct {
	log          *slog.Logger
	coordinator  *runtime.Coordinator
	group        *services.GroupService
	dm           *services.DMService
	relationship *services.RelationshipService
}

func NewDispatcher(log *slog.Logger, coordinator *runtime.Coordinator, group *services.GroupService,
	dm *services.DMService, relationship *services.RelationshipService) *Dispatcher {
	return &Dispatcher{
		log:          log,
		coordinator:  coordinator,
		group:        group,
		dm:           dm,
		relationship: relationship,
	}
}

func decode[T any](raw json.RawMessage) (T, error) {
	var p T
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return p, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
		}
	}
	if err := event.Validate(p); err != nil {
		return p, err
	}
	return p, nil
}

// Handle processes one inbound frame from a connection.
func (d *Dispatcher) Handle(ctx context.Context, c *Client, raw []byte) {
	var frame envelope
	if err := json.Unmarshal(raw, &frame); err != nil {
		d.fail(c, "", event.ErrorPayload{}, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err))
		return
	}

	switch frame.Event {
	case event.Identify:
		p, err := decode[event.IdentifyPayload](frame.Payload)
		if err != nil {
			d.fail(c, frame.Event, event.ErrorPayload{}, err)
			return
		}
		sess := d.coordinator.Identify(ctx, c.ConnectionID(), c, p)
		d.log.Info("Connection identified", "connection", c.ConnectionID(), "username", sess.Username)

	case event.Join:
		p, err := decode[event.JoinPayload](frame.Payload)
		if err != nil {
			d.fail(c, frame.Event, event.ErrorPayload{}, err)
			return
		}
		if p.Scope.IsDM() {
			err = d.dm.Join(ctx, c.ConnectionID(), p)
		} else {
			err = d.group.Join(ctx, c.ConnectionID(), p)
		}
		d.fail(c, frame.Event, event.ErrorPayload{Scope: p.Scope}, err)

	case event.Leave:
		p, err := decode[event.LeavePayload](frame.Payload)
		if err != nil {
			d.fail(c, frame.Event, event.ErrorPayload{}, err)
			return
		}
		if p.Scope.IsDM() {
			err = d.dm.Leave(ctx, c.ConnectionID(), p)
		} else {
			err = d.group.Leave(ctx, c.ConnectionID(), p)
		}
		d.fail(c, frame.Event, event.ErrorPayload{Scope: p.Scope}, err)

	case event.MessageSend:
		p, err := decode[event.SendPayload](frame.Payload)
		if err != nil {
			d.fail(c, frame.Event, event.ErrorPayload{}, err)
			return
		}
		if p.Scope.IsDM() {
			err = d.dm.Send(ctx, c.ConnectionID(), p)
		} else {
			err = d.group.Send(ctx, c.ConnectionID(), p)
		}
		d.fail(c, frame.Event, event.ErrorPayload{Scope: p.Scope, LocalID: p.LocalID}, err)

	case event.MessageEdit:
		p, err := decode[event.EditPayload](frame.Payload)
		if err != nil {
			d.fail(c, frame.Event, event.ErrorPayload{}, err)
			return
		}
		if p.Scope.IsDM() {
			err = d.dm.Edit(ctx, c.ConnectionID(), p)
		} else {
			err = d.group.Edit(ctx, c.ConnectionID(), p)
		}
		d.fail(c, frame.Event, targetError(p.Scope, p.Ref()), err)

	case event.MessageDelete:
		p, err := decode[event.DeletePayload](frame.Payload)
		if err != nil {
			d.fail(c, frame.Event, event.ErrorPayload{}, err)
			return
		}
		if p.Scope.IsDM() {
			err = d.dm.Delete(ctx, c.ConnectionID(), p)
		} else {
			err = d.group.Delete(ctx, c.ConnectionID(), p)
		}
		d.fail(c, frame.Event, targetError(p.Scope, p.Ref()), err)

	case event.MessageReact:
		p, err := decode[event.ReactPayload](frame.Payload)
		if err != nil {
			d.fail(c, frame.Event, event.ErrorPayload{}, err)
			return
		}
		if p.Scope.IsDM() {
			err = d.dm.React(ctx, c.ConnectionID(), p)
		} else {
			err = d.group.React(ctx, c.ConnectionID(), p)
		}
		d.fail(c, frame.Event, targetError(p.Scope, p.Ref()), err)

	case event.Typing:
		p, err := decode[event.TypingPayload](frame.Payload)
		if err != nil {
			d.fail(c, frame.Event, event.ErrorPayload{}, err)
			return
		}
		d.fail(c, frame.Event, event.ErrorPayload{Scope: p.Scope},
			d.group.Typing(ctx, c.ConnectionID(), p))

	case event.Ping:
		d.coordinator.Touch(c.ConnectionID())
		d.reply(c, event.Pong, nil)

	case event.Like:
		p, err := decode[event.LikePayload](frame.Payload)
		if err != nil {
			d.fail(c, frame.Event, event.ErrorPayload{}, err)
			return
		}
		d.fail(c, frame.Event, event.ErrorPayload{},
			d.relationship.Like(ctx, c.ConnectionID(), p))

	case event.Unlike:
		p, err := decode[event.LikePayload](frame.Payload)
		if err != nil {
			d.fail(c, frame.Event, event.ErrorPayload{}, err)
			return
		}
		d.fail(c, frame.Event, event.ErrorPayload{},
			d.relationship.Unlike(ctx, c.ConnectionID(), p))

	case event.ProfileUpdate:
		d.fail(c, frame.Event, event.ErrorPayload{},
			d.relationship.ProfileUpdated(ctx, c.ConnectionID()))

	default:
		d.fail(c, frame.Event, event.ErrorPayload{},
			fmt.Errorf("%w: unknown event %q", errors.ErrInvalidPayload, frame.Event))
	}
}

func targetError(scope domain.ScopeID, ref domain.MessageRef) event.ErrorPayload {
	return event.ErrorPayload{Scope: scope, Target: &ref}
}

// fail delivers a scoped error event back to the requesting connection only.
// The base payload pre-fills scope, target, and localId so the client can
// clear its optimistic state.
func (d *Dispatcher) fail(c *Client, op string, base event.ErrorPayload, err error) {
	if err == nil {
		return
	}
	base.Op = op
	base.Code = errors.CodeOf(err)
	base.Message = err.Error()
	d.log.Info("Operation failed", "op", op, "code", base.Code, "connection", c.ConnectionID(), "error", err)
	d.reply(c, event.Error, base)
}

func (d *Dispatcher) reply(c *Client, name string, payload any) {
	if err := c.Consume(context.Background(), contract.Outbound{Event: name, Payload: payload}); err != nil {
		d.log.Warn("Reply delivery failed", "event", name, "error", err)
	}
}
