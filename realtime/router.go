package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"duochat/contract"
	"duochat/domain/event"
	"duochat/moderation"
)

// Router decodes inbound client events and dispatches them to the correct
// handler. Unrecognized event types are ignored, not rejected: the
// protocol is expected to grow. Malformed payloads are dropped per-event
// and never close the session.
type Router struct {
	bridge      contract.Bridge
	broadcaster *Broadcaster
	moderator   *moderation.Moderator
	log         *slog.Logger
}

func NewRouter(bridge contract.Bridge, broadcaster *Broadcaster, moderator *moderation.Moderator, log *slog.Logger) *Router {
	return &Router{
		bridge:      bridge,
		broadcaster: broadcaster,
		moderator:   moderator,
		log:         log.With(slog.String("component", "event_router")),
	}
}

// HandleInbound is invoked by the session read pump for every frame.
func (r *Router) HandleInbound(ctx context.Context, s *Session, raw []byte) {
	var evt inboundEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		r.log.Debug("dropping undecodable payload", "sessionID", s.Key(), "error", err)
		return
	}

	switch evt.Type {
	case inboundChatMessage:
		r.handleChatMessage(ctx, s, evt)
	default:
		r.log.Debug("ignoring unrecognized event type", "type", evt.Type, "sessionID", s.Key())
	}
}

func (r *Router) handleChatMessage(ctx context.Context, s *Session, evt inboundEvent) {
	content := strings.TrimSpace(evt.Message)
	if content == "" {
		// Missing required field: dropped silently, session stays open.
		r.log.Debug("dropping chat_message without message body", "sessionID", s.Key())
		return
	}

	// The claimed sender id in the payload is advisory and ignored; the
	// session's authenticated identity is authoritative for persistence
	// and broadcast.
	sender := s.Identity()

	conv, err := r.bridge.ResolveConversation(ctx, s.ConversationID())
	if err != nil {
		r.log.Warn("conversation resolution failed", "conversationID", s.ConversationID(), "error", err)
		_ = s.Deliver(encodeError("conversation not found"))
		return
	}
	if !r.bridge.IsParticipant(ctx, sender.ID, conv) {
		r.log.Warn("sender is not a participant", "userID", sender.ID, "conversationID", conv.ID)
		_ = s.Deliver(encodeError("not a participant"))
		return
	}

	if r.moderator != nil {
		content = r.moderator.Censor(content)
	}

	// Save, then broadcast. A message that was not durably stored must
	// never reach other clients, so a persistence failure short-circuits
	// the fan-out and only the sender hears about it.
	message, err := r.bridge.SaveMessage(ctx, conv, sender, content)
	if err != nil {
		r.log.Error("message persistence failed", "conversationID", conv.ID, "error", err)
		_ = s.Deliver(encodeError("message not saved"))
		return
	}

	posted := event.MessagePosted{
		ConversationID: conv.ID,
		Sender:         sender,
		Content:        message.Content,
		At:             message.CreatedAt,
	}
	if err := r.broadcaster.Broadcast(ctx, posted); err != nil {
		r.log.Error("broadcast failed", "conversationID", conv.ID, "error", err)
	}
}
