package realtime

import (
	"context"
	"log/slog"

	"duochat/domain"
	"duochat/domain/event"
)

// PresenceTracker derives online/offline transitions from session
// activation and teardown and announces them to the session's group.
//
// Presence is live-only: no history is retained, and a newly joining
// session does not receive a snapshot of who was already online. The
// payload is list-shaped for forward compatibility with batched updates.
type PresenceTracker struct {
	broadcaster *Broadcaster
	log         *slog.Logger
}

func NewPresenceTracker(broadcaster *Broadcaster, log *slog.Logger) *PresenceTracker {
	return &PresenceTracker{
		broadcaster: broadcaster,
		log:         log.With(slog.String("component", "presence")),
	}
}

// Online announces a participant coming online to their group. Called
// exactly once per successful activation.
func (t *PresenceTracker) Online(ctx context.Context, conversationID string, who domain.Identity) {
	t.announce(ctx, conversationID, who, event.StatusOnline)
}

// Offline announces a participant going offline. Called exactly once per
// activation, from whichever disconnect path runs first, and never for a
// session that failed to activate.
func (t *PresenceTracker) Offline(ctx context.Context, conversationID string, who domain.Identity) {
	t.announce(ctx, conversationID, who, event.StatusOffline)
}

func (t *PresenceTracker) announce(ctx context.Context, conversationID string, who domain.Identity, status event.PresenceStatus) {
	evt := event.PresenceChanged{
		ConversationID: conversationID,
		Who:            []domain.Identity{who},
		Status:         status,
	}
	if err := t.broadcaster.Broadcast(ctx, evt); err != nil {
		t.log.Error("presence announcement failed",
			"conversationID", conversationID, "status", status, "error", err)
	}
}
