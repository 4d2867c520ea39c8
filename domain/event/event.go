package event

import (
	"time"

	"duochat/domain"
)

// Event is a transient broadcast unit. Events are constructed, fanned out
// to the members of one conversation group, and discarded; only message
// events are persisted, and that happens before the broadcast.
type Event interface {
	GroupKey() string
}

type MessagePosted struct {
	ConversationID string
	Sender         domain.Identity
	Content        string
	At             time.Time
}

func (e MessagePosted) GroupKey() string {
	return domain.GroupKey(e.ConversationID)
}

type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)

// PresenceChanged notifies a group that participants came online or went
// offline. Who is list-shaped for forward compatibility with batched
// updates even though exactly one identity is affected per event today.
type PresenceChanged struct {
	ConversationID string
	Who            []domain.Identity
	Status         PresenceStatus
}

func (e PresenceChanged) GroupKey() string {
	return domain.GroupKey(e.ConversationID)
}
