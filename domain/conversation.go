package domain

import (
	"time"
)

// Conversation is a private channel between exactly two participants.
type Conversation struct {
	ID           string     `json:"id"`
	Participants []Identity `json:"participants"`
	CreatedAt    time.Time  `json:"created_at"`
}

// HasParticipant reports whether the given user id belongs to the conversation.
func (c Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// GroupKey derives the broadcast group identifier for a conversation id.
// The key is stable for the life of a session and is the sole key into
// the group registry.
func GroupKey(conversationID string) string {
	return "chat_" + conversationID
}
