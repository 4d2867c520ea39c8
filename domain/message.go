// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat event. The id and timestamp are
// canonical: they are assigned by the persistence layer before any
// broadcast takes place.
type Message struct {
	ID             uuid.UUID
	ConversationID string
	SenderID       string
	Content        string
	CreatedAt      time.Time
}
