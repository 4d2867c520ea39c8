package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"duochat/domain"
	"duochat/domain/event"
)

// Client -> server event. The user field is advisory: the session's
// authenticated identity is authoritative for everything the server does
// with the event (see Router.handleChatMessage).
type inboundEvent struct {
	Type    string          `json:"type"`
	Message string          `json:"message"`
	User    json.RawMessage `json:"user"`
}

const (
	inboundChatMessage = "chat_message"

	outboundChatMessage  = "chat_message"
	outboundOnlineStatus = "online_status"
	outboundError        = "error"
)

type chatMessagePayload struct {
	Type      string          `json:"type"`
	Message   string          `json:"message"`
	User      domain.Identity `json:"user"`
	Timestamp string          `json:"timestamp"`
}

type onlineStatusPayload struct {
	Type        string            `json:"type"`
	OnlineUsers []domain.Identity `json:"online_users"`
	Status      string            `json:"status"`
}

type errorPayload struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// EncodeEvent maps a domain event to its wire shape. Timestamps are
// ISO-8601 in UTC.
func EncodeEvent(evt event.Event) ([]byte, error) {
	switch e := evt.(type) {
	case event.MessagePosted:
		return json.Marshal(chatMessagePayload{
			Type:      outboundChatMessage,
			Message:   e.Content,
			User:      e.Sender,
			Timestamp: e.At.UTC().Format(time.RFC3339),
		})
	case event.PresenceChanged:
		return json.Marshal(onlineStatusPayload{
			Type:        outboundOnlineStatus,
			OnlineUsers: e.Who,
			Status:      string(e.Status),
		})
	default:
		return nil, fmt.Errorf("unknown event type %T", evt)
	}
}

func encodeError(message string) []byte {
	payload, _ := json.Marshal(errorPayload{Type: outboundError, Error: message})
	return payload
}
