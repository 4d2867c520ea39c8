package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const subjectPrefix = "duochat.groups"

// envelope wraps a relayed payload with its group key and the id of the
// originating instance so that instances can skip their own traffic.
type envelope struct {
	Origin   string `json:"origin"`
	GroupKey string `json:"group_key"`
	Payload  []byte `json:"payload"`
}

// Nats relays group broadcasts through a NATS subject shared by every
// instance of the service.
type Nats struct {
	conn     *nats.Conn
	sub      *nats.Subscription
	originID string
	log      *slog.Logger
}

func NewNats(url string, log *slog.Logger) (*Nats, error) {
	conn, err := nats.Connect(url, nats.Name("duochat-relay"))
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}

	return &Nats{
		conn:     conn,
		originID: uuid.NewString(),
		log:      log.With(slog.String("component", "relay")),
	}, nil
}

func (r *Nats) Publish(_ context.Context, groupKey string, payload []byte) error {
	data, err := json.Marshal(envelope{
		Origin:   r.originID,
		GroupKey: groupKey,
		Payload:  payload,
	})
	if err != nil {
		return fmt.Errorf("encoding relay envelope: %w", err)
	}

	if err := r.conn.Publish(subjectPrefix, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", subjectPrefix, err)
	}
	return nil
}

// Subscribe registers the handler for payloads published by OTHER
// instances. Local traffic is filtered out by origin id so members do
// not receive their own broadcasts twice.
func (r *Nats) Subscribe(handler func(groupKey string, payload []byte)) error {
	sub, err := r.conn.Subscribe(subjectPrefix, func(msg *nats.Msg) {
		var env envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			r.log.Warn("dropping malformed relay envelope", "error", err)
			return
		}
		if env.Origin == r.originID {
			return
		}
		handler(env.GroupKey, env.Payload)
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", subjectPrefix, err)
	}

	r.sub = sub
	return nil
}

func (r *Nats) Close() error {
	if r.sub != nil {
		if err := r.sub.Unsubscribe(); err != nil {
			r.log.Warn("unsubscribing relay", "error", err)
		}
	}
	return r.conn.Drain()
}
