package realtime

import (
	"context"
	"log/slog"

	"duochat/contract"
	"duochat/domain/event"
)

// Broadcaster fans a domain event out to the local group registry and,
// through the relay, to other server processes. Single-process
// deployments pass the Noop relay. The relay is best-effort: a publish
// failure is logged, never propagated, because local delivery already
// happened.
type Broadcaster struct {
	registry *Registry
	relay    contract.Relay
	log      *slog.Logger
}

func NewBroadcaster(registry *Registry, relay contract.Relay, log *slog.Logger) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		relay:    relay,
		log:      log.With(slog.String("component", "broadcaster")),
	}
}

func (b *Broadcaster) Broadcast(ctx context.Context, evt event.Event) error {
	payload, err := EncodeEvent(evt)
	if err != nil {
		return err
	}

	groupKey := evt.GroupKey()
	b.registry.Broadcast(groupKey, payload)

	if err := b.relay.Publish(ctx, groupKey, payload); err != nil {
		b.log.Warn("relay publish failed", "groupKey", groupKey, "error", err)
	}
	return nil
}
