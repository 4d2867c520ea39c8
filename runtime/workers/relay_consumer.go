package workers

import (
	"context"
	"log/slog"

	"duochat/contract"
	"duochat/realtime"
)

// RelayConsumerWorker subscribes to the cross-process relay and replays
// remote group events into the local registry, so sessions connected to
// this instance receive traffic originated on other instances.
type RelayConsumerWorker struct {
	relay    contract.Relay
	registry *realtime.Registry
	log      *slog.Logger
}

func NewRelayConsumerWorker(relay contract.Relay, registry *realtime.Registry, log *slog.Logger) *RelayConsumerWorker {
	return &RelayConsumerWorker{
		relay:    relay,
		registry: registry,
		log:      log.With(slog.String("component", "relay_consumer")),
	}
}

func (w *RelayConsumerWorker) Run(ctx context.Context) error {
	err := w.relay.Subscribe(func(groupKey string, payload []byte) {
		w.registry.Broadcast(groupKey, payload)
	})
	if err != nil {
		return err
	}

	w.log.Info("Relay subscription established")
	<-ctx.Done()
	return nil
}
