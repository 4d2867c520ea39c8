// Package relay fans group broadcasts out across process boundaries.
// A single-process deployment uses the Noop relay; multi-process
// deployments plug in the NATS relay so that every instance sees every
// group event regardless of where the originating session lives.
package relay

import "context"

// Noop is the single-process relay. Publish discards, Subscribe never
// delivers.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (n *Noop) Publish(_ context.Context, _ string, _ []byte) error { return nil }

func (n *Noop) Subscribe(_ func(groupKey string, payload []byte)) error { return nil }

func (n *Noop) Close() error { return nil }
