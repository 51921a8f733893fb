package eventbus

import "context"

// Feed is one connection to a change feed. Envelopes for a topic arrive in
// server commit order. The envelope channel is closed when the connection is
// lost or closed.
type Feed interface {
	Join(topic string, filters []Filter) error
	Leave(topic string) error
	Broadcast(topic string, payload []byte) error
	Envelopes() <-chan Envelope
	Close() error
}

type Dialer func(ctx context.Context) (Feed, error)
