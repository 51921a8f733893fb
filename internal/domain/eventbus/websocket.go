package eventbus

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/questx-lab/chatsync/pkg/ws"
	"github.com/questx-lab/chatsync/pkg/xcontext"
)

type websocketFeed struct {
	client *ws.Client
	c      chan Envelope
}

// DialWebsocket returns a dialer connecting to the feed server at endpoint.
// The token identifies the caller to the server.
func DialWebsocket(endpoint, token string) Dialer {
	return func(ctx context.Context) (Feed, error) {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, err
		}

		if token != "" {
			q := u.Query()
			q.Set("token", token)
			u.RawQuery = q.Encode()
		}

		client, err := ws.Dial(ctx, u.String(), true)
		if err != nil {
			return nil, err
		}

		f := &websocketFeed{client: client, c: make(chan Envelope, sessionBufferSize)}
		go f.run(ctx)
		return f, nil
	}
}

func (f *websocketFeed) run(ctx context.Context) {
	defer close(f.c)

	for msg := range f.client.R {
		var env Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			xcontext.Logger(ctx).Errorf("Cannot unmarshal envelope: %v", err)
			continue
		}

		f.c <- env
	}
}

func (f *websocketFeed) write(d *ClientDirective) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}

	return f.client.Write(b)
}

func (f *websocketFeed) Join(topic string, filters []Filter) error {
	return f.write(NewJoinDirective(topic, filters))
}

func (f *websocketFeed) Leave(topic string) error {
	return f.write(NewLeaveDirective(topic))
}

func (f *websocketFeed) Broadcast(topic string, payload []byte) error {
	return f.write(NewBroadcastDirective(topic, payload))
}

func (f *websocketFeed) Envelopes() <-chan Envelope {
	return f.c
}

func (f *websocketFeed) Close() error {
	f.client.Close()
	return nil
}

// Authorizer decides whether the connected caller may join a topic.
type Authorizer func(ctx context.Context, join JoinDirective) error

// ServeWebsocket bridges a websocket client to a session of hub until either
// side goes away. Joins refused by authorize are answered with an error
// envelope for the topic.
func ServeWebsocket(ctx context.Context, hub *MemoryHub, client *ws.Client, authorize Authorizer) {
	session := hub.Connect()
	defer session.Close()
	defer client.Close()

	send := func(env Envelope) bool {
		b, err := json.Marshal(env)
		if err != nil {
			xcontext.Logger(ctx).Errorf("Cannot marshal envelope: %v", err)
			return true
		}

		return client.Write(b) == nil
	}

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-client.R:
			if !ok {
				return
			}

			var d ServerDirective
			if err := json.Unmarshal(msg, &d); err != nil {
				xcontext.Logger(ctx).Errorf("Cannot unmarshal directive: %v", err)
				continue
			}

			switch d.Op {
			case JoinDirectiveOp:
				var join JoinDirective
				if err := json.Unmarshal(d.Data, &join); err != nil {
					xcontext.Logger(ctx).Errorf("Cannot unmarshal join data: %v", err)
					continue
				}

				if authorize != nil {
					if err := authorize(ctx, join); err != nil {
						if !send(Envelope{Kind: EnvelopeError, Topic: join.Topic, Error: err.Error()}) {
							return
						}
						continue
					}
				}

				if err := session.Join(join.Topic, join.Filters); err != nil {
					return
				}

			case LeaveDirectiveOp:
				var leave LeaveDirective
				if err := json.Unmarshal(d.Data, &leave); err != nil {
					xcontext.Logger(ctx).Errorf("Cannot unmarshal leave data: %v", err)
					continue
				}

				_ = session.Leave(leave.Topic)

			case BroadcastDirectiveOp:
				var broadcast BroadcastDirective
				if err := json.Unmarshal(d.Data, &broadcast); err != nil {
					xcontext.Logger(ctx).Errorf("Cannot unmarshal broadcast data: %v", err)
					continue
				}

				_ = session.Broadcast(broadcast.Topic, broadcast.Payload)

			default:
				xcontext.Logger(ctx).Warnf("Unknown directive op %d", d.Op)
			}

		case env, ok := <-session.Envelopes():
			if !ok {
				return
			}

			if !send(env) {
				return
			}
		}
	}
}
