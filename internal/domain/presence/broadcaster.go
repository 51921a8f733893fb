package presence

import (
	"context"

	"github.com/questx-lab/chatsync/internal/common"
	"github.com/questx-lab/chatsync/internal/domain/eventbus"
	"github.com/questx-lab/chatsync/pkg/xredis"
)

// Broadcaster relays ephemeral announcements between the participants of a
// channel. Delivery is best effort.
type Broadcaster interface {
	Publish(ctx context.Context, channelID string, payload []byte) error

	// Subscribe calls fn for every payload announced in the channel until the
	// returned function is called.
	Subscribe(ctx context.Context, channelID string, fn func(payload []byte)) (func(), error)
}

type busBroadcaster struct {
	bus *eventbus.Bus
}

// NewBusBroadcaster relays announcements over the change feed.
func NewBusBroadcaster(bus *eventbus.Bus) *busBroadcaster {
	return &busBroadcaster{bus: bus}
}

func (b *busBroadcaster) Publish(_ context.Context, channelID string, payload []byte) error {
	return b.bus.Broadcast(common.TopicPresence(channelID), payload)
}

func (b *busBroadcaster) Subscribe(_ context.Context, channelID string, fn func(payload []byte)) (func(), error) {
	sub, err := b.bus.Subscribe(common.TopicPresence(channelID), nil, eventbus.HandlerFuncs{
		OnEvent: func(_ context.Context, ev eventbus.Event) {
			if ev.Op == eventbus.OpBroadcast {
				fn(ev.Payload)
			}
		},
	})
	if err != nil {
		return nil, err
	}

	return sub.Close, nil
}

type redisBroadcaster struct {
	client xredis.Client
}

// NewRedisBroadcaster relays announcements over redis pub/sub.
func NewRedisBroadcaster(client xredis.Client) *redisBroadcaster {
	return &redisBroadcaster{client: client}
}

func (b *redisBroadcaster) Publish(ctx context.Context, channelID string, payload []byte) error {
	return b.client.Publish(ctx, common.RedisKeyTyping(channelID), payload)
}

func (b *redisBroadcaster) Subscribe(ctx context.Context, channelID string, fn func(payload []byte)) (func(), error) {
	payloads, cancel, err := b.client.Subscribe(ctx, common.RedisKeyTyping(channelID))
	if err != nil {
		return nil, err
	}

	go func() {
		for payload := range payloads {
			fn(payload)
		}
	}()

	return cancel, nil
}
