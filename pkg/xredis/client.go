package xredis

import (
	"context"
	"time"

	"github.com/questx-lab/chatsync/pkg/xcontext"
	"github.com/redis/go-redis/v9"
)

type Client interface {
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe returns the payloads published on channel after the
	// subscription is confirmed. The returned function unsubscribes and
	// closes the payload channel.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)

	Close() error
}

type client struct {
	redisClient *redis.Client
}

func NewClient(ctx context.Context) (*client, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:            xcontext.Configs(ctx).Redis.Addr,
		MaxRetries:      5,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		PoolFIFO:        false,
		PoolSize:        5,
	})

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &client{redisClient: redisClient}, nil
}

func (c *client) Publish(ctx context.Context, channel string, payload []byte) error {
	return c.redisClient.Publish(ctx, channel, payload).Err()
}

func (c *client) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	pubsub := c.redisClient.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, err
	}

	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			out <- []byte(msg.Payload)
		}
	}()

	return out, func() { pubsub.Close() }, nil
}

func (c *client) Close() error {
	return c.redisClient.Close()
}
