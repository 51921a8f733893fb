package kafka

import (
	"context"
	"time"

	"github.com/Shopify/sarama"
	"github.com/questx-lab/chatsync/pkg/pubsub"
	"github.com/questx-lab/chatsync/pkg/xcontext"
)

const retryConsumeInterval = time.Second

type subscriber struct {
	groupID     string
	brokerAddrs []string
	topics      []string
	client      sarama.ConsumerGroup
	handler     pubsub.SubscribeHandler
}

// NewSubscriber creates a consumer group member. OffsetNewest is used because
// consumers rebuild their state by reloading, not by replaying the topic.
func NewSubscriber(
	groupID string,
	brokerAddrs []string,
	topics []string,
	handler pubsub.SubscribeHandler,
) (*subscriber, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	client, err := sarama.NewConsumerGroup(brokerAddrs, groupID, config)
	if err != nil {
		return nil, err
	}

	return &subscriber{
		groupID:     groupID,
		brokerAddrs: brokerAddrs,
		topics:      topics,
		client:      client,
		handler:     handler,
	}, nil
}

func (g *subscriber) Stop(ctx context.Context) error {
	return g.client.Close()
}

func (g *subscriber) Subscribe(ctx context.Context) error {
	consumer := consumerGroupHandler{
		ready: make(chan struct{}),
		fn:    g.handler,
	}

	go func() {
		for {
			// Consume returns on every rebalance, the session must be
			// recreated to get the new claims.
			if err := g.client.Consume(ctx, g.topics, &consumer); err != nil {
				if err == sarama.ErrClosedConsumerGroup {
					return
				}

				xcontext.Logger(ctx).Warnf("Error from consumer: %v", err)
				time.Sleep(retryConsumeInterval)
			}

			if ctx.Err() != nil {
				return
			}
		}
	}()

	select {
	case <-consumer.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type consumerGroupHandler struct {
	ready     chan struct{}
	readyOnce bool
	fn        pubsub.SubscribeHandler
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	if !h.readyOnce {
		h.readyOnce = true
		close(h.ready)
	}

	return nil
}

func (h *consumerGroupHandler) Cleanup(session sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(
	session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim,
) error {
	for message := range claim.Messages() {
		session.MarkMessage(message, "")
		h.fn(session.Context(), &pubsub.Pack{
			Key: message.Key,
			Msg: message.Value,
		}, message.Timestamp)
	}

	return nil
}
