package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/questx-lab/chatsync/config"
	"github.com/questx-lab/chatsync/pkg/kafka"
	"github.com/questx-lab/chatsync/pkg/pubsub"
	"github.com/questx-lab/chatsync/pkg/xcontext"
)

// KafkaRecord is the value written on the kafka change topic.
type KafkaRecord struct {
	Kind    EnvelopeKind    `json:"kind"`
	Event   *Event          `json:"event,omitempty"`
	Topic   string          `json:"topic,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type kafkaFeed struct {
	ctx        context.Context
	cancel     context.CancelFunc
	topic      string
	subscriber pubsub.Subscriber
	publisher  pubsub.Publisher

	mutex  sync.RWMutex
	topics map[string][]Filter
	c      chan Envelope
	closed bool
}

// DialKafka returns a dialer consuming the change topic of cfg. Every feed
// uses its own consumer group so that each client sees every record, and
// topic filters are applied locally.
func DialKafka(cfg config.KafkaConfigs) Dialer {
	return func(ctx context.Context) (Feed, error) {
		f := newKafkaFeed(ctx, cfg.Topic)

		groupID := fmt.Sprintf("%s-%s", cfg.GroupID, uuid.NewString())
		subscriber, err := kafka.NewSubscriber(groupID, cfg.Brokers, []string{cfg.Topic}, f.handle)
		if err != nil {
			f.cancel()
			return nil, err
		}
		f.subscriber = subscriber

		publisher, err := kafka.NewPublisher(groupID, cfg.Brokers)
		if err != nil {
			subscriber.Stop(ctx)
			f.cancel()
			return nil, err
		}
		f.publisher = publisher

		if err := subscriber.Subscribe(f.ctx); err != nil {
			f.Close()
			return nil, err
		}

		return f, nil
	}
}

func newKafkaFeed(ctx context.Context, topic string) *kafkaFeed {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return &kafkaFeed{
		ctx:    ctx,
		cancel: cancel,
		topic:  topic,
		topics: make(map[string][]Filter),
		c:      make(chan Envelope, sessionBufferSize),
	}
}

func (f *kafkaFeed) handle(ctx context.Context, pack *pubsub.Pack, _ time.Time) {
	var record KafkaRecord
	if err := json.Unmarshal(pack.Msg, &record); err != nil {
		xcontext.Logger(f.ctx).Errorf("Cannot unmarshal kafka record: %v", err)
		return
	}

	switch record.Kind {
	case EnvelopeChange:
		if record.Event == nil {
			return
		}

		f.mutex.RLock()
		var topics []string
		for topic, filters := range f.topics {
			if MatchAny(filters, *record.Event) {
				topics = append(topics, topic)
			}
		}
		f.mutex.RUnlock()

		for _, topic := range topics {
			ev := *record.Event
			ev.Topic = topic
			f.deliver(Envelope{Kind: EnvelopeChange, Topic: topic, Event: &ev})
		}

	case EnvelopeBroadcast:
		f.mutex.RLock()
		_, joined := f.topics[record.Topic]
		f.mutex.RUnlock()

		if joined {
			f.deliver(Envelope{Kind: EnvelopeBroadcast, Topic: record.Topic, Payload: record.Payload})
		}
	}
}

func (f *kafkaFeed) deliver(env Envelope) {
	f.mutex.Lock()
	if f.closed {
		f.mutex.Unlock()
		return
	}

	select {
	case f.c <- env:
		f.mutex.Unlock()
	default:
		f.mutex.Unlock()
		xcontext.Logger(f.ctx).Warnf("Kafka feed buffer is full, disconnecting")
		// Stopping the consumer waits for this handler to return.
		go f.Close()
	}
}

func (f *kafkaFeed) Join(topic string, filters []Filter) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.closed {
		return ErrClosed
	}

	f.topics[topic] = filters
	return nil
}

func (f *kafkaFeed) Leave(topic string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	delete(f.topics, topic)
	return nil
}

func (f *kafkaFeed) Broadcast(topic string, payload []byte) error {
	b, err := json.Marshal(KafkaRecord{Kind: EnvelopeBroadcast, Topic: topic, Payload: payload})
	if err != nil {
		return err
	}

	return f.publisher.Publish(f.ctx, f.topic, &pubsub.Pack{Key: []byte(topic), Msg: b})
}

func (f *kafkaFeed) Envelopes() <-chan Envelope {
	return f.c
}

func (f *kafkaFeed) Close() error {
	f.mutex.Lock()
	if f.closed {
		f.mutex.Unlock()
		return nil
	}
	f.closed = true
	close(f.c)
	f.mutex.Unlock()

	f.cancel()
	if f.subscriber != nil {
		f.subscriber.Stop(f.ctx)
	}
	if f.publisher != nil {
		f.publisher.Stop(f.ctx)
	}

	return nil
}

// KafkaFanout writes change events on the kafka change topic. Records are
// keyed by table and row id so that changes of one row stay ordered.
type KafkaFanout struct {
	publisher pubsub.Publisher
	topic     string
}

func NewKafkaFanout(publisher pubsub.Publisher, topic string) *KafkaFanout {
	return &KafkaFanout{publisher: publisher, topic: topic}
}

func (k *KafkaFanout) Publish(ctx context.Context, ev Event) error {
	b, err := json.Marshal(KafkaRecord{Kind: EnvelopeChange, Event: &ev})
	if err != nil {
		return err
	}

	key := fmt.Sprintf("%s:%s", ev.Table, ev.Row.String("id"))
	return k.publisher.Publish(ctx, k.topic, &pubsub.Pack{Key: []byte(key), Msg: b})
}
