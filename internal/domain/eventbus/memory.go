package eventbus

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync"
)

const sessionBufferSize = 256

// MemoryHub is an in-process change feed broker. Every published event is
// routed to the sessions whose joined topic filters select it. A session that
// cannot keep up is disconnected, its owner is expected to reconnect and
// reload.
type MemoryHub struct {
	sessions *xsync.MapOf[string, *HubSession]

	// publishMutex serializes publications so every session sees the same
	// commit order.
	publishMutex sync.Mutex
}

func NewMemoryHub() *MemoryHub {
	return &MemoryHub{sessions: xsync.NewMapOf[*HubSession]()}
}

// Connect opens a new session on the hub.
func (h *MemoryHub) Connect() *HubSession {
	s := &HubSession{
		id:     uuid.NewString(),
		hub:    h,
		c:      make(chan Envelope, sessionBufferSize),
		topics: make(map[string][]Filter),
	}

	h.sessions.Store(s.id, s)
	return s
}

func (h *MemoryHub) Dialer() Dialer {
	return func(context.Context) (Feed, error) {
		return h.Connect(), nil
	}
}

// Publish routes a change event to every matching topic of every session.
func (h *MemoryHub) Publish(ev Event) {
	h.publishMutex.Lock()
	defer h.publishMutex.Unlock()

	h.sessions.Range(func(_ string, s *HubSession) bool {
		s.deliverChange(ev)
		return true
	})
}

// FailTopic sends a subscription error for topic to every session joined to
// it.
func (h *MemoryHub) FailTopic(topic, reason string) {
	h.publishMutex.Lock()
	defer h.publishMutex.Unlock()

	h.sessions.Range(func(_ string, s *HubSession) bool {
		if s.joined(topic) {
			s.deliver(Envelope{Kind: EnvelopeError, Topic: topic, Error: reason})
		}
		return true
	})
}

// DisconnectAll drops every session as a network failure would.
func (h *MemoryHub) DisconnectAll() {
	h.sessions.Range(func(_ string, s *HubSession) bool {
		s.Close()
		return true
	})
}

func (h *MemoryHub) SessionCount() int {
	return h.sessions.Size()
}

func (h *MemoryHub) broadcast(from *HubSession, topic string, payload []byte) {
	h.publishMutex.Lock()
	defer h.publishMutex.Unlock()

	h.sessions.Range(func(id string, s *HubSession) bool {
		if id != from.id && s.joined(topic) {
			s.deliver(Envelope{Kind: EnvelopeBroadcast, Topic: topic, Payload: payload})
		}
		return true
	})
}

type HubSession struct {
	id  string
	hub *MemoryHub
	c   chan Envelope

	mutex  sync.RWMutex
	topics map[string][]Filter
	closed bool
}

func (s *HubSession) ID() string {
	return s.id
}

func (s *HubSession) Join(topic string, filters []Filter) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.topics[topic] = filters
	return nil
}

func (s *HubSession) Leave(topic string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.topics, topic)
	return nil
}

func (s *HubSession) Broadcast(topic string, payload []byte) error {
	if !s.joined(topic) {
		return nil
	}

	s.hub.broadcast(s, topic, payload)
	return nil
}

func (s *HubSession) Envelopes() <-chan Envelope {
	return s.c
}

func (s *HubSession) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	s.hub.sessions.Delete(s.id)
	close(s.c)
	return nil
}

func (s *HubSession) joined(topic string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	_, ok := s.topics[topic]
	return ok
}

func (s *HubSession) deliverChange(ev Event) {
	s.mutex.RLock()
	var topics []string
	for topic, filters := range s.topics {
		if MatchAny(filters, ev) {
			topics = append(topics, topic)
		}
	}
	s.mutex.RUnlock()

	for _, topic := range topics {
		routed := ev
		routed.Topic = topic
		s.deliver(Envelope{Kind: EnvelopeChange, Topic: topic, Event: &routed})
	}
}

func (s *HubSession) deliver(env Envelope) {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return
	}

	select {
	case s.c <- env:
		s.mutex.Unlock()
	default:
		s.mutex.Unlock()
		s.Close()
	}
}
