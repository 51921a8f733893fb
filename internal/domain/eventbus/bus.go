package eventbus

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync"
	"github.com/questx-lab/chatsync/internal/common"
	"github.com/questx-lab/chatsync/pkg/errorx"
	"github.com/questx-lab/chatsync/pkg/xcontext"
)

var (
	ErrTopicInUse = errors.New("topic already has an active subscription")
	ErrClosed     = errors.New("event bus is closed")
)

type Handler interface {
	HandleEvent(ctx context.Context, ev Event)

	// HandleGap is called when events may have been missed. Handlers must
	// rebuild their state from the store instead of trusting it.
	HandleGap(ctx context.Context)
}

type HandlerFuncs struct {
	OnEvent func(ctx context.Context, ev Event)
	OnGap   func(ctx context.Context)
}

func (h HandlerFuncs) HandleEvent(ctx context.Context, ev Event) {
	if h.OnEvent != nil {
		h.OnEvent(ctx, ev)
	}
}

func (h HandlerFuncs) HandleGap(ctx context.Context) {
	if h.OnGap != nil {
		h.OnGap(ctx)
	}
}

// Bus multiplexes topic subscriptions over one feed connection and keeps
// them alive across reconnections. Each topic has a single owner and its own
// goroutine, so events of a topic are handled in arrival order while topics
// progress independently.
type Bus struct {
	ctx    context.Context
	cancel context.CancelFunc
	dial   Dialer

	mutex  sync.Mutex
	feed   Feed
	gen    uint64
	closed bool
	subs   *xsync.MapOf[string, *Subscription]

	disconnected chan struct{}
}

// New creates a bus which dials with dial. The bus does not connect until
// Connect is called, but subscriptions may be created before that.
func New(ctx context.Context, dial Dialer) *Bus {
	ctx, cancel := context.WithCancel(ctx)
	b := &Bus{
		ctx:          ctx,
		cancel:       cancel,
		dial:         dial,
		subs:         xsync.NewMapOf[*Subscription](),
		disconnected: make(chan struct{}, 1),
	}

	go b.run()
	return b
}

// Connect dials the feed for the first time. Subscriptions created before
// the connection get a gap. On failure the bus keeps retrying in the
// background and the error is returned for reporting.
func (b *Bus) Connect(ctx context.Context) error {
	if err := b.connect(ctx); err != nil {
		b.signalDisconnected()
		return err
	}

	b.signalGapAll()
	return nil
}

// Reconnect replaces the current feed connection by a new one, joins every
// active topic again and signals a gap to every subscription. Calling it
// repeatedly is safe, each call leaves exactly one live connection.
func (b *Bus) Reconnect(ctx context.Context) error {
	if err := b.connect(ctx); err != nil {
		return err
	}

	common.PromCounters[common.EventBusReconnects].WithLabelValues().Inc()
	b.signalGapAll()
	return nil
}

func (b *Bus) signalGapAll() {
	b.subs.Range(func(_ string, s *Subscription) bool {
		s.signalGap()
		return true
	})
}

func (b *Bus) connect(ctx context.Context) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return ErrClosed
	}

	// Bumping the generation first makes the pump of the old feed exit
	// quietly instead of reporting a disconnection.
	b.gen++
	gen := b.gen
	if b.feed != nil {
		b.feed.Close()
		b.feed = nil
	}

	feed, err := b.dial(ctx)
	if err != nil {
		return errorx.New(errorx.Transport, "Unable to dial change feed: %v", err)
	}

	var joinErr error
	b.subs.Range(func(topic string, s *Subscription) bool {
		if err := feed.Join(topic, s.filters); err != nil {
			joinErr = err
			return false
		}
		return true
	})

	if joinErr != nil {
		feed.Close()
		return errorx.New(errorx.Transport, "Unable to join topics: %v", joinErr)
	}

	b.feed = feed
	go b.pump(feed, gen)
	xcontext.Logger(b.ctx).Infof("Change feed connected, %d topics joined", b.subs.Size())
	return nil
}

// Connected reports whether the bus currently holds a feed connection.
func (b *Bus) Connected() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.feed != nil
}

func (b *Bus) reconnectInterval() time.Duration {
	interval := xcontext.Configs(b.ctx).Sync.ReconnectInterval.Duration
	if interval <= 0 {
		return 5 * time.Second
	}

	return interval
}

func (b *Bus) run() {
	interval := b.reconnectInterval()
	for {
		select {
		case <-b.ctx.Done():
			return
		case <-b.disconnected:
		}

		for {
			err := b.Reconnect(b.ctx)
			if err == nil || errors.Is(err, ErrClosed) {
				break
			}

			xcontext.Logger(b.ctx).Warnf("Unable to reconnect change feed: %v", err)
			select {
			case <-b.ctx.Done():
				return
			case <-time.After(interval):
			}
		}
	}
}

func (b *Bus) signalDisconnected() {
	select {
	case b.disconnected <- struct{}{}:
	default:
	}
}

func (b *Bus) pump(feed Feed, gen uint64) {
	for env := range feed.Envelopes() {
		switch env.Kind {
		case EnvelopeChange:
			if env.Event == nil {
				continue
			}

			if s, ok := b.subs.Load(env.Topic); ok {
				ev := *env.Event
				ev.Topic = env.Topic
				s.enqueue(ev)
			}

		case EnvelopeBroadcast:
			if s, ok := b.subs.Load(env.Topic); ok {
				s.enqueue(Event{Topic: env.Topic, Op: OpBroadcast, Payload: env.Payload})
			}

		case EnvelopeError:
			xcontext.Logger(b.ctx).Warnf("Subscription %s failed: %s", env.Topic, env.Error)
			go b.rejoin(env.Topic, gen)
		}
	}

	b.mutex.Lock()
	current := b.gen == gen && !b.closed
	if current {
		b.feed = nil
	}
	b.mutex.Unlock()

	if current {
		xcontext.Logger(b.ctx).Warnf("Change feed disconnected")
		b.signalDisconnected()
	}
}

// rejoin joins topic again after the reconnect interval and signals a gap to
// its owner.
func (b *Bus) rejoin(topic string, gen uint64) {
	select {
	case <-b.ctx.Done():
		return
	case <-time.After(b.reconnectInterval()):
	}

	b.mutex.Lock()
	if b.gen != gen || b.feed == nil {
		b.mutex.Unlock()
		return
	}

	s, ok := b.subs.Load(topic)
	if !ok {
		b.mutex.Unlock()
		return
	}

	_ = b.feed.Leave(topic)
	err := b.feed.Join(topic, s.filters)
	b.mutex.Unlock()

	if err != nil {
		xcontext.Logger(b.ctx).Warnf("Unable to rejoin %s: %v", topic, err)
		b.signalDisconnected()
		return
	}

	s.signalGap()
}

// Subscribe registers handler as the owner of topic. The topic receives the
// rows selected by filters.
func (b *Bus) Subscribe(topic string, filters []Filter, handler Handler) (*Subscription, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	if _, ok := b.subs.Load(topic); ok {
		return nil, ErrTopicInUse
	}

	queueSize := xcontext.Configs(b.ctx).Sync.QueueSize
	if queueSize <= 0 {
		queueSize = 128
	}

	s := &Subscription{
		bus:     b,
		topic:   topic,
		filters: filters,
		handler: handler,
		queue:   make(chan Event, queueSize),
		gap:     make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	b.subs.Store(topic, s)

	if b.feed != nil {
		if err := b.feed.Join(topic, filters); err != nil {
			xcontext.Logger(b.ctx).Warnf("Unable to join %s: %v", topic, err)
			b.signalDisconnected()
		}
	}

	go s.run()
	return s, nil
}

// Broadcast relays an ephemeral payload to the other members of topic.
func (b *Bus) Broadcast(topic string, payload []byte) error {
	b.mutex.Lock()
	feed := b.feed
	b.mutex.Unlock()

	if feed == nil {
		return errorx.New(errorx.Transport, "Change feed is not connected")
	}

	return feed.Broadcast(topic, payload)
}

func (b *Bus) unsubscribe(s *Subscription) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if current, ok := b.subs.Load(s.topic); !ok || current != s {
		return
	}

	b.subs.Delete(s.topic)
	if b.feed != nil {
		_ = b.feed.Leave(s.topic)
	}
}

// Close closes the feed connection and every subscription.
func (b *Bus) Close() {
	b.mutex.Lock()
	if b.closed {
		b.mutex.Unlock()
		return
	}

	b.closed = true
	if b.feed != nil {
		b.feed.Close()
		b.feed = nil
	}
	b.mutex.Unlock()

	b.cancel()
	b.subs.Range(func(topic string, s *Subscription) bool {
		s.stop()
		b.subs.Delete(topic)
		return true
	})
}

type Subscription struct {
	bus     *Bus
	topic   string
	filters []Filter
	handler Handler

	queue     chan Event
	gap       chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func (s *Subscription) Topic() string {
	return s.topic
}

// Close leaves the topic. Events still queued are discarded.
func (s *Subscription) Close() {
	s.stop()
	s.bus.unsubscribe(s)
}

func (s *Subscription) stop() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Subscription) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// enqueue never blocks the feed pump. When the queue overflows the event is
// dropped and a gap is signalled instead, so the owner reloads.
func (s *Subscription) enqueue(ev Event) {
	select {
	case s.queue <- ev:
	default:
		xcontext.Logger(s.bus.ctx).Warnf("Queue of %s is full, dropping event", s.topic)
		s.signalGap()
	}
}

func (s *Subscription) signalGap() {
	select {
	case s.gap <- struct{}{}:
	default:
	}
}

func (s *Subscription) run() {
	for {
		select {
		case <-s.done:
			return

		case <-s.gap:
			if s.isClosed() {
				return
			}

			common.PromCounters[common.EventBusGaps].WithLabelValues(s.topic).Inc()
			s.safely(func() { s.handler.HandleGap(s.bus.ctx) })

		case ev := <-s.queue:
			if s.isClosed() {
				return
			}

			s.safely(func() { s.handler.HandleEvent(s.bus.ctx, ev) })
		}
	}
}

func (s *Subscription) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			xcontext.Logger(s.bus.ctx).Errorf("Handler of %s panicked: %v", s.topic, r)
		}
	}()

	fn()
}
