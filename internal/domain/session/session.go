package session

import (
	"context"
	"sort"
	"sync"

	"github.com/questx-lab/chatsync/internal/client"
	"github.com/questx-lab/chatsync/internal/common"
	"github.com/questx-lab/chatsync/internal/domain/channel"
	"github.com/questx-lab/chatsync/internal/domain/eventbus"
	"github.com/questx-lab/chatsync/internal/domain/message"
	"github.com/questx-lab/chatsync/internal/domain/notification"
	"github.com/questx-lab/chatsync/internal/domain/presence"
	"github.com/questx-lab/chatsync/internal/domain/unread"
	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/internal/model"
	"github.com/questx-lab/chatsync/pkg/errorx"
	"github.com/questx-lab/chatsync/pkg/xcontext"
	"golang.org/x/exp/slices"
)

// Session holds the state of one signed-in user: the change feed, the
// channel list, the unread counters and the notification policy. Channel
// views are opened on top of it.
type Session struct {
	ctx         context.Context
	self        model.Identity
	caller      client.StoreCaller
	bus         *eventbus.Bus
	broadcaster presence.Broadcaster

	ledger     *unread.Ledger
	directory  *channel.Directory
	dispatcher *notification.Dispatcher

	mutex         sync.Mutex
	closed        bool
	subs          []*eventbus.Subscription
	notifySub     *eventbus.Subscription
	notifyIDs     []string
	views         map[string]*View
	activeChannel string
	focused       bool
}

// New creates the session of self. If broadcaster is nil, typing presence is
// relayed over the change feed.
func New(
	ctx context.Context,
	self model.Identity,
	caller client.StoreCaller,
	bus *eventbus.Bus,
	broadcaster presence.Broadcaster,
	notifier notification.Notifier,
) *Session {
	if broadcaster == nil {
		broadcaster = presence.NewBusBroadcaster(bus)
	}

	if notifier == nil {
		notifier = notification.NewLogNotifier()
	}

	return &Session{
		ctx:         ctx,
		self:        self,
		caller:      caller,
		bus:         bus,
		broadcaster: broadcaster,
		ledger:      unread.NewLedger(ctx, self.UserID, caller),
		directory:   channel.NewDirectory(self, caller),
		dispatcher:  notification.NewDispatcher(self, notifier, caller),
		views:       make(map[string]*View),
		focused:     true,
	}
}

// Start subscribes the user topics, loads their state and connects the
// feed. A feed that cannot be reached yet is retried in the background.
func (s *Session) Start(ctx context.Context) error {
	directory := eventbus.HandlerFuncs{
		OnEvent: func(ctx context.Context, ev eventbus.Event) {
			s.directory.HandleEvent(ctx, ev)
			s.refreshNotifications(ctx)
		},
		OnGap: func(ctx context.Context) {
			s.directory.HandleGap(ctx)
			s.refreshNotifications(ctx)
		},
	}

	if err := s.subscribe(common.TopicChannels(s.self.UserID), s.directory.Filters(), directory); err != nil {
		return err
	}

	if err := s.subscribe(common.TopicUnread(s.self.UserID), s.ledger.Filters(), s.ledger); err != nil {
		return err
	}

	if err := s.directory.Load(ctx); err != nil {
		return err
	}

	if err := s.ledger.Reload(ctx); err != nil {
		return err
	}

	if err := s.dispatcher.LoadSettings(ctx); err != nil {
		xcontext.Logger(ctx).Warnf("Unable to load notification settings: %v", err)
	}

	s.refreshNotifications(ctx)

	if err := s.bus.Connect(ctx); err != nil {
		xcontext.Logger(ctx).Warnf("Change feed is not reachable yet, retrying: %v", err)
	}

	xcontext.Logger(ctx).Infof("Session of %s started", s.self.UserID)
	return nil
}

func (s *Session) subscribe(topic string, filters []eventbus.Filter, handler eventbus.Handler) error {
	sub, err := s.bus.Subscribe(topic, filters, handler)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	s.subs = append(s.subs, sub)
	s.mutex.Unlock()

	return nil
}

func (s *Session) Self() model.Identity {
	return s.self
}

func (s *Session) Unread() *unread.Ledger {
	return s.ledger
}

func (s *Session) Directory() *channel.Directory {
	return s.directory
}

func (s *Session) Dispatcher() *notification.Dispatcher {
	return s.dispatcher
}

// SetFocus reports whether the application is in the foreground.
func (s *Session) SetFocus(focused bool) {
	s.mutex.Lock()
	s.focused = focused
	active := s.activeChannel
	s.mutex.Unlock()

	s.dispatcher.SetFocus(active, focused)
}

func (s *Session) setActive(channelID string) {
	s.mutex.Lock()
	s.activeChannel = channelID
	focused := s.focused
	s.mutex.Unlock()

	s.dispatcher.SetFocus(channelID, focused)
}

// OpenChannel builds the view of a channel and loads its initial state. A
// channel can only be opened once at a time.
func (s *Session) OpenChannel(ctx context.Context, channelID string) (*View, error) {
	c, ok := s.directory.Get(channelID)
	if !ok {
		return nil, errorx.New(errorx.NotFound, "Not found channel")
	}

	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return nil, eventbus.ErrClosed
	}
	if _, ok := s.views[channelID]; ok {
		s.mutex.Unlock()
		return nil, errorx.New(errorx.AlreadyExists, "Channel is already open")
	}
	v := newView(ctx, s, c)
	s.views[channelID] = v
	s.mutex.Unlock()

	if err := v.open(ctx); err != nil {
		v.Close()
		return nil, err
	}

	s.setActive(channelID)
	xcontext.Logger(ctx).Infof("Opened channel %s", channelID)
	return v, nil
}

func (s *Session) View(channelID string) (*View, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	v, ok := s.views[channelID]
	return v, ok
}

func (s *Session) removeView(v *View) {
	s.mutex.Lock()
	if current, ok := s.views[v.channel.ID]; ok && current == v {
		delete(s.views, v.channel.ID)
	}
	clearActive := s.activeChannel == v.channel.ID
	s.mutex.Unlock()

	if clearActive {
		s.setActive("")
	}
}

// refreshNotifications keeps one subscription on the messages of every
// channel in the directory, used to notify about channels without a view.
func (s *Session) refreshNotifications(ctx context.Context) {
	ids := []string{}
	for _, c := range s.directory.Channels() {
		ids = append(ids, c.ID)
	}
	sort.Strings(ids)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed || slices.Equal(ids, s.notifyIDs) {
		return
	}

	if s.notifySub != nil {
		s.notifySub.Close()
		s.notifySub = nil
	}
	s.notifyIDs = ids

	if len(ids) == 0 {
		return
	}

	filters := make([]eventbus.Filter, 0, len(ids))
	for _, id := range ids {
		filters = append(filters, eventbus.Filter{Table: message.TableMessages, Column: "channel_id", Value: id})
	}

	handler := eventbus.HandlerFuncs{
		OnEvent: func(ctx context.Context, ev eventbus.Event) {
			s.route(ctx, ev, false)
		},
	}

	sub, err := s.bus.Subscribe(common.TopicNotifications(s.self.UserID), filters, handler)
	if err != nil {
		xcontext.Logger(ctx).Warnf("Unable to subscribe to notifications: %v", err)
		return
	}
	s.notifySub = sub
}

// route hands a new message to the directory and the dispatcher. Messages of
// an open channel are routed by its view, so fromView tells which of the two
// subscriptions saw the event.
func (s *Session) route(ctx context.Context, ev eventbus.Event, fromView bool) {
	if ev.Table != message.TableMessages || ev.Op != eventbus.OpInsert {
		return
	}

	var msg entity.Message
	if err := ev.Row.Decode(&msg); err != nil || msg.ID == "" {
		return
	}

	if !fromView {
		if _, open := s.View(msg.ChannelID); open {
			return
		}
	}

	s.directory.Touch(msg)

	c, ok := s.directory.Get(msg.ChannelID)
	if !ok {
		return
	}

	s.dispatcher.Dispatch(ctx, msg, c)
}

// Close closes every view, then the user subscriptions and the feed.
func (s *Session) Close() {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return
	}
	s.closed = true
	views := make([]*View, 0, len(s.views))
	for _, v := range s.views {
		views = append(views, v)
	}
	subs := s.subs
	if s.notifySub != nil {
		subs = append(subs, s.notifySub)
	}
	s.mutex.Unlock()

	for _, v := range views {
		v.Close()
	}

	for _, sub := range subs {
		sub.Close()
	}

	s.ledger.Close()
	s.bus.Close()

	xcontext.Logger(s.ctx).Infof("Session of %s closed", s.self.UserID)
}
