package session

import (
	"context"
	"sync"

	"github.com/questx-lab/chatsync/internal/common"
	"github.com/questx-lab/chatsync/internal/domain/eventbus"
	"github.com/questx-lab/chatsync/internal/domain/message"
	"github.com/questx-lab/chatsync/internal/domain/moderation"
	"github.com/questx-lab/chatsync/internal/domain/presence"
	"github.com/questx-lab/chatsync/internal/domain/receipt"
	"github.com/questx-lab/chatsync/internal/domain/role"
	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/pkg/errorx"
	"github.com/questx-lab/chatsync/pkg/xcontext"
)

// View is the state of one open channel. Every cache it holds lives and dies
// with the view.
type View struct {
	ctx     context.Context
	session *Session
	channel entity.Channel

	window     *message.Window
	presence   *presence.Tracker
	receipts   *receipt.Tracker
	roles      *role.Store
	moderation *moderation.Engine

	mutex     sync.Mutex
	subs      []*eventbus.Subscription
	closeOnce sync.Once
}

func newView(ctx context.Context, s *Session, c entity.Channel) *View {
	roles := role.NewStore(c.ID, s.self, s.caller)
	return &View{
		ctx:        ctx,
		session:    s,
		channel:    c,
		window:     message.NewWindow(ctx, c.ID, s.self.UserID, s.caller),
		presence:   presence.NewTracker(ctx, c.ID, s.self, s.broadcaster),
		receipts:   receipt.NewTracker(c.ID, s.self, s.caller),
		roles:      roles,
		moderation: moderation.NewEngine(c.ID, s.self, s.caller, roles),
	}
}

func (v *View) open(ctx context.Context) error {
	messages := eventbus.HandlerFuncs{
		OnEvent: func(ctx context.Context, ev eventbus.Event) {
			v.window.HandleEvent(ctx, ev)
			v.session.route(ctx, ev, true)
		},
		OnGap: func(ctx context.Context) {
			v.window.HandleGap(ctx)
			v.loadReceipts(ctx)
		},
	}

	topics := []struct {
		topic   string
		filters []eventbus.Filter
		handler eventbus.Handler
	}{
		{common.TopicMembers(v.channel.ID), v.roles.Filters(), v.roles},
		{common.TopicModeration(v.channel.ID), v.moderation.Filters(), v.moderation},
		{common.TopicMessages(v.channel.ID), v.window.Filters(), messages},
		{common.TopicReceipts(v.channel.ID), v.receipts.Filters(), v.receipts},
	}

	for _, t := range topics {
		sub, err := v.session.bus.Subscribe(t.topic, t.filters, t.handler)
		if err != nil {
			return err
		}

		v.mutex.Lock()
		v.subs = append(v.subs, sub)
		v.mutex.Unlock()
	}

	if err := v.roles.Load(ctx); err != nil {
		return err
	}

	if err := v.moderation.Load(ctx); err != nil {
		return err
	}

	if err := v.window.LoadInitial(ctx); err != nil {
		return err
	}

	v.loadReceipts(ctx)

	return v.presence.Start(ctx)
}

func (v *View) loadReceipts(ctx context.Context) {
	if err := v.receipts.LoadVisible(ctx, v.visibleIDs()); err != nil {
		xcontext.Logger(ctx).Warnf("Unable to load receipts of %s: %v", v.channel.ID, err)
	}
}

func (v *View) visibleIDs() []string {
	snapshot := v.window.Snapshot()
	ids := make([]string, 0, len(snapshot.Messages))
	for _, msg := range snapshot.Messages {
		ids = append(ids, msg.ID)
	}
	return ids
}

func (v *View) Channel() entity.Channel {
	if c, ok := v.session.directory.Get(v.channel.ID); ok {
		return c
	}

	return v.channel
}

func (v *View) Messages() *message.Window {
	return v.window
}

func (v *View) Presence() *presence.Tracker {
	return v.presence
}

func (v *View) Receipts() *receipt.Tracker {
	return v.receipts
}

func (v *View) Roles() *role.Store {
	return v.roles
}

func (v *View) Moderation() *moderation.Engine {
	return v.moderation
}

// Send checks the rate limits and mutes before posting. A refused send
// returns the reason as a TooManyRequests or Muted error.
func (v *View) Send(ctx context.Context, body string, mentions []string) (*entity.Message, error) {
	if v.Channel().Archived {
		return nil, errorx.New(errorx.BadRequest, "Channel is archived")
	}

	if _, err := v.moderation.CheckSend(ctx); err != nil {
		return nil, err
	}

	msg, err := v.window.Send(ctx, body, mentions)
	if err != nil {
		return nil, err
	}

	if v.presence.IsTyping() {
		v.presence.StopTyping(ctx)
	}

	return msg, nil
}

// Reply posts in thread under the same checks as Send.
func (v *View) Reply(ctx context.Context, thread *message.Thread, body string, mentions []string) (*entity.Message, error) {
	if _, err := v.moderation.CheckSend(ctx); err != nil {
		return nil, err
	}

	return thread.Reply(ctx, body, mentions)
}

// Delete removes an own message optimistically. Messages of other members
// go through the moderation checks and disappear once the store confirms.
func (v *View) Delete(ctx context.Context, messageID string) error {
	msg, ok := v.window.Message(messageID)
	if !ok {
		return errorx.New(errorx.NotFound, "Message is not loaded")
	}

	if msg.SenderID == v.session.self.UserID {
		return v.window.Delete(ctx, messageID)
	}

	return v.moderation.DeleteMessage(ctx, messageID, msg.SenderID)
}

// MarkRead clears the unread counter of the channel and records the current
// user as a reader of the visible messages of others.
func (v *View) MarkRead(ctx context.Context) error {
	if err := v.session.ledger.MarkChannelRead(ctx, v.channel.ID); err != nil {
		return err
	}

	ids := []string{}
	for _, msg := range v.window.Snapshot().Messages {
		if msg.SenderID != v.session.self.UserID {
			ids = append(ids, msg.ID)
		}
	}

	return v.receipts.MarkMultipleAsRead(ctx, ids)
}

// Close leaves every topic of the view and stops its timers.
func (v *View) Close() {
	v.closeOnce.Do(func() {
		v.mutex.Lock()
		subs := v.subs
		v.subs = nil
		v.mutex.Unlock()

		for _, sub := range subs {
			sub.Close()
		}

		v.presence.Close(v.ctx)
		v.session.removeView(v)

		xcontext.Logger(v.ctx).Infof("Closed channel %s", v.channel.ID)
	})
}
