package notification

import (
	"context"
	"sync"

	"github.com/questx-lab/chatsync/internal/client"
	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/internal/model"
	"github.com/questx-lab/chatsync/pkg/enum"
	"github.com/questx-lab/chatsync/pkg/errorx"
	"github.com/questx-lab/chatsync/pkg/xcontext"
)

// Reason explains why a message was or was not notified.
type Reason string

var (
	Delivered       = enum.New(Reason("delivered"))
	OwnMessage      = enum.New(Reason("own_message"))
	ThreadReply     = enum.New(Reason("thread_reply"))
	ActiveChannel   = enum.New(Reason("active_channel"))
	Disabled        = enum.New(Reason("disabled"))
	ChannelMuted    = enum.New(Reason("channel_muted"))
	NotMentioned    = enum.New(Reason("not_mentioned"))
	NotifierFailure = enum.New(Reason("notifier_failure"))
)

// Dispatcher decides which incoming messages deserve a notification and
// hands them to a Notifier.
type Dispatcher struct {
	self     model.Identity
	notifier Notifier
	caller   client.ChannelCaller

	mutex         sync.Mutex
	enabled       bool
	focused       bool
	activeChannel string
	levels        map[string]entity.NotificationLevel
}

func NewDispatcher(self model.Identity, notifier Notifier, caller client.ChannelCaller) *Dispatcher {
	return &Dispatcher{
		self:     self,
		notifier: notifier,
		caller:   caller,
		enabled:  true,
		levels:   make(map[string]entity.NotificationLevel),
	}
}

func (d *Dispatcher) LoadSettings(ctx context.Context) error {
	resp, err := d.caller.GetNotificationSettings(ctx, &model.GetNotificationSettingsRequest{})
	if err != nil {
		return err
	}

	levels := make(map[string]entity.NotificationLevel, len(resp.Settings))
	for _, s := range resp.Settings {
		levels[s.ChannelID] = s.Level
	}

	d.mutex.Lock()
	d.levels = levels
	d.mutex.Unlock()

	return nil
}

func (d *Dispatcher) SetLevel(ctx context.Context, channelID string, level entity.NotificationLevel) error {
	if _, err := enum.ToEnum[entity.NotificationLevel](string(level)); err != nil {
		return errorx.New(errorx.BadRequest, "Invalid notification level %s", level)
	}

	_, err := d.caller.SetNotificationLevel(ctx, &model.SetNotificationLevelRequest{
		ChannelID: channelID,
		Level:     string(level),
	})
	if err != nil {
		return err
	}

	d.mutex.Lock()
	d.levels[channelID] = level
	d.mutex.Unlock()

	return nil
}

func (d *Dispatcher) Level(channelID string) entity.NotificationLevel {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if level, ok := d.levels[channelID]; ok {
		return level
	}

	return entity.NotifyAll
}

func (d *Dispatcher) SetEnabled(enabled bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.enabled = enabled
}

// SetFocus records which channel is displayed and whether the application
// has the focus.
func (d *Dispatcher) SetFocus(activeChannel string, focused bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.activeChannel = activeChannel
	d.focused = focused
}

// Evaluate applies the suppression rules to a new message without notifying.
func (d *Dispatcher) Evaluate(msg entity.Message) Reason {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	mentioned := msg.Mentioned(d.self.UserID)
	switch {
	case msg.SenderID == d.self.UserID:
		return OwnMessage
	case msg.IsReply() && !mentioned:
		return ThreadReply
	case d.focused && msg.ChannelID == d.activeChannel:
		return ActiveChannel
	case !d.enabled:
		return Disabled
	}

	switch d.levels[msg.ChannelID] {
	case entity.NotifyNone:
		return ChannelMuted
	case entity.NotifyMentions:
		if !mentioned {
			return NotMentioned
		}
	}

	return Delivered
}

// Dispatch notifies msg unless one of the suppression rules applies.
func (d *Dispatcher) Dispatch(ctx context.Context, msg entity.Message, channel entity.Channel) Reason {
	reason := d.Evaluate(msg)
	if reason != Delivered {
		xcontext.Logger(ctx).Debugf("Notification of %s suppressed: %s", msg.ID, reason)
		return reason
	}

	n := newNotification(msg, channel, msg.Mentioned(d.self.UserID))
	if err := d.notifier.Notify(ctx, n); err != nil {
		xcontext.Logger(ctx).Warnf("Unable to notify message %s: %v", msg.ID, err)
		return NotifierFailure
	}

	return Delivered
}
