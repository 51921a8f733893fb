package moderation

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/questx-lab/chatsync/internal/client"
	"github.com/questx-lab/chatsync/internal/common"
	"github.com/questx-lab/chatsync/internal/domain/eventbus"
	"github.com/questx-lab/chatsync/internal/domain/role"
	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/internal/model"
	"github.com/questx-lab/chatsync/pkg/errorx"
	"github.com/questx-lab/chatsync/pkg/xcontext"
)

const (
	TableRateLimits  = "rate_limits"
	TableMuteRecords = "mute_records"
)

type Caller interface {
	client.ModerationCaller
	DeleteMessage(ctx context.Context, req *model.DeleteMessageRequest) (*model.DeleteMessageResponse, error)
}

// Decision is the outcome of a send check.
type Decision struct {
	Allowed    bool
	Reason     string
	RetryAfter time.Duration

	// FailedOpen is set when the rate check could not be reached and the
	// send was allowed anyway.
	FailedOpen bool
}

// Engine caches the rate limit policy and the mutes of one channel, and
// guards the moderation actions of the current user.
type Engine struct {
	channelID string
	self      model.Identity
	caller    Caller
	roles     *role.Store

	mutex  sync.Mutex
	policy *entity.RateLimitPolicy
	mutes  map[string]entity.MuteRecord
	signal *common.Signal

	now func() time.Time
}

func NewEngine(channelID string, self model.Identity, caller Caller, roles *role.Store) *Engine {
	return &Engine{
		channelID: channelID,
		self:      self,
		caller:    caller,
		roles:     roles,
		mutes:     make(map[string]entity.MuteRecord),
		signal:    common.NewSignal(),
		now:       time.Now,
	}
}

func (e *Engine) Filters() []eventbus.Filter {
	return []eventbus.Filter{
		{Table: TableRateLimits, Column: "channel_id", Value: e.channelID},
		{Table: TableMuteRecords, Column: "channel_id", Value: e.channelID},
	}
}

func (e *Engine) Updates() <-chan struct{} {
	return e.signal.C()
}

func (e *Engine) Load(ctx context.Context) error {
	resp, err := e.caller.GetModeration(ctx, &model.GetModerationRequest{ChannelID: e.channelID})
	if err != nil {
		return err
	}

	mutes := make(map[string]entity.MuteRecord, len(resp.Mutes))
	for _, m := range resp.Mutes {
		mutes[m.ID] = m
	}

	e.mutex.Lock()
	e.policy = resp.Policy
	e.mutes = mutes
	e.mutex.Unlock()

	e.signal.Notify()
	return nil
}

func (e *Engine) HandleEvent(ctx context.Context, ev eventbus.Event) {
	row := ev.Row
	if ev.Op == eventbus.OpDelete && ev.Old != nil {
		row = ev.Old
	}

	switch ev.Table {
	case TableRateLimits:
		var policy entity.RateLimitPolicy
		if err := row.Decode(&policy); err != nil {
			xcontext.Logger(ctx).Errorf("Cannot decode rate limit row: %v", err)
			return
		}

		e.mutex.Lock()
		if ev.Op == eventbus.OpDelete {
			e.policy = nil
		} else {
			e.policy = &policy
		}
		e.mutex.Unlock()

	case TableMuteRecords:
		var mute entity.MuteRecord
		if err := row.Decode(&mute); err != nil || mute.ID == "" {
			xcontext.Logger(ctx).Errorf("Cannot decode mute row: %v", err)
			return
		}

		e.mutex.Lock()
		if ev.Op == eventbus.OpDelete {
			delete(e.mutes, mute.ID)
		} else {
			e.mutes[mute.ID] = mute
		}
		e.mutex.Unlock()

	default:
		return
	}

	e.signal.Notify()
}

func (e *Engine) HandleGap(ctx context.Context) {
	if err := e.Load(ctx); err != nil {
		xcontext.Logger(ctx).Warnf("Unable to reload moderation of %s: %v", e.channelID, err)
	}
}

// Policy returns a copy of the rate limit policy, or nil if the channel has
// none.
func (e *Engine) Policy() *entity.RateLimitPolicy {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.policy == nil {
		return nil
	}

	policy := *e.policy
	if policy.SlowmodeSeconds != nil {
		seconds := *policy.SlowmodeSeconds
		policy.SlowmodeSeconds = &seconds
	}

	return &policy
}

// SlowmodeText explains the slowmode of the channel, or returns an empty
// string when slowmode is disabled.
func (e *Engine) SlowmodeText() string {
	slowmode := e.Policy().Slowmode()
	if slowmode <= 0 {
		return ""
	}

	return fmt.Sprintf("Slowmode is enabled. Members can send one message every %s", slowmode)
}

// Mute returns the active mute of userID. Expired records are ignored.
func (e *Engine) Mute(userID string) (entity.MuteRecord, bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	now := e.now()
	var found *entity.MuteRecord
	for _, m := range e.mutes {
		if m.UserID != userID || !m.Active(now) {
			continue
		}

		m := m
		// An indefinite mute outlasts any other.
		if found == nil || m.ExpiresAt == nil ||
			(found.ExpiresAt != nil && m.ExpiresAt.After(*found.ExpiresAt)) {
			found = &m
		}
	}

	if found == nil {
		return entity.MuteRecord{}, false
	}

	return *found, true
}

func (e *Engine) IsMuted(userID string) bool {
	_, ok := e.Mute(userID)
	return ok
}

// Mutes lists the active mutes of the channel.
func (e *Engine) Mutes() []entity.MuteRecord {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	now := e.now()
	result := []entity.MuteRecord{}
	for _, m := range e.mutes {
		if m.Active(now) {
			result = append(result, m)
		}
	}

	return result
}

// CheckSend decides whether the current user may send a message now. A muted
// user is refused without asking the store. If the rate check cannot be
// reached, the send is allowed.
func (e *Engine) CheckSend(ctx context.Context) (Decision, error) {
	if mute, ok := e.Mute(e.self.UserID); ok {
		return Decision{Reason: mute.Notice()}, errorx.New(errorx.Muted, "%s", mute.Notice())
	}

	resp, err := e.caller.CheckRateLimit(ctx, &model.CheckRateLimitRequest{ChannelID: e.channelID})
	if err != nil {
		if errorx.Is(err, errorx.Transport) || errorx.Is(err, errorx.Unavailable) {
			common.PromCounters[common.RateCheckFailOpen].WithLabelValues().Inc()
			xcontext.Logger(ctx).Warnf("Rate check of %s failed, allowing send: %v", e.channelID, err)
			return Decision{Allowed: true, FailedOpen: true}, nil
		}

		return Decision{}, err
	}

	if resp.Muted {
		reason := resp.Reason
		if reason == "" {
			reason = "You are muted in this channel"
		}

		return Decision{Reason: reason}, errorx.New(errorx.Muted, "%s", reason)
	}

	if !resp.Allowed {
		reason := resp.Reason
		if reason == "" {
			reason = "You are sending messages too fast"
		}

		d := Decision{Reason: reason, RetryAfter: time.Duration(resp.RetryAfter) * time.Second}
		return d, errorx.New(errorx.TooManyRequests, "%s", reason)
	}

	return Decision{Allowed: true}, nil
}

// MuteUser mutes userID. A nil duration mutes indefinitely.
func (e *Engine) MuteUser(ctx context.Context, userID, reason string, duration *time.Duration) (*entity.MuteRecord, error) {
	if err := common.CanModerate(e.roles.MyRole(), e.roles.Role(userID), common.MuteMember); err != nil {
		return nil, err
	}

	var minutes *int
	if duration != nil {
		if *duration <= 0 {
			return nil, errorx.New(errorx.BadRequest, "Mute duration must be positive")
		}

		m := int(math.Ceil(duration.Minutes()))
		minutes = &m
	}

	resp, err := e.caller.Mute(ctx, &model.MuteRequest{
		ChannelID:       e.channelID,
		UserID:          userID,
		Reason:          strings.TrimSpace(reason),
		DurationMinutes: minutes,
	})
	if err != nil {
		return nil, err
	}

	mute := resp.Mute
	if mute.ID != "" {
		e.mutex.Lock()
		e.mutes[mute.ID] = mute
		e.mutex.Unlock()
		e.signal.Notify()
	}

	return &mute, nil
}

func (e *Engine) UnmuteUser(ctx context.Context, userID string) error {
	if err := common.CanModerate(e.roles.MyRole(), e.roles.Role(userID), common.MuteMember); err != nil {
		return err
	}

	_, err := e.caller.Unmute(ctx, &model.UnmuteRequest{ChannelID: e.channelID, UserID: userID})
	if err != nil {
		return err
	}

	e.mutex.Lock()
	for id, m := range e.mutes {
		if m.UserID == userID {
			delete(e.mutes, id)
		}
	}
	e.mutex.Unlock()

	e.signal.Notify()
	return nil
}

// Warn issues a warning and returns the number of warnings of userID in the
// channel.
func (e *Engine) Warn(ctx context.Context, userID, reason string) (int, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return 0, errorx.New(errorx.BadRequest, "A reason is required to warn a member")
	}

	if err := common.CanModerate(e.roles.MyRole(), e.roles.Role(userID), common.WarnMember); err != nil {
		return 0, err
	}

	resp, err := e.caller.Warn(ctx, &model.WarnRequest{
		ChannelID: e.channelID,
		UserID:    userID,
		Reason:    reason,
	})
	if err != nil {
		return 0, err
	}

	return resp.WarningCount, nil
}

func (e *Engine) Kick(ctx context.Context, userID string) error {
	return e.roles.Kick(ctx, userID)
}

func (e *Engine) SetRole(ctx context.Context, userID string, newRole entity.Role) error {
	return e.roles.SetRole(ctx, userID, newRole)
}

// CheckDelete refuses to delete a message of another member unless the
// current user is at least moderator.
func (e *Engine) CheckDelete(senderID string) error {
	if senderID == e.self.UserID {
		return nil
	}

	return e.roles.Verify(common.DeleteAnyMessage)
}

func (e *Engine) DeleteMessage(ctx context.Context, messageID, senderID string) error {
	if err := e.CheckDelete(senderID); err != nil {
		return err
	}

	_, err := e.caller.DeleteMessage(ctx, &model.DeleteMessageRequest{MessageID: messageID})
	return err
}

// UpdateRateLimits replaces the policy of the channel. A nil slowmode
// disables it.
func (e *Engine) UpdateRateLimits(ctx context.Context, perMinute, perHour int, slowmodeSeconds *int) error {
	if err := e.roles.Verify(common.UpdateRateLimits); err != nil {
		return err
	}

	if perMinute < 0 || perHour < 0 || (slowmodeSeconds != nil && *slowmodeSeconds < 0) {
		return errorx.New(errorx.BadRequest, "Rate limits cannot be negative")
	}

	_, err := e.caller.UpdateRateLimits(ctx, &model.UpdateRateLimitsRequest{
		ChannelID:         e.channelID,
		MessagesPerMinute: perMinute,
		MessagesPerHour:   perHour,
		SlowmodeSeconds:   slowmodeSeconds,
	})
	if err != nil {
		return err
	}

	var slowmode *int
	if slowmodeSeconds != nil {
		seconds := *slowmodeSeconds
		slowmode = &seconds
	}

	e.mutex.Lock()
	e.policy = &entity.RateLimitPolicy{
		ChannelID:         e.channelID,
		MessagesPerMinute: perMinute,
		MessagesPerHour:   perHour,
		SlowmodeSeconds:   slowmode,
		UpdatedBy:         e.self.UserID,
		UpdatedAt:         e.now(),
	}
	e.mutex.Unlock()

	e.signal.Notify()
	return nil
}
