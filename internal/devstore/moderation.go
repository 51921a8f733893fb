package devstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/questx-lab/chatsync/internal/common"
	"github.com/questx-lab/chatsync/internal/domain/eventbus"
	"github.com/questx-lab/chatsync/internal/domain/moderation"
	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/internal/model"
	"github.com/questx-lab/chatsync/pkg/errorx"
	"github.com/questx-lab/chatsync/pkg/xcontext"
	"gorm.io/gorm"
)

func (s *Store) GetModeration(ctx context.Context, req *model.GetModerationRequest) (*model.GetModerationResponse, error) {
	return reply(s.getModeration(ctx, req))
}

func (s *Store) getModeration(ctx context.Context, req *model.GetModerationRequest) (*model.GetModerationResponse, error) {
	self, err := requestIdentity(ctx)
	if err != nil {
		return nil, err
	}

	if _, _, err := s.access(ctx, req.ChannelID, self.UserID); err != nil {
		return nil, err
	}

	policy, err := s.policy(ctx, req.ChannelID)
	if err != nil {
		return nil, err
	}

	mutes, err := s.moderationRepo.GetMutes(ctx, req.ChannelID)
	if err != nil {
		return nil, internal(ctx, "Cannot get mutes: %v", err)
	}

	now := s.now()
	active := []entity.MuteRecord{}
	for _, m := range mutes {
		if m.Active(now) {
			active = append(active, m)
		}
	}

	return &model.GetModerationResponse{Policy: policy, Mutes: active}, nil
}

func (s *Store) Mute(ctx context.Context, req *model.MuteRequest) (*model.MuteResponse, error) {
	return reply(s.mute(ctx, req))
}

func (s *Store) mute(ctx context.Context, req *model.MuteRequest) (*model.MuteResponse, error) {
	self, err := requestIdentity(ctx)
	if err != nil {
		return nil, err
	}

	if req.DurationMinutes != nil && *req.DurationMinutes <= 0 {
		return nil, errorx.New(errorx.BadRequest, "Mute duration must be positive")
	}

	var result entity.MuteRecord
	err = s.transact(ctx, func(ctx context.Context, c *changes) error {
		_, myRole, err := s.access(ctx, req.ChannelID, self.UserID)
		if err != nil {
			return err
		}

		targetRole, err := s.memberRole(ctx, req.ChannelID, req.UserID)
		if err != nil {
			return err
		}

		if err := common.CanModerate(myRole, targetRole, common.MuteMember); err != nil {
			return err
		}

		now := s.now()
		result = entity.MuteRecord{
			ID:        uuid.NewString(),
			ChannelID: req.ChannelID,
			UserID:    req.UserID,
			Reason:    req.Reason,
			MutedBy:   self.UserID,
			CreatedAt: now,
		}
		if req.DurationMinutes != nil {
			expiresAt := now.Add(time.Duration(*req.DurationMinutes) * time.Minute)
			result.ExpiresAt = &expiresAt
		}

		if err := s.moderationRepo.CreateMute(ctx, &result); err != nil {
			return internal(ctx, "Cannot create mute: %v", err)
		}

		c.add(ctx, moderation.TableMuteRecords, eventbus.OpInsert, result, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}

	xcontext.Logger(ctx).Infof("User %s muted in %s by %s", req.UserID, req.ChannelID, self.UserID)
	return &model.MuteResponse{Mute: result}, nil
}

func (s *Store) Unmute(ctx context.Context, req *model.UnmuteRequest) (*model.UnmuteResponse, error) {
	return reply(s.unmute(ctx, req))
}

func (s *Store) unmute(ctx context.Context, req *model.UnmuteRequest) (*model.UnmuteResponse, error) {
	self, err := requestIdentity(ctx)
	if err != nil {
		return nil, err
	}

	err = s.transact(ctx, func(ctx context.Context, c *changes) error {
		_, myRole, err := s.access(ctx, req.ChannelID, self.UserID)
		if err != nil {
			return err
		}

		targetRole, err := s.memberRole(ctx, req.ChannelID, req.UserID)
		if err != nil {
			return err
		}

		if err := common.CanModerate(myRole, targetRole, common.MuteMember); err != nil {
			return err
		}

		deleted, err := s.moderationRepo.DeleteMutes(ctx, req.ChannelID, req.UserID)
		if err != nil {
			return internal(ctx, "Cannot delete mutes: %v", err)
		}

		for _, m := range deleted {
			c.add(ctx, moderation.TableMuteRecords, eventbus.OpDelete, m, m)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &model.UnmuteResponse{}, nil
}

func (s *Store) Warn(ctx context.Context, req *model.WarnRequest) (*model.WarnResponse, error) {
	return reply(s.warn(ctx, req))
}

func (s *Store) warn(ctx context.Context, req *model.WarnRequest) (*model.WarnResponse, error) {
	self, err := requestIdentity(ctx)
	if err != nil {
		return nil, err
	}

	var count int64
	err = s.transact(ctx, func(ctx context.Context, _ *changes) error {
		_, myRole, err := s.access(ctx, req.ChannelID, self.UserID)
		if err != nil {
			return err
		}

		targetRole, err := s.memberRole(ctx, req.ChannelID, req.UserID)
		if err != nil {
			return err
		}

		if err := common.CanModerate(myRole, targetRole, common.WarnMember); err != nil {
			return err
		}

		err = s.moderationRepo.CreateWarning(ctx, &entity.Warning{
			ID:        uuid.NewString(),
			ChannelID: req.ChannelID,
			UserID:    req.UserID,
			Reason:    req.Reason,
			IssuedBy:  self.UserID,
			CreatedAt: s.now(),
		})
		if err != nil {
			return internal(ctx, "Cannot create warning: %v", err)
		}

		if count, err = s.moderationRepo.CountWarnings(ctx, req.ChannelID, req.UserID); err != nil {
			return internal(ctx, "Cannot count warnings: %v", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &model.WarnResponse{WarningCount: int(count)}, nil
}

func (s *Store) UpdateRateLimits(ctx context.Context, req *model.UpdateRateLimitsRequest) (*model.UpdateRateLimitsResponse, error) {
	return reply(s.updateRateLimits(ctx, req))
}

func (s *Store) updateRateLimits(ctx context.Context, req *model.UpdateRateLimitsRequest) (*model.UpdateRateLimitsResponse, error) {
	self, err := requestIdentity(ctx)
	if err != nil {
		return nil, err
	}

	if req.MessagesPerMinute < 0 || req.MessagesPerHour < 0 ||
		(req.SlowmodeSeconds != nil && *req.SlowmodeSeconds < 0) {
		return nil, errorx.New(errorx.BadRequest, "Rate limits must not be negative")
	}

	err = s.transact(ctx, func(ctx context.Context, c *changes) error {
		_, myRole, err := s.access(ctx, req.ChannelID, self.UserID)
		if err != nil {
			return err
		}

		if err := common.Verify(myRole, common.UpdateRateLimits); err != nil {
			return err
		}

		old, err := s.policy(ctx, req.ChannelID)
		if err != nil {
			return err
		}

		policy := entity.RateLimitPolicy{
			ChannelID:         req.ChannelID,
			MessagesPerMinute: req.MessagesPerMinute,
			MessagesPerHour:   req.MessagesPerHour,
			SlowmodeSeconds:   req.SlowmodeSeconds,
			UpdatedBy:         self.UserID,
			UpdatedAt:         s.now(),
		}
		if err := s.moderationRepo.UpsertPolicy(ctx, &policy); err != nil {
			return internal(ctx, "Cannot update rate limits: %v", err)
		}

		if old == nil {
			c.add(ctx, moderation.TableRateLimits, eventbus.OpInsert, policy, nil)
		} else {
			c.add(ctx, moderation.TableRateLimits, eventbus.OpUpdate, policy, old)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &model.UpdateRateLimitsResponse{}, nil
}

func (s *Store) CheckRateLimit(ctx context.Context, req *model.CheckRateLimitRequest) (*model.CheckRateLimitResponse, error) {
	return reply(s.checkRateLimit(ctx, req))
}

func (s *Store) checkRateLimit(ctx context.Context, req *model.CheckRateLimitRequest) (*model.CheckRateLimitResponse, error) {
	self, err := requestIdentity(ctx)
	if err != nil {
		return nil, err
	}

	if _, _, err := s.access(ctx, req.ChannelID, self.UserID); err != nil {
		return nil, err
	}

	d, err := s.decideRate(ctx, req.ChannelID, self.UserID)
	if err != nil {
		return nil, err
	}

	return &model.CheckRateLimitResponse{
		Allowed:    d.allowed,
		Muted:      d.muted,
		Reason:     d.reason,
		RetryAfter: d.retryAfter,
	}, nil
}

type rateDecision struct {
	allowed    bool
	muted      bool
	reason     string
	retryAfter int
}

// decideRate evaluates, in order, an active mute, slowmode and the per
// minute and per hour quotas of userID in the channel.
func (s *Store) decideRate(ctx context.Context, channelID, userID string) (rateDecision, error) {
	now := s.now()

	mute, err := s.moderationRepo.GetActiveMute(ctx, channelID, userID, now)
	if err == nil {
		return rateDecision{muted: true, reason: mute.Notice()}, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return rateDecision{}, internal(ctx, "Cannot get mute: %v", err)
	}

	policy, err := s.policy(ctx, channelID)
	if err != nil {
		return rateDecision{}, err
	}

	if policy == nil {
		return rateDecision{allowed: true}, nil
	}

	if slowmode := policy.Slowmode(); slowmode > 0 {
		latest, err := s.messageRepo.GetLatestBySender(ctx, channelID, userID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return rateDecision{}, internal(ctx, "Cannot get latest message: %v", err)
		}

		if err == nil {
			if remaining := slowmode - now.Sub(latest.CreatedAt); remaining > 0 {
				seconds := int(math.Ceil(remaining.Seconds()))
				return rateDecision{
					reason:     fmt.Sprintf("Slowmode is enabled. Wait %ds before sending another message", seconds),
					retryAfter: seconds,
				}, nil
			}
		}
	}

	quotas := []struct {
		limit  int
		window time.Duration
		unit   string
	}{
		{policy.MessagesPerMinute, time.Minute, "minute"},
		{policy.MessagesPerHour, time.Hour, "hour"},
	}

	for _, q := range quotas {
		if q.limit <= 0 {
			continue
		}

		count, err := s.messageRepo.CountBySenderSince(ctx, channelID, userID, now.Add(-q.window))
		if err != nil {
			return rateDecision{}, internal(ctx, "Cannot count messages: %v", err)
		}

		if count >= int64(q.limit) {
			return rateDecision{
				reason:     fmt.Sprintf("You can send at most %d messages per %s", q.limit, q.unit),
				retryAfter: int(q.window.Seconds()),
			}, nil
		}
	}

	return rateDecision{allowed: true}, nil
}

func (s *Store) enforceRateLimit(ctx context.Context, channelID, userID string) error {
	d, err := s.decideRate(ctx, channelID, userID)
	if err != nil {
		return err
	}

	if d.muted {
		return errorx.New(errorx.Muted, "%s", d.reason)
	}

	if !d.allowed {
		return errorx.New(errorx.TooManyRequests, "%s", d.reason)
	}

	return nil
}

func (s *Store) policy(ctx context.Context, channelID string) (*entity.RateLimitPolicy, error) {
	policy, err := s.moderationRepo.GetPolicy(ctx, channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, internal(ctx, "Cannot get rate limits: %v", err)
	}

	return policy, nil
}
