package devstore

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/questx-lab/chatsync/internal/common"
	"github.com/questx-lab/chatsync/internal/domain/channel"
	"github.com/questx-lab/chatsync/internal/domain/eventbus"
	"github.com/questx-lab/chatsync/internal/domain/role"
	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/internal/model"
	"github.com/questx-lab/chatsync/pkg/enum"
	"github.com/questx-lab/chatsync/pkg/errorx"
	"github.com/questx-lab/chatsync/pkg/xcontext"
	"gorm.io/gorm"
)

func (s *Store) GetChannels(ctx context.Context, req *model.GetChannelsRequest) (*model.GetChannelsResponse, error) {
	return reply(s.getChannels(ctx, req))
}

func (s *Store) getChannels(ctx context.Context, req *model.GetChannelsRequest) (*model.GetChannelsResponse, error) {
	self, err := requestIdentity(ctx)
	if err != nil {
		return nil, err
	}

	channels, err := s.channelRepo.GetAll(ctx, req.IncludeArchived)
	if err != nil {
		return nil, internal(ctx, "Cannot get channels: %v", err)
	}

	visible := []entity.Channel{}
	for _, c := range channels {
		if c.IsMember(self.UserID) {
			visible = append(visible, c)
		}
	}

	return &model.GetChannelsResponse{Channels: visible}, nil
}

func (s *Store) CreateChannel(ctx context.Context, req *model.CreateChannelRequest) (*model.CreateChannelResponse, error) {
	return reply(s.createChannel(ctx, req))
}

func (s *Store) createChannel(ctx context.Context, req *model.CreateChannelRequest) (*model.CreateChannelResponse, error) {
	self, err := requestIdentity(ctx)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errorx.New(errorx.BadRequest, "Channel name is required")
	}

	kind, err := enum.ToEnum[entity.ChannelKind](req.Kind)
	if err != nil || kind == entity.ChannelDirect {
		return nil, errorx.New(errorx.BadRequest, "Invalid channel kind %s", req.Kind)
	}

	now := s.now()
	result := entity.Channel{
		ID:             uuid.NewString(),
		Kind:           kind,
		Name:           name,
		Description:    req.Description,
		CreatedBy:      self.UserID,
		Members:        uniqueMembers(self.UserID, req.Members...),
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.transact(ctx, func(ctx context.Context, c *changes) error {
		if err := s.channelRepo.Create(ctx, &result); err != nil {
			return internal(ctx, "Cannot create channel: %v", err)
		}
		c.add(ctx, channel.TableChannels, eventbus.OpInsert, result, nil)

		for _, userID := range result.Members {
			member := entity.ChannelMember{
				ChannelID: result.ID,
				UserID:    userID,
				Role:      entity.RoleMember,
				JoinedAt:  now,
			}

			if userID == self.UserID {
				member.Role = entity.RoleOwner
				member.DisplayName = self.DisplayName
			}

			if err := s.memberRepo.Upsert(ctx, &member); err != nil {
				return internal(ctx, "Cannot create member: %v", err)
			}
			c.add(ctx, role.TableChannelMembers, eventbus.OpInsert, member, nil)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	xcontext.Logger(ctx).Infof("Channel %s (%s) created by %s", result.ID, result.Kind, self.UserID)
	return &model.CreateChannelResponse{Channel: result}, nil
}

func (s *Store) CreateDirectChannel(
	ctx context.Context, req *model.CreateDirectChannelRequest,
) (*model.CreateDirectChannelResponse, error) {
	return reply(s.createDirectChannel(ctx, req))
}

func (s *Store) createDirectChannel(
	ctx context.Context, req *model.CreateDirectChannelRequest,
) (*model.CreateDirectChannelResponse, error) {
	self, err := requestIdentity(ctx)
	if err != nil {
		return nil, err
	}

	if req.UserID == "" || req.UserID == self.UserID {
		return nil, errorx.New(errorx.BadRequest, "Invalid direct message recipient")
	}

	var result entity.Channel
	err = s.transact(ctx, func(ctx context.Context, c *changes) error {
		existing, err := s.channelRepo.GetDirect(ctx, self.UserID, req.UserID)
		if err == nil {
			result = *existing
			return nil
		}

		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return internal(ctx, "Cannot get direct channel: %v", err)
		}

		members := []string{self.UserID, req.UserID}
		sort.Strings(members)

		now := s.now()
		result = entity.Channel{
			ID:             uuid.NewString(),
			Kind:           entity.ChannelDirect,
			CreatedBy:      self.UserID,
			Members:        members,
			LastActivityAt: now,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		if err := s.channelRepo.Create(ctx, &result); err != nil {
			return internal(ctx, "Cannot create direct channel: %v", err)
		}
		c.add(ctx, channel.TableChannels, eventbus.OpInsert, result, nil)

		names := map[string]string{self.UserID: self.DisplayName, req.UserID: req.DisplayName}
		for _, userID := range members {
			member := entity.ChannelMember{
				ChannelID:   result.ID,
				UserID:      userID,
				Role:        entity.RoleMember,
				DisplayName: names[userID],
				JoinedAt:    now,
			}

			if err := s.memberRepo.Upsert(ctx, &member); err != nil {
				return internal(ctx, "Cannot create member: %v", err)
			}
			c.add(ctx, role.TableChannelMembers, eventbus.OpInsert, member, nil)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &model.CreateDirectChannelResponse{Channel: result}, nil
}

func (s *Store) UpdateChannel(ctx context.Context, req *model.UpdateChannelRequest) (*model.UpdateChannelResponse, error) {
	return reply(s.updateChannel(ctx, req))
}

func (s *Store) updateChannel(ctx context.Context, req *model.UpdateChannelRequest) (*model.UpdateChannelResponse, error) {
	self, err := requestIdentity(ctx)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errorx.New(errorx.BadRequest, "Channel name is required")
	}

	err = s.transact(ctx, func(ctx context.Context, c *changes) error {
		result, myRole, err := s.access(ctx, req.ChannelID, self.UserID)
		if err != nil {
			return err
		}

		if err := common.Verify(myRole, common.UpdateChannel); err != nil {
			return err
		}

		old := *result
		result.Name = name
		result.Description = req.Description
		result.UpdatedAt = s.now()
		if err := s.channelRepo.Save(ctx, result); err != nil {
			return internal(ctx, "Cannot update channel: %v", err)
		}

		c.add(ctx, channel.TableChannels, eventbus.OpUpdate, result, old)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &model.UpdateChannelResponse{}, nil
}

func (s *Store) ArchiveChannel(ctx context.Context, req *model.ArchiveChannelRequest) (*model.ArchiveChannelResponse, error) {
	return reply(s.archiveChannel(ctx, req))
}

func (s *Store) archiveChannel(ctx context.Context, req *model.ArchiveChannelRequest) (*model.ArchiveChannelResponse, error) {
	self, err := requestIdentity(ctx)
	if err != nil {
		return nil, err
	}

	err = s.transact(ctx, func(ctx context.Context, c *changes) error {
		result, myRole, err := s.access(ctx, req.ChannelID, self.UserID)
		if err != nil {
			return err
		}

		if err := common.Verify(myRole, common.ArchiveChannel); err != nil {
			return err
		}

		if result.Archived == req.Archived {
			return nil
		}

		old := *result
		result.Archived = req.Archived
		result.UpdatedAt = s.now()
		if err := s.channelRepo.Save(ctx, result); err != nil {
			return internal(ctx, "Cannot archive channel: %v", err)
		}

		c.add(ctx, channel.TableChannels, eventbus.OpUpdate, result, old)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &model.ArchiveChannelResponse{}, nil
}

func (s *Store) DeleteChannel(ctx context.Context, req *model.DeleteChannelRequest) (*model.DeleteChannelResponse, error) {
	return reply(s.deleteChannel(ctx, req))
}

// deleteChannel removes the channel with its messages, members and unread
// counters. Only the channel row is announced, subscribers drop the rest.
func (s *Store) deleteChannel(ctx context.Context, req *model.DeleteChannelRequest) (*model.DeleteChannelResponse, error) {
	self, err := requestIdentity(ctx)
	if err != nil {
		return nil, err
	}

	err = s.transact(ctx, func(ctx context.Context, c *changes) error {
		result, myRole, err := s.access(ctx, req.ChannelID, self.UserID)
		if err != nil {
			return err
		}

		if err := common.Verify(myRole, common.DeleteChannel); err != nil {
			return err
		}

		if err := s.messageRepo.DeleteByChannelID(ctx, result.ID); err != nil {
			return internal(ctx, "Cannot delete messages: %v", err)
		}

		if err := s.memberRepo.DeleteByChannelID(ctx, result.ID); err != nil {
			return internal(ctx, "Cannot delete members: %v", err)
		}

		if err := s.unreadRepo.DeleteByChannelID(ctx, result.ID); err != nil {
			return internal(ctx, "Cannot delete unread status: %v", err)
		}

		if err := s.channelRepo.DeleteByID(ctx, result.ID); err != nil {
			return internal(ctx, "Cannot delete channel: %v", err)
		}

		c.add(ctx, channel.TableChannels, eventbus.OpDelete, result, result)
		return nil
	})
	if err != nil {
		return nil, err
	}

	xcontext.Logger(ctx).Infof("Channel %s deleted by %s", req.ChannelID, self.UserID)
	return &model.DeleteChannelResponse{}, nil
}

func (s *Store) GetNotificationSettings(
	ctx context.Context, req *model.GetNotificationSettingsRequest,
) (*model.GetNotificationSettingsResponse, error) {
	return reply(s.getNotificationSettings(ctx, req))
}

func (s *Store) getNotificationSettings(
	ctx context.Context, _ *model.GetNotificationSettingsRequest,
) (*model.GetNotificationSettingsResponse, error) {
	self, err := requestIdentity(ctx)
	if err != nil {
		return nil, err
	}

	settings, err := s.settingRepo.GetByUserID(ctx, self.UserID)
	if err != nil {
		return nil, internal(ctx, "Cannot get notification settings: %v", err)
	}

	return &model.GetNotificationSettingsResponse{Settings: settings}, nil
}

func (s *Store) SetNotificationLevel(
	ctx context.Context, req *model.SetNotificationLevelRequest,
) (*model.SetNotificationLevelResponse, error) {
	return reply(s.setNotificationLevel(ctx, req))
}

func (s *Store) setNotificationLevel(
	ctx context.Context, req *model.SetNotificationLevelRequest,
) (*model.SetNotificationLevelResponse, error) {
	self, err := requestIdentity(ctx)
	if err != nil {
		return nil, err
	}

	level, err := enum.ToEnum[entity.NotificationLevel](req.Level)
	if err != nil {
		return nil, errorx.New(errorx.BadRequest, "Invalid notification level %s", req.Level)
	}

	if _, _, err := s.access(ctx, req.ChannelID, self.UserID); err != nil {
		return nil, err
	}

	err = s.settingRepo.Upsert(ctx, &entity.NotificationSetting{
		UserID:    self.UserID,
		ChannelID: req.ChannelID,
		Level:     level,
	})
	if err != nil {
		return nil, internal(ctx, "Cannot set notification level: %v", err)
	}

	return &model.SetNotificationLevelResponse{}, nil
}

// uniqueMembers returns owner followed by the other ids, without blanks or
// duplicates.
func uniqueMembers(owner string, others ...string) []string {
	seen := map[string]bool{owner: true}
	result := []string{owner}
	for _, id := range others {
		if id == "" || seen[id] {
			continue
		}

		seen[id] = true
		result = append(result, id)
	}

	return result
}
