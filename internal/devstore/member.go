package devstore

import (
	"context"
	"errors"

	"github.com/questx-lab/chatsync/internal/common"
	"github.com/questx-lab/chatsync/internal/domain/channel"
	"github.com/questx-lab/chatsync/internal/domain/eventbus"
	"github.com/questx-lab/chatsync/internal/domain/role"
	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/internal/model"
	"github.com/questx-lab/chatsync/pkg/errorx"
	"github.com/questx-lab/chatsync/pkg/xcontext"
	"gorm.io/gorm"
)

// memberRole returns the stored role of userID, member when the user has
// no membership row.
func (s *Store) memberRole(ctx context.Context, channelID, userID string) (entity.Role, error) {
	member, err := s.memberRepo.Get(ctx, channelID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entity.RoleMember, nil
		}

		return "", internal(ctx, "Cannot get member: %v", err)
	}

	return member.Role, nil
}

func (s *Store) GetMembers(ctx context.Context, req *model.GetMembersRequest) (*model.GetMembersResponse, error) {
	return reply(s.getMembers(ctx, req))
}

func (s *Store) getMembers(ctx context.Context, req *model.GetMembersRequest) (*model.GetMembersResponse, error) {
	self, err := requestIdentity(ctx)
	if err != nil {
		return nil, err
	}

	if _, _, err := s.access(ctx, req.ChannelID, self.UserID); err != nil {
		return nil, err
	}

	members, err := s.memberRepo.GetByChannelID(ctx, req.ChannelID)
	if err != nil {
		return nil, internal(ctx, "Cannot get members: %v", err)
	}

	return &model.GetMembersResponse{Members: members}, nil
}

func (s *Store) AddMember(ctx context.Context, req *model.AddMemberRequest) (*model.AddMemberResponse, error) {
	return reply(s.addMember(ctx, req))
}

func (s *Store) addMember(ctx context.Context, req *model.AddMemberRequest) (*model.AddMemberResponse, error) {
	self, err := requestIdentity(ctx)
	if err != nil {
		return nil, err
	}

	if req.UserID == "" {
		return nil, errorx.New(errorx.BadRequest, "User id is required")
	}

	err = s.transact(ctx, func(ctx context.Context, c *changes) error {
		ch, myRole, err := s.access(ctx, req.ChannelID, self.UserID)
		if err != nil {
			return err
		}

		if ch.Kind == entity.ChannelDirect {
			return errorx.New(errorx.BadRequest, "Cannot add members to a direct channel")
		}

		// Anyone may join a public channel by themselves.
		joinPublic := ch.Kind == entity.ChannelPublic && req.UserID == self.UserID
		if !joinPublic {
			if err := common.Verify(myRole, common.AddMember); err != nil {
				return err
			}
		}

		if _, err := s.memberRepo.Get(ctx, ch.ID, req.UserID); err == nil {
			return errorx.New(errorx.AlreadyExists, "User is already a member of this channel")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return internal(ctx, "Cannot get member: %v", err)
		}

		member := entity.ChannelMember{
			ChannelID:   ch.ID,
			UserID:      req.UserID,
			Role:        entity.RoleMember,
			DisplayName: req.DisplayName,
			JoinedAt:    s.now(),
		}
		if err := s.memberRepo.Upsert(ctx, &member); err != nil {
			return internal(ctx, "Cannot add member: %v", err)
		}
		c.add(ctx, role.TableChannelMembers, eventbus.OpInsert, member, nil)

		if !ch.IsMember(req.UserID) || ch.Kind == entity.ChannelPublic {
			old := *ch
			ch.Members = uniqueMembers(ch.CreatedBy, append(ch.Members.Clone(), req.UserID)...)
			ch.UpdatedAt = s.now()
			if err := s.channelRepo.Save(ctx, ch); err != nil {
				return internal(ctx, "Cannot update channel members: %v", err)
			}
			c.add(ctx, channel.TableChannels, eventbus.OpUpdate, ch, old)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &model.AddMemberResponse{}, nil
}

func (s *Store) SetRole(ctx context.Context, req *model.SetRoleRequest) (*model.SetRoleResponse, error) {
	return reply(s.setRole(ctx, req))
}

func (s *Store) setRole(ctx context.Context, req *model.SetRoleRequest) (*model.SetRoleResponse, error) {
	self, err := requestIdentity(ctx)
	if err != nil {
		return nil, err
	}

	err = s.transact(ctx, func(ctx context.Context, c *changes) error {
		_, myRole, err := s.access(ctx, req.ChannelID, self.UserID)
		if err != nil {
			return err
		}

		member, err := s.memberRepo.Get(ctx, req.ChannelID, req.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errorx.New(errorx.NotFound, "Not found member")
			}

			return internal(ctx, "Cannot get member: %v", err)
		}

		if err := common.CanAssignRole(myRole, member.Role, entity.Role(req.Role)); err != nil {
			return err
		}

		old := *member
		member.Role = entity.Role(req.Role)
		if err := s.memberRepo.UpdateRole(ctx, member.ChannelID, member.UserID, member.Role); err != nil {
			return internal(ctx, "Cannot update role: %v", err)
		}

		c.add(ctx, role.TableChannelMembers, eventbus.OpUpdate, member, old)
		return nil
	})
	if err != nil {
		return nil, err
	}

	xcontext.Logger(ctx).Infof("Role of %s in %s set to %s by %s", req.UserID, req.ChannelID, req.Role, self.UserID)
	return &model.SetRoleResponse{}, nil
}

func (s *Store) Kick(ctx context.Context, req *model.KickRequest) (*model.KickResponse, error) {
	return reply(s.kick(ctx, req))
}

func (s *Store) kick(ctx context.Context, req *model.KickRequest) (*model.KickResponse, error) {
	self, err := requestIdentity(ctx)
	if err != nil {
		return nil, err
	}

	if req.UserID == self.UserID {
		return nil, errorx.New(errorx.BadRequest, "You cannot kick yourself")
	}

	err = s.transact(ctx, func(ctx context.Context, c *changes) error {
		ch, myRole, err := s.access(ctx, req.ChannelID, self.UserID)
		if err != nil {
			return err
		}

		member, err := s.memberRepo.Get(ctx, req.ChannelID, req.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errorx.New(errorx.NotFound, "Not found member")
			}

			return internal(ctx, "Cannot get member: %v", err)
		}

		if err := common.CanKick(myRole, member.Role); err != nil {
			return err
		}

		if err := s.memberRepo.Delete(ctx, member.ChannelID, member.UserID); err != nil {
			return internal(ctx, "Cannot kick member: %v", err)
		}
		c.add(ctx, role.TableChannelMembers, eventbus.OpDelete, member, member)

		members := entity.Array[string]{}
		for _, id := range ch.Members {
			if id != member.UserID {
				members = append(members, id)
			}
		}

		if len(members) != len(ch.Members) {
			old := *ch
			ch.Members = members
			ch.UpdatedAt = s.now()
			if err := s.channelRepo.Save(ctx, ch); err != nil {
				return internal(ctx, "Cannot update channel members: %v", err)
			}
			c.add(ctx, channel.TableChannels, eventbus.OpUpdate, ch, old)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	xcontext.Logger(ctx).Infof("User %s kicked from %s by %s", req.UserID, req.ChannelID, self.UserID)
	return &model.KickResponse{}, nil
}
