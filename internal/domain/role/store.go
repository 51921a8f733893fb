package role

import (
	"context"
	"sort"
	"sync"

	"github.com/questx-lab/chatsync/internal/client"
	"github.com/questx-lab/chatsync/internal/common"
	"github.com/questx-lab/chatsync/internal/domain/eventbus"
	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/internal/model"
	"github.com/questx-lab/chatsync/pkg/errorx"
	"github.com/questx-lab/chatsync/pkg/xcontext"
)

const TableChannelMembers = "channel_members"

// Store caches the members of one channel and answers permission questions
// for the current user. Its answers only spare obviously refused round
// trips; the store checks every mutation again.
type Store struct {
	channelID string
	self      model.Identity
	caller    client.MemberCaller

	mutex   sync.Mutex
	members map[string]entity.ChannelMember
	signal  *common.Signal
}

func NewStore(channelID string, self model.Identity, caller client.MemberCaller) *Store {
	return &Store{
		channelID: channelID,
		self:      self,
		caller:    caller,
		members:   make(map[string]entity.ChannelMember),
		signal:    common.NewSignal(),
	}
}

func (s *Store) Filters() []eventbus.Filter {
	return []eventbus.Filter{{Table: TableChannelMembers, Column: "channel_id", Value: s.channelID}}
}

func (s *Store) Updates() <-chan struct{} {
	return s.signal.C()
}

func (s *Store) Load(ctx context.Context) error {
	resp, err := s.caller.GetMembers(ctx, &model.GetMembersRequest{ChannelID: s.channelID})
	if err != nil {
		return err
	}

	members := make(map[string]entity.ChannelMember, len(resp.Members))
	for _, m := range resp.Members {
		members[m.UserID] = m
	}

	s.mutex.Lock()
	s.members = members
	s.mutex.Unlock()

	s.signal.Notify()
	return nil
}

func (s *Store) HandleEvent(ctx context.Context, ev eventbus.Event) {
	if ev.Table != TableChannelMembers {
		return
	}

	row := ev.Row
	if ev.Op == eventbus.OpDelete && ev.Old != nil {
		row = ev.Old
	}

	var member entity.ChannelMember
	if err := row.Decode(&member); err != nil || member.UserID == "" {
		xcontext.Logger(ctx).Errorf("Cannot decode member row: %v", err)
		return
	}

	s.mutex.Lock()
	if ev.Op == eventbus.OpDelete {
		delete(s.members, member.UserID)
	} else {
		s.members[member.UserID] = member
	}
	s.mutex.Unlock()

	s.signal.Notify()
}

func (s *Store) HandleGap(ctx context.Context) {
	if err := s.Load(ctx); err != nil {
		xcontext.Logger(ctx).Warnf("Unable to reload members of %s: %v", s.channelID, err)
	}
}

// Role returns the role of userID, or an empty role if the user is not a
// member of the channel.
func (s *Store) Role(userID string) entity.Role {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.members[userID].Role
}

func (s *Store) MyRole() entity.Role {
	return s.Role(s.self.UserID)
}

func (s *Store) Member(userID string) (entity.ChannelMember, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	m, ok := s.members[userID]
	return m, ok
}

// Members lists the members by decreasing role, then by name.
func (s *Store) Members() []entity.ChannelMember {
	s.mutex.Lock()
	result := make([]entity.ChannelMember, 0, len(s.members))
	for _, m := range s.members {
		result = append(result, m)
	}
	s.mutex.Unlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].Role.Rank() != result[j].Role.Rank() {
			return result[i].Role.Rank() > result[j].Role.Rank()
		}
		return result[i].DisplayName < result[j].DisplayName
	})

	return result
}

func (s *Store) Can(action common.PermissionFlag) bool {
	return common.Can(s.MyRole(), action)
}

func (s *Store) Verify(action common.PermissionFlag) error {
	return common.Verify(s.MyRole(), action)
}

func (s *Store) CheckKick(userID string) error {
	return common.CanKick(s.MyRole(), s.Role(userID))
}

func (s *Store) CheckAssign(userID string, newRole entity.Role) error {
	if _, ok := s.Member(userID); !ok {
		return errorx.New(errorx.NotFound, "User is not a member of the channel")
	}

	return common.CanAssignRole(s.MyRole(), s.Role(userID), newRole)
}

func (s *Store) SetRole(ctx context.Context, userID string, newRole entity.Role) error {
	if err := s.CheckAssign(userID, newRole); err != nil {
		return err
	}

	_, err := s.caller.SetRole(ctx, &model.SetRoleRequest{
		ChannelID: s.channelID,
		UserID:    userID,
		Role:      string(newRole),
	})
	return err
}

func (s *Store) Kick(ctx context.Context, userID string) error {
	if err := s.CheckKick(userID); err != nil {
		return err
	}

	_, err := s.caller.Kick(ctx, &model.KickRequest{ChannelID: s.channelID, UserID: userID})
	return err
}

func (s *Store) AddMember(ctx context.Context, userID, displayName string) error {
	if err := s.Verify(common.AddMember); err != nil {
		return err
	}

	if _, ok := s.Member(userID); ok {
		return errorx.New(errorx.AlreadyExists, "User is already a member of the channel")
	}

	_, err := s.caller.AddMember(ctx, &model.AddMemberRequest{
		ChannelID:   s.channelID,
		UserID:      userID,
		DisplayName: displayName,
	})
	return err
}
