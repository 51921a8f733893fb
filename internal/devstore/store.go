package devstore

import (
	"context"
	"errors"
	"time"

	"github.com/questx-lab/chatsync/internal/domain/eventbus"
	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/internal/model"
	"github.com/questx-lab/chatsync/internal/repository"
	"github.com/questx-lab/chatsync/pkg/errorx"
	"github.com/questx-lab/chatsync/pkg/idutil"
	"github.com/questx-lab/chatsync/pkg/xcontext"
	"gorm.io/gorm"
)

const maxPageSize = 100

// Store is a reference implementation of the remote store. It applies every
// mutation authoritatively and publishes the resulting row changes on its
// hub.
type Store struct {
	channelRepo    repository.ChannelRepository
	memberRepo     repository.ChannelMemberRepository
	messageRepo    repository.MessageRepository
	unreadRepo     repository.UnreadStatusRepository
	receiptRepo    repository.ReadReceiptRepository
	moderationRepo repository.ModerationRepository
	settingRepo    repository.NotificationSettingRepository

	hub    *eventbus.MemoryHub
	fanout *eventbus.KafkaFanout
	ids    *idutil.Generator
	now    func() time.Time
}

// New creates a store publishing to hub. fanout is optional and receives a
// copy of every change.
func New(ctx context.Context, hub *eventbus.MemoryHub, fanout *eventbus.KafkaFanout) (*Store, error) {
	ids, err := idutil.NewGenerator(xcontext.Configs(ctx).DevStore.SnowflakeNode)
	if err != nil {
		return nil, err
	}

	return &Store{
		channelRepo:    repository.NewChannelRepository(),
		memberRepo:     repository.NewChannelMemberRepository(),
		messageRepo:    repository.NewMessageRepository(),
		unreadRepo:     repository.NewUnreadStatusRepository(),
		receiptRepo:    repository.NewReadReceiptRepository(),
		moderationRepo: repository.NewModerationRepository(),
		settingRepo:    repository.NewNotificationSettingRepository(),
		hub:            hub,
		fanout:         fanout,
		ids:            ids,
		now:            func() time.Time { return time.Now().UTC() },
	}, nil
}

// changes collects the events of a transaction. They are published only
// once the transaction is committed.
type changes struct {
	events []eventbus.Event
}

func (c *changes) add(ctx context.Context, table string, op eventbus.Op, row, old any) {
	ev := eventbus.Event{Table: table, Op: op}

	var err error
	if ev.Row, err = eventbus.NewRow(row); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot encode %s row: %v", table, err)
		return
	}

	if old != nil {
		if ev.Old, err = eventbus.NewRow(old); err != nil {
			xcontext.Logger(ctx).Errorf("Cannot encode old %s row: %v", table, err)
			return
		}
	}

	c.events = append(c.events, ev)
}

// transact runs fn in a database transaction and publishes its changes
// after the commit.
func (s *Store) transact(ctx context.Context, fn func(ctx context.Context, c *changes) error) error {
	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	c := &changes{}
	if err := fn(ctx, c); err != nil {
		return err
	}

	if err := xcontext.WithCommitDBTransaction(ctx); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot commit transaction: %v", err)
		return errorx.Unknown
	}

	s.publish(ctx, c.events)
	return nil
}

func (s *Store) publish(ctx context.Context, events []eventbus.Event) {
	for _, ev := range events {
		s.hub.Publish(ev)

		if s.fanout != nil {
			if err := s.fanout.Publish(ctx, ev); err != nil {
				xcontext.Logger(ctx).Warnf("Unable to fan out %s change: %v", ev.Table, err)
			}
		}
	}
}

func requestIdentity(ctx context.Context) (model.Identity, error) {
	userID := xcontext.RequestUserID(ctx)
	if userID == "" {
		return model.Identity{}, errorx.New(errorx.Unauthenticated, "You need to authenticate before")
	}

	name := xcontext.RequestUserName(ctx)
	if name == "" {
		name = userID
	}

	return model.Identity{UserID: userID, DisplayName: name}, nil
}

// access loads a channel and the role of userID in it. Everyone may take
// part in public channels with the member role.
func (s *Store) access(ctx context.Context, channelID, userID string) (*entity.Channel, entity.Role, error) {
	channel, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", errorx.New(errorx.NotFound, "Not found channel")
		}

		xcontext.Logger(ctx).Errorf("Cannot get channel: %v", err)
		return nil, "", errorx.Unknown
	}

	role, err := s.roleOf(ctx, channel, userID)
	if err != nil {
		return nil, "", err
	}

	if role == "" {
		return nil, "", errorx.New(errorx.PermissionDenied, "You are not a member of this channel")
	}

	return channel, role, nil
}

func (s *Store) roleOf(ctx context.Context, channel *entity.Channel, userID string) (entity.Role, error) {
	member, err := s.memberRepo.Get(ctx, channel.ID, userID)
	if err == nil {
		return member.Role, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		xcontext.Logger(ctx).Errorf("Cannot get member: %v", err)
		return "", errorx.Unknown
	}

	if channel.Kind == entity.ChannelPublic {
		return entity.RoleMember, nil
	}

	return "", nil
}

func (s *Store) getMessage(ctx context.Context, id string) (*entity.Message, error) {
	msg, err := s.messageRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.NotFound, "Not found message")
		}

		xcontext.Logger(ctx).Errorf("Cannot get message: %v", err)
		return nil, errorx.Unknown
	}

	return msg, nil
}

func internal(ctx context.Context, format string, args ...any) error {
	xcontext.Logger(ctx).Errorf(format, args...)
	return errorx.Unknown
}

// reply folds the outcome of an operation into a response. Failures travel
// in the result, so RPC errors are left to transport faults.
func reply[R any, PR interface {
	*R
	SetResult(model.Result)
}](resp *R, err error) (*R, error) {
	if err != nil {
		resp = new(R)
		PR(resp).SetResult(model.Fail(err))
		return resp, nil
	}

	PR(resp).SetResult(model.OK())
	return resp, nil
}
