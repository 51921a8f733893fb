package devstore

import (
	"context"
	"errors"

	"github.com/questx-lab/chatsync/internal/domain/eventbus"
	"github.com/questx-lab/chatsync/internal/domain/unread"
	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/internal/model"
	"gorm.io/gorm"
)

func (s *Store) GetUnread(ctx context.Context, req *model.GetUnreadRequest) (*model.GetUnreadResponse, error) {
	return reply(s.getUnread(ctx, req))
}

func (s *Store) getUnread(ctx context.Context, _ *model.GetUnreadRequest) (*model.GetUnreadResponse, error) {
	self, err := requestIdentity(ctx)
	if err != nil {
		return nil, err
	}

	statuses, err := s.unreadRepo.GetByUserID(ctx, self.UserID)
	if err != nil {
		return nil, internal(ctx, "Cannot get unread status: %v", err)
	}

	return &model.GetUnreadResponse{Statuses: statuses}, nil
}

func (s *Store) MarkChannelRead(ctx context.Context, req *model.MarkChannelReadRequest) (*model.MarkChannelReadResponse, error) {
	return reply(s.markChannelRead(ctx, req))
}

// markChannelRead resets the counter of the caller in the channel. A reset
// of a counter already at zero still moves last_read_at.
func (s *Store) markChannelRead(ctx context.Context, req *model.MarkChannelReadRequest) (*model.MarkChannelReadResponse, error) {
	self, err := requestIdentity(ctx)
	if err != nil {
		return nil, err
	}

	err = s.transact(ctx, func(ctx context.Context, c *changes) error {
		if _, _, err := s.access(ctx, req.ChannelID, self.UserID); err != nil {
			return err
		}

		status, err := s.unreadRepo.Get(ctx, self.UserID, req.ChannelID)
		op := eventbus.OpUpdate
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return internal(ctx, "Cannot get unread status: %v", err)
			}

			op = eventbus.OpInsert
			status = &entity.UnreadStatus{UserID: self.UserID, ChannelID: req.ChannelID}
		}

		old := *status
		status.Count = 0
		status.HasMentions = false
		status.LastReadAt = s.now()
		if err := s.unreadRepo.Upsert(ctx, status); err != nil {
			return internal(ctx, "Cannot reset unread status: %v", err)
		}

		if op == eventbus.OpInsert {
			c.add(ctx, unread.TableUnreadStatus, op, status, nil)
		} else {
			c.add(ctx, unread.TableUnreadStatus, op, status, old)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &model.MarkChannelReadResponse{}, nil
}

func (s *Store) MarkMessagesRead(ctx context.Context, req *model.MarkMessagesReadRequest) (*model.MarkMessagesReadResponse, error) {
	return reply(s.markMessagesRead(ctx, req))
}

func (s *Store) markMessagesRead(ctx context.Context, req *model.MarkMessagesReadRequest) (*model.MarkMessagesReadResponse, error) {
	self, err := requestIdentity(ctx)
	if err != nil {
		return nil, err
	}

	err = s.transact(ctx, func(ctx context.Context, c *changes) error {
		if _, _, err := s.access(ctx, req.ChannelID, self.UserID); err != nil {
			return err
		}

		return s.markRead(ctx, c, self, req.ChannelID, req.MessageIDs)
	})
	if err != nil {
		return nil, err
	}

	return &model.MarkMessagesReadResponse{}, nil
}

func (s *Store) GetReceipts(ctx context.Context, req *model.GetReceiptsRequest) (*model.GetReceiptsResponse, error) {
	return reply(s.getReceipts(ctx, req))
}

// getReceipts returns the receipts of the requested messages the caller can
// see.
func (s *Store) getReceipts(ctx context.Context, req *model.GetReceiptsRequest) (*model.GetReceiptsResponse, error) {
	self, err := requestIdentity(ctx)
	if err != nil {
		return nil, err
	}

	receipts, err := s.receiptRepo.GetByMessageIDs(ctx, uniqueIDs(req.MessageIDs))
	if err != nil {
		return nil, internal(ctx, "Cannot get receipts: %v", err)
	}

	allowed := map[string]bool{}
	result := []entity.ReadReceipt{}
	for _, rc := range receipts {
		ok, checked := allowed[rc.ChannelID]
		if !checked {
			_, _, err := s.access(ctx, rc.ChannelID, self.UserID)
			ok = err == nil
			allowed[rc.ChannelID] = ok
		}

		if ok {
			result = append(result, rc)
		}
	}

	return &model.GetReceiptsResponse{Receipts: result}, nil
}
