package devstore

import (
	"context"
	"strings"

	"github.com/questx-lab/chatsync/internal/common"
	"github.com/questx-lab/chatsync/internal/domain/channel"
	"github.com/questx-lab/chatsync/internal/domain/eventbus"
	"github.com/questx-lab/chatsync/internal/domain/message"
	"github.com/questx-lab/chatsync/internal/domain/receipt"
	"github.com/questx-lab/chatsync/internal/domain/unread"
	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/internal/model"
	"github.com/questx-lab/chatsync/pkg/enum"
	"github.com/questx-lab/chatsync/pkg/errorx"
)

func (s *Store) GetMessages(ctx context.Context, req *model.GetMessagesRequest) (*model.GetMessagesResponse, error) {
	return reply(s.getMessages(ctx, req))
}

func (s *Store) getMessages(ctx context.Context, req *model.GetMessagesRequest) (*model.GetMessagesResponse, error) {
	self, err := requestIdentity(ctx)
	if err != nil {
		return nil, err
	}

	if _, _, err := s.access(ctx, req.ChannelID, self.UserID); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	messages, err := s.messageRepo.GetTopLevel(ctx, req.ChannelID, req.Before, limit)
	if err != nil {
		return nil, internal(ctx, "Cannot get messages: %v", err)
	}

	return &model.GetMessagesResponse{Messages: messages}, nil
}

func (s *Store) GetThread(ctx context.Context, req *model.GetThreadRequest) (*model.GetThreadResponse, error) {
	return reply(s.getThread(ctx, req))
}

func (s *Store) getThread(ctx context.Context, req *model.GetThreadRequest) (*model.GetThreadResponse, error) {
	self, err := requestIdentity(ctx)
	if err != nil {
		return nil, err
	}

	parent, err := s.getMessage(ctx, req.ParentID)
	if err != nil {
		return nil, err
	}

	if _, _, err := s.access(ctx, parent.ChannelID, self.UserID); err != nil {
		return nil, err
	}

	replies, err := s.messageRepo.GetReplies(ctx, parent.ID)
	if err != nil {
		return nil, internal(ctx, "Cannot get replies: %v", err)
	}

	return &model.GetThreadResponse{Parent: *parent, Replies: replies}, nil
}

func (s *Store) SendMessage(ctx context.Context, req *model.SendMessageRequest) (*model.SendMessageResponse, error) {
	return reply(s.sendMessage(ctx, req))
}

func (s *Store) sendMessage(ctx context.Context, req *model.SendMessageRequest) (*model.SendMessageResponse, error) {
	self, err := requestIdentity(ctx)
	if err != nil {
		return nil, err
	}

	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, errorx.New(errorx.BadRequest, "Message body is required")
	}

	kind := entity.MessageText
	if req.Kind != "" {
		if kind, err = enum.ToEnum[entity.MessageKind](req.Kind); err != nil {
			return nil, errorx.New(errorx.BadRequest, "Invalid message kind %s", req.Kind)
		}
	}

	var result entity.Message
	err = s.transact(ctx, func(ctx context.Context, c *changes) error {
		ch, myRole, err := s.access(ctx, req.ChannelID, self.UserID)
		if err != nil {
			return err
		}

		if ch.Archived {
			return errorx.New(errorx.BadRequest, "Channel is archived")
		}

		if err := common.Verify(myRole, common.SendMessage); err != nil {
			return err
		}

		if err := s.enforceRateLimit(ctx, req.ChannelID, self.UserID); err != nil {
			return err
		}

		var parent *entity.Message
		if req.ThreadID != nil && *req.ThreadID != "" {
			if parent, err = s.getMessage(ctx, *req.ThreadID); err != nil {
				return err
			}

			if parent.ChannelID != ch.ID || parent.IsReply() {
				return errorx.New(errorx.BadRequest, "Invalid thread parent")
			}
		}

		now := s.now()
		result = entity.Message{
			ID:         s.ids.Next(),
			ChannelID:  ch.ID,
			SenderID:   self.UserID,
			SenderName: self.DisplayName,
			Body:       body,
			Kind:       kind,
			Mentions:   uniqueIDs(req.Mentions),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if parent != nil {
			result.ThreadID = &parent.ID
		}

		if err := s.messageRepo.Create(ctx, &result); err != nil {
			return internal(ctx, "Cannot create message: %v", err)
		}
		c.add(ctx, message.TableMessages, eventbus.OpInsert, result, nil)

		if parent != nil {
			old := parent.Clone()
			parent.ReplyCount++
			if err := s.messageRepo.Save(ctx, parent); err != nil {
				return internal(ctx, "Cannot update reply count: %v", err)
			}
			c.add(ctx, message.TableMessages, eventbus.OpUpdate, parent, old)
		}

		old := *ch
		ch.LastActivityAt = now
		ch.UpdatedAt = now
		if err := s.channelRepo.Save(ctx, ch); err != nil {
			return internal(ctx, "Cannot update channel activity: %v", err)
		}
		c.add(ctx, channel.TableChannels, eventbus.OpUpdate, ch, old)

		return s.countUnread(ctx, c, ch, &result)
	})
	if err != nil {
		return nil, err
	}

	return &model.SendMessageResponse{Message: result}, nil
}

// countUnread increments the unread counter of every recipient of msg.
// Replies only count for the users they mention.
func (s *Store) countUnread(ctx context.Context, c *changes, ch *entity.Channel, msg *entity.Message) error {
	members, err := s.memberRepo.GetByChannelID(ctx, ch.ID)
	if err != nil {
		return internal(ctx, "Cannot get members: %v", err)
	}

	statuses, err := s.unreadRepo.GetByChannelID(ctx, ch.ID)
	if err != nil {
		return internal(ctx, "Cannot get unread status: %v", err)
	}

	existing := map[string]entity.UnreadStatus{}
	recipients := []string{}
	add := func(userID string) {
		if userID == msg.SenderID {
			return
		}

		for _, id := range recipients {
			if id == userID {
				return
			}
		}

		recipients = append(recipients, userID)
	}

	for _, m := range members {
		add(m.UserID)
	}

	for _, st := range statuses {
		existing[st.UserID] = st
		add(st.UserID)
	}

	for _, id := range ch.Members {
		add(id)
	}

	for _, userID := range recipients {
		mentioned := msg.Mentioned(userID)
		if msg.IsReply() && !mentioned {
			continue
		}

		status, ok := existing[userID]
		if !ok {
			status = entity.UnreadStatus{UserID: userID, ChannelID: ch.ID}
		}

		old := status
		status.Count++
		status.HasMentions = status.HasMentions || mentioned
		if err := s.unreadRepo.Upsert(ctx, &status); err != nil {
			return internal(ctx, "Cannot update unread status: %v", err)
		}

		if ok {
			c.add(ctx, unread.TableUnreadStatus, eventbus.OpUpdate, status, old)
		} else {
			c.add(ctx, unread.TableUnreadStatus, eventbus.OpInsert, status, nil)
		}
	}

	return nil
}

func (s *Store) EditMessage(ctx context.Context, req *model.EditMessageRequest) (*model.EditMessageResponse, error) {
	return reply(s.editMessage(ctx, req))
}

func (s *Store) editMessage(ctx context.Context, req *model.EditMessageRequest) (*model.EditMessageResponse, error) {
	self, err := requestIdentity(ctx)
	if err != nil {
		return nil, err
	}

	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, errorx.New(errorx.BadRequest, "Message body is required")
	}

	err = s.transact(ctx, func(ctx context.Context, c *changes) error {
		msg, err := s.getMessage(ctx, req.MessageID)
		if err != nil {
			return err
		}

		if msg.SenderID != self.UserID {
			return errorx.New(errorx.PermissionDenied, "You can only edit your own messages")
		}

		if _, _, err := s.access(ctx, msg.ChannelID, self.UserID); err != nil {
			return err
		}

		old := msg.Clone()
		msg.Body = body
		msg.Edited = true
		msg.UpdatedAt = s.now()
		if err := s.messageRepo.Save(ctx, msg); err != nil {
			return internal(ctx, "Cannot edit message: %v", err)
		}

		c.add(ctx, message.TableMessages, eventbus.OpUpdate, msg, old)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &model.EditMessageResponse{}, nil
}

func (s *Store) DeleteMessage(ctx context.Context, req *model.DeleteMessageRequest) (*model.DeleteMessageResponse, error) {
	return reply(s.deleteMessage(ctx, req))
}

func (s *Store) deleteMessage(ctx context.Context, req *model.DeleteMessageRequest) (*model.DeleteMessageResponse, error) {
	self, err := requestIdentity(ctx)
	if err != nil {
		return nil, err
	}

	err = s.transact(ctx, func(ctx context.Context, c *changes) error {
		msg, err := s.getMessage(ctx, req.MessageID)
		if err != nil {
			return err
		}

		_, myRole, err := s.access(ctx, msg.ChannelID, self.UserID)
		if err != nil {
			return err
		}

		if msg.SenderID == self.UserID {
			err = common.Verify(myRole, common.DeleteOwnMessage)
		} else {
			var senderRole entity.Role
			if senderRole, err = s.memberRole(ctx, msg.ChannelID, msg.SenderID); err == nil {
				err = common.CanModerate(myRole, senderRole, common.DeleteAnyMessage)
			}
		}
		if err != nil {
			return err
		}

		if err := s.messageRepo.DeleteByID(ctx, msg.ID); err != nil {
			return internal(ctx, "Cannot delete message: %v", err)
		}

		if err := s.receiptRepo.DeleteByMessageID(ctx, msg.ID); err != nil {
			return internal(ctx, "Cannot delete receipts: %v", err)
		}

		c.add(ctx, message.TableMessages, eventbus.OpDelete, msg, msg)

		if msg.IsReply() {
			parent, err := s.messageRepo.GetByID(ctx, *msg.ThreadID)
			if err != nil {
				// The parent may be gone already.
				return nil
			}

			old := parent.Clone()
			if parent.ReplyCount > 0 {
				parent.ReplyCount--
			}
			if err := s.messageRepo.Save(ctx, parent); err != nil {
				return internal(ctx, "Cannot update reply count: %v", err)
			}
			c.add(ctx, message.TableMessages, eventbus.OpUpdate, parent, old)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &model.DeleteMessageResponse{}, nil
}

func (s *Store) ToggleReaction(ctx context.Context, req *model.ToggleReactionRequest) (*model.ToggleReactionResponse, error) {
	return reply(s.toggleReaction(ctx, req))
}

func (s *Store) toggleReaction(ctx context.Context, req *model.ToggleReactionRequest) (*model.ToggleReactionResponse, error) {
	self, err := requestIdentity(ctx)
	if err != nil {
		return nil, err
	}

	if req.Emoji == "" {
		return nil, errorx.New(errorx.BadRequest, "Emoji is required")
	}

	err = s.transact(ctx, func(ctx context.Context, c *changes) error {
		msg, err := s.getMessage(ctx, req.MessageID)
		if err != nil {
			return err
		}

		if _, _, err := s.access(ctx, msg.ChannelID, self.UserID); err != nil {
			return err
		}

		old := msg.Clone()
		msg.Reactions = msg.Reactions.Toggle(req.Emoji, self.UserID)
		if err := s.messageRepo.Save(ctx, msg); err != nil {
			return internal(ctx, "Cannot toggle reaction: %v", err)
		}

		c.add(ctx, message.TableMessages, eventbus.OpUpdate, msg, old)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &model.ToggleReactionResponse{}, nil
}

func (s *Store) PinMessage(ctx context.Context, req *model.PinMessageRequest) (*model.PinMessageResponse, error) {
	return reply(s.pinMessage(ctx, req))
}

func (s *Store) pinMessage(ctx context.Context, req *model.PinMessageRequest) (*model.PinMessageResponse, error) {
	self, err := requestIdentity(ctx)
	if err != nil {
		return nil, err
	}

	err = s.transact(ctx, func(ctx context.Context, c *changes) error {
		msg, err := s.getMessage(ctx, req.MessageID)
		if err != nil {
			return err
		}

		_, myRole, err := s.access(ctx, msg.ChannelID, self.UserID)
		if err != nil {
			return err
		}

		if err := common.Verify(myRole, common.PinMessage); err != nil {
			return err
		}

		if msg.Pinned == req.Pinned {
			return nil
		}

		old := msg.Clone()
		msg.Pinned = req.Pinned
		if err := s.messageRepo.Save(ctx, msg); err != nil {
			return internal(ctx, "Cannot pin message: %v", err)
		}

		c.add(ctx, message.TableMessages, eventbus.OpUpdate, msg, old)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &model.PinMessageResponse{}, nil
}

// markRead records receipts for messages of other senders. Unknown ids and
// own messages are ignored.
func (s *Store) markRead(ctx context.Context, c *changes, self model.Identity, channelID string, ids []string) error {
	for _, id := range uniqueIDs(ids) {
		msg, err := s.messageRepo.GetByID(ctx, id)
		if err != nil || msg.ChannelID != channelID || msg.SenderID == self.UserID {
			continue
		}

		rc := entity.ReadReceipt{
			MessageID:  msg.ID,
			ReaderID:   self.UserID,
			ReaderName: self.DisplayName,
			ChannelID:  channelID,
			ReadAt:     s.now(),
		}

		created, err := s.receiptRepo.Create(ctx, &rc)
		if err != nil {
			return internal(ctx, "Cannot create receipt: %v", err)
		}

		if created {
			c.add(ctx, receipt.TableReadReceipts, eventbus.OpInsert, rc, nil)
		}
	}

	return nil
}

func uniqueIDs(ids []string) []string {
	seen := map[string]bool{}
	result := []string{}
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}

		seen[id] = true
		result = append(result, id)
	}

	return result
}
