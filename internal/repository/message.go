package repository

import (
	"context"
	"time"

	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/pkg/xcontext"
)

type MessageRepository interface {
	Create(ctx context.Context, data *entity.Message) error
	GetByID(ctx context.Context, id string) (*entity.Message, error)
	GetTopLevel(ctx context.Context, channelID string, before *time.Time, limit int) ([]entity.Message, error)
	GetReplies(ctx context.Context, parentID string) ([]entity.Message, error)
	GetLatestBySender(ctx context.Context, channelID, senderID string) (*entity.Message, error)
	CountBySenderSince(ctx context.Context, channelID, senderID string, since time.Time) (int64, error)
	Save(ctx context.Context, data *entity.Message) error
	DeleteByID(ctx context.Context, id string) error
	DeleteByChannelID(ctx context.Context, channelID string) error
}

type messageRepository struct{}

func NewMessageRepository() MessageRepository {
	return &messageRepository{}
}

func (r *messageRepository) Create(ctx context.Context, data *entity.Message) error {
	return xcontext.DB(ctx).Create(data).Error
}

func (r *messageRepository) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	result := entity.Message{}
	if err := xcontext.DB(ctx).Take(&result, "id=?", id).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

// GetTopLevel returns at most limit top-level messages created strictly
// before the cursor, newest first.
func (r *messageRepository) GetTopLevel(
	ctx context.Context, channelID string, before *time.Time, limit int,
) ([]entity.Message, error) {
	tx := xcontext.DB(ctx).
		Where("channel_id=? AND (thread_id IS NULL OR thread_id='')", channelID)
	if before != nil {
		tx = tx.Where("created_at<?", *before)
	}

	var result []entity.Message
	err := tx.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *messageRepository) GetReplies(ctx context.Context, parentID string) ([]entity.Message, error) {
	var result []entity.Message
	err := xcontext.DB(ctx).
		Where("thread_id=?", parentID).
		Order("created_at ASC").
		Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *messageRepository) GetLatestBySender(ctx context.Context, channelID, senderID string) (*entity.Message, error) {
	result := entity.Message{}
	err := xcontext.DB(ctx).
		Where("channel_id=? AND sender_id=?", channelID, senderID).
		Order("created_at DESC").
		Take(&result).Error
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *messageRepository) CountBySenderSince(
	ctx context.Context, channelID, senderID string, since time.Time,
) (int64, error) {
	var count int64
	err := xcontext.DB(ctx).
		Model(&entity.Message{}).
		Where("channel_id=? AND sender_id=? AND created_at>?", channelID, senderID, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (r *messageRepository) Save(ctx context.Context, data *entity.Message) error {
	return xcontext.DB(ctx).Save(data).Error
}

func (r *messageRepository) DeleteByID(ctx context.Context, id string) error {
	return xcontext.DB(ctx).Delete(&entity.Message{}, "id=?", id).Error
}

func (r *messageRepository) DeleteByChannelID(ctx context.Context, channelID string) error {
	return xcontext.DB(ctx).Delete(&entity.Message{}, "channel_id=?", channelID).Error
}
