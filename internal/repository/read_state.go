package repository

import (
	"context"

	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/pkg/xcontext"
	"gorm.io/gorm/clause"
)

type UnreadStatusRepository interface {
	Upsert(ctx context.Context, data *entity.UnreadStatus) error
	Get(ctx context.Context, userID, channelID string) (*entity.UnreadStatus, error)
	GetByUserID(ctx context.Context, userID string) ([]entity.UnreadStatus, error)
	GetByChannelID(ctx context.Context, channelID string) ([]entity.UnreadStatus, error)
	DeleteByChannelID(ctx context.Context, channelID string) error
}

type unreadStatusRepository struct{}

func NewUnreadStatusRepository() UnreadStatusRepository {
	return &unreadStatusRepository{}
}

func (r *unreadStatusRepository) Upsert(ctx context.Context, data *entity.UnreadStatus) error {
	return xcontext.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "channel_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"count", "has_mentions", "last_read_at"}),
		}).
		Create(data).Error
}

func (r *unreadStatusRepository) Get(ctx context.Context, userID, channelID string) (*entity.UnreadStatus, error) {
	result := entity.UnreadStatus{}
	err := xcontext.DB(ctx).
		Take(&result, "user_id=? AND channel_id=?", userID, channelID).Error
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *unreadStatusRepository) GetByUserID(ctx context.Context, userID string) ([]entity.UnreadStatus, error) {
	var result []entity.UnreadStatus
	if err := xcontext.DB(ctx).Where("user_id=?", userID).Find(&result).Error; err != nil {
		return nil, err
	}

	return result, nil
}

func (r *unreadStatusRepository) GetByChannelID(ctx context.Context, channelID string) ([]entity.UnreadStatus, error) {
	var result []entity.UnreadStatus
	if err := xcontext.DB(ctx).Where("channel_id=?", channelID).Find(&result).Error; err != nil {
		return nil, err
	}

	return result, nil
}

func (r *unreadStatusRepository) DeleteByChannelID(ctx context.Context, channelID string) error {
	return xcontext.DB(ctx).Delete(&entity.UnreadStatus{}, "channel_id=?", channelID).Error
}

type ReadReceiptRepository interface {
	// Create reports whether the receipt was new. Receipts have set
	// semantics, a second read of the same message is ignored.
	Create(ctx context.Context, data *entity.ReadReceipt) (bool, error)
	GetByMessageIDs(ctx context.Context, messageIDs []string) ([]entity.ReadReceipt, error)
	DeleteByMessageID(ctx context.Context, messageID string) error
}

type readReceiptRepository struct{}

func NewReadReceiptRepository() ReadReceiptRepository {
	return &readReceiptRepository{}
}

func (r *readReceiptRepository) Create(ctx context.Context, data *entity.ReadReceipt) (bool, error) {
	tx := xcontext.DB(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(data)
	if tx.Error != nil {
		return false, tx.Error
	}

	return tx.RowsAffected > 0, nil
}

func (r *readReceiptRepository) GetByMessageIDs(ctx context.Context, messageIDs []string) ([]entity.ReadReceipt, error) {
	var result []entity.ReadReceipt
	err := xcontext.DB(ctx).
		Where("message_id IN (?)", messageIDs).
		Order("read_at ASC").
		Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *readReceiptRepository) DeleteByMessageID(ctx context.Context, messageID string) error {
	return xcontext.DB(ctx).Delete(&entity.ReadReceipt{}, "message_id=?", messageID).Error
}
