package repository

import (
	"context"

	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/pkg/xcontext"
	"gorm.io/gorm/clause"
)

type NotificationSettingRepository interface {
	Upsert(ctx context.Context, data *entity.NotificationSetting) error
	GetByUserID(ctx context.Context, userID string) ([]entity.NotificationSetting, error)
}

type notificationSettingRepository struct{}

func NewNotificationSettingRepository() NotificationSettingRepository {
	return &notificationSettingRepository{}
}

func (r *notificationSettingRepository) Upsert(ctx context.Context, data *entity.NotificationSetting) error {
	return xcontext.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "channel_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"level"}),
		}).
		Create(data).Error
}

func (r *notificationSettingRepository) GetByUserID(ctx context.Context, userID string) ([]entity.NotificationSetting, error) {
	var result []entity.NotificationSetting
	if err := xcontext.DB(ctx).Where("user_id=?", userID).Find(&result).Error; err != nil {
		return nil, err
	}

	return result, nil
}
