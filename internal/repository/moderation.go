package repository

import (
	"context"
	"time"

	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/pkg/xcontext"
	"gorm.io/gorm/clause"
)

type ModerationRepository interface {
	GetPolicy(ctx context.Context, channelID string) (*entity.RateLimitPolicy, error)
	UpsertPolicy(ctx context.Context, data *entity.RateLimitPolicy) error

	CreateMute(ctx context.Context, data *entity.MuteRecord) error
	GetMutes(ctx context.Context, channelID string) ([]entity.MuteRecord, error)
	GetActiveMute(ctx context.Context, channelID, userID string, now time.Time) (*entity.MuteRecord, error)
	DeleteMutes(ctx context.Context, channelID, userID string) ([]entity.MuteRecord, error)

	CreateWarning(ctx context.Context, data *entity.Warning) error
	CountWarnings(ctx context.Context, channelID, userID string) (int64, error)
}

type moderationRepository struct{}

func NewModerationRepository() ModerationRepository {
	return &moderationRepository{}
}

func (r *moderationRepository) GetPolicy(ctx context.Context, channelID string) (*entity.RateLimitPolicy, error) {
	result := entity.RateLimitPolicy{}
	if err := xcontext.DB(ctx).Take(&result, "channel_id=?", channelID).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *moderationRepository) UpsertPolicy(ctx context.Context, data *entity.RateLimitPolicy) error {
	return xcontext.DB(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "channel_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"messages_per_minute", "messages_per_hour", "slowmode_seconds", "updated_by", "updated_at",
			}),
		}).
		Create(data).Error
}

func (r *moderationRepository) CreateMute(ctx context.Context, data *entity.MuteRecord) error {
	return xcontext.DB(ctx).Create(data).Error
}

func (r *moderationRepository) GetMutes(ctx context.Context, channelID string) ([]entity.MuteRecord, error) {
	var result []entity.MuteRecord
	if err := xcontext.DB(ctx).Where("channel_id=?", channelID).Find(&result).Error; err != nil {
		return nil, err
	}

	return result, nil
}

// GetActiveMute returns the mute of the user in effect at now. Expired
// records are kept but never returned.
func (r *moderationRepository) GetActiveMute(
	ctx context.Context, channelID, userID string, now time.Time,
) (*entity.MuteRecord, error) {
	result := entity.MuteRecord{}
	err := xcontext.DB(ctx).
		Where("channel_id=? AND user_id=?", channelID, userID).
		Where("expires_at IS NULL OR expires_at>=?", now).
		Order("expires_at IS NULL DESC").
		Order("expires_at DESC").
		Take(&result).Error
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *moderationRepository) DeleteMutes(ctx context.Context, channelID, userID string) ([]entity.MuteRecord, error) {
	var result []entity.MuteRecord
	err := xcontext.DB(ctx).
		Where("channel_id=? AND user_id=?", channelID, userID).
		Find(&result).Error
	if err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return nil, nil
	}

	err = xcontext.DB(ctx).
		Delete(&entity.MuteRecord{}, "channel_id=? AND user_id=?", channelID, userID).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *moderationRepository) CreateWarning(ctx context.Context, data *entity.Warning) error {
	return xcontext.DB(ctx).Create(data).Error
}

func (r *moderationRepository) CountWarnings(ctx context.Context, channelID, userID string) (int64, error) {
	var count int64
	err := xcontext.DB(ctx).
		Model(&entity.Warning{}).
		Where("channel_id=? AND user_id=?", channelID, userID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}
