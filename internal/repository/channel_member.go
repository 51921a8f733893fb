package repository

import (
	"context"

	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/pkg/xcontext"
	"gorm.io/gorm/clause"
)

type ChannelMemberRepository interface {
	Upsert(ctx context.Context, data *entity.ChannelMember) error
	Get(ctx context.Context, channelID, userID string) (*entity.ChannelMember, error)
	GetByChannelID(ctx context.Context, channelID string) ([]entity.ChannelMember, error)
	UpdateRole(ctx context.Context, channelID, userID string, role entity.Role) error
	Delete(ctx context.Context, channelID, userID string) error
	DeleteByChannelID(ctx context.Context, channelID string) error
}

type channelMemberRepository struct{}

func NewChannelMemberRepository() ChannelMemberRepository {
	return &channelMemberRepository{}
}

func (r *channelMemberRepository) Upsert(ctx context.Context, data *entity.ChannelMember) error {
	return xcontext.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "channel_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"role", "display_name"}),
		}).
		Create(data).Error
}

func (r *channelMemberRepository) Get(ctx context.Context, channelID, userID string) (*entity.ChannelMember, error) {
	result := entity.ChannelMember{}
	err := xcontext.DB(ctx).
		Take(&result, "channel_id=? AND user_id=?", channelID, userID).Error
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *channelMemberRepository) GetByChannelID(ctx context.Context, channelID string) ([]entity.ChannelMember, error) {
	var result []entity.ChannelMember
	err := xcontext.DB(ctx).
		Where("channel_id=?", channelID).
		Order("joined_at ASC").
		Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *channelMemberRepository) UpdateRole(ctx context.Context, channelID, userID string, role entity.Role) error {
	return xcontext.DB(ctx).
		Model(&entity.ChannelMember{}).
		Where("channel_id=? AND user_id=?", channelID, userID).
		Update("role", role).Error
}

func (r *channelMemberRepository) Delete(ctx context.Context, channelID, userID string) error {
	return xcontext.DB(ctx).
		Delete(&entity.ChannelMember{}, "channel_id=? AND user_id=?", channelID, userID).Error
}

func (r *channelMemberRepository) DeleteByChannelID(ctx context.Context, channelID string) error {
	return xcontext.DB(ctx).Delete(&entity.ChannelMember{}, "channel_id=?", channelID).Error
}
