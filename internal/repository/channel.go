package repository

import (
	"context"

	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/pkg/xcontext"
)

type ChannelRepository interface {
	Create(ctx context.Context, data *entity.Channel) error
	GetByID(ctx context.Context, id string) (*entity.Channel, error)
	GetAll(ctx context.Context, includeArchived bool) ([]entity.Channel, error)
	GetDirect(ctx context.Context, userA, userB string) (*entity.Channel, error)
	Save(ctx context.Context, data *entity.Channel) error
	DeleteByID(ctx context.Context, id string) error
}

type channelRepository struct{}

func NewChannelRepository() ChannelRepository {
	return &channelRepository{}
}

func (r *channelRepository) Create(ctx context.Context, data *entity.Channel) error {
	return xcontext.DB(ctx).Create(data).Error
}

func (r *channelRepository) GetByID(ctx context.Context, id string) (*entity.Channel, error) {
	result := entity.Channel{}
	if err := xcontext.DB(ctx).Take(&result, "id=?", id).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *channelRepository) GetAll(ctx context.Context, includeArchived bool) ([]entity.Channel, error) {
	tx := xcontext.DB(ctx).Order("last_activity_at DESC")
	if !includeArchived {
		tx = tx.Where("archived=?", false)
	}

	var result []entity.Channel
	if err := tx.Find(&result).Error; err != nil {
		return nil, err
	}

	return result, nil
}

// GetDirect returns the direct channel between two users. Members of direct
// channels are stored sorted, so the pair has a single representation.
func (r *channelRepository) GetDirect(ctx context.Context, userA, userB string) (*entity.Channel, error) {
	members := entity.Array[string]{userA, userB}
	if userB < userA {
		members = entity.Array[string]{userB, userA}
	}

	value, err := members.Value()
	if err != nil {
		return nil, err
	}

	result := entity.Channel{}
	err = xcontext.DB(ctx).
		Where("kind=? AND members=?", entity.ChannelDirect, value).
		Take(&result).Error
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *channelRepository) Save(ctx context.Context, data *entity.Channel) error {
	return xcontext.DB(ctx).Save(data).Error
}

func (r *channelRepository) DeleteByID(ctx context.Context, id string) error {
	return xcontext.DB(ctx).Delete(&entity.Channel{}, "id=?", id).Error
}
