package migration

import (
	"context"

	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/pkg/xcontext"
)

// migrate0000 creates the initial tables.
func migrate0000(ctx context.Context) error {
	return xcontext.DB(ctx).AutoMigrate(
		&entity.Channel{},
		&entity.ChannelMember{},
		&entity.Message{},
		&entity.UnreadStatus{},
		&entity.ReadReceipt{},
		&entity.NotificationSetting{},
		&entity.RateLimitPolicy{},
		&entity.MuteRecord{},
		&entity.Warning{},
	)
}
