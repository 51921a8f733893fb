package migration

import (
	"context"

	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/pkg/xcontext"
)

const indexMessagesChannelCreated = "idx_messages_channel_created"

// migrate0001 adds the index used by paginated history reads.
func migrate0001(ctx context.Context) error {
	db := xcontext.DB(ctx)
	if db.Migrator().HasIndex(&entity.Message{}, indexMessagesChannelCreated) {
		return nil
	}

	return db.Exec("CREATE INDEX " + indexMessagesChannelCreated + " ON messages (channel_id, created_at)").Error
}
