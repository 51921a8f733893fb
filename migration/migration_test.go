package migration

import (
	"context"
	"testing"

	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/pkg/xcontext"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMigrate(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	ctx := xcontext.WithDB(context.Background(), db)
	require.NoError(t, Migrate(ctx))

	// A second run applies nothing.
	require.NoError(t, Migrate(ctx))

	var versions []entity.Migration
	require.NoError(t, db.Order("version").Find(&versions).Error)
	require.Len(t, versions, len(migrators))
	require.Equal(t, 0, versions[0].Version)

	require.True(t, db.Migrator().HasTable(&entity.Message{}))
	require.True(t, db.Migrator().HasIndex(&entity.Message{}, indexMessagesChannelCreated))
}
