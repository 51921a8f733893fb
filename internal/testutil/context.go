package testutil

import (
	"context"
	"time"

	"github.com/questx-lab/chatsync/config"
	"github.com/questx-lab/chatsync/migration"
	"github.com/questx-lab/chatsync/pkg/logger"
	"github.com/questx-lab/chatsync/pkg/xcontext"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// MockConfigs shortens every timer so that tests run fast.
func MockConfigs() config.Configs {
	cfg := config.Default()
	cfg.Sync.PageSize = 3
	cfg.Sync.UnreadThrottle = config.Duration{Duration: 20 * time.Millisecond}
	cfg.Sync.TypingThrottle = config.Duration{Duration: 50 * time.Millisecond}
	cfg.Sync.TypingTimeout = config.Duration{Duration: 100 * time.Millisecond}
	cfg.Sync.PresenceTimeout = config.Duration{Duration: 100 * time.Millisecond}
	cfg.Sync.ReconnectInterval = config.Duration{Duration: 20 * time.Millisecond}
	cfg.Sync.CallTimeout = 5 * time.Second
	cfg.Auth.TokenSecret = "secret"
	cfg.Auth.Expiration = config.Duration{Duration: time.Minute}
	return cfg
}

func MockContext() context.Context {
	ctx := context.Background()
	ctx = xcontext.WithConfigs(ctx, MockConfigs())
	ctx = xcontext.WithLogger(ctx, logger.NewNopLogger())
	return ctx
}

// MockContextWithDB returns MockContext with a migrated in-memory database.
func MockContextWithDB() context.Context {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		panic(err)
	}

	// Every connection to :memory: opens a distinct database.
	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}
	sqlDB.SetMaxOpenConns(1)

	ctx := xcontext.WithDB(MockContext(), db)
	if err := migration.Migrate(ctx); err != nil {
		panic(err)
	}

	return ctx
}
