package xcontext

import (
	"context"

	"github.com/questx-lab/chatsync/config"
	"github.com/questx-lab/chatsync/pkg/logger"
	"gorm.io/gorm"
)

type (
	loggerKey        struct{}
	configsKey       struct{}
	requestUserIDKey struct{}
	requestNameKey   struct{}
	dbKey            struct{}
)

var nopLogger = logger.NewNopLogger()

func WithLogger(ctx context.Context, l logger.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// Logger returns the logger stored in ctx. A no-op logger is returned if no
// logger was stored.
func Logger(ctx context.Context) logger.Logger {
	l, ok := ctx.Value(loggerKey{}).(logger.Logger)
	if !ok {
		return nopLogger
	}

	return l
}

func WithConfigs(ctx context.Context, cfg config.Configs) context.Context {
	return context.WithValue(ctx, configsKey{}, cfg)
}

// Configs returns the configurations stored in ctx, or the defaults.
func Configs(ctx context.Context) config.Configs {
	cfg, ok := ctx.Value(configsKey{}).(config.Configs)
	if !ok {
		return config.Default()
	}

	return cfg
}

func WithRequestUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, requestUserIDKey{}, userID)
}

func RequestUserID(ctx context.Context) string {
	id, _ := ctx.Value(requestUserIDKey{}).(string)
	return id
}

func WithRequestUserName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, requestNameKey{}, name)
}

func RequestUserName(ctx context.Context) string {
	name, _ := ctx.Value(requestNameKey{}).(string)
	return name
}

func WithDB(ctx context.Context, db *gorm.DB) context.Context {
	return context.WithValue(ctx, dbKey{}, db)
}

func DB(ctx context.Context) *gorm.DB {
	db, _ := ctx.Value(dbKey{}).(*gorm.DB)
	if db == nil {
		return nil
	}

	return db.WithContext(ctx)
}

// WithDBTransaction replaces the database in ctx by a transaction. Callers
// must finish it with WithCommitDBTransaction or WithRollbackDBTransaction.
func WithDBTransaction(ctx context.Context) context.Context {
	return WithDB(ctx, DB(ctx).Begin())
}

func WithCommitDBTransaction(ctx context.Context) error {
	return DB(ctx).Commit().Error
}

func WithRollbackDBTransaction(ctx context.Context) {
	DB(ctx).Rollback()
}
