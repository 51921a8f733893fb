package migration

import (
	"context"
	"errors"
	"time"

	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/pkg/xcontext"
	"gorm.io/gorm"
)

type migrator func(ctx context.Context) error

// Append new migrators at the end. NOTE: DO NOT REORDER THIS LIST.
var migrators = []migrator{
	migrate0000,
	migrate0001,
}

// Migrate applies every migrator whose version is not recorded yet.
func Migrate(ctx context.Context) error {
	db := xcontext.DB(ctx)
	if err := db.AutoMigrate(&entity.Migration{}); err != nil {
		return err
	}

	var last entity.Migration
	err := db.Order("version DESC").Take(&last).Error
	next := 0
	switch {
	case err == nil:
		next = last.Version + 1
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	for version := next; version < len(migrators); version++ {
		if err := migrators[version](ctx); err != nil {
			return err
		}

		record := &entity.Migration{Version: version, AppliedAt: time.Now()}
		if err := db.Create(record).Error; err != nil {
			return err
		}

		xcontext.Logger(ctx).Infof("Applied migration %04d", version)
	}

	return nil
}
