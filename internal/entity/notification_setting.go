package entity

import "github.com/questx-lab/chatsync/pkg/enum"

type NotificationLevel string

var (
	NotifyAll      = enum.New(NotificationLevel("all"))
	NotifyMentions = enum.New(NotificationLevel("mentions"))
	NotifyNone     = enum.New(NotificationLevel("none"))
)

type NotificationSetting struct {
	UserID    string            `json:"user_id" gorm:"primaryKey"`
	ChannelID string            `json:"channel_id" gorm:"primaryKey"`
	Level     NotificationLevel `json:"level"`
}

func (t *NotificationSetting) TableName() string {
	return "notification_settings"
}
