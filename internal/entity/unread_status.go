package entity

import "time"

type UnreadStatus struct {
	UserID      string    `json:"user_id" gorm:"primaryKey"`
	ChannelID   string    `json:"channel_id" gorm:"primaryKey"`
	Count       int       `json:"count"`
	HasMentions bool      `json:"has_mentions"`
	LastReadAt  time.Time `json:"last_read_at"`
}

func (t *UnreadStatus) TableName() string {
	return "unread_status"
}
