package entity

import "time"

type ChannelMember struct {
	ChannelID   string    `json:"channel_id" gorm:"primaryKey"`
	UserID      string    `json:"user_id" gorm:"primaryKey"`
	Role        Role      `json:"role"`
	DisplayName string    `json:"display_name"`
	JoinedAt    time.Time `json:"joined_at"`
}

func (t *ChannelMember) TableName() string {
	return "channel_members"
}
