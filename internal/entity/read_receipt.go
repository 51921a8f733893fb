package entity

import "time"

type ReadReceipt struct {
	MessageID  string    `json:"message_id" gorm:"primaryKey"`
	ReaderID   string    `json:"reader_id" gorm:"primaryKey"`
	ReaderName string    `json:"reader_name"`
	ChannelID  string    `json:"channel_id" gorm:"index"`
	ReadAt     time.Time `json:"read_at"`
}

func (t *ReadReceipt) TableName() string {
	return "read_receipts"
}
