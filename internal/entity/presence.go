package entity

import "time"

// TypingPresence is an ephemeral announcement. It is never persisted.
type TypingPresence struct {
	ChannelID   string    `json:"channel_id"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	IsTyping    bool      `json:"is_typing"`
	Heartbeat   time.Time `json:"heartbeat"`
}
