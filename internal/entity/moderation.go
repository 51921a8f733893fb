package entity

import "time"

type RateLimitPolicy struct {
	ChannelID         string `json:"channel_id" gorm:"primaryKey"`
	MessagesPerMinute int    `json:"messages_per_minute"`
	MessagesPerHour   int    `json:"messages_per_hour"`

	// SlowmodeSeconds is nil when slowmode is disabled.
	SlowmodeSeconds *int `json:"slowmode_seconds"`

	UpdatedBy string    `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *RateLimitPolicy) TableName() string {
	return "rate_limits"
}

func (t *RateLimitPolicy) Slowmode() time.Duration {
	if t == nil || t.SlowmodeSeconds == nil || *t.SlowmodeSeconds <= 0 {
		return 0
	}

	return time.Duration(*t.SlowmodeSeconds) * time.Second
}

type MuteRecord struct {
	ID        string     `json:"id" gorm:"primaryKey"`
	ChannelID string     `json:"channel_id" gorm:"index"`
	UserID    string     `json:"user_id" gorm:"index"`
	Reason    string     `json:"reason"`
	MutedBy   string     `json:"muted_by"`
	ExpiresAt *time.Time `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
}

func (t *MuteRecord) TableName() string {
	return "mute_records"
}

// Active reports whether the mute still applies at now. Records without an
// expiry never lapse.
func (t *MuteRecord) Active(now time.Time) bool {
	return t.ExpiresAt == nil || !now.After(*t.ExpiresAt)
}

// Notice is the text shown to a muted user trying to send.
func (t *MuteRecord) Notice() string {
	msg := "You are muted in this channel"
	if t.ExpiresAt != nil {
		msg += " until " + t.ExpiresAt.UTC().Format(time.RFC3339)
	}
	if t.Reason != "" {
		msg += ": " + t.Reason
	}

	return msg
}

type Warning struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	ChannelID string    `json:"channel_id" gorm:"index"`
	UserID    string    `json:"user_id" gorm:"index"`
	Reason    string    `json:"reason"`
	IssuedBy  string    `json:"issued_by"`
	CreatedAt time.Time `json:"created_at"`
}

func (t *Warning) TableName() string {
	return "warnings"
}
