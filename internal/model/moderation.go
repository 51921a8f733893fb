package model

import "github.com/questx-lab/chatsync/internal/entity"

type GetModerationRequest struct {
	ChannelID string `json:"channel_id"`
}

type GetModerationResponse struct {
	Result
	Policy *entity.RateLimitPolicy `json:"policy,omitempty"`
	Mutes  []entity.MuteRecord     `json:"mutes"`
}

type MuteRequest struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Reason    string `json:"reason,omitempty"`

	// DurationMinutes is nil for an indefinite mute.
	DurationMinutes *int `json:"duration_minutes,omitempty"`
}

type MuteResponse struct {
	Result
	Mute entity.MuteRecord `json:"mute"`
}

type UnmuteRequest struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
}

type UnmuteResponse struct {
	Result
}

type WarnRequest struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Reason    string `json:"reason"`
}

type WarnResponse struct {
	Result
	WarningCount int `json:"warning_count"`
}

type UpdateRateLimitsRequest struct {
	ChannelID         string `json:"channel_id"`
	MessagesPerMinute int    `json:"messages_per_minute"`
	MessagesPerHour   int    `json:"messages_per_hour"`
	SlowmodeSeconds   *int   `json:"slowmode_seconds,omitempty"`
}

type UpdateRateLimitsResponse struct {
	Result
}

type CheckRateLimitRequest struct {
	ChannelID string `json:"channel_id"`
}

type CheckRateLimitResponse struct {
	Result
	Allowed bool   `json:"allowed"`
	Muted   bool   `json:"muted,omitempty"`
	Reason  string `json:"reason,omitempty"`

	// RetryAfter is the number of seconds until a send may succeed.
	RetryAfter int `json:"retry_after,omitempty"`
}
