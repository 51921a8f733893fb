package model

import "github.com/questx-lab/chatsync/internal/entity"

type GetChannelsRequest struct {
	IncludeArchived bool `json:"include_archived"`
}

type GetChannelsResponse struct {
	Result
	Channels []entity.Channel `json:"channels"`
}

type CreateChannelRequest struct {
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	Description string   `json:"description"`
	Members     []string `json:"members"`
}

type CreateChannelResponse struct {
	Result
	Channel entity.Channel `json:"channel"`
}

type CreateDirectChannelRequest struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

type CreateDirectChannelResponse struct {
	Result
	Channel entity.Channel `json:"channel"`
}

type UpdateChannelRequest struct {
	ChannelID   string `json:"channel_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type UpdateChannelResponse struct {
	Result
}

type ArchiveChannelRequest struct {
	ChannelID string `json:"channel_id"`
	Archived  bool   `json:"archived"`
}

type ArchiveChannelResponse struct {
	Result
}

type DeleteChannelRequest struct {
	ChannelID string `json:"channel_id"`
}

type DeleteChannelResponse struct {
	Result
}

type GetNotificationSettingsRequest struct{}

type GetNotificationSettingsResponse struct {
	Result
	Settings []entity.NotificationSetting `json:"settings"`
}

type SetNotificationLevelRequest struct {
	ChannelID string `json:"channel_id"`
	Level     string `json:"level"`
}

type SetNotificationLevelResponse struct {
	Result
}
