package client

import (
	"context"

	"github.com/questx-lab/chatsync/internal/model"
)

func (c *storeCaller) GetChannels(ctx context.Context, req *model.GetChannelsRequest) (*model.GetChannelsResponse, error) {
	return call[model.GetChannelsResponse](ctx, c, "getChannels", req)
}

func (c *storeCaller) CreateChannel(ctx context.Context, req *model.CreateChannelRequest) (*model.CreateChannelResponse, error) {
	return call[model.CreateChannelResponse](ctx, c, "createChannel", req)
}

func (c *storeCaller) CreateDirectChannel(ctx context.Context, req *model.CreateDirectChannelRequest) (*model.CreateDirectChannelResponse, error) {
	return call[model.CreateDirectChannelResponse](ctx, c, "createDirectChannel", req)
}

func (c *storeCaller) UpdateChannel(ctx context.Context, req *model.UpdateChannelRequest) (*model.UpdateChannelResponse, error) {
	return call[model.UpdateChannelResponse](ctx, c, "updateChannel", req)
}

func (c *storeCaller) ArchiveChannel(ctx context.Context, req *model.ArchiveChannelRequest) (*model.ArchiveChannelResponse, error) {
	return call[model.ArchiveChannelResponse](ctx, c, "archiveChannel", req)
}

func (c *storeCaller) DeleteChannel(ctx context.Context, req *model.DeleteChannelRequest) (*model.DeleteChannelResponse, error) {
	return call[model.DeleteChannelResponse](ctx, c, "deleteChannel", req)
}

func (c *storeCaller) GetNotificationSettings(ctx context.Context, req *model.GetNotificationSettingsRequest) (*model.GetNotificationSettingsResponse, error) {
	return call[model.GetNotificationSettingsResponse](ctx, c, "getNotificationSettings", req)
}

func (c *storeCaller) SetNotificationLevel(ctx context.Context, req *model.SetNotificationLevelRequest) (*model.SetNotificationLevelResponse, error) {
	return call[model.SetNotificationLevelResponse](ctx, c, "setNotificationLevel", req)
}

func (c *storeCaller) GetMessages(ctx context.Context, req *model.GetMessagesRequest) (*model.GetMessagesResponse, error) {
	return call[model.GetMessagesResponse](ctx, c, "getMessages", req)
}

func (c *storeCaller) GetThread(ctx context.Context, req *model.GetThreadRequest) (*model.GetThreadResponse, error) {
	return call[model.GetThreadResponse](ctx, c, "getThread", req)
}

func (c *storeCaller) SendMessage(ctx context.Context, req *model.SendMessageRequest) (*model.SendMessageResponse, error) {
	return call[model.SendMessageResponse](ctx, c, "sendMessage", req)
}

func (c *storeCaller) EditMessage(ctx context.Context, req *model.EditMessageRequest) (*model.EditMessageResponse, error) {
	return call[model.EditMessageResponse](ctx, c, "editMessage", req)
}

func (c *storeCaller) DeleteMessage(ctx context.Context, req *model.DeleteMessageRequest) (*model.DeleteMessageResponse, error) {
	return call[model.DeleteMessageResponse](ctx, c, "deleteMessage", req)
}

func (c *storeCaller) ToggleReaction(ctx context.Context, req *model.ToggleReactionRequest) (*model.ToggleReactionResponse, error) {
	return call[model.ToggleReactionResponse](ctx, c, "toggleReaction", req)
}

func (c *storeCaller) PinMessage(ctx context.Context, req *model.PinMessageRequest) (*model.PinMessageResponse, error) {
	return call[model.PinMessageResponse](ctx, c, "pinMessage", req)
}

func (c *storeCaller) GetUnread(ctx context.Context, req *model.GetUnreadRequest) (*model.GetUnreadResponse, error) {
	return call[model.GetUnreadResponse](ctx, c, "getUnread", req)
}

func (c *storeCaller) MarkChannelRead(ctx context.Context, req *model.MarkChannelReadRequest) (*model.MarkChannelReadResponse, error) {
	return call[model.MarkChannelReadResponse](ctx, c, "markChannelRead", req)
}

func (c *storeCaller) GetReceipts(ctx context.Context, req *model.GetReceiptsRequest) (*model.GetReceiptsResponse, error) {
	return call[model.GetReceiptsResponse](ctx, c, "getReceipts", req)
}

func (c *storeCaller) MarkMessagesRead(ctx context.Context, req *model.MarkMessagesReadRequest) (*model.MarkMessagesReadResponse, error) {
	return call[model.MarkMessagesReadResponse](ctx, c, "markMessagesRead", req)
}

func (c *storeCaller) GetMembers(ctx context.Context, req *model.GetMembersRequest) (*model.GetMembersResponse, error) {
	return call[model.GetMembersResponse](ctx, c, "getMembers", req)
}

func (c *storeCaller) AddMember(ctx context.Context, req *model.AddMemberRequest) (*model.AddMemberResponse, error) {
	return call[model.AddMemberResponse](ctx, c, "addMember", req)
}

func (c *storeCaller) SetRole(ctx context.Context, req *model.SetRoleRequest) (*model.SetRoleResponse, error) {
	return call[model.SetRoleResponse](ctx, c, "setRole", req)
}

func (c *storeCaller) Kick(ctx context.Context, req *model.KickRequest) (*model.KickResponse, error) {
	return call[model.KickResponse](ctx, c, "kick", req)
}

func (c *storeCaller) GetModeration(ctx context.Context, req *model.GetModerationRequest) (*model.GetModerationResponse, error) {
	return call[model.GetModerationResponse](ctx, c, "getModeration", req)
}

func (c *storeCaller) Mute(ctx context.Context, req *model.MuteRequest) (*model.MuteResponse, error) {
	return call[model.MuteResponse](ctx, c, "mute", req)
}

func (c *storeCaller) Unmute(ctx context.Context, req *model.UnmuteRequest) (*model.UnmuteResponse, error) {
	return call[model.UnmuteResponse](ctx, c, "unmute", req)
}

func (c *storeCaller) Warn(ctx context.Context, req *model.WarnRequest) (*model.WarnResponse, error) {
	return call[model.WarnResponse](ctx, c, "warn", req)
}

func (c *storeCaller) UpdateRateLimits(ctx context.Context, req *model.UpdateRateLimitsRequest) (*model.UpdateRateLimitsResponse, error) {
	return call[model.UpdateRateLimitsResponse](ctx, c, "updateRateLimits", req)
}

func (c *storeCaller) CheckRateLimit(ctx context.Context, req *model.CheckRateLimitRequest) (*model.CheckRateLimitResponse, error) {
	return call[model.CheckRateLimitResponse](ctx, c, "checkRateLimit", req)
}
