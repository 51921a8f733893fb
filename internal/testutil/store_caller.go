package testutil

import (
	"context"

	"github.com/questx-lab/chatsync/internal/model"
)

// MockStoreCaller answers every call with a successful empty response unless
// the matching Func field is set.
type MockStoreCaller struct {
	GetChannelsFunc             func(ctx context.Context, req *model.GetChannelsRequest) (*model.GetChannelsResponse, error)
	CreateChannelFunc           func(ctx context.Context, req *model.CreateChannelRequest) (*model.CreateChannelResponse, error)
	CreateDirectChannelFunc     func(ctx context.Context, req *model.CreateDirectChannelRequest) (*model.CreateDirectChannelResponse, error)
	UpdateChannelFunc           func(ctx context.Context, req *model.UpdateChannelRequest) (*model.UpdateChannelResponse, error)
	ArchiveChannelFunc          func(ctx context.Context, req *model.ArchiveChannelRequest) (*model.ArchiveChannelResponse, error)
	DeleteChannelFunc           func(ctx context.Context, req *model.DeleteChannelRequest) (*model.DeleteChannelResponse, error)
	GetNotificationSettingsFunc func(ctx context.Context, req *model.GetNotificationSettingsRequest) (*model.GetNotificationSettingsResponse, error)
	SetNotificationLevelFunc    func(ctx context.Context, req *model.SetNotificationLevelRequest) (*model.SetNotificationLevelResponse, error)
	GetMessagesFunc             func(ctx context.Context, req *model.GetMessagesRequest) (*model.GetMessagesResponse, error)
	GetThreadFunc               func(ctx context.Context, req *model.GetThreadRequest) (*model.GetThreadResponse, error)
	SendMessageFunc             func(ctx context.Context, req *model.SendMessageRequest) (*model.SendMessageResponse, error)
	EditMessageFunc             func(ctx context.Context, req *model.EditMessageRequest) (*model.EditMessageResponse, error)
	DeleteMessageFunc           func(ctx context.Context, req *model.DeleteMessageRequest) (*model.DeleteMessageResponse, error)
	ToggleReactionFunc          func(ctx context.Context, req *model.ToggleReactionRequest) (*model.ToggleReactionResponse, error)
	PinMessageFunc              func(ctx context.Context, req *model.PinMessageRequest) (*model.PinMessageResponse, error)
	GetUnreadFunc               func(ctx context.Context, req *model.GetUnreadRequest) (*model.GetUnreadResponse, error)
	MarkChannelReadFunc         func(ctx context.Context, req *model.MarkChannelReadRequest) (*model.MarkChannelReadResponse, error)
	GetReceiptsFunc             func(ctx context.Context, req *model.GetReceiptsRequest) (*model.GetReceiptsResponse, error)
	MarkMessagesReadFunc        func(ctx context.Context, req *model.MarkMessagesReadRequest) (*model.MarkMessagesReadResponse, error)
	GetMembersFunc              func(ctx context.Context, req *model.GetMembersRequest) (*model.GetMembersResponse, error)
	AddMemberFunc               func(ctx context.Context, req *model.AddMemberRequest) (*model.AddMemberResponse, error)
	SetRoleFunc                 func(ctx context.Context, req *model.SetRoleRequest) (*model.SetRoleResponse, error)
	KickFunc                    func(ctx context.Context, req *model.KickRequest) (*model.KickResponse, error)
	GetModerationFunc           func(ctx context.Context, req *model.GetModerationRequest) (*model.GetModerationResponse, error)
	MuteFunc                    func(ctx context.Context, req *model.MuteRequest) (*model.MuteResponse, error)
	UnmuteFunc                  func(ctx context.Context, req *model.UnmuteRequest) (*model.UnmuteResponse, error)
	WarnFunc                    func(ctx context.Context, req *model.WarnRequest) (*model.WarnResponse, error)
	UpdateRateLimitsFunc        func(ctx context.Context, req *model.UpdateRateLimitsRequest) (*model.UpdateRateLimitsResponse, error)
	CheckRateLimitFunc          func(ctx context.Context, req *model.CheckRateLimitRequest) (*model.CheckRateLimitResponse, error)
	CloseFunc                   func()
}

func (c *MockStoreCaller) GetChannels(ctx context.Context, req *model.GetChannelsRequest) (*model.GetChannelsResponse, error) {
	if c.GetChannelsFunc != nil {
		return c.GetChannelsFunc(ctx, req)
	}

	return &model.GetChannelsResponse{Result: model.OK()}, nil
}

func (c *MockStoreCaller) CreateChannel(ctx context.Context, req *model.CreateChannelRequest) (*model.CreateChannelResponse, error) {
	if c.CreateChannelFunc != nil {
		return c.CreateChannelFunc(ctx, req)
	}

	return &model.CreateChannelResponse{Result: model.OK()}, nil
}

func (c *MockStoreCaller) CreateDirectChannel(ctx context.Context, req *model.CreateDirectChannelRequest) (*model.CreateDirectChannelResponse, error) {
	if c.CreateDirectChannelFunc != nil {
		return c.CreateDirectChannelFunc(ctx, req)
	}

	return &model.CreateDirectChannelResponse{Result: model.OK()}, nil
}

func (c *MockStoreCaller) UpdateChannel(ctx context.Context, req *model.UpdateChannelRequest) (*model.UpdateChannelResponse, error) {
	if c.UpdateChannelFunc != nil {
		return c.UpdateChannelFunc(ctx, req)
	}

	return &model.UpdateChannelResponse{Result: model.OK()}, nil
}

func (c *MockStoreCaller) ArchiveChannel(ctx context.Context, req *model.ArchiveChannelRequest) (*model.ArchiveChannelResponse, error) {
	if c.ArchiveChannelFunc != nil {
		return c.ArchiveChannelFunc(ctx, req)
	}

	return &model.ArchiveChannelResponse{Result: model.OK()}, nil
}

func (c *MockStoreCaller) DeleteChannel(ctx context.Context, req *model.DeleteChannelRequest) (*model.DeleteChannelResponse, error) {
	if c.DeleteChannelFunc != nil {
		return c.DeleteChannelFunc(ctx, req)
	}

	return &model.DeleteChannelResponse{Result: model.OK()}, nil
}

func (c *MockStoreCaller) GetNotificationSettings(ctx context.Context, req *model.GetNotificationSettingsRequest) (*model.GetNotificationSettingsResponse, error) {
	if c.GetNotificationSettingsFunc != nil {
		return c.GetNotificationSettingsFunc(ctx, req)
	}

	return &model.GetNotificationSettingsResponse{Result: model.OK()}, nil
}

func (c *MockStoreCaller) SetNotificationLevel(ctx context.Context, req *model.SetNotificationLevelRequest) (*model.SetNotificationLevelResponse, error) {
	if c.SetNotificationLevelFunc != nil {
		return c.SetNotificationLevelFunc(ctx, req)
	}

	return &model.SetNotificationLevelResponse{Result: model.OK()}, nil
}

func (c *MockStoreCaller) GetMessages(ctx context.Context, req *model.GetMessagesRequest) (*model.GetMessagesResponse, error) {
	if c.GetMessagesFunc != nil {
		return c.GetMessagesFunc(ctx, req)
	}

	return &model.GetMessagesResponse{Result: model.OK()}, nil
}

func (c *MockStoreCaller) GetThread(ctx context.Context, req *model.GetThreadRequest) (*model.GetThreadResponse, error) {
	if c.GetThreadFunc != nil {
		return c.GetThreadFunc(ctx, req)
	}

	return &model.GetThreadResponse{Result: model.OK()}, nil
}

func (c *MockStoreCaller) SendMessage(ctx context.Context, req *model.SendMessageRequest) (*model.SendMessageResponse, error) {
	if c.SendMessageFunc != nil {
		return c.SendMessageFunc(ctx, req)
	}

	return &model.SendMessageResponse{Result: model.OK()}, nil
}

func (c *MockStoreCaller) EditMessage(ctx context.Context, req *model.EditMessageRequest) (*model.EditMessageResponse, error) {
	if c.EditMessageFunc != nil {
		return c.EditMessageFunc(ctx, req)
	}

	return &model.EditMessageResponse{Result: model.OK()}, nil
}

func (c *MockStoreCaller) DeleteMessage(ctx context.Context, req *model.DeleteMessageRequest) (*model.DeleteMessageResponse, error) {
	if c.DeleteMessageFunc != nil {
		return c.DeleteMessageFunc(ctx, req)
	}

	return &model.DeleteMessageResponse{Result: model.OK()}, nil
}

func (c *MockStoreCaller) ToggleReaction(ctx context.Context, req *model.ToggleReactionRequest) (*model.ToggleReactionResponse, error) {
	if c.ToggleReactionFunc != nil {
		return c.ToggleReactionFunc(ctx, req)
	}

	return &model.ToggleReactionResponse{Result: model.OK()}, nil
}

func (c *MockStoreCaller) PinMessage(ctx context.Context, req *model.PinMessageRequest) (*model.PinMessageResponse, error) {
	if c.PinMessageFunc != nil {
		return c.PinMessageFunc(ctx, req)
	}

	return &model.PinMessageResponse{Result: model.OK()}, nil
}

func (c *MockStoreCaller) GetUnread(ctx context.Context, req *model.GetUnreadRequest) (*model.GetUnreadResponse, error) {
	if c.GetUnreadFunc != nil {
		return c.GetUnreadFunc(ctx, req)
	}

	return &model.GetUnreadResponse{Result: model.OK()}, nil
}

func (c *MockStoreCaller) MarkChannelRead(ctx context.Context, req *model.MarkChannelReadRequest) (*model.MarkChannelReadResponse, error) {
	if c.MarkChannelReadFunc != nil {
		return c.MarkChannelReadFunc(ctx, req)
	}

	return &model.MarkChannelReadResponse{Result: model.OK()}, nil
}

func (c *MockStoreCaller) GetReceipts(ctx context.Context, req *model.GetReceiptsRequest) (*model.GetReceiptsResponse, error) {
	if c.GetReceiptsFunc != nil {
		return c.GetReceiptsFunc(ctx, req)
	}

	return &model.GetReceiptsResponse{Result: model.OK()}, nil
}

func (c *MockStoreCaller) MarkMessagesRead(ctx context.Context, req *model.MarkMessagesReadRequest) (*model.MarkMessagesReadResponse, error) {
	if c.MarkMessagesReadFunc != nil {
		return c.MarkMessagesReadFunc(ctx, req)
	}

	return &model.MarkMessagesReadResponse{Result: model.OK()}, nil
}

func (c *MockStoreCaller) GetMembers(ctx context.Context, req *model.GetMembersRequest) (*model.GetMembersResponse, error) {
	if c.GetMembersFunc != nil {
		return c.GetMembersFunc(ctx, req)
	}

	return &model.GetMembersResponse{Result: model.OK()}, nil
}

func (c *MockStoreCaller) AddMember(ctx context.Context, req *model.AddMemberRequest) (*model.AddMemberResponse, error) {
	if c.AddMemberFunc != nil {
		return c.AddMemberFunc(ctx, req)
	}

	return &model.AddMemberResponse{Result: model.OK()}, nil
}

func (c *MockStoreCaller) SetRole(ctx context.Context, req *model.SetRoleRequest) (*model.SetRoleResponse, error) {
	if c.SetRoleFunc != nil {
		return c.SetRoleFunc(ctx, req)
	}

	return &model.SetRoleResponse{Result: model.OK()}, nil
}

func (c *MockStoreCaller) Kick(ctx context.Context, req *model.KickRequest) (*model.KickResponse, error) {
	if c.KickFunc != nil {
		return c.KickFunc(ctx, req)
	}

	return &model.KickResponse{Result: model.OK()}, nil
}

func (c *MockStoreCaller) GetModeration(ctx context.Context, req *model.GetModerationRequest) (*model.GetModerationResponse, error) {
	if c.GetModerationFunc != nil {
		return c.GetModerationFunc(ctx, req)
	}

	return &model.GetModerationResponse{Result: model.OK()}, nil
}

func (c *MockStoreCaller) Mute(ctx context.Context, req *model.MuteRequest) (*model.MuteResponse, error) {
	if c.MuteFunc != nil {
		return c.MuteFunc(ctx, req)
	}

	return &model.MuteResponse{Result: model.OK()}, nil
}

func (c *MockStoreCaller) Unmute(ctx context.Context, req *model.UnmuteRequest) (*model.UnmuteResponse, error) {
	if c.UnmuteFunc != nil {
		return c.UnmuteFunc(ctx, req)
	}

	return &model.UnmuteResponse{Result: model.OK()}, nil
}

func (c *MockStoreCaller) Warn(ctx context.Context, req *model.WarnRequest) (*model.WarnResponse, error) {
	if c.WarnFunc != nil {
		return c.WarnFunc(ctx, req)
	}

	return &model.WarnResponse{Result: model.OK()}, nil
}

func (c *MockStoreCaller) UpdateRateLimits(ctx context.Context, req *model.UpdateRateLimitsRequest) (*model.UpdateRateLimitsResponse, error) {
	if c.UpdateRateLimitsFunc != nil {
		return c.UpdateRateLimitsFunc(ctx, req)
	}

	return &model.UpdateRateLimitsResponse{Result: model.OK()}, nil
}

func (c *MockStoreCaller) CheckRateLimit(ctx context.Context, req *model.CheckRateLimitRequest) (*model.CheckRateLimitResponse, error) {
	if c.CheckRateLimitFunc != nil {
		return c.CheckRateLimitFunc(ctx, req)
	}

	return &model.CheckRateLimitResponse{Result: model.OK(), Allowed: true}, nil
}

func (c *MockStoreCaller) Close() {
	if c.CloseFunc != nil {
		c.CloseFunc()
	}
}
