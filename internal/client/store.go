package client

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/questx-lab/chatsync/internal/common"
	"github.com/questx-lab/chatsync/internal/model"
	"github.com/questx-lab/chatsync/pkg/errorx"
	"github.com/questx-lab/chatsync/pkg/xcontext"
)

type ChannelCaller interface {
	GetChannels(ctx context.Context, req *model.GetChannelsRequest) (*model.GetChannelsResponse, error)
	CreateChannel(ctx context.Context, req *model.CreateChannelRequest) (*model.CreateChannelResponse, error)
	CreateDirectChannel(ctx context.Context, req *model.CreateDirectChannelRequest) (*model.CreateDirectChannelResponse, error)
	UpdateChannel(ctx context.Context, req *model.UpdateChannelRequest) (*model.UpdateChannelResponse, error)
	ArchiveChannel(ctx context.Context, req *model.ArchiveChannelRequest) (*model.ArchiveChannelResponse, error)
	DeleteChannel(ctx context.Context, req *model.DeleteChannelRequest) (*model.DeleteChannelResponse, error)
	GetNotificationSettings(ctx context.Context, req *model.GetNotificationSettingsRequest) (*model.GetNotificationSettingsResponse, error)
	SetNotificationLevel(ctx context.Context, req *model.SetNotificationLevelRequest) (*model.SetNotificationLevelResponse, error)
}

type MessageCaller interface {
	GetMessages(ctx context.Context, req *model.GetMessagesRequest) (*model.GetMessagesResponse, error)
	GetThread(ctx context.Context, req *model.GetThreadRequest) (*model.GetThreadResponse, error)
	SendMessage(ctx context.Context, req *model.SendMessageRequest) (*model.SendMessageResponse, error)
	EditMessage(ctx context.Context, req *model.EditMessageRequest) (*model.EditMessageResponse, error)
	DeleteMessage(ctx context.Context, req *model.DeleteMessageRequest) (*model.DeleteMessageResponse, error)
	ToggleReaction(ctx context.Context, req *model.ToggleReactionRequest) (*model.ToggleReactionResponse, error)
	PinMessage(ctx context.Context, req *model.PinMessageRequest) (*model.PinMessageResponse, error)
}

type UnreadCaller interface {
	GetUnread(ctx context.Context, req *model.GetUnreadRequest) (*model.GetUnreadResponse, error)
	MarkChannelRead(ctx context.Context, req *model.MarkChannelReadRequest) (*model.MarkChannelReadResponse, error)
}

type ReceiptCaller interface {
	GetReceipts(ctx context.Context, req *model.GetReceiptsRequest) (*model.GetReceiptsResponse, error)
	MarkMessagesRead(ctx context.Context, req *model.MarkMessagesReadRequest) (*model.MarkMessagesReadResponse, error)
}

type MemberCaller interface {
	GetMembers(ctx context.Context, req *model.GetMembersRequest) (*model.GetMembersResponse, error)
	AddMember(ctx context.Context, req *model.AddMemberRequest) (*model.AddMemberResponse, error)
	SetRole(ctx context.Context, req *model.SetRoleRequest) (*model.SetRoleResponse, error)
	Kick(ctx context.Context, req *model.KickRequest) (*model.KickResponse, error)
}

type ModerationCaller interface {
	GetModeration(ctx context.Context, req *model.GetModerationRequest) (*model.GetModerationResponse, error)
	Mute(ctx context.Context, req *model.MuteRequest) (*model.MuteResponse, error)
	Unmute(ctx context.Context, req *model.UnmuteRequest) (*model.UnmuteResponse, error)
	Warn(ctx context.Context, req *model.WarnRequest) (*model.WarnResponse, error)
	UpdateRateLimits(ctx context.Context, req *model.UpdateRateLimitsRequest) (*model.UpdateRateLimitsResponse, error)
	CheckRateLimit(ctx context.Context, req *model.CheckRateLimitRequest) (*model.CheckRateLimitResponse, error)
}

// StoreCaller is the whole mutation and read surface of the remote store.
type StoreCaller interface {
	ChannelCaller
	MessageCaller
	UnreadCaller
	ReceiptCaller
	MemberCaller
	ModerationCaller
	Close()
}

type storeCaller struct {
	client *rpc.Client
}

func NewStoreCaller(client *rpc.Client) *storeCaller {
	return &storeCaller{client: client}
}

// DialStoreCaller connects to the store over HTTP, authenticating every call
// with token.
func DialStoreCaller(ctx context.Context, endpoint, token string) (*storeCaller, error) {
	client, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	if token != "" {
		client.SetHeader("Authorization", "Bearer "+token)
	}

	return NewStoreCaller(client), nil
}

func (c *storeCaller) Close() {
	c.client.Close()
}

func (c *storeCaller) fname(ctx context.Context, funcName string) string {
	return fmt.Sprintf("%s_%s", xcontext.Configs(ctx).Store.RPCName, funcName)
}

type resulter interface {
	Err() error
}

// call invokes funcName and folds both transport and store failures into a
// single error. Transport failures are reported with errorx.Transport.
func call[R any, PR interface {
	*R
	resulter
}](ctx context.Context, c *storeCaller, funcName string, req any) (*R, error) {
	timeout := xcontext.Configs(ctx).Sync.CallTimeout
	if _, ok := ctx.Deadline(); !ok && timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		common.PromHistograms[common.StoreRequestDuration].
			WithLabelValues(funcName).Observe(time.Since(start).Seconds())
	}()

	resp := new(R)
	if err := c.client.CallContext(ctx, resp, c.fname(ctx, funcName), req); err != nil {
		common.PromCounters[common.StoreRequestTotal].WithLabelValues(funcName, "transport_error").Inc()
		return nil, errorx.New(errorx.Transport, "Unable to reach the store: %v", err)
	}

	if err := PR(resp).Err(); err != nil {
		common.PromCounters[common.StoreRequestTotal].WithLabelValues(funcName, "rejected").Inc()
		return nil, err
	}

	common.PromCounters[common.StoreRequestTotal].WithLabelValues(funcName, "ok").Inc()
	return resp, nil
}
