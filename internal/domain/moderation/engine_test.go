package moderation

import (
	"context"
	"testing"
	"time"

	"github.com/questx-lab/chatsync/internal/domain/eventbus"
	"github.com/questx-lab/chatsync/internal/domain/role"
	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/internal/model"
	"github.com/questx-lab/chatsync/internal/testutil"
	"github.com/questx-lab/chatsync/pkg/errorx"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, self string, store *testutil.MockStoreCaller) (context.Context, *Engine) {
	if store.GetMembersFunc == nil {
		store.GetMembersFunc = func(ctx context.Context, req *model.GetMembersRequest) (*model.GetMembersResponse, error) {
			return &model.GetMembersResponse{Result: model.OK(), Members: []entity.ChannelMember{
				{ChannelID: "general", UserID: "alice", Role: entity.RoleOwner},
				{ChannelID: "general", UserID: "bob", Role: entity.RoleAdmin},
				{ChannelID: "general", UserID: "carol", Role: entity.RoleModerator},
				{ChannelID: "general", UserID: "dave", Role: entity.RoleMember},
				{ChannelID: "general", UserID: "erin", Role: entity.RoleMember},
			}}, nil
		}
	}

	ctx := testutil.MockContext()
	identity := model.Identity{UserID: self}
	roles := role.NewStore("general", identity, store)
	require.NoError(t, roles.Load(ctx))

	e := NewEngine("general", identity, store, roles)
	e.now = func() time.Time { return now }
	require.NoError(t, e.Load(ctx))
	return ctx, e
}

func Test_Engine_CheckSend(t *testing.T) {
	expired := now.Add(-time.Minute)
	later := now.Add(time.Hour)

	testCases := []struct {
		name      string
		mutes     []entity.MuteRecord
		check     func(ctx context.Context, req *model.CheckRateLimitRequest) (*model.CheckRateLimitResponse, error)
		wantCode  errorx.Code
		want      Decision
		wantCheck bool
	}{
		{
			name:      "allowed",
			wantCheck: true,
			want:      Decision{Allowed: true},
		},
		{
			name: "slowmode",
			check: func(ctx context.Context, req *model.CheckRateLimitRequest) (*model.CheckRateLimitResponse, error) {
				return &model.CheckRateLimitResponse{
					Result:     model.OK(),
					Reason:     "Slowmode is enabled. Wait 29s before sending another message",
					RetryAfter: 29,
				}, nil
			},
			wantCheck: true,
			wantCode:  errorx.TooManyRequests,
			want: Decision{
				Reason:     "Slowmode is enabled. Wait 29s before sending another message",
				RetryAfter: 29 * time.Second,
			},
		},
		{
			name: "transport failure fails open",
			check: func(ctx context.Context, req *model.CheckRateLimitRequest) (*model.CheckRateLimitResponse, error) {
				return nil, errorx.New(errorx.Transport, "Unable to reach the store")
			},
			wantCheck: true,
			want:      Decision{Allowed: true, FailedOpen: true},
		},
		{
			name: "store rejection is surfaced",
			check: func(ctx context.Context, req *model.CheckRateLimitRequest) (*model.CheckRateLimitResponse, error) {
				return nil, errorx.New(errorx.PermissionDenied, "You are not a member of this channel")
			},
			wantCheck: true,
			wantCode:  errorx.PermissionDenied,
		},
		{
			name:     "muted",
			mutes:    []entity.MuteRecord{{ID: "1", ChannelID: "general", UserID: "dave", Reason: "spam", ExpiresAt: &later}},
			wantCode: errorx.Muted,
			want:     Decision{Reason: "You are muted in this channel until 2024-03-01T11:00:00Z: spam"},
		},
		{
			name: "mute known only to the store",
			check: func(ctx context.Context, req *model.CheckRateLimitRequest) (*model.CheckRateLimitResponse, error) {
				return &model.CheckRateLimitResponse{
					Result: model.OK(),
					Muted:  true,
					Reason: "You are muted in this channel: spam",
				}, nil
			},
			wantCheck: true,
			wantCode:  errorx.Muted,
			want:      Decision{Reason: "You are muted in this channel: spam"},
		},
		{
			name:      "expired mute is inert",
			mutes:     []entity.MuteRecord{{ID: "1", ChannelID: "general", UserID: "dave", ExpiresAt: &expired}},
			wantCheck: true,
			want:      Decision{Allowed: true},
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			checked := false
			store := &testutil.MockStoreCaller{
				GetModerationFunc: func(ctx context.Context, req *model.GetModerationRequest) (*model.GetModerationResponse, error) {
					return &model.GetModerationResponse{Result: model.OK(), Mutes: tt.mutes}, nil
				},
				CheckRateLimitFunc: func(ctx context.Context, req *model.CheckRateLimitRequest) (*model.CheckRateLimitResponse, error) {
					checked = true
					require.Equal(t, "general", req.ChannelID)
					if tt.check != nil {
						return tt.check(ctx, req)
					}
					return &model.CheckRateLimitResponse{Result: model.OK(), Allowed: true}, nil
				},
			}

			ctx, e := newTestEngine(t, "dave", store)
			decision, err := e.CheckSend(ctx)
			if tt.wantCode != 0 {
				require.True(t, errorx.Is(err, tt.wantCode), "got %v", err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.want, decision)
			require.Equal(t, tt.wantCheck, checked)
		})
	}
}

func Test_Engine_MuteUser(t *testing.T) {
	testCases := []struct {
		name     string
		self     string
		target   string
		duration *time.Duration
		minutes  *int
		wantErr  errorx.Code
	}{
		{name: "moderator mutes member indefinitely", self: "carol", target: "dave"},
		{name: "duration is rounded up to minutes", self: "carol", target: "dave", duration: durationPtr(90 * time.Second), minutes: intPtr(2)},
		{name: "member cannot mute", self: "dave", target: "erin", wantErr: errorx.PermissionDenied},
		{name: "moderator cannot mute admin", self: "carol", target: "bob", wantErr: errorx.PermissionDenied},
		{name: "non positive duration", self: "carol", target: "dave", duration: durationPtr(0), wantErr: errorx.BadRequest},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			var got *model.MuteRequest
			store := &testutil.MockStoreCaller{
				MuteFunc: func(ctx context.Context, req *model.MuteRequest) (*model.MuteResponse, error) {
					got = req
					return &model.MuteResponse{Result: model.OK(), Mute: entity.MuteRecord{
						ID: "m1", ChannelID: "general", UserID: req.UserID, Reason: req.Reason,
					}}, nil
				},
			}

			ctx, e := newTestEngine(t, tt.self, store)
			_, err := e.MuteUser(ctx, tt.target, " flood ", tt.duration)
			if tt.wantErr != 0 {
				require.True(t, errorx.Is(err, tt.wantErr), "got %v", err)
				require.Nil(t, got)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.minutes, got.DurationMinutes)
			require.Equal(t, "flood", got.Reason)
			require.True(t, e.IsMuted(tt.target))
		})
	}
}

func Test_Engine_UnmuteUser(t *testing.T) {
	store := &testutil.MockStoreCaller{
		GetModerationFunc: func(ctx context.Context, req *model.GetModerationRequest) (*model.GetModerationResponse, error) {
			return &model.GetModerationResponse{Result: model.OK(), Mutes: []entity.MuteRecord{
				{ID: "1", ChannelID: "general", UserID: "dave"},
			}}, nil
		},
	}

	ctx, e := newTestEngine(t, "carol", store)
	require.True(t, e.IsMuted("dave"))
	require.NoError(t, e.UnmuteUser(ctx, "dave"))
	require.False(t, e.IsMuted("dave"))
}

func Test_Engine_Warn(t *testing.T) {
	count := 0
	store := &testutil.MockStoreCaller{
		WarnFunc: func(ctx context.Context, req *model.WarnRequest) (*model.WarnResponse, error) {
			count++
			return &model.WarnResponse{Result: model.OK(), WarningCount: count}, nil
		},
	}

	ctx, e := newTestEngine(t, "carol", store)

	_, err := e.Warn(ctx, "dave", "   ")
	require.True(t, errorx.Is(err, errorx.BadRequest))

	n, err := e.Warn(ctx, "dave", "Be nice")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = e.Warn(ctx, "dave", "Be nicer")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// Warnings never block sending.
	decision, err := e.CheckSend(ctx)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func Test_Engine_DeleteMessage(t *testing.T) {
	deleted := []string{}
	store := &testutil.MockStoreCaller{
		DeleteMessageFunc: func(ctx context.Context, req *model.DeleteMessageRequest) (*model.DeleteMessageResponse, error) {
			deleted = append(deleted, req.MessageID)
			return &model.DeleteMessageResponse{Result: model.OK()}, nil
		},
	}

	ctx, member := newTestEngine(t, "dave", store)
	require.NoError(t, member.DeleteMessage(ctx, "own", "dave"))
	require.True(t, errorx.Is(member.DeleteMessage(ctx, "other", "erin"), errorx.PermissionDenied))

	ctx, moderator := newTestEngine(t, "carol", store)
	require.NoError(t, moderator.DeleteMessage(ctx, "other", "erin"))

	require.Equal(t, []string{"own", "other"}, deleted)
}

func Test_Engine_UpdateRateLimits(t *testing.T) {
	var got *model.UpdateRateLimitsRequest
	store := &testutil.MockStoreCaller{
		UpdateRateLimitsFunc: func(ctx context.Context, req *model.UpdateRateLimitsRequest) (*model.UpdateRateLimitsResponse, error) {
			got = req
			return &model.UpdateRateLimitsResponse{Result: model.OK()}, nil
		},
	}

	ctx, moderator := newTestEngine(t, "carol", store)
	require.True(t, errorx.Is(moderator.UpdateRateLimits(ctx, 10, 100, intPtr(30)), errorx.PermissionDenied))
	require.Nil(t, got)

	ctx, admin := newTestEngine(t, "bob", store)
	require.True(t, errorx.Is(admin.UpdateRateLimits(ctx, -1, 100, nil), errorx.BadRequest))
	slowmode := intPtr(30)
	require.NoError(t, admin.UpdateRateLimits(ctx, 10, 100, slowmode))
	require.Equal(t, 30, *got.SlowmodeSeconds)
	require.Equal(t, 30*time.Second, admin.Policy().Slowmode())

	// The cached policy does not alias the argument.
	*slowmode = 5
	require.Equal(t, 30*time.Second, admin.Policy().Slowmode())
	require.Equal(t, "Slowmode is enabled. Members can send one message every 30s", admin.SlowmodeText())

	require.NoError(t, admin.UpdateRateLimits(ctx, 10, 100, nil))
	require.Equal(t, "", admin.SlowmodeText())
}

func Test_Engine_HandleEvent(t *testing.T) {
	ctx, e := newTestEngine(t, "dave", &testutil.MockStoreCaller{})
	require.Nil(t, e.Policy())

	policy, err := eventbus.NewRow(entity.RateLimitPolicy{ChannelID: "general", MessagesPerMinute: 5, SlowmodeSeconds: intPtr(10)})
	require.NoError(t, err)
	e.HandleEvent(ctx, eventbus.Event{Table: TableRateLimits, Op: eventbus.OpInsert, Row: policy})
	require.Equal(t, 10*time.Second, e.Policy().Slowmode())

	later := now.Add(time.Minute)
	mute, err := eventbus.NewRow(entity.MuteRecord{ID: "1", ChannelID: "general", UserID: "dave", ExpiresAt: &later})
	require.NoError(t, err)
	e.HandleEvent(ctx, eventbus.Event{Table: TableMuteRecords, Op: eventbus.OpInsert, Row: mute})
	require.True(t, e.IsMuted("dave"))
	require.Len(t, e.Mutes(), 1)

	// The record outlives its expiry but no longer applies.
	e.now = func() time.Time { return later.Add(time.Second) }
	require.False(t, e.IsMuted("dave"))
	require.Empty(t, e.Mutes())

	e.HandleEvent(ctx, eventbus.Event{Table: TableMuteRecords, Op: eventbus.OpDelete, Row: mute})
	e.HandleEvent(ctx, eventbus.Event{Table: TableRateLimits, Op: eventbus.OpDelete, Row: policy})
	require.Nil(t, e.Policy())
}

func durationPtr(d time.Duration) *time.Duration {
	return &d
}

func intPtr(i int) *int {
	return &i
}
