package channel

import (
	"context"
	"testing"
	"time"

	"github.com/questx-lab/chatsync/internal/domain/eventbus"
	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/internal/model"
	"github.com/questx-lab/chatsync/internal/testutil"
	"github.com/questx-lab/chatsync/pkg/errorx"
	"github.com/stretchr/testify/require"
)

var (
	self = model.Identity{UserID: "user1", DisplayName: "Alice"}
	t0   = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
)

func channelEvent(t *testing.T, op eventbus.Op, c entity.Channel) eventbus.Event {
	row, err := eventbus.NewRow(c)
	require.NoError(t, err)
	return eventbus.Event{Table: TableChannels, Op: op, Row: row}
}

func newTestDirectory(t *testing.T, store *testutil.MockStoreCaller, initial ...entity.Channel) (context.Context, *Directory) {
	if store.GetChannelsFunc == nil {
		store.GetChannelsFunc = func(ctx context.Context, req *model.GetChannelsRequest) (*model.GetChannelsResponse, error) {
			return &model.GetChannelsResponse{Result: model.OK(), Channels: initial}, nil
		}
	}

	ctx := testutil.MockContext()
	d := NewDirectory(self, store)
	require.NoError(t, d.Load(ctx))
	return ctx, d
}

func names(channels []entity.Channel) []string {
	result := []string{}
	for _, c := range channels {
		result = append(result, c.Name)
	}
	return result
}

func Test_Directory_Load(t *testing.T) {
	_, d := newTestDirectory(t, &testutil.MockStoreCaller{},
		entity.Channel{ID: "c1", Kind: entity.ChannelPublic, Name: "general", LastActivityAt: t0},
		entity.Channel{ID: "c2", Kind: entity.ChannelPrivate, Name: "secret", Members: []string{"user2"}},
		entity.Channel{ID: "c3", Kind: entity.ChannelPrivate, Name: "team", Members: []string{"user1"}, LastActivityAt: t0.Add(time.Minute)},
		entity.Channel{ID: "c4", Kind: entity.ChannelPublic, Name: "old", Archived: true},
	)

	require.Equal(t, []string{"team", "general"}, names(d.Channels()))
	require.Equal(t, []string{"old"}, names(d.Archived()))
}

func Test_Directory_HandleEvent(t *testing.T) {
	general := entity.Channel{ID: "c1", Kind: entity.ChannelPublic, Name: "general", UpdatedAt: t0}

	renamed := general
	renamed.Name = "lobby"
	renamed.UpdatedAt = t0.Add(time.Second)

	stale := general
	stale.Name = "stale"
	stale.UpdatedAt = t0.Add(-time.Second)

	archived := general
	archived.Archived = true
	archived.UpdatedAt = t0.Add(time.Second)

	private := entity.Channel{ID: "c2", Kind: entity.ChannelPrivate, Name: "team", Members: []string{"user2"}}

	testCases := []struct {
		name         string
		events       []eventbus.Event
		wantActive   []string
		wantArchived []string
	}{
		{
			name:         "update",
			events:       []eventbus.Event{channelEvent(t, eventbus.OpUpdate, renamed)},
			wantActive:   []string{"lobby"},
			wantArchived: []string{},
		},
		{
			name:         "stale update",
			events:       []eventbus.Event{channelEvent(t, eventbus.OpUpdate, stale)},
			wantActive:   []string{"general"},
			wantArchived: []string{},
		},
		{
			name:         "archive",
			events:       []eventbus.Event{channelEvent(t, eventbus.OpUpdate, archived)},
			wantActive:   []string{},
			wantArchived: []string{"general"},
		},
		{
			name:         "delete",
			events:       []eventbus.Event{channelEvent(t, eventbus.OpDelete, general)},
			wantActive:   []string{},
			wantArchived: []string{},
		},
		{
			name:         "private channel of others",
			events:       []eventbus.Event{channelEvent(t, eventbus.OpInsert, private)},
			wantActive:   []string{"general"},
			wantArchived: []string{},
		},
		{
			name: "removed from private channel",
			events: []eventbus.Event{
				channelEvent(t, eventbus.OpInsert, entity.Channel{ID: "c2", Kind: entity.ChannelPrivate, Name: "team", Members: []string{"user1", "user2"}}),
				channelEvent(t, eventbus.OpUpdate, private),
			},
			wantActive:   []string{"general"},
			wantArchived: []string{},
		},
		{
			name:         "row without id",
			events:       []eventbus.Event{{Table: TableChannels, Op: eventbus.OpInsert, Row: eventbus.Row{"name": "x"}}},
			wantActive:   []string{"general"},
			wantArchived: []string{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, d := newTestDirectory(t, &testutil.MockStoreCaller{}, general)
			for _, ev := range tc.events {
				d.HandleEvent(ctx, ev)
			}

			require.Equal(t, tc.wantActive, names(d.Channels()))
			require.Equal(t, tc.wantArchived, names(d.Archived()))
		})
	}
}

func Test_Directory_Touch(t *testing.T) {
	_, d := newTestDirectory(t, &testutil.MockStoreCaller{},
		entity.Channel{ID: "c1", Kind: entity.ChannelPublic, Name: "general", LastActivityAt: t0.Add(time.Minute)},
		entity.Channel{ID: "c2", Kind: entity.ChannelPublic, Name: "random", LastActivityAt: t0},
	)
	require.Equal(t, []string{"general", "random"}, names(d.Channels()))

	d.Touch(entity.Message{ChannelID: "c2", CreatedAt: t0.Add(2 * time.Minute)})
	require.Equal(t, []string{"random", "general"}, names(d.Channels()))
}

func Test_Directory_Create(t *testing.T) {
	var req *model.CreateChannelRequest
	store := &testutil.MockStoreCaller{
		CreateChannelFunc: func(ctx context.Context, r *model.CreateChannelRequest) (*model.CreateChannelResponse, error) {
			req = r
			return &model.CreateChannelResponse{
				Result:  model.OK(),
				Channel: entity.Channel{ID: "c9", Kind: entity.ChannelKind(r.Kind), Name: r.Name},
			}, nil
		},
	}

	testCases := []struct {
		name    string
		kind    entity.ChannelKind
		channel string
		wantErr error
	}{
		{name: "happy case", kind: entity.ChannelPublic, channel: " random "},
		{name: "empty name", kind: entity.ChannelPublic, channel: "  ", wantErr: errorx.New(errorx.BadRequest, "Channel name is required")},
		{name: "direct kind", kind: entity.ChannelDirect, channel: "dm", wantErr: errorx.New(errorx.BadRequest, "Invalid channel kind direct")},
		{name: "unknown kind", kind: entity.ChannelKind("voice"), channel: "dm", wantErr: errorx.New(errorx.BadRequest, "Invalid channel kind voice")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req = nil
			ctx, d := newTestDirectory(t, store)

			c, err := d.Create(ctx, tc.channel, tc.kind, "", nil)
			if tc.wantErr != nil {
				require.Equal(t, tc.wantErr, err)
				require.Nil(t, req)
				return
			}

			require.NoError(t, err)
			require.Equal(t, "random", req.Name)
			cached, ok := d.Get(c.ID)
			require.True(t, ok)
			require.Equal(t, "random", cached.Name)
		})
	}
}

func Test_Directory_CreateDirect(t *testing.T) {
	calls := 0
	store := &testutil.MockStoreCaller{
		CreateDirectChannelFunc: func(ctx context.Context, r *model.CreateDirectChannelRequest) (*model.CreateDirectChannelResponse, error) {
			calls++
			return &model.CreateDirectChannelResponse{
				Result:  model.OK(),
				Channel: entity.Channel{ID: "dm1", Kind: entity.ChannelDirect, Members: []string{"user1", r.UserID}},
			}, nil
		},
	}

	ctx, d := newTestDirectory(t, store)

	_, err := d.CreateDirect(ctx, self)
	require.True(t, errorx.Is(err, errorx.BadRequest))

	c, err := d.CreateDirect(ctx, model.Identity{UserID: "user2", DisplayName: "Bob"})
	require.NoError(t, err)
	require.Equal(t, "dm1", c.ID)

	c, err = d.CreateDirect(ctx, model.Identity{UserID: "user2", DisplayName: "Bob"})
	require.NoError(t, err)
	require.Equal(t, "dm1", c.ID)
	require.Equal(t, 1, calls)
}

func Test_Directory_Archive(t *testing.T) {
	store := &testutil.MockStoreCaller{
		ArchiveChannelFunc: func(ctx context.Context, r *model.ArchiveChannelRequest) (*model.ArchiveChannelResponse, error) {
			if r.ChannelID == "c2" {
				return nil, errorx.New(errorx.PermissionDenied, "Only admins can archive a channel")
			}
			return &model.ArchiveChannelResponse{Result: model.OK()}, nil
		},
	}

	ctx, d := newTestDirectory(t, store,
		entity.Channel{ID: "c1", Kind: entity.ChannelPublic, Name: "general"},
		entity.Channel{ID: "c2", Kind: entity.ChannelPublic, Name: "random"},
	)

	require.NoError(t, d.Archive(ctx, "c1", true))
	err := d.Archive(ctx, "c2", true)
	require.True(t, errorx.Is(err, errorx.PermissionDenied))

	require.Equal(t, []string{"random"}, names(d.Channels()))
	require.Equal(t, []string{"general"}, names(d.Archived()))

	require.NoError(t, d.Archive(ctx, "c1", false))
	require.Equal(t, []string{"general", "random"}, names(d.Channels()))
}

func Test_Directory_Delete(t *testing.T) {
	ctx, d := newTestDirectory(t, &testutil.MockStoreCaller{},
		entity.Channel{ID: "c1", Kind: entity.ChannelPublic, Name: "general"},
	)

	require.NoError(t, d.Delete(ctx, "c1"))
	_, ok := d.Get("c1")
	require.False(t, ok)
}

func Test_Directory_Update(t *testing.T) {
	ctx, d := newTestDirectory(t, &testutil.MockStoreCaller{},
		entity.Channel{ID: "c1", Kind: entity.ChannelPublic, Name: "general"},
	)

	require.True(t, errorx.Is(d.Update(ctx, "c1", "", "x"), errorx.BadRequest))

	require.NoError(t, d.Update(ctx, "c1", "lobby", "Say hi"))
	c, _ := d.Get("c1")
	require.Equal(t, "lobby", c.Name)
	require.Equal(t, "Say hi", c.Description)
}

func Test_Directory_AddMember(t *testing.T) {
	var req *model.AddMemberRequest
	store := &testutil.MockStoreCaller{
		AddMemberFunc: func(ctx context.Context, r *model.AddMemberRequest) (*model.AddMemberResponse, error) {
			req = r
			return &model.AddMemberResponse{Result: model.OK()}, nil
		},
	}

	ctx, d := newTestDirectory(t, store,
		entity.Channel{ID: "c1", Kind: entity.ChannelPrivate, Name: "team", Members: []string{"user1"}},
		entity.Channel{ID: "dm", Kind: entity.ChannelDirect, Members: []string{"user1", "user2"}},
	)

	bob := model.Identity{UserID: "user3", DisplayName: "Carol"}
	require.True(t, errorx.Is(d.AddMember(ctx, "missing", bob), errorx.NotFound))
	require.True(t, errorx.Is(d.AddMember(ctx, "dm", bob), errorx.BadRequest))
	require.Nil(t, req)

	require.NoError(t, d.AddMember(ctx, "c1", bob))
	require.Equal(t, "Carol", req.DisplayName)
	c, _ := d.Get("c1")
	require.Equal(t, entity.Array[string]{"user1", "user3"}, c.Members)
}
