package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/questx-lab/chatsync/internal/domain/eventbus"
	"github.com/questx-lab/chatsync/internal/domain/message"
	"github.com/questx-lab/chatsync/internal/domain/notification"
	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/internal/model"
	"github.com/questx-lab/chatsync/internal/testutil"
	"github.com/questx-lab/chatsync/pkg/errorx"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type recordNotifier struct {
	mutex         sync.Mutex
	notifications []notification.Notification
}

func (r *recordNotifier) Notify(_ context.Context, n notification.Notification) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.notifications = append(r.notifications, n)
	return nil
}

func (r *recordNotifier) count() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.notifications)
}

func newStore() *testutil.MockStoreCaller {
	return &testutil.MockStoreCaller{
		GetChannelsFunc: func(ctx context.Context, req *model.GetChannelsRequest) (*model.GetChannelsResponse, error) {
			return &model.GetChannelsResponse{
				Result: model.OK(),
				Channels: []entity.Channel{
					{ID: "general", Kind: entity.ChannelPublic, Name: "general"},
					{ID: "random", Kind: entity.ChannelPublic, Name: "random"},
				},
			}, nil
		},
		CheckRateLimitFunc: func(ctx context.Context, req *model.CheckRateLimitRequest) (*model.CheckRateLimitResponse, error) {
			return &model.CheckRateLimitResponse{Result: model.OK(), Allowed: true}, nil
		},
	}
}

func newTestSession(
	t *testing.T, hub *eventbus.MemoryHub, self model.Identity, store *testutil.MockStoreCaller,
) (context.Context, *Session, *recordNotifier) {
	ctx := testutil.MockContext()
	notifier := &recordNotifier{}

	s := New(ctx, self, store, eventbus.New(ctx, hub.Dialer()), nil, notifier)
	require.NoError(t, s.Start(ctx))
	t.Cleanup(s.Close)

	return ctx, s, notifier
}

func publishMessage(t *testing.T, hub *eventbus.MemoryHub, id, channelID, senderID string, second int) {
	row, err := eventbus.NewRow(entity.Message{
		ID:         id,
		ChannelID:  channelID,
		SenderID:   senderID,
		SenderName: "Bob",
		Body:       "hello",
		Kind:       entity.MessageText,
		CreatedAt:  t0.Add(time.Duration(second) * time.Second),
	})
	require.NoError(t, err)

	hub.Publish(eventbus.Event{Table: message.TableMessages, Op: eventbus.OpInsert, Row: row})
}

func Test_Session_Notifications(t *testing.T) {
	hub := eventbus.NewMemoryHub()
	ctx, s, notifier := newTestSession(t, hub, model.Identity{UserID: "user1", DisplayName: "Alice"}, newStore())

	publishMessage(t, hub, "m1", "random", "user2", 1)
	require.Eventually(t, func() bool { return notifier.count() == 1 }, time.Second, 5*time.Millisecond)

	// Own messages are never notified.
	publishMessage(t, hub, "m2", "random", "user1", 2)

	v, err := s.OpenChannel(ctx, "general")
	require.NoError(t, err)

	// The open channel has the focus.
	publishMessage(t, hub, "m3", "general", "user2", 3)
	require.Eventually(t, func() bool {
		return len(v.Messages().Snapshot().Messages) == 1
	}, time.Second, 5*time.Millisecond)

	s.SetFocus(false)
	publishMessage(t, hub, "m4", "general", "user2", 4)
	require.Eventually(t, func() bool { return notifier.count() == 2 }, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 2, notifier.count())

	// The directory follows the activity.
	require.Equal(t, "general", s.Directory().Channels()[0].ID)
}

func Test_Session_OpenChannel(t *testing.T) {
	hub := eventbus.NewMemoryHub()
	ctx, s, _ := newTestSession(t, hub, model.Identity{UserID: "user1", DisplayName: "Alice"}, newStore())

	_, err := s.OpenChannel(ctx, "missing")
	require.True(t, errorx.Is(err, errorx.NotFound))

	v, err := s.OpenChannel(ctx, "general")
	require.NoError(t, err)

	_, err = s.OpenChannel(ctx, "general")
	require.True(t, errorx.Is(err, errorx.AlreadyExists))

	v.Close()
	v.Close()
	_, ok := s.View("general")
	require.False(t, ok)

	// Closed views stop receiving events.
	publishMessage(t, hub, "m1", "general", "user2", 1)
	time.Sleep(50 * time.Millisecond)
	require.Empty(t, v.Messages().Snapshot().Messages)

	v, err = s.OpenChannel(ctx, "general")
	require.NoError(t, err)
	require.Equal(t, "general", v.Channel().Name)
}

func Test_Session_OpenChannel_LoadFailure(t *testing.T) {
	hub := eventbus.NewMemoryHub()
	store := newStore()
	store.GetMessagesFunc = func(ctx context.Context, req *model.GetMessagesRequest) (*model.GetMessagesResponse, error) {
		return nil, errorx.New(errorx.Transport, "connection refused")
	}
	ctx, s, _ := newTestSession(t, hub, model.Identity{UserID: "user1", DisplayName: "Alice"}, store)

	_, err := s.OpenChannel(ctx, "general")
	require.True(t, errorx.Is(err, errorx.Transport))

	_, ok := s.View("general")
	require.False(t, ok)
}

func Test_Session_Presence(t *testing.T) {
	hub := eventbus.NewMemoryHub()
	ctx1, alice, _ := newTestSession(t, hub, model.Identity{UserID: "user1", DisplayName: "Alice"}, newStore())
	ctx2, bob, _ := newTestSession(t, hub, model.Identity{UserID: "user2", DisplayName: "Bob"}, newStore())

	v1, err := alice.OpenChannel(ctx1, "general")
	require.NoError(t, err)
	v2, err := bob.OpenChannel(ctx2, "general")
	require.NoError(t, err)

	v1.Presence().StartTyping(ctx1)
	require.Eventually(t, func() bool { return v2.Presence().TypingText() == "Alice" }, time.Second, 5*time.Millisecond)

	// Closing the view announces the stop.
	v1.Close()
	require.Eventually(t, func() bool { return v2.Presence().TypingText() == "" }, time.Second, 5*time.Millisecond)
}

func Test_View_Send(t *testing.T) {
	testCases := []struct {
		name      string
		check     func(ctx context.Context, req *model.CheckRateLimitRequest) (*model.CheckRateLimitResponse, error)
		wantErr   error
		wantCalls int
	}{
		{
			name: "allowed",
			check: func(ctx context.Context, req *model.CheckRateLimitRequest) (*model.CheckRateLimitResponse, error) {
				return &model.CheckRateLimitResponse{Result: model.OK(), Allowed: true}, nil
			},
			wantCalls: 1,
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
			wantErr: errorx.New(errorx.TooManyRequests, "Slowmode is enabled. Wait 29s before sending another message"),
		},
		{
			name: "rate check unreachable",
			check: func(ctx context.Context, req *model.CheckRateLimitRequest) (*model.CheckRateLimitResponse, error) {
				return nil, errorx.New(errorx.Transport, "connection refused")
			},
			wantCalls: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			store := newStore()
			store.CheckRateLimitFunc = tc.check
			store.SendMessageFunc = func(ctx context.Context, req *model.SendMessageRequest) (*model.SendMessageResponse, error) {
				calls++
				return &model.SendMessageResponse{
					Result:  model.OK(),
					Message: entity.Message{ID: "m1", ChannelID: req.ChannelID, SenderID: "user1", Body: req.Body},
				}, nil
			}

			ctx, s, _ := newTestSession(t, eventbus.NewMemoryHub(), model.Identity{UserID: "user1", DisplayName: "Alice"}, store)
			v, err := s.OpenChannel(ctx, "general")
			require.NoError(t, err)

			_, err = v.Send(ctx, "hello", nil)
			if tc.wantErr != nil {
				require.Equal(t, tc.wantErr, err)
			} else {
				require.NoError(t, err)
				require.Len(t, v.Messages().Snapshot().Messages, 1)
			}
			require.Equal(t, tc.wantCalls, calls)
		})
	}
}

func Test_View_MarkRead(t *testing.T) {
	var marked []string
	store := newStore()
	store.GetMessagesFunc = func(ctx context.Context, req *model.GetMessagesRequest) (*model.GetMessagesResponse, error) {
		return &model.GetMessagesResponse{
			Result: model.OK(),
			Messages: []entity.Message{
				{ID: "m2", ChannelID: "general", SenderID: "user1", CreatedAt: t0.Add(time.Second)},
				{ID: "m1", ChannelID: "general", SenderID: "user2", CreatedAt: t0},
			},
		}, nil
	}
	store.MarkMessagesReadFunc = func(ctx context.Context, req *model.MarkMessagesReadRequest) (*model.MarkMessagesReadResponse, error) {
		marked = req.MessageIDs
		return &model.MarkMessagesReadResponse{Result: model.OK()}, nil
	}

	ctx, s, _ := newTestSession(t, eventbus.NewMemoryHub(), model.Identity{UserID: "user1", DisplayName: "Alice"}, store)
	v, err := s.OpenChannel(ctx, "general")
	require.NoError(t, err)

	require.NoError(t, v.MarkRead(ctx))
	require.Equal(t, []string{"m1"}, marked)
	require.Equal(t, 0, s.Unread().Status("general").Count)
}

func Test_View_Delete(t *testing.T) {
	var deleted []string
	store := newStore()
	store.GetMessagesFunc = func(ctx context.Context, req *model.GetMessagesRequest) (*model.GetMessagesResponse, error) {
		return &model.GetMessagesResponse{
			Result: model.OK(),
			Messages: []entity.Message{
				{ID: "m2", ChannelID: "general", SenderID: "user1", CreatedAt: t0.Add(time.Second)},
				{ID: "m1", ChannelID: "general", SenderID: "user2", CreatedAt: t0},
			},
		}, nil
	}
	store.DeleteMessageFunc = func(ctx context.Context, req *model.DeleteMessageRequest) (*model.DeleteMessageResponse, error) {
		deleted = append(deleted, req.MessageID)
		return &model.DeleteMessageResponse{Result: model.OK()}, nil
	}

	ctx, s, _ := newTestSession(t, eventbus.NewMemoryHub(), model.Identity{UserID: "user1", DisplayName: "Alice"}, store)
	v, err := s.OpenChannel(ctx, "general")
	require.NoError(t, err)

	// A member without role cannot delete messages of others.
	err = v.Delete(ctx, "m1")
	require.True(t, errorx.Is(err, errorx.PermissionDenied))

	require.NoError(t, v.Delete(ctx, "m2"))
	require.Equal(t, []string{"m2"}, deleted)

	_, ok := v.Messages().Message("m2")
	require.False(t, ok)
}
