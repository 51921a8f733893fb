package message

import (
	"context"
	"testing"
	"time"

	"github.com/questx-lab/chatsync/internal/domain/eventbus"
	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/internal/model"
	"github.com/questx-lab/chatsync/internal/testutil"
	"github.com/stretchr/testify/require"
)

func Test_Thread_HandleEvent(t *testing.T) {
	h := newHistory(2)
	threadCalls := 0
	ctx, w := newTestWindow(t, &testutil.MockStoreCaller{
		GetMessagesFunc: h.GetMessages,
		GetThreadFunc: func(ctx context.Context, req *model.GetThreadRequest) (*model.GetThreadResponse, error) {
			threadCalls++
			require.Equal(t, "m1", req.ParentID)
			return &model.GetThreadResponse{
				Result:  model.OK(),
				Parent:  newMessage("m1", 1),
				Replies: []entity.Message{newReply("r1", "m1", 10)},
			}, nil
		},
	})

	thread, err := w.OpenThread(ctx, "m1")
	require.NoError(t, err)
	require.Equal(t, []string{"r1"}, ids(thread.Replies()))

	same, err := w.OpenThread(ctx, "m1")
	require.NoError(t, err)
	require.Same(t, thread, same)
	require.Equal(t, 1, threadCalls)

	w.HandleEvent(ctx, messageEvent(t, eventbus.OpInsert, newReply("r3", "m1", 30)))
	w.HandleEvent(ctx, messageEvent(t, eventbus.OpInsert, newReply("r2", "m1", 20)))
	w.HandleEvent(ctx, messageEvent(t, eventbus.OpInsert, newReply("x1", "m2", 21)))
	w.HandleEvent(ctx, messageEvent(t, eventbus.OpDelete, newReply("r1", "m1", 10)))

	require.Equal(t, []string{"r2", "r3"}, ids(thread.Replies()))
	require.Equal(t, []string{"m1", "m2"}, ids(w.Snapshot().Messages))

	parent := newMessage("m1", 1)
	parent.ReplyCount = 2
	parent.UpdatedAt = parent.UpdatedAt.Add(40 * time.Second)
	w.HandleEvent(ctx, messageEvent(t, eventbus.OpUpdate, parent))
	require.Equal(t, 2, thread.Parent().ReplyCount)

	thread.Close()
	w.HandleEvent(ctx, messageEvent(t, eventbus.OpInsert, newReply("r4", "m1", 40)))
	require.Equal(t, []string{"r2", "r3"}, ids(thread.Replies()))
}

func Test_Thread_Reply(t *testing.T) {
	h := newHistory(1)
	ctx, w := newTestWindow(t, &testutil.MockStoreCaller{
		GetMessagesFunc: h.GetMessages,
		GetThreadFunc: func(ctx context.Context, req *model.GetThreadRequest) (*model.GetThreadResponse, error) {
			return &model.GetThreadResponse{Result: model.OK(), Parent: newMessage("m1", 1)}, nil
		},
		SendMessageFunc: func(ctx context.Context, req *model.SendMessageRequest) (*model.SendMessageResponse, error) {
			require.NotNil(t, req.ThreadID)
			require.Equal(t, "m1", *req.ThreadID)
			return &model.SendMessageResponse{Result: model.OK(), Message: newReply("r1", "m1", 5)}, nil
		},
	})

	thread, err := w.OpenThread(ctx, "m1")
	require.NoError(t, err)

	reply, err := thread.Reply(ctx, "in thread", nil)
	require.NoError(t, err)
	require.Equal(t, "r1", reply.ID)

	// The echo is not duplicated.
	w.HandleEvent(ctx, messageEvent(t, eventbus.OpInsert, *reply))
	require.Equal(t, []string{"r1"}, ids(thread.Replies()))
	require.Equal(t, []string{"m1"}, ids(w.Snapshot().Messages))
}
