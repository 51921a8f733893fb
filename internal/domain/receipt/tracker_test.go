package receipt

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

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func receipt(messageID, readerID, name string, second int) entity.ReadReceipt {
	return entity.ReadReceipt{
		MessageID:  messageID,
		ReaderID:   readerID,
		ReaderName: name,
		ChannelID:  "general",
		ReadAt:     t0.Add(time.Duration(second) * time.Second),
	}
}

func receiptEvent(t *testing.T, op eventbus.Op, r entity.ReadReceipt) eventbus.Event {
	row, err := eventbus.NewRow(r)
	require.NoError(t, err)
	return eventbus.Event{Table: TableReadReceipts, Op: op, Row: row}
}

func Test_Tracker_LoadVisible(t *testing.T) {
	requested := [][]string{}
	store := &testutil.MockStoreCaller{
		GetReceiptsFunc: func(ctx context.Context, req *model.GetReceiptsRequest) (*model.GetReceiptsResponse, error) {
			requested = append(requested, req.MessageIDs)
			receipts := []entity.ReadReceipt{}
			for _, id := range req.MessageIDs {
				receipts = append(receipts, receipt(id, "bob", "Bob", 1))
			}
			return &model.GetReceiptsResponse{Result: model.OK(), Receipts: receipts}, nil
		},
	}

	ctx := testutil.MockContext()
	tracker := NewTracker("general", model.Identity{UserID: "alice", DisplayName: "Alice"}, store)

	require.NoError(t, tracker.LoadVisible(ctx, []string{"m1", "m2", "m2"}))
	require.NoError(t, tracker.LoadVisible(ctx, []string{"m2", "m3"}))
	require.NoError(t, tracker.LoadVisible(ctx, []string{"m1", "m3"}))

	require.Equal(t, [][]string{{"m1", "m2"}, {"m3"}}, requested)
	require.Len(t, tracker.Readers("m3"), 1)
}

func Test_Tracker_ReadStatusText(t *testing.T) {
	testCases := []struct {
		name     string
		receipts []entity.ReadReceipt
		want     string
		ok       bool
	}{
		{
			name: "nobody",
			ok:   false,
		},
		{
			name:     "only the sender",
			receipts: []entity.ReadReceipt{receipt("m1", "alice", "Alice", 0)},
			ok:       false,
		},
		{
			name: "one reader",
			receipts: []entity.ReadReceipt{
				receipt("m1", "alice", "Alice", 0),
				receipt("m1", "bob", "Bob", 1),
			},
			want: "Read by Bob",
			ok:   true,
		},
		{
			name: "two readers",
			receipts: []entity.ReadReceipt{
				receipt("m1", "carol", "Carol", 2),
				receipt("m1", "bob", "Bob", 1),
			},
			want: "Read by Bob and Carol",
			ok:   true,
		},
		{
			name: "many readers",
			receipts: []entity.ReadReceipt{
				receipt("m1", "bob", "Bob", 1),
				receipt("m1", "carol", "Carol", 2),
				receipt("m1", "dave", "Dave", 3),
				receipt("m1", "erin", "", 4),
			},
			want: "Read by Bob and 3 others",
			ok:   true,
		},
		{
			name: "duplicate receipts",
			receipts: []entity.ReadReceipt{
				receipt("m1", "bob", "Bob", 1),
				receipt("m1", "bob", "Bob", 5),
				receipt("m1", "bob", "Bob", 1),
			},
			want: "Read by Bob",
			ok:   true,
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testutil.MockContext()
			tracker := NewTracker("general", model.Identity{UserID: "alice"}, &testutil.MockStoreCaller{})
			for _, r := range tt.receipts {
				tracker.HandleEvent(ctx, receiptEvent(t, eventbus.OpInsert, r))
			}

			text, ok := tracker.ReadStatusText("m1", "alice")
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, text)

			// Replaying the same events changes nothing.
			for _, r := range tt.receipts {
				tracker.HandleEvent(ctx, receiptEvent(t, eventbus.OpInsert, r))
			}
			again, _ := tracker.ReadStatusText("m1", "alice")
			require.Equal(t, text, again)
		})
	}
}

func Test_Tracker_HandleEvent_Delete(t *testing.T) {
	ctx := testutil.MockContext()
	tracker := NewTracker("general", model.Identity{UserID: "alice"}, &testutil.MockStoreCaller{})

	tracker.HandleEvent(ctx, receiptEvent(t, eventbus.OpInsert, receipt("m1", "bob", "Bob", 1)))
	tracker.HandleEvent(ctx, receiptEvent(t, eventbus.OpDelete, receipt("m1", "bob", "Bob", 1)))
	require.Empty(t, tracker.Readers("m1"))
}

func Test_Tracker_MarkMultipleAsRead(t *testing.T) {
	calls := [][]string{}
	fail := false
	store := &testutil.MockStoreCaller{
		MarkMessagesReadFunc: func(ctx context.Context, req *model.MarkMessagesReadRequest) (*model.MarkMessagesReadResponse, error) {
			if fail {
				return nil, errorx.New(errorx.Transport, "Unable to reach the store")
			}
			require.Equal(t, "general", req.ChannelID)
			calls = append(calls, req.MessageIDs)
			return &model.MarkMessagesReadResponse{Result: model.OK()}, nil
		},
	}

	ctx := testutil.MockContext()
	tracker := NewTracker("general", model.Identity{UserID: "alice", DisplayName: "Alice"}, store)

	require.NoError(t, tracker.MarkMultipleAsRead(ctx, []string{"m1", "m2"}))
	require.NoError(t, tracker.MarkAsRead(ctx, "m1"))
	require.Equal(t, [][]string{{"m1", "m2"}}, calls)

	text, ok := tracker.ReadStatusText("m1", "bob")
	require.True(t, ok)
	require.Equal(t, "Read by Alice", text)

	// The echo from the feed is a duplicate.
	tracker.HandleEvent(ctx, receiptEvent(t, eventbus.OpInsert, receipt("m1", "alice", "Alice", 9)))
	require.Len(t, tracker.Readers("m1"), 1)

	fail = true
	require.Error(t, tracker.MarkAsRead(ctx, "m3"))
	require.Empty(t, tracker.Readers("m3"))
}

func Test_Tracker_HandleGap(t *testing.T) {
	readers := []entity.ReadReceipt{receipt("m1", "bob", "Bob", 1)}
	store := &testutil.MockStoreCaller{
		GetReceiptsFunc: func(ctx context.Context, req *model.GetReceiptsRequest) (*model.GetReceiptsResponse, error) {
			return &model.GetReceiptsResponse{Result: model.OK(), Receipts: readers}, nil
		},
	}

	ctx := testutil.MockContext()
	tracker := NewTracker("general", model.Identity{UserID: "alice"}, store)
	require.NoError(t, tracker.LoadVisible(ctx, []string{"m1"}))

	readers = append(readers, receipt("m1", "carol", "Carol", 2))
	tracker.HandleGap(ctx)

	text, _ := tracker.ReadStatusText("m1", "alice")
	require.Equal(t, "Read by Bob and Carol", text)
}
