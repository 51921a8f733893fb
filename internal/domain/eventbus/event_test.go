package eventbus

import (
	"testing"
	"time"

	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/stretchr/testify/require"
)

func TestRow_Decode(t *testing.T) {
	threadID := "m0"
	created := time.Date(2026, 10, 17, 9, 30, 0, 123000000, time.UTC)
	row, err := NewRow(entity.Message{
		ID:        "m1",
		ChannelID: "c1",
		SenderID:  "alice",
		Body:      "hello",
		Kind:      entity.MessageText,
		ThreadID:  &threadID,
		Reactions: entity.Reactions{"👍": {"bob"}},
		Mentions:  entity.Array[string]{"bob"},
		CreatedAt: created,
	})
	require.NoError(t, err)
	require.Equal(t, "c1", row.String("channel_id"))

	var msg entity.Message
	require.NoError(t, row.Decode(&msg))
	require.Equal(t, "m1", msg.ID)
	require.Equal(t, entity.MessageText, msg.Kind)
	require.Equal(t, "m0", *msg.ThreadID)
	require.Equal(t, []string{"bob"}, msg.Reactions["👍"])
	require.Equal(t, entity.Array[string]{"bob"}, msg.Mentions)
	require.True(t, created.Equal(msg.CreatedAt))

	var top entity.Message
	require.NoError(t, Row{"id": "m2", "thread_id": nil, "reply_count": float64(3)}.Decode(&top))
	require.Nil(t, top.ThreadID)
	require.Equal(t, 3, top.ReplyCount)
}

func TestRow_DecodeNullable(t *testing.T) {
	var policy entity.RateLimitPolicy
	require.NoError(t, Row{"channel_id": "c1", "slowmode_seconds": float64(30)}.Decode(&policy))
	require.Equal(t, 30, *policy.SlowmodeSeconds)

	var mute entity.MuteRecord
	require.NoError(t, Row{"id": "x", "expires_at": "2026-10-17T10:00:00Z"}.Decode(&mute))
	require.NotNil(t, mute.ExpiresAt)
	require.Equal(t, 10, mute.ExpiresAt.Hour())
}

func TestMatchAny(t *testing.T) {
	filters := []Filter{
		{Table: "messages", Column: "channel_id", Value: "c1"},
		{Table: "channels"},
	}

	require.True(t, MatchAny(filters, Event{Table: "messages", Row: Row{"channel_id": "c1"}}))
	require.False(t, MatchAny(filters, Event{Table: "messages", Row: Row{"channel_id": "c2"}}))
	require.True(t, MatchAny(filters, Event{Table: "channels", Row: Row{"id": "any"}}))
	require.False(t, MatchAny(filters, Event{Table: "unread_status", Row: Row{"channel_id": "c1"}}))
	require.True(t, MatchAny(filters, Event{
		Table: "messages", Op: OpDelete, Row: Row{"id": "m1"}, Old: Row{"id": "m1", "channel_id": "c1"},
	}))
}
