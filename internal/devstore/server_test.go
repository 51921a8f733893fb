package devstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/questx-lab/chatsync/internal/client"
	"github.com/questx-lab/chatsync/internal/domain/eventbus"
	"github.com/questx-lab/chatsync/internal/domain/session"
	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/internal/model"
	"github.com/questx-lab/chatsync/internal/testutil"
	"github.com/questx-lab/chatsync/pkg/authenticator"
	"github.com/questx-lab/chatsync/pkg/errorx"
	"github.com/questx-lab/chatsync/pkg/xcontext"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	rpcURL  string
	feedURL string
	engine  authenticator.TokenEngine[model.Identity]
}

func newTestServer(t *testing.T) *testServer {
	ctx := testutil.MockContextWithDB()
	store, err := New(ctx, eventbus.NewMemoryHub(), nil)
	require.NoError(t, err)

	engine := authenticator.NewTokenEngine[model.Identity](xcontext.Configs(ctx).Auth)
	srv, err := NewServer(ctx, store, engine)
	require.NoError(t, err)
	t.Cleanup(srv.Stop)

	mux := http.NewServeMux()
	mux.Handle("/rpc", srv.RPCHandler())
	mux.Handle("/feed", srv.FeedHandler())

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return &testServer{
		rpcURL:  ts.URL + "/rpc",
		feedURL: "ws" + strings.TrimPrefix(ts.URL, "http") + "/feed",
		engine:  engine,
	}
}

func (s *testServer) token(t *testing.T, userID string) string {
	token, err := s.engine.Generate(userID, model.Identity{UserID: userID, DisplayName: strings.ToUpper(userID)})
	require.NoError(t, err)
	return token
}

func (s *testServer) caller(t *testing.T, ctx context.Context, userID string) client.StoreCaller {
	token := ""
	if userID != "" {
		token = s.token(t, userID)
	}

	caller, err := client.DialStoreCaller(ctx, s.rpcURL, token)
	require.NoError(t, err)
	t.Cleanup(caller.Close)
	return caller
}

func Test_Server_RPC(t *testing.T) {
	s := newTestServer(t)
	ctx := testutil.MockContext()

	alice := s.caller(t, ctx, "alice")
	created, err := alice.CreateChannel(ctx, &model.CreateChannelRequest{Name: "team", Kind: "private"})
	require.NoError(t, err)
	require.Equal(t, "alice", created.Channel.CreatedBy)

	sent, err := alice.SendMessage(ctx, &model.SendMessageRequest{ChannelID: created.Channel.ID, Body: "hello"})
	require.NoError(t, err)
	require.Equal(t, "ALICE", sent.Message.SenderName)

	// Rejections keep their code across the wire.
	bob := s.caller(t, ctx, "bob")
	_, err = bob.GetMessages(ctx, &model.GetMessagesRequest{ChannelID: created.Channel.ID})
	require.True(t, errorx.Is(err, errorx.PermissionDenied))

	anonymous := s.caller(t, ctx, "")
	_, err = anonymous.GetChannels(ctx, &model.GetChannelsRequest{})
	require.True(t, errorx.Is(err, errorx.Transport))
}

func Test_Server_Feed(t *testing.T) {
	s := newTestServer(t)
	ctx := testutil.MockContext()

	_, err := eventbus.DialWebsocket(s.feedURL, "")(ctx)
	require.Error(t, err)

	alice := s.caller(t, ctx, "alice")
	created, err := alice.CreateChannel(ctx, &model.CreateChannelRequest{Name: "team", Kind: "private", Members: []string{"bob"}})
	require.NoError(t, err)
	channelID := created.Channel.ID

	feed, err := eventbus.DialWebsocket(s.feedURL, s.token(t, "bob"))(ctx)
	require.NoError(t, err)
	defer feed.Close()

	require.NoError(t, feed.Join("messages", []eventbus.Filter{{Table: "messages", Column: "channel_id", Value: channelID}}))
	require.NoError(t, feed.Join("spy", []eventbus.Filter{{Table: "unread_status", Column: "user_id", Value: "alice"}}))

	// Directives are handled in order, so the refused join confirms the first.
	env := nextEnvelope(t, feed)
	require.Equal(t, eventbus.EnvelopeError, env.Kind)
	require.Equal(t, "spy", env.Topic)

	_, err = alice.SendMessage(ctx, &model.SendMessageRequest{ChannelID: channelID, Body: "hello"})
	require.NoError(t, err)

	env = nextEnvelope(t, feed)
	require.Equal(t, eventbus.EnvelopeChange, env.Kind)
	require.Equal(t, "messages", env.Topic)
	require.Equal(t, eventbus.OpInsert, env.Event.Op)
	require.Equal(t, "hello", env.Event.Row.String("body"))
}

func nextEnvelope(t *testing.T, feed eventbus.Feed) eventbus.Envelope {
	select {
	case env, ok := <-feed.Envelopes():
		require.True(t, ok)
		return env
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no envelope received")
	}

	return eventbus.Envelope{}
}

func Test_Server_Session(t *testing.T) {
	s := newTestServer(t)
	ctx := testutil.MockContext()

	bob := s.caller(t, ctx, "bob")
	created, err := bob.CreateChannel(ctx, &model.CreateChannelRequest{Name: "team", Kind: "private", Members: []string{"alice"}})
	require.NoError(t, err)
	channelID := created.Channel.ID

	self := model.Identity{UserID: "alice", DisplayName: "ALICE"}
	bus := eventbus.New(ctx, eventbus.DialWebsocket(s.feedURL, s.token(t, "alice")))
	sess := session.New(ctx, self, s.caller(t, ctx, "alice"), bus, nil, nil)
	require.NoError(t, sess.Start(ctx))
	t.Cleanup(sess.Close)

	require.Len(t, sess.Directory().Channels(), 1)

	view, err := sess.OpenChannel(ctx, channelID)
	require.NoError(t, err)
	require.Equal(t, entity.RoleMember, view.Roles().MyRole())

	_, err = bob.SendMessage(ctx, &model.SendMessageRequest{ChannelID: channelID, Body: "hi alice"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(view.Messages().Snapshot().Messages) == 1
	}, 2*time.Second, 10*time.Millisecond)
	received := view.Messages().Snapshot().Messages[0]

	require.Eventually(t, func() bool {
		return sess.Unread().Status(channelID).Count == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, view.MarkRead(ctx))
	require.Eventually(t, func() bool {
		return sess.Unread().Status(channelID).Count == 0
	}, 2*time.Second, 10*time.Millisecond)

	sent, err := view.Send(ctx, "hello bob", nil)
	require.NoError(t, err)
	require.Equal(t, "ALICE", sent.SenderName)

	receipts, err := bob.GetReceipts(ctx, &model.GetReceiptsRequest{MessageIDs: []string{received.ID}})
	require.NoError(t, err)
	require.Len(t, receipts.Receipts, 1)
	require.Equal(t, "alice", receipts.Receipts[0].ReaderID)
}
