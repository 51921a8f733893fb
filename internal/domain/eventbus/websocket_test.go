package eventbus

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/questx-lab/chatsync/pkg/ws"
	"github.com/stretchr/testify/require"
)

func newFeedServer(t *testing.T, hub *MemoryHub, authorize Authorizer) string {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		ServeWebsocket(context.Background(), hub, ws.NewClient(conn, true), authorize)
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func Test_Websocket_Feed(t *testing.T) {
	hub := NewMemoryHub()
	endpoint := newFeedServer(t, hub, nil)

	ctx := testContext()
	bus := New(ctx, DialWebsocket(endpoint, "token"))
	defer bus.Close()
	require.NoError(t, bus.Connect(ctx))

	rec := &recorder{}
	_, err := bus.Subscribe("messages:c1", messageFilter("c1"), rec)
	require.NoError(t, err)

	// The join directive travels asynchronously.
	require.Eventually(t, func() bool {
		hub.Publish(messageEvent("c1", "warmup"))
		return rec.eventCount() > 0
	}, time.Second, 20*time.Millisecond)

	hub.Publish(messageEvent("c2", "other"))
	hub.Publish(messageEvent("c1", "m1"))

	// Delivery is in order, so m1 ends up last once it arrives.
	received := func() []string {
		rec.mutex.Lock()
		defer rec.mutex.Unlock()

		ids := []string{}
		for _, ev := range rec.events {
			ids = append(ids, ev.Row.String("id"))
		}
		return ids
	}
	require.Eventually(t, func() bool {
		ids := received()
		return ids[len(ids)-1] == "m1"
	}, time.Second, 5*time.Millisecond)

	require.NotContains(t, received(), "other")

	rec.mutex.Lock()
	last := rec.events[len(rec.events)-1]
	rec.mutex.Unlock()
	require.Equal(t, OpInsert, last.Op)
}

func Test_Websocket_Refused(t *testing.T) {
	hub := NewMemoryHub()
	endpoint := newFeedServer(t, hub, func(_ context.Context, join JoinDirective) error {
		if join.Topic == "messages:secret" {
			return errors.New("not a member")
		}
		return nil
	})

	ctx := testContext()
	bus := New(ctx, DialWebsocket(endpoint, ""))
	defer bus.Close()
	require.NoError(t, bus.Connect(ctx))

	rec := &recorder{}
	_, err := bus.Subscribe("messages:secret", messageFilter("secret"), rec)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return rec.gapCount() >= 1 }, time.Second, 5*time.Millisecond)

	hub.Publish(messageEvent("secret", "m1"))
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 0, rec.eventCount())
}
