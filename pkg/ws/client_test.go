package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func echoServer(t *testing.T, compression bool) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		c := NewClient(conn, compression)
		for msg := range c.R {
			if err := c.Write(msg); err != nil {
				return
			}
		}
	}))
}

func TestClient_Write(t *testing.T) {
	for _, compression := range []bool{false, true} {
		server := echoServer(t, compression)

		url := "ws" + strings.TrimPrefix(server.URL, "http")
		c, err := Dial(context.Background(), url, compression)
		require.NoError(t, err)

		require.NoError(t, c.Write([]byte("hello")))
		select {
		case msg := <-c.R:
			require.Equal(t, "hello", string(msg))
		case <-time.After(time.Second):
			t.Fatal("no echo received")
		}

		c.Close()
		require.ErrorIs(t, c.Write([]byte("again")), ErrClosed)

		server.Close()
	}
}

func TestClient_RemoteClose(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		conn.Close()
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	c, err := Dial(context.Background(), url, false)
	require.NoError(t, err)

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("client was not closed")
	}

	_, ok := <-c.R
	require.False(t, ok)
}
