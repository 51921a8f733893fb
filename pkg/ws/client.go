package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var ErrClosed = errors.New("connection is closed")

const writeWait = 10 * time.Second

// Client pumps messages between a websocket connection and the R channel /
// Write method. R is closed when the connection is gone.
type Client struct {
	Conn *websocket.Conn
	R    chan []byte

	w           chan []byte
	compression bool
	done        chan struct{}
	closeOnce   sync.Once
}

func NewClient(conn *websocket.Conn, compression bool) *Client {
	if conn == nil {
		return nil
	}

	c := &Client{
		Conn:        conn,
		R:           make(chan []byte, 128),
		w:           make(chan []byte, 128),
		compression: compression,
		done:        make(chan struct{}),
	}

	go c.runReader()
	go c.runWriter()
	return c
}

// Dial opens a websocket connection to url and starts its pumps.
func Dial(ctx context.Context, url string, compression bool) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	return NewClient(conn, compression), nil
}

func (c *Client) runReader() {
	defer close(c.R)
	defer c.Close()

	for {
		t, msg, err := c.Conn.ReadMessage()
		if err != nil {
			return
		}

		if t != websocket.TextMessage && t != websocket.BinaryMessage {
			continue
		}

		if c.compression {
			msg, err = Decompress(msg)
			if err != nil {
				continue
			}
		}

		select {
		case c.R <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *Client) runWriter() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.w:
			t := websocket.TextMessage
			if c.compression {
				var err error
				msg, err = Compress(msg)
				if err != nil {
					continue
				}
				t = websocket.BinaryMessage
			}

			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(t, msg); err != nil {
				c.Close()
				return
			}
		}
	}
}

// Write queues msg for sending. It fails once the connection is closed.
func (c *Client) Write(msg []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case <-c.done:
		return ErrClosed
	case c.w <- msg:
		return nil
	}
}

// Done is closed when the connection is closed by either side.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.Conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.Conn.Close()
	})
}
