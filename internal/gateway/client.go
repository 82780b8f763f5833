package gateway

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// Client is a single WebSocket peer attached to exactly one relay (candle
// or order book — the façade doesn't multiplex a connection across both).
type Client struct {
	conn *websocket.Conn
	send chan []byte
	log  *slog.Logger
}

func newClient(conn *websocket.Conn, log *slog.Logger) *Client {
	return &Client{conn: conn, send: make(chan []byte, 256), log: log}
}

// writePump relays queued envelopes to the socket and keeps it alive with
// periodic pings, coalescing any writes queued in the gap into a single
// frame.
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only exists to observe client pongs/closes and enforce a read
// deadline — the façade's streams are server-to-client only, so any text
// frame the client sends is ignored beyond keeping the connection alive.
func (c *Client) readPump(onClose func()) {
	defer func() {
		onClose()
		c.conn.Close()
		if c.log != nil {
			c.log.Debug("gateway: ws client disconnected")
		}
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
