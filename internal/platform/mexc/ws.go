// Package mexc speaks the MEXC contract edge WebSocket protocol.
package mexc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultURL is the public contract market-data endpoint.
const DefaultURL = "wss://contract.mexc.com/edge"

const writeWait = 10 * time.Second

// Conn is a single WebSocket session. Writes are serialised so the
// keepalive loop and subscription calls can share it.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

// Dial opens a session to url.
func Dial(ctx context.Context, url string, handshakeTimeout time.Duration) (*Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("mexc/ws: connect: %w", err)
	}
	return &Conn{ws: ws}, nil
}

// Subscribe requests ticker pushes for symbol.
func (c *Conn) Subscribe(symbol string) error {
	if err := c.writeJSON(SubscribeRequest(symbol)); err != nil {
		return fmt.Errorf("mexc/ws: subscribe %s: %w", symbol, err)
	}
	return nil
}

// Ping sends the application-level keepalive.
func (c *Conn) Ping() error {
	if err := c.writeJSON(PingRequest()); err != nil {
		return fmt.Errorf("mexc/ws: ping: %w", err)
	}
	return nil
}

// Read blocks for the next message. The session is dead if no message
// arrives before the deadline set by ExtendDeadline.
func (c *Conn) Read() ([]byte, error) {
	_, msg, err := c.ws.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("mexc/ws: read: %w", err)
	}
	return msg, nil
}

// ExtendDeadline pushes the read deadline d into the future.
func (c *Conn) ExtendDeadline(d time.Duration) {
	_ = c.ws.SetReadDeadline(time.Now().Add(d))
}

// Close sends a close frame and releases the socket. It is safe to call
// from any goroutine and more than once.
func (c *Conn) Close() error {
	c.writeMu.Lock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(time.Second))
	_ = c.ws.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	c.writeMu.Unlock()
	return c.ws.Close()
}

func (c *Conn) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}
