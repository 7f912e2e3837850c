package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/FreePeak/smart-slides/internal/domain"
)

// WebSocketOptions tunes a WebSocketConnection.
type WebSocketOptions struct {
	// ReadLimit caps the size of one inbound frame in bytes.
	ReadLimit int64
	// WriteTimeout bounds a single outbound write.
	WriteTimeout time.Duration
	// PingInterval enables keep-alive pings when positive. The peer must
	// answer within twice the interval.
	PingInterval time.Duration
}

// DefaultWebSocketOptions returns the options used when none are configured.
func DefaultWebSocketOptions() WebSocketOptions {
	return WebSocketOptions{
		ReadLimit:    512 * 1024,
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

var _ domain.Connection = (*WebSocketConnection)(nil)

// WebSocketConnection adapts a gorilla connection to domain.Connection.
// Writes are serialized; a single goroutine is expected to call Receive.
type WebSocketConnection struct {
	conn     *websocket.Conn
	id       string
	clientID string
	opts     WebSocketOptions

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// NewWebSocketConnection wraps conn and assigns it a fresh identity token.
func NewWebSocketConnection(conn *websocket.Conn, clientID string, opts WebSocketOptions) *WebSocketConnection {
	c := &WebSocketConnection{
		conn:     conn,
		id:       uuid.New().String(),
		clientID: clientID,
		opts:     opts,
		done:     make(chan struct{}),
	}

	if opts.ReadLimit > 0 {
		conn.SetReadLimit(opts.ReadLimit)
	}
	if opts.PingInterval > 0 {
		pongWait := 2 * opts.PingInterval
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		go c.keepAlive()
	}
	return c
}

// ID returns the connection's identity token.
func (c *WebSocketConnection) ID() string {
	return c.id
}

// ClientID returns the client supplied identifier.
func (c *WebSocketConnection) ClientID() string {
	return c.clientID
}

// Send writes one text frame.
func (c *WebSocketConnection) Send(ctx context.Context, data []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(c.writeDeadline(ctx)); err != nil {
		return err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

// Receive returns the payload of the next data frame. Cancellation is
// handled by closing the connection, which unblocks the read.
func (c *WebSocketConnection) Receive(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Close sends a close frame with code and reason, then closes the socket.
// Only the first call has an effect.
func (c *WebSocketConnection) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}

func (c *WebSocketConnection) keepAlive() {
	timeout := c.opts.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout)); err != nil {
				return
			}
		}
	}
}

func (c *WebSocketConnection) writeDeadline(ctx context.Context) time.Time {
	var deadline time.Time
	if c.opts.WriteTimeout > 0 {
		deadline = time.Now().Add(c.opts.WriteTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	return deadline
}
