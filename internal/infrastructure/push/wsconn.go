package push

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ootdcast/pushhub/internal/infrastructure/logger"
)

// WebSocketConnection implements PushConnection over a WebSocket. Mobile
// clients use it in place of the SSE stream; the delivery contract is the
// same. Frames are handed to a buffered send channel drained by a single
// write pump, so Push never blocks the sender: a full channel means the
// consumer is not keeping up and the connection is treated as dead.
type WebSocketConnection struct {
	id         string
	receiverID string
	conn       *websocket.Conn

	ctx    context.Context
	cancel context.CancelFunc

	closed    bool
	closedMu  sync.RWMutex
	closeOnce sync.Once

	send chan *Frame

	writeTimeout time.Duration
	pongTimeout  time.Duration

	logger logger.Logger
}

// NewWebSocketConnection wraps an upgraded WebSocket and starts its read and
// write pumps.
func NewWebSocketConnection(
	ctx context.Context,
	id string,
	receiverID string,
	conn *websocket.Conn,
	log logger.Logger,
) *WebSocketConnection {
	cctx, cancel := context.WithCancel(ctx)

	c := &WebSocketConnection{
		id:           id,
		receiverID:   receiverID,
		conn:         conn,
		ctx:          cctx,
		cancel:       cancel,
		send:         make(chan *Frame, 64),
		writeTimeout: 10 * time.Second,
		pongTimeout:  60 * time.Second,
	}
	c.logger = log.WithField("connection_id", id)

	c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
	})

	go c.writePump()
	go c.readPump()

	return c
}

// ID returns the unique connection identifier.
func (c *WebSocketConnection) ID() string { return c.id }

// ReceiverID returns the identity this connection delivers to.
func (c *WebSocketConnection) ReceiverID() string { return c.receiverID }

// Transport returns "websocket".
func (c *WebSocketConnection) Transport() string { return "websocket" }

// Push enqueues a frame for the write pump. It never blocks: a closed
// connection or a full send buffer is a terminal error and the caller
// deregisters the connection.
func (c *WebSocketConnection) Push(frame *Frame) error {
	if c.IsClosed() {
		return ErrConnectionClosed
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		c.logger.Warn("send buffer full, dropping connection")
		c.Close()
		return fmt.Errorf("push: websocket send buffer full")
	}
}

// Close marks the connection closed and cancels its context. Idempotent.
// The transport teardown happens in the write pump, which is the only
// goroutine allowed to write to the socket.
func (c *WebSocketConnection) Close() error {
	c.closeOnce.Do(func() {
		c.closedMu.Lock()
		c.closed = true
		c.closedMu.Unlock()

		c.cancel()
	})
	return nil
}

// IsClosed reports whether the connection has been closed.
func (c *WebSocketConnection) IsClosed() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return c.closed
}

// Context is cancelled when the connection closes for any reason.
func (c *WebSocketConnection) Context() context.Context { return c.ctx }

func (c *WebSocketConnection) writePump() {
	// Ping inside the pong timeout so the read deadline keeps sliding.
	ticker := time.NewTicker(c.pongTimeout * 9 / 10)
	defer func() {
		ticker.Stop()
		c.Close()

		// The pump is the sole writer, so the close handshake can never
		// interleave with a frame or ping write.
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		c.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		c.conn.Close()

		c.logger.Debug("websocket connection closed")
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteJSON(frame); err != nil {
				c.logger.Errorf("failed to write frame: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Errorf("failed to send ping: %v", err)
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// readPump exists only to observe client disconnects and pongs; subscribers
// do not send application data upstream.
func (c *WebSocketConnection) readPump() {
	defer c.Close()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseAbnormalClosure,
			) {
				c.logger.Errorf("websocket read error: %v", err)
			}
			return
		}
	}
}
