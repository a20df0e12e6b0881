package push

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/sse"

	"github.com/ootdcast/pushhub/internal/infrastructure/logger"
)

// ErrConnectionClosed is returned by Push on a connection that has already
// been closed.
var ErrConnectionClosed = fmt.Errorf("push: connection closed")

// DefaultIdleTimeout closes a connection that has not been written to for
// this long. The heartbeat keeps healthy connections well inside the window.
const DefaultIdleTimeout = time.Hour

// SSEConnection implements PushConnection over a Server-Sent Events stream.
// Frames are written directly to the subscriber's response writer; the
// handler goroutine that created the connection holds the stream open until
// the connection's context is cancelled.
type SSEConnection struct {
	id         string
	receiverID string

	writer  http.ResponseWriter
	flusher http.Flusher
	writeMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc

	closed   bool
	closedMu sync.RWMutex

	lastActivity time.Time
	activityMu   sync.RWMutex

	idleTimeout time.Duration
	logger      logger.Logger
}

// NewSSEConnection creates an SSE connection for the given receiver, sets the
// stream headers, and starts the idle watchdog. The response writer must
// support flushing.
func NewSSEConnection(
	ctx context.Context,
	id string,
	receiverID string,
	w http.ResponseWriter,
	idleTimeout time.Duration,
	log logger.Logger,
) (*SSEConnection, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("push: response writer does not support streaming")
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}

	cctx, cancel := context.WithCancel(ctx)
	conn := &SSEConnection{
		id:           id,
		receiverID:   receiverID,
		writer:       w,
		flusher:      flusher,
		ctx:          cctx,
		cancel:       cancel,
		lastActivity: time.Now(),
		idleTimeout:  idleTimeout,
		logger:       log.WithField("connection_id", id),
	}

	conn.setStreamHeaders()
	go conn.watchIdle()

	return conn, nil
}

// ID returns the unique connection identifier.
func (c *SSEConnection) ID() string { return c.id }

// ReceiverID returns the identity this connection delivers to.
func (c *SSEConnection) ReceiverID() string { return c.receiverID }

// Transport returns "sse".
func (c *SSEConnection) Transport() string { return "sse" }

// Push writes one frame to the stream and flushes it. A write error closes
// the connection and is returned to the caller, which deregisters it.
func (c *SSEConnection) Push(frame *Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	// Checked under writeMu: Close holds the same lock, so once it has
	// returned no push can reach the response writer.
	if c.IsClosed() {
		return ErrConnectionClosed
	}

	err := sse.Encode(c.writer, sse.Event{
		Id:    frame.ID,
		Event: frame.Event,
		Data:  frame.Data,
	})
	if err != nil {
		c.logger.Errorf("failed to write frame: %v", err)
		c.markClosed()
		return err
	}
	c.flusher.Flush()

	c.touch()
	return nil
}

// Close marks the connection closed and cancels its context. It waits for
// any in-flight push to finish, so the subscribe handler can safely return
// (and invalidate the response writer) once Close has returned. Idempotent.
func (c *SSEConnection) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.markClosed()
}

func (c *SSEConnection) markClosed() error {
	c.closedMu.Lock()
	defer c.closedMu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.cancel()

	c.logger.Debug("sse connection closed")
	return nil
}

// IsClosed reports whether the connection has been closed.
func (c *SSEConnection) IsClosed() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return c.closed
}

// Context is cancelled when the connection closes for any reason.
func (c *SSEConnection) Context() context.Context { return c.ctx }

func (c *SSEConnection) setStreamHeaders() {
	h := c.writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // nginx
}

// watchIdle closes the connection once nothing has been written for the idle
// timeout. The orchestrator's heartbeat resets the clock on every successful
// push.
func (c *SSEConnection) watchIdle() {
	ticker := time.NewTicker(c.idleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.activityMu.RLock()
			last := c.lastActivity
			c.activityMu.RUnlock()

			if time.Since(last) > c.idleTimeout {
				c.logger.Info("connection idle for too long, closing")
				c.Close()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *SSEConnection) touch() {
	c.activityMu.Lock()
	c.lastActivity = time.Now()
	c.activityMu.Unlock()
}
