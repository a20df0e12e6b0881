package sse

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"github.com/ootdcast/pushhub/internal/infrastructure/logger"
	"github.com/ootdcast/pushhub/internal/infrastructure/push"
	"github.com/ootdcast/pushhub/internal/interfaces/middleware"
)

// SubscribeHandler serves the long-lived streaming GET that push events are
// delivered over.
type SubscribeHandler struct {
	orchestrator *push.Orchestrator
	idleTimeout  time.Duration
	logger       logger.Logger
}

func NewSubscribeHandler(
	orchestrator *push.Orchestrator,
	idleTimeout time.Duration,
	log logger.Logger,
) *SubscribeHandler {
	return &SubscribeHandler{
		orchestrator: orchestrator,
		idleTimeout:  idleTimeout,
		logger:       log.WithField("handler", "sse"),
	}
}

// Subscribe opens an SSE stream for the authenticated receiver. A
// reconnecting client passes the id of the last event it processed via the
// Last-Event-ID header (or lastEventId query parameter) and missed events are
// replayed before live pushes continue. The handler holds the stream open
// until the client disconnects, the connection idles out, or the server
// shuts down.
func (h *SubscribeHandler) Subscribe(c *gin.Context) {
	receiverID := middleware.UserID(c)
	if receiverID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	lastEventID := parseLastEventID(c)

	conn, err := push.NewSSEConnection(
		c.Request.Context(),
		newConnectionID("sse"),
		receiverID,
		c.Writer,
		h.idleTimeout,
		h.logger,
	)
	if err != nil {
		h.logger.Errorf("failed to create connection: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	// Greet before replay so the client learns its connection id first.
	sse.Encode(c.Writer, sse.Event{
		Event: "connected",
		Data: map[string]any{
			"connection_id": conn.ID(),
			"timestamp":     time.Now().Format(time.RFC3339),
		},
	})
	c.Writer.Flush()

	h.orchestrator.Connect(conn, lastEventID)
	defer conn.Close()

	select {
	case <-conn.Context().Done():
	case <-c.Request.Context().Done():
	}
	h.logger.Debugf("subscriber stream ended: %s", conn.ID())
}

func parseLastEventID(c *gin.Context) int64 {
	raw := c.GetHeader("Last-Event-ID")
	if raw == "" {
		raw = c.Query("lastEventId")
	}
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func newConnectionID(prefix string) string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("%s-%x", prefix, b)
}
