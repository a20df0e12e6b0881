package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ootdcast/pushhub/internal/infrastructure/logger"
)

func newTestSSEConn(t *testing.T, w http.ResponseWriter) *SSEConnection {
	t.Helper()
	conn, err := NewSSEConnection(
		context.Background(), "c1", "alice", w, time.Hour, logger.NewNop(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSSEConnection_PushWritesFrame(t *testing.T) {
	rec := httptest.NewRecorder()
	conn := newTestSSEConn(t, rec)

	err := conn.Push(&Frame{
		ID:    "42",
		Event: "notifications",
		Data:  map[string]any{"title": "hello"},
	})
	require.NoError(t, err)

	body := rec.Body.String()
	assert.Contains(t, body, "id:42")
	assert.Contains(t, body, "event:notifications")
	assert.Contains(t, body, `"title":"hello"`)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
}

func TestSSEConnection_PushAfterCloseFails(t *testing.T) {
	rec := httptest.NewRecorder()
	conn := newTestSSEConn(t, rec)

	require.NoError(t, conn.Close())
	assert.True(t, conn.IsClosed())

	err := conn.Push(&Frame{Event: "notifications", Data: "x"})
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestSSEConnection_CloseSerializesWithPush(t *testing.T) {
	rec := httptest.NewRecorder()
	conn := newTestSSEConn(t, rec)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if err := conn.Push(&Frame{Event: "notifications", Data: "x"}); err != nil {
					return
				}
			}
		}()
	}

	require.NoError(t, conn.Close())
	wg.Wait()

	// Once Close has returned, nothing more reaches the stream.
	n := rec.Body.Len()
	assert.ErrorIs(t, conn.Push(&Frame{Event: "notifications", Data: "y"}), ErrConnectionClosed)
	assert.Equal(t, n, rec.Body.Len())
}

func TestSSEConnection_CloseIsIdempotentAndCancelsContext(t *testing.T) {
	rec := httptest.NewRecorder()
	conn := newTestSSEConn(t, rec)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	select {
	case <-conn.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled on close")
	}
}

type plainWriter struct{ http.ResponseWriter }

func TestSSEConnection_RequiresFlusher(t *testing.T) {
	_, err := NewSSEConnection(
		context.Background(), "c1", "alice",
		plainWriter{httptest.NewRecorder()}, time.Hour, logger.NewNop(),
	)
	assert.Error(t, err)
}
