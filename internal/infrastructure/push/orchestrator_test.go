package push

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ootdcast/pushhub/internal/infrastructure/logger"
)

func newTestOrchestrator(capacity int) *Orchestrator {
	log := logger.NewNop()
	return NewOrchestrator(NewRegistry(log), NewReplayBuffer(capacity), time.Minute, log)
}

func TestOrchestrator_SendReachesAllDevices(t *testing.T) {
	// One receiver, two open connections: both get the push and exactly one
	// event lands in the buffer.
	o := newTestOrchestrator(10)

	c1 := newFakeConn("c1", "alice")
	c2 := newFakeConn("c2", "alice")
	o.Connect(c1, 0)
	o.Connect(c2, 0)

	o.Send("alice", "notifications", map[string]any{"title": "hi"})

	require.Len(t, c1.receivedFrames(), 1)
	require.Len(t, c2.receivedFrames(), 1)
	assert.Equal(t, 1, o.Buffer().Len())

	frame := c1.receivedFrames()[0]
	assert.Equal(t, "notifications", frame.Event)
	assert.NotEmpty(t, frame.ID)
}

func TestOrchestrator_SendOnlyToScopedReceiver(t *testing.T) {
	o := newTestOrchestrator(10)

	alice := newFakeConn("c1", "alice")
	bob := newFakeConn("c2", "bob")
	o.Connect(alice, 0)
	o.Connect(bob, 0)

	o.Send("alice", "notifications", "x")

	assert.Len(t, alice.receivedFrames(), 1)
	assert.Empty(t, bob.receivedFrames())
}

func TestOrchestrator_SendToMany(t *testing.T) {
	o := newTestOrchestrator(10)

	alice := newFakeConn("c1", "alice")
	bob := newFakeConn("c2", "bob")
	carol := newFakeConn("c3", "carol")
	o.Connect(alice, 0)
	o.Connect(bob, 0)
	o.Connect(carol, 0)

	o.SendToMany([]string{"alice", "bob"}, "notifications", "x")

	assert.Len(t, alice.receivedFrames(), 1)
	assert.Len(t, bob.receivedFrames(), 1)
	assert.Empty(t, carol.receivedFrames())
}

func TestOrchestrator_Broadcast(t *testing.T) {
	o := newTestOrchestrator(10)

	conns := []*fakeConn{
		newFakeConn("c1", "alice"),
		newFakeConn("c2", "bob"),
		newFakeConn("c3", "carol"),
	}
	for _, c := range conns {
		o.Connect(c, 0)
	}

	o.Broadcast("notifications", "to everyone")

	for _, c := range conns {
		assert.Len(t, c.receivedFrames(), 1)
	}
}

func TestOrchestrator_FailureIsolation(t *testing.T) {
	// A failed write on one connection must not stop delivery to siblings in
	// the same fan-out, and must remove only the broken connection.
	o := newTestOrchestrator(10)

	broken := newFailingConn("c1", "alice")
	healthy := newFakeConn("c2", "alice")
	o.Connect(broken, 0)
	o.Connect(healthy, 0)

	o.Send("alice", "notifications", "x")

	assert.Len(t, healthy.receivedFrames(), 1)
	assert.True(t, broken.IsClosed())

	waitForConnectionCount(t, o.Registry(), 1)
	require.Len(t, o.Registry().ConnectionsOf("alice"), 1)
	assert.Equal(t, "c2", o.Registry().ConnectionsOf("alice")[0].ID())
}

func TestOrchestrator_ConnectReplaysMissedEvents(t *testing.T) {
	// Client reconnects with lastEventId = E5's id while E6..E8 are buffered:
	// it receives them in order over the new connection.
	o := newTestOrchestrator(10)

	var cursor int64
	for i := 1; i <= 5; i++ {
		o.Broadcast("notifications", i)
	}
	cursor = 5 // ids are 1-based and monotonic

	o.Broadcast("notifications", 6)
	o.Broadcast("notifications", 7)
	o.Broadcast("notifications", 8)

	conn := newFakeConn("c1", "alice")
	o.Connect(conn, cursor)

	frames := conn.receivedFrames()
	require.Len(t, frames, 3)
	assert.Equal(t, "6", frames[0].ID)
	assert.Equal(t, "7", frames[1].ID)
	assert.Equal(t, "8", frames[2].ID)
}

func TestOrchestrator_ConnectWithStaleCursorReplaysNothing(t *testing.T) {
	o := newTestOrchestrator(2)

	for i := 0; i < 5; i++ {
		o.Broadcast("notifications", i)
	}

	// Cursor 1 was evicted long ago; the client silently gets no replay.
	conn := newFakeConn("c1", "alice")
	o.Connect(conn, 1)

	assert.Empty(t, conn.receivedFrames())
	assert.Len(t, o.Registry().ConnectionsOf("alice"), 1)
}

func TestOrchestrator_ConnectWithoutCursorSkipsReplay(t *testing.T) {
	o := newTestOrchestrator(10)
	o.Broadcast("notifications", "old")

	conn := newFakeConn("c1", "alice")
	o.Connect(conn, 0)

	assert.Empty(t, conn.receivedFrames())
}

func TestOrchestrator_ReplayOnlyReceivableEvents(t *testing.T) {
	o := newTestOrchestrator(10)

	cursorEvent := o.Buffer().Append("seed", nil, true, nil)
	o.Send("bob", "notifications", "private to bob")
	o.Broadcast("notifications", "for all")

	conn := newFakeConn("c1", "alice")
	o.Connect(conn, cursorEvent.ID)

	frames := conn.receivedFrames()
	require.Len(t, frames, 1)
	assert.Equal(t, "for all", frames[0].Data)
}

func TestOrchestrator_ClosedConnectionIsDeregistered(t *testing.T) {
	o := newTestOrchestrator(10)

	conn := newFakeConn("c1", "alice")
	o.Connect(conn, 0)
	require.Equal(t, 1, o.Registry().ConnectionCount())

	conn.Close()

	waitForConnectionCount(t, o.Registry(), 0)
}

func TestOrchestrator_HeartbeatTearsDownDeadConnections(t *testing.T) {
	o := newTestOrchestrator(10)

	healthy := newFakeConn("c1", "alice")
	broken := newFailingConn("c2", "bob")
	o.Connect(healthy, 0)
	o.Connect(broken, 0)

	o.heartbeat()

	frames := healthy.receivedFrames()
	require.Len(t, frames, 1)
	assert.Equal(t, "keepalive", frames[0].Event)
	// Keep-alives are not buffered events and carry no id.
	assert.Empty(t, frames[0].ID)
	assert.Equal(t, 0, o.Buffer().Len())

	assert.True(t, broken.IsClosed())
	waitForConnectionCount(t, o.Registry(), 1)
}

func TestOrchestrator_Shutdown(t *testing.T) {
	o := newTestOrchestrator(10)

	conns := []*fakeConn{
		newFakeConn("c1", "alice"),
		newFakeConn("c2", "bob"),
	}
	for _, c := range conns {
		o.Connect(c, 0)
	}

	o.Shutdown()

	for _, c := range conns {
		assert.True(t, c.IsClosed())
	}
	waitForConnectionCount(t, o.Registry(), 0)
}

// waitForConnectionCount polls the registry until the asynchronous context
// watchers have settled.
func waitForConnectionCount(t *testing.T, reg *Registry, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if reg.ConnectionCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("registry did not reach %d connections, has %d", want, reg.ConnectionCount())
}
