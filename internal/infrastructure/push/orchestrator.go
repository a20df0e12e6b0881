package push

import (
	"context"
	"time"

	"github.com/ootdcast/pushhub/internal/infrastructure/logger"
)

// DefaultHeartbeatInterval is how often keep-alive frames are pushed to open
// connections when no interval is configured.
const DefaultHeartbeatInterval = 30 * time.Minute

// Orchestrator is the single entry point the rest of the system uses to talk
// to push connections: it attaches new subscriptions (including replay of
// missed events), fans events out to one, many, or all receivers, and drives
// the periodic heartbeat.
//
// Every push write is best-effort. A write failure is terminal for that
// connection only: it is closed and deregistered, and the failure is never
// propagated to the component that asked for the send.
type Orchestrator struct {
	registry *Registry
	buffer   *ReplayBuffer
	interval time.Duration
	logger   logger.Logger
}

// NewOrchestrator wires the orchestrator to a registry and replay buffer.
// heartbeatInterval <= 0 falls back to DefaultHeartbeatInterval.
func NewOrchestrator(
	registry *Registry,
	buffer *ReplayBuffer,
	heartbeatInterval time.Duration,
	log logger.Logger,
) *Orchestrator {
	if heartbeatInterval <= 0 {
		heartbeatInterval = DefaultHeartbeatInterval
	}
	return &Orchestrator{
		registry: registry,
		buffer:   buffer,
		interval: heartbeatInterval,
		logger:   log.WithField("component", "orchestrator"),
	}
}

// Registry exposes the connection registry for status reporting.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// Buffer exposes the replay buffer for status reporting.
func (o *Orchestrator) Buffer() *ReplayBuffer { return o.buffer }

// Connect registers a new connection and, when lastEventID is positive,
// replays every buffered event the receiver missed since that cursor, in
// order, over the new connection.
//
// Registration happens before the replay snapshot is taken, so a live push
// racing with Connect can reach the connection both ways. That duplicate is
// accepted: clients dedupe by event id, and the alternative order would drop
// events instead. An unknown cursor replays nothing.
func (o *Orchestrator) Connect(conn PushConnection, lastEventID int64) {
	receiverID := conn.ReceiverID()
	o.registry.Register(receiverID, conn)

	// Deregister exactly once, whichever way the connection dies: client
	// disconnect, idle timeout, or a failed write.
	go func() {
		<-conn.Context().Done()
		o.registry.Remove(receiverID, conn)
	}()

	if lastEventID > 0 {
		for _, e := range o.buffer.Since(lastEventID, receiverID) {
			if err := conn.Push(frameOf(e)); err != nil {
				o.drop(conn, err)
				return
			}
		}
	}

	o.logger.WithFields(logger.Fields{
		"receiver_id":   receiverID,
		"connection_id": conn.ID(),
		"transport":     conn.Transport(),
		"last_event_id": lastEventID,
	}).Info("subscriber connected")
}

// Send pushes an event scoped to exactly one receiver.
func (o *Orchestrator) Send(receiverID, eventName string, payload any) {
	e := o.buffer.Append(eventName, payload, false, []string{receiverID})
	o.fanOut(e, o.registry.ConnectionsOf(receiverID))
}

// SendToMany pushes an event scoped to the given receiver set.
func (o *Orchestrator) SendToMany(receiverIDs []string, eventName string, payload any) {
	e := o.buffer.Append(eventName, payload, false, receiverIDs)
	o.fanOut(e, o.registry.ConnectionsOfAll(receiverIDs))
}

// Broadcast pushes an event to every currently connected receiver.
func (o *Orchestrator) Broadcast(eventName string, payload any) {
	e := o.buffer.Append(eventName, payload, true, nil)
	o.fanOut(e, o.registry.AllConnections())
}

// fanOut writes one event to a registry snapshot. The append above
// happens-before this loop, so a concurrently connecting client observes the
// event either live or via replay, never a partial state. A failure on one
// connection does not affect its siblings.
func (o *Orchestrator) fanOut(e *Event, conns []PushConnection) {
	frame := frameOf(e)
	delivered := 0
	for _, conn := range conns {
		if err := conn.Push(frame); err != nil {
			o.drop(conn, err)
			continue
		}
		delivered++
	}

	o.logger.WithFields(logger.Fields{
		"event_id":    e.ID,
		"event":       e.Name,
		"connections": len(conns),
		"delivered":   delivered,
	}).Debug("event fanned out")
}

// RunHeartbeat pushes a lightweight keep-alive frame to every open connection
// on each tick, so intermediaries do not close idle streams. Keep-alives are
// not buffered events: they carry no id and are never replayed. It blocks
// until ctx is cancelled.
func (o *Orchestrator) RunHeartbeat(ctx context.Context) error {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			o.heartbeat()
		case <-ctx.Done():
			o.logger.Info("heartbeat loop stopped")
			return nil
		}
	}
}

func (o *Orchestrator) heartbeat() {
	frame := &Frame{
		Event: "keepalive",
		Data:  map[string]any{"timestamp": time.Now().Unix()},
	}

	conns := o.registry.AllConnections()
	for _, conn := range conns {
		if err := conn.Push(frame); err != nil {
			o.drop(conn, err)
		}
	}

	o.logger.Debugf("heartbeat sent to %d connections", len(conns))
}

// Shutdown closes every open connection; deregistration follows through the
// per-connection context watchers.
func (o *Orchestrator) Shutdown() {
	for _, conn := range o.registry.AllConnections() {
		if err := conn.Close(); err != nil {
			o.logger.Errorf("failed to close connection %s: %v", conn.ID(), err)
		}
	}
	o.logger.Info("orchestrator shut down")
}

// drop applies the uniform failed-write policy: any connection that refuses a
// push is closed and removed, on every path (send, broadcast, replay,
// heartbeat).
func (o *Orchestrator) drop(conn PushConnection, err error) {
	o.logger.WithFields(logger.Fields{
		"connection_id": conn.ID(),
		"receiver_id":   conn.ReceiverID(),
	}).Warnf("push failed, dropping connection: %v", err)

	conn.Close()
	o.registry.Remove(conn.ReceiverID(), conn)
}
