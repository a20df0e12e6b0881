package push

import (
	"sync"

	"github.com/ootdcast/pushhub/internal/infrastructure/logger"
)

// Registry tracks live push connections per receiver. A receiver may hold
// several connections at once (multiple devices or tabs); a receiver absent
// from the map simply has zero open connections.
//
// All accessors return point-in-time copies so that concurrent registration
// or removal during a fan-out loop cannot corrupt iteration.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string][]PushConnection
	logger logger.Logger
}

// NewRegistry creates an empty connection registry.
func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		conns:  make(map[string][]PushConnection),
		logger: log.WithField("component", "registry"),
	}
}

// Register adds a connection to the receiver's set. It never fails.
func (r *Registry) Register(receiverID string, conn PushConnection) {
	r.mu.Lock()
	r.conns[receiverID] = append(r.conns[receiverID], conn)
	r.mu.Unlock()

	r.logger.WithFields(logger.Fields{
		"receiver_id":   receiverID,
		"connection_id": conn.ID(),
		"transport":     conn.Transport(),
	}).Debug("connection registered")
}

// Remove deletes a connection from the receiver's set. Removing a connection
// that is already absent is a no-op.
func (r *Registry) Remove(receiverID string, conn PushConnection) {
	r.mu.Lock()
	set := r.conns[receiverID]
	for i, c := range set {
		if c.ID() == conn.ID() {
			set[i] = set[len(set)-1]
			set[len(set)-1] = nil
			set = set[:len(set)-1]
			break
		}
	}
	if len(set) == 0 {
		delete(r.conns, receiverID)
	} else {
		r.conns[receiverID] = set
	}
	r.mu.Unlock()

	r.logger.WithFields(logger.Fields{
		"receiver_id":   receiverID,
		"connection_id": conn.ID(),
	}).Debug("connection removed")
}

// ConnectionsOf returns a snapshot of the receiver's open connections.
func (r *Registry) ConnectionsOf(receiverID string) []PushConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.conns[receiverID]
	out := make([]PushConnection, len(set))
	copy(out, set)
	return out
}

// ConnectionsOfAll returns a snapshot union of several receivers' sets.
func (r *Registry) ConnectionsOfAll(receiverIDs []string) []PushConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []PushConnection
	for _, id := range receiverIDs {
		out = append(out, r.conns[id]...)
	}
	return out
}

// AllConnections returns a snapshot of every open connection system-wide,
// used for broadcast and heartbeat.
func (r *Registry) AllConnections() []PushConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []PushConnection
	for _, set := range r.conns {
		out = append(out, set...)
	}
	return out
}

// ConnectionCount returns the number of open connections.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, set := range r.conns {
		n += len(set)
	}
	return n
}

// ReceiverCount returns the number of receivers with at least one connection.
func (r *Registry) ReceiverCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
