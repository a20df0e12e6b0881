package push

import (
	"strconv"
	"time"
)

// Event is one unit of pushed data. Events are created by the Orchestrator at
// send time, never mutated afterwards, and evicted only by the ReplayBuffer's
// capacity policy.
type Event struct {
	// ID is unique and monotonically increasing in insertion order. It is
	// assigned by the ReplayBuffer under its lock.
	ID int64

	// Name is the category label carried in the stream's "event:" field.
	Name string

	// Data is the opaque payload; it is JSON-encoded at the transport layer.
	Data any

	// Broadcast addresses the event to all receivers. When false, Receivers
	// holds the explicit scope set.
	Broadcast bool
	Receivers map[string]struct{}

	CreatedAt time.Time
}

// ReceivableBy reports whether the event is addressed to the given receiver.
func (e *Event) ReceivableBy(receiverID string) bool {
	if e.Broadcast {
		return true
	}
	_, ok := e.Receivers[receiverID]
	return ok
}

// WireID returns the event id in the string form used on the stream.
func (e *Event) WireID() string {
	return strconv.FormatInt(e.ID, 10)
}

// Frame is what a PushConnection actually writes: one stream frame with an
// optional id, an event name, and a JSON-serializable payload.
type Frame struct {
	ID    string `json:"id,omitempty"`
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func frameOf(e *Event) *Frame {
	return &Frame{
		ID:    e.WireID(),
		Event: e.Name,
		Data:  e.Data,
	}
}
