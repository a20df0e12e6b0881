package push

import (
	"sync"
	"time"
)

// DefaultBufferCapacity is the number of events retained for replay when no
// explicit capacity is configured.
const DefaultBufferCapacity = 100

// ReplayBuffer is a bounded, insertion-ordered store of recently sent events.
// A reconnecting client supplies the id of the last event it processed and
// receives everything it missed, bounded by the buffer's retention window.
//
// Append assigns ids under the buffer's lock, so concurrent senders are
// serialized at the append step and the buffer's order is a valid total order
// of send completions. Insertion and eviction happen in one critical section:
// a reader never observes an id present in the order sequence but absent from
// the lookup table, or vice versa.
type ReplayBuffer struct {
	mu       sync.Mutex
	capacity int
	nextID   int64
	order    []*Event
	byID     map[int64]*Event
}

// NewReplayBuffer creates a buffer retaining at most capacity events. A
// non-positive capacity falls back to DefaultBufferCapacity.
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &ReplayBuffer{
		capacity: capacity,
		order:    make([]*Event, 0, capacity),
		byID:     make(map[int64]*Event, capacity),
	}
}

// Append creates the event, assigns it the next id, and inserts it at the
// tail, evicting from the head until the size is back within capacity.
func (b *ReplayBuffer) Append(name string, data any, broadcast bool, receivers []string) *Event {
	scope := make(map[string]struct{}, len(receivers))
	for _, r := range receivers {
		scope[r] = struct{}{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	e := &Event{
		ID:        b.nextID,
		Name:      name,
		Data:      data,
		Broadcast: broadcast,
		Receivers: scope,
		CreatedAt: time.Now(),
	}

	b.order = append(b.order, e)
	b.byID[e.ID] = e

	for len(b.order) > b.capacity {
		evicted := b.order[0]
		b.order[0] = nil
		b.order = b.order[1:]
		delete(b.byID, evicted.ID)
	}
	return e
}

// Since returns, in creation order, every buffered event created strictly
// after the cursor that is receivable by receiverID. The result is a snapshot
// computed once under the lock.
//
// An unknown cursor (already evicted, or never issued) yields an empty
// sequence rather than an error or a full replay: a client that was gone
// longer than the retention window silently loses that history.
func (b *ReplayBuffer) Since(cursor int64, receiverID string) []*Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.byID[cursor]; !ok {
		return nil
	}

	var out []*Event
	for _, e := range b.order {
		if e.ID > cursor && e.ReceivableBy(receiverID) {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of currently buffered events.
func (b *ReplayBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

// Contains reports whether an event id is still retained.
func (b *ReplayBuffer) Contains(id int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.byID[id]
	return ok
}
