// Package dispatch bridges domain events raised by collaborators to the push
// orchestrator. Dispatch is commit-gated: handlers run only after the
// transaction that raised the event has committed, on a bounded worker pool,
// so a slow fan-out can never delay or fail the originating request.
package dispatch

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/ootdcast/pushhub/internal/infrastructure/logger"
	"github.com/ootdcast/pushhub/internal/infrastructure/storage"
	"github.com/ootdcast/pushhub/internal/infrastructure/uow"
)

// EventStream is the subset of the orchestrator the dispatcher pushes
// through.
type EventStream interface {
	Send(receiverID, eventName string, payload any)
	SendToMany(receiverIDs []string, eventName string, payload any)
	Broadcast(eventName string, payload any)
}

// Directory resolves "everyone except the actor" receiver sets.
type Directory interface {
	AllUserIDsExcept(ctx context.Context, actorID string) ([]string, error)
}

// NotificationWriter persists the durable notification records.
type NotificationWriter interface {
	Create(ctx context.Context, q storage.Querier, receiverIDs []string, title, content, level string) ([]storage.Notification, error)
}

const (
	// DefaultWorkers is the dispatch worker pool size.
	DefaultWorkers = 4
	// DefaultQueueSize bounds the dispatch queue.
	DefaultQueueSize = 100

	handleTimeout = 30 * time.Second
)

// The wire event name; clients listen for it on the stream.
const notificationEventName = "notifications"

// pushPayload is the JSON payload pushed for a notification event.
type pushPayload struct {
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Level     string    `json:"level"`
	CreatedAt time.Time `json:"createdAt"`
}

// Dispatcher runs domain events on a bounded worker pool after their
// transaction commits.
//
// Overflow policy: Enqueue never blocks. When the queue is full the event is
// rejected and logged, and the client catches up through the durable
// notification list. Blocking would stall the committing request; dropping
// oldest would break the replay buffer's ordering story for newer events.
type Dispatcher struct {
	queue   chan Event
	workers int

	stream EventStream
	store  NotificationWriter
	users  Directory
	db     *sql.DB

	wg     sync.WaitGroup
	logger logger.Logger
}

// New builds a dispatcher. workers/queueSize fall back to the defaults when
// non-positive. Notification inserts run in their own transaction against db;
// the originating transaction is long committed by the time a worker runs.
func New(
	stream EventStream,
	store NotificationWriter,
	users Directory,
	db *sql.DB,
	workers, queueSize int,
	log logger.Logger,
) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Dispatcher{
		queue:   make(chan Event, queueSize),
		workers: workers,
		stream:  stream,
		store:   store,
		users:   users,
		db:      db,
		logger:  log.WithField("component", "dispatcher"),
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	d.logger.Infof("dispatcher started with %d workers", d.workers)
}

// Wait blocks until all workers have exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Gate registers the event to be enqueued after tx commits. If the
// transaction rolls back, the event is never dispatched.
func (d *Dispatcher) Gate(tx *uow.Tx, ev Event) {
	tx.AfterCommit(func() {
		d.Enqueue(ev)
	})
}

// Enqueue hands an event to the worker pool without blocking. A full queue
// rejects the event and logs it.
func (d *Dispatcher) Enqueue(ev Event) {
	select {
	case d.queue <- ev:
	default:
		d.logger.WithFields(logger.Fields{
			"kind":     ev.Kind.String(),
			"actor_id": ev.ActorID,
		}).Warn("dispatch queue full, event rejected")
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case ev := <-d.queue:
			d.handle(ctx, ev)
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, ev Event) {
	hctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	receivers, broadcast, err := d.resolveReceivers(hctx, ev)
	if err != nil {
		d.logger.Errorf("failed to resolve receivers for %s: %v", ev.Kind, err)
		return
	}
	if !broadcast && len(receivers) == 0 {
		return
	}

	// All receiver rows persist atomically: a mid-loop insert failure must
	// not leave some receivers with a row while the push is aborted for all.
	var created []storage.Notification
	err = uow.RunInTx(hctx, d.db, func(tx *uow.Tx) error {
		var txErr error
		created, txErr = d.store.Create(hctx, tx, receivers, ev.title(), ev.content(), ev.level())
		return txErr
	})
	if err != nil {
		d.logger.Errorf("failed to persist notifications for %s: %v", ev.Kind, err)
		return
	}

	payload := pushPayload{
		Title:   ev.title(),
		Content: ev.content(),
		Level:   ev.level(),
	}
	if len(created) > 0 {
		payload.CreatedAt = created[0].CreatedAt
	} else {
		payload.CreatedAt = time.Now().UTC()
	}

	switch {
	case broadcast:
		d.stream.Broadcast(notificationEventName, payload)
	case len(receivers) == 1:
		d.stream.Send(receivers[0], notificationEventName, payload)
	default:
		d.stream.SendToMany(receivers, notificationEventName, payload)
	}

	d.logger.WithFields(logger.Fields{
		"kind":      ev.Kind.String(),
		"receivers": len(receivers),
		"broadcast": broadcast,
	}).Debug("domain event dispatched")
}

// resolveReceivers maps an event to its receiver set. The broadcast return
// addresses all receivers; in that case receivers still lists every known
// user so each gets a durable notification row.
func (d *Dispatcher) resolveReceivers(ctx context.Context, ev Event) (receivers []string, broadcast bool, err error) {
	switch ev.Kind {
	case KindFeedLiked, KindFeedCommented, KindFollowCreated, KindDirectMessage:
		// Directed at one user; self-notifications are skipped.
		if ev.TargetID == "" || ev.TargetID == ev.ActorID {
			return nil, false, nil
		}
		return []string{ev.TargetID}, false, nil

	case KindAttributeChanged:
		ids, err := d.users.AllUserIDsExcept(ctx, ev.ActorID)
		if err != nil {
			return nil, false, err
		}
		return ids, false, nil

	case KindAnnouncement:
		ids, err := d.users.AllUserIDsExcept(ctx, "")
		if err != nil {
			return nil, false, err
		}
		return ids, true, nil

	default:
		d.logger.Warnf("unrecognized event kind %s, ignoring", ev.Kind)
		return nil, false, nil
	}
}
