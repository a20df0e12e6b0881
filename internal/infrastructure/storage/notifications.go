package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a notification does not exist or does not
// belong to the requesting receiver.
var ErrNotFound = errors.New("storage: notification not found")

// Notification is a durable notification record. The push event stream is
// ephemeral; this is what survives for the in-app notification list.
type Notification struct {
	ID         string    `json:"id"`
	ReceiverID string    `json:"receiverId"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Level      string    `json:"level"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NotificationStore persists notifications in sqlite.
type NotificationStore struct {
	db *sql.DB
}

func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

// Create inserts one notification for each receiver and returns the created
// rows. It runs against the given querier so callers can use it inside a
// transaction.
func (s *NotificationStore) Create(
	ctx context.Context,
	q Querier,
	receiverIDs []string,
	title, content, level string,
) ([]Notification, error) {
	now := time.Now().UTC()
	out := make([]Notification, 0, len(receiverIDs))

	for _, receiverID := range receiverIDs {
		n := Notification{
			ID:         uuid.NewString(),
			ReceiverID: receiverID,
			Title:      title,
			Content:    content,
			Level:      level,
			CreatedAt:  now,
		}
		_, err := q.ExecContext(ctx,
			`INSERT INTO notifications (id, receiver_id, title, content, level, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			n.ID, n.ReceiverID, n.Title, n.Content, n.Level, n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("storage: insert notification: %w", err)
		}
		out = append(out, n)
	}
	return out, nil
}

// ListByReceiver returns the receiver's notifications, newest first.
func (s *NotificationStore) ListByReceiver(ctx context.Context, receiverID string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, receiver_id, title, content, level, created_at
		 FROM notifications WHERE receiver_id = ?
		 ORDER BY created_at DESC LIMIT ?`,
		receiverID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.ReceiverID, &n.Title, &n.Content, &n.Level, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Delete removes a notification owned by receiverID. Deleting someone else's
// notification, or a missing one, returns ErrNotFound.
func (s *NotificationStore) Delete(ctx context.Context, id, receiverID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = ? AND receiver_id = ?`,
		id, receiverID,
	)
	if err != nil {
		return fmt.Errorf("storage: delete notification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: delete notification: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
