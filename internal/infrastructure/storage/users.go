package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// UserDirectory answers the receiver-resolution queries the dispatcher needs.
// User management itself belongs to the identity service; this directory only
// reads (and, for provisioning and tests, inserts) the mirrored user rows.
type UserDirectory struct {
	db *sql.DB
}

func NewUserDirectory(db *sql.DB) *UserDirectory {
	return &UserDirectory{db: db}
}

// AddUser inserts or refreshes a mirrored user row.
func (d *UserDirectory) AddUser(ctx context.Context, id, username string) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO users (id, username) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET username = excluded.username`,
		id, username,
	)
	if err != nil {
		return fmt.Errorf("storage: add user: %w", err)
	}
	return nil
}

// AllUserIDsExcept returns every known user id except the given one. An empty
// actorID returns all user ids.
func (d *UserDirectory) AllUserIDsExcept(ctx context.Context, actorID string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id FROM users WHERE id != ?`, actorID)
	if err != nil {
		return nil, fmt.Errorf("storage: list users: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("storage: scan user id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
