// Package uow provides a small unit-of-work wrapper around database
// transactions with post-commit hooks. Side effects that must not happen for
// a rolled-back transaction (push dispatch, most notably) are registered as
// hooks and run only after the commit succeeds.
package uow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Tx wraps a *sql.Tx and collects hooks to run after a successful commit.
type Tx struct {
	*sql.Tx
	hooks []func()
}

// AfterCommit registers fn to run once the transaction commits. Hooks run in
// registration order, on the committing goroutine, after the commit is
// durable. A rollback discards them.
func (t *Tx) AfterCommit(fn func()) {
	t.hooks = append(t.hooks, fn)
}

// RunInTx begins a transaction, runs fn, and commits. If fn returns an error
// or panics, the transaction is rolled back and no hooks run.
func RunInTx(ctx context.Context, db *sql.DB, fn func(tx *Tx) error) (err error) {
	stx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("uow: begin: %w", err)
	}

	t := &Tx{Tx: stx}

	defer func() {
		if p := recover(); p != nil {
			stx.Rollback()
			panic(p)
		}
	}()

	if err := fn(t); err != nil {
		if rbErr := stx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("uow: rollback: %w", rbErr))
		}
		return err
	}

	if err := stx.Commit(); err != nil {
		return fmt.Errorf("uow: commit: %w", err)
	}

	for _, hook := range t.hooks {
		hook()
	}
	return nil
}
