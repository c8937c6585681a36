package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "ecocert/pkg/domain-errors"
	txcontext "ecocert/pkg/platform/tx"
)

const defaultStoreTxTimeout = 5 * time.Second

// storePostgresTx runs workflow transitions and payment mutations inside a
// database transaction. The transaction rides on the context, so every store
// touched by the callback participates in the same commit.
type storePostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newStorePostgresTx(db *sql.DB) *storePostgresTx {
	return &storePostgresTx{db: db}
}

func (t *storePostgresTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultStoreTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}
