// Package tx carries an open SQL transaction through context so that
// stores participating in one unit of work share it.
package tx

import (
	"context"
	"database/sql"
)

type contextKey struct{}

// WithTx returns a context carrying the given transaction. A nil
// transaction leaves the context unchanged.
func WithTx(ctx context.Context, txn *sql.Tx) context.Context {
	if txn == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, txn)
}

// From reports the transaction stored in ctx, if any.
func From(ctx context.Context) (*sql.Tx, bool) {
	txn, ok := ctx.Value(contextKey{}).(*sql.Tx)
	return txn, ok
}
