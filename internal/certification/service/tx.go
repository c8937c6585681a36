package service

import (
	"context"
	"sync"
	"time"

	pkgerrors "ecocert/pkg/domain-errors"
)

// StoreTx provides a transactional boundary for workflow mutations.
// Implementations may wrap a database transaction or, in-memory, a sharded
// lock keyed by request ID.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// Operations are distributed across N shards based on a hash of the request
// ID, so concurrent work on different requests does not contend while two
// transitions on the same request serialize.
const numWorkflowShards = 128

// defaultTxTimeout bounds how long a workflow transaction may run.
const defaultTxTimeout = 5 * time.Second

type shardedStoreTx struct {
	shards  [numWorkflowShards]sync.Mutex
	timeout time.Duration
}

func newInMemoryStoreTx() *shardedStoreTx {
	return &shardedStoreTx{}
}

func (t *shardedStoreTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := t.selectShard(ctx)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	// Check again after acquiring the lock
	if err := ctx.Err(); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx)
}

// selectShard picks a shard based on the request ID from context, or
// defaults to shard 0.
func (t *shardedStoreTx) selectShard(ctx context.Context) int {
	if requestID, ok := ctx.Value(txRequestKeyCtx).(string); ok && requestID != "" {
		return int(hashWorkflowKey(requestID) % numWorkflowShards)
	}
	return 0
}

// hashWorkflowKey uses FNV-1a for good distribution across shards.
func hashWorkflowKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

type txRequestKey struct{}

var txRequestKeyCtx = txRequestKey{}

// withTxRequest tags the context so the sharded runner serializes on the
// request being mutated.
func withTxRequest(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, txRequestKeyCtx, requestID)
}
