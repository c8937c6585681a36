package service

import (
	"context"
	"sync"
	"time"

	dErrors "ecocert/pkg/domain-errors"
)

// StoreTx binds a payment mutation and its ledger append into one
// transactional boundary. Postgres deployments pass a database-backed
// runner; the default serializes in memory per payment.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// Payments hash onto a fixed set of lock shards so settles and creations on
// unrelated payments never contend.
const numPaymentShards = 64

const defaultPaymentTxTimeout = 5 * time.Second

type shardedPaymentTx struct {
	shards  [numPaymentShards]sync.Mutex
	timeout time.Duration
}

func newInMemoryPaymentTx() *shardedPaymentTx {
	return &shardedPaymentTx{}
}

func (t *shardedPaymentTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultPaymentTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := t.selectShard(ctx)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx)
}

func (t *shardedPaymentTx) selectShard(ctx context.Context) int {
	if key, ok := ctx.Value(txPaymentKeyCtx).(string); ok && key != "" {
		return int(hashPaymentKey(key) % numPaymentShards)
	}
	return 0
}

// hashPaymentKey is FNV-1a over the lock key.
func hashPaymentKey(s string) uint32 {
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

type txPaymentKey struct{}

var txPaymentKeyCtx = txPaymentKey{}

// withTxPayment tags the context with the lock key the in-memory runner
// shards on.
func withTxPayment(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, txPaymentKeyCtx, key)
}
