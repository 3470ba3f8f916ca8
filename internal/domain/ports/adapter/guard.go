package adapter

import (
	"context"
	"time"
)

// IdempotencyGuard is a time-bounded set of request tokens used to
// short-circuit duplicate deliveries cheaply. It is an optimization in front
// of the per-payment applied-event ledger, never a replacement: a guard that
// loses state (restart, eviction) only costs a redundant no-op replay.
type IdempotencyGuard interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string, ttl time.Duration) error
}
