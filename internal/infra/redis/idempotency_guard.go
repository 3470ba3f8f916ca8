package redis

import (
	"context"
	"time"

	"github.com/leonart92/pronostiX-sub002/internal/domain/ports/adapter"
)

var _ adapter.IdempotencyGuard = (*IdempotencyGuard)(nil)

// IdempotencyGuard is the Redis-backed time-bounded duplicate set. Keys
// expire on their own; the guard never needs explicit cleanup and survives
// horizontal scaling because every instance shares the same store.
type IdempotencyGuard struct {
	cli *Client
}

func NewIdempotencyGuard(cli *Client) *IdempotencyGuard {
	return &IdempotencyGuard{cli: cli}
}

func (g *IdempotencyGuard) Seen(ctx context.Context, key string) (bool, error) {
	n, err := g.cli.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (g *IdempotencyGuard) Mark(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return g.cli.Set(ctx, key, "1", ttl)
}
