// Package dedup is the fast-path duplicate-notification guard backed by
// Redis. The database unique index remains the source of truth; this guard
// only spares a round trip for the common repeated-message case.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"feedpulse/core/domain"
)

// NotifiedKey is the Redis key prefix for created-notification markers.
const NotifiedKey = "notify:sent:"

// DefaultTTL keeps markers long enough to cover any realistic reprocessing
// window without growing the keyspace forever.
const DefaultTTL = 72 * time.Hour

// RedisGuard implements pipeline.DuplicateGuard on Redis.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisGuard creates a guard. ttl <= 0 selects DefaultTTL.
func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisGuard{client: client, ttl: ttl}
}

func key(recipientID uuid.UUID, messageID int64, kind domain.NotificationKind) string {
	return fmt.Sprintf("%s%s:%d:%s", NotifiedKey, recipientID, messageID, kind)
}

// Seen reports whether a marker exists for the triple.
func (g *RedisGuard) Seen(ctx context.Context, recipientID uuid.UUID, messageID int64, kind domain.NotificationKind) (bool, error) {
	err := g.client.Get(ctx, key(recipientID, messageID, kind)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("dedup lookup: %w", err)
	}
	return true, nil
}

// Remember writes a marker after a notification record was created.
func (g *RedisGuard) Remember(ctx context.Context, recipientID uuid.UUID, messageID int64, kind domain.NotificationKind) error {
	if err := g.client.Set(ctx, key(recipientID, messageID, kind), "1", g.ttl).Err(); err != nil {
		return fmt.Errorf("dedup remember: %w", err)
	}
	return nil
}
