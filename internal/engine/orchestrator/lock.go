// internal/engine/orchestrator/lock.go
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RunLock serializes runs per user. The TTL bounds the damage of a
// crashed run that never released its lock.
type RunLock struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRunLock(rdb *redis.Client, ttl time.Duration) *RunLock {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RunLock{rdb: rdb, ttl: ttl}
}

func runKey(userID string) string {
	return "run:" + userID
}

// Acquire returns false when another run already holds the user's lock.
func (l *RunLock) Acquire(ctx context.Context, userID string) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, runKey(userID), time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire run lock: %w", err)
	}
	return ok, nil
}

func (l *RunLock) Release(ctx context.Context, userID string) error {
	if err := l.rdb.Del(ctx, runKey(userID)).Err(); err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	return nil
}
