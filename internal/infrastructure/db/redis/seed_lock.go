package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	seedLockKey = "greatway:seed-admin:lock"
	seedLockTTL = 30 * time.Second
)

// releaseScript deletes the lock only if it still holds our token, so a lock
// that expired and was taken by another instance is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// SeedLock guards admin bootstrap across gateway instances sharing a store.
// Key: greatway:seed-admin:lock, value: per-attempt random token.
type SeedLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSeedLock creates a SeedLock wrapping the given Redis client.
func NewSeedLock(client *redis.Client) *SeedLock {
	return &SeedLock{client: client, ttl: seedLockTTL}
}

// TryAcquire takes the lock with SET NX. The lock expires on its own after
// the TTL if the holder dies before releasing it.
func (l *SeedLock) TryAcquire(ctx context.Context) (bool, func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, seedLockKey, token, l.ttl).Result()
	if err != nil {
		return false, func() {}, fmt.Errorf("seed lock: %w", err)
	}
	if !ok {
		return false, func() {}, nil
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{seedLockKey}, token).Err()
	}
	return true, release, nil
}
