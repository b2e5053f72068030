package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestSeedLock(t *testing.T) (*SeedLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), Config{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return NewSeedLock(client), mr
}

func TestSeedLock_ExclusiveUntilReleased(t *testing.T) {
	lock, mr := newTestSeedLock(t)
	ctx := context.Background()

	ok, release, err := lock.TryAcquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first TryAcquire = %v, %v", ok, err)
	}
	if !mr.Exists(seedLockKey) {
		t.Fatalf("lock key not set")
	}
	if ttl := mr.TTL(seedLockKey); ttl <= 0 || ttl > seedLockTTL {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	ok2, release2, err := lock.TryAcquire(ctx)
	if err != nil || ok2 {
		t.Fatalf("second TryAcquire = %v, %v; want false", ok2, err)
	}
	release2()
	if !mr.Exists(seedLockKey) {
		t.Fatalf("losing release must not drop the holder's lock")
	}

	release()
	if mr.Exists(seedLockKey) {
		t.Fatalf("lock key should be removed after release")
	}

	ok3, release3, err := lock.TryAcquire(ctx)
	if err != nil || !ok3 {
		t.Fatalf("TryAcquire after release = %v, %v", ok3, err)
	}
	release3()
}

func TestSeedLock_ExpiredLockNotReleasedByOldHolder(t *testing.T) {
	lock, mr := newTestSeedLock(t)
	ctx := context.Background()

	ok, staleRelease, err := lock.TryAcquire(ctx)
	if err != nil || !ok {
		t.Fatalf("TryAcquire = %v, %v", ok, err)
	}

	mr.FastForward(seedLockTTL + time.Second)

	ok, release, err := lock.TryAcquire(ctx)
	if err != nil || !ok {
		t.Fatalf("TryAcquire after expiry = %v, %v", ok, err)
	}
	staleRelease()
	if !mr.Exists(seedLockKey) {
		t.Fatalf("stale holder must not release the new holder's lock")
	}
	release()
}

func TestConnect_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	if _, err := Connect(context.Background(), Config{Addr: addr, Timeout: 200 * time.Millisecond}); err == nil {
		t.Fatalf("expected ping error for closed server")
	}
}
