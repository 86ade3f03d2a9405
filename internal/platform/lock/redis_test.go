package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func newRedisLocker(t *testing.T, client redis.UniversalClient) *Redis {
	t.Helper()
	l, err := NewRedis(client, 5*time.Second, zerolog.Nop(), WithRetryInterval(time.Millisecond))
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	return l
}

func TestRedis_MutualExclusion(t *testing.T) {
	mr, client := newTestRedis(t)
	exercise(t, newRedisLocker(t, client), 16)
	if mr.Exists(defaultKeyPrefix + "account-1") {
		t.Error("lock key still present after release")
	}
}

func TestRedis_InvalidConfig(t *testing.T) {
	if _, err := NewRedis(nil, time.Second, zerolog.Nop()); err == nil {
		t.Error("nil client: expected error")
	}
	_, client := newTestRedis(t)
	if _, err := NewRedis(client, 0, zerolog.Nop()); err == nil {
		t.Error("zero ttl: expected error")
	}
}

func TestRedis_KeyCarriesTTL(t *testing.T) {
	mr, client := newTestRedis(t)
	l := newRedisLocker(t, client)
	release, err := l.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()
	if ttl := mr.TTL(defaultKeyPrefix + "k"); ttl <= 0 || ttl > 5*time.Second {
		t.Errorf("ttl = %v, want (0, 5s]", ttl)
	}
}

func TestRedis_ContextCancelledWhileHeld(t *testing.T) {
	_, client := newTestRedis(t)
	l := newRedisLocker(t, client)
	release, _ := l.Acquire(context.Background(), "k")
	defer release()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
}

func TestRedis_ExpiredLockNotStolenOnRelease(t *testing.T) {
	mr, client := newTestRedis(t)
	l := newRedisLocker(t, client)
	release, _ := l.Acquire(context.Background(), "k")
	mr.FastForward(6 * time.Second)

	second, err := l.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("Acquire after expiry: %v", err)
	}
	defer second()
	release()
	if !mr.Exists(defaultKeyPrefix + "k") {
		t.Error("stale release deleted the new holder's lock")
	}
}

func TestRedis_Unavailable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	l := newRedisLocker(t, client)
	mr.Close()
	_, err = l.Acquire(context.Background(), "k")
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("err = %v, want ErrRedisUnavailable", err)
	}
}
