package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrRedisUnavailable is returned when the lock key cannot be written.
var ErrRedisUnavailable = errors.New("lock: redis unavailable")

const (
	defaultKeyPrefix     = "eduplatform:lock:"
	defaultRetryInterval = 25 * time.Millisecond
	releaseTimeout       = 2 * time.Second
)

// releaseScript deletes the key only if it still carries this holder's token,
// so a holder whose TTL lapsed cannot release a lock taken over by someone else.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var releaseLua = redis.NewScript(releaseScript)

// Redis is a Locker shared by every process using the same Redis. A lock
// expires after its TTL even if the holder never releases it.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	retry  time.Duration
	prefix string
	log    zerolog.Logger
}

// RedisOption configures a Redis locker.
type RedisOption func(*Redis)

// WithRetryInterval sets how long Acquire waits between SET NX attempts.
func WithRetryInterval(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.retry = d
		}
	}
}

// WithKeyPrefix sets the namespace prepended to every lock key.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.prefix = prefix }
}

// NewRedis returns a Redis locker whose locks live at most ttl.
func NewRedis(client redis.UniversalClient, ttl time.Duration, log zerolog.Logger, opts ...RedisOption) (*Redis, error) {
	if client == nil {
		return nil, errors.New("lock: redis client is required")
	}
	if ttl <= 0 {
		return nil, errors.New("lock: ttl must be positive")
	}
	r := &Redis{client: client, ttl: ttl, retry: defaultRetryInterval, prefix: defaultKeyPrefix, log: log}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	k := r.prefix + key
	token := uuid.NewString()
	for {
		ok, err := r.client.SetNX(ctx, k, token, r.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if ok {
			break
		}
		t := time.NewTimer(r.retry)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		}
	}
	var once sync.Once
	return func() {
		once.Do(func() { r.release(k, token) })
	}, nil
}

func (r *Redis) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	n, err := releaseLua.Run(ctx, r.client, []string{key}, token).Int64()
	if err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("Failed to release lock; it will expire")
		return
	}
	if n == 0 {
		r.log.Warn().Str("key", key).Dur("ttl", r.ttl).Msg("Lock expired before release")
	}
}
