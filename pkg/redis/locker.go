package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a single-instance mutual exclusion lock built on SET NX PX.
// A holder that crashes loses the lock once the TTL expires.
type Locker struct {
	client redis.UniversalClient
	ttl    time.Duration
	poll   time.Duration
	prefix string
}

// LockerOption configures a Locker.
type LockerOption func(*Locker)

// WithLockTTL sets how long a lock survives without being released.
func WithLockTTL(ttl time.Duration) LockerOption {
	return func(l *Locker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithLockPollInterval sets how often a blocked Lock retries.
func WithLockPollInterval(d time.Duration) LockerOption {
	return func(l *Locker) {
		if d > 0 {
			l.poll = d
		}
	}
}

// WithKeyPrefix namespaces every lock key.
func WithKeyPrefix(prefix string) LockerOption {
	return func(l *Locker) {
		l.prefix = prefix
	}
}

// NewLocker returns a Locker using client.
// Panics if client is nil.
func NewLocker(client redis.UniversalClient, opts ...LockerOption) *Locker {
	if client == nil {
		panic("redis: client is required")
	}
	l := &Locker{
		client: client,
		ttl:    30 * time.Second,
		poll:   50 * time.Millisecond,
		prefix: "lock:",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewLockerFromConfig applies the lock settings of cfg.
func NewLockerFromConfig(client redis.UniversalClient, cfg Config) *Locker {
	return NewLocker(client, WithLockTTL(cfg.LockTTL), WithLockPollInterval(cfg.LockPollInterval))
}

// TryLock makes a single attempt. It returns ErrLockNotAcquired if the key is held.
func (l *Locker) TryLock(ctx context.Context, key string) (func(context.Context) error, error) {
	full := l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, full, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	return func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, l.client, []string{full}, token).Int64()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrLockNotHeld
		}
		return nil
	}, nil
}

// Lock blocks until the key is acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(context.Context) error, error) {
	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		unlock, err := l.TryLock(ctx, key)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrLockNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}
}
