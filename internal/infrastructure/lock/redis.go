package lock

import (
	"context"
	"errors"
	stdsync "sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/dentalab/erpsync/internal/domain/sync"
)

// refreshTimeout bounds a single TTL refresh round trip
const refreshTimeout = 3 * time.Second

// RedisRunLocker implements sync.RunLocker on a shared Redis lock so
// multiple engine instances agree on which (tenant, module) runs are
// in flight. The TTL bounds how long a crashed holder blocks the key;
// a live holder refreshes it for as long as the run lasts.
type RedisRunLocker struct {
	client *redislock.Client
	ttl    time.Duration
}

// NewRedisRunLocker creates a Redis-backed run locker
func NewRedisRunLocker(rdb *redis.Client, ttl time.Duration) *RedisRunLocker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisRunLocker{
		client: redislock.New(rdb),
		ttl:    ttl,
	}
}

// TryLock acquires the key with a single attempt, no retry strategy.
// The returned lock keeps its TTL alive until released.
func (l *RedisRunLocker) TryLock(ctx context.Context, key string) (sync.RunLock, error) {
	lck, err := l.client.Obtain(ctx, key, l.ttl, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, sync.ErrBusy
		}
		return nil, err
	}
	return newRedisRunLock(lck, l.ttl), nil
}

// refreshableLock is the part of *redislock.Lock the keep-alive loop needs
type refreshableLock interface {
	Refresh(ctx context.Context, ttl time.Duration, opt *redislock.Options) error
	Release(ctx context.Context) error
}

type redisRunLock struct {
	lock refreshableLock
	ttl  time.Duration
	stop chan struct{}
	done chan struct{}
	once stdsync.Once
}

func newRedisRunLock(lck refreshableLock, ttl time.Duration) *redisRunLock {
	l := &redisRunLock{
		lock: lck,
		ttl:  ttl,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go l.keepAlive(ttl / 3)
	return l
}

// keepAlive refreshes the TTL on a ticker so a run outliving the
// configured TTL does not lose clustered single-flight. The loop ends
// when the lock is released or the key is no longer held.
func (l *redisRunLock) keepAlive(interval time.Duration) {
	defer close(l.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
			err := l.lock.Refresh(ctx, l.ttl, nil)
			cancel()
			if errors.Is(err, redislock.ErrNotObtained) {
				// Lost the key, a competing holder may own it now.
				return
			}
		}
	}
}

// Release stops the keep-alive loop and frees the lock
func (l *redisRunLock) Release(ctx context.Context) error {
	l.once.Do(func() {
		close(l.stop)
	})
	<-l.done
	if err := l.lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
		return err
	}
	return nil
}

// Ensure RedisRunLocker implements sync.RunLocker
var _ sync.RunLocker = (*RedisRunLocker)(nil)
