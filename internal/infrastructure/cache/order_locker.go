package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"go.uber.org/zap"
)

// ErrLockNotObtained is returned when an order lock could not be acquired
// before the context ended
var ErrLockNotObtained = shared.NewConflictError("ORDER_LOCKED", "Order is being edited by another request")

// InMemoryOrderLocker serializes work per order id within one process
type InMemoryOrderLocker struct {
	mu    sync.Mutex
	locks map[int64]*orderLock
}

type orderLock struct {
	ch      chan struct{}
	waiters int
}

// NewInMemoryOrderLocker creates a new in-process order locker
func NewInMemoryOrderLocker() *InMemoryOrderLocker {
	return &InMemoryOrderLocker{locks: make(map[int64]*orderLock)}
}

// Lock blocks until the order's lock is held or ctx ends
func (l *InMemoryOrderLocker) Lock(ctx context.Context, orderID int64) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[orderID]
	if !ok {
		lk = &orderLock{ch: make(chan struct{}, 1)}
		l.locks[orderID] = lk
	}
	lk.waiters++
	l.mu.Unlock()

	select {
	case lk.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(orderID, lk, false)
		return nil, ErrLockNotObtained.WithCause(ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(orderID, lk, true) })
	}, nil
}

func (l *InMemoryOrderLocker) release(orderID int64, lk *orderLock, held bool) {
	if held {
		<-lk.ch
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.waiters--
	if lk.waiters == 0 {
		delete(l.locks, orderID)
	}
}

// RedisOrderLocker serializes work per order id across instances
type RedisOrderLocker struct {
	client    *redislock.Client
	keyPrefix string
	ttl       time.Duration
	retry     time.Duration
	logger    *zap.Logger
}

// NewRedisOrderLocker creates a distributed order locker. ttl bounds how
// long a crashed holder can block an order.
func NewRedisOrderLocker(client redislock.RedisClient, ttl time.Duration, logger *zap.Logger) *RedisOrderLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisOrderLocker{
		client:    redislock.New(client),
		keyPrefix: "reconciler:lock:order:",
		ttl:       ttl,
		retry:     50 * time.Millisecond,
		logger:    logger,
	}
}

// Lock retries until the order's lock is held or ctx ends
func (l *RedisOrderLocker) Lock(ctx context.Context, orderID int64) (func(), error) {
	key := fmt.Sprintf("%s%d", l.keyPrefix, orderID)
	lock, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(l.retry),
	})
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, ErrLockNotObtained.WithDetail("order_id", orderID)
		}
		return nil, shared.NewNetworkError("failed to obtain order lock", err)
	}

	return func() {
		// Release with a fresh context so a cancelled request still frees the lock.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("failed to release order lock", zap.Int64("order_id", orderID), zap.Error(err))
		}
	}, nil
}
