package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/erp/order-reconciler/internal/domain/order"
	"github.com/erp/order-reconciler/internal/domain/reconciliation"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryTransitionStore_MarkApplied(t *testing.T) {
	store := NewInMemoryTransitionStore(0)
	defer store.Close()

	ctx := context.Background()

	t.Run("unknown transition is not found", func(t *testing.T) {
		_, err := store.FindActive(ctx, reconciliation.StatusKey(1, order.StatusCompleted, order.StatusCancelled))
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("marked transition is active", func(t *testing.T) {
		key := reconciliation.StatusKey(2, order.StatusCompleted, order.StatusCancelled)
		require.NoError(t, store.MarkApplied(ctx, reconciliation.NewTransitionRecord(key, nil)))

		rec, err := store.FindActive(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, key, rec.Key)
		assert.True(t, rec.IsActive())
	})

	t.Run("later transition of the same kind supersedes earlier one", func(t *testing.T) {
		first := reconciliation.StatusKey(3, order.StatusCompleted, order.StatusCancelled)
		second := reconciliation.StatusKey(3, order.StatusCancelled, order.StatusCompleted)
		require.NoError(t, store.MarkApplied(ctx, reconciliation.NewTransitionRecord(first, nil)))
		require.NoError(t, store.MarkApplied(ctx, reconciliation.NewTransitionRecord(second, nil)))

		_, err := store.FindActive(ctx, first)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		_, err = store.FindActive(ctx, second)
		assert.NoError(t, err)

		history, err := store.ListByOrder(ctx, 3)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.NotNil(t, history[0].SupersededAt)
		assert.Nil(t, history[1].SupersededAt)
	})

	t.Run("other kinds are not superseded", func(t *testing.T) {
		status := reconciliation.StatusKey(4, order.StatusPending, order.StatusCredit)
		method := reconciliation.PaymentMethodKey(4, order.PaymentCash, order.PaymentCredit)
		require.NoError(t, store.MarkApplied(ctx, reconciliation.NewTransitionRecord(status, nil)))
		require.NoError(t, store.MarkApplied(ctx, reconciliation.NewTransitionRecord(method, nil)))

		_, err := store.FindActive(ctx, status)
		assert.NoError(t, err)
		_, err = store.FindActive(ctx, method)
		assert.NoError(t, err)
	})

	t.Run("returned records are copies", func(t *testing.T) {
		key := reconciliation.StatusKey(5, order.StatusCompleted, order.StatusCancelled)
		require.NoError(t, store.MarkApplied(ctx, reconciliation.NewTransitionRecord(key, nil)))

		rec, err := store.FindActive(ctx, key)
		require.NoError(t, err)
		rec.Supersede(time.Now())

		_, err = store.FindActive(ctx, key)
		assert.NoError(t, err)
	})
}

func TestInMemoryTransitionStore_Cleanup(t *testing.T) {
	store := NewInMemoryTransitionStore(0)
	defer store.Close()
	ctx := context.Background()

	first := reconciliation.StatusKey(1, order.StatusCompleted, order.StatusCancelled)
	second := reconciliation.StatusKey(1, order.StatusCancelled, order.StatusCompleted)
	require.NoError(t, store.MarkApplied(ctx, reconciliation.NewTransitionRecord(first, nil)))
	require.NoError(t, store.MarkApplied(ctx, reconciliation.NewTransitionRecord(second, nil)))
	assert.Equal(t, 2, store.Size())

	store.cleanup(time.Now().Add(time.Minute))

	assert.Equal(t, 1, store.Size())
	_, err := store.FindActive(ctx, second)
	assert.NoError(t, err, "active records survive cleanup")
}

func TestInMemoryTransitionStore_Concurrency(t *testing.T) {
	store := NewInMemoryTransitionStore(0)
	defer store.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := int64(1); i <= 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			key := reconciliation.StatusKey(id, order.StatusCompleted, order.StatusCancelled)
			_ = store.MarkApplied(ctx, reconciliation.NewTransitionRecord(key, nil))
			_, _ = store.FindActive(ctx, key)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, store.Size())
}

func TestInMemoryTransitionStore_Close(t *testing.T) {
	store := NewInMemoryTransitionStore(time.Hour)

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close(), "second close should be safe")
}

func TestInMemoryOrderLocker(t *testing.T) {
	locker := NewInMemoryOrderLocker()

	t.Run("serializes the same order", func(t *testing.T) {
		ctx := context.Background()
		unlock, err := locker.Lock(ctx, 1)
		require.NoError(t, err)

		acquired := make(chan struct{})
		go func() {
			second, err := locker.Lock(ctx, 1)
			if err == nil {
				close(acquired)
				second()
			}
		}()

		select {
		case <-acquired:
			t.Fatal("second lock acquired while first was held")
		case <-time.After(30 * time.Millisecond):
		}

		unlock()
		select {
		case <-acquired:
		case <-time.After(time.Second):
			t.Fatal("second lock was never acquired")
		}
	})

	t.Run("different orders do not block each other", func(t *testing.T) {
		ctx := context.Background()
		a, err := locker.Lock(ctx, 10)
		require.NoError(t, err)
		defer a()

		b, err := locker.Lock(ctx, 11)
		require.NoError(t, err)
		b()
	})

	t.Run("gives up when the context ends", func(t *testing.T) {
		unlock, err := locker.Lock(context.Background(), 20)
		require.NoError(t, err)
		defer unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = locker.Lock(ctx, 20)
		assert.ErrorIs(t, err, ErrLockNotObtained)
	})

	t.Run("unlock is idempotent", func(t *testing.T) {
		unlock, err := locker.Lock(context.Background(), 30)
		require.NoError(t, err)
		unlock()
		unlock()

		again, err := locker.Lock(context.Background(), 30)
		require.NoError(t, err)
		again()
	})
}
