//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/erp/order-reconciler/internal/domain/order"
	"github.com/erp/order-reconciler/internal/domain/reconciliation"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/erp/order-reconciler/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisTransitionStore(t *testing.T) {
	ctx := context.Background()
	client := testutil.NewRedis(t)
	store := NewRedisTransitionStore(client, "test:transition:", time.Hour)

	cancel := reconciliation.StatusKey(9, order.StatusCompleted, order.StatusCancelled)
	reinstate := reconciliation.StatusKey(9, order.StatusCancelled, order.StatusCompleted)

	_, err := store.FindActive(ctx, cancel)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	require.NoError(t, store.MarkApplied(ctx, reconciliation.NewTransitionRecord(cancel, nil)))
	_, err = store.FindActive(ctx, cancel)
	require.NoError(t, err)

	require.NoError(t, store.MarkApplied(ctx, reconciliation.NewTransitionRecord(reinstate, nil)))
	_, err = store.FindActive(ctx, cancel)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	records, err := store.ListByOrder(ctx, 9)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.NotNil(t, records[0].SupersededAt)
	assert.True(t, records[1].IsActive())

	ttl, err := client.TTL(ctx, "test:transition:active:9").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestRedisOrderLocker(t *testing.T) {
	client := testutil.NewRedis(t)
	locker := NewRedisOrderLocker(client, time.Second, zap.NewNop())
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, 9)
	require.NoError(t, err)

	t.Run("a second holder waits until the deadline", func(t *testing.T) {
		waitCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
		defer cancel()
		_, err := locker.Lock(waitCtx, 9)
		require.Error(t, err)
		assert.Equal(t, shared.KindConflict, shared.KindOf(err))
	})

	t.Run("other orders are independent", func(t *testing.T) {
		other, err := locker.Lock(ctx, 10)
		require.NoError(t, err)
		other()
	})

	unlock()
	unlock2, err := locker.Lock(ctx, 9)
	require.NoError(t, err)
	unlock2()
}
