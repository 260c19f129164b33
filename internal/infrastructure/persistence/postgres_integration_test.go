//go:build integration

package persistence

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
)

func TestPostgres_ReconciliationTables(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewPostgres(t)

	t.Run("guard keeps one active record per order and kind", func(t *testing.T) {
		store := NewGormTransitionStore(db)
		cancel := reconciliation.StatusKey(9, order.StatusCompleted, order.StatusCancelled)
		reinstate := reconciliation.StatusKey(9, order.StatusCancelled, order.StatusCompleted)

		require.NoError(t, store.MarkApplied(ctx, reconciliation.NewTransitionRecord(cancel, nil)))
		require.NoError(t, store.MarkApplied(ctx, reconciliation.NewTransitionRecord(reinstate, nil)))
		require.NoError(t, store.MarkApplied(ctx, reconciliation.NewTransitionRecord(cancel, nil)))

		_, err := store.FindActive(ctx, reinstate)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		_, err = store.FindActive(ctx, cancel)
		assert.NoError(t, err)

		records, err := store.ListByOrder(ctx, 9)
		require.NoError(t, err)
		assert.Len(t, records, 3)
	})

	t.Run("intents round trip through jsonb", func(t *testing.T) {
		repo := NewGormIntentRepository(db)
		intent := newTestIntent(12)
		require.NoError(t, repo.Save(ctx, intent))

		require.NoError(t, intent.MarkStockApplied())
		intent.MarkPartialFailure("timeout")
		require.NoError(t, repo.Update(ctx, intent))

		due, err := repo.FindRetryable(ctx, time.Now().Add(time.Minute), 10)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Len(t, due[0].StockDeltas, 1)
		assert.Len(t, due[0].BalanceSteps, 1)
	})

	t.Run("journal rejects movements that do not add up", func(t *testing.T) {
		err := db.Exec(`INSERT INTO stock_movements
			(id, created_at, product_id, quantity_delta, balance_before, balance_after, reason)
			VALUES (gen_random_uuid(), now(), 5, 3, 10, 12, 'manual')`).Error
		assert.Error(t, err)
	})
}
