package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/order-reconciler/internal/domain/order"
	"github.com/erp/order-reconciler/internal/domain/receivable"
	"github.com/erp/order-reconciler/internal/domain/reconciliation"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/erp/order-reconciler/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestIntent(orderID int64) *reconciliation.Intent {
	key := reconciliation.StatusKey(orderID, order.StatusCompleted, order.StatusCancelled)
	return reconciliation.NewIntent(key,
		order.Ref{OrderID: orderID, OrderNumber: "ORD-0009"},
		[]reconciliation.ProductDelta{{ProductID: 5, ProductName: "Rice 5kg", Quantity: decimal.NewFromInt(3)}},
		[]reconciliation.BalanceStep{{CustomerID: 42, Amount: decimal.NewFromInt(-900), Type: receivable.TypeDebit, Description: "cancel"}},
	)
}

// backdate moves an intent's updated_at into the past
func backdate(t *testing.T, db *gorm.DB, id uuid.UUID, d time.Duration) {
	t.Helper()
	require.NoError(t, db.Model(&models.IntentModel{}).Where("id = ?", id).
		Update("updated_at", time.Now().Add(-d)).Error)
}

func TestGormIntentRepository(t *testing.T) {
	ctx := context.Background()
	db := setupSQLiteDB(t)
	repo := NewGormIntentRepository(db)

	intent := newTestIntent(9)
	require.NoError(t, repo.Save(ctx, intent))

	t.Run("round trips the plan", func(t *testing.T) {
		got, err := repo.FindByID(ctx, intent.ID)
		require.NoError(t, err)
		assert.Equal(t, intent.Key, got.Key)
		assert.Equal(t, "ORD-0009", got.OrderRef.OrderNumber)
		assert.Equal(t, reconciliation.IntentPending, got.Status)
		require.Len(t, got.StockDeltas, 1)
		assert.True(t, decimal.NewFromInt(3).Equal(got.StockDeltas[0].Quantity))
		require.Len(t, got.BalanceSteps, 1)
		assert.True(t, decimal.NewFromInt(-900).Equal(got.BalanceSteps[0].Amount))
		assert.Equal(t, receivable.TypeDebit, got.BalanceSteps[0].Type)
	})

	t.Run("returns not found for unknown ids", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("updates progress", func(t *testing.T) {
		require.NoError(t, intent.MarkStockApplied())
		intent.MarkPartialFailure("receivables unavailable")
		require.NoError(t, repo.Update(ctx, intent))

		got, err := repo.FindByID(ctx, intent.ID)
		require.NoError(t, err)
		assert.Equal(t, reconciliation.IntentPartialFailure, got.Status)
		assert.Equal(t, 1, got.Attempts)
		assert.Equal(t, "receivables unavailable", got.LastError)
		assert.NotNil(t, got.NextRetryAt)
	})

	t.Run("update of a missing intent fails", func(t *testing.T) {
		err := repo.Update(ctx, newTestIntent(10))
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("finds retryable intents once due", func(t *testing.T) {
		due, err := repo.FindRetryable(ctx, time.Now(), 10)
		require.NoError(t, err)
		assert.Empty(t, due, "backoff not yet elapsed")

		due, err = repo.FindRetryable(ctx, time.Now().Add(time.Minute), 10)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, intent.ID, due[0].ID)
	})

	t.Run("finds stale intents", func(t *testing.T) {
		stuck := newTestIntent(11)
		require.NoError(t, repo.Save(ctx, stuck))
		backdate(t, db, stuck.ID, time.Hour)

		stale, err := repo.FindStale(ctx, []reconciliation.IntentStatus{reconciliation.IntentPending, reconciliation.IntentStockApplied}, time.Now().Add(-time.Minute), 10)
		require.NoError(t, err)
		require.Len(t, stale, 1)
		assert.Equal(t, stuck.ID, stale[0].ID)

		none, err := repo.FindStale(ctx, nil, time.Now(), 10)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("lists and counts by status", func(t *testing.T) {
		list, total, err := repo.FindByStatus(ctx, reconciliation.IntentPartialFailure, shared.Page{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Len(t, list, 1)

		all, total, err := repo.FindByStatus(ctx, "", shared.Page{Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, all, 1)

		counts, err := repo.CountByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts[reconciliation.IntentPartialFailure])
		assert.Equal(t, int64(1), counts[reconciliation.IntentPending])
	})
}
