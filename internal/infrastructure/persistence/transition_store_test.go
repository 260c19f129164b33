package persistence

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/order-reconciler/internal/domain/order"
	"github.com/erp/order-reconciler/internal/domain/reconciliation"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormTransitionStore(t *testing.T) {
	ctx := context.Background()
	store := NewGormTransitionStore(setupSQLiteDB(t))

	cancel := reconciliation.StatusKey(9, order.StatusCompleted, order.StatusCancelled)
	reinstate := reconciliation.StatusKey(9, order.StatusCancelled, order.StatusCompleted)

	t.Run("finds nothing before the first transition", func(t *testing.T) {
		_, err := store.FindActive(ctx, cancel)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("marks a transition applied", func(t *testing.T) {
		intentID := uuid.New()
		require.NoError(t, store.MarkApplied(ctx, reconciliation.NewTransitionRecord(cancel, &intentID)))

		rec, err := store.FindActive(ctx, cancel)
		require.NoError(t, err)
		assert.Equal(t, cancel, rec.Key)
		assert.True(t, rec.IsActive())
		require.NotNil(t, rec.IntentID)
		assert.Equal(t, intentID, *rec.IntentID)
	})

	t.Run("a later transition supersedes the earlier one", func(t *testing.T) {
		require.NoError(t, store.MarkApplied(ctx, reconciliation.NewTransitionRecord(reinstate, nil)))

		_, err := store.FindActive(ctx, cancel)
		assert.ErrorIs(t, err, shared.ErrNotFound, "cancelling again must be possible")

		_, err = store.FindActive(ctx, reinstate)
		assert.NoError(t, err)
	})

	t.Run("other kinds are not superseded", func(t *testing.T) {
		method := reconciliation.PaymentMethodKey(9, order.PaymentCash, order.PaymentCredit)
		require.NoError(t, store.MarkApplied(ctx, reconciliation.NewTransitionRecord(method, nil)))

		_, err := store.FindActive(ctx, reinstate)
		assert.NoError(t, err)
	})

	t.Run("lists history oldest first", func(t *testing.T) {
		records, err := store.ListByOrder(ctx, 9)
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, cancel, records[0].Key)
		assert.NotNil(t, records[0].SupersededAt)
		assert.Nil(t, records[1].SupersededAt)

		none, err := store.ListByOrder(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestGormTransitionStore_MarkAppliedRollsBack(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewGormTransitionStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "transition_records" SET "superseded_at"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "transition_records"`)).
		WillReturnError(errors.New("unique violation"))
	mock.ExpectRollback()

	key := reconciliation.StatusKey(9, order.StatusCompleted, order.StatusCancelled)
	err := store.MarkApplied(context.Background(), reconciliation.NewTransitionRecord(key, nil))

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
