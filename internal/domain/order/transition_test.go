package order

import (
	"errors"
	"testing"

	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from     Status
		to       Status
		canTrans bool
	}{
		// From pending
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCredit, true},
		// From completed
		{StatusCompleted, StatusPending, true},
		{StatusCompleted, StatusCancelled, true},
		{StatusCompleted, StatusCredit, true},
		// From credit
		{StatusCredit, StatusPending, true},
		{StatusCredit, StatusCompleted, true},
		{StatusCredit, StatusCancelled, false},
		// From cancelled (terminal)
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusCompleted, false},
		{StatusCancelled, StatusCredit, false},
		// Self transitions are not edges
		{StatusPending, StatusPending, false},
		{StatusCredit, StatusCredit, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.canTrans, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestValidateStatusTransition(t *testing.T) {
	t.Run("legal transition", func(t *testing.T) {
		assert.NoError(t, ValidateStatusTransition(StatusPending, StatusCompleted))
	})

	t.Run("cancelled is terminal", func(t *testing.T) {
		for _, to := range AllStatuses {
			err := ValidateStatusTransition(StatusCancelled, to)
			require.Error(t, err)
			assert.Equal(t, shared.KindState, shared.KindOf(err))

			var de *shared.DomainError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, CodeOrderCancelled, de.Code)
		}
	})

	t.Run("illegal edge is a state error", func(t *testing.T) {
		err := ValidateStatusTransition(StatusCredit, StatusCancelled)
		require.Error(t, err)

		var de *shared.DomainError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, CodeInvalidTransition, de.Code)
		assert.Equal(t, StatusCredit, de.Details["from"])
	})

	t.Run("unknown status is a validation error", func(t *testing.T) {
		err := ValidateStatusTransition(StatusPending, Status("shipped"))
		assert.Equal(t, shared.KindValidation, shared.KindOf(err))
	})
}

func TestCanEdit(t *testing.T) {
	assert.True(t, CanEdit(newTestOrder(StatusCompleted, PaymentCash)))
	assert.False(t, CanEdit(newTestOrder(StatusCancelled, PaymentCash)))
	assert.False(t, CanEdit(nil))

	err := EnsureEditable(newTestOrder(StatusCancelled, PaymentCredit))
	require.Error(t, err)
	assert.Equal(t, shared.KindState, shared.KindOf(err))
}

func TestRequiresConfirmation(t *testing.T) {
	assert.True(t, RequiresConfirmation(StatusCancelled))
	assert.False(t, RequiresConfirmation(StatusCompleted))
	assert.False(t, RequiresConfirmation(StatusCredit))
}

func TestValidatePaymentMethod(t *testing.T) {
	assert.NoError(t, ValidatePaymentMethod(PaymentBankTransfer))
	assert.Equal(t, shared.KindValidation, shared.KindOf(ValidatePaymentMethod("voucher")))
}
