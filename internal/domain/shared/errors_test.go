package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	t.Run("matches sentinel by code", func(t *testing.T) {
		err := NewValidationError("INSUFFICIENT_STOCK", "product 7 short by 2")
		assert.True(t, errors.Is(err, ErrInsufficientStock))
		assert.False(t, errors.Is(err, ErrInvalidState))
	})

	t.Run("matches through wrapping", func(t *testing.T) {
		err := fmt.Errorf("reconcile order 1: %w", ErrAlreadyApplied)
		assert.True(t, errors.Is(err, ErrAlreadyApplied))
		assert.Equal(t, KindConflict, KindOf(err))
	})
}

func TestDomainError_WithCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewNetworkError("inventory service unavailable", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.Contains(t, err.Error(), "connection refused")

	copied := ErrInvalidState.WithCause(cause)
	assert.Nil(t, ErrInvalidState.Unwrap())
	assert.ErrorIs(t, copied, cause)
}

func TestDomainError_WithDetail(t *testing.T) {
	base := NewValidationError("EMPTY_RETURN", "nothing to return")
	withDetail := base.WithDetail("order_id", int64(9))

	assert.Nil(t, base.Details)
	assert.Equal(t, int64(9), withDetail.Details["order_id"])
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, KindNotFound, KindOf(NewNotFoundError("product", 3)))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestPage_Normalize(t *testing.T) {
	assert.Equal(t, Page{Limit: DefaultPageLimit}, Page{}.Normalize())
	assert.Equal(t, Page{Limit: MaxPageLimit, Offset: 0}, Page{Limit: 500, Offset: -3}.Normalize())
	assert.Equal(t, Page{Limit: 5, Offset: 10}, Page{Limit: 5, Offset: 10}.Normalize())
}
