package dto

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		kind shared.ErrorKind
		want int
	}{
		{"INVALID_STATUS", shared.KindValidation, http.StatusBadRequest},
		{"INSUFFICIENT_STOCK", shared.KindValidation, http.StatusUnprocessableEntity},
		{"INVALID_TRANSITION", shared.KindState, http.StatusUnprocessableEntity},
		{"NOT_FOUND", shared.KindNotFound, http.StatusNotFound},
		{"CONCURRENCY_CONFLICT", shared.KindConflict, http.StatusConflict},
		{"NETWORK_ERROR", shared.KindNetwork, http.StatusServiceUnavailable},
		{"PARTIAL_FAILURE", shared.KindPartialFailure, http.StatusBadGateway},
		{ErrCodeConfirmationRequired, "", http.StatusPreconditionRequired},
		{"SOMETHING_ELSE", "", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, GetHTTPStatus(tt.code, tt.kind))
		})
	}
}

func TestFromError(t *testing.T) {
	t.Run("wrapped domain error keeps code and details", func(t *testing.T) {
		err := fmt.Errorf("load order: %w", shared.NewNotFoundError("order", 9))
		status, resp := FromError(err, "req-1")

		assert.Equal(t, http.StatusNotFound, status)
		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "NOT_FOUND", resp.Error.Code)
		assert.Equal(t, "order 9 not found", resp.Error.Message)
		assert.Equal(t, "req-1", resp.Error.RequestID)
		assert.Equal(t, "order", resp.Error.Details["resource"])
	})

	t.Run("plain errors are hidden", func(t *testing.T) {
		status, resp := FromError(errors.New("pq: connection refused"), "")

		assert.Equal(t, http.StatusInternalServerError, status)
		assert.Equal(t, ErrCodeInternal, resp.Error.Code)
		assert.NotContains(t, resp.Error.Message, "pq")
	})
}

func TestNewPartialFailureResponse(t *testing.T) {
	de := (&shared.DomainError{Code: ErrCodePartialFailure, Message: "balance not applied", Kind: shared.KindPartialFailure}).
		WithDetail("customer_id", int64(5))
	resp := NewPartialFailureResponse(map[string]string{"outcome": "partial_failure"}, de, "req-2")

	assert.True(t, resp.Success)
	assert.NotNil(t, resp.Data)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodePartialFailure, resp.Error.Code)
	assert.Equal(t, int64(5), resp.Error.Details["customer_id"])
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	resp := NewSuccessResponseWithMeta([]int{1, 2}, 42, 20, 40)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(42), resp.Meta.Total)
	assert.Equal(t, 20, resp.Meta.Limit)
	assert.Equal(t, 40, resp.Meta.Offset)
}
