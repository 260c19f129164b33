package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/erp/order-reconciler/internal/infrastructure/config"
	"github.com/erp/order-reconciler/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New("test-service", config.ServiceConfig{
		BaseURL:    server.URL,
		Timeout:    time.Second,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   map[string]string{"code": code, "message": message},
	})
}

func TestNew(t *testing.T) {
	t.Run("requires a base URL", func(t *testing.T) {
		_, err := New("orders", config.ServiceConfig{}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "base URL is required")
	})

	t.Run("applies defaults", func(t *testing.T) {
		c, err := New("orders", config.ServiceConfig{BaseURL: "http://orders.local/", MaxRetries: -1}, nil)
		require.NoError(t, err)
		assert.Equal(t, 10*time.Second, c.httpClient.Timeout)
		assert.Equal(t, 0, c.maxRetries)
		assert.Equal(t, "http://orders.local", c.baseURL.String())
	})
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		code      string
		wantKind  shared.ErrorKind
		wantCode  string
		retryable bool
	}{
		{"not found", http.StatusNotFound, "", shared.KindNotFound, "NOT_FOUND", false},
		{"precondition failed", http.StatusPreconditionFailed, "", shared.KindConflict, "CONCURRENCY_CONFLICT", false},
		{"conflict with remote code", http.StatusConflict, "DUPLICATE_REQUEST", shared.KindConflict, "DUPLICATE_REQUEST", false},
		{"conflict without code", http.StatusConflict, "", shared.KindConflict, "CONCURRENCY_CONFLICT", false},
		{"bad request", http.StatusBadRequest, "", shared.KindValidation, "VALIDATION_ERROR", false},
		{"insufficient stock", http.StatusUnprocessableEntity, "INSUFFICIENT_STOCK", shared.KindValidation, "INSUFFICIENT_STOCK", false},
		{"server error", http.StatusBadGateway, "", shared.KindNetwork, "NETWORK_ERROR", true},
		{"throttled", http.StatusTooManyRequests, "", shared.KindNetwork, "NETWORK_ERROR", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeError(w, tt.status, tt.code, "remote says no")
			})

			err := c.do(context.Background(), request{method: http.MethodPost, path: "/things/1", resource: "thing", id: 1}, nil)
			require.Error(t, err)

			var de *shared.DomainError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.wantKind, de.Kind)
			assert.Equal(t, tt.wantCode, de.Code)
			assert.Equal(t, tt.retryable, shared.IsRetryable(err))
		})
	}

	t.Run("insufficient stock matches the sentinel", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusUnprocessableEntity, "INSUFFICIENT_STOCK", "only 2 left")
		})
		err := c.do(context.Background(), request{method: http.MethodPost, path: "/stock"}, nil)
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
		assert.Contains(t, err.Error(), "only 2 left")
	})
}

func TestClient_Retries(t *testing.T) {
	t.Run("retries GET on server errors", func(t *testing.T) {
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "busy")
				return
			}
			writeData(w, http.StatusOK, map[string]int{"value": 7})
		})

		var out struct{ Value int }
		err := c.do(context.Background(), request{method: http.MethodGet, path: "/value"}, &out)
		require.NoError(t, err)
		assert.Equal(t, 7, out.Value)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		})

		err := c.do(context.Background(), request{method: http.MethodGet, path: "/value"}, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrNetwork)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("never retries mutations", func(t *testing.T) {
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		})

		err := c.do(context.Background(), request{method: http.MethodPost, path: "/value", body: map[string]int{"a": 1}}, nil)
		require.Error(t, err)
		assert.True(t, shared.IsRetryable(err))
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			writeError(w, http.StatusNotFound, "NOT_FOUND", "missing")
		})

		err := c.do(context.Background(), request{method: http.MethodGet, path: "/value", resource: "value", id: 3}, nil)
		assert.Equal(t, shared.KindNotFound, shared.KindOf(err))
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	c, err := New("slow", config.ServiceConfig{BaseURL: server.URL, Timeout: 20 * time.Millisecond}, nil)
	require.NoError(t, err)

	err = c.do(context.Background(), request{method: http.MethodPost, path: "/slow"}, nil)
	require.Error(t, err)
	assert.Equal(t, shared.KindNetwork, shared.KindOf(err))
	assert.True(t, shared.IsRetryable(err))
}

func TestClient_Headers(t *testing.T) {
	var got http.Header
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		writeData(w, http.StatusOK, nil)
	})

	ctx := logger.WithRequestID(context.Background(), "req-123")
	err := c.do(ctx, request{
		method:         http.MethodPut,
		path:           "/things/1",
		body:           map[string]string{"k": "v"},
		idempotencyKey: "key-1",
		version:        4,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, "req-123", got.Get(logger.RequestIDHeader))
	assert.Equal(t, "key-1", got.Get(IdempotencyKeyHeader))
	assert.Equal(t, `"4"`, got.Get(IfMatchHeader))
}

func TestClient_Backoff(t *testing.T) {
	c := &Client{retryDelay: 100 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, c.backoff(1))
	assert.Equal(t, 200*time.Millisecond, c.backoff(2))
	assert.Equal(t, 400*time.Millisecond, c.backoff(3))
	assert.Equal(t, maxRetryDelay, c.backoff(20))
}
