// Package client implements the Order, Inventory and Receivables service
// ports over HTTP/JSON.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/erp/order-reconciler/internal/infrastructure/config"
	"github.com/erp/order-reconciler/internal/infrastructure/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	// IdempotencyKeyHeader carries the key of a ledger mutation
	IdempotencyKeyHeader = "Idempotency-Key"
	// IfMatchHeader carries the expected order version
	IfMatchHeader = "If-Match"

	maxResponseBytes = 4 << 20
	maxRetryDelay    = 5 * time.Second
)

// envelope is the response body shape shared by the ERP services
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *remoteError    `json:"error,omitempty"`
}

type remoteError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// request describes one call to a remote service
type request struct {
	method         string
	path           string
	query          url.Values
	body           any
	idempotencyKey string
	version        int
	// resource and id name the entity in NotFound errors
	resource string
	id       any
}

// Client is the HTTP transport shared by the service clients
type Client struct {
	service    string
	baseURL    *url.URL
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a client for one service
func New(service string, cfg config.ServiceConfig, log *zap.Logger, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%s: base URL is required", service)
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%s: invalid base URL: %w", service, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if log == nil {
		log = zap.NewNop()
	}

	c := &Client{
		service: service,
		baseURL: base,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return service + " " + r.Method
				}),
			),
		},
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     log.With(zap.String("service", service)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// do executes req and decodes the response data into out.
// Only GET requests are retried.
func (c *Client) do(ctx context.Context, req request, out any) error {
	var payload []byte
	if req.body != nil {
		var err error
		payload, err = json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", c.service, err)
		}
	}

	attempts := 1
	if req.method == http.MethodGet {
		attempts += c.maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt)
			logger.L(ctx, c.logger).Warn("Retrying remote call",
				zap.String("method", req.method),
				zap.String("path", req.path),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return shared.NewNetworkError(c.service+" call cancelled", ctx.Err())
			case <-time.After(delay):
			}
		}

		status, body, err := c.send(ctx, req, payload)
		if err != nil {
			lastErr = shared.NewNetworkError(c.service+" unavailable", err)
			if ctx.Err() != nil {
				return lastErr
			}
			continue
		}

		env := decodeEnvelope(body)
		if status >= 500 || status == http.StatusTooManyRequests {
			lastErr = shared.NewNetworkError(fmt.Sprintf("%s returned %d", c.service, status), remoteCause(env)).
				WithDetail("status", status)
			continue
		}
		if status >= 400 {
			return c.mapStatus(status, env, req)
		}
		if out == nil || env == nil || len(env.Data) == 0 {
			return nil
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return shared.NewDomainError("INVALID_RESPONSE", c.service+" returned an unreadable body").WithCause(err)
		}
		return nil
	}
	return lastErr
}

func (c *Client) send(ctx context.Context, req request, payload []byte) (int, []byte, error) {
	u := c.baseURL.JoinPath(req.path)
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return 0, nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if id := logger.GetRequestID(ctx); id != "" {
		httpReq.Header.Set(logger.RequestIDHeader, id)
	}
	if req.idempotencyKey != "" {
		httpReq.Header.Set(IdempotencyKeyHeader, req.idempotencyKey)
	}
	if req.version > 0 {
		httpReq.Header.Set(IfMatchHeader, strconv.Quote(strconv.Itoa(req.version)))
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// mapStatus turns a 4xx response into a DomainError
func (c *Client) mapStatus(status int, env *envelope, req request) error {
	code, message := "", http.StatusText(status)
	if env != nil && env.Error != nil {
		code = env.Error.Code
		if env.Error.Message != "" {
			message = env.Error.Message
		}
	}

	var err *shared.DomainError
	switch status {
	case http.StatusNotFound:
		err = shared.NewNotFoundError(req.resource, req.id)
	case http.StatusPreconditionFailed:
		err = shared.ErrConcurrencyConflict
	case http.StatusConflict:
		if code == "" || code == shared.ErrConcurrencyConflict.Code {
			err = shared.ErrConcurrencyConflict
		} else {
			err = shared.NewConflictError(code, message)
		}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if code == "" {
			code = "VALIDATION_ERROR"
		}
		err = shared.NewValidationError(code, message)
	default:
		if code == "" {
			code = "REMOTE_ERROR"
		}
		err = shared.NewDomainError(code, message)
	}
	return err.WithDetail("service", c.service).WithDetail("status", status)
}

// backoff returns retryDelay * 2^(attempt-1), capped
func (c *Client) backoff(attempt int) time.Duration {
	delay := float64(c.retryDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxRetryDelay) {
		return maxRetryDelay
	}
	return time.Duration(delay)
}

func decodeEnvelope(body []byte) *envelope {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil
	}
	return &env
}

func remoteCause(env *envelope) error {
	if env == nil || env.Error == nil {
		return nil
	}
	return errors.New(env.Error.Code + ": " + env.Error.Message)
}

func idPath(format string, id int64) string {
	return fmt.Sprintf(format, id)
}
