package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/erp/order-reconciler/internal/domain/reconciliation"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

const defaultTransitionPrefix = "reconciler:transition:"

// RedisTransitionStore implements TransitionStore using Redis.
// This is suitable for distributed deployments where multiple instances
// need to share guard state.
//
// Per order it keeps a hash of the active record per kind and a list of
// every record ever applied.
type RedisTransitionStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisTransitionStore creates a store with an existing Redis client.
// ttl bounds how long an order's records are kept after its last
// transition; zero keeps them forever.
func NewRedisTransitionStore(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisTransitionStore {
	if keyPrefix == "" {
		keyPrefix = defaultTransitionPrefix
	}
	return &RedisTransitionStore{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (s *RedisTransitionStore) activeKey(orderID int64) string {
	return s.keyPrefix + "active:" + strconv.FormatInt(orderID, 10)
}

func (s *RedisTransitionStore) historyKey(orderID int64) string {
	return s.keyPrefix + "history:" + strconv.FormatInt(orderID, 10)
}

// FindActive returns the active record for key
func (s *RedisTransitionStore) FindActive(ctx context.Context, key reconciliation.TransitionKey) (*reconciliation.TransitionRecord, error) {
	raw, err := s.client.HGet(ctx, s.activeKey(key.OrderID), string(key.Kind)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read transition record: %w", err)
	}
	var rec reconciliation.TransitionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode transition record: %w", err)
	}
	if rec.Key != key {
		return nil, shared.ErrNotFound
	}
	return &rec, nil
}

// MarkApplied replaces the active record of the kind and appends rec to
// the order's history in one transaction
func (s *RedisTransitionStore) MarkApplied(ctx context.Context, rec *reconciliation.TransitionRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode transition record: %w", err)
	}
	active := s.activeKey(rec.Key.OrderID)
	history := s.historyKey(rec.Key.OrderID)

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, active, string(rec.Key.Kind), raw)
		pipe.RPush(ctx, history, raw)
		if s.ttl > 0 {
			pipe.Expire(ctx, active, s.ttl)
			pipe.Expire(ctx, history, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to mark transition applied: %w", err)
	}
	return nil
}

// ListByOrder returns all records of an order, oldest first. A record is
// superseded at the time the next record of its kind was applied.
func (s *RedisTransitionStore) ListByOrder(ctx context.Context, orderID int64) ([]*reconciliation.TransitionRecord, error) {
	items, err := s.client.LRange(ctx, s.historyKey(orderID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list transition records: %w", err)
	}
	out := make([]*reconciliation.TransitionRecord, 0, len(items))
	latest := make(map[reconciliation.TransitionKind]*reconciliation.TransitionRecord)
	for _, item := range items {
		var rec reconciliation.TransitionRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode transition record: %w", err)
		}
		if prev, ok := latest[rec.Key.Kind]; ok {
			prev.Supersede(rec.AppliedAt)
		}
		latest[rec.Key.Kind] = &rec
		out = append(out, &rec)
	}
	return out, nil
}

// Ensure RedisTransitionStore implements TransitionStore
var _ reconciliation.TransitionStore = (*RedisTransitionStore)(nil)
