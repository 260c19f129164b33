package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/order-reconciler/internal/domain/reconciliation"
	"github.com/erp/order-reconciler/internal/domain/shared"
)

// InMemoryTransitionStore implements TransitionStore using an in-memory map.
// This is suitable for single-instance deployments and testing
type InMemoryTransitionStore struct {
	mu        sync.RWMutex
	records   map[int64][]*reconciliation.TransitionRecord
	retention time.Duration
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryTransitionStore creates a new in-memory transition store.
// Superseded records older than retention are purged in the background;
// a zero retention keeps them forever.
func NewInMemoryTransitionStore(retention time.Duration) *InMemoryTransitionStore {
	store := &InMemoryTransitionStore{
		records:   make(map[int64][]*reconciliation.TransitionRecord),
		retention: retention,
		stopChan:  make(chan struct{}),
	}

	if retention > 0 {
		store.wg.Add(1)
		go store.cleanupLoop()
	}

	return store
}

// FindActive returns the active record for key
func (s *InMemoryTransitionStore) FindActive(ctx context.Context, key reconciliation.TransitionKey) (*reconciliation.TransitionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records[key.OrderID] {
		if rec.Key == key && rec.IsActive() {
			c := *rec
			return &c, nil
		}
	}
	return nil, shared.ErrNotFound
}

// MarkApplied stores rec and supersedes the other active records of the
// same order and kind
func (s *InMemoryTransitionStore) MarkApplied(ctx context.Context, rec *reconciliation.TransitionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, existing := range s.records[rec.Key.OrderID] {
		if existing.Key.Kind == rec.Key.Kind && existing.IsActive() {
			existing.Supersede(now)
		}
	}
	c := *rec
	s.records[rec.Key.OrderID] = append(s.records[rec.Key.OrderID], &c)
	return nil
}

// ListByOrder returns all records of an order, oldest first
func (s *InMemoryTransitionStore) ListByOrder(ctx context.Context, orderID int64) ([]*reconciliation.TransitionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*reconciliation.TransitionRecord, 0, len(s.records[orderID]))
	for _, rec := range s.records[orderID] {
		c := *rec
		out = append(out, &c)
	}
	return out, nil
}

// Close stops the cleanup goroutine.
// Safe to call multiple times
func (s *InMemoryTransitionStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryTransitionStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup(time.Now().Add(-s.retention))
		}
	}
}

// cleanup drops superseded records older than cutoff
func (s *InMemoryTransitionStore) cleanup(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for orderID, recs := range s.records {
		kept := recs[:0]
		for _, rec := range recs {
			if rec.SupersededAt != nil && rec.SupersededAt.Before(cutoff) {
				continue
			}
			kept = append(kept, rec)
		}
		if len(kept) == 0 {
			delete(s.records, orderID)
			continue
		}
		s.records[orderID] = kept
	}
}

// Size returns the number of records in the store (for testing/monitoring)
func (s *InMemoryTransitionStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, recs := range s.records {
		n += len(recs)
	}
	return n
}

// Ensure InMemoryTransitionStore implements TransitionStore
var _ reconciliation.TransitionStore = (*InMemoryTransitionStore)(nil)
