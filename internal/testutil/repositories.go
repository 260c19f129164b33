package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/erp/order-reconciler/internal/domain/reconciliation"
	"github.com/erp/order-reconciler/internal/domain/receivable"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/erp/order-reconciler/internal/domain/stock"
	"github.com/google/uuid"
)

// IntentRepository is an in-memory reconciliation.IntentRepository
type IntentRepository struct {
	mu      sync.Mutex
	intents map[uuid.UUID]*reconciliation.Intent
	order   []uuid.UUID
	saveErr error
}

// NewIntentRepository creates an empty repository
func NewIntentRepository() *IntentRepository {
	return &IntentRepository{intents: make(map[uuid.UUID]*reconciliation.Intent)}
}

// SetSaveError makes Save fail with err
func (r *IntentRepository) SetSaveError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveErr = err
}

// All returns copies of every intent in insertion order
func (r *IntentRepository) All() []*reconciliation.Intent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*reconciliation.Intent, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, cloneIntent(r.intents[id]))
	}
	return out
}

// Backdate moves an intent's UpdatedAt into the past
func (r *IntentRepository) Backdate(id uuid.UUID, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if in, ok := r.intents[id]; ok {
		in.UpdatedAt = in.UpdatedAt.Add(-d)
		if in.NextRetryAt != nil {
			t := in.NextRetryAt.Add(-d)
			in.NextRetryAt = &t
		}
	}
}

// Save implements reconciliation.IntentRepository
func (r *IntentRepository) Save(_ context.Context, intent *reconciliation.Intent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.intents[intent.ID] = cloneIntent(intent)
	r.order = append(r.order, intent.ID)
	return nil
}

// Update implements reconciliation.IntentRepository
func (r *IntentRepository) Update(_ context.Context, intent *reconciliation.Intent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.intents[intent.ID]; !ok {
		return shared.ErrNotFound
	}
	r.intents[intent.ID] = cloneIntent(intent)
	return nil
}

// FindByID implements reconciliation.IntentRepository
func (r *IntentRepository) FindByID(_ context.Context, id uuid.UUID) (*reconciliation.Intent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.intents[id]
	if !ok {
		return nil, shared.NewNotFoundError("intent", id)
	}
	return cloneIntent(in), nil
}

// FindRetryable implements reconciliation.IntentRepository
func (r *IntentRepository) FindRetryable(_ context.Context, before time.Time, limit int) ([]*reconciliation.Intent, error) {
	return r.filter(limit, func(in *reconciliation.Intent) bool {
		return in.CanRetry(before)
	}), nil
}

// FindStale implements reconciliation.IntentRepository
func (r *IntentRepository) FindStale(_ context.Context, statuses []reconciliation.IntentStatus, before time.Time, limit int) ([]*reconciliation.Intent, error) {
	return r.filter(limit, func(in *reconciliation.Intent) bool {
		for _, s := range statuses {
			if in.Status == s && in.UpdatedAt.Before(before) {
				return true
			}
		}
		return false
	}), nil
}

// FindByStatus implements reconciliation.IntentRepository
func (r *IntentRepository) FindByStatus(_ context.Context, status reconciliation.IntentStatus, page shared.Page) ([]*reconciliation.Intent, int64, error) {
	all := r.filter(0, func(in *reconciliation.Intent) bool {
		return status == "" || in.Status == status
	})
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, page.Normalize()), int64(len(all)), nil
}

// CountByStatus implements reconciliation.IntentRepository
func (r *IntentRepository) CountByStatus(_ context.Context) (map[reconciliation.IntentStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[reconciliation.IntentStatus]int64)
	for _, in := range r.intents {
		out[in.Status]++
	}
	return out, nil
}

func (r *IntentRepository) filter(limit int, keep func(*reconciliation.Intent) bool) []*reconciliation.Intent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*reconciliation.Intent
	for _, id := range r.order {
		in := r.intents[id]
		if keep(in) {
			out = append(out, cloneIntent(in))
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}

func cloneIntent(in *reconciliation.Intent) *reconciliation.Intent {
	c := *in
	c.StockDeltas = append([]reconciliation.ProductDelta(nil), in.StockDeltas...)
	c.BalanceSteps = append([]reconciliation.BalanceStep(nil), in.BalanceSteps...)
	return &c
}

// MovementRepository is an in-memory stock.MovementRepository
type MovementRepository struct {
	mu        sync.Mutex
	movements []*stock.Movement
	err       error
}

// NewMovementRepository creates an empty journal
func NewMovementRepository() *MovementRepository {
	return &MovementRepository{}
}

// SetError makes Save fail with err
func (r *MovementRepository) SetError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// All returns every movement in insertion order
func (r *MovementRepository) All() []*stock.Movement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*stock.Movement(nil), r.movements...)
}

// Save implements stock.MovementRepository
func (r *MovementRepository) Save(_ context.Context, m *stock.Movement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.movements = append(r.movements, m)
	return nil
}

// FindByProduct implements stock.MovementRepository
func (r *MovementRepository) FindByProduct(_ context.Context, productID int64, page shared.Page) ([]*stock.Movement, int64, error) {
	all := r.filter(func(m *stock.Movement) bool { return m.ProductID == productID })
	reverse(all)
	return paginate(all, page.Normalize()), int64(len(all)), nil
}

// FindByIntent implements stock.MovementRepository
func (r *MovementRepository) FindByIntent(_ context.Context, intentID uuid.UUID) ([]*stock.Movement, error) {
	return r.filter(func(m *stock.Movement) bool { return m.IntentID != nil && *m.IntentID == intentID }), nil
}

// FindByOrder implements stock.MovementRepository
func (r *MovementRepository) FindByOrder(_ context.Context, orderID int64) ([]*stock.Movement, error) {
	return r.filter(func(m *stock.Movement) bool { return m.OrderRef.OrderID == orderID }), nil
}

func (r *MovementRepository) filter(keep func(*stock.Movement) bool) []*stock.Movement {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*stock.Movement
	for _, m := range r.movements {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

// TransactionJournal is an in-memory receivable.TransactionJournal
type TransactionJournal struct {
	mu  sync.Mutex
	txs []*receivable.BalanceTransaction
}

// NewTransactionJournal creates an empty journal
func NewTransactionJournal() *TransactionJournal {
	return &TransactionJournal{}
}

// All returns every transaction in insertion order
func (j *TransactionJournal) All() []*receivable.BalanceTransaction {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]*receivable.BalanceTransaction(nil), j.txs...)
}

// Save implements receivable.TransactionJournal
func (j *TransactionJournal) Save(_ context.Context, tx *receivable.BalanceTransaction) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.txs = append(j.txs, tx)
	return nil
}

// FindByCustomer implements receivable.TransactionJournal
func (j *TransactionJournal) FindByCustomer(_ context.Context, customerID int64, page shared.Page) ([]*receivable.BalanceTransaction, int64, error) {
	all := j.filter(func(tx *receivable.BalanceTransaction) bool { return tx.CustomerID == customerID })
	reverse(all)
	return paginate(all, page.Normalize()), int64(len(all)), nil
}

// FindByIntent implements receivable.TransactionJournal
func (j *TransactionJournal) FindByIntent(_ context.Context, intentID uuid.UUID) ([]*receivable.BalanceTransaction, error) {
	return j.filter(func(tx *receivable.BalanceTransaction) bool {
		return tx.IntentID != nil && *tx.IntentID == intentID
	}), nil
}

func (j *TransactionJournal) filter(keep func(*receivable.BalanceTransaction) bool) []*receivable.BalanceTransaction {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []*receivable.BalanceTransaction
	for _, tx := range j.txs {
		if keep(tx) {
			out = append(out, tx)
		}
	}
	return out
}

// AdjustmentRepository is an in-memory reconciliation.AdjustmentRepository
type AdjustmentRepository struct {
	mu      sync.Mutex
	records []*reconciliation.AdjustmentRecord
}

// NewAdjustmentRepository creates an empty repository
func NewAdjustmentRepository() *AdjustmentRepository {
	return &AdjustmentRepository{}
}

// Save implements reconciliation.AdjustmentRepository
func (r *AdjustmentRepository) Save(_ context.Context, rec *reconciliation.AdjustmentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

// FindByOrder implements reconciliation.AdjustmentRepository
func (r *AdjustmentRepository) FindByOrder(_ context.Context, orderID int64) ([]*reconciliation.AdjustmentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*reconciliation.AdjustmentRecord
	for _, rec := range r.records {
		if rec.OrderRef.OrderID == orderID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

var (
	_ reconciliation.IntentRepository     = (*IntentRepository)(nil)
	_ stock.MovementRepository            = (*MovementRepository)(nil)
	_ receivable.TransactionJournal       = (*TransactionJournal)(nil)
	_ reconciliation.AdjustmentRepository = (*AdjustmentRepository)(nil)
)
