package reconciliation

import (
	"context"
	"errors"
	"time"

	"github.com/erp/order-reconciler/internal/domain/order"
	"github.com/erp/order-reconciler/internal/domain/receivable"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IntentStatus tracks how far a reconciliation saga got
type IntentStatus string

const (
	IntentPending        IntentStatus = "pending"
	IntentStockApplied   IntentStatus = "stock_applied"
	IntentCompleted      IntentStatus = "completed"
	IntentPartialFailure IntentStatus = "partial_failure"
	IntentAborted        IntentStatus = "aborted"
	IntentDead           IntentStatus = "dead"
	IntentNeedsReview    IntentStatus = "needs_review"
)

// IsValid returns true if the status is known
func (s IntentStatus) IsValid() bool {
	switch s {
	case IntentPending, IntentStockApplied, IntentCompleted, IntentPartialFailure,
		IntentAborted, IntentDead, IntentNeedsReview:
		return true
	}
	return false
}

// IsOpen reports whether the intent still needs work
func (s IntentStatus) IsOpen() bool {
	switch s {
	case IntentPending, IntentStockApplied, IntentPartialFailure:
		return true
	}
	return false
}

// Default retry configuration
const (
	DefaultMaxAttempts = 5
	DefaultBaseBackoff = time.Second
)

// BalanceStep is the planned balance change of an intent
type BalanceStep struct {
	CustomerID  int64                      `json:"customer_id"`
	Amount      decimal.Decimal            `json:"amount"`
	Type        receivable.TransactionType `json:"type"`
	Description string                     `json:"description"`
}

// Intent is recorded before the first ledger call of a transition so a
// crash or a failed balance step can be found and finished later.
type Intent struct {
	ID          uuid.UUID
	Key         TransitionKey
	OrderRef    order.Ref
	StockDeltas []ProductDelta
	// BalanceSteps holds zero, one or (for customer reassignment) two changes
	BalanceSteps []BalanceStep
	// BalanceApplied counts how many balance steps already went through
	BalanceApplied int
	Status         IntentStatus
	Attempts       int
	MaxAttempts    int
	LastError      string
	NextRetryAt    *time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewIntent creates a pending intent
func NewIntent(key TransitionKey, ref order.Ref, stock []ProductDelta, balance []BalanceStep) *Intent {
	now := time.Now()
	return &Intent{
		ID:           uuid.New(),
		Key:          key,
		OrderRef:     ref,
		StockDeltas:  stock,
		BalanceSteps: balance,
		Status:       IntentPending,
		MaxAttempts:  DefaultMaxAttempts,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// HasStockStep reports whether the intent moves stock
func (i *Intent) HasStockStep() bool {
	return len(i.StockDeltas) > 0
}

// PendingBalanceSteps returns the balance steps not yet applied
func (i *Intent) PendingBalanceSteps() []BalanceStep {
	if i.BalanceApplied >= len(i.BalanceSteps) {
		return nil
	}
	return i.BalanceSteps[i.BalanceApplied:]
}

// MarkStockApplied records that every stock delta went through
func (i *Intent) MarkStockApplied() error {
	if i.Status != IntentPending {
		return errors.New("can only mark pending intents as stock applied")
	}
	i.Status = IntentStockApplied
	i.UpdatedAt = time.Now()
	return nil
}

// MarkBalanceStepApplied advances past one balance step
func (i *Intent) MarkBalanceStepApplied() {
	if i.BalanceApplied < len(i.BalanceSteps) {
		i.BalanceApplied++
	}
	i.UpdatedAt = time.Now()
}

// MarkCompleted marks the saga as finished
func (i *Intent) MarkCompleted() {
	now := time.Now()
	i.Status = IntentCompleted
	i.CompletedAt = &now
	i.NextRetryAt = nil
	i.UpdatedAt = now
}

// MarkAborted records that the transition was rolled back before the balance step
func (i *Intent) MarkAborted(errMsg string) {
	i.Status = IntentAborted
	i.LastError = errMsg
	i.NextRetryAt = nil
	i.UpdatedAt = time.Now()
}

// MarkPartialFailure records a failed balance attempt and schedules the next one
func (i *Intent) MarkPartialFailure(errMsg string) {
	i.Attempts++
	i.LastError = errMsg
	i.UpdatedAt = time.Now()

	if i.Attempts >= i.MaxAttempts {
		i.Status = IntentDead
		i.NextRetryAt = nil
		return
	}
	i.Status = IntentPartialFailure
	// Exponential backoff: 1s, 2s, 4s, 8s, ...
	backoff := DefaultBaseBackoff * time.Duration(1<<uint(i.Attempts-1))
	next := time.Now().Add(backoff)
	i.NextRetryAt = &next
}

// MarkNeedsReview parks the intent for an operator
func (i *Intent) MarkNeedsReview(reason string) {
	i.Status = IntentNeedsReview
	i.LastError = reason
	i.NextRetryAt = nil
	i.UpdatedAt = time.Now()
}

// CanRetry returns true if the balance step is due for another attempt
func (i *Intent) CanRetry(now time.Time) bool {
	if i.Status != IntentPartialFailure || i.Attempts >= i.MaxAttempts {
		return false
	}
	return i.NextRetryAt == nil || !i.NextRetryAt.After(now)
}

// ResetForRetry puts a dead intent back into the retry queue. Dead intents
// always have their stock step committed.
func (i *Intent) ResetForRetry() error {
	if i.Status != IntentDead {
		return errors.New("can only retry dead intents")
	}
	now := time.Now()
	i.Status = IntentPartialFailure
	i.Attempts = 0
	i.LastError = ""
	i.NextRetryAt = &now
	i.UpdatedAt = now
	return nil
}

// IsDead returns true if the intent exhausted its retries
func (i *Intent) IsDead() bool {
	return i.Status == IntentDead
}

// IntentRepository persists reconciliation intents
type IntentRepository interface {
	// Save persists a new intent
	Save(ctx context.Context, intent *Intent) error
	// Update updates an existing intent
	Update(ctx context.Context, intent *Intent) error
	// FindByID retrieves an intent, or shared.ErrNotFound
	FindByID(ctx context.Context, id uuid.UUID) (*Intent, error)
	// FindRetryable retrieves partial-failure intents due for retry
	FindRetryable(ctx context.Context, before time.Time, limit int) ([]*Intent, error)
	// FindStale retrieves intents stuck in one of statuses since before
	FindStale(ctx context.Context, statuses []IntentStatus, before time.Time, limit int) ([]*Intent, error)
	// FindByStatus lists intents with pagination; empty status lists all
	FindByStatus(ctx context.Context, status IntentStatus, page shared.Page) ([]*Intent, int64, error)
	// CountByStatus returns count of intents for each status
	CountByStatus(ctx context.Context) (map[IntentStatus]int64, error)
}
