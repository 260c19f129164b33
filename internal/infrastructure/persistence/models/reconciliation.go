package models

import (
	"time"

	"github.com/erp/order-reconciler/internal/domain/reconciliation"
	"github.com/google/uuid"
)

// TransitionRecordModel is the persistence model of the transition guard.
// A NULL superseded_at marks the active record of an order and kind.
type TransitionRecordModel struct {
	ID           uuid.UUID                     `gorm:"type:uuid;primaryKey"`
	OrderID      int64                         `gorm:"not null;index:idx_transition_active,priority:1"`
	Kind         reconciliation.TransitionKind `gorm:"type:varchar(32);not null;index:idx_transition_active,priority:2"`
	FromState    string                        `gorm:"column:from_state;type:varchar(64);not null"`
	ToState      string                        `gorm:"column:to_state;type:varchar(64);not null"`
	Applied      bool                          `gorm:"not null"`
	AppliedAt    time.Time                     `gorm:"not null"`
	SupersededAt *time.Time                    `gorm:"index:idx_transition_active,priority:3"`
	IntentID     *uuid.UUID                    `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (TransitionRecordModel) TableName() string {
	return "transition_records"
}

// ToDomain converts the persistence model to a domain TransitionRecord
func (m *TransitionRecordModel) ToDomain() *reconciliation.TransitionRecord {
	return &reconciliation.TransitionRecord{
		ID: m.ID,
		Key: reconciliation.TransitionKey{
			OrderID: m.OrderID,
			Kind:    m.Kind,
			From:    m.FromState,
			To:      m.ToState,
		},
		Applied:      m.Applied,
		AppliedAt:    m.AppliedAt,
		SupersededAt: m.SupersededAt,
		IntentID:     m.IntentID,
	}
}

// TransitionRecordModelFromDomain creates a persistence model from a domain TransitionRecord
func TransitionRecordModelFromDomain(r *reconciliation.TransitionRecord) *TransitionRecordModel {
	return &TransitionRecordModel{
		ID:           r.ID,
		OrderID:      r.Key.OrderID,
		Kind:         r.Key.Kind,
		FromState:    r.Key.From,
		ToState:      r.Key.To,
		Applied:      r.Applied,
		AppliedAt:    r.AppliedAt,
		SupersededAt: r.SupersededAt,
		IntentID:     r.IntentID,
	}
}

// IntentModel is the persistence model of a reconciliation intent
type IntentModel struct {
	ID             uuid.UUID                     `gorm:"type:uuid;primaryKey"`
	OrderID        int64                         `gorm:"not null;index"`
	OrderNumber    string                        `gorm:"type:varchar(64)"`
	Kind           reconciliation.TransitionKind `gorm:"type:varchar(32);not null"`
	FromState      string                        `gorm:"column:from_state;type:varchar(64);not null"`
	ToState        string                        `gorm:"column:to_state;type:varchar(64);not null"`
	StockDeltas    []reconciliation.ProductDelta `gorm:"type:jsonb;serializer:json"`
	BalanceSteps   []reconciliation.BalanceStep  `gorm:"type:jsonb;serializer:json"`
	BalanceApplied int                           `gorm:"not null;default:0"`
	Status         reconciliation.IntentStatus   `gorm:"type:varchar(20);not null;index:idx_intent_status_next_retry,priority:1;index:idx_intent_status_updated,priority:1"`
	Attempts       int                           `gorm:"not null;default:0"`
	MaxAttempts    int                           `gorm:"not null;default:5"`
	LastError      string                        `gorm:"type:text"`
	NextRetryAt    *time.Time                    `gorm:"index:idx_intent_status_next_retry,priority:2"`
	CompletedAt    *time.Time
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null;index:idx_intent_status_updated,priority:2"`
}

// TableName returns the table name for GORM
func (IntentModel) TableName() string {
	return "reconciliation_intents"
}

// ToDomain converts the persistence model to a domain Intent
func (m *IntentModel) ToDomain() *reconciliation.Intent {
	return &reconciliation.Intent{
		ID: m.ID,
		Key: reconciliation.TransitionKey{
			OrderID: m.OrderID,
			Kind:    m.Kind,
			From:    m.FromState,
			To:      m.ToState,
		},
		OrderRef:       OrderRefColumns{OrderID: m.OrderID, OrderNumber: m.OrderNumber}.ToDomain(),
		StockDeltas:    m.StockDeltas,
		BalanceSteps:   m.BalanceSteps,
		BalanceApplied: m.BalanceApplied,
		Status:         m.Status,
		Attempts:       m.Attempts,
		MaxAttempts:    m.MaxAttempts,
		LastError:      m.LastError,
		NextRetryAt:    m.NextRetryAt,
		CompletedAt:    m.CompletedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// IntentModelFromDomain creates a persistence model from a domain Intent
func IntentModelFromDomain(i *reconciliation.Intent) *IntentModel {
	return &IntentModel{
		ID:             i.ID,
		OrderID:        i.Key.OrderID,
		OrderNumber:    i.OrderRef.OrderNumber,
		Kind:           i.Key.Kind,
		FromState:      i.Key.From,
		ToState:        i.Key.To,
		StockDeltas:    i.StockDeltas,
		BalanceSteps:   i.BalanceSteps,
		BalanceApplied: i.BalanceApplied,
		Status:         i.Status,
		Attempts:       i.Attempts,
		MaxAttempts:    i.MaxAttempts,
		LastError:      i.LastError,
		NextRetryAt:    i.NextRetryAt,
		CompletedAt:    i.CompletedAt,
		CreatedAt:      i.CreatedAt,
		UpdatedAt:      i.UpdatedAt,
	}
}
