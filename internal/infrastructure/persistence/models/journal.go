package models

import (
	"time"

	"github.com/erp/order-reconciler/internal/domain/receivable"
	"github.com/erp/order-reconciler/internal/domain/reconciliation"
	"github.com/erp/order-reconciler/internal/domain/stock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockMovementModel is the persistence model of a stock movement
type StockMovementModel struct {
	JournalModel
	OrderRefColumns
	ProductID     int64           `gorm:"not null;index"`
	QuantityDelta decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	BalanceBefore decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Reason        stock.Reason    `gorm:"type:varchar(32);not null"`
	Notes         string          `gorm:"type:text"`
	IntentID      *uuid.UUID      `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (StockMovementModel) TableName() string {
	return "stock_movements"
}

// ToDomain converts the persistence model to a domain Movement
func (m *StockMovementModel) ToDomain() *stock.Movement {
	return &stock.Movement{
		BaseEntity:    m.JournalModel.ToDomain(),
		ProductID:     m.ProductID,
		QuantityDelta: m.QuantityDelta,
		BalanceBefore: m.BalanceBefore,
		BalanceAfter:  m.BalanceAfter,
		Reason:        m.Reason,
		Notes:         m.Notes,
		OrderRef:      m.OrderRefColumns.ToDomain(),
		IntentID:      m.IntentID,
	}
}

// StockMovementModelFromDomain creates a persistence model from a domain Movement
func StockMovementModelFromDomain(mv *stock.Movement) *StockMovementModel {
	m := &StockMovementModel{
		OrderRefColumns: OrderRefColumnsFromDomain(mv.OrderRef),
		ProductID:       mv.ProductID,
		QuantityDelta:   mv.QuantityDelta,
		BalanceBefore:   mv.BalanceBefore,
		BalanceAfter:    mv.BalanceAfter,
		Reason:          mv.Reason,
		Notes:           mv.Notes,
		IntentID:        mv.IntentID,
	}
	m.FromDomainBaseEntity(mv.BaseEntity)
	return m
}

// BalanceTransactionModel is the persistence model of a journaled balance transaction
type BalanceTransactionModel struct {
	JournalModel
	OrderRefColumns
	RemoteID        string                     `gorm:"type:varchar(64);index"`
	CustomerID      int64                      `gorm:"not null;index:idx_balance_customer_date,priority:1"`
	Amount          decimal.Decimal            `gorm:"type:decimal(18,4);not null"`
	Type            receivable.TransactionType `gorm:"type:varchar(20);not null"`
	PreviousBalance decimal.Decimal            `gorm:"type:decimal(18,4);not null"`
	NewBalance      decimal.Decimal            `gorm:"type:decimal(18,4);not null"`
	Description     string                     `gorm:"type:varchar(500)"`
	IntentID        *uuid.UUID                 `gorm:"type:uuid;index"`
	TransactionDate time.Time                  `gorm:"not null;index:idx_balance_customer_date,priority:2"`
}

// TableName returns the table name for GORM
func (BalanceTransactionModel) TableName() string {
	return "balance_transactions"
}

// ToDomain converts the persistence model to a domain BalanceTransaction
func (m *BalanceTransactionModel) ToDomain() *receivable.BalanceTransaction {
	return &receivable.BalanceTransaction{
		BaseEntity:      m.JournalModel.ToDomain(),
		RemoteID:        m.RemoteID,
		CustomerID:      m.CustomerID,
		OrderRef:        m.OrderRefColumns.ToDomain(),
		Amount:          m.Amount,
		Type:            m.Type,
		PreviousBalance: m.PreviousBalance,
		NewBalance:      m.NewBalance,
		Description:     m.Description,
		IntentID:        m.IntentID,
		TransactionDate: m.TransactionDate,
	}
}

// BalanceTransactionModelFromDomain creates a persistence model from a domain BalanceTransaction
func BalanceTransactionModelFromDomain(tx *receivable.BalanceTransaction) *BalanceTransactionModel {
	m := &BalanceTransactionModel{
		OrderRefColumns: OrderRefColumnsFromDomain(tx.OrderRef),
		RemoteID:        tx.RemoteID,
		CustomerID:      tx.CustomerID,
		Amount:          tx.Amount,
		Type:            tx.Type,
		PreviousBalance: tx.PreviousBalance,
		NewBalance:      tx.NewBalance,
		Description:     tx.Description,
		IntentID:        tx.IntentID,
		TransactionDate: tx.TransactionDate,
	}
	m.FromDomainBaseEntity(tx.BaseEntity)
	return m
}

// AdjustmentModel is the persistence model of a committed return
type AdjustmentModel struct {
	JournalModel
	OrderRefColumns
	Lines        []reconciliation.ReturnedLine `gorm:"type:jsonb;serializer:json;not null"`
	RefundAmount decimal.Decimal               `gorm:"type:decimal(18,2);not null"`
	Restocked    bool                          `gorm:"not null"`
	Notes        string                        `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (AdjustmentModel) TableName() string {
	return "order_adjustments"
}

// ToDomain converts the persistence model to a domain AdjustmentRecord
func (m *AdjustmentModel) ToDomain() *reconciliation.AdjustmentRecord {
	return &reconciliation.AdjustmentRecord{
		BaseEntity:   m.JournalModel.ToDomain(),
		OrderRef:     m.OrderRefColumns.ToDomain(),
		Lines:        m.Lines,
		RefundAmount: m.RefundAmount,
		Restocked:    m.Restocked,
		Notes:        m.Notes,
	}
}

// AdjustmentModelFromDomain creates a persistence model from a domain AdjustmentRecord
func AdjustmentModelFromDomain(rec *reconciliation.AdjustmentRecord) *AdjustmentModel {
	m := &AdjustmentModel{
		OrderRefColumns: OrderRefColumnsFromDomain(rec.OrderRef),
		Lines:           rec.Lines,
		RefundAmount:    rec.RefundAmount,
		Restocked:       rec.Restocked,
		Notes:           rec.Notes,
	}
	m.FromDomainBaseEntity(rec.BaseEntity)
	return m
}

// All returns every model the service migrates
func All() []any {
	return []any{
		&TransitionRecordModel{},
		&IntentModel{},
		&StockMovementModel{},
		&BalanceTransactionModel{},
		&AdjustmentModel{},
	}
}
