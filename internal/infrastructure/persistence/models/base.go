package models

import (
	"time"

	"github.com/erp/order-reconciler/internal/domain/order"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/google/uuid"
)

// JournalModel provides the fields shared by append-only journal rows.
// Journal rows are never updated, so there is no UpdatedAt.
type JournalModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null;index"`
}

// ToDomain converts JournalModel to a domain BaseEntity
func (m *JournalModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt}
}

// FromDomainBaseEntity populates JournalModel from a domain BaseEntity
func (m *JournalModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
}

// OrderRefColumns embeds the order a row was written for
type OrderRefColumns struct {
	OrderID     int64  `gorm:"index"`
	OrderNumber string `gorm:"type:varchar(64)"`
}

// ToDomain converts the columns to an order.Ref
func (c OrderRefColumns) ToDomain() order.Ref {
	return order.Ref{OrderID: c.OrderID, OrderNumber: c.OrderNumber}
}

// OrderRefColumnsFromDomain converts an order.Ref to columns
func OrderRefColumnsFromDomain(ref order.Ref) OrderRefColumns {
	return OrderRefColumns{OrderID: ref.OrderID, OrderNumber: ref.OrderNumber}
}
