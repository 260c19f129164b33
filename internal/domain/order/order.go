package order

import (
	"fmt"

	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// MoneyPrecision is the number of minor-unit digits money is rounded to
const MoneyPrecision int32 = 2

// Status represents the lifecycle status of a retail order
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCredit    Status = "credit"
	StatusCancelled Status = "cancelled"
)

// AllStatuses lists every status in a stable order
var AllStatuses = []Status{StatusPending, StatusCompleted, StatusCredit, StatusCancelled}

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCredit, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no further edits are accepted in this status
func (s Status) IsTerminal() bool {
	return s == StatusCancelled
}

// PaymentMethod represents how an order is settled
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentCredit       PaymentMethod = "credit"
	PaymentCard         PaymentMethod = "card"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

// AllPaymentMethods lists every payment method in a stable order
var AllPaymentMethods = []PaymentMethod{PaymentCash, PaymentCredit, PaymentCard, PaymentBankTransfer}

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentCash, PaymentCredit, PaymentCard, PaymentBankTransfer:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// Item is a line of an order
type Item struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// LineTotal returns quantity x unit price
func (i Item) LineTotal() decimal.Decimal {
	return i.Quantity.Mul(i.UnitPrice)
}

// Order is a read model of an order owned by the external Order Service.
// The engine never mutates it directly; it requests transitions instead.
type Order struct {
	ID            int64           `json:"id"`
	OrderNumber   string          `json:"order_number"`
	CustomerID    *int64          `json:"customer_id,omitempty"`
	Items         []Item          `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	Status        Status          `json:"status"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Version       int             `json:"version"`
}

// HasCustomer reports whether the order is attached to a customer account.
// Walk-in sales have no customer and never touch the balance ledger.
func (o *Order) HasCustomer() bool {
	return o.CustomerID != nil && *o.CustomerID > 0
}

// CarriesReceivable reports whether the order currently contributes to the
// customer's outstanding balance.
func (o *Order) CarriesReceivable() bool {
	if !o.HasCustomer() || o.Status == StatusCancelled {
		return false
	}
	return o.Status == StatusCredit || o.PaymentMethod == PaymentCredit
}

// Ref returns the order reference recorded on ledger entries
func (o *Order) Ref() Ref {
	return Ref{OrderID: o.ID, OrderNumber: o.OrderNumber}
}

// Validate checks the structural invariants of an order read from the store
func (o *Order) Validate() error {
	if o.ID <= 0 {
		return shared.NewValidationError("INVALID_ORDER", "order id must be positive")
	}
	if !o.Status.IsValid() {
		return shared.NewValidationError("INVALID_STATUS", fmt.Sprintf("unknown order status %q", o.Status))
	}
	if !o.PaymentMethod.IsValid() {
		return shared.NewValidationError("INVALID_PAYMENT_METHOD", fmt.Sprintf("unknown payment method %q", o.PaymentMethod))
	}
	for _, it := range o.Items {
		if it.Quantity.IsNegative() {
			return shared.NewValidationError("INVALID_QUANTITY", fmt.Sprintf("product %d has negative quantity", it.ProductID))
		}
	}
	return nil
}

// Ref identifies the order a ledger entry belongs to
type Ref struct {
	OrderID     int64  `json:"order_id,omitempty"`
	OrderNumber string `json:"order_number,omitempty"`
}

// IsZero reports whether the ref points to no order
func (r Ref) IsZero() bool {
	return r.OrderID == 0 && r.OrderNumber == ""
}

// Int64Ptr is a small helper for optional ids
func Int64Ptr(v int64) *int64 {
	return &v
}
