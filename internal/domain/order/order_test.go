package order

import (
	"testing"

	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(status Status, method PaymentMethod) *Order {
	return &Order{
		ID:            9,
		OrderNumber:   "ORD-0009",
		CustomerID:    Int64Ptr(42),
		Status:        status,
		PaymentMethod: method,
		Items: []Item{
			{ProductID: 5, ProductName: "Rice 5kg", Quantity: decimal.NewFromInt(3), UnitPrice: decimal.NewFromInt(300)},
		},
		Subtotal: decimal.NewFromInt(900),
		Total:    decimal.NewFromInt(900),
		Version:  1,
	}
}

// ============================================
// Status / PaymentMethod Tests
// ============================================

func TestStatus_IsValid(t *testing.T) {
	tests := []struct {
		status  Status
		isValid bool
	}{
		{StatusPending, true},
		{StatusCompleted, true},
		{StatusCredit, true},
		{StatusCancelled, true},
		{Status("shipped"), false},
		{Status(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.isValid, tt.status.IsValid())
		})
	}
}

func TestPaymentMethod_IsValid(t *testing.T) {
	for _, m := range AllPaymentMethods {
		assert.True(t, m.IsValid(), m.String())
	}
	assert.False(t, PaymentMethod("cheque").IsValid())
}

// ============================================
// Order Tests
// ============================================

func TestItem_LineTotal(t *testing.T) {
	item := Item{Quantity: decimal.RequireFromString("2.5"), UnitPrice: decimal.RequireFromString("19.99")}
	assert.True(t, decimal.RequireFromString("49.975").Equal(item.LineTotal()))
}

func TestOrder_HasCustomer(t *testing.T) {
	o := newTestOrder(StatusPending, PaymentCash)
	assert.True(t, o.HasCustomer())

	o.CustomerID = nil
	assert.False(t, o.HasCustomer())

	o.CustomerID = Int64Ptr(0)
	assert.False(t, o.HasCustomer())
}

func TestOrder_CarriesReceivable(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		method PaymentMethod
		want   bool
	}{
		{"cash completed", StatusCompleted, PaymentCash, false},
		{"credit method", StatusCompleted, PaymentCredit, true},
		{"credit status", StatusCredit, PaymentCash, true},
		{"cancelled credit", StatusCancelled, PaymentCredit, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, newTestOrder(tt.status, tt.method).CarriesReceivable())
		})
	}

	t.Run("walk-in sale never carries a receivable", func(t *testing.T) {
		o := newTestOrder(StatusCredit, PaymentCredit)
		o.CustomerID = nil
		assert.False(t, o.CarriesReceivable())
	})
}

func TestOrder_Validate(t *testing.T) {
	t.Run("valid order", func(t *testing.T) {
		assert.NoError(t, newTestOrder(StatusPending, PaymentCash).Validate())
	})

	t.Run("unknown status", func(t *testing.T) {
		o := newTestOrder(Status("void"), PaymentCash)
		err := o.Validate()
		require.Error(t, err)
		assert.Equal(t, shared.KindValidation, shared.KindOf(err))
	})

	t.Run("negative quantity", func(t *testing.T) {
		o := newTestOrder(StatusPending, PaymentCash)
		o.Items[0].Quantity = decimal.NewFromInt(-1)
		assert.Error(t, o.Validate())
	})
}
