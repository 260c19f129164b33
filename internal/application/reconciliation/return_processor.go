package reconciliation

import (
	"context"
	"fmt"

	"github.com/erp/order-reconciler/internal/domain/order"
	"github.com/erp/order-reconciler/internal/domain/reconciliation"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/erp/order-reconciler/internal/domain/stock"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Error codes raised by the return processor
const (
	CodeItemNotInOrder = "ITEM_NOT_IN_ORDER"
	CodeEmptyReturn    = "EMPTY_RETURN"
)

// ItemReturn is one requested return line
type ItemReturn struct {
	ProductID      int64           `json:"product_id"`
	ReturnQuantity decimal.Decimal `json:"return_quantity"`
	Reason         string          `json:"reason,omitempty"`
}

// ReturnProcessor turns a return request into one combined restock and
// refund request against the Order Service.
type ReturnProcessor struct {
	orders      order.Service
	stock       StockLedger
	adjustments reconciliation.AdjustmentRepository
	publisher   shared.EventPublisher
	metrics     Metrics
	logger      *zap.Logger
}

// NewReturnProcessor creates a new ReturnProcessor
func NewReturnProcessor(
	orders order.Service,
	stockLedger StockLedger,
	adjustments reconciliation.AdjustmentRepository,
	logger *zap.Logger,
) *ReturnProcessor {
	return &ReturnProcessor{
		orders:      orders,
		stock:       stockLedger,
		adjustments: adjustments,
		metrics:     noopMetrics{},
		logger:      logger,
	}
}

// SetEventPublisher sets the publisher for ReturnProcessed events
func (p *ReturnProcessor) SetEventPublisher(publisher shared.EventPublisher) {
	p.publisher = publisher
}

// SetMetrics sets the metrics sink
func (p *ReturnProcessor) SetMetrics(m Metrics) {
	if m != nil {
		p.metrics = m
	}
}

// PlanReturn computes the clamped return lines for an order. Each
// requested quantity is clamped into [0, remaining], where remaining is
// the ordered quantity less what earlier returns already took back.
// A product sold on several lines at different prices yields one
// returned line per price.
func (p *ReturnProcessor) PlanReturn(ctx context.Context, o *order.Order, returns []ItemReturn) ([]reconciliation.ReturnedLine, error) {
	if err := order.EnsureEditable(o); err != nil {
		return nil, err
	}

	previous, err := p.adjustments.FindByOrder(ctx, o.ID)
	if err != nil {
		return nil, fmt.Errorf("load previous returns of order %d: %w", o.ID, err)
	}
	returned := reconciliation.ReturnedQuantities(previous)

	ordered := make(map[int64]decimal.Decimal)
	for _, it := range o.Items {
		ordered[it.ProductID] = ordered[it.ProductID].Add(it.Quantity)
	}

	requested := make(map[int64]decimal.Decimal)
	reasons := make(map[int64]string)
	var productOrder []int64
	for _, r := range returns {
		if _, ok := ordered[r.ProductID]; !ok {
			return nil, shared.NewValidationError(CodeItemNotInOrder,
				fmt.Sprintf("product %d is not part of order %d", r.ProductID, o.ID)).
				WithDetail("product_id", r.ProductID)
		}
		if _, seen := requested[r.ProductID]; !seen {
			productOrder = append(productOrder, r.ProductID)
		}
		requested[r.ProductID] = requested[r.ProductID].Add(r.ReturnQuantity)
		if r.Reason != "" && reasons[r.ProductID] == "" {
			reasons[r.ProductID] = r.Reason
		}
	}

	var lines []reconciliation.ReturnedLine
	for _, productID := range productOrder {
		remaining := decimal.Max(decimal.Zero, ordered[productID].Sub(returned[productID]))
		qty := ClampReturnQuantity(requested[productID], remaining)
		if qty.IsZero() {
			continue
		}
		lines = append(lines, apportion(o.Items, productID, returned[productID], qty, reasons[productID])...)
	}
	if len(lines) == 0 {
		return nil, shared.NewValidationError(CodeEmptyReturn, "at least one item must have a return quantity greater than zero").
			WithDetail("order_id", o.ID)
	}
	return lines, nil
}

// ProcessReturn validates, clamps and commits a return. The single
// AdjustOrder call is the commit point: when it fails nothing was restocked
// and nothing was refunded.
func (p *ReturnProcessor) ProcessReturn(ctx context.Context, o *order.Order, returns []ItemReturn, notes string) (*ReturnResult, error) {
	lines, err := p.PlanReturn(ctx, o, returns)
	if err != nil {
		return nil, err
	}
	refund := reconciliation.RefundFor(lines)

	req := order.AdjustRequest{
		Items:        returnLinesByProduct(lines),
		Reason:       notes,
		RefundAmount: refund,
		RestockItems: true,
	}
	if req.Reason == "" {
		req.Reason = "return"
	}

	res, err := p.orders.AdjustOrder(ctx, o.ID, req)
	if err != nil {
		return nil, fmt.Errorf("adjust order %d: %w", o.ID, err)
	}

	record := reconciliation.NewAdjustmentRecord(o.Ref(), lines, refund, res.Restocked, notes)
	if res.Restocked {
		for _, l := range lines {
			if _, err := p.stock.RecordMovement(ctx, l.ProductID, l.ReturnedQuantity, stock.ReasonReturn, o.Ref()); err != nil {
				p.logger.Error("Failed to journal return movement",
					zap.Int64("order_id", o.ID),
					zap.Int64("product_id", l.ProductID),
					zap.Error(err))
			}
		}
	}
	if err := p.adjustments.Save(ctx, record); err != nil {
		// Committed remotely; the local audit row is best effort.
		p.logger.Error("Failed to save adjustment record",
			zap.Int64("order_id", o.ID),
			zap.String("adjustment_id", record.ID.String()),
			zap.Error(err))
	}

	p.metrics.RecordReturn(ctx, refund)
	p.publish(ctx, reconciliation.NewReturnProcessed(record))
	p.logger.Info("Return processed",
		zap.Int64("order_id", o.ID),
		zap.Int("lines", len(lines)),
		zap.String("refund_amount", refund.StringFixed(order.MoneyPrecision)),
		zap.Bool("restocked", res.Restocked))

	return &ReturnResult{
		AdjustmentID: record.ID,
		RefundAmount: refund,
		Restocked:    res.Restocked,
		Lines:        lines,
		Order:        res.Order,
	}, nil
}

// Adjustments lists the committed returns of an order
func (p *ReturnProcessor) Adjustments(ctx context.Context, orderID int64) ([]*reconciliation.AdjustmentRecord, error) {
	return p.adjustments.FindByOrder(ctx, orderID)
}

func (p *ReturnProcessor) publish(ctx context.Context, events ...shared.DomainEvent) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, events...); err != nil {
		p.logger.Warn("Failed to publish return event", zap.Error(err))
	}
}

// apportion takes qty of productID from the order lines in sequence,
// skipping the quantity earlier returns already consumed, and prices each
// part at its own line's unit price. Adjacent parts with the same price
// are merged.
func apportion(items []order.Item, productID int64, skip, qty decimal.Decimal, reason string) []reconciliation.ReturnedLine {
	var out []reconciliation.ReturnedLine
	for _, it := range items {
		if it.ProductID != productID || !qty.IsPositive() {
			continue
		}
		avail := it.Quantity
		if skip.IsPositive() {
			used := decimal.Min(skip, avail)
			skip = skip.Sub(used)
			avail = avail.Sub(used)
		}
		take := decimal.Min(avail, qty)
		if !take.IsPositive() {
			continue
		}
		qty = qty.Sub(take)
		if n := len(out); n > 0 && out[n-1].UnitPrice.Equal(it.UnitPrice) {
			out[n-1].ReturnedQuantity = out[n-1].ReturnedQuantity.Add(take)
			continue
		}
		out = append(out, reconciliation.ReturnedLine{
			ProductID:        productID,
			ProductName:      it.ProductName,
			ReturnedQuantity: take,
			UnitPrice:        it.UnitPrice,
			Reason:           reason,
		})
	}
	return out
}

// returnLinesByProduct folds priced lines back to one return line per product
func returnLinesByProduct(lines []reconciliation.ReturnedLine) []order.ReturnLine {
	index := make(map[int64]int)
	var out []order.ReturnLine
	for _, l := range lines {
		if i, ok := index[l.ProductID]; ok {
			out[i].ReturnedQuantity = out[i].ReturnedQuantity.Add(l.ReturnedQuantity)
			continue
		}
		index[l.ProductID] = len(out)
		out = append(out, order.ReturnLine{ProductID: l.ProductID, ReturnedQuantity: l.ReturnedQuantity, Reason: l.Reason})
	}
	return out
}

// ClampReturnQuantity bounds a requested return quantity to [0, limit]
func ClampReturnQuantity(requested, limit decimal.Decimal) decimal.Decimal {
	if requested.IsNegative() || limit.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(requested, limit)
}
