package telemetry

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of reconciliation metrics
const MeterName = "github.com/erp/order-reconciler/reconciliation"

// ReconciliationMetrics records the engine's outcomes
type ReconciliationMetrics struct {
	transitions     *Counter
	partialFailures *Counter
	returns         *Counter
	refundAmount    *FloatCounter
	deadIntents     *Counter
}

// NewReconciliationMetrics creates the reconciliation instruments on meter
func NewReconciliationMetrics(meter metric.Meter) (*ReconciliationMetrics, error) {
	transitions, err := NewCounter(meter, "reconcile_transitions_total",
		"Order transitions handled by the reconciler", "{transition}")
	if err != nil {
		return nil, err
	}
	partialFailures, err := NewCounter(meter, "reconcile_partial_failures_total",
		"Transitions whose stock was applied but whose balance step failed", "{transition}")
	if err != nil {
		return nil, err
	}
	returns, err := NewCounter(meter, "reconcile_returns_total",
		"Partial returns committed", "{return}")
	if err != nil {
		return nil, err
	}
	refundAmount, err := NewFloatCounter(meter, "reconcile_refund_amount_total",
		"Sum of refunded amounts", "{currency}")
	if err != nil {
		return nil, err
	}
	deadIntents, err := NewCounter(meter, "reconcile_dead_intents_total",
		"Intents that exhausted automatic retries", "{intent}")
	if err != nil {
		return nil, err
	}
	return &ReconciliationMetrics{
		transitions:     transitions,
		partialFailures: partialFailures,
		returns:         returns,
		refundAmount:    refundAmount,
		deadIntents:     deadIntents,
	}, nil
}

// RecordTransition counts a transition by kind and outcome
func (m *ReconciliationMetrics) RecordTransition(ctx context.Context, kind string, outcome string) {
	m.transitions.Inc(ctx, AttrTransitionKind.String(kind), AttrOutcome.String(outcome))
}

// RecordPartialFailure counts a partial failure by kind
func (m *ReconciliationMetrics) RecordPartialFailure(ctx context.Context, kind string) {
	m.partialFailures.Inc(ctx, AttrTransitionKind.String(kind))
}

// RecordReturn counts a return and adds its refund
func (m *ReconciliationMetrics) RecordReturn(ctx context.Context, refund decimal.Decimal) {
	m.returns.Inc(ctx)
	m.refundAmount.Add(ctx, refund.InexactFloat64())
}

// RecordIntentDead counts an intent given up by the retry job
func (m *ReconciliationMetrics) RecordIntentDead(ctx context.Context) {
	m.deadIntents.Inc(ctx)
}
