package testutil

import (
	"context"
	"sync"

	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// RecordingPublisher is a shared.EventPublisher that keeps every event.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
	err    error
}

// NewRecordingPublisher creates a new recording publisher.
func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

// Publish records events.
func (p *RecordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return p.err
}

// Events returns all published events.
func (p *RecordingPublisher) Events() []shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	result := make([]shared.DomainEvent, len(p.events))
	copy(result, p.events)
	return result
}

// EventsOfType returns the published events of one type.
func (p *RecordingPublisher) EventsOfType(eventType string) []shared.DomainEvent {
	var out []shared.DomainEvent
	for _, e := range p.Events() {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// SetError sets the error to return from Publish.
func (p *RecordingPublisher) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Reset clears all recorded events.
func (p *RecordingPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
	p.err = nil
}

// RecordingMetrics counts reconciliation metrics calls.
type RecordingMetrics struct {
	mu              sync.Mutex
	Transitions     map[string]int
	PartialFailures map[string]int
	Refunds         []decimal.Decimal
	Dead            int
}

// NewRecordingMetrics creates empty metrics.
func NewRecordingMetrics() *RecordingMetrics {
	return &RecordingMetrics{
		Transitions:     make(map[string]int),
		PartialFailures: make(map[string]int),
	}
}

// RecordTransition counts a transition outcome keyed "kind/outcome".
func (m *RecordingMetrics) RecordTransition(_ context.Context, kind, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Transitions[kind+"/"+outcome]++
}

// RecordPartialFailure counts a partial failure.
func (m *RecordingMetrics) RecordPartialFailure(_ context.Context, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PartialFailures[kind]++
}

// RecordReturn records a refund.
func (m *RecordingMetrics) RecordReturn(_ context.Context, refund decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Refunds = append(m.Refunds, refund)
}

// RecordIntentDead counts a dead intent.
func (m *RecordingMetrics) RecordIntentDead(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Dead++
}
