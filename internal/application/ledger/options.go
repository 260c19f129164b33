package ledger

import "github.com/google/uuid"

type applyOptions struct {
	prevalidated   bool
	intentID       *uuid.UUID
	notes          string
	idempotencyKey string
}

// Option tunes a single ledger call
type Option func(*applyOptions)

// Prevalidated skips the negative-stock check because the caller already
// validated availability for the whole transition.
func Prevalidated() Option {
	return func(o *applyOptions) { o.prevalidated = true }
}

// WithIntent links the journal entry to a reconciliation intent
func WithIntent(id uuid.UUID) Option {
	return func(o *applyOptions) { o.intentID = &id }
}

// WithNotes sets free-form notes on the journal entry
func WithNotes(notes string) Option {
	return func(o *applyOptions) { o.notes = notes }
}

// WithIdempotencyKey is forwarded to the remote service so a retried
// request is not applied twice on its side.
func WithIdempotencyKey(key string) Option {
	return func(o *applyOptions) { o.idempotencyKey = key }
}

func collect(opts []Option) applyOptions {
	var o applyOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
