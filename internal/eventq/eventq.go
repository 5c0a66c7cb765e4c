// Package eventq has small helpers for offering values onto buffered event
// channels without ever blocking the producer. Panel event producers (the
// orchestrator, the terminal manager, the notification center) prefer losing
// a frame over stalling their own work.
package eventq

import "context"

// Offer attempts to place value on ch without blocking. A full channel drops
// the value and reports false; so does a closed one (the recover covers the
// shutdown race where a producer outlives its consumer).
func Offer[T any](ch chan<- T, value T) (sent bool) {
	defer func() {
		if recover() != nil {
			sent = false
		}
	}()
	select {
	case ch <- value:
		return true
	default:
		return false
	}
}

// OfferContext is Offer with a cancellation check first: once ctx is done the
// value is dropped without touching the channel.
func OfferContext[T any](ctx context.Context, ch chan<- T, value T) bool {
	if ctx.Err() != nil {
		return false
	}
	return Offer(ch, value)
}
