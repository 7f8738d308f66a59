// Package buffer provides a generic, thread-safe ring buffer with lossy
// overflow policies, built-in statistics and optional Prometheus metrics.
//
// The ring is the single shared structure between a link's reader goroutine
// (producer) and the broker (consumer): bounded capacity, overwrite-on-full,
// so the link favors recency over completeness under consumer backpressure.
package buffer

// Ring represents a bounded lossy buffer parameterized by item type T.
type Ring[T any] interface {
	// Write adds an item to the ring. When the ring is full the overflow
	// policy decides which item is lost. Returns an error only if the ring
	// has been closed.
	Write(item T) error

	// Read retrieves and removes the oldest item.
	// Returns the zero value and false if the ring is empty.
	Read() (T, bool)

	// Drain retrieves and removes every buffered item in FIFO order.
	// Returns nil if the ring is empty.
	Drain() []T

	// Size returns the current number of buffered items.
	Size() int

	// Capacity returns the maximum number of items the ring can hold.
	Capacity() int

	// Closed reports whether the producer side has closed the ring.
	Closed() bool

	// Stats returns ring statistics (always collected).
	Stats() *Statistics

	// Close marks the ring closed. Buffered items remain readable;
	// further writes fail. Close is idempotent.
	Close() error
}

// OverflowPolicy defines how the ring behaves when it reaches capacity.
type OverflowPolicy int

const (
	// DropOldest removes the oldest unread item to make room for new items.
	DropOldest OverflowPolicy = iota

	// DropNewest drops the incoming item when the ring is full.
	DropNewest
)

// String returns a human-readable representation of the overflow policy.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	default:
		return "Unknown"
	}
}

// DropCallback is called with each item lost to the overflow policy.
type DropCallback[T any] func(item T)

// NewRing creates a new ring with the specified capacity and options.
// Statistics are always collected; Prometheus export is opt-in via
// WithMetrics. Returns an error if metric registration fails.
func NewRing[T any](capacity int, options ...Option[T]) (Ring[T], error) {
	opts := applyOptions(options...)
	return newRing(capacity, opts)
}
