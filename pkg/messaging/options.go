package messaging

import "time"

// DeliveryMode selects the broker's delivery guarantee for a single send.
type DeliveryMode int

const (
	// DeliverAtLeastOnce is the default mode: a queued message stays pending
	// until a handler accepts it or its TTL expires.
	DeliverAtLeastOnce DeliveryMode = iota
	// DeliverAtMostOnce drops the message after the first delivery attempt,
	// successful or not.
	DeliverAtMostOnce
)

func (m DeliveryMode) String() string {
	if m == DeliverAtMostOnce {
		return "AT_MOST_ONCE"
	}
	return "AT_LEAST_ONCE"
}

const (
	// MinPriority and MaxPriority bound the per-send priority range.
	MinPriority = 0
	MaxPriority = 9
	// DefaultPriority is used when the caller does not set one.
	DefaultPriority = 4
)

// DeliveryOptions is the per-send policy. Values are built once per send call
// and are immutable thereafter; priority is clamped into [MinPriority,
// MaxPriority] at construction.
type DeliveryOptions struct {
	timeToLive   time.Duration
	priority     int
	persistent   bool
	deliveryMode DeliveryMode
}

// DefaultDeliveryOptions returns the options applied when a send carries none:
// no TTL, DefaultPriority, not persistent, at-least-once.
func DefaultDeliveryOptions() DeliveryOptions {
	return DeliveryOptions{priority: DefaultPriority, deliveryMode: DeliverAtLeastOnce}
}

// TimeToLive returns the per-message TTL; zero means the message never expires
// (unless the channel sets a default TTL).
func (o DeliveryOptions) TimeToLive() time.Duration { return o.timeToLive }

// Priority returns the clamped delivery priority.
func (o DeliveryOptions) Priority() int { return o.priority }

// Persistent reports whether the sender requested persistence.
func (o DeliveryOptions) Persistent() bool { return o.persistent }

// Mode returns the delivery mode.
func (o DeliveryOptions) Mode() DeliveryMode { return o.deliveryMode }

// DeliveryOptionsBuilder assembles DeliveryOptions.
type DeliveryOptionsBuilder struct {
	opts DeliveryOptions
}

// NewDeliveryOptionsBuilder creates a builder seeded with the defaults.
func NewDeliveryOptionsBuilder() *DeliveryOptionsBuilder {
	return &DeliveryOptionsBuilder{opts: DefaultDeliveryOptions()}
}

// TimeToLive sets the maximum age after which an undelivered message is
// discarded.
func (b *DeliveryOptionsBuilder) TimeToLive(ttl time.Duration) *DeliveryOptionsBuilder {
	b.opts.timeToLive = ttl
	return b
}

// Priority sets the delivery priority; out-of-range values are clamped at Build.
func (b *DeliveryOptionsBuilder) Priority(priority int) *DeliveryOptionsBuilder {
	b.opts.priority = priority
	return b
}

// Persistent marks the send as persistent.
func (b *DeliveryOptionsBuilder) Persistent(persistent bool) *DeliveryOptionsBuilder {
	b.opts.persistent = persistent
	return b
}

// DeliveryMode sets the delivery guarantee.
func (b *DeliveryOptionsBuilder) DeliveryMode(mode DeliveryMode) *DeliveryOptionsBuilder {
	b.opts.deliveryMode = mode
	return b
}

// Build finalizes the options, clamping priority into the valid range.
func (b *DeliveryOptionsBuilder) Build() DeliveryOptions {
	opts := b.opts
	if opts.priority < MinPriority {
		opts.priority = MinPriority
	}
	if opts.priority > MaxPriority {
		opts.priority = MaxPriority
	}
	return opts
}
