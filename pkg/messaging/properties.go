package messaging

import "time"

// ChannelType selects a channel's delivery semantic.
type ChannelType string

const (
	// ChannelQueue delivers each message to exactly one of the competing
	// subscribers, in priority order.
	ChannelQueue ChannelType = "QUEUE"
	// ChannelTopic broadcasts each message to every current subscriber.
	ChannelTopic ChannelType = "TOPIC"
	// ChannelRequestReply supports synchronous correlation-based exchanges;
	// direct sends to it are rejected.
	ChannelRequestReply ChannelType = "REQUEST_REPLY"
)

// Valid reports whether the channel type is one of the three known semantics.
func (t ChannelType) Valid() bool {
	switch t {
	case ChannelQueue, ChannelTopic, ChannelRequestReply:
		return true
	}
	return false
}

// ChannelProperties is the per-channel policy, set at creation and immutable for
// the channel's lifetime. Zero values mean "unbounded"/"none" for the numeric
// fields.
type ChannelProperties struct {
	maxSubscribers int
	maxMessageSize int64
	messageTTL     time.Duration
	durable        bool
	autoDelete     bool
}

// DefaultChannelProperties returns the properties applied to auto-created
// channels: unbounded subscribers and size, no TTL, not durable, auto-delete.
func DefaultChannelProperties() ChannelProperties {
	return ChannelProperties{autoDelete: true}
}

// MaxSubscribers returns the subscriber cap; zero means unbounded.
func (p ChannelProperties) MaxSubscribers() int { return p.maxSubscribers }

// MaxMessageSize returns the per-message size limit in bytes; zero means none.
func (p ChannelProperties) MaxMessageSize() int64 { return p.maxMessageSize }

// MessageTTL returns the default TTL applied to queued messages that carry none.
func (p ChannelProperties) MessageTTL() time.Duration { return p.messageTTL }

// Durable reports whether the channel was declared durable.
func (p ChannelProperties) Durable() bool { return p.durable }

// AutoDelete reports whether the channel deletes itself when its subscriber
// count reaches zero.
func (p ChannelProperties) AutoDelete() bool { return p.autoDelete }

// ChannelPropertiesBuilder assembles ChannelProperties.
type ChannelPropertiesBuilder struct {
	props ChannelProperties
}

// NewChannelPropertiesBuilder creates a builder seeded with the defaults
// (durable=false, autoDelete=true).
func NewChannelPropertiesBuilder() *ChannelPropertiesBuilder {
	return &ChannelPropertiesBuilder{props: DefaultChannelProperties()}
}

// MaxSubscribers bounds the channel's subscriber count.
func (b *ChannelPropertiesBuilder) MaxSubscribers(n int) *ChannelPropertiesBuilder {
	b.props.maxSubscribers = n
	return b
}

// MaxMessageSize bounds the estimated size of messages accepted by the channel.
func (b *ChannelPropertiesBuilder) MaxMessageSize(bytes int64) *ChannelPropertiesBuilder {
	b.props.maxMessageSize = bytes
	return b
}

// MessageTTL sets the default TTL for messages sent without one.
func (b *ChannelPropertiesBuilder) MessageTTL(ttl time.Duration) *ChannelPropertiesBuilder {
	b.props.messageTTL = ttl
	return b
}

// Durable marks the channel durable.
func (b *ChannelPropertiesBuilder) Durable(durable bool) *ChannelPropertiesBuilder {
	b.props.durable = durable
	return b
}

// AutoDelete controls deletion of the channel when it has no subscribers left.
func (b *ChannelPropertiesBuilder) AutoDelete(autoDelete bool) *ChannelPropertiesBuilder {
	b.props.autoDelete = autoDelete
	return b
}

// Build finalizes the properties.
func (b *ChannelPropertiesBuilder) Build() ChannelProperties {
	return b.props
}
