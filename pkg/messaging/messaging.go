package messaging

import (
	"time"
)

// ====================================================================================
// This file defines the messaging port: the contract an in-process broker exposes
// to producers and consumers. All operations return a Result value; no expected
// failure mode is surfaced as a panic or an error crossing the port boundary.
// ====================================================================================

// MessageHandler consumes a delivered message and reports whether handling
// succeeded. A false return counts as a failed delivery; the broker never
// propagates handler panics to the producer.
type MessageHandler func(msg Message) bool

// ReplyHandler transforms a request message into its reply. Returning an error
// fails the originating request with the error's text as the reason.
type ReplyHandler func(request Message) (Message, error)

// Port is the public messaging surface. Initialize must be called before any
// other operation; after Shutdown every operation fails with ReasonNotInitialized
// until Initialize is called again.
type Port interface {
	Initialize() Result
	Shutdown() Result

	CreateChannel(name string, channelType ChannelType, properties *ChannelProperties) Result
	GetChannel(name string) Result
	DeleteChannel(name string) Result
	ListChannels() Result

	// Send routes a message to the named channel, auto-creating a TOPIC channel
	// when the name is unknown. A nil options uses DefaultDeliveryOptions.
	Send(topic string, msg Message, options *DeliveryOptions) Result
	Subscribe(topic string, handler MessageHandler) Result
	Unsubscribe(topic string, subscriptionID string) Result

	// Request performs a synchronous request/reply exchange, blocking the caller
	// until a reply arrives or the timeout elapses. A non-positive timeout uses
	// the broker's configured default.
	Request(topic string, msg Message, timeout time.Duration) Result
	RegisterReplyHandler(topic string, handler ReplyHandler) Result
	UnregisterReplyHandler(topic string, handlerID string) Result
}

// ChannelInfo is a point-in-time snapshot of a channel's metadata as returned by
// ListChannels and GetChannel.
type ChannelInfo struct {
	Name            string            `json:"name"`
	Type            ChannelType       `json:"type"`
	SubscriberCount int               `json:"subscriberCount"`
	PendingMessages int               `json:"pendingMessages"`
	Properties      ChannelProperties `json:"properties"`
}

// Clock abstracts the time source used for message expiry so that TTL behaviour
// is deterministic under test.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }
