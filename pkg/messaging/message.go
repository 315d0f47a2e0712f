package messaging

import (
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
)

// Message is an immutable value routed through the broker. The id is assigned
// once at Build and never changes; the payload is opaque to the broker beyond
// its declared type tag.
type Message struct {
	id          string
	topic       string
	payload     any
	payloadType string
	headers     map[string]any
	timestamp   time.Time
}

// ID returns the unique message identifier assigned at build time.
func (m Message) ID() string { return m.id }

// Topic returns the channel name the message was built for.
func (m Message) Topic() string { return m.topic }

// Payload returns the opaque message payload.
func (m Message) Payload() any { return m.payload }

// PayloadType returns the declared payload type tag.
func (m Message) PayloadType() string { return m.payloadType }

// Timestamp returns the creation instant.
func (m Message) Timestamp() time.Time { return m.timestamp }

// Headers returns a copy of the header map so callers cannot mutate the message.
func (m Message) Headers() map[string]any {
	if m.headers == nil {
		return map[string]any{}
	}
	return maps.Clone(m.headers)
}

// Header looks up a single header value.
func (m Message) Header(key string) (any, bool) {
	v, ok := m.headers[key]
	return v, ok
}

// WithHeader derives a new message sharing id, topic and payload but carrying one
// additional header. The receiver is left untouched.
func (m Message) WithHeader(key string, value any) Message {
	derived := m
	derived.headers = maps.Clone(m.headers)
	if derived.headers == nil {
		derived.headers = make(map[string]any, 1)
	}
	derived.headers[key] = value
	return derived
}

// EstimatedSize returns a rough byte-size estimate used for max-message-size
// enforcement. It is an estimate, not a serialization contract.
func (m Message) EstimatedSize() int64 {
	size := int64(len(m.id) + len(m.topic) + len(m.payloadType))
	for k, v := range m.headers {
		size += int64(len(k)) + valueSize(v)
	}
	return size + valueSize(m.payload)
}

func valueSize(v any) int64 {
	switch p := v.(type) {
	case nil:
		return 0
	case []byte:
		return int64(len(p))
	case string:
		return int64(len(p))
	default:
		return int64(len(fmt.Sprint(p)))
	}
}

// MessageBuilder assembles a Message. Builders are single-use and not safe for
// concurrent use.
type MessageBuilder struct {
	topic       string
	payload     any
	payloadType string
	headers     map[string]any
}

// NewMessageBuilder creates a builder for messages carrying the given payload
// type tag.
func NewMessageBuilder(payloadType string) *MessageBuilder {
	return &MessageBuilder{
		payloadType: payloadType,
		headers:     make(map[string]any),
	}
}

// Topic sets the destination channel name. Required.
func (b *MessageBuilder) Topic(topic string) *MessageBuilder {
	b.topic = topic
	return b
}

// Payload sets the message payload.
func (b *MessageBuilder) Payload(payload any) *MessageBuilder {
	b.payload = payload
	return b
}

// Header adds a single header.
func (b *MessageBuilder) Header(key string, value any) *MessageBuilder {
	b.headers[key] = value
	return b
}

// Headers merges a map of headers into the builder.
func (b *MessageBuilder) Headers(headers map[string]any) *MessageBuilder {
	for k, v := range headers {
		b.headers[k] = v
	}
	return b
}

// Build finalizes the message, assigning its id and timestamp. It fails if no
// topic was set.
func (b *MessageBuilder) Build() (Message, error) {
	if b.topic == "" {
		return Message{}, fmt.Errorf("message topic must be specified")
	}
	return Message{
		id:          uuid.NewString(),
		topic:       b.topic,
		payload:     b.payload,
		payloadType: b.payloadType,
		headers:     maps.Clone(b.headers),
		timestamp:   time.Now(),
	}, nil
}
