package broker_test

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/illmade-knight/go-messagebroker/pkg/broker"
	"github.com/illmade-knight/go-messagebroker/pkg/messaging"
)

// testConfig shrinks the broker's intervals so the tests run quickly while
// still exercising the polling and backoff paths.
func testConfig() broker.Config {
	return broker.Config{
		PollInterval:          5 * time.Millisecond,
		RequeueBackoffInitial: 5 * time.Millisecond,
		RequeueBackoffMax:     25 * time.Millisecond,
		ShutdownGrace:         2 * time.Second,
		DefaultRequestTimeout: time.Second,
	}
}

// newTestBroker creates an initialized broker that is shut down with the test.
func newTestBroker(t *testing.T, clock messaging.Clock) *broker.Broker {
	t.Helper()
	b := broker.New(testConfig(), clock, zerolog.Nop())
	require.True(t, b.Initialize().IsSuccessful())
	t.Cleanup(func() {
		b.Shutdown()
	})
	return b
}

// buildMessage is a shorthand for assembling a test message.
func buildMessage(t *testing.T, topic string, payload any) messaging.Message {
	t.Helper()
	msg, err := messaging.NewMessageBuilder("test").Topic(topic).Payload(payload).Build()
	require.NoError(t, err)
	return msg
}

// fakeClock is a manually advanced Clock for deterministic TTL tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// deliveryRecorder is a MessageHandler that records delivered messages in order.
type deliveryRecorder struct {
	mu       sync.Mutex
	payloads []any
	ids      []string
}

func (r *deliveryRecorder) handle(msg messaging.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, msg.Payload())
	r.ids = append(r.ids, msg.ID())
	return true
}

func (r *deliveryRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

func (r *deliveryRecorder) recordedPayloads() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]any, len(r.payloads))
	copy(out, r.payloads)
	return out
}

func (r *deliveryRecorder) recordedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}
