package broker_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illmade-knight/go-messagebroker/pkg/broker"
	"github.com/illmade-knight/go-messagebroker/pkg/messaging"
)

func createQueueChannel(t *testing.T, b *broker.Broker, name string, props *messaging.ChannelProperties) {
	t.Helper()
	if props == nil {
		p := messaging.NewChannelPropertiesBuilder().AutoDelete(false).Build()
		props = &p
	}
	require.True(t, b.CreateChannel(name, messaging.ChannelQueue, props).IsSuccessful())
}

func TestQueue_PriorityOrdering(t *testing.T) {
	b := newTestBroker(t, nil)
	createQueueChannel(t, b, "tasks", nil)

	// Enqueue before subscribing so the consumer loop holds the messages and
	// the full buffer is drained in priority order by a single consumer.
	for _, priority := range []int{2, 9, 5} {
		opts := messaging.NewDeliveryOptionsBuilder().Priority(priority).Build()
		result := b.Send("tasks", buildMessage(t, "tasks", priority), &opts)
		require.True(t, result.IsSuccessful())
	}

	recorder := &deliveryRecorder{}
	require.True(t, b.Subscribe("tasks", recorder.handle).IsSuccessful())

	require.Eventually(t, func() bool { return recorder.count() == 3 },
		2*time.Second, 5*time.Millisecond, "all three messages should be delivered")
	assert.Equal(t, []any{9, 5, 2}, recorder.recordedPayloads())
}

func TestQueue_SendIsFireAndForget(t *testing.T) {
	b := newTestBroker(t, nil)
	createQueueChannel(t, b, "tasks", nil)

	// No subscriber exists; send must still return success immediately.
	result := b.Send("tasks", buildMessage(t, "tasks", "held"), nil)
	require.True(t, result.IsSuccessful())

	// The consumer loop briefly holds the entry between pop and requeue, so
	// poll for the pending count rather than reading it once.
	require.Eventually(t, func() bool {
		getResult := b.GetChannel("tasks")
		if !getResult.IsSuccessful() {
			return false
		}
		info, ok := getResult.Channel()
		return ok && info.PendingMessages == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestQueue_HoldsMessageForLateSubscriber(t *testing.T) {
	b := newTestBroker(t, nil)
	createQueueChannel(t, b, "tasks", nil)

	require.True(t, b.Send("tasks", buildMessage(t, "tasks", "patience"), nil).IsSuccessful())

	// Let the consumer loop cycle through a few requeue/backoff rounds first.
	time.Sleep(50 * time.Millisecond)

	recorder := &deliveryRecorder{}
	require.True(t, b.Subscribe("tasks", recorder.handle).IsSuccessful())

	require.Eventually(t, func() bool { return recorder.count() == 1 },
		2*time.Second, 5*time.Millisecond, "held message should reach the late subscriber")
	assert.Equal(t, "patience", recorder.recordedPayloads()[0])
}

func TestQueue_TTLExpiry(t *testing.T) {
	clock := newFakeClock()
	b := newTestBroker(t, clock)
	createQueueChannel(t, b, "tasks", nil)

	opts := messaging.NewDeliveryOptionsBuilder().TimeToLive(10 * time.Millisecond).Build()
	require.True(t, b.Send("tasks", buildMessage(t, "tasks", "short-lived"), &opts).IsSuccessful())

	clock.Advance(time.Second)

	recorder := &deliveryRecorder{}
	require.True(t, b.Subscribe("tasks", recorder.handle).IsSuccessful())

	require.Eventually(t, func() bool { return b.Statistics().ExpiredMessages == 1 },
		2*time.Second, 5*time.Millisecond, "the expired counter should increment exactly once")
	assert.Equal(t, 0, recorder.count(), "an expired message must never be delivered")
	assert.Equal(t, int64(0), b.Statistics().DeliveredMessages)
}

func TestQueue_ChannelDefaultTTLApplies(t *testing.T) {
	clock := newFakeClock()
	b := newTestBroker(t, clock)

	props := messaging.NewChannelPropertiesBuilder().
		MessageTTL(10 * time.Millisecond).
		AutoDelete(false).
		Build()
	createQueueChannel(t, b, "tasks", &props)

	// The send carries no TTL, so the channel default applies.
	require.True(t, b.Send("tasks", buildMessage(t, "tasks", "inherits-ttl"), nil).IsSuccessful())
	clock.Advance(time.Second)

	recorder := &deliveryRecorder{}
	require.True(t, b.Subscribe("tasks", recorder.handle).IsSuccessful())

	require.Eventually(t, func() bool { return b.Statistics().ExpiredMessages == 1 },
		2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, recorder.count())
}

func TestQueue_RoundRobinDistribution(t *testing.T) {
	b := newTestBroker(t, nil)
	createQueueChannel(t, b, "tasks", nil)

	var first, second atomic.Int32
	require.True(t, b.Subscribe("tasks", func(messaging.Message) bool {
		first.Add(1)
		return true
	}).IsSuccessful())
	require.True(t, b.Subscribe("tasks", func(messaging.Message) bool {
		second.Add(1)
		return true
	}).IsSuccessful())

	const sends = 4
	for i := 0; i < sends; i++ {
		require.True(t, b.Send("tasks", buildMessage(t, "tasks", i), nil).IsSuccessful())
	}

	require.Eventually(t, func() bool { return first.Load()+second.Load() == sends },
		2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(sends/2), first.Load(), "competing consumers should share the load evenly")
	assert.Equal(t, int32(sends/2), second.Load())
}

func TestQueue_MessageTooLarge(t *testing.T) {
	b := newTestBroker(t, nil)

	props := messaging.NewChannelPropertiesBuilder().
		MaxMessageSize(8).
		AutoDelete(false).
		Build()
	createQueueChannel(t, b, "tasks", &props)

	result := b.Send("tasks", buildMessage(t, "tasks", "a payload comfortably over the limit"), nil)
	require.False(t, result.IsSuccessful())
	assert.Equal(t, messaging.ReasonMessageTooLarge, result.Reason)

	getResult := b.GetChannel("tasks")
	require.True(t, getResult.IsSuccessful())
	info, ok := getResult.Channel()
	require.True(t, ok)
	assert.Equal(t, 0, info.PendingMessages, "nothing may be enqueued on a rejected send")
}

func TestQueue_HandlerFailureIsCountedAndLoopContinues(t *testing.T) {
	b := newTestBroker(t, nil)
	createQueueChannel(t, b, "tasks", nil)

	var delivered atomic.Int32
	require.True(t, b.Subscribe("tasks", func(msg messaging.Message) bool {
		if msg.Payload() == "reject-me" {
			return false
		}
		delivered.Add(1)
		return true
	}).IsSuccessful())

	require.True(t, b.Send("tasks", buildMessage(t, "tasks", "reject-me"), nil).IsSuccessful())
	require.True(t, b.Send("tasks", buildMessage(t, "tasks", "accept-me"), nil).IsSuccessful())

	require.Eventually(t, func() bool {
		snap := b.Statistics()
		return snap.FailedDeliveries == 1 && snap.DeliveredMessages == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), delivered.Load())
}

func TestQueue_HandlerPanicIsContained(t *testing.T) {
	b := newTestBroker(t, nil)
	createQueueChannel(t, b, "tasks", nil)

	var delivered atomic.Int32
	require.True(t, b.Subscribe("tasks", func(msg messaging.Message) bool {
		if msg.Payload() == "boom" {
			panic("handler exploded")
		}
		delivered.Add(1)
		return true
	}).IsSuccessful())

	require.True(t, b.Send("tasks", buildMessage(t, "tasks", "boom"), nil).IsSuccessful())
	require.True(t, b.Send("tasks", buildMessage(t, "tasks", "fine"), nil).IsSuccessful())

	require.Eventually(t, func() bool {
		snap := b.Statistics()
		return snap.FailedDeliveries == 1 && snap.DeliveredMessages == 1
	}, 2*time.Second, 5*time.Millisecond, "the consumer loop must survive a panicking handler")
	assert.Equal(t, int32(1), delivered.Load())
}
