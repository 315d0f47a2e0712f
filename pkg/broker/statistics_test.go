package broker_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illmade-knight/go-messagebroker/pkg/messaging"
)

func TestStatistics_TracksActivity(t *testing.T) {
	b := newTestBroker(t, nil)

	recorder := &deliveryRecorder{}
	require.True(t, b.Subscribe("events", recorder.handle).IsSuccessful())
	require.True(t, b.Send("events", buildMessage(t, "events", "one"), nil).IsSuccessful())
	require.True(t, b.Send("events", buildMessage(t, "events", "two"), nil).IsSuccessful())

	require.True(t, b.RegisterReplyHandler("echo", uppercaseHandler(t)).IsSuccessful())
	require.True(t, b.Request("echo", buildMessage(t, "echo", "ping"), time.Second).IsSuccessful())

	snap := b.Statistics()
	assert.Equal(t, int64(2), snap.TotalMessages)
	assert.Equal(t, int64(2), snap.DeliveredMessages)
	assert.Equal(t, int64(0), snap.FailedDeliveries)
	assert.Equal(t, int64(0), snap.ExpiredMessages)
	assert.Equal(t, 1, snap.ChannelCount)
	assert.Equal(t, 1, snap.ReplyHandlers)
	assert.Equal(t, 0, snap.PendingRequests, "no request is outstanding once Request returned")
}

func TestStatistics_Reset(t *testing.T) {
	b := newTestBroker(t, nil)

	recorder := &deliveryRecorder{}
	require.True(t, b.Subscribe("events", recorder.handle).IsSuccessful())
	require.True(t, b.Send("events", buildMessage(t, "events", "counted"), nil).IsSuccessful())
	require.NotZero(t, b.Statistics().TotalMessages)

	b.ResetStatistics()

	snap := b.Statistics()
	assert.Zero(t, snap.TotalMessages)
	assert.Zero(t, snap.DeliveredMessages)
	// Gauges reflect live state and are unaffected by a counter reset.
	assert.Equal(t, 1, snap.ChannelCount)
}

func TestMetricsCollector_RegistersAndGathers(t *testing.T) {
	b := newTestBroker(t, nil)

	recorder := &deliveryRecorder{}
	require.True(t, b.Subscribe("events", recorder.handle).IsSuccessful())
	require.True(t, b.Send("events", buildMessage(t, "events", "metric"), nil).IsSuccessful())

	registry := prometheus.NewPedanticRegistry()
	require.NoError(t, registry.Register(b.MetricsCollector()))

	families, err := registry.Gather()
	require.NoError(t, err)
	require.Len(t, families, 7)

	byName := make(map[string]float64, len(families))
	for _, family := range families {
		require.Len(t, family.GetMetric(), 1)
		metric := family.GetMetric()[0]
		value := metric.GetCounter().GetValue() + metric.GetGauge().GetValue()
		byName[family.GetName()] = value
	}
	assert.Equal(t, float64(1), byName["messagebroker_messages_sent_total"])
	assert.Equal(t, float64(1), byName["messagebroker_messages_delivered_total"])
	assert.Equal(t, float64(1), byName["messagebroker_channels"])
}

func TestStatistics_ExpiredCounter(t *testing.T) {
	clock := newFakeClock()
	b := newTestBroker(t, clock)

	props := messaging.NewChannelPropertiesBuilder().AutoDelete(false).Build()
	require.True(t, b.CreateChannel("tasks", messaging.ChannelQueue, &props).IsSuccessful())

	opts := messaging.NewDeliveryOptionsBuilder().TimeToLive(5 * time.Millisecond).Build()
	require.True(t, b.Send("tasks", buildMessage(t, "tasks", "fleeting"), &opts).IsSuccessful())
	clock.Advance(time.Minute)

	recorder := &deliveryRecorder{}
	require.True(t, b.Subscribe("tasks", recorder.handle).IsSuccessful())

	require.Eventually(t, func() bool { return b.Statistics().ExpiredMessages == 1 },
		2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), b.Statistics().TotalMessages)
	assert.Zero(t, b.Statistics().DeliveredMessages)
}
