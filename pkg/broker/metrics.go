package broker

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metricsCollector exposes the broker's counters and gauges as a
// prometheus.Collector so a host process can register them alongside its own
// metrics. Counter values track the Statistics snapshot, so ResetStatistics and
// Shutdown reset them too.
type metricsCollector struct {
	broker *Broker

	sentDesc      *prometheus.Desc
	deliveredDesc *prometheus.Desc
	failedDesc    *prometheus.Desc
	expiredDesc   *prometheus.Desc
	channelsDesc  *prometheus.Desc
	pendingDesc   *prometheus.Desc
	handlersDesc  *prometheus.Desc
}

// MetricsCollector returns a prometheus.Collector reporting the broker's
// statistics.
func (b *Broker) MetricsCollector() prometheus.Collector {
	return &metricsCollector{
		broker: b,
		sentDesc: prometheus.NewDesc(
			"messagebroker_messages_sent_total",
			"Total number of messages accepted for delivery.", nil, nil),
		deliveredDesc: prometheus.NewDesc(
			"messagebroker_messages_delivered_total",
			"Total number of successful deliveries.", nil, nil),
		failedDesc: prometheus.NewDesc(
			"messagebroker_deliveries_failed_total",
			"Total number of failed deliveries.", nil, nil),
		expiredDesc: prometheus.NewDesc(
			"messagebroker_messages_expired_total",
			"Total number of messages discarded after TTL expiry.", nil, nil),
		channelsDesc: prometheus.NewDesc(
			"messagebroker_channels",
			"Current number of channels.", nil, nil),
		pendingDesc: prometheus.NewDesc(
			"messagebroker_pending_requests",
			"Current number of outstanding request/reply exchanges.", nil, nil),
		handlersDesc: prometheus.NewDesc(
			"messagebroker_reply_handlers",
			"Current number of registered reply handlers.", nil, nil),
	}
}

func (c *metricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sentDesc
	ch <- c.deliveredDesc
	ch <- c.failedDesc
	ch <- c.expiredDesc
	ch <- c.channelsDesc
	ch <- c.pendingDesc
	ch <- c.handlersDesc
}

func (c *metricsCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.broker.Statistics()
	ch <- prometheus.MustNewConstMetric(c.sentDesc, prometheus.CounterValue, float64(snap.TotalMessages))
	ch <- prometheus.MustNewConstMetric(c.deliveredDesc, prometheus.CounterValue, float64(snap.DeliveredMessages))
	ch <- prometheus.MustNewConstMetric(c.failedDesc, prometheus.CounterValue, float64(snap.FailedDeliveries))
	ch <- prometheus.MustNewConstMetric(c.expiredDesc, prometheus.CounterValue, float64(snap.ExpiredMessages))
	ch <- prometheus.MustNewConstMetric(c.channelsDesc, prometheus.GaugeValue, float64(snap.ChannelCount))
	ch <- prometheus.MustNewConstMetric(c.pendingDesc, prometheus.GaugeValue, float64(snap.PendingRequests))
	ch <- prometheus.MustNewConstMetric(c.handlersDesc, prometheus.GaugeValue, float64(snap.ReplyHandlers))
}
