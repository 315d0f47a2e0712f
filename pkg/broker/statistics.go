package broker

import (
	"sync/atomic"
)

// Statistics tracks the broker's delivery counters. Counters are monotonic for
// the broker's lifetime and reset only by Reset, which Shutdown calls.
type Statistics struct {
	sent      atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
	expired   atomic.Int64
}

// StatisticsSnapshot is a read-only view of the broker's counters and gauges.
// The field set mirrors the broker's observability surface: four monotonic
// counters plus three live gauges.
type StatisticsSnapshot struct {
	TotalMessages     int64 `json:"totalMessages"`
	DeliveredMessages int64 `json:"deliveredMessages"`
	FailedDeliveries  int64 `json:"failedDeliveries"`
	ExpiredMessages   int64 `json:"expiredMessages"`
	ChannelCount      int   `json:"channelCount"`
	PendingRequests   int   `json:"pendingRequestsCount"`
	ReplyHandlers     int   `json:"replyHandlersCount"`
}

func (s *Statistics) recordSent()      { s.sent.Add(1) }
func (s *Statistics) recordDelivered() { s.delivered.Add(1) }
func (s *Statistics) recordFailed()    { s.failed.Add(1) }
func (s *Statistics) recordExpired()   { s.expired.Add(1) }

// Reset zeroes all counters.
func (s *Statistics) Reset() {
	s.sent.Store(0)
	s.delivered.Store(0)
	s.failed.Store(0)
	s.expired.Store(0)
}

func (s *Statistics) snapshot() StatisticsSnapshot {
	return StatisticsSnapshot{
		TotalMessages:     s.sent.Load(),
		DeliveredMessages: s.delivered.Load(),
		FailedDeliveries:  s.failed.Load(),
		ExpiredMessages:   s.expired.Load(),
	}
}
