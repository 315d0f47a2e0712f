package broker

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-messagebroker/pkg/messaging"
)

// channel is a named routing unit with one delivery semantic. QUEUE channels own
// a priority-ordered pending buffer drained by a dedicated consumer goroutine;
// TOPIC channels broadcast synchronously on the producer's goroutine.
type channel struct {
	name  string
	ctype messaging.ChannelType
	props messaging.ChannelProperties

	cfg    Config
	clock  messaging.Clock
	stats  *Statistics
	logger zerolog.Logger

	// onAutoDelete removes this channel from the registry when the last
	// subscriber leaves (or a topic send finds none) and autoDelete is set.
	onAutoDelete func(name string)

	mu          sync.RWMutex
	subscribers map[string]messaging.MessageHandler
	subOrder    []string

	rrCounter atomic.Uint64

	// pending and the stop/done pair exist only for QUEUE channels.
	pending  *pendingQueue
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newChannel(
	name string,
	ctype messaging.ChannelType,
	props messaging.ChannelProperties,
	cfg Config,
	clock messaging.Clock,
	stats *Statistics,
	logger zerolog.Logger,
	onAutoDelete func(name string),
) *channel {
	c := &channel{
		name:         name,
		ctype:        ctype,
		props:        props,
		cfg:          cfg,
		clock:        clock,
		stats:        stats,
		logger:       logger.With().Str("channel", name).Str("type", string(ctype)).Logger(),
		onAutoDelete: onAutoDelete,
		subscribers:  make(map[string]messaging.MessageHandler),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	if ctype == messaging.ChannelQueue {
		c.pending = newPendingQueue()
		go c.consumeLoop()
	} else {
		// No consumer loop to join.
		close(c.done)
	}
	return c
}

// send dispatches a message per the channel's semantic.
func (c *channel) send(msg messaging.Message, opts messaging.DeliveryOptions) messaging.Result {
	if max := c.props.MaxMessageSize(); max > 0 && msg.EstimatedSize() > max {
		return messaging.Failure(msg.ID(), "Message exceeds maximum size limit", messaging.ReasonMessageTooLarge)
	}

	switch c.ctype {
	case messaging.ChannelQueue:
		c.enqueue(msg, opts)
		c.stats.recordSent()
		return messaging.Success(msg.ID(), "Message queued successfully")
	case messaging.ChannelTopic:
		c.stats.recordSent()
		return c.broadcast(msg)
	default:
		return messaging.Failure(msg.ID(),
			"Direct sending to REQUEST_REPLY channels is not supported", messaging.ReasonUnsupported)
	}
}

// enqueue buffers a message for the consumer loop, deriving its expiry from the
// send TTL or, failing that, the channel's default TTL.
func (c *channel) enqueue(msg messaging.Message, opts messaging.DeliveryOptions) {
	ttl := opts.TimeToLive()
	if ttl <= 0 {
		ttl = c.props.MessageTTL()
	}
	pm := &pendingMessage{
		msg:      msg,
		priority: opts.Priority(),
	}
	if ttl > 0 {
		pm.expiry = c.clock.Now().Add(ttl)
	}
	c.pending.push(pm)
}

// broadcast synchronously delivers to a snapshot of the current subscribers.
// The send succeeds if at least one handler succeeded.
func (c *channel) broadcast(msg messaging.Message) messaging.Result {
	handlers := c.handlerSnapshot()
	if len(handlers) == 0 {
		if c.props.AutoDelete() {
			c.requestAutoDelete()
			return messaging.Failure(msg.ID(),
				"Topic deleted due to no subscribers", messaging.ReasonNoSubscribers)
		}
		return messaging.Failure(msg.ID(),
			"Message was not delivered to any subscribers", messaging.ReasonNoSubscribers)
	}

	anySuccess := false
	for _, h := range handlers {
		if c.invoke(h, msg) {
			anySuccess = true
		}
	}
	if anySuccess {
		c.stats.recordDelivered()
		return messaging.Success(msg.ID(), "Message delivered to subscribers")
	}
	c.stats.recordFailed()
	return messaging.Failure(msg.ID(),
		"No subscribers processed the message successfully", messaging.ReasonHandlerFailure)
}

// consumeLoop is the dedicated consumer for a QUEUE channel. It polls with a
// bounded interval so it observes deletion and shutdown promptly, discards
// expired entries, holds entries for late subscribers with capped backoff, and
// delivers to one subscriber chosen round-robin.
func (c *channel) consumeLoop() {
	defer close(c.done)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.RequeueBackoffInitial
	bo.MaxInterval = c.cfg.RequeueBackoffMax
	bo.MaxElapsedTime = 0
	bo.Reset()

	for {
		select {
		case <-c.stop:
			return
		default:
		}

		pm, ok := c.pending.pop()
		if !ok {
			if !c.sleep(c.cfg.PollInterval) {
				return
			}
			continue
		}

		if pm.expired(c.clock.Now()) {
			c.stats.recordExpired()
			c.logger.Debug().Str("msg_id", pm.msg.ID()).Msg("Discarding expired message.")
			continue
		}

		handler, found := c.nextSubscriber()
		if !found {
			// Hold for a late subscriber, bounded only by the entry's own TTL.
			c.pending.push(pm)
			if !c.sleep(bo.NextBackOff()) {
				return
			}
			continue
		}
		bo.Reset()

		if c.invoke(handler, pm.msg) {
			c.stats.recordDelivered()
		} else {
			// A failed delivery is counted and dropped; there is no redelivery
			// or dead-letter path for handler failures.
			c.stats.recordFailed()
			c.logger.Warn().Str("msg_id", pm.msg.ID()).Msg("Subscriber failed to handle message.")
		}
	}
}

// sleep waits for d or until the channel is stopped, reporting whether the loop
// should continue.
func (c *channel) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-c.stop:
		return false
	case <-timer.C:
		return true
	}
}

// invoke calls a handler, containing panics so one failing subscriber cannot
// corrupt the channel or unwind into the broker.
func (c *channel) invoke(handler messaging.MessageHandler, msg messaging.Message) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Str("msg_id", msg.ID()).
				Str("panic", fmt.Sprint(r)).Msg("Subscriber panicked while handling message.")
			ok = false
		}
	}()
	return handler(msg)
}

// subscribe registers a handler, enforcing the channel's subscriber cap.
func (c *channel) subscribe(handler messaging.MessageHandler) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if max := c.props.MaxSubscribers(); max > 0 && len(c.subscribers) >= max {
		return "", false
	}
	id := uuid.NewString()
	c.subscribers[id] = handler
	c.subOrder = append(c.subOrder, id)
	return id, true
}

// unsubscribe removes a subscription; removing the last one from an auto-delete
// channel deletes the channel as a side effect.
func (c *channel) unsubscribe(subscriptionID string) bool {
	c.mu.Lock()
	_, ok := c.subscribers[subscriptionID]
	if !ok {
		c.mu.Unlock()
		return false
	}
	delete(c.subscribers, subscriptionID)
	for i, id := range c.subOrder {
		if id == subscriptionID {
			c.subOrder = append(c.subOrder[:i], c.subOrder[i+1:]...)
			break
		}
	}
	empty := len(c.subscribers) == 0
	c.mu.Unlock()

	if empty && c.props.AutoDelete() {
		c.requestAutoDelete()
	}
	return true
}

func (c *channel) requestAutoDelete() {
	if c.onAutoDelete != nil {
		c.logger.Debug().Msg("Auto-deleting channel with no subscribers.")
		c.onAutoDelete(c.name)
	}
}

// nextSubscriber picks one subscriber round-robin. The index is recomputed
// against the current subscriber set on every attempt since the set can change
// concurrently.
func (c *channel) nextSubscriber() (messaging.MessageHandler, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.subOrder) == 0 {
		return nil, false
	}
	idx := int(c.rrCounter.Add(1)-1) % len(c.subOrder)
	return c.subscribers[c.subOrder[idx]], true
}

func (c *channel) handlerSnapshot() []messaging.MessageHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	handlers := make([]messaging.MessageHandler, 0, len(c.subOrder))
	for _, id := range c.subOrder {
		handlers = append(handlers, c.subscribers[id])
	}
	return handlers
}

func (c *channel) subscriberCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscribers)
}

func (c *channel) pendingCount() int {
	if c.pending == nil {
		return 0
	}
	return c.pending.len()
}

func (c *channel) info() messaging.ChannelInfo {
	return messaging.ChannelInfo{
		Name:            c.name,
		Type:            c.ctype,
		SubscriberCount: c.subscriberCount(),
		PendingMessages: c.pendingCount(),
		Properties:      c.props,
	}
}

// signalStop tells the consumer loop (if any) to exit. Safe to call repeatedly.
func (c *channel) signalStop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// awaitStop blocks until the consumer loop has exited or the timeout elapses.
func (c *channel) awaitStop(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-c.done:
		return true
	case <-timer.C:
		return false
	}
}
