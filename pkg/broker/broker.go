package broker

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-messagebroker/pkg/messaging"
)

// ====================================================================================
// Broker is the in-memory implementation of the messaging.Port contract: named
// channels with queue, topic and request/reply semantics, priority ordering,
// TTL expiry and subscriber limits, all inside a single process.
// ====================================================================================

// Broker routes messages between in-process producers and consumers. It is safe
// for concurrent use. A nil clock falls back to the system clock.
type Broker struct {
	cfg    Config
	clock  messaging.Clock
	logger zerolog.Logger

	initialized atomic.Bool
	stats       *Statistics
	registry    *registry
	rr          *requestReply
}

var _ messaging.Port = (*Broker)(nil)

// New creates a Broker. The clock is injected so TTL and expiry behaviour are
// deterministic under test; pass nil for the system clock.
func New(cfg Config, clock messaging.Clock, logger zerolog.Logger) *Broker {
	if clock == nil {
		clock = messaging.SystemClock{}
	}
	b := &Broker{
		cfg:    cfg.withDefaults(),
		clock:  clock,
		logger: logger.With().Str("component", "broker").Logger(),
		stats:  &Statistics{},
	}
	b.registry = newRegistry(b.buildChannel)
	b.rr = newRequestReply(b.logger)
	return b
}

func (b *Broker) buildChannel(name string, ctype messaging.ChannelType, props messaging.ChannelProperties) *channel {
	return newChannel(name, ctype, props, b.cfg, b.clock, b.stats, b.logger, b.autoDelete)
}

// autoDelete is the channel callback for the auto-delete-when-empty policy.
func (b *Broker) autoDelete(name string) {
	if _, ok := b.registry.remove(name); ok {
		b.logger.Info().Str("channel", name).Msg("Channel auto-deleted.")
	}
}

// Initialize makes the broker operational. Calling it on an initialized broker
// succeeds without side effects.
func (b *Broker) Initialize() messaging.Result {
	if !b.initialized.CompareAndSwap(false, true) {
		return messaging.Success("", "Messaging system already initialized")
	}
	b.logger.Info().Msg("In-memory messaging system initialized.")
	return messaging.Success("", "Messaging system initialized successfully")
}

// Shutdown stops every consumer loop (waiting up to the configured grace
// period), clears channels, outstanding requests and reply handlers, and resets
// statistics. It is idempotent; afterwards every operation fails with
// ReasonNotInitialized until Initialize is called again.
func (b *Broker) Shutdown() messaging.Result {
	if !b.initialized.CompareAndSwap(true, false) {
		return messaging.Success("", "Messaging system not initialized")
	}

	stopped := b.registry.clear()
	if !b.awaitChannels(stopped, b.cfg.ShutdownGrace) {
		b.logger.Error().Dur("grace", b.cfg.ShutdownGrace).
			Msg("Timeout waiting for consumer loops to stop, abandoning them.")
	}
	b.rr.clear()
	b.stats.Reset()

	b.logger.Info().Msg("In-memory messaging system shut down.")
	return messaging.Success("", "Messaging system shutdown successfully")
}

// awaitChannels waits for the channels' consumer loops with a shared bound.
func (b *Broker) awaitChannels(channels []*channel, grace time.Duration) bool {
	var wg sync.WaitGroup
	var allStopped atomic.Bool
	allStopped.Store(true)
	for _, ch := range channels {
		wg.Add(1)
		go func(ch *channel) {
			defer wg.Done()
			if !ch.awaitStop(grace) {
				allStopped.Store(false)
			}
		}(ch)
	}
	wg.Wait()
	return allStopped.Load()
}

// CreateChannel constructs and stores a channel under a unique name. A nil
// properties uses the defaults.
func (b *Broker) CreateChannel(name string, channelType messaging.ChannelType, properties *messaging.ChannelProperties) messaging.Result {
	if !b.initialized.Load() {
		return notInitialized("")
	}
	if name == "" {
		return messaging.Failure("", "Channel name cannot be empty", messaging.ReasonInvalidParameters)
	}
	if !channelType.Valid() {
		return messaging.Failure("",
			fmt.Sprintf("Unknown channel type '%s'", channelType), messaging.ReasonInvalidParameters)
	}
	props := messaging.DefaultChannelProperties()
	if properties != nil {
		props = *properties
	}

	ch, created := b.registry.create(name, channelType, props)
	if !created {
		return messaging.Failure("",
			fmt.Sprintf("A channel with name '%s' already exists", name), messaging.ReasonAlreadyExists)
	}
	b.logger.Info().Str("channel", name).Str("type", string(channelType)).Msg("Channel created.")
	return messaging.SuccessWith("", "Channel created successfully",
		map[string]any{messaging.AttrChannel: ch.info()})
}

// GetChannel looks up a channel and returns its metadata snapshot.
func (b *Broker) GetChannel(name string) messaging.Result {
	if !b.initialized.Load() {
		return notInitialized("")
	}
	if name == "" {
		return messaging.Failure("", "Channel name cannot be empty", messaging.ReasonInvalidParameters)
	}
	ch, ok := b.registry.get(name)
	if !ok {
		return channelNotFound(name)
	}
	return messaging.SuccessWith("", "Channel found",
		map[string]any{messaging.AttrChannel: ch.info()})
}

// DeleteChannel removes a channel, stopping any consumer loop it owns.
func (b *Broker) DeleteChannel(name string) messaging.Result {
	if !b.initialized.Load() {
		return notInitialized("")
	}
	if name == "" {
		return messaging.Failure("", "Channel name cannot be empty", messaging.ReasonInvalidParameters)
	}
	ch, ok := b.registry.remove(name)
	if !ok {
		return channelNotFound(name)
	}
	ch.awaitStop(b.cfg.ShutdownGrace)
	b.logger.Info().Str("channel", name).Msg("Channel deleted.")
	return messaging.Success("", "Channel deleted successfully")
}

// ListChannels returns a point-in-time snapshot of every channel's metadata.
func (b *Broker) ListChannels() messaging.Result {
	if !b.initialized.Load() {
		return notInitialized("")
	}
	return messaging.SuccessWith("", "Channels retrieved successfully",
		map[string]any{messaging.AttrChannels: b.registry.list()})
}

// Send routes a message to the named channel, auto-creating a TOPIC channel on
// first use of an unknown name.
func (b *Broker) Send(topic string, msg messaging.Message, options *messaging.DeliveryOptions) messaging.Result {
	if !b.initialized.Load() {
		return notInitialized(msg.ID())
	}
	if topic == "" || msg.ID() == "" {
		return messaging.Failure(msg.ID(),
			"Topic and message are required", messaging.ReasonInvalidParameters)
	}
	opts := messaging.DefaultDeliveryOptions()
	if options != nil {
		opts = *options
	}

	ch, created := b.registry.getOrCreateTopic(topic)
	if created {
		b.logger.Debug().Str("channel", topic).Msg("Auto-created topic channel on send.")
	}
	return ch.send(msg, opts)
}

// Subscribe registers a handler on the named channel, auto-creating a TOPIC
// channel when the name is unknown.
func (b *Broker) Subscribe(topic string, handler messaging.MessageHandler) messaging.Result {
	if !b.initialized.Load() {
		return notInitialized("")
	}
	if topic == "" || handler == nil {
		return messaging.Failure("",
			"Topic and handler are required", messaging.ReasonInvalidParameters)
	}

	ch, created := b.registry.getOrCreateTopic(topic)
	if created {
		b.logger.Debug().Str("channel", topic).Msg("Auto-created topic channel on subscribe.")
	}
	subscriptionID, ok := ch.subscribe(handler)
	if !ok {
		return messaging.Failure("",
			"Channel is at its subscriber limit", messaging.ReasonSubscriberLimitReached)
	}
	b.logger.Debug().Str("channel", topic).Str("subscription_id", subscriptionID).Msg("Subscribed.")
	return messaging.SuccessWith("", "Subscribed to topic successfully",
		map[string]any{messaging.AttrSubscriptionID: subscriptionID})
}

// Unsubscribe removes a subscription; removing the last one from an auto-delete
// channel deletes the channel as a side effect.
func (b *Broker) Unsubscribe(topic string, subscriptionID string) messaging.Result {
	if !b.initialized.Load() {
		return notInitialized("")
	}
	if topic == "" || subscriptionID == "" {
		return messaging.Failure("",
			"Topic and subscription id are required", messaging.ReasonInvalidParameters)
	}
	ch, ok := b.registry.get(topic)
	if !ok {
		return channelNotFound(topic)
	}
	if !ch.unsubscribe(subscriptionID) {
		return messaging.Failure("",
			fmt.Sprintf("Subscription '%s' not found", subscriptionID), messaging.ReasonNotFound)
	}
	b.logger.Debug().Str("channel", topic).Str("subscription_id", subscriptionID).Msg("Unsubscribed.")
	return messaging.Success("", "Unsubscribed from topic successfully")
}

// Request performs a synchronous request/reply exchange. The caller blocks until
// a reply arrives or the timeout elapses; a non-positive timeout uses the
// configured default.
func (b *Broker) Request(topic string, msg messaging.Message, timeout time.Duration) messaging.Result {
	if !b.initialized.Load() {
		return notInitialized(msg.ID())
	}
	if topic == "" || msg.ID() == "" {
		return messaging.Failure(msg.ID(),
			"Topic and message are required", messaging.ReasonInvalidParameters)
	}
	if timeout <= 0 {
		timeout = b.cfg.DefaultRequestTimeout
	}
	return b.rr.request(topic, msg, timeout)
}

// RegisterReplyHandler binds a handler to a topic for request/reply exchanges.
// Registering a second handler for the same topic replaces the first: last
// registration wins.
func (b *Broker) RegisterReplyHandler(topic string, handler messaging.ReplyHandler) messaging.Result {
	if !b.initialized.Load() {
		return notInitialized("")
	}
	if topic == "" || handler == nil {
		return messaging.Failure("",
			"Topic and handler are required", messaging.ReasonInvalidParameters)
	}
	handlerID := b.rr.register(topic, handler)
	b.logger.Debug().Str("topic", topic).Str("handler_id", handlerID).Msg("Reply handler registered.")
	return messaging.SuccessWith("", "Reply handler registered successfully",
		map[string]any{messaging.AttrHandlerID: handlerID})
}

// UnregisterReplyHandler removes a reply handler binding. The handler id must
// match the current registration.
func (b *Broker) UnregisterReplyHandler(topic string, handlerID string) messaging.Result {
	if !b.initialized.Load() {
		return notInitialized("")
	}
	if topic == "" || handlerID == "" {
		return messaging.Failure("",
			"Topic and handler id are required", messaging.ReasonInvalidParameters)
	}
	if !b.rr.unregister(topic, handlerID) {
		return messaging.Failure("",
			fmt.Sprintf("No reply handler registered for topic '%s'", topic), messaging.ReasonNotFound)
	}
	b.logger.Debug().Str("topic", topic).Msg("Reply handler unregistered.")
	return messaging.Success("", "Reply handler unregistered successfully")
}

// Statistics returns a snapshot of the broker's counters and live gauges.
func (b *Broker) Statistics() StatisticsSnapshot {
	snap := b.stats.snapshot()
	snap.ChannelCount = b.registry.count()
	snap.PendingRequests = b.rr.pendingCount()
	snap.ReplyHandlers = b.rr.handlerCount()
	return snap
}

// ResetStatistics zeroes the delivery counters. Test and ops hook.
func (b *Broker) ResetStatistics() {
	b.stats.Reset()
}

func notInitialized(messageID string) messaging.Result {
	return messaging.Failure(messageID,
		"Messaging system not initialized", messaging.ReasonNotInitialized)
}

func channelNotFound(name string) messaging.Result {
	return messaging.Failure("",
		fmt.Sprintf("No channel exists with name '%s'", name), messaging.ReasonNotFound)
}
