package broker

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-messagebroker/pkg/messaging"
)

// CorrelationHeader carries the originating message id on the request handed to
// a reply handler, correlating the reply with its request.
const CorrelationHeader = "replyToMessageId"

// replyRegistration binds one handler to a topic. Registering again for the
// same topic replaces the binding: last registration wins.
type replyRegistration struct {
	id      string
	handler messaging.ReplyHandler
}

type replyOutcome struct {
	reply messaging.Message
	err   error
}

// requestReply coordinates synchronous request/reply exchanges over the
// broker's asynchronous substrate. Each outstanding request is tracked by its
// correlation id and resolved exactly once: reply, handler failure, or timeout.
type requestReply struct {
	logger zerolog.Logger

	mu       sync.RWMutex
	handlers map[string]replyRegistration
	pending  map[string]struct{}
}

func newRequestReply(logger zerolog.Logger) *requestReply {
	return &requestReply{
		logger:   logger.With().Str("component", "requestReply").Logger(),
		handlers: make(map[string]replyRegistration),
		pending:  make(map[string]struct{}),
	}
}

// register binds a handler to topic and returns the handler id. An existing
// binding is replaced.
func (rr *requestReply) register(topic string, handler messaging.ReplyHandler) string {
	id := uuid.NewString()
	rr.mu.Lock()
	if prev, exists := rr.handlers[topic]; exists {
		rr.logger.Warn().Str("topic", topic).Str("replaced_handler_id", prev.id).
			Msg("Replacing existing reply handler.")
	}
	rr.handlers[topic] = replyRegistration{id: id, handler: handler}
	rr.mu.Unlock()
	return id
}

// unregister removes the binding for topic if handlerID matches the current
// registration.
func (rr *requestReply) unregister(topic, handlerID string) bool {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	reg, exists := rr.handlers[topic]
	if !exists || reg.id != handlerID {
		return false
	}
	delete(rr.handlers, topic)
	return true
}

// request invokes the handler bound to topic and waits for its reply, up to
// timeout. A late reply arriving after the timeout is discarded, not an error.
func (rr *requestReply) request(topic string, msg messaging.Message, timeout time.Duration) messaging.Result {
	rr.mu.RLock()
	reg, exists := rr.handlers[topic]
	rr.mu.RUnlock()
	if !exists {
		return messaging.Failure(msg.ID(),
			fmt.Sprintf("No reply handler registered for topic '%s'", topic), messaging.ReasonNoReplyHandler)
	}

	request := msg.WithHeader(CorrelationHeader, msg.ID())

	rr.mu.Lock()
	rr.pending[msg.ID()] = struct{}{}
	rr.mu.Unlock()
	defer func() {
		rr.mu.Lock()
		delete(rr.pending, msg.ID())
		rr.mu.Unlock()
	}()

	// Buffered so a handler finishing after the timeout does not leak its
	// goroutine; the late outcome is simply never read.
	outcomeCh := make(chan replyOutcome, 1)
	go func() {
		reply, err := rr.invoke(reg.handler, request)
		outcomeCh <- replyOutcome{reply: reply, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case outcome := <-outcomeCh:
		if outcome.err != nil {
			return messaging.Failure(msg.ID(), outcome.err.Error(), messaging.ReasonHandlerFailure)
		}
		return messaging.SuccessWith(msg.ID(), "Reply received",
			map[string]any{messaging.AttrReply: outcome.reply})
	case <-timer.C:
		rr.logger.Warn().Str("msg_id", msg.ID()).Str("topic", topic).
			Dur("timeout", timeout).Msg("Request timed out waiting for reply.")
		return messaging.Failure(msg.ID(),
			"No reply received within timeout period", messaging.ReasonRequestTimeout)
	}
}

// invoke runs the handler, converting a panic into a handler failure.
func (rr *requestReply) invoke(handler messaging.ReplyHandler, request messaging.Message) (reply messaging.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reply handler panicked: %v", r)
		}
	}()
	return handler(request)
}

func (rr *requestReply) handlerCount() int {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	return len(rr.handlers)
}

func (rr *requestReply) pendingCount() int {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	return len(rr.pending)
}

// clear drops every binding and forgets outstanding requests. In-flight
// request() calls still resolve through their own channels.
func (rr *requestReply) clear() {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.handlers = make(map[string]replyRegistration)
	rr.pending = make(map[string]struct{})
}
