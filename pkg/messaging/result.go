package messaging

// Reason classifies a Result failure so callers can branch on the failure mode
// without parsing the human-readable text.
type Reason string

const (
	ReasonNone                   Reason = ""
	ReasonNotInitialized         Reason = "NOT_INITIALIZED"
	ReasonInvalidParameters      Reason = "INVALID_PARAMETERS"
	ReasonAlreadyExists          Reason = "ALREADY_EXISTS"
	ReasonNotFound               Reason = "NOT_FOUND"
	ReasonMessageTooLarge        Reason = "MESSAGE_TOO_LARGE"
	ReasonNoSubscribers          Reason = "NO_SUBSCRIBERS"
	ReasonSubscriberLimitReached Reason = "SUBSCRIBER_LIMIT_REACHED"
	ReasonNoReplyHandler         Reason = "NO_REPLY_HANDLER"
	ReasonRequestTimeout         Reason = "REQUEST_TIMEOUT"
	ReasonHandlerFailure         Reason = "HANDLER_FAILURE"
	ReasonUnsupported            Reason = "UNSUPPORTED"
)

// Attribute keys used in Result.Attributes.
const (
	AttrSubscriptionID = "subscriptionId"
	AttrHandlerID      = "handlerId"
	AttrReply          = "reply"
	AttrChannel        = "channel"
	AttrChannels       = "channels"
)

// Result is the uniform outcome of every port operation: a success flag, a
// human-readable message, a machine-readable failure reason and an optional
// attribute map for operation-specific payloads.
type Result struct {
	Successful bool           `json:"successful"`
	MessageID  string         `json:"messageId,omitempty"`
	Message    string         `json:"message"`
	Reason     Reason         `json:"reason,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Success creates a successful Result.
func Success(messageID, text string) Result {
	return Result{Successful: true, MessageID: messageID, Message: text}
}

// SuccessWith creates a successful Result carrying attributes.
func SuccessWith(messageID, text string, attributes map[string]any) Result {
	return Result{Successful: true, MessageID: messageID, Message: text, Attributes: attributes}
}

// Failure creates a failed Result classified by reason.
func Failure(messageID, text string, reason Reason) Result {
	return Result{MessageID: messageID, Message: text, Reason: reason}
}

// IsSuccessful reports whether the operation succeeded.
func (r Result) IsSuccessful() bool { return r.Successful }

// SubscriptionID returns the subscription id attached by Subscribe, or "".
func (r Result) SubscriptionID() string {
	s, _ := r.Attributes[AttrSubscriptionID].(string)
	return s
}

// HandlerID returns the handler id attached by RegisterReplyHandler, or "".
func (r Result) HandlerID() string {
	s, _ := r.Attributes[AttrHandlerID].(string)
	return s
}

// Reply returns the reply message attached by a successful Request.
func (r Result) Reply() (Message, bool) {
	m, ok := r.Attributes[AttrReply].(Message)
	return m, ok
}

// Channel returns the channel snapshot attached by CreateChannel/GetChannel.
func (r Result) Channel() (ChannelInfo, bool) {
	c, ok := r.Attributes[AttrChannel].(ChannelInfo)
	return c, ok
}

// Channels returns the channel snapshots attached by ListChannels.
func (r Result) Channels() []ChannelInfo {
	c, _ := r.Attributes[AttrChannels].([]ChannelInfo)
	return c
}
