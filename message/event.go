package message

// EventType identifies the kind of event read from a component's input
// queue.
type EventType int

const (
	// EventMessage carries a Message through the flow
	EventMessage EventType = iota
	// EventTimer delivers a timer firing to its owning component
	EventTimer
	// EventCacheExpiry delivers a cache entry expiry to its owner
	EventCacheExpiry
	// EventStop terminates the receiving worker
	EventStop
)

// String returns a string representation of the event type
func (t EventType) String() string {
	switch t {
	case EventMessage:
		return "message"
	case EventTimer:
		return "timer"
	case EventCacheExpiry:
		return "cache_expiry"
	case EventStop:
		return "stop"
	default:
		return "unknown"
	}
}

// TimerEvent is the data of a timer firing.
type TimerEvent struct {
	TimerID string
	Payload any
}

// CacheExpiryEvent is the data of a cache entry expiry.
type CacheExpiryEvent struct {
	Key         string
	Metadata    any
	ExpiredData any
}

// Event is the element read by a component worker from its input queue.
// Exactly one of the data fields is set, according to Type.
type Event struct {
	Type        EventType
	Message     *Message
	Timer       *TimerEvent
	CacheExpiry *CacheExpiryEvent
}

// NewMessageEvent wraps a Message for queue transport.
func NewMessageEvent(m *Message) *Event {
	return &Event{Type: EventMessage, Message: m}
}

// NewTimerEvent wraps a timer firing for queue transport.
func NewTimerEvent(timerID string, payload any) *Event {
	return &Event{Type: EventTimer, Timer: &TimerEvent{TimerID: timerID, Payload: payload}}
}

// NewCacheExpiryEvent wraps a cache expiry for queue transport.
func NewCacheExpiryEvent(key string, metadata, expiredData any) *Event {
	return &Event{Type: EventCacheExpiry, CacheExpiry: &CacheExpiryEvent{
		Key:         key,
		Metadata:    metadata,
		ExpiredData: expiredData,
	}}
}

// NewStopEvent creates the worker termination event.
func NewStopEvent() *Event {
	return &Event{Type: EventStop}
}
