// Package message defines the in-flight envelope passed between components
// and the queue events consumed by component workers.
//
// A Message carries the decoded payload of the originating input together
// with named scratch regions for intermediate storage, the previous
// component's result, and the acknowledgement state used to settle the
// originating broker message exactly once.
package message

import (
	"strings"
	"sync"
)

// NackInfo carries structured error information delivered to negative
// acknowledgement callbacks.
type NackInfo struct {
	Reason    string
	Kind      string
	Component string
	Flow      string
}

// Message is the unit passed between components. The payload, topic and
// user properties of the original input are immutable during a flow;
// transforms write only to user data or the previous plane.
type Message struct {
	payload        any
	topic          string
	userProperties map[string]any

	mu          sync.Mutex
	topicLevels []string
	userData    map[string]any
	previous    any
	ackCbs      []func()
	nackCbs     []func(NackInfo)
	acked       bool
	nacked      bool
	discarded   bool
	injected    bool
	deferred    bool
	iteration   *IterationState
}

// New creates a Message from an originating input event.
func New(payload any, topic string, userProperties map[string]any) *Message {
	if userProperties == nil {
		userProperties = map[string]any{}
	}
	return &Message{
		payload:        payload,
		topic:          topic,
		userProperties: userProperties,
		userData:       map[string]any{},
	}
}

// GetPayload returns the decoded payload of the originating input.
func (m *Message) GetPayload() any { return m.payload }

// GetTopic returns the topic of the originating input, or "".
func (m *Message) GetTopic() string { return m.topic }

// GetTopicLevels returns the topic split on "/". The split is computed
// lazily and cached.
func (m *Message) GetTopicLevels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.topicLevels == nil {
		if m.topic == "" {
			m.topicLevels = []string{}
		} else {
			m.topicLevels = strings.Split(m.topic, "/")
		}
	}
	return m.topicLevels
}

// GetUserProperties returns the user properties of the originating input.
func (m *Message) GetUserProperties() map[string]any { return m.userProperties }

// GetUserData returns the named scratch regions of the message.
func (m *Message) GetUserData() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userData
}

// SetUserData replaces a named scratch region.
func (m *Message) SetUserData(name string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userData[name] = value
}

// GetPrevious returns the return value of the most recent component invoke.
func (m *Message) GetPrevious() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.previous
}

// SetPrevious replaces the previous plane. It is replaced atomically at
// component boundaries; a component observes only its predecessor's value.
func (m *Message) SetPrevious(v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.previous = v
}

// AddAckCallback registers a callback invoked when the message reaches a
// successful terminal disposition. Callbacks run in registration order.
func (m *Message) AddAckCallback(fn func()) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ackCbs = append(m.ackCbs, fn)
}

// AddNackCallback registers a callback invoked when the message reaches a
// failed terminal disposition.
func (m *Message) AddNackCallback(fn func(NackInfo)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nackCbs = append(m.nackCbs, fn)
}

// CallAcknowledgements fires the registered ack callbacks. Exactly one of
// ack or nack fires per message; repeated calls are no-ops. When the
// message belongs to an iteration, the parent's settlement is deferred
// until all siblings terminate.
func (m *Message) CallAcknowledgements() {
	m.mu.Lock()
	if m.acked || m.nacked || m.deferred {
		m.mu.Unlock()
		return
	}
	m.acked = true
	cbs := m.ackCbs
	iter := m.iteration
	m.mu.Unlock()

	for _, cb := range cbs {
		cb()
	}
	if iter != nil {
		iter.childDone(false, NackInfo{})
	}
}

// CallNegativeAcknowledgements fires the registered nack callbacks with the
// given error info. Repeated calls, or calls after an ack, are no-ops.
func (m *Message) CallNegativeAcknowledgements(info NackInfo) {
	m.mu.Lock()
	if m.acked || m.nacked || m.deferred {
		m.mu.Unlock()
		return
	}
	m.nacked = true
	cbs := m.nackCbs
	iter := m.iteration
	m.mu.Unlock()

	for _, cb := range cbs {
		cb(info)
	}
	if iter != nil {
		iter.childDone(true, info)
	}
}

// Settled reports whether the message has reached a terminal disposition.
func (m *Message) Settled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acked || m.nacked
}

// Discard marks the message so the current component suppresses its
// output. The component runtime treats a discard as a successful terminal
// disposition and fires the ack callbacks.
func (m *Message) Discard() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discarded = true
}

// Discarded reports and clears the discard mark. It is read once per
// invoke by the component runtime.
func (m *Message) Discarded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.discarded
	m.discarded = false
	return d
}

// MarkInjected marks a message synthesized by App.SendMessage. The broker
// output acknowledges such messages itself after publish confirmation;
// there is no upstream ack to propagate.
func (m *Message) MarkInjected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.injected = true
}

// Injected reports whether the message was synthesized by App.SendMessage.
func (m *Message) Injected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.injected
}
