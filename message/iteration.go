package message

import "sync"

// IterationState coordinates acknowledgement deferral when a component
// emits multiple downstream messages from a single input. The input
// message's ack fires only after all siblings reach a terminal
// disposition; a nack on any sibling settles the parent negatively.
type IterationState struct {
	mu      sync.Mutex
	parent  *Message
	pending int
	failed  bool
	info    NackInfo
}

// NewIteration prepares the parent message for an iteration of count
// sibling outputs and returns the shared state. The parent's own
// acknowledgement is deferred until every sibling terminates.
func NewIteration(parent *Message, count int) *IterationState {
	parent.mu.Lock()
	parent.deferred = true
	parent.mu.Unlock()
	return &IterationState{parent: parent, pending: count}
}

// NewChild creates a sibling message sharing the parent's originating
// payload, topic and user properties. Scratch data is copied shallowly so
// siblings do not observe each other's writes to fresh regions.
func (s *IterationState) NewChild(payload any) *Message {
	s.parent.mu.Lock()
	userData := make(map[string]any, len(s.parent.userData))
	for k, v := range s.parent.userData {
		userData[k] = v
	}
	s.parent.mu.Unlock()

	child := &Message{
		payload:        payload,
		topic:          s.parent.topic,
		userProperties: s.parent.userProperties,
		userData:       userData,
		iteration:      s,
	}
	return child
}

// Abort settles count unemitted siblings as failed, so the parent still
// reaches a terminal disposition when emission stops partway.
func (s *IterationState) Abort(count int, info NackInfo) {
	for i := 0; i < count; i++ {
		s.childDone(true, info)
	}
}

// childDone records one sibling's terminal disposition. The last sibling
// settles the parent: ack when all succeeded, nack when any failed.
func (s *IterationState) childDone(failed bool, info NackInfo) {
	s.mu.Lock()
	s.pending--
	if failed && !s.failed {
		s.failed = true
		s.info = info
	}
	done := s.pending <= 0
	wasFailed := s.failed
	failInfo := s.info
	s.mu.Unlock()

	if !done {
		return
	}
	s.parent.mu.Lock()
	s.parent.deferred = false
	s.parent.mu.Unlock()
	if wasFailed {
		s.parent.CallNegativeAcknowledgements(failInfo)
	} else {
		s.parent.CallAcknowledgements()
	}
}
