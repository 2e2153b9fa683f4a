package messaging

import (
	"context"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/SolaceDev/solace-ai-connector/config"
	"github.com/SolaceDev/solace-ai-connector/errors"
)

// devQueueDepth bounds each dev broker queue. Producers drop when a queue
// stays full; durability is not a dev broker goal.
const devQueueDepth = 1024

// devMessage travels through the in-process broker.
type devMessage struct {
	payload         []byte
	topic           string
	userProperties  map[string]any
	redeliveryCount int
}

// devSubscription is one compiled binding of a subscription to a queue.
type devSubscription struct {
	subscription string
	queueID      string
	pattern      *regexp.Regexp
}

// devState is the broker state shared by every DevBroker in the process,
// so that separate apps exchange messages like they would through a real
// broker.
type devState struct {
	mu            sync.Mutex
	queues        map[string]chan *devMessage
	subscriptions []devSubscription
}

var sharedDevState = &devState{queues: map[string]chan *devMessage{}}

func (s *devState) queue(queueID string) chan *devMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[queueID]
	if !ok {
		q = make(chan *devMessage, devQueueDepth)
		s.queues[queueID] = q
	}
	return q
}

func (s *devState) subscribe(subscription, queueID string) error {
	pattern, err := CompileSubscription(subscription)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queues[queueID]; !ok {
		s.queues[queueID] = make(chan *devMessage, devQueueDepth)
	}
	for _, sub := range s.subscriptions {
		if sub.subscription == subscription && sub.queueID == queueID {
			return nil
		}
	}
	s.subscriptions = append(s.subscriptions, devSubscription{
		subscription: subscription,
		queueID:      queueID,
		pattern:      pattern,
	})
	return nil
}

func (s *devState) unsubscribe(subscription, queueID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.subscriptions[:0]
	for _, sub := range s.subscriptions {
		if sub.subscription != subscription || sub.queueID != queueID {
			kept = append(kept, sub)
		}
	}
	s.subscriptions = kept
}

// matchingQueues returns the distinct queues whose subscriptions match the
// topic.
func (s *devState) matchingQueues(topic string) []chan *devMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	var out []chan *devMessage
	for _, sub := range s.subscriptions {
		if seen[sub.queueID] || !sub.pattern.MatchString(topic) {
			continue
		}
		seen[sub.queueID] = true
		out = append(out, s.queues[sub.queueID])
	}
	return out
}

// DevBroker is an in-process broker for examples and tests. All instances
// in a process share one topic space; a nack requeues the message with an
// incremented redelivery count.
type DevBroker struct {
	cfg    *config.BrokerConfig
	state  *devState
	logger *slog.Logger

	mu        sync.Mutex
	connected bool
}

// NewDevBroker creates a dev broker over the process-wide shared state.
func NewDevBroker(cfg *config.BrokerConfig, logger *slog.Logger) *DevBroker {
	return &DevBroker{cfg: cfg, state: sharedDevState, logger: logger}
}

// Connect marks the broker usable and binds the configured queue.
func (b *DevBroker) Connect(_ context.Context) error {
	b.mu.Lock()
	b.connected = true
	b.mu.Unlock()
	if b.cfg.QueueName != "" {
		b.state.queue(b.cfg.QueueName)
	}
	return nil
}

// Disconnect marks the broker unusable. Shared queues persist for other
// instances.
func (b *DevBroker) Disconnect() error {
	b.mu.Lock()
	b.connected = false
	b.mu.Unlock()
	return nil
}

func (b *DevBroker) checkConnected(method string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return errors.WrapTransient(errors.ErrNoConnection, "DevBroker", method, "connection check")
	}
	return nil
}

// Subscribe binds a subscription to a queue.
func (b *DevBroker) Subscribe(subscription, queueID string) error {
	if err := b.checkConnected("Subscribe"); err != nil {
		return err
	}
	return b.state.subscribe(subscription, queueID)
}

// Unsubscribe removes a subscription from a queue.
func (b *DevBroker) Unsubscribe(subscription, queueID string) error {
	b.state.unsubscribe(subscription, queueID)
	return nil
}

// Receive blocks for the next message on a queue, up to timeout.
func (b *DevBroker) Receive(ctx context.Context, queueID string, timeout time.Duration) (*InboundMessage, error) {
	if err := b.checkConnected("Receive"); err != nil {
		return nil, err
	}
	q := b.state.queue(queueID)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case dm := <-q:
		return b.inbound(dm, q), nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, nil
	}
}

func (b *DevBroker) inbound(dm *devMessage, q chan *devMessage) *InboundMessage {
	return &InboundMessage{
		Payload:         dm.payload,
		Topic:           dm.topic,
		UserProperties:  dm.userProperties,
		RedeliveryCount: dm.redeliveryCount,
		acker:           func() error { return nil },
		nacker: func() error {
			redelivered := &devMessage{
				payload:         dm.payload,
				topic:           dm.topic,
				userProperties:  dm.userProperties,
				redeliveryCount: dm.redeliveryCount + 1,
			}
			select {
			case q <- redelivered:
				return nil
			default:
				return errors.WrapTransient(errors.ErrStorageUnavailable, "DevBroker", "Nack", "requeue")
			}
		},
	}
}

// Send publishes to every queue with a matching subscription. Each queue
// receives its own copy.
func (b *DevBroker) Send(topic string, payload []byte, userProperties map[string]any) error {
	if err := b.checkConnected("Send"); err != nil {
		return err
	}
	for _, q := range b.state.matchingQueues(topic) {
		dm := &devMessage{
			payload:        append([]byte(nil), payload...),
			topic:          topic,
			userProperties: copyProperties(userProperties),
		}
		select {
		case q <- dm:
		default:
			b.logger.Warn("Dev broker queue full, dropping message", "topic", topic)
		}
	}
	return nil
}

func copyProperties(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

// ResetDevBroker clears the process-wide dev broker state. Test helper.
func ResetDevBroker() {
	sharedDevState.mu.Lock()
	defer sharedDevState.mu.Unlock()
	sharedDevState.queues = map[string]chan *devMessage{}
	sharedDevState.subscriptions = nil
}
