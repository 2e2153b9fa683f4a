// Package messaging provides the broker transport used by the broker
// input, output and request/reply components: a small contract covering
// queue-bound subscriptions, publish, and per-message settlement, with an
// in-process dev broker for tests and examples and a NATS driver for real
// deployments.
//
// Topics use "/" as the level separator. Subscriptions use the solace
// wildcard grammar: "*" matches exactly one level, a trailing ">" matches
// one or more trailing levels.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/SolaceDev/solace-ai-connector/config"
	"github.com/SolaceDev/solace-ai-connector/errors"
)

// InboundMessage is one message received from a queue. Settle it exactly
// once with Ack or Nack.
type InboundMessage struct {
	Payload         []byte
	Topic           string
	UserProperties  map[string]any
	RedeliveryCount int

	acker  func() error
	nacker func() error
}

// Ack settles the message positively with the broker.
func (m *InboundMessage) Ack() error {
	if m.acker == nil {
		return nil
	}
	return m.acker()
}

// Nack returns the message to the broker for redelivery.
func (m *InboundMessage) Nack() error {
	if m.nacker == nil {
		return nil
	}
	return m.nacker()
}

// Messaging is the broker transport contract. Implementations serialize
// internal state; methods are safe for concurrent use.
type Messaging interface {
	// Connect establishes the broker link, retrying per the configured
	// reconnection strategy.
	Connect(ctx context.Context) error
	// Disconnect releases the broker link. The NATS driver also drops its
	// subscriptions; the dev broker keeps its process-wide queues and
	// subscriptions.
	Disconnect() error
	// Subscribe binds a subscription to a named queue, creating the
	// queue if needed.
	Subscribe(subscription, queueID string) error
	// Unsubscribe removes a subscription from a queue.
	Unsubscribe(subscription, queueID string) error
	// Receive blocks for the next message on a queue, up to timeout.
	// It returns (nil, nil) when the timeout elapses.
	Receive(ctx context.Context, queueID string, timeout time.Duration) (*InboundMessage, error)
	// Send publishes a payload to a topic.
	Send(topic string, payload []byte, userProperties map[string]any) error
}

// New creates a Messaging driver for the configured broker type.
func New(cfg *config.BrokerConfig, logger *slog.Logger) (Messaging, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.BrokerType {
	case "", "dev":
		return NewDevBroker(cfg, logger), nil
	case "nats":
		return NewNATSBroker(cfg, logger), nil
	default:
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: unknown broker_type %q", errors.ErrInvalidConfig, cfg.BrokerType),
			"messaging", "New", "broker type lookup")
	}
}

// CompileSubscription converts a solace-style subscription into a
// regular expression over full topics. "*" matches a single level; a
// trailing ">" matches one or more trailing levels.
func CompileSubscription(subscription string) (*regexp.Regexp, error) {
	levels := strings.Split(subscription, "/")
	parts := make([]string, 0, len(levels))
	for i, level := range levels {
		switch {
		case level == ">" && i == len(levels)-1:
			parts = append(parts, "[^/]+(?:/[^/]+)*")
		case level == "*":
			parts = append(parts, "[^/]+")
		default:
			parts = append(parts, regexp.QuoteMeta(level))
		}
	}
	re, err := regexp.Compile("^" + strings.Join(parts, "/") + "$")
	if err != nil {
		return nil, errors.WrapInvalid(err, "messaging", "CompileSubscription", "pattern compile")
	}
	return re, nil
}

// reconnectionConfig maps the broker reconnection settings onto the retry
// framework.
func reconnectionConfig(cfg *config.BrokerConfig) retryConfig {
	interval := time.Duration(cfg.RetryIntervalMS) * time.Millisecond
	if cfg.ReconnectionStrategy == "parametrized_retry" {
		return retryConfig{interval: interval, count: cfg.RetryCount}
	}
	return retryConfig{interval: interval, forever: true}
}

type retryConfig struct {
	interval time.Duration
	count    int
	forever  bool
}
