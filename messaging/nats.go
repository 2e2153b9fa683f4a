package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/SolaceDev/solace-ai-connector/config"
	"github.com/SolaceDev/solace-ai-connector/errors"
	"github.com/SolaceDev/solace-ai-connector/pkg/retry"
)

// userPropertiesHeader carries the message's user properties as one JSON
// header value.
const userPropertiesHeader = "Sai-User-Properties"

// natsQueueDepth bounds the per-queue delivery channel fed by NATS
// subscriptions.
const natsQueueDepth = 256

// NATSBroker implements Messaging over core NATS. Queue semantics map
// onto NATS queue-group subscriptions: all subscriptions bound to the
// same queueID join one group, so each message is delivered to a single
// consumer of that queue.
//
// Core NATS is an at-most-once transport: Ack is a no-op and Nack cannot
// request broker redelivery. Redelivery-dependent behavior (poison
// message handling) only applies to brokers that support it.
type NATSBroker struct {
	cfg    *config.BrokerConfig
	logger *slog.Logger

	mu     sync.Mutex
	conn   *nats.Conn
	queues map[string]chan *nats.Msg
	subs   map[string]*nats.Subscription // "<subscription>|<queueID>"
}

// NewNATSBroker creates a NATS driver from broker configuration.
func NewNATSBroker(cfg *config.BrokerConfig, logger *slog.Logger) *NATSBroker {
	return &NATSBroker{
		cfg:    cfg,
		logger: logger,
		queues: map[string]chan *nats.Msg{},
		subs:   map[string]*nats.Subscription{},
	}
}

// Connect dials the broker, retrying per the configured reconnection
// strategy. The underlying connection also reconnects on its own after a
// link loss.
func (b *NATSBroker) Connect(ctx context.Context) error {
	b.mu.Lock()
	if b.conn != nil {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	rc := reconnectionConfig(b.cfg)
	opts := []nats.Option{
		nats.ReconnectWait(rc.interval),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			b.logger.Warn("Broker connection lost", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			b.logger.Info("Broker connection restored")
		}),
	}
	if !rc.forever {
		opts = append(opts, nats.MaxReconnects(rc.count))
	}
	if b.cfg.BrokerUsername != "" {
		opts = append(opts, nats.UserInfo(b.cfg.BrokerUsername, b.cfg.BrokerPassword))
	}
	if b.cfg.TrustStorePath != "" {
		opts = append(opts, nats.RootCAs(b.cfg.TrustStorePath))
	}

	retryCfg := retry.ForeverRetry(rc.interval)
	if !rc.forever {
		retryCfg = retry.Parametrized(rc.interval, rc.count)
	}
	conn, err := retry.DoWithResult(ctx, retryCfg, func() (*nats.Conn, error) {
		return nats.Connect(b.cfg.BrokerURL, opts...)
	})
	if err != nil {
		return errors.WrapTransient(err, "NATSBroker", "Connect", "dial")
	}

	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()
	return nil
}

// Disconnect drains all subscriptions and closes the connection.
func (b *NATSBroker) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, sub := range b.subs {
		if err := sub.Unsubscribe(); err != nil {
			b.logger.Warn("Unsubscribe failed", "subscription", key, "error", err)
		}
	}
	b.subs = map[string]*nats.Subscription{}
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
	return nil
}

// Subscribe binds a subscription to a queue via a queue-group channel
// subscription.
func (b *NATSBroker) Subscribe(subscription, queueID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return errors.WrapTransient(errors.ErrNoConnection, "NATSBroker", "Subscribe", "connection check")
	}
	key := subscription + "|" + queueID
	if _, exists := b.subs[key]; exists {
		return nil
	}
	ch, ok := b.queues[queueID]
	if !ok {
		ch = make(chan *nats.Msg, natsQueueDepth)
		b.queues[queueID] = ch
	}
	sub, err := b.conn.ChanQueueSubscribe(toSubject(subscription), queueID, ch)
	if err != nil {
		return errors.WrapTransient(err, "NATSBroker", "Subscribe", "queue subscribe")
	}
	b.subs[key] = sub
	return nil
}

// Unsubscribe removes a subscription from a queue.
func (b *NATSBroker) Unsubscribe(subscription, queueID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := subscription + "|" + queueID
	sub, exists := b.subs[key]
	if !exists {
		return nil
	}
	delete(b.subs, key)
	if err := sub.Unsubscribe(); err != nil {
		return errors.WrapTransient(err, "NATSBroker", "Unsubscribe", "unsubscribe")
	}
	return nil
}

// Receive blocks for the next message on a queue, up to timeout.
func (b *NATSBroker) Receive(ctx context.Context, queueID string, timeout time.Duration) (*InboundMessage, error) {
	b.mu.Lock()
	ch, ok := b.queues[queueID]
	if !ok {
		ch = make(chan *nats.Msg, natsQueueDepth)
		b.queues[queueID] = ch
	}
	b.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-ch:
		return fromNATS(msg), nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, nil
	}
}

// Send publishes a payload to a topic.
func (b *NATSBroker) Send(topic string, payload []byte, userProperties map[string]any) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return errors.WrapTransient(errors.ErrNoConnection, "NATSBroker", "Send", "connection check")
	}

	msg := nats.NewMsg(toSubject(topic))
	msg.Data = payload
	if len(userProperties) > 0 {
		encoded, err := json.Marshal(userProperties)
		if err != nil {
			return errors.WrapInvalid(err, "NATSBroker", "Send", "encode user properties")
		}
		msg.Header.Set(userPropertiesHeader, string(encoded))
	}
	if err := conn.PublishMsg(msg); err != nil {
		return errors.WrapTransient(err, "NATSBroker", "Send", "publish")
	}
	return nil
}

func fromNATS(msg *nats.Msg) *InboundMessage {
	var props map[string]any
	if raw := msg.Header.Get(userPropertiesHeader); raw != "" {
		_ = json.Unmarshal([]byte(raw), &props)
	}
	return &InboundMessage{
		Payload:        msg.Data,
		Topic:          fromSubject(msg.Subject),
		UserProperties: props,
	}
}

// toSubject maps a solace-style topic or subscription onto NATS subject
// grammar: "/" becomes ".", and the "*" and ">" wildcards carry over.
func toSubject(topic string) string {
	return strings.ReplaceAll(topic, "/", ".")
}

func fromSubject(subject string) string {
	return strings.ReplaceAll(subject, ".", "/")
}
