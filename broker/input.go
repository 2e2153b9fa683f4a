package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/SolaceDev/solace-ai-connector/component"
	"github.com/SolaceDev/solace-ai-connector/config"
	"github.com/SolaceDev/solace-ai-connector/errors"
	"github.com/SolaceDev/solace-ai-connector/message"
	"github.com/SolaceDev/solace-ai-connector/messaging"
)

// receivePoll is how long one broker receive blocks before the input
// re-checks its own queue for stop, timer and cache events.
const receivePoll = 200 * time.Millisecond

// brokerConfigKey is the component_config key under which app synthesis
// passes an already-decoded *config.BrokerConfig. Standalone usage in
// standard flows declares the broker settings as plain component_config
// keys instead.
const brokerConfigKey = "broker_config"

// InputInfo is the broker input's module metadata.
var InputInfo = component.Info{
	ClassName:   "BrokerInput",
	Description: "Connect to a messaging broker, bind a queue and receive messages from it",
	ConfigParameters: []component.ConfigParameter{
		{Name: "broker_type", Description: "Type of broker (dev, nats)"},
		{Name: "broker_url", Description: "Broker connection URL"},
		{Name: "broker_username", Description: "Client username"},
		{Name: "broker_password", Description: "Client password"},
		{Name: "broker_vpn", Description: "Broker virtual network"},
		{Name: "broker_queue_name", Description: "Queue to bind to"},
		{Name: "broker_subscriptions", Description: "List of topic subscriptions"},
		{Name: "payload_encoding", Default: "utf-8", Description: "Encoding of the payload (utf-8, base64, none)"},
		{Name: "payload_format", Default: "json", Description: "Format of the payload (text, json, yaml)"},
		{Name: "max_redelivery_count", Description: "Redeliveries before a message is poison"},
	},
}

// Input is the broker input stage: it binds the configured queue, adds
// all subscriptions, and turns received broker messages into MESSAGE
// events with settlement callbacks attached.
type Input struct {
	*component.Base
	cfg           *config.BrokerConfig
	subscriptions []config.Subscription
	msging        messaging.Messaging
}

// NewInput is the broker_input factory.
func NewInput(base *component.Base) (component.Invoker, error) {
	cfg, subs := brokerSettings(base)
	msging, err := messaging.New(cfg, base.Logger())
	if err != nil {
		return nil, err
	}
	return &Input{Base: base, cfg: cfg, subscriptions: subs, msging: msging}, nil
}

// brokerSettings reads the broker configuration either from the decoded
// object injected by app synthesis or from plain component_config keys.
func brokerSettings(base *component.Base) (*config.BrokerConfig, []config.Subscription) {
	raw := base.Config().ComponentConfig
	if injected, ok := raw[brokerConfigKey].(*config.BrokerConfig); ok {
		return injected, base.Config().Subscriptions
	}
	cfg := config.DecodeBroker(raw)
	var subs []config.Subscription
	for _, rawSub := range config.GetList(raw, "broker_subscriptions") {
		if subMap, ok := rawSub.(map[string]any); ok {
			subs = append(subs, config.Subscription{
				Topic: config.GetString(subMap, "topic", ""),
				QOS:   config.GetInt(subMap, "qos", 1),
			})
		}
	}
	return cfg, subs
}

// StartComponent connects to the broker and binds the queue with all
// subscriptions.
func (c *Input) StartComponent(ctx context.Context) error {
	if err := c.msging.Connect(ctx); err != nil {
		return err
	}
	for _, sub := range c.subscriptions {
		if err := c.msging.Subscribe(sub.Topic, c.cfg.QueueName); err != nil {
			return errors.Wrap(err, c.Name(), "StartComponent", fmt.Sprintf("subscribe %s", sub.Topic))
		}
	}
	c.Logger().Info("Broker input bound",
		"queue", c.cfg.QueueName, "subscriptions", len(c.subscriptions))
	return nil
}

// StopComponent disconnects from the broker.
func (c *Input) StopComponent() error {
	return c.msging.Disconnect()
}

// GetNextEvent blocks on broker receive, multiplexed with the component's
// own queue so timer, cache expiry and stop events are still delivered.
func (c *Input) GetNextEvent(ctx context.Context) (*message.Event, error) {
	for {
		select {
		case ev := <-c.InputQueue():
			return ev, nil
		case <-ctx.Done():
			return nil, nil
		default:
		}

		im, err := c.msging.Receive(ctx, c.cfg.QueueName, receivePoll)
		if err != nil {
			c.Logger().Warn("Broker receive failed", "error", err)
			continue
		}
		if im == nil {
			continue
		}

		if c.cfg.MaxRedeliveryCount > 0 && im.RedeliveryCount > c.cfg.MaxRedeliveryCount {
			// Poison: discard from the queue and surface to the error flow.
			_ = im.Ack()
			return nil, fmt.Errorf("%w: topic %s after %d redeliveries",
				errors.ErrPoisonMessage, im.Topic, im.RedeliveryCount)
		}

		payload, err := DecodePayload(im.Payload, c.cfg.PayloadEncoding, c.cfg.PayloadFormat)
		if err != nil {
			c.Logger().Warn("Payload decode failed, returning message to broker",
				"topic", im.Topic, "error", err)
			_ = im.Nack()
			continue
		}

		msg := message.New(payload, im.Topic, im.UserProperties)
		msg.AddAckCallback(func() {
			if err := im.Ack(); err != nil {
				c.Logger().Warn("Broker ack failed", "error", err)
			}
		})
		msg.AddNackCallback(func(_ message.NackInfo) {
			if err := im.Nack(); err != nil {
				c.Logger().Warn("Broker nack failed", "error", err)
			}
		})
		return message.NewMessageEvent(msg), nil
	}
}

// Invoke places the originating event's planes into the previous plane
// for downstream selection.
func (c *Input) Invoke(msg *message.Message, _ any) (any, error) {
	return map[string]any{
		"payload":         msg.GetPayload(),
		"topic":           msg.GetTopic(),
		"user_properties": msg.GetUserProperties(),
	}, nil
}
