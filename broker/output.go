package broker

import (
	"context"
	"fmt"

	"github.com/SolaceDev/solace-ai-connector/component"
	"github.com/SolaceDev/solace-ai-connector/config"
	"github.com/SolaceDev/solace-ai-connector/errors"
	"github.com/SolaceDev/solace-ai-connector/expression"
	"github.com/SolaceDev/solace-ai-connector/message"
	"github.com/SolaceDev/solace-ai-connector/messaging"
)

// OutputInfo is the broker output's module metadata.
var OutputInfo = component.Info{
	ClassName:   "BrokerOutput",
	Description: "Connect to a messaging broker and publish messages to it",
	ConfigParameters: []component.ConfigParameter{
		{Name: "broker_type", Description: "Type of broker (dev, nats)"},
		{Name: "broker_url", Description: "Broker connection URL"},
		{Name: "broker_username", Description: "Client username"},
		{Name: "broker_password", Description: "Client password"},
		{Name: "broker_vpn", Description: "Broker virtual network"},
		{Name: "payload_encoding", Default: "utf-8", Description: "Encoding of the payload (utf-8, base64, none)"},
		{Name: "payload_format", Default: "json", Description: "Format of the payload (text, json, yaml)"},
		{Name: "copy_user_properties", Default: false, Description: "Merge the original event's user properties into the published message"},
		{Name: "propagate_acknowledgements", Default: true, Description: "Acknowledge the originating message after broker confirmation"},
	},
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"payload":         map[string]any{},
			"topic":           map[string]any{"type": "string"},
			"user_properties": map[string]any{"type": "object"},
		},
	},
}

// Output is the broker output stage. It reads {payload, topic,
// user_properties} from the previous plane, encodes and publishes, and
// settles the upstream message after broker confirmation.
type Output struct {
	*component.Base
	cfg    *config.BrokerConfig
	msging messaging.Messaging
}

// NewOutput is the broker_output factory.
func NewOutput(base *component.Base) (component.Invoker, error) {
	cfg, _ := brokerSettings(base)
	msging, err := messaging.New(cfg, base.Logger())
	if err != nil {
		return nil, err
	}
	return &Output{Base: base, cfg: cfg, msging: msging}, nil
}

// StartComponent connects to the broker.
func (c *Output) StartComponent(ctx context.Context) error {
	return c.msging.Connect(ctx)
}

// StopComponent disconnects from the broker.
func (c *Output) StopComponent() error {
	return c.msging.Disconnect()
}

// Invoke passes the selected input through to the previous plane for
// SendMessage to publish.
func (c *Output) Invoke(_ *message.Message, data any) (any, error) {
	if data == nil {
		return nil, nil
	}
	return data, nil
}

// SendMessage publishes the message's previous plane. Messages injected
// through App.SendMessage have no upstream ack to propagate; the output
// acknowledges them itself after the broker confirms.
func (c *Output) SendMessage(msg *message.Message) error {
	data, ok := msg.GetPrevious().(map[string]any)
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("broker output requires {payload, topic, user_properties}, got %T", msg.GetPrevious()),
			c.Name(), "SendMessage", "input shape check")
	}

	topic := expression.Textualize(data["topic"])
	if topic == "" {
		return errors.WrapInvalid(
			fmt.Errorf("broker output requires a topic"),
			c.Name(), "SendMessage", "topic check")
	}

	encoded, err := EncodePayload(data["payload"], c.cfg.PayloadEncoding, c.cfg.PayloadFormat)
	if err != nil {
		return err
	}

	props := map[string]any{}
	if up, ok := data["user_properties"].(map[string]any); ok {
		for k, v := range up {
			props[k] = v
		}
	}
	if c.cfg.CopyUserProperties {
		for k, v := range msg.GetUserProperties() {
			if _, exists := props[k]; !exists {
				props[k] = v
			}
		}
	}

	if err := c.msging.Send(topic, encoded, props); err != nil {
		return err
	}
	if metrics := c.Deps().Metrics; metrics != nil {
		metrics.Metrics.MessagesPublished.WithLabelValues(c.FlowName(), c.Name()).Inc()
	}

	if msg.Injected() || c.cfg.PropagateAcknowledgments {
		msg.CallAcknowledgements()
	}
	return nil
}
