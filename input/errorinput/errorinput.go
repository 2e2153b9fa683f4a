// Package errorinput provides the input stage of an error flow: it
// consumes the connector's internal error queue, turning runtime error
// events into ordinary messages for downstream logging or publishing.
package errorinput

import (
	"context"

	"github.com/SolaceDev/solace-ai-connector/component"
	"github.com/SolaceDev/solace-ai-connector/errors"
	"github.com/SolaceDev/solace-ai-connector/message"
)

// Info is the error input's module metadata.
var Info = component.Info{
	ClassName:   "ErrorInput",
	Description: "Receive error events produced by the runtime; first component of an error flow",
	OutputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"error":    map[string]any{"type": "object"},
			"message":  map[string]any{"type": "object"},
			"location": map[string]any{"type": "object"},
		},
	},
}

// Input consumes the connector's error queue.
type Input struct {
	*component.Base
	source <-chan *message.Event
}

// New is the error_input factory.
func New(base *component.Base) (component.Invoker, error) {
	if base.Deps().ErrorEvents == nil {
		return nil, errors.WrapFatal(errors.ErrInvalidConfig, "ErrorInput", "New", "error queue availability")
	}
	return &Input{Base: base, source: base.Deps().ErrorEvents}, nil
}

// GetNextEvent blocks for the next error event, multiplexed with the
// component's own queue.
func (c *Input) GetNextEvent(ctx context.Context) (*message.Event, error) {
	select {
	case ev := <-c.InputQueue():
		return ev, nil
	case ev, ok := <-c.source:
		if !ok {
			<-ctx.Done()
			return nil, nil
		}
		return ev, nil
	case <-ctx.Done():
		return nil, nil
	}
}

// Invoke exposes the error event's payload for downstream components.
func (c *Input) Invoke(msg *message.Message, _ any) (any, error) {
	return msg.GetPayload(), nil
}
