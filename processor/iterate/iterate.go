// Package iterate provides a component that takes a single message whose
// selected input is a list and emits each element as a separate message.
// The input message's acknowledgement fires only after every emitted
// sibling reaches a terminal disposition.
package iterate

import (
	"fmt"

	"github.com/SolaceDev/solace-ai-connector/component"
	"github.com/SolaceDev/solace-ai-connector/message"
)

// Info is the iterate module metadata.
var Info = component.Info{
	ClassName:   "Iterate",
	Description: "Take a single message that is a list and output each item as a separate message",
	InputSchema: map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "object"},
	},
}

// Processor is the iterate component.
type Processor struct {
	*component.Base
}

// New is the iterate factory.
func New(base *component.Base) (component.Invoker, error) {
	return &Processor{Base: base}, nil
}

// Invoke emits one downstream message per list element. An empty list is
// a terminal disposition for the input message.
func (c *Processor) Invoke(msg *message.Message, data any) (any, error) {
	items, ok := data.([]any)
	if !ok {
		return nil, fmt.Errorf("the iterate component requires the input to be a list, got %T", data)
	}
	if len(items) == 0 {
		return nil, nil
	}

	state := message.NewIteration(msg, len(items))
	for i, item := range items {
		child := state.NewChild(item)
		child.SetPrevious(item)
		if err := c.SendOutput(child); err != nil {
			state.Abort(len(items)-i, message.NackInfo{
				Reason:    err.Error(),
				Component: c.Name(),
				Flow:      c.FlowName(),
			})
			return component.HandedOff, nil
		}
	}
	return component.HandedOff, nil
}
