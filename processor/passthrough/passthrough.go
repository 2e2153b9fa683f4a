// Package passthrough provides a component that passes its selected
// input through unchanged. Useful as a pipeline placeholder and for
// exercising transforms.
package passthrough

import (
	"github.com/SolaceDev/solace-ai-connector/component"
	"github.com/SolaceDev/solace-ai-connector/message"
)

// Info is the pass-through module metadata.
var Info = component.Info{
	ClassName:   "PassThrough",
	Description: "Pass the selected input through unchanged",
}

// Processor is the pass-through component.
type Processor struct {
	*component.Base
}

// New is the pass_through factory.
func New(base *component.Base) (component.Invoker, error) {
	return &Processor{Base: base}, nil
}

// Invoke returns the selected input unchanged.
func (c *Processor) Invoke(_ *message.Message, data any) (any, error) {
	return data, nil
}
