// Package delay provides a component that holds each message for a
// configured duration before passing its selected input through. The
// worker blocks for the delay; queue backpressure bounds the effect
// upstream.
package delay

import (
	"time"

	"github.com/SolaceDev/solace-ai-connector/component"
	"github.com/SolaceDev/solace-ai-connector/message"
)

// Info is the delay module metadata.
var Info = component.Info{
	ClassName:   "Delay",
	Description: "Hold each message for a configured delay before passing it through",
	ConfigParameters: []component.ConfigParameter{
		{Name: "delay_ms", Default: 1000, Description: "Delay applied to each message in milliseconds"},
	},
}

// Processor is the delay component.
type Processor struct {
	*component.Base
}

// New is the delay factory.
func New(base *component.Base) (component.Invoker, error) {
	return &Processor{Base: base}, nil
}

// Invoke sleeps for delay_ms, then passes the selected input through.
// delay_ms may be a deferred expression evaluated per message.
func (c *Processor) Invoke(_ *message.Message, data any) (any, error) {
	delay := c.GetConfigInt("delay_ms", 1000)
	if delay > 0 {
		time.Sleep(time.Duration(delay) * time.Millisecond)
	}
	return data, nil
}
