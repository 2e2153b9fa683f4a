// Package aggregate provides a component that collects its selected
// inputs into a list, emitting the batch when it reaches max_items or
// when max_time_ms elapses since the first queued item.
package aggregate

import (
	"sync"

	"github.com/SolaceDev/solace-ai-connector/component"
	"github.com/SolaceDev/solace-ai-connector/message"
)

// flushTimerID identifies the batch flush timer.
const flushTimerID = "aggregate_flush"

// Info is the aggregate module metadata.
var Info = component.Info{
	ClassName:   "Aggregate",
	Description: "Collect messages into a list and emit the batch on size or time",
	ConfigParameters: []component.ConfigParameter{
		{Name: "max_items", Default: 10, Description: "Batch size that triggers an emit"},
		{Name: "max_time_ms", Default: 1000, Description: "Milliseconds after the first item before a timer flush"},
	},
	InputSchema:  map[string]any{"type": "object"},
	OutputSchema: map[string]any{"type": "array"},
}

// Processor is the aggregate component. Each worker instance keeps its
// own batch; use num_instances 1 for a single consolidated batch.
type Processor struct {
	*component.Base

	mu    sync.Mutex
	items []any
}

// New is the aggregate factory.
func New(base *component.Base) (component.Invoker, error) {
	return &Processor{Base: base}, nil
}

// Invoke queues the selected input. Intermediate messages are terminal
// (the runtime acknowledges them); the message completing the batch
// carries the list downstream.
func (c *Processor) Invoke(_ *message.Message, data any) (any, error) {
	maxItems := c.GetConfigInt("max_items", 10)

	c.mu.Lock()
	if len(c.items) == 0 {
		c.AddTimer(int64(c.GetConfigInt("max_time_ms", 1000)), flushTimerID, 0, nil)
	}
	c.items = append(c.items, data)
	if len(c.items) < maxItems {
		c.mu.Unlock()
		return nil, nil
	}
	batch := c.items
	c.items = nil
	c.mu.Unlock()

	c.CancelTimer(flushTimerID)
	return batch, nil
}

// HandleTimerEvent flushes a partial batch when max_time_ms elapses. The
// flushed batch travels in a synthesized message.
func (c *Processor) HandleTimerEvent(ev *message.TimerEvent) {
	if ev.TimerID != flushTimerID {
		return
	}
	c.mu.Lock()
	batch := c.items
	c.items = nil
	c.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	msg := message.New(nil, "", nil)
	msg.SetPrevious(batch)
	if err := c.SendOutput(msg); err != nil {
		c.Logger().Error("Batch flush failed", "error", err)
	}
}
