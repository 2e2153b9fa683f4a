// Package stdin provides an input component that reads lines from
// standard input and emits each as a message.
package stdin

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"

	"github.com/SolaceDev/solace-ai-connector/component"
	"github.com/SolaceDev/solace-ai-connector/message"
)

// Info is the stdin input's module metadata.
var Info = component.Info{
	ClassName:   "StdinInput",
	Description: "Read lines from standard input; each line becomes a message payload",
	OutputSchema: map[string]any{
		"type": "string",
	},
}

// Input reads newline-delimited text from a reader (stdin by default).
type Input struct {
	*component.Base

	reader   io.Reader
	lines    chan string
	scanOnce sync.Once
}

// New is the stdin_input factory.
func New(base *component.Base) (component.Invoker, error) {
	return &Input{
		Base:   base,
		reader: os.Stdin,
		lines:  make(chan string),
	}, nil
}

// SetReader replaces the input source. Test helper; call before start.
func (c *Input) SetReader(r io.Reader) { c.reader = r }

// GetNextEvent blocks for the next input line, multiplexed with the
// component's own queue for timer and stop delivery.
func (c *Input) GetNextEvent(ctx context.Context) (*message.Event, error) {
	c.scanOnce.Do(func() {
		go c.scan()
	})

	select {
	case ev := <-c.InputQueue():
		return ev, nil
	case line, ok := <-c.lines:
		if !ok {
			// Input exhausted; wait for shutdown.
			<-ctx.Done()
			return nil, nil
		}
		return message.NewMessageEvent(message.New(line, "", nil)), nil
	case <-ctx.Done():
		return nil, nil
	}
}

func (c *Input) scan() {
	defer close(c.lines)
	scanner := bufio.NewScanner(c.reader)
	for scanner.Scan() {
		c.lines <- scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		c.Logger().Warn("Stdin read failed", "error", err)
	}
}

// Invoke passes the line payload through to the previous plane.
func (c *Input) Invoke(msg *message.Message, _ any) (any, error) {
	return msg.GetPayload(), nil
}
