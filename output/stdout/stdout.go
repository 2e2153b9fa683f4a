// Package stdout provides an output component that prints each message's
// selected input to standard output.
package stdout

import (
	"fmt"
	"io"
	"os"

	"github.com/SolaceDev/solace-ai-connector/component"
	"github.com/SolaceDev/solace-ai-connector/expression"
	"github.com/SolaceDev/solace-ai-connector/message"
)

// Info is the stdout output's module metadata.
var Info = component.Info{
	ClassName:   "StdoutOutput",
	Description: "Print each message's selected input to standard output",
}

// Output writes one line per message.
type Output struct {
	*component.Base
	writer io.Writer
}

// New is the stdout_output factory.
func New(base *component.Base) (component.Invoker, error) {
	return &Output{Base: base, writer: os.Stdout}, nil
}

// SetWriter replaces the output sink. Test helper; call before start.
func (c *Output) SetWriter(w io.Writer) { c.writer = w }

// Invoke prints the selected input. Returning nil makes this a terminal
// hop; the runtime acknowledges the message.
func (c *Output) Invoke(_ *message.Message, data any) (any, error) {
	if _, err := fmt.Fprintln(c.writer, expression.Textualize(data)); err != nil {
		return nil, err
	}
	return nil, nil
}
