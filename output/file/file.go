// Package file provides an output component that appends each message's
// selected input to a file, one record per line.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/SolaceDev/solace-ai-connector/component"
	"github.com/SolaceDev/solace-ai-connector/errors"
	"github.com/SolaceDev/solace-ai-connector/expression"
	"github.com/SolaceDev/solace-ai-connector/message"
)

// Info is the file output's module metadata.
var Info = component.Info{
	ClassName:   "FileOutput",
	Description: "Append each message's selected input to a file",
	ConfigParameters: []component.ConfigParameter{
		{Name: "file_path", Required: true, Description: "Filesystem path to write to"},
		{Name: "format", Default: "jsonl", Description: "Record format: jsonl or text"},
		{Name: "append", Default: true, Description: "Append to an existing file instead of truncating"},
	},
}

// Output buffers writes to a single file; the buffer flushes after every
// record so tails observe output promptly, and the handle closes at
// component stop.
type Output struct {
	*component.Base

	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	format string
}

// New is the file_output factory.
func New(base *component.Base) (component.Invoker, error) {
	return &Output{Base: base}, nil
}

// StartComponent opens the target file.
func (c *Output) StartComponent(_ context.Context) error {
	path := c.GetConfigString("file_path", "")
	if path == "" {
		return errors.WrapFatal(errors.ErrMissingConfig, c.Name(), "StartComponent", "file_path check")
	}
	flags := os.O_CREATE | os.O_WRONLY
	if c.GetConfigBool("append", true) {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return errors.WrapTransient(err, c.Name(), "StartComponent", "open file")
	}

	c.mu.Lock()
	c.file = file
	c.writer = bufio.NewWriter(file)
	c.format = c.GetConfigString("format", "jsonl")
	c.mu.Unlock()
	return nil
}

// StopComponent flushes and closes the file.
func (c *Output) StopComponent() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writer != nil {
		if err := c.writer.Flush(); err != nil {
			c.Logger().Warn("File flush failed", "error", err)
		}
	}
	if c.file != nil {
		return c.file.Close()
	}
	return nil
}

// Invoke writes one record. Returning nil makes this a terminal hop; the
// runtime acknowledges the message.
func (c *Output) Invoke(_ *message.Message, data any) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writer == nil {
		return nil, errors.WrapInvalid(errors.ErrNotStarted, c.Name(), "Invoke", "file state check")
	}

	var line []byte
	if c.format == "text" {
		line = []byte(expression.Textualize(data))
	} else {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, errors.WrapInvalid(err, c.Name(), "Invoke", "record encode")
		}
		line = encoded
	}

	if _, err := c.writer.Write(append(line, '\n')); err != nil {
		return nil, errors.WrapTransient(err, c.Name(), "Invoke", "record write")
	}
	if err := c.writer.Flush(); err != nil {
		return nil, errors.WrapTransient(err, c.Name(), "Invoke", "record flush")
	}
	return nil, nil
}
