// Package component defines the component execution model: the registry of
// component modules, the per-worker base runtime, and the worker-backed
// groups that consume events from bounded input queues.
//
// A component module implements the Invoker interface and registers a
// factory by name. Input stages additionally implement EventSource to
// source messages externally; output stages implement MessageSender to
// perform their external action instead of queue forwarding.
package component

import (
	"context"

	"github.com/SolaceDev/solace-ai-connector/message"
)

// ConfigParameter describes one entry of a component's configuration
// schema. Required parameters fail construction when absent; defaults are
// applied into the component config before the factory runs.
type ConfigParameter struct {
	Name        string
	Required    bool
	Default     any
	Description string
	Type        string
}

// Info holds static metadata about a component module.
type Info struct {
	ClassName        string
	Description      string
	ConfigParameters []ConfigParameter
	InputSchema      map[string]any
	OutputSchema     map[string]any
}

// Invoker is the core contract of a component: process one message's
// selected input data and return the result placed into the message's
// previous plane. Returning (nil, nil) is a terminal disposition; the
// runtime acknowledges the message.
type Invoker interface {
	Invoke(msg *message.Message, data any) (any, error)
}

// handedOff is the type of the HandedOff sentinel.
type handedOff struct{}

// HandedOff is returned from Invoke by components that deliver their
// message through a custom path (routing, iteration). The runtime neither
// forwards nor settles the message; ownership has transferred.
var HandedOff any = handedOff{}

// EventSource is implemented by input stages that source events
// externally (broker, stdin, timers) instead of reading an upstream
// queue. Implementations must register ack/nack callbacks on produced
// messages, honor context cancellation, and may return (nil, nil) to
// poll again.
type EventSource interface {
	GetNextEvent(ctx context.Context) (*message.Event, error)
}

// MessageSender is implemented by output stages. SendMessage performs the
// component's external action (publish, write) in place of forwarding to
// a downstream queue, and is responsible for the message's terminal
// disposition.
type MessageSender interface {
	SendMessage(msg *message.Message) error
}

// TimerHandler receives timer events registered through Base.AddTimer.
type TimerHandler interface {
	HandleTimerEvent(ev *message.TimerEvent)
}

// CacheExpiryHandler receives expiry events for cache entries the
// component owns.
type CacheExpiryHandler interface {
	HandleCacheExpiryEvent(ev *message.CacheExpiryEvent)
}

// Starter is implemented by components that perform I/O setup (broker
// connect, file open) before their workers run.
type Starter interface {
	StartComponent(ctx context.Context) error
}

// Stopper is implemented by components that must release resources when
// their workers exit.
type Stopper interface {
	StopComponent() error
}

// StreamChunk is one element of a streaming request/reply response.
type StreamChunk struct {
	Message *message.Message
	IsLast  bool
	Err     error
}

// RequestReplier is the broker request/reply contract exposed to
// components through their app. DoRequest publishes the message and waits
// for a single correlated reply. DoRequestStream yields chunks until the
// completion expression evaluates truthy on a reply or the request
// expires; the returned cancel function tears down the reply
// subscription early.
type RequestReplier interface {
	DoRequest(ctx context.Context, msg *message.Message) (*message.Message, error)
	DoRequestStream(ctx context.Context, msg *message.Message, completeExpression string) (<-chan StreamChunk, func(), error)
}

// AppHandle is the view of the owning app available to components.
type AppHandle interface {
	// AppName returns the app's configured name.
	AppName() string
	// GetAppConfig reads a key from the app-level config block.
	GetAppConfig(key string) (any, bool)
	// SendAppMessage injects a message directly into the app's broker
	// output stage. When output is not enabled it is a no-op that logs a
	// warning.
	SendAppMessage(payload any, topic string, userProperties map[string]any) error
	// RequestResponse returns the app's request/reply requester, or nil
	// when request_reply_enabled is false.
	RequestResponse() RequestReplier
}

// FlowSender delivers a message to another flow's input queue by name.
// The connector implements it.
type FlowSender interface {
	SendMessageToFlow(flowName string, msg *message.Message) error
}
