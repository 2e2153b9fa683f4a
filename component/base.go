package component

import (
	"fmt"
	"log/slog"

	"github.com/SolaceDev/solace-ai-connector/cache"
	"github.com/SolaceDev/solace-ai-connector/config"
	"github.com/SolaceDev/solace-ai-connector/errors"
	"github.com/SolaceDev/solace-ai-connector/expression"
	"github.com/SolaceDev/solace-ai-connector/message"
)

// Base is the per-worker runtime handed to a component factory. It
// provides configuration access with deferred-expression resolution,
// timer and cache registration, output emission and logging. Component
// implementations embed it.
type Base struct {
	name         string
	flowName     string
	instanceName string
	index        int
	workerIndex  int

	cfg    *config.ComponentConfig
	info   Info
	deps   Dependencies
	app    AppHandle
	logger *slog.Logger

	worker *Worker // set by the group after construction

	current *message.Message // message being processed by this worker
}

// Name returns the configured component name.
func (b *Base) Name() string { return b.name }

// FlowName returns the owning flow's name.
func (b *Base) FlowName() string { return b.flowName }

// Index returns the component's position within its flow.
func (b *Base) Index() int { return b.index }

// WorkerIndex returns this worker's index within the component group.
func (b *Base) WorkerIndex() int { return b.workerIndex }

// Logger returns a logger scoped to this component instance.
func (b *Base) Logger() *slog.Logger { return b.logger }

// App returns the owning app handle, or nil for flows constructed without
// an app.
func (b *Base) App() AppHandle { return b.app }

// Config returns the component's resolved configuration.
func (b *Base) Config() *config.ComponentConfig { return b.cfg }

// Deps returns the injected runtime services.
func (b *Base) Deps() Dependencies { return b.deps }

// GetConfig resolves a configuration key: the component's own
// component_config first, then the parent app's config block, then the
// component's static default. A deferred evaluate_expression value is
// evaluated against the message currently being processed; accessing one
// outside message processing is an error.
func (b *Base) GetConfig(key string, defaultValue any) (any, error) {
	val, found := b.lookupConfig(key)
	if !found {
		return defaultValue, nil
	}
	if !config.IsDeferred(val) {
		return val, nil
	}
	if b.current == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: config key %q", errors.ErrNoMessageContext, key),
			b.name, "GetConfig", "deferred config resolution")
	}
	return config.ResolveValue(val, expression.NewContext(b.current))
}

func (b *Base) lookupConfig(key string) (any, bool) {
	if v, ok := b.cfg.ComponentConfig[key]; ok {
		return v, true
	}
	if b.app != nil {
		if v, ok := b.app.GetAppConfig(key); ok {
			return v, true
		}
	}
	for _, param := range b.info.ConfigParameters {
		if param.Name == key && param.Default != nil {
			return param.Default, true
		}
	}
	return nil, false
}

// GetConfigString resolves a configuration key as a string.
func (b *Base) GetConfigString(key, defaultValue string) string {
	val, err := b.GetConfig(key, defaultValue)
	if err != nil || val == nil {
		return defaultValue
	}
	return expression.Textualize(val)
}

// GetConfigInt resolves a configuration key as an int.
func (b *Base) GetConfigInt(key string, defaultValue int) int {
	val, err := b.GetConfig(key, defaultValue)
	if err != nil || val == nil {
		return defaultValue
	}
	coerced, err := expression.Coerce(val, "int")
	if err != nil {
		return defaultValue
	}
	return coerced.(int)
}

// GetConfigBool resolves a configuration key as a bool.
func (b *Base) GetConfigBool(key string, defaultValue bool) bool {
	val, err := b.GetConfig(key, defaultValue)
	if err != nil || val == nil {
		return defaultValue
	}
	coerced, err := expression.Coerce(val, "bool")
	if err != nil {
		return defaultValue
	}
	return coerced.(bool)
}

// CurrentMessage returns the message this worker is processing, or nil.
func (b *Base) CurrentMessage() *message.Message { return b.current }

// DiscardCurrentMessage marks the current message so the runtime
// suppresses this component's output and acknowledges the message.
func (b *Base) DiscardCurrentMessage() {
	if b.current != nil {
		b.current.Discard()
	}
}

// AddTimer registers a timer for this component. Firings are delivered as
// TIMER events on the component's input queue.
func (b *Base) AddTimer(delayMS int64, timerID string, intervalMS int64, payload any) {
	if b.deps.TimerManager == nil || b.worker == nil {
		return
	}
	b.deps.TimerManager.AddTimer(delayMS, b.worker.group, timerID, intervalMS, payload)
}

// CancelTimer cancels a previously registered timer. An already-enqueued
// firing may still be delivered.
func (b *Base) CancelTimer(timerID string) {
	if b.deps.TimerManager == nil || b.worker == nil {
		return
	}
	b.deps.TimerManager.CancelTimer(b.worker.group, timerID)
}

// CacheService returns the shared cache service, or nil.
func (b *Base) CacheService() *cache.Service { return b.deps.CacheService }

// CacheOwner returns the owner name under which this component registers
// cache entries; expiry events route back to the component's queue.
func (b *Base) CacheOwner() string {
	return fmt.Sprintf("%s.%s.%s", b.instanceName, b.flowName, b.name)
}

// SendOutput emits a message downstream through the normal post-invoke
// path: output stages publish it, intermediate stages enqueue it, and a
// terminal stage acknowledges it. Used by components that emit more than
// one message per input.
func (b *Base) SendOutput(msg *message.Message) error {
	if b.worker == nil {
		return errors.WrapInvalid(errors.ErrNotStarted, b.name, "SendOutput", "worker binding check")
	}
	return b.worker.deliver(msg)
}

// SendToFlow delivers a message to another flow's input queue.
func (b *Base) SendToFlow(flowName string, msg *message.Message) error {
	if b.deps.FlowSender == nil {
		return errors.WrapInvalid(errors.ErrNotStarted, b.name, "SendToFlow", "flow sender check")
	}
	return b.deps.FlowSender.SendMessageToFlow(flowName, msg)
}

// InputQueue exposes the component group's input queue for EventSource
// implementations that multiplex an external source with queued timer,
// cache and stop events.
func (b *Base) InputQueue() <-chan *message.Event {
	if b.worker == nil {
		return nil
	}
	return b.worker.group.queue
}

// validateConfig enforces required parameters and applies schema defaults
// into the component config, mirroring the module-info contract.
func (b *Base) validateConfig() error {
	if b.cfg.ComponentConfig == nil {
		b.cfg.ComponentConfig = map[string]any{}
	}
	for _, param := range b.info.ConfigParameters {
		if param.Name == "" {
			return errors.WrapFatal(
				fmt.Errorf("config parameter schema for module %s has no name", b.cfg.Module),
				b.name, "validateConfig", "schema check")
		}
		_, present := b.cfg.ComponentConfig[param.Name]
		if param.Required && !present {
			if b.app != nil {
				if _, ok := b.app.GetAppConfig(param.Name); ok {
					continue
				}
			}
			return errors.WrapFatal(
				fmt.Errorf("%w: parameter %q is required for component %s",
					errors.ErrMissingConfig, param.Name, b.name),
				b.name, "validateConfig", "required parameter check")
		}
		if !present && param.Default != nil {
			// An app-level value outranks the static default.
			if b.app != nil {
				if _, ok := b.app.GetAppConfig(param.Name); ok {
					continue
				}
			}
			b.cfg.ComponentConfig[param.Name] = param.Default
		}
	}
	return nil
}
