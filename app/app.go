// Package app groups flows under a named application. A standard app
// passes through to flow construction; a simplified app synthesizes one
// implicit flow from its broker section and component list, with
// subscription-based routing between them.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SolaceDev/solace-ai-connector/broker"
	"github.com/SolaceDev/solace-ai-connector/component"
	"github.com/SolaceDev/solace-ai-connector/config"
	"github.com/SolaceDev/solace-ai-connector/errors"
	"github.com/SolaceDev/solace-ai-connector/flow"
	"github.com/SolaceDev/solace-ai-connector/message"
)

// Reserved component names used by simplified-app synthesis.
const (
	brokerInputName  = "broker_input"
	brokerOutputName = "broker_output"
	routerName       = "subscription_router"
)

// Options carries the connector-level wiring for an app.
type Options struct {
	InstanceName string
	Registry     *component.Registry
	Deps         component.Dependencies
	ErrorQueue   chan<- *message.Event
}

// App is a named group of flows. In simplified mode it also owns the
// broker input/output pair and, when enabled, the request/reply
// requester.
type App struct {
	cfg    *config.AppConfig
	opts   Options
	logger *slog.Logger

	flows       []*flow.Flow
	requester   *broker.Requester
	outputGroup *component.Group

	started bool
}

// New constructs an app and its flows. Simplified apps synthesize their
// implicit flow here.
func New(cfg *config.AppConfig, opts Options) (*App, error) {
	a := &App{
		cfg:    cfg,
		opts:   opts,
		logger: opts.Deps.GetLogger().With("app", cfg.Name),
	}

	if cfg.Simplified() {
		if err := a.buildSimplified(); err != nil {
			return nil, err
		}
		return a, nil
	}

	for _, flowCfg := range cfg.Flows {
		instances := flowCfg.NumInstances
		if instances < 1 {
			instances = 1
		}
		for i := 0; i < instances; i++ {
			f, err := flow.New(flowCfg, a.flowOptions())
			if err != nil {
				return nil, errors.Wrap(err, cfg.Name, "New", fmt.Sprintf("flow %s construction", flowCfg.Name))
			}
			a.flows = append(a.flows, f)
		}
	}
	return a, nil
}

func (a *App) flowOptions() flow.Options {
	return flow.Options{
		InstanceName: a.opts.InstanceName,
		Registry:     a.opts.Registry,
		Deps:         a.opts.Deps,
		App:          a,
		ErrorQueue:   a.opts.ErrorQueue,
	}
}

// buildSimplified synthesizes the implicit flow: [broker_input?]
// [subscription_router?] [user components...] [broker_output?], wires the
// router's targets and points every routed component at the output stage.
func (a *App) buildSimplified() error {
	b := a.cfg.Broker
	useRouter := b.InputEnabled && len(a.cfg.Components) > 1

	flowCfg := &config.FlowConfig{
		Name:                  a.cfg.Name,
		PutErrorsInErrorQueue: true,
	}

	if b.InputEnabled {
		inputBroker := *b
		flowCfg.Components = append(flowCfg.Components, &config.ComponentConfig{
			Name:            brokerInputName,
			Module:          brokerInputName,
			NumInstances:    1,
			QueueDepth:      config.DefaultQueueDepth,
			ComponentConfig: map[string]any{"broker_config": &inputBroker},
			Subscriptions:   a.unionSubscriptions(),
		})
	}
	if useRouter {
		flowCfg.Components = append(flowCfg.Components, &config.ComponentConfig{
			Name:         routerName,
			Module:       routerName,
			NumInstances: 1,
			QueueDepth:   config.DefaultQueueDepth,
		})
	}
	flowCfg.Components = append(flowCfg.Components, a.cfg.Components...)
	if b.OutputEnabled {
		outputBroker := *b
		flowCfg.Components = append(flowCfg.Components, &config.ComponentConfig{
			Name:            brokerOutputName,
			Module:          brokerOutputName,
			NumInstances:    1,
			QueueDepth:      config.DefaultQueueDepth,
			ComponentConfig: map[string]any{"broker_config": &outputBroker},
		})
	}

	f, err := flow.New(flowCfg, a.flowOptions())
	if err != nil {
		return errors.Wrap(err, a.cfg.Name, "buildSimplified", "implicit flow construction")
	}
	a.flows = append(a.flows, f)

	groups := map[string]*component.Group{}
	for _, g := range f.Groups() {
		groups[g.Name()] = g
	}
	a.outputGroup = groups[brokerOutputName]

	// Routed components hand their output to the broker output stage (or
	// terminate), never to the next user component.
	if useRouter {
		for _, comp := range a.cfg.Components {
			if g := groups[comp.Name]; g != nil {
				g.SetNext(a.outputGroup)
			}
		}
		entries := make([]routeEntry, 0, len(a.cfg.Components))
		for _, comp := range a.cfg.Components {
			g := groups[comp.Name]
			if g == nil {
				continue
			}
			subs := make([]string, 0, len(comp.Subscriptions))
			for _, sub := range comp.Subscriptions {
				subs = append(subs, sub.Topic)
			}
			entries = append(entries, routeEntry{
				componentName: comp.Name,
				subscriptions: subs,
				target:        g,
			})
		}
		router, ok := groups[routerName].Impl().(*Router)
		if !ok {
			return errors.WrapFatal(errors.ErrInvalidConfig, a.cfg.Name, "buildSimplified", "router binding")
		}
		if err := router.bindRoutes(entries); err != nil {
			return errors.Wrap(err, a.cfg.Name, "buildSimplified", "route compilation")
		}
	}

	if b.RequestReplyEnabled {
		requester, err := broker.NewRequester(b, a.logger)
		if err != nil {
			return errors.Wrap(err, a.cfg.Name, "buildSimplified", "requester construction")
		}
		a.requester = requester
	}
	return nil
}

// unionSubscriptions applies every user component's subscriptions to the
// broker input's queue.
func (a *App) unionSubscriptions() []config.Subscription {
	seen := map[string]bool{}
	var out []config.Subscription
	for _, comp := range a.cfg.Components {
		for _, sub := range comp.Subscriptions {
			if seen[sub.Topic] {
				continue
			}
			seen[sub.Topic] = true
			out = append(out, sub)
		}
	}
	return out
}

// Name returns the app's configured name.
func (a *App) Name() string { return a.cfg.Name }

// Flows returns the app's flows.
func (a *App) Flows() []*flow.Flow { return a.flows }

// Start launches the requester and all flows.
func (a *App) Start(ctx context.Context) error {
	if a.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, a.cfg.Name, "Start", "state check")
	}
	if a.requester != nil {
		if err := a.requester.Start(ctx); err != nil {
			return errors.Wrap(err, a.cfg.Name, "Start", "requester start")
		}
	}
	for _, f := range a.flows {
		if err := f.Start(ctx); err != nil {
			return errors.Wrap(err, a.cfg.Name, "Start", fmt.Sprintf("flow %s start", f.Name()))
		}
	}
	a.started = true
	a.logger.Info("App started", "flows", len(a.flows))
	return nil
}

// Stop drains and stops all flows, then the requester.
func (a *App) Stop(timeout time.Duration) error {
	if !a.started {
		return nil
	}
	var firstErr error
	for _, f := range a.flows {
		if err := f.Stop(timeout); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.requester != nil {
		a.requester.Stop()
	}
	a.started = false
	return firstErr
}

// AppName implements component.AppHandle.
func (a *App) AppName() string { return a.cfg.Name }

// GetAppConfig reads a key from the app-level config block.
func (a *App) GetAppConfig(key string) (any, bool) {
	v, ok := a.cfg.Config[key]
	return v, ok
}

// SendAppMessage synthesizes a message with previous = {payload, topic,
// user_properties} and injects it directly into the broker output stage's
// queue. The output acknowledges it after broker confirmation. Without an
// enabled output this is a no-op with a logged warning.
func (a *App) SendAppMessage(payload any, topic string, userProperties map[string]any) error {
	if a.outputGroup == nil {
		a.logger.Warn("SendMessage ignored: broker output is not enabled", "topic", topic)
		return nil
	}
	msg := message.New(payload, topic, userProperties)
	msg.SetPrevious(map[string]any{
		"payload":         payload,
		"topic":           topic,
		"user_properties": userProperties,
	})
	msg.MarkInjected()
	return a.outputGroup.Enqueue(a.outputGroup.RunContext(), message.NewMessageEvent(msg))
}

// RequestResponse returns the app's request/reply requester, or nil when
// request_reply_enabled is false.
func (a *App) RequestResponse() component.RequestReplier {
	if a.requester == nil {
		return nil
	}
	return a.requester
}
