// Package connector is the top-level orchestrator: it takes a resolved
// configuration, constructs apps (including the backward-compatible
// top-level flows form), wires the error flow, and owns the shared timer
// and cache services.
package connector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SolaceDev/solace-ai-connector/app"
	"github.com/SolaceDev/solace-ai-connector/cache"
	"github.com/SolaceDev/solace-ai-connector/component"
	"github.com/SolaceDev/solace-ai-connector/componentregistry"
	"github.com/SolaceDev/solace-ai-connector/config"
	"github.com/SolaceDev/solace-ai-connector/errors"
	"github.com/SolaceDev/solace-ai-connector/flow"
	"github.com/SolaceDev/solace-ai-connector/message"
	"github.com/SolaceDev/solace-ai-connector/metric"
	"github.com/SolaceDev/solace-ai-connector/timer"
)

// errorQueueDepth bounds the internal error queue. Producers never block
// on it; excess error events are dropped with a log line.
const errorQueueDepth = 100

// Option customizes connector construction.
type Option func(*Connector)

// WithLogger sets the root logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Connector) { c.logger = logger }
}

// WithRegistry replaces the default component registry. Use it to add
// code-defined component modules before startup.
func WithRegistry(registry *component.Registry) Option {
	return func(c *Connector) { c.registry = registry }
}

// Connector owns the runtime: apps, flows, shared services and the error
// queue.
type Connector struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *component.Registry

	timerManager *timer.Manager
	cacheService *cache.Service
	metrics      *metric.MetricsRegistry
	errorQueue   chan *message.Event

	apps []*app.App

	flowsMu sync.RWMutex
	flows   map[string]*flow.Flow

	runCtx  context.Context
	cancel  context.CancelFunc
	started bool
}

// New constructs a connector from a validated configuration. Any
// configuration error is fatal: the connector refuses to start.
func New(cfg *config.Config, opts ...Option) (*Connector, error) {
	if cfg == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "connector", "New", "config check")
	}

	c := &Connector{
		cfg:        cfg,
		errorQueue: make(chan *message.Event, errorQueueDepth),
		flows:      map[string]*flow.Flow{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.registry == nil {
		registry, err := componentregistry.NewRegistry()
		if err != nil {
			return nil, err
		}
		c.registry = registry
	}

	c.metrics = metric.NewMetricsRegistry()
	c.timerManager = timer.NewManager(c.logger)

	backend, err := newCacheBackend(cfg.Cache)
	if err != nil {
		return nil, err
	}
	c.cacheService = cache.NewService(backend, c.logger)

	deps := component.Dependencies{
		TimerManager: c.timerManager,
		CacheService: c.cacheService,
		Metrics:      c.metrics,
		Logger:       c.logger,
		FlowSender:   c,
		ErrorEvents:  c.errorQueue,
	}

	for _, appCfg := range cfg.Apps {
		for i := 0; i < appCfg.NumInstances; i++ {
			instance, err := app.New(appCfg, app.Options{
				InstanceName: cfg.InstanceName,
				Registry:     c.registry,
				Deps:         deps,
				ErrorQueue:   c.errorQueue,
			})
			if err != nil {
				return nil, errors.Wrap(err, "connector", "New", fmt.Sprintf("app %s construction", appCfg.Name))
			}
			c.apps = append(c.apps, instance)
			for _, f := range instance.Flows() {
				c.flows[f.Name()] = f
			}
		}
	}

	return c, nil
}

func newCacheBackend(cfg config.CacheConfig) (cache.Backend, error) {
	switch cfg.Backend {
	case "", "memory":
		return cache.NewMemoryBackend(), nil
	case "pebble":
		if cfg.Path == "" {
			return nil, errors.WrapFatal(
				fmt.Errorf("%w: cache.path is required for the pebble backend", errors.ErrInvalidConfig),
				"connector", "newCacheBackend", "path check")
		}
		return cache.NewPebbleBackend(cfg.Path)
	default:
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: unknown cache backend %q", errors.ErrInvalidConfig, cfg.Backend),
			"connector", "newCacheBackend", "backend lookup")
	}
}

// Start launches the shared services and all apps.
func (c *Connector) Start(ctx context.Context) error {
	if c.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "connector", "Start", "state check")
	}
	c.runCtx, c.cancel = context.WithCancel(ctx)

	if err := c.timerManager.Start(c.runCtx); err != nil {
		return errors.Wrap(err, "connector", "Start", "timer manager start")
	}
	if err := c.cacheService.Start(c.runCtx); err != nil {
		return errors.Wrap(err, "connector", "Start", "cache service start")
	}

	for i, instance := range c.apps {
		if err := instance.Start(c.runCtx); err != nil {
			for j := 0; j < i; j++ {
				_ = c.apps[j].Stop(time.Second)
			}
			c.timerManager.Stop()
			c.cacheService.Stop()
			return errors.Wrap(err, "connector", "Start", fmt.Sprintf("app %s start", instance.Name()))
		}
	}

	c.started = true
	c.logger.Info("Connector started", "apps", len(c.apps))
	return nil
}

// Stop drains all apps, then the shared services. Each flow gets the
// given per-group timeout for graceful drain.
func (c *Connector) Stop(timeout time.Duration) error {
	if !c.started {
		return nil
	}
	var firstErr error
	for _, instance := range c.apps {
		if err := instance.Stop(timeout); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.timerManager.Stop()
	c.cacheService.Stop()
	c.cancel()
	c.started = false
	c.logger.Info("Connector stopped")
	return firstErr
}

// SendMessageToFlow delivers a message to a named flow's input queue.
func (c *Connector) SendMessageToFlow(flowName string, msg *message.Message) error {
	c.flowsMu.RLock()
	f := c.flows[flowName]
	c.flowsMu.RUnlock()
	if f == nil {
		return errors.WrapInvalid(
			fmt.Errorf("flow %q not found", flowName),
			"connector", "SendMessageToFlow", "flow lookup")
	}
	return f.EnqueueEvent(c.runCtx, message.NewMessageEvent(msg))
}

// Apps returns the constructed app instances.
func (c *Connector) Apps() []*app.App { return c.apps }

// GetApp returns an app instance by name, or nil.
func (c *Connector) GetApp(name string) *app.App {
	for _, instance := range c.apps {
		if instance.Name() == name {
			return instance
		}
	}
	return nil
}

// GetFlow returns a flow by name, or nil.
func (c *Connector) GetFlow(name string) *flow.Flow {
	c.flowsMu.RLock()
	defer c.flowsMu.RUnlock()
	return c.flows[name]
}

// Metrics returns the connector's metrics registry.
func (c *Connector) Metrics() *metric.MetricsRegistry { return c.metrics }

// CacheService returns the shared cache service.
func (c *Connector) CacheService() *cache.Service { return c.cacheService }

// TimerManager returns the shared timer manager.
func (c *Connector) TimerManager() *timer.Manager { return c.timerManager }
