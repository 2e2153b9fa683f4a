// Package flow composes component groups into a pipeline. A flow owns an
// ordered list of groups; group i's output target is group i+1's bounded
// input queue. The first group has no upstream queue; the last group's
// output is either a real sink or acknowledged and dropped.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SolaceDev/solace-ai-connector/component"
	"github.com/SolaceDev/solace-ai-connector/config"
	"github.com/SolaceDev/solace-ai-connector/errors"
	"github.com/SolaceDev/solace-ai-connector/message"
)

// Options carries the connector-level wiring for a flow.
type Options struct {
	InstanceName string
	Registry     *component.Registry
	Deps         component.Dependencies
	App          component.AppHandle
	ErrorQueue   chan<- *message.Event
}

// Flow is an ordered chain of component groups connected by bounded
// queues.
type Flow struct {
	name   string
	cfg    *config.FlowConfig
	groups []*component.Group
	logger *slog.Logger

	started bool
}

// New constructs a flow's component groups from configuration and wires
// them linearly. Disabled components are skipped.
func New(cfg *config.FlowConfig, opts Options) (*Flow, error) {
	if opts.Registry == nil {
		return nil, errors.WrapFatal(errors.ErrInvalidConfig, "flow", "New", "registry check")
	}
	f := &Flow{
		name:   cfg.Name,
		cfg:    cfg,
		logger: opts.Deps.GetLogger().With("flow", cfg.Name),
	}

	for index, compCfg := range cfg.Components {
		if compCfg.Disabled {
			f.logger.Warn("Component is disabled and will not be created", "component", compCfg.Name)
			continue
		}
		reg, err := opts.Registry.Get(compCfg.Module)
		if err != nil {
			return nil, errors.Wrap(err, cfg.Name, "New", fmt.Sprintf("component %s lookup", compCfg.Name))
		}
		group, err := component.NewGroup(reg, compCfg, component.GroupOptions{
			FlowName:     cfg.Name,
			InstanceName: opts.InstanceName,
			Index:        index,
			Deps:         opts.Deps,
			App:          opts.App,
			ErrorQueue:   opts.ErrorQueue,
			PutErrors:    cfg.PutErrorsInErrorQueue,
		})
		if err != nil {
			return nil, errors.Wrap(err, cfg.Name, "New", fmt.Sprintf("component %s construction", compCfg.Name))
		}
		f.groups = append(f.groups, group)
	}

	if len(f.groups) == 0 {
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: no components created for flow %s", errors.ErrInvalidConfig, cfg.Name),
			"flow", "New", "component check")
	}

	for i := 0; i < len(f.groups)-1; i++ {
		f.groups[i].SetNext(f.groups[i+1])
	}

	return f, nil
}

// Name returns the flow's configured name.
func (f *Flow) Name() string { return f.name }

// Groups returns the flow's component groups in pipeline order.
func (f *Flow) Groups() []*component.Group { return f.groups }

// InputQueue returns the first group's input queue.
func (f *Flow) InputQueue() chan *message.Event {
	return f.groups[0].InputQueue()
}

// EnqueueEvent offers an event to the flow's input queue, blocking while
// the queue is full.
func (f *Flow) EnqueueEvent(ctx context.Context, ev *message.Event) error {
	return f.groups[0].Enqueue(ctx, ev)
}

// Start launches all component workers. Groups start in reverse order so
// every downstream queue has consumers before its producer runs.
func (f *Flow) Start(ctx context.Context) error {
	if f.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, f.name, "Start", "state check")
	}
	for i := len(f.groups) - 1; i >= 0; i-- {
		if err := f.groups[i].Start(ctx); err != nil {
			// Unwind the groups already running.
			for j := i + 1; j < len(f.groups); j++ {
				_ = f.groups[j].Stop(time.Second)
			}
			return errors.Wrap(err, f.name, "Start", fmt.Sprintf("group %s start", f.groups[i].Name()))
		}
	}
	f.started = true
	f.logger.Info("Flow started", "components", len(f.groups))
	return nil
}

// Stop drains the pipeline front to back: each group is stopped and
// joined before its downstream, so in-flight messages complete within
// the per-group deadline.
func (f *Flow) Stop(timeout time.Duration) error {
	if !f.started {
		return nil
	}
	var firstErr error
	for _, group := range f.groups {
		if err := group.Stop(timeout); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.started = false
	f.logger.Info("Flow stopped")
	return firstErr
}
