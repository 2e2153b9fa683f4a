package component

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SolaceDev/solace-ai-connector/config"
	"github.com/SolaceDev/solace-ai-connector/errors"
	"github.com/SolaceDev/solace-ai-connector/expression"
	"github.com/SolaceDev/solace-ai-connector/message"
	"github.com/SolaceDev/solace-ai-connector/transform"
)

// GroupOptions carries the flow-level wiring for a component group.
type GroupOptions struct {
	FlowName     string
	InstanceName string
	Index        int
	Deps         Dependencies
	App          AppHandle
	ErrorQueue   chan<- *message.Event
	PutErrors    bool
}

// Group is the num_instances parallel workers of one component, sharing a
// single bounded input queue. Within a group of one worker, input order is
// preserved end-to-end; across sibling workers no order is promised.
type Group struct {
	cfg        *config.ComponentConfig
	opts       GroupOptions
	queue      chan *message.Event
	next       *Group
	workers    []*Worker
	transforms *transform.Set
	logger     *slog.Logger

	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// Worker is one instance of a component consuming from the group's queue.
// Each worker owns its own component implementation.
type Worker struct {
	base  *Base
	impl  Invoker
	group *Group
	index int
}

// NewGroup constructs a component group: parses transforms, creates
// num_instances worker implementations through the registration's factory,
// and allocates the bounded input queue.
func NewGroup(reg *Registration, cfg *config.ComponentConfig, opts GroupOptions) (*Group, error) {
	transforms, err := transform.NewSet(cfg.InputTransforms)
	if err != nil {
		return nil, errors.Wrap(err, cfg.Name, "NewGroup", "input transform parse")
	}

	logger := opts.Deps.GetLogger().With(
		"flow", opts.FlowName,
		"component", cfg.Name,
	)

	g := &Group{
		cfg:        cfg,
		opts:       opts,
		queue:      make(chan *message.Event, cfg.QueueDepth),
		transforms: transforms,
		logger:     logger,
	}

	for i := 0; i < cfg.NumInstances; i++ {
		base := &Base{
			name:         cfg.Name,
			flowName:     opts.FlowName,
			instanceName: opts.InstanceName,
			index:        opts.Index,
			workerIndex:  i,
			cfg:          cfg,
			info:         reg.Info,
			deps:         opts.Deps,
			app:          opts.App,
			logger:       logger.With("worker", i),
		}
		if err := base.validateConfig(); err != nil {
			return nil, err
		}
		impl, err := reg.Factory(base)
		if err != nil {
			return nil, errors.Wrap(err, cfg.Name, "NewGroup", "factory execution")
		}
		worker := &Worker{base: base, impl: impl, group: g, index: i}
		base.worker = worker
		g.workers = append(g.workers, worker)
	}

	if opts.Deps.CacheService != nil && len(g.workers) > 0 {
		opts.Deps.CacheService.RegisterOwner(g.workers[0].base.CacheOwner(), g)
	}

	return g, nil
}

// Name returns the component name.
func (g *Group) Name() string { return g.cfg.Name }

// Config returns the component configuration.
func (g *Group) Config() *config.ComponentConfig { return g.cfg }

// SetNext wires the group's output target. The flow calls it during
// construction; the simplified-app synthesis overrides it for routed
// components.
func (g *Group) SetNext(next *Group) { g.next = next }

// Next returns the downstream group, or nil for the last group.
func (g *Group) Next() *Group { return g.next }

// RunContext returns the context bounding the group's run, or a
// background context before start.
func (g *Group) RunContext() context.Context {
	if g.runCtx == nil {
		return context.Background()
	}
	return g.runCtx
}

// InputQueue returns the group's bounded input queue.
func (g *Group) InputQueue() chan *message.Event { return g.queue }

// Workers returns the group's workers.
func (g *Group) Workers() []*Worker { return g.workers }

// Impl returns the component implementation of the first worker. Used by
// flow synthesis to reach stage-specific APIs.
func (g *Group) Impl() Invoker {
	if len(g.workers) == 0 {
		return nil
	}
	return g.workers[0].impl
}

// Start launches all workers. Components implementing Starter perform
// their I/O setup first; a setup failure aborts the whole start.
func (g *Group) Start(ctx context.Context) error {
	if g.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, g.cfg.Name, "Start", "state check")
	}
	g.runCtx, g.cancel = context.WithCancel(ctx)

	for _, w := range g.workers {
		if starter, ok := w.impl.(Starter); ok {
			if err := starter.StartComponent(g.runCtx); err != nil {
				g.cancel()
				return errors.Wrap(err, g.cfg.Name, "Start", "component setup")
			}
		}
	}
	for _, w := range g.workers {
		g.wg.Add(1)
		go func(w *Worker) {
			defer g.wg.Done()
			w.run(g.runCtx)
		}(w)
	}
	g.started = true
	return nil
}

// Stop terminates the group's workers. Queue-fed groups receive one STOP
// event per worker so in-flight messages drain first; event-source groups
// have their external wait cancelled out of band. A worker that does not
// finish within the timeout is abandoned after context cancellation.
func (g *Group) Stop(timeout time.Duration) error {
	if !g.started {
		return nil
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	_, eventSource := g.Impl().(EventSource)
	if eventSource {
		// Out-of-band shutdown signal: unblock the external wait.
		g.cancel()
	} else {
		for range g.workers {
			select {
			case g.queue <- message.NewStopEvent():
			case <-deadline.C:
				g.cancel()
				g.cleanup()
				g.started = false
				return errors.WrapTransient(errors.ErrStopTimeout, g.cfg.Name, "Stop", "stop event delivery")
			}
		}
	}

	var stopErr error
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-deadline.C:
		stopErr = errors.WrapTransient(errors.ErrStopTimeout, g.cfg.Name, "Stop", "worker join")
	}

	g.cancel()
	g.cleanup()
	g.started = false
	return stopErr
}

func (g *Group) cleanup() {
	if g.opts.Deps.TimerManager != nil {
		g.opts.Deps.TimerManager.PurgeOwner(g)
	}
	if g.opts.Deps.CacheService != nil && len(g.workers) > 0 {
		g.opts.Deps.CacheService.UnregisterOwner(g.workers[0].base.CacheOwner())
	}
	for _, w := range g.workers {
		if stopper, ok := w.impl.(Stopper); ok {
			if err := stopper.StopComponent(); err != nil {
				g.logger.Warn("Component stop failed", "error", err)
			}
		}
	}
}

// EnqueueEvent offers an event to the group's queue without blocking.
// Timer and cache services use it; a full queue drops the event.
func (g *Group) EnqueueEvent(ev *message.Event) bool {
	select {
	case g.queue <- ev:
		g.observeQueueDepth()
		return true
	default:
		return false
	}
}

// Enqueue delivers an event to the group's queue, blocking while the
// queue is full. Backpressure is enforced solely by this bound; the send
// aborts only when the runtime stops.
func (g *Group) Enqueue(ctx context.Context, ev *message.Event) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case g.queue <- ev:
		g.observeQueueDepth()
		return nil
	case <-ctx.Done():
		return errors.WrapTransient(errors.ErrShuttingDown, g.cfg.Name, "Enqueue", "queue send")
	}
}

func (g *Group) observeQueueDepth() {
	if g.opts.Deps.Metrics != nil {
		g.opts.Deps.Metrics.Metrics.QueueDepth.
			WithLabelValues(g.opts.FlowName, g.cfg.Name).Set(float64(len(g.queue)))
	}
}

// run is the worker loop: block for the next event, dispatch by kind,
// exit on STOP.
func (w *Worker) run(ctx context.Context) {
	for {
		ev, err := w.nextEvent(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			// Event-source failures that merit attention (poison
			// messages) surface on the error flow like invoke failures.
			w.handleProcessingError(nil, err)
			continue
		}
		if ev == nil {
			continue
		}

		switch ev.Type {
		case message.EventStop:
			return
		case message.EventMessage:
			w.processMessage(ev.Message)
		case message.EventTimer:
			if handler, ok := w.impl.(TimerHandler); ok {
				handler.HandleTimerEvent(ev.Timer)
			}
		case message.EventCacheExpiry:
			if handler, ok := w.impl.(CacheExpiryHandler); ok {
				handler.HandleCacheExpiryEvent(ev.CacheExpiry)
			}
		default:
			w.base.logger.Warn("Unknown event type", "type", ev.Type)
		}
	}
}

func (w *Worker) nextEvent(ctx context.Context) (*message.Event, error) {
	if source, ok := w.impl.(EventSource); ok {
		return source.GetNextEvent(ctx)
	}
	select {
	case ev := <-w.group.queue:
		w.group.observeQueueDepth()
		return ev, nil
	case <-ctx.Done():
		return nil, nil
	}
}

// processMessage runs the message pipeline for one event: input
// transforms, input selection, invoke, then output hand-off or terminal
// acknowledgement. Any failure settles the message negatively and emits
// an error event; the worker continues.
func (w *Worker) processMessage(msg *message.Message) {
	g := w.group
	metrics := g.opts.Deps.Metrics
	if metrics != nil {
		metrics.Metrics.MessagesReceived.WithLabelValues(g.opts.FlowName, g.cfg.Name).Inc()
	}

	ctx := expression.NewContext(msg)
	if err := g.transforms.Apply(ctx); err != nil {
		w.handleProcessingError(msg, err)
		return
	}

	data := w.selectInput(ctx)

	w.base.current = msg
	start := time.Now()
	result, err := w.impl.Invoke(msg, data)
	w.base.current = nil

	if metrics != nil {
		metrics.Metrics.ProcessingDuration.
			WithLabelValues(g.opts.FlowName, g.cfg.Name).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		w.handleProcessingError(msg, fmt.Errorf("%w: %w", errors.ErrInvokeFailed, err))
		return
	}

	if result == HandedOff {
		// Ownership transferred by the component (routing, iteration).
		w.observeProcessed("success")
		return
	}

	if msg.Discarded() || result == nil {
		// Terminal hop without output: a successful disposition.
		msg.CallAcknowledgements()
		w.observeProcessed("discarded")
		return
	}

	msg.SetPrevious(result)
	if err := w.deliver(msg); err != nil {
		w.handleProcessingError(msg, err)
		return
	}
	w.observeProcessed("success")
}

func (w *Worker) observeProcessed(status string) {
	if metrics := w.group.opts.Deps.Metrics; metrics != nil {
		metrics.Metrics.MessagesProcessed.
			WithLabelValues(w.group.opts.FlowName, w.group.cfg.Name, status).Inc()
	}
}

// selectInput computes the data handed to invoke: the input_selection
// value or expression, defaulting to the previous plane.
func (w *Worker) selectInput(ctx *expression.Context) any {
	sel := w.group.cfg.InputSelection
	if sel == nil {
		return expression.Evaluate(ctx, "previous")
	}
	if sel.HasValue {
		return sel.SourceValue
	}
	if sel.SourceExpression == "" {
		return expression.Evaluate(ctx, "previous")
	}
	return expression.Evaluate(ctx, sel.SourceExpression)
}

// deliver hands a message past this component: output stages publish it,
// intermediate stages enqueue to the downstream group, and the last
// component of a flow branch acknowledges it.
func (w *Worker) deliver(msg *message.Message) error {
	if sender, ok := w.impl.(MessageSender); ok {
		return sender.SendMessage(msg)
	}
	if next := w.group.next; next != nil {
		// Block against the downstream group's lifetime so an in-flight
		// message still drains while this group is stopping.
		return next.Enqueue(next.runCtx, message.NewMessageEvent(msg))
	}
	msg.CallAcknowledgements()
	return nil
}

// handleProcessingError settles the message negatively and reports the
// failure onto the error flow when one is configured. Nack registration
// precedes downstream enqueue, so the nack path wins over any later ack.
func (w *Worker) handleProcessingError(msg *message.Message, err error) {
	g := w.group
	kind := errors.Kind(err)
	g.logger.Error("Message processing failed", "error", err, "kind", kind)

	if metrics := g.opts.Deps.Metrics; metrics != nil {
		metrics.Metrics.ErrorsTotal.WithLabelValues(g.opts.FlowName, g.cfg.Name, kind).Inc()
	}
	w.observeProcessed("error")

	if msg != nil {
		msg.CallNegativeAcknowledgements(message.NackInfo{
			Reason:    err.Error(),
			Kind:      kind,
			Component: g.cfg.Name,
			Flow:      g.opts.FlowName,
		})
	}

	if g.opts.ErrorQueue == nil || !g.opts.PutErrors {
		return
	}
	errorPayload := map[string]any{
		"error": map[string]any{
			"message":        err.Error(),
			"exception_kind": kind,
		},
		"location": map[string]any{
			"instance_name":   g.opts.InstanceName,
			"flow_name":       g.opts.FlowName,
			"component_name":  g.cfg.Name,
			"component_index": g.opts.Index,
		},
	}
	if msg != nil {
		errorPayload["message"] = map[string]any{
			"payload":         msg.GetPayload(),
			"topic":           msg.GetTopic(),
			"user_properties": msg.GetUserProperties(),
			"user_data":       msg.GetUserData(),
			"previous":        msg.GetPrevious(),
		}
	}
	errMsg := message.New(errorPayload, "", nil)
	select {
	case g.opts.ErrorQueue <- message.NewMessageEvent(errMsg):
	default:
		g.logger.Warn("Error queue full, dropping error event")
	}
}

// Base returns the worker's base runtime. Exposed for tests and flow
// synthesis.
func (w *Worker) Base() *Base { return w.base }

// Impl returns the worker's component implementation.
func (w *Worker) Impl() Invoker { return w.impl }
