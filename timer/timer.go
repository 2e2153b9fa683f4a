// Package timer provides the per-component timer service. Components
// register one-shot and periodic timers; firings are delivered as TIMER
// events on the owning component's input queue.
//
// The manager uses the runtime's monotonic clock. Periodic timers
// reschedule from the last firing time, not from delivery. Cancellation is
// race-safe: an already-enqueued-but-unconsumed event may still be
// delivered and must be tolerated by handlers.
package timer

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/SolaceDev/solace-ai-connector/message"
)

// Enqueuer receives timer events. Component groups implement it with their
// input queue. EnqueueEvent reports false when the event could not be
// delivered (queue full or stopped).
type Enqueuer interface {
	EnqueueEvent(ev *message.Event) bool
}

// entry is one scheduled timer.
type entry struct {
	expiration time.Time
	interval   time.Duration // 0 for one-shot
	owner      Enqueuer
	timerID    string
	payload    any
	index      int
}

// timerHeap orders entries by expiration.
type timerHeap []*entry

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].expiration.Before(h[j].expiration) }
func (h timerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x any)        { e := x.(*entry); e.index = len(*h); *h = append(*h, e) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Manager schedules timers for all components of a connector instance.
type Manager struct {
	mu     sync.Mutex
	timers timerHeap
	wake   chan struct{}
	logger *slog.Logger

	lifecycleMu sync.Mutex
	started     bool
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewManager creates a timer manager. Start must be called before timers
// fire.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		wake:   make(chan struct{}, 1),
		logger: logger,
	}
}

// Start launches the scheduling loop.
func (m *Manager) Start(ctx context.Context) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()
	if m.started {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.started = true
	go m.run(runCtx)
	return nil
}

// Stop terminates the scheduling loop and drops all pending timers.
func (m *Manager) Stop() {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()
	if !m.started {
		return
	}
	m.cancel()
	<-m.done
	m.mu.Lock()
	m.timers = nil
	m.mu.Unlock()
	m.started = false
}

// AddTimer schedules a timer for the owning component. A non-zero
// intervalMS makes the timer periodic; the period is measured from the
// previous firing time.
func (m *Manager) AddTimer(delayMS int64, owner Enqueuer, timerID string, intervalMS int64, payload any) {
	if owner == nil || delayMS < 0 {
		return
	}
	e := &entry{
		expiration: time.Now().Add(time.Duration(delayMS) * time.Millisecond),
		interval:   time.Duration(intervalMS) * time.Millisecond,
		owner:      owner,
		timerID:    timerID,
		payload:    payload,
	}
	m.mu.Lock()
	heap.Push(&m.timers, e)
	m.mu.Unlock()
	m.kick()
}

// CancelTimer removes all timers with the given id owned by the component.
// An event already delivered to the queue is not recalled.
func (m *Manager) CancelTimer(owner Enqueuer, timerID string) {
	m.mu.Lock()
	m.removeMatching(func(e *entry) bool {
		return e.owner == owner && e.timerID == timerID
	})
	m.mu.Unlock()
}

// PurgeOwner removes all timers owned by the component. Called at
// component stop.
func (m *Manager) PurgeOwner(owner Enqueuer) {
	m.mu.Lock()
	m.removeMatching(func(e *entry) bool { return e.owner == owner })
	m.mu.Unlock()
}

func (m *Manager) removeMatching(match func(*entry) bool) {
	kept := m.timers[:0]
	for _, e := range m.timers {
		if !match(e) {
			kept = append(kept, e)
		}
	}
	m.timers = kept
	heap.Init(&m.timers)
}

func (m *Manager) kick() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)
	idle := time.NewTimer(time.Hour)
	defer idle.Stop()

	for {
		next := m.fireDue()

		wait := time.Hour
		if !next.IsZero() {
			wait = time.Until(next)
			if wait < 0 {
				wait = 0
			}
		}
		if !idle.Stop() {
			select {
			case <-idle.C:
			default:
			}
		}
		idle.Reset(wait)

		select {
		case <-ctx.Done():
			return
		case <-m.wake:
		case <-idle.C:
		}
	}
}

// fireDue delivers all expired timers and returns the next expiration
// time, or the zero time when no timers remain.
func (m *Manager) fireDue() time.Time {
	now := time.Now()
	var due []*entry

	m.mu.Lock()
	for len(m.timers) > 0 && !m.timers[0].expiration.After(now) {
		e := heap.Pop(&m.timers).(*entry)
		due = append(due, e)
		if e.interval > 0 {
			next := &entry{
				expiration: e.expiration.Add(e.interval),
				interval:   e.interval,
				owner:      e.owner,
				timerID:    e.timerID,
				payload:    e.payload,
			}
			heap.Push(&m.timers, next)
		}
	}
	var next time.Time
	if len(m.timers) > 0 {
		next = m.timers[0].expiration
	}
	m.mu.Unlock()

	for _, e := range due {
		if !e.owner.EnqueueEvent(message.NewTimerEvent(e.timerID, e.payload)) {
			m.logger.Debug("Dropped timer event", "timer_id", e.timerID)
		}
	}
	return next
}
