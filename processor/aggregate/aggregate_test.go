package aggregate_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SolaceDev/solace-ai-connector/component"
	"github.com/SolaceDev/solace-ai-connector/config"
	"github.com/SolaceDev/solace-ai-connector/message"
	"github.com/SolaceDev/solace-ai-connector/processor/aggregate"
	"github.com/SolaceDev/solace-ai-connector/timer"
)

type capture struct {
	*component.Base
	mu      sync.Mutex
	batches []any
}

func (c *capture) Invoke(msg *message.Message, _ any) (any, error) {
	c.mu.Lock()
	c.batches = append(c.batches, msg.GetPrevious())
	c.mu.Unlock()
	return nil, nil
}

func (c *capture) snapshot() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.batches...)
}

func buildPipeline(t *testing.T, componentConfig map[string]any, withTimers bool) (*component.Group, *capture) {
	t.Helper()
	deps := component.Dependencies{}
	if withTimers {
		tm := timer.NewManager(nil)
		require.NoError(t, tm.Start(context.Background()))
		t.Cleanup(tm.Stop)
		deps.TimerManager = tm
	}

	aggGroup, err := component.NewGroup(
		&component.Registration{Name: "aggregate", Info: aggregate.Info, Factory: aggregate.New},
		&config.ComponentConfig{
			Name: "agg", Module: "aggregate", NumInstances: 1, QueueDepth: 5,
			ComponentConfig: componentConfig,
		},
		component.GroupOptions{FlowName: "f", Deps: deps},
	)
	require.NoError(t, err)

	sink := &capture{}
	sinkGroup, err := component.NewGroup(
		&component.Registration{Name: "capture", Factory: func(b *component.Base) (component.Invoker, error) {
			sink.Base = b
			return sink, nil
		}},
		&config.ComponentConfig{Name: "sink", Module: "capture", NumInstances: 1, QueueDepth: 5},
		component.GroupOptions{FlowName: "f"},
	)
	require.NoError(t, err)

	aggGroup.SetNext(sinkGroup)
	ctx := context.Background()
	require.NoError(t, sinkGroup.Start(ctx))
	require.NoError(t, aggGroup.Start(ctx))
	t.Cleanup(func() {
		_ = aggGroup.Stop(2 * time.Second)
		_ = sinkGroup.Stop(2 * time.Second)
	})
	return aggGroup, sink
}

func send(t *testing.T, g *component.Group, value any) {
	t.Helper()
	msg := message.New(value, "", nil)
	msg.SetPrevious(value)
	require.NoError(t, g.Enqueue(context.Background(), message.NewMessageEvent(msg)))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestBatchEmittedAtMaxItems(t *testing.T) {
	aggGroup, sink := buildPipeline(t, map[string]any{"max_items": 3, "max_time_ms": 60000}, true)

	send(t, aggGroup, "a")
	send(t, aggGroup, "b")
	send(t, aggGroup, "c")

	waitFor(t, func() bool { return len(sink.snapshot()) == 1 })
	assert.Equal(t, []any{"a", "b", "c"}, sink.snapshot()[0])
}

func TestPartialBatchFlushedByTimer(t *testing.T) {
	aggGroup, sink := buildPipeline(t, map[string]any{"max_items": 100, "max_time_ms": 50}, true)

	send(t, aggGroup, "only")

	waitFor(t, func() bool { return len(sink.snapshot()) == 1 })
	assert.Equal(t, []any{"only"}, sink.snapshot()[0])
}

func TestIntermediateMessagesAcknowledged(t *testing.T) {
	aggGroup, _ := buildPipeline(t, map[string]any{"max_items": 10, "max_time_ms": 60000}, true)

	msg := message.New("queued", "", nil)
	msg.SetPrevious("queued")
	acked := make(chan struct{})
	msg.AddAckCallback(func() { close(acked) })
	require.NoError(t, aggGroup.Enqueue(context.Background(), message.NewMessageEvent(msg)))

	select {
	case <-acked:
	case <-time.After(2 * time.Second):
		t.Fatal("queued message must be acknowledged on intake")
	}
}
