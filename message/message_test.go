package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAckFiresOnceInRegistrationOrder(t *testing.T) {
	m := New("payload", "t", nil)
	var calls []int
	m.AddAckCallback(func() { calls = append(calls, 1) })
	m.AddAckCallback(func() { calls = append(calls, 2) })

	m.CallAcknowledgements()
	m.CallAcknowledgements()

	assert.Equal(t, []int{1, 2}, calls)
	assert.True(t, m.Settled())
}

func TestExactlyOneOfAckNack(t *testing.T) {
	m := New("payload", "t", nil)
	acked, nacked := 0, 0
	m.AddAckCallback(func() { acked++ })
	m.AddNackCallback(func(NackInfo) { nacked++ })

	m.CallNegativeAcknowledgements(NackInfo{Reason: "boom"})
	m.CallAcknowledgements()
	m.CallNegativeAcknowledgements(NackInfo{Reason: "again"})

	assert.Equal(t, 0, acked)
	assert.Equal(t, 1, nacked)
}

func TestNackInfoDelivered(t *testing.T) {
	m := New("payload", "t", nil)
	var got NackInfo
	m.AddNackCallback(func(info NackInfo) { got = info })

	m.CallNegativeAcknowledgements(NackInfo{Reason: "decode failed", Kind: "DecodeError"})
	assert.Equal(t, "decode failed", got.Reason)
	assert.Equal(t, "DecodeError", got.Kind)
}

func TestTopicLevels(t *testing.T) {
	m := New(nil, "a/b/c", nil)
	assert.Equal(t, []string{"a", "b", "c"}, m.GetTopicLevels())

	empty := New(nil, "", nil)
	assert.Empty(t, empty.GetTopicLevels())
}

func TestDiscardedReadsOnce(t *testing.T) {
	m := New(nil, "", nil)
	m.Discard()
	assert.True(t, m.Discarded())
	assert.False(t, m.Discarded())
}

func TestIterationAckJoin(t *testing.T) {
	parent := New([]any{"a", "b", "c"}, "t", nil)
	parentAcks := 0
	parent.AddAckCallback(func() { parentAcks++ })

	state := NewIteration(parent, 3)
	children := []*Message{
		state.NewChild("a"),
		state.NewChild("b"),
		state.NewChild("c"),
	}

	// A direct ack on the parent is deferred while the iteration is open.
	parent.CallAcknowledgements()
	assert.Equal(t, 0, parentAcks)

	children[0].CallAcknowledgements()
	children[1].CallAcknowledgements()
	assert.Equal(t, 0, parentAcks, "parent must not ack before all siblings terminate")

	children[2].CallAcknowledgements()
	assert.Equal(t, 1, parentAcks, "parent acks exactly once after the last sibling")
}

func TestIterationNackWins(t *testing.T) {
	parent := New(nil, "t", nil)
	acked, nacked := 0, 0
	parent.AddAckCallback(func() { acked++ })
	parent.AddNackCallback(func(NackInfo) { nacked++ })

	state := NewIteration(parent, 2)
	first := state.NewChild(1)
	second := state.NewChild(2)

	first.CallAcknowledgements()
	second.CallNegativeAcknowledgements(NackInfo{Reason: "child failed"})

	assert.Equal(t, 0, acked)
	assert.Equal(t, 1, nacked)
}

func TestIterationChildSharesOrigin(t *testing.T) {
	parent := New("payload", "topic/x", map[string]any{"k": "v"})
	parent.SetUserData("region", map[string]any{"n": 1})

	child := NewIteration(parent, 1).NewChild("item")
	assert.Equal(t, "item", child.GetPayload())
	assert.Equal(t, "topic/x", child.GetTopic())
	assert.Equal(t, "v", child.GetUserProperties()["k"])
	assert.Equal(t, map[string]any{"n": 1}, child.GetUserData()["region"])
}

func TestIterationAbort(t *testing.T) {
	parent := New(nil, "", nil)
	nacked := 0
	parent.AddNackCallback(func(NackInfo) { nacked++ })

	state := NewIteration(parent, 3)
	child := state.NewChild(1)
	child.CallAcknowledgements()
	state.Abort(2, NackInfo{Reason: "enqueue failed"})

	assert.Equal(t, 1, nacked)
}

func TestPreviousReplaced(t *testing.T) {
	m := New(nil, "", nil)
	m.SetPrevious(map[string]any{"hop": 1})
	m.SetPrevious(map[string]any{"hop": 2})
	assert.Equal(t, map[string]any{"hop": 2}, m.GetPrevious())
}
