package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SolaceDev/solace-ai-connector/config"
)

func TestCompileSubscription(t *testing.T) {
	tests := []struct {
		subscription string
		topic        string
		match        bool
	}{
		{"a/b/c", "a/b/c", true},
		{"a/b/c", "a/b/x", false},
		{"a/*/c", "a/b/c", true},
		{"a/*/c", "a/b/d/c", false}, // * is exactly one level
		{"a/>", "a/b", true},
		{"a/>", "a/b/c/d", true},
		{"a/>", "a", false}, // > needs at least one trailing level
		{"orders/new/>", "orders/new/42", true},
		{"orders/new/>", "orders/updates/42", false},
		{"*/b", "a/b", true},
		{"*/b", "a/c", false},
		{"a.b/c", "a.b/c", true}, // literal dots are not wildcards
		{"a.b/c", "axb/c", false},
	}

	for _, test := range tests {
		t.Run(test.subscription+"~"+test.topic, func(t *testing.T) {
			re, err := CompileSubscription(test.subscription)
			require.NoError(t, err)
			assert.Equal(t, test.match, re.MatchString(test.topic))
		})
	}
}

func devConfig(queue string) *config.BrokerConfig {
	return config.DecodeBroker(map[string]any{
		"broker_type": "dev",
		"queue_name":  queue,
	})
}

func TestDevBrokerPublishSubscribe(t *testing.T) {
	ResetDevBroker()
	b := NewDevBroker(devConfig("q1"), nil)
	require.NoError(t, b.Connect(context.Background()))
	require.NoError(t, b.Subscribe("sensors/>", "q1"))

	require.NoError(t, b.Send("sensors/temp/1", []byte(`{"v":20}`), map[string]any{"unit": "C"}))
	require.NoError(t, b.Send("alarms/fire", []byte(`{}`), nil))

	im, err := b.Receive(context.Background(), "q1", 200*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, im)
	assert.Equal(t, "sensors/temp/1", im.Topic)
	assert.Equal(t, []byte(`{"v":20}`), im.Payload)
	assert.Equal(t, "C", im.UserProperties["unit"])

	// The unmatched topic was not delivered.
	im, err = b.Receive(context.Background(), "q1", 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, im)
}

func TestDevBrokerNackRedelivers(t *testing.T) {
	ResetDevBroker()
	b := NewDevBroker(devConfig("q2"), nil)
	require.NoError(t, b.Connect(context.Background()))
	require.NoError(t, b.Subscribe("x/>", "q2"))

	require.NoError(t, b.Send("x/1", []byte("payload"), nil))

	im, err := b.Receive(context.Background(), "q2", 200*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, im)
	assert.Equal(t, 0, im.RedeliveryCount)
	require.NoError(t, im.Nack())

	redelivered, err := b.Receive(context.Background(), "q2", 200*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, redelivered)
	assert.Equal(t, 1, redelivered.RedeliveryCount)
	require.NoError(t, redelivered.Ack())
}

func TestDevBrokerFanOutCopies(t *testing.T) {
	ResetDevBroker()
	b := NewDevBroker(devConfig(""), nil)
	require.NoError(t, b.Connect(context.Background()))
	require.NoError(t, b.Subscribe("t/>", "qa"))
	require.NoError(t, b.Subscribe("t/>", "qb"))

	require.NoError(t, b.Send("t/1", []byte("m"), nil))

	for _, q := range []string{"qa", "qb"} {
		im, err := b.Receive(context.Background(), q, 200*time.Millisecond)
		require.NoError(t, err)
		require.NotNil(t, im, "queue %s must get its own copy", q)
	}
}

func TestDevBrokerDisconnected(t *testing.T) {
	ResetDevBroker()
	b := NewDevBroker(devConfig("q"), nil)
	require.Error(t, b.Send("t", nil, nil))
	_, err := b.Receive(context.Background(), "q", time.Millisecond)
	require.Error(t, err)
}

func TestSubjectMapping(t *testing.T) {
	assert.Equal(t, "a.b.>", toSubject("a/b/>"))
	assert.Equal(t, "a.*.c", toSubject("a/*/c"))
	assert.Equal(t, "a/b/c", fromSubject("a.b.c"))
}
