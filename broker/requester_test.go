package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SolaceDev/solace-ai-connector/component"
	"github.com/SolaceDev/solace-ai-connector/config"
	"github.com/SolaceDev/solace-ai-connector/errors"
	"github.com/SolaceDev/solace-ai-connector/message"
	"github.com/SolaceDev/solace-ai-connector/messaging"
)

func requesterConfig(expiryMS int) *config.BrokerConfig {
	cfg := config.DecodeBroker(map[string]any{
		"broker_type":           "dev",
		"request_reply_enabled": true,
	})
	cfg.RequestExpiryMS = expiryMS
	return cfg
}

// startResponder consumes requests on the given subscription and answers
// each with the provided reply payloads, in order, on the caller's reply
// topic.
func startResponder(t *testing.T, subscription string, replies []map[string]any) {
	t.Helper()
	cfg := config.DecodeBroker(map[string]any{"broker_type": "dev", "queue_name": "svc"})
	b := messaging.NewDevBroker(cfg, nil)
	require.NoError(t, b.Connect(context.Background()))
	require.NoError(t, b.Subscribe(subscription, "svc"))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() {
		for {
			im, err := b.Receive(ctx, "svc", 100*time.Millisecond)
			if ctx.Err() != nil {
				return
			}
			if err != nil || im == nil {
				continue
			}
			replyTopic, _ := im.UserProperties[config.DefaultReplyTopicKey].(string)
			if replyTopic == "" {
				continue
			}
			for _, reply := range replies {
				data, _ := json.Marshal(reply)
				_ = b.Send(replyTopic, data, nil)
			}
		}
	}()
}

func TestDoRequestSingleReply(t *testing.T) {
	messaging.ResetDevBroker()
	startResponder(t, "svc/echo", []map[string]any{
		{"answer": "pong"},
	})

	r, err := NewRequester(requesterConfig(5000), nil)
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))
	defer r.Stop()

	msg := message.New(map[string]any{"question": "ping"}, "svc/echo", nil)
	reply, err := r.DoRequest(context.Background(), msg)
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, "pong", reply.GetPayload().(map[string]any)["answer"])
}

func TestDoRequestStreamCompletionExpression(t *testing.T) {
	messaging.ResetDevBroker()
	startResponder(t, "svc/stream", []map[string]any{
		{"chunk": 1, "streaming": map[string]any{"last_message": false}},
		{"chunk": 2, "streaming": map[string]any{"last_message": false}},
		{"chunk": 3, "streaming": map[string]any{"last_message": true}},
	})

	r, err := NewRequester(requesterConfig(5000), nil)
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))
	defer r.Stop()

	msg := message.New(map[string]any{"q": "stream"}, "svc/stream", nil)
	chunks, cancel, err := r.DoRequestStream(
		context.Background(), msg, "input.payload:streaming.last_message")
	require.NoError(t, err)
	defer cancel()

	var got []component.StreamChunk
	for chunk := range chunks {
		require.NoError(t, chunk.Err)
		got = append(got, chunk)
	}

	require.Len(t, got, 3)
	assert.False(t, got[0].IsLast)
	assert.False(t, got[1].IsLast)
	assert.True(t, got[2].IsLast)
	assert.Equal(t, float64(3), got[2].Message.GetPayload().(map[string]any)["chunk"])
}

func TestDoRequestExpiry(t *testing.T) {
	messaging.ResetDevBroker()
	// No responder: the request must expire.
	r, err := NewRequester(requesterConfig(100), nil)
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))
	defer r.Stop()

	msg := message.New(map[string]any{"q": "void"}, "svc/void", nil)
	start := time.Now()
	_, err = r.DoRequest(context.Background(), msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRequestTimeout)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestStopCancelsOutstandingRequests(t *testing.T) {
	messaging.ResetDevBroker()
	r, err := NewRequester(requesterConfig(60000), nil)
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))

	msg := message.New(map[string]any{"q": "never"}, "svc/never", nil)
	chunks, cancel, err := r.DoRequestStream(context.Background(), msg, "x")
	require.NoError(t, err)
	defer cancel()

	go r.Stop()

	select {
	case chunk, ok := <-chunks:
		if ok {
			assert.ErrorIs(t, chunk.Err, errors.ErrRequestCancelled)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("outstanding request was not cancelled by Stop")
	}
}
