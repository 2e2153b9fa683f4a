package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SolaceDev/solace-ai-connector/message"
)

type queueStub struct {
	mu     sync.Mutex
	events []*message.Event
}

func (q *queueStub) EnqueueEvent(ev *message.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, ev)
	return true
}

func (q *queueStub) expiries() []*message.CacheExpiryEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*message.CacheExpiryEvent
	for _, ev := range q.events {
		if ev.Type == message.EventCacheExpiry {
			out = append(out, ev.CacheExpiry)
		}
	}
	return out
}

func TestAddGetRemove(t *testing.T) {
	svc := NewService(NewMemoryBackend(), nil)

	require.NoError(t, svc.AddData("k", map[string]any{"v": 1}, 0, nil, ""))
	val, err := svc.GetData("k")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"v": 1}, val)

	require.NoError(t, svc.RemoveData("k"))
	val, err = svc.GetData("k")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestGetMissingIsNil(t *testing.T) {
	svc := NewService(NewMemoryBackend(), nil)
	val, err := svc.GetData("missing")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestLazyExpiryOnAccess(t *testing.T) {
	svc := NewService(NewMemoryBackend(), nil)
	require.NoError(t, svc.AddData("short", "v", 0.02, nil, ""))

	time.Sleep(40 * time.Millisecond)
	val, err := svc.GetData("short")
	require.NoError(t, err)
	assert.Nil(t, val, "expired entry must read as absent")
}

func TestSweeperDeliversExpiryEvent(t *testing.T) {
	svc := NewService(NewMemoryBackend(), nil)
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	q := &queueStub{}
	svc.RegisterOwner("flow.comp", q)

	metadata := map[string]any{"kind": "session"}
	require.NoError(t, svc.AddData("session-1", "state", 0.05, metadata, "flow.comp"))

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(q.expiries()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	expiries := q.expiries()
	require.Len(t, expiries, 1)
	assert.Equal(t, "session-1", expiries[0].Key)
	assert.Equal(t, metadata, expiries[0].Metadata)
	assert.Equal(t, "state", expiries[0].ExpiredData)

	// The entry is gone after expiry delivery.
	val, err := svc.GetData("session-1")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestRemoveBeforeExpirySuppressesEvent(t *testing.T) {
	svc := NewService(NewMemoryBackend(), nil)
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	q := &queueStub{}
	svc.RegisterOwner("owner", q)
	require.NoError(t, svc.AddData("k", "v", 0.05, nil, "owner"))
	require.NoError(t, svc.RemoveData("k"))

	time.Sleep(1500 * time.Millisecond)
	assert.Empty(t, q.expiries())
}

func TestPebbleBackendRoundTrip(t *testing.T) {
	backend, err := NewPebbleBackend(t.TempDir())
	require.NoError(t, err)
	defer func() { require.NoError(t, backend.Close()) }()

	entry := &Entry{
		Key:       "k1",
		Value:     map[string]any{"n": float64(7)},
		ExpiresAt: time.Now().Add(time.Hour),
		Metadata:  map[string]any{"m": "d"},
		Owner:     "flow.comp",
	}
	require.NoError(t, backend.Set(entry))

	got, err := backend.Get("k1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.Value, got.Value)
	assert.Equal(t, entry.Metadata, got.Metadata)
	assert.Equal(t, "flow.comp", got.Owner)

	missing, err := backend.Get("absent")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, backend.Delete("k1"))
	gone, err := backend.Get("k1")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestPebbleBackendExpiredScan(t *testing.T) {
	backend, err := NewPebbleBackend(t.TempDir())
	require.NoError(t, err)
	defer func() { require.NoError(t, backend.Close()) }()

	require.NoError(t, backend.Set(&Entry{Key: "old", Value: "v", ExpiresAt: time.Now().Add(-time.Second)}))
	require.NoError(t, backend.Set(&Entry{Key: "fresh", Value: "v", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, backend.Set(&Entry{Key: "forever", Value: "v"}))

	expired, err := backend.Expired(time.Now())
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "old", expired[0].Key)
}
