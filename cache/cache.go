// Package cache provides the key/value service available to all
// components: values with optional TTL, expiry events delivered to the
// owning component, and pluggable storage backends (in-memory and a
// pebble-backed durable store).
//
// Expiry is checked lazily on access and by a background sweeper. Value
// blobs are opaque to the service; concurrent access is serialized by the
// backend.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/SolaceDev/solace-ai-connector/errors"
	"github.com/SolaceDev/solace-ai-connector/message"
)

// sweepInterval is how often the background sweeper scans for expired
// entries.
const sweepInterval = time.Second

// Enqueuer receives cache expiry events. Component groups implement it
// with their input queue.
type Enqueuer interface {
	EnqueueEvent(ev *message.Event) bool
}

// Entry is one stored cache record.
type Entry struct {
	Key       string
	Value     any
	ExpiresAt time.Time // zero means no expiry
	Metadata  any
	Owner     string
}

// Expired reports whether the entry's TTL has elapsed.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Backend is the pluggable storage contract.
type Backend interface {
	Get(key string) (*Entry, error) // (nil, nil) when absent
	Set(e *Entry) error
	Delete(key string) error
	Expired(now time.Time) ([]*Entry, error)
	Close() error
}

// Service is the process-wide cache service. One instance is shared by all
// components of a connector.
type Service struct {
	backend Backend
	logger  *slog.Logger

	ownersMu sync.RWMutex
	owners   map[string]Enqueuer

	lifecycleMu sync.Mutex
	started     bool
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewService creates a cache service over the given backend.
func NewService(backend Backend, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backend: backend,
		logger:  logger,
		owners:  map[string]Enqueuer{},
	}
}

// Start launches the background expiry sweeper.
func (s *Service) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if s.started {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true
	go s.sweep(runCtx)
	return nil
}

// Stop terminates the sweeper and closes the backend.
func (s *Service) Stop() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if !s.started {
		return
	}
	s.cancel()
	<-s.done
	if err := s.backend.Close(); err != nil {
		s.logger.Error("Cache backend close failed", "error", err)
	}
	s.started = false
}

// RegisterOwner binds a component name to its input queue so that expiry
// events for entries it owns can be delivered.
func (s *Service) RegisterOwner(name string, q Enqueuer) {
	if name == "" || q == nil {
		return
	}
	s.ownersMu.Lock()
	s.owners[name] = q
	s.ownersMu.Unlock()
}

// UnregisterOwner removes a component's expiry delivery target. Called at
// component stop.
func (s *Service) UnregisterOwner(name string) {
	s.ownersMu.Lock()
	delete(s.owners, name)
	s.ownersMu.Unlock()
}

// AddData stores a value. A positive expirySeconds sets a TTL; metadata
// and owner control the CACHE_EXPIRY event delivered when the entry
// expires.
func (s *Service) AddData(key string, value any, expirySeconds float64, metadata any, owner string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrKeyNotFound, "cache", "AddData", "key check")
	}
	e := &Entry{Key: key, Value: value, Metadata: metadata, Owner: owner}
	if expirySeconds > 0 {
		e.ExpiresAt = time.Now().Add(time.Duration(expirySeconds * float64(time.Second)))
	}
	return s.backend.Set(e)
}

// GetData returns the stored value, or nil when absent. An entry found
// expired is removed lazily without emitting an expiry event; the sweeper
// handles event delivery.
func (s *Service) GetData(key string) (any, error) {
	e, err := s.backend.Get(key)
	if err != nil || e == nil {
		return nil, err
	}
	if e.Expired(time.Now()) {
		if err := s.backend.Delete(key); err != nil {
			s.logger.Warn("Failed to delete expired cache entry", "key", key, "error", err)
		}
		return nil, nil
	}
	return e.Value, nil
}

// RemoveData deletes an entry without emitting an expiry event.
func (s *Service) RemoveData(key string) error {
	return s.backend.Delete(key)
}

func (s *Service) sweep(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *Service) sweepOnce() {
	expired, err := s.backend.Expired(time.Now())
	if err != nil {
		s.logger.Warn("Cache expiry scan failed", "error", err)
		return
	}
	for _, e := range expired {
		if err := s.backend.Delete(e.Key); err != nil {
			s.logger.Warn("Failed to delete expired cache entry", "key", e.Key, "error", err)
			continue
		}
		if e.Owner == "" {
			continue
		}
		s.ownersMu.RLock()
		q := s.owners[e.Owner]
		s.ownersMu.RUnlock()
		if q == nil {
			continue
		}
		if !q.EnqueueEvent(message.NewCacheExpiryEvent(e.Key, e.Metadata, e.Value)) {
			s.logger.Debug("Dropped cache expiry event", "key", e.Key, "owner", e.Owner)
		}
	}
}
