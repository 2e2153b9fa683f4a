package cache

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/SolaceDev/solace-ai-connector/errors"
)

// record is the on-disk schema of a cache entry: key, value blob, expiry
// timestamp, metadata blob, owner. Values are stored as JSON and are
// opaque to the backend.
type record struct {
	Value    json.RawMessage `json:"value"`
	ExpiryMS int64           `json:"expiry_ms,omitempty"` // unix millis, 0 = no expiry
	Metadata json.RawMessage `json:"metadata,omitempty"`
	Owner    string          `json:"owner,omitempty"`
}

// PebbleBackend is the durable cache backend over a pebble key/value
// store.
type PebbleBackend struct {
	db *pebble.DB
}

// NewPebbleBackend opens (or creates) a pebble database at path.
func NewPebbleBackend(path string) (*PebbleBackend, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, errors.WrapFatal(err, "PebbleBackend", "NewPebbleBackend", "open database")
	}
	return &PebbleBackend{db: db}, nil
}

// Get returns the entry for key, or (nil, nil) when absent.
func (b *PebbleBackend) Get(key string) (*Entry, error) {
	data, closer, err := b.db.Get([]byte(key))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapTransient(err, "PebbleBackend", "Get", "read")
	}
	defer closer.Close()

	return decodeRecord(key, data)
}

// Set stores an entry, replacing any previous value for the key.
func (b *PebbleBackend) Set(e *Entry) error {
	rec := record{Owner: e.Owner}
	if !e.ExpiresAt.IsZero() {
		rec.ExpiryMS = e.ExpiresAt.UnixMilli()
	}
	var err error
	if rec.Value, err = json.Marshal(e.Value); err != nil {
		return errors.WrapInvalid(err, "PebbleBackend", "Set", "encode value")
	}
	if e.Metadata != nil {
		if rec.Metadata, err = json.Marshal(e.Metadata); err != nil {
			return errors.WrapInvalid(err, "PebbleBackend", "Set", "encode metadata")
		}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.WrapInvalid(err, "PebbleBackend", "Set", "encode record")
	}
	if err := b.db.Set([]byte(e.Key), data, pebble.Sync); err != nil {
		return errors.WrapTransient(err, "PebbleBackend", "Set", "write")
	}
	return nil
}

// Delete removes an entry. Deleting an absent key is a no-op.
func (b *PebbleBackend) Delete(key string) error {
	if err := b.db.Delete([]byte(key), pebble.Sync); err != nil {
		return errors.WrapTransient(err, "PebbleBackend", "Delete", "delete")
	}
	return nil
}

// Expired scans for entries whose TTL has elapsed.
func (b *PebbleBackend) Expired(now time.Time) ([]*Entry, error) {
	iter, err := b.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, errors.WrapTransient(err, "PebbleBackend", "Expired", "iterator")
	}
	defer iter.Close()

	nowMS := now.UnixMilli()
	var out []*Entry
	for iter.First(); iter.Valid(); iter.Next() {
		var rec record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue
		}
		if rec.ExpiryMS == 0 || rec.ExpiryMS > nowMS {
			continue
		}
		e, err := decodeRecord(string(iter.Key()), iter.Value())
		if err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Close closes the underlying database.
func (b *PebbleBackend) Close() error {
	return b.db.Close()
}

func decodeRecord(key string, data []byte) (*Entry, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.WrapInvalid(err, "PebbleBackend", "decodeRecord", "decode record")
	}
	e := &Entry{Key: key, Owner: rec.Owner}
	if rec.ExpiryMS > 0 {
		e.ExpiresAt = time.UnixMilli(rec.ExpiryMS)
	}
	if len(rec.Value) > 0 {
		if err := json.Unmarshal(rec.Value, &e.Value); err != nil {
			return nil, errors.WrapInvalid(err, "PebbleBackend", "decodeRecord", "decode value")
		}
	}
	if len(rec.Metadata) > 0 {
		if err := json.Unmarshal(rec.Metadata, &e.Metadata); err != nil {
			return nil, errors.WrapInvalid(err, "PebbleBackend", "decodeRecord", "decode metadata")
		}
	}
	return e, nil
}
