// Package session implements the durable session store. Records live in
// Redis so they survive process restarts; expiry is lazy (a stale record
// is reported absent before it is physically purged) with a periodic
// garbage-collection sweep reclaiming storage.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/parleyhq/parley/internal/shared"
)

const keyPrefix = "session:"

// txRetries bounds optimistic-transaction retries on contended records.
const txRetries = 5

// Store persists session records in Redis. Operations on a single session
// id are serialized through optimistic WATCH transactions; different ids
// never interfere.
type Store struct {
	client *redis.Client
	ttl    time.Duration

	now func() time.Time
}

// NewStore constructs a Store with the given idle TTL.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL exposes the configured idle lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Create generates a fresh collision-resistant token and persists a new
// anonymous record carrying the client metadata.
func (s *Store) Create(ctx context.Context, ip, agent string) (*Record, error) {
	now := s.now().UTC()
	rec := &Record{
		ID:        uuid.NewString(),
		IP:        ip,
		Agent:     agent,
		CreatedAt: now,
		LastSeen:  now,
	}
	if err := s.write(ctx, rec); err != nil {
		return nil, fmt.Errorf("session: create: %w", err)
	}
	return rec, nil
}

// Get loads a record by id. Unknown ids and records idle beyond the TTL
// are both reported as ErrNotFound; staleness is decided here, not by
// whether the sweep has run yet.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	rec, err := s.read(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.expired(rec, s.now()) {
		return nil, shared.ErrNotFound
	}
	return rec, nil
}

// AuthorizeUser binds a user to the session and stores the locale. Calls
// racing on the same id are serialized by the transaction: the first
// binding wins and a competing bind to a different user fails with
// ErrConflict. Unknown or expired ids fail with ErrNotFound.
func (s *Store) AuthorizeUser(ctx context.Context, id string, userID int64, locale string) error {
	if userID == 0 {
		return errors.New("session: authorize: user id required")
	}
	return s.update(ctx, id, func(rec *Record) error {
		if rec.UserID != 0 && rec.UserID != userID {
			return fmt.Errorf("session: already bound to another user: %w", shared.ErrConflict)
		}
		rec.UserID = userID
		if locale != "" {
			if rec.Data == nil {
				rec.Data = make(map[string]string)
			}
			rec.Data[DataLocale] = locale
		}
		rec.LastSeen = s.now().UTC()
		return nil
	})
}

// Touch slides the idle window by updating last_seen. Concurrent touches
// are last-writer-wins; touching a missing or already-expired record is a
// no-op because the next Get reports it absent anyway.
func (s *Store) Touch(ctx context.Context, id string) error {
	err := s.update(ctx, id, func(rec *Record) error {
		rec.LastSeen = s.now().UTC()
		return nil
	})
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	return err
}

// Commit persists auxiliary data changes made on a loaded record. Records
// without pending changes are left untouched.
func (s *Store) Commit(ctx context.Context, rec *Record) error {
	if rec == nil || !rec.dirty {
		return nil
	}
	err := s.update(ctx, rec.ID, func(stored *Record) error {
		stored.Data = rec.Data
		return nil
	})
	if err != nil {
		return err
	}
	rec.dirty = false
	return nil
}

// Destroy deletes the record. Destroying a missing id is not an error.
func (s *Store) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.client.Del(ctx, keyPrefix+id).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("session: destroy: %w", err)
	}
	return nil
}

// GarbageCollect removes every record whose last_seen precedes now − TTL.
// The cutoff is a snapshot taken before the sweep, and each deletion
// re-checks staleness inside a transaction so a record refreshed by a
// concurrent Touch or AuthorizeUser is never race-deleted. Returns the
// number of records purged.
func (s *Store) GarbageCollect(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.ttl)
	purged := 0

	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		stale, err := s.deleteIfStale(ctx, key, cutoff)
		if err != nil {
			return purged, err
		}
		if stale {
			purged++
		}
	}
	if err := iter.Err(); err != nil {
		return purged, fmt.Errorf("session: gc scan: %w", err)
	}
	return purged, nil
}

func (s *Store) deleteIfStale(ctx context.Context, key string, cutoff time.Time) (bool, error) {
	stale := false
	txn := func(tx *redis.Tx) error {
		payload, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil
			}
			return err
		}
		var rec Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			// Corrupt payloads are purged rather than kept forever.
			stale = true
		} else if !rec.LastSeen.Before(cutoff) {
			return nil
		} else {
			stale = true
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}

	for i := 0; i < txRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return stale, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			stale = false
			continue
		}
		return false, fmt.Errorf("session: gc delete: %w", err)
	}
	// Lost the race repeatedly; the record is being actively refreshed.
	return false, nil
}

// update applies fn to the stored record inside an optimistic transaction.
func (s *Store) update(ctx context.Context, id string, fn func(*Record) error) error {
	if id == "" {
		return shared.ErrNotFound
	}
	key := keyPrefix + id

	txn := func(tx *redis.Tx) error {
		payload, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return shared.ErrNotFound
			}
			return err
		}
		var rec Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return fmt.Errorf("session: corrupt record %s: %w", id, err)
		}
		rec.ID = id
		// A record idle beyond the TTL is already gone as far as readers
		// are concerned; writing to it would revive it.
		if s.expired(&rec, s.now()) {
			return shared.ErrNotFound
		}
		if err := fn(&rec); err != nil {
			return err
		}
		data, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	var err error
	for i := 0; i < txRetries; i++ {
		err = s.client.Watch(ctx, txn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("session: update contention on %s: %w", id, err)
}

func (s *Store) read(ctx context.Context, id string) (*Record, error) {
	if id == "" {
		return nil, shared.ErrNotFound
	}
	payload, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("session: read: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("session: corrupt record %s: %w", id, err)
	}
	rec.ID = id
	return &rec, nil
}

func (s *Store) write(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keyPrefix+rec.ID, data, 0).Err()
}

func (s *Store) expired(rec *Record, now time.Time) bool {
	return now.Sub(rec.LastSeen) > s.ttl
}
