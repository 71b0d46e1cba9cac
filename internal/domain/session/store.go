package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"agent-server/internal/apperrors"
)

const keyPrefix = "session:"

// ErrNotFound is returned by Cache implementations for a missing key.
var ErrNotFound = errors.New("session: key not found")

// Cache is the string key/value backend the store persists records into.
// Implementations hold the process-wide connection and must be safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context, prefix string) ([]string, error)
	Ping(ctx context.Context) error
}

// Store manages TTL-bounded conversation session records in the cache
// backend. Updates are last-writer-wins; callers needing strict ordering on
// one session id must serialize above this layer.
type Store struct {
	cache   Cache
	timeout time.Duration
	log     zerolog.Logger
	now     func() time.Time
}

func NewStore(cache Cache, timeout time.Duration, log zerolog.Logger) *Store {
	return &Store{
		cache:   cache,
		timeout: timeout,
		log:     log.With().Str("component", "session_store").Logger(),
		now:     time.Now,
	}
}

// Create stores a fresh session record. An empty id is replaced with a
// generated one. Write failures surface as CacheError.
func (s *Store) Create(ctx context.Context, id string, initialContext map[string]any) (*Record, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if initialContext == nil {
		initialContext = map[string]any{}
	}

	now := s.now()
	record := &Record{
		ID:           id,
		CreatedAt:    now,
		LastActivity: now,
		Messages:     []Message{},
		Context:      initialContext,
		State:        DefaultState,
	}

	if err := s.write(ctx, record); err != nil {
		return nil, err
	}

	s.log.Info().Str("session_id", id).Msg("session created")
	return record, nil
}

// Get loads a session record and, as a side effect of a successful read,
// refreshes its last-activity time and re-arms the TTL. Cache failures on
// read degrade to absence instead of aborting the caller's request.
func (s *Store) Get(ctx context.Context, id string) (*Record, bool) {
	record, err := s.load(ctx, keyPrefix+id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Warn().Err(err).Str("session_id", id).Msg("cache read failed, treating session as absent")
		}
		return nil, false
	}

	record.LastActivity = s.now()
	if err := s.write(ctx, record); err != nil {
		// The read succeeded; a failed refresh write must not lose it.
		s.log.Warn().Err(err).Str("session_id", id).Msg("failed to refresh session activity")
	}

	return record, true
}

// Has reports whether a session id is currently tracked, without refreshing
// its TTL.
func (s *Store) Has(ctx context.Context, id string) bool {
	ok, err := s.cache.Exists(ctx, keyPrefix+id)
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", id).Msg("cache exists check failed")
		return false
	}
	return ok
}

// GetOrCreate returns the existing record or creates one on first reference
// to an unknown session id.
func (s *Store) GetOrCreate(ctx context.Context, id string) (*Record, error) {
	if record, ok := s.Get(ctx, id); ok {
		return record, nil
	}
	return s.Create(ctx, id, nil)
}

// Update applies an explicit partial update. Returns false without an error
// when the id is unknown; the caller must check. Last-writer-wins.
func (s *Store) Update(ctx context.Context, id string, patch Patch) (bool, error) {
	record, err := s.load(ctx, keyPrefix+id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		s.log.Warn().Err(err).Str("session_id", id).Msg("cache read failed, treating session as absent")
		return false, nil
	}

	now := s.now()
	for _, msg := range patch.Messages {
		if msg.Timestamp.IsZero() {
			msg.Timestamp = now
		}
		record.Messages = append(record.Messages, msg)
	}
	for key, value := range patch.Context {
		if record.Context == nil {
			record.Context = map[string]any{}
		}
		record.Context[key] = value
	}
	if patch.State != nil {
		record.State = *patch.State
	}
	record.LastActivity = now

	if err := s.write(ctx, record); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes a session record. Returns false when the id was unknown.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	existed, err := s.cache.Delete(ctx, keyPrefix+id)
	if err != nil {
		return false, &apperrors.CacheError{Op: "delete", Err: err}
	}
	if existed {
		s.log.Info().Str("session_id", id).Msg("session deleted")
	}
	return existed, nil
}

// SweepExpired enumerates tracked session keys and removes records whose
// inactivity exceeds the configured timeout, returning the count removed.
// Each record is re-loaded and re-checked immediately before deletion, so a
// session touched between enumeration and deletion survives. Idempotent and
// safe to run concurrently with normal reads and writes.
func (s *Store) SweepExpired(ctx context.Context) (int, error) {
	keys, err := s.cache.Keys(ctx, keyPrefix)
	if err != nil {
		return 0, &apperrors.CacheError{Op: "keys", Err: err}
	}

	removed := 0
	for _, key := range keys {
		record, err := s.load(ctx, key)
		if err != nil {
			continue // already reaped or unreadable
		}
		if !record.Expired(s.now(), s.timeout) {
			continue
		}
		existed, err := s.cache.Delete(ctx, key)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("failed to delete expired session")
			continue
		}
		if existed {
			removed++
		}
	}

	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("expired sessions reaped")
	}
	return removed, nil
}

// Healthy reports whether the cache backend answers a ping.
func (s *Store) Healthy(ctx context.Context) error {
	if err := s.cache.Ping(ctx); err != nil {
		return &apperrors.CacheError{Op: "ping", Err: err}
	}
	return nil
}

func (s *Store) load(ctx context.Context, key string) (*Record, error) {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var record Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) write(ctx context.Context, record *Record) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return &apperrors.CacheError{Op: "set", Err: err}
	}
	if err := s.cache.SetWithTTL(ctx, keyPrefix+record.ID, string(raw), s.timeout); err != nil {
		return &apperrors.CacheError{Op: "set", Err: err}
	}
	return nil
}
