package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrPersistenceUnavailable wraps backend failures from a Persistence
// implementation. Load treats it as fatal to rehydration but not to the
// process: the store falls back to logged-out.
var ErrPersistenceUnavailable = errors.New("session persistence unavailable")

// Persistence is the durable key-value boundary the store rehydrates from.
// Implementations must persist identity and token atomically.
type Persistence interface {
	Load(ctx context.Context) (*Session, bool, error)
	Save(ctx context.Context, s *Session) error
	Clear(ctx context.Context) error
}

// RedisPersistence stores the session record under a single key so the
// identity and token can never drift apart.
type RedisPersistence struct {
	redis *redis.Client
	key   string
}

// NewRedisPersistence creates a RedisPersistence. The prefix namespaces
// the session key; an empty prefix defaults to "af".
func NewRedisPersistence(client *redis.Client, prefix string) *RedisPersistence {
	if prefix == "" {
		prefix = "af"
	}
	return &RedisPersistence{
		redis: client,
		key:   prefix + ":session",
	}
}

// Load fetches and decodes the persisted session. A missing key or an
// unparsable record reports absent rather than an error: rehydration
// fails safe to logged-out.
func (p *RedisPersistence) Load(ctx context.Context) (*Session, bool, error) {
	data, err := p.redis.Get(ctx, p.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}

	s, err := Decode(data)
	if err != nil {
		// Corrupt blob: drop it so reloads do not keep tripping over it.
		_ = p.redis.Del(ctx, p.key).Err()
		return nil, false, nil
	}
	return s, true, nil
}

// Save persists the session record, replacing any previous one.
func (p *RedisPersistence) Save(ctx context.Context, s *Session) error {
	encoded, err := Encode(s)
	if err != nil {
		return err
	}
	if err := p.redis.Set(ctx, p.key, encoded, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	return nil
}

// Clear removes the persisted record. Clearing an absent record is not
// an error.
func (p *RedisPersistence) Clear(ctx context.Context) error {
	if err := p.redis.Del(ctx, p.key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	return nil
}
