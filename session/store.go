package session

import (
	"context"
	"sync"
)

// Store owns the current session. It is the single writer: flows set it
// after a successful verification or login, the completeness gate updates
// the identity after profile changes, and sign-out clears it. On first
// read it rehydrates once from the Persistence boundary.
type Store struct {
	mu          sync.Mutex
	persistence Persistence
	current     *Session
	rehydrated  bool
	loaded      bool
}

// NewStore creates a Store over the given persistence boundary. A nil
// persistence is valid and yields a memory-only store.
func NewStore(p Persistence) *Store {
	return &Store{persistence: p}
}

func (s *Store) rehydrateLocked(ctx context.Context) {
	if s.loaded {
		return
	}
	s.loaded = true
	if s.persistence == nil {
		return
	}
	restored, ok, err := s.persistence.Load(ctx)
	if err != nil || !ok {
		return
	}
	s.current = restored
	s.rehydrated = true
}

// Get returns the current session, rehydrating from persistence on the
// first call. The second return is false when no session exists.
func (s *Store) Get(ctx context.Context) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rehydrateLocked(ctx)
	if s.current == nil {
		return Session{}, false
	}
	return *s.current, true
}

// Rehydrated reports whether the current session was restored from
// persistence rather than produced by a login in this process. Callers
// use it to decide whether to revalidate against the remote API.
func (s *Store) Rehydrated(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rehydrateLocked(ctx)
	return s.current != nil && s.rehydrated
}

// Set installs a new session and persists it. Identity and token are
// written together.
func (s *Store) Set(ctx context.Context, identity Identity, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	s.rehydrated = false
	s.current = &Session{Identity: identity, Token: token}
	if s.persistence == nil {
		return nil
	}
	return s.persistence.Save(ctx, s.current)
}

// Update replaces the identity while preserving the existing token. It is
// a no-op when no session exists.
func (s *Store) Update(ctx context.Context, identity Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rehydrateLocked(ctx)
	if s.current == nil {
		return nil
	}
	s.current = &Session{Identity: identity, Token: s.current.Token}
	if s.persistence == nil {
		return nil
	}
	return s.persistence.Save(ctx, s.current)
}

// Clear removes the session from memory and persistence.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	s.rehydrated = false
	s.current = nil
	if s.persistence == nil {
		return nil
	}
	return s.persistence.Clear(ctx)
}
