package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"resumeai.app/resume-ai/internal/cache"
)

const keyPrefix = "session:"

// Store persists sessions as JSON in a cache.Store with a sliding TTL.
type Store struct {
	cache cache.Store
	ttl   time.Duration
}

func NewStore(c cache.Store, ttl time.Duration) *Store {
	return &Store{cache: c, ttl: ttl}
}

// Get returns (nil, nil) when the session does not exist or has expired.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, nil
	}
	raw, ok, err := s.cache.Get(ctx, keyPrefix+id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &sess, nil
}

func (s *Store) Save(ctx context.Context, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.cache.Set(ctx, keyPrefix+sess.ID, raw, s.ttl); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.cache.Delete(ctx, keyPrefix+id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
