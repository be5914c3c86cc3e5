package form

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisDraftPrefix = "hub:draft:"

// RedisDraftStore keeps drafts in Redis so they survive restarts and are shared
// between instances.
type RedisDraftStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisDraftStore constructs a RedisDraftStore.
func NewRedisDraftStore(rdb *redis.Client, ttl time.Duration) *RedisDraftStore {
	if rdb == nil {
		panic("redis client is required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisDraftStore{rdb: rdb, ttl: ttl}
}

// Load implements DraftStore. The TTL slides on every read.
func (s *RedisDraftStore) Load(ctx context.Context, sessionID, form string) (*State, error) {
	key := redisDraftPrefix + draftKey(sessionID, form)
	raw, err := s.rdb.GetEx(ctx, key, s.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoDraft
	}
	if err != nil {
		return nil, fmt.Errorf("form: load draft: %w", err)
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		_ = s.rdb.Del(ctx, key).Err()
		return nil, ErrNoDraft
	}
	return &state, nil
}

// Save implements DraftStore.
func (s *RedisDraftStore) Save(ctx context.Context, sessionID, form string, state *State) error {
	if state == nil {
		return errors.New("form: nil draft")
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("form: encode draft: %w", err)
	}
	if err := s.rdb.Set(ctx, redisDraftPrefix+draftKey(sessionID, form), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("form: save draft: %w", err)
	}
	return nil
}

// Delete implements DraftStore.
func (s *RedisDraftStore) Delete(ctx context.Context, sessionID, form string) error {
	if err := s.rdb.Del(ctx, redisDraftPrefix+draftKey(sessionID, form)).Err(); err != nil {
		return fmt.Errorf("form: delete draft: %w", err)
	}
	return nil
}
