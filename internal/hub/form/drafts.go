package form

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNoDraft is returned when no draft is stored for the key.
var ErrNoDraft = errors.New("form: no draft")

// DraftStore persists form state between requests, keyed by session and form name.
type DraftStore interface {
	Load(ctx context.Context, sessionID, form string) (*State, error)
	Save(ctx context.Context, sessionID, form string, state *State) error
	Delete(ctx context.Context, sessionID, form string) error
}

// MemoryDraftStore keeps drafts in process memory with a sliding TTL.
type MemoryDraftStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryDraft
}

type memoryDraft struct {
	state   State
	expires time.Time
}

// NewMemoryDraftStore constructs a MemoryDraftStore. now may be nil.
func NewMemoryDraftStore(ttl time.Duration, now func() time.Time) *MemoryDraftStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryDraftStore{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]memoryDraft),
	}
}

// Load implements DraftStore.
func (s *MemoryDraftStore) Load(_ context.Context, sessionID, form string) (*State, error) {
	key := draftKey(sessionID, form)
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, ErrNoDraft
	}
	if s.now().After(entry.expires) {
		delete(s.entries, key)
		return nil, ErrNoDraft
	}
	return cloneState(&entry.state), nil
}

// Save implements DraftStore.
func (s *MemoryDraftStore) Save(_ context.Context, sessionID, form string, state *State) error {
	if state == nil {
		return errors.New("form: nil draft")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.entries[draftKey(sessionID, form)] = memoryDraft{
		state:   *cloneState(state),
		expires: s.now().Add(s.ttl),
	}
	return nil
}

// Delete implements DraftStore.
func (s *MemoryDraftStore) Delete(_ context.Context, sessionID, form string) error {
	s.mu.Lock()
	delete(s.entries, draftKey(sessionID, form))
	s.mu.Unlock()
	return nil
}

// Len reports the number of live drafts.
func (s *MemoryDraftStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	return len(s.entries)
}

func (s *MemoryDraftStore) sweepLocked() {
	now := s.now()
	for key, entry := range s.entries {
		if now.After(entry.expires) {
			delete(s.entries, key)
		}
	}
}

func draftKey(sessionID, form string) string {
	return sessionID + ":" + form
}

func cloneState(in *State) *State {
	out := &State{
		Values:      make(map[string]string, len(in.Values)),
		Errors:      make(map[string]string, len(in.Errors)),
		CurrentStep: in.CurrentStep,
		Submitting:  in.Submitting,
		Outcome:     in.Outcome,
	}
	for k, v := range in.Values {
		out.Values[k] = v
	}
	for k, v := range in.Errors {
		out.Errors[k] = v
	}
	return out
}
