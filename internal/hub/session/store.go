package session

import (
	"context"
	"sync"

	"musanzehub.com/hub-web/internal/hub/identity"
)

// State is an immutable view of the visitor's authentication state.
type State struct {
	Identity *identity.Identity
	Ready    bool
}

// Authenticated reports whether a resolved identity is present.
func (s State) Authenticated() bool {
	return s.Ready && !s.Identity.Empty()
}

// Store holds the authentication state for one request. Ready turns true once,
// when the initial identity check resolves or the auth gateway writes an identity.
type Store struct {
	mu      sync.Mutex
	state   State
	subs    []subscriber
	nextSub int
}

type subscriber struct {
	id int
	fn func(State)
}

// NewStore returns an unresolved store with no identity.
func NewStore() *Store {
	return &Store{}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to be called synchronously after every write, in
// subscription order. The returned function removes the subscription.
func (s *Store) Subscribe(fn func(State)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Resolve records the outcome of the initial identity check. Only the first call
// has any effect; it reports whether this call resolved the store.
func (s *Store) Resolve(id *identity.Identity) bool {
	s.mu.Lock()
	if s.state.Ready {
		s.mu.Unlock()
		return false
	}
	s.state = State{Identity: cloneIdentity(id), Ready: true}
	s.mu.Unlock()

	s.notify()
	return true
}

// SetIdentity records an identity confirmed by the auth gateway.
func (s *Store) SetIdentity(id *identity.Identity) {
	s.mu.Lock()
	s.state = State{Identity: cloneIdentity(id), Ready: true}
	s.mu.Unlock()

	s.notify()
}

// Clear removes the identity. The store stays ready.
func (s *Store) Clear() {
	s.mu.Lock()
	s.state = State{Ready: true}
	s.mu.Unlock()

	s.notify()
}

func (s *Store) notify() {
	s.mu.Lock()
	snap := s.snapshotLocked()
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(snap)
	}
}

func (s *Store) snapshotLocked() State {
	return State{Identity: cloneIdentity(s.state.Identity), Ready: s.state.Ready}
}

func cloneIdentity(id *identity.Identity) *identity.Identity {
	if id.Empty() {
		return nil
	}
	copied := *id
	return &copied
}

type storeContextKey struct{}

// WithStore attaches the store to ctx.
func WithStore(ctx context.Context, store *Store) context.Context {
	return context.WithValue(ctx, storeContextKey{}, store)
}

// StoreFromContext retrieves the request store, if any.
func StoreFromContext(ctx context.Context) (*Store, bool) {
	if ctx == nil {
		return nil, false
	}
	store, ok := ctx.Value(storeContextKey{}).(*Store)
	return store, ok && store != nil
}

type sessionContextKey struct{}

// WithSession attaches the cookie session to ctx.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// FromContext retrieves the cookie session attached to this request.
func FromContext(ctx context.Context) (*Session, bool) {
	if ctx == nil {
		return nil, false
	}
	sess, ok := ctx.Value(sessionContextKey{}).(*Session)
	return sess, ok && sess != nil
}
