package testutil

import (
	"net/http/httptest"
	"testing"
	"time"

	"musanzehub.com/hub-web/internal/hub/bookings"
	"musanzehub.com/hub-web/internal/hub/form"
	"musanzehub.com/hub-web/internal/hub/httpserver"
	"musanzehub.com/hub-web/internal/hub/identity"
)

// ServerOption customises the HTTP server configuration for tests.
type ServerOption func(*httpserver.Config)

// WithIdentities overrides the identity backend.
func WithIdentities(service identity.Service) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Identities = service
	}
}

// WithVerifier overrides the initial identity check.
func WithVerifier(verifier identity.Verifier) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Verifier = verifier
	}
}

// WithBookings wires a custom booking store.
func WithBookings(service bookings.Service) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Bookings = service
	}
}

// WithDrafts wires a custom draft store.
func WithDrafts(store form.DraftStore) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Drafts = store
	}
}

// WithSubmissionDelay paces stub submissions.
func WithSubmissionDelay(d time.Duration) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.SubmissionDelay = d
	}
}

// WithClock fixes the server's notion of now.
func WithClock(now func() time.Time) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Now = now
	}
}

// NewServer constructs an httptest server running the hub HTTP stack with in-memory collaborators.
func NewServer(t testing.TB, opts ...ServerOption) *httptest.Server {
	t.Helper()

	cfg := httpserver.Config{
		Address:            ":0",
		Identities:         identity.NewMemoryService(),
		LoginRetryAttempts: 2,
		LoginRetryInitial:  time.Millisecond,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	srv, err := httpserver.New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}
