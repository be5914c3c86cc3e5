// Package auth coordinates sign-up, sign-in and sign-out against the identity
// service and records the outcome in the visitor's session store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"musanzehub.com/hub-web/internal/hub/identity"
	"musanzehub.com/hub-web/internal/hub/observability"
	"musanzehub.com/hub-web/internal/hub/session"
)

const (
	defaultLoginAttempts = 3
	defaultLoginInitial  = 250 * time.Millisecond
)

// ErrAccountCreated is returned by RegisterAndLogin when registration succeeded
// but the follow-up login did not. The account exists server-side.
var ErrAccountCreated = errors.New("auth: account created but sign-in failed")

// Visitor binds gateway writes to one visitor's request state.
type Visitor struct {
	Store   *session.Store
	Session *session.Session
}

// PendingCredential is held only to chain registration into login.
type PendingCredential struct {
	Email    string
	Password string
}

// Zero wipes the credential.
func (p *PendingCredential) Zero() {
	p.Email = ""
	p.Password = ""
}

// Option customises a Gateway.
type Option func(*Gateway)

// WithLoginRetry bounds the login retries that follow a successful registration.
func WithLoginRetry(attempts int, initial time.Duration) Option {
	return func(g *Gateway) {
		if attempts > 0 {
			g.attempts = attempts
		}
		if initial > 0 {
			g.initial = initial
		}
	}
}

// Gateway wraps the identity service and writes results through to the session store.
type Gateway struct {
	identities identity.Service
	attempts   int
	initial    time.Duration
}

// NewGateway constructs a Gateway over the identity service.
func NewGateway(identities identity.Service, opts ...Option) *Gateway {
	if identities == nil {
		panic("identity service is required")
	}
	g := &Gateway{
		identities: identities,
		attempts:   defaultLoginAttempts,
		initial:    defaultLoginInitial,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Register creates an account. The visitor stays signed out until Login succeeds.
func (g *Gateway) Register(ctx context.Context, reg identity.Registration) (*identity.Identity, error) {
	acct, err := g.identities.Register(ctx, reg)
	if err != nil {
		return nil, err
	}
	observability.FromContext(ctx).Info("account registered",
		zap.String("account_id", acct.ID),
	)
	return &identity.Identity{ID: acct.ID, Email: acct.Email, Name: acct.Name}, nil
}

// Login authenticates the visitor and stores the identity and credential.
func (g *Gateway) Login(ctx context.Context, v Visitor, email, password string) (*identity.Identity, error) {
	result, err := g.identities.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	g.establish(v, result)
	id := result.Identity
	return &id, nil
}

// Logout signs the visitor out locally, then tells the identity service.
// Remote failures are logged and never block the local sign-out.
func (g *Gateway) Logout(ctx context.Context, v Visitor) {
	var cred identity.Credential
	if v.Session != nil {
		cred = v.Session.Credential()
	}
	if v.Store != nil {
		v.Store.Clear()
	}
	if v.Session != nil {
		v.Session.SetUser(nil)
	}

	if cred.Empty() {
		return
	}
	if err := g.identities.Logout(ctx, cred); err != nil {
		observability.FromContext(ctx).Warn("remote logout failed",
			zap.String("kind", string(identity.KindOf(err))),
			zap.Error(err),
		)
	}
}

// RegisterAndLogin registers an account and then signs the visitor in with the
// same credentials. Login is retried with backoff because a freshly created
// account may not be queryable yet.
func (g *Gateway) RegisterAndLogin(ctx context.Context, v Visitor, reg identity.Registration) (*identity.Identity, error) {
	pending := PendingCredential{Email: strings.TrimSpace(reg.Email), Password: reg.Password}
	defer pending.Zero()

	if _, err := g.Register(ctx, reg); err != nil {
		return nil, err
	}

	logger := observability.FromContext(ctx)
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = g.initial
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(g.attempts-1)), ctx)

	var result *identity.LoginResult
	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		res, err := g.identities.Login(ctx, pending.Email, pending.Password)
		if err == nil {
			result = res
			return nil
		}
		switch identity.KindOf(err) {
		case identity.KindInvalidCredentials, identity.KindNetwork:
			return err
		default:
			return backoff.Permanent(err)
		}
	}, retry, func(err error, wait time.Duration) {
		logger.Info("login after registration failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	if err != nil {
		logger.Warn("login after registration gave up",
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrAccountCreated, err)
	}

	g.establish(v, result)
	id := result.Identity
	return &id, nil
}

func (g *Gateway) establish(v Visitor, result *identity.LoginResult) {
	if v.Session != nil {
		v.Session.SetCredential(result.Credential)
	}
	id := result.Identity
	if v.Session != nil {
		v.Session.SetUser(&id)
	}
	if v.Store != nil {
		v.Store.SetIdentity(&id)
	}
}

// Message maps an auth or submission error to the single banner shown to the visitor.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrAccountCreated) {
		return "Your account was created, but we could not sign you in. Please sign in."
	}
	switch identity.KindOf(err) {
	case identity.KindConflict:
		return "An account with this email already exists. Please sign in instead."
	case identity.KindInvalidCredentials:
		return "Invalid email or password."
	case identity.KindNetwork:
		return "We could not reach the server. Please check your connection and try again."
	default:
		return "Something went wrong. Please try again."
	}
}
