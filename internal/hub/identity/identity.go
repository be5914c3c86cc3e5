// Package identity talks to the external identity service that owns hub accounts.
package identity

import (
	"context"
	"errors"
	"strings"
)

// Identity is the minimal profile of an authenticated visitor.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Empty reports whether the identity carries no usable subject.
func (i *Identity) Empty() bool {
	return i == nil || (strings.TrimSpace(i.ID) == "" && strings.TrimSpace(i.Email) == "")
}

// Cookie is a credential cookie issued by the identity service.
type Cookie struct {
	Name  string `json:"n"`
	Value string `json:"v"`
}

// Credential is what the identity service handed back on login.
type Credential struct {
	Token   string   `json:"token,omitempty"`
	Cookies []Cookie `json:"cookies,omitempty"`
}

// Empty reports whether nothing needs forwarding on logout.
func (c Credential) Empty() bool {
	return strings.TrimSpace(c.Token) == "" && len(c.Cookies) == 0
}

// Registration is the sign-up payload accepted by POST /auth/register.
type Registration struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DateOfBirth string `json:"dateOfBirth"`
	PhoneNumber string `json:"phoneNumber"`
	Address     string `json:"address"`
}

// Account is the created-account payload returned by registration.
type Account struct {
	ID    string
	Email string
	Name  string
}

// LoginResult carries the identity and credential of a successful login.
type LoginResult struct {
	Identity   Identity
	Credential Credential
}

// Service abstracts the identity backend.
type Service interface {
	Register(ctx context.Context, reg Registration) (*Account, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Logout(ctx context.Context, cred Credential) error
}

// Kind classifies identity failures for user-facing messages.
type Kind string

const (
	// KindConflict indicates the account already exists.
	KindConflict Kind = "conflict"
	// KindInvalidCredentials indicates rejected email/password.
	KindInvalidCredentials Kind = "invalid_credentials"
	// KindNetwork indicates a transport failure reaching the service.
	KindNetwork Kind = "network"
	// KindUnknown covers every other failure.
	KindUnknown Kind = "unknown"
)

// AuthError wraps identity failures with a Kind.
type AuthError struct {
	Kind   Kind
	Status int
	Err    error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Err == nil {
		return "identity: " + string(e.Kind)
	}
	return "identity: " + string(e.Kind) + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError constructs an AuthError of the given kind.
func NewAuthError(kind Kind, err error) error {
	return &AuthError{Kind: kind, Err: err}
}

// KindOf extracts the Kind of err, defaulting to KindUnknown.
func KindOf(err error) Kind {
	var authErr *AuthError
	if errors.As(err, &authErr) && authErr.Kind != "" {
		return authErr.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is an AuthError of kind.
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}
