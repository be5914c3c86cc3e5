package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
)

// Verifier performs the initial identity check for a request. It returns the
// confirmed identity, nil when the visitor is anonymous, or an error when the
// answer is not known yet.
type Verifier interface {
	Verify(ctx context.Context, claimed *Identity, cred Credential) (*Identity, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, claimed *Identity, cred Credential) (*Identity, error)

// Verify implements Verifier.
func (f VerifierFunc) Verify(ctx context.Context, claimed *Identity, cred Credential) (*Identity, error) {
	return f(ctx, claimed, cred)
}

// SessionVerifier trusts the identity recorded in the signed session cookie.
type SessionVerifier struct{}

// Verify implements Verifier.
func (SessionVerifier) Verify(_ context.Context, claimed *Identity, _ Credential) (*Identity, error) {
	if claimed.Empty() {
		return nil, nil
	}
	out := *claimed
	return &out, nil
}

// FirebaseTokenVerifier abstracts the Firebase Admin SDK client for testability.
type FirebaseTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// FirebaseVerifier re-checks the stored ID token against Firebase on each request.
type FirebaseVerifier struct {
	tokens  FirebaseTokenVerifier
	timeout time.Duration
}

// NewFirebaseVerifier constructs a Verifier backed by the provided token verifier.
func NewFirebaseVerifier(tokens FirebaseTokenVerifier, timeout time.Duration) *FirebaseVerifier {
	if tokens == nil {
		panic("firebase token verifier is required")
	}
	return &FirebaseVerifier{tokens: tokens, timeout: timeout}
}

// Verify implements Verifier. Expired or rejected tokens yield an anonymous
// visitor; failures to reach Firebase leave the outcome undecided.
func (v *FirebaseVerifier) Verify(ctx context.Context, claimed *Identity, cred Credential) (*Identity, error) {
	if claimed.Empty() {
		return nil, nil
	}
	token := strings.TrimSpace(cred.Token)
	if token == "" {
		return nil, nil
	}

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	verified, err := v.tokens.VerifyIDToken(ctx, token)
	if err != nil {
		switch {
		case firebaseauth.IsCertificateFetchFailed(err),
			errors.Is(err, context.DeadlineExceeded),
			errors.Is(err, context.Canceled):
			return nil, &AuthError{Kind: KindNetwork, Err: fmt.Errorf("verify id token: %w", err)}
		default:
			// expired, revoked or malformed
			return nil, nil
		}
	}

	out := Identity{
		ID:    verified.UID,
		Email: claimString(verified.Claims["email"]),
		Name:  claimString(verified.Claims["name"]),
	}
	if out.Email == "" {
		out.Email = claimed.Email
	}
	if out.Name == "" {
		out.Name = claimed.Name
	}
	return &out, nil
}

func claimString(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case *string:
		if v == nil {
			return ""
		}
		return strings.TrimSpace(*v)
	default:
		return ""
	}
}
