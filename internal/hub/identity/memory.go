package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"
)

// MemoryService is an in-process identity backend used for local development
// and tests when no identity service is configured.
type MemoryService struct {
	mu       sync.Mutex
	accounts map[string]memoryAccount
	sessions map[string]string
	cost     int
}

type memoryAccount struct {
	id   string
	hash []byte
	name string
	mail string
}

const memorySessionCookie = "hub_identity"

// NewMemoryService constructs an empty MemoryService.
func NewMemoryService() *MemoryService {
	return &MemoryService{
		accounts: make(map[string]memoryAccount),
		sessions: make(map[string]string),
		cost:     bcrypt.MinCost,
	}
}

// Register implements Service.
func (s *MemoryService) Register(ctx context.Context, reg Registration) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, &AuthError{Kind: KindNetwork, Err: err}
	}
	key := normaliseEmail(reg.Email)
	if key == "" || reg.Password == "" {
		return nil, &AuthError{Kind: KindUnknown, Status: http.StatusBadRequest, Err: errors.New("email and password are required")}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost)
	if err != nil {
		return nil, &AuthError{Kind: KindUnknown, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[key]; exists {
		return nil, &AuthError{Kind: KindConflict, Status: http.StatusConflict, Err: errors.New("user already exists")}
	}
	acct := memoryAccount{
		id:   ulid.Make().String(),
		hash: hash,
		name: strings.TrimSpace(strings.TrimSpace(reg.FirstName) + " " + strings.TrimSpace(reg.LastName)),
		mail: strings.TrimSpace(reg.Email),
	}
	s.accounts[key] = acct
	return &Account{ID: acct.id, Email: acct.mail, Name: acct.name}, nil
}

// Login implements Service.
func (s *MemoryService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &AuthError{Kind: KindNetwork, Err: err}
	}
	s.mu.Lock()
	acct, ok := s.accounts[normaliseEmail(email)]
	s.mu.Unlock()
	if !ok {
		return nil, &AuthError{Kind: KindInvalidCredentials, Status: http.StatusUnauthorized, Err: errors.New("unknown account")}
	}
	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(password)); err != nil {
		return nil, &AuthError{Kind: KindInvalidCredentials, Status: http.StatusUnauthorized, Err: err}
	}

	sid := ulid.Make().String()
	s.mu.Lock()
	s.sessions[sid] = acct.id
	s.mu.Unlock()

	return &LoginResult{
		Identity:   Identity{ID: acct.id, Email: acct.mail, Name: acct.name},
		Credential: Credential{Cookies: []Cookie{{Name: memorySessionCookie, Value: sid}}},
	}, nil
}

// Logout implements Service.
func (s *MemoryService) Logout(ctx context.Context, cred Credential) error {
	if err := ctx.Err(); err != nil {
		return &AuthError{Kind: KindNetwork, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cred.Cookies {
		if c.Name == memorySessionCookie {
			delete(s.sessions, c.Value)
		}
	}
	return nil
}

// ActiveSessions reports the number of remote sessions still open.
func (s *MemoryService) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
