package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("musanzehub.com/hub-web/internal/hub/identity")

// HTTPClient matches the subset of http.Client used by HTTPService.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// HTTPService implements Service against the hub identity REST API.
type HTTPService struct {
	base   *url.URL
	client HTTPClient
}

// NewHTTPService constructs a Service that talks to the identity backend.
func NewHTTPService(baseURL string, client HTTPClient) (*HTTPService, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("identity: base URL is required")
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("identity: parse base URL: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPService{
		base:   parsed,
		client: client,
	}, nil
}

// Register creates a new account. Any 2xx reply counts as success; the body may be empty.
func (s *HTTPService) Register(ctx context.Context, reg Registration) (acct *Account, err error) {
	ctx, span := tracer.Start(ctx, "identity.Register", trace.WithSpanKind(trace.SpanKindClient))
	defer func() { endSpan(span, err) }()

	reg.Email = strings.TrimSpace(reg.Email)
	req, err := s.newJSONRequest(ctx, http.MethodPost, "auth/register", reg, Credential{})
	if err != nil {
		return nil, NewAuthError(KindUnknown, err)
	}
	resp, err := s.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if !success(resp.StatusCode) {
		return nil, s.registerError(resp)
	}

	payload, err := decodeAccount(resp.Body)
	if err != nil {
		return nil, NewAuthError(KindUnknown, fmt.Errorf("decode register response: %w", err))
	}
	acct = &Account{ID: payload.subject(), Email: payload.email(), Name: payload.name()}
	if acct.Email == "" {
		acct.Email = reg.Email
	}
	return acct, nil
}

// Login exchanges credentials for an identity plus whatever cookies the service set.
func (s *HTTPService) Login(ctx context.Context, email, password string) (result *LoginResult, err error) {
	ctx, span := tracer.Start(ctx, "identity.Login", trace.WithSpanKind(trace.SpanKindClient))
	defer func() { endSpan(span, err) }()

	body := map[string]string{
		"email":    strings.TrimSpace(email),
		"password": password,
	}
	req, err := s.newJSONRequest(ctx, http.MethodPost, "login", body, Credential{})
	if err != nil {
		return nil, NewAuthError(KindUnknown, err)
	}
	resp, err := s.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if !success(resp.StatusCode) {
		return nil, s.loginError(resp)
	}

	payload, err := decodeAccount(resp.Body)
	if err != nil {
		return nil, NewAuthError(KindUnknown, fmt.Errorf("decode login response: %w", err))
	}

	result = &LoginResult{
		Identity: Identity{
			ID:    payload.subject(),
			Email: payload.email(),
			Name:  payload.name(),
		},
		Credential: Credential{Token: payload.token()},
	}
	if result.Identity.Email == "" {
		result.Identity.Email = strings.TrimSpace(email)
	}
	if result.Identity.ID == "" {
		result.Identity.ID = result.Identity.Email
	}
	for _, c := range resp.Cookies() {
		if c.Name == "" || c.Value == "" {
			continue
		}
		result.Credential.Cookies = append(result.Credential.Cookies, Cookie{Name: c.Name, Value: c.Value})
	}
	return result, nil
}

// Logout ends the remote session identified by cred.
func (s *HTTPService) Logout(ctx context.Context, cred Credential) (err error) {
	ctx, span := tracer.Start(ctx, "identity.Logout", trace.WithSpanKind(trace.SpanKindClient))
	defer func() { endSpan(span, err) }()

	req, err := s.newRequest(ctx, http.MethodPost, "logout", nil, cred)
	if err != nil {
		return NewAuthError(KindUnknown, err)
	}
	resp, err := s.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode >= http.StatusMultipleChoices {
		return &AuthError{Kind: KindUnknown, Status: resp.StatusCode, Err: fmt.Errorf("logout returned %d", resp.StatusCode)}
	}
	return nil
}

func success(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}

func (s *HTTPService) do(req *http.Request) (*http.Response, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &AuthError{Kind: KindNetwork, Err: fmt.Errorf("request failed: %w", err)}
	}
	return resp, nil
}

func (s *HTTPService) newRequest(ctx context.Context, method, endpoint string, body io.Reader, cred Credential) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.resolve(endpoint), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if cred.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cred.Token)
	}
	for _, c := range cred.Cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	return req, nil
}

func (s *HTTPService) newJSONRequest(ctx context.Context, method, endpoint string, payload any, cred Credential) (*http.Request, error) {
	var buf bytes.Buffer
	if payload != nil {
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(payload); err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
	}
	req, err := s.newRequest(ctx, method, endpoint, &buf, cred)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (s *HTTPService) resolve(endpoint string) string {
	ref := &url.URL{Path: strings.TrimPrefix(endpoint, "/")}
	return s.base.ResolveReference(ref).String()
}

func (s *HTTPService) registerError(resp *http.Response) error {
	message := readErrorMessage(resp)
	kind := KindUnknown
	switch {
	case resp.StatusCode == http.StatusConflict:
		kind = KindConflict
	case resp.StatusCode < http.StatusInternalServerError && mentionsExistingAccount(message):
		kind = KindConflict
	}
	return &AuthError{Kind: kind, Status: resp.StatusCode, Err: backendError(resp.StatusCode, message)}
}

func (s *HTTPService) loginError(resp *http.Response) error {
	message := readErrorMessage(resp)
	kind := KindUnknown
	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		kind = KindInvalidCredentials
	}
	return &AuthError{Kind: kind, Status: resp.StatusCode, Err: backendError(resp.StatusCode, message)}
}

func backendError(status int, message string) error {
	if message == "" {
		message = http.StatusText(status)
	}
	return fmt.Errorf("backend error (%d): %s", status, message)
}

func readErrorMessage(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if len(body) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return strings.TrimSpace(payload.Message)
		}
		if payload.Error != "" {
			return strings.TrimSpace(payload.Error)
		}
	}
	return strings.TrimSpace(string(body))
}

func mentionsExistingAccount(message string) bool {
	lower := strings.ToLower(message)
	if !strings.Contains(lower, "exist") && !strings.Contains(lower, "already") && !strings.Contains(lower, "in use") {
		return false
	}
	return strings.Contains(lower, "user") || strings.Contains(lower, "account") || strings.Contains(lower, "email")
}

// accountPayload tolerates the shapes the identity service has used over time:
// a bare account, or one nested under "user" or "data".
type accountPayload struct {
	ID          string          `json:"id"`
	MongoID     string          `json:"_id"`
	UID         string          `json:"uid"`
	Email       string          `json:"email"`
	Name        string          `json:"name"`
	FirstName   string          `json:"firstName"`
	LastName    string          `json:"lastName"`
	Token       string          `json:"token"`
	IDToken     string          `json:"idToken"`
	AccessToken string          `json:"accessToken"`
	User        *accountPayload `json:"user"`
	Data        *accountPayload `json:"data"`
}

func decodeAccount(r io.Reader) (*accountPayload, error) {
	body, err := io.ReadAll(io.LimitReader(r, 1<<20))
	if err != nil {
		return nil, err
	}
	var payload accountPayload
	if len(bytes.TrimSpace(body)) == 0 {
		return &payload, nil
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (p *accountPayload) nested() []*accountPayload {
	out := []*accountPayload{p}
	if p.User != nil {
		out = append(out, p.User)
	}
	if p.Data != nil {
		out = append(out, p.Data)
		if p.Data.User != nil {
			out = append(out, p.Data.User)
		}
	}
	return out
}

func (p *accountPayload) subject() string {
	for _, candidate := range p.nested() {
		for _, v := range []string{candidate.ID, candidate.MongoID, candidate.UID} {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func (p *accountPayload) email() string {
	for _, candidate := range p.nested() {
		if v := strings.TrimSpace(candidate.Email); v != "" {
			return v
		}
	}
	return ""
}

func (p *accountPayload) name() string {
	for _, candidate := range p.nested() {
		if v := strings.TrimSpace(candidate.Name); v != "" {
			return v
		}
		full := strings.TrimSpace(strings.TrimSpace(candidate.FirstName) + " " + strings.TrimSpace(candidate.LastName))
		if full != "" {
			return full
		}
	}
	return ""
}

func (p *accountPayload) token() string {
	for _, candidate := range p.nested() {
		for _, v := range []string{candidate.Token, candidate.IDToken, candidate.AccessToken} {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindOf(err)))
	}
	span.End()
}
