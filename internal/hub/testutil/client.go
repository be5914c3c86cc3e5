package testutil

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

// Client is a browser-like test client: it keeps cookies, does not follow
// redirects and echoes the last CSRF token it saw on unsafe requests.
type Client struct {
	t       testing.TB
	baseURL string
	http    *http.Client

	mu   sync.Mutex
	csrf string
}

// Response is a fully read response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Doc parses the body as HTML.
func (r Response) Doc(t testing.TB) *goquery.Document {
	t.Helper()
	return ParseHTML(t, r.Body)
}

// NewClient returns a client bound to ts.
func NewClient(t testing.TB, ts *httptest.Server) *Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &Client{
		t:       t,
		baseURL: ts.URL,
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// CSRFToken returns the token captured from the last rendered page.
func (c *Client) CSRFToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.csrf
}

// Get issues a GET request.
func (c *Client) Get(path string, headers ...string) Response {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	return c.do(req, headers)
}

// Post submits values as a form, adding the captured CSRF token unless
// values already carries one.
func (c *Client) Post(path string, values url.Values, headers ...string) Response {
	c.t.Helper()
	if values == nil {
		values = url.Values{}
	}
	if _, ok := values["csrf_token"]; !ok {
		if token := c.CSRFToken(); token != "" {
			values.Set("csrf_token", token)
		}
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, strings.NewReader(values.Encode()))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, headers)
}

// headers are name/value pairs.
func (c *Client) do(req *http.Request, headers []string) Response {
	c.t.Helper()
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("read body: %v", err)
	}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		if token, ok := ParseHTML(c.t, body).Find(`meta[name="csrf-token"]`).Attr("content"); ok && token != "" {
			c.mu.Lock()
			c.csrf = token
			c.mu.Unlock()
		}
	}
	return Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}
}
