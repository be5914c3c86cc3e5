// Package guard decides how a protected route responds to the visitor's session state.
package guard

import (
	"net/url"
	"path"
	"strings"

	"musanzehub.com/hub-web/internal/hub/session"
)

// SignInPath is the sign-in destination used for redirects.
const SignInPath = "/signin"

// Action is the outcome category of a guard decision.
type Action int

const (
	// Loading means the initial identity check has not resolved; no decision is made.
	Loading Action = iota
	// Redirect sends the visitor to sign-in with the requested location preserved.
	Redirect
	// Render serves the guarded content.
	Render
)

func (a Action) String() string {
	switch a {
	case Loading:
		return "loading"
	case Redirect:
		return "redirect"
	case Render:
		return "render"
	default:
		return "unknown"
	}
}

// Decision is the result of Decide.
type Decision struct {
	Action   Action
	Location string
}

// Decide is a pure function of the session state and the requested location.
func Decide(state session.State, requested string) Decision {
	if !state.Ready {
		return Decision{Action: Loading}
	}
	if state.Identity.Empty() {
		return Decision{Action: Redirect, Location: SignInURL(requested)}
	}
	return Decision{Action: Render}
}

// SignInURL builds the sign-in location carrying requested as the return target.
func SignInURL(requested string) string {
	next := SanitizeNext(requested)
	if next == "" {
		return SignInPath
	}
	return SignInPath + "?" + url.Values{"next": {next}}.Encode()
}

// SanitizeNext reduces raw to a local path suitable for a post-sign-in redirect.
// Anything pointing off-site, or back at the auth pages, yields "".
func SanitizeNext(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if parsed.Scheme != "" || parsed.Host != "" || parsed.Opaque != "" {
		return ""
	}
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return ""
	}

	unescaped, err := url.PathUnescape(parsed.Path)
	if err != nil {
		return ""
	}
	if strings.Contains(unescaped, "\\") {
		return ""
	}

	cleaned := path.Clean(unescaped)
	if !strings.HasPrefix(cleaned, "/") || strings.HasPrefix(cleaned, "//") {
		return ""
	}
	switch cleaned {
	case SignInPath, "/signup", "/signout":
		return ""
	}

	target := cleaned
	if parsed.RawQuery != "" {
		target += "?" + parsed.RawQuery
	}
	return target
}
