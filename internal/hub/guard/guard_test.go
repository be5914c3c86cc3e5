package guard

import (
	"testing"

	"github.com/stretchr/testify/require"

	"musanzehub.com/hub-web/internal/hub/identity"
	"musanzehub.com/hub-web/internal/hub/session"
)

func TestDecideNeverRedirectsBeforeReady(t *testing.T) {
	t.Parallel()

	identities := []*identity.Identity{nil, {}, {ID: "u-1"}, {Email: "ada@example.com"}}
	paths := []string{"/dashboard", "/appointment", "", "https://evil.example"}

	for _, id := range identities {
		for _, p := range paths {
			got := Decide(session.State{Identity: id, Ready: false}, p)
			require.Equal(t, Loading, got.Action, "identity=%v path=%q", id, p)
			require.Empty(t, got.Location)
		}
	}
}

func TestDecideRedirectsAnonymous(t *testing.T) {
	t.Parallel()

	got := Decide(session.State{Ready: true}, "/appointment")
	require.Equal(t, Decision{Action: Redirect, Location: "/signin?next=%2Fappointment"}, got)
}

func TestDecideRendersAuthenticated(t *testing.T) {
	t.Parallel()

	got := Decide(session.State{Ready: true, Identity: &identity.Identity{ID: "u-1"}}, "/dashboard")
	require.Equal(t, Render, got.Action)
}

func TestSanitizeNext(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":                           "",
		"/dashboard":                 "/dashboard",
		"/dashboard?tab=profile":     "/dashboard?tab=profile",
		"/appointment/../dashboard":  "/dashboard",
		"dashboard":                  "",
		"//evil.example/path":        "",
		"https://evil.example/":      "",
		"/%5Cevil":                   "",
		"/signin":                    "",
		"/signup":                    "",
		"javascript:alert(1)":        "",
		"/gallery?category=events#x": "/gallery?category=events",
	}
	for in, want := range cases {
		require.Equal(t, want, SanitizeNext(in), "input %q", in)
	}
}

func TestSignInURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "/signin", SignInURL(""))
	require.Equal(t, "/signin", SignInURL("https://evil.example"))
	require.Equal(t, "/signin?next=%2Fdashboard%3Ftab%3Dappointments", SignInURL("/dashboard?tab=appointments"))
}

func TestActionString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "loading", Loading.String())
	require.Equal(t, "redirect", Redirect.String())
	require.Equal(t, "render", Render.String())
}
