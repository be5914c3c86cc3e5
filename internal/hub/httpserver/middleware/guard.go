package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"musanzehub.com/hub-web/internal/hub/guard"
	"musanzehub.com/hub-web/internal/hub/observability"
)

// LoadingRefreshSeconds is how soon the placeholder page asks the browser to retry.
const LoadingRefreshSeconds = "2"

// Guard protects routes that need a signed-in visitor. While the identity check
// is unresolved it serves loading with a Refresh header and makes no redirect.
func Guard(loading http.Handler) func(http.Handler) http.Handler {
	if loading == nil {
		loading = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "checking session", http.StatusOK)
		})
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := guard.Decide(StateFromRequest(r), r.URL.RequestURI())
			switch decision.Action {
			case guard.Loading:
				w.Header().Set("Refresh", LoadingRefreshSeconds)
				loading.ServeHTTP(w, r)
			case guard.Redirect:
				observability.FromContext(r.Context()).Debug("guard redirect",
					zap.String("location", decision.Location),
				)
				if IsHTMXRequest(r.Context()) {
					w.Header().Set("HX-Redirect", decision.Location)
					http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
					return
				}
				http.Redirect(w, r, decision.Location, http.StatusFound)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
