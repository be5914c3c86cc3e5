package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"musanzehub.com/hub-web/internal/hub/identity"
	"musanzehub.com/hub-web/internal/hub/observability"
	appsession "musanzehub.com/hub-web/internal/hub/session"
)

// Identity seeds a per-request session store from the cookie session and runs
// the initial identity check. A verifier error leaves the store unresolved.
// Store writes are mirrored into the cookie session so the response persists them.
func Identity(verifier identity.Verifier) func(http.Handler) http.Handler {
	if verifier == nil {
		verifier = identity.SessionVerifier{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sess, ok := appsession.FromContext(ctx)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			logger := observability.FromContext(ctx)
			store := appsession.NewStore()
			store.Subscribe(writeThrough(sess))

			claimed := sess.User()
			if claimed.Empty() {
				store.Resolve(nil)
			} else {
				verified, err := verifier.Verify(ctx, claimed, sess.Credential())
				switch {
				case err != nil:
					logger.Warn("identity check unresolved",
						zap.String("kind", string(identity.KindOf(err))),
						zap.Error(err),
					)
				case verified.Empty():
					logger.Info("stored identity rejected", zap.String("user_id", claimed.ID))
					store.Resolve(nil)
				default:
					store.Resolve(verified)
				}
			}

			if state := store.Snapshot(); state.Authenticated() {
				ctx = observability.WithLogger(ctx, logger.With(zap.String("user_id", state.Identity.ID)))
			}
			ctx = appsession.WithStore(ctx, store)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StateFromRequest returns the visitor's current session state.
func StateFromRequest(r *http.Request) appsession.State {
	if store, ok := appsession.StoreFromContext(r.Context()); ok {
		return store.Snapshot()
	}
	return appsession.State{}
}

func writeThrough(sess *appsession.Session) func(appsession.State) {
	return func(state appsession.State) {
		if !state.Ready {
			return
		}
		current := sess.User()
		if state.Identity.Empty() {
			if current != nil {
				sess.SetUser(nil)
			}
			return
		}
		if current == nil || *current != *state.Identity {
			sess.SetUser(state.Identity)
		}
	}
}
