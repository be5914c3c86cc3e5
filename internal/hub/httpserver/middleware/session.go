package middleware

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"musanzehub.com/hub-web/internal/hub/observability"
	appsession "musanzehub.com/hub-web/internal/hub/session"
)

// SessionStore abstracts the session manager for middleware integration.
type SessionStore interface {
	Load(*http.Request) (*appsession.Session, error)
	New() *appsession.Session
	Save(http.ResponseWriter, *appsession.Session) error
	Destroy(http.ResponseWriter)
}

// Session attaches the decoded session to the request context and writes the
// cookie back just before the first byte of the response.
func Session(store SessionStore) func(http.Handler) http.Handler {
	if store == nil {
		panic("session store is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := observability.FromContext(r.Context())

			sess, err := store.Load(r)
			if errors.Is(err, appsession.ErrExpired) {
				logger.Info("session expired: resetting")
				store.Destroy(w)
				sess = store.New()
			} else if err != nil || sess == nil {
				if err != nil {
					logger.Warn("session load failed", zap.Error(err))
				}
				sess = store.New()
			}

			sw := &sessionWriter{ResponseWriter: w}
			sw.beforeWrite = func(w http.ResponseWriter) {
				if err := store.Save(w, sess); err != nil {
					logger.Error("session save failed", zap.Error(err))
				}
			}

			next.ServeHTTP(sw, r.WithContext(appsession.WithSession(r.Context(), sess)))

			// Nothing written (e.g. an empty 200): persist now.
			sw.flushHeaders()
		})
	}
}

// SessionFromRequest retrieves the session attached by Session.
func SessionFromRequest(r *http.Request) (*appsession.Session, bool) {
	return appsession.FromContext(r.Context())
}

type sessionWriter struct {
	http.ResponseWriter
	beforeWrite func(http.ResponseWriter)
	wrote       bool
}

func (w *sessionWriter) flushHeaders() {
	if w.wrote {
		return
	}
	w.wrote = true
	if w.beforeWrite != nil {
		w.beforeWrite(w.ResponseWriter)
	}
}

func (w *sessionWriter) WriteHeader(status int) {
	w.flushHeaders()
	w.ResponseWriter.WriteHeader(status)
}

func (w *sessionWriter) Write(b []byte) (int, error) {
	w.flushHeaders()
	return w.ResponseWriter.Write(b)
}

func (w *sessionWriter) Flush() {
	w.flushHeaders()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *sessionWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
