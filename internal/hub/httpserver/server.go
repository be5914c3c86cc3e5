// Package httpserver assembles the hub's router, middleware stack and handlers.
package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"musanzehub.com/hub-web/internal/hub/auth"
	"musanzehub.com/hub-web/internal/hub/bookings"
	"musanzehub.com/hub-web/internal/hub/content"
	"musanzehub.com/hub-web/internal/hub/form"
	custommw "musanzehub.com/hub-web/internal/hub/httpserver/middleware"
	"musanzehub.com/hub-web/internal/hub/httpserver/ui"
	"musanzehub.com/hub-web/internal/hub/identity"
	"musanzehub.com/hub-web/internal/hub/observability"
	"musanzehub.com/hub-web/internal/hub/session"
	"musanzehub.com/hub-web/internal/hub/submission"
	"musanzehub.com/hub-web/internal/hub/templates"
	"musanzehub.com/hub-web/public"
)

const (
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 30 * time.Second
	defaultIdleTimeout    = 60 * time.Second
	defaultRequestTimeout = 60 * time.Second
	defaultDraftTTL       = time.Hour
)

// Config holds runtime options for the hub HTTP server. Zero values fall back
// to in-memory collaborators suitable for local development and tests.
type Config struct {
	Address string
	Logger  *zap.Logger

	Sessions   custommw.SessionStore
	Verifier   identity.Verifier
	Identities identity.Service

	LoginRetryAttempts int
	LoginRetryInitial  time.Duration

	Drafts    form.DraftStore
	DraftTTL  time.Duration
	Bookings  bookings.Service
	Catalogue *content.Catalogue
	Renderer  *templates.Renderer

	SubmissionDelay time.Duration
	Now             func() time.Time

	CSRFHeaderName string
	CSRFFieldName  string

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

// New constructs the HTTP server with middleware stack and embedded assets.
func New(cfg Config) (*http.Server, error) {
	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}

	handlers := ui.New(ui.Deps{
		Auth:            auth.NewGateway(cfg.Identities, auth.WithLoginRetry(cfg.LoginRetryAttempts, cfg.LoginRetryInitial)),
		Renderer:        cfg.Renderer,
		Catalogue:       cfg.Catalogue,
		Bookings:        cfg.Bookings,
		Drafts:          cfg.Drafts,
		Pipeline:        submission.New(submission.WithMessages(auth.Message)),
		SubmissionDelay: cfg.SubmissionDelay,
		Now:             cfg.Now,
	})

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(observability.InjectLoggerMiddleware(cfg.Logger))
	router.Use(observability.RequestLoggerMiddleware())
	router.Use(observability.RecoveryMiddleware(cfg.Logger))
	router.Use(chimw.Timeout(cfg.RequestTimeout))

	staticContent, err := public.StaticFS()
	if err != nil {
		return nil, fmt.Errorf("httpserver: embed static: %w", err)
	}
	router.Handle("/public/static/*", http.StripPrefix("/public/static/", http.FileServer(http.FS(staticContent))))
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	pageStack := chi.Chain(
		custommw.HTMX(),
		custommw.NoStore(),
		custommw.RequestInfoMiddleware(),
		custommw.Session(cfg.Sessions),
		custommw.Identity(cfg.Verifier),
		custommw.CSRF(custommw.CSRFConfig{HeaderName: cfg.CSRFHeaderName, FieldName: cfg.CSRFFieldName}),
	)

	router.Group(func(r chi.Router) {
		r.Use(pageStack...)
		mountPageRoutes(r, handlers)
	})
	router.NotFound(pageStack.HandlerFunc(handlers.NotFound).ServeHTTP)

	return &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}, nil
}

func mountPageRoutes(r chi.Router, h *ui.Handlers) {
	r.Get("/", h.Home)

	r.Get("/gallery", h.Gallery)
	r.Get("/gallery/items/{itemID}", h.GalleryItem)

	r.Get("/hire-talent", h.HireTalent)
	r.Post("/hire-talent", h.HireTalentSubmit)
	r.Get("/hire-talent/profiles/{profileID}", h.TalentProfile)

	r.Get("/signin", h.SigninForm)
	r.Post("/signin", h.SigninSubmit)
	r.Get("/signup", h.SignupForm)
	r.Post("/signup", h.SignupSubmit)
	r.With(custommw.RequireHTMX()).Post("/signup/validate", h.SignupValidate)
	r.Post("/signout", h.Signout)

	// Handles its own sign-in deferral so unsaved values survive an expired session.
	r.Post(ui.AppointmentPath, h.AppointmentSubmit)

	r.Group(func(r chi.Router) {
		r.Use(custommw.Guard(http.HandlerFunc(h.Loading)))
		r.Get(ui.AppointmentPath, h.Appointment)
		r.Get(ui.DashboardPath, h.Dashboard)
		r.Post(ui.DashboardPath+"/appointments/{appointmentID}/cancel", h.CancelAppointment)
	})
}

func applyDefaults(cfg *Config) error {
	if cfg.Logger == nil {
		cfg.Logger = observability.NoopLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sessions == nil {
		manager, err := session.NewManager(session.Config{
			HashKey:  session.GenerateKey(32),
			BlockKey: session.GenerateKey(32),
			Now:      cfg.Now,
		})
		if err != nil {
			return fmt.Errorf("httpserver: session manager: %w", err)
		}
		cfg.Sessions = manager
	}
	if cfg.Verifier == nil {
		cfg.Verifier = identity.SessionVerifier{}
	}
	if cfg.Identities == nil {
		cfg.Identities = identity.NewMemoryService()
	}
	if cfg.DraftTTL <= 0 {
		cfg.DraftTTL = defaultDraftTTL
	}
	if cfg.Drafts == nil {
		cfg.Drafts = form.NewMemoryDraftStore(cfg.DraftTTL, cfg.Now)
	}
	if cfg.Bookings == nil {
		cfg.Bookings = bookings.NewMemoryService(cfg.Now)
	}
	if cfg.Catalogue == nil {
		catalogue, err := content.Load()
		if err != nil {
			return fmt.Errorf("httpserver: load content: %w", err)
		}
		cfg.Catalogue = catalogue
	}
	if cfg.Renderer == nil {
		renderer, err := templates.New()
		if err != nil {
			return fmt.Errorf("httpserver: parse templates: %w", err)
		}
		cfg.Renderer = renderer
	}
	if cfg.SubmissionDelay < 0 {
		return errors.New("httpserver: submission delay must not be negative")
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	return nil
}
