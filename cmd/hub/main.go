package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"musanzehub.com/hub-web/internal/hub/bookings"
	"musanzehub.com/hub-web/internal/hub/config"
	"musanzehub.com/hub-web/internal/hub/form"
	"musanzehub.com/hub-web/internal/hub/httpserver"
	"musanzehub.com/hub-web/internal/hub/identity"
	"musanzehub.com/hub-web/internal/hub/observability"
	"musanzehub.com/hub-web/internal/hub/session"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("hub")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		var vErr *config.ValidationError
		if errors.As(err, &vErr) {
			logger.Fatal("invalid configuration", zap.Strings("fields", vErr.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	sessions, err := buildSessions(logger, cfg)
	if err != nil {
		logger.Fatal("failed to initialise sessions", zap.Error(err))
	}

	identities, err := buildIdentities(logger, cfg)
	if err != nil {
		logger.Fatal("failed to initialise identity client", zap.Error(err))
	}

	var cleanups []func()
	defer func() {
		for _, fn := range cleanups {
			fn()
		}
	}()

	verifier, store, closeFirebase := buildFirebase(ctx, logger, cfg)
	if closeFirebase != nil {
		cleanups = append(cleanups, closeFirebase)
	}

	drafts, closeDrafts := buildDrafts(ctx, logger, cfg)
	if closeDrafts != nil {
		cleanups = append(cleanups, closeDrafts)
	}

	srv, err := httpserver.New(httpserver.Config{
		Address:            cfg.Server.Address,
		Logger:             logger,
		Sessions:           sessions,
		Verifier:           verifier,
		Identities:         identities,
		LoginRetryAttempts: cfg.Identity.LoginRetryAttempts,
		LoginRetryInitial:  cfg.Identity.LoginRetryInitial,
		Drafts:             drafts,
		DraftTTL:           cfg.Drafts.TTL,
		Bookings:           store,
		SubmissionDelay:    cfg.Submission.Delay,
		ReadTimeout:        cfg.Server.ReadTimeout,
		WriteTimeout:       cfg.Server.WriteTimeout,
		IdleTimeout:        cfg.Server.IdleTimeout,
	})
	if err != nil {
		logger.Fatal("failed to build http server", zap.Error(err))
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	logger.Info("hub server listening",
		zap.String("addr", cfg.Server.Address),
		zap.String("env", cfg.Server.Environment),
	)

	<-sigCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		return
	}
	logger.Info("hub server stopped")
}

func buildSessions(logger *zap.Logger, cfg config.Config) (*session.Manager, error) {
	hashKey := []byte(cfg.Session.HashKey)
	blockKey := []byte(cfg.Session.BlockKey)
	if len(hashKey) == 0 {
		logger.Warn("HUB_SESSION_HASH_KEY not set; generating an ephemeral key")
		hashKey = session.GenerateKey(32)
		if len(blockKey) == 0 {
			blockKey = session.GenerateKey(32)
		}
	}
	return session.NewManager(session.Config{
		HashKey:      hashKey,
		BlockKey:     blockKey,
		CookieSecure: cfg.Session.CookieSecure || cfg.Production(),
		IdleTimeout:  cfg.Session.IdleTimeout,
		Lifetime:     cfg.Session.Lifetime,
	})
}

func buildIdentities(logger *zap.Logger, cfg config.Config) (identity.Service, error) {
	if cfg.Identity.BaseURL == "" {
		logger.Warn("HUB_IDENTITY_BASE_URL not set; using in-memory identity service")
		return identity.NewMemoryService(), nil
	}
	client := &http.Client{Timeout: cfg.Identity.Timeout}
	svc, err := identity.NewHTTPService(cfg.Identity.BaseURL, client)
	if err != nil {
		return nil, err
	}
	logger.Info("identity service configured", zap.String("base_url", cfg.Identity.BaseURL))
	return svc, nil
}

// buildFirebase enables token verification and Firestore bookings when a project is set.
// Nil results fall back to the session verifier and in-memory bookings.
func buildFirebase(ctx context.Context, logger *zap.Logger, cfg config.Config) (identity.Verifier, bookings.Service, func()) {
	var (
		verifier identity.Verifier
		store    bookings.Service
		cleanup  func()
	)

	if projectID := cfg.Firebase.ProjectID; projectID == "" {
		logger.Info("HUB_FIREBASE_PROJECT_ID not set; trusting session identities")
	} else if app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}); err != nil {
		logger.Warn("failed to initialise Firebase app", zap.Error(err))
	} else if client, err := app.Auth(ctx); err != nil {
		logger.Warn("failed to initialise Firebase auth client", zap.Error(err))
	} else {
		verifier = identity.NewFirebaseVerifier(client, cfg.Identity.Timeout)
		logger.Info("Firebase token verification enabled", zap.String("project", projectID))
	}

	if projectID := cfg.Firebase.FirestoreProjectID; projectID == "" {
		logger.Info("Firestore not configured; bookings are kept in memory")
	} else if client, err := firestore.NewClient(ctx, projectID); err != nil {
		logger.Warn("failed to initialise Firestore client", zap.Error(err))
	} else if svc, err := bookings.NewFirestoreService(client, nil); err != nil {
		logger.Warn("failed to initialise Firestore bookings", zap.Error(err))
		_ = client.Close()
	} else {
		store = svc
		cleanup = func() {
			if err := client.Close(); err != nil {
				logger.Warn("firestore close error", zap.Error(err))
			}
		}
		logger.Info("Firestore bookings enabled", zap.String("project", projectID))
	}

	return verifier, store, cleanup
}

func buildDrafts(ctx context.Context, logger *zap.Logger, cfg config.Config) (form.DraftStore, func()) {
	if cfg.Drafts.RedisAddr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Drafts.RedisAddr,
		Password: cfg.Drafts.RedisPassword,
		DB:       cfg.Drafts.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable; keeping drafts in memory", zap.Error(err))
		_ = rdb.Close()
		return nil, nil
	}
	logger.Info("redis draft store enabled", zap.String("addr", cfg.Drafts.RedisAddr))
	return form.NewRedisDraftStore(rdb, cfg.Drafts.TTL), func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("redis close error", zap.Error(err))
		}
	}
}
