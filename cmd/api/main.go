package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"collabit/internal/audit"
	"collabit/internal/auth"
	"collabit/internal/config"
	transporthttp "collabit/internal/http"
	"collabit/internal/identity"
	"collabit/internal/metrics"
	"collabit/internal/platform/database"
	"collabit/internal/platform/logging"
	"collabit/internal/platform/migrate"
	"collabit/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	sessions, err := buildSessions(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize sessions", "error", err)
		os.Exit(1)
	}

	auditRepo, cleanup, err := buildAuditRepository(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize audit repository", "error", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	if cfg.IdentityBackendURLDefaulted {
		logger.Warn("IDENTITY_BACKEND_URL not set; using default", "url", cfg.IdentityBackendURL)
	}
	identityClient := identity.NewClient(
		cfg.IdentityBackendURL,
		&http.Client{Timeout: cfg.IdentityTimeout + 2*time.Second},
		identity.WithTimeout(cfg.IdentityTimeout),
		identity.WithObserver(metrics.ObserveIdentityCall),
	)

	providers, err := buildProviders(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize oauth providers", "error", err)
		os.Exit(1)
	}

	recorder := audit.NewRecorder(auditRepo, logger, audit.WithFailureHook(metrics.RecordAuditFailure))
	authSvc := auth.NewService(identityClient, sessions,
		auth.WithLogger(logger),
		auth.WithRecorder(recorder),
		auth.WithLoginCounter(metrics.RecordLogin),
	)

	router := transporthttp.NewRouter(cfg, transporthttp.Dependencies{
		Auth:      authSvc,
		Sessions:  sessions,
		Providers: providers,
	}, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.IdentityTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}

	go func() {
		logger.Info("collabit session service listening",
			"addr", srv.Addr,
			"store", cfg.DataStore,
			"identity_backend", cfg.IdentityBackendURL,
			"providers", len(providers),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func buildSessions(cfg config.Config, logger *slog.Logger) (*session.Manager, error) {
	secret, source, err := session.ResolveSecret(cfg.SigningSecret, cfg.IsDevelopment())
	if err != nil {
		return nil, err
	}

	switch source {
	case session.SecretDevelopmentFallback:
		logger.Warn("SIGNING_SECRET not set; using the built-in development secret. Never run like this outside development.")
	case session.SecretEphemeral:
		logger.Error("SIGNING_SECRET not set; generated an ephemeral secret. Sessions will not survive a restart and will not be shared between replicas.",
			"environment", cfg.Environment,
		)
	}

	codec, err := session.NewCodec(secret)
	if err != nil {
		return nil, err
	}
	return session.NewManager(codec, session.NewCookieManager(!cfg.IsDevelopment())), nil
}

func buildAuditRepository(ctx context.Context, cfg config.Config, logger *slog.Logger) (audit.Repository, func(), error) {
	if cfg.UseInMemoryStore() {
		logger.Info("using in-memory login audit log")
		return audit.NewMemoryRepository(0), nil, nil
	}

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		_ = db.Close()
	}

	if err := migrate.Apply(ctx, db, logger); err != nil {
		cleanup()
		return nil, nil, err
	}

	logger.Info("connected to postgres")
	return audit.NewPostgresRepository(db), cleanup, nil
}

func buildProviders(ctx context.Context, cfg config.Config, logger *slog.Logger) (auth.Providers, error) {
	var providers []auth.Provider

	if cfg.GoogleEnabled() {
		google, err := auth.NewGoogleProvider(ctx, cfg.GoogleClientID, cfg.GoogleClientSecret, callbackURL(cfg, identity.ProviderGoogle))
		if err != nil {
			return nil, err
		}
		providers = append(providers, google)
		logger.Info("google sign-in enabled")
	}

	if cfg.GitHubEnabled() {
		providers = append(providers, auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, callbackURL(cfg, identity.ProviderGitHub)))
		logger.Info("github sign-in enabled")
	}

	return auth.NewProviders(providers...), nil
}

func callbackURL(cfg config.Config, provider identity.Provider) string {
	return cfg.OAuthRedirectBaseURL + "/auth/oauth/" + string(provider) + "/callback"
}
