package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/sumire/portal/internal/config"
	"github.com/sumire/portal/internal/gateway"
	"github.com/sumire/portal/internal/handler"
	"github.com/sumire/portal/internal/linkedin"
	"github.com/sumire/portal/internal/logger"
	"github.com/sumire/portal/internal/metrics"
	"github.com/sumire/portal/internal/repository"
	"github.com/sumire/portal/internal/resolver"
	"github.com/sumire/portal/internal/service"
	"github.com/sumire/portal/internal/session"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.SetupDefault(os.Stdout, cfg.LogLevel)

	db, err := sqlx.Connect("pgx", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	slog.Info("database connected")

	if err := repository.RunMigrations(db.DB); err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer rdb.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	slog.Info("redis connected")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	userRepo := repository.NewUserRepository(db)
	otpRepo := repository.NewOtpRepository(rdb)

	backend := gateway.New(gateway.Options{
		BaseURL:    cfg.BackendURL,
		Timeout:    cfg.BackendTimeout,
		GetRetries: cfg.BackendGetRetries,
	})

	linkedinAdapter := linkedin.NewAdapter(linkedin.Config{
		ClientID:     cfg.LinkedInClientID,
		ClientSecret: cfg.LinkedInClientSecret,
		Timeout:      cfg.BackendTimeout,
	}, backend)

	providers := service.NewProviders(service.ProviderConfig{
		GoogleClientID:       cfg.GoogleClientID,
		GoogleClientSecret:   cfg.GoogleClientSecret,
		LinkedInClientID:     cfg.LinkedInClientID,
		LinkedInClientSecret: cfg.LinkedInClientSecret,
		BaseURL:              cfg.BaseURL,
		HTTPClient:           &http.Client{Timeout: cfg.BackendTimeout},
	})
	credentials := service.NewCredentialService(userRepo, otpRepo)
	otps := service.NewOTPService(otpRepo, service.OTPConfig{
		TTL:         cfg.OTPTTL,
		MaxAttempts: cfg.OTPMaxAttempts,
	})
	profiles := service.NewProfileService(userRepo)

	reconciler := session.NewReconciler(session.Deps{
		Google:      backend,
		LinkedIn:    linkedinAdapter,
		Credentials: credentials,
		Profiles:    userRepo,
		Recorder:    collector,
		MaxAge:      cfg.SessionMaxAge,
	})

	routes := session.DefaultRoutes()
	handoff := resolver.New(resolver.Config{
		BaseURL:        cfg.BaseURL,
		ExternalAppURL: cfg.ExternalAppURL,
		Routes:         routes,
		GuardTTL:       cfg.SessionMaxAge,
	}, backend, collector)

	sessions := handler.NewSessions(session.NewCodec(cfg.SessionSecret), reconciler, cfg.SecureCookies())

	e := handler.NewRouter(handler.Handlers{
		Auth: handler.NewAuthHandler(providers, reconciler, sessions, backend, handoff, handler.AuthConfig{
			BaseURL: cfg.BaseURL,
			Routes:  routes,
		}),
		LinkedIn: handler.NewLinkedInHandler(linkedinAdapter, collector),
		Account:  handler.NewAccountHandler(otps, credentials, profiles, sessions, reconciler),
		Redirect: handler.NewRedirectHandler(handoff, sessions, cfg.BaseURL, routes),
		Backend:  handler.NewBackendHandler(backend),
		Sessions: sessions,
	}, handler.RouterConfig{
		AllowedOrigins: []string{cfg.FrontendURL, cfg.BaseURL},
		OTPPerMinute:   cfg.OTPSendPerMin,
		Metrics:        metrics.Handler(reg),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
