package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/voltgrid/identity/internal/auth"
	"github.com/voltgrid/identity/internal/background"
	"github.com/voltgrid/identity/internal/config"
	"github.com/voltgrid/identity/internal/database"
	"github.com/voltgrid/identity/internal/handlers"
	"github.com/voltgrid/identity/internal/idp"
	"github.com/voltgrid/identity/internal/middleware"
	"github.com/voltgrid/identity/internal/repositories"
	"github.com/voltgrid/identity/internal/routes"
	"github.com/voltgrid/identity/internal/services"
	pkgauth "github.com/voltgrid/identity/pkg/auth"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	if err := database.Migrate(&cfg.Database, logger); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Repositories
	registrationRepo := repositories.NewRegistrationRepository(db)
	userRepo := repositories.NewUserRepository(db)
	invitationRepo := repositories.NewInvitationRepository(db)
	revokedTokenRepo := repositories.NewRevokedTokenRepository(db)

	// Identity provider client (admin API + OIDC + JWKS validation)
	idpClient, err := idp.NewKeycloakClient(&cfg.IdP, logger)
	if err != nil {
		logger.Error("failed to initialize identity provider client", slog.Any("error", err))
		os.Exit(1)
	}

	// Revocation cache, warmed from the persisted blacklist
	revocationCache := auth.NewRevocationCache(revokedTokenRepo, logger)
	warmCtx, warmCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := revocationCache.Warm(warmCtx, time.Now().UTC()); err != nil {
		logger.Error("failed to warm revocation cache", slog.Any("error", err))
	}
	warmCancel()

	// AWS SES mailer
	mailer, err := services.NewSESMailer(
		cfg.Email.AWSRegion,
		cfg.Email.FromAddress,
		cfg.Email.VerificationURLBase,
		logger,
	)
	if err != nil {
		logger.Error("failed to initialize mailer", slog.Any("error", err))
		os.Exit(1)
	}

	clock := services.NewSystemClock()
	ids := services.NewRandomIDGenerator()
	hasher := pkgauth.NewBcryptHasher()

	// Services
	registrationService := services.NewRegistrationService(
		registrationRepo, userRepo, invitationRepo, idpClient, mailer,
		hasher, clock, ids, logger, cfg.Registration,
	)
	loginService := services.NewLoginService(userRepo, idpClient, revocationCache, logger)
	invitationService := services.NewInvitationService(
		invitationRepo, userRepo, mailer, clock, ids, logger,
		cfg.Registration.InvitationTTL, cfg.Registration.TokenLength,
	)

	authorizer := auth.NewAuthorizer(idpClient, userRepo, revocationCache, clock, logger)

	// Handlers
	registrationHandler := handlers.NewRegistrationHandler(registrationService)
	authHandler := handlers.NewAuthHandler(loginService)
	invitationHandler := handlers.NewInvitationHandler(invitationService)
	userHandler := handlers.NewUserHandler(userRepo)

	// Router
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.SecureLogger(logger))
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, registrationHandler, authHandler, invitationHandler, userHandler, authorizer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := db.HealthCheck(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Background lifecycle sweeper
	sweeper := background.NewSweeper(
		registrationRepo, invitationRepo, revocationCache, logger,
		cfg.Server.SweepInterval, cfg.Registration.Retention,
	)
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	go sweeper.Start(sweepCtx)

	// Start server in a goroutine so shutdown signals can be handled
	go func() {
		logger.Info("server starting", slog.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	sweeper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped")
}
