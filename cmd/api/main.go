package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/listkeep/invite-service/internal/auth"
	"github.com/listkeep/invite-service/internal/config"
	"github.com/listkeep/invite-service/internal/handler"
	"github.com/listkeep/invite-service/internal/middleware"
	"github.com/listkeep/invite-service/internal/repository"
	"github.com/listkeep/invite-service/internal/service"
	appvalidator "github.com/listkeep/invite-service/internal/validator"
	"github.com/listkeep/invite-service/pkg/database"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize zerolog based on configuration
	initLogger(cfg)

	// Create context for startup
	ctx := context.Background()

	// Initialize database pool with retry
	pool, err := database.NewPool(ctx, cfg.DB.DSN(), 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Initialize Fiber with production-ready configuration
	app := fiber.New(fiber.Config{
		AppName:      "Invitation Code Service",
		ReadTimeout:  30 * time.Second,  // Max time to read request
		WriteTimeout: 30 * time.Second,  // Max time to write response
		IdleTimeout:  120 * time.Second, // Max time for keep-alive connections
		BodyLimit:    1 * 1024 * 1024,   // 1MB body limit
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New()) // Adds X-Request-ID header to all requests
	app.Use(logger.New())

	// Initialize validator with the custom invite-code rules
	validate := appvalidator.New()

	// Initialize components (layered architecture)
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	codeRepo := repository.NewCodeRepository(pool)
	usageRepo := repository.NewUsageRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	inviteService := service.NewInvitationService(pool, codeRepo, usageRepo, userRepo, cfg.Invite.CodeLength)
	authService := service.NewAuthService(userRepo, inviteService, tokens)
	codeHandler := handler.NewCodeHandler(inviteService, validate)
	redeemHandler := handler.NewRedeemHandler(inviteService, validate)
	authHandler := handler.NewAuthHandler(authService, validate)

	// Health handler
	healthHandler := handler.NewHealthHandler(pool)
	app.Get("/health", healthHandler.Check)

	// Public routes
	app.Post("/api/auth/register", authHandler.Register)
	app.Post("/api/auth/login", authHandler.Login)
	app.Get("/api/codes/validate/:code", codeHandler.ValidateCode)

	// Authenticated routes
	protected := middleware.Protected(tokens)
	app.Post("/api/codes/redeem", protected, redeemHandler.RedeemCode)
	app.Get("/api/users/me/usages", protected, redeemHandler.MyUsages)

	// Admin routes
	admin := app.Group("/api/codes", protected, middleware.AdminOnly())
	admin.Post("/", codeHandler.CreateCode)
	admin.Get("/", codeHandler.ListCodes)
	admin.Get("/stats", codeHandler.CodeStats)
	admin.Put("/:id", codeHandler.UpdateCode)
	admin.Post("/:id/status", codeHandler.SetCodeStatus)
	admin.Delete("/:id", codeHandler.DeleteCode)
	admin.Get("/:id/usages", codeHandler.CodeUsages)

	// Start server with graceful shutdown
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	log.Info().Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	// Shutdown server (waits for in-flight requests)
	log.Info().Msg("waiting for in-flight requests to complete...")
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	// Close database pool AFTER server shutdown (even if shutdown timed out)
	log.Info().Msg("closing database connections...")
	pool.Close()
	log.Info().Msg("database connections closed")
	log.Info().Msg("server stopped")
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Configure output format
	if cfg.Log.Pretty {
		// Human-readable output for development
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		// JSON output for production
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
