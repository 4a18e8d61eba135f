// Package main is the entrypoint for the Shaden API server.
//
// It wires the full pipeline: Postgres-backed ledgers, the Redis job
// queue, the provisioning worker and the HTTP surface the bot client
// talks to.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/shadenhost/shaden/internal/config"
	"github.com/shadenhost/shaden/internal/handler"
	"github.com/shadenhost/shaden/internal/middleware"
	"github.com/shadenhost/shaden/internal/panel"
	"github.com/shadenhost/shaden/internal/queue"
	"github.com/shadenhost/shaden/internal/repository"
	"github.com/shadenhost/shaden/internal/server"
	"github.com/shadenhost/shaden/internal/service"
	"github.com/shadenhost/shaden/internal/worker"
)

func main() {
	// Initialize context
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	// Initialize the job queue
	redisClient, err := queue.Connect(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer redisClient.Close()
	jobQueue := queue.New(redisClient)
	logger.Info("connected to Redis")

	// Load the plan/store catalog
	catalog, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		logger.Error("failed to load catalog", "error", err, "path", cfg.CatalogPath)
		os.Exit(1)
	}
	logger.Info("catalog loaded", "plans", len(catalog.Plans), "items", len(catalog.Items))

	// Provisioning panel client
	panelClient := panel.NewClient(cfg.PanelURL, cfg.PanelAPIKey)

	// Initialize services
	economyService := service.NewEconomyService(repo, catalog, cfg, logger)
	couponService := service.NewCouponService(repo, logger)
	serverService := service.NewServerService(repo, jobQueue, panelClient, catalog, cfg, logger)
	orderService := service.NewOrderService(repo, logger)

	// Initialize handlers
	h := handler.New()
	healthHandler := handler.NewHealthHandler(repo, jobQueue)
	economyHandler := handler.NewEconomyHandler(economyService, logger)
	couponHandler := handler.NewCouponHandler(couponService, logger)
	serverHandler := handler.NewServerHandler(serverService, logger)
	checkoutHandler := handler.NewCheckoutHandler(orderService, logger)
	adminHandler := handler.NewAdminHandler(economyService, couponService, logger)
	apiKeyHandler := handler.NewAPIKeyHandler(logger, repo)

	// Setup router
	r := setupRouter(h, healthHandler, economyHandler, couponHandler,
		serverHandler, checkoutHandler, adminHandler, apiKeyHandler, repo, logger)

	// Create server
	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	// Start the provisioning worker. Registered before Run so its shutdown
	// hook fires after the HTTP server stops taking requests.
	workerCtx, stopWorker := context.WithCancel(ctx)
	w := worker.New(jobQueue, repo, panelClient, logger)
	w.SetDequeueTimeout(cfg.DequeueTimeout)

	workerDone := make(chan error, 1)
	go func() {
		workerDone <- w.Run(workerCtx)
	}()

	srv.OnShutdown("worker", func(shutdownCtx context.Context) error {
		stopWorker()
		select {
		case err := <-workerDone:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		case <-shutdownCtx.Done():
			return shutdownCtx.Err()
		}
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	h *handler.Handler,
	healthHandler *handler.HealthHandler,
	economyHandler *handler.EconomyHandler,
	couponHandler *handler.CouponHandler,
	serverHandler *handler.ServerHandler,
	checkoutHandler *handler.CheckoutHandler,
	adminHandler *handler.AdminHandler,
	apiKeyHandler *handler.APIKeyHandler,
	repo *repository.Repository,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	// Health endpoints (no auth required)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)

	// Root info endpoint
	r.Get("/", h.Hello)

	// Auth middleware configuration
	authCfg := middleware.AuthConfig{
		Logger:     logger,
		Repository: repo,
	}

	// API v1 routes (require authentication)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(authCfg))

		// Catalog
		r.With(middleware.RequireRead()).Get("/plans", serverHandler.Plans)
		r.With(middleware.RequireRead()).Get("/store", economyHandler.Items)

		// Per-account economy and server lifecycle
		r.Route("/accounts/{accountID}", func(r chi.Router) {
			r.With(middleware.RequireWrite()).Post("/login", economyHandler.Login)
			r.With(middleware.RequireRead()).Get("/", economyHandler.Get)
			r.With(middleware.RequireWrite()).Post("/transfer", economyHandler.Transfer)
			r.With(middleware.RequireWrite()).Post("/rewards", economyHandler.Reward)
			r.With(middleware.RequireWrite()).Post("/store/buy", economyHandler.BuyItem)
			r.With(middleware.RequireWrite()).Post("/redeem", couponHandler.Redeem)
			r.With(middleware.RequireRead()).Get("/queue", serverHandler.Queue)
			r.With(middleware.RequireWrite()).Post("/checkout", checkoutHandler.Begin)

			r.Route("/servers", func(r chi.Router) {
				r.With(middleware.RequireRead()).Get("/", serverHandler.List)
				r.With(middleware.RequireWrite()).Post("/", serverHandler.Purchase)
				r.With(middleware.RequireRead()).Get("/{serverID}", serverHandler.Get)
				r.With(middleware.RequireWrite()).Delete("/{serverID}", serverHandler.Delete)
				r.With(middleware.RequireWrite()).Post("/{serverID}/renew", serverHandler.Renew)
				r.With(middleware.RequireWrite()).Post("/{serverID}/power", serverHandler.Power)
			})
		})

		// Checkout provider callbacks and session lookup
		r.With(middleware.RequireWrite()).Post("/checkout/events", checkoutHandler.Event)
		r.With(middleware.RequireRead()).Get("/checkout/sessions/{sessionID}", checkoutHandler.Get)

		// Operator surface (requires admin scope)
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin())

			r.Post("/accounts/{accountID}/credit", adminHandler.Credit)
			r.Post("/accounts/{accountID}/debit", adminHandler.Debit)
			r.Put("/accounts/{accountID}/balance", adminHandler.SetBalance)
			r.Post("/accounts/{accountID}/resources", adminHandler.GrantResources)
			r.Get("/stats", adminHandler.Stats)

			r.Route("/coupons", func(r chi.Router) {
				r.Get("/", adminHandler.ListCoupons)
				r.Post("/", adminHandler.CreateCoupon)
				r.Delete("/{code}", adminHandler.RevokeCoupon)
			})

			r.Route("/keys", func(r chi.Router) {
				r.Get("/", apiKeyHandler.ListAPIKeys)
				r.Post("/", apiKeyHandler.CreateAPIKey)
				r.Delete("/{keyID}", apiKeyHandler.RevokeAPIKey)
			})
		})
	})

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
