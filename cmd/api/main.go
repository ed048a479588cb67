package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stayguard/internal/config"
	"stayguard/internal/events"
	"stayguard/internal/handlers"
	"stayguard/internal/identity"
	"stayguard/internal/middleware"
	"stayguard/internal/repository"
	"stayguard/internal/risk"
	"stayguard/pkg/cache"
	"stayguard/pkg/fingerprint"
	"stayguard/pkg/logger"
	"stayguard/pkg/netrisk"
)

func main() {
	// Load environment variables
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	// Set log level
	logger.SetLevel(logger.ParseLevel(cfg.Monitoring.LogLevel))
	logger.Info("Starting StayGuard API", map[string]any{
		"version":     "1.0.0",
		"environment": cfg.API.Environment,
	})

	// Initialize database with retry logic
	var repo *repository.Repository
	err = repository.WithRetry(context.Background(), repository.DefaultRetryConfig, func() error {
		var retryErr error
		repo, retryErr = repository.New(
			cfg.Database.URL,
			cfg.Database.MaxConns,
			cfg.Database.MaxIdleConns,
		)
		return retryErr
	})
	if err != nil {
		logger.Error("Failed to connect to database", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("Connected to PostgreSQL")

	// Health check database
	if err := repo.HealthCheck(context.Background()); err != nil {
		logger.Error("Database health check failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	// Initialize Redis cache
	var redisCache *cache.Cache
	err = repository.WithRetry(context.Background(), repository.DefaultRetryConfig, func() error {
		var retryErr error
		redisCache, retryErr = cache.New(
			cfg.Redis.Addr,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.VisitorTTL,
		)
		return retryErr
	})
	if err != nil {
		logger.Error("Failed to connect to Redis", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer redisCache.Close()
	logger.Info("Connected to Redis", map[string]any{"addr": cfg.Redis.Addr})

	// Initialize the scoring pipeline
	geoProvider := netrisk.NewHTTPProvider(cfg.Geo.BaseURL, cfg.Geo.Timeout)
	networkResolver := netrisk.NewResolver(geoProvider)
	identityResolver := identity.NewResolver(repo, cfg.Identity)
	aggregator := risk.NewAggregator(identityResolver, networkResolver, repo, cfg.Risk, cfg.Velocity)
	collector := fingerprint.NewCollector(&fingerprint.StubSurface{})
	logger.Info("Initialized risk pipeline")

	// Initialize the Kafka publisher; nil when no brokers are configured
	publisher := events.NewPublisher(cfg.Events.Brokers, cfg.Events.Topic)
	if publisher != nil {
		defer publisher.Close()
		logger.Info("Connected Kafka publisher", map[string]any{"topic": cfg.Events.Topic})
	}

	// Initialize handlers
	handler := handlers.NewHandler(aggregator, identityResolver, collector, repo, redisCache, publisher)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		DisableStartupMessage: false,
		ServerHeader:          "StayGuard",
		AppName:               "StayGuard API v1.0",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			logger.Error("Request error", map[string]any{
				"error": err.Error(),
				"path":  c.Path(),
				"code":  code,
			})
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(middleware.Recover())
	app.Use(middleware.Logger())
	app.Use(middleware.CORS(cfg.Security.CORSOrigins))

	// Rate limiters
	rateLimiter := middleware.NewRateLimiter(redisCache, &cfg.RateLimit)

	// Routes
	app.Get("/health", handler.Health)
	if cfg.Monitoring.EnableMetrics {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	// API v1 routes
	v1 := app.Group("/v1")
	v1.Post("/assess",
		rateLimiter.LimitByIP(),
		rateLimiter.LimitByVisitor(),
		handler.Assess,
	)
	v1.Post("/identify",
		rateLimiter.LimitByIP(),
		handler.Identify,
	)
	v1.Post("/fingerprint",
		rateLimiter.LimitByIP(),
		handler.Fingerprint,
	)

	// Review tooling API
	api := app.Group("/api")
	api.Get("/assessments", handler.RecentAssessments)
	api.Get("/counters", handler.Counters)

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down gracefully...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_ = app.ShutdownWithContext(ctx)
		logger.Info("Server shutdown complete")
		os.Exit(0)
	}()

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.API.Host, cfg.API.Port)
	logger.Info("StayGuard API started", map[string]any{"address": addr})

	if err := app.Listen(addr); err != nil {
		logger.Error("Server error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}
