package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"stayguard/internal/config"
	"stayguard/internal/metrics"
	"stayguard/pkg/cache"
	"stayguard/pkg/logger"
)

type RateLimiter struct {
	cache  *cache.Cache
	config *config.RateLimitConfig
}

func NewRateLimiter(cache *cache.Cache, config *config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		cache:  cache,
		config: config,
	}
}

// LimitByIP rate limits requests by IP address.
func (rl *RateLimiter) LimitByIP() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := fmt.Sprintf("ip:%s", c.IP())

		allowed, err := rl.cache.CheckRateLimit(
			c.Context(),
			identifier,
			rl.config.Requests,
			rl.config.Window,
		)

		// A cache outage must not take the API down with it.
		if err != nil {
			return c.Next()
		}

		if !allowed {
			metrics.RateLimited.WithLabelValues("ip").Inc()
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Rate limit exceeded",
				"retry_after": rl.config.Window.Seconds(),
			})
		}

		return c.Next()
	}
}

// LimitByVisitor rate limits by the client-reported visitor id, so one
// device cannot spray bookings across rotating IPs. The id is advisory at
// this point in the chain; the IP limiter still backstops it.
func (rl *RateLimiter) LimitByVisitor() fiber.Handler {
	return func(c *fiber.Ctx) error {
		visitorID := c.Get("X-Visitor-ID")
		if visitorID == "" {
			return c.Next()
		}

		identifier := fmt.Sprintf("visitor:%s", visitorID)

		allowed, err := rl.cache.CheckRateLimit(
			c.Context(),
			identifier,
			rl.config.RequestsByVisitor,
			rl.config.VisitorWindow,
		)

		if err != nil {
			return c.Next()
		}

		if !allowed {
			metrics.RateLimited.WithLabelValues("visitor").Inc()
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Visitor rate limit exceeded",
				"retry_after": rl.config.VisitorWindow.Seconds(),
			})
		}

		return c.Next()
	}
}

func CORS(origins []string) fiber.Handler {
	allowedOrigins := make(map[string]bool)
	for _, origin := range origins {
		allowedOrigins[origin] = true
	}

	return func(c *fiber.Ctx) error {
		origin := c.Get("Origin")

		if allowedOrigins["*"] || allowedOrigins[origin] {
			c.Set("Access-Control-Allow-Origin", origin)
			c.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Set("Access-Control-Max-Age", "3600")
		}

		if c.Method() == "OPTIONS" {
			return c.SendStatus(http.StatusNoContent)
		}

		return c.Next()
	}
}

func Logger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		logger.Info("Request", map[string]any{
			"method":   c.Method(),
			"path":     c.Path(),
			"status":   c.Response().StatusCode(),
			"duration": time.Since(start).String(),
			"ip":       c.IP(),
		})

		return err
	}
}

func Recover() fiber.Handler {
	return func(c *fiber.Ctx) error {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Panic recovered", map[string]any{"panic": fmt.Sprintf("%v", r)})
				_ = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "Internal server error",
				})
			}
		}()
		return c.Next()
	}
}

// AnonymizeIP removes the last octet for GDPR compliance.
func AnonymizeIP(ip string) string {
	parts := strings.Split(ip, ".")
	if len(parts) == 4 {
		return fmt.Sprintf("%s.%s.%s.0", parts[0], parts[1], parts[2])
	}
	return ip
}
