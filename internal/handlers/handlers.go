package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"stayguard/internal/events"
	"stayguard/internal/identity"
	"stayguard/internal/metrics"
	"stayguard/internal/middleware"
	"stayguard/internal/models"
	"stayguard/internal/repository"
	"stayguard/internal/risk"
	"stayguard/pkg/cache"
	"stayguard/pkg/fingerprint"
	"stayguard/pkg/logger"
	"stayguard/pkg/netrisk"
	"stayguard/pkg/validator"
)

type Handler struct {
	aggregator *risk.Aggregator
	identity   *identity.Resolver
	collector  *fingerprint.Collector
	repo       *repository.Repository
	cache      *cache.Cache
	publisher  *events.Publisher
}

func NewHandler(aggregator *risk.Aggregator, id *identity.Resolver, collector *fingerprint.Collector,
	repo *repository.Repository, cache *cache.Cache, publisher *events.Publisher) *Handler {
	return &Handler{
		aggregator: aggregator,
		identity:   id,
		collector:  collector,
		repo:       repo,
		cache:      cache,
		publisher:  publisher,
	}
}

// Assess handles POST /v1/assess.
func (h *Handler) Assess(c *fiber.Ctx) error {
	requestID := uuid.New().String()
	log := logger.WithField("request_id", requestID)

	var req models.AssessRequest

	if err := c.BodyParser(&req); err != nil {
		log.Warn("Failed to parse request body", map[string]any{
			"error": err.Error(),
		})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":      "Invalid request body",
			"request_id": requestID,
		})
	}

	req.Booking.GuestName = validator.SanitizeString(req.Booking.GuestName)

	if err := validator.ValidateAssessRequest(req); err != nil {
		log.Warn("Request validation failed", map[string]any{
			"error": err.Error(),
		})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":      err.Error(),
			"request_id": requestID,
		})
	}

	req.Meta = extractMeta(c)

	start := time.Now()
	result := h.aggregator.Assess(c.Context(), req)
	metrics.ObserveAssessment(result, time.Since(start))

	if hasFlag(result.Flags, netrisk.FactorLookupFailed) {
		metrics.GeoLookupFailures.Inc()
	}

	h.saveAssessment(c, req, result)
	h.publisher.Publish(c.Context(), result)
	_ = h.cache.IncrementMetric(c.Context(), "total_assessments")

	log.Info("Assessment complete", map[string]any{
		"visitor_id": result.Identity.VisitorID,
		"risk_score": result.RiskScore,
		"risk_level": result.RiskLevel,
		"block":      result.ShouldBlock,
		"review":     result.RequiresManualReview,
	})

	return c.Status(fiber.StatusOK).JSON(result)
}

// Identify handles POST /v1/identify.
func (h *Handler) Identify(c *fiber.Ctx) error {
	requestID := uuid.New().String()
	log := logger.WithField("request_id", requestID)

	var req models.IdentifyRequest

	if err := c.BodyParser(&req); err != nil {
		log.Warn("Failed to parse request body", map[string]any{
			"error": err.Error(),
		})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":      "Invalid request body",
			"request_id": requestID,
		})
	}

	req.Meta = extractMeta(c)

	if err := validator.ValidateIdentifyRequest(req); err != nil {
		log.Warn("Request validation failed", map[string]any{
			"error": err.Error(),
		})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":      err.Error(),
			"request_id": requestID,
		})
	}

	result := h.identity.Identify(c.Context(), identity.Input{
		VisitorID:       req.VisitorID,
		FingerprintHash: req.FingerprintHash,
		Confidence:      req.FingerprintConfidence,
		Meta:            req.Meta,
	})
	h.identity.RecordVisit(c.Context(), result, req.FingerprintHash, req.Meta)

	metrics.IdentityMatches.WithLabelValues(result.MatchType).Inc()
	_ = h.cache.IncrementMetric(c.Context(), "total_identifications")

	log.Info("Identification complete", map[string]any{
		"visitor_id": result.VisitorID,
		"match_type": result.MatchType,
		"confidence": result.Confidence,
	})

	return c.Status(fiber.StatusOK).JSON(result)
}

// Fingerprint handles POST /v1/fingerprint: the client agent posts raw
// components, the server derives the stable identity and runs the durable
// store flow against Redis.
func (h *Handler) Fingerprint(c *fiber.Ctx) error {
	requestID := uuid.New().String()
	log := logger.WithField("request_id", requestID)

	var req models.FingerprintRequest

	if err := c.BodyParser(&req); err != nil {
		log.Warn("Failed to parse request body", map[string]any{
			"error": err.Error(),
		})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":      "Invalid request body",
			"request_id": requestID,
		})
	}

	if err := validator.ValidateFingerprintRequest(req); err != nil {
		log.Warn("Request validation failed", map[string]any{
			"error": err.Error(),
		})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":      err.Error(),
			"request_id": requestID,
		})
	}

	fp := h.collector.FromComponents(&req.Components)
	h.resolveStoredID(c, req, fp)

	_ = h.cache.IncrementMetric(c.Context(), "total_fingerprints")

	log.Info("Fingerprint derived", map[string]any{
		"visitor_id": fp.VisitorID,
		"confidence": fp.Confidence,
		"origin":     fp.Origin,
	})

	return c.Status(fiber.StatusOK).JSON(fp)
}

// resolveStoredID runs the durable-id flow: a stored id wins over the
// derived fingerprint, a miss writes the derived id back. A broken store
// leaves the fingerprint-origin result untouched.
func (h *Handler) resolveStoredID(c *fiber.Ctx, req models.FingerprintRequest, fp *models.VisitorFingerprint) {
	key := req.StoredID
	if key == "" {
		key = fp.VisitorID
	}
	store := h.cache.VisitorStore(key)

	id, visits, err := store.Get(c.Context())
	if err == nil && id != "" {
		fp.VisitorID = id
		fp.Origin = models.OriginStorage
		fp.Visits = visits
		fp.Confidence = 99
		return
	}
	if errors.Is(err, fingerprint.ErrNotFound) {
		if putErr := store.Put(c.Context(), fp.VisitorID); putErr == nil {
			fp.Origin = models.OriginNew
			fp.Visits = 1
		}
	}
}

// Health handles GET /health.
func (h *Handler) Health(c *fiber.Ctx) error {
	if err := h.repo.HealthCheck(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":  "degraded",
			"service": "stayguard-api",
			"error":   "database unreachable",
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "healthy",
		"service": "stayguard-api",
	})
}

// Counters handles GET /api/counters, the lightweight Redis-backed
// operation counters. Prometheus metrics live on /metrics.
func (h *Handler) Counters(c *fiber.Ctx) error {
	ctx := c.Context()

	assessments, _ := h.cache.GetMetric(ctx, "total_assessments")
	identifications, _ := h.cache.GetMetric(ctx, "total_identifications")
	fingerprints, _ := h.cache.GetMetric(ctx, "total_fingerprints")

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"total_assessments":     assessments,
		"total_identifications": identifications,
		"total_fingerprints":    fingerprints,
	})
}

// RecentAssessments handles GET /api/assessments.
func (h *Handler) RecentAssessments(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	if limit > 100 {
		limit = 100
	}

	assessments, err := h.repo.RecentAssessments(c.Context(), limit, offset)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch assessments",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"assessments": assessments,
		"limit":       limit,
		"offset":      offset,
	})
}

func (h *Handler) saveAssessment(c *fiber.Ctx, req models.AssessRequest, result *models.RiskAssessment) {
	err := h.repo.SaveAssessment(c.Context(), models.AssessmentRow{
		VisitorID:   result.Identity.VisitorID,
		IP:          middleware.AnonymizeIP(req.Meta.IP),
		EmailDomain: result.Persistence.EmailDomain,
		RiskScore:   result.RiskScore,
		RiskLevel:   result.RiskLevel,
		Blocked:     result.ShouldBlock,
		Review:      result.RequiresManualReview,
		Flags:       strings.Join(result.Flags, ","),
		CreatedAt:   result.AssessedAt,
	})
	if err != nil {
		logger.Warn("Failed to save assessment", map[string]any{"error": err.Error()})
	}
}

// extractMeta pulls the transport metadata the scoring components need from
// the request headers.
func extractMeta(c *fiber.Ctx) models.RequestMeta {
	ua := c.Get("User-Agent")
	header := func(name string) string { return c.Get(name) }
	return models.RequestMeta{
		IP:         netrisk.ExtractIP(header, c.IP()),
		UserAgent:  ua,
		Country:    strings.ToUpper(c.Get("CF-IPCountry")),
		Timezone:   c.Get("X-Timezone"),
		DeviceType: deviceTypeFrom(ua),
		Browser:    browserFrom(ua),
	}
}

func deviceTypeFrom(ua string) string {
	lower := strings.ToLower(ua)
	switch {
	case strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet"):
		return "tablet"
	case strings.Contains(lower, "mobile") || strings.Contains(lower, "android") || strings.Contains(lower, "iphone"):
		return "mobile"
	case ua == "":
		return ""
	default:
		return "desktop"
	}
}

// browserFrom matches most-specific tokens first: Chrome UAs also carry
// "Safari", Edge and Opera also carry "Chrome".
func browserFrom(ua string) string {
	lower := strings.ToLower(ua)
	switch {
	case strings.Contains(lower, "edg"):
		return "edge"
	case strings.Contains(lower, "opr") || strings.Contains(lower, "opera"):
		return "opera"
	case strings.Contains(lower, "firefox"):
		return "firefox"
	case strings.Contains(lower, "chrome"):
		return "chrome"
	case strings.Contains(lower, "safari"):
		return "safari"
	default:
		return ""
	}
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}
