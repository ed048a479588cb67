// Package metrics exposes the Prometheus instrumentation for the scoring
// pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"stayguard/internal/models"
)

var (
	AssessmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stayguard_assessments_total",
		Help: "Completed risk assessments by level and decision.",
	}, []string{"risk_level", "decision"})

	AssessmentDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stayguard_assessment_duration_seconds",
		Help:    "End-to-end assessment pipeline latency.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	})

	IdentityMatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stayguard_identity_matches_total",
		Help: "Visitor identity resolutions by match strategy.",
	}, []string{"match_type"})

	GeoLookupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stayguard_geo_lookup_failures_total",
		Help: "Geolocation lookups that degraded to a zero-risk result.",
	})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stayguard_rate_limited_total",
		Help: "Requests rejected by the rate limiter.",
	}, []string{"scope"})
)

// ObserveAssessment records one finished assessment.
func ObserveAssessment(a *models.RiskAssessment, elapsed time.Duration) {
	AssessmentsTotal.WithLabelValues(a.RiskLevel, decision(a)).Inc()
	AssessmentDuration.Observe(elapsed.Seconds())
	if a.Identity != nil {
		IdentityMatches.WithLabelValues(a.Identity.MatchType).Inc()
	}
}

func decision(a *models.RiskAssessment) string {
	switch {
	case a.ShouldBlock:
		return "block"
	case a.RequiresManualReview:
		return "review"
	default:
		return "allow"
	}
}
