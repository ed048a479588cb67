// Package identity matches an incoming visitor against historical records
// through a strategy cascade: exact id, fingerprint-hash prefix, weighted
// fuzzy similarity, and finally a deterministic new identity. First hit
// wins.
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"
	"time"

	"stayguard/internal/config"
	"stayguard/internal/models"
	"stayguard/pkg/fingerprint"
	"stayguard/pkg/logger"
	"stayguard/pkg/similarity"
)

// History is the read side of the append-only visit store.
type History interface {
	VisitStats(ctx context.Context, visitorID string) (int, *time.Time, error)
	FindByFingerprint(ctx context.Context, hash string, since time.Time) (*models.VisitRecord, error)
	RecentCandidates(ctx context.Context, since time.Time, country, deviceType string, limit int) ([]models.VisitRecord, error)
	AppendVisit(ctx context.Context, v models.VisitRecord) error
}

// Input is the visitor-facing signal set for one identification.
type Input struct {
	VisitorID       string
	FingerprintHash string
	Confidence      int
	Meta            models.RequestMeta
}

type Resolver struct {
	history History
	matcher *similarity.Matcher
	cfg     config.IdentityConfig
	now     func() time.Time
}

func NewResolver(history History, cfg config.IdentityConfig) *Resolver {
	return &Resolver{
		history: history,
		matcher: similarity.NewMatcher(similarity.DefaultWeights),
		cfg:     cfg,
		now:     time.Now,
	}
}

// Identify runs the cascade. It never writes: recording the visit is a
// separate step so repeated identification against an unchanged store is
// idempotent.
func (r *Resolver) Identify(ctx context.Context, in Input) *models.Identity {
	// Strategy 1: exact client-supplied id.
	if in.VisitorID != "" {
		count, lastSeen, err := r.history.VisitStats(ctx, in.VisitorID)
		if err != nil {
			return r.degraded(in)
		}
		if count > 0 {
			return &models.Identity{
				VisitorID:      in.VisitorID,
				MatchType:      models.MatchExact,
				Confidence:     orDefault(in.Confidence, 99),
				IsReturning:    true,
				PreviousVisits: count,
				LastSeen:       lastSeen,
			}
		}
	}

	// Strategy 2: fingerprint-hash prefix over the recent window.
	if in.FingerprintHash != "" {
		rec, err := r.history.FindByFingerprint(ctx, in.FingerprintHash, r.now().Add(-r.cfg.FingerprintWindow))
		if err != nil {
			return r.degraded(in)
		}
		if rec != nil {
			count, lastSeen, _ := r.history.VisitStats(ctx, rec.VisitorID)
			return &models.Identity{
				VisitorID:      rec.VisitorID,
				MatchType:      models.MatchFingerprint,
				Confidence:     orDefault(in.Confidence, 95),
				IsReturning:    true,
				PreviousVisits: count,
				LastSeen:       lastSeen,
			}
		}
	}

	// Strategy 3: weighted fuzzy similarity over a bounded candidate set.
	candidates, err := r.history.RecentCandidates(ctx,
		r.now().Add(-r.cfg.FuzzyWindow), in.Meta.Country, in.Meta.DeviceType, r.cfg.CandidateLimit)
	if err != nil {
		return r.degraded(in)
	}

	if len(candidates) > 0 {
		probe := similarity.Probe{
			FingerprintHash: in.FingerprintHash,
			IP:              in.Meta.IP,
			UserAgent:       in.Meta.UserAgent,
			Country:         in.Meta.Country,
			Timezone:        in.Meta.Timezone,
			DeviceType:      in.Meta.DeviceType,
			Browser:         in.Meta.Browser,
		}

		if best, score := r.matcher.Best(probe, candidates); score >= r.cfg.FuzzyThreshold {
			count, lastSeen, _ := r.history.VisitStats(ctx, best.VisitorID)
			return &models.Identity{
				VisitorID:      best.VisitorID,
				MatchType:      models.MatchFuzzy,
				Confidence:     int(math.Round(float64(score) * r.cfg.FuzzyDiscount)),
				IsReturning:    true,
				PreviousVisits: count,
				LastSeen:       lastSeen,
			}
		}
	}

	return r.fresh(in)
}

// RecordVisit appends one visit event for the resolved identity. A failed
// write is logged, not surfaced: history is advisory.
func (r *Resolver) RecordVisit(ctx context.Context, id *models.Identity, fingerprintHash string, meta models.RequestMeta) {
	err := r.history.AppendVisit(ctx, models.VisitRecord{
		VisitorID:       id.VisitorID,
		FingerprintHash: fingerprintHash,
		IP:              meta.IP,
		UserAgent:       meta.UserAgent,
		Country:         meta.Country,
		Timezone:        meta.Timezone,
		DeviceType:      meta.DeviceType,
		Browser:         meta.Browser,
		CreatedAt:       r.now(),
	})
	if err != nil {
		logger.Warn("Failed to record visit", map[string]any{
			"visitor_id": id.VisitorID,
			"error":      err.Error(),
		})
	}
}

// fresh builds the new-visitor identity: the client fingerprint id when one
// was supplied, otherwise a deterministic server-side id from the stable
// request signals.
func (r *Resolver) fresh(in Input) *models.Identity {
	var visitorID string
	confidence := orDefault(in.Confidence, r.cfg.BaselineConfidence)

	if in.FingerprintHash != "" {
		visitorID = fingerprint.IDFromHash(in.FingerprintHash)
	} else {
		visitorID = DeriveServerID(in.Meta)
		confidence = r.cfg.BaselineConfidence
	}

	return &models.Identity{
		VisitorID:  visitorID,
		MatchType:  models.MatchNew,
		Confidence: confidence,
	}
}

// degraded is the store-unavailable fallback: a new identity at baseline
// confidence.
func (r *Resolver) degraded(in Input) *models.Identity {
	id := r.fresh(in)
	id.Confidence = r.cfg.BaselineConfidence
	return id
}

// DeriveServerID builds the sv_<16-hex> identity from stable request
// signals. Same signals, same id.
func DeriveServerID(meta models.RequestMeta) string {
	input := strings.Join([]string{
		meta.UserAgent, meta.IP, meta.Country, meta.Timezone, meta.DeviceType, meta.Browser,
	}, "|")
	sum := sha256.Sum256([]byte(input))
	return "sv_" + hex.EncodeToString(sum[:8])
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
