// Package fingerprint collects device and rendering signals from a browsing
// context and derives a stable visitor identity hash with a confidence
// score. All probes degrade gracefully: a missing capability marks the
// category unavailable, it never aborts collection.
package fingerprint

import (
	"context"
	"errors"
	"time"

	"stayguard/internal/models"
)

// ErrNotFound is returned by Store implementations on a clean miss.
var ErrNotFound = errors.New("visitor id not found")

// Store is the durable visitor-id persistence layer. Get must refresh the
// record's TTL and increment its visit counter; Put writes a fresh record.
type Store interface {
	Get(ctx context.Context) (id string, visits int64, err error)
	Put(ctx context.Context, id string) error
}

// Collector runs the probe pipeline against a Surface.
type Collector struct {
	surface Surface
	hasher  Hasher
	now     func() time.Time
}

func NewCollector(surface Surface) *Collector {
	return &Collector{
		surface: surface,
		hasher:  SHA256Hex,
		now:     time.Now,
	}
}

// WithHasher swaps the digest, for surfaces without a cryptographic one.
func (c *Collector) WithHasher(h Hasher) *Collector {
	c.hasher = h
	return c
}

// Collect runs every probe and returns the categorized components. The
// audio render is the one probe that suspends, so it is awaited before the
// stable hash can be computed.
func (c *Collector) Collect(ctx context.Context) *models.Components {
	components := &models.Components{}

	if screen, err := c.surface.Screen(); err == nil {
		components.Screen = screen
	}
	if hw, err := c.surface.Hardware(); err == nil {
		components.Hardware = hw
	}
	if browser, err := c.surface.Browser(); err == nil {
		components.Browser = browser
	}
	if tz, err := c.surface.Timezone(); err == nil {
		components.Timezone = tz
	}
	if hash, err := c.surface.RenderCanvas(); err == nil {
		components.CanvasHash = hash
	}
	if hash, err := c.surface.RenderWebGL(); err == nil {
		components.WebGLHash = hash
	}
	if hash, err := c.surface.RenderAudio(ctx); err == nil {
		components.AudioHash = hash
	}
	if fonts, err := c.surface.MeasureFonts(FontCandidates); err == nil {
		components.Fonts = fonts
	}
	if features, err := c.surface.Features(); err == nil {
		components.Features = features
	}
	if conn, err := c.surface.Connection(); err == nil {
		components.Connection = conn
	}
	if math, err := c.surface.MathQuirks(); err == nil {
		components.Math = math
	}

	return components
}

// Fingerprint collects and hashes in one pass, tagging the result as a pure
// fingerprint-origin identity.
func (c *Collector) Fingerprint(ctx context.Context) *models.VisitorFingerprint {
	components := c.Collect(ctx)
	return c.FromComponents(components)
}

// FromComponents derives the fingerprint from an already-collected set, the
// path taken when the client agent posts raw components to the server.
func (c *Collector) FromComponents(components *models.Components) *models.VisitorFingerprint {
	hash := c.hasher(StableInput(components))
	return &models.VisitorFingerprint{
		VisitorID:     IDFromHash(hash),
		Hash:          hash,
		Confidence:    Confidence(components),
		Components:    components,
		CollectedAt:   c.now(),
		SchemaVersion: SchemaVersion,
		Origin:        models.OriginFingerprint,
	}
}

// Resolve runs the visitor-id persistence flow: the durable store is
// checked first, and only on a miss is the fingerprint recomputed and the
// new id written back. A broken store degrades to a fingerprint-only
// identity rather than failing.
func (c *Collector) Resolve(ctx context.Context, store Store) *models.VisitorFingerprint {
	if store == nil {
		return c.Fingerprint(ctx)
	}

	id, visits, err := store.Get(ctx)
	if err == nil && id != "" {
		return &models.VisitorFingerprint{
			VisitorID:     id,
			Confidence:    99,
			CollectedAt:   c.now(),
			SchemaVersion: SchemaVersion,
			Origin:        models.OriginStorage,
			Visits:        visits,
		}
	}

	fp := c.Fingerprint(ctx)
	if errors.Is(err, ErrNotFound) {
		if putErr := store.Put(ctx, fp.VisitorID); putErr == nil {
			fp.Origin = models.OriginNew
			fp.Visits = 1
		}
	}
	return fp
}
