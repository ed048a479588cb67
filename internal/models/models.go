package models

import "time"

// Risk levels bucketing the 0-100 risk score.
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

// LevelForScore buckets a 0-100 score into a risk level.
func LevelForScore(score int) string {
	switch {
	case score >= 70:
		return RiskCritical
	case score >= 50:
		return RiskHigh
	case score >= 30:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Match types returned by the visitor identity resolver.
const (
	MatchExact       = "exact"
	MatchFingerprint = "fingerprint"
	MatchFuzzy       = "fuzzy"
	MatchNew         = "new"
)

// ScreenInfo holds display signals.
type ScreenInfo struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	ColorDepth int     `json:"color_depth"`
	PixelRatio float64 `json:"pixel_ratio"`
}

// HardwareInfo holds device hardware signals.
type HardwareInfo struct {
	CPUCores     int     `json:"cpu_cores"`
	DeviceMemory float64 `json:"device_memory"`
	Concurrency  int     `json:"concurrency"`
	Platform     string  `json:"platform"`
	TouchPoints  int     `json:"touch_points"`
}

// BrowserInfo holds user-agent derived signals.
type BrowserInfo struct {
	UserAgent  string   `json:"user_agent"`
	Language   string   `json:"language"`
	Languages  []string `json:"languages"`
	Vendor     string   `json:"vendor"`
	DoNotTrack string   `json:"do_not_track,omitempty"`
}

// TimezoneInfo holds locale timing signals.
type TimezoneInfo struct {
	Name   string `json:"name"`
	Offset int    `json:"offset"`
}

// ConnectionInfo holds network hints. Volatile across visits, so it never
// feeds the stable hash.
type ConnectionInfo struct {
	EffectiveType string  `json:"effective_type"`
	Downlink      float64 `json:"downlink"`
	RTT           int     `json:"rtt"`
	SaveData      bool    `json:"save_data"`
}

// MathInfo holds floating-point quirk values that differ across JS engines.
type MathInfo struct {
	Tan   float64 `json:"tan"`
	Sinh  float64 `json:"sinh"`
	Expm1 float64 `json:"expm1"`
}

// Components is the categorized set of raw fingerprint signals collected for
// one page load. A nil category means the probe was unavailable; the
// collector never fails outright on a missing capability.
type Components struct {
	Screen     *ScreenInfo     `json:"screen,omitempty"`
	Hardware   *HardwareInfo   `json:"hardware,omitempty"`
	Browser    *BrowserInfo    `json:"browser,omitempty"`
	Timezone   *TimezoneInfo   `json:"timezone,omitempty"`
	CanvasHash string          `json:"canvas_hash,omitempty"`
	WebGLHash  string          `json:"webgl_hash,omitempty"`
	AudioHash  string          `json:"audio_hash,omitempty"`
	Fonts      []string        `json:"fonts,omitempty"`
	Features   map[string]bool `json:"features,omitempty"`
	Connection *ConnectionInfo `json:"connection,omitempty"`
	Math       *MathInfo       `json:"math,omitempty"`
}

// Fingerprint origin tags.
const (
	OriginStorage     = "storage"
	OriginNew         = "new"
	OriginFingerprint = "fingerprint"
)

// VisitorFingerprint is the collector output: a stable identity hash plus a
// confidence estimate for the signals that produced it.
type VisitorFingerprint struct {
	VisitorID     string      `json:"visitor_id"`
	Hash          string      `json:"fingerprint_hash"`
	Confidence    int         `json:"confidence"`
	Components    *Components `json:"components,omitempty"`
	CollectedAt   time.Time   `json:"collected_at"`
	SchemaVersion int         `json:"schema_version"`
	Origin        string      `json:"origin"`
	Visits        int64       `json:"visits,omitempty"`
}

// DeviceSignals are bot indicators reported by the client agent or derived
// server-side from the fingerprint components.
type DeviceSignals struct {
	WebDriver      bool `json:"webdriver"`
	HeadlessChrome bool `json:"headless_chrome"`
	Phantom        bool `json:"phantom_present"`
	Selenium       bool `json:"selenium_present"`
	Automation     bool `json:"automation_present"`
	InconsistentUA bool `json:"inconsistent_ua"`
}

// BotFlags returns one named flag per active bot signal.
func (d *DeviceSignals) BotFlags() []string {
	if d == nil {
		return nil
	}
	var flags []string
	if d.WebDriver {
		flags = append(flags, "webdriver_present")
	}
	if d.HeadlessChrome {
		flags = append(flags, "headless_browser")
	}
	if d.Phantom {
		flags = append(flags, "phantom_present")
	}
	if d.Selenium {
		flags = append(flags, "selenium_present")
	}
	if d.Automation {
		flags = append(flags, "automation_present")
	}
	if d.InconsistentUA {
		flags = append(flags, "inconsistent_user_agent")
	}
	return flags
}

// SessionBehavior is the per-booking-attempt interaction context. It is
// built per request and passed by reference into the aggregator; nothing
// here is process-wide state.
type SessionBehavior struct {
	DurationSec          int      `json:"duration_sec"`
	FormCompletionMS     int64    `json:"form_completion_ms"`
	MouseEvents          int      `json:"mouse_events"`
	KeyEvents            int      `json:"key_events"`
	ScrollDepth          int      `json:"scroll_depth"`
	ValidationErrors     int      `json:"validation_errors"`
	CopyPasteUsed        bool     `json:"copy_paste_used"`
	SuspiciousActivities []string `json:"suspicious_activities,omitempty"`
}

// BookingSignals is the transient, submission-scoped aggregate the risk
// pipeline runs on.
type BookingSignals struct {
	GuestEmail string  `json:"guest_email"`
	GuestPhone string  `json:"guest_phone"`
	GuestName  string  `json:"guest_name"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`

	StartAt      time.Time `json:"start_at"`
	DurationDays int       `json:"duration_days"`
	Pickup       string    `json:"pickup"`
	Delivery     string    `json:"delivery"`
	SubmittedAt  time.Time `json:"submitted_at"`

	// Optional client fingerprint result.
	VisitorID             string `json:"visitor_id,omitempty"`
	FingerprintHash       string `json:"fingerprint_hash,omitempty"`
	FingerprintConfidence int    `json:"fingerprint_confidence,omitempty"`

	Session *SessionBehavior `json:"session,omitempty"`
	Device  *DeviceSignals   `json:"device,omitempty"`
}

// RequestMeta is transport metadata extracted from the inbound request.
type RequestMeta struct {
	IP         string `json:"ip"`
	UserAgent  string `json:"user_agent"`
	Country    string `json:"country"`
	Timezone   string `json:"timezone"`
	DeviceType string `json:"device_type"`
	Browser    string `json:"browser"`
}

// VisitRecord is one append-only history event for a visitor. Records are
// never mutated; last-seen and visit counts are derived by query.
type VisitRecord struct {
	VisitorID       string    `db:"visitor_id" json:"visitor_id"`
	FingerprintHash string    `db:"fingerprint_hash" json:"fingerprint_hash"`
	IP              string    `db:"ip" json:"ip"`
	UserAgent       string    `db:"user_agent" json:"user_agent"`
	Country         string    `db:"country" json:"country"`
	Timezone        string    `db:"timezone" json:"timezone"`
	DeviceType      string    `db:"device_type" json:"device_type"`
	Browser         string    `db:"browser" json:"browser"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// BookingAttempt is one row of the recent-bookings window the velocity
// analyzer runs over.
type BookingAttempt struct {
	FingerprintHash string    `db:"fingerprint_hash" json:"fingerprint_hash"`
	IP              string    `db:"ip" json:"ip"`
	Email           string    `db:"email" json:"email"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Identity is the visitor identity resolver output.
type Identity struct {
	VisitorID      string     `json:"visitor_id"`
	MatchType      string     `json:"match_type"`
	Confidence     int        `json:"confidence"`
	IsReturning    bool       `json:"is_returning"`
	PreviousVisits int        `json:"previous_visits"`
	LastSeen       *time.Time `json:"last_seen,omitempty"`
}

// PersistencePayload is the subset of the assessment the caller stores
// alongside the booking record.
type PersistencePayload struct {
	VisitorID                string `json:"visitor_id"`
	FingerprintHash          string `json:"fingerprint_hash"`
	SessionDuration          int    `json:"session_duration"`
	IP                       string `json:"ip"`
	Country                  string `json:"country"`
	City                     string `json:"city"`
	UserAgent                string `json:"user_agent"`
	RiskScore                int    `json:"risk_score"`
	RiskFlags                string `json:"risk_flags"`
	EmailDomain              string `json:"email_domain"`
	FormCompletionMS         int64  `json:"form_completion_ms"`
	CopyPasteUsed            bool   `json:"copy_paste_used"`
	HadInteraction           bool   `json:"had_interaction"`
	EmailVerificationPending bool   `json:"email_verification_pending"`
	PhoneVerificationPending bool   `json:"phone_verification_pending"`
}

// RiskAssessment is the final fraud decision for one booking attempt.
type RiskAssessment struct {
	RiskScore            int                `json:"risk_score"`
	RiskLevel            string             `json:"risk_level"`
	RequiresManualReview bool               `json:"requires_manual_review"`
	ShouldBlock          bool               `json:"should_block"`
	ComponentScores      map[string]int     `json:"component_scores"`
	Flags                []string           `json:"flags"`
	SuggestedActions     []string           `json:"suggested_actions"`
	Identity             *Identity          `json:"identity,omitempty"`
	Persistence          PersistencePayload `json:"persistence_payload"`
	AssessedAt           time.Time          `json:"assessed_at"`
}

// AssessRequest is the inbound payload for POST /v1/assess. Meta is filled
// server-side from transport headers.
type AssessRequest struct {
	Booking BookingSignals `json:"booking"`
	Meta    RequestMeta    `json:"-"`
}

// IdentifyRequest is the inbound payload for POST /v1/identify.
type IdentifyRequest struct {
	VisitorID             string      `json:"visitor_id,omitempty"`
	FingerprintHash       string      `json:"fingerprint_hash,omitempty"`
	FingerprintConfidence int         `json:"fingerprint_confidence,omitempty"`
	Meta                  RequestMeta `json:"-"`
}

/// FingerprintRequest is the inbound payload for POST /v1/fingerprint: raw
// components posted by the client agent, plus the visitor id from the
// client's durable store when the agent found one.
type FingerprintRequest struct {
	Components Components `json:"components"`
	StoredID   string     `json:"stored_id,omitempty"`
}

// AssessmentRow is a stored assessment as listed by the review API.
type AssessmentRow struct {
	ID          int64     `db:"id" json:"id"`
	VisitorID   string    `db:"visitor_id" json:"visitor_id"`
	IP          string    `db:"ip" json:"ip"`
	EmailDomain string    `db:"email_domain" json:"email_domain"`
	RiskScore   int       `db:"risk_score" json:"risk_score"`
	RiskLevel   string    `db:"risk_level" json:"risk_level"`
	Blocked     bool      `db:"blocked" json:"blocked"`
	Review      bool      `db:"review" json:"review"`
	Flags       string    `db:"flags" json:"flags"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
