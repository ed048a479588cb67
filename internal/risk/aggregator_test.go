package risk

import (
	"context"
	"strings"
	"testing"
	"time"

	"stayguard/internal/config"
	"stayguard/internal/identity"
	"stayguard/internal/models"
	"stayguard/pkg/netrisk"
)

type geoStub struct {
	info *netrisk.GeoInfo
	err  error
}

func (g *geoStub) Lookup(context.Context, string) (*netrisk.GeoInfo, error) {
	return g.info, g.err
}

func residentialGeo() *netrisk.GeoInfo {
	return &netrisk.GeoInfo{
		Country:     "United States",
		CountryCode: "US",
		Region:      "California",
		City:        "San Diego",
		Timezone:    "America/Los_Angeles",
		ISP:         "Cox Communications",
		Org:         "Cox Communications Inc",
		ASN:         "AS22773 Cox Communications Inc",
	}
}

type memHistory struct {
	visits []models.VisitRecord
}

func (m *memHistory) VisitStats(_ context.Context, visitorID string) (int, *time.Time, error) {
	count := 0
	var last *time.Time
	for i := range m.visits {
		if m.visits[i].VisitorID != visitorID {
			continue
		}
		count++
		last = &m.visits[i].CreatedAt
	}
	return count, last, nil
}

func (m *memHistory) FindByFingerprint(context.Context, string, time.Time) (*models.VisitRecord, error) {
	return nil, nil
}

func (m *memHistory) RecentCandidates(context.Context, time.Time, string, string, int) ([]models.VisitRecord, error) {
	return nil, nil
}

func (m *memHistory) AppendVisit(_ context.Context, v models.VisitRecord) error {
	m.visits = append(m.visits, v)
	return nil
}

type memAttempts struct {
	attempts []models.BookingAttempt
}

func (m *memAttempts) RecentAttempts(context.Context, time.Time, int) ([]models.BookingAttempt, error) {
	return m.attempts, nil
}

func (m *memAttempts) AppendBookingAttempt(_ context.Context, a models.BookingAttempt) error {
	m.attempts = append(m.attempts, a)
	return nil
}

func riskConfig() config.RiskConfig {
	return config.RiskConfig{
		BlockThreshold:      85,
		ReviewThreshold:     60,
		HighValueAmount:     2000,
		EmailWeight:         0.3,
		TorBlockScore:       50,
		DeviceBlockVelocity: 5,
	}
}

func identityConfig() config.IdentityConfig {
	return config.IdentityConfig{
		FuzzyThreshold:     70,
		FuzzyDiscount:      0.9,
		FingerprintWindow:  90 * 24 * time.Hour,
		FuzzyWindow:        30 * 24 * time.Hour,
		CandidateLimit:     100,
		BaselineConfidence: 50,
	}
}

// Tuesday afternoon: no late-night or weekend contribution.
var tuesdayAfternoon = time.Date(2026, 3, 3, 14, 0, 0, 0, time.UTC)

func newTestAggregator(geo *geoStub, attempts *memAttempts) *Aggregator {
	agg := NewAggregator(
		identity.NewResolver(&memHistory{}, identityConfig()),
		netrisk.NewResolver(geo),
		attempts,
		riskConfig(),
		config.VelocityConfig{WindowSize: 200},
	)
	agg.now = func() time.Time { return tuesdayAfternoon }
	return agg
}

func TestAssessFirstTimeHighValue(t *testing.T) {
	agg := newTestAggregator(&geoStub{info: residentialGeo()}, &memAttempts{})

	result := agg.Assess(context.Background(), models.AssessRequest{
		Booking: models.BookingSignals{
			GuestEmail:  "test@guerrillamail.com",
			GuestName:   "Sarah Connor",
			Amount:      2500,
			SubmittedAt: tuesdayAfternoon,
		},
		Meta: models.RequestMeta{IP: "203.0.113.5", UserAgent: "Mozilla/5.0"},
	})

	if !result.RequiresManualReview {
		t.Error("first-time visitor with a high-value booking must require review")
	}
	if result.ShouldBlock {
		t.Error("no bot, VPN, or fake-name signal: must not block")
	}
	if result.RiskLevel == models.RiskLow {
		t.Errorf("disposable email plus high-value context should be at least medium, got %s (score %d)", result.RiskLevel, result.RiskScore)
	}
	if !hasFlag(result.Flags, "disposable_domain") {
		t.Error("expected disposable_domain flag")
	}
	if !hasFlag(result.Flags, FlagFirstTimeHighValue) {
		t.Error("expected first_time_high_value flag")
	}
	if result.Identity == nil || result.Identity.MatchType != models.MatchNew {
		t.Error("expected a new-visitor identity")
	}
	if !result.Persistence.EmailVerificationPending {
		t.Error("disposable domain must leave email verification pending")
	}
}

func TestAssessVelocityBlock(t *testing.T) {
	attempts := &memAttempts{}
	for i := 0; i < 6; i++ {
		attempts.attempts = append(attempts.attempts, models.BookingAttempt{
			FingerprintHash: "abc123",
			IP:              "203.0.113.5",
			Email:           "guest@example.com",
			CreatedAt:       tuesdayAfternoon.Add(-time.Duration(i+1) * 5 * time.Minute),
		})
	}
	agg := newTestAggregator(&geoStub{info: residentialGeo()}, attempts)

	result := agg.Assess(context.Background(), models.AssessRequest{
		Booking: models.BookingSignals{
			GuestEmail:      "guest@example.com",
			GuestName:       "Sarah Connor",
			FingerprintHash: "abc123",
			Amount:          300,
			SubmittedAt:     tuesdayAfternoon,
		},
		Meta: models.RequestMeta{IP: "203.0.113.5"},
	})

	if !hasFlag(result.Flags, "6_bookings_same_device_last_hour") {
		t.Fatalf("expected same-device velocity flag, got %v", result.Flags)
	}
	if !result.ShouldBlock {
		t.Error("six same-device bookings in an hour must block")
	}
	if result.RiskLevel != models.RiskCritical {
		t.Errorf("a blocked booking is critical, got %s", result.RiskLevel)
	}
}

func TestAssessBotSignalBlocks(t *testing.T) {
	agg := newTestAggregator(&geoStub{info: residentialGeo()}, &memAttempts{})

	result := agg.Assess(context.Background(), models.AssessRequest{
		Booking: models.BookingSignals{
			GuestEmail:  "guest@example.com",
			GuestName:   "Sarah Connor",
			Amount:      100,
			SubmittedAt: tuesdayAfternoon,
			Device:      &models.DeviceSignals{WebDriver: true},
		},
		Meta: models.RequestMeta{IP: "203.0.113.5"},
	})

	if !result.ShouldBlock {
		t.Error("any bot signal must block regardless of score")
	}
	if !result.RequiresManualReview {
		t.Error("bot signal must also require review")
	}
	if result.ComponentScores["device"] != 20 {
		t.Errorf("one bot signal is worth 20 points, got %d", result.ComponentScores["device"])
	}
	if !containsAction(result.SuggestedActions, "automated submission") {
		t.Errorf("expected an automated-submission action, got %v", result.SuggestedActions)
	}
}

func TestAssessTorBlock(t *testing.T) {
	geo := residentialGeo()
	geo.ISP = "Tor Exit Node Relay"
	agg := newTestAggregator(&geoStub{info: geo}, &memAttempts{})

	result := agg.Assess(context.Background(), models.AssessRequest{
		Booking: models.BookingSignals{
			GuestEmail:  "test@guerrillamail.com",
			GuestName:   "Sarah Connor",
			Amount:      100,
			SubmittedAt: tuesdayAfternoon,
		},
		Meta: models.RequestMeta{IP: "203.0.113.5"},
	})

	if !hasFlag(result.Flags, netrisk.FactorTor) {
		t.Fatalf("expected tor flag, got %v", result.Flags)
	}
	if result.RiskScore <= 50 {
		t.Fatalf("tor plus disposable email should clear 50, got %d", result.RiskScore)
	}
	if !result.ShouldBlock {
		t.Error("tor with an elevated score must block")
	}
}

func TestAssessPrivateIP(t *testing.T) {
	agg := newTestAggregator(&geoStub{err: context.DeadlineExceeded}, &memAttempts{})

	result := agg.Assess(context.Background(), models.AssessRequest{
		Booking: models.BookingSignals{
			GuestEmail:  "guest@example.com",
			GuestName:   "Sarah Connor",
			SubmittedAt: tuesdayAfternoon,
		},
		Meta: models.RequestMeta{IP: "10.0.0.5"},
	})

	if result.ComponentScores["network"] != 0 {
		t.Errorf("private IP scores zero, got %d", result.ComponentScores["network"])
	}
	if !hasFlag(result.Flags, netrisk.FactorPrivateIP) {
		t.Errorf("expected private_ip flag, got %v", result.Flags)
	}
}

func TestAssessFlagsDeduplicated(t *testing.T) {
	agg := newTestAggregator(&geoStub{info: residentialGeo()}, &memAttempts{})

	result := agg.Assess(context.Background(), models.AssessRequest{
		Booking: models.BookingSignals{
			GuestEmail:  "guest@example.com",
			GuestName:   "Sarah Connor",
			SubmittedAt: tuesdayAfternoon,
			Session: &models.SessionBehavior{
				DurationSec:          10,
				CopyPasteUsed:        true,
				SuspiciousActivities: []string{"copy_paste_used"},
			},
		},
		Meta: models.RequestMeta{IP: "203.0.113.5"},
	})

	seen := map[string]int{}
	for _, f := range result.Flags {
		seen[f]++
	}
	for f, n := range seen {
		if n > 1 {
			t.Errorf("flag %q appears %d times", f, n)
		}
	}
}

func TestScoreSessionStatisticalAnomaly(t *testing.T) {
	res := scoreSession(&models.SessionBehavior{
		DurationSec:      5,
		FormCompletionMS: 1200,
	})

	if !hasFlag(res.flags, FlagStatisticalAnomaly) {
		t.Fatalf("expected statistical_anomaly, got %v", res.flags)
	}
	if !hasFlag(res.flags, FlagFastFormCompletion) {
		t.Errorf("expected fast_form_completion alongside the anomaly, got %v", res.flags)
	}
}

func TestScoreSessionNil(t *testing.T) {
	res := scoreSession(nil)
	if res.score != 0 || len(res.flags) != 0 {
		t.Errorf("missing session must contribute nothing, got %+v", res)
	}
}

func TestScoreName(t *testing.T) {
	tests := []struct {
		name     string
		guest    string
		wantFlag string
	}{
		{"fake token", "Test User", FlagFakeName},
		{"full fake name", "john doe", FlagFakeName},
		{"repeated run", "aaaaaa bbbb", FlagRepeatedCharName},
		{"digits", "Sarah C0nnor", FlagNameContainsDigits},
		{"too short", "Al", FlagNameTooShort},
		{"invalid characters", "Sarah<script>", FlagNameInvalidChars},
		{"all lowercase", "sarah connor", FlagNameImproperCasing},
		{"all uppercase", "SARAH CONNOR", FlagNameImproperCasing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := scoreName(tt.guest)
			if !hasFlag(res.flags, tt.wantFlag) {
				t.Errorf("scoreName(%q) flags = %v, want %s", tt.guest, res.flags, tt.wantFlag)
			}
		})
	}
}

func TestScoreNameClean(t *testing.T) {
	for _, guest := range []string{"Sarah Connor", "Jean-Luc Picard", "O'Brien", ""} {
		if res := scoreName(guest); len(res.flags) != 0 {
			t.Errorf("scoreName(%q) = %v, want no flags", guest, res.flags)
		}
	}
}

func TestSameDeviceBookings(t *testing.T) {
	if n := sameDeviceBookings([]string{"6_bookings_same_device_last_hour"}); n != 6 {
		t.Errorf("expected 6, got %d", n)
	}
	if n := sameDeviceBookings([]string{"4_bookings_same_ip_last_hour"}); n != 0 {
		t.Errorf("ip flag must not count as device, got %d", n)
	}
	if n := sameDeviceBookings(nil); n != 0 {
		t.Errorf("expected 0, got %d", n)
	}
}

func TestSuggestActionsBands(t *testing.T) {
	actions := suggestActions(90, nil)
	if len(actions) == 0 || actions[0] != "Block this booking" {
		t.Errorf("score 90 should suggest blocking, got %v", actions)
	}

	actions = suggestActions(10, []string{"disposable_domain"})
	if !containsAction(actions, "non-disposable") {
		t.Errorf("disposable flag should suggest a non-disposable email, got %v", actions)
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

func containsAction(actions []string, substr string) bool {
	for _, a := range actions {
		if strings.Contains(a, substr) {
			return true
		}
	}
	return false
}
