// Package risk combines the independent scoring components into one
// assessment and applies the block/review decision policy.
package risk

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"stayguard/internal/config"
	"stayguard/internal/identity"
	"stayguard/internal/models"
	"stayguard/pkg/emailrisk"
	"stayguard/pkg/logger"
	"stayguard/pkg/netrisk"
	"stayguard/pkg/velocity"
)

// AttemptStore is the booking-attempt side of the history store.
type AttemptStore interface {
	RecentAttempts(ctx context.Context, since time.Time, limit int) ([]models.BookingAttempt, error)
	AppendBookingAttempt(ctx context.Context, a models.BookingAttempt) error
}

type Aggregator struct {
	identity *identity.Resolver
	network  *netrisk.Resolver
	attempts AttemptStore
	cfg      config.RiskConfig
	velocity config.VelocityConfig
	now      func() time.Time
}

func NewAggregator(id *identity.Resolver, network *netrisk.Resolver, attempts AttemptStore,
	cfg config.RiskConfig, vcfg config.VelocityConfig) *Aggregator {
	return &Aggregator{
		identity: id,
		network:  network,
		attempts: attempts,
		cfg:      cfg,
		velocity: vcfg,
		now:      time.Now,
	}
}

// Assess runs the full pipeline for one booking attempt. Identity is
// resolved first because the contextual checks depend on return-visitor
// status; the five scoring components then run concurrently. Every
// sub-component degrades to a zero contribution on failure, so Assess always
// returns a complete assessment.
func (a *Aggregator) Assess(ctx context.Context, req models.AssessRequest) *models.RiskAssessment {
	booking := req.Booking
	now := a.now()

	id := a.identity.Identify(ctx, identity.Input{
		VisitorID:       booking.VisitorID,
		FingerprintHash: booking.FingerprintHash,
		Confidence:      booking.FingerprintConfidence,
		Meta:            req.Meta,
	})

	var (
		wg       sync.WaitGroup
		emailRes emailrisk.Result
		netRes   netrisk.Result
		velRes   velocity.Result
		sessRes  checkResult
		botFlags []string
	)

	wg.Add(5)
	go func() {
		defer wg.Done()
		emailRes = emailrisk.Validate(booking.GuestEmail)
	}()
	go func() {
		defer wg.Done()
		netRes = a.network.Lookup(ctx, req.Meta.IP)
	}()
	go func() {
		defer wg.Done()
		velRes = a.velocityResult(ctx, booking, req.Meta, now)
	}()
	go func() {
		defer wg.Done()
		sessRes = scoreSession(booking.Session)
	}()
	go func() {
		defer wg.Done()
		botFlags = booking.Device.BotFlags()
	}()
	wg.Wait()

	nameRes := scoreName(booking.GuestName)
	contextRes := a.scoreContext(booking, id, now)

	emailContribution := int(math.Round(float64(emailRes.RiskScore) * a.cfg.EmailWeight))
	deviceScore := len(botFlags) * botSignalPoints

	total := emailContribution + netRes.RiskScore + velRes.Score +
		sessRes.score + deviceScore + nameRes.score + contextRes.score
	if total > 100 {
		total = 100
	}

	flags := dedupe(concat(
		emailRes.Flags, netRes.RiskFactors, velRes.Flags,
		sessRes.flags, botFlags, nameRes.flags, contextRes.flags,
	))

	block := a.shouldBlock(total, botFlags, flags, netRes)
	review := a.requiresReview(total, booking, id, botFlags, flags)

	level := models.LevelForScore(total)
	if block {
		level = models.RiskCritical
	}

	assessment := &models.RiskAssessment{
		RiskScore:            total,
		RiskLevel:            level,
		RequiresManualReview: review,
		ShouldBlock:          block,
		ComponentScores: map[string]int{
			"email":    emailContribution,
			"network":  netRes.RiskScore,
			"velocity": velRes.Score,
			"session":  sessRes.score,
			"device":   deviceScore,
			"name":     nameRes.score,
			"context":  contextRes.score,
		},
		Flags:            flags,
		SuggestedActions: suggestActions(total, flags),
		Identity:         id,
		Persistence:      buildPersistence(booking, req.Meta, id, emailRes, netRes, total, flags),
		AssessedAt:       now,
	}

	a.record(ctx, booking, req.Meta, id)
	return assessment
}

// checkResult is the score+flags pair produced by the table-driven checks.
type checkResult struct {
	score int
	flags []string
}

func scoreSession(s *models.SessionBehavior) checkResult {
	if s == nil {
		return checkResult{}
	}
	var res checkResult
	for _, check := range sessionChecks {
		if check.hit(s) {
			res.score += check.points
			res.flags = append(res.flags, check.flag)
		}
	}
	for _, activity := range s.SuspiciousActivities {
		res.score += suspiciousActivityPoints
		res.flags = append(res.flags, activity)
	}
	return res
}

func scoreName(name string) checkResult {
	if strings.TrimSpace(name) == "" {
		return checkResult{}
	}
	var res checkResult
	for _, check := range nameChecks {
		if check.hit(name) {
			res.score += check.points
			res.flags = append(res.flags, check.flag)
		}
	}
	return res
}

func (a *Aggregator) scoreContext(booking models.BookingSignals, id *models.Identity, now time.Time) checkResult {
	var res checkResult

	if !id.IsReturning && booking.Amount > a.cfg.HighValueAmount {
		res.score += 15
		res.flags = append(res.flags, FlagFirstTimeHighValue)
	}
	if !booking.StartAt.IsZero() {
		lead := booking.StartAt.Sub(now)
		if lead >= 0 && lead < lastMinuteWindow*time.Hour {
			res.score += 10
			res.flags = append(res.flags, FlagLastMinuteBooking)
		}
	}
	if booking.DurationDays > extendedDays {
		res.score += 5
		res.flags = append(res.flags, FlagExtendedDuration)
	}

	submitted := booking.SubmittedAt
	if submitted.IsZero() {
		submitted = now
	}
	if submitted.Hour() < lateNightUntil {
		res.score += 5
		res.flags = append(res.flags, FlagLateNightBooking)
	}
	if wd := submitted.Weekday(); wd == time.Saturday || wd == time.Sunday {
		res.score += 3
		res.flags = append(res.flags, FlagWeekendBooking)
	}
	return res
}

// velocityResult fetches the recent attempt window and scores it. A store
// failure degrades to zero velocity.
func (a *Aggregator) velocityResult(ctx context.Context, booking models.BookingSignals,
	meta models.RequestMeta, now time.Time) velocity.Result {
	attempts, err := a.attempts.RecentAttempts(ctx, now.Add(-24*time.Hour), a.velocity.WindowSize)
	if err != nil {
		logger.Warn("Velocity window unavailable", map[string]any{"error": err.Error()})
		return velocity.Result{}
	}
	return velocity.Analyze(velocity.Current{
		FingerprintHash: booking.FingerprintHash,
		IP:              meta.IP,
		Email:           booking.GuestEmail,
	}, attempts, now)
}

func (a *Aggregator) shouldBlock(score int, botFlags, flags []string, netRes netrisk.Result) bool {
	if score >= a.cfg.BlockThreshold {
		return true
	}
	if len(botFlags) > 0 {
		return true
	}
	if contains(flags, FlagFakeName) {
		return true
	}
	if netRes.Tor && score > a.cfg.TorBlockScore {
		return true
	}
	return sameDeviceBookings(flags) >= a.cfg.DeviceBlockVelocity
}

func (a *Aggregator) requiresReview(score int, booking models.BookingSignals,
	id *models.Identity, botFlags, flags []string) bool {
	if score >= a.cfg.ReviewThreshold {
		return true
	}
	if contains(flags, FlagStatisticalAnomaly) || contains(flags, FlagFakeName) {
		return true
	}
	if contains(flags, netrisk.FactorVPN) || contains(flags, netrisk.FactorProxy) {
		return true
	}
	if len(botFlags) > 0 {
		return true
	}
	return !id.IsReturning && booking.Amount > a.cfg.HighValueAmount
}

// sameDeviceBookings parses the count out of a velocity flag like
// "6_bookings_same_device_last_hour". Zero when no such flag is present.
func sameDeviceBookings(flags []string) int {
	for _, f := range flags {
		rest, ok := strings.CutSuffix(f, "_bookings_same_device_last_hour")
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(rest); err == nil {
			return n
		}
	}
	return 0
}

func suggestActions(score int, flags []string) []string {
	var actions []string
	for _, band := range bandActions {
		if score >= band.minScore {
			actions = append(actions, band.action)
			break
		}
	}
	for _, rule := range flagActions {
		if contains(flags, rule.flag) {
			actions = append(actions, rule.action)
		}
	}
	return dedupe(actions)
}

func buildPersistence(booking models.BookingSignals, meta models.RequestMeta, id *models.Identity,
	emailRes emailrisk.Result, netRes netrisk.Result, score int, flags []string) models.PersistencePayload {
	p := models.PersistencePayload{
		VisitorID:                id.VisitorID,
		FingerprintHash:          booking.FingerprintHash,
		IP:                       meta.IP,
		Country:                  netRes.CountryCode,
		City:                     netRes.City,
		UserAgent:                meta.UserAgent,
		RiskScore:                score,
		RiskFlags:                strings.Join(flags, ","),
		EmailDomain:              emailRes.Domain,
		EmailVerificationPending: !emailRes.IsValid || contains(flags, emailrisk.FlagDisposableDomain),
		PhoneVerificationPending: strings.TrimSpace(booking.GuestPhone) == "",
	}
	if p.Country == "" {
		p.Country = meta.Country
	}
	if s := booking.Session; s != nil {
		p.SessionDuration = s.DurationSec
		p.FormCompletionMS = s.FormCompletionMS
		p.CopyPasteUsed = s.CopyPasteUsed
		p.HadInteraction = s.MouseEvents+s.KeyEvents > 0
	}
	return p
}

// record appends the visit and booking attempt that future requests will
// score against. Both writes are best-effort.
func (a *Aggregator) record(ctx context.Context, booking models.BookingSignals,
	meta models.RequestMeta, id *models.Identity) {
	a.identity.RecordVisit(ctx, id, booking.FingerprintHash, meta)
	err := a.attempts.AppendBookingAttempt(ctx, models.BookingAttempt{
		FingerprintHash: booking.FingerprintHash,
		IP:              meta.IP,
		Email:           booking.GuestEmail,
		CreatedAt:       a.now(),
	})
	if err != nil {
		logger.Warn("Failed to record booking attempt", map[string]any{"error": err.Error()})
	}
}

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func contains(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}
