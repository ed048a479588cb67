package risk

import (
	"strings"
	"unicode"

	"stayguard/internal/models"
)

// Aggregator-level flag names. Component flags (email, network, velocity,
// device) keep the names their packages emit.
const (
	FlagShortSession       = "short_session"
	FlagLowInteraction     = "low_interaction"
	FlagCopyPaste          = "copy_paste_used"
	FlagValidationErrors   = "excessive_validation_errors"
	FlagFastFormCompletion = "fast_form_completion"
	FlagStatisticalAnomaly = "statistical_anomaly"
	FlagFakeName           = "fake_name"
	FlagRepeatedCharName   = "repeated_character_name"
	FlagNameContainsDigits = "name_contains_digits"
	FlagNameTooShort       = "name_too_short"
	FlagNameInvalidChars   = "name_invalid_characters"
	FlagNameImproperCasing = "name_improper_casing"
	FlagFirstTimeHighValue = "first_time_high_value"
	FlagLastMinuteBooking  = "last_minute_booking"
	FlagExtendedDuration   = "extended_duration"
	FlagLateNightBooking   = "late_night_booking"
	FlagWeekendBooking     = "weekend_booking"
)

// botSignalPoints is the per-flag contribution of device bot signals.
const botSignalPoints = 20

// suspiciousActivityPoints is the per-entry contribution of client-reported
// suspicious activities.
const suspiciousActivityPoints = 5

const (
	shortSessionSec   = 30
	minInteractions   = 5
	maxValidationErrs = 3
	fastFormMS        = 3000
	lastMinuteWindow  = 24 // hours before start
	extendedDays      = 30
	lateNightUntil    = 6 // local hour, exclusive
)

// sessionCheck pairs a named flag and point value with a predicate over the
// session behavior. The table is the policy; scoreSession just walks it.
type sessionCheck struct {
	flag   string
	points int
	hit    func(s *models.SessionBehavior) bool
}

var sessionChecks = []sessionCheck{
	{FlagShortSession, 15, func(s *models.SessionBehavior) bool {
		return s.DurationSec > 0 && s.DurationSec < shortSessionSec
	}},
	{FlagLowInteraction, 10, func(s *models.SessionBehavior) bool {
		return s.DurationSec >= shortSessionSec && s.MouseEvents+s.KeyEvents < minInteractions
	}},
	{FlagCopyPaste, 10, func(s *models.SessionBehavior) bool {
		return s.CopyPasteUsed
	}},
	{FlagValidationErrors, 10, func(s *models.SessionBehavior) bool {
		return s.ValidationErrors >= maxValidationErrs
	}},
	{FlagFastFormCompletion, 15, func(s *models.SessionBehavior) bool {
		return s.FormCompletionMS > 0 && s.FormCompletionMS < fastFormMS
	}},
	// A form completed impossibly fast with zero recorded interactions is
	// beyond what any human produces.
	{FlagStatisticalAnomaly, 25, func(s *models.SessionBehavior) bool {
		return s.FormCompletionMS > 0 && s.FormCompletionMS < fastFormMS &&
			s.MouseEvents == 0 && s.KeyEvents == 0
	}},
}

// nameCheck mirrors sessionCheck for guest-name heuristics.
type nameCheck struct {
	flag   string
	points int
	hit    func(name string) bool
}

var nameChecks = []nameCheck{
	{FlagFakeName, 25, hasFakeToken},
	{FlagRepeatedCharName, 15, hasRepeatedRun},
	{FlagNameContainsDigits, 15, func(name string) bool {
		return strings.IndexFunc(name, unicode.IsDigit) >= 0
	}},
	{FlagNameTooShort, 10, func(name string) bool {
		return len([]rune(strings.TrimSpace(name))) < 3
	}},
	{FlagNameInvalidChars, 10, hasDisallowedChars},
	{FlagNameImproperCasing, 5, hasImproperCasing},
}

// fakeNameTokens are matched as whole words, case-insensitively.
var fakeNameTokens = []string{
	"test",
	"testing",
	"fake",
	"asdf",
	"qwerty",
	"admin",
	"user",
	"guest",
	"temp",
	"demo",
	"sample",
	"none",
	"unknown",
	"john doe",
	"jane doe",
	"abc",
	"xyz",
}

func hasFakeToken(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	for _, token := range fakeNameTokens {
		if lower == token {
			return true
		}
		for _, word := range strings.Fields(lower) {
			if word == token {
				return true
			}
		}
	}
	return false
}

func hasRepeatedRun(name string) bool {
	run := 1
	var prev rune
	for _, r := range strings.ToLower(name) {
		if r == prev && r != ' ' {
			run++
			if run >= 4 {
				return true
			}
		} else {
			run = 1
		}
		prev = r
	}
	return false
}

func hasDisallowedChars(name string) bool {
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '\'' || r == '.' {
			continue
		}
		return true
	}
	return false
}

// hasImproperCasing flags names typed entirely in one case. Short names are
// exempt because initials legitimately come out all-caps.
func hasImproperCasing(name string) bool {
	trimmed := strings.TrimSpace(name)
	if len([]rune(trimmed)) <= 3 {
		return false
	}
	hasUpper := strings.IndexFunc(trimmed, unicode.IsUpper) >= 0
	hasLower := strings.IndexFunc(trimmed, unicode.IsLower) >= 0
	return hasUpper != hasLower
}

// actionRule maps a triggering flag to a suggested action for the booking
// workflow.
type actionRule struct {
	flag   string
	action string
}

var flagActions = []actionRule{
	{"invalid_format", "Reject email address and request a correction"},
	{"disposable_domain", "Require a non-disposable email address"},
	{"webdriver_present", "Block - automated submission detected"},
	{"headless_browser", "Block - automated submission detected"},
	{"phantom_present", "Block - automated submission detected"},
	{"selenium_present", "Block - automated submission detected"},
	{"automation_present", "Block - automated submission detected"},
	{"vpn_detected", "Verify identity through a secondary channel"},
	{"proxy_detected", "Verify identity through a secondary channel"},
	{"tor_exit_node", "Block - anonymized network origin"},
	{FlagFakeName, "Request government ID verification"},
	{FlagStatisticalAnomaly, "Escalate to the fraud team"},
	{FlagFirstTimeHighValue, "Collect a security deposit before confirmation"},
}

// bandAction is the baseline suggestion for a score band; the first band the
// score clears wins.
type bandAction struct {
	minScore int
	action   string
}

var bandActions = []bandAction{
	{85, "Block this booking"},
	{60, "Hold for manual review"},
	{30, "Monitor subsequent activity from this visitor"},
	{0, "Allow"},
}
