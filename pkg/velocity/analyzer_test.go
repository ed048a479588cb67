package velocity

import (
	"strings"
	"testing"
	"time"

	"stayguard/internal/models"
)

func TestAnalyze_SameDeviceLastHour(t *testing.T) {
	now := time.Now()
	cur := Current{FingerprintHash: "fp-abc", IP: "203.0.113.5", Email: "a@example.com"}

	var attempts []models.BookingAttempt
	for i := 0; i < 6; i++ {
		attempts = append(attempts, models.BookingAttempt{
			FingerprintHash: "fp-abc",
			IP:              "203.0.113.99",
			Email:           "a@example.com",
			CreatedAt:       now.Add(-time.Duration(i+1) * 5 * time.Minute),
		})
	}

	result := Analyze(cur, attempts, now)

	found := false
	for _, f := range result.Flags {
		if strings.Contains(f, "6_bookings_same_device_last_hour") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected 6_bookings_same_device_last_hour flag, got %v", result.Flags)
	}
	if result.Score != MaxScore {
		t.Errorf("6x15 plus day rule should hit the cap, got %d", result.Score)
	}
}

func TestAnalyze_SameIPLastHour(t *testing.T) {
	now := time.Now()
	cur := Current{FingerprintHash: "fp-x", IP: "203.0.113.5", Email: "a@example.com"}

	var attempts []models.BookingAttempt
	for i := 0; i < 3; i++ {
		attempts = append(attempts, models.BookingAttempt{
			FingerprintHash: "fp-other",
			IP:              "203.0.113.5",
			Email:           "a@example.com",
			CreatedAt:       now.Add(-time.Duration(i+1) * 10 * time.Minute),
		})
	}

	result := Analyze(cur, attempts, now)

	if result.Score != 30 {
		t.Errorf("Expected 3x10=30 for same-IP rule, got %d (%v)", result.Score, result.Flags)
	}
	if len(result.Flags) != 1 || result.Flags[0] != "3_bookings_same_ip_last_hour" {
		t.Errorf("Expected 3_bookings_same_ip_last_hour, got %v", result.Flags)
	}
}

func TestAnalyze_SameDeviceLastDay(t *testing.T) {
	now := time.Now()
	cur := Current{FingerprintHash: "fp-abc"}

	// Four attempts spread over the day, only one in the last hour so the
	// hourly rule stays quiet.
	offsets := []time.Duration{30 * time.Minute, 5 * time.Hour, 10 * time.Hour, 20 * time.Hour}
	var attempts []models.BookingAttempt
	for _, off := range offsets {
		attempts = append(attempts, models.BookingAttempt{
			FingerprintHash: "fp-abc",
			CreatedAt:       now.Add(-off),
		})
	}

	result := Analyze(cur, attempts, now)

	if result.Score != 20 {
		t.Errorf("Expected 4x5=20 for same-device day rule, got %d (%v)", result.Score, result.Flags)
	}
	if len(result.Flags) != 1 || result.Flags[0] != "4_bookings_same_device_last_day" {
		t.Errorf("Expected 4_bookings_same_device_last_day, got %v", result.Flags)
	}
}

func TestAnalyze_SameDomainDifferentEmails(t *testing.T) {
	now := time.Now()
	cur := Current{Email: "first@burner.example"}

	attempts := []models.BookingAttempt{
		{Email: "second@burner.example", CreatedAt: now.Add(-2 * time.Hour)},
		{Email: "third@burner.example", CreatedAt: now.Add(-4 * time.Hour)},
		{Email: "fourth@burner.example", CreatedAt: now.Add(-6 * time.Hour)},
		// Exact same address must not count toward the domain rule.
		{Email: "first@burner.example", CreatedAt: now.Add(-8 * time.Hour)},
	}

	result := Analyze(cur, attempts, now)

	if result.Score != 24 {
		t.Errorf("Expected 3x8=24 for same-domain rule, got %d (%v)", result.Score, result.Flags)
	}
	if len(result.Flags) != 1 || result.Flags[0] != "multiple_emails_same_domain" {
		t.Errorf("Expected multiple_emails_same_domain, got %v", result.Flags)
	}
}

func TestAnalyze_SingleAttemptQuiet(t *testing.T) {
	now := time.Now()
	cur := Current{FingerprintHash: "fp-abc", IP: "203.0.113.5", Email: "a@example.com"}

	attempts := []models.BookingAttempt{
		{FingerprintHash: "fp-abc", IP: "203.0.113.5", Email: "a@example.com", CreatedAt: now.Add(-10 * time.Minute)},
	}

	result := Analyze(cur, attempts, now)

	if result.Score != 0 || len(result.Flags) != 0 {
		t.Errorf("Single repeat should not trigger, got score %d flags %v", result.Score, result.Flags)
	}
}

func TestAnalyze_OldAttemptsIgnored(t *testing.T) {
	now := time.Now()
	cur := Current{FingerprintHash: "fp-abc"}

	var attempts []models.BookingAttempt
	for i := 0; i < 10; i++ {
		attempts = append(attempts, models.BookingAttempt{
			FingerprintHash: "fp-abc",
			CreatedAt:       now.Add(-time.Duration(i+25) * time.Hour),
		})
	}

	result := Analyze(cur, attempts, now)

	if result.Score != 0 {
		t.Errorf("Attempts older than 24h must be ignored, got score %d", result.Score)
	}
}

func TestAnalyze_CapAtFifty(t *testing.T) {
	now := time.Now()
	cur := Current{FingerprintHash: "fp-abc", IP: "203.0.113.5", Email: "a@burner.example"}

	var attempts []models.BookingAttempt
	for i := 0; i < 12; i++ {
		attempts = append(attempts, models.BookingAttempt{
			FingerprintHash: "fp-abc",
			IP:              "203.0.113.5",
			Email:           "other@burner.example",
			CreatedAt:       now.Add(-time.Duration(i+1) * time.Minute),
		})
	}

	result := Analyze(cur, attempts, now)

	if result.Score != MaxScore {
		t.Errorf("Velocity must cap at %d, got %d", MaxScore, result.Score)
	}
}
